package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/docuview/docuview/internal/models"
)

const (
	docKeyPrefix = "doc:"
	libraryKey   = "library"
)

// ErrQuotaExceeded is returned when the cache refuses a write because its
// memory quota is exhausted. Callers decide whether to retry with a smaller
// payload.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// IsQuotaExceeded is the single quota-detection predicate for the whole
// pipeline. Redis reports memory exhaustion as an OOM error referencing
// maxmemory; anything already mapped to ErrQuotaExceeded also matches.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "oom command not allowed") || strings.Contains(msg, "maxmemory")
}

// Cache is the local tier: a best-effort mirror of documents keyed by id,
// plus a secondary library index.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func DocKey(id string) string {
	return docKeyPrefix + id
}

// SetDoc stores the serialized document under doc:<id>. A quota refusal is
// surfaced as ErrQuotaExceeded so the tiered store can degrade the payload.
func (c *Cache) SetDoc(ctx context.Context, doc *models.DocumentFile) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := c.client.Set(ctx, DocKey(doc.ID), data, 0).Err(); err != nil {
		if IsQuotaExceeded(err) {
			return fmt.Errorf("set %s: %w", DocKey(doc.ID), ErrQuotaExceeded)
		}
		return fmt.Errorf("set %s: %w", DocKey(doc.ID), err)
	}
	return nil
}

func (c *Cache) GetDoc(ctx context.Context, id string) (*models.DocumentFile, error) {
	val, err := c.client.Get(ctx, DocKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", DocKey(id), err)
	}
	var doc models.DocumentFile
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", DocKey(id), err)
	}
	return &doc, nil
}

func (c *Cache) DeleteDoc(ctx context.Context, id string) error {
	return c.client.Del(ctx, DocKey(id)).Err()
}

// Library reads the secondary metadata index. The index is best-effort and
// may be stale or partially invalid, so entries without an id or name are
// dropped instead of failing the read.
func (c *Cache) Library(ctx context.Context) ([]models.DocumentMetadata, error) {
	val, err := c.client.Get(ctx, libraryKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", libraryKey, err)
	}

	var raw []models.DocumentMetadata
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		slog.Warn("library index corrupt, ignoring", "error", err)
		return nil, nil
	}

	valid := raw[:0]
	for _, m := range raw {
		if m.ID == "" || m.Name == "" {
			continue
		}
		valid = append(valid, m)
	}
	return valid, nil
}

// SetLibrary rewrites the secondary index. Quota refusals are swallowed:
// the index is reconstructible from the remote collection.
func (c *Cache) SetLibrary(ctx context.Context, docs []models.DocumentMetadata) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal library: %w", err)
	}
	if err := c.client.Set(ctx, libraryKey, data, 0).Err(); err != nil {
		if IsQuotaExceeded(err) {
			slog.Warn("library index skipped, cache quota exceeded")
			return nil
		}
		return fmt.Errorf("set %s: %w", libraryKey, err)
	}
	return nil
}
