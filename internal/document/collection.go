package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuview/docuview/internal/models"
)

// PageSize is the fixed page length for collection reads.
const PageSize = 12

// Record is one row of the remote collection: the listing metadata plus the
// full text and the server-assigned timestamps.
type Record struct {
	models.DocumentMetadata
	TextContent string    `json:"text_content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cursor marks the position after the last record of a loaded page.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Collection is the remote document store, keyed by document id and ordered
// by server-assigned creation time.
type Collection interface {
	Put(ctx context.Context, doc *models.DocumentFile) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	Page(ctx context.Context, after *Cursor, limit int) ([]Record, error)
}

// PgCollection stores records in the articles table and broadcasts every
// committed write on the change feed.
type PgCollection struct {
	db   *pgxpool.Pool
	feed Feed
}

func NewPgCollection(db *pgxpool.Pool, feed Feed) *PgCollection {
	return &PgCollection{db: db, feed: feed}
}

const recordColumns = `id, name, type, uploaded_at, source, summary, cover_image_data_uri,
	author, edition, file_url, asset_id, text_content, created_at, updated_at`

// Put upserts the record keyed by the document id. The remote schema has no
// notion of an absent field, so every optional value goes in as an explicit
// NULL (nil pointer). Timestamps are server-assigned.
func (c *PgCollection) Put(ctx context.Context, doc *models.DocumentFile) (*Record, error) {
	row := c.db.QueryRow(ctx, `
		INSERT INTO articles (id, name, type, uploaded_at, source, summary, cover_image_data_uri,
			author, edition, file_url, asset_id, text_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			uploaded_at = EXCLUDED.uploaded_at,
			source = EXCLUDED.source,
			summary = EXCLUDED.summary,
			cover_image_data_uri = EXCLUDED.cover_image_data_uri,
			author = EXCLUDED.author,
			edition = EXCLUDED.edition,
			file_url = EXCLUDED.file_url,
			asset_id = EXCLUDED.asset_id,
			text_content = EXCLUDED.text_content,
			updated_at = now()
		RETURNING `+recordColumns,
		doc.ID, models.StrPtr(doc.Name), orDefault(doc.Type, "document"),
		models.StrPtr(doc.UploadedAt), models.StrPtr(doc.Source),
		doc.Summary, doc.CoverImageDataURI, doc.Author, doc.Edition,
		doc.FileURL, doc.AssetID, models.StrPtr(doc.TextContent),
	)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert article %s: %w", doc.ID, err)
	}

	c.publish(ctx, ChangeEvent{Kind: ChangeInsert, ID: rec.ID, Record: rec})
	return rec, nil
}

// ErrRecordNotFound is returned by Get for an unknown id.
var ErrRecordNotFound = errors.New("document: record not found")

func (c *PgCollection) Get(ctx context.Context, id string) (*Record, error) {
	row := c.db.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM articles WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return rec, nil
}

// updatableColumns whitelists the fields a partial update may touch.
var updatableColumns = map[string]bool{
	"summary":              true,
	"cover_image_data_uri": true,
	"author":               true,
	"source":               true,
	"edition":              true,
	"file_url":             true,
	"asset_id":             true,
	"text_content":         true,
}

// UpdateFields applies a partial update to an existing record. Updating a
// record that was deleted in the meantime is a silent no-op.
func (c *PgCollection) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	args = append(args, id)
	for col, val := range fields {
		if !updatableColumns[col] {
			return fmt.Errorf("update article %s: column %q not updatable", id, col)
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	row := c.db.QueryRow(ctx,
		"UPDATE articles SET "+strings.Join(sets, ", ")+" WHERE id = $1 RETURNING "+recordColumns,
		args...,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("update targeted a deleted record, ignoring", "id", id)
			return nil
		}
		return fmt.Errorf("update article %s: %w", id, err)
	}

	c.publish(ctx, ChangeEvent{Kind: ChangeUpdate, ID: id, Record: rec})
	return nil
}

// Delete removes the record. Deleting a missing record counts as success.
func (c *PgCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.db.Exec(ctx, "DELETE FROM articles WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	c.publish(ctx, ChangeEvent{Kind: ChangeDelete, ID: id})
	return nil
}

// Page reads one page ordered by creation time descending, starting after
// the cursor when one is given.
func (c *PgCollection) Page(ctx context.Context, after *Cursor, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = PageSize
	}

	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = c.db.Query(ctx,
			"SELECT "+recordColumns+" FROM articles ORDER BY created_at DESC, id DESC LIMIT $1",
			limit,
		)
	} else {
		rows, err = c.db.Query(ctx,
			"SELECT "+recordColumns+` FROM articles
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC LIMIT $3`,
			after.CreatedAt, after.ID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("page articles: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (c *PgCollection) publish(ctx context.Context, ev ChangeEvent) {
	if c.feed == nil {
		return
	}
	if err := c.feed.Publish(ctx, ev); err != nil {
		slog.Warn("change event not published", "id", ev.ID, "kind", ev.Kind, "error", err)
	}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var name, typ, uploadedAt, source, textContent *string
	err := row.Scan(
		&rec.ID, &name, &typ, &uploadedAt, &source,
		&rec.Summary, &rec.CoverImageDataURI, &rec.Author, &rec.Edition,
		&rec.FileURL, &rec.AssetID, &textContent, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Name = deref(name)
	rec.Type = orDefault(deref(typ), "document")
	rec.Source = deref(source)
	rec.TextContent = deref(textContent)
	rec.UploadedAt = NormalizeTimestamp(uploadedAt, rec.CreatedAt, rec.ID)
	return &rec, nil
}

// NormalizeTimestamp coerces the stored uploaded_at value to ISO-8601. The
// column holds whatever writers over the years put there: RFC3339 strings,
// bare datetimes, epoch seconds, or nothing. A missing value falls back to
// the server-assigned creation time; an unparseable one falls back to the
// current time with a warning. Bad data never fails the page load.
func NormalizeTimestamp(raw *string, createdAt time.Time, id string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		if createdAt.IsZero() {
			return time.Now().UTC().Format(time.RFC3339)
		}
		return createdAt.UTC().Format(time.RFC3339)
	}

	val := strings.TrimSpace(*raw)
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	if secs, err := strconv.ParseInt(val, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC().Format(time.RFC3339)
	}

	slog.Warn("invalid uploaded_at, using current time", "id", id, "value", val)
	return time.Now().UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
