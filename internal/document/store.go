package document

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docuview/docuview/internal/cache"
	"github.com/docuview/docuview/internal/models"
)

// LocalCache is the fast, quota-bounded tier of the store. The redis
// implementation lives in internal/cache.
type LocalCache interface {
	SetDoc(ctx context.Context, doc *models.DocumentFile) error
	GetDoc(ctx context.Context, id string) (*models.DocumentFile, error)
	DeleteDoc(ctx context.Context, id string) error
	Library(ctx context.Context) ([]models.DocumentMetadata, error)
	SetLibrary(ctx context.Context, docs []models.DocumentMetadata) error
}

// CommitStatus is the typed outcome of a tiered write.
type CommitStatus string

const (
	// Stored: full payload in both tiers.
	Stored CommitStatus = "stored"
	// StoredDegraded: inline bytes and cover stripped to fit the local
	// quota; both tiers hold the degraded version.
	StoredDegraded CommitStatus = "stored_degraded"
	// StoredLocalOnly: local tier committed but the remote write failed.
	// Not retried automatically and the local write is not rolled back.
	StoredLocalOnly CommitStatus = "stored_local_only"
	// FailedQuota: even the degraded payload exceeded the local quota.
	// Terminal for this document.
	FailedQuota CommitStatus = "failed_quota"
	// FailedStorage: the local tier failed for a non-quota reason.
	FailedStorage CommitStatus = "failed_storage"
)

// Committed reports whether the document entered the library.
func (s CommitStatus) Committed() bool {
	return s == Stored || s == StoredDegraded || s == StoredLocalOnly
}

// CommitResult describes what a tiered write actually persisted.
type CommitResult struct {
	Status CommitStatus
	// Doc is the version committed to the local tier; nil when nothing
	// was stored. It may differ from the input when the write degraded.
	Doc *models.DocumentFile
	// Record is the remote record, when the remote tier was reached.
	Record    *Record
	LocalErr  error
	RemoteErr error
}

// storageStrategy prepares one candidate payload for the local tier.
// Strategies are tried in order; the first that fits wins.
type storageStrategy struct {
	name    string
	prepare func(models.DocumentFile) models.DocumentFile
}

var localStrategies = []storageStrategy{
	{
		name:    "full",
		prepare: func(d models.DocumentFile) models.DocumentFile { return d },
	},
	{
		// Minimal viable save: metadata and text only.
		name: "stripped",
		prepare: func(d models.DocumentFile) models.DocumentFile {
			d.FileDataURI = nil
			d.CoverImageDataURI = nil
			return d
		},
	},
}

// TieredStore writes documents through the local cache and then the remote
// collection, degrading the payload under quota pressure instead of
// failing, and reporting remote failures without rolling back local state.
type TieredStore struct {
	local  LocalCache
	remote Collection
}

func NewTieredStore(local LocalCache, remote Collection) *TieredStore {
	return &TieredStore{local: local, remote: remote}
}

// Write commits a document. The local tier is attempted with each strategy
// in order; only quota errors move to the next strategy, any other storage
// error aborts. The remote tier is only reached after a local success, and
// a remote failure downgrades the result rather than reverting anything.
func (s *TieredStore) Write(ctx context.Context, doc *models.DocumentFile) CommitResult {
	var stored *models.DocumentFile
	degraded := false

	for i, strat := range localStrategies {
		candidate := strat.prepare(*doc)
		err := s.local.SetDoc(ctx, &candidate)
		if err == nil {
			stored = &candidate
			degraded = i > 0
			break
		}
		if !cache.IsQuotaExceeded(err) {
			slog.Error("local store failed", "id", doc.ID, "strategy", strat.name, "error", err)
			return CommitResult{Status: FailedStorage, LocalErr: err}
		}
		slog.Warn("local quota exceeded", "id", doc.ID, "strategy", strat.name)
	}

	if stored == nil {
		return CommitResult{
			Status:   FailedQuota,
			LocalErr: fmt.Errorf("document %s: %w even after stripping payloads", doc.ID, cache.ErrQuotaExceeded),
		}
	}

	rec, err := s.remote.Put(ctx, stored)
	if err != nil {
		slog.Error("remote write failed, saved locally only", "id", doc.ID, "error", err)
		return CommitResult{Status: StoredLocalOnly, Doc: stored, RemoteErr: err}
	}

	s.updateLibraryIndex(ctx, stored.Metadata())

	status := Stored
	if degraded {
		status = StoredDegraded
	}
	return CommitResult{Status: status, Doc: stored, Record: rec}
}

// Update persists a mutation of an already-committed document: local write
// first, then a partial remote field update. A local quota refusal aborts
// the update (the previous local version stays valid); a remote failure is
// reported but keeps the local value.
func (s *TieredStore) Update(ctx context.Context, doc *models.DocumentFile, fields map[string]any) CommitResult {
	if err := s.local.SetDoc(ctx, doc); err != nil {
		if cache.IsQuotaExceeded(err) {
			return CommitResult{Status: FailedQuota, LocalErr: err}
		}
		return CommitResult{Status: FailedStorage, LocalErr: err}
	}

	if err := s.remote.UpdateFields(ctx, doc.ID, fields); err != nil {
		slog.Error("remote update failed, local value kept", "id", doc.ID, "error", err)
		return CommitResult{Status: StoredLocalOnly, Doc: doc, RemoteErr: err}
	}

	s.updateLibraryIndex(ctx, doc.Metadata())
	return CommitResult{Status: Stored, Doc: doc}
}

// Remove deletes the document from both tiers. The remote record goes
// first so a failure there keeps the local mirror intact.
func (s *TieredStore) Remove(ctx context.Context, id string) error {
	if err := s.remote.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove remote record: %w", err)
	}
	if err := s.local.DeleteDoc(ctx, id); err != nil {
		slog.Warn("local cache entry not removed", "id", id, "error", err)
	}
	s.removeFromLibraryIndex(ctx, id)
	return nil
}

// Local exposes the local tier for read paths.
func (s *TieredStore) Local() LocalCache { return s.local }

// updateLibraryIndex maintains the best-effort secondary metadata index.
// Index failures never affect the commit outcome.
func (s *TieredStore) updateLibraryIndex(ctx context.Context, meta models.DocumentMetadata) {
	library, err := s.local.Library(ctx)
	if err != nil {
		slog.Warn("library index unreadable, rebuilding from this entry", "error", err)
		library = nil
	}

	replaced := false
	for i := range library {
		if library[i].ID == meta.ID {
			library[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		library = append([]models.DocumentMetadata{meta}, library...)
	}

	if err := s.local.SetLibrary(ctx, library); err != nil {
		slog.Warn("library index not updated", "error", err)
	}
}

func (s *TieredStore) removeFromLibraryIndex(ctx context.Context, id string) {
	library, err := s.local.Library(ctx)
	if err != nil || len(library) == 0 {
		return
	}
	kept := library[:0]
	for _, m := range library {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if err := s.local.SetLibrary(ctx, kept); err != nil {
		slog.Warn("library index not updated after delete", "error", err)
	}
}
