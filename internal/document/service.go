package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuview/docuview/internal/cache"
	"github.com/docuview/docuview/internal/enrich"
	"github.com/docuview/docuview/internal/models"
	"github.com/docuview/docuview/internal/queue"
	"github.com/docuview/docuview/internal/storage"
)

// minEnrichTextLen is the floor below which extracted text is too short to
// be worth an AI call at all.
const minEnrichTextLen = 10

// BlobStore uploads original files and deletes them later. Absent (nil)
// blob storage degrades uploads to inline storage.
type BlobStore interface {
	Upload(ctx context.Context, filename string, data []byte) (*storage.UploadResult, error)
	Destroy(ctx context.Context, publicID string, kind storage.ResourceKind) error
}

// AIEnricher is the slice of the enrichment surface the pipeline uses.
type AIEnricher interface {
	ExtractDetails(ctx context.Context, text string) enrich.Details
	GenerateCover(ctx context.Context, text string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// TaskQueue schedules background enrichment.
type TaskQueue interface {
	EnqueueDocumentEnrich(payload queue.DocumentEnrichPayload) error
}

// IntakeResult is what intake reports back to the caller: the commit
// outcome, whether enrichment was scheduled, and user-facing notices about
// anything that degraded along the way.
type IntakeResult struct {
	Doc      *models.DocumentFile
	Status   CommitStatus
	Enriched bool
	Notices  []string
}

// DeleteResult reports a completed delete. Orphaned is set when the library
// record is gone but the stored blob could not be removed.
type DeleteResult struct {
	Orphaned bool
	AssetID  string
}

// Service runs the ingestion pipeline: extraction, blob upload, tiered
// persistence, and enrichment scheduling.
type Service struct {
	extractor *Extractor
	store     *TieredStore
	blobs     BlobStore
	enricher  AIEnricher
	tasks     TaskQueue
}

func NewService(store *TieredStore, blobs BlobStore, enricher AIEnricher, tasks TaskQueue) *Service {
	return &Service{
		extractor: NewExtractor(),
		store:     store,
		blobs:     blobs,
		enricher:  enricher,
		tasks:     tasks,
	}
}

// Intake runs a new upload through the pipeline. Extraction never fails;
// only an oversized file or a storage failure aborts. Blob upload is
// best-effort with inline fallback, and enrichment is scheduled in the
// background so the caller gets the committed document immediately.
func (s *Service) Intake(ctx context.Context, name, mimeType string, data []byte) (*IntakeResult, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", name, len(data), ErrTooLarge)
	}

	text := s.extractor.Extract(name, mimeType, data)

	doc := &models.DocumentFile{
		DocumentMetadata: models.DocumentMetadata{
			ID:         uuid.NewString(),
			Name:       name,
			Type:       mimeType,
			UploadedAt: time.Now().UTC().Format(time.RFC3339),
			Source:     models.DefaultSource,
		},
		TextContent:  text,
		OriginalFile: data,
	}

	var notices []string

	// The original file rides along as a blob URL when upload succeeds, or
	// inline as a data URI when it does not. Never both.
	if s.blobs != nil {
		res, err := s.blobs.Upload(ctx, name, data)
		if err != nil {
			slog.Warn("blob upload failed, storing file inline", "name", name, "error", err)
			notices = append(notices, "File upload failed; the original file is stored inline.")
			doc.FileDataURI = models.StrPtr(dataURI(mimeType, data))
		} else {
			doc.FileURL = models.StrPtr(res.SecureURL)
			doc.AssetID = models.StrPtr(res.PublicID)
		}
	} else {
		doc.FileDataURI = models.StrPtr(dataURI(mimeType, data))
	}

	commit := s.store.Write(ctx, doc)
	switch commit.Status {
	case FailedQuota:
		return nil, fmt.Errorf("store %s: %w", name, commit.LocalErr)
	case FailedStorage:
		return nil, fmt.Errorf("store %s: %w", name, commit.LocalErr)
	case StoredLocalOnly:
		notices = append(notices, "Document saved locally but could not be shared.")
	case StoredDegraded:
		notices = append(notices, "Storage is full; the document was saved without its file copy and cover.")
	}

	result := &IntakeResult{Doc: commit.Doc, Status: commit.Status, Notices: notices}

	if s.shouldEnrich(commit.Doc) {
		if err := s.tasks.EnqueueDocumentEnrich(queue.DocumentEnrichPayload{DocumentID: doc.ID}); err != nil {
			slog.Warn("enrichment not scheduled", "id", doc.ID, "error", err)
			result.Notices = append(result.Notices, "AI enrichment could not be scheduled.")
		} else {
			result.Enriched = true
		}
	}

	return result, nil
}

// shouldEnrich gates every AI call: real text of useful length, with an
// enricher and a queue actually wired.
func (s *Service) shouldEnrich(doc *models.DocumentFile) bool {
	if s.enricher == nil || s.tasks == nil {
		return false
	}
	if len(strings.TrimSpace(doc.TextContent)) < minEnrichTextLen {
		return false
	}
	return !IsPlaceholder(doc.TextContent, doc.Name, doc.Type)
}

// Enrich runs the deferred AI steps for a committed document: details
// first, persisted on their own, then the cover image, persisted again.
// Partial progress survives a failure of the later step. AI failures are
// soft; only loading the document errors out.
func (s *Service) Enrich(ctx context.Context, id string) error {
	if s.enricher == nil {
		return nil
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", id, err)
	}
	if IsPlaceholder(doc.TextContent, doc.Name, doc.Type) ||
		len(strings.TrimSpace(doc.TextContent)) < minEnrichTextLen {
		return nil
	}

	details := s.enricher.ExtractDetails(ctx, doc.TextContent)
	if details.Author != nil || details.Source != nil || details.Edition != nil {
		doc.Author = details.Author
		doc.Edition = details.Edition
		if details.Source != nil {
			doc.Source = *details.Source
		}
		res := s.store.Update(ctx, doc, map[string]any{
			"author":  doc.Author,
			"source":  models.StrPtr(doc.Source),
			"edition": doc.Edition,
		})
		if !res.Status.Committed() {
			slog.Warn("details not persisted", "id", id, "status", res.Status, "error", res.LocalErr)
		}
	}

	if doc.CoverImageDataURI == nil && len(doc.TextContent) >= enrich.MinDetailTextLen {
		cover, err := s.enricher.GenerateCover(ctx, doc.TextContent)
		if err != nil {
			slog.Warn("cover generation failed", "id", id, "error", err)
			return nil
		}
		doc.CoverImageDataURI = models.StrPtr(cover)
		res := s.store.Update(ctx, doc, map[string]any{
			"cover_image_data_uri": doc.CoverImageDataURI,
		})
		if res.Status == FailedQuota {
			// The cover does not fit locally. Keep the pre-cover version.
			slog.Warn("cover dropped, local quota exceeded", "id", id)
			doc.CoverImageDataURI = nil
			if err := s.store.Local().SetDoc(ctx, doc); err != nil {
				slog.Warn("pre-cover version not restored", "id", id, "error", err)
			}
		}
	}

	return nil
}

// Summarize generates and persists a summary of the document text.
func (s *Service) Summarize(ctx context.Context, id string) (string, error) {
	if s.enricher == nil {
		return "", fmt.Errorf("summarize %s: AI not configured", id)
	}

	doc, err := s.load(ctx, id)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", id, err)
	}

	summary, err := s.enricher.Summarize(ctx, doc.TextContent)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", id, err)
	}

	doc.Summary = models.StrPtr(summary)
	res := s.store.Update(ctx, doc, map[string]any{"summary": doc.Summary})
	if !res.Status.Committed() {
		return "", fmt.Errorf("summarize %s: persist: %v", id, res.LocalErr)
	}
	return summary, nil
}

// Delete removes a document everywhere: the shared record first, then the
// local mirror, then the stored blob. A blob that cannot be deleted leaves
// an orphan, which is reported but does not undo the delete.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	doc, err := s.load(ctx, id)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("delete %s: %w", id, err)
	}

	if err := s.store.Remove(ctx, id); err != nil {
		return nil, fmt.Errorf("delete %s: %w", id, err)
	}

	result := &DeleteResult{}
	if doc != nil && doc.AssetID != nil && s.blobs != nil {
		kind := storage.ResourceKindFor(doc.Type, deref(doc.FileURL))
		if err := s.blobs.Destroy(ctx, *doc.AssetID, kind); err != nil {
			slog.Error("stored file not deleted, asset orphaned", "id", id, "asset_id", *doc.AssetID, "error", err)
			result.Orphaned = true
			result.AssetID = *doc.AssetID
		}
	}
	return result, nil
}

// load reads the working document, preferring the local mirror and falling
// back to the shared record (which lacks the inline file copy).
func (s *Service) load(ctx context.Context, id string) (*models.DocumentFile, error) {
	doc, err := s.store.Local().GetDoc(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("local read failed, falling back to remote", "id", id, "error", err)
	}

	rec, err := s.remote().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.DocumentFile{
		DocumentMetadata: rec.DocumentMetadata,
		TextContent:      rec.TextContent,
	}, nil
}

func (s *Service) remote() Collection { return s.store.remote }

func dataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
