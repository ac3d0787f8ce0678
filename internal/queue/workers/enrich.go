package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/docuview/docuview/internal/document"
	"github.com/docuview/docuview/internal/queue"
)

// EnrichWorker runs the deferred AI steps for a freshly ingested document.
type EnrichWorker struct {
	docSvc *document.Service
}

func NewEnrichWorker(docSvc *document.Service) *EnrichWorker {
	return &EnrichWorker{docSvc: docSvc}
}

func (w *EnrichWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentEnrichPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	slog.Info("enriching document", "document_id", payload.DocumentID)

	if err := w.docSvc.Enrich(ctx, payload.DocumentID); err != nil {
		return fmt.Errorf("enrich document: %w", err)
	}

	slog.Info("document enriched", "document_id", payload.DocumentID)
	return nil
}

// SummarizeWorker generates a summary in the background.
type SummarizeWorker struct {
	docSvc *document.Service
}

func NewSummarizeWorker(docSvc *document.Service) *SummarizeWorker {
	return &SummarizeWorker{docSvc: docSvc}
}

func (w *SummarizeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentSummarizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	slog.Info("summarizing document", "document_id", payload.DocumentID)

	if _, err := w.docSvc.Summarize(ctx, payload.DocumentID); err != nil {
		return fmt.Errorf("summarize document: %w", err)
	}
	return nil
}
