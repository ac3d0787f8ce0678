package document

import (
	"context"
	"sync"
	"time"

	"github.com/docuview/docuview/internal/cache"
	"github.com/docuview/docuview/internal/enrich"
	"github.com/docuview/docuview/internal/models"
	"github.com/docuview/docuview/internal/queue"
	"github.com/docuview/docuview/internal/storage"
)

// opLog records the order of side effects across fakes.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

// fakeCache implements LocalCache in memory. rejectSet lets a test simulate
// quota refusals per payload.
type fakeCache struct {
	mu        sync.Mutex
	docs      map[string]*models.DocumentFile
	library   []models.DocumentMetadata
	rejectSet func(*models.DocumentFile) error
	log       *opLog
}

func newFakeCache(log *opLog) *fakeCache {
	return &fakeCache{docs: make(map[string]*models.DocumentFile), log: log}
}

func (c *fakeCache) SetDoc(ctx context.Context, doc *models.DocumentFile) error {
	if c.rejectSet != nil {
		if err := c.rejectSet(doc); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *doc
	c.docs[doc.ID] = &cp
	if c.log != nil {
		c.log.add("cache.set " + doc.ID)
	}
	return nil
}

func (c *fakeCache) GetDoc(ctx context.Context, id string) (*models.DocumentFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return nil, cache.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (c *fakeCache) DeleteDoc(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	if c.log != nil {
		c.log.add("cache.delete " + id)
	}
	return nil
}

func (c *fakeCache) Library(ctx context.Context) ([]models.DocumentMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.DocumentMetadata(nil), c.library...), nil
}

func (c *fakeCache) SetLibrary(ctx context.Context, docs []models.DocumentMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.library = append([]models.DocumentMetadata(nil), docs...)
	return nil
}

// fakeCollection implements Collection over a sorted in-memory slice
// (newest first, matching the remote ordering).
type fakeCollection struct {
	mu        sync.Mutex
	records   []Record
	putErr    error
	updateErr error
	deleteErr error
	pageErr   error
	putCalls  int
	log       *opLog
}

func newFakeCollection(log *opLog) *fakeCollection {
	return &fakeCollection{log: log}
}

func (c *fakeCollection) Put(ctx context.Context, doc *models.DocumentFile) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putCalls++
	if c.putErr != nil {
		return nil, c.putErr
	}

	rec := Record{
		DocumentMetadata: doc.DocumentMetadata,
		TextContent:      doc.TextContent,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	replaced := false
	for i := range c.records {
		if c.records[i].ID == doc.ID {
			rec.CreatedAt = c.records[i].CreatedAt
			c.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		c.records = append([]Record{rec}, c.records...)
	}
	if c.log != nil {
		c.log.add("remote.put " + doc.ID)
	}
	return &rec, nil
}

func (c *fakeCollection) Get(ctx context.Context, id string) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			rec := c.records[i]
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (c *fakeCollection) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	if c.log != nil {
		c.log.add("remote.update " + id)
	}
	return nil
}

func (c *fakeCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	for i := range c.records {
		if c.records[i].ID == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			break
		}
	}
	if c.log != nil {
		c.log.add("remote.delete " + id)
	}
	return nil
}

func (c *fakeCollection) Page(ctx context.Context, after *Cursor, limit int) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pageErr != nil {
		return nil, c.pageErr
	}

	start := 0
	if after != nil {
		for i := range c.records {
			if c.records[i].ID == after.ID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(c.records) {
		end = len(c.records)
	}
	if start >= len(c.records) {
		return nil, nil
	}
	return append([]Record(nil), c.records[start:end]...), nil
}

// fakeBlobs implements BlobStore.
type fakeBlobs struct {
	uploadErr  error
	destroyErr error
	uploaded   []string
	destroyed  []string
	log        *opLog
}

func (b *fakeBlobs) Upload(ctx context.Context, filename string, data []byte) (*storage.UploadResult, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	b.uploaded = append(b.uploaded, filename)
	return &storage.UploadResult{
		SecureURL: "https://cdn.example.com/raw/upload/" + filename,
		PublicID:  "blob-" + filename,
	}, nil
}

func (b *fakeBlobs) Destroy(ctx context.Context, publicID string, kind storage.ResourceKind) error {
	if b.log != nil {
		b.log.add("blob.destroy " + publicID)
	}
	if b.destroyErr != nil {
		return b.destroyErr
	}
	b.destroyed = append(b.destroyed, publicID)
	return nil
}

// fakeEnricher implements AIEnricher with canned answers.
type fakeEnricher struct {
	details      enrich.Details
	cover        string
	coverErr     error
	summary      string
	summaryErr   error
	detailCalls  int
	coverCalls   int
	summaryCalls int
}

func (e *fakeEnricher) ExtractDetails(ctx context.Context, text string) enrich.Details {
	e.detailCalls++
	return e.details
}

func (e *fakeEnricher) GenerateCover(ctx context.Context, text string) (string, error) {
	e.coverCalls++
	return e.cover, e.coverErr
}

func (e *fakeEnricher) Summarize(ctx context.Context, text string) (string, error) {
	e.summaryCalls++
	return e.summary, e.summaryErr
}

// fakeQueue implements TaskQueue.
type fakeQueue struct {
	enqueueErr error
	enqueued   []string
}

func (q *fakeQueue) EnqueueDocumentEnrich(payload queue.DocumentEnrichPayload) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, payload.DocumentID)
	return nil
}
