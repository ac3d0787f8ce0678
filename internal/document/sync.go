package document

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/docuview/docuview/internal/models"
)

// FeaturedCount is how many of the newest documents the featured shelf shows.
const FeaturedCount = 5

// SyncReader maintains a live, incrementally-loaded view of the collection:
// the newest page up front, older pages on demand, and feed events applied
// to whatever is loaded. All reads return copies; the internal slice is
// never shared.
type SyncReader struct {
	coll Collection
	feed Feed

	mu      sync.Mutex
	records []Record
	more    bool
	loading bool
	cancel  func()
}

func NewSyncReader(coll Collection, feed Feed) *SyncReader {
	return &SyncReader{coll: coll, feed: feed}
}

// Start loads the first page and begins applying change events. The view
// stays live until Stop is called or ctx is cancelled.
func (r *SyncReader) Start(ctx context.Context) error {
	page, err := r.coll.Page(ctx, nil, PageSize)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.records = page
	r.more = len(page) == PageSize
	r.mu.Unlock()

	if r.feed == nil {
		return nil
	}

	events, cancel, err := r.feed.Subscribe(ctx)
	if err != nil {
		slog.Warn("live updates unavailable, view is static", "error", err)
		return nil
	}
	r.cancel = cancel

	go func() {
		for ev := range events {
			r.apply(ev)
		}
	}()
	return nil
}

// Stop ends the live subscription. The loaded view remains readable.
func (r *SyncReader) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// apply folds one change event into the loaded window. Inserts for unknown
// ids are prepended (they are the newest records); updates only touch
// records already in the window, so the pagination cursor stays valid.
func (r *SyncReader) apply(ev ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case ChangeInsert, ChangeUpdate:
		if ev.Record == nil {
			slog.Warn("change event without record, dropping", "id", ev.ID, "kind", ev.Kind)
			return
		}
		for i := range r.records {
			if r.records[i].ID == ev.ID {
				r.records[i] = *ev.Record
				return
			}
		}
		if ev.Kind == ChangeInsert {
			r.records = append([]Record{*ev.Record}, r.records...)
		}
	case ChangeDelete:
		for i := range r.records {
			if r.records[i].ID == ev.ID {
				r.records = append(r.records[:i], r.records[i+1:]...)
				return
			}
		}
	}
}

// Documents returns a copy of the loaded window, newest first.
func (r *SyncReader) Documents() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// More reports whether an older page may exist. It is only true when the
// last load returned a full page.
func (r *SyncReader) More() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.more
}

// LoadMore appends the next older page. Concurrent calls collapse into one
// load; calling with nothing left is a no-op.
func (r *SyncReader) LoadMore(ctx context.Context) error {
	r.mu.Lock()
	if !r.more || r.loading || len(r.records) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.loading = true
	last := r.records[len(r.records)-1]
	r.mu.Unlock()

	cursor := &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	page, err := r.coll.Page(ctx, cursor, PageSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if err != nil {
		return err
	}

	// A live insert may already hold some of these ids.
	seen := make(map[string]bool, len(r.records))
	for _, rec := range r.records {
		seen[rec.ID] = true
	}
	for _, rec := range page {
		if !seen[rec.ID] {
			r.records = append(r.records, rec)
		}
	}
	r.more = len(page) == PageSize
	return nil
}

// Featured returns the newest documents for the featured shelf.
func (r *SyncReader) Featured() []Record {
	docs := r.Documents()
	if len(docs) > FeaturedCount {
		docs = docs[:FeaturedCount]
	}
	return docs
}

// Filter returns the loaded records whose name, author, edition, or source
// contains the term, case-insensitively. The default intake source label is
// not searchable: it carries no information about the document.
func (r *SyncReader) Filter(term string) []Record {
	docs := r.Documents()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return docs
	}

	var out []Record
	for _, rec := range docs {
		if matchesTerm(rec, term) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesTerm(rec Record, term string) bool {
	if strings.Contains(strings.ToLower(rec.Name), term) {
		return true
	}
	if containsFold(rec.Author, term) || containsFold(rec.Edition, term) {
		return true
	}
	if rec.Source != "" && rec.Source != models.DefaultSource &&
		strings.Contains(strings.ToLower(rec.Source), term) {
		return true
	}
	return false
}

func containsFold(s *string, term string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), term)
}
