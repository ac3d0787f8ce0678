package document

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docuview/docuview/internal/models"
)

// seedRecords fills the fake collection with n records, newest first.
func seedRecords(c *fakeCollection, n int) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c.records = append(c.records, Record{
			DocumentMetadata: models.DocumentMetadata{
				ID:     fmt.Sprintf("doc-%03d", i),
				Name:   fmt.Sprintf("document %d.txt", i),
				Type:   "text/plain",
				Source: models.DefaultSource,
			},
			TextContent: "content",
			CreatedAt:   base.Add(-time.Duration(i) * time.Minute),
		})
	}
}

func newStartedReader(t *testing.T, coll *fakeCollection) *SyncReader {
	t.Helper()
	r := NewSyncReader(coll, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r
}

func TestFirstPageAndLoadMore(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 2*PageSize+5) // 29

	r := newStartedReader(t, coll)

	if got := len(r.Documents()); got != PageSize {
		t.Fatalf("first page has %d records, want %d", got, PageSize)
	}
	if !r.More() {
		t.Fatal("More() = false after a full first page")
	}
	if r.Documents()[0].ID != "doc-000" {
		t.Errorf("first record = %s, want doc-000 (newest)", r.Documents()[0].ID)
	}

	if err := r.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if got := len(r.Documents()); got != 2*PageSize {
		t.Fatalf("after second page: %d records, want %d", got, 2*PageSize)
	}
	if !r.More() {
		t.Fatal("More() = false while 5 records remain")
	}

	if err := r.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if got := len(r.Documents()); got != 2*PageSize+5 {
		t.Fatalf("after third page: %d records, want %d", got, 2*PageSize+5)
	}
	if r.More() {
		t.Error("More() = true after a short page")
	}

	// Draining is a no-op, not an error.
	if err := r.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore on drained view: %v", err)
	}
	if got := len(r.Documents()); got != 2*PageSize+5 {
		t.Errorf("drained LoadMore changed the window: %d records", got)
	}
}

func TestMoreFalseOnExactPageBoundary(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, PageSize)

	r := newStartedReader(t, coll)
	if !r.More() {
		t.Fatal("More() = false after a full page; only the next load can prove exhaustion")
	}

	if err := r.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if r.More() {
		t.Error("More() = true after an empty page")
	}
}

func TestApplyInsertPrepends(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 3)
	r := newStartedReader(t, coll)

	rec := &Record{
		DocumentMetadata: models.DocumentMetadata{ID: "fresh", Name: "fresh.txt"},
		CreatedAt:        time.Now(),
	}
	r.apply(ChangeEvent{Kind: ChangeInsert, ID: "fresh", Record: rec})

	docs := r.Documents()
	if docs[0].ID != "fresh" {
		t.Errorf("inserted record at position %v, want front", docs[0].ID)
	}
	if len(docs) != 4 {
		t.Errorf("window has %d records, want 4", len(docs))
	}
}

func TestApplyInsertForKnownIDReplaces(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 3)
	r := newStartedReader(t, coll)

	rec := &Record{
		DocumentMetadata: models.DocumentMetadata{ID: "doc-001", Name: "renamed.txt"},
	}
	r.apply(ChangeEvent{Kind: ChangeInsert, ID: "doc-001", Record: rec})

	docs := r.Documents()
	if len(docs) != 3 {
		t.Fatalf("window has %d records, want 3 (replace, not duplicate)", len(docs))
	}
	if docs[1].Name != "renamed.txt" {
		t.Errorf("record not replaced in place: %q", docs[1].Name)
	}
}

func TestApplyUpdateIgnoresUnloaded(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 3)
	r := newStartedReader(t, coll)

	rec := &Record{DocumentMetadata: models.DocumentMetadata{ID: "unloaded", Name: "x"}}
	r.apply(ChangeEvent{Kind: ChangeUpdate, ID: "unloaded", Record: rec})

	if got := len(r.Documents()); got != 3 {
		t.Errorf("update for an unloaded record grew the window to %d", got)
	}
}

func TestApplyDelete(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 3)
	r := newStartedReader(t, coll)

	r.apply(ChangeEvent{Kind: ChangeDelete, ID: "doc-001"})

	for _, rec := range r.Documents() {
		if rec.ID == "doc-001" {
			t.Fatal("deleted record still in the window")
		}
	}
	// Deleting something unknown is harmless.
	r.apply(ChangeEvent{Kind: ChangeDelete, ID: "ghost"})
	if got := len(r.Documents()); got != 2 {
		t.Errorf("window has %d records, want 2", got)
	}
}

func TestLoadMoreSkipsLiveDuplicates(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, PageSize+3)
	r := newStartedReader(t, coll)

	// A live insert delivers a record that also sits on the next page.
	dup := coll.records[PageSize]
	r.apply(ChangeEvent{Kind: ChangeInsert, ID: dup.ID, Record: &dup})

	if err := r.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	seen := map[string]int{}
	for _, rec := range r.Documents() {
		seen[rec.ID]++
	}
	if seen[dup.ID] != 1 {
		t.Errorf("record %s appears %d times", dup.ID, seen[dup.ID])
	}
}

func TestFilter(t *testing.T) {
	coll := newFakeCollection(nil)
	author := "Jane Smith"
	edition := "May 2025"
	coll.records = []Record{
		{DocumentMetadata: models.DocumentMetadata{
			ID: "1", Name: "annual report.pdf", Source: models.DefaultSource,
		}},
		{DocumentMetadata: models.DocumentMetadata{
			ID: "2", Name: "essay.txt", Author: &author, Source: "The Atlantic",
		}},
		{DocumentMetadata: models.DocumentMetadata{
			ID: "3", Name: "journal.pdf", Edition: &edition, Source: models.DefaultSource,
		}},
	}
	r := newStartedReader(t, coll)

	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"report", []string{"1"}},
		{"SMITH", []string{"2"}},
		{"atlantic", []string{"2"}},
		{"may 2025", []string{"3"}},
		// The default intake label matches no search: it names no origin.
		{"file upload", nil},
		{"upload", nil},
		{"nothing here", nil},
	}

	for _, tt := range tests {
		t.Run("term="+tt.term, func(t *testing.T) {
			got := r.Filter(tt.term)
			var ids []string
			for _, rec := range got {
				ids = append(ids, rec.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Filter(%q) = %v, want %v", tt.term, ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("Filter(%q) = %v, want %v", tt.term, ids, tt.want)
				}
			}
		})
	}
}

func TestFeatured(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 8)
	r := newStartedReader(t, coll)

	featured := r.Featured()
	if len(featured) != FeaturedCount {
		t.Fatalf("featured has %d records, want %d", len(featured), FeaturedCount)
	}
	if featured[0].ID != "doc-000" {
		t.Errorf("featured does not start with the newest record: %s", featured[0].ID)
	}
}

func TestDocumentsReturnsCopy(t *testing.T) {
	coll := newFakeCollection(nil)
	seedRecords(coll, 2)
	r := newStartedReader(t, coll)

	docs := r.Documents()
	docs[0].Name = "mutated"

	if r.Documents()[0].Name == "mutated" {
		t.Error("caller mutation leaked into the reader's window")
	}
}
