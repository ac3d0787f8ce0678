package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docuview/docuview/internal/enrich"
	"github.com/docuview/docuview/internal/models"
)

type serviceEnv struct {
	log      *opLog
	local    *fakeCache
	remote   *fakeCollection
	blobs    *fakeBlobs
	enricher *fakeEnricher
	tasks    *fakeQueue
	svc      *Service
}

func newServiceEnv() *serviceEnv {
	log := &opLog{}
	env := &serviceEnv{
		log:      log,
		local:    newFakeCache(log),
		remote:   newFakeCollection(log),
		blobs:    &fakeBlobs{log: log},
		enricher: &fakeEnricher{},
		tasks:    &fakeQueue{},
	}
	store := NewTieredStore(env.local, env.remote)
	env.svc = NewService(store, env.blobs, env.enricher, env.tasks)
	return env
}

func TestIntakeTextFile(t *testing.T) {
	env := newServiceEnv()

	content := "A long enough piece of genuine text for enrichment."
	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain", []byte(content))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	if res.Status != Stored {
		t.Errorf("status = %s, want %s", res.Status, Stored)
	}
	if res.Doc.TextContent != content {
		t.Errorf("text altered: %q", res.Doc.TextContent)
	}
	if res.Doc.Source != models.DefaultSource {
		t.Errorf("source = %q, want %q", res.Doc.Source, models.DefaultSource)
	}
	if res.Doc.FileURL == nil || res.Doc.FileDataURI != nil {
		t.Error("uploaded file should ride as a URL, not inline")
	}
	if !res.Enriched || len(env.tasks.enqueued) != 1 {
		t.Error("enrichment not scheduled for real text")
	}
}

func TestIntakeRejectsOversizedFile(t *testing.T) {
	env := newServiceEnv()

	data := make([]byte, MaxFileSize+1)
	_, err := env.svc.Intake(context.Background(), "big.txt", "text/plain", data)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if env.remote.putCalls != 0 || len(env.local.docs) != 0 {
		t.Error("oversized file reached storage")
	}
}

func TestIntakeProtectedWordDocument(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "locked.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		[]byte("opaque protected bytes"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	if !strings.HasPrefix(res.Doc.TextContent, "Could not extract text from locked.docx.") {
		t.Errorf("expected word placeholder, got %q", res.Doc.TextContent)
	}
	// Placeholder text still enters the library but never reaches the AI.
	if res.Status != Stored {
		t.Errorf("status = %s, want %s", res.Status, Stored)
	}
	if res.Enriched || len(env.tasks.enqueued) != 0 {
		t.Error("placeholder text scheduled for enrichment")
	}
	if res.Doc.FileURL == nil {
		t.Error("original file not uploaded for later download")
	}
}

func TestIntakeUploadFailureFallsBackInline(t *testing.T) {
	env := newServiceEnv()
	env.blobs.uploadErr = errors.New("storage unreachable")

	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain",
		[]byte("real content that is long enough to enrich"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	if res.Doc.FileURL != nil {
		t.Error("FileURL set despite upload failure")
	}
	if res.Doc.FileDataURI == nil || !strings.HasPrefix(*res.Doc.FileDataURI, "data:text/plain;base64,") {
		t.Errorf("inline fallback missing or malformed: %v", res.Doc.FileDataURI)
	}
	if len(res.Notices) == 0 {
		t.Error("upload failure produced no notice")
	}
	if res.Status != Stored {
		t.Errorf("status = %s: upload failure must not fail the intake", res.Status)
	}
}

func TestIntakeWithoutBlobStorage(t *testing.T) {
	env := newServiceEnv()
	store := NewTieredStore(env.local, env.remote)
	svc := NewService(store, nil, env.enricher, env.tasks)

	res, err := svc.Intake(context.Background(), "note.txt", "text/plain", []byte("hello there friend"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}
	if res.Doc.FileDataURI == nil {
		t.Error("no inline copy without blob storage")
	}
}

func TestIntakeRemoteFailureReportsLocalOnly(t *testing.T) {
	env := newServiceEnv()
	env.remote.putErr = errors.New("upstream down")

	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain",
		[]byte("real content that is long enough"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}
	if res.Status != StoredLocalOnly {
		t.Fatalf("status = %s, want %s", res.Status, StoredLocalOnly)
	}
	found := false
	for _, n := range res.Notices {
		if strings.Contains(n, "locally") {
			found = true
		}
	}
	if !found {
		t.Errorf("no saved-locally notice in %v", res.Notices)
	}
}

func TestIntakeShortTextSkipsEnrichment(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "tiny.txt", "text/plain", []byte("hi"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}
	if res.Enriched || len(env.tasks.enqueued) != 0 {
		t.Error("two characters of text scheduled for enrichment")
	}
}

func TestEnrichPersistsDetailsBeforeCover(t *testing.T) {
	env := newServiceEnv()

	content := "By Jane Smith. The Atlantic, May 2025. A long article about things."
	res, err := env.svc.Intake(context.Background(), "essay.txt", "text/plain", []byte(content))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	author := "Jane Smith"
	source := "The Atlantic"
	env.enricher.details = enrich.Details{Author: &author, Source: &source}
	env.enricher.cover = "data:image/png;base64,QUJD"

	if err := env.svc.Enrich(context.Background(), res.Doc.ID); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	doc, err := env.local.GetDoc(context.Background(), res.Doc.ID)
	if err != nil {
		t.Fatalf("local read: %v", err)
	}
	if doc.Author == nil || *doc.Author != "Jane Smith" {
		t.Errorf("author = %v", doc.Author)
	}
	if doc.Source != "The Atlantic" {
		t.Errorf("source = %q, want The Atlantic", doc.Source)
	}
	if doc.CoverImageDataURI == nil {
		t.Error("cover not persisted")
	}

	// Two separate remote updates: details first, then the cover.
	var updates int
	for _, op := range env.log.list() {
		if strings.HasPrefix(op, "remote.update") {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("remote updates = %d, want 2 (details then cover)", updates)
	}
}

func TestEnrichCoverFailureKeepsDetails(t *testing.T) {
	env := newServiceEnv()

	content := "By Jane Smith. Enough text to be worth enriching fully."
	res, err := env.svc.Intake(context.Background(), "essay.txt", "text/plain", []byte(content))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	author := "Jane Smith"
	env.enricher.details = enrich.Details{Author: &author}
	env.enricher.coverErr = errors.New("image model unavailable")

	if err := env.svc.Enrich(context.Background(), res.Doc.ID); err != nil {
		t.Fatalf("Enrich must be fail-soft, got %v", err)
	}

	doc, _ := env.local.GetDoc(context.Background(), res.Doc.ID)
	if doc.Author == nil {
		t.Error("details lost when the cover step failed")
	}
	if doc.CoverImageDataURI != nil {
		t.Error("cover set despite generation failure")
	}
}

func TestEnrichSkipsPlaceholderText(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "photo.heic", "image/heic", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	if err := env.svc.Enrich(context.Background(), res.Doc.ID); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if env.enricher.detailCalls != 0 || env.enricher.coverCalls != 0 {
		t.Error("AI called for placeholder text")
	}
}

func TestSummarize(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain",
		[]byte("a perfectly ordinary document about gardening"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	env.enricher.summary = "It is about gardening."
	summary, err := env.svc.Summarize(context.Background(), res.Doc.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "It is about gardening." {
		t.Errorf("summary = %q", summary)
	}

	doc, _ := env.local.GetDoc(context.Background(), res.Doc.ID)
	if doc.Summary == nil || *doc.Summary != summary {
		t.Error("summary not persisted")
	}
}

func TestDeleteRemovesRecordThenBlob(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain",
		[]byte("content worth keeping around for a while"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}
	id := res.Doc.ID

	del, err := env.svc.Delete(context.Background(), id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if del.Orphaned {
		t.Error("clean delete reported an orphan")
	}

	// Record deletion must precede blob deletion.
	ops := env.log.list()
	recordIdx, blobIdx := -1, -1
	for i, op := range ops {
		if op == "remote.delete "+id {
			recordIdx = i
		}
		if strings.HasPrefix(op, "blob.destroy") {
			blobIdx = i
		}
	}
	if recordIdx == -1 || blobIdx == -1 {
		t.Fatalf("expected record and blob deletes in %v", ops)
	}
	if blobIdx < recordIdx {
		t.Error("blob deleted before the library record")
	}

	if _, err := env.remote.Get(context.Background(), id); !errors.Is(err, ErrRecordNotFound) {
		t.Error("record still present after delete")
	}
}

func TestDeleteReportsOrphanedBlob(t *testing.T) {
	env := newServiceEnv()

	res, err := env.svc.Intake(context.Background(), "note.txt", "text/plain",
		[]byte("content worth keeping around for a while"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	env.blobs.destroyErr = errors.New("storage unreachable")
	del, err := env.svc.Delete(context.Background(), res.Doc.ID)
	if err != nil {
		t.Fatalf("Delete must succeed even when the blob survives: %v", err)
	}
	if !del.Orphaned {
		t.Error("orphaned blob not reported")
	}
	if del.AssetID == "" {
		t.Error("orphan report missing the asset id")
	}
}

func TestDeleteWithoutAsset(t *testing.T) {
	env := newServiceEnv()
	store := NewTieredStore(env.local, env.remote)
	svc := NewService(store, nil, env.enricher, env.tasks)

	res, err := svc.Intake(context.Background(), "note.txt", "text/plain", []byte("inline only content"))
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	del, err := svc.Delete(context.Background(), res.Doc.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if del.Orphaned {
		t.Error("no asset existed, nothing can be orphaned")
	}
}
