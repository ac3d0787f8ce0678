package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docuview/docuview/internal/document"
)

type DocumentHandler struct {
	svc    *document.Service
	reader *document.SyncReader
	coll   document.Collection
}

func NewDocumentHandler(svc *document.Service, reader *document.SyncReader, coll document.Collection) *DocumentHandler {
	return &DocumentHandler{svc: svc, reader: reader, coll: coll}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(document.MaxFileSize + 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, document.MaxFileSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read file"})
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	result, err := h.svc.Intake(r.Context(), name, header.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, document.ErrTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file exceeds the 5MB limit"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document":  result.Doc,
		"status":    result.Status,
		"enriching": result.Enriched,
		"notices":   result.Notices,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs := h.reader.Documents()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
		"more":      h.reader.More(),
	})
}

func (h *DocumentHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.LoadMore(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.List(w, r)
}

func (h *DocumentHandler) Featured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": h.reader.Featured()})
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	docs := h.reader.Filter(term)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.coll.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]interface{}{"status": "deleted"}
	if result.Orphaned {
		resp["orphaned_asset_id"] = result.AssetID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := h.svc.Summarize(r.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
