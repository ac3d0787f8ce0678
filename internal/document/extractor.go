package document

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuview/docuview/pkg/textextract"
)

// MaxFileSize is the hard intake ceiling. Files above it are rejected
// before any extraction work begins.
const MaxFileSize = 5 * 1024 * 1024

// ErrTooLarge rejects intake of files above MaxFileSize.
var ErrTooLarge = errors.New("document: file exceeds maximum size")

// Extractor converts raw file bytes into text. It never fails: every
// extraction problem becomes a deterministic placeholder string carrying
// the file name, so the rest of the pipeline always has text to work with
// and the original bytes stay available for upload or inline storage.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(name, mimeType string, data []byte) string {
	switch {
	case isType(name, mimeType, ".txt", "text/plain"):
		return string(data)

	case isType(name, mimeType, ".pdf", "application/pdf"):
		res, err := textextract.Extract(data, "pdf")
		if err != nil {
			slog.Warn("pdf extraction failed", "name", name, "error", err)
			return fmt.Sprintf("Could not extract text from PDF %s. Error: %s", name, err.Error())
		}
		if res.Content == "" {
			return fmt.Sprintf("No text could be extracted from %s. It might be an image-only PDF.", name)
		}
		return res.Content

	case isType(name, mimeType, ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"),
		isType(name, mimeType, ".doc", "application/msword"):
		fileType := "docx"
		if isType(name, mimeType, ".doc", "application/msword") && !strings.HasSuffix(strings.ToLower(name), ".docx") {
			fileType = "doc"
		}
		res, err := textextract.Extract(data, fileType)
		if err != nil || res.Content == "" {
			slog.Warn("word extraction failed", "name", name, "error", err)
			return fmt.Sprintf("Could not extract text from %s. (This is a placeholder text. The original file can be downloaded.)", name)
		}
		return res.Content

	default:
		return fmt.Sprintf("Content of %s (type: %s). Full parsing requires specific libraries.", name, mimeType)
	}
}

func isType(name, mimeType, ext, mime string) bool {
	if strings.EqualFold(mimeType, mime) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ext)
}
