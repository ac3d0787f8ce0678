package document

import "strings"

// whitelisted types are the declared MIME types whose extracted text is
// trusted even when it happens to mention placeholders.
var textualTypes = map[string]bool{
	"text/plain":       true,
	"text/html":        true,
	"application/json": true,
	"application/xml":  true,
	"text/csv":         true,
}

const (
	phraseDownloadable    = "(this is a placeholder text. the original file can be downloaded.)"
	phraseNeedsParsing    = "full parsing requires specific libraries."
	phrasePlaceholderText = "placeholder text"
)

// IsPlaceholder reports whether extracted text is a degraded stand-in
// rather than real content. It is a pure function over its inputs and gates
// every AI call: enrichment is skipped for placeholder text. Matching is
// case-insensitive and first match wins.
func IsPlaceholder(text, name, typ string) bool {
	if text == "" || name == "" {
		return true
	}

	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(name)
	lowerType := strings.ToLower(typ)

	// Extraction-failure prefixes produced by the Extractor.
	if strings.HasPrefix(lowerText, "could not extract text from "+lowerName) {
		return true
	}
	if strings.HasPrefix(lowerText, "could not extract text from pdf "+lowerName) {
		return true
	}
	if strings.HasPrefix(lowerText, "no text could be extracted from "+lowerName) {
		return true
	}
	if strings.HasPrefix(lowerText, "pdf content for "+lowerName) {
		return true
	}
	if strings.HasPrefix(lowerText, "docx content for "+lowerName) &&
		strings.Contains(lowerText, phraseDownloadable) {
		return true
	}
	if strings.HasPrefix(lowerText, "content of "+lowerName) &&
		strings.Contains(lowerText, phraseNeedsParsing) {
		return true
	}

	// Generic placeholder phrases confirm a match only when the text also
	// carries one of the known prefixes; real content may quote them.
	if strings.Contains(lowerText, phraseDownloadable) || strings.Contains(lowerText, phraseNeedsParsing) {
		for _, prefix := range []string{
			"could not extract text from ",
			"pdf content for ",
			"docx content for ",
			"content of ",
		} {
			if strings.HasPrefix(lowerText, prefix+lowerName) {
				return true
			}
		}
	}

	// Non-textual declared type mentioning placeholder text.
	if lowerType != "" && !textualTypes[lowerType] && strings.Contains(lowerText, phrasePlaceholderText) {
		return true
	}

	return false
}
