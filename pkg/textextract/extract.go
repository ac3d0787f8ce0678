package textextract

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

type ExtractedText struct {
	Content string
	Pages   int
}

// Extract converts raw bytes into plain text based on the declared MIME type
// or file extension. Unsupported types return an error; the caller decides
// what stands in for the content.
func Extract(data []byte, fileType string) (*ExtractedText, error) {
	switch normalize(fileType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractWord(data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	case "doc":
		return extractWord(data, "application/msword")
	case "txt":
		return extractTXT(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".doc", ".docx", ".txt"}
}

func normalize(fileType string) string {
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		return "pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case ".doc", "doc", "application/msword":
		return "doc"
	case ".txt", "txt", "text/plain":
		return "txt"
	default:
		return ""
	}
}

// extractPDF walks pages in order, joining the text runs of each page with a
// single space and pages with a newline.
func extractPDF(data []byte) (*ExtractedText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var pages []string
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		runs := make([]string, 0, len(content.Text))
		for _, t := range content.Text {
			if t.S == "" {
				continue
			}
			runs = append(runs, t.S)
		}
		pages = append(pages, strings.Join(runs, " "))
	}

	return &ExtractedText{
		Content: strings.TrimSpace(strings.Join(pages, "\n")),
		Pages:   numPages,
	}, nil
}

func extractWord(data []byte, mimeType string) (*ExtractedText, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
	if err != nil {
		return nil, fmt.Errorf("convert word document: %w", err)
	}
	return &ExtractedText{
		Content: strings.TrimSpace(res.Body),
		Pages:   1,
	}, nil
}

func extractTXT(data []byte) (*ExtractedText, error) {
	return &ExtractedText{
		Content: string(data),
		Pages:   1,
	}, nil
}
