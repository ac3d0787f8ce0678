package queue

const (
	TypeDocumentEnrich    = "document:enrich"
	TypeDocumentSummarize = "document:summarize"
)

type DocumentEnrichPayload struct {
	DocumentID string `json:"document_id"`
}

type DocumentSummarizePayload struct {
	DocumentID string `json:"document_id"`
}
