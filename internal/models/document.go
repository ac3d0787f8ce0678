package models

// DefaultSource is the origin label assigned at intake. Detail enrichment
// only replaces it when the AI identifies a real publication name.
const DefaultSource = "File Upload"

// DocumentMetadata is the lightweight record listed in the library view.
// Optional fields are pointers so that "absent" survives the round trip to
// the remote collection, which stores them as NULL.
type DocumentMetadata struct {
	ID                string  `json:"id" db:"id"`
	Name              string  `json:"name" db:"name"`
	Type              string  `json:"type" db:"type"`               // MIME type
	UploadedAt        string  `json:"uploaded_at" db:"uploaded_at"` // ISO-8601
	Source            string  `json:"source" db:"source"`
	Summary           *string `json:"summary,omitempty" db:"summary"`
	CoverImageDataURI *string `json:"cover_image_data_uri,omitempty" db:"cover_image_data_uri"`
	Author            *string `json:"author,omitempty" db:"author"`
	Edition           *string `json:"edition,omitempty" db:"edition"`
	FileURL           *string `json:"file_url,omitempty" db:"file_url"`
	AssetID           *string `json:"asset_id,omitempty" db:"asset_id"`
}

// DocumentFile is the full working document owned by the ingestion pipeline
// from intake until the first successful remote write. At most one of
// FileURL and FileDataURI is authoritative at any time: a successful blob
// upload clears the inline copy.
type DocumentFile struct {
	DocumentMetadata
	TextContent string  `json:"text_content"`
	FileDataURI *string `json:"file_data_uri,omitempty"`

	// OriginalFile holds the raw uploaded bytes for blob upload or inline
	// encoding. Transient, never serialized.
	OriginalFile []byte `json:"-"`
}

// Metadata returns the listing view of a full document.
func (d *DocumentFile) Metadata() DocumentMetadata {
	return d.DocumentMetadata
}

// StrPtr returns a pointer to s, or nil when s is empty. Used when mapping
// AI output and nullable columns onto the optional metadata fields.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
