package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docuview/docuview/internal/config"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// ResourceKind selects the Cloudinary endpoint family an asset lives under.
type ResourceKind string

const (
	KindImage ResourceKind = "image"
	KindVideo ResourceKind = "video"
	KindRaw   ResourceKind = "raw"
)

// UploadResult identifies a stored blob: the public URL for serving and the
// asset id needed to delete it later.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Client talks to the Cloudinary upload API. Uploads are unsigned (preset
// based); destroys are signed with the API key pair.
type Client struct {
	cloudName    string
	uploadPreset string
	apiKey       string
	apiSecret    string
	baseURL      string
	httpClient   *http.Client
}

func NewClient(cfg config.StorageConfig) *Client {
	return &Client{
		cloudName:    cfg.CloudName,
		uploadPreset: cfg.UploadPreset,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		baseURL:      defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.cloudName, path)
}

// Upload sends the file to the auto-detecting unsigned upload endpoint and
// returns its public URL and asset id.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.WriteField("upload_preset", c.uploadPreset); err != nil {
		return nil, fmt.Errorf("write preset field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("auto/upload"), &body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload %s: status %d: %s", filename, resp.StatusCode, string(payload))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if result.SecureURL == "" || result.PublicID == "" {
		return nil, fmt.Errorf("upload %s: response missing secure_url or public_id", filename)
	}
	return &result, nil
}

// Destroy deletes the asset behind publicID. A "not found" result counts as
// success: the asset is gone either way.
func (c *Client) Destroy(ctx context.Context, publicID string, kind ResourceKind) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return fmt.Errorf("destroy %s: deletion credentials not configured", publicID)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	form := url.Values{
		"public_id": {publicID},
		"timestamp": {timestamp},
		"api_key":   {c.apiKey},
		"signature": {c.sign(publicID, timestamp)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(string(kind)+"/destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	defer resp.Body.Close()

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode destroy response: %w", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("destroy %s: result %q", publicID, result.Result)
	}
	return nil
}

// sign computes the Cloudinary request signature: SHA-1 over the sorted
// parameter string followed by the API secret.
func (c *Client) sign(publicID, timestamp string) string {
	payload := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, c.apiSecret)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ResourceKindFor picks the endpoint family for an asset from what is known
// about it. Cloudinary serves some non-image uploads from image URLs, so a
// stored URL containing the image path segment wins over the MIME type.
func ResourceKindFor(mimeType, fileURL string) ResourceKind {
	if strings.Contains(fileURL, "/image/upload/") {
		return KindImage
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	default:
		return KindRaw
	}
}
