package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ImageGenerator creates cover images from text prompts using the OpenAI
// images API and returns them as directly embeddable data URIs.
type ImageGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewImageGenerator(apiKey, model string) *ImageGenerator {
	if model == "" {
		model = "dall-e-3"
	}
	return &ImageGenerator{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com/v1",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateDataURI requests a single image for the prompt and wraps the
// base64 payload as a data URI. A response without an image payload is an
// error; the caller proceeds without a cover.
func (g *ImageGenerator) GenerateDataURI(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":           g.model,
		"prompt":          prompt,
		"size":            "1024x1024",
		"n":               1,
		"response_format": "b64_json",
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/images/generations", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("image generation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image generation failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("image generation returned no image payload")
	}

	uri := "data:image/png;base64," + apiResp.Data[0].B64JSON
	if !strings.HasPrefix(uri, "data:image/") {
		return "", fmt.Errorf("generated image is not an embeddable data URI")
	}
	return uri, nil
}
