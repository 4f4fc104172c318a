package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// TextExtractor pulls plain text out of an uploaded document so it can
// seed question generation.
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, content []byte) (string, error)
}

// httpExtractor calls an external extraction endpoint with the raw file.
type httpExtractor struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPExtractor creates a TextExtractor backed by an HTTP service.
func NewHTTPExtractor(baseURL string, timeout time.Duration, logger zerolog.Logger) TextExtractor {
	return &httpExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "TextExtractor").Logger(),
	}
}

func (e *httpExtractor) Extract(ctx context.Context, fileName string, content []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("failed to build extraction request: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to build extraction request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", &body)
	if err != nil {
		return "", fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode extraction response: %w", err)
	}
	return parsed.Text, nil
}
