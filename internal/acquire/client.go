// Package acquire fetches OCR text and video transcripts from the processing service.
package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/kl-higa/public-mtg-monitor2/internal/metrics"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Config holds processing service configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client wraps the processing service's OCR and transcript endpoints.
// Its methods never fail: problems are reported through models.Content.Status.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials config.CredentialProvider
}

// New creates a new processing service client.
func New(cfg Config, credentials config.CredentialProvider) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		credentials: credentials,
	}, nil
}

type pdfRequest struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type pdfResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

type transcriptRequest struct {
	URL string `json:"url"`
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
	Source     string `json:"source,omitempty"` // e.g. "subtitles", "whisper-asr"
}

// PDFText returns the OCR text of a PDF.
func (c *Client) PDFText(ctx context.Context, pdfURL string) models.Content {
	if pdfURL == "" {
		return models.Content{Status: models.ContentNotApplicable}
	}

	var resp pdfResponse
	if err := c.post(ctx, "/asr/pdf", pdfRequest{URL: pdfURL, Lang: "jpn"}, &resp); err != nil {
		slog.Warn("OCR request failed", "url", pdfURL, "error", err)
		return models.Content{Status: models.ContentUnavailable}
	}

	slog.Debug("OCR complete", "url", pdfURL, "pages", resp.Pages, "chars", len([]rune(resp.Text)))
	if resp.Text == "" {
		return models.Content{Status: models.ContentUnavailable, Pages: resp.Pages}
	}
	return models.Content{Text: resp.Text, Status: models.ContentOK, Pages: resp.Pages}
}

// Transcript returns the subtitles (or speech recognition output) of a video.
func (c *Client) Transcript(ctx context.Context, videoURL string) models.Content {
	if videoURL == "" {
		return models.Content{Status: models.ContentNotApplicable}
	}

	var resp transcriptResponse
	if err := c.post(ctx, "/asr/youtube-subs", transcriptRequest{URL: videoURL}, &resp); err != nil {
		slog.Warn("transcript request failed", "url", videoURL, "error", err)
		return models.Content{Status: models.ContentUnavailable}
	}

	if resp.Transcript == "" {
		slog.Debug("no transcript available", "url", videoURL)
		return models.Content{Status: models.ContentUnavailable}
	}
	return models.Content{
		Text:   resp.Transcript,
		Status: models.ContentOK,
		ASR:    strings.Contains(strings.ToLower(resp.Source), "asr"),
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	token := c.credentials.Credential(config.CredServiceToken)
	if token == "" {
		return fmt.Errorf("service token not configured")
	}

	start := time.Now()
	err := c.do(ctx, path, token, payload, out)
	metrics.ObserveRequest("acquire", path, start, err)
	return err
}

func (c *Client) do(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
