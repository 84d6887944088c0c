package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/kl-higa/public-mtg-monitor2/internal/metrics"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("gemini API key not configured")

// Config holds LLM client configuration.
type Config struct {
	BaseURL string // e.g. "https://generativelanguage.googleapis.com"
	Model   string // e.g. "gemini-2.5-flash"
	Timeout time.Duration
}

// Client wraps the Gemini generateContent API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	credentials config.CredentialProvider
}

// New creates a new LLM client. The API key is looked up on every request.
func New(cfg Config, credentials config.CredentialProvider) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		credentials: credentials,
	}, nil
}

// generateRequest is the request payload for generateContent.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generateResponse is the response from generateContent.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt to the model and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	key := c.credentials.Credential(config.CredGeminiAPIKey)
	if key == "" {
		return "", ErrNotConfigured
	}

	start := time.Now()
	text, err := c.generate(ctx, key, prompt)
	metrics.ObserveRequest("llm", c.model, start, err)
	return text, err
}

func (c *Client) generate(ctx context.Context, key, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(key))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The error message carries the URL, and with it the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, firstRunes(string(respBody), 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if genResp.Error != nil {
		return "", fmt.Errorf("API error: %s", genResp.Error.Message)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response returned")
	}

	text := genResp.Candidates[0].Content.Parts[0].Text
	slog.Debug("generation complete", "model", c.model, "prompt_chars", len([]rune(prompt)), "chars", len([]rune(text)))
	return text, nil
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
