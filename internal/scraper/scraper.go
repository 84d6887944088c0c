package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/kl-higa/public-mtg-monitor2/internal/config"
)

// Config holds page fetch configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// ProxyBaseURL routes fetches through {ProxyBaseURL}/fetcher/crawl when a
	// service token is available. Empty means direct fetches.
	ProxyBaseURL string
}

// Fetcher downloads committee pages.
type Fetcher struct {
	config      Config
	credentials config.CredentialProvider
	collector   *colly.Collector
}

// New creates a new Fetcher. credentials may be nil for direct fetches only.
func New(cfg Config, credentials config.CredentialProvider) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mtg-monitor/1.0"
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.Timeout)
	c.ParseHTTPErrorResponse = true
	c.DetectCharset = true

	return &Fetcher{
		config:      cfg,
		credentials: credentials,
		collector:   c,
	}
}

// FetchPage returns the page body, or "" on any failure. It never returns an error:
// a missing page is indistinguishable from an unreachable one for the caller.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) string {
	target, token := f.target(pageURL)

	c := f.collector.Clone()
	var body string

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("fetch cancelled", "url", pageURL)
			r.Abort()
			return
		}
		if token != "" {
			r.Headers.Set("Authorization", "Bearer "+token)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 400 {
			slog.Warn("page fetch returned error status", "url", pageURL, "status", r.StatusCode)
			return
		}
		body = string(r.Body)
		slog.Debug("fetched page", "url", pageURL, "size", len(body), "proxied", token != "")
	})

	if err := c.Visit(target); err != nil {
		slog.Warn("failed to fetch page", "url", pageURL, "error", err)
		return ""
	}
	c.Wait()

	return body
}

// target returns the URL to request and the bearer token to send with it.
func (f *Fetcher) target(pageURL string) (string, string) {
	if f.config.ProxyBaseURL == "" || f.credentials == nil {
		return pageURL, ""
	}
	token := f.credentials.Credential(config.CredServiceToken)
	if token == "" {
		slog.Debug("no service token, fetching directly", "url", pageURL)
		return pageURL, ""
	}
	base := strings.TrimRight(f.config.ProxyBaseURL, "/")
	return base + "/fetcher/crawl?url=" + url.QueryEscape(pageURL), token
}
