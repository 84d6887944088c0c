package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// ErrAlreadyArchived is returned by IndexEntry when the entry ID already exists.
var ErrAlreadyArchived = errors.New("meeting already archived")

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Transport http.RoundTripper // Optional, for tests
}

// Client is the append-only meeting archive.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the archive mapping. Text fields use the CJK analyzer.
var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"source_id": { "type": "integer" },
			"source_name": { "type": "keyword" },
			"agency": { "type": "keyword" },
			"meeting_number": { "type": "integer" },
			"date": { "type": "keyword" },
			"title": { "type": "text", "analyzer": "cjk" },
			"url": { "type": "keyword" },
			"youtube": { "type": "keyword" },
			"agenda_pdf_url": { "type": "keyword" },
			"roster_pdf_url": { "type": "keyword" },
			"summary": { "type": "text", "analyzer": "cjk" },
			"summary_chars": { "type": "integer" },
			"transcript_source": { "type": "keyword" },
			"page_markdown": { "type": "text", "analyzer": "cjk" },
			"run_id": { "type": "keyword" },
			"created_at": { "type": "date" },
			"updated_at": { "type": "date" }
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexEntry appends an archive row. The ID is derived from the source and
// meeting number; an existing row is never overwritten.
func (c *Client) IndexEntry(ctx context.Context, entry models.ArchiveEntry) error {
	entry.ID = models.ArchiveID(entry.SourceID, entry.MeetingNumber)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	res, err := c.es.Create(
		c.index,
		entry.ID,
		bytes.NewReader(data),
		c.es.Create.WithContext(ctx),
		c.es.Create.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return ErrAlreadyArchived
	}
	if res.IsError() {
		return fmt.Errorf("error indexing entry (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// Exists reports whether the (source, meeting) pair has been archived.
func (c *Client) Exists(ctx context.Context, sourceID, meetingNumber int) (bool, error) {
	res, err := c.es.Exists(
		c.index,
		models.ArchiveID(sourceID, meetingNumber),
		c.es.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("exists check failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists check error: %s", res.String())
	}
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.ArchiveEntry `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search performs a BM25 text search on summaries, titles and page snapshots.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.ArchiveEntry, error) {
	return c.search(ctx, map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "summary", "page_markdown", "source_name"},
			},
		},
		"size": limit,
	})
}

// Recent returns the newest archive rows, optionally limited to one source.
// sourceID 0 means all sources.
func (c *Client) Recent(ctx context.Context, sourceID, limit int) ([]models.ArchiveEntry, error) {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if sourceID > 0 {
		query = map[string]interface{}{
			"term": map[string]interface{}{"source_id": sourceID},
		}
	}
	return c.search(ctx, map[string]interface{}{
		"query": query,
		"sort":  []map[string]interface{}{{"created_at": map[string]string{"order": "desc"}}},
		"size":  limit,
	})
}

func (c *Client) search(ctx context.Context, searchQuery map[string]interface{}) ([]models.ArchiveEntry, error) {
	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entries := make([]models.ArchiveEntry, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		entries[i] = hit.Source
	}

	return entries, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool                `json:"found"`
	Source models.ArchiveEntry `json:"_source"`
}

// GetEntry retrieves an archive row by ID. A missing row yields nil.
func (c *Client) GetEntry(ctx context.Context, id string) (*models.ArchiveEntry, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
