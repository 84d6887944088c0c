// Package registry resolves the monitored sources and their recipients.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/kl-higa/public-mtg-monitor2/internal/subscriber"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Uncategorized is the agency assigned to rows that name none.
const Uncategorized = "未分類"

// SourcesCacheKey is the cache key for the resolved source list.
const SourcesCacheKey = "sources_cache"

// SourceRow is a raw registry row. Nullable columns are pointers.
type SourceRow struct {
	ID       int
	Agency   *string
	Name     *string
	IndexURL *string
	Active   *bool
	Note     *string
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// FilterSources drops rows without a name or URL and rows not marked active.
// A missing agency becomes Uncategorized.
func FilterSources(rows []SourceRow) []models.Source {
	var out []models.Source
	for _, r := range rows {
		name, indexURL := str(r.Name), str(r.IndexURL)
		if name == "" || indexURL == "" {
			continue
		}
		if r.Active == nil || !*r.Active {
			continue
		}
		agency := str(r.Agency)
		if agency == "" {
			agency = Uncategorized
		}
		out = append(out, models.Source{
			ID:       r.ID,
			Agency:   agency,
			Name:     name,
			IndexURL: indexURL,
			Active:   true,
			Note:     str(r.Note),
		})
	}
	return out
}

// FromConfig converts the built-in source list.
func FromConfig(sources []config.Source) []models.Source {
	out := make([]models.Source, 0, len(sources))
	for i, s := range sources {
		id := s.ID
		if id == 0 {
			id = i + 1
		}
		agency := strings.TrimSpace(s.Agency)
		if agency == "" {
			agency = Uncategorized
		}
		out = append(out, models.Source{ID: id, Agency: agency, Name: s.Name, IndexURL: s.URL, Active: true})
	}
	return out
}

// SourceLoader reads sources from durable storage.
type SourceLoader interface {
	Sources(ctx context.Context) ([]models.Source, error)
}

// RecipientLoader reads recipients from durable storage.
type RecipientLoader interface {
	Recipients(ctx context.Context) ([]models.Recipient, error)
}

// Cache stores the resolved source list between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config configures a Registry. Loaders and Cache are optional.
type Config struct {
	Sources    SourceLoader
	Recipients RecipientLoader
	Cache      Cache
	CacheTTL   time.Duration
	Fallback   []models.Source
}

// Registry resolves sources with caching and a built-in fallback.
type Registry struct {
	sources    SourceLoader
	recipients RecipientLoader
	cache      Cache
	ttl        time.Duration
	fallback   []models.Source
}

// New creates a Registry.
func New(cfg Config) *Registry {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		sources:    cfg.Sources,
		recipients: cfg.Recipients,
		cache:      cfg.Cache,
		ttl:        ttl,
		fallback:   cfg.Fallback,
	}
}

// Sources returns the active sources. Cache hits are returned as is; a
// loader failure falls back to the built-in list and is not cached.
func (r *Registry) Sources(ctx context.Context) []models.Source {
	if r.cache != nil {
		data, ok, err := r.cache.Get(ctx, SourcesCacheKey)
		if err != nil {
			slog.Warn("sources cache read failed", "error", err)
		} else if ok {
			var cached []models.Source
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
			slog.Warn("sources cache entry malformed, reloading")
		}
	}

	if r.sources == nil {
		return r.fallback
	}
	sources, err := r.sources.Sources(ctx)
	if err != nil {
		slog.Warn("failed to load sources, using built-in list", "error", err)
		return r.fallback
	}
	slog.Debug("loaded sources from registry", "count", len(sources))

	if r.cache != nil {
		if data, err := json.Marshal(sources); err == nil {
			if err := r.cache.Set(ctx, SourcesCacheKey, data, r.ttl); err != nil {
				slog.Warn("sources cache write failed", "error", err)
			}
		}
	}
	return sources
}

// RecipientsFor returns the active recipients subscribed to sourceName.
func (r *Registry) RecipientsFor(ctx context.Context, sourceName string) ([]models.Recipient, error) {
	if r.recipients == nil {
		return nil, nil
	}
	all, err := r.recipients.Recipients(ctx)
	if err != nil {
		return nil, err
	}
	return subscriber.Filter(all, sourceName), nil
}
