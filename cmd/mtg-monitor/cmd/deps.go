package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/internal/acquire"
	"github.com/kl-higa/public-mtg-monitor2/internal/cache"
	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/kl-higa/public-mtg-monitor2/internal/elasticsearch"
	"github.com/kl-higa/public-mtg-monitor2/internal/ledger"
	"github.com/kl-higa/public-mtg-monitor2/internal/llm"
	"github.com/kl-higa/public-mtg-monitor2/internal/mail"
	"github.com/kl-higa/public-mtg-monitor2/internal/pipeline"
	"github.com/kl-higa/public-mtg-monitor2/internal/processor"
	"github.com/kl-higa/public-mtg-monitor2/internal/registry"
	"github.com/kl-higa/public-mtg-monitor2/internal/scraper"
	"github.com/kl-higa/public-mtg-monitor2/internal/storage"
	"github.com/kl-higa/public-mtg-monitor2/internal/summarizer"
)

func newArchive(cfg config.Config) (*elasticsearch.Client, error) {
	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	return esClient, nil
}

func newStateStore(ctx context.Context, cfg config.Config) (*storage.Client, error) {
	storageClient, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		StateKey:        cfg.Storage.StateKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := storageClient.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return storageClient, nil
}

func newFetcher(cfg config.Config) *scraper.Fetcher {
	proxy := ""
	if cfg.Service.UseProxy {
		proxy = cfg.Service.BaseURL
	}
	return scraper.New(scraper.Config{
		UserAgent:    cfg.Scraper.UserAgent,
		Timeout:      cfg.Scraper.Timeout,
		ProxyBaseURL: proxy,
	}, cfg.Secrets)
}

// connectRegistry opens the registry database and creates its tables.
func connectRegistry(ctx context.Context, dsn string) (*registry.Postgres, func(), error) {
	pool, err := registry.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	pg := registry.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

// backends holds the optional Postgres and Redis connections.
type backends struct {
	registry *registry.Registry
	redis    *cache.Redis
	close    func()
}

// connectBackends opens the registry database and Redis when configured.
// An unreachable database degrades to the built-in source list and an
// unreachable Redis to an in-process ledger.
func connectBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{close: func() {}}
	regCfg := registry.Config{
		CacheTTL: cfg.Redis.SourceTTL,
		Fallback: registry.FromConfig(cfg.Sources),
	}

	if cfg.Postgres.DSN != "" {
		pg, closePool, err := connectRegistry(ctx, cfg.Postgres.DSN)
		if err != nil {
			slog.Warn("registry database unavailable, using built-in sources", "error", err)
		} else {
			regCfg.Sources = pg
			regCfg.Recipients = pg
			prev := b.close
			b.close = func() { prev(); closePool() }
		}
	} else {
		slog.Warn("no registry database configured, using built-in sources")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, send ledger is in-process only", "addr", cfg.Redis.Addr, "error", err)
			rdb.Close()
		} else {
			b.redis = rdb
			regCfg.Cache = rdb
			prev := b.close
			b.close = func() { prev(); rdb.Close() }
		}
	}

	b.registry = registry.New(regCfg)
	return b, nil
}

func (b *backends) ledger(ttl time.Duration) *ledger.Ledger {
	if b.redis != nil {
		return ledger.New(b.redis, ttl)
	}
	return ledger.New(ledger.NewMemory(), ttl)
}

func newMailer(cfg config.Config, dryRun bool) (pipeline.Mailer, error) {
	if dryRun || cfg.Mail.Host == "" {
		if !dryRun {
			slog.Warn("no smtp host configured, mail is logged only")
		}
		return mail.LogMailer{}, nil
	}
	return mail.NewSMTP(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		ReplyTo:  cfg.Mail.ReplyTo,
	}, cfg.Secrets)
}

// runOptions are the per-invocation pipeline settings.
type runOptions struct {
	sourceID int
	dryRun   bool
}

// newPipeline wires every component of a monitoring run. The returned
// function releases the backends.
func newPipeline(ctx context.Context, cfg config.Config, opts runOptions) (*pipeline.Pipeline, func(), error) {
	acquirer, err := acquire.New(acquire.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
	}, cfg.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create processing service client: %w", err)
	}

	llmClient, err := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, cfg.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	archive, err := newArchive(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := archive.CreateIndex(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to create archive index: %w", err)
	}

	stateStore, err := newStateStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	mailer, err := newMailer(cfg, opts.dryRun)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}

	p, err := pipeline.New(pipeline.Deps{
		Sources:    b.registry,
		Recipients: b.registry,
		Fetcher:    newFetcher(cfg),
		Acquirer:   acquirer,
		Summarizer: summarizer.New(llmClient, summarizer.Config{
			MaxCharsPerChunk: cfg.Summary.MaxCharsPerChunk,
			MinChars:         cfg.Summary.MinChars,
			MaxChars:         cfg.Summary.MaxChars,
			SourceTextLimit:  cfg.Summary.SourceTextLimit,
		}),
		Cursors:     stateStore,
		Archive:     archive,
		Mailer:      mailer,
		Ledger:      b.ledger(cfg.Redis.SentTTL),
		Snapshotter: processor.New(processor.DefaultMaxRunes),
	}, pipeline.Config{
		SourceFilter: opts.sourceID,
		DryRun:       opts.dryRun,
		SiteBaseURL:  cfg.Mail.SiteBaseURL,
		TokenSecret:  cfg.Secrets.Credential(config.CredTokenSecret),
		AdminTo:      cfg.Mail.AdminTo,
		Location:     loc,
	})
	if err != nil {
		b.close()
		return nil, nil, err
	}
	return p, b.close, nil
}
