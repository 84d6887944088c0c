// Package metrics exposes Prometheus counters for monitoring runs.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kl-higa/public-mtg-monitor2/internal/report"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtgmon_runs_total",
		Help: "Monitoring runs by status",
	}, []string{"status"})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtgmon_run_duration_seconds",
		Help:    "Duration of a monitoring run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	})
	LastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mtgmon_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
	SourceOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtgmon_source_outcomes_total",
		Help: "Per-source run outcomes",
	}, []string{"outcome"})
	MeetingsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mtgmon_meetings_processed_total",
		Help: "New meetings processed by transcript source",
	}, []string{"transcript_source"})
	MeetingsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtgmon_meetings_skipped_total",
		Help: "New meetings skipped as not yet published",
	})
	MailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtgmon_mails_sent_total",
		Help: "Meeting mails delivered",
	})
	MailErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mtgmon_mail_errors_total",
		Help: "Meeting mail delivery failures",
	})
	SummaryChars = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtgmon_summary_chars",
		Help:    "Length of generated summaries in characters",
		Buckets: []float64{250, 500, 1000, 1500, 2000, 2250, 2500},
	})
	ExternalRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mtgmon_external_request_duration_seconds",
		Help:    "Duration of calls to external services",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"component", "operation", "status"})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RunsTotal,
		RunDuration,
		LastRunTimestamp,
		SourceOutcomes,
		MeetingsProcessed,
		MeetingsSkipped,
		MailsSent,
		MailErrors,
		SummaryChars,
		ExternalRequestDuration,
	)
}

// ObserveRun records a finished run. A nil report counts as a failed run.
func ObserveRun(r *report.Report, err error) {
	if err != nil || r == nil {
		RunsTotal.WithLabelValues("error").Inc()
		return
	}
	RunsTotal.WithLabelValues("ok").Inc()
	RunDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	LastRunTimestamp.Set(float64(r.FinishedAt.Unix()))

	for _, s := range r.Sources {
		SourceOutcomes.WithLabelValues(string(s.Outcome)).Inc()
		MeetingsSkipped.Add(float64(len(s.Skipped)))
		for _, d := range s.New {
			MeetingsProcessed.WithLabelValues(d.TranscriptSource).Inc()
		}
	}
}

// ObserveRequest records the duration and status of an external call.
func ObserveRequest(component, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExternalRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}()

	go func() {
		slog.Info("metrics server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}
