package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kl-higa/public-mtg-monitor2/internal/report"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	RunsTotal.WithLabelValues("ok").Add(0)
	ExternalRequestDuration.WithLabelValues("llm", "complete", "success").Observe(0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families gathered")
	}
}

func TestObserveRun(t *testing.T) {
	start := time.Unix(1751500000, 0)
	r := &report.Report{
		StartedAt:  start,
		FinishedAt: start.Add(30 * time.Second),
		Sources: []report.SourceResult{
			{Outcome: report.OutcomeNew, New: []report.Delivery{{TranscriptSource: "subtitles"}, {TranscriptSource: "subtitles"}}},
			{Outcome: report.OutcomeNoUpdate, Skipped: []int{4}},
			{Outcome: report.OutcomeError},
		},
	}

	okBefore := testutil.ToFloat64(RunsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(RunsTotal.WithLabelValues("error"))
	subsBefore := testutil.ToFloat64(MeetingsProcessed.WithLabelValues("subtitles"))
	skippedBefore := testutil.ToFloat64(MeetingsSkipped)

	ObserveRun(r, nil)
	ObserveRun(nil, errors.New("state load failed"))

	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("ok runs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("error runs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MeetingsProcessed.WithLabelValues("subtitles")) - subsBefore; got != 2 {
		t.Errorf("processed delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(MeetingsSkipped) - skippedBefore; got != 1 {
		t.Errorf("skipped delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(LastRunTimestamp); got != float64(start.Add(30*time.Second).Unix()) {
		t.Errorf("last run timestamp = %v", got)
	}
}
