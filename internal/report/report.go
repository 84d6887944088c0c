// Package report summarizes one monitoring run for the administrator.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the result of processing one source.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeNoUpdate  Outcome = "no-update"
	OutcomeFirstSeed Outcome = "first-seed"
	OutcomeError     Outcome = "error"
)

// Delivery is one newcomer meeting that completed processing.
type Delivery struct {
	Number           int
	Title            string
	URL              string
	Sent             int
	Summarized       bool
	TranscriptSource string
}

// SourceResult is the outcome for one source.
type SourceResult struct {
	SourceID int
	Name     string
	Outcome  Outcome
	Reason   string // Error reason
	LastID   int    // Cursor position after the run
	LastDate string
	Skipped  []int // Newcomer IDs skipped as not yet published
	New      []Delivery
}

// Report is the summary of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []SourceResult
}

// Count returns how many sources ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, s := range r.Sources {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// Deliveries returns every newcomer processed in the run.
func (r *Report) Deliveries() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.New)
	}
	return n
}

const divider = "━━━━━━━━━━━━━━━━━━"

// Subject returns the admin mail subject.
func (r *Report) Subject() string {
	prefix := "[審議会ウォッチ] "
	switch {
	case r.Deliveries() > 0:
		return prefix + fmt.Sprintf("新着 %d件", r.Deliveries())
	case r.Count(OutcomeError) > 0:
		return prefix + "エラーあり"
	default:
		return prefix + "新着なし"
	}
}

// Body renders the admin mail body. Times are shown in loc.
func (r *Report) Body(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder

	fmt.Fprintf(&b, "審議会ウォッチ 実行レポート\n\n%s\n", divider)
	fmt.Fprintf(&b, "■実行時刻\n%s\n\n", r.StartedAt.In(loc).Format("2006/01/02 15:04:05"))
	fmt.Fprintf(&b, "■実行時間\n%d秒\n\n", int(r.FinishedAt.Sub(r.StartedAt).Round(time.Second)/time.Second))
	fmt.Fprintf(&b, "■監視対象\n全%d会議\n\n", len(r.Sources))
	fmt.Fprintf(&b, "■実行ID\n%s\n%s\n", r.RunID, divider)

	if n := r.Deliveries(); n > 0 {
		fmt.Fprintf(&b, "\n新着会議（%d件）\n", n)
		for _, s := range r.Sources {
			for _, d := range s.New {
				fmt.Fprintf(&b, "\n[%d] %s\n  第%d回: %s\n  %s\n  配信: %d名", s.SourceID, s.Name, d.Number, d.Title, d.URL, d.Sent)
				if !d.Summarized {
					fmt.Fprintf(&b, "（要約なし: %s）", d.TranscriptSource)
				}
			}
		}
		b.WriteString("\n")
	}

	r.section(&b, OutcomeNoUpdate, "新着なし", func(s SourceResult) string {
		date := ""
		if s.LastDate != "" {
			date = " " + s.LastDate
		}
		return fmt.Sprintf("  [%d] %s (最終: 第%d回%s)", s.SourceID, s.Name, s.LastID, date)
	})
	r.section(&b, OutcomeFirstSeed, "初回シード", func(s SourceResult) string {
		return fmt.Sprintf("  [%d] %s (第%d回)", s.SourceID, s.Name, s.LastID)
	})
	r.section(&b, OutcomeError, "エラー", func(s SourceResult) string {
		return fmt.Sprintf("  [%d] %s: %s", s.SourceID, s.Name, s.Reason)
	})

	var skipped []string
	for _, s := range r.Sources {
		for _, id := range s.Skipped {
			skipped = append(skipped, fmt.Sprintf("  [%d] %s 第%d回", s.SourceID, s.Name, id))
		}
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, "\n未公開のためスキップ（%d件）\n%s\n", len(skipped), strings.Join(skipped, "\n"))
	}

	b.WriteString("\n" + divider + "\n")
	return b.String()
}

func (r *Report) section(b *strings.Builder, outcome Outcome, label string, line func(SourceResult) string) {
	n := r.Count(outcome)
	if n == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s（%d件）\n", label, n)
	for _, s := range r.Sources {
		if s.Outcome == outcome {
			b.WriteString(line(s) + "\n")
		}
	}
}
