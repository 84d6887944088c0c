package report

import (
	"strings"
	"testing"
	"time"
)

func sample() *Report {
	start := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	return &Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
		Sources: []SourceResult{
			{SourceID: 1, Name: "同時市場", Outcome: OutcomeNew, LastID: 3, New: []Delivery{
				{Number: 2, Title: "第2回", URL: "https://a/2.html", Sent: 4, Summarized: true},
				{Number: 3, Title: "第3回", URL: "https://a/3.html", Sent: 4, TranscriptSource: "report-only"},
			}},
			{SourceID: 2, Name: "制度設計WG", Outcome: OutcomeNoUpdate, LastID: 9, LastDate: "2025年6月1日"},
			{SourceID: 3, Name: "排出量取引", Outcome: OutcomeFirstSeed, LastID: 12},
			{SourceID: 4, Name: "金融審", Outcome: OutcomeError, Reason: "listing fetch failed", Skipped: nil},
			{SourceID: 5, Name: "ベンチマーク", Outcome: OutcomeNoUpdate, LastID: 4, Skipped: []int{5}},
		},
	}
}

func TestReport_Subject(t *testing.T) {
	r := sample()
	if got := r.Subject(); got != "[審議会ウォッチ] 新着 2件" {
		t.Errorf("Subject() = %q", got)
	}

	r.Sources = r.Sources[1:]
	if got := r.Subject(); got != "[審議会ウォッチ] エラーあり" {
		t.Errorf("Subject() = %q", got)
	}

	r.Sources = r.Sources[:2]
	if got := r.Subject(); got != "[審議会ウォッチ] 新着なし" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestReport_Body(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	body := sample().Body(tokyo)

	for _, want := range []string{
		"■実行時刻\n2025/07/04 09:00:00",
		"■実行時間\n42秒",
		"■監視対象\n全5会議",
		"run-1",
		"新着会議（2件）",
		"[1] 同時市場\n  第2回: 第2回\n  https://a/2.html\n  配信: 4名",
		"配信: 4名（要約なし: report-only）",
		"新着なし（2件）",
		"  [2] 制度設計WG (最終: 第9回 2025年6月1日)",
		"  [5] ベンチマーク (最終: 第4回)",
		"初回シード（1件）\n  [3] 排出量取引 (第12回)",
		"エラー（1件）\n  [4] 金融審: listing fetch failed",
		"未公開のためスキップ（1件）\n  [5] ベンチマーク 第5回",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\n%s", want, body)
		}
	}
}
