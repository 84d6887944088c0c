package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/internal/ledger"
	"github.com/kl-higa/public-mtg-monitor2/internal/mail"
	"github.com/kl-higa/public-mtg-monitor2/internal/report"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

const (
	indexURL  = "https://www.meti.go.jp/shingikai/energy_environment/doji_shijo_kento/index.html"
	meetingAt = "https://www.meti.go.jp/shingikai/energy_environment/doji_shijo_kento/"
)

var testSource = models.Source{ID: 1, Agency: "経済産業省", Name: "同時市場の在り方等に関する検討会", IndexURL: indexURL, Active: true}

const listingHTML = `<ul>
<li><a href="./3.html">第3回（2025年7月3日）</a></li>
<li><a href="./2.html">第2回</a></li>
<li><a href="./1.html">第1回</a></li>
<li><a href="./benchmark_wg/index.html">製造業ベンチマーク検討WG</a></li>
</ul>`

func publishedHTML(n int, title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<p>2025年7月%d日</p>
<a href="https://www.youtube.com/watch?v=vid%d">YouTube</a>
<a href="./%d/gijishidai.pdf">議事次第</a>
<a href="./%d/meibo.pdf">委員名簿</a>
<a href="./%d/shiryo1.pdf">資料1 事務局説明資料</a>
</body></html>`, title, n, n, n, n, n)
}

func stubHTML(n int) string {
	return fmt.Sprintf(`<html><head><title>第%d回</title></head><body><a href="./%d/gijishidai.pdf">議事次第</a></body></html>`, n, n)
}

type fakeSources []models.Source

func (f fakeSources) Sources(context.Context) []models.Source { return f }

type fakeRecipients []models.Recipient

func (f fakeRecipients) RecipientsFor(context.Context, string) ([]models.Recipient, error) {
	return f, nil
}

type fakeFetcher map[string]string

func (f fakeFetcher) FetchPage(_ context.Context, pageURL string) string { return f[pageURL] }

type fakeAcquirer struct {
	transcript      models.Content
	pdfCalls        int
	transcriptCalls int
}

func (f *fakeAcquirer) PDFText(_ context.Context, pdfURL string) models.Content {
	f.pdfCalls++
	if strings.HasSuffix(pdfURL, "gijishidai.pdf") {
		return models.Content{Text: "3. 議事\n(1) 論点整理\n4. 配付資料", Status: models.ContentOK}
	}
	return models.Content{Text: "委員名簿", Status: models.ContentOK}
}

func (f *fakeAcquirer) Transcript(_ context.Context, videoURL string) models.Content {
	f.transcriptCalls++
	if videoURL == "" {
		return models.Content{Status: models.ContentNotApplicable}
	}
	return f.transcript
}

type fakeSummarizer struct {
	summary  string
	eligible bool
	calls    int
}

func (f *fakeSummarizer) Summarize(context.Context, *models.MeetingRecord, string, string, string) string {
	f.calls++
	return f.summary
}

func (f *fakeSummarizer) Eligible(string) bool { return f.eligible }

type fakeCursors struct {
	state   models.State
	loadErr error
	saved   []int // LastID of the test source at each save
}

func (f *fakeCursors) LoadState(context.Context) (models.State, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.state == nil {
		f.state = models.State{}
	}
	return f.state, nil
}

func (f *fakeCursors) SaveState(_ context.Context, state models.State) error {
	f.state = state
	f.saved = append(f.saved, lastID(state[indexURL]))
	return nil
}

type fakeArchive struct {
	existing map[int]bool
	entries  []models.ArchiveEntry
}

func (f *fakeArchive) Exists(_ context.Context, _, meetingNumber int) (bool, error) {
	return f.existing[meetingNumber], nil
}

func (f *fakeArchive) IndexEntry(_ context.Context, entry models.ArchiveEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	fetcher    fakeFetcher
	acquirer   *fakeAcquirer
	summarizer *fakeSummarizer
	cursors    *fakeCursors
	archive    *fakeArchive
	mailer     *fakeMailer
	ledger     *ledger.Ledger
	recipients fakeRecipients
	sources    fakeSources
	config     Config
}

func newFixture(cursorAt *int) *fixture {
	state := models.State{}
	if cursorAt != nil {
		state[indexURL] = &models.Cursor{LastID: cursorAt, LastURL: meetingAt + "1.html"}
	}
	fetcher := fakeFetcher{indexURL: listingHTML}
	for n := 1; n <= 3; n++ {
		fetcher[fmt.Sprintf("%s%d.html", meetingAt, n)] = publishedHTML(n, fmt.Sprintf("第%d回 同時市場の在り方等に関する検討会", n))
	}
	recipient := models.Recipient{Email: "a@example.com", Status: models.RecipientActive, Sources: "*", Token: "tok"}
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)

	return &fixture{
		fetcher:    fetcher,
		acquirer:   &fakeAcquirer{transcript: models.Content{Text: "えー本日は", Status: models.ContentOK}},
		summarizer: &fakeSummarizer{summary: "■要約\n・内容\n────", eligible: true},
		cursors:    &fakeCursors{state: state},
		archive:    &fakeArchive{existing: map[int]bool{}},
		mailer:     &fakeMailer{},
		ledger:     ledger.New(ledger.NewMemory(), 0),
		recipients: fakeRecipients{recipient},
		sources:    fakeSources{testSource},
		config: Config{
			SiteBaseURL: "https://example.com/exec",
			Now:         func() time.Time { return now },
		},
	}
}

func (f *fixture) run(t *testing.T) *report.Report {
	t.Helper()
	p, err := New(Deps{
		Sources:    f.sources,
		Recipients: f.recipients,
		Fetcher:    f.fetcher,
		Acquirer:   f.acquirer,
		Summarizer: f.summarizer,
		Cursors:    f.cursors,
		Archive:    f.archive,
		Mailer:     f.mailer,
		Ledger:     f.ledger,
	}, f.config)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	rep, err := p.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return rep
}

func intPtr(i int) *int { return &i }

func TestRun_SeedsNewSource(t *testing.T) {
	f := newFixture(nil)

	rep := f.run(t)

	if len(rep.Sources) != 1 {
		t.Fatalf("got %d source results, want 1", len(rep.Sources))
	}
	res := rep.Sources[0]
	if res.Outcome != report.OutcomeFirstSeed || res.LastID != 3 {
		t.Errorf("result = %+v, want first-seed at 3", res)
	}
	cursor := f.cursors.state[indexURL]
	if cursor == nil || lastID(cursor) != 3 || cursor.LastMeetingDate != "2025年7月3日" {
		t.Errorf("cursor = %+v", cursor)
	}
	if len(f.cursors.saved) != 1 {
		t.Errorf("saves = %d, want 1", len(f.cursors.saved))
	}
	if len(f.mailer.sent) != 0 || len(f.archive.entries) != 0 {
		t.Errorf("seed must not mail or archive")
	}
	if rep.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestRun_ProcessesNewcomersInOrder(t *testing.T) {
	f := newFixture(intPtr(1))

	rep := f.run(t)

	res := rep.Sources[0]
	if res.Outcome != report.OutcomeNew || res.LastID != 3 {
		t.Fatalf("result = %+v, want new at 3", res)
	}
	if len(res.New) != 2 || res.New[0].Number != 2 || res.New[1].Number != 3 {
		t.Errorf("deliveries = %+v", res.New)
	}
	if got := f.cursors.saved; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("saved cursor positions = %v, want [2 3]", got)
	}
	if len(f.archive.entries) != 2 {
		t.Fatalf("archived %d entries, want 2", len(f.archive.entries))
	}
	entry := f.archive.entries[0]
	if entry.MeetingNumber != 2 || entry.RunID != rep.RunID || entry.TranscriptSource != models.TranscriptSubtitles {
		t.Errorf("entry = %+v", entry)
	}
	if entry.AgendaPDFURL != meetingAt+"2/gijishidai.pdf" || entry.RosterPDFURL != meetingAt+"2/meibo.pdf" {
		t.Errorf("attachment URLs = %q, %q", entry.AgendaPDFURL, entry.RosterPDFURL)
	}
	if len(f.mailer.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(f.mailer.sent))
	}
	msg := f.mailer.sent[0]
	if msg.To != "a@example.com" || !strings.HasPrefix(msg.Subject, "[会議要約]") {
		t.Errorf("message = %+v", msg)
	}
	if !strings.Contains(msg.Plain, "token=tok") {
		t.Error("plain body should carry the unsubscribe link")
	}
	if f.summarizer.calls != 2 {
		t.Errorf("summarize calls = %d, want 2", f.summarizer.calls)
	}
}

func TestRun_SkipsUnpublishedAndFreezesCursor(t *testing.T) {
	f := newFixture(intPtr(1))
	f.fetcher[meetingAt+"2.html"] = stubHTML(2)

	rep := f.run(t)

	res := rep.Sources[0]
	if len(res.Skipped) != 1 || res.Skipped[0] != 2 {
		t.Errorf("skipped = %v, want [2]", res.Skipped)
	}
	if len(res.New) != 1 || res.New[0].Number != 3 {
		t.Errorf("deliveries = %+v, want meeting 3", res.New)
	}
	if got := lastID(f.cursors.state[indexURL]); got != 1 {
		t.Errorf("cursor = %d, want 1", got)
	}
	if res.LastID != 1 {
		t.Errorf("reported LastID = %d, want 1", res.LastID)
	}
	if got := f.cursors.saved; len(got) != 1 || got[0] != 1 {
		t.Errorf("saved cursor positions = %v, want [1]", got)
	}
	if checked, want := f.cursors.state[indexURL].LastCheckedAt, f.config.Now(); !checked.Equal(want) {
		t.Errorf("LastCheckedAt = %v, want %v", checked, want)
	}
}

func TestRun_AlreadyArchivedIsNotResent(t *testing.T) {
	f := newFixture(intPtr(1))
	f.archive.existing[2] = true

	rep := f.run(t)

	res := rep.Sources[0]
	if len(res.New) != 1 || res.New[0].Number != 3 {
		t.Errorf("deliveries = %+v, want meeting 3", res.New)
	}
	if len(f.mailer.sent) != 1 {
		t.Errorf("sent %d mails, want 1", len(f.mailer.sent))
	}
	if got := lastID(f.cursors.state[indexURL]); got != 3 {
		t.Errorf("cursor = %d, want 3", got)
	}
}

func TestRun_ReportOnlyIsNotSummarized(t *testing.T) {
	f := newFixture(intPtr(2))
	f.fetcher[meetingAt+"3.html"] = publishedHTML(3, "同時市場の在り方等に関する検討会 中間取りまとめ")

	rep := f.run(t)

	if f.summarizer.calls != 0 || f.acquirer.transcriptCalls != 0 {
		t.Errorf("summarize calls = %d, transcript calls = %d, want 0", f.summarizer.calls, f.acquirer.transcriptCalls)
	}
	d := rep.Sources[0].New[0]
	if d.Summarized || d.TranscriptSource != string(models.TranscriptReportOnly) {
		t.Errorf("delivery = %+v", d)
	}
	if len(f.mailer.sent) != 1 || !strings.HasPrefix(f.mailer.sent[0].Subject, "[レポート]") {
		t.Errorf("sent = %+v", f.mailer.sent)
	}
}

func TestRun_SummaryFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		transcript models.Content
		eligible   bool
		wantSource models.TranscriptSource
		wantCalls  int
	}{
		{"rejected by gate", models.Content{Text: "本文", Status: models.ContentOK}, false, models.TranscriptSubtitles, 1},
		{"speech recognition", models.Content{Text: "本文", Status: models.ContentOK, ASR: true}, false, models.TranscriptASR, 1},
		{"transcript pending", models.Content{Status: models.ContentUnavailable}, true, models.TranscriptPending, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(intPtr(2))
			f.acquirer.transcript = tt.transcript
			f.summarizer.eligible = tt.eligible

			rep := f.run(t)

			d := rep.Sources[0].New[0]
			if d.Summarized || d.TranscriptSource != string(tt.wantSource) {
				t.Errorf("delivery = %+v, want unsummarized %s", d, tt.wantSource)
			}
			if f.summarizer.calls != tt.wantCalls {
				t.Errorf("summarize calls = %d, want %d", f.summarizer.calls, tt.wantCalls)
			}
			if len(f.mailer.sent) != 1 || !strings.HasPrefix(f.mailer.sent[0].Subject, "[会議検知]") {
				t.Errorf("fallback mail not sent: %+v", f.mailer.sent)
			}
			if f.archive.entries[0].Summary != "" {
				t.Errorf("ineligible summary must not be archived")
			}
		})
	}
}

func TestRun_LedgerPreventsResend(t *testing.T) {
	f := newFixture(intPtr(2))
	_, err := f.ledger.Once(t.Context(), meetingAt+"3.html", "a@example.com", func() error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	rep := f.run(t)

	if len(f.mailer.sent) != 0 {
		t.Errorf("sent %d mails, want 0", len(f.mailer.sent))
	}
	if d := rep.Sources[0].New[0]; d.Sent != 0 {
		t.Errorf("Sent = %d, want 0", d.Sent)
	}
	if got := lastID(f.cursors.state[indexURL]); got != 3 {
		t.Errorf("cursor = %d, want 3", got)
	}
}

func TestRun_MailFailureIsRetriedLater(t *testing.T) {
	f := newFixture(intPtr(2))
	f.mailer.err = errors.New("smtp down")

	rep := f.run(t)

	if d := rep.Sources[0].New[0]; d.Sent != 0 {
		t.Errorf("Sent = %d, want 0", d.Sent)
	}
	sent := false
	_, err := f.ledger.Once(t.Context(), meetingAt+"3.html", "a@example.com", func() error {
		sent = true
		return nil
	})
	if err != nil || !sent {
		t.Errorf("failed send should release the ledger entry")
	}
}

func TestRun_SourceFailuresDoNotStopTheRun(t *testing.T) {
	f := newFixture(intPtr(3))
	broken := models.Source{ID: 2, Agency: "経済産業省", Name: "壊れた会議", IndexURL: "https://www.meti.go.jp/broken/index.html"}
	unknown := models.Source{ID: 3, Agency: "国土交通省", Name: "他省庁", IndexURL: "https://www.mlit.go.jp/x/index.html"}
	f.sources = fakeSources{broken, unknown, testSource}

	rep := f.run(t)

	if len(rep.Sources) != 3 {
		t.Fatalf("got %d source results, want 3", len(rep.Sources))
	}
	if rep.Sources[0].Outcome != report.OutcomeError || rep.Sources[1].Outcome != report.OutcomeError {
		t.Errorf("outcomes = %s, %s, want error", rep.Sources[0].Outcome, rep.Sources[1].Outcome)
	}
	if got := rep.Sources[2]; got.Outcome != report.OutcomeNoUpdate || got.LastID != 3 {
		t.Errorf("result = %+v, want no-update at 3", got)
	}
}

func TestRun_SourceFilter(t *testing.T) {
	f := newFixture(intPtr(3))
	f.sources = fakeSources{testSource, {ID: 2, Name: "別会議", IndexURL: "https://www.meti.go.jp/other/index.html"}}
	f.config.SourceFilter = 2

	rep := f.run(t)

	if len(rep.Sources) != 1 || rep.Sources[0].SourceID != 2 {
		t.Errorf("sources = %+v, want only source 2", rep.Sources)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	f := newFixture(intPtr(1))
	f.config.DryRun = true
	f.config.AdminTo = "admin@example.com"

	rep := f.run(t)

	if len(rep.Sources[0].New) != 2 {
		t.Errorf("deliveries = %d, want 2", len(rep.Sources[0].New))
	}
	if len(f.cursors.saved) != 0 || len(f.archive.entries) != 0 || len(f.mailer.sent) != 0 {
		t.Errorf("dry run wrote: saves=%d entries=%d mails=%d", len(f.cursors.saved), len(f.archive.entries), len(f.mailer.sent))
	}
}

func TestRun_SendsAdminReport(t *testing.T) {
	f := newFixture(intPtr(2))
	f.config.AdminTo = "admin@example.com"

	f.run(t)

	if len(f.mailer.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(f.mailer.sent))
	}
	last := f.mailer.sent[1]
	if last.To != "admin@example.com" || last.Subject != "[審議会ウォッチ] 新着 1件" {
		t.Errorf("report = %+v", last)
	}
}

func TestRun_LoadStateErrorAborts(t *testing.T) {
	f := newFixture(nil)
	f.cursors.loadErr = errors.New("bucket unavailable")
	p, err := New(Deps{
		Sources:    f.sources,
		Recipients: f.recipients,
		Fetcher:    f.fetcher,
		Acquirer:   f.acquirer,
		Summarizer: f.summarizer,
		Cursors:    f.cursors,
		Archive:    f.archive,
		Mailer:     f.mailer,
		Ledger:     f.ledger,
	}, f.config)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(t.Context()); err == nil {
		t.Error("Run() expected error")
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}, Config{}); err == nil {
		t.Error("New() with no dependencies should fail")
	}
}
