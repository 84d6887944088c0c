package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kl-higa/public-mtg-monitor2/internal/detect"
	"github.com/kl-higa/public-mtg-monitor2/internal/elasticsearch"
	"github.com/kl-higa/public-mtg-monitor2/internal/mail"
	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/internal/metrics"
	"github.com/kl-higa/public-mtg-monitor2/internal/parser"
	"github.com/kl-higa/public-mtg-monitor2/internal/report"
	"github.com/kl-higa/public-mtg-monitor2/internal/subscriber"
	"github.com/kl-higa/public-mtg-monitor2/internal/summarizer"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// SourceRegistry lists the committees to watch.
type SourceRegistry interface {
	Sources(ctx context.Context) []models.Source
}

// RecipientDirectory returns the subscribers of a source.
type RecipientDirectory interface {
	RecipientsFor(ctx context.Context, sourceName string) ([]models.Recipient, error)
}

// PageFetcher fetches raw page markup. Failures yield "".
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) string
}

// Acquirer obtains PDF text and video transcripts.
type Acquirer interface {
	PDFText(ctx context.Context, pdfURL string) models.Content
	Transcript(ctx context.Context, videoURL string) models.Content
}

// Summarizer generates and gates meeting summaries.
type Summarizer interface {
	Summarize(ctx context.Context, meeting *models.MeetingRecord, agendaText, rosterText, transcript string) string
	Eligible(text string) bool
}

// CursorStore persists the per-source cursor map.
type CursorStore interface {
	LoadState(ctx context.Context) (models.State, error)
	SaveState(ctx context.Context, state models.State) error
}

// ArchiveStore is the append-only meeting history.
type ArchiveStore interface {
	Exists(ctx context.Context, sourceID, meetingNumber int) (bool, error)
	IndexEntry(ctx context.Context, entry models.ArchiveEntry) error
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SentLedger runs send at most once per (page, recipient).
type SentLedger interface {
	Once(ctx context.Context, pageURL, email string, send func() error) (bool, error)
}

// Snapshotter converts a meeting page into archived markdown.
type Snapshotter interface {
	Snapshot(html string) (string, error)
}

// Deps are the collaborators of a Pipeline. Snapshotter is optional.
type Deps struct {
	Sources     SourceRegistry
	Recipients  RecipientDirectory
	Fetcher     PageFetcher
	Acquirer    Acquirer
	Summarizer  Summarizer
	Cursors     CursorStore
	Archive     ArchiveStore
	Mailer      Mailer
	Ledger      SentLedger
	Snapshotter Snapshotter
	Parsers     *parser.Registry
}

// Config holds pipeline configuration.
type Config struct {
	SourceFilter int  // Only run the source with this ID; 0 runs all
	DryRun       bool // Skip mail, archive and cursor writes
	SiteBaseURL  string
	TokenSecret  string // Signs subscriber links for recipients without a token
	AdminTo      string // Run report recipient; empty disables the report
	Location     *time.Location
	Now          func() time.Time // For tests
}

// Pipeline runs one monitoring pass over every source.
type Pipeline struct {
	deps   Deps
	config Config
}

// errNotPublished marks a newcomer whose page is still a stub.
var errNotPublished = errors.New("meeting page not yet published")

// New creates a Pipeline.
func New(deps Deps, config Config) (*Pipeline, error) {
	switch {
	case deps.Sources == nil:
		return nil, fmt.Errorf("source registry is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("page fetcher is required")
	case deps.Acquirer == nil:
		return nil, fmt.Errorf("acquirer is required")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("summarizer is required")
	case deps.Cursors == nil:
		return nil, fmt.Errorf("cursor store is required")
	case deps.Archive == nil:
		return nil, fmt.Errorf("archive store is required")
	case deps.Recipients == nil:
		return nil, fmt.Errorf("recipient directory is required")
	case deps.Mailer == nil:
		return nil, fmt.Errorf("mailer is required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("send ledger is required")
	}
	if deps.Parsers == nil {
		deps.Parsers = parser.NewRegistry()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Pipeline{deps: deps, config: config}, nil
}

// Run processes every source once and returns the run report. Per-source
// failures are recorded in the report; only a state load failure or
// cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	rep := &report.Report{
		RunID:     uuid.NewString(),
		StartedAt: p.config.Now(),
	}

	state, err := p.deps.Cursors.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if state == nil {
		state = models.State{}
	}

	sources := p.deps.Sources.Sources(ctx)
	registered := make(map[string]bool, len(sources))
	for _, src := range sources {
		registered[src.IndexURL] = true
	}

	for _, src := range sources {
		if p.config.SourceFilter != 0 && src.ID != p.config.SourceFilter {
			continue
		}
		if err := ctx.Err(); err != nil {
			rep.FinishedAt = p.config.Now()
			return rep, err
		}

		res := p.runSource(ctx, rep.RunID, state, src, registered)
		slog.Info("source processed",
			"source", src.ID,
			"outcome", res.Outcome,
			"new", len(res.New),
			"skipped", len(res.Skipped),
			"last_id", res.LastID,
		)
		rep.Sources = append(rep.Sources, res)
	}

	rep.FinishedAt = p.config.Now()
	p.sendReport(ctx, rep)
	return rep, nil
}

func (p *Pipeline) runSource(ctx context.Context, runID string, state models.State, src models.Source, registered map[string]bool) report.SourceResult {
	res := report.SourceResult{SourceID: src.ID, Name: src.Name}
	fail := func(reason string) report.SourceResult {
		slog.Warn("source failed", "source", src.ID, "url", src.IndexURL, "reason", reason)
		res.Outcome = report.OutcomeError
		res.Reason = reason
		return res
	}

	pp, err := p.deps.Parsers.For(src.Agency)
	if err != nil {
		return fail(err.Error())
	}

	indexHTML := p.deps.Fetcher.FetchPage(ctx, src.IndexURL)
	if indexHTML == "" {
		return fail("index page fetch failed")
	}

	baseDir := markup.ToDir(src.IndexURL)
	pages := pp.ParseListing(indexHTML, baseDir)
	if len(pages) == 0 {
		return fail("no meetings found on index page")
	}
	if _, ok := pp.(parser.METI); ok {
		logUnregistered(indexHTML, baseDir, src, registered)
	}

	cursor := state.Cursor(src.IndexURL)
	result := detect.DetectNew(pages, cursor)

	if result.Seed {
		date := ""
		if rec := pp.ParseDetail(p.deps.Fetcher.FetchPage(ctx, result.Baseline.URL), result.Baseline.URL); rec != nil {
			date = rec.Date
		}
		detect.Seed(cursor, *result.Baseline, date, p.config.Now())
		if err := p.saveState(ctx, state); err != nil {
			return fail(err.Error())
		}
		slog.Info("source seeded", "source", src.ID, "last_id", *cursor.LastID)
		res.Outcome = report.OutcomeFirstSeed
		res.LastID = *cursor.LastID
		res.LastDate = cursor.LastMeetingDate
		return res
	}

	if len(result.Newcomers) == 0 {
		cursor.LastCheckedAt = p.config.Now()
		if err := p.saveState(ctx, state); err != nil {
			slog.Warn("failed to save state", "source", src.ID, "error", err)
		}
		res.Outcome = report.OutcomeNoUpdate
		res.LastID = lastID(cursor)
		res.LastDate = cursor.LastMeetingDate
		return res
	}

	// Once a newcomer is skipped the cursor stays put so it reappears next run.
	frozen := false
	for _, page := range result.Newcomers {
		delivery, rec, err := p.processMeeting(ctx, runID, src, pp, page)
		if errors.Is(err, errNotPublished) {
			slog.Info("skipping unpublished meeting", "source", src.ID, "meeting", page.ID, "url", page.URL)
			res.Skipped = append(res.Skipped, page.ID)
			frozen = true
			continue
		}
		if err != nil {
			res.LastID = lastID(cursor)
			res.LastDate = cursor.LastMeetingDate
			return fail(fmt.Sprintf("meeting %d: %v", page.ID, err))
		}
		if delivery != nil {
			res.New = append(res.New, *delivery)
		}

		if frozen {
			continue
		}
		detect.Advance(cursor, page, rec.Date, p.config.Now())
		if delivery != nil && delivery.Sent > 0 {
			cursor.LastSent = p.config.Now()
		}
		if err := p.saveState(ctx, state); err != nil {
			res.LastID = lastID(cursor)
			return fail(err.Error())
		}
	}

	if frozen {
		cursor.LastCheckedAt = p.config.Now()
		if err := p.saveState(ctx, state); err != nil {
			slog.Warn("failed to save state", "source", src.ID, "error", err)
		}
	}

	res.Outcome = report.OutcomeNoUpdate
	if len(res.New) > 0 {
		res.Outcome = report.OutcomeNew
	}
	res.LastID = lastID(cursor)
	res.LastDate = cursor.LastMeetingDate
	return res
}

// processMeeting handles one newcomer from page fetch to archive write.
// An already archived meeting returns a nil delivery and no error.
func (p *Pipeline) processMeeting(ctx context.Context, runID string, src models.Source, pp parser.PageParser, page models.MeetingPage) (*report.Delivery, *models.MeetingRecord, error) {
	pageHTML := p.deps.Fetcher.FetchPage(ctx, page.URL)
	rec := pp.ParseDetail(pageHTML, page.URL)
	if !rec.LikelyValid() {
		return nil, nil, errNotPublished
	}

	archived, err := p.deps.Archive.Exists(ctx, src.ID, page.ID)
	if err != nil {
		return nil, rec, fmt.Errorf("failed to check archive: %w", err)
	}
	if archived {
		slog.Info("meeting already archived", "source", src.ID, "meeting", page.ID)
		return nil, rec, nil
	}

	var agendaText, rosterText string
	placeholder := summarizer.NoAgenda
	if a := rec.Agenda(); a != nil {
		agendaText = p.deps.Acquirer.PDFText(ctx, a.URL).Text
		placeholder = summarizer.NoAgendaSeeAgenda
	}
	if r := rec.Roster(); r != nil {
		rosterText = p.deps.Acquirer.PDFText(ctx, r.URL).Text
	}
	agendaBlock := summarizer.AgendaBlock(agendaText, rec.PDFs, placeholder)

	summary, source := p.summarize(ctx, rec, agendaText, rosterText)

	composed := mail.Compose(mail.Meeting{Record: rec, Summary: summary, AgendaBlock: agendaBlock})
	sent := p.deliver(ctx, src, page.URL, composed)

	entry := models.ArchiveEntry{
		SourceID:         src.ID,
		SourceName:       src.Name,
		Agency:           src.Agency,
		MeetingNumber:    page.ID,
		Date:             rec.Date,
		Title:            rec.Title,
		URL:              page.URL,
		YouTube:          rec.YouTube,
		Summary:          summary,
		SummaryChars:     len([]rune(summary)),
		TranscriptSource: source,
		RunID:            runID,
		CreatedAt:        p.config.Now(),
		UpdatedAt:        p.config.Now(),
	}
	if a := rec.Agenda(); a != nil {
		entry.AgendaPDFURL = a.URL
	}
	if r := rec.Roster(); r != nil {
		entry.RosterPDFURL = r.URL
	}
	if p.deps.Snapshotter != nil {
		md, err := p.deps.Snapshotter.Snapshot(pageHTML)
		if err != nil {
			slog.Warn("page snapshot failed", "url", page.URL, "error", err)
		}
		entry.PageMarkdown = md
	}

	if !p.config.DryRun {
		if err := p.deps.Archive.IndexEntry(ctx, entry); err != nil && !errors.Is(err, elasticsearch.ErrAlreadyArchived) {
			return nil, rec, fmt.Errorf("failed to archive meeting: %w", err)
		}
	}

	return &report.Delivery{
		Number:           page.ID,
		Title:            rec.Title,
		URL:              page.URL,
		Sent:             sent,
		Summarized:       summary != "",
		TranscriptSource: string(source),
	}, rec, nil
}

// summarize returns an eligible summary, or "" when none could be produced,
// along with the transcript source tag.
func (p *Pipeline) summarize(ctx context.Context, rec *models.MeetingRecord, agendaText, rosterText string) (string, models.TranscriptSource) {
	if rec.IsReportOnly() {
		return "", models.TranscriptReportOnly
	}

	transcript := p.deps.Acquirer.Transcript(ctx, rec.YouTube)
	if !transcript.Available() {
		if rec.YouTube != "" {
			return "", models.TranscriptPending
		}
		return "", models.TranscriptNone
	}

	source := models.TranscriptSubtitles
	if transcript.ASR {
		source = models.TranscriptASR
	}

	summary := p.deps.Summarizer.Summarize(ctx, rec, agendaText, rosterText, markup.CleanTranscript(transcript.Text))
	if summary == "" {
		return "", source
	}
	metrics.SummaryChars.Observe(float64(len([]rune(summary))))
	if !p.deps.Summarizer.Eligible(summary) {
		slog.Warn("summary rejected by gate", "url", rec.PageURL, "chars", len([]rune(summary)))
		return "", source
	}
	return summary, source
}

// deliver mails composed to every subscriber of src and returns how many
// messages were sent in this run.
func (p *Pipeline) deliver(ctx context.Context, src models.Source, pageURL string, composed mail.Composed) int {
	if p.config.DryRun {
		slog.Info("dry run: mail not sent", "source", src.ID, "subject", composed.Subject)
		return 0
	}

	recipients, err := p.deps.Recipients.RecipientsFor(ctx, src.Name)
	if err != nil {
		slog.Warn("failed to load recipients", "source", src.ID, "error", err)
		return 0
	}

	sent := 0
	for _, r := range recipients {
		if r.Token == "" && p.config.TokenSecret != "" {
			r.Token = subscriber.Token(p.config.TokenSecret, r.Email)
		}
		plain, htmlBody := mail.Personalize(composed, subscriber.LinksFor(p.config.SiteBaseURL, r, src.Name))
		msg := mail.Message{To: r.Email, Subject: composed.Subject, Plain: plain, HTML: htmlBody}

		ok, err := p.deps.Ledger.Once(ctx, pageURL, r.Email, func() error {
			return p.deps.Mailer.Send(ctx, msg)
		})
		if err != nil {
			metrics.MailErrors.Inc()
			slog.Warn("mail delivery failed", "source", src.ID, "to", r.Email, "error", err)
			continue
		}
		if !ok {
			slog.Debug("already sent", "to", r.Email, "url", pageURL)
			continue
		}
		metrics.MailsSent.Inc()
		sent++
	}
	return sent
}

// logUnregistered reports committees linked from an index page that are not
// watched yet.
func logUnregistered(indexHTML, baseDir string, src models.Source, registered map[string]bool) {
	for _, rc := range parser.RelatedCommittees(indexHTML, baseDir, src.IndexURL) {
		if registered[rc.URL] {
			continue
		}
		slog.Info("unregistered related committee", "source", src.ID, "name", rc.Name, "url", rc.URL)
	}
}

func (p *Pipeline) saveState(ctx context.Context, state models.State) error {
	if p.config.DryRun {
		return nil
	}
	if err := p.deps.Cursors.SaveState(ctx, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (p *Pipeline) sendReport(ctx context.Context, rep *report.Report) {
	if p.config.AdminTo == "" || p.config.DryRun {
		return
	}
	err := p.deps.Mailer.Send(ctx, mail.Message{
		To:      p.config.AdminTo,
		Subject: rep.Subject(),
		Plain:   rep.Body(p.config.Location),
	})
	if err != nil {
		slog.Warn("failed to send run report", "error", err)
	}
}

func lastID(c *models.Cursor) int {
	if c == nil || c.LastID == nil {
		return 0
	}
	return *c.LastID
}
