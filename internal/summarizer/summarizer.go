// Package summarizer turns a meeting transcript into a length-bounded,
// fixed-format summary.
//
// The transcript is split into chunks, each chunk is digested by the model,
// and the merged digest is rewritten into the final template together with
// the agenda and member roster. Output over the character budget is reduced
// deterministically by ForceReduce.
package summarizer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Generator produces text for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds summarization limits. Lengths are counted in runes.
type Config struct {
	MaxCharsPerChunk int
	MinChars         int
	MaxChars         int
	SourceTextLimit  int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxCharsPerChunk: 50000,
		MinChars:         500,
		MaxChars:         2500,
		SourceTextLimit:  8000,
	}
}

// Summarizer produces meeting summaries.
type Summarizer struct {
	gen    Generator
	config Config
}

// New creates a Summarizer. Zero config values fall back to DefaultConfig.
func New(gen Generator, cfg Config) *Summarizer {
	def := DefaultConfig()
	if cfg.MaxCharsPerChunk <= 0 {
		cfg.MaxCharsPerChunk = def.MaxCharsPerChunk
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = def.MinChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.SourceTextLimit <= 0 {
		cfg.SourceTextLimit = def.SourceTextLimit
	}
	return &Summarizer{gen: gen, config: cfg}
}

// Summarize returns the final summary, or "" if no summary could be produced.
// A failed chunk is skipped; the summary fails only when every chunk fails
// or the final request fails.
func (s *Summarizer) Summarize(ctx context.Context, meeting *models.MeetingRecord, agendaText, rosterText, transcript string) string {
	if meeting == nil || strings.TrimSpace(transcript) == "" {
		return ""
	}

	chunks := Chunk(transcript, s.config.MaxCharsPerChunk)
	slog.Debug("summarizing transcript", "title", meeting.Title, "chars", runeLen(transcript), "chunks", len(chunks))

	var partials []string
	for i, chunk := range chunks {
		out, err := s.gen.Complete(ctx, partialPrompt(i+1, len(chunks), chunk))
		if err != nil {
			slog.Warn("partial summary failed", "chunk", i+1, "of", len(chunks), "error", err)
			continue
		}
		if out = strings.TrimSpace(out); out != "" {
			partials = append(partials, out)
		}
	}
	if len(partials) == 0 {
		slog.Warn("no partial summaries produced", "title", meeting.Title)
		return ""
	}

	strict := ExtractAgendaStrict(agendaText)
	block := strict
	if block == "" {
		block = AgendaBlock(agendaText, meeting.PDFs, NoAgendaSeeAgenda)
	}

	final, err := s.gen.Complete(ctx, finalPrompt(finalPromptInput{
		Meeting:      meeting,
		StrictAgenda: strict,
		AgendaBlock:  block,
		AgendaText:   agendaText,
		RosterText:   rosterText,
		Digest:       strings.Join(partials, "\n"),
		SourceLimit:  s.config.SourceTextLimit,
	}))
	if err != nil {
		slog.Warn("final summary failed", "title", meeting.Title, "error", err)
		return ""
	}

	final = strings.ReplaceAll(final, "\r\n", "\n")
	if n := runeLen(final); n > s.config.MaxChars {
		slog.Info("summary over budget, reducing", "title", meeting.Title, "chars", n, "max", s.config.MaxChars)
		final = ForceReduce(final, s.config.MaxChars)
	}
	return PostProcess(final)
}

// Eligible reports whether text passes the send gate with this summarizer's limits.
func (s *Summarizer) Eligible(text string) bool {
	return Eligible(text, s.config.MinChars, s.config.MaxChars)
}

// Chunk splits text into consecutive pieces of at most maxChars runes.
// Boundaries ignore sentences and may fall mid-word.
func Chunk(text string, maxChars int) []string {
	r := []rune(text)
	if maxChars <= 0 || len(r) <= maxChars {
		if len(r) == 0 {
			return nil
		}
		return []string{text}
	}
	chunks := make([]string, 0, len(r)/maxChars+1)
	for i := 0; i < len(r); i += maxChars {
		end := min(i+maxChars, len(r))
		chunks = append(chunks, string(r[i:end]))
	}
	return chunks
}
