package summarizer

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Per-topic caps applied when a summary is over budget.
const (
	MaxCommentsPerTopic = 2
	MaxBulletsPerTopic  = 3
)

// TruncationMarker is appended when a summary had to be cut.
const TruncationMarker = "\n...(以下略)"

const staffPrefix = "・事務局対応："

var (
	topicHeader   = regexp.MustCompile(`^[0-9０-９]+[\.．]`)
	longStaffLine = regexp.MustCompile(`・事務局対応：(.{60,})`)
)

type lineKind int

const (
	kindOther lineKind = iota
	kindHeader
	kindSectionEnd
	kindBullet
	kindComment
	kindStaff
)

func classify(line string) lineKind {
	t := strings.TrimSpace(line)
	switch {
	case topicHeader.MatchString(t):
		return kindHeader
	case strings.HasPrefix(t, "■"), strings.HasPrefix(t, "────"):
		return kindSectionEnd
	case strings.HasPrefix(t, staffPrefix):
		return kindStaff
	case strings.HasPrefix(t, "・"):
		if i := strings.Index(t, "："); i > 0 {
			speaker := t[:i]
			if strings.Contains(speaker, "委員") || strings.Contains(speaker, "オブザーバー") {
				return kindComment
			}
		}
		return kindBullet
	}
	return kindOther
}

// ForceReduce shortens text to at most maxChars runes. Stages run in order
// and stop as soon as the text fits:
//
//  1. keep at most MaxCommentsPerTopic member comments per topic
//  2. keep at most MaxBulletsPerTopic content bullets per topic
//  3. cut long staff responses to 40 runes
//  4. hard truncation with TruncationMarker
//
// Text already within budget is returned unchanged. The last stage does not
// repair structure: a cut may fall inside a line or section.
func ForceReduce(text string, maxChars int) string {
	if runeLen(text) <= maxChars {
		return text
	}

	stages := []struct {
		name string
		fn   func(string) string
	}{
		{"limit comments", func(s string) string { return capPerTopic(s, kindComment, MaxCommentsPerTopic) }},
		{"limit bullets", func(s string) string { return capPerTopic(s, kindBullet, MaxBulletsPerTopic) }},
		{"shorten staff responses", shortenStaffResponses},
	}

	for _, stage := range stages {
		text = stage.fn(text)
		n := runeLen(text)
		slog.Debug("summary reduction stage", "stage", stage.name, "chars", n, "max", maxChars)
		if n <= maxChars {
			return text
		}
	}

	slog.Warn("summary still over budget, truncating", "chars", runeLen(text), "max", maxChars)
	return truncate(text, maxChars)
}

// capPerTopic drops lines of kind beyond the first limit inside each numbered topic.
// A topic runs from its "N." header to the next header, section mark or rule line.
func capPerTopic(text string, kind lineKind, limit int) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inTopic := false
	count := 0

	for _, line := range lines {
		k := classify(line)
		switch k {
		case kindHeader:
			inTopic = true
			count = 0
		case kindSectionEnd:
			inTopic = false
		}
		if inTopic && k == kind {
			count++
			if count > limit {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func shortenStaffResponses(text string) string {
	return longStaffLine.ReplaceAllStringFunc(text, func(m string) string {
		body := []rune(strings.TrimPrefix(m, staffPrefix))
		return staffPrefix + string(body[:40]) + "..."
	})
}

func truncate(text string, maxChars int) string {
	if runeLen(text) <= maxChars {
		return text
	}
	keep := maxChars - runeLen(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	r := []rune(text)
	if keep > len(r) {
		keep = len(r)
	}
	return string(r[:keep]) + TruncationMarker
}

var trailingRule = regexp.MustCompile(`────+\s*$`)

// PostProcess normalizes line endings, drops a trailing rule line and
// strips emphasis markers.
func PostProcess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingRule.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
