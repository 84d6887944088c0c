// Package markup holds the pure text helpers shared by the page parsers:
// tag stripping, digit normalization, URL resolution and attachment labelling.
package markup

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
	"golang.org/x/net/html"
)

// ReiwaOffset converts a Reiwa era year to the Gregorian year.
const ReiwaOffset = 2018

// StripTags removes markup from s, decodes entities and trims the result.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(strings.ReplaceAll(b.String(), "\u00a0", " "))
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// NormalizeDigits converts full-width digits to ASCII.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return r - '０' + '0'
		}
		return r
	}, s)
}

// ParseNumber parses a possibly full-width integer.
func ParseNumber(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(NormalizeDigits(s)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// EraToGregorian converts a Reiwa year (令和N年) to a Gregorian year.
func EraToGregorian(eraYear int) int {
	return eraYear + ReiwaOffset
}

// ToDir returns the directory part of a page URL, with a trailing slash.
func ToDir(pageURL string) string {
	if i := strings.IndexAny(pageURL, "#?"); i >= 0 {
		pageURL = pageURL[:i]
	}
	if i := strings.LastIndex(pageURL, "/"); i >= 0 {
		return pageURL[:i+1]
	}
	return pageURL
}

// AbsoluteURL resolves href against baseDir.
func AbsoluteURL(baseDir, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base, err := url.Parse(baseDir)
	if err != nil {
		return baseDir + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return baseDir + href
	}
	return base.ResolveReference(ref).String()
}

var (
	refNoPattern = regexp.MustCompile(`(?:参考資料|資料|別添|別紙|参考|議事録)[\s　]*([0-9０-９]+)`)
	agendaLabel  = regexp.MustCompile(`議事次第|次第`)
	rosterLabel  = regexp.MustCompile(`委員名簿|名簿`)
)

// ClassifyAttachment labels a PDF link from its visible text.
// The flags are independent: an attachment may be both an agenda and a reference.
func ClassifyAttachment(pdfURL, label string) models.PdfAttachment {
	att := models.PdfAttachment{
		URL:      pdfURL,
		Title:    label,
		IsAgenda: agendaLabel.MatchString(label),
		IsRoster: rosterLabel.MatchString(label),
	}

	switch {
	case strings.Contains(label, models.RefTypeMaterial) && !strings.Contains(label, models.RefTypeSupplementary):
		att.RefType = models.RefTypeMaterial
	case strings.Contains(label, models.RefTypeSupplementary):
		att.RefType = models.RefTypeSupplementary
	}

	if att.RefType != "" {
		if m := refNoPattern.FindStringSubmatch(label); m != nil {
			if n, ok := ParseNumber(m[1]); ok {
				att.RefNo = &n
			}
		}
	}
	return att
}

var transcriptNoise = regexp.MustCompile(`\[音楽\]`)
var whitespaceRun = regexp.MustCompile(`[\s　]+`)

// CleanTranscript drops caption noise markers and collapses whitespace.
func CleanTranscript(s string) string {
	if s == "" {
		return ""
	}
	s = transcriptNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
