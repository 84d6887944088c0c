// Package parser extracts meeting listings and meeting details from agency
// committee pages. Each publishing agency has its own page template, so each
// gets its own PageParser; the Registry picks one per source.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Agency identifiers as they appear in the source registry.
const (
	AgencyMETI         = "経済産業省"
	AgencyEnecho       = "資源エネルギー庁"
	AgencyFSA          = "金融庁"
	AgencyUnclassified = "未分類"
)

// PageParser turns raw page markup into listings and meeting records.
type PageParser interface {
	// ParseListing returns the meetings linked from a committee index page,
	// unique by ID and sorted by ID descending.
	ParseListing(html, baseDir string) []models.MeetingPage
	// ParseDetail extracts a meeting page. It returns nil for empty input.
	ParseDetail(html, pageURL string) *models.MeetingRecord
}

// Registry maps agencies to their parser.
type Registry struct {
	parsers map[string]PageParser
}

// NewRegistry returns the registry of supported agencies.
// Sources without an agency are treated like METI pages.
func NewRegistry() *Registry {
	meti := METI{}
	return &Registry{parsers: map[string]PageParser{
		AgencyMETI:         meti,
		AgencyEnecho:       meti,
		AgencyUnclassified: meti,
		AgencyFSA:          FSA{},
	}}
}

// For returns the parser for agency.
func (r *Registry) For(agency string) (PageParser, error) {
	if agency == "" {
		agency = AgencyUnclassified
	}
	p, ok := r.parsers[agency]
	if !ok {
		return nil, fmt.Errorf("no parser for agency %q", agency)
	}
	return p, nil
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*?>(.*?)</title>`)

func extractTitle(html string) string {
	if m := titlePattern.FindStringSubmatch(html); m != nil {
		return markup.StripTags(m[1])
	}
	return ""
}

// extractPDFs collects every PDF anchor matched by pattern. The pattern must
// capture the href in group 1 and the link body in group 2.
func extractPDFs(html, pageURL string, pattern *regexp.Regexp) []models.PdfAttachment {
	baseDir := markup.ToDir(pageURL)
	var pdfs []models.PdfAttachment
	for _, m := range pattern.FindAllStringSubmatch(html, -1) {
		label := markup.StripTags(m[2])
		pdfs = append(pdfs, markup.ClassifyAttachment(markup.AbsoluteURL(baseDir, m[1]), label))
	}
	return pdfs
}

// addPage appends p unless its ID is zero or already present.
func addPage(pages []models.MeetingPage, p models.MeetingPage) []models.MeetingPage {
	if p.ID == 0 {
		return pages
	}
	for _, existing := range pages {
		if existing.ID == p.ID {
			return pages
		}
	}
	return append(pages, p)
}

func sortDescending(pages []models.MeetingPage) []models.MeetingPage {
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID > pages[j].ID })
	return pages
}

func formatDate(year, month, day int) string {
	return fmt.Sprintf("%d年%d月%d日", year, month, day)
}

// around returns s[start:end] widened by n runes on each side.
func around(s string, start, end, n int) string {
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	for i := 0; i < n && end < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[start:end]
}
