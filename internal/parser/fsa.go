package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// FSA parses pages published by the Financial Services Agency. Meeting pages
// live under one of several directories and are named by their date.
type FSA struct{}

var fsaListingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href="([^"]*/siryou/(\d{8})\.html)"`),
	regexp.MustCompile(`(?i)href="([^"]*/shiryou/(\d{8})\.html)"`),
	regexp.MustCompile(`(?i)href="([^"]*/gijishidai/(\d{8})\.html)"`),
}

var (
	fsaDate    = regexp.MustCompile(`(?i)<li[^>]*?>日時[：:]\s*令和([0-9０-９]+)年([0-9０-９]+)月([0-9０-９]+)日`)
	fsaURLDate = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})\.html$`)
	fsaPDF     = regexp.MustCompile(`(?is)<a[^>]+href="([^"]+\.pdf)"[^>]*?>(.*?)</a>`)
)

// Individual video URLs only. Channel pages are linked from every FSA page.
var fsaYouTubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/watch\?v=[\w\-]+`),
	regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/live/[\w\-]+`),
	regexp.MustCompile(`(?i)https?://youtu\.be/[\w\-]+`),
}

// ParseListing unions the meeting links of all known directories. The ID is
// the YYYYMMDD file name.
func (FSA) ParseListing(html, baseDir string) []models.MeetingPage {
	var pages []models.MeetingPage
	for _, pattern := range fsaListingPatterns {
		for _, m := range pattern.FindAllStringSubmatch(html, -1) {
			id, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			pages = addPage(pages, models.MeetingPage{
				ID:  id,
				URL: markup.AbsoluteURL(baseDir, m[1]),
			})
		}
	}
	return sortDescending(pages)
}

// ParseDetail extracts a meeting page.
func (FSA) ParseDetail(html, pageURL string) *models.MeetingRecord {
	if html == "" {
		return nil
	}
	return &models.MeetingRecord{
		Title:   extractTitle(html),
		Date:    fsaMeetingDate(html, pageURL),
		YouTube: fsaVideo(html),
		PDFs:    extractPDFs(html, pageURL, fsaPDF),
		PageURL: pageURL,
	}
}

func fsaMeetingDate(html, pageURL string) string {
	if m := fsaDate.FindStringSubmatch(html); m != nil {
		era, okY := markup.ParseNumber(m[1])
		month, okM := markup.ParseNumber(m[2])
		day, okD := markup.ParseNumber(m[3])
		if okY && okM && okD {
			return formatDate(markup.EraToGregorian(era), month, day)
		}
	}

	if m := fsaURLDate.FindStringSubmatch(pageURL); m != nil {
		y, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return formatDate(y, month, day)
	}
	return ""
}

func fsaVideo(html string) string {
	for _, pattern := range fsaYouTubePatterns {
		if u := pattern.FindString(html); u != "" && !strings.Contains(u, "/channel/") {
			return u
		}
	}
	return ""
}
