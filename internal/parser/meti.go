package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// METI parses pages published by the Ministry of Economy, Trade and Industry
// and the Agency for Natural Resources and Energy.
type METI struct{}

var (
	// METI index pages write href as the first attribute of meeting links.
	// Anchors with href later in the tag are navigation and are not matched.
	metiListingLink = regexp.MustCompile(`(?is)<a\s+href="([^"]*/)?(\d+)\.html"[^>]*?>(.*?)</a>`)
	metiRound       = regexp.MustCompile(`第\s*([0-9０-９]+)\s*回`)
	metiDate        = regexp.MustCompile(`<p>(\d{4})年(\d{1,2})月(\d{1,2})日</p>`)
	metiReiwaDate   = regexp.MustCompile(`令和(\d+)年(\d{1,2})月(\d{1,2})日`)
	metiYouTube     = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:youtube\.com/(?:watch\?v=|live/)|youtu\.be/)[\w\-]+`)
	metiYouTubeBare = regexp.MustCompile(`(?i)youtube\.com/(?:watch\?v=|live/)[\w\-]+`)
	metiPDF         = regexp.MustCompile(`(?is)<a\s+href="([^"]+\.pdf)"[^>]*?>(.*?)</a>`)
)

// updatedMarkers identify page-maintenance timestamps that must not be taken
// for the meeting date.
var updatedMarkers = []string{"最終更新日", "更新日"}

// dateContextRunes is how far around a date candidate to look for updatedMarkers.
const dateContextRunes = 100

// ParseListing finds links to numbered meeting pages. The ID is the round
// number from "第N回" in the link text, or the file number otherwise.
func (METI) ParseListing(html, baseDir string) []models.MeetingPage {
	var pages []models.MeetingPage
	for _, m := range metiListingLink.FindAllStringSubmatch(html, -1) {
		relDir, fileNum, text := m[1], m[2], m[3]

		raw := fileNum
		if r := metiRound.FindStringSubmatch(text); r != nil {
			raw = r[1]
		}
		id, ok := markup.ParseNumber(raw)
		if !ok {
			continue
		}
		pages = addPage(pages, models.MeetingPage{
			ID:  id,
			URL: markup.AbsoluteURL(baseDir, relDir+fileNum+".html"),
		})
	}
	return sortDescending(pages)
}

// ParseDetail extracts a meeting page.
func (METI) ParseDetail(html, pageURL string) *models.MeetingRecord {
	if html == "" {
		return nil
	}
	return &models.MeetingRecord{
		Title:   extractTitle(html),
		Date:    metiMeetingDate(html),
		YouTube: metiVideo(html),
		PDFs:    extractPDFs(html, pageURL, metiPDF),
		PageURL: pageURL,
	}
}

func metiMeetingDate(html string) string {
	for _, loc := range metiDate.FindAllStringSubmatchIndex(html, -1) {
		window := around(html, loc[0], loc[1], dateContextRunes)
		if containsAny(window, updatedMarkers) {
			continue
		}
		y, _ := strconv.Atoi(html[loc[2]:loc[3]])
		m, _ := strconv.Atoi(html[loc[4]:loc[5]])
		d, _ := strconv.Atoi(html[loc[6]:loc[7]])
		return formatDate(y, m, d)
	}

	if m := metiReiwaDate.FindStringSubmatch(html); m != nil {
		era, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return formatDate(markup.EraToGregorian(era), month, day)
	}
	return ""
}

func metiVideo(html string) string {
	if u := metiYouTube.FindString(html); u != "" {
		return u
	}
	if u := metiYouTubeBare.FindString(html); u != "" {
		return "https://www.youtube.com" + u[len("youtube.com"):]
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
