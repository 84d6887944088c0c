// Package detect decides which listed meetings are new for a source.
package detect

import (
	"sort"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Result is the outcome of comparing a listing against a cursor.
type Result struct {
	// Seed is set when the source has never been seen. Baseline then holds
	// the newest page and Newcomers is empty.
	Seed      bool
	Baseline  *models.MeetingPage
	Newcomers []models.MeetingPage
}

// DetectNew returns the pages newer than the cursor, oldest first.
func DetectNew(pages []models.MeetingPage, cursor *models.Cursor) Result {
	if len(pages) == 0 {
		return Result{}
	}

	if cursor == nil || cursor.LastID == nil {
		newest := pages[0]
		for _, p := range pages[1:] {
			if p.ID > newest.ID {
				newest = p
			}
		}
		return Result{Seed: true, Baseline: &newest}
	}

	last := *cursor.LastID
	var newcomers []models.MeetingPage
	for _, p := range pages {
		if p.ID > last {
			newcomers = append(newcomers, p)
		}
	}
	sort.Slice(newcomers, func(i, j int) bool { return newcomers[i].ID < newcomers[j].ID })
	return Result{Newcomers: newcomers}
}

// Seed sets the cursor baseline. It leaves an existing LastID alone.
func Seed(cursor *models.Cursor, baseline models.MeetingPage, meetingDate string, now time.Time) {
	if cursor.LastID == nil {
		id := baseline.ID
		cursor.LastID = &id
		cursor.LastURL = baseline.URL
	}
	cursor.LastMeetingDate = meetingDate
	cursor.LastCheckedAt = now
}

// Advance moves the cursor to page after it has been fully handled.
// It never moves the cursor backwards and reports whether it moved.
func Advance(cursor *models.Cursor, page models.MeetingPage, meetingDate string, now time.Time) bool {
	cursor.LastCheckedAt = now
	if cursor.LastID != nil && page.ID <= *cursor.LastID {
		return false
	}
	id := page.ID
	cursor.LastID = &id
	cursor.LastURL = page.URL
	if meetingDate != "" {
		cursor.LastMeetingDate = meetingDate
	}
	return true
}
