package models

import (
	"regexp"
	"time"
)

// Source is one monitored committee listing page.
type Source struct {
	ID       int    `json:"id"`
	Agency   string `json:"agency"`
	Name     string `json:"name"`
	IndexURL string `json:"index_url"`
	Active   bool   `json:"active"`
	Note     string `json:"note,omitempty"`
}

// MeetingPage is a single entry found on a committee listing page.
// ID is comparable across runs: higher means more recent.
type MeetingPage struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// Reference types parsed from attachment labels.
const (
	RefTypeMaterial      = "資料"
	RefTypeSupplementary = "参考資料"
)

// PdfAttachment is a PDF linked from a meeting page.
type PdfAttachment struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	IsAgenda bool   `json:"is_agenda"`
	IsRoster bool   `json:"is_roster"`
	RefType  string `json:"ref_type,omitempty"`
	RefNo    *int   `json:"ref_no,omitempty"`
}

// MeetingRecord holds the details extracted from one meeting page.
type MeetingRecord struct {
	Title   string          `json:"title"`
	Date    string          `json:"date"`
	YouTube string          `json:"youtube,omitempty"`
	PDFs    []PdfAttachment `json:"pdfs"`
	PageURL string          `json:"page_url"`
}

var reportTitlePattern = regexp.MustCompile(`取りまとめ|まとめ|報告書|中間整理`)

// LikelyValid reports whether the page looks published rather than a stub.
func (m *MeetingRecord) LikelyValid() bool {
	if m == nil {
		return false
	}
	return m.YouTube != "" || len(m.PDFs) >= 2
}

// IsReportOnly reports whether the page announces a published report
// instead of a recorded session.
func (m *MeetingRecord) IsReportOnly() bool {
	if m == nil {
		return false
	}
	return reportTitlePattern.MatchString(m.Title)
}

// Agenda returns the first agenda attachment, or nil.
func (m *MeetingRecord) Agenda() *PdfAttachment {
	for i := range m.PDFs {
		if m.PDFs[i].IsAgenda {
			return &m.PDFs[i]
		}
	}
	return nil
}

// Roster returns the first member roster attachment, or nil.
func (m *MeetingRecord) Roster() *PdfAttachment {
	for i := range m.PDFs {
		if m.PDFs[i].IsRoster {
			return &m.PDFs[i]
		}
	}
	return nil
}

// Cursor is the per-source high-water mark used to decide what is new.
type Cursor struct {
	LastID          *int      `json:"last_id,omitempty"`
	LastURL         string    `json:"last_url,omitempty"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
	LastSent        time.Time `json:"last_sent"`
	LastMeetingDate string    `json:"last_meeting_date,omitempty"`
	PendingSummary  *string   `json:"pending_summary"`
}

// State maps a source index URL to its cursor.
type State map[string]*Cursor

// Cursor returns the cursor for indexURL, creating an empty one if needed.
func (s State) Cursor(indexURL string) *Cursor {
	c, ok := s[indexURL]
	if !ok || c == nil {
		c = &Cursor{}
		s[indexURL] = c
	}
	return c
}

// ContentStatus describes why a piece of acquired content is or is not present.
type ContentStatus string

const (
	ContentOK            ContentStatus = "ok"
	ContentUnavailable   ContentStatus = "unavailable"
	ContentNotApplicable ContentStatus = "not_applicable"
)

// Content is text obtained from the processing service.
type Content struct {
	Text   string
	Status ContentStatus
	Pages  int
	// ASR is set when the transcript came from speech recognition rather than published subtitles.
	ASR bool
}

// Available reports whether the content carries usable text.
func (c Content) Available() bool {
	return c.Status == ContentOK && c.Text != ""
}

// Recipient is a mail subscriber.
type Recipient struct {
	Email   string `json:"email"`
	Status  string `json:"status"`
	Sources string `json:"sources"` // "*" or a comma-separated list of source names
	Token   string `json:"token"`
}

// RecipientActive is the only status that receives mail.
const RecipientActive = "active"
