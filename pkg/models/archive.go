package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TranscriptSource tags which transcript fed the summary.
type TranscriptSource string

const (
	TranscriptSubtitles  TranscriptSource = "subtitles"
	TranscriptASR        TranscriptSource = "asr"
	TranscriptReportOnly TranscriptSource = "report-only"
	TranscriptPending    TranscriptSource = "asr-pending"
	TranscriptNone       TranscriptSource = "none"
)

// ArchiveEntry is the append-only history row for one processed meeting.
type ArchiveEntry struct {
	ID               string           `json:"id"`
	SourceID         int              `json:"source_id"`
	SourceName       string           `json:"source_name"`
	Agency           string           `json:"agency"`
	MeetingNumber    int              `json:"meeting_number"`
	Date             string           `json:"date"`
	Title            string           `json:"title"`
	URL              string           `json:"url"`
	YouTube          string           `json:"youtube,omitempty"`
	AgendaPDFURL     string           `json:"agenda_pdf_url,omitempty"`
	RosterPDFURL     string           `json:"roster_pdf_url,omitempty"`
	Summary          string           `json:"summary"`
	SummaryChars     int              `json:"summary_chars"`
	TranscriptSource TranscriptSource `json:"transcript_source"`
	PageMarkdown     string           `json:"page_markdown,omitempty"` // Snapshot of the meeting page
	RunID            string           `json:"run_id"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ArchiveID creates a deterministic ID from the (source, meeting) pair.
// The ID is a SHA-256 hash (first 16 chars) of "sourceID:meetingNumber".
func ArchiveID(sourceID, meetingNumber int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", sourceID, meetingNumber)))
	return hex.EncodeToString(hash[:])[:16]
}
