package summarizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Placeholders used when no agenda could be derived.
const (
	NoAgenda           = "（議題未検出）"
	NoAgendaSeeAgenda  = "（議題未検出：議事次第PDFをご確認ください）"
	missingRefNoWeight = 999
)

var (
	agendaStart   = regexp.MustCompile(`^[0-9０-９]+[\s　]*[\.．]?[\s　]*議事`)
	agendaStop    = regexp.MustCompile(`^[0-9０-９]+[\s　]*[\.．]?[\s　]*配付資料`)
	agendaItem    = regexp.MustCompile(`^[\(（][0-9０-９]+[\)）]|^[0-9０-９]+[\.．]|^・|^‣|^－`)
	leadingNumber = regexp.MustCompile(`^([0-9０-９]+)[\s　]*[\.．:：]?[\s　]*`)
	looseItem     = regexp.MustCompile(`^[0-9０-９]+[\s\.．・]+.{2,}`)
)

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ExtractAgendaStrict returns the sub-items of the "N. 議事" section of an
// agenda document, stopping at "N. 配付資料". Numbered items are rewritten
// as "N. title". It returns "" when no section or no items are found.
func ExtractAgendaStrict(agendaText string) string {
	if runeLen(agendaText) < 10 {
		return ""
	}

	var items []string
	capturing := false
	for _, line := range nonEmptyLines(agendaText) {
		if agendaStop.MatchString(line) {
			break
		}
		if agendaStart.MatchString(line) {
			capturing = true
			continue
		}
		if capturing && agendaItem.MatchString(line) {
			items = append(items, normalizeItemNumber(line))
		}
	}
	return strings.Join(items, "\n")
}

func normalizeItemNumber(line string) string {
	m := leadingNumber.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	return markup.NormalizeDigits(m[1]) + ". " + line[len(m[0]):]
}

// ExtractAgendaLoose returns every line that starts with a number followed by
// punctuation and at least two more characters.
func ExtractAgendaLoose(agendaText string) string {
	var items []string
	for _, line := range nonEmptyLines(agendaText) {
		if looseItem.MatchString(line) {
			items = append(items, line)
		}
	}
	return strings.Join(items, "\n")
}

// AgendaFromAttachments builds a pseudo agenda from numbered material and
// supplementary attachments, materials first and each group by number.
// It returns "" when no attachment qualifies.
func AgendaFromAttachments(pdfs []models.PdfAttachment) string {
	var refs []models.PdfAttachment
	for _, p := range pdfs {
		if (p.RefType == models.RefTypeMaterial && p.RefNo != nil) || p.RefType == models.RefTypeSupplementary {
			refs = append(refs, p)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.RefType != b.RefType {
			return a.RefType == models.RefTypeMaterial
		}
		return refWeight(a) < refWeight(b)
	})

	lines := make([]string, 0, len(refs))
	for i, p := range refs {
		no := ""
		if p.RefNo != nil {
			no = fmt.Sprint(*p.RefNo)
		}
		lines = append(lines, fmt.Sprintf("%d．%s【%s%s】", i+1, p.Title, p.RefType, no))
	}
	return strings.Join(lines, "\n")
}

func refWeight(p models.PdfAttachment) int {
	if p.RefNo == nil {
		return missingRefNoWeight
	}
	return *p.RefNo
}

// AgendaBlock picks the best available agenda: strict extraction, then loose
// extraction, then attachments. placeholder is returned when all are empty.
func AgendaBlock(agendaText string, pdfs []models.PdfAttachment, placeholder string) string {
	for _, block := range []string{
		ExtractAgendaStrict(agendaText),
		ExtractAgendaLoose(agendaText),
		AgendaFromAttachments(pdfs),
	} {
		if block != "" {
			return block
		}
	}
	return placeholder
}
