// Package mail composes and sends meeting notification mail.
package mail

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/subscriber"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Subject tags.
const (
	TagSummary  = "会議要約"
	TagReport   = "レポート"
	TagDetected = "会議検知"
)

const (
	maxSubjectTitle = 50
	undated         = "日付未記載"
	ruleLine        = "────────────────────────────"
	preheaderRunes  = 100

	// Disclaimer is appended to every meeting mail.
	Disclaimer = "本内容はAIにより作成しているため元動画・資料での最終確認をお願いいたします。本サービスはβ版のため随時アップデートしているとともに予告なく終了する場合があります。"

	reportNote = "※本メールは「資料公開（取りまとめ等）」の検知です。会議開催・動画配信は確認できないため、文字起こし・要約は行いません。PDF本文をご確認ください。"
	fsaNote    = "※金融庁会議です。YouTube動画がないため資料公開の通知のみとなります。議事要旨公開後（1-2ヶ月後）に要約を配信予定です。"
)

var (
	trailingRule = regexp.MustCompile(`────+\s*$`)
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// Meeting is the input to Compose.
type Meeting struct {
	Record      *models.MeetingRecord
	Summary     string // Empty when no eligible summary exists
	AgendaBlock string
}

// Composed is a meeting mail before per-recipient footers are added.
type Composed struct {
	Subject string
	Plain   string
	HTML    string
}

// Compose builds the subject and bodies for a meeting mail. Without a
// summary the fallback template is used.
func Compose(m Meeting) Composed {
	rec := m.Record
	report := rec.IsReportOnly()
	summary := strings.TrimSpace(m.Summary)

	tag := TagDetected
	switch {
	case summary != "":
		tag = TagSummary
	case report:
		tag = TagReport
	}

	body := summary
	if body == "" {
		body = fallbackBody(rec, m.AgendaBlock, report)
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSpace(trailingRule.ReplaceAllString(body, ""))

	links := linksBlock(rec)
	plain := body + "\n\n" + links + "\n\n" + Disclaimer

	return Composed{
		Subject: Subject(tag, rec.Title, rec.Date),
		Plain:   plain,
		HTML:    renderHTML(rec, body, links),
	}
}

// Subject returns "[tag] title（date）" with the title cut to 50 characters.
func Subject(tag, title, date string) string {
	if r := []rune(title); len(r) > maxSubjectTitle {
		title = string(r[:maxSubjectTitle]) + "..."
	}
	if date == "" {
		date = undated
	}
	return fmt.Sprintf("[%s] %s（%s）", tag, title, date)
}

func fallbackBody(rec *models.MeetingRecord, agendaBlock string, report bool) string {
	date := rec.Date
	if date == "" {
		date = "（記載なし）"
	}
	if agendaBlock == "" {
		agendaBlock = "（議題未検出：議事次第PDFの取得/OCRに失敗）"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "■%s\n%s\n■開催概要\n・日時：%s\n・形式：記載なし\n・出席者：委員名簿：(リンクは本文末)\n%s\n■議題\n%s\n",
		rec.Title, ruleLine, date, ruleLine, agendaBlock)

	if !report {
		fmt.Fprintf(&b, "%s\n■座長まとめ\n・（未記載）\n\n（文字起こし取得後にサマリを再送します）\n", ruleLine)
	}

	switch {
	case report:
		b.WriteString("\n" + reportNote)
	case rec.YouTube == "" && strings.Contains(rec.PageURL, "fsa.go.jp"):
		b.WriteString("\n" + fsaNote)
	}
	return b.String()
}

func linksBlock(rec *models.MeetingRecord) string {
	lines := []string{"■リンク", "・会議ページ：" + rec.PageURL}
	if rec.YouTube != "" {
		lines = append(lines, "・動画："+rec.YouTube)
	}
	if a := rec.Agenda(); a != nil {
		lines = append(lines, "・議事次第："+a.URL)
	}
	if r := rec.Roster(); r != nil {
		lines = append(lines, "・委員名簿："+r.URL)
	}
	return strings.Join(lines, "\n")
}

// Preheader returns the first content line of body, cut to 100 characters.
func Preheader(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "■") || strings.HasPrefix(line, "────") {
			continue
		}
		if r := []rune(line); len(r) > preheaderRunes {
			return string(r[:preheaderRunes])
		}
		return line
	}
	return ""
}

func autoLink(escaped string) string {
	return urlPattern.ReplaceAllString(escaped, `<a href="$0" style="color:#667eea; text-decoration:underline;">$0</a>`)
}

// RenderSummaryHTML renders plain summary lines: "■" lines become headings,
// rule lines become <hr>, other non-blank lines become paragraphs.
func RenderSummaryHTML(plain string) string {
	var b strings.Builder
	for _, line := range strings.Split(plain, "\n") {
		switch {
		case strings.HasPrefix(line, "■"):
			fmt.Fprintf(&b, `<h2 style="font-size:16px; font-weight:bold; margin:20px 0 10px; color:#111;">%s</h2>`, html.EscapeString(line))
		case strings.HasPrefix(line, "────"):
			b.WriteString(`<hr style="margin:10px 0; border:none; border-top:1px solid #e5e7eb;">`)
		case strings.TrimSpace(line) != "":
			fmt.Fprintf(&b, `<p style="margin:6px 0; line-height:1.6;">%s</p>`, html.EscapeString(line))
		}
	}
	return b.String()
}

func renderHTML(rec *models.MeetingRecord, body, links string) string {
	preheader := Preheader(body)
	if preheader == "" {
		preheader = rec.Title + " の要約"
	}
	linkLines := strings.TrimPrefix(links, "■リンク\n")

	var b strings.Builder
	b.WriteString(`<div style="font-family:system-ui,Meiryo,Segoe UI,Roboto,sans-serif; line-height:1.7; color:#111;">`)
	fmt.Fprintf(&b, `<div style="font-size:0;opacity:0;height:0;line-height:0;display:none;visibility:hidden;">%s</div>`, html.EscapeString(preheader))
	b.WriteString(RenderSummaryHTML(body))
	b.WriteString(`<hr style="margin:20px 0;border:none;border-top:1px solid #e5e7eb;">`)
	fmt.Fprintf(&b, `<div style="margin-top:20px; font-size:14px; color:#111;"><strong>■リンク</strong><br>%s</div>`,
		strings.ReplaceAll(autoLink(html.EscapeString(linkLines)), "\n", "<br>"))
	fmt.Fprintf(&b, `<p style="margin-top:16px; font-size:12px; color:#666;">%s</p>`, html.EscapeString(Disclaimer))
	b.WriteString(`</div>`)
	return b.String()
}

// Personalize appends the recipient footer to both bodies.
func Personalize(c Composed, links subscriber.Links) (plain, htmlBody string) {
	if links == (subscriber.Links{}) {
		return c.Plain, c.HTML
	}

	plain = c.Plain + fmt.Sprintf("\n\n――――――――――――\n配信設定: 停止 %s\n再登録: %s\n監視対象会議: %s\n",
		links.Unsubscribe, links.Resubscribe, links.Sources)

	a := func(href, label string) string {
		return fmt.Sprintf(`<a href="%s" style="color:#667eea; text-decoration:underline; margin:0 10px;">%s</a>`, html.EscapeString(href), label)
	}
	footer := `<div style="margin-top:40px; padding-top:20px; border-top:2px solid #eee; text-align:center; font-size:13px; color:#666;"><p style="margin:10px 0;">` +
		a(links.Unsubscribe, "配信停止") + " | " + a(links.Resubscribe, "再登録") + " | " + a(links.Sources, "監視対象会議") +
		`</p></div>`
	return plain, c.HTML + footer
}
