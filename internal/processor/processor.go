// Package processor turns meeting pages into Markdown snapshots for the archive.
package processor

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// DefaultMaxRunes caps snapshot length.
const DefaultMaxRunes = 20000

// Processor converts meeting page HTML to Markdown.
type Processor struct {
	maxRunes int
}

// New creates a processor. maxRunes <= 0 uses DefaultMaxRunes.
func New(maxRunes int) *Processor {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &Processor{maxRunes: maxRunes}
}

// Snapshot converts the main content of a page to Markdown, cut to the
// configured length. Pages without a main element are converted whole.
func (p *Processor) Snapshot(htmlContent string) (string, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(mainContent(htmlContent))
	if err != nil {
		return "", err
	}

	markdown = strings.TrimSpace(markdown)
	if r := []rune(markdown); len(r) > p.maxRunes {
		markdown = string(r[:p.maxRunes])
	}
	return markdown, nil
}

// mainContent returns the HTML of the <main> element, or the METI/FSA content
// container, falling back to the whole document.
func mainContent(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var found *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "main" || isContentContainer(n)) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if found == nil {
		return htmlContent
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, found); err != nil {
		return htmlContent
	}
	return buf.String()
}

func isContentContainer(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "id" && (a.Val == "__main_contents" || a.Val == "main" || a.Val == "contents") {
			return true
		}
	}
	return false
}
