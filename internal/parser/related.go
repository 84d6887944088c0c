package parser

import (
	"regexp"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/markup"
)

// RelatedCommittee is a sibling committee linked from a METI index page.
type RelatedCommittee struct {
	Name string
	URL  string
}

var (
	indexLink          = regexp.MustCompile(`(?is)<a\s+href="([^"]+/index\.html)"[^>]*?>(.*?)</a>`)
	committeeLinkLabel = regexp.MustCompile(`委員会|ワーキンググループ|WG|検討会`)
)

// RelatedCommittees lists committees linked from an index page, excluding
// absolute links and the page itself.
func RelatedCommittees(html, baseDir, indexURL string) []RelatedCommittee {
	var out []RelatedCommittee
	seen := make(map[string]bool)
	for _, m := range indexLink.FindAllStringSubmatch(html, -1) {
		href := m[1]
		if strings.HasPrefix(href, "http") || href == "./index.html" {
			continue
		}
		name := markup.StripTags(m[2])
		full := markup.AbsoluteURL(baseDir, href)
		if full == indexURL || seen[full] || !committeeLinkLabel.MatchString(name) {
			continue
		}
		seen[full] = true
		out = append(out, RelatedCommittee{Name: name, URL: full})
	}
	return out
}
