// Package subscriber holds recipient matching and link tokens.
package subscriber

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// AllSources subscribes a recipient to every source.
const AllSources = "*"

var whitespace = regexp.MustCompile(`\s+`)

// Token returns the URL-safe HMAC-SHA256 of the lowercased email.
func Token(secret, email string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether token was issued for email.
func Verify(secret, email, token string) bool {
	return hmac.Equal([]byte(Token(secret, email)), []byte(token))
}

// NormalizeSourceName removes all whitespace and lowercases name.
func NormalizeSourceName(name string) string {
	return strings.ToLower(whitespace.ReplaceAllString(name, ""))
}

// Matches reports whether r should receive mail for sourceName.
func Matches(r models.Recipient, sourceName string) bool {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Status) != models.RecipientActive {
		return false
	}
	sources := strings.TrimSpace(r.Sources)
	if sources == AllSources {
		return true
	}
	want := NormalizeSourceName(sourceName)
	for _, s := range strings.Split(sources, ",") {
		if NormalizeSourceName(s) == want && want != "" {
			return true
		}
	}
	return false
}

// Filter returns the recipients of sourceName, in input order.
func Filter(recipients []models.Recipient, sourceName string) []models.Recipient {
	var out []models.Recipient
	for _, r := range recipients {
		if Matches(r, sourceName) {
			out = append(out, r)
		}
	}
	return out
}

// Links are the per-recipient footer URLs.
type Links struct {
	Unsubscribe string
	Resubscribe string
	Sources     string
}

// LinksFor builds footer links under baseURL. An empty baseURL yields no links.
func LinksFor(baseURL string, r models.Recipient, sourceName string) Links {
	if baseURL == "" {
		return Links{}
	}
	action := func(a string) string {
		q := url.Values{}
		q.Set("action", a)
		q.Set("token", r.Token)
		q.Set("email", r.Email)
		q.Set("source", sourceName)
		return baseURL + "?" + q.Encode()
	}
	return Links{
		Unsubscribe: action("unsubscribe"),
		Resubscribe: action("resub"),
		Sources:     baseURL + "?page=sources",
	}
}
