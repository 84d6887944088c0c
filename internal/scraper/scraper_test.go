package scraper

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticCredentials map[string]string

func (s staticCredentials) Credential(name string) string { return s[name] }

func TestFetcher_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>第3回 検討会</title></head><body><p>2025年7月3日</p></body></html>`))
	}))
	defer server.Close()

	f := New(Config{Timeout: 5 * time.Second}, nil)

	body := f.FetchPage(t.Context(), server.URL+"/3.html")
	if !strings.Contains(body, "2025年7月3日") {
		t.Errorf("body = %q, want page content", body)
	}
}

func TestFetcher_ErrorStatusYieldsEmpty(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "error page", status)
		}))

		f := New(Config{Timeout: 5 * time.Second}, nil)
		if body := f.FetchPage(t.Context(), server.URL); body != "" {
			t.Errorf("status %d: body = %q, want empty", status, body)
		}
		server.Close()
	}
}

func TestFetcher_UnreachableYieldsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	f := New(Config{Timeout: time.Second}, nil)
	if body := f.FetchPage(t.Context(), addr); body != "" {
		t.Errorf("body = %q, want empty", body)
	}
}

func TestFetcher_Proxy(t *testing.T) {
	var gotAuth, gotURL, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotURL = r.URL.Query().Get("url")
		w.Write([]byte("<html>proxied</html>"))
	}))
	defer server.Close()

	f := New(Config{ProxyBaseURL: server.URL + "/", Timeout: 5 * time.Second},
		staticCredentials{"SERVICE_TOKEN": "secret-token"})

	body := f.FetchPage(t.Context(), "https://www.meti.go.jp/shingikai/x/index.html?a=1")
	if body != "<html>proxied</html>" {
		t.Errorf("body = %q", body)
	}
	if gotPath != "/fetcher/crawl" {
		t.Errorf("path = %q, want /fetcher/crawl", gotPath)
	}
	if gotURL != "https://www.meti.go.jp/shingikai/x/index.html?a=1" {
		t.Errorf("url param = %q", gotURL)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestFetcher_ProxyWithoutTokenFetchesDirectly(t *testing.T) {
	var gotAuth string
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("direct"))
	}))
	defer server.Close()

	f := New(Config{ProxyBaseURL: "http://127.0.0.1:1", Timeout: 5 * time.Second}, staticCredentials{})

	if body := f.FetchPage(t.Context(), server.URL); body != "direct" {
		t.Errorf("body = %q, want direct", body)
	}
	if hits != 1 || gotAuth != "" {
		t.Errorf("hits = %d, Authorization = %q", hits, gotAuth)
	}
}

func TestFetcher_SetsUserAgent(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><body>Test</body></html>`))
	}))
	defer server.Close()

	f := New(Config{UserAgent: "mtg-monitor-test/1.0"}, nil)
	f.FetchPage(t.Context(), server.URL)

	if receivedUA != "mtg-monitor-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", receivedUA, "mtg-monitor-test/1.0")
	}
}

func TestFetcher_RepeatedFetches(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("page"))
	}))
	defer server.Close()

	f := New(Config{}, nil)
	f.FetchPage(t.Context(), server.URL)
	f.FetchPage(t.Context(), server.URL)

	if hits != 2 {
		t.Errorf("hits = %d, want 2 (pages are re-checked every run)", hits)
	}
}
