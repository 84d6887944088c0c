package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Service       Service       `mapstructure:"service"`
	LLM           LLM           `mapstructure:"llm"`
	Summary       Summary       `mapstructure:"summary"`
	Scraper       Scraper       `mapstructure:"scraper"`
	Storage       Storage       `mapstructure:"storage"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Postgres      Postgres      `mapstructure:"postgres"`
	Redis         Redis         `mapstructure:"redis"`
	Mail          Mail          `mapstructure:"mail"`
	Schedule      Schedule      `mapstructure:"schedule"`
	MCP           MCP           `mapstructure:"mcp"`
	Sources       []Source      `mapstructure:"sources"`
	Secrets       Secrets       `mapstructure:"secrets"`
}

// Service holds the processing service (fetch proxy, OCR, transcripts) configuration.
type Service struct {
	BaseURL  string        `mapstructure:"base_url"`
	UseProxy bool          `mapstructure:"use_proxy"` // Fetch pages through {base}/fetcher/crawl
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLM holds text-generation configuration.
type LLM struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Summary holds summarization limits.
type Summary struct {
	MaxCharsPerChunk int `mapstructure:"max_chars_per_chunk"`
	MinChars         int `mapstructure:"min_chars"`
	MaxChars         int `mapstructure:"max_chars"`
	SourceTextLimit  int `mapstructure:"source_text_limit"` // Agenda/roster text sent to the final prompt
}

// Scraper holds page fetch configuration.
type Scraper struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Storage holds S3/MinIO configuration for the cursor state blob.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	StateKey        string `mapstructure:"state_key"`
}

// Elasticsearch holds ES connection configuration for the meeting archive.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Postgres holds the registry database configuration.
type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

// Redis holds the send ledger and cache configuration.
type Redis struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	SentTTL   time.Duration `mapstructure:"sent_ttl"`
	SourceTTL time.Duration `mapstructure:"source_ttl"`
}

// Mail holds outbound mail configuration.
type Mail struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	From        string `mapstructure:"from"`
	FromName    string `mapstructure:"from_name"`
	ReplyTo     string `mapstructure:"reply_to"`
	AdminTo     string `mapstructure:"admin_to"`
	SiteBaseURL string `mapstructure:"site_base_url"` // Unsubscribe and sources pages
}

// Schedule holds the watch loop configuration.
type Schedule struct {
	Cron        string `mapstructure:"cron"`
	Timezone    string `mapstructure:"timezone"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Source is a built-in committee used when the registry is unavailable.
type Source struct {
	ID     int    `mapstructure:"id"`
	Agency string `mapstructure:"agency"`
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
}

// Secrets holds credentials. Values are usually supplied through the
// MTGMON_SECRETS_* environment variables.
type Secrets struct {
	ServiceToken string `mapstructure:"service_token"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	SMTPPassword string `mapstructure:"smtp_password"`
	TokenSecret  string `mapstructure:"token_secret"` // HMAC key for subscriber links
}

// CredentialProvider looks up a named secret at call time.
type CredentialProvider interface {
	Credential(name string) string
}

// Credential names understood by Secrets.
const (
	CredServiceToken = "SERVICE_TOKEN"
	CredGeminiAPIKey = "GEMINI_API_KEY"
	CredSMTPPassword = "SMTP_PASSWORD"
	CredTokenSecret  = "TOKEN_SECRET"
)

// Credential returns the named secret. Missing credentials yield "".
func (s Secrets) Credential(name string) string {
	var v string
	switch name {
	case CredServiceToken:
		v = s.ServiceToken
	case CredGeminiAPIKey:
		v = s.GeminiAPIKey
	case CredSMTPPassword:
		v = s.SMTPPassword
	case CredTokenSecret:
		v = s.TokenSecret
	}
	return strings.TrimSpace(v)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Service: Service{
			BaseURL:  "",
			UseProxy: false,
			Timeout:  5 * time.Minute, // OCR of long PDFs is slow
		},
		LLM: LLM{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 2 * time.Minute,
		},
		Summary: Summary{
			MaxCharsPerChunk: 50000,
			MinChars:         500,
			MaxChars:         2500,
			SourceTextLimit:  8000,
		},
		Scraper: Scraper{
			Timeout:   30 * time.Second,
			UserAgent: "mtg-monitor/1.0",
		},
		Storage: Storage{
			Endpoint:        "localhost:9002",
			Bucket:          "mtg-monitor",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
			StateKey:        "multi_meeting_state_v2",
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "mtg-monitor-archive",
		},
		Postgres: Postgres{
			DSN: "",
		},
		Redis: Redis{
			Addr:      "localhost:6379",
			SentTTL:   30 * 24 * time.Hour,
			SourceTTL: 5 * time.Minute,
		},
		Mail: Mail{
			Port:     587,
			FromName: "審議会ウォッチ",
		},
		Schedule: Schedule{
			Cron:        "0 9 * * *",
			Timezone:    "Asia/Tokyo",
			MetricsAddr: ":9090",
		},
		MCP: MCP{
			Name:    "mtg-monitor",
			Version: "1.0.0",
		},
		Sources: []Source{
			{ID: 1, Agency: "経済産業省", Name: "同時市場の在り方等に関する検討会", URL: "https://www.meti.go.jp/shingikai/energy_environment/doji_shijo_kento/index.html"},
			{ID: 2, Agency: "経済産業省", Name: "電力システム改革の検証を踏まえた制度設計WG", URL: "https://www.meti.go.jp/shingikai/enecho/denryoku_gas/jisedai_kiban/system_design_wg/index.html"},
			{ID: 3, Agency: "経済産業省", Name: "排出量取引制度小委員会", URL: "https://www.meti.go.jp/shingikai/sankoshin/sangyo_gijutsu/emissions_trading/index.html"},
			{ID: 4, Agency: "経済産業省", Name: "製造業ベンチマーク検討WG", URL: "https://www.meti.go.jp/shingikai/sankoshin/sangyo_gijutsu/emissions_trading/benchmark_wg/index.html"},
			{ID: 5, Agency: "経済産業省", Name: "発電ベンチマーク検討WG", URL: "https://www.meti.go.jp/shingikai/sankoshin/sangyo_gijutsu/emissions_trading/power_generation_benchmark/index.html"},
		},
	}
}
