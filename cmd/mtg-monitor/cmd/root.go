package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "mtg-monitor",
	Short: "Watch government committee pages and mail meeting summaries",
	Long: `mtg-monitor watches ministry committee index pages for new meetings,
summarizes each session from its video transcript and materials, mails the
summary to subscribers and archives it in Elasticsearch.

Commands:
  check   Run one monitoring pass
  watch   Run monitoring passes on a schedule
  status  Show the per-committee cursors
  parse   Parse a single page for debugging
  search  Search archived meetings
  serve   Start the MCP server over the archive`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/mtg-monitor")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// MTGMON_SERVICE_BASE_URL -> service.base_url
	viper.SetEnvPrefix("MTGMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	for _, key := range []string{
		"service.base_url",
		"service.use_proxy",
		"llm.model",
		"storage.endpoint",
		"storage.bucket",
		"storage.access_key_id",
		"storage.secret_access_key",
		"storage.use_ssl",
		"storage.state_key",
		"elasticsearch.index",
		"elasticsearch.username",
		"elasticsearch.password",
		"postgres.dsn",
		"redis.addr",
		"redis.password",
		"mail.host",
		"mail.port",
		"mail.username",
		"mail.from",
		"mail.reply_to",
		"mail.admin_to",
		"mail.site_base_url",
		"schedule.cron",
		"schedule.timezone",
		"schedule.metrics_addr",
		"secrets.service_token",
		"secrets.gemini_api_key",
		"secrets.smtp_password",
		"secrets.token_secret",
	} {
		viper.BindEnv(key, "MTGMON_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("MTGMON_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
