package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/config"
	"github.com/kl-higa/public-mtg-monitor2/internal/registry"
	"github.com/kl-higa/public-mtg-monitor2/internal/subscriber"
	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

var (
	sourceAgency     string
	sourceName       string
	sourceURL        string
	sourceNote       string
	recipientSources string
	recipientStatus  string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage watched committees and subscribers",
	Long: `Manage the committee and subscriber tables in the registry database.

Examples:
  # Watch a committee
  mtg-monitor registry add-source --agency 経済産業省 --name 排出量取引制度小委員会 \
    --url https://www.meti.go.jp/shingikai/sankoshin/sangyo_gijutsu/emissions_trading/index.html

  # Subscribe an address to two committees
  mtg-monitor registry add-recipient user@example.com --sources "排出量取引制度小委員会,発電ベンチマーク検討WG"`,
}

var addSourceCmd = &cobra.Command{
	Use:   "add-source",
	Short: "Register a committee index page",
	Args:  cobra.NoArgs,
	RunE:  runAddSource,
}

var addRecipientCmd = &cobra.Command{
	Use:   "add-recipient [email]",
	Short: "Add or update a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddRecipient,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(addSourceCmd, addRecipientCmd)

	addSourceCmd.Flags().StringVar(&sourceAgency, "agency", registry.Uncategorized, "Publishing agency")
	addSourceCmd.Flags().StringVar(&sourceName, "name", "", "Committee name")
	addSourceCmd.Flags().StringVar(&sourceURL, "url", "", "Committee index page URL")
	addSourceCmd.Flags().StringVar(&sourceNote, "note", "", "Free-form note")
	addSourceCmd.MarkFlagRequired("name")
	addSourceCmd.MarkFlagRequired("url")

	addRecipientCmd.Flags().StringVar(&recipientSources, "sources", "*", `Committee names, comma-separated, or "*" for all`)
	addRecipientCmd.Flags().StringVar(&recipientStatus, "status", models.RecipientActive, "Subscription status")
}

func openRegistry(ctx context.Context) (*registry.Postgres, func(), error) {
	cfg := GetConfig()
	if cfg.Postgres.DSN == "" {
		return nil, nil, fmt.Errorf("postgres.dsn is not configured")
	}
	return connectRegistry(ctx, cfg.Postgres.DSN)
}

func runAddSource(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, closePool, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	id, err := pg.AddSource(ctx, models.Source{
		Agency:   sourceAgency,
		Name:     sourceName,
		IndexURL: sourceURL,
		Note:     sourceNote,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added committee %d: %s\n", id, sourceName)
	return nil
}

func runAddRecipient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret := GetConfig().Secrets.Credential(config.CredTokenSecret)
	if secret == "" {
		return fmt.Errorf("token secret is not configured")
	}

	pg, closePool, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	r := models.Recipient{
		Email:   args[0],
		Status:  recipientStatus,
		Sources: recipientSources,
		Token:   subscriber.Token(secret, args[0]),
	}
	if err := pg.UpsertRecipient(ctx, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s): %s\n", r.Email, r.Status, r.Sources)
	return nil
}
