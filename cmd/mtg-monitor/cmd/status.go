package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/registry"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the per-committee cursors",
	Long: `Show the stored cursor of every registered committee: the last
processed meeting, its date and when the committee was last checked.

Examples:
  mtg-monitor status
  mtg-monitor status --format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text or json")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	stateStore, err := newStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	state, err := stateStore.LoadState(ctx)
	if err != nil {
		return err
	}

	if statusFormat == "json" {
		output, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	out := cmd.OutOrStdout()
	for _, src := range b.registry.Sources(ctx) {
		fmt.Fprintf(out, "[%d] %s (%s)\n", src.ID, src.Name, orUnclassified(src.Agency))
		c, ok := state[src.IndexURL]
		if !ok || c == nil || c.LastID == nil {
			fmt.Fprintln(out, "    not seeded")
			continue
		}
		fmt.Fprintf(out, "    last: %d %s\n    url: %s\n    checked: %s\n",
			*c.LastID, c.LastMeetingDate, c.LastURL, c.LastCheckedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func orUnclassified(agency string) string {
	if agency == "" {
		return registry.Uncategorized
	}
	return agency
}
