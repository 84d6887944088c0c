package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/metrics"
	"github.com/kl-higa/public-mtg-monitor2/internal/report"
)

var (
	checkSource int
	checkDryRun bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one monitoring pass",
	Long: `Check every registered committee for new meetings, summarize and mail
them, archive each meeting and advance the cursors.

Examples:
  # Check all committees
  mtg-monitor check

  # Check a single committee by registry ID
  mtg-monitor check --source 3

  # Parse and summarize without mailing, archiving or moving cursors
  mtg-monitor check --dry-run -v`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().IntVar(&checkSource, "source", 0, "Only check the committee with this ID")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Skip mail, archive and cursor writes")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("check command starting", "source", checkSource, "dry_run", checkDryRun)

	p, closeBackends, err := newPipeline(ctx, cfg, runOptions{sourceID: checkSource, dryRun: checkDryRun})
	if err != nil {
		return err
	}
	defer closeBackends()

	rep, err := p.Run(ctx)
	metrics.ObserveRun(rep, err)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printReport(cmd, rep)
	return nil
}

func printReport(cmd *cobra.Command, rep *report.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished in %s\n", rep.RunID, rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
	for _, s := range rep.Sources {
		fmt.Fprintf(out, "  [%d] %-12s %s", s.SourceID, s.Outcome, s.Name)
		switch {
		case s.Outcome == report.OutcomeError:
			fmt.Fprintf(out, ": %s", s.Reason)
		case s.LastID > 0:
			fmt.Fprintf(out, " (last: %d)", s.LastID)
		}
		fmt.Fprintln(out)
		for _, d := range s.New {
			fmt.Fprintf(out, "      #%d %s sent=%d summary=%t transcript=%s\n", d.Number, d.Title, d.Sent, d.Summarized, d.TranscriptSource)
		}
		for _, id := range s.Skipped {
			fmt.Fprintf(out, "      #%d skipped (not yet published)\n", id)
		}
	}
}
