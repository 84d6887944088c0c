package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/metrics"
	"github.com/kl-higa/public-mtg-monitor2/internal/scheduler"
)

var watchRunNow bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run monitoring passes on a schedule",
	Long: `Run a monitoring pass on the configured cron schedule and serve
Prometheus metrics on /metrics.

Examples:
  # Daily at 09:00 Asia/Tokyo (default)
  mtg-monitor watch

  # Run once at startup, then on schedule
  mtg-monitor watch --now`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchRunNow, "now", false, "Run a pass immediately on startup")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	if cfg.Schedule.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.Schedule.MetricsAddr)
	}

	pass := func() {
		p, closeBackends, err := newPipeline(ctx, cfg, runOptions{})
		if err != nil {
			metrics.ObserveRun(nil, err)
			slog.Error("failed to set up run", "error", err)
			return
		}
		defer closeBackends()

		rep, err := p.Run(ctx)
		metrics.ObserveRun(rep, err)
		if err != nil {
			slog.Error("run failed", "error", err)
			return
		}
		slog.Info("run finished", "run_id", rep.RunID, "new", rep.Deliveries())
	}

	sched, err := scheduler.New(cfg.Schedule.Cron, cfg.Schedule.Timezone, pass)
	if err != nil {
		return err
	}

	if watchRunNow {
		pass()
	}

	sched.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching on %q (%s), next run %s\n",
		cfg.Schedule.Cron, sched.Location(), sched.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	sched.Stop()
	return nil
}
