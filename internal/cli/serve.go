package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "blockplan/internal/log"
	"blockplan/internal/store"
	"blockplan/internal/web"
)

// startServerFunc is a variable so tests can stub out the listener.
var startServerFunc = web.StartServer

func newServeCommand(e *env) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, the week page and the ICS feed",
		Long: `Serve the event store over HTTP.

Endpoints: /api/events, /api/tasks, /api/week, /week (HTML),
/calendar.ics and /health. The tasks file is reloaded on the
"refresh" cron schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := e.cfg
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			events, err := store.OpenEvents(cfg.StorePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			tasks := store.NewTaskSource(cfg.TasksPath)
			if err := tasks.Reload(); err != nil {
				// The cron refresh retries; start with no habits.
				appLog.Error("failed to load tasks", err, "path", cfg.TasksPath)
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"week_start", cfg.WeekStart,
				"daily_budget_minutes", cfg.DailyBudgetMinutes,
				"store_path", cfg.StorePath,
				"tasks_path", cfg.TasksPath,
				"tasks", len(tasks.List()),
				"refresh", cfg.RefreshCron,
				"basic_auth", cfg.BasicAuth != nil,
			)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return startServerFunc(ctx, cfg, events, tasks)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
