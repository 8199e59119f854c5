package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"blockplan/internal/fsutil"
	"blockplan/internal/grid"
	"blockplan/internal/ics"
	appLog "blockplan/internal/log"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		start string
		out   string
		name  string
		local bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export blocks and habits as an iCalendar file",
		Long: `Export every stored block plus one recurring event per habit.

Habits are anchored at their first occurrence in the week of --start.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDayFlag(start)
			if err != nil {
				return err
			}
			b, err := openBackend(e.cfg, !local, e.remoteURL())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.Timeout())
			defer cancel()

			events, err := b.ListEvents(ctx, time.Time{}, time.Time{})
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}
			tasks, err := b.ListTasks(ctx)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			from := grid.StartOfWeek(day, e.cfg.FirstWeekday())
			data := ics.Serialize(ics.Export(events, tasks, from, ics.Options{Name: name}))
			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fsutil.WriteFileAtomic(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			appLog.Info("calendar exported", "path", out, "events", len(events), "tasks", len(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Week to anchor habits at, YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&name, "name", "blockplan", "Calendar name")
	cmd.Flags().StringVar(&e.remote, "remote", "", "Server base URL (overrides remote_url)")
	cmd.Flags().BoolVar(&local, "local", false, "Read the local store instead of a server")
	return cmd
}
