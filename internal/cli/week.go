package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"blockplan/internal/api"
	"blockplan/internal/budget"
	"blockplan/internal/config"
	"blockplan/internal/grid"
	"blockplan/internal/web"
)

func newWeekCommand(e *env) *cobra.Command {
	var (
		start  string
		local  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print a week's blocks, habits and daily totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDayFlag(start)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.Timeout())
			defer cancel()

			var week api.WeekResponse
			if local {
				week, err = localWeek(ctx, e.cfg, day)
			} else {
				week, err = newClient(e.cfg, e.remoteURL()).Week(ctx, day)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(week)
			}
			return printWeek(cmd.OutOrStdout(), week)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Any day of the week, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&e.remote, "remote", "", "Server base URL (overrides remote_url)")
	cmd.Flags().BoolVar(&local, "local", false, "Read the local store instead of a server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the /api/week JSON")
	return cmd
}

// parseDayFlag parses YYYY-MM-DD; empty means today.
func parseDayFlag(v string) (time.Time, error) {
	if v == "" {
		return grid.StartOfDay(time.Now()), nil
	}
	t, err := grid.ParseDayKey(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}

// localWeek builds the week render model from the local files the way the
// server's /api/week does.
func localWeek(ctx context.Context, cfg *config.Config, day time.Time) (api.WeekResponse, error) {
	b, err := openLocal(cfg)
	if err != nil {
		return api.WeekResponse{}, err
	}
	start := grid.StartOfWeek(day, cfg.FirstWeekday())
	events, err := b.ListEvents(ctx, start, grid.AddDays(start, 7))
	if err != nil {
		return api.WeekResponse{}, err
	}
	tasks, _ := b.ListTasks(ctx)
	week := web.BuildWeek(events, tasks, start, cfg.DailyBudgetMinutes)
	week.WeekStart = cfg.WeekStart
	return week, nil
}

func printWeek(w io.Writer, week api.WeekResponse) error {
	fmt.Fprintf(w, "Week of %s (budget %s/day)\n", week.Start.Format("Mon Jan 2, 2006"), budget.FormatMinutes(week.Threshold))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, key := range week.Days {
		day, err := grid.ParseDayKey(key)
		if err != nil {
			return err
		}
		flag := ""
		if slices.Contains(week.Overloaded, key) {
			flag = "OVER"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", day.Format("Mon 02"), budget.FormatMinutes(week.Totals[key]), flag)
		for _, occ := range week.Occurrences {
			if occ.DayKey != key {
				continue
			}
			title := occ.Title
			if occ.ReadOnly {
				title += " (habit)"
			}
			fmt.Fprintf(tw, "  %s-%s\t%s\t\n", occ.Start.Format("15:04"), occ.End.Format("15:04"), title)
		}
	}
	for _, id := range week.TruncatedTasks {
		fmt.Fprintf(tw, "warning: habit %s hit the occurrence cap\t\t\n", id)
	}
	return tw.Flush()
}
