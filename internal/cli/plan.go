package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blockplan/internal/budget"
	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/recur"
)

func newPlanCommand(e *env) *cobra.Command {
	var (
		req    budget.PlanRequest
		taskID string
		from   string
		due    string
		days   string
		dryRun bool
		local  bool

		keepExisting bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Auto-plan study blocks for a task up to its due date",
		Long: `Place study blocks for a task on the allowed weekdays between
--from and --due, starting each day at 08:00 and never pushing a day
past --daily-max minutes, counting blocks and habits already there.
The task's earlier auto-planned blocks are removed first unless
--keep-existing is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if req.StartDate, err = parseDayFlag(from); err != nil {
				return err
			}
			if due == "" {
				return fmt.Errorf("--due is required")
			}
			if req.DueDate, err = parseDayFlag(due); err != nil {
				return err
			}
			if req.AllowedDays, err = parseWeekdays(days); err != nil {
				return err
			}

			b, err := openBackend(e.cfg, !local, e.remoteURL())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.Timeout())
			defer cancel()

			tasks, err := b.ListTasks(ctx)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			task, ok := findTask(tasks, taskID)
			if !ok {
				return fmt.Errorf("task %q not found", taskID)
			}
			req.Task = task

			out := cmd.OutOrStdout()
			var replaced map[string]bool
			if !keepExisting {
				if replaced, err = clearAutoPlan(ctx, b, task.ID, dryRun); err != nil {
					return err
				}
				if n := len(replaced); n > 0 {
					verb := "Removed"
					if dryRun {
						verb = "Would remove"
					}
					fmt.Fprintf(out, "%s %d earlier auto-planned block(s).\n", verb, n)
				}
			}

			existing, err := committedMinutes(ctx, b, tasks, req.StartDate, req.DueDate, replaced)
			if err != nil {
				return err
			}
			inputs, err := budget.Plan(req, existing)
			if err != nil {
				return err
			}

			for _, in := range inputs {
				fmt.Fprintf(out, "%s %s-%s  %s\n", in.Start.Format("Mon 2006-01-02"), in.Start.Format("15:04"), in.End.Format("15:04"), in.Title)
				if dryRun {
					continue
				}
				if _, err := b.CreateEvent(ctx, in); err != nil {
					return fmt.Errorf("create block: %w", err)
				}
			}
			remaining := req.RemainingBlocks(len(inputs))
			switch {
			case len(inputs) == 0:
				fmt.Fprintf(out, "No room left before the due date; %d block(s) unplaced.\n", remaining)
			case remaining > 0:
				fmt.Fprintf(out, "Planned %d block(s); %d more did not fit before the due date.\n", len(inputs), remaining)
			}
			appLog.Info("auto-plan finished", "task_id", task.ID, "blocks", len(inputs), "remaining", remaining, "replaced", len(replaced), "dry_run", dryRun)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task id to plan for")
	cmd.Flags().IntVar(&req.EstimatedMinutes, "estimate", 0, "Minutes the task needs in total")
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD (inclusive)")
	cmd.Flags().IntVar(&req.BlockMinutes, "block", budget.DefaultPlanBlockMinutes, "Block length in minutes (20-240)")
	cmd.Flags().IntVar(&req.DailyMaxMinutes, "daily-max", budget.DefaultPlanDailyMax, "Per-day cap in minutes (60-600)")
	cmd.Flags().StringVar(&days, "days", "mon,tue,wed,thu,fri", "Allowed weekdays, comma separated")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without creating blocks")
	cmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Keep the task's earlier auto-planned blocks")
	cmd.Flags().StringVar(&e.remote, "remote", "", "Server base URL (overrides remote_url)")
	cmd.Flags().BoolVar(&local, "local", false, "Write to the local store instead of a server")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("estimate")
	return cmd
}

func findTask(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// clearAutoPlan deletes every auto-planned block of the task and returns
// their ids. A dry run only collects the ids.
func clearAutoPlan(ctx context.Context, b backend, taskID string, dryRun bool) (map[string]bool, error) {
	events, err := b.ListEvents(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	ids := make(map[string]bool)
	for _, ev := range events {
		if ev.TaskID != taskID || ev.Kind != model.KindAutoPlan {
			continue
		}
		ids[ev.ID] = true
		if dryRun {
			continue
		}
		if err := b.DeleteEvent(ctx, ev.ID); err != nil {
			return nil, fmt.Errorf("delete block %s: %w", ev.ID, err)
		}
	}
	return ids, nil
}

// committedMinutes totals stored blocks and projected habits per day,
// skipping the events in skip.
func committedMinutes(ctx context.Context, b backend, tasks []model.Task, from, due time.Time, skip map[string]bool) (budget.Totals, error) {
	events, err := b.ListEvents(ctx, grid.StartOfDay(from), grid.AddDays(grid.StartOfDay(due), 1))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events = slices.DeleteFunc(events, func(ev model.Event) bool { return skip[ev.ID] })
	habits := recur.Expand(tasks, from, due, recur.Options{}).Instances
	return budget.Combine(budget.AggregateEvents(events), budget.AggregateInstances(habits)), nil
}

// parseWeekdays reads "mon,wed,fri"; full names work too.
func parseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, ok := model.ParseWeekday(part)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}
