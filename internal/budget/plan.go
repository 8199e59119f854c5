package budget

import (
	"errors"
	"fmt"
	"time"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

const (
	DefaultPlanBlockMinutes = 50
	DefaultPlanDailyMax     = 240
	DefaultPlanDayStart     = 8 * 60
	DefaultPlanDayEnd       = 22 * 60
	DefaultPlanGapMinutes   = 10
)

var (
	ErrNoEstimate   = errors.New("set an estimated minutes value before auto-planning")
	ErrInvalidRange = errors.New("start date must be before the due date")
)

// PlanRequest describes an auto-plan run for one task.
type PlanRequest struct {
	Task             model.Task
	EstimatedMinutes int
	StartDate        time.Time
	DueDate          time.Time
	BlockMinutes     int
	DailyMaxMinutes  int
	AllowedDays      []time.Weekday
	DayStart         int
	DayEnd           int
	GapMinutes       int
}

func (r *PlanRequest) normalize() {
	r.BlockMinutes = clampInt(orDefault(r.BlockMinutes, DefaultPlanBlockMinutes), 20, 240)
	r.DailyMaxMinutes = clampInt(orDefault(r.DailyMaxMinutes, DefaultPlanDailyMax), 60, 600)
	r.DayStart = orDefault(r.DayStart, DefaultPlanDayStart)
	r.DayEnd = orDefault(r.DayEnd, DefaultPlanDayEnd)
	r.GapMinutes = orDefault(r.GapMinutes, DefaultPlanGapMinutes)
	if len(r.AllowedDays) == 0 {
		r.AllowedDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
}

// Plan lays study blocks for a task between StartDate and DueDate (both
// inclusive) on allowed weekdays. Blocks start at DayStart, are separated by
// GapMinutes and never push a day past DailyMaxMinutes, counting the minutes
// already in existing. It stops once the estimate is covered.
func Plan(req PlanRequest, existing Totals) ([]model.EventInput, error) {
	if req.EstimatedMinutes <= 0 {
		return nil, ErrNoEstimate
	}
	req.normalize()

	first := grid.StartOfDay(req.StartDate)
	last := grid.StartOfDay(req.DueDate)
	if first.After(last) {
		return nil, ErrInvalidRange
	}

	allowed := make(map[time.Weekday]bool, len(req.AllowedDays))
	for _, d := range req.AllowedDays {
		allowed[d] = true
	}

	blocksNeeded := req.BlocksNeeded()
	title := fmt.Sprintf("%s study block", req.Task.Title)
	color := model.CategoryColor(req.Task.Category)
	taskID := req.Task.ID

	var out []model.EventInput
	for day := first; !day.After(last) && len(out) < blocksNeeded; day = grid.AddDays(day, 1) {
		if !allowed[day.Weekday()] {
			continue
		}
		used := existing[grid.DayKey(day)]
		slot := req.DayStart
		for len(out) < blocksNeeded {
			if used+req.BlockMinutes > req.DailyMaxMinutes {
				break
			}
			if slot+req.BlockMinutes > req.DayEnd {
				break
			}
			out = append(out, model.EventInput{
				Title:  title,
				Start:  grid.At(day, slot),
				End:    grid.At(day, slot+req.BlockMinutes),
				TaskID: &taskID,
				Color:  &color,
				Kind:   model.KindAutoPlan,
			})
			used += req.BlockMinutes
			slot += req.BlockMinutes + req.GapMinutes
		}
	}
	return out, nil
}

// BlocksNeeded is the number of blocks that cover the estimate.
func (r PlanRequest) BlocksNeeded() int {
	if r.EstimatedMinutes <= 0 {
		return 0
	}
	r.normalize()
	return (r.EstimatedMinutes + r.BlockMinutes - 1) / r.BlockMinutes
}

// RemainingBlocks is how many of the needed blocks a plan of placed blocks
// left out.
func (r PlanRequest) RemainingBlocks(placed int) int {
	return max(0, r.BlocksNeeded()-placed)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
