package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"time"

	"blockplan/internal/api"
	"blockplan/internal/budget"
	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/recur"
	"blockplan/internal/reconcile"
)

//go:embed templates/week.html
var templateFS embed.FS

var weekTemplate = template.Must(template.ParseFS(templateFS, "templates/week.html"))

// BuildWeek renders the week starting at weekStart: persisted events merged
// with projected habits, plus per-day totals and the overloaded days.
func BuildWeek(events []model.Event, tasks []model.Task, weekStart time.Time, threshold int) api.WeekResponse {
	days := grid.WeekDays(weekStart)
	expanded := recur.Expand(tasks, days[0], days[6], recur.Options{})
	occs := reconcile.Render(reconcile.Merge(nil, events), expanded.Instances)
	ledger := budget.NewLedger(events, expanded.Instances, threshold)

	resp := api.WeekResponse{
		Start:          days[0],
		Days:           make([]string, 0, len(days)),
		Occurrences:    make([]api.Occurrence, 0, len(occs)),
		Totals:         make(map[string]int, len(days)),
		Overloaded:     []string{},
		Threshold:      threshold,
		TruncatedTasks: expanded.TruncatedTasks,
	}
	for _, d := range days {
		key := grid.DayKey(d)
		resp.Days = append(resp.Days, key)
		resp.Totals[key] = ledger.Total(key)
		if budget.IsOverloaded(resp.Totals[key], threshold) {
			resp.Overloaded = append(resp.Overloaded, key)
		}
	}
	for _, occ := range occs {
		resp.Occurrences = append(resp.Occurrences, api.FromOccurrence(occ))
	}
	return resp
}

// week builds (or reuses) the render model for the week containing the
// ?start= day.
func (s *Server) week(ctx context.Context, startParam string) (api.WeekResponse, error) {
	start, err := s.weekStartParam(startParam)
	if err != nil {
		return api.WeekResponse{}, err
	}
	key := grid.DayKey(start)
	if resp, ok := s.weekCache.Get(key); ok {
		return resp, nil
	}

	events, err := s.events.List(ctx, start, grid.AddDays(start, 7))
	if err != nil {
		return api.WeekResponse{}, fmt.Errorf("list events: %w", err)
	}
	resp := BuildWeek(events, s.tasks.List(), start, s.cfg.DailyBudgetMinutes)
	resp.WeekStart = s.cfg.WeekStart
	s.weekCache.Put(key, resp)

	appLog.Debug("week built", "start", key, "occurrences", len(resp.Occurrences), "overloaded", len(resp.Overloaded))
	return resp, nil
}

type hourRow struct {
	Label string
	Top   float64
}

type blockView struct {
	Title    string
	Color    string
	Time     string
	Top      float64
	Height   float64
	ReadOnly bool
}

type dayColumn struct {
	Label  string
	Key    string
	Total  string
	Over   bool
	Today  bool
	Blocks []blockView
}

type pageData struct {
	WeekLabel    string
	Prev, Next   string
	GutterWidth  int
	ColumnHeight float64
	Threshold    string
	Hours        []hourRow
	Days         []dayColumn
}

const minBlockHeight = 14.0

// handleWeekPage renders the static week grid used by snapshots.
//
// GET /week?start=YYYY-MM-DD
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	resp, err := s.week(r.Context(), r.URL.Query().Get("start"))
	if err != nil {
		if errors.Is(err, errBadDay) {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		appLog.Error("build week page failed", err)
		http.Error(w, "failed to build week", http.StatusInternalServerError)
		return
	}

	data := s.pageData(resp)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := weekTemplate.Execute(w, data); err != nil {
		appLog.Error("render week page failed", err)
	}
}

func (s *Server) pageData(resp api.WeekResponse) pageData {
	win := s.cfg.Grid.Window()
	today := grid.DayKey(s.now())

	data := pageData{
		WeekLabel:    fmt.Sprintf("%s – %s", resp.Start.Format("Jan 2"), grid.AddDays(resp.Start, 6).Format("Jan 2, 2006")),
		Prev:         grid.DayKey(grid.AddDays(resp.Start, -7)),
		Next:         grid.DayKey(grid.AddDays(resp.Start, 7)),
		GutterWidth:  s.cfg.Grid.GutterWidth,
		ColumnHeight: win.Height(),
		Threshold:    budget.FormatMinutes(resp.Threshold),
	}
	for _, h := range win.Hours() {
		data.Hours = append(data.Hours, hourRow{Label: grid.HourLabel(h), Top: win.MinutesToOffset(h * 60)})
	}

	byDay := make(map[string][]blockView, len(resp.Days))
	for _, occ := range resp.Occurrences {
		day := grid.StartOfDay(occ.Start)
		top := win.MinutesToOffset(grid.MinutesOf(occ.Start))
		endMin := grid.MinutesOf(occ.End)
		if !grid.SameDay(day, occ.End) {
			endMin = grid.MinutesPerDay
		}
		height := max(win.MinutesToOffset(endMin)-top, minBlockHeight)
		byDay[occ.DayKey] = append(byDay[occ.DayKey], blockView{
			Title:    occ.Title,
			Color:    occ.Color,
			Time:     occ.Start.Format("15:04") + "–" + occ.End.Format("15:04"),
			Top:      top,
			Height:   height,
			ReadOnly: occ.ReadOnly,
		})
	}

	for i, key := range resp.Days {
		d := grid.AddDays(resp.Start, i)
		data.Days = append(data.Days, dayColumn{
			Label:  d.Format("Mon 2"),
			Key:    key,
			Total:  budget.FormatMinutes(resp.Totals[key]),
			Over:   slices.Contains(resp.Overloaded, key),
			Today:  key == today,
			Blocks: byDay[key],
		})
	}
	return data
}
