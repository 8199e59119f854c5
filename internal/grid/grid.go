// Package grid converts between wall-clock minutes, pixel offsets and
// calendar days for the weekly time grid. Everything here is pure.
package grid

import (
	"fmt"
	"math"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	DefaultStartHour  = 1
	DefaultEndHour    = 24
	DefaultHourHeight = 60.0
	DefaultSnap       = 15
)

// Window is the visible slice of the day, [StartHour:00, EndHour:00].
// HourHeight is the rendered height of one hour in pixels (or terminal rows).
type Window struct {
	StartHour  int
	EndHour    int
	HourHeight float64
}

// DefaultWindow returns the 01:00-24:00 window at 60px per hour.
func DefaultWindow() Window {
	return Window{StartHour: DefaultStartHour, EndHour: DefaultEndHour, HourHeight: DefaultHourHeight}
}

func (w Window) StartMinutes() int { return w.StartHour * 60 }
func (w Window) EndMinutes() int   { return w.EndHour * 60 }

// Height is the rendered height of the whole window.
func (w Window) Height() float64 {
	return float64(w.EndHour-w.StartHour) * w.HourHeight
}

// Hours lists the hour labels shown in the gutter.
func (w Window) Hours() []int {
	out := make([]int, 0, w.EndHour-w.StartHour)
	for h := w.StartHour; h < w.EndHour; h++ {
		out = append(out, h)
	}
	return out
}

// Clamp bounds minutes to the window.
func (w Window) Clamp(minutes float64) float64 {
	return math.Max(float64(w.StartMinutes()), math.Min(float64(w.EndMinutes()), minutes))
}

// ClampMinutes is Clamp for whole minutes.
func (w Window) ClampMinutes(minutes int) int {
	return int(w.Clamp(float64(minutes)))
}

// MinutesToOffset maps a minute of the day to its offset from the top of the
// window. Minutes outside the window pin to its edges.
func (w Window) MinutesToOffset(minutes int) float64 {
	rel := w.Clamp(float64(minutes)) - float64(w.StartMinutes())
	return rel / 60 * w.HourHeight
}

// OffsetToMinutes is the inverse of MinutesToOffset.
func (w Window) OffsetToMinutes(offset float64) float64 {
	if w.HourHeight <= 0 {
		return float64(w.StartMinutes())
	}
	return w.Clamp(float64(w.StartMinutes()) + offset/w.HourHeight*60)
}

// MinutesAt converts a pointer position inside a column of the given top and
// height into window minutes. The ratio form keeps it correct when a host
// renders the column at a different size than Height().
func (w Window) MinutesAt(pointerY, columnTop, columnHeight float64) float64 {
	if columnHeight <= 0 {
		return float64(w.StartMinutes())
	}
	ratio := (pointerY - columnTop) / columnHeight
	return w.Clamp(float64(w.StartMinutes()) + ratio*float64(w.EndMinutes()-w.StartMinutes()))
}

// Snap rounds minutes to the nearest multiple of increment; halves round up.
func Snap(minutes float64, increment int) int {
	if increment <= 0 {
		increment = DefaultSnap
	}
	return int(math.Floor(minutes/float64(increment)+0.5)) * increment
}

// DayKey identifies the local calendar day of t, e.g. "2025-03-03". It is
// built from the year/month/day fields so it is stable across re-renders.
func DayKey(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// ParseDayKey is the inverse of DayKey in the local zone.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", key, time.Local)
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves by calendar days, keeping wall-clock time across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfWeek returns midnight of the first day of t's week.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return AddDays(day, -offset)
}

// WeekDays returns the seven midnights starting at weekStart.
func WeekDays(weekStart time.Time) [7]time.Time {
	var out [7]time.Time
	start := StartOfDay(weekStart)
	for i := range out {
		out[i] = AddDays(start, i)
	}
	return out
}

// At places minutes-since-midnight onto day. Minutes past 24:00 roll into the
// next day through time.Date normalisation.
func At(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}

// MinutesOf returns minutes since local midnight of t.
func MinutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SameDay reports whether a and b fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayIndex returns t's column in the week starting at weekStart, or -1.
func DayIndex(weekStart, t time.Time) int {
	for i, d := range WeekDays(weekStart) {
		if SameDay(d, t) {
			return i
		}
	}
	return -1
}

// MonthMatrix lays out the six-week mini calendar containing ref.
func MonthMatrix(ref time.Time, weekStart time.Weekday) [6][7]time.Time {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	cursor := StartOfWeek(first, weekStart)
	var out [6][7]time.Time
	for w := range out {
		for d := range out[w] {
			out[w][d] = cursor
			cursor = AddDays(cursor, 1)
		}
	}
	return out
}

// HourLabel renders an hour as "1AM", "12PM" and so on.
func HourLabel(hour int) string {
	suffix := "AM"
	if hour%24 >= 12 {
		suffix = "PM"
	}
	n := hour % 12
	if n == 0 {
		n = 12
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// ParseWeekday accepts "monday"/"sunday" style config values.
func ParseWeekday(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}
