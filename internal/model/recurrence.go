package model

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RepeatRule selects which weekdays a recurring task lands on.
type RepeatRule string

const (
	RepeatNone       RepeatRule = "none"
	RepeatDaily      RepeatRule = "daily"
	RepeatWeekdays   RepeatRule = "weekdays"
	RepeatCustomDays RepeatRule = "custom_days"
)

// Recurrence describes a weekly habit: which days, what time, how long.
type Recurrence struct {
	Rule RepeatRule `json:"rule" yaml:"rule"`
	// Days is only consulted for custom_days; 0 = Sunday.
	Days []time.Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	// TimeOfDay is minutes since local midnight.
	TimeOfDay       int `json:"time_of_day" yaml:"-"`
	DurationMinutes int `json:"duration_minutes" yaml:"duration_minutes"`
	// Until is the last calendar day (inclusive) an occurrence may fall on.
	Until *time.Time `json:"until,omitempty" yaml:"until,omitempty"`
}

// Weekdays resolves the rule into the set of matching weekdays.
// A nil result means the task does not recur.
func (r *Recurrence) Weekdays() []time.Weekday {
	if r == nil {
		return nil
	}
	switch r.Rule {
	case RepeatDaily:
		return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	case RepeatWeekdays:
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	case RepeatCustomDays:
		seen := make(map[time.Weekday]bool, len(r.Days))
		var out []time.Weekday
		for _, d := range r.Days {
			if d < time.Sunday || d > time.Saturday || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
		return out
	default:
		return nil
	}
}

// Valid reports whether the rule is complete enough to expand. Malformed
// rules are treated as "not recurring" rather than as errors.
func (r *Recurrence) Valid() bool {
	if r == nil {
		return false
	}
	if len(r.Weekdays()) == 0 {
		return false
	}
	if r.DurationMinutes <= 0 {
		return false
	}
	return r.TimeOfDay >= 0 && r.TimeOfDay < 24*60
}

// recurrenceYAML is the on-disk form used by the tasks file, where the time
// of day is written as "HH:MM".
type recurrenceYAML struct {
	Rule            RepeatRule `yaml:"rule"`
	Days            []string   `yaml:"days,omitempty"`
	At              string     `yaml:"at"`
	DurationMinutes int        `yaml:"duration_minutes"`
	Until           string     `yaml:"until,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "0": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "1": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "2": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "3": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "4": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "5": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "6": time.Saturday,
}

// ParseWeekday reads a weekday as a short name, a full name or a number
// 0-6 with Sunday as 0. Case and surrounding space are ignored.
func ParseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

// UnmarshalYAML accepts day names and an "HH:MM" start. Unparseable pieces
// are left zero so that Valid() reports the rule as not recurring.
func (r *Recurrence) UnmarshalYAML(node *yaml.Node) error {
	var raw recurrenceYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*r = Recurrence{Rule: raw.Rule, DurationMinutes: raw.DurationMinutes, TimeOfDay: -1}
	if raw.Rule == "" && len(raw.Days) > 0 {
		r.Rule = RepeatCustomDays
	}
	for _, d := range raw.Days {
		if wd, ok := ParseWeekday(d); ok {
			r.Days = append(r.Days, wd)
		}
	}
	if m, err := ParseClock(raw.At); err == nil {
		r.TimeOfDay = m
	}
	if raw.Until != "" {
		if t, err := time.ParseInLocation("2006-01-02", raw.Until, time.Local); err == nil {
			r.Until = &t
		}
	}
	return nil
}

// MarshalYAML writes the same shape UnmarshalYAML reads.
func (r Recurrence) MarshalYAML() (any, error) {
	out := recurrenceYAML{
		Rule:            r.Rule,
		At:              FormatClock(r.TimeOfDay),
		DurationMinutes: r.DurationMinutes,
	}
	for _, d := range r.Days {
		out.Days = append(out.Days, strings.ToLower(d.String()[:3]))
	}
	if r.Until != nil {
		out.Until = r.Until.Format("2006-01-02")
	}
	return out, nil
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is allowed
// as the end of the day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
