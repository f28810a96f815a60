package domain

import (
	"errors"
	"fmt"
	"time"
)

// Frequency identifies one of the four supported recurrence families.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// Rule is one recurrence definition. Exactly the fields required by
// Frequency are meaningful: DayOfWeek for weekly, DayOfMonth for monthly
// and quarterly, Months for quarterly only.
//
// DayOfWeek uses Monday=0 .. Sunday=6 indexing, matching the template
// file format. Loaders set it to -1 when the field was absent.
type Rule struct {
	Frequency  Frequency
	DayOfWeek  int
	DayOfMonth int
	Months     []int
}

// Validate reports why a rule is malformed. Malformed rules are excluded
// once at load time; IsDue additionally treats them as never due, so a
// bad rule that slips past loading can never fire.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily:
		return nil
	case FrequencyWeekly:
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fmt.Errorf("weekly schedule needs day_of_week in 0..6 (Monday=0), got %d", r.DayOfWeek)
		}
		return nil
	case FrequencyMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("monthly schedule needs day_of_month in 1..31, got %d", r.DayOfMonth)
		}
		return nil
	case FrequencyQuarterly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("quarterly schedule needs day_of_month in 1..31, got %d", r.DayOfMonth)
		}
		if len(r.Months) == 0 {
			return errors.New("quarterly schedule needs a non-empty months list")
		}
		for _, m := range r.Months {
			if m < 1 || m > 12 {
				return fmt.Errorf("quarterly schedule month out of range: %d", m)
			}
		}
		return nil
	case "":
		return errors.New("schedule frequency is required")
	default:
		return fmt.Errorf("unknown schedule frequency %q", r.Frequency)
	}
}

// IsDue reports whether the rule fires on the given date. Pure function
// of the rule and the supplied date; callers inject "today" rather than
// reading the clock here.
//
// Daily fires Monday through Friday only. Monthly and quarterly use exact
// day equality: day_of_month=31 never fires in February, with no
// last-day-of-month fallback. That is intended behavior, not a gap.
func (r Rule) IsDue(today time.Time) bool {
	if r.Validate() != nil {
		return false
	}
	switch r.Frequency {
	case FrequencyDaily:
		wd := today.Weekday()
		return wd >= time.Monday && wd <= time.Friday
	case FrequencyWeekly:
		return mondayWeekday(today) == r.DayOfWeek
	case FrequencyMonthly:
		return today.Day() == r.DayOfMonth
	case FrequencyQuarterly:
		if today.Day() != r.DayOfMonth {
			return false
		}
		month := int(today.Month())
		for _, m := range r.Months {
			if m == month {
				return true
			}
		}
	}
	return false
}

// mondayWeekday maps time.Weekday's Sunday=0 onto the Monday=0 indexing
// used by template files.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
