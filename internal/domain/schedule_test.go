package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestRuleIsDue_DailyMatchesWeekdays verifies a daily rule fires exactly
// on Monday through Friday across two full weeks.
func TestRuleIsDue_DailyMatchesWeekdays(t *testing.T) {
	rule := Rule{Frequency: FrequencyDaily}

	// 2024-01-01 is a Monday.
	start := date(2024, time.January, 1)
	for i := 0; i < 14; i++ {
		day := start.AddDate(0, 0, i)
		want := day.Weekday() >= time.Monday && day.Weekday() <= time.Friday
		if got := rule.IsDue(day); got != want {
			t.Errorf("IsDue(%s %s) = %v, want %v", day.Format("2006-01-02"), day.Weekday(), got, want)
		}
	}
}

// TestRuleIsDue_WeeklyFiresOncePerWeek verifies a weekly rule matches its
// configured weekday and fires exactly once per 7-day window.
func TestRuleIsDue_WeeklyFiresOncePerWeek(t *testing.T) {
	rule := Rule{Frequency: FrequencyWeekly, DayOfWeek: 2} // Wednesday, Monday=0

	if !rule.IsDue(date(2024, time.January, 3)) {
		t.Error("expected due on Wednesday 2024-01-03")
	}
	if rule.IsDue(date(2024, time.January, 4)) {
		t.Error("did not expect due on Thursday 2024-01-04")
	}

	fires := 0
	start := date(2024, time.January, 1)
	for i := 0; i < 28; i++ {
		if rule.IsDue(start.AddDate(0, 0, i)) {
			fires++
		}
	}
	if fires != 4 {
		t.Errorf("weekly rule fired %d times in 28 days, want 4", fires)
	}
}

// TestRuleIsDue_WeeklyMondayIndexing pins the Monday=0 .. Sunday=6
// convention used by template files.
func TestRuleIsDue_WeeklyMondayIndexing(t *testing.T) {
	tests := []struct {
		dayOfWeek int
		day       time.Time
	}{
		{0, date(2024, time.January, 1)}, // Monday
		{1, date(2024, time.January, 2)},
		{2, date(2024, time.January, 3)},
		{3, date(2024, time.January, 4)},
		{4, date(2024, time.January, 5)},
		{5, date(2024, time.January, 6)}, // Saturday
		{6, date(2024, time.January, 7)}, // Sunday
	}

	for _, tt := range tests {
		rule := Rule{Frequency: FrequencyWeekly, DayOfWeek: tt.dayOfWeek}
		if !rule.IsDue(tt.day) {
			t.Errorf("day_of_week=%d: expected due on %s", tt.dayOfWeek, tt.day.Weekday())
		}
	}
}

func TestRuleIsDue_MonthlyExactDay(t *testing.T) {
	rule := Rule{Frequency: FrequencyMonthly, DayOfMonth: 15}

	if !rule.IsDue(date(2024, time.March, 15)) {
		t.Error("expected due on the 15th")
	}
	if rule.IsDue(date(2024, time.March, 14)) || rule.IsDue(date(2024, time.March, 16)) {
		t.Error("did not expect due on adjacent days")
	}
}

// TestRuleIsDue_MonthlyDay31NoRollover verifies that day_of_month=31
// simply never fires in months with fewer than 31 days. There is no
// last-day-of-month fallback.
func TestRuleIsDue_MonthlyDay31NoRollover(t *testing.T) {
	rule := Rule{Frequency: FrequencyMonthly, DayOfMonth: 31}

	short := map[time.Month]bool{
		time.February:  true,
		time.April:     true,
		time.June:      true,
		time.September: true,
		time.November:  true,
	}

	fires := 0
	for day := date(2024, time.January, 1); day.Year() == 2024; day = day.AddDate(0, 0, 1) {
		due := rule.IsDue(day)
		if due {
			fires++
			if short[day.Month()] {
				t.Errorf("day 31 fired in %s, a month without 31 days", day.Month())
			}
			if day.Day() != 31 {
				t.Errorf("fired on day %d, want 31", day.Day())
			}
		}
	}
	if fires != 7 {
		t.Errorf("day 31 fired %d times in 2024, want 7 (the 31-day months)", fires)
	}
}

// TestRuleIsDue_QuarterlyFullYear sweeps a whole year and expects a
// quarterly rule on months {1,4,7,10} day 10 to fire on exactly those
// four dates.
func TestRuleIsDue_QuarterlyFullYear(t *testing.T) {
	rule := Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10, Months: []int{1, 4, 7, 10}}

	var fired []string
	for day := date(2024, time.January, 1); day.Year() == 2024; day = day.AddDate(0, 0, 1) {
		if rule.IsDue(day) {
			fired = append(fired, day.Format("2006-01-02"))
		}
	}

	want := []string{"2024-01-10", "2024-04-10", "2024-07-10", "2024-10-10"}
	if len(fired) != len(want) {
		t.Fatalf("fired on %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %s, want %s", i, fired[i], want[i])
		}
	}
}

// TestRuleIsDue_QuarterlyShortMonth verifies the no-rollover policy also
// applies to quarterly rules: day 31 in February never fires.
func TestRuleIsDue_QuarterlyShortMonth(t *testing.T) {
	rule := Rule{Frequency: FrequencyQuarterly, DayOfMonth: 31, Months: []int{2}}

	for day := date(2024, time.January, 1); day.Year() == 2024; day = day.AddDate(0, 0, 1) {
		if rule.IsDue(day) {
			t.Fatalf("quarterly day 31 in February fired on %s", day.Format("2006-01-02"))
		}
	}
}

// TestRuleIsDue_MalformedNeverDue verifies that structurally invalid
// rules evaluate to not-due on every date instead of panicking. A weekly
// rule with day_of_week absent (-1) is the canonical case.
func TestRuleIsDue_MalformedNeverDue(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"weekly missing day_of_week", Rule{Frequency: FrequencyWeekly, DayOfWeek: -1}},
		{"weekly day_of_week out of range", Rule{Frequency: FrequencyWeekly, DayOfWeek: 7}},
		{"monthly missing day_of_month", Rule{Frequency: FrequencyMonthly}},
		{"monthly day_of_month out of range", Rule{Frequency: FrequencyMonthly, DayOfMonth: 32}},
		{"quarterly empty months", Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10}},
		{"quarterly month out of range", Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10, Months: []int{13}}},
		{"missing frequency", Rule{}},
		{"unknown frequency", Rule{Frequency: "fortnightly"}},
	}

	start := date(2024, time.January, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 366; i++ {
				if day := start.AddDate(0, 0, i); tt.rule.IsDue(day) {
					t.Fatalf("malformed rule fired on %s", day.Format("2006-01-02"))
				}
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"daily", Rule{Frequency: FrequencyDaily}, false},
		{"weekly monday", Rule{Frequency: FrequencyWeekly, DayOfWeek: 0}, false},
		{"weekly sunday", Rule{Frequency: FrequencyWeekly, DayOfWeek: 6}, false},
		{"weekly out of range", Rule{Frequency: FrequencyWeekly, DayOfWeek: 7}, true},
		{"weekly absent day", Rule{Frequency: FrequencyWeekly, DayOfWeek: -1}, true},
		{"monthly first", Rule{Frequency: FrequencyMonthly, DayOfMonth: 1}, false},
		{"monthly 31st", Rule{Frequency: FrequencyMonthly, DayOfMonth: 31}, false},
		{"monthly zero", Rule{Frequency: FrequencyMonthly}, true},
		{"quarterly", Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10, Months: []int{1, 4, 7, 10}}, false},
		{"quarterly no months", Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10}, true},
		{"quarterly bad month", Rule{Frequency: FrequencyQuarterly, DayOfMonth: 10, Months: []int{0}}, true},
		{"empty frequency", Rule{}, true},
		{"unknown frequency", Rule{Frequency: "hourly"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMondayWeekday(t *testing.T) {
	// 2024-01-01 is a Monday; the helper should walk 0..6 through the week.
	start := date(2024, time.January, 1)
	for i := 0; i < 7; i++ {
		if got := mondayWeekday(start.AddDate(0, 0, i)); got != i {
			t.Errorf("mondayWeekday(+%d days) = %d, want %d", i, got, i)
		}
	}
}
