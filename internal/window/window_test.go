package window

import (
	"testing"
	"time"

	"mess/internal/core"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSelectorPredicate(t *testing.T) {
	dhaka := time.FixedZone("BDT", 6*60*60)
	// 2026-01-31 20:30 UTC is already 2026-02-01 in Dhaka.
	sel := NewSelector(dhaka, WithClock(fixedClock(time.Date(2026, 1, 31, 20, 30, 0, 0, time.UTC))))

	tests := []struct {
		name   string
		window Window
		date   string
		want   bool
	}{
		{"today matches household day", ForToday(), "2026-02-01", true},
		{"today rejects utc day", ForToday(), "2026-01-31", false},
		{"current month uses household month", ForCurrentMonth(), "2026-02-15", true},
		{"current month rejects previous month", ForCurrentMonth(), "2026-01-31", false},
		{"current month rejects same month other year", ForCurrentMonth(), "2025-02-01", false},
		{"selected month", ForMonth(2025, time.December), "2025-12-31", true},
		{"selected month other month", ForMonth(2025, time.December), "2026-01-01", false},
		{"all time matches anything", ForAllTime(), "1999-01-01", true},
		{"all time matches garbage", ForAllTime(), "not a date", true},
		{"month rejects garbage", ForCurrentMonth(), "not a date", false},
		{"timestamp dates use their day", ForToday(), "2026-02-01T09:00:00+06:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sel.Predicate(tt.window)(tt.date); got != tt.want {
				t.Errorf("Predicate(%s)(%q) = %v, want %v", tt.window.Mode, tt.date, got, tt.want)
			}
		})
	}
}

func TestResolveAndLabel(t *testing.T) {
	today := core.NewDate(2026, 3, 9)
	tests := []struct {
		window Window
		want   string
	}{
		{ForToday(), "2026-03-09"},
		{ForCurrentMonth(), "2026-03"},
		{ForMonth(2025, time.November), "2025-11"},
		{ForAllTime(), "all-time"},
	}
	for _, tt := range tests {
		if got := tt.window.Resolve(today).Label(); got != tt.want {
			t.Errorf("Label(%s) = %q, want %q", tt.window.Mode, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		mode        string
		year, month int
		want        Window
		wantErr     bool
	}{
		{"today", 0, 0, ForToday(), false},
		{"month", 0, 0, ForCurrentMonth(), false},
		{"", 0, 0, ForCurrentMonth(), false},
		{"month", 2026, 1, ForMonth(2026, time.January), false},
		{"all", 0, 0, ForAllTime(), false},
		{"month", 2026, 13, Window{}, true},
		{"week", 0, 0, Window{}, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.mode, tt.year, tt.month)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q, %d, %d) expected error", tt.mode, tt.year, tt.month)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q, %d, %d) = %+v, %v; want %+v", tt.mode, tt.year, tt.month, got, err, tt.want)
		}
	}
}

func TestWindowingDefault(t *testing.T) {
	if got := Monthly.Default(); got.Mode != CurrentMonth {
		t.Fatalf("Monthly default = %s", got.Mode)
	}
	if got := Unbound.Default(); got.Mode != AllTime {
		t.Fatalf("Unbound default = %s", got.Mode)
	}
	if _, err := ParseWindowing("weekly"); err == nil {
		t.Fatalf("expected error for unknown windowing")
	}
}

func TestSubmissionDeadline(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{0, true},
		{21, true},
		{22, false},
		{23, false},
	}
	for _, tt := range tests {
		now := time.Date(2026, 1, 5, tt.hour, 59, 0, 0, time.UTC)
		if got := IsBeforeSubmissionDeadline(now); got != tt.want {
			t.Errorf("IsBeforeSubmissionDeadline(%02d:59) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSelectorBeforeDeadlineUsesHouseholdZone(t *testing.T) {
	dhaka := time.FixedZone("BDT", 6*60*60)
	// 15:30 UTC is 21:30 in Dhaka, 16:00 UTC is 22:00.
	open := NewSelector(dhaka, WithClock(fixedClock(time.Date(2026, 1, 5, 15, 30, 0, 0, time.UTC))))
	if !open.BeforeDeadline() {
		t.Fatalf("21:30 household time should be before the deadline")
	}
	closed := NewSelector(dhaka, WithClock(fixedClock(time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC))))
	if closed.BeforeDeadline() {
		t.Fatalf("22:00 household time should be past the deadline")
	}
	custom := NewSelector(dhaka, WithDeadlineHour(23), WithClock(fixedClock(time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC))))
	if !custom.BeforeDeadline() {
		t.Fatalf("custom deadline hour not honored")
	}
}
