// Package window decides which dated records count towards a
// computation.
//
// A Window is one of a closed set of modes. A Selector binds windows to
// the household clock and timezone and turns them into predicates over
// ISO date strings, so every consumer filters records the same way.
package window

import (
	"fmt"
	"strings"
	"time"

	"mess/internal/core"
)

const (
	Today Mode = iota + 1
	CurrentMonth
	SelectedMonth
	AllTime
)

// Mode names one of the supported windows.
type Mode int

// Window is a date-range selection. Year, Month and Day are only set for
// modes that need them; Resolve fills them for the clock-relative modes.
type Window struct {
	Mode  Mode
	Year  int
	Month time.Month
	Day   int
}

// Predicate reports whether a record dated with the given ISO string is
// inside a window.
type Predicate func(date string) bool

func (m Mode) String() string {
	switch m {
	case Today:
		return "today"
	case CurrentMonth:
		return "month"
	case SelectedMonth:
		return "selected"
	case AllTime:
		return "all"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ForToday() Window        { return Window{Mode: Today} }
func ForCurrentMonth() Window { return Window{Mode: CurrentMonth} }
func ForAllTime() Window      { return Window{Mode: AllTime} }

// ForMonth selects an explicit calendar month.
func ForMonth(year int, month time.Month) Window {
	return Window{Mode: SelectedMonth, Year: year, Month: month}
}

// Parse builds a window from its textual mode. "month" with a year and
// month becomes a selected month; without them it is the current month.
func Parse(mode string, year, month int) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "today", "day":
		return ForToday(), nil
	case "", "month", "current", "selected":
		if year == 0 && month == 0 {
			return ForCurrentMonth(), nil
		}
		w := ForMonth(year, time.Month(month))
		if err := w.Validate(); err != nil {
			return Window{}, err
		}
		return w, nil
	case "all", "all_time", "alltime":
		return ForAllTime(), nil
	default:
		return Window{}, fmt.Errorf("unknown window mode %q", mode)
	}
}

// Validate checks the fields a selected month needs.
func (w Window) Validate() error {
	switch w.Mode {
	case Today, CurrentMonth, AllTime:
		return nil
	case SelectedMonth:
		if w.Month < time.January || w.Month > time.December {
			return fmt.Errorf("invalid month: %d", int(w.Month))
		}
		if w.Year < 1 {
			return fmt.Errorf("invalid year: %d", w.Year)
		}
		return nil
	default:
		return fmt.Errorf("invalid window mode: %d", int(w.Mode))
	}
}

// Resolve pins clock-relative modes to the calendar day of today.
func (w Window) Resolve(today core.Date) Window {
	switch w.Mode {
	case Today:
		w.Year, w.Month, w.Day = today.Year(), today.Month(), today.Day()
	case CurrentMonth:
		w.Year, w.Month, w.Day = today.Year(), today.Month(), 0
	}
	return w
}

// Match reports whether date falls in a resolved window. Unparseable
// dates only match AllTime.
func (w Window) Match(date string) bool {
	if w.Mode == AllTime {
		return true
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return false
	}
	switch w.Mode {
	case Today:
		return d.Year() == w.Year && d.Month() == w.Month && d.Day() == w.Day
	case CurrentMonth, SelectedMonth:
		return d.Year() == w.Year && d.Month() == w.Month
	default:
		return false
	}
}

// Label is a stable name for a resolved window, used in report titles and
// cache keys.
func (w Window) Label() string {
	switch w.Mode {
	case Today:
		return fmt.Sprintf("%04d-%02d-%02d", w.Year, int(w.Month), w.Day)
	case CurrentMonth, SelectedMonth:
		return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
	case AllTime:
		return "all-time"
	default:
		return w.Mode.String()
	}
}
