package window

import (
	"fmt"
	"time"

	"mess/internal/core"
)

// DefaultDeadlineHour is the household-local hour after which members
// can no longer submit their own meals for the day.
const DefaultDeadlineHour = 22

const (
	Monthly Windowing = "monthly"
	Unbound Windowing = "all_time"
)

// Windowing is the deployment-wide choice between month-partitioned
// accounting and a single all-time ledger.
type Windowing string

// ParseWindowing validates a configured windowing value.
func ParseWindowing(s string) (Windowing, error) {
	switch Windowing(s) {
	case Monthly, Unbound:
		return Windowing(s), nil
	default:
		return "", fmt.Errorf("unknown windowing %q: must be %q or %q", s, Monthly, Unbound)
	}
}

// Default is the window used when a caller does not ask for one.
func (w Windowing) Default() Window {
	if w == Unbound {
		return ForAllTime()
	}
	return ForCurrentMonth()
}

// Selector is a predicate factory bound to a clock and a timezone.
type Selector struct {
	loc          *time.Location
	now          func() time.Time
	deadlineHour int
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithDeadlineHour overrides DefaultDeadlineHour.
func WithDeadlineHour(hour int) Option {
	return func(s *Selector) { s.deadlineHour = hour }
}

// NewSelector creates a selector for the household timezone. A nil
// location means UTC.
func NewSelector(loc *time.Location, opts ...Option) *Selector {
	if loc == nil {
		loc = time.UTC
	}
	s := &Selector{loc: loc, now: time.Now, deadlineHour: DefaultDeadlineHour}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the household timezone.
func (s *Selector) Now() time.Time {
	return s.now().In(s.loc)
}

// Today returns the household calendar day.
func (s *Selector) Today() core.Date {
	return core.Today(s.now(), s.loc)
}

// Location returns the household timezone.
func (s *Selector) Location() *time.Location {
	return s.loc
}

// DeadlineHour returns the configured submission cutoff hour.
func (s *Selector) DeadlineHour() int {
	return s.deadlineHour
}

// Resolve pins w to the current household day.
func (s *Selector) Resolve(w Window) Window {
	return w.Resolve(s.Today())
}

// Predicate resolves w against the clock and returns its date filter.
func (s *Selector) Predicate(w Window) Predicate {
	return s.Resolve(w).Match
}

// BeforeDeadline reports whether self-service meal submission is still
// open right now.
func (s *Selector) BeforeDeadline() bool {
	return s.Now().Hour() < s.deadlineHour
}

// IsBeforeSubmissionDeadline is the stateless form of the cutoff rule;
// now must already be in the household timezone.
func IsBeforeSubmissionDeadline(now time.Time) bool {
	return now.Hour() < DefaultDeadlineHour
}
