package generic

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular calendar date
// =============================================================================

// TimePoint is a calendar date in UTC. Simulation time never consults the
// wall clock: every comparison is between dates carried by the data.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-M-D" with one or two digit month and day.
// The date must exist on the calendar (2024-02-30 is rejected).
func ParseDate(s string) (TimePoint, bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return TimePoint{}, false
	}
	year, ok := parseDigits(parts[0], 4)
	if !ok {
		return TimePoint{}, false
	}
	month, ok := parseDigits(parts[1], 2)
	if !ok || month < 1 || month > 12 {
		return TimePoint{}, false
	}
	day, ok := parseDigits(parts[2], 2)
	if !ok || day < 1 {
		return TimePoint{}, false
	}
	tp := NewTimePoint(year, time.Month(month), day)
	if tp.Time.Day() != day || tp.Time.Month() != time.Month(month) {
		return TimePoint{}, false
	}
	return tp, true
}

func parseDigits(s string, maxLen int) (int, bool) {
	if s == "" || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.normalize().Equal(other.normalize()) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

func (tp TimePoint) String() string { return tp.Time.Format("2006-01-02") }

// MonthKey returns the "YYYY-MM" bucket the date falls into.
func (tp TimePoint) MonthKey() string { return tp.Time.Format("2006-01") }

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns whole days from 'from' to 'to' (negative if to is earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// ValidMonthKey reports whether s is a "YYYY-MM" key.
func ValidMonthKey(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil && len(s) == 7
}
