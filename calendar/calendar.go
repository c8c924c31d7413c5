package calendar

import "time"

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	// TARGET is the eurozone TARGET2 settlement calendar.
	TARGET CalendarID = "TARGET"
	// USNY is the US (New York) calendar.
	USNY CalendarID = "USNY"
	// JPTO is the Tokyo calendar.
	JPTO CalendarID = "JPTO"
	// GBLO is the London calendar.
	GBLO CalendarID = "GBLO"
	// NONE treats only weekends as non-business days.
	NONE CalendarID = "NONE"
)

// Holiday tables are keyed by YYYY-MM-DD. They are intentionally sparse:
// weekend handling dominates curve date arithmetic, and callers that need a
// fully populated calendar can register holidays at startup.
var holidays = map[CalendarID]map[string]struct{}{
	TARGET: {},
	USNY:   {},
	JPTO:   {},
	GBLO:   {},
}

// RegisterHolidays adds holiday dates to a calendar's table.
// Must be called during initialisation, before any calibration starts.
func RegisterHolidays(cal CalendarID, dates []time.Time) {
	m, ok := holidays[cal]
	if !ok {
		m = make(map[string]struct{})
		holidays[cal] = m
	}
	for _, d := range dates {
		m[d.Format("2006-01-02")] = struct{}{}
	}
}

func isHoliday(cal CalendarID, t time.Time) bool {
	m, ok := holidays[cal]
	if !ok {
		return false
	}
	_, hit := m[t.Format("2006-01-02")]
	return hit
}

// IsBusinessDay checks weekends and the calendar's holiday set.
func IsBusinessDay(cal CalendarID, t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if cal == NONE {
		return true
	}
	return !isHoliday(cal, t)
}

// Adjust applies Modified Following.
func Adjust(cal CalendarID, t time.Time) time.Time {
	origMonth := t.Month()
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !IsBusinessDay(cal, t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// AdjustFollowing applies a simple Following convention (no month preservation).
func AdjustFollowing(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AdjustPreceding rolls backward to the previous business day.
func AdjustPreceding(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// AddBusinessDays advances n business days (n can be negative).
func AddBusinessDays(cal CalendarID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(cal, t) {
			n -= step
		}
	}
	return t
}
