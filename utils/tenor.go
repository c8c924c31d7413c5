package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tenor is a market period such as "1D", "3M", "10Y" or "18M".
type Tenor struct {
	Days   int
	Months int
}

// ParseTenor parses a tenor string of the form <n>D, <n>W, <n>M or <n>Y.
func ParseTenor(s string) (Tenor, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Tenor{}, fmt.Errorf("ParseTenor: invalid tenor %q", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Tenor{}, fmt.Errorf("ParseTenor: invalid tenor %q", s)
	}
	switch unit {
	case 'D':
		return Tenor{Days: n}, nil
	case 'W':
		return Tenor{Days: 7 * n}, nil
	case 'M':
		return Tenor{Months: n}, nil
	case 'Y':
		return Tenor{Months: 12 * n}, nil
	default:
		return Tenor{}, fmt.Errorf("ParseTenor: invalid tenor unit %q", s)
	}
}

// AddTo returns t advanced by the tenor, unadjusted for business days.
// Month steps use EDATE-style month arithmetic to avoid month rollover drift.
func (tn Tenor) AddTo(t time.Time) time.Time {
	if tn.Months != 0 {
		t = AddMonth(t, tn.Months)
	}
	if tn.Days != 0 {
		t = t.AddDate(0, 0, tn.Days)
	}
	return t
}

// String renders the tenor in its canonical market form.
func (tn Tenor) String() string {
	switch {
	case tn.Months != 0 && tn.Months%12 == 0:
		return fmt.Sprintf("%dY", tn.Months/12)
	case tn.Months != 0:
		return fmt.Sprintf("%dM", tn.Months)
	case tn.Days != 0 && tn.Days%7 == 0:
		return fmt.Sprintf("%dW", tn.Days/7)
	default:
		return fmt.Sprintf("%dD", tn.Days)
	}
}
