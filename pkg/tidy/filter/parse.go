package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Calendar-ish units accepted by ParseDuration.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var (
	// ErrInvalidDuration is returned for an age ParseDuration cannot read.
	ErrInvalidDuration = errors.New("invalid duration format")
	// ErrNegativeValue is returned for a negative age.
	ErrNegativeValue = errors.New("value cannot be negative")
)

var ageUnits = map[string]time.Duration{"d": Day, "w": Week, "mo": Month, "y": Year}

var agePattern = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(d|w|mo|y)$`)

// ParseDuration reads ages like "30d", "2w", "3mo" or "1.5y". Anything else
// goes through time.ParseDuration, so "36h" works too.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	case strings.HasPrefix(s, "-"):
		return 0, ErrNegativeValue
	}

	m := agePattern.FindStringSubmatch(s)
	if m == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return d, nil
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return time.Duration(n * float64(ageUnits[strings.ToLower(m[2])])), nil
}
