// Package schedule generates the fixed-width slot grids that the booking
// and bulk-reschedule logic assign appointments into.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidRange = errors.New("invalid slot range")

// Generate returns the ordered HH:MM labels between start (inclusive) and
// end (exclusive), stepping by interval minutes. It is pure: identical
// inputs always yield identical output.
func Generate(start, end string, interval int) ([]string, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRange, interval)
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if startMin >= endMin {
		return nil, fmt.Errorf("%w: start %q is not before end %q", ErrInvalidRange, start, end)
	}

	labels := make([]string, 0, (endMin-startMin)/interval)
	for m := startMin; m < endMin; m += interval {
		labels = append(labels, FormatClock(m))
	}
	return labels, nil
}

// ParseClock converts an HH:MM label to minutes since midnight.
func ParseClock(label string) (int, error) {
	parts := strings.SplitN(label, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidRange, label)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidRange, label)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidRange, label)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as a zero-padded HH:MM label.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Label renders the clock portion of an instant as HH:MM.
func Label(t time.Time) string {
	return t.Format("15:04")
}

// At combines a calendar day with an HH:MM label into an instant in the
// day's location.
func At(day time.Time, label string) (time.Time, error) {
	minutes, err := ParseClock(label)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location()), nil
}
