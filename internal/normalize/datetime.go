package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form the scoring service expects.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// NormalizationError reports raw input that cannot be mapped to a canonical
// value. It points at upstream data corruption and is never defaulted away.
type NormalizationError struct {
	Field  string
	Input  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: %s %q: %s", e.Field, e.Input, e.Reason)
}

// ParseLocalDateTime converts "25 Oct 2025" and "03:42 AM" into a UTC
// timestamp. The wall-clock numbers are taken as UTC as-is.
func ParseLocalDateTime(dateStr, timeStr string) (string, error) {
	t, err := parseLocal(dateStr, timeStr)
	if err != nil {
		return "", err
	}
	return t.Format(TimestampLayout), nil
}

func parseLocal(dateStr, timeStr string) (time.Time, error) {
	dateErr := func(reason string) error {
		return &NormalizationError{Field: "date", Input: dateStr, Reason: reason}
	}
	timeErr := func(reason string) error {
		return &NormalizationError{Field: "time", Input: timeStr, Reason: reason}
	}

	parts := strings.Fields(dateStr)
	if len(parts) != 3 {
		return time.Time{}, dateErr("want \"DD Mon YYYY\"")
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, dateErr("day is not a number")
	}
	month, ok := months[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, dateErr("unknown month abbreviation")
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || year < 1 || year > 9999 {
		return time.Time{}, dateErr("year out of range")
	}
	if day < 1 || day > daysIn(month, year) {
		return time.Time{}, dateErr("day out of range")
	}

	tparts := strings.Fields(timeStr)
	if len(tparts) != 2 {
		return time.Time{}, timeErr("want \"hh:mm AM|PM\"")
	}
	hh, mm, found := strings.Cut(tparts[0], ":")
	if !found {
		return time.Time{}, timeErr("missing ':'")
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, timeErr("hour out of range")
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, timeErr("minute out of range")
	}

	switch strings.ToUpper(tparts[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return time.Time{}, timeErr("want AM or PM suffix")
	}

	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC), nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
