package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Accepted years for civic records. Anything outside is a parse failure.
const (
	minYear = 2000
	maxYear = 2030
)

var slashDateRegex = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})$`)

// ParseDate accepts ISO (YYYY-MM-DD), UK (DD/MM/YYYY, DD-MM-YYYY) and US
// (MM/DD/YY, MM/DD/YYYY) forms. Two-digit years map to 20YY. Ambiguous
// slash dates are read day-first; a first component above 12 forces
// day-first, a second component above 12 forces month-first.
func ParseDate(s string) (time.Time, error) {
	s = cleanDateString(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return checkYear(t)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return checkYear(t)
	}

	if m := slashDateRegex.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}

		day, month := a, b
		if a <= 12 && b > 12 {
			// second component can only be a day: US form
			day, month = b, a
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("invalid date: %s", s)
		}
		return checkYear(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
	}

	// Month-name forms appear in PDFs and page text.
	for _, layout := range []string{"2 January 2006", "02 January 2006", "January 2, 2006", "2 Jan 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return checkYear(t)
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

func checkYear(t time.Time) (time.Time, error) {
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, fmt.Errorf("year %d out of range", t.Year())
	}
	return t, nil
}

// cleanDateString strips label prefixes ahead of the date value.
func cleanDateString(s string) string {
	prefixes := []string{
		"date:", "received:", "published:", "updated:", "decision date:",
		"validated:", "registered:",
	}
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			trimmed = strings.TrimSpace(trimmed[len(p):])
			lower = strings.ToLower(trimmed)
		}
	}
	return trimmed
}
