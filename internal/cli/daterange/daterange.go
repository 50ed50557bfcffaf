// Package daterange parses the CLI's date-range vocabulary into inclusive
// date pairs. Relative expressions are resolved against a caller-supplied
// clock so commands stay testable.
package daterange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Range is an inclusive pair of dates at UTC midnight. The archival
// pipeline widens the end date to its day boundary itself.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	const layout = "2006-01-02"
	if r.Start.Equal(r.End) {
		return r.Start.Format(layout)
	}
	return r.Start.Format(layout) + " to " + r.End.Format(layout)
}

// Parse resolves expr against now. Relative words use now's calendar date;
// "last N days" means the N days ending yesterday, so a nightly run never
// archives the day still in progress.
//
// Accepted forms: today, yesterday, last N days, last week (previous Monday
// to Sunday), last month, a single date, and "<date> to <date>" or
// "<date> - <date>". Date literals may be ISO (2025-06-02), day-first with
// -, /, . or space separators, and may name the month (2-Jun, 2 June 2025).
// An omitted year means the current one.
func Parse(expr string, now time.Time) (Range, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(expr)), " ")
	if normalized == "" {
		return Range{}, invalid("date range is empty")
	}

	today := midnight(now)

	switch normalized {
	case "today":
		return Range{Start: today, End: today}, nil
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return Range{Start: y, End: y}, nil
	case "last week":
		// Monday of the current week, then one week back.
		offset := (int(now.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset-7)
		return Range{Start: monday, End: monday.AddDate(0, 0, 6)}, nil
	case "last month":
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := firstOfThis.AddDate(0, 0, -1)
		return Range{Start: time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC), End: end}, nil
	}

	if n, ok := parseLastNDays(normalized); ok {
		if n < 1 {
			return Range{}, invalid("last N days requires N of at least 1")
		}
		return Range{Start: today.AddDate(0, 0, -n), End: today.AddDate(0, 0, -1)}, nil
	}

	first, second, isPair := splitPair(normalized)
	if !isPair {
		d, err := parseDate(normalized, now)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: d, End: d}, nil
	}

	start, err := parseDate(first, now)
	if err != nil {
		return Range{}, err
	}
	end, err := parseDate(second, now)
	if err != nil {
		return Range{}, err
	}
	if end.Before(start) {
		return Range{}, invalid(fmt.Sprintf("range end %s precedes start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02")))
	}
	return Range{Start: start, End: end}, nil
}

func parseLastNDays(s string) (int, bool) {
	rest, ok := strings.CutPrefix(s, "last ")
	if !ok {
		return 0, false
	}
	numeral, ok := strings.CutSuffix(rest, " days")
	if !ok {
		numeral, ok = strings.CutSuffix(rest, " day")
		if !ok {
			return 0, false
		}
	}
	n, err := strconv.Atoi(numeral)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitPair splits "<date> to <date>" and "<date> - <date>". The hyphen
// needs surrounding spaces so hyphenated literals stay intact.
func splitPair(s string) (string, string, bool) {
	for _, sep := range []string{" to ", " - "} {
		if first, second, found := strings.Cut(s, sep); found {
			return first, second, true
		}
	}
	return "", "", false
}

func parseDate(literal string, now time.Time) (time.Time, error) {
	literal = strings.TrimSpace(literal)

	var parts []string
	switch {
	case strings.Contains(literal, "/"):
		parts = strings.Split(literal, "/")
	case strings.Contains(literal, "."):
		parts = strings.Split(literal, ".")
	case strings.Contains(literal, "-"):
		parts = strings.Split(literal, "-")
	default:
		parts = strings.Fields(literal)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, invalid(fmt.Sprintf("unrecognized date %q", literal))
	}

	var dayPart, monthPart, yearPart string
	if len(parts) == 3 && len(parts[0]) == 4 {
		// ISO year-first.
		yearPart, monthPart, dayPart = parts[0], parts[1], parts[2]
	} else {
		dayPart, monthPart = parts[0], parts[1]
		if len(parts) == 3 {
			yearPart = parts[2]
		}
	}

	day, err := strconv.Atoi(dayPart)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, invalid(fmt.Sprintf("bad day %q in date %q", dayPart, literal))
	}
	month, err := parseMonth(monthPart)
	if err != nil {
		return time.Time{}, invalid(fmt.Sprintf("bad month %q in date %q", monthPart, literal))
	}
	year := now.Year()
	if yearPart != "" {
		year, err = strconv.Atoi(yearPart)
		if err != nil || year < 1000 || year > 9999 {
			return time.Time{}, invalid(fmt.Sprintf("bad year %q in date %q", yearPart, literal))
		}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, invalid(fmt.Sprintf("no such calendar day: %q", literal))
	}
	return d, nil
}

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

func parseMonth(s string) (int, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, invalid(fmt.Sprintf("month %d out of range", n))
	}
	if n, ok := monthNames[s]; ok {
		return n, nil
	}
	return 0, invalid(fmt.Sprintf("unknown month name %q", s))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func invalid(msg string) error {
	return errors.NewValidationError("INVALID_DATE_RANGE", msg)
}
