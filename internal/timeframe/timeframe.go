// Package timeframe parses declared planning timeframes like "2025q1"
// into concrete date ranges.
package timeframe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

var (
	quarterRe = regexp.MustCompile(`^(\d{4})[qQ]([1-4])$`)
	halfRe    = regexp.MustCompile(`^(\d{4})[hH]([1-2])$`)
	weekRe    = regexp.MustCompile(`^(\d{4})[wW](\d{2})$`)
	monthRe   = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	yearRe    = regexp.MustCompile(`^(\d{4})$`)
)

// Parse converts a timeframe string to an inclusive [start, end] range.
//
// Supported forms: "2025" (year), "2025-03" (month), "2025q2" (quarter),
// "2025h1" (half), "2025w07" (ISO week).
func Parse(s string) (start, end time.Time, err error) {
	s = strings.TrimSpace(s)

	if m := quarterRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		quarter, _ := strconv.Atoi(m[2])
		startMonth := time.Month((quarter-1)*3 + 1)
		start = models.Date(year, startMonth, 1)
		end = models.AddDays(start.AddDate(0, 3, 0), -1)
		return start, end, nil
	}

	if m := halfRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		half, _ := strconv.Atoi(m[2])
		startMonth := time.Month((half-1)*6 + 1)
		start = models.Date(year, startMonth, 1)
		end = models.AddDays(start.AddDate(0, 6, 0), -1)
		return start, end, nil
	}

	if m := weekRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		if week < 1 || week > 53 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid week in timeframe %q", s)
		}
		// Jan 4 is always in ISO week 1; walk back to its Monday.
		jan4 := models.Date(year, time.January, 4)
		offset := (int(jan4.Weekday()) + 6) % 7
		week1Monday := models.AddDays(jan4, -offset)
		start = models.AddDays(week1Monday, (week-1)*7)
		end = models.AddDays(start, 6)
		return start, end, nil
	}

	if m := monthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid month in timeframe %q", s)
		}
		start = models.Date(year, time.Month(month), 1)
		end = models.AddDays(start.AddDate(0, 1, 0), -1)
		return start, end, nil
	}

	if m := yearRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		start = models.Date(year, time.January, 1)
		end = models.Date(year, time.December, 31)
		return start, end, nil
	}

	return time.Time{}, time.Time{}, fmt.Errorf("unparseable timeframe %q", s)
}
