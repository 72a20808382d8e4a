package feed

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"sheetcal/internal/model"
)

// leadingWeekday matches a weekday name opening a long-form date such as
// "Tuesday, March 5, 2024".
var leadingWeekday = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+`)

// NormalizeDate interprets an arbitrary date-like string and returns its
// calendar day. The boolean is false when s is empty or not a date.
//
// Time-of-day and zone offsets are discarded: the day is the wall-clock
// date as written, so "2024-03-05T23:00:00-08:00" stays on the 5th.
// Slash dates are read month-first. Inputs without a year ("March 5",
// "12:30") are rejected.
func NormalizeDate(s string) (model.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Date{}, false
	}
	t, err := parse(s)
	if err != nil {
		stripped := leadingWeekday.ReplaceAllString(s, "")
		if stripped == s {
			return model.Date{}, false
		}
		if t, err = parse(stripped); err != nil {
			return model.Date{}, false
		}
	}
	if t.Year() == 0 {
		return model.Date{}, false
	}
	return model.NewDateFromTime(t), true
}

func parse(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(true))
}
