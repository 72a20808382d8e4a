package model

import (
	"strings"
	"time"
)

// DateFormat is the canonical day key layout.
const DateFormat = "2006-01-02"

// Date is a calendar day with no time-of-day or timezone meaning. The
// underlying time is always midnight UTC so that equality and formatting
// never depend on the process zone.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// NewDateFromTime keeps the wall-clock day of t, ignoring its zone.
func NewDateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseKey parses a canonical YYYY-MM-DD key.
func ParseKey(key string) (Date, error) {
	t, err := time.Parse(DateFormat, key)
	if err != nil {
		return Date{}, err
	}
	return NewDateFromTime(t), nil
}

// Key returns the canonical YYYY-MM-DD form.
func (d Date) Key() string {
	return d.Format(DateFormat)
}

// MonthKey returns the YYYY-MM prefix of Key.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) String() string {
	return d.Key()
}

// Event is one calendar entry derived from a spreadsheet row. A single row
// can produce several events when its fields hold pipe-separated values.
type Event struct {
	Date Date

	Program  string
	Location string
	Contact  string
	Comments string

	// Visibility is the raw tag from the sheet; see IsPublic in package index.
	Visibility string
}

// Initials returns up to two upper-cased letters taken from the first
// characters of the program's space-separated words.
func (e Event) Initials() string {
	out := make([]rune, 0, 2)
	for _, w := range strings.Split(e.Program, " ") {
		if w == "" {
			continue
		}
		out = append(out, []rune(w)[0])
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}
