package index

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// DayCount is the number of visible events on one day.
type DayCount struct {
	Date  model.Date
	Count int
}

// MonthDays returns one entry per calendar day of the month, including
// days without events. It returns nil for a month outside 1..12.
func (idx *Index) MonthDays(year int, month time.Month) []DayCount {
	if month < time.January || month > time.December {
		return nil
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		appLog.Error("month day rule failed", err, "year", year, "month", int(month))
		return nil
	}

	days := r.All()
	out := make([]DayCount, 0, len(days))
	for _, d := range days {
		date := model.NewDateFromTime(d)
		out = append(out, DayCount{
			Date:  date,
			Count: len(idx.QueryDay(date.Key())),
		})
	}
	return out
}
