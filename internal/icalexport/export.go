package icalexport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"sheetcal/internal/model"
)

// Options controls calendar-level properties.
type Options struct {
	Name   string
	Domain string // UID suffix, e.g. "calendar.example.org"
	Now    func() time.Time
}

// Build converts events into an all-day iCalendar feed. UIDs are derived
// from the event content plus its position among identical events, so
// duplicates stay distinct and UIDs are stable across reloads.
func Build(events []model.Event, opts Options) *ics.Calendar {
	if opts.Name == "" {
		opts.Name = "Events"
	}
	if opts.Domain == "" {
		opts.Domain = "sheetcal.local"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	stamp := opts.Now().UTC()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//sheetcal//events//EN")
	cal.SetXWRCalName(opts.Name)

	seen := make(map[string]int)
	for _, ev := range events {
		base := contentHash(ev)
		n := seen[base]
		seen[base] = n + 1

		vev := cal.AddEvent(fmt.Sprintf("%s-%s-%d@%s", ev.Date.Key(), base, n, opts.Domain))
		vev.SetDtStampTime(stamp)
		vev.SetAllDayStartAt(ev.Date.Time)
		vev.SetAllDayEndAt(ev.Date.AddDate(0, 0, 1))
		vev.SetSummary(ev.Program)
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		if desc := description(ev); desc != "" {
			vev.SetDescription(desc)
		}
	}
	return cal
}

// Write serializes events as text/calendar to w.
func Write(w io.Writer, events []model.Event, opts Options) error {
	_, err := io.WriteString(w, Build(events, opts).Serialize())
	return err
}

func description(ev model.Event) string {
	var parts []string
	if ev.Contact != "" {
		parts = append(parts, "Contact: "+ev.Contact)
	}
	if ev.Comments != "" {
		parts = append(parts, ev.Comments)
	}
	return strings.Join(parts, "\n")
}

func contentHash(ev model.Event) string {
	h := sha256.New()
	for _, s := range []string{ev.Date.Key(), ev.Program, ev.Location, ev.Contact, ev.Comments} {
		io.WriteString(h, s)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:6])
}
