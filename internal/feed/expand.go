package feed

import (
	"strings"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// DefaultVisibility is used when a row has no VISIBILITY value at all.
const DefaultVisibility = "Public"

// Record is one data row keyed by upper-cased header name.
type Record map[string]string

// RecordFromRow maps a data row onto headers by position. Cells are
// trimmed and missing trailing cells become "". When a header name
// repeats, the later column wins.
func RecordFromRow(headers []string, row []string) Record {
	rec := make(Record, len(headers))
	for i, h := range headers {
		v := ""
		if i < len(row) {
			v = strings.TrimSpace(row[i])
		}
		rec[h] = v
	}
	return rec
}

// Expand turns a record into events. A record whose DATE does not
// normalize yields nothing.
//
// Multi-value fields hold pipe-separated values that are aligned by
// position: PROGRAM "A|B|C" with LOCATION "X|Y" gives (A,X) (B,Y) (C,"").
// Expand never filters events itself; empty programs are handled by the
// index queries.
func Expand(rec Record) []model.Event {
	date, ok := NormalizeDate(rec[ColDate])
	if !ok {
		return nil
	}

	programs := splitMulti(rec[ColProgram], "")
	locations := splitMulti(rec[ColLocation], "")
	contacts := splitMulti(rec[ColContact], "")
	comments := splitMulti(rec[ColComments], "")
	visibilities := splitMulti(rec[ColVisibility], DefaultVisibility)

	n := max(len(programs), len(locations), len(contacts), len(comments), len(visibilities))

	events := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, model.Event{
			Date:       date,
			Program:    at(programs, i),
			Location:   at(locations, i),
			Contact:    at(contacts, i),
			Comments:   at(comments, i),
			Visibility: at(visibilities, i),
		})
	}
	return events
}

// ExpandTable runs the whole row pipeline over a parsed table: locate the
// header, map each following row, expand. Events keep row order.
func ExpandTable(t Table) []model.Event {
	if len(t) == 0 {
		return nil
	}
	hi := LocateHeader(t)
	headers := Headers(t[hi])

	var events []model.Event
	dropped := 0
	for _, row := range t[hi+1:] {
		evs := Expand(RecordFromRow(headers, row))
		if len(evs) == 0 {
			dropped++
			continue
		}
		events = append(events, evs...)
	}
	if dropped > 0 {
		appLog.Debug("rows without a usable date skipped", "count", dropped)
	}
	return events
}

func splitMulti(v, empty string) []string {
	if v == "" {
		return []string{empty}
	}
	return strings.Split(v, "|")
}

func at(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return ""
}
