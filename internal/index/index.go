// Package index holds the queryable, date-indexed view of one feed load.
//
// An Index is immutable once built. A reload builds a fresh Index and the
// owner swaps its reference, so readers never need a lock.
package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"sheetcal/internal/feed"
	"sheetcal/internal/model"
)

// Index is a snapshot of all events from one ingestion cycle.
type Index struct {
	id      string
	builtAt time.Time

	events  []model.Event
	byDay   map[string][]int
	byMonth map[string][]int
	visible int
}

// New indexes events in the given order.
func New(events []model.Event) *Index {
	idx := &Index{
		id:      uuid.NewString(),
		builtAt: time.Now(),
		events:  events,
		byDay:   make(map[string][]int),
		byMonth: make(map[string][]int),
	}
	for i, ev := range events {
		idx.byDay[ev.Date.Key()] = append(idx.byDay[ev.Date.Key()], i)
		idx.byMonth[ev.Date.MonthKey()] = append(idx.byMonth[ev.Date.MonthKey()], i)
		if Visible(ev) {
			idx.visible++
		}
	}
	return idx
}

// Empty returns an index with no events.
func Empty() *Index {
	return New(nil)
}

// Build runs the row pipeline over a parsed table and indexes the result.
func Build(t feed.Table) *Index {
	return New(feed.ExpandTable(t))
}

func (idx *Index) ID() string         { return idx.id }
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Len counts all indexed events, including hidden ones.
func (idx *Index) Len() int { return len(idx.events) }

// VisibleLen counts events that queries can return.
func (idx *Index) VisibleLen() int { return idx.visible }

// QueryDay returns the visible events on the day named by key
// (YYYY-MM-DD), in feed order.
func (idx *Index) QueryDay(key string) []model.Event {
	return idx.collect(idx.byDay[key])
}

// QueryMonth returns the visible events in the given month, in feed order.
func (idx *Index) QueryMonth(year int, month time.Month) []model.Event {
	return idx.collect(idx.byMonth[monthKey(year, month)])
}

// Events returns every visible event, in feed order.
func (idx *Index) Events() []model.Event {
	out := make([]model.Event, 0, idx.visible)
	for _, ev := range idx.events {
		if Visible(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (idx *Index) collect(positions []int) []model.Event {
	out := make([]model.Event, 0, len(positions))
	for _, i := range positions {
		if ev := idx.events[i]; Visible(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// Visible reports whether an event may be shown: it needs a program name
// and a public visibility tag.
func Visible(ev model.Event) bool {
	return strings.TrimSpace(ev.Program) != "" && IsPublic(ev.Visibility)
}

// IsPublic reports whether a visibility tag marks an event public. An
// empty tag counts as public.
func IsPublic(tag string) bool {
	if tag == "" {
		return true
	}
	// Casers are stateful; one per call.
	return strings.Contains(cases.Fold().String(tag), "public")
}
