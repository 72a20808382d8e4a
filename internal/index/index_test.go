package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/feed"
)

func build(t *testing.T, csv string) *Index {
	t.Helper()
	return Build(feed.ParseTable(csv))
}

func programs(t *testing.T, idx *Index, key string) []string {
	t.Helper()
	var out []string
	for _, ev := range idx.QueryDay(key) {
		out = append(out, ev.Program)
	}
	return out
}

func TestQueryDayFilters(t *testing.T) {
	idx := build(t, "DATE,PROGRAM,VISIBILITY\n"+
		"2024-03-05,Open Chess,\n"+
		"2024-03-05,Staff Meeting,Internal\n"+
		"2024-03-05,Story Time,\"PUBLIC, staff\"\n"+
		"2024-03-05,,Public\n"+
		"2024-03-05,   ,Public\n"+
		"2024-03-06,Other Day,Public\n")

	assert.Equal(t, []string{"Open Chess", "Story Time"}, programs(t, idx, "2024-03-05"))
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, 3, idx.VisibleLen())
}

func TestVisibilityDefaultWithoutColumn(t *testing.T) {
	idx := build(t, "DATE,PROGRAM\n2024-03-05,Yoga\n")
	assert.Equal(t, []string{"Yoga"}, programs(t, idx, "2024-03-05"))
}

func TestDateFormsAgree(t *testing.T) {
	idx := build(t, "DATE,PROGRAM\n"+
		"2024-03-05,iso\n"+
		"03/05/2024,slash\n"+
		"\"March 5, 2024\",long\n")

	assert.Equal(t, []string{"iso", "slash", "long"}, programs(t, idx, "2024-03-05"))
	assert.Len(t, idx.QueryMonth(2024, time.March), 3)
}

func TestDroppedRows(t *testing.T) {
	idx := build(t, "DATE,PROGRAM\nTBD,Mystery\n2024-03-05,Known\n")
	assert.Equal(t, 1, idx.Len())
}

func TestEmptyProgramRetainedButHidden(t *testing.T) {
	idx := build(t, "DATE,PROGRAM,LOCATION\n2024-03-05,,Hall\n")
	require.Equal(t, 1, idx.Len())
	assert.Empty(t, idx.QueryDay("2024-03-05"))
	assert.Empty(t, idx.QueryMonth(2024, time.March))
}

func TestQueryMonth(t *testing.T) {
	idx := build(t, "DATE,PROGRAM\n"+
		"2024-03-31,Late March\n"+
		"2024-04-01,April\n"+
		"2024-03-05,Early March\n")

	got := idx.QueryMonth(2024, time.March)
	require.Len(t, got, 2)
	assert.Equal(t, "Late March", got[0].Program)
	assert.Equal(t, "Early March", got[1].Program)

	assert.Len(t, idx.QueryMonth(2024, time.April), 1)
	assert.Empty(t, idx.QueryMonth(2023, time.March))
	assert.Empty(t, idx.QueryMonth(2024, 13))
}

func TestQueriesAreIdempotent(t *testing.T) {
	idx := build(t, "DATE,PROGRAM,LOCATION\n2024-03-05,A|B|C,X|Y\n")

	first := idx.QueryDay("2024-03-05")
	second := idx.QueryDay("2024-03-05")
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "", first[2].Location)

	// Mutating a result must not leak into the index.
	first[0].Program = "changed"
	assert.Equal(t, "A", idx.QueryDay("2024-03-05")[0].Program)
}

func TestMalformedTablesNeverPanic(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"just one cell",
		"DATE\n",
		"DATE,PROGRAM\n,,,,,,,\n\"\n",
		"a,b,c\n1,2,3\n",
		"DATE,PROGRAM,VISIBILITY\n2024-03-05\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			idx := build(t, in)
			_ = idx.QueryDay("2024-03-05")
			_ = idx.QueryMonth(2024, time.March)
			_ = idx.MonthDays(2024, time.March)
		}, in)
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := Empty()
	assert.NotEmpty(t, idx.ID())
	assert.NotNil(t, idx.QueryDay("2024-03-05"))
	assert.Empty(t, idx.Events())
}

func TestIsPublic(t *testing.T) {
	cases := map[string]bool{
		"":              true,
		"Public":        true,
		"public, staff": true,
		"NOT PUBLIC":    true,
		"Internal":      false,
		"private":       false,
		"Pub":           false,
	}
	for tag, want := range cases {
		assert.Equal(t, want, IsPublic(tag), tag)
	}
}

func TestMonthDays(t *testing.T) {
	idx := build(t, "DATE,PROGRAM\n"+
		"2024-02-29,Leap A|Leap B\n"+
		"2024-02-01,First\n"+
		"2024-03-01,Next Month\n")

	days := idx.MonthDays(2024, time.February)
	require.Len(t, days, 29)
	assert.Equal(t, "2024-02-01", days[0].Date.Key())
	assert.Equal(t, 1, days[0].Count)
	assert.Equal(t, "2024-02-29", days[28].Date.Key())
	assert.Equal(t, 2, days[28].Count)
	assert.Equal(t, 0, days[10].Count)

	assert.Nil(t, idx.MonthDays(2024, 0))
}
