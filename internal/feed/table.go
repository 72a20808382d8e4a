package feed

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	appLog "sheetcal/internal/log"
)

// Table is a parsed sheet export: rows of cells, no header assumed.
type Table [][]string

// ParseTable parses CSV text into a Table. Rows may have differing widths.
//
// Malformed input never fails the caller: parsing stops at the first
// syntax error and the rows read so far are returned.
func ParseTable(text string) Table {
	text = strings.TrimPrefix(text, "\ufeff")

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			appLog.Warn("csv parse stopped early", "err", err, "rows_read", len(rows))
			break
		}
		rows = append(rows, rec)
	}
	return rows
}
