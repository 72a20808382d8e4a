package feed

import "strings"

// Recognized column names, compared after trimming and upper-casing.
const (
	ColDate       = "DATE"
	ColProgram    = "PROGRAM"
	ColLocation   = "LOCATION"
	ColContact    = "CONTACT"
	ColComments   = "COMMENTS"
	ColVisibility = "VISIBILITY"
)

// LocateHeader returns the index of the first row that has a cell
// containing "DATE" (case-insensitive). Sheets often carry a title block
// above the real header, so row 0 is only used when nothing matches.
func LocateHeader(t Table) int {
	for i, row := range t {
		for _, cell := range row {
			if strings.Contains(strings.ToUpper(cell), ColDate) {
				return i
			}
		}
	}
	return 0
}

// Headers normalizes a header row into trimmed, upper-cased names.
func Headers(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = strings.ToUpper(strings.TrimSpace(h))
	}
	return out
}
