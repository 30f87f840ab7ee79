// Package xlutil holds the small, independently-callable utilities the
// rest of the core leans on: column-letter arithmetic, the Excel 1900
// date epoch, and image format sniffing.
package xlutil

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnName returns the column letters reached by shifting current by
// offset columns, 1-based with A=1 — the same base-26 arithmetic the
// Rust reference (excel_column_name) implements, ported directly rather
// than routed through excelize's own column helpers so the shift-by-N
// behaviour stays exactly what the helper library's toColumnName
// contract promises (offset may be negative).
func ColumnName(current string, offset int) (string, error) {
	idx, err := ColumnIndex(current)
	if err != nil {
		return "", err
	}
	idx += offset
	if idx < 1 {
		return "", fmt.Errorf("column offset %d from %q underflows before column A", offset, current)
	}
	return columnNameFromIndex(idx), nil
}

// ColumnIndex returns the 1-based column index for a letters-only
// column name ("A" -> 1, "AA" -> 27). Accepts either bare letters or a
// full cell reference ("B5"); in the latter case only the column part
// is used, validated through excelize.SplitCellName so the accepted
// grammar matches real OOXML addressing rather than a hand-rolled regex.
func ColumnIndex(name string) (int, error) {
	letters := name
	if col, _, err := excelize.SplitCellName(name); err == nil {
		letters = col
	}
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("toColumnIndex: empty column name")
	}
	idx := 0
	for _, ch := range letters {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("toColumnIndex: %q is not a bare column letter sequence", name)
		}
		idx = idx*26 + int(ch-'A'+1)
	}
	return idx, nil
}

func columnNameFromIndex(idx int) string {
	var b []byte
	n := idx
	for n > 0 {
		rem := (n - 1) % 26
		b = append(b, byte('A'+rem))
		n = (n - 1) / 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// CellRef builds a coordinate string like "B5" from a 1-based column
// index and 1-based row number, via excelize so the produced reference
// always round-trips through SplitCellName.
func CellRef(col, row int) (string, error) {
	return excelize.CoordinatesToCellName(col, row)
}
