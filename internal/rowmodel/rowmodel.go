// Package rowmodel implements the Row Model: it parses a worksheet's
// <sheetData> into an ordered list of row records and locates the
// row spans that multi-row block helpers open and close, the way the
// teacher's parseSheet builds a nested block stack over the sheet's
// rows before any cell gets evaluated.
package rowmodel

import (
	"bytes"
	"fmt"
)

// Row is one <row>…</row> element together with the flags a linear
// scan of its bytes can answer without parsing expressions.
type Row struct {
	ROriginal    int
	Bytes        []byte
	HasTemplate  bool
	HasRemoveRow bool
	OpensEach    bool
	ClosesEach   bool
	OpensIf      bool
	ClosesIf     bool
}

var (
	openEachMarker    = []byte("{{#each")
	closeEachMarker   = []byte("{{/each}}")
	openIfMarker      = []byte("{{#if")
	openUnlessMarker  = []byte("{{#unless")
	closeIfMarker     = []byte("{{/if}}")
	closeUnlessMarker = []byte("{{/unless}}")
	removeRowMarker   = []byte("removeRow")
)

// Parse walks a <sheetData>…</sheetData> body and returns its rows in
// document order. It does not require well-formed XML beyond the <row>
// element boundaries themselves — everything inside a row, including
// malformed fragments a later stage will reject, is carried through
// verbatim as Bytes.
func Parse(sheetData []byte) ([]Row, error) {
	var rows []Row
	pos := 0
	for {
		start := bytes.Index(sheetData[pos:], []byte("<row"))
		if start == -1 {
			break
		}
		start += pos
		gt := bytes.IndexByte(sheetData[start:], '>')
		if gt == -1 {
			return nil, fmt.Errorf("unterminated <row> tag at offset %d", start)
		}
		openEnd := start + gt + 1
		if sheetData[openEnd-2] == '/' {
			// self-closing <row .../> — an empty row, no cells.
			r, err := rowNumber(sheetData[start:openEnd])
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{ROriginal: r, Bytes: sheetData[start:openEnd]})
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(sheetData[openEnd:], []byte("</row>"))
		if closeIdx == -1 {
			return nil, fmt.Errorf("unterminated <row> element starting at offset %d", start)
		}
		end := openEnd + closeIdx + len("</row>")
		body := sheetData[start:end]
		r, err := rowNumber(sheetData[start:openEnd])
		if err != nil {
			return nil, err
		}
		rows = append(rows, classify(r, body))
		pos = end
	}
	return rows, nil
}

func classify(rOriginal int, body []byte) Row {
	return Row{
		ROriginal:    rOriginal,
		Bytes:        body,
		HasTemplate:  bytes.Contains(body, []byte("{{")),
		HasRemoveRow: bytes.Contains(body, removeRowMarker),
		OpensEach:    bytes.Contains(body, openEachMarker),
		ClosesEach:   bytes.Contains(body, closeEachMarker),
		OpensIf:      bytes.Contains(body, openIfMarker) || bytes.Contains(body, openUnlessMarker),
		ClosesIf:     bytes.Contains(body, closeIfMarker) || bytes.Contains(body, closeUnlessMarker),
	}
}

// rowNumber extracts the r="N" attribute from a <row …> open tag.
func rowNumber(openTag []byte) (int, error) {
	idx := bytes.Index(openTag, []byte(`r="`))
	if idx == -1 {
		return 0, fmt.Errorf("<row> element missing r attribute: %q", openTag)
	}
	rest := openTag[idx+3:]
	end := bytes.IndexByte(rest, '"')
	if end == -1 {
		return 0, fmt.Errorf("<row> element has malformed r attribute: %q", openTag)
	}
	n := 0
	for _, ch := range rest[:end] {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("<row> r attribute %q is not numeric", rest[:end])
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

// SpanKind distinguishes the two block-helper families a span can open
// — "if" covers both #if and #unless, since both retain-or-drop a
// single body rather than iterate one.
type SpanKind int

const (
	SpanEach SpanKind = iota
	SpanIf
)

// Span is a contiguous run of rows, inclusive on both ends, opened by
// a block helper on OpenIndex and closed by its matching closer on
// CloseIndex. Indices are positions into the Row slice Spans was
// called with, not ROriginal values.
type Span struct {
	Kind       SpanKind
	OpenIndex  int
	CloseIndex int
	Children   []Span
}

// Spans locates every row span in rows, nesting tracked with a depth
// counter the way the teacher's parser tracks a stack of open block
// helpers. A row that both opens and closes the same helper (an inline
// one-row block) is not a span at all — the rewriter inlines those into
// per-cell expressions — so Spans only reports helpers whose open and
// close rows differ.
//
// Spans partially overlapping one another (one span's close falls
// inside another span opened after it but closed after it too) is
// fatal, matching §4.2's "mismatched spans fail the render": real
// nesting is strictly LIFO, so the scan uses a stack and any row whose
// opener kind doesn't match the stack top's matching closer is an error.
func Spans(rows []Row) ([]Span, error) {
	type open struct {
		kind  SpanKind
		index int
		kids  []Span
	}
	var stack []open
	var top []Span

	pushChild := func(s Span) {
		if len(stack) == 0 {
			top = append(top, s)
			return
		}
		stack[len(stack)-1].kids = append(stack[len(stack)-1].kids, s)
	}

	for i, row := range rows {
		opensEach, closesEach := row.OpensEach, row.ClosesEach
		opensIf, closesIf := row.OpensIf, row.ClosesIf

		// An inline one-row block (opens and closes on the same row)
		// is handled entirely by the template engine on that single
		// row — it is not a multi-row span.
		if opensEach && closesEach {
			opensEach, closesEach = false, false
		}
		if opensIf && closesIf {
			opensIf, closesIf = false, false
		}

		if closesEach || closesIf {
			if len(stack) == 0 {
				return nil, fmt.Errorf("row %d closes a block with none open", row.ROriginal)
			}
			t := stack[len(stack)-1]
			wantKind := SpanEach
			if closesIf {
				wantKind = SpanIf
			}
			if t.kind != wantKind {
				return nil, fmt.Errorf("row %d closes a mismatched block (expected close for the span opened at row %d)", row.ROriginal, rows[t.index].ROriginal)
			}
			stack = stack[:len(stack)-1]
			span := Span{Kind: t.kind, OpenIndex: t.index, CloseIndex: i, Children: t.kids}
			pushChild(span)
		}
		if opensEach {
			stack = append(stack, open{kind: SpanEach, index: i})
		}
		if opensIf {
			stack = append(stack, open{kind: SpanIf, index: i})
		}
	}
	if len(stack) != 0 {
		unclosed := rows[stack[len(stack)-1].index]
		return nil, fmt.Errorf("row %d opens a block that is never closed", unclosed.ROriginal)
	}
	return top, nil
}
