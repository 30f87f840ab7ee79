// Package rewrite implements the Sheet Rewriter: it takes one sheet's
// reassembled worksheet XML and a data context, expands #each/#if/
// #unless row spans, renders every templated cell, deletes removeRow
// rows, renumbers what survives, and reapplies every side effect the
// engine recorded (merges, hyperlinks, images, numeric/formula cells)
// against the final row numbers.
package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
	"github.com/sail-sail/xlsx-handlebars/internal/rowmodel"
)

// RenderSheet rewrites one worksheet part in place against ctx. engine
// is reset (a fresh Sink) before rendering so one sheet's side effects
// never leak into the next. warn records non-fatal findings under the
// "rewrite" component.
func RenderSheet(pkg *ozx.Package, sheetPart string, sheetXML []byte, engine *hbs.Engine, ctx *hbs.Context, deterministic bool, warn func(component, format string, args ...any)) ([]byte, error) {
	engine.Sink = hbs.NewSink()

	doc, err := parseSheetDoc(sheetXML)
	if err != nil {
		return nil, fmt.Errorf("sheet rewriter: %w", err)
	}

	rows, err := rowmodel.Parse(doc.sheetDataBody)
	if err != nil {
		return nil, fmt.Errorf("sheet rewriter: %w", err)
	}
	spans, err := rowmodel.Spans(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet rewriter: %w", err)
	}

	m := &materializer{rows: rows, engine: engine, warn: warn}
	var drafts []draftRow
	if len(rows) > 0 {
		if err := m.materializeRange(0, len(rows)-1, spans, ctx, &drafts); err != nil {
			return nil, fmt.Errorf("sheet rewriter: %w", err)
		}
	}

	result := finalizeRows(drafts, engine.Sink, warn)

	tail := doc.afterSheetData
	tail = upsertElement(tail, "mergeCells", mergeCellsXML(result.Merges))
	tail = upsertElement(tail, "hyperlinks", applyHyperlinks(pkg, sheetPart, result.Hyperlinks, warn))

	drawingEl, err := applyImages(pkg, sheetPart, result.Images, deterministic, warn)
	if err != nil {
		return nil, fmt.Errorf("sheet rewriter: %w", err)
	}
	if drawingEl != nil {
		tail = upsertElement(tail, "drawing", drawingEl)
	}

	return doc.render(result.DimensionRef, result.SheetDataBody, tail), nil
}

func mergeCellsXML(merges []string) []byte {
	if len(merges) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`<mergeCells count="` + strconv.Itoa(len(merges)) + `">`)
	for _, ref := range merges {
		sb.WriteString(`<mergeCell ref="` + ref + `"/>`)
	}
	sb.WriteString(`</mergeCells>`)
	return []byte(sb.String())
}
