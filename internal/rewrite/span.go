package rewrite

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/rowmodel"
)

var blockOpenPrefixes = []string{"{{#each", "{{#if", "{{#unless"}

// parseRowTag splits a <row …>…</row> (or self-closing <row …/>) element
// into its attribute string (minus r, which renumbering always rewrites)
// and its inner body.
func parseRowTag(rowBytes []byte) (attrsNoR string, body []byte, selfClosing bool, err error) {
	gt := bytes.IndexByte(rowBytes, '>')
	if gt == -1 {
		return "", nil, false, fmt.Errorf("malformed <row> element")
	}
	openTag := rowBytes[:gt+1]
	attrs := string(openTag[len("<row") : len(openTag)-1])
	if strings.HasSuffix(strings.TrimSpace(attrs), "/") {
		attrs = strings.TrimSuffix(strings.TrimRight(attrs, " "), "/")
		selfClosing = true
	}
	_, rest := extractAttr(attrs, "r")
	if selfClosing {
		return rest, nil, true, nil
	}
	if !bytes.HasSuffix(rowBytes, []byte("</row>")) {
		return "", nil, false, fmt.Errorf("malformed <row> element")
	}
	body = rowBytes[gt+1 : len(rowBytes)-len("</row>")]
	return rest, body, false, nil
}

// extractBlockOpener finds the first {{#each …}}/{{#if …}}/{{#unless …}}
// marker in rowBytes and returns the parsed header plus rowBytes with
// that marker's literal text removed — the row's remaining content (any
// other text or cells sharing the row) is left untouched for the normal
// per-cell render pass.
func extractBlockOpener(rowBytes []byte) (hbs.BlockHeader, []byte, error) {
	start := -1
	for _, p := range blockOpenPrefixes {
		if idx := bytes.Index(rowBytes, []byte(p)); idx != -1 && (start == -1 || idx < start) {
			start = idx
		}
	}
	if start == -1 {
		return hbs.BlockHeader{}, rowBytes, fmt.Errorf("row has no block opener")
	}
	closeIdx := bytes.Index(rowBytes[start:], []byte("}}"))
	if closeIdx == -1 {
		return hbs.BlockHeader{}, rowBytes, fmt.Errorf("unterminated block opener")
	}
	end := start + closeIdx + 2
	content := string(rowBytes[start+3 : start+closeIdx]) // skip "{{#"
	header, err := hbs.ParseBlockHeader(content)
	if err != nil {
		return hbs.BlockHeader{}, rowBytes, err
	}
	stripped := append(append([]byte{}, rowBytes[:start]...), rowBytes[end:]...)
	return header, stripped, nil
}

// extractBlockCloser removes the literal {{/each}}, {{/if}}, or
// {{/unless}} marker matching helper from rowBytes.
func extractBlockCloser(rowBytes []byte, helper string) ([]byte, error) {
	marker := []byte("{{/" + helper + "}}")
	idx := bytes.Index(rowBytes, marker)
	if idx == -1 {
		return rowBytes, fmt.Errorf("row has no {{/%s}} closer", helper)
	}
	out := append(append([]byte{}, rowBytes[:idx]...), rowBytes[idx+len(marker):]...)
	return out, nil
}

// draftRow is one materialized row, still carrying a provisional
// (pre-deletion, pre-renumbering) row number — the position it occupies
// in the flattened output at the time it was rendered. Helpers like
// mergeCell/_r/hyperlink/img observe this number; finalizeRows remaps
// every recorded side effect to the row's eventual number once deletion
// has settled which rows survive.
type draftRow struct {
	ProvisionalR int
	AttrsNoR     string
	SelfClosing  bool
	Cells        []draftCell
}

type draftCell struct {
	ColLetters string
	AttrsNoRef string
	Type       string
	Inner      []byte
	SelfClosing bool
}

// materializer threads the shared state a sheet's whole span-expansion
// pass needs: the engine (and its side-effect sink), a running
// provisional row counter, and the rows slice spans index into.
type materializer struct {
	rows     []rowmodel.Row
	engine   *hbs.Engine
	warn     func(component, format string, args ...any)
	counter  int
}

// materializeRange renders rows[lo..hi] (inclusive) against ctx, honoring
// any spans whose OpenIndex falls in that range, and appends the
// resulting draftRows to out. Spans not in the range (i.e. every plain
// row) are rendered directly.
func (m *materializer) materializeRange(lo, hi int, spans []rowmodel.Span, ctx *hbs.Context, out *[]draftRow) error {
	byOpen := make(map[int]rowmodel.Span, len(spans))
	for _, sp := range spans {
		byOpen[sp.OpenIndex] = sp
	}
	i := lo
	for i <= hi {
		if sp, ok := byOpen[i]; ok {
			if err := m.materializeSpan(sp, ctx, out); err != nil {
				return err
			}
			i = sp.CloseIndex + 1
			continue
		}
		draft, err := m.renderPlainRow(m.rows[i].Bytes, ctx)
		if err != nil {
			return err
		}
		*out = append(*out, draft)
		i++
	}
	return nil
}

func (m *materializer) materializeSpan(sp rowmodel.Span, ctx *hbs.Context, out *[]draftRow) error {
	openRow := m.rows[sp.OpenIndex].Bytes
	header, openStripped, err := extractBlockOpener(openRow)
	if err != nil {
		return fmt.Errorf("row %d: %w", m.rows[sp.OpenIndex].ROriginal, err)
	}
	closeHelper := header.Helper
	if closeHelper == "if" || closeHelper == "unless" {
		// #if and #unless share one span kind; whether the close row
		// carries {{/if}} or {{/unless}} is read from the row itself.
		closeHelper = ifCloserName(sp, m.rows)
	}
	closeRow := m.rows[sp.CloseIndex].Bytes
	closeStripped, err := extractBlockCloser(closeRow, closeHelper)
	if err != nil {
		return fmt.Errorf("row %d: %w", m.rows[sp.CloseIndex].ROriginal, err)
	}

	switch sp.Kind {
	case rowmodel.SpanEach:
		coll, err := header.Eval(m.engine, ctx)
		if err != nil {
			return fmt.Errorf("#each at row %d: %w", m.rows[sp.OpenIndex].ROriginal, err)
		}
		return m.eachIterations(coll, sp, openStripped, closeStripped, ctx, out)
	default: // SpanIf
		cond, err := header.Eval(m.engine, ctx)
		if err != nil {
			return fmt.Errorf("#%s at row %d: %w", header.Helper, m.rows[sp.OpenIndex].ROriginal, err)
		}
		keep := hbs.Truthy(cond)
		if header.Helper == "unless" {
			keep = !keep
		}
		if !keep {
			return nil
		}
		return m.renderSpanBody(sp, openStripped, closeStripped, ctx, out)
	}
}

// ifCloserName recovers whether a span closes on {{/if}} or {{/unless}}
// by checking which literal the close row actually contains; the
// header's Helper name is not consulted, so either closer is accepted
// for either opener.
func ifCloserName(sp rowmodel.Span, rows []rowmodel.Row) string {
	if bytes.Contains(rows[sp.CloseIndex].Bytes, []byte("{{/unless}}")) {
		return "unless"
	}
	return "if"
}

func (m *materializer) eachIterations(coll interface{}, sp rowmodel.Span, openStripped, closeStripped []byte, ctx *hbs.Context, out *[]draftRow) error {
	switch v := coll.(type) {
	case []interface{}:
		for i, item := range v {
			special := map[string]interface{}{"index": float64(i), "first": i == 0, "last": i == len(v)-1}
			child := ctx.ChildWithSpecial(item, special)
			if err := m.renderSpanBody(sp, openStripped, closeStripped, child, out); err != nil {
				return err
			}
		}
	case *hbs.OrderedMap:
		keys := v.Keys()
		for i, k := range keys {
			val, _ := v.Get(k)
			special := map[string]interface{}{"key": k, "first": i == 0, "last": i == len(keys)-1}
			child := ctx.ChildWithSpecial(val, special)
			if err := m.renderSpanBody(sp, openStripped, closeStripped, child, out); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		// Only reachable for a context built directly in Go (not decoded
		// from JSON via hbs.DecodeOrdered, which yields *hbs.OrderedMap) —
		// a plain Go map has no recorded key order to preserve.
		keys := sortedMapKeys(v)
		for i, k := range keys {
			special := map[string]interface{}{"key": k, "first": i == 0, "last": i == len(keys)-1}
			child := ctx.ChildWithSpecial(v[k], special)
			if err := m.renderSpanBody(sp, openStripped, closeStripped, child, out); err != nil {
				return err
			}
		}
	default:
		m.warn("rewrite", "#each at row %d: collection is not an array or object, span produced no rows", m.rows[sp.OpenIndex].ROriginal)
	}
	return nil
}

// renderSpanBody renders one pass over [OpenIndex..CloseIndex] (the open
// and close rows using their marker-stripped bytes, everything between
// using its original bytes), recursing into any nested spans first. An
// open or close row left empty once its marker is stripped is skipped.
func (m *materializer) renderSpanBody(sp rowmodel.Span, openStripped, closeStripped []byte, ctx *hbs.Context, out *[]draftRow) error {
	origOpen := m.rows[sp.OpenIndex].Bytes
	origClose := m.rows[sp.CloseIndex].Bytes
	m.rows[sp.OpenIndex].Bytes = openStripped
	m.rows[sp.CloseIndex].Bytes = closeStripped
	defer func() {
		m.rows[sp.OpenIndex].Bytes = origOpen
		m.rows[sp.CloseIndex].Bytes = origClose
	}()
	// An open or close row that held nothing but its block marker
	// produces no output row of its own.
	markerOnly := func(row []byte) bool {
		return strings.TrimSpace(inlineStringText(row)) == "" &&
			indexTagOpen(row, 0, []byte("<v")) == -1 && indexTagOpen(row, 0, []byte("<f")) == -1
	}
	lo, hi := sp.OpenIndex, sp.CloseIndex
	if markerOnly(openStripped) {
		lo++
	}
	if markerOnly(closeStripped) {
		hi--
	}
	return m.materializeRange(lo, hi, sp.Children, ctx, out)
}

func (m *materializer) renderPlainRow(rowBytes []byte, ctx *hbs.Context) (draftRow, error) {
	attrsNoR, body, selfClosing, err := parseRowTag(rowBytes)
	if err != nil {
		return draftRow{}, err
	}
	m.counter++
	provisional := m.counter
	draft := draftRow{ProvisionalR: provisional, AttrsNoR: attrsNoR, SelfClosing: selfClosing}
	if selfClosing {
		return draft, nil
	}
	cells, err := splitCells(body)
	if err != nil {
		return draftRow{}, fmt.Errorf("row %d: %w", provisional, err)
	}
	for _, c := range cells {
		dc, err := m.renderCell(c, provisional, ctx)
		if err != nil {
			return draftRow{}, err
		}
		draft.Cells = append(draft.Cells, dc)
	}
	return draft, nil
}

func (m *materializer) renderCell(c rawCell, provisionalR int, ctx *hbs.Context) (draftCell, error) {
	ref := c.ColLetters + strconv.Itoa(provisionalR)
	m.engine.SetCurrentCell(c.ColLetters, provisionalR, ref)
	dc := draftCell{ColLetters: c.ColLetters, AttrsNoRef: c.AttrsNoRef, Type: c.Type, SelfClosing: c.SelfClosing}
	if c.SelfClosing {
		return dc, nil
	}
	if c.Type != "inlineStr" {
		dc.Inner = c.Inner
		return dc, nil
	}
	text := inlineStringText(c.Inner)
	if !strings.Contains(text, "{{") {
		dc.Inner = c.Inner
		return dc, nil
	}
	rendered, err := m.engine.Render(text, ctx)
	if err != nil {
		return draftCell{}, fmt.Errorf("cell %s: %w", ref, err)
	}
	sink := m.engine.Sink
	switch {
	case hasKey(sink.FormulaCells, ref):
		dc.Type = ""
		dc.AttrsNoRef = stripTypeAttr(c.AttrsNoRef)
		dc.Inner = []byte("<f>" + xmlEscape(sink.FormulaCells[ref]) + "</f>")
	case hasKey(sink.NumericCells, ref):
		dc.Type = ""
		dc.AttrsNoRef = stripTypeAttr(c.AttrsNoRef)
		dc.Inner = []byte("<v>" + formatNumber(sink.NumericCells[ref]) + "</v>")
	default:
		dc.Type = "inlineStr"
		dc.Inner = []byte(`<is><t xml:space="preserve">` + xmlEscape(rendered) + `</t></is>`)
	}
	return dc, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

func stripTypeAttr(attrs string) string {
	_, rest := extractAttr(attrs, "t")
	return rest
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
