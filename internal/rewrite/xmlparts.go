package rewrite

import (
	"bytes"
	"fmt"
)

// sheetDoc holds the pieces of a worksheet part's XML the rewriter
// reads and replaces. Everything else in the document (sheetViews,
// cols, sheetFormatPr, pageMargins, and so on) passes through untouched
// between prefix and suffix.
type sheetDoc struct {
	prefix          []byte // everything before <sheetData>, including any <dimension .../> tag
	dimensionStart  int    // offset of "<dimension" in prefix, -1 if absent
	dimensionEnd    int    // offset just past the dimension tag's "/>" in prefix
	betweenDimAndSD []byte // not set by parseSheetDoc; those bytes stay inside prefix
	sheetDataBody   []byte // the bytes between <sheetData ...> and </sheetData>
	afterSheetData  []byte // everything from </sheetData> to </worksheet>, exclusive of the closing tag
}

// parseSheetDoc locates <dimension>, <sheetData>, and the tail of the
// document. It requires <sheetData>…</sheetData> to be present (every
// worksheet part has one, even if empty) but tolerates a missing
// <dimension>.
func parseSheetDoc(xmlBytes []byte) (sheetDoc, error) {
	sdOpenIdx := indexTagOpen(xmlBytes, 0, []byte("<sheetData"))
	if sdOpenIdx == -1 {
		return sheetDoc{}, fmt.Errorf("worksheet XML has no <sheetData> element")
	}
	gt := bytes.IndexByte(xmlBytes[sdOpenIdx:], '>')
	if gt == -1 {
		return sheetDoc{}, fmt.Errorf("malformed <sheetData> open tag")
	}
	sdBodyStart := sdOpenIdx + gt + 1
	sdCloseIdx := bytes.Index(xmlBytes[sdBodyStart:], []byte("</sheetData>"))
	var sdBodyEnd, afterStart int
	if xmlBytes[sdBodyStart-2] == '/' {
		// self-closing <sheetData/> — an empty sheet.
		sdBodyEnd = sdBodyStart
		afterStart = sdBodyStart
	} else if sdCloseIdx == -1 {
		return sheetDoc{}, fmt.Errorf("unterminated <sheetData> element")
	} else {
		sdBodyEnd = sdBodyStart + sdCloseIdx
		afterStart = sdBodyEnd + len("</sheetData>")
	}

	worksheetCloseIdx := bytes.LastIndex(xmlBytes, []byte("</worksheet>"))
	if worksheetCloseIdx == -1 {
		return sheetDoc{}, fmt.Errorf("worksheet XML has no </worksheet> closing tag")
	}

	doc := sheetDoc{
		prefix:         xmlBytes[:sdOpenIdx],
		dimensionStart: -1,
		sheetDataBody:  xmlBytes[sdBodyStart:sdBodyEnd],
		afterSheetData: xmlBytes[afterStart:worksheetCloseIdx],
	}
	if dimIdx := indexTagOpen(doc.prefix, 0, []byte("<dimension")); dimIdx != -1 {
		dimGt := bytes.IndexByte(doc.prefix[dimIdx:], '>')
		if dimGt != -1 {
			doc.dimensionStart = dimIdx
			doc.dimensionEnd = dimIdx + dimGt + 1
		}
	}
	return doc, nil
}

// render reassembles the full worksheet XML from the doc's pieces, with
// dimensionRef and sheetDataBody substituted and tail unchanged except
// for the mergeCells/hyperlinks/drawing elements upsertElement rewrites.
func (d sheetDoc) render(dimensionRef string, sheetDataBody []byte, tail []byte) []byte {
	var out bytes.Buffer
	if d.dimensionStart == -1 {
		out.Write(d.prefix)
		out.WriteString(`<dimension ref="` + dimensionRef + `"/>`)
	} else {
		out.Write(d.prefix[:d.dimensionStart])
		out.WriteString(`<dimension ref="` + dimensionRef + `"/>`)
		out.Write(d.prefix[d.dimensionEnd:])
	}
	if len(sheetDataBody) == 0 {
		out.WriteString(`<sheetData/>`)
	} else {
		out.WriteString(`<sheetData>`)
		out.Write(sheetDataBody)
		out.WriteString(`</sheetData>`)
	}
	out.Write(tail)
	out.WriteString(`</worksheet>`)
	return out.Bytes()
}

// worksheetElementOrder is the CT_Worksheet schema's child sequence,
// restricted to the siblings this rewriter ever touches or inserts
// next to. upsertElement uses it to place a brand-new element before
// the first sibling that must follow it, rather than always at the
// front of tail.
var worksheetElementOrder = []string{
	"sheetCalcPr", "sheetProtection", "protectedRanges", "scenarios",
	"autoFilter", "sortState", "dataConsolidate", "customSheetViews",
	"mergeCells", "phoneticPr", "conditionalFormatting", "dataValidations",
	"hyperlinks", "printOptions", "pageMargins", "pageSetup", "headerFooter",
	"rowBreaks", "colBreaks", "customProperties", "cellWatches",
	"ignoredErrors", "smartTags", "drawing", "legacyDrawing",
	"legacyDrawingHF", "picture", "oleObjects", "controls",
	"webPublishItems", "tableParts", "extLst",
}

// upsertElement replaces an existing top-level <name ...>...</name> (or
// self-closing <name .../>) element inside tail with replacement, or —
// if absent — inserts replacement immediately before the first sibling
// element present in tail that worksheetElementOrder says must follow
// name, preserving CT_Worksheet's required child ordering. Falls back
// to the end of tail if no later sibling is present.
func upsertElement(tail []byte, name string, replacement []byte) []byte {
	open := []byte("<" + name)
	idx := indexTagOpen(tail, 0, open)
	if idx == -1 {
		if len(replacement) == 0 {
			return tail
		}
		insertAt := len(tail)
		for _, later := range followingSiblings(name) {
			if p := indexTagOpen(tail, 0, []byte("<"+later)); p != -1 && p < insertAt {
				insertAt = p
			}
		}
		var out bytes.Buffer
		out.Write(tail[:insertAt])
		out.Write(replacement)
		out.Write(tail[insertAt:])
		return out.Bytes()
	}
	gt := bytes.IndexByte(tail[idx:], '>')
	if gt == -1 {
		return tail
	}
	openEnd := idx + gt + 1
	var end int
	if tail[openEnd-2] == '/' {
		end = openEnd
	} else {
		closeTag := []byte("</" + name + ">")
		closeIdx := bytes.Index(tail[openEnd:], closeTag)
		if closeIdx == -1 {
			return tail
		}
		end = openEnd + closeIdx + len(closeTag)
	}
	var out bytes.Buffer
	out.Write(tail[:idx])
	out.Write(replacement)
	out.Write(tail[end:])
	return out.Bytes()
}

func followingSiblings(name string) []string {
	for i, n := range worksheetElementOrder {
		if n == name {
			return worksheetElementOrder[i+1:]
		}
	}
	return nil
}
