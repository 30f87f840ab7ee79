package xlsxtpl

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
)

// promoteSharedStrings rewrites every t="s" cell across every worksheet
// part to t="inlineStr", splicing in the referenced <si> entry's body —
// the first step of the pipeline, run before reassembly and the row
// model so both only ever see self-contained inline strings. Grounded
// on original_source/src/utils.rs's replace_shared_strings_in_sheet:
// the spec's own non-goal only waives re-optimizing text back into
// shared strings on the way out, not reading them on the way in.
func promoteSharedStrings(pkg *ozx.Package) {
	sstData, ok := pkg.Get("xl/sharedStrings.xml")
	if !ok {
		return
	}
	table := parseSharedStrings(sstData)
	if len(table) == 0 {
		return
	}

	pred := func(name string) bool { return ozx.Classify(name) == ozx.KindSheet }
	for _, name := range pkg.NamesMatching(pred) {
		data, _ := pkg.Get(name)
		rewritten := inlineSharedStrings(data, table)
		if !bytes.Equal(rewritten, data) {
			pkg.Set(name, rewritten)
		}
	}
}

// parseSharedStrings returns each <si>...</si> entry's inner body, in
// document order, which is also sharedStrings.xml's index contract.
func parseSharedStrings(data []byte) [][]byte {
	var entries [][]byte
	pos := 0
	for {
		idx := ssIndexTagOpen(data, pos, []byte("<si"))
		if idx == -1 {
			break
		}
		gt := bytes.IndexByte(data[idx:], '>')
		if gt == -1 {
			break
		}
		openEnd := idx + gt + 1
		if data[openEnd-2] == '/' {
			entries = append(entries, nil)
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(data[openEnd:], []byte("</si>"))
		if closeIdx == -1 {
			break
		}
		entries = append(entries, data[openEnd:openEnd+closeIdx])
		pos = openEnd + closeIdx + len("</si>")
	}
	return entries
}

// inlineSharedStrings rewrites every <c ... t="s" ...><v>N</v></c> cell
// in sheetXML to <c ... t="inlineStr" ...><is>...</is></c>, leaving
// every other cell untouched.
func inlineSharedStrings(sheetXML []byte, table [][]byte) []byte {
	var out bytes.Buffer
	pos := 0
	for {
		idx := ssIndexTagOpen(sheetXML, pos, []byte("<c"))
		if idx == -1 {
			out.Write(sheetXML[pos:])
			break
		}
		gt := bytes.IndexByte(sheetXML[idx:], '>')
		if gt == -1 {
			out.Write(sheetXML[pos:])
			break
		}
		openEnd := idx + gt + 1
		attrs := string(sheetXML[idx+2 : openEnd-1])
		selfClosing := strings.HasSuffix(strings.TrimSpace(attrs), "/")
		if selfClosing || !ssAttrIs(attrs, "t", "s") {
			out.Write(sheetXML[pos:openEnd])
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(sheetXML[openEnd:], []byte("</c>"))
		if closeIdx == -1 {
			out.Write(sheetXML[pos:openEnd])
			pos = openEnd
			continue
		}
		cellEnd := openEnd + closeIdx + len("</c>")
		inner := sheetXML[openEnd : openEnd+closeIdx]
		idxVal, ok := ssCellValueInt(inner)
		if !ok || idxVal < 0 || idxVal >= len(table) {
			out.Write(sheetXML[pos:cellEnd])
			pos = cellEnd
			continue
		}
		newAttrs := ssReplaceTypeS(attrs, "inlineStr")
		out.WriteString(`<c` + newAttrs + `>`)
		if body := table[idxVal]; len(body) > 0 {
			out.WriteString(`<is>`)
			out.Write(body)
			out.WriteString(`</is>`)
		} else {
			out.WriteString(`<is><t xml:space="preserve"></t></is>`)
		}
		out.WriteString(`</c>`)
		pos = cellEnd
	}
	return out.Bytes()
}

func ssCellValueInt(cellInner []byte) (int, bool) {
	start := bytes.Index(cellInner, []byte("<v"))
	if start == -1 {
		return 0, false
	}
	gt := bytes.IndexByte(cellInner[start:], '>')
	if gt == -1 {
		return 0, false
	}
	openEnd := start + gt + 1
	end := bytes.Index(cellInner[openEnd:], []byte("</v>"))
	if end == -1 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(cellInner[openEnd : openEnd+end])))
	if err != nil {
		return 0, false
	}
	return n, true
}

func ssAttrIs(attrs, name, want string) bool {
	needle := name + `="` + want + `"`
	return strings.Contains(attrs, needle)
}

func ssReplaceTypeS(attrs, newType string) string {
	idx := strings.Index(attrs, `t="s"`)
	if idx == -1 {
		return " " + strings.TrimSpace(attrs)
	}
	rewritten := attrs[:idx] + `t="` + newType + `"` + attrs[idx+len(`t="s"`):]
	return " " + strings.TrimSpace(rewritten)
}

func ssIndexTagOpen(body []byte, pos int, open []byte) int {
	for i := pos; i+len(open) <= len(body); {
		idx := bytes.Index(body[i:], open)
		if idx == -1 {
			return -1
		}
		abs := i + idx
		if abs+len(open) >= len(body) {
			return -1
		}
		next := body[abs+len(open)]
		if next == '>' || next == ' ' || next == '/' {
			return abs
		}
		i = abs + 1
	}
	return -1
}
