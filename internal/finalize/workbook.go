package finalize

import (
	"bytes"
	"fmt"
)

// sheetEntry is one <sheet name="..." sheetId="..." r:id="..." .../>
// element inside workbook.xml's <sheets> list.
type sheetEntry struct {
	Name    string
	SheetID string
	RID     string
	State   string // "", "hidden", or "veryHidden"
}

// workbookDoc holds workbook.xml split around its <sheets> list, the
// only part of the document this package ever rewrites.
type workbookDoc struct {
	prefix []byte // up to and including "<sheets...>"
	sheets []sheetEntry
	suffix []byte // "</sheets>" onward
}

func parseWorkbookDoc(xmlBytes []byte) (workbookDoc, error) {
	openIdx := indexTagOpen(xmlBytes, 0, []byte("<sheets"))
	if openIdx == -1 {
		return workbookDoc{}, fmt.Errorf("workbook.xml has no <sheets> element")
	}
	gt := bytes.IndexByte(xmlBytes[openIdx:], '>')
	if gt == -1 {
		return workbookDoc{}, fmt.Errorf("malformed <sheets> open tag")
	}
	bodyStart := openIdx + gt + 1
	closeIdx := bytes.Index(xmlBytes[bodyStart:], []byte("</sheets>"))
	if closeIdx == -1 {
		return workbookDoc{}, fmt.Errorf("unterminated <sheets> element")
	}
	bodyEnd := bodyStart + closeIdx

	var entries []sheetEntry
	pos := 0
	body := xmlBytes[bodyStart:bodyEnd]
	for {
		idx := indexTagOpen(body, pos, []byte("<sheet"))
		if idx == -1 {
			break
		}
		elGt := bytes.IndexByte(body[idx:], '>')
		if elGt == -1 {
			break
		}
		attrs := string(body[idx+len("<sheet") : idx+elGt])
		attrs = trimSelfClose(attrs)
		name, rest := extractAttr(attrs, "name")
		sheetID, rest := extractAttr(rest, "sheetId")
		rid, rest := extractAttr(rest, "r:id")
		state, _ := extractAttr(rest, "state")
		entries = append(entries, sheetEntry{Name: name, SheetID: sheetID, RID: rid, State: state})
		pos = idx + elGt + 1
	}

	return workbookDoc{
		prefix: xmlBytes[:bodyStart],
		sheets: entries,
		suffix: xmlBytes[bodyEnd:],
	}, nil
}

func trimSelfClose(attrs string) string {
	for len(attrs) > 0 && (attrs[len(attrs)-1] == '/' || attrs[len(attrs)-1] == ' ') {
		attrs = attrs[:len(attrs)-1]
	}
	return attrs
}

func (d workbookDoc) render() []byte {
	var out bytes.Buffer
	out.Write(d.prefix)
	for _, s := range d.sheets {
		out.WriteString(`<sheet name="` + xmlEscape(s.Name) + `" sheetId="` + s.SheetID + `" r:id="` + s.RID + `"`)
		if s.State != "" {
			out.WriteString(` state="` + s.State + `"`)
		}
		out.WriteString(`/>`)
	}
	out.Write(d.suffix)
	return out.Bytes()
}
