package rewrite

import (
	"bytes"
	"strconv"
	"strings"
)

// relationship mirrors one <Relationship> entry in a .rels part.
type relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

const relationshipsXMLNS = "http://schemas.openxmlformats.org/package/2006/relationships"

// parseRelationships extracts every <Relationship .../> from a .rels
// part's bytes. Absent or empty input yields no relationships rather
// than an error — a missing .rels part is equivalent to an empty one.
func parseRelationships(data []byte) []relationship {
	var rels []relationship
	pos := 0
	for {
		idx := indexTagOpen(data, pos, []byte("<Relationship"))
		if idx == -1 {
			break
		}
		gt := bytes.IndexByte(data[idx:], '>')
		if gt == -1 {
			break
		}
		attrs := string(data[idx+len("<Relationship") : idx+gt])
		rels = append(rels, relationship{
			ID:         attrVal(attrs, "Id"),
			Type:       attrVal(attrs, "Type"),
			Target:     attrVal(attrs, "Target"),
			TargetMode: attrVal(attrs, "TargetMode"),
		})
		pos = idx + gt + 1
	}
	return rels
}

func attrVal(attrs, name string) string {
	v, _ := extractAttr(attrs, name)
	return v
}

// nextRelID returns a fresh "rIdN" not already used by rels.
func nextRelID(rels []relationship) string {
	max := 0
	for _, r := range rels {
		if n, ok := parseRelID(r.ID); ok && n > max {
			max = n
		}
	}
	return "rId" + strconv.Itoa(max+1)
}

func parseRelID(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(id[3:])
	return n, err == nil
}

func relationshipsXML(rels []relationship) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<Relationships xmlns="` + relationshipsXMLNS + `">`)
	for _, r := range rels {
		sb.WriteString(`<Relationship Id="` + r.ID + `" Type="` + r.Type + `" Target="` + r.Target + `"`)
		if r.TargetMode != "" {
			sb.WriteString(` TargetMode="` + r.TargetMode + `"`)
		}
		sb.WriteString(`/>`)
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

// findExternalRelID looks for an existing External-mode relationship
// whose Target matches exactly — the only way §4.4's hyperlink contract
// allows an external URL to resolve, since the core never fabricates
// External relationships itself.
func findExternalRelID(rels []relationship, target string) (string, bool) {
	for _, r := range rels {
		if r.TargetMode == "External" && r.Target == target {
			return r.ID, true
		}
	}
	return "", false
}

const drawingRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/drawing"

// findDrawingRelID returns the existing drawing relationship's id and
// target, if the sheet already has one.
func findDrawingRelID(rels []relationship) (relationship, bool) {
	for _, r := range rels {
		if r.Type == drawingRelType {
			return r, true
		}
	}
	return relationship{}, false
}

func imageRelType() string {
	return "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
}
