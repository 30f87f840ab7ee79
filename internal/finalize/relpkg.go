package finalize

import (
	"bytes"
	"strings"
)

type relationship struct {
	ID     string
	Type   string
	Target string
}

const relationshipsXMLNS = "http://schemas.openxmlformats.org/package/2006/relationships"

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
		id, rest := extractAttr(attrs, "Id")
		typ, rest := extractAttr(rest, "Type")
		target, _ := extractAttr(rest, "Target")
		rels = append(rels, relationship{ID: id, Type: typ, Target: target})
		pos = idx + gt + 1
	}
	return rels
}

func relationshipsXML(rels []relationship) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<Relationships xmlns="` + relationshipsXMLNS + `">`)
	for _, r := range rels {
		sb.WriteString(`<Relationship Id="` + r.ID + `" Type="` + r.Type + `" Target="` + r.Target + `"/>`)
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

func removeRelationship(rels []relationship, id string) []relationship {
	out := make([]relationship, 0, len(rels))
	for _, r := range rels {
		if r.ID == id {
			continue
		}
		out = append(out, r)
	}
	return out
}

func findRelTarget(rels []relationship, id string) (string, bool) {
	for _, r := range rels {
		if r.ID == id {
			return r.Target, true
		}
	}
	return "", false
}
