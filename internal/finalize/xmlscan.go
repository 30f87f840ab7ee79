package finalize

import (
	"bytes"
	"strings"
)

// indexTagOpen finds "<name" at or after pos such that the following
// byte is '>', ' ', or '/' — the same boundary rule the rewriter's
// scanner uses, so "<sheet" never matches inside "<sheetData" or an
// attribute value.
func indexTagOpen(body []byte, pos int, open []byte) int {
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

func extractAttr(attrs, name string) (value, rest string) {
	needle := name + `="`
	idx := strings.Index(attrs, needle)
	if idx == -1 {
		needle = name + `='`
		idx = strings.Index(attrs, needle)
		if idx == -1 {
			return "", attrs
		}
	}
	valStart := idx + len(needle)
	quote := attrs[idx+len(name)+1]
	end := strings.IndexByte(attrs[valStart:], quote)
	if end == -1 {
		return "", attrs
	}
	value = attrs[valStart : valStart+end]
	rest = strings.TrimSpace(attrs[:idx] + " " + attrs[valStart+end+1:])
	rest = collapseSpaces(rest)
	if rest != "" {
		rest = " " + rest
	}
	return value, rest
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

func setAttr(attrsNoName string, name, value string) string {
	if value == "" {
		return attrsNoName
	}
	return attrsNoName + ` ` + name + `="` + value + `"`
}

func xmlEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
