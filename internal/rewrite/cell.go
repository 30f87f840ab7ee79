package rewrite

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// rawCell is one <c>…</c> (or self-closing <c/>) element split into its
// addressable pieces: the column it occupies, its attributes other than
// r (which the rewriter always rewrites itself during renumbering), and
// its body, still in source form.
type rawCell struct {
	ColLetters  string
	AttrsNoRef  string // leading-space-prefixed, e.g. ` s="3" t="inlineStr"`
	Type        string // the t="..." value, "" for the default numeric type
	Inner       []byte // raw bytes between the open and close tag; nil if SelfClosing
	SelfClosing bool
}

// splitCells walks one <row>…</row> body (the bytes between the row's
// own open and close tags) into its ordered <c> elements.
func splitCells(body []byte) ([]rawCell, error) {
	var cells []rawCell
	pos := 0
	for {
		idx := indexTagOpen(body, pos, []byte("<c"))
		if idx == -1 {
			break
		}
		gt := bytes.IndexByte(body[idx:], '>')
		if gt == -1 {
			return nil, fmt.Errorf("unterminated <c> tag at offset %d", idx)
		}
		openEnd := idx + gt + 1
		attrs := string(body[idx+2 : openEnd-1])
		selfClosing := false
		if strings.HasSuffix(strings.TrimSpace(attrs), "/") {
			attrs = strings.TrimSuffix(strings.TrimRight(attrs, " "), "/")
			selfClosing = true
		}
		ref, rest := extractAttr(attrs, "r")
		typ, rest := extractAttr(rest, "t")
		col := strings.TrimRight(ref, "0123456789")
		cell := rawCell{ColLetters: col, AttrsNoRef: rest, Type: typ, SelfClosing: selfClosing}
		if selfClosing {
			cells = append(cells, cell)
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(body[openEnd:], []byte("</c>"))
		if closeIdx == -1 {
			return nil, fmt.Errorf("unterminated <c> element for %q", ref)
		}
		cell.Inner = body[openEnd : openEnd+closeIdx]
		cells = append(cells, cell)
		pos = openEnd + closeIdx + len("</c>")
	}
	return cells, nil
}

// extractAttr pulls name="value" out of a raw attribute string, returning
// the value and the remaining attribute text (with that attribute
// removed) so callers can accumulate "everything except the attributes I
// already consumed".
func extractAttr(attrs, name string) (value, rest string) {
	needle := name + `="`
	idx := strings.Index(attrs, needle)
	if idx == -1 {
		// tolerate single-quoted attributes, rare but legal XML
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

// indexTagOpen finds "<name" at or after pos such that the following
// byte is '>', ' ', or '/' — the same boundary rule reassemble/rowmodel
// use so "<c" never matches inside an attribute value or a longer tag
// name.
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

// inlineStringText extracts the logical text of an <is>…</is> body by
// concatenating every <t>…</t> run's content in order and unescaping XML
// entities — safe to do unconditionally because the Token Reassembler
// already guarantees each {{…}} expression lives inside exactly one run.
func inlineStringText(is []byte) string {
	var sb strings.Builder
	pos := 0
	for {
		idx := indexTagOpen(is, pos, []byte("<t"))
		if idx == -1 {
			break
		}
		gt := bytes.IndexByte(is[idx:], '>')
		if gt == -1 {
			break
		}
		openEnd := idx + gt + 1
		if is[openEnd-2] == '/' {
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(is[openEnd:], []byte("</t>"))
		if closeIdx == -1 {
			break
		}
		sb.WriteString(xmlUnescape(string(is[openEnd : openEnd+closeIdx])))
		pos = openEnd + closeIdx + len("</t>")
	}
	return sb.String()
}

func xmlUnescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// xmlEscape escapes text for placement inside a <t> element — the Sheet
// Rewriter's job per spec §4.3 ("XML-special characters... are always
// escaped via the Sheet Rewriter, never by the engine").
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
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// xmlEscapeAttr escapes text for placement inside a double-quoted XML
// attribute value, additionally escaping the quote character xmlEscape
// leaves alone.
func xmlEscapeAttr(s string) string {
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

// formatNumber renders a float the way a numeric cell's <v> expects:
// integral values with no trailing ".0", otherwise the shortest
// round-tripping decimal form.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
