// Package reassemble implements the Token Reassembler: it scans one
// sheet's raw XML and normalizes Handlebars expressions that editors
// have split across multiple <t> runs into a single run each, leaving
// everything else byte-identical.
package reassemble

import (
	"bytes"
	"fmt"
)

// Warning is a recoverable, non-fatal finding surfaced during
// reassembly (an unterminated expression at end of scope).
type Warning struct {
	Message string
}

// scopeTags are the element names the automaton resets its brace state
// at — spec §4.1 p.2: "a rolling text accumulator scoped to the nearest
// <si> or cell value container (<is> for inline strings, <v> for value)".
var scopeTags = [][]byte{[]byte("is"), []byte("si"), []byte("v")}

// Reassemble returns XML equivalent to sheetXML but with every
// fragmented {{…}}/{{{…}}} span normalized into a single <t> run per
// expression. If the input contains no '{' at all it is returned
// unmodified — the same fast path the reference implementation takes,
// and the mechanism behind the "no template markers" identity property.
func Reassemble(sheetXML []byte) ([]byte, []Warning) {
	if !bytes.ContainsRune(sheetXML, '{') {
		return sheetXML, nil
	}

	var out bytes.Buffer
	var warnings []Warning
	pos := 0
	for pos < len(sheetXML) {
		tag, start, end, ok := nextScopeElement(sheetXML, pos)
		if !ok {
			out.Write(sheetXML[pos:])
			break
		}
		out.Write(sheetXML[pos:start])
		inner := sheetXML[start:end]
		merged, ws := mergeScope(tag, inner)
		out.Write(merged)
		for _, w := range ws {
			warnings = append(warnings, w)
		}
		pos = end
	}
	return out.Bytes(), warnings
}

// nextScopeElement finds the next <is>…</is>, <si>…</si> or <v>…</v>
// element at or after pos, returning its tag name and the byte range
// of the whole element (open tag through close tag, inclusive).
func nextScopeElement(xmlBytes []byte, pos int) (tag string, start, end int, ok bool) {
	best := -1
	var bestTag string
	for _, t := range scopeTags {
		open := []byte("<" + string(t))
		idx := indexTagOpen(xmlBytes, pos, open)
		if idx == -1 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
			bestTag = string(t)
		}
	}
	if best == -1 {
		return "", 0, 0, false
	}
	closeTag := []byte("</" + bestTag + ">")
	closeIdx := bytes.Index(xmlBytes[best:], closeTag)
	if closeIdx == -1 {
		// Malformed/self-closing scope element (e.g. an empty <v/>); skip
		// it as a zero-length scope so outer scanning keeps progressing.
		gt := bytes.IndexByte(xmlBytes[best:], '>')
		if gt == -1 {
			return "", 0, 0, false
		}
		return bestTag, best, best + gt + 1, true
	}
	end = best + closeIdx + len(closeTag)
	return bestTag, best, end, true
}

// indexTagOpen finds "<tagname" at or after pos such that the next
// byte is '>', ' ', or '/' (so "<is" doesn't match "<island").
func indexTagOpen(xmlBytes []byte, pos int, open []byte) int {
	for i := pos; i+len(open) < len(xmlBytes); {
		idx := bytes.Index(xmlBytes[i:], open)
		if idx == -1 {
			return -1
		}
		abs := i + idx
		next := xmlBytes[abs+len(open)]
		if next == '>' || next == ' ' || next == '/' {
			return abs
		}
		i = abs + 1
	}
	return -1
}

// chunk is one <t>…</t> (or self-closing <t/>) run inside a scope
// element. wrapper is the raw bytes that precede it (intervening
// <r>/<rPr> formatting plus this run's own opening tag); close is the
// bytes that end it ("</t>" and, where present, the "</r>" that closes
// the same run's <r>). wrapper and close are opened and closed
// together: either both survive (the run is untouched) or both are
// discarded (the run is re-wrapped from scratch) — they are never split
// across a keep/discard decision, or a discarded run's close tag would
// be left dangling with no matching open tag in the output.
type chunk struct {
	wrapper     []byte
	text        []byte
	close       []byte
	selfClosing bool
}

func mergeScope(tag string, scope []byte) ([]byte, []Warning) {
	// The scope's own open/close tags (<is>…</is>, <si>…</si>, <v>…</v>)
	// are structural, not formatting — they must survive even when an
	// expression starts on the very first character inside the scope,
	// unlike the <r>/<rPr> wrapper markup the chunk splitter is allowed
	// to discard. Peel them off before running the discardable-wrapper
	// logic on what remains.
	openEnd := bytes.IndexByte(scope, '>') + 1
	closeTag := []byte("</" + tag + ">")
	if openEnd <= 0 || openEnd > len(scope)-len(closeTag) {
		return scope, nil
	}
	openTag := scope[:openEnd]
	inner := scope[openEnd : len(scope)-len(closeTag)]

	chunks, trailer := splitIntoTChunks(inner)
	if len(chunks) == 0 {
		return scope, nil
	}

	var out bytes.Buffer
	out.Write(openTag)
	var warnings []Warning

	state := outside
	var exprBuf bytes.Buffer
	var pendingVerbatim bytes.Buffer // bytes of the current run of untouched outside text, flushed as a unit

	flushVerbatim := func() {
		if pendingVerbatim.Len() > 0 {
			out.Write(pendingVerbatim.Bytes())
			pendingVerbatim.Reset()
		}
	}
	emitOutsideText := func(wrapperRaw, text, closeRaw []byte, exact bool) {
		text = unescapeBraces(text)
		if exact {
			// Untouched run: preserve its original wrapper and text
			// byte-for-byte except for spec §4.1 point 5's escape rule —
			// a literal "\{{" is unescaped to "{{" even outside any
			// expression.
			flushVerbatim()
			out.Write(wrapperRaw)
			out.Write(text)
			out.Write(closeRaw)
			return
		}
		// A run straddling an expression boundary loses its original
		// wrapper — the wrapper's formatting scope no longer maps
		// cleanly onto the split text — and is re-emitted as a fresh
		// preserve-whitespace run.
		pendingVerbatim.WriteString(`<r><t xml:space="preserve">`)
		pendingVerbatim.Write(text)
		pendingVerbatim.WriteString(`</t></r>`)
	}
	emitExpr := func(raw []byte) {
		flushVerbatim()
		out.WriteString(`<r><t xml:space="preserve">`)
		out.Write(raw)
		out.WriteString(`</t></r>`)
	}

	for _, c := range chunks {
		if c.selfClosing {
			if state == outside {
				flushVerbatim()
				out.Write(c.wrapper)
			}
			continue
		}
		text := c.text
		runStart := 0
		wholeRunUntouched := state == outside
		startedOutside := state == outside
		flushVerbatim()
		mark := out.Len()

		i := 0
		for i < len(text) {
			switch state {
			case outside:
				j, newState, consumed := scanOutside(text, i)
				if newState == outside {
					i = j
					continue
				}
				// Boundary inside this run: flush the outside portion
				// seen so far (not byte-identical to the original
				// wrapper since the run is being split).
				if j > runStart {
					emitOutsideText(c.wrapper, text[runStart:j], c.close, false)
				}
				exprBuf.Reset()
				exprBuf.Write(text[j:j+consumed])
				state = newState
				i = j + consumed
				runStart = i
				wholeRunUntouched = false
			case insideExpr, insideTriple, insideComment:
				j, closed, newState, consumed := scanInside(text, i, state)
				exprBuf.Write(text[i:j])
				i = j
				if closed {
					wasComment := state == insideComment
					exprBuf.Write(text[i : i+consumed])
					i += consumed
					runStart = i
					if !wasComment {
						emitExpr(exprBuf.Bytes())
					}
					exprBuf.Reset()
					state = outside
				} else {
					state = newState
				}
			}
		}
		if startedOutside && state == outside && !wholeRunUntouched && !bytes.Contains(text, []byte("{{!")) {
			// Every expression this run opened also closed inside it: no
			// reassembly was needed, so the run is kept as it was.
			pendingVerbatim.Reset()
			out.Truncate(mark)
			emitOutsideText(c.wrapper, text, c.close, true)
			continue
		}
		if state == outside && runStart < len(text) {
			emitOutsideText(c.wrapper, text[runStart:], c.close, wholeRunUntouched && runStart == 0)
		} else if state == outside && runStart == 0 && len(text) == 0 && wholeRunUntouched {
			// empty-but-untouched run: keep its wrapper (e.g. a bare
			// <t xml:space="preserve"></t>) so the sheet's run count is
			// not silently reduced.
			flushVerbatim()
			out.Write(c.wrapper)
			out.Write(c.close)
		}
	}

	if state != outside {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unterminated expression at end of %s scope, emitted verbatim", tag)})
		flushVerbatim()
		out.WriteString(`<r><t xml:space="preserve">`)
		out.Write(exprBuf.Bytes())
		out.WriteString(`</t></r>`)
		exprBuf.Reset()
	}
	flushVerbatim()
	out.Write(trailer)
	out.Write(closeTag)
	return out.Bytes(), warnings
}

// automaton states
type autoState int

const (
	outside autoState = iota
	insideExpr
	insideTriple
	insideComment
)

// scanOutside scans forward from i looking for the start of an
// expression ("{{", "{{{", or a comment opener) or an escaped "\{{"
// (unescaped in place, stays outside). Returns the index reached and,
// if a boundary was found, the state to enter plus how many bytes of
// the opening delimiter were consumed into exprBuf.
func scanOutside(text []byte, i int) (j int, newState autoState, consumed int) {
	for i < len(text) {
		if text[i] == '\\' && i+2 < len(text) && text[i+1] == '{' && text[i+2] == '{' {
			// escape: "\{{" stays outside an expression; the backslash
			// itself is stripped by unescapeBraces when this span of
			// outside text is emitted.
			i += 3
			continue
		}
		if text[i] == '{' && i+1 < len(text) && text[i+1] == '{' {
			if isCommentOpen(text, i) {
				return i, insideComment, commentOpenLen(text, i)
			}
			if i+2 < len(text) && text[i+2] == '{' {
				return i, insideTriple, 3
			}
			return i, insideExpr, 2
		}
		i++
	}
	return i, outside, 0
}

// unescapeBraces strips the backslash from a literal "\{{" per spec
// §4.1 point 5, leaving "{{" in the emitted outside text.
func unescapeBraces(text []byte) []byte {
	if !bytes.Contains(text, []byte(`\{{`)) {
		return text
	}
	return bytes.ReplaceAll(text, []byte(`\{{`), []byte(`{{`))
}

func isCommentOpen(text []byte, i int) bool {
	rest := text[i:]
	return bytes.HasPrefix(rest, []byte("{{!--")) || bytes.HasPrefix(rest, []byte("{{!"))
}

func commentOpenLen(text []byte, i int) int {
	rest := text[i:]
	if bytes.HasPrefix(rest, []byte("{{!--")) {
		return 5
	}
	return 3
}

// scanInside scans while inside an expression/comment, returning the
// index of the closing delimiter's start (j), whether it closed within
// this run, and the delimiter length to consume.
func scanInside(text []byte, i int, state autoState) (j int, closed bool, newState autoState, consumed int) {
	switch state {
	case insideExpr:
		idx := bytes.Index(text[i:], []byte("}}"))
		if idx == -1 {
			return len(text), false, insideExpr, 0
		}
		return i + idx, true, outside, 2
	case insideTriple:
		idx := bytes.Index(text[i:], []byte("}}}"))
		if idx == -1 {
			return len(text), false, insideTriple, 0
		}
		return i + idx, true, outside, 3
	case insideComment:
		if end := bytes.Index(text[i:], []byte("--}}")); end != -1 {
			return i + end, true, outside, 4
		}
		if end := bytes.Index(text[i:], []byte("}}")); end != -1 {
			return i + end, true, outside, 2
		}
		return len(text), false, insideComment, 0
	}
	return len(text), false, state, 0
}

// splitIntoTChunks walks a scope element's inner bytes and splits it
// into the sequence of <t>…</t> runs it contains. Each chunk's wrapper
// is its own opening markup (anything since the previous run's close,
// through this run's own "<t…>" open tag) and its close is "</t>" plus
// an immediately-following "</r>" if present — the tag that closes the
// same run's <r>, not the next run's. Keeping wrapper and close paired
// per run (rather than gluing a run's close onto the next run's open,
// the way the raw bytes read left to right) means a discarded run never
// leaves an orphaned close tag behind when its open tag was dropped.
// trailer holds whatever comes after the last run's close (trailing
// <phoneticPr/>, and so on).
func splitIntoTChunks(scope []byte) (chunks []chunk, trailer []byte) {
	pos := 0
	for {
		tIdx := indexTagOpen(scope, pos, []byte("<t"))
		if tIdx == -1 {
			trailer = scope[pos:]
			return
		}
		gt := bytes.IndexByte(scope[tIdx:], '>')
		if gt == -1 {
			trailer = scope[pos:]
			return
		}
		openEnd := tIdx + gt + 1
		selfClosing := scope[openEnd-2] == '/'
		wrapper := scope[pos:openEnd]
		if selfClosing {
			chunks = append(chunks, chunk{wrapper: wrapper, selfClosing: true})
			pos = openEnd
			continue
		}
		closeIdx := bytes.Index(scope[openEnd:], []byte("</t>"))
		if closeIdx == -1 {
			trailer = scope[pos:]
			return
		}
		text := scope[openEnd : openEnd+closeIdx]
		closeEnd := openEnd + closeIdx + len("</t>")
		if bytes.HasPrefix(scope[closeEnd:], []byte("</r>")) {
			closeEnd += len("</r>")
		}
		chunks = append(chunks, chunk{wrapper: wrapper, text: text, close: scope[openEnd+closeIdx : closeEnd]})
		pos = closeEnd
	}
}
