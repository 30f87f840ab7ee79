package hbs

import (
	"fmt"
	"strings"
)

type topKind int

const (
	topText topKind = iota
	topMustache
	topOpen
	topClose
	topElse
)

type topItem struct {
	kind       topKind
	text       string
	mustache   expr
	helper     string
	args       []expr
	hash       map[string]expr
	elseCond   expr
	elseUnless bool
}

// scanTopLevel splits one cell's (or any standalone string's) template
// source into a flat sequence of text runs, mustaches, block open/close
// markers, and else/else-if markers — the same granularity the
// teacher's parseSheet scans a row's cells at, generalized from
// per-row control markers to arbitrary inline {{…}} placement.
func scanTopLevel(src string) ([]topItem, error) {
	var items []topItem
	i := 0
	for i < len(src) {
		start := strings.Index(src[i:], "{{")
		if start == -1 {
			items = append(items, topItem{kind: topText, text: src[i:]})
			break
		}
		start += i
		if start > i {
			items = append(items, topItem{kind: topText, text: src[i:start]})
		}
		rest := src[start:]
		if strings.HasPrefix(rest, "{{!--") {
			end := strings.Index(rest, "--}}")
			if end == -1 {
				return nil, fmt.Errorf("unterminated comment starting at offset %d", start)
			}
			i = start + end + len("--}}")
			continue
		}
		if strings.HasPrefix(rest, "{{!") {
			end := strings.Index(rest, "}}")
			if end == -1 {
				return nil, fmt.Errorf("unterminated comment starting at offset %d", start)
			}
			i = start + end + len("}}")
			continue
		}
		triple := strings.HasPrefix(rest, "{{{")
		openLen, closeDelim := 2, "}}"
		if triple {
			openLen, closeDelim = 3, "}}}"
		}
		contentStart := start + openLen
		end := strings.Index(src[contentStart:], closeDelim)
		if end == -1 {
			return nil, fmt.Errorf("unterminated expression starting at offset %d", start)
		}
		content := strings.TrimSpace(src[contentStart : contentStart+end])
		i = contentStart + end + len(closeDelim)

		item, err := parseTopItem(content)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", start, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseTopItem(content string) (topItem, error) {
	switch {
	case strings.HasPrefix(content, ">"):
		// Partials ({{> name}}/{{>name}}) are not implemented; per
		// DESIGN.md's Open Question (c), any mustache starting with ">"
		// is a parse error rather than silently resolving as a path.
		return topItem{}, fmt.Errorf("partials are not supported: %q", content)
	case strings.HasPrefix(content, "#"):
		head, rest := splitHeadWord(strings.TrimSpace(content[1:]))
		args, hash, err := parseArgsString(rest)
		if err != nil {
			return topItem{}, err
		}
		return topItem{kind: topOpen, helper: head, args: args, hash: hash}, nil
	case strings.HasPrefix(content, "/"):
		return topItem{kind: topClose, helper: strings.TrimSpace(content[1:])}, nil
	case content == "else":
		return topItem{kind: topElse}, nil
	case strings.HasPrefix(content, "else if "):
		cond, err := parseExprString(strings.TrimSpace(content[len("else if "):]))
		if err != nil {
			return topItem{}, err
		}
		return topItem{kind: topElse, elseCond: cond}, nil
	case strings.HasPrefix(content, "else unless "):
		cond, err := parseExprString(strings.TrimSpace(content[len("else unless "):]))
		if err != nil {
			return topItem{}, err
		}
		return topItem{kind: topElse, elseCond: cond, elseUnless: true}, nil
	default:
		e, err := parseExprString(content)
		if err != nil {
			return topItem{}, err
		}
		return topItem{kind: topMustache, mustache: e}, nil
	}
}

func splitHeadWord(s string) (head, rest string) {
	i := 0
	for i < len(s) && !isSpace(rune(s[i])) {
		i++
	}
	head = s[:i]
	rest = strings.TrimSpace(s[i:])
	return
}

func parseArgsString(s string) ([]expr, map[string]expr, error) {
	ts := &tokStream{lex: newExprLexer(s)}
	args, hash, err := parseArgsAndHash(ts)
	if err != nil {
		return nil, nil, err
	}
	if t, err := ts.next(); err != nil {
		return nil, nil, err
	} else if t.kind != tokEOF {
		return nil, nil, fmt.Errorf("unexpected trailing tokens in %q", s)
	}
	return args, hash, nil
}

// blockFrame tracks one currently-open block helper while buildProgram
// walks the flat item list. synthetic frames exist only to desugar an
// "else if" chain into nested if-blocks; they never correspond to an
// explicit {{#...}}/{{/...}}  pair in the source, so a single real
// close token must pop every synthetic frame above the real one too.
type blockFrame struct {
	helper  string
	args    []expr
	hash    map[string]expr
	program []node
	inverse []node
	inElse  bool

	synthetic bool
}

// buildProgram assembles the flat item list into a node tree, the way
// the teacher's parseSheet pushes/pops a stack of stackItem while
// scanning rows for control markers — generalized here to handle
// else/else-if chains via synthetic nested frames.
func buildProgram(items []topItem) ([]node, error) {
	var stack []*blockFrame
	var top []node

	appendNode := func(n node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		f := stack[len(stack)-1]
		if f.inElse {
			f.inverse = append(f.inverse, n)
		} else {
			f.program = append(f.program, n)
		}
	}

	for _, it := range items {
		switch it.kind {
		case topText:
			if it.text != "" {
				appendNode(textNode{value: it.text})
			}
		case topMustache:
			appendNode(mustacheNode{expr: it.mustache})
		case topOpen:
			stack = append(stack, &blockFrame{helper: it.helper, args: it.args, hash: it.hash})
		case topElse:
			if len(stack) == 0 {
				return nil, fmt.Errorf("else with no open block")
			}
			f := stack[len(stack)-1]
			f.inElse = true
			if it.elseCond != nil {
				helper := "if"
				if it.elseUnless {
					helper = "unless"
				}
				stack = append(stack, &blockFrame{helper: helper, args: []expr{it.elseCond}, synthetic: true})
			}
		case topClose:
			for {
				if len(stack) == 0 {
					return nil, fmt.Errorf("close /%s with no open block", it.helper)
				}
				f := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				bn := blockNode{helper: f.helper, args: f.args, hash: f.hash, program: f.program, inverse: f.inverse}
				if f.synthetic {
					if len(stack) == 0 {
						return nil, fmt.Errorf("internal: synthetic else-if frame has no parent")
					}
					parent := stack[len(stack)-1]
					parent.inverse = append(parent.inverse, bn)
					continue
				}
				if f.helper != it.helper {
					return nil, fmt.Errorf("mismatched close: expected /%s, got /%s", f.helper, it.helper)
				}
				appendNode(bn)
				break
			}
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed block #%s", stack[len(stack)-1].helper)
	}
	return top, nil
}

// ParseProgram parses a standalone template source string (one cell's
// inline-string content, typically) into its node tree.
func ParseProgram(src string) ([]node, error) {
	items, err := scanTopLevel(src)
	if err != nil {
		return nil, err
	}
	return buildProgram(items)
}
