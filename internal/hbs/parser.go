package hbs

import (
	"fmt"
	"strconv"
	"strings"
)

// tokStream wraps exprLexer with an LIFO pushback buffer, needed
// because parsing a hash argument ("name=value") requires peeking one
// token past an identifier before deciding whether it was a helper
// name or a hash key.
type tokStream struct {
	lex     *exprLexer
	pending []token
}

func (ts *tokStream) next() (token, error) {
	if n := len(ts.pending); n > 0 {
		t := ts.pending[n-1]
		ts.pending = ts.pending[:n-1]
		return t, nil
	}
	return ts.lex.next()
}

func (ts *tokStream) push(t token) {
	ts.pending = append(ts.pending, t)
}

// identToExpr turns a bare identifier token into the literal it names
// (true/false/null/undefined) or, failing that, a path reference.
func identToExpr(text string) expr {
	switch text {
	case "true":
		return literalExpr{value: true}
	case "false":
		return literalExpr{value: false}
	case "null":
		return literalExpr{value: nil}
	case "undefined":
		return literalExpr{value: Undefined{}}
	default:
		up, segs := parsePathSegments(text)
		return pathExpr{raw: text, up: up, segments: segs}
	}
}

// parseTerm parses exactly one value position: a literal, a path, or
// a parenthesized subexpression call.
func parseTerm(ts *tokStream) (expr, error) {
	t, err := ts.next()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokString:
		return literalExpr{value: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", t.text)
		}
		return literalExpr{value: f}, nil
	case tokIdent:
		return identToExpr(t.text), nil
	case tokLParen:
		callee, err := ts.next()
		if err != nil {
			return nil, err
		}
		if callee.kind != tokIdent {
			return nil, fmt.Errorf("subexpression must start with a helper name")
		}
		args, hash, err := parseArgsAndHash(ts)
		if err != nil {
			return nil, err
		}
		closing, err := ts.next()
		if err != nil {
			return nil, err
		}
		if closing.kind != tokRParen {
			return nil, fmt.Errorf("unterminated subexpression (%s ...)", callee.text)
		}
		return callExpr{callee: callee.text, args: args, hash: hash}, nil
	default:
		return nil, fmt.Errorf("unexpected token in expression")
	}
}

// parseArgsAndHash consumes positional args and name=value hash pairs
// until EOF or a closing paren (left for the caller to consume).
func parseArgsAndHash(ts *tokStream) (args []expr, hash map[string]expr, err error) {
	for {
		t, err := ts.next()
		if err != nil {
			return nil, nil, err
		}
		if t.kind == tokEOF || t.kind == tokRParen {
			ts.push(t)
			return args, hash, nil
		}
		if t.kind == tokIdent {
			t2, err := ts.next()
			if err != nil {
				return nil, nil, err
			}
			if t2.kind == tokEquals {
				val, err := parseTerm(ts)
				if err != nil {
					return nil, nil, err
				}
				if hash == nil {
					hash = make(map[string]expr)
				}
				hash[t.text] = val
				continue
			}
			ts.push(t2)
			args = append(args, identToExpr(t.text))
			continue
		}
		ts.push(t)
		val, err := parseTerm(ts)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, val)
	}
}

// parseExprString parses the full content of one {{ ... }} (braces
// already stripped): either a bare literal/path, or a helper call
// "name arg… key=val…". Which one it is falls out of whether more
// tokens follow the first term.
func parseExprString(src string) (expr, error) {
	ts := &tokStream{lex: newExprLexer(src)}
	first, err := parseTerm(ts)
	if err != nil {
		return nil, err
	}
	nxt, err := ts.next()
	if err != nil {
		return nil, err
	}
	if nxt.kind == tokEOF {
		if pe, ok := first.(pathExpr); ok && pe.up == 0 && !strings.ContainsAny(pe.raw, ".[") {
			return callExpr{callee: pe.raw}, nil
		}
		return first, nil
	}
	pe, ok := first.(pathExpr)
	if !ok || pe.up != 0 || strings.ContainsAny(pe.raw, ".[") {
		return nil, fmt.Errorf("unexpected tokens after %q in expression %q", pe.raw, src)
	}
	ts.push(nxt)
	args, hash, err := parseArgsAndHash(ts)
	if err != nil {
		return nil, err
	}
	if t, err := ts.next(); err != nil {
		return nil, err
	} else if t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing tokens in expression %q", src)
	}
	return callExpr{callee: pe.raw, args: args, hash: hash}, nil
}
