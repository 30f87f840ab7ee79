package hbs

import (
	"fmt"
	"strings"
)

// BlockHeader is the parsed form of a {{#helper args...}} marker, split
// out from a row's raw template text by the Sheet Rewriter when a block
// spans multiple rows: the opener and closer never share a single cell,
// so the engine never sees a self-contained program for them the way
// evalBlock expects. The rewriter parses the header once per span,
// evaluates it against whatever context scope is active, and discards
// the marker text before handing the row's remaining content to Render.
type BlockHeader struct {
	Helper string

	args []expr
	hash map[string]expr
}

// ParseBlockHeader parses the text between "{{#" and the closing "}}"
// of a block opener — e.g. "each items" or "if (gt total 0)" — using the
// same grammar scanTopLevel applies to an inline {{#...}} marker.
func ParseBlockHeader(content string) (BlockHeader, error) {
	content = strings.TrimSpace(content)
	head, rest := splitHeadWord(content)
	if head == "" {
		return BlockHeader{}, fmt.Errorf("empty block header %q", content)
	}
	args, hash, err := parseArgsString(rest)
	if err != nil {
		return BlockHeader{}, err
	}
	return BlockHeader{Helper: head, args: args, hash: hash}, nil
}

// Eval evaluates the header's first argument — the collection for
// #each, the predicate for #if/#unless — against ctx.
func (h BlockHeader) Eval(e *Engine, ctx *Context) (interface{}, error) {
	if len(h.args) == 0 {
		return nil, fmt.Errorf("#%s requires one argument", h.Helper)
	}
	return evalExpr(e, ctx, h.args[0])
}
