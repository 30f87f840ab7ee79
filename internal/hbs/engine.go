// Package hbs implements the Template Engine and Helper Library: a
// Handlebars evaluator over a null/bool/number/string/array/object/
// undefined value model, with ambient current-cell tracking and a
// structured side-effect sink in place of string-only helper output.
package hbs

import (
	"fmt"
	"strings"
)

// Helper is a registered helper function. args have already been
// evaluated; hash carries name=value arguments. Block helpers (if,
// unless, each, with) are special-cased in the evaluator since they
// need the unevaluated program/inverse node lists, not a Helper.
type Helper func(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error)

// Engine owns the registered helper table, the side-effect sink, and
// the ambient (column, row, cellRef) tuple the rewriter installs
// before invoking the engine on each cell — the same "one long-lived
// object threaded through every call" shape as the teacher's Template.
type Engine struct {
	Helpers map[string]Helper
	Sink    *Sink

	col     string
	row     int
	cellRef string
}

// New returns an engine with every §4.4 helper registered.
func New() *Engine {
	e := &Engine{Helpers: make(map[string]Helper), Sink: NewSink()}
	registerBuiltins(e)
	return e
}

// SetCurrentCell installs the ambient cell tuple the rewriter reads
// before invoking the engine on a given cell's template source, and
// that _c/_r/_cr and the formula/img/num/removeRow helpers consult
// implicitly (mergeCell and hyperlink take explicit references).
func (e *Engine) SetCurrentCell(col string, row int, cellRef string) {
	e.col, e.row, e.cellRef = col, row, cellRef
}

// Render parses src and evaluates it against ctx, returning the
// rendered text. Side effects land on e.Sink as a byproduct.
func (e *Engine) Render(src string, ctx *Context) (string, error) {
	program, err := ParseProgram(src)
	if err != nil {
		return "", fmt.Errorf("template_parse: %w", err)
	}
	var out strings.Builder
	if err := evalProgram(e, ctx, program, &out); err != nil {
		return "", fmt.Errorf("template_eval: %w", err)
	}
	return out.String(), nil
}
