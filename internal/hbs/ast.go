package hbs

// node is one element of a parsed template's body, mirroring the shape
// of the teacher's own node interface/rowNode/eachNode/ifNode family —
// generalized here from the teacher's five fixed constructs to a small,
// open AST that covers full Handlebars block/mustache grammar.
type node interface{}

type textNode struct {
	value string
}

// mustacheNode is a bare {{expr}} or {{{expr}}} — HTML escaping is
// disabled everywhere in this engine, so the two forms are equivalent
// and the parser does not distinguish them past this point.
type mustacheNode struct {
	expr expr
}

// blockNode is {{#helper args...}}body{{else}}inverse{{/helper}}.
type blockNode struct {
	helper  string
	args    []expr
	hash    map[string]expr
	program []node
	inverse []node
}

// expr is the parsed form of everything that can appear inside {{ }}.
type expr interface{}

type literalExpr struct {
	value interface{}
}

type pathExpr struct {
	raw      string // the original identifier text, for the callee-or-path ambiguity
	up       int    // number of "../" hops to walk up the context stack
	segments []string
}

// callExpr is either a helper invocation ("eq a b") or, when args and
// hash are both empty, a bare path reference that happens to parse as
// a single identifier — the evaluator decides which based on whether
// callee names a registered helper.
type callExpr struct {
	callee string
	args   []expr
	hash   map[string]expr
}
