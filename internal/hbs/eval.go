package hbs

import (
	"fmt"
	"io"
	"sort"
)

// evalProgram walks a node list, writing rendered text to out and
// threading side effects through e.Sink as helpers run.
func evalProgram(e *Engine, ctx *Context, nodes []node, out io.StringWriter) error {
	for _, n := range nodes {
		if err := evalNode(e, ctx, n, out); err != nil {
			return err
		}
	}
	return nil
}

func evalNode(e *Engine, ctx *Context, n node, out io.StringWriter) error {
	switch v := n.(type) {
	case textNode:
		_, err := out.WriteString(v.value)
		return err
	case mustacheNode:
		val, err := evalExpr(e, ctx, v.expr)
		if err != nil {
			return err
		}
		_, err = out.WriteString(ToString(val))
		return err
	case blockNode:
		return evalBlock(e, ctx, v, out)
	default:
		return fmt.Errorf("unknown node type %T", n)
	}
}

func evalBlock(e *Engine, ctx *Context, b blockNode, out io.StringWriter) error {
	switch b.helper {
	case "if":
		cond, err := evalArg0(e, ctx, b)
		if err != nil {
			return err
		}
		if Truthy(cond) {
			return evalProgram(e, ctx, b.program, out)
		}
		return evalProgram(e, ctx, b.inverse, out)
	case "unless":
		cond, err := evalArg0(e, ctx, b)
		if err != nil {
			return err
		}
		if !Truthy(cond) {
			return evalProgram(e, ctx, b.program, out)
		}
		return evalProgram(e, ctx, b.inverse, out)
	case "with":
		val, err := evalArg0(e, ctx, b)
		if err != nil {
			return err
		}
		if !Truthy(val) {
			return evalProgram(e, ctx, b.inverse, out)
		}
		return evalProgram(e, ctx.Child(val), b.program, out)
	case "each":
		return evalEach(e, ctx, b, out)
	default:
		return evalCustomBlock(e, ctx, b, out)
	}
}

func evalArg0(e *Engine, ctx *Context, b blockNode) (interface{}, error) {
	if len(b.args) == 0 {
		return nil, fmt.Errorf("#%s requires one argument", b.helper)
	}
	return evalExpr(e, ctx, b.args[0])
}

func evalEach(e *Engine, ctx *Context, b blockNode, out io.StringWriter) error {
	coll, err := evalArg0(e, ctx, b)
	if err != nil {
		return err
	}
	switch v := coll.(type) {
	case []interface{}:
		if len(v) == 0 {
			return evalProgram(e, ctx, b.inverse, out)
		}
		for i, item := range v {
			special := map[string]interface{}{
				"index": float64(i),
				"first": i == 0,
				"last":  i == len(v)-1,
			}
			child := ctx.ChildWithSpecial(item, special)
			if err := evalProgram(e, child, b.program, out); err != nil {
				return err
			}
		}
		return nil
	case *OrderedMap:
		keys := v.Keys()
		if len(keys) == 0 {
			return evalProgram(e, ctx, b.inverse, out)
		}
		for i, k := range keys {
			val, _ := v.Get(k)
			special := map[string]interface{}{
				"key":   k,
				"first": i == 0,
				"last":  i == len(keys)-1,
			}
			child := ctx.ChildWithSpecial(val, special)
			if err := evalProgram(e, child, b.program, out); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		// A plain Go map has no recorded key order, unlike *OrderedMap
		// (what DecodeOrdered produces for a JSON object). This branch
		// only matters for contexts built directly in Go rather than
		// decoded from JSON, so alphabetical order is the best available
		// fallback here.
		if len(v) == 0 {
			return evalProgram(e, ctx, b.inverse, out)
		}
		keys := sortedKeys(v)
		for i, k := range keys {
			special := map[string]interface{}{
				"key":   k,
				"first": i == 0,
				"last":  i == len(keys)-1,
			}
			child := ctx.ChildWithSpecial(v[k], special)
			if err := evalProgram(e, child, b.program, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return evalProgram(e, ctx, b.inverse, out)
	}
}

// evalCustomBlock supports a user-defined block helper registered in
// the ordinary (non-block) helper table: it gets the evaluated args
// and hash like any inline helper, plus access to render its own
// program via the helper closure having captured e/ctx/b is not
// possible through the Helper signature, so a custom block helper's
// contract is simpler than if/unless/each/with: its return value acts
// as the condition, rendering the program when truthy and the inverse
// otherwise; the return value itself is never written to the output.
// This covers the common case — a block helper that just needs to
// gate its body — without needing a second function type.
func evalCustomBlock(e *Engine, ctx *Context, b blockNode, out io.StringWriter) error {
	h, ok := e.Helpers[b.helper]
	if !ok {
		return fmt.Errorf("unknown block helper %q", b.helper)
	}
	args, hash, err := evalArgsAndHash(e, ctx, b.args, b.hash)
	if err != nil {
		return err
	}
	result, err := h(e, ctx, args, hash)
	if err != nil {
		return err
	}
	if !Truthy(result) {
		return evalProgram(e, ctx, b.inverse, out)
	}
	return evalProgram(e, ctx, b.program, out)
}

func evalExpr(e *Engine, ctx *Context, ex expr) (interface{}, error) {
	switch v := ex.(type) {
	case literalExpr:
		return v.value, nil
	case pathExpr:
		val, _ := Resolve(ctx, v.up, v.segments)
		return val, nil
	case callExpr:
		return evalCall(e, ctx, v)
	default:
		return nil, fmt.Errorf("unknown expression type %T", ex)
	}
}

func evalCall(e *Engine, ctx *Context, c callExpr) (interface{}, error) {
	if h, ok := e.Helpers[c.callee]; ok {
		args, hash, err := evalArgsAndHash(e, ctx, c.args, c.hash)
		if err != nil {
			return nil, err
		}
		return h(e, ctx, args, hash)
	}
	if len(c.args) > 0 || len(c.hash) > 0 {
		return nil, fmt.Errorf("unknown helper %q", c.callee)
	}
	up, segs := parsePathSegments(c.callee)
	val, _ := Resolve(ctx, up, segs)
	return val, nil
}

func evalArgsAndHash(e *Engine, ctx *Context, argExprs []expr, hashExprs map[string]expr) ([]interface{}, map[string]interface{}, error) {
	args := make([]interface{}, len(argExprs))
	for i, a := range argExprs {
		v, err := evalExpr(e, ctx, a)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	var hash map[string]interface{}
	if len(hashExprs) > 0 {
		hash = make(map[string]interface{}, len(hashExprs))
		for k, a := range hashExprs {
			v, err := evalExpr(e, ctx, a)
			if err != nil {
				return nil, nil, err
			}
			hash[k] = v
		}
	}
	return args, hash, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
