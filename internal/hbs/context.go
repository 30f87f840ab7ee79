package hbs

import "strconv"

// Context is one scope on the stack the teacher's evalContext models
// with current/parent/root/vars — generalized here with an explicit
// "special" map so each #each iteration can bind its own @index/@key/
// @first/@last without disturbing outer scopes' bindings.
type Context struct {
	data    interface{}
	parent  *Context
	root    interface{}
	special map[string]interface{}
}

// NewRootContext builds the top-level scope: "this" and "@root" both
// refer to root.
func NewRootContext(root interface{}) *Context {
	return &Context{data: root, root: root}
}

// Child pushes a new scope with data as "this", root carried through
// unchanged, and no special bindings of its own (they inherit from the
// nearest ancestor that set them, via lookupSpecial's walk).
func (c *Context) Child(data interface{}) *Context {
	return &Context{data: data, parent: c, root: c.root}
}

// ChildWithSpecial is Child plus @index/@key/@first/@last bindings for
// one #each iteration.
func (c *Context) ChildWithSpecial(data interface{}, special map[string]interface{}) *Context {
	child := c.Child(data)
	child.special = special
	return child
}

func lookupSpecial(c *Context, name string) (interface{}, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.special != nil {
			if v, ok := cur.special[name]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Resolve walks up hops parent scopes then drills segments into the
// resulting scope's data — the engine's generalization of the
// teacher's resolvePath to an explicit "../" hop count instead of its
// $-prefixed variable dialect.
func Resolve(c *Context, up int, segments []string) (interface{}, bool) {
	cur := c
	for i := 0; i < up; i++ {
		if cur.parent == nil {
			return Undefined{}, false
		}
		cur = cur.parent
	}
	if len(segments) == 0 {
		return cur.data, true
	}
	first := segments[0]
	if len(first) > 0 && first[0] == '@' {
		name := first[1:]
		if name == "root" {
			if len(segments) == 1 {
				return cur.root, true
			}
			return drill(cur.root, segments[1:])
		}
		val, ok := lookupSpecial(cur, name)
		if !ok {
			return Undefined{}, false
		}
		if len(segments) == 1 {
			return val, true
		}
		return drill(val, segments[1:])
	}
	return drill(cur.data, segments)
}

// drill walks plain dotted/bracket segments into v, exactly like the
// teacher's drill/nextSeg pair, generalized to also index into
// []interface{} with a string key segment that parses as an integer.
func drill(v interface{}, segs []string) (interface{}, bool) {
	cur := v
	for _, seg := range segs {
		key := seg
		if isBracketSegment(seg) {
			key = bracketContent(seg)
		}
		switch c := cur.(type) {
		case *OrderedMap:
			nv, ok := c.Get(key)
			if !ok {
				return Undefined{}, false
			}
			cur = nv
		case map[string]interface{}:
			nv, ok := c[key]
			if !ok {
				return Undefined{}, false
			}
			cur = nv
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(c) {
				return Undefined{}, false
			}
			cur = c[idx]
		default:
			return Undefined{}, false
		}
	}
	return cur, true
}
