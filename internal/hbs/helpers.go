package hbs

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	exprlang "github.com/expr-lang/expr"

	"github.com/sail-sail/xlsx-handlebars/internal/xlutil"
)

// registerBuiltins installs every §4.4 helper into e.Helpers. Block
// helpers (if/unless/each/with) are handled directly by the evaluator
// and are not registered here.
func registerBuiltins(e *Engine) {
	e.Helpers["upper"] = helperUpper
	e.Helpers["lower"] = helperLower
	e.Helpers["len"] = helperLen
	e.Helpers["eq"] = helperEq
	e.Helpers["ne"] = helperNe
	e.Helpers["gt"] = helperCmp(func(c int) bool { return c > 0 })
	e.Helpers["lt"] = helperCmp(func(c int) bool { return c < 0 })
	e.Helpers["gte"] = helperCmp(func(c int) bool { return c >= 0 })
	e.Helpers["lte"] = helperCmp(func(c int) bool { return c <= 0 })
	e.Helpers["add"] = helperArith("a + b")
	e.Helpers["sub"] = helperArith("a - b")
	e.Helpers["mul"] = helperArith("a * b")
	e.Helpers["div"] = helperArith("a / b")
	e.Helpers["concat"] = helperConcat
	e.Helpers["num"] = helperNum
	e.Helpers["formula"] = helperFormula
	e.Helpers["mergeCell"] = helperMergeCell
	e.Helpers["hyperlink"] = helperHyperlink
	e.Helpers["img"] = helperImg
	e.Helpers["removeRow"] = helperRemoveRow
	e.Helpers["toColumnName"] = helperToColumnName
	e.Helpers["toColumnIndex"] = helperToColumnIndex
	e.Helpers["_c"] = helperCurrentCol
	e.Helpers["_r"] = helperCurrentRow
	e.Helpers["_cr"] = helperCurrentRef
	e.Helpers["deleteCurrentSheet"] = helperDeleteCurrentSheet
	e.Helpers["setCurrentSheetName"] = helperSetCurrentSheetName
	e.Helpers["hideCurrentSheet"] = helperHideCurrentSheet
}

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return Undefined{}
}

func helperUpper(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return strings.ToUpper(ToString(arg(args, 0))), nil
}

func helperLower(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return strings.ToLower(ToString(arg(args, 0))), nil
}

func helperLen(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return Len(arg(args, 0)), nil
}

func helperEq(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return Equal(arg(args, 0), arg(args, 1)), nil
}

func helperNe(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return !Equal(arg(args, 0), arg(args, 1)), nil
}

func helperCmp(ok func(int) bool) Helper {
	return func(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
		return ok(Compare(arg(args, 0), arg(args, 1))), nil
	}
}

// helperArith delegates the actual arithmetic to expr-lang, the same
// library the teacher's evalBool leans on for comparison/arithmetic
// evaluation rather than hand-rolling operator parsing.
func helperArith(code string) Helper {
	program, err := exprlang.Compile(code, exprlang.Env(map[string]interface{}{"a": 0.0, "b": 0.0}))
	return func(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
		if err != nil {
			return nil, err
		}
		a, _ := ToFloat(arg(args, 0))
		b, _ := ToFloat(arg(args, 1))
		out, err := exprlang.Run(program, map[string]interface{}{"a": a, "b": b})
		if err != nil {
			return nil, fmt.Errorf("arithmetic: %w", err)
		}
		f, _ := ToFloat(out)
		return f, nil
	}
}

func helperConcat(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(ToString(a))
	}
	return sb.String(), nil
}

func helperNum(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	f, _ := ToFloat(arg(args, 0))
	if e.cellRef != "" {
		e.Sink.NumericCells[e.cellRef] = f
	}
	return "", nil
}

func helperFormula(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	if e.cellRef != "" {
		e.Sink.FormulaCells[e.cellRef] = ToString(arg(args, 0))
	}
	return "", nil
}

var cellRefPattern = regexp.MustCompile(`^[A-Za-z]+[1-9][0-9]*$`)

func helperMergeCell(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	rangeRef := ToString(arg(args, 0))
	parts := strings.Split(rangeRef, ":")
	if len(parts) != 2 || !cellRefPattern.MatchString(parts[0]) || !cellRefPattern.MatchString(parts[1]) {
		e.Sink.warn("mergeCell: invalid range %q dropped", rangeRef)
		return "", nil
	}
	e.Sink.Merges = append(e.Sink.Merges, MergeRange{Ref: rangeRef})
	return "", nil
}

func helperHyperlink(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	link := Hyperlink{
		CellRef: ToString(arg(args, 0)),
		Target:  ToString(arg(args, 1)),
	}
	if len(args) > 2 {
		link.Display = ToString(args[2])
	}
	e.Sink.Hyperlinks = append(e.Sink.Hyperlinks, link)
	return "", nil
}

func helperImg(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	data, err := base64.StdEncoding.DecodeString(ToString(arg(args, 0)))
	if err != nil {
		return nil, fmt.Errorf("img: invalid base64 payload: %w", err)
	}
	dims, ok := xlutil.ImageDimensions(data)
	if !ok {
		return nil, fmt.Errorf("img: unrecognized image format")
	}
	width, height := dims.Width, dims.Height
	wantW, hasW := floatArg(args, 1)
	wantH, hasH := floatArg(args, 2)
	// 0 is the "auto" sentinel for a dimension, same as omitting the
	// argument entirely — {{img pic 100 0}} scales height to keep the
	// source's aspect ratio, it does not draw a zero-height image.
	hasW = hasW && wantW != 0
	hasH = hasH && wantH != 0
	switch {
	case hasW && hasH:
		width, height = int(wantW), int(wantH)
	case hasW && !hasH && dims.Width > 0:
		width = int(wantW)
		height = int(float64(dims.Height) * wantW / float64(dims.Width))
	case hasH && !hasW && dims.Height > 0:
		height = int(wantH)
		width = int(float64(dims.Width) * wantH / float64(dims.Height))
	}
	e.Sink.Images = append(e.Sink.Images, Image{CellRef: e.cellRef, Data: data, Width: width, Height: height})
	return "", nil
}

func floatArg(args []interface{}, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return ToFloat(args[i])
}

func helperRemoveRow(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	if e.row > 0 {
		e.Sink.RemoveRows[e.row] = true
	}
	return "", nil
}

func helperToColumnName(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	idx, err := columnArgToIndex(arg(args, 0))
	if err != nil {
		return nil, fmt.Errorf("toColumnName: %w", err)
	}
	offset := 0
	if f, ok := floatArg(args, 1); ok {
		offset = int(f)
	}
	ref, err := xlutil.CellRef(idx+offset, 1)
	if err != nil {
		return nil, fmt.Errorf("toColumnName: %w", err)
	}
	return strings.TrimRight(ref, "0123456789"), nil
}

func helperToColumnIndex(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	idx, err := xlutil.ColumnIndex(ToString(arg(args, 0)))
	if err != nil {
		return nil, fmt.Errorf("toColumnIndex: %w", err)
	}
	return float64(idx), nil
}

func columnArgToIndex(v interface{}) (int, error) {
	if f, ok := ToFloat(v); ok {
		if s, isStr := v.(string); isStr {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return xlutil.ColumnIndex(s)
			}
		}
		return int(f), nil
	}
	return xlutil.ColumnIndex(ToString(v))
}

func helperCurrentCol(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return e.col, nil
}

func helperCurrentRow(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return strconv.Itoa(e.row), nil
}

func helperCurrentRef(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	return e.cellRef, nil
}

func helperDeleteCurrentSheet(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	e.Sink.DeleteSheet = true
	return "", nil
}

func helperSetCurrentSheetName(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	e.Sink.RenameSheetTo = ToString(arg(args, 0))
	return "", nil
}

func helperHideCurrentSheet(e *Engine, ctx *Context, args []interface{}, hash map[string]interface{}) (interface{}, error) {
	level := "hidden"
	if len(args) > 0 {
		if l := ToString(args[0]); l == "hidden" || l == "veryHidden" {
			level = l
		}
	}
	e.Sink.HideLevel = level
	return "", nil
}
