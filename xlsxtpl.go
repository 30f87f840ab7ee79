// Package xlsxtpl renders an XLSX template whose cells carry Handlebars
// expressions against a JSON data document, producing a new XLSX
// package with every expression evaluated and every recorded
// side effect (merges, hyperlinks, images, row duplication/removal,
// sheet rename/hide/delete) applied.
package xlsxtpl

import (
	"sort"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/finalize"
	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
	"github.com/sail-sail/xlsx-handlebars/internal/reassemble"
	"github.com/sail-sail/xlsx-handlebars/internal/rewrite"
)

// RenderOptions carries render-time knobs beyond the two required
// inputs. The zero value is the default (non-deterministic) render a
// caller should use outside of tests.
type RenderOptions struct {
	// Deterministic swaps the UUID-derived drawing relationship ids
	// internal/rewrite normally mints for a sequential counter, per
	// spec §5's "deterministic flag... reserved for tests" — it makes
	// output byte-identical across runs of the same input.
	Deterministic bool
}

// Render evaluates every Handlebars expression in templateBytes (a
// valid XLSX package) against dataJSONBytes (a UTF-8 JSON document)
// and returns the rendered package. The render is all-or-nothing: on
// error no partial output is produced. Warnings are non-fatal findings
// (an unterminated expression, an invalid merge range, a drop of a
// hide/delete request that would have emptied the workbook) returned
// alongside a successful result.
func Render(templateBytes, dataJSONBytes []byte, opts ...RenderOptions) ([]byte, []Warning, error) {
	var opt RenderOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	pkg, err := ozx.Read(templateBytes)
	if err != nil {
		return nil, nil, wrapErr(KindInvalidZip, "package reader", err)
	}
	if err := ozx.RequiredPartsPresent(pkg); err != nil {
		return nil, nil, wrapErr(KindInvalidXLSX, "package reader", err)
	}

	var root interface{}
	if len(dataJSONBytes) > 0 {
		v, err := hbs.DecodeOrdered(dataJSONBytes)
		if err != nil {
			return nil, nil, wrapErr(KindDataParse, "data", err)
		}
		root = v
	}

	sink := &warningSink{}

	promoteSharedStrings(pkg)

	engine := hbs.New()
	ctx := hbs.NewRootContext(root)

	pred := func(name string) bool { return ozx.Classify(name) == ozx.KindSheet }
	var effects []finalize.SheetEffect
	for _, sheetPart := range sheetPartsInOrder(pkg, pred) {
		sheetXML, _ := pkg.Get(sheetPart)
		reassembled, warnings := reassemble.Reassemble(sheetXML)
		for _, w := range warnings {
			sink.add("reassemble", "%s", w.Message)
		}

		rendered, err := rewrite.RenderSheet(pkg, sheetPart, reassembled, engine, ctx, opt.Deterministic, sink.add)
		if err != nil {
			return nil, nil, wrapErr(classifyRewriteErr(err), "sheet rewriter", err)
		}
		pkg.Set(sheetPart, rendered)

		effects = append(effects, finalize.SheetEffect{
			PartName: sheetPart,
			Rename:   engine.Sink.RenameSheetTo,
			Hide:     engine.Sink.HideLevel,
			Delete:   engine.Sink.DeleteSheet,
		})
		for _, w := range engine.Sink.Warnings {
			sink.add("rewrite", "%s", w)
		}
	}

	if err := finalize.Apply(pkg, effects, sink.add); err != nil {
		return nil, nil, wrapErr(KindInternal, "package finalizer", err)
	}
	pkg.Delete("xl/calcChain.xml")

	out, err := pkg.Write()
	if err != nil {
		return nil, nil, wrapErr(KindInternal, "package writer", err)
	}
	return out, sink.warnings, nil
}

// sheetPartsInOrder returns the package's worksheet parts ordered by
// sheet number rather than NamesMatching's lexical order, so sheet10
// doesn't render before sheet2.
func sheetPartsInOrder(pkg *ozx.Package, pred func(string) bool) []string {
	names := pkg.NamesMatching(pred)
	sort.Slice(names, func(i, j int) bool {
		ni, _ := ozx.SheetNumber(names[i])
		nj, _ := ozx.SheetNumber(names[j])
		return ni < nj
	})
	return names
}

// classifyRewriteErr maps a Sheet Rewriter failure to the error Kind
// spec §7 assigns it: an expression that fails to parse is
// template_parse, anything else encountered while evaluating an
// otherwise well-formed expression is template_eval.
func classifyRewriteErr(err error) Kind {
	msg := err.Error()
	for _, marker := range []string{"template_parse", "block", "unterminated", "mismatched", "unclosed", "unknown helper"} {
		if strings.Contains(msg, marker) {
			return KindTemplateParse
		}
	}
	return KindTemplateEval
}
