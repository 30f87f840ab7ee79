package rewrite

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
)

// RewriteSuite builds its package fixtures with excelize.NewFile(),
// the same way ozx's own PackageSuite does, then overwrites
// xl/worksheets/sheet1.xml with hand-authored XML so each test controls
// exactly the row/cell shape it exercises.
type RewriteSuite struct {
	suite.Suite
}

func TestRewriteSuite(t *testing.T) {
	suite.Run(t, new(RewriteSuite))
}

func (s *RewriteSuite) newPackage() *ozx.Package {
	f := excelize.NewFile()
	var buf bytes.Buffer
	s.Require().NoError(f.Write(&buf))
	s.Require().NoError(f.Close())
	pkg, err := ozx.Read(buf.Bytes())
	s.Require().NoError(err)
	return pkg
}

func sheetXML(sheetData string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<dimension ref="A1"/><sheetViews><sheetView workbookViewId="0"/></sheetViews>` +
		`<sheetData>` + sheetData + `</sheetData></worksheet>`)
}

func inlineCell(ref, text string) string {
	return `<c r="` + ref + `" t="inlineStr"><is><t xml:space="preserve">` + text + `</t></is></c>`
}

func (s *RewriteSuite) newEngine() *hbs.Engine {
	return hbs.New()
}

func (s *RewriteSuite) noWarn() func(component, format string, args ...any) {
	return func(component, format string, args ...any) {
		s.Fail("unexpected warning", component+": "+format, args)
	}
}

func (s *RewriteSuite) TestPlainExpressionRenders() {
	pkg := s.newPackage()
	xml := sheetXML(`<row r="1">` + inlineCell("A1", "Hello {{name}}!") + `</row>`)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{"name": "World"})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	s.Contains(string(out), "Hello World!")
	s.Contains(string(out), `<dimension ref="A1"/>`)
}

func (s *RewriteSuite) TestEachExpandsRowsAndRenumbers() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", "{{#each items}}") + `</row>` +
			`<row r="2">` + inlineCell("A2", "{{this}}") + `</row>` +
			`<row r="3">` + inlineCell("A3", "{{/each}}") + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{"items": []interface{}{"a", "b", "c"}})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.Contains(got, `<row r="1">`)
	s.Contains(got, `<row r="2">`)
	s.Contains(got, `<row r="3">`)
	s.Contains(got, ">a<")
	s.Contains(got, ">b<")
	s.Contains(got, ">c<")
	s.NotContains(got, `<row r="4">`)
}

func (s *RewriteSuite) TestIfSpanDroppedWhenFalse() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", "{{#if show}}") + `</row>` +
			`<row r="2">` + inlineCell("A2", "visible") + `</row>` +
			`<row r="3">` + inlineCell("A3", "{{/if}}") + `</row>` +
			`<row r="4">` + inlineCell("A4", "after") + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{"show": false})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.NotContains(got, "visible")
	s.Contains(got, "after")
	s.Contains(got, `<row r="1">`)
}

func (s *RewriteSuite) TestRemoveRowDeletesAndRenumbers() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", "keep-1") + `</row>` +
			`<row r="2">` + inlineCell("A2", "{{removeRow}}drop") + `</row>` +
			`<row r="3">` + inlineCell("A3", "keep-2") + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.Contains(got, "keep-1")
	s.Contains(got, "keep-2")
	s.Contains(got, `<row r="2">`)
	s.NotContains(got, `<row r="3">`)
}

func (s *RewriteSuite) TestMergeCellAppliesAndDeduplicates() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{mergeCell "A1:B1"}}{{mergeCell "A1:B1"}}merged`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.Equal(1, strings.Count(got, `<mergeCell ref="A1:B1"/>`))
	s.Contains(got, `<mergeCells count="1">`)
}

func (s *RewriteSuite) TestHyperlinkInternalUsesLocation() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{hyperlink (_cr) "Sheet2!A1"}}go`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.Contains(got, `location="Sheet2!A1"`)
	s.NotContains(got, "r:id=")
}

func (s *RewriteSuite) TestHyperlinkDisplayArgEmitsDisplayAttr() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{hyperlink (_cr) "Sheet2!A1" "Go to sheet"}}go`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	got := string(out)
	s.Contains(got, `display="Go to sheet"`)
	s.NotContains(got, "tooltip=")
}

func (s *RewriteSuite) TestHyperlinkExternalWithoutRelationshipIsDropped() {
	pkg := s.newPackage()
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{hyperlink (_cr) "https://example.com"}}go`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	var warned bool
	warn := func(component, format string, args ...any) { warned = true }

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, warn)
	s.Require().NoError(err)
	s.True(warned)
	s.NotContains(string(out), "<hyperlinks>")
}

func (s *RewriteSuite) TestImageAnchoredAndDrawingPartCreated() {
	pkg := s.newPackage()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 10, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{img "`+b64+`"}}`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	s.Contains(string(out), `<drawing r:id="rId1"/>`)

	drawingData, ok := pkg.Get("xl/drawings/drawing1.xml")
	s.Require().True(ok)
	s.Contains(string(drawingData), "<xdr:oneCellAnchor>")

	_, ok = pkg.Get("xl/media/image1.png")
	s.True(ok)
}

func (s *RewriteSuite) TestImageWithZeroHeightArgScalesProportionally() {
	pkg := s.newPackage()
	img := image.NewRGBA(image.Rect(0, 0, 200, 50))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 10, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())
	xml := sheetXML(
		`<row r="1">` + inlineCell("A1", `{{img "`+b64+`" 100 0}}`) + `</row>`,
	)
	engine := s.newEngine()
	ctx := hbs.NewRootContext(map[string]interface{}{})

	out, err := RenderSheet(pkg, "xl/worksheets/sheet1.xml", xml, engine, ctx, true, s.noWarn())
	s.Require().NoError(err)
	s.Contains(string(out), `<drawing r:id="rId1"/>`)

	drawingData, ok := pkg.Get("xl/drawings/drawing1.xml")
	s.Require().True(ok)
	// source is 200x50; width=100, height omitted (0 is the "auto"
	// sentinel) must scale to 25, not come out as a zero-height anchor.
	s.Contains(string(drawingData), `cx="952500" cy="238125"`)
}
