package finalize

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
)

// FinalizeSuite builds its package fixtures with excelize.NewFile() plus
// f.NewSheet(), the same way ozx's own PackageSuite builds fixtures,
// giving each test a real multi-sheet workbook.xml/rels/[Content_Types]
// triple to rewrite.
type FinalizeSuite struct {
	suite.Suite
}

func TestFinalizeSuite(t *testing.T) {
	suite.Run(t, new(FinalizeSuite))
}

func (s *FinalizeSuite) newPackage(extraSheets ...string) *ozx.Package {
	f := excelize.NewFile()
	for _, name := range extraSheets {
		_, err := f.NewSheet(name)
		s.Require().NoError(err)
	}
	var buf bytes.Buffer
	s.Require().NoError(f.Write(&buf))
	s.Require().NoError(f.Close())
	pkg, err := ozx.Read(buf.Bytes())
	s.Require().NoError(err)
	return pkg
}

func (s *FinalizeSuite) noWarn() func(component, format string, args ...any) {
	return func(component, format string, args ...any) {
		s.Fail("unexpected warning", component+": "+format, args)
	}
}

func (s *FinalizeSuite) workbookXML(pkg *ozx.Package) string {
	data, ok := pkg.Get("xl/workbook.xml")
	s.Require().True(ok)
	return string(data)
}

func (s *FinalizeSuite) TestRenameAppliesSanitizedName() {
	pkg := s.newPackage()
	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet1.xml", Rename: `Q1/Report?`},
	}, s.noWarn())
	s.Require().NoError(err)
	s.Contains(s.workbookXML(pkg), `name="Q1Report"`)
}

func (s *FinalizeSuite) TestRenameDisambiguatesCollision() {
	pkg := s.newPackage("Target")
	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet1.xml", Rename: "Target"},
	}, s.noWarn())
	s.Require().NoError(err)
	got := s.workbookXML(pkg)
	s.Contains(got, `name="Target(1)"`)
	s.Contains(got, `name="Target"`)
}

func (s *FinalizeSuite) TestRenameTruncatesLongName() {
	pkg := s.newPackage()
	long := strings.Repeat("x", 40)
	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet1.xml", Rename: long},
	}, s.noWarn())
	s.Require().NoError(err)
	got := s.workbookXML(pkg)
	s.NotContains(got, strings.Repeat("x", 32))
	s.Contains(got, `name="`+strings.Repeat("x", 31)+`"`)
}

func (s *FinalizeSuite) TestHideKeepsAtLeastOneVisibleSheet() {
	pkg := s.newPackage()
	var warned bool
	warn := func(component, format string, args ...any) { warned = true }

	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet1.xml", Hide: "hidden"},
	}, warn)
	s.Require().NoError(err)
	s.True(warned)
	s.NotContains(s.workbookXML(pkg), `state="hidden"`)
}

func (s *FinalizeSuite) TestHideSecondSheetSucceedsWhenFirstStaysVisible() {
	pkg := s.newPackage("Second")
	var warned bool
	warn := func(component, format string, args ...any) { warned = true }
	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet2.xml", Hide: "veryHidden"},
	}, warn)
	s.Require().NoError(err)
	s.False(warned)
	s.Contains(s.workbookXML(pkg), `state="veryHidden"`)
}

func (s *FinalizeSuite) TestDeleteDropsWorksheetAndContentTypeOverride() {
	pkg := s.newPackage("Second")
	ctBefore, _ := pkg.Get("[Content_Types].xml")
	s.Contains(string(ctBefore), "sheet2.xml")

	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet2.xml", Delete: true},
	}, s.noWarn())
	s.Require().NoError(err)

	got := s.workbookXML(pkg)
	s.NotContains(got, `name="Second"`)

	_, ok := pkg.Get("xl/worksheets/sheet2.xml")
	s.False(ok)
	_, ok = pkg.Get("xl/worksheets/_rels/sheet2.xml.rels")
	s.False(ok)

	ctAfter, _ := pkg.Get("[Content_Types].xml")
	s.NotContains(string(ctAfter), "sheet2.xml")
}

func (s *FinalizeSuite) TestDeleteKeepsLastSheetWhenItWouldEmptyWorkbook() {
	pkg := s.newPackage()
	var warned bool
	warn := func(component, format string, args ...any) { warned = true }

	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet1.xml", Delete: true},
	}, warn)
	s.Require().NoError(err)
	s.True(warned)

	_, ok := pkg.Get("xl/worksheets/sheet1.xml")
	s.True(ok)
	s.Contains(s.workbookXML(pkg), "<sheet ")
}

func (s *FinalizeSuite) TestRenameThenDeleteOnSameSheet() {
	pkg := s.newPackage("Second")
	err := Apply(pkg, []SheetEffect{
		{PartName: "xl/worksheets/sheet2.xml", Rename: "Renamed", Delete: true},
	}, s.noWarn())
	s.Require().NoError(err)
	got := s.workbookXML(pkg)
	s.NotContains(got, "Renamed")
	_, ok := pkg.Get("xl/worksheets/sheet2.xml")
	s.False(ok)
}
