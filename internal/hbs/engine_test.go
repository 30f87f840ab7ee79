package hbs

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// EngineSuite exercises the Template Engine end to end: parsing,
// evaluation, and the side-effect sink, the way a cell's Handlebars
// source is actually fed through Engine.Render.
type EngineSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) render(src string, root interface{}) (string, *Engine) {
	e := New()
	ctx := NewRootContext(root)
	out, err := e.Render(src, ctx)
	s.Require().NoError(err)
	return out, e
}

func (s *EngineSuite) TestPlainPathSubstitution() {
	out, _ := s.render("Hello {{name}}!", map[string]interface{}{"name": "World"})
	s.Equal("Hello World!", out)
}

func (s *EngineSuite) TestDottedPathSubstitution() {
	out, _ := s.render("{{team.name}}", map[string]interface{}{"team": map[string]interface{}{"name": "Core"}})
	s.Equal("Core", out)
}

func (s *EngineSuite) TestMissingPathRendersEmpty() {
	out, _ := s.render("[{{missing}}]", map[string]interface{}{})
	s.Equal("[]", out)
}

func (s *EngineSuite) TestTopLevelHelperCallWithBareArgs() {
	out, _ := s.render("{{upper name}}", map[string]interface{}{"name": "world"})
	s.Equal("WORLD", out)
}

func (s *EngineSuite) TestTopLevelHelperCallWithStringArg() {
	out, _ := s.render(`{{upper "world"}}`, nil)
	s.Equal("WORLD", out)
}

func (s *EngineSuite) TestArithmeticHelper() {
	out, _ := s.render("{{add 2 3}}", nil)
	s.Equal("5", out)
}

func (s *EngineSuite) TestSubexpressionArgument() {
	out, _ := s.render("{{upper (lower name)}}", map[string]interface{}{"name": "WoRlD"})
	s.Equal("WORLD", out)
}

func (s *EngineSuite) TestComparisonHelper() {
	out, _ := s.render(`{{#if (gt (len items) 1)}}many{{else}}few{{/if}}`, map[string]interface{}{"items": []interface{}{1, 2, 3}})
	s.Equal("many", out)
}

func (s *EngineSuite) TestEachOverArrayWithIndexAndLast() {
	out, _ := s.render(
		`{{#each items}}{{@index}}:{{this}}{{#unless @last}},{{/unless}}{{/each}}`,
		map[string]interface{}{"items": []interface{}{"a", "b", "c"}},
	)
	s.Equal("0:a,1:b,2:c", out)
}

func (s *EngineSuite) TestEachOverEmptyArrayUsesInverse() {
	out, _ := s.render(`{{#each items}}x{{else}}empty{{/each}}`, map[string]interface{}{"items": []interface{}{}})
	s.Equal("empty", out)
}

func (s *EngineSuite) TestEachOverObjectWithKey() {
	out, _ := s.render(
		`{{#each meta}}{{@key}}={{this}};{{/each}}`,
		map[string]interface{}{"meta": map[string]interface{}{"a": "1"}},
	)
	s.Equal("a=1;", out)
}

func (s *EngineSuite) TestIfElseChain() {
	out, _ := s.render(
		`{{#if a}}A{{else if b}}B{{else}}C{{/if}}`,
		map[string]interface{}{"a": false, "b": true},
	)
	s.Equal("B", out)
}

func (s *EngineSuite) TestUnlessBlock() {
	out, _ := s.render(`{{#unless flag}}off{{/unless}}`, map[string]interface{}{"flag": false})
	s.Equal("off", out)
}

func (s *EngineSuite) TestWithBlockShiftsContext() {
	out, _ := s.render(`{{#with team}}{{name}}{{/with}}`, map[string]interface{}{"team": map[string]interface{}{"name": "Core"}})
	s.Equal("Core", out)
}

func (s *EngineSuite) TestParentContextHop() {
	out, _ := s.render(
		`{{#with team}}{{#each members}}{{name}}-{{../name}};{{/each}}{{/with}}`,
		map[string]interface{}{"team": map[string]interface{}{
			"name":    "Core",
			"members": []interface{}{map[string]interface{}{"name": "Ada"}},
		}},
	)
	s.Equal("Ada-Core;", out)
}

func (s *EngineSuite) TestCommentIsStripped() {
	out, _ := s.render(`before{{! a comment }}after`, nil)
	s.Equal("beforeafter", out)
}

func (s *EngineSuite) TestMergeCellRecordsEachCall() {
	// The engine records one Merge per call; deduplication across a
	// cell's repeated calls happens one layer up, in internal/rewrite.
	_, e := s.render(`{{mergeCell "A1:B1"}}{{mergeCell "A1:B1"}}`, nil)
	s.Require().Len(e.Sink.Merges, 2)
	s.Equal("A1:B1", e.Sink.Merges[0].Ref)
}

func (s *EngineSuite) TestMergeCellWarnsOnInvalidRange() {
	_, e := s.render(`{{mergeCell "not-a-range"}}`, nil)
	s.Empty(e.Sink.Merges)
	s.Require().Len(e.Sink.Warnings, 1)
}

func (s *EngineSuite) TestHyperlinkRecordsCellRefFromSubexpression() {
	e := New()
	e.SetCurrentCell("A", 1, "A1")
	ctx := NewRootContext(nil)
	_, err := e.Render(`{{hyperlink (_cr) "Sheet2!A1"}}`, ctx)
	s.Require().NoError(err)
	s.Require().Len(e.Sink.Hyperlinks, 1)
	s.Equal("A1", e.Sink.Hyperlinks[0].CellRef)
	s.Equal("Sheet2!A1", e.Sink.Hyperlinks[0].Target)
}

func (s *EngineSuite) TestCurrentColRowRefHelpers() {
	e := New()
	e.SetCurrentCell("C", 4, "C4")
	ctx := NewRootContext(nil)
	out, err := e.Render(`{{_c}}/{{_r}}/{{_cr}}`, ctx)
	s.Require().NoError(err)
	s.Equal("C/4/C4", out)
}

func (s *EngineSuite) TestNumAndFormulaRecordAgainstCurrentCell() {
	e := New()
	e.SetCurrentCell("B", 2, "B2")
	ctx := NewRootContext(nil)
	_, err := e.Render(`{{num "3.5"}}{{formula "SUM(A1:A2)"}}`, ctx)
	s.Require().NoError(err)
	s.Equal(3.5, e.Sink.NumericCells["B2"])
	s.Equal("SUM(A1:A2)", e.Sink.FormulaCells["B2"])
}

func (s *EngineSuite) TestRemoveRowFlagsCurrentRow() {
	e := New()
	e.SetCurrentCell("A", 7, "A7")
	ctx := NewRootContext(nil)
	_, err := e.Render(`{{removeRow}}`, ctx)
	s.Require().NoError(err)
	s.True(e.Sink.RemoveRows[7])
}

func (s *EngineSuite) TestSheetLifecycleHelpers() {
	e := New()
	ctx := NewRootContext(nil)
	_, err := e.Render(`{{setCurrentSheetName "Renamed"}}{{hideCurrentSheet}}{{deleteCurrentSheet}}`, ctx)
	s.Require().NoError(err)
	s.Equal("Renamed", e.Sink.RenameSheetTo)
	s.Equal("hidden", e.Sink.HideLevel)
	s.True(e.Sink.DeleteSheet)
}

func (s *EngineSuite) TestToColumnNameAndIndexRoundTrip() {
	out, _ := s.render(`{{toColumnName "B" 2}}/{{toColumnIndex "D"}}`, nil)
	s.Equal("D/4", out)
}

func (s *EngineSuite) TestUnknownHelperErrors() {
	e := New()
	_, err := e.Render(`{{nope 1 2}}`, NewRootContext(nil))
	s.Error(err)
}

func (s *EngineSuite) TestPartialWithoutSpaceErrors() {
	_, err := ParseProgram(`{{>partial}}`)
	s.Error(err)
}

func (s *EngineSuite) TestPartialWithSpaceErrors() {
	_, err := ParseProgram(`{{> partial}}`)
	s.Error(err)
}

func (s *EngineSuite) TestMismatchedCloseErrors() {
	_, err := ParseProgram(`{{#if a}}x{{/each}}`)
	s.Error(err)
}

func (s *EngineSuite) TestUnterminatedExpressionErrors() {
	_, err := ParseProgram(`{{oops`)
	s.Error(err)
}
