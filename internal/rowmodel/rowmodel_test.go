package rowmodel

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RowModelSuite struct {
	suite.Suite
}

func TestRowModelSuite(t *testing.T) {
	suite.Run(t, new(RowModelSuite))
}

func row(n int, cells string) []byte {
	return []byte(`<row r="` + itoa(n) + `">` + cells + `</row>`)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (s *RowModelSuite) TestParseFlagsEach() {
	sheetData := append(row(1, `<c r="A1"><is><t>{{#each items}}</t></is></c>`),
		append(row(2, `<c r="A2"><is><t>{{name}}</t></is></c>`),
			row(3, `<c r="A3"><is><t>{{/each}}</t></is></c>`)...)...)
	rows, err := Parse(sheetData)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.True(rows[0].OpensEach)
	s.True(rows[0].HasTemplate)
	s.False(rows[0].ClosesEach)
	s.True(rows[2].ClosesEach)
	s.True(rows[1].HasTemplate)
	s.False(rows[1].OpensEach)
}

func (s *RowModelSuite) TestParseSelfClosingRow() {
	sheetData := []byte(`<row r="5"/>`)
	rows, err := Parse(sheetData)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(5, rows[0].ROriginal)
	s.False(rows[0].HasTemplate)
}

func (s *RowModelSuite) TestParseRemoveRowFlag() {
	sheetData := row(1, `<c r="A1"><is><t>{{removeRow}}</t></is></c>`)
	rows, err := Parse(sheetData)
	s.Require().NoError(err)
	s.True(rows[0].HasRemoveRow)
}

func (s *RowModelSuite) TestSpansSingleEach() {
	rows := []Row{
		{ROriginal: 1, OpensEach: true},
		{ROriginal: 2},
		{ROriginal: 3, ClosesEach: true},
	}
	spans, err := Spans(rows)
	s.Require().NoError(err)
	s.Require().Len(spans, 1)
	s.Equal(SpanEach, spans[0].Kind)
	s.Equal(0, spans[0].OpenIndex)
	s.Equal(2, spans[0].CloseIndex)
}

func (s *RowModelSuite) TestSpansNested() {
	rows := []Row{
		{ROriginal: 1, OpensEach: true},
		{ROriginal: 2, OpensIf: true},
		{ROriginal: 3},
		{ROriginal: 4, ClosesIf: true},
		{ROriginal: 5, ClosesEach: true},
	}
	spans, err := Spans(rows)
	s.Require().NoError(err)
	s.Require().Len(spans, 1)
	outer := spans[0]
	s.Equal(SpanEach, outer.Kind)
	s.Require().Len(outer.Children, 1)
	inner := outer.Children[0]
	s.Equal(SpanIf, inner.Kind)
	s.Equal(1, inner.OpenIndex)
	s.Equal(3, inner.CloseIndex)
}

func (s *RowModelSuite) TestInlineBlockIsNotASpan() {
	rows := []Row{
		{ROriginal: 1, OpensEach: true, ClosesEach: true},
	}
	spans, err := Spans(rows)
	s.Require().NoError(err)
	s.Empty(spans)
}

func (s *RowModelSuite) TestMismatchedCloseFails() {
	rows := []Row{
		{ROriginal: 1, OpensEach: true},
		{ROriginal: 2, ClosesIf: true},
	}
	_, err := Spans(rows)
	s.Error(err)
}

func (s *RowModelSuite) TestUnclosedSpanFails() {
	rows := []Row{
		{ROriginal: 1, OpensEach: true},
	}
	_, err := Spans(rows)
	s.Error(err)
}

func (s *RowModelSuite) TestCloseWithNothingOpenFails() {
	rows := []Row{
		{ROriginal: 1, ClosesEach: true},
	}
	_, err := Spans(rows)
	s.Error(err)
}
