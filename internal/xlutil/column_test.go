package xlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// ColumnSuite mirrors the teacher's own suite-per-component test style
// (template_test.go uses *Suite / Setup.../Test...), applied here to a
// pure-function package that has no fixture to set up.
type ColumnSuite struct {
	suite.Suite
}

func TestColumnSuite(t *testing.T) {
	suite.Run(t, new(ColumnSuite))
}

// table carried over verbatim from the Rust reference's own #[cfg(test)]
// table in utils.rs (test_excel_column_name_and_index).
var columnTable = []struct {
	name  string
	index int
}{
	{"A", 1},
	{"Z", 26},
	{"AA", 27},
	{"AZ", 52},
	{"BA", 53},
	{"ZZ", 702},
	{"AAA", 703},
	{"AAB", 704},
	{"ABC", 731},
	{"ZZZ", 18278},
}

func (s *ColumnSuite) TestColumnIndexTable() {
	for _, tc := range columnTable {
		idx, err := ColumnIndex(tc.name)
		s.Require().NoError(err)
		s.Equal(tc.index, idx, tc.name)
	}
}

func (s *ColumnSuite) TestColumnNameIdentityAndIncrement() {
	for _, tc := range columnTable {
		name, err := ColumnName(tc.name, 0)
		s.Require().NoError(err)
		s.Equal(tc.name, name)

		plusOne, err := ColumnName(tc.name, 1)
		s.Require().NoError(err)
		idxPlusOne, err := ColumnIndex(plusOne)
		s.Require().NoError(err)
		s.Equal(tc.index+1, idxPlusOne)
	}
}

func (s *ColumnSuite) TestColumnNameCarries() {
	cases := []struct {
		in     string
		offset int
		want   string
	}{
		{"A", 0, "A"},
		{"A", 1, "B"},
		{"Z", 1, "AA"},
		{"AA", 1, "AB"},
		{"AZ", 1, "BA"},
		{"ZZ", 1, "AAA"},
		{"AAA", 26, "ABA"},
	}
	for _, tc := range cases {
		got, err := ColumnName(tc.in, tc.offset)
		s.Require().NoError(err)
		s.Equal(tc.want, got, "%s+%d", tc.in, tc.offset)
	}
}

func (s *ColumnSuite) TestColumnIndexRoundTripsUpTo703() {
	// column_index(column_name("A", k)) == 1 + k for 0 <= k <= 702
	for k := 0; k <= 702; k++ {
		name, err := ColumnName("A", k)
		s.Require().NoError(err)
		idx, err := ColumnIndex(name)
		s.Require().NoError(err)
		s.Equal(1+k, idx)
	}
}

func (s *ColumnSuite) TestColumnIndexAcceptsFullCellRef() {
	idx, err := ColumnIndex("B5")
	s.Require().NoError(err)
	s.Equal(2, idx)
}

func (s *ColumnSuite) TestColumnIndexRejectsEmpty() {
	_, err := ColumnIndex("")
	s.Error(err)
}

func (s *ColumnSuite) TestColumnNameUnderflowsBeforeA() {
	_, err := ColumnName("A", -1)
	assert.Error(s.T(), err)
}

func (s *ColumnSuite) TestCellRef() {
	ref, err := CellRef(2, 5)
	s.Require().NoError(err)
	s.Equal("B5", ref)
}
