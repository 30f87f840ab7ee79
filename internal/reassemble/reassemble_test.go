package reassemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ReassembleSuite struct {
	suite.Suite
}

func TestReassembleSuite(t *testing.T) {
	suite.Run(t, new(ReassembleSuite))
}

func (s *ReassembleSuite) TestNoBracesIsIdentity() {
	in := []byte(`<sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>plain text</t></is></c></row></sheetData>`)
	out, warnings := Reassemble(in)
	s.Empty(warnings)
	s.Equal(string(in), string(out))
}

func (s *ReassembleSuite) TestFragmentedExpressionMerges() {
	in := []byte(`<c r="A1" t="inlineStr"><is><r><t>{{na</t></r><r><t xml:space="preserve">me}}</t></r></is></c>`)
	out, warnings := Reassemble(in)
	s.Empty(warnings)
	s.Contains(string(out), "{{name}}")
	s.Equal(1, strings.Count(string(out), "<t "))
}

func (s *ReassembleSuite) TestUnsplitExpressionUnaffected() {
	in := []byte(`<c r="A1" t="inlineStr"><is><t>Hello {{name}}</t></is></c>`)
	out, _ := Reassemble(in)
	s.Contains(string(out), "Hello {{name}}")
}

func (s *ReassembleSuite) TestTripleBraceSupported() {
	in := []byte(`<is><r><t>{{{ra</t></r><r><t>w}}}</t></r></is>`)
	out, _ := Reassemble(in)
	s.Contains(string(out), "{{{raw}}}")
}

func (s *ReassembleSuite) TestCommentElided() {
	in := []byte(`<is><r><t>before {{!-- drop</t></r><r><t> me --}} after</t></r></is>`)
	out, _ := Reassemble(in)
	s.Contains(string(out), "before")
	s.Contains(string(out), "after")
	s.NotContains(string(out), "drop")
	s.NotContains(string(out), "{{!")
}

func (s *ReassembleSuite) TestUnterminatedExpressionWarns() {
	in := []byte(`<is><t>{{name and no close</t></is>`)
	out, warnings := Reassemble(in)
	s.NotEmpty(warnings)
	s.Contains(string(out), "{{name and no close")
}

func (s *ReassembleSuite) TestUntouchedRunKeepsOriginalWrapper() {
	in := []byte(`<is><r><rPr><b/></rPr><t xml:space="preserve">bold text</t></r></is>`)
	out, _ := Reassemble(in)
	s.Contains(string(out), `<rPr><b/></rPr>`)
	s.Contains(string(out), "bold text")
}

func (s *ReassembleSuite) TestEscapedBraceIsUnescaped() {
	in := []byte(`<is><t>literal \{{name}} stays text</t></is>`)
	out, warnings := Reassemble(in)
	s.Empty(warnings)
	s.Contains(string(out), "literal {{name}} stays text")
	s.NotContains(string(out), `\{{`)
}

func (s *ReassembleSuite) TestValueContainerPassesThroughPlainText() {
	in := []byte(`<c r="A1"><v>42</v></c>`)
	out, warnings := Reassemble(in)
	s.Empty(warnings)
	s.Equal(string(in), string(out))
}
