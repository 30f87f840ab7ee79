package hbs

import "fmt"

// MergeRange is a recorded mergeCell effect.
type MergeRange struct {
	Ref string
}

// Hyperlink is a recorded hyperlink effect.
type Hyperlink struct {
	CellRef string
	Target  string
	Display string
}

// Image is a recorded img effect: decoded bytes plus the pixel
// dimensions to anchor it at, already resolved (proportional scaling
// applied) by the helper before reaching the sink.
type Image struct {
	CellRef string
	Data    []byte
	Width   int
	Height  int
}

// Sink accumulates every side effect helpers emit during one sheet's
// render pass, in place of the string output the rest of the engine
// produces — spec §4.3's "structured side-effect API rather than
// string output" requirement.
type Sink struct {
	Merges       []MergeRange
	Hyperlinks   []Hyperlink
	Images       []Image
	NumericCells map[string]float64
	FormulaCells map[string]string
	RemoveRows   map[int]bool

	DeleteSheet   bool
	RenameSheetTo string
	HideLevel     string // "", "hidden", or "veryHidden"

	Warnings []string
}

func NewSink() *Sink {
	return &Sink{
		NumericCells: make(map[string]float64),
		FormulaCells: make(map[string]string),
		RemoveRows:   make(map[int]bool),
	}
}

func (s *Sink) warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}
