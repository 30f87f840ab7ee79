// Package ozx is the Package Reader/Writer: it enumerates the parts of
// an OOXML ZIP archive into memory and re-serializes an edited set of
// parts back into a fresh archive, byte-for-byte identical on every
// part nobody touched.
package ozx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Part is a single file inside the package, addressed by its
// forward-slash path within the archive (e.g. "xl/worksheets/sheet1.xml").
type Part struct {
	Name string
	Data []byte
}

// Package is an ordered set of parts. Order is preserved from the
// source archive on Read and is whatever Parts is in on Write — callers
// that add new parts append them; archive order has no OOXML semantics
// but keeping it stable makes diffs against the original readable.
type Package struct {
	Parts []Part
	index map[string]int
}

func newPackage() *Package {
	return &Package{index: make(map[string]int)}
}

// Get returns the named part's bytes and whether it exists.
func (p *Package) Get(name string) ([]byte, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.Parts[i].Data, true
}

// Set replaces a part's bytes, or appends a new part if name is not
// already present.
func (p *Package) Set(name string, data []byte) {
	if i, ok := p.index[name]; ok {
		p.Parts[i].Data = data
		return
	}
	p.index[name] = len(p.Parts)
	p.Parts = append(p.Parts, Part{Name: name, Data: data})
}

// Delete removes a part if present. Returns whether it was present.
func (p *Package) Delete(name string) bool {
	i, ok := p.index[name]
	if !ok {
		return false
	}
	p.Parts = append(p.Parts[:i], p.Parts[i+1:]...)
	delete(p.index, name)
	for j := i; j < len(p.Parts); j++ {
		p.index[p.Parts[j].Name] = j
	}
	return true
}

// Names returns every part path currently in the package, in archive
// order.
func (p *Package) Names() []string {
	names := make([]string, len(p.Parts))
	for i, part := range p.Parts {
		names[i] = part.Name
	}
	return names
}

// NamesMatching returns every part path satisfying pred, sorted
// lexically — used by callers that need a deterministic sheetN.xml scan
// order regardless of archive order.
func (p *Package) NamesMatching(pred func(string) bool) []string {
	var out []string
	for _, name := range p.Names() {
		if pred(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// minZipSize is the smallest a well-formed ZIP's end-of-central-directory
// record can be; anything shorter can never be a valid archive.
const minZipSize = 22

// zip local-file-header and empty-archive magic numbers, little-endian
// at byte offset 0 — the same three signatures the reference
// implementation's validate_xlsx_format checks.
var zipMagics = [][4]byte{
	{0x50, 0x4B, 0x03, 0x04},
	{0x50, 0x4B, 0x05, 0x06},
	{0x50, 0x4B, 0x07, 0x08},
}

func hasZipMagic(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	for _, m := range zipMagics {
		if data[0] == m[0] && data[1] == m[1] && data[2] == m[2] && data[3] == m[3] {
			return true
		}
	}
	return false
}

// Read validates the ZIP preconditions and unpacks every part into
// memory. It does not check for OOXML-specific structure — that is
// Classify's job — only that the bytes are a well-formed, non-empty ZIP.
func Read(data []byte) (*Package, error) {
	if len(data) < minZipSize {
		return nil, fmt.Errorf("input is %d bytes, shorter than the minimum valid ZIP (%d)", len(data), minZipSize)
	}
	if !hasZipMagic(data) {
		return nil, fmt.Errorf("missing ZIP local-file-header magic at offset 0")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("malformed central directory: %w", err)
	}
	pkg := newPackage()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %q: %w", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading part %q: %w", f.Name, err)
		}
		pkg.index[f.Name] = len(pkg.Parts)
		pkg.Parts = append(pkg.Parts, Part{Name: f.Name, Data: body})
	}
	return pkg, nil
}

// Write serializes the package as a fresh ZIP archive, Deflate-compressed,
// parts in their current Package order.
func (p *Package) Write() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range p.Parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   part.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("creating part %q: %w", part.Name, err)
		}
		if _, err := w.Write(part.Data); err != nil {
			return nil, fmt.Errorf("writing part %q: %w", part.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}
