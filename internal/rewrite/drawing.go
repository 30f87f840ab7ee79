package rewrite

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
	"github.com/sail-sail/xlsx-handlebars/internal/xlutil"
)

// emuPerPixel is the EMU/pixel ratio at Excel's assumed 96 DPI.
const emuPerPixel = 9525

// applyImages wires a sheet's rendered images into the package: it
// writes each image's bytes to a fresh xl/media part, registers the
// part's content type, creates or reuses the sheet's drawing part and
// relationship, and appends a <xdr:oneCellAnchor> per image. Sheets
// with no images are left untouched — no empty drawing part is ever
// created.
func applyImages(pkg *ozx.Package, sheetPart string, images []hbs.Image, deterministic bool, warn func(component, format string, args ...any)) ([]byte, error) {
	if len(images) == 0 {
		return nil, nil
	}

	relsPart := ozx.SheetRelsPath(sheetPart)
	relsData, _ := pkg.Get(relsPart)
	sheetRels := parseRelationships(relsData)

	drawingPart, drawingRelID, isNewDrawing := resolveDrawingPart(pkg, sheetPart, sheetRels, deterministic)
	drawingRelsPart := drawingRelsPath(drawingPart)
	drawingRelsData, _ := pkg.Get(drawingRelsPart)
	drawingRels := parseRelationships(drawingRelsData)

	var anchors bytes.Buffer
	if !isNewDrawing {
		existingData, _ := pkg.Get(drawingPart)
		anchors.Write(existingAnchors(existingData))
	}

	nextMediaIdx := nextMediaIndex(pkg)
	anchorID := 1
	for _, img := range images {
		ext, contentType, ok := xlutil.SniffFormat(img.Data)
		if !ok {
			warn("rewrite", "image at %q has an unrecognized format, dropped", img.CellRef)
			continue
		}
		mediaName := fmt.Sprintf("xl/media/image%d.%s", nextMediaIdx, ext)
		nextMediaIdx++
		pkg.Set(mediaName, img.Data)
		ensureDefaultContentType(pkg, ext, contentType)

		relID := newRelID(deterministic, drawingRels)
		drawingRels = append(drawingRels, relationship{
			ID:     relID,
			Type:   imageRelType(),
			Target: "../media/" + mediaName[len("xl/media/"):],
		})

		col, row, err := cellRefToZeroBased(img.CellRef)
		if err != nil {
			warn("rewrite", "image anchor %q: %v, dropped", img.CellRef, err)
			continue
		}
		anchors.WriteString(oneCellAnchorXML(col, row, img.Width, img.Height, relID, anchorID))
		anchorID++
	}

	pkg.Set(drawingRelsPart, relationshipsXML(drawingRels))
	pkg.Set(drawingPart, drawingXML(anchors.Bytes()))
	ensureOverrideContentType(pkg, "/"+drawingPart, "application/vnd.openxmlformats-officedocument.drawing+xml")

	if isNewDrawing {
		sheetRels = append(sheetRels, relationship{ID: drawingRelID, Type: drawingRelType, Target: "drawings/" + drawingPart[len("xl/drawings/"):]})
		pkg.Set(relsPart, relationshipsXML(sheetRels))
	}

	return []byte(`<drawing r:id="` + drawingRelID + `"/>`), nil
}

// resolveDrawingPart returns the sheet's existing drawing part and
// relationship id, or allocates a fresh one if the sheet has none yet.
func resolveDrawingPart(pkg *ozx.Package, sheetPart string, sheetRels []relationship, deterministic bool) (part, relID string, isNew bool) {
	if rel, ok := findDrawingRelID(sheetRels); ok {
		target := rel.Target
		target = strings.TrimPrefix(target, "../")
		if !strings.HasPrefix(target, "xl/") {
			target = "xl/" + target
		}
		return target, rel.ID, false
	}
	n := nextDrawingIndex(pkg)
	part = fmt.Sprintf("xl/drawings/drawing%d.xml", n)
	relID = newRelID(deterministic, sheetRels)
	return part, relID, true
}

func nextDrawingIndex(pkg *ozx.Package) int {
	max := 0
	pred := func(name string) bool { return strings.HasPrefix(name, "xl/drawings/drawing") }
	for _, name := range pkg.NamesMatching(pred) {
		if n, ok := trailingNumber(name, "xl/drawings/drawing", ".xml"); ok && n > max {
			max = n
		}
	}
	return max + 1
}

func nextMediaIndex(pkg *ozx.Package) int {
	max := 0
	pred := func(name string) bool { return strings.HasPrefix(name, "xl/media/image") }
	for _, name := range pkg.NamesMatching(pred) {
		dot := strings.LastIndexByte(name, '.')
		if dot == -1 {
			continue
		}
		if n, ok := trailingNumber(name[:dot], "xl/media/image", ""); ok && n > max {
			max = n
		}
	}
	return max + 1
}

func trailingNumber(name, prefix, suffix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	s := strings.TrimPrefix(name, prefix)
	if suffix != "" {
		s = strings.TrimSuffix(s, suffix)
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func drawingRelsPath(drawingPart string) string {
	idx := strings.LastIndexByte(drawingPart, '/')
	return drawingPart[:idx+1] + "_rels/" + drawingPart[idx+1:] + ".rels"
}

func cellRefToZeroBased(ref string) (col, row int, err error) {
	colLetters := strings.TrimRight(ref, "0123456789")
	rowPart := ref[len(colLetters):]
	idx, err := xlutil.ColumnIndex(colLetters)
	if err != nil {
		return 0, 0, err
	}
	r, err := strconv.Atoi(rowPart)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell ref %q", ref)
	}
	return idx - 1, r - 1, nil
}

// oneCellAnchorXML renders a single <xdr:oneCellAnchor> anchoring an
// image at col/row (0-based) with no offset, sized in EMU from its
// pixel dimensions.
func oneCellAnchorXML(col, row, widthPx, heightPx int, relID string, anchorID int) string {
	cx := widthPx * emuPerPixel
	cy := heightPx * emuPerPixel
	var sb strings.Builder
	sb.WriteString(`<xdr:oneCellAnchor>`)
	sb.WriteString(`<xdr:from><xdr:col>` + strconv.Itoa(col) + `</xdr:col><xdr:colOff>0</xdr:colOff>`)
	sb.WriteString(`<xdr:row>` + strconv.Itoa(row) + `</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:from>`)
	sb.WriteString(`<xdr:ext cx="` + strconv.Itoa(cx) + `" cy="` + strconv.Itoa(cy) + `"/>`)
	sb.WriteString(`<xdr:pic>`)
	sb.WriteString(`<xdr:nvPicPr><xdr:cNvPr id="` + strconv.Itoa(anchorID) + `" name="Picture ` + strconv.Itoa(anchorID) + `"/><xdr:cNvPicPr/></xdr:nvPicPr>`)
	sb.WriteString(`<xdr:blipFill><a:blip r:embed="` + relID + `"/><a:stretch><a:fillRect/></a:stretch></xdr:blipFill>`)
	sb.WriteString(`<xdr:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="` + strconv.Itoa(cx) + `" cy="` + strconv.Itoa(cy) + `"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></xdr:spPr>`)
	sb.WriteString(`</xdr:pic>`)
	sb.WriteString(`<xdr:clientData/>`)
	sb.WriteString(`</xdr:oneCellAnchor>`)
	return sb.String()
}

func drawingXML(anchors []byte) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<xdr:wsDr xmlns:xdr="http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	sb.Write(anchors)
	sb.WriteString(`</xdr:wsDr>`)
	return []byte(sb.String())
}

// existingAnchors returns an existing drawing part's <xdr:oneCellAnchor>
// elements verbatim, so re-rendering a sheet that already carried
// drawings (e.g. from a previous pass, or hand-authored in the
// template) doesn't drop them.
func existingAnchors(drawingXML []byte) []byte {
	start := bytes.Index(drawingXML, []byte("<xdr:wsDr"))
	if start == -1 {
		return nil
	}
	gt := bytes.IndexByte(drawingXML[start:], '>')
	if gt == -1 {
		return nil
	}
	bodyStart := start + gt + 1
	end := bytes.LastIndex(drawingXML, []byte("</xdr:wsDr>"))
	if end == -1 || end < bodyStart {
		return nil
	}
	return drawingXML[bodyStart:end]
}

func ensureDefaultContentType(pkg *ozx.Package, ext, contentType string) {
	const partName = "[Content_Types].xml"
	data, _ := pkg.Get(partName)
	needle := []byte(`Extension="` + ext + `"`)
	if bytes.Contains(data, needle) {
		return
	}
	insertion := []byte(`<Default Extension="` + ext + `" ContentType="` + contentType + `"/>`)
	pkg.Set(partName, insertBeforeTypesClose(data, insertion))
}

func ensureOverrideContentType(pkg *ozx.Package, partName, contentType string) {
	const ctPart = "[Content_Types].xml"
	data, _ := pkg.Get(ctPart)
	needle := []byte(`PartName="` + partName + `"`)
	if bytes.Contains(data, needle) {
		return
	}
	insertion := []byte(`<Override PartName="` + partName + `" ContentType="` + contentType + `"/>`)
	pkg.Set(ctPart, insertBeforeTypesClose(data, insertion))
}

func insertBeforeTypesClose(data, insertion []byte) []byte {
	idx := bytes.LastIndex(data, []byte("</Types>"))
	if idx == -1 {
		return data
	}
	var out bytes.Buffer
	out.Write(data[:idx])
	out.Write(insertion)
	out.Write(data[idx:])
	return out.Bytes()
}
