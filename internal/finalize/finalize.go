// Package finalize implements the Package Finalizer: it applies the
// workbook-level side effects the engine recorded per sheet — rename,
// hide, delete — against xl/workbook.xml, xl/_rels/workbook.xml.rels,
// and [Content_Types].xml, honoring the preconditions spec §4.6 places
// on hide and delete (a workbook can never end up with zero visible or
// zero remaining sheets).
package finalize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
)

// SheetEffect is one sheet's workbook-level requests, gathered from its
// Sink after the Sheet Rewriter finished with it.
type SheetEffect struct {
	PartName string // xl/worksheets/sheetN.xml
	Rename   string // "" if setCurrentSheetName was never called
	Hide     string // "", "hidden", or "veryHidden"
	Delete   bool
}

const workbookRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"

// Apply rewrites workbook.xml, its relationships, and the content
// types part in place against pkg, honoring effects in rename → hide →
// delete order per sheet, exactly as §4.6 specifies.
func Apply(pkg *ozx.Package, effects []SheetEffect, warn func(component, format string, args ...any)) error {
	wbData, ok := pkg.Get("xl/workbook.xml")
	if !ok {
		return fmt.Errorf("package finalizer: missing xl/workbook.xml")
	}
	doc, err := parseWorkbookDoc(wbData)
	if err != nil {
		return fmt.Errorf("package finalizer: %w", err)
	}

	relsData, _ := pkg.Get("xl/_rels/workbook.xml.rels")
	rels := parseRelationships(relsData)

	byPart := make(map[string]SheetEffect, len(effects))
	for _, e := range effects {
		byPart[e.PartName] = e
	}
	partForEntry := make(map[int]string, len(doc.sheets))
	for i, s := range doc.sheets {
		if target, ok := findRelTarget(rels, s.RID); ok {
			partForEntry[i] = "xl/" + strings.TrimPrefix(target, "/xl/")
		}
	}

	applyRenames(&doc, byPart, partForEntry)
	applyHides(&doc, byPart, partForEntry, warn)
	deletedParts := applyDeletes(&doc, byPart, partForEntry, warn)

	pkg.Set("xl/workbook.xml", doc.render())

	for _, part := range deletedParts {
		removeSheetFromPackage(pkg, part, &rels)
	}
	if len(deletedParts) > 0 {
		pkg.Set("xl/_rels/workbook.xml.rels", relationshipsXML(rels))
	}

	return nil
}

func applyRenames(doc *workbookDoc, byPart map[string]SheetEffect, partForEntry map[int]string) {
	taken := make(map[string]bool, len(doc.sheets))
	for _, s := range doc.sheets {
		taken[s.Name] = true
	}
	for i := range doc.sheets {
		part, ok := partForEntry[i]
		if !ok {
			continue
		}
		eff, ok := byPart[part]
		if !ok || eff.Rename == "" {
			continue
		}
		delete(taken, doc.sheets[i].Name)
		newName := disambiguate(sanitizeSheetName(eff.Rename), taken)
		taken[newName] = true
		doc.sheets[i].Name = newName
	}
}

// sanitizeSheetName strips the characters Excel forbids in a sheet
// name and truncates to 31 UTF-16 code units — the unit Excel itself
// counts in, so a name built from astral-plane characters truncates
// correctly too.
func sanitizeSheetName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '\\', '/', '?', '*', '[', ']', ':':
			continue
		default:
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	units := utf16.Encode([]rune(cleaned))
	if len(units) <= 31 {
		return cleaned
	}
	return string(utf16.Decode(units[:31]))
}

func disambiguate(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 1; ; n++ {
		suffix := fmt.Sprintf("(%d)", n)
		base := name
		if max := 31 - len(suffix); len(base) > max {
			base = base[:max]
		}
		candidate := base + suffix
		if !taken[candidate] {
			return candidate
		}
	}
}

func applyHides(doc *workbookDoc, byPart map[string]SheetEffect, partForEntry map[int]string, warn func(component, format string, args ...any)) {
	for i := range doc.sheets {
		part, ok := partForEntry[i]
		if !ok {
			continue
		}
		eff, ok := byPart[part]
		if !ok || eff.Hide == "" {
			continue
		}
		prior := doc.sheets[i].State
		doc.sheets[i].State = eff.Hide
		if !anyVisible(doc.sheets) {
			doc.sheets[i].State = prior
			warn("finalize", "hiding sheet %q would leave no visible sheets, dropped", doc.sheets[i].Name)
		}
	}
}

func anyVisible(sheets []sheetEntry) bool {
	for _, s := range sheets {
		if s.State == "" {
			return true
		}
	}
	return false
}

// applyDeletes removes every sheet entry whose effect requested
// deletion, unless doing so would empty the workbook — in which case
// the last one (in document order) is kept and a warning recorded.
// Returns the worksheet part names actually deleted.
func applyDeletes(doc *workbookDoc, byPart map[string]SheetEffect, partForEntry map[int]string, warn func(component, format string, args ...any)) []string {
	var toDelete []int
	for i := range doc.sheets {
		part, ok := partForEntry[i]
		if !ok {
			continue
		}
		if eff, ok := byPart[part]; ok && eff.Delete {
			toDelete = append(toDelete, i)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	if len(toDelete) >= len(doc.sheets) {
		last := toDelete[len(toDelete)-1]
		warn("finalize", "deleting sheet %q would empty the workbook, dropped", doc.sheets[last].Name)
		toDelete = toDelete[:len(toDelete)-1]
	}

	deleteSet := make(map[int]bool, len(toDelete))
	var deletedParts []string
	for _, i := range toDelete {
		deleteSet[i] = true
		if part, ok := partForEntry[i]; ok {
			deletedParts = append(deletedParts, part)
		}
	}
	kept := make([]sheetEntry, 0, len(doc.sheets)-len(deleteSet))
	for i, s := range doc.sheets {
		if deleteSet[i] {
			continue
		}
		kept = append(kept, s)
	}
	doc.sheets = kept
	return deletedParts
}

func removeSheetFromPackage(pkg *ozx.Package, part string, rels *[]relationship) {
	for _, r := range *rels {
		if r.Type == workbookRelType && "xl/"+strings.TrimPrefix(r.Target, "/xl/") == part {
			*rels = removeRelationship(*rels, r.ID)
			break
		}
	}
	pkg.Delete(part)
	pkg.Delete(ozx.SheetRelsPath(part))
	removeContentTypeOverride(pkg, "/"+part)
}

func removeContentTypeOverride(pkg *ozx.Package, partName string) {
	const ctPart = "[Content_Types].xml"
	data, ok := pkg.Get(ctPart)
	if !ok {
		return
	}
	needle := []byte(`PartName="` + partName + `"`)
	idx := bytes.Index(data, needle)
	if idx == -1 {
		return
	}
	tagStart := bytes.LastIndex(data[:idx], []byte("<Override"))
	if tagStart == -1 {
		return
	}
	tagEnd := bytes.IndexByte(data[idx:], '>')
	if tagEnd == -1 {
		return
	}
	end := idx + tagEnd + 1
	var out bytes.Buffer
	out.Write(data[:tagStart])
	out.Write(data[end:])
	pkg.Set(ctPart, out.Bytes())
}
