package rewrite

import (
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/ozx"
)

// applyHyperlinks renders the <hyperlinks> element for a sheet. Internal
// targets — a same-workbook place reference such as "Sheet2!A1" — use
// the location attribute and need no relationship. External targets
// must already have a matching External relationship in the template;
// per spec §4.4/§4.6 open question (b) the core never fabricates one,
// so a target with no pre-existing relationship is dropped with a
// warning rather than invented.
func applyHyperlinks(pkg *ozx.Package, sheetPart string, links []hbs.Hyperlink, warn func(component, format string, args ...any)) []byte {
	if len(links) == 0 {
		return nil
	}

	relsPart := ozx.SheetRelsPath(sheetPart)
	relsData, _ := pkg.Get(relsPart)
	rels := parseRelationships(relsData)

	var sb strings.Builder
	sb.WriteString(`<hyperlinks>`)
	any := false
	for _, link := range links {
		var attr string
		if isInternalHyperlinkRef(link.Target) {
			attr = ` location="` + xmlEscapeAttr(link.Target) + `"`
		} else {
			relID, ok := findExternalRelID(rels, link.Target)
			if !ok {
				warn("rewrite", "hyperlink at %q targets %q, no matching relationship in the template, dropped", link.CellRef, link.Target)
				continue
			}
			attr = ` r:id="` + relID + `"`
		}
		sb.WriteString(`<hyperlink ref="` + link.CellRef + `"` + attr)
		if link.Display != "" {
			sb.WriteString(` display="` + xmlEscapeAttr(link.Display) + `"`)
		}
		sb.WriteString(`/>`)
		any = true
	}
	sb.WriteString(`</hyperlinks>`)
	if !any {
		return nil
	}
	return []byte(sb.String())
}

// isInternalHyperlinkRef reports whether target is a same-workbook
// place reference (e.g. "Sheet2!A1") rather than an external URL.
func isInternalHyperlinkRef(target string) bool {
	return strings.Contains(target, "!") && !strings.Contains(target, "://") && !strings.HasPrefix(target, "mailto:")
}
