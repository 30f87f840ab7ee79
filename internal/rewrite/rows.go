package rewrite

import (
	"strconv"
	"strings"

	"github.com/sail-sail/xlsx-handlebars/internal/hbs"
	"github.com/sail-sail/xlsx-handlebars/internal/xlutil"
)

// assembled is everything finalizeRows produces once deletion and
// renumbering have settled: the rewritten <sheetData> body, the
// recomputed dimension, and every sheet-level side effect remapped from
// the provisional row numbers rendering saw to the rows' final numbers.
type assembled struct {
	SheetDataBody []byte
	DimensionRef  string
	Merges        []string
	Hyperlinks    []hbs.Hyperlink
	Images        []hbs.Image
}

// finalizeRows drops rows the removeRow helper flagged, assigns fresh
// 1-based row numbers in appearance order, and remaps every side effect
// the sink recorded against a provisional ref to the surviving row's
// final ref — spec §4.5 steps 4-7.
func finalizeRows(rows []draftRow, sink *hbs.Sink, warn func(component, format string, args ...any)) assembled {
	kept := make([]draftRow, 0, len(rows))
	finalR := make(map[int]int, len(rows))
	for _, r := range rows {
		if sink.RemoveRows[r.ProvisionalR] {
			continue
		}
		finalR[r.ProvisionalR] = len(kept) + 1
		kept = append(kept, r)
	}

	var sb strings.Builder
	minCol, maxCol, minRow, maxRow := 0, 0, 0, 0
	haveBounds := false

	for i, r := range kept {
		finalRow := i + 1
		sb.WriteString(`<row r="`)
		sb.WriteString(strconv.Itoa(finalRow))
		sb.WriteString(`"`)
		sb.WriteString(r.AttrsNoR)
		if r.SelfClosing {
			sb.WriteString(`/>`)
			continue
		}
		sb.WriteString(`>`)
		for _, c := range r.Cells {
			ref := c.ColLetters + strconv.Itoa(finalRow)
			sb.WriteString(`<c r="`)
			sb.WriteString(ref)
			sb.WriteString(`"`)
			if c.Type != "" {
				sb.WriteString(` t="`)
				sb.WriteString(c.Type)
				sb.WriteString(`"`)
			}
			sb.WriteString(c.AttrsNoRef)
			if c.SelfClosing {
				sb.WriteString(`/>`)
				continue
			}
			sb.WriteString(`>`)
			sb.Write(c.Inner)
			sb.WriteString(`</c>`)

			if idx, err := xlutil.ColumnIndex(c.ColLetters); err == nil {
				if !haveBounds {
					minCol, maxCol, minRow, maxRow = idx, idx, finalRow, finalRow
					haveBounds = true
				} else {
					if idx < minCol {
						minCol = idx
					}
					if idx > maxCol {
						maxCol = idx
					}
					if finalRow < minRow {
						minRow = finalRow
					}
					if finalRow > maxRow {
						maxRow = finalRow
					}
				}
			}
		}
		sb.WriteString(`</row>`)
	}

	dimensionRef := "A1"
	if haveBounds {
		from, _ := xlutil.CellRef(minCol, minRow)
		to, _ := xlutil.CellRef(maxCol, maxRow)
		dimensionRef = from + ":" + to
		if from == to {
			dimensionRef = from
		}
	}

	merges := remapMerges(sink.Merges, finalR, warn)
	hyperlinks := remapHyperlinks(sink.Hyperlinks, finalR, warn)
	images := remapImages(sink.Images, finalR, warn)

	return assembled{
		SheetDataBody: []byte(sb.String()),
		DimensionRef:  dimensionRef,
		Merges:        merges,
		Hyperlinks:    hyperlinks,
		Images:        images,
	}
}

func remapMerges(merges []hbs.MergeRange, finalR map[int]int, warn func(component, format string, args ...any)) []string {
	seen := make(map[string]bool, len(merges))
	out := make([]string, 0, len(merges))
	for _, m := range merges {
		parts := strings.SplitN(m.Ref, ":", 2)
		if len(parts) != 2 {
			continue
		}
		a, aok := remapRef(parts[0], finalR)
		b, bok := remapRef(parts[1], finalR)
		if !aok || !bok {
			warn("rewrite", "mergeCell %q references a row removed by removeRow, dropped", m.Ref)
			continue
		}
		rng := a + ":" + b
		if seen[rng] {
			continue
		}
		seen[rng] = true
		out = append(out, rng)
	}
	return out
}

func remapHyperlinks(links []hbs.Hyperlink, finalR map[int]int, warn func(component, format string, args ...any)) []hbs.Hyperlink {
	byRef := make(map[string]hbs.Hyperlink, len(links))
	order := make([]string, 0, len(links))
	for _, l := range links {
		ref, ok := remapRef(l.CellRef, finalR)
		if !ok {
			warn("rewrite", "hyperlink on %q references a row removed by removeRow, dropped", l.CellRef)
			continue
		}
		if _, exists := byRef[ref]; !exists {
			order = append(order, ref)
		}
		l.CellRef = ref
		byRef[ref] = l // last write wins per spec's side-effect channel table
	}
	out := make([]hbs.Hyperlink, 0, len(order))
	for _, ref := range order {
		out = append(out, byRef[ref])
	}
	return out
}

func remapImages(images []hbs.Image, finalR map[int]int, warn func(component, format string, args ...any)) []hbs.Image {
	out := make([]hbs.Image, 0, len(images))
	for _, img := range images {
		ref, ok := remapRef(img.CellRef, finalR)
		if !ok {
			warn("rewrite", "image anchored at %q references a row removed by removeRow, dropped", img.CellRef)
			continue
		}
		img.CellRef = ref
		out = append(out, img)
	}
	return out
}

// remapRef rewrites a cell reference's row component from its
// provisional (render-time) number to its final (post-deletion) number.
func remapRef(ref string, finalR map[int]int) (string, bool) {
	col := strings.TrimRight(ref, "0123456789")
	rowPart := ref[len(col):]
	n, err := strconv.Atoi(rowPart)
	if err != nil {
		return "", false
	}
	final, ok := finalR[n]
	if !ok {
		return "", false
	}
	return col + strconv.Itoa(final), true
}
