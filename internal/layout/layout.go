// Package layout orders OCR tokens into reading order and builds the
// coordinate reference handed to the model as grounding evidence.
package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docfusion/docfusion/internal/ocr"
)

// PageTokens is the per-page input to the formatter: raw (unordered) tokens
// plus the rasterized page dimensions.
type PageTokens struct {
	PageNumber int // 1-indexed
	Width      int
	Height     int
	Tokens     []ocr.Token
}

// Entry is one line of the coordinate reference: a token with its global
// index across all pages.
type Entry struct {
	Index      int             `json:"index"` // 1-indexed across the document
	Text       string          `json:"text"`
	Page       int             `json:"page"`
	Box        ocr.BoundingBox `json:"box"`
	Confidence float64         `json:"confidence"`
}

// CoordinateReference is the flattened, globally-indexed token listing across
// all pages. It always contains every surviving token; truncating it is the
// failure mode where the model silently drops late pages.
type CoordinateReference struct {
	Pages   int     `json:"pages"`
	Entries []Entry `json:"entries"`
}

// TokenCount returns the number of entries in the reference.
func (r *CoordinateReference) TokenCount() int { return len(r.Entries) }

// Render produces the listing embedded verbatim in the grounding prompt.
// One line per token: [NNN] "text" -> Page P, Box [x0, y0, x1, y1], Confidence: C.CC
func (r *CoordinateReference) Render() string {
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "[%03d] %q -> Page %d, Box [%.0f, %.0f, %.0f, %.0f], Confidence: %.2f\n",
			e.Index, e.Text, e.Page, e.Box.X0, e.Box.Y0, e.Box.X1, e.Box.Y1, e.Confidence)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Format sorts each page's tokens into reading order and returns the
// coordinate reference plus a plain-text transcript. The transcript is
// advisory context; the reference is the authoritative grounding structure.
//
// Sort key is (box.y0, box.x0) ascending. The sort must be stable: ties keep
// original extraction order so identical input always formats identically.
func Format(pages []PageTokens) (*CoordinateReference, string) {
	ref := &CoordinateReference{Pages: len(pages)}

	var transcript []string
	index := 1

	for _, page := range pages {
		ordered := sortReadingOrder(page.Tokens)

		texts := make([]string, 0, len(ordered))
		for _, tok := range ordered {
			ref.Entries = append(ref.Entries, Entry{
				Index:      index,
				Text:       tok.Text,
				Page:       tok.Page,
				Box:        tok.Box(),
				Confidence: tok.Confidence,
			})
			texts = append(texts, tok.Text)
			index++
		}

		transcript = append(transcript,
			fmt.Sprintf("[Page %d] %s", page.PageNumber, strings.Join(texts, " ")))
	}

	return ref, strings.Join(transcript, "\n\n")
}

// sortReadingOrder returns a stably-sorted copy: top line-major, then
// left-to-right. This approximates reading order for roughly-horizontal
// tabular content; it does not cluster rows or columns.
func sortReadingOrder(tokens []ocr.Token) []ocr.Token {
	sorted := make([]ocr.Token, len(tokens))
	copy(sorted, tokens)

	sort.SliceStable(sorted, func(i, j int) bool {
		bi, bj := sorted[i].Box(), sorted[j].Box()
		if bi.Y0 != bj.Y0 {
			return bi.Y0 < bj.Y0
		}
		return bi.X0 < bj.X0
	})
	return sorted
}
