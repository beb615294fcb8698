package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/docfusion/docfusion/internal/ocr"
)

// Default clustering tolerances, in pixels at the rasterization DPI.
// Tunable via configuration; they are heuristics, not fixed law.
const (
	DefaultLineTolerance = 10.0
	DefaultMaxWordGap    = 40.0
)

// Line is a deterministic pre-merge of horizontally adjacent tokens sharing
// a baseline. The model remains authoritative for semantic merges (whether
// "29," + "293.00" is one number); lines are an advisory cross-check.
type Line struct {
	Text       string          `json:"text"`
	Page       int             `json:"page"`
	Box        ocr.BoundingBox `json:"box"`
	Confidence float64         `json:"confidence"` // minimum over merged tokens
}

// MergeLines clusters a page's tokens into lines: tokens whose y0 values are
// within yTol of the line's first token, ordered by x0, joined with single
// spaces, with a unioned bounding box. A horizontal gap wider than
// DefaultMaxWordGap starts a new line even on the same baseline, so columns
// on the same row (label left, amount right) stay separate. Pass zero
// tolerance for the default.
func MergeLines(tokens []ocr.Token, yTol float64) []Line {
	if yTol <= 0 {
		yTol = DefaultLineTolerance
	}
	if len(tokens) == 0 {
		return nil
	}

	ordered := sortReadingOrder(tokens)

	var lines []Line
	var cur []ocr.Token
	curY := math.Inf(-1)
	prevX1 := math.Inf(-1)

	flush := func() {
		if len(cur) == 0 {
			return
		}
		lines = append(lines, buildLine(cur))
		cur = nil
	}

	for _, tok := range ordered {
		box := tok.Box()
		sameRow := math.Abs(box.Y0-curY) <= yTol
		if len(cur) == 0 || !sameRow || box.X0-prevX1 > DefaultMaxWordGap {
			flush()
			curY = box.Y0
		}
		cur = append(cur, tok)
		prevX1 = box.X1
	}
	flush()

	return lines
}

func buildLine(tokens []ocr.Token) Line {
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Box().X0 < tokens[j].Box().X0
	})

	box := tokens[0].Box()
	conf := tokens[0].Confidence
	texts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
		box = box.Union(tok.Box())
		conf = math.Min(conf, tok.Confidence)
	}

	return Line{
		Text:       strings.Join(texts, " "),
		Page:       tokens[0].Page,
		Box:        box,
		Confidence: conf,
	}
}
