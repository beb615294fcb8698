package ocr

import "math"

// Point is a pixel coordinate in page space, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the four-corner polygon an OCR engine reports for a detection.
// Corner order is not guaranteed; consumers should derive an axis-aligned
// box rather than assume orientation.
type Quad [4]Point

// BoundingBox is the axis-aligned [x0, y0, x1, y1] envelope of a quad or of
// a set of merged tokens.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// BoxFromQuad derives the axis-aligned envelope of q.
func BoxFromQuad(q Quad) BoundingBox {
	b := BoundingBox{
		X0: math.Inf(1), Y0: math.Inf(1),
		X1: math.Inf(-1), Y1: math.Inf(-1),
	}
	for _, p := range q {
		b.X0 = math.Min(b.X0, p.X)
		b.Y0 = math.Min(b.Y0, p.Y)
		b.X1 = math.Max(b.X1, p.X)
		b.Y1 = math.Max(b.Y1, p.Y)
	}
	return b
}

// QuadFromRect builds a rectangular quad from box corners. Engines that only
// report rectangles (Tesseract) go through this.
func QuadFromRect(x0, y0, x1, y1 float64) Quad {
	return Quad{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}
}

// Union returns the smallest box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Coords returns the box as the [x0, y0, x1, y1] slice used on the wire.
func (b BoundingBox) Coords() []float64 {
	return []float64{b.X0, b.Y0, b.X1, b.Y1}
}

// Token is a single OCR-detected text fragment with spatial provenance.
// Tokens are immutable once produced by the extractor.
type Token struct {
	Text       string  `json:"text"`
	Quad       Quad    `json:"quad"`
	Confidence float64 `json:"confidence"`
	Page       int     `json:"page"` // 1-indexed
}

// Box returns the token's axis-aligned bounding box.
func (t Token) Box() BoundingBox {
	return BoxFromQuad(t.Quad)
}
