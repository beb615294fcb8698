package ocr

import (
	"context"
	"testing"
)

func TestBoxFromQuad(t *testing.T) {
	quad := Quad{{X: 1, Y: 5}, {X: 9, Y: 5}, {X: 9, Y: 20}, {X: 1, Y: 20}}
	box := BoxFromQuad(quad)

	want := BoundingBox{X0: 1, Y0: 5, X1: 9, Y1: 20}
	if box != want {
		t.Fatalf("BoxFromQuad() = %+v, want %+v", box, want)
	}
}

func TestBoxFromQuad_RotatedCorners(t *testing.T) {
	// Corner order must not matter.
	quad := Quad{{X: 9, Y: 20}, {X: 1, Y: 5}, {X: 1, Y: 20}, {X: 9, Y: 5}}
	box := BoxFromQuad(quad)

	want := BoundingBox{X0: 1, Y0: 5, X1: 9, Y1: 20}
	if box != want {
		t.Fatalf("BoxFromQuad() = %+v, want %+v", box, want)
	}
}

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{X0: 1397, Y0: 1283, X1: 1420, Y1: 1319}
	b := BoundingBox{X0: 1425, Y0: 1283, X1: 1531, Y1: 1319}

	got := a.Union(b)
	want := BoundingBox{X0: 1397, Y0: 1283, X1: 1531, Y1: 1319}
	if got != want {
		t.Fatalf("Union() = %+v, want %+v", got, want)
	}
}

// fakeEngine returns a fixed word set for any image.
type fakeEngine struct {
	words []Word
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, image []byte) ([]Word, error) {
	f.calls++
	return f.words, f.err
}

func (f *fakeEngine) Close() error { return nil }

func TestExtractPage_FiltersLowConfidenceAndEmptyTokens(t *testing.T) {
	engine := &fakeEngine{words: []Word{
		{Text: "HDFC", Quad: QuadFromRect(10, 10, 60, 30), Confidence: 0.92},
		{Text: "noise", Quad: QuadFromRect(70, 10, 90, 30), Confidence: 0.3},  // at cutoff, dropped
		{Text: "faint", Quad: QuadFromRect(95, 10, 120, 30), Confidence: 0.1}, // below cutoff
		{Text: "", Quad: QuadFromRect(130, 10, 140, 30), Confidence: 0.99},    // empty after trim
		{Text: "BANK", Quad: QuadFromRect(65, 10, 110, 30), Confidence: 0.88},
	}}

	x := NewExtractor(engine, ExtractorConfig{})
	tokens, err := x.ExtractPage(context.Background(), []byte("png"), 3)
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}

	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens after filtering, got %d: %+v", len(tokens), tokens)
	}
	for _, tok := range tokens {
		if tok.Confidence <= DefaultMinConfidence {
			t.Errorf("token %q survived with confidence %v", tok.Text, tok.Confidence)
		}
		if tok.Page != 3 {
			t.Errorf("token %q has page %d, want 3", tok.Text, tok.Page)
		}
	}
}

func TestExtractPage_CustomThreshold(t *testing.T) {
	engine := &fakeEngine{words: []Word{
		{Text: "a", Quad: QuadFromRect(0, 0, 5, 5), Confidence: 0.45},
		{Text: "b", Quad: QuadFromRect(6, 0, 11, 5), Confidence: 0.55},
	}}

	x := NewExtractor(engine, ExtractorConfig{MinConfidence: 0.5})
	tokens, err := x.ExtractPage(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Text != "b" {
		t.Fatalf("expected only %q to survive threshold 0.5, got %+v", "b", tokens)
	}
}

func TestTesseractEngineReconfigure(t *testing.T) {
	e := NewTesseractEngine(TesseractConfig{Languages: []string{"eng"}, DPI: 200})

	e.Reconfigure([]string{"eng", "deu"}, 300)
	if len(e.languages) != 2 || e.languages[1] != "deu" || e.dpi != 300 {
		t.Fatalf("languages = %v, dpi = %d", e.languages, e.dpi)
	}

	// Unchanged settings must not tear down a live client.
	e.initialized = true
	e.Reconfigure([]string{"eng", "deu"}, 300)
	if !e.initialized {
		t.Error("no-op reconfigure reset engine state")
	}

	// A real change forces re-initialization on next use.
	e.Reconfigure([]string{"fra"}, 300)
	if e.initialized {
		t.Error("engine state not reset after language change")
	}

	// Empty languages fall back to the default.
	e.Reconfigure(nil, 300)
	if len(e.languages) != 1 || e.languages[0] != "eng" {
		t.Errorf("languages = %v, want [eng]", e.languages)
	}
}
