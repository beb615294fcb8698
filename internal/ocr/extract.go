package ocr

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMinConfidence is the token confidence cutoff. Tokens at or below
// this value are discarded. The value is a tunable heuristic, not a fixed
// law; it is exposed through configuration.
const DefaultMinConfidence = 0.3

// ExtractorConfig holds token filtering options.
type ExtractorConfig struct {
	// MinConfidence drops tokens with confidence <= this value (default 0.3).
	MinConfidence float64
	Logger        *slog.Logger
}

// Extractor turns page images into filtered tokens using an OCR engine.
// It is safe for concurrent use as long as the engine serializes its own
// calls (TesseractEngine does).
type Extractor struct {
	engine        Engine
	minConfidence float64
	logger        *slog.Logger
}

// NewExtractor creates an Extractor around the given engine.
func NewExtractor(engine Engine, cfg ExtractorConfig) *Extractor {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{
		engine:        engine,
		minConfidence: cfg.MinConfidence,
		logger:        cfg.Logger,
	}
}

// Engine returns the wrapped OCR engine.
func (x *Extractor) Engine() Engine { return x.engine }

// ExtractPage runs OCR on one page image and returns tokens that survive the
// confidence and empty-text filters. page is 1-indexed. Discarded tokens are
// never retained anywhere downstream.
func (x *Extractor) ExtractPage(ctx context.Context, image []byte, page int) ([]Token, error) {
	words, err := x.engine.Recognize(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("ocr failed on page %d: %w", page, err)
	}

	tokens := make([]Token, 0, len(words))
	dropped := 0
	for _, w := range words {
		if w.Confidence <= x.minConfidence || w.Text == "" {
			dropped++
			continue
		}
		tokens = append(tokens, Token{
			Text:       w.Text,
			Quad:       w.Quad,
			Confidence: w.Confidence,
			Page:       page,
		})
	}

	x.logger.Debug("extracted page tokens",
		"page", page, "kept", len(tokens), "dropped", dropped)

	return tokens, nil
}
