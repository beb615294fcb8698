package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Word is a raw engine detection before filtering and page assignment.
type Word struct {
	Text       string
	Quad       Quad
	Confidence float64 // normalized to [0, 1]
}

// Engine recognizes words in a single page image. Implementations are not
// required to be safe for concurrent use; the Extractor serializes calls.
type Engine interface {
	// Name returns the engine identifier (e.g. "tesseract").
	Name() string

	// Recognize extracts words from an encoded image (PNG).
	Recognize(ctx context.Context, image []byte) ([]Word, error)

	// Close releases engine resources.
	Close() error
}

// TesseractConfig holds construction options for the Tesseract engine.
type TesseractConfig struct {
	Languages []string // trained data hints, default ["eng"]
	DPI       int      // effective DPI of incoming images; 0 leaves the engine default
	Logger    *slog.Logger
}

// TesseractEngine implements Engine using a single long-lived gosseract
// client. Loading the detection/recognition models is expensive, so the
// client is created lazily on first use and reused for the process lifetime.
// The underlying client is stateful and not reentrant; all calls are
// serialized on an internal mutex.
type TesseractEngine struct {
	languages []string
	dpi       int
	logger    *slog.Logger

	mu          sync.Mutex
	client      *gosseract.Client
	initialized bool
	initErr     error
}

// NewTesseractEngine creates a Tesseract-backed engine. The gosseract client
// is not created until the first Recognize call.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TesseractEngine{
		languages: cfg.Languages,
		dpi:       cfg.DPI,
		logger:    cfg.Logger,
	}
}

// Name returns the engine identifier.
func (e *TesseractEngine) Name() string { return "tesseract" }

// ensureClient lazily initializes the gosseract client. Must be called with
// e.mu held. Initialization is attempted once; a failed init is sticky so
// every caller sees the same error instead of re-triggering model loads.
func (e *TesseractEngine) ensureClient() (*gosseract.Client, error) {
	if e.initialized {
		return e.client, e.initErr
	}
	e.initialized = true

	e.logger.Info("initializing tesseract engine", "languages", e.languages)
	client := gosseract.NewClient()
	if err := client.SetLanguage(e.languages...); err != nil {
		client.Close()
		e.initErr = fmt.Errorf("failed to set tesseract languages: %w", err)
		return nil, e.initErr
	}
	if e.dpi > 0 {
		if err := client.SetVariable("user_defined_dpi", fmt.Sprint(e.dpi)); err != nil {
			client.Close()
			e.initErr = fmt.Errorf("failed to set tesseract dpi: %w", err)
			return nil, e.initErr
		}
	}
	e.client = client
	return e.client, nil
}

// Reconfigure applies new languages and DPI, dropping the current client so
// the next call re-initializes with them. Unchanged settings are a no-op.
// Safe under in-flight requests: client access is serialized on e.mu.
func (e *TesseractEngine) Reconfigure(languages []string, dpi int) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if slices.Equal(languages, e.languages) && dpi == e.dpi {
		return
	}

	e.logger.Info("reconfiguring tesseract engine", "languages", languages, "dpi", dpi)
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.languages = languages
	e.dpi = dpi
	e.initialized = false
	e.initErr = nil
}

// Ping reports whether the engine can initialize: tesseract installed and
// the configured language models present. Used by readiness checks.
func (e *TesseractEngine) Ping() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.ensureClient()
	return err
}

// Recognize runs word-level OCR over a PNG image. Calls are serialized
// against each other; concurrent invocations of one gosseract client corrupt
// its internal state.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) ([]Word, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	client, err := e.ensureClient()
	if err != nil {
		return nil, err
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text: strings.TrimSpace(b.Word),
			Quad: QuadFromRect(
				float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Max.X), float64(b.Box.Max.Y),
			),
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}

// Close releases the gosseract client if one was created.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Verify interface
var _ Engine = (*TesseractEngine)(nil)
