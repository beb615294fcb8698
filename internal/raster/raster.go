// Package raster converts PDF bytes into per-page raster images for OCR.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrUnreadablePDF indicates the input bytes are not a parseable PDF.
var ErrUnreadablePDF = errors.New("unreadable PDF")

// DefaultDPI balances OCR legibility against render latency.
const DefaultDPI = 200

// PageImage is one rendered page.
type PageImage struct {
	Page   int // 1-indexed
	Width  int
	Height int
	PNG    []byte
}

// Rasterizer renders PDF pages to PNG via pdftoppm (poppler-utils), with
// pdfcpu providing validation and page counting. It is stateless and safe
// for concurrent use.
type Rasterizer struct {
	logger  *slog.Logger
	workers int
}

// New creates a Rasterizer. workers bounds concurrent page renders; zero or
// negative means one worker per CPU.
func New(logger *slog.Logger, workers int) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{logger: logger, workers: workers}
}

func (r *Rasterizer) workerCount() int {
	if r.workers > 0 {
		return r.workers
	}
	return runtime.NumCPU()
}

// Rasterize renders every page of the PDF at the given DPI. The input bytes
// are never mutated. A zero-page PDF yields an empty slice, not an error;
// unparseable input fails with ErrUnreadablePDF.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]PageImage, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	pageCount, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	if pageCount == 0 {
		return []PageImage{}, nil
	}

	// pdftoppm reads from a path, so stage the bytes in a temp file.
	tmpDir, err := os.MkdirTemp("", "docfusion-raster-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage PDF: %w", err)
	}

	r.logger.Debug("rasterizing PDF", "pages", pageCount, "dpi", dpi)

	// Render pages concurrently; rendering is CPU-bound.
	maxWorkers := r.workerCount()

	type result struct {
		img PageImage
		err error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(page int) {
			defer func() { <-sem }() // release

			img, err := renderPage(ctx, pdfPath, tmpDir, page, dpi)
			results <- result{img: img, err: err}
		}(page)
	}

	images := make([]PageImage, pageCount)
	for i := 0; i < pageCount; i++ {
		res := <-results
		if res.err != nil {
			return nil, res.err
		}
		images[res.img.Page-1] = res.img
	}

	return images, nil
}

// renderPage renders a single page with pdftoppm and reads back dimensions
// from the PNG header.
func renderPage(ctx context.Context, pdfPath, outDir string, page, dpi int) (PageImage, error) {
	prefix := filepath.Join(outDir, fmt.Sprintf("page-%d", page))

	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		prefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return PageImage{}, fmt.Errorf("pdftoppm failed on page %d: %w (output: %s)", page, err, output)
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return PageImage{}, fmt.Errorf("pdftoppm did not produce page %d: %w", page, err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return PageImage{}, fmt.Errorf("failed to decode rendered page %d: %w", page, err)
	}

	return PageImage{
		Page:   page,
		Width:  cfg.Width,
		Height: cfg.Height,
		PNG:    data,
	}, nil
}
