// Package pipeline orchestrates the extraction flow: rasterize, OCR, prompt
// assembly, model invocation, JSON resolution, field decoding.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docfusion/docfusion/internal/fields"
	"github.com/docfusion/docfusion/internal/invoke"
	"github.com/docfusion/docfusion/internal/layout"
	"github.com/docfusion/docfusion/internal/metrics"
	"github.com/docfusion/docfusion/internal/ocr"
	"github.com/docfusion/docfusion/internal/prompt"
	"github.com/docfusion/docfusion/internal/raster"
	"github.com/docfusion/docfusion/internal/resolve"
	"github.com/docfusion/docfusion/internal/schema"
)

// successConfidence is reported on every successful extraction. Per-field
// confidence lives inside the data; this is the envelope-level figure.
const successConfidence = 0.95

// Rasterizer renders a PDF into page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([]raster.PageImage, error)
}

// TokenExtractor produces filtered OCR tokens for one page image.
type TokenExtractor interface {
	ExtractPage(ctx context.Context, image []byte, page int) ([]ocr.Token, error)
}

// Options tunes a Processor.
type Options struct {
	DPI           int
	LineTolerance float64
	// OCREnabled toggles the grounding stage. When off, the model sees the
	// document without a coordinate reference.
	OCREnabled bool
	Logger     *slog.Logger
}

// Processor runs the extraction pipeline. One Process call is sequential;
// concurrent calls are safe and serialize only inside the OCR engine.
type Processor struct {
	raster   Rasterizer
	ocr      TokenExtractor
	invoker  invoke.Invoker
	schemas  *schema.Registry
	recorder *metrics.Recorder
	opts     Options
	logger   *slog.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(r Rasterizer, x TokenExtractor, inv invoke.Invoker, reg *schema.Registry, rec *metrics.Recorder, opts Options) *Processor {
	if opts.DPI <= 0 {
		opts.DPI = raster.DefaultDPI
	}
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = layout.DefaultLineTolerance
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Processor{
		raster:   r,
		ocr:      x,
		invoker:  inv,
		schemas:  reg,
		recorder: rec,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Request is one extraction job.
type Request struct {
	PDF          []byte
	DocumentType schema.DocumentType
	// CustomSchema holds a caller-provided schema tree (JSON) when
	// DocumentType is "custom".
	CustomSchema []byte
	RequestID    string
}

// ErrorInfo carries the classified failure in the response envelope.
type ErrorInfo struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// Result is the uniform response envelope. Failures are reported inside it,
// not as transport errors.
type Result struct {
	Status           string          `json:"status"`
	Data             json.RawMessage `json:"data,omitempty"`
	SchemaUsed       string          `json:"schema_used,omitempty"`
	ConfidenceScore  float64         `json:"confidence_score,omitempty"`
	PagesProcessed   int             `json:"pages_processed"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	ModelUsed        string          `json:"model_used,omitempty"`
	TokenCount       int             `json:"token_count"`
	Error            *ErrorInfo      `json:"error,omitempty"`
}

// Process runs the full pipeline for one document. It never returns an error;
// every failure is classified into the envelope.
func (p *Processor) Process(ctx context.Context, req Request) *Result {
	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := p.logger.With("request_id", requestID, "document_type", string(req.DocumentType))

	doc, err := p.resolveSchema(req)
	if err != nil {
		return p.finish(log, start, req, nil, 0, 0, nil, fail("schema_validation_failed", err))
	}

	pages, err := p.raster.Rasterize(ctx, req.PDF, p.opts.DPI)
	if err != nil {
		return p.finish(log, start, req, doc, 0, 0, nil, classify(err))
	}
	log.Info("rasterized document", "pages", len(pages), "dpi", p.opts.DPI)

	if len(pages) == 0 {
		res := &Result{
			Status:          "success",
			Data:            nullDocument(doc),
			SchemaUsed:      doc.Name,
			ConfidenceScore: successConfidence,
		}
		return p.finish(log, start, req, doc, 0, 0, nil, res)
	}

	var (
		pageTokens []layout.PageTokens
		tokenCount int
	)
	if p.opts.OCREnabled {
		pageTokens = make([]layout.PageTokens, 0, len(pages))
		for _, pg := range pages {
			tokens, err := p.ocr.ExtractPage(ctx, pg.PNG, pg.Page)
			if err != nil {
				return p.finish(log, start, req, doc, len(pages), 0, nil,
					fail("ocr_failed", fmt.Errorf("page %d: %w", pg.Page, err)))
			}
			tokenCount += len(tokens)
			pageTokens = append(pageTokens, layout.PageTokens{
				PageNumber: pg.Page,
				Width:      pg.Width,
				Height:     pg.Height,
				Tokens:     tokens,
			})
		}
		log.Info("ocr complete", "tokens", tokenCount)
	}

	ref, transcript := layout.Format(pageTokens)
	var lines []layout.Line
	for _, pt := range pageTokens {
		lines = append(lines, layout.MergeLines(pt.Tokens, p.opts.LineTolerance)...)
	}

	promptText := prompt.Build(prompt.Input{
		DocumentType:  req.DocumentType,
		Schema:        doc,
		Reference:     ref,
		Transcript:    transcript,
		Lines:         lines,
		LineTolerance: p.opts.LineTolerance,
	})

	images := make([][]byte, 0, len(pages))
	for _, pg := range pages {
		images = append(images, pg.PNG)
	}
	resp, err := p.invoker.Invoke(ctx, &invoke.Request{
		Prompt:     promptText,
		PDF:        req.PDF,
		PageImages: images,
		RequestID:  requestID,
	})
	if err != nil {
		return p.finish(log, start, req, doc, len(pages), tokenCount, nil, classify(err))
	}

	data, err := resolve.Resolve(resp.Text, doc)
	if err != nil {
		res := classify(err)
		res.ModelUsed = resp.Model
		return p.finish(log, start, req, doc, len(pages), tokenCount, nil, res)
	}

	decoded, err := fields.Decode(data, doc)
	if err != nil {
		res := fail("schema_validation_failed", err)
		res.ModelUsed = resp.Model
		return p.finish(log, start, req, doc, len(pages), tokenCount, nil, res)
	}
	stats := decoded.Stats()
	log.Info("extraction complete", "fields", stats.FieldCount, "review", stats.ReviewCount, "rows", stats.RowCount)

	res := &Result{
		Status:          "success",
		Data:            data,
		SchemaUsed:      doc.Name,
		ConfidenceScore: successConfidence,
		ModelUsed:       resp.Model,
	}
	return p.finish(log, start, req, doc, len(pages), tokenCount, &stats, res)
}

func (p *Processor) resolveSchema(req Request) (*schema.Document, error) {
	if req.DocumentType == schema.DocTypeCustom && len(req.CustomSchema) > 0 {
		return schema.ParseCustom(req.CustomSchema)
	}
	return p.schemas.Resolve(req.DocumentType), nil
}

// finish stamps timing fields, records metrics, and logs the outcome. stats
// is nil on every path that never reached a decoded document.
func (p *Processor) finish(log *slog.Logger, start time.Time, req Request, doc *schema.Document, pages, tokens int, stats *fields.Stats, res *Result) *Result {
	res.PagesProcessed = pages
	res.TokenCount = tokens
	res.ProcessingTimeMS = time.Since(start).Milliseconds()
	if res.SchemaUsed == "" && doc != nil {
		res.SchemaUsed = doc.Name
	}

	obs := metrics.Observation{
		Status:       res.Status,
		DocumentType: string(req.DocumentType),
		Pages:        pages,
		Tokens:       tokens,
		Duration:     time.Since(start),
	}
	if stats != nil {
		obs.Fields = stats.FieldCount
		obs.Review = stats.ReviewCount
	}
	if res.Error != nil {
		obs.ErrorClass = res.Error.Class
		log.Warn("processing failed", "class", res.Error.Class, "error", res.Error.Message, "ms", res.ProcessingTimeMS)
	} else {
		log.Info("processing finished", "ms", res.ProcessingTimeMS, "pages", pages)
	}
	if p.recorder != nil {
		p.recorder.Observe(obs)
	}
	return res
}

func fail(class string, err error) *Result {
	return &Result{
		Status: "error",
		Error:  &ErrorInfo{Class: class, Message: err.Error()},
	}
}

// classify maps sentinel errors onto taxonomy classes.
func classify(err error) *Result {
	switch {
	case errors.Is(err, raster.ErrUnreadablePDF):
		return fail("unreadable_pdf", err)
	case errors.Is(err, invoke.ErrUnavailable):
		return fail("model_unavailable", err)
	case errors.Is(err, invoke.ErrEmptyResponse):
		return fail("model_empty_response", err)
	case errors.Is(err, invoke.ErrTransport):
		return fail("model_transport_error", err)
	case errors.Is(err, resolve.ErrNoJSONFound):
		return fail("no_json_found", err)
	case errors.Is(err, resolve.ErrSchemaValidation):
		return fail("schema_validation_failed", err)
	default:
		return fail("internal_error", err)
	}
}

// nullDocument builds the all-null rendition of a schema: every top-level
// section present and null.
func nullDocument(doc *schema.Document) json.RawMessage {
	sections := make(map[string]any, len(doc.Root.Order))
	for _, name := range doc.Root.Order {
		sections[name] = nil
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
