// Package metrics keeps in-process counters for the extraction pipeline.
package metrics

import (
	"sync"
	"time"
)

// Observation captures the outcome of one processing request.
type Observation struct {
	Status       string // "success" or "error"
	ErrorClass   string // taxonomy class when Status is "error"
	DocumentType string
	Pages        int
	Tokens       int // OCR tokens surviving the confidence filter
	Fields       int // extracted field values
	Review       int // fields flagged for review
	Duration     time.Duration
}

// Recorder accumulates observations. Safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	startedAt   time.Time
	requests    int64
	successes   int64
	failures    map[string]int64
	byDocType   map[string]int64
	pages       int64
	tokens      int64
	fields      int64
	review      int64
	totalMillis int64
	maxMillis   int64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		startedAt: time.Now(),
		failures:  make(map[string]int64),
		byDocType: make(map[string]int64),
	}
}

// Observe records a completed request.
func (r *Recorder) Observe(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests++
	if o.Status == "success" {
		r.successes++
	} else {
		class := o.ErrorClass
		if class == "" {
			class = "unknown"
		}
		r.failures[class]++
	}
	if o.DocumentType != "" {
		r.byDocType[o.DocumentType]++
	}
	r.pages += int64(o.Pages)
	r.tokens += int64(o.Tokens)
	r.fields += int64(o.Fields)
	r.review += int64(o.Review)

	ms := o.Duration.Milliseconds()
	r.totalMillis += ms
	if ms > r.maxMillis {
		r.maxMillis = ms
	}
}

// Summary is a point-in-time snapshot of the counters.
type Summary struct {
	UptimeSeconds   int64            `json:"uptime_seconds"`
	Requests        int64            `json:"requests"`
	Successes       int64            `json:"successes"`
	Failures        map[string]int64 `json:"failures_by_class"`
	ByDocumentType  map[string]int64 `json:"requests_by_document_type"`
	PagesProcessed  int64            `json:"pages_processed"`
	TokensExtracted int64            `json:"tokens_extracted"`
	FieldsExtracted int64            `json:"fields_extracted"`
	ReviewFlagged   int64            `json:"review_flagged"`
	TotalLatencyMS  int64            `json:"total_latency_ms"`
	AvgLatencyMS    int64            `json:"avg_latency_ms"`
	MaxLatencyMS    int64            `json:"max_latency_ms"`
}

// Summarize returns a snapshot. The maps are copies; callers may not mutate
// recorder state through them.
func (r *Recorder) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		UptimeSeconds:   int64(time.Since(r.startedAt).Seconds()),
		Requests:        r.requests,
		Successes:       r.successes,
		Failures:        make(map[string]int64, len(r.failures)),
		ByDocumentType:  make(map[string]int64, len(r.byDocType)),
		PagesProcessed:  r.pages,
		TokensExtracted: r.tokens,
		FieldsExtracted: r.fields,
		ReviewFlagged:   r.review,
		TotalLatencyMS:  r.totalMillis,
		MaxLatencyMS:    r.maxMillis,
	}
	for k, v := range r.failures {
		s.Failures[k] = v
	}
	for k, v := range r.byDocType {
		s.ByDocumentType[k] = v
	}
	if r.requests > 0 {
		s.AvgLatencyMS = r.totalMillis / r.requests
	}
	return s
}
