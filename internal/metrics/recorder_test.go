package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecorderAccumulates(t *testing.T) {
	r := NewRecorder()
	r.Observe(Observation{Status: "success", DocumentType: "bank_statement", Pages: 3, Tokens: 120, Fields: 14, Review: 2, Duration: 200 * time.Millisecond})
	r.Observe(Observation{Status: "error", ErrorClass: "unreadable_pdf", Duration: 10 * time.Millisecond})
	r.Observe(Observation{Status: "error", Duration: 30 * time.Millisecond})

	s := r.Summarize()
	if s.Requests != 3 || s.Successes != 1 {
		t.Errorf("requests=%d successes=%d", s.Requests, s.Successes)
	}
	if s.Failures["unreadable_pdf"] != 1 {
		t.Errorf("failures = %v", s.Failures)
	}
	if s.Failures["unknown"] != 1 {
		t.Errorf("missing class should count as unknown: %v", s.Failures)
	}
	if s.ByDocumentType["bank_statement"] != 1 {
		t.Errorf("byDocType = %v", s.ByDocumentType)
	}
	if s.PagesProcessed != 3 || s.TokensExtracted != 120 || s.FieldsExtracted != 14 || s.ReviewFlagged != 2 {
		t.Errorf("counters: %+v", s)
	}
	if s.TotalLatencyMS != 240 || s.MaxLatencyMS != 200 || s.AvgLatencyMS != 80 {
		t.Errorf("latency: total=%d max=%d avg=%d", s.TotalLatencyMS, s.MaxLatencyMS, s.AvgLatencyMS)
	}
}

func TestRecorderSnapshotIsCopy(t *testing.T) {
	r := NewRecorder()
	r.Observe(Observation{Status: "error", ErrorClass: "ocr_failed"})
	s := r.Summarize()
	s.Failures["ocr_failed"] = 99

	if got := r.Summarize().Failures["ocr_failed"]; got != 1 {
		t.Errorf("mutating snapshot leaked into recorder: %d", got)
	}
}

func TestRecorderConcurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Observe(Observation{Status: "success", Pages: 1})
		}()
	}
	wg.Wait()
	if s := r.Summarize(); s.Requests != 50 || s.PagesProcessed != 50 {
		t.Errorf("requests=%d pages=%d", s.Requests, s.PagesProcessed)
	}
}
