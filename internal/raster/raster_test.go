package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRasterize_RejectsGarbage(t *testing.T) {
	r := New(nil, 0)

	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("not a pdf"),
		[]byte("%PDF-1.7 truncated"),
	}
	for _, input := range cases {
		_, err := r.Rasterize(context.Background(), input, 0)
		if !errors.Is(err, ErrUnreadablePDF) {
			t.Errorf("Rasterize(%q) error = %v, want ErrUnreadablePDF", input, err)
		}
	}
}

func TestRasterize_InputNotMutated(t *testing.T) {
	r := New(nil, 0)

	input := []byte("garbage bytes that fail parsing")
	snapshot := append([]byte(nil), input...)

	_, _ = r.Rasterize(context.Background(), input, 200)

	if string(input) != string(snapshot) {
		t.Fatal("Rasterize mutated its input")
	}
}

func TestWorkerCount(t *testing.T) {
	if got := New(nil, 3).workerCount(); got != 3 {
		t.Errorf("workerCount = %d, want 3", got)
	}
	if got := New(nil, 0).workerCount(); got != runtime.NumCPU() {
		t.Errorf("workerCount = %d, want NumCPU (%d)", got, runtime.NumCPU())
	}
}

// A render failure must not leave the staging dir behind.
func TestRasterize_CleansStagingOnRenderFailure(t *testing.T) {
	r := New(nil, 1)

	before := stagingDirs(t)

	// Canceling up front makes the render stage fail deterministically
	// without depending on pdftoppm being installed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Rasterize(ctx, onePagePDF(t), 72); err == nil {
		t.Fatal("expected render failure under a canceled context")
	}

	for dir := range stagingDirs(t) {
		if !before[dir] {
			t.Errorf("staging dir %s left behind", dir)
		}
	}
}

func stagingDirs(t *testing.T) map[string]bool {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "docfusion-raster-*"))
	if err != nil {
		t.Fatal(err)
	}
	set := make(map[string]bool, len(matches))
	for _, m := range matches {
		set[m] = true
	}
	return set
}

// onePagePDF assembles a minimal single-page PDF with a correct xref table.
func onePagePDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
	}
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		buf.WriteString(obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}
