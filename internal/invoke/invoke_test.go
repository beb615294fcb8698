package invoke

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

func TestFactorySelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "", wantName: "gemini"},
		{provider: "gemini", wantName: "gemini"},
		{provider: "Gemini", wantName: "gemini"},
		{provider: "openai", wantName: "openai"},
		{provider: "mock", wantName: "mock"},
		{provider: "anthropic", wantErr: true},
	}
	for _, tt := range tests {
		inv, err := New(Settings{Provider: tt.provider}, nil)
		if tt.wantErr {
			if err == nil {
				t.Errorf("provider %q: expected error, got %s", tt.provider, inv.Name())
			}
			continue
		}
		if err != nil {
			t.Fatalf("provider %q: %v", tt.provider, err)
		}
		if inv.Name() != tt.wantName {
			t.Errorf("provider %q: got invoker %q, want %q", tt.provider, inv.Name(), tt.wantName)
		}
	}
}

func TestGeminiMissingKeyIsUnavailable(t *testing.T) {
	g := NewGeminiInvoker(GeminiConfig{}, nil)
	_, err := g.Invoke(context.Background(), &Request{Prompt: "p", PDF: []byte("%PDF")})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenAIMissingKeyIsUnavailable(t *testing.T) {
	o := NewOpenAIInvoker(OpenAIConfig{}, nil)
	_, err := o.Invoke(context.Background(), &Request{Prompt: "p", PageImages: [][]byte{{1}}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenAINoPagesIsEmptyResponse(t *testing.T) {
	o := NewOpenAIInvoker(OpenAIConfig{APIKey: "k"}, nil)
	_, err := o.Invoke(context.Background(), &Request{Prompt: "p"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClassifyGoogleErr(t *testing.T) {
	auth := &googleapi.Error{Code: 403, Message: "forbidden"}
	if err := classifyGoogleErr("op", auth); !errors.Is(err, ErrUnavailable) {
		t.Errorf("403 should classify as unavailable, got %v", err)
	}
	server := &googleapi.Error{Code: 503, Message: "overloaded"}
	if err := classifyGoogleErr("op", server); !errors.Is(err, ErrTransport) {
		t.Errorf("503 should classify as transport, got %v", err)
	}
	if err := classifyGoogleErr("op", errors.New("conn reset")); !errors.Is(err, ErrTransport) {
		t.Errorf("plain error should classify as transport, got %v", err)
	}
}

func TestClassifyOpenAIErr(t *testing.T) {
	auth := &openai.Error{StatusCode: http.StatusUnauthorized}
	if err := classifyOpenAIErr(auth); !errors.Is(err, ErrUnavailable) {
		t.Errorf("401 should classify as unavailable, got %v", err)
	}
	limited := &openai.Error{StatusCode: http.StatusTooManyRequests}
	if err := classifyOpenAIErr(limited); !errors.Is(err, ErrTransport) {
		t.Errorf("429 should classify as transport, got %v", err)
	}
}

func TestCollectText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}}},
		},
	}
	if got := collectText(resp); got != `{"a":1}` {
		t.Errorf("collectText = %q", got)
	}
	if got := collectText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response should collect empty text, got %q", got)
	}
}

func TestMockScripting(t *testing.T) {
	m := NewMock()
	m.Latency = 0
	m.Err = ErrTransport
	m.FailAfter = 1

	resp, err := m.Invoke(context.Background(), &Request{Prompt: "first"})
	if err != nil {
		t.Fatalf("first call should succeed: %v", err)
	}
	if resp.Text != m.ResponseText {
		t.Errorf("got %q", resp.Text)
	}
	if _, err := m.Invoke(context.Background(), &Request{Prompt: "second"}); !errors.Is(err, ErrTransport) {
		t.Errorf("second call should fail, got %v", err)
	}
	if m.LastPrompt != "second" {
		t.Errorf("LastPrompt = %q", m.LastPrompt)
	}
	if m.RequestCount() != 2 {
		t.Errorf("RequestCount = %d", m.RequestCount())
	}
}

func TestMockHonorsContext(t *testing.T) {
	m := NewMock()
	m.Latency = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Invoke(ctx, &Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStageUploadCleanup(t *testing.T) {
	content := []byte("%PDF-1.4 staged bytes")
	tmp, cleanup, err := stageUpload(content)
	if err != nil {
		t.Fatal(err)
	}
	path := tmp.Name()

	staged, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading staged file: %v", err)
	}
	if !bytes.Equal(staged, content) {
		t.Errorf("staged content = %q", staged)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("staged upload %s survived cleanup", path)
	}
}

// A failed invoke must not accumulate staged uploads in the temp dir.
func TestGeminiInvokeLeavesNoStagedUploads(t *testing.T) {
	g := NewGeminiInvoker(GeminiConfig{APIKey: "test-key"}, nil)

	before := stagedUploads(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Invoke(ctx, &Request{Prompt: "p", PDF: []byte("%PDF-1.4")}); err == nil {
		t.Fatal("expected failure under a canceled context")
	}

	for path := range stagedUploads(t) {
		if !before[path] {
			t.Errorf("staged upload %s left behind", path)
		}
	}
}

func stagedUploads(t *testing.T) map[string]bool {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "docfusion-upload-*.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	set := make(map[string]bool, len(matches))
	for _, m := range matches {
		set[m] = true
	}
	return set
}
