package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

const uploadMIMEType = "application/pdf"

// GeminiConfig configures the Gemini invoker.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// GeminiInvoker grounds the model on the original PDF via the Files API.
// The client is built lazily on first use and reused afterwards.
type GeminiInvoker struct {
	cfg    GeminiConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiInvoker returns an invoker for the Gemini API. Construction never
// fails; missing credentials surface as ErrUnavailable at invoke time.
func NewGeminiInvoker(cfg GeminiConfig, logger *slog.Logger) *GeminiInvoker {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiInvoker{cfg: cfg, logger: logger}
}

func (g *GeminiInvoker) Name() string { return "gemini" }

func (g *GeminiInvoker) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %v", ErrUnavailable, err)
	}
	g.client = client
	return client, nil
}

// Invoke uploads the PDF, generates a JSON-mode completion against it, and
// always deletes both the local staging file and the remote upload before
// returning.
func (g *GeminiInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	tmp, unstage, err := stageUpload(req.PDF)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	defer unstage()

	uploaded, err := client.UploadFile(ctx, "", tmp, &genai.UploadFileOptions{MIMEType: uploadMIMEType})
	if err != nil {
		return nil, classifyGoogleErr("uploading document", err)
	}
	defer func() {
		// Deletion must not depend on the request context, which may
		// already be canceled.
		delCtx, delCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer delCancel()
		if delErr := client.DeleteFile(delCtx, uploaded.Name); delErr != nil {
			g.logger.Warn("deleting uploaded file", "file", uploaded.Name, "error", delErr)
		}
	}()

	if uploaded, err = g.awaitActive(ctx, client, uploaded); err != nil {
		return nil, err
	}

	model := client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(g.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.SafetySettings = permissiveSafety()

	resp, err := model.GenerateContent(ctx,
		genai.Text(req.Prompt),
		genai.FileData{MIMEType: uploadMIMEType, URI: uploaded.URI},
	)
	if err != nil {
		return nil, classifyGoogleErr("generating content", err)
	}

	text := collectText(resp)
	if strings.TrimSpace(text) == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return nil, fmt.Errorf("%w: prompt blocked (%v)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}
	return &Response{Text: text, Model: g.cfg.Model}, nil
}

// stageUpload writes the PDF to a temp file: the Files API client needs a
// seekable handle. The returned cleanup closes and removes the file and must
// run on every exit path.
func stageUpload(pdf []byte) (*os.File, func(), error) {
	tmp, err := os.CreateTemp("", "docfusion-upload-*.pdf")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if _, err := tmp.Write(pdf); err != nil {
		cleanup()
		return nil, nil, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		cleanup()
		return nil, nil, err
	}
	return tmp, cleanup, nil
}

// awaitActive polls the uploaded file until the service finishes ingesting
// it. Large PDFs can sit in PROCESSING for a few seconds.
func (g *GeminiInvoker) awaitActive(ctx context.Context, client *genai.Client, f *genai.File) (*genai.File, error) {
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for upload: %v", ErrTransport, ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
		var err error
		if f, err = client.GetFile(ctx, f.Name); err != nil {
			return nil, classifyGoogleErr("polling uploaded file", err)
		}
	}
	if f.State != genai.FileStateActive {
		return nil, fmt.Errorf("%w: uploaded file in state %v", ErrTransport, f.State)
	}
	return f, nil
}

// permissiveSafety disables category blocking: financial documents trip
// false positives on the default thresholds.
func permissiveSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockNone})
	}
	return settings
}

func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func classifyGoogleErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401, 403:
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
