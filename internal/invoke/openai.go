package invoke

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI-compatible invoker. BaseURL allows
// pointing at any chat-completions-compatible gateway.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAIInvoker grounds the model on rendered page images, since the chat
// completions API has no document upload. Pages are sent inline as data URLs
// in the same user message as the prompt.
type OpenAIInvoker struct {
	cfg    OpenAIConfig
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIInvoker returns an invoker for an OpenAI-compatible endpoint.
func NewOpenAIInvoker(cfg OpenAIConfig, logger *slog.Logger) *OpenAIInvoker {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIInvoker{cfg: cfg, client: openai.NewClient(opts...), logger: logger}
}

func (o *OpenAIInvoker) Name() string { return "openai" }

// Invoke sends the prompt plus every rendered page as one multi-part user
// message and returns the completion text.
func (o *OpenAIInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if o.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not configured", ErrUnavailable)
	}
	if len(req.PageImages) == 0 {
		return nil, fmt.Errorf("%w: no rendered pages to attach", ErrEmptyResponse)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.PageImages)+1)
	parts = append(parts, openai.TextContentPart(req.Prompt))
	for _, img := range req.PageImages {
		url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.cfg.Model),
		Temperature: openai.Float(o.cfg.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{Text: text, Model: o.cfg.Model}, nil
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
