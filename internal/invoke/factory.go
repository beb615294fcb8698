package invoke

import (
	"fmt"
	"log/slog"
	"strings"
)

// Settings selects and configures the model provider.
type Settings struct {
	Provider string
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
}

// New builds the configured invoker. Gemini is the default provider.
func New(s Settings, logger *slog.Logger) (Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", "gemini":
		return NewGeminiInvoker(s.Gemini, logger), nil
	case "openai":
		return NewOpenAIInvoker(s.OpenAI, logger), nil
	case MockName:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", s.Provider)
	}
}
