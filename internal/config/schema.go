package config

import "time"

// Config holds docfusion configuration.
// Loaded from config.yaml with DOCFUSION_-prefixed env overrides.
type Config struct {
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
	OCR      OCRCfg      `mapstructure:"ocr" yaml:"ocr"`
	Model    ModelCfg    `mapstructure:"model" yaml:"model"`
	Logging  LoggingCfg  `mapstructure:"logging" yaml:"logging"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// MaxUploadBytes caps multipart upload size.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// PipelineCfg tunes the extraction pipeline.
type PipelineCfg struct {
	// DPI used when rasterizing PDF pages.
	DPI int `mapstructure:"dpi" yaml:"dpi"`
	// MinConfidence drops OCR tokens at or below this value (0..1).
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	// LineTolerance is the vertical band, in pixels, within which tokens
	// are treated as one visual line.
	LineTolerance float64 `mapstructure:"line_tolerance" yaml:"line_tolerance"`
	// RenderWorkers bounds concurrent page rendering (0 = NumCPU).
	RenderWorkers int `mapstructure:"render_workers" yaml:"render_workers"`
}

// OCRCfg configures the OCR engine.
type OCRCfg struct {
	// Languages is a tesseract language list, e.g. "eng" or "eng+deu".
	Languages string `mapstructure:"languages" yaml:"languages"`
	// Enabled toggles the OCR grounding stage. When off, the model is
	// invoked without a coordinate reference.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ModelCfg selects and configures the model provider.
type ModelCfg struct {
	// Provider is "gemini", "openai" or "mock".
	Provider string      `mapstructure:"provider" yaml:"provider"`
	Gemini   ProviderCfg `mapstructure:"gemini" yaml:"gemini"`
	OpenAI   ProviderCfg `mapstructure:"openai" yaml:"openai"`
}

// ProviderCfg configures a single model provider.
type ProviderCfg struct {
	Model string `mapstructure:"model" yaml:"model"`
	// APIKey supports ${ENV_VAR} syntax.
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
}

// Timeout returns the provider timeout as a duration.
func (p ProviderCfg) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// LoggingCfg configures structured logging.
type LoggingCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:           "0.0.0.0",
			Port:           8000,
			MaxUploadBytes: 50 << 20,
		},
		Pipeline: PipelineCfg{
			DPI:           200,
			MinConfidence: 0.3,
			LineTolerance: 10.0,
		},
		OCR: OCRCfg{
			Languages: "eng",
			Enabled:   true,
		},
		Model: ModelCfg{
			Provider: "gemini",
			Gemini: ProviderCfg{
				Model:          "gemini-2.0-flash",
				APIKey:         "${GEMINI_API_KEY}",
				TimeoutSeconds: 300,
			},
			OpenAI: ProviderCfg{
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				TimeoutSeconds: 300,
			},
		},
		Logging: LoggingCfg{
			Level:  "info",
			Format: "text",
		},
	}
}
