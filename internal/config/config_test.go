package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.DPI != 200 {
		t.Errorf("default dpi = %d, want 200", cfg.Pipeline.DPI)
	}
	if cfg.Pipeline.MinConfidence != 0.3 {
		t.Errorf("default min_confidence = %v, want 0.3", cfg.Pipeline.MinConfidence)
	}
	if cfg.Pipeline.LineTolerance != 10.0 {
		t.Errorf("default line_tolerance = %v, want 10", cfg.Pipeline.LineTolerance)
	}
	if cfg.Model.Provider != "gemini" {
		t.Errorf("default provider = %q, want gemini", cfg.Model.Provider)
	}
	if !cfg.OCR.Enabled {
		t.Error("ocr should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero dpi", mutate: func(c *Config) { c.Pipeline.DPI = 0 }, wantErr: true},
		{name: "negative confidence", mutate: func(c *Config) { c.Pipeline.MinConfidence = -0.1 }, wantErr: true},
		{name: "confidence above one", mutate: func(c *Config) { c.Pipeline.MinConfidence = 1.5 }, wantErr: true},
		{name: "confidence at one", mutate: func(c *Config) { c.Pipeline.MinConfidence = 1.0 }},
		{name: "zero tolerance", mutate: func(c *Config) { c.Pipeline.LineTolerance = 0 }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("DOCFUSION_TEST_KEY", "secret123")

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"plain-value", "plain-value"},
		{"${DOCFUSION_TEST_KEY}", "secret123"},
		{"prefix-${DOCFUSION_TEST_KEY}-suffix", "prefix-secret123-suffix"},
		{"${DOCFUSION_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.input); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToInvokerSettings(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("OPENAI_API_KEY", "ok")

	cfg := DefaultConfig()
	s := cfg.ToInvokerSettings()

	if s.Provider != "gemini" {
		t.Errorf("provider = %q", s.Provider)
	}
	if s.Gemini.APIKey != "gk" {
		t.Errorf("gemini api key = %q, want resolved env value", s.Gemini.APIKey)
	}
	if s.OpenAI.APIKey != "ok" {
		t.Errorf("openai api key = %q, want resolved env value", s.OpenAI.APIKey)
	}
	if s.Gemini.Timeout.Seconds() != 300 {
		t.Errorf("gemini timeout = %v", s.Gemini.Timeout)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid yaml: %v", err)
	}
	if cfg.Pipeline.DPI != 200 {
		t.Errorf("round-tripped dpi = %d", cfg.Pipeline.DPI)
	}
	if cfg.Model.Gemini.APIKey != "${GEMINI_API_KEY}" {
		t.Errorf("api key should stay unresolved on disk, got %q", cfg.Model.Gemini.APIKey)
	}
}
