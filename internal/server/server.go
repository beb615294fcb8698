// Package server wires the extraction pipeline behind an HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docfusion/docfusion/internal/api"
	"github.com/docfusion/docfusion/internal/config"
	"github.com/docfusion/docfusion/internal/invoke"
	"github.com/docfusion/docfusion/internal/metrics"
	"github.com/docfusion/docfusion/internal/ocr"
	"github.com/docfusion/docfusion/internal/pipeline"
	"github.com/docfusion/docfusion/internal/raster"
	"github.com/docfusion/docfusion/internal/schema"
	"github.com/docfusion/docfusion/internal/server/endpoints"
	"github.com/docfusion/docfusion/internal/svcctx"
)

// Server is the docfusion HTTP server. It owns the OCR engine lifecycle:
// the engine initializes lazily on first use and is closed on shutdown.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	engine     *ocr.TesseractEngine
	recorder   *metrics.Recorder
	schemas    *schema.Registry
	logger     *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	services *svcctx.Services
	running  bool
}

// Config holds server construction options.
type Config struct {
	// Host is the address to bind to (default from config manager).
	Host string
	// Port is the port to listen on (0 = config manager value).
	Port int
	// ConfigManager provides configuration with hot-reload support.
	ConfigManager *config.Manager
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == 0 {
		cfg.Port = appCfg.Server.Port
	}

	schemas, err := schema.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("compiling schemas: %w", err)
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		engine: ocr.NewTesseractEngine(ocr.TesseractConfig{
			Languages: splitLanguages(appCfg.OCR.Languages),
			DPI:       appCfg.Pipeline.DPI,
			Logger:    cfg.Logger,
		}),
		recorder: metrics.NewRecorder(),
		schemas:  schemas,
		logger:   cfg.Logger,
	}

	if err := s.rebuildServices(appCfg); err != nil {
		return nil, err
	}
	// Rebuild the pipeline when configuration changes on disk.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if err := s.rebuildServices(c); err != nil {
			s.logger.Error("config reload failed", "error", err)
			return
		}
		s.logger.Info("pipeline reloaded from config")
	})

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{MaxUploadBytes: appCfg.Server.MaxUploadBytes}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute, // processing responses are slow
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// rebuildServices constructs the invoker and processor from the given
// configuration and swaps them in.
func (s *Server) rebuildServices(c *config.Config) error {
	invoker, err := invoke.New(c.ToInvokerSettings(), s.logger)
	if err != nil {
		return fmt.Errorf("building invoker: %w", err)
	}

	s.engine.Reconfigure(splitLanguages(c.OCR.Languages), c.Pipeline.DPI)

	extractor := ocr.NewExtractor(s.engine, ocr.ExtractorConfig{
		MinConfidence: c.Pipeline.MinConfidence,
		Logger:        s.logger,
	})
	processor := pipeline.NewProcessor(
		raster.New(s.logger, c.Pipeline.RenderWorkers),
		extractor,
		invoker,
		s.schemas,
		s.recorder,
		pipeline.Options{
			DPI:           c.Pipeline.DPI,
			LineTolerance: c.Pipeline.LineTolerance,
			OCREnabled:    c.OCR.Enabled,
			Logger:        s.logger,
		},
	)

	svcs := &svcctx.Services{
		Processor:   processor,
		Schemas:     s.schemas,
		Metrics:     s.recorder,
		ConfigMgr:   s.configMgr,
		InvokerName: invoker.Name(),
		Logger:      s.logger,
	}
	if c.OCR.Enabled {
		svcs.Engine = s.engine
	}

	s.mu.Lock()
	s.services = svcs
	s.mu.Unlock()
	return nil
}

// Start runs the server until the context is cancelled or the listener
// fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown drains in-flight requests and releases the OCR engine.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := s.engine.Close(); err != nil {
		s.logger.Error("OCR engine close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		svcs := s.services
		s.mu.RUnlock()
		ctx := r.Context()
		if svcs != nil {
			ctx = svcctx.WithServices(ctx, svcs)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the pipeline is wired before a
// request reaches a processing endpoint.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.services != nil && s.services.Processor != nil
		s.mu.RUnlock()
		if !ready {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// splitLanguages splits a tesseract "eng+deu" language list.
func splitLanguages(langs string) []string {
	var out []string
	for _, l := range strings.Split(langs, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
