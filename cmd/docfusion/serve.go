package main

import (
	"github.com/spf13/cobra"

	"github.com/docfusion/docfusion/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction server",
	Long: `Start the docfusion HTTP server.

The server provides:
  - POST /ocr/process     - Extract structured data from an uploaded PDF
  - GET  /health          - Basic server health check
  - GET  /ready           - Readiness check (includes OCR engine)
  - GET  /status          - Active configuration summary
  - GET  /metrics/summary - In-process metrics

Examples:
  docfusion serve                  # Start on the configured port (default 8000)
  docfusion serve --port 3000      # Start on a custom port
  docfusion serve --host 127.0.0.1 # Bind to loopback only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(mgr.Get())
		mgr.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
