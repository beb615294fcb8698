package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docfusion/docfusion/internal/api"
	"github.com/docfusion/docfusion/internal/invoke"
	"github.com/docfusion/docfusion/internal/metrics"
	"github.com/docfusion/docfusion/internal/ocr"
	"github.com/docfusion/docfusion/internal/pipeline"
	"github.com/docfusion/docfusion/internal/raster"
	"github.com/docfusion/docfusion/internal/schema"
)

var (
	processType       string
	processSchemaFile string
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>",
	Short: "Extract structured data from a PDF locally (no server)",
	Long: `Run the extraction pipeline in-process against a local PDF.

This builds the full pipeline (rasterizer, OCR engine, model invoker) from
the configuration and prints the extraction envelope. Model credentials must
be configured; see 'docfusion config init'.

Examples:
  docfusion process statement.pdf
  docfusion process --type invoice bill.pdf
  docfusion process --schema-file shape.json scan.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		logger := newLogger(cfg)

		pdf, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		req := pipeline.Request{PDF: pdf, DocumentType: schema.DocumentType(processType)}
		if processSchemaFile != "" {
			raw, err := os.ReadFile(processSchemaFile)
			if err != nil {
				return fmt.Errorf("reading schema file: %w", err)
			}
			req.DocumentType = schema.DocTypeCustom
			req.CustomSchema = raw
		}

		invoker, err := invoke.New(cfg.ToInvokerSettings(), logger)
		if err != nil {
			return err
		}
		schemas, err := schema.NewRegistry()
		if err != nil {
			return err
		}
		var langs []string
		for _, l := range strings.Split(cfg.OCR.Languages, "+") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
			Languages: langs,
			DPI:       cfg.Pipeline.DPI,
			Logger:    logger,
		})
		defer engine.Close()

		processor := pipeline.NewProcessor(
			raster.New(logger, cfg.Pipeline.RenderWorkers),
			ocr.NewExtractor(engine, ocr.ExtractorConfig{MinConfidence: cfg.Pipeline.MinConfidence, Logger: logger}),
			invoker,
			schemas,
			metrics.NewRecorder(),
			pipeline.Options{
				DPI:           cfg.Pipeline.DPI,
				LineTolerance: cfg.Pipeline.LineTolerance,
				OCREnabled:    cfg.OCR.Enabled,
				Logger:        logger,
			},
		)

		return api.Output(processor.Process(cmd.Context(), req))
	},
}

func init() {
	processCmd.Flags().StringVarP(&processType, "type", "t", "auto", "document type (bank_statement, invoice, receipt, auto)")
	processCmd.Flags().StringVar(&processSchemaFile, "schema-file", "", "path to a custom schema tree (JSON)")

	rootCmd.AddCommand(processCmd)
}
