package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docfusion/docfusion/internal/api"
	"github.com/docfusion/docfusion/internal/pipeline"
	"github.com/docfusion/docfusion/internal/schema"
	"github.com/docfusion/docfusion/internal/svcctx"
)

// DefaultMaxUploadBytes caps document uploads when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20 // 50MB

var pdfMagic = []byte("%PDF")

// ProcessEndpoint handles POST /ocr/process: multipart PDF upload in, the
// extraction envelope out. Pipeline failures still answer 200 with a
// status=error envelope; only bad requests get a 4xx.
type ProcessEndpoint struct {
	// MaxUploadBytes caps the multipart body (0 = DefaultMaxUploadBytes).
	MaxUploadBytes int64
}

var _ api.Endpoint = (*ProcessEndpoint)(nil)

func (e *ProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/ocr/process", e.handler
}

func (e *ProcessEndpoint) RequiresInit() bool { return true }

func (e *ProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	maxBytes := e.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", header.Filename))
		return
	}

	pdf, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		writeError(w, http.StatusBadRequest, "uploaded file is not a PDF")
		return
	}

	processor := svcctx.ProcessorFrom(r.Context())
	if processor == nil {
		writeError(w, http.StatusServiceUnavailable, "processor not initialized")
		return
	}

	req := pipeline.Request{
		PDF:          pdf,
		DocumentType: schema.DocumentType(r.FormValue("document_type")),
	}
	if raw := r.FormValue("custom_schema"); raw != "" {
		req.DocumentType = schema.DocTypeCustom
		req.CustomSchema = []byte(raw)
	}

	writeJSON(w, http.StatusOK, processor.Process(r.Context(), req))
}

func (e *ProcessEndpoint) Command(getServerURL func() string) *cobra.Command {
	var docType, schemaFile string

	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Extract structured data from a PDF via the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]string{"document_type": docType}
			if schemaFile != "" {
				raw, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("reading schema file: %w", err)
				}
				fields["custom_schema"] = string(raw)
			}

			client := api.NewClient(getServerURL())
			var resp pipeline.Result
			if err := client.PostFile(cmd.Context(), "/ocr/process", "file", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "auto", "document type (bank_statement, invoice, receipt, auto)")
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "path to a custom schema tree (JSON)")
	return cmd
}
