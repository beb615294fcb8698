package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/docfusion/docfusion/internal/api"
	"github.com/docfusion/docfusion/internal/svcctx"
)

// StatusResponse summarizes the running configuration.
type StatusResponse struct {
	Server   string         `json:"server"`
	Model    ModelStatus    `json:"model"`
	OCR      OCRStatus      `json:"ocr"`
	Pipeline PipelineStatus `json:"pipeline"`
	Schemas  []string       `json:"schemas"`
}

// ModelStatus shows the active model provider.
type ModelStatus struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// OCRStatus shows the OCR engine state.
type OCRStatus struct {
	Engine  string `json:"engine"`
	Enabled bool   `json:"enabled"`
}

// PipelineStatus echoes the active pipeline tuning.
type PipelineStatus struct {
	DPI           int     `json:"dpi"`
	MinConfidence float64 `json:"min_confidence"`
	LineTolerance float64 `json:"line_tolerance"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return true }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svcs := svcctx.ServicesFrom(r.Context())
	if svcs == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	resp := StatusResponse{
		Server: "ok",
		Model:  ModelStatus{Provider: svcs.InvokerName},
	}
	if svcs.Engine != nil {
		resp.OCR = OCRStatus{Engine: svcs.Engine.Name(), Enabled: true}
	}
	if svcs.ConfigMgr != nil {
		cfg := svcs.ConfigMgr.Get()
		resp.Pipeline = PipelineStatus{
			DPI:           cfg.Pipeline.DPI,
			MinConfidence: cfg.Pipeline.MinConfidence,
			LineTolerance: cfg.Pipeline.LineTolerance,
		}
		resp.OCR.Enabled = cfg.OCR.Enabled
		switch cfg.Model.Provider {
		case "openai":
			resp.Model.Model = cfg.Model.OpenAI.Model
		default:
			resp.Model.Model = cfg.Model.Gemini.Model
		}
	}
	if svcs.Schemas != nil {
		resp.Schemas = svcs.Schemas.Names()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
