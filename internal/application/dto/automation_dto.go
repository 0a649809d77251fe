package dto

import (
	"time"

	"github.com/jhoicas/loyverse-sri/internal/application/automation"
	"github.com/jhoicas/loyverse-sri/internal/application/billing"
)

// ImportRequest body de POST /api/receipts/import. Fechas RFC 3339; Until vacío es
// ahora y Since vacío son las últimas 24 horas.
type ImportRequest struct {
	Since string `json:"since,omitempty"`
	Until string `json:"until,omitempty"`
}

// IngestSummaryResponse resumen de una importación.
type IngestSummaryResponse struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Fetched    int       `json:"fetched"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Authorized int       `json:"authorized"`
	Rejected   int       `json:"rejected"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// NewIngestSummaryResponse nil si no hubo resumen.
func NewIngestSummaryResponse(s *billing.IngestSummary) *IngestSummaryResponse {
	if s == nil {
		return nil
	}
	return &IngestSummaryResponse{
		From:       s.From,
		To:         s.To,
		Fetched:    s.Fetched,
		Created:    s.Created,
		Skipped:    s.Skipped,
		Authorized: s.Authorized,
		Rejected:   s.Rejected,
		Failed:     s.Failed,
		Errors:     s.Errors,
	}
}

// AutomationStatusResponse estado del programador.
type AutomationStatusResponse struct {
	Active          bool                   `json:"active"`
	Running         bool                   `json:"running"`
	IntervalMinutes float64                `json:"interval_minutes"`
	LastRun         *time.Time             `json:"last_run,omitempty"`
	NextRun         *time.Time             `json:"next_run,omitempty"`
	LastSummary     *IngestSummaryResponse `json:"last_summary,omitempty"`
	LastError       string                 `json:"last_error,omitempty"`
	SkippedTicks    int                    `json:"skipped_ticks"`
	Watermark       *time.Time             `json:"watermark,omitempty"`
}

// NewAutomationStatusResponse arma la respuesta.
func NewAutomationStatusResponse(st automation.Status) AutomationStatusResponse {
	return AutomationStatusResponse{
		Active:          st.Active,
		Running:         st.Running,
		IntervalMinutes: st.Interval.Minutes(),
		LastRun:         st.LastRun,
		NextRun:         st.NextRun,
		LastSummary:     NewIngestSummaryResponse(st.LastSummary),
		LastError:       st.LastError,
		SkippedTicks:    st.Skipped,
		Watermark:       st.Watermark,
	}
}
