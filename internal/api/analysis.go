package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/risk"
)

func (a *API) handleGenerateAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Region   string `json:"region"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.Region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("sentinel.analysis.region", body.Region),
		attribute.String("sentinel.analysis.location", body.Location),
	)

	analysis, err := a.analyzer.Generate(r.Context(), body.Region, body.Location)
	if err != nil {
		if errors.Is(err, risk.ErrInsufficientData) {
			writeError(w, http.StatusBadRequest, "insufficient data for risk analysis")
			return
		}
		a.internalError(w, r, err, "analysis generation failed", "region", body.Region)
		return
	}

	span.SetAttributes(attribute.String("sentinel.analysis.id", analysis.ID))
	writeJSON(w, http.StatusCreated, analysis)
}

func (a *API) handleGenerateAlert(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisId")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sentinel.analysis.id", analysisID))

	al, err := a.alerts.Generate(r.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, alerting.ErrAnalysisNotFound):
			writeError(w, http.StatusNotFound, "analysis not found")
		case errors.Is(err, alerting.ErrNotNeeded):
			writeJSON(w, http.StatusOK, map[string]string{
				"message": "alert not needed for low severity analysis",
			})
		default:
			a.internalError(w, r, err, "alert generation failed", "analysis_id", analysisID)
		}
		return
	}

	span.SetAttributes(attribute.String("sentinel.alert.id", al.ID))

	// Rule evaluation and broadcast run before the response so a created
	// alert is never acknowledged ahead of its notifications.
	if a.notifier != nil {
		if _, err := a.notifier.EvaluateAlert(r.Context(), al); err != nil {
			a.logger.Error(r.Context(), err, "alert rule evaluation incomplete", "alert_id", al.ID)
		}
	}
	if a.hub != nil {
		a.hub.Emit("alert_created", al)
	}

	writeJSON(w, http.StatusCreated, al)
}
