package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/linnemanlabs/sentinel/internal/incident"
)

func (a *API) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title              string `json:"title"`
		Description        string `json:"description"`
		Region             string `json:"region"`
		State              string `json:"state"`
		LGA                string `json:"lga"`
		Location           string `json:"location"`
		Severity           string `json:"severity"`
		Category           string `json:"category"`
		SourceID           string `json:"sourceId"`
		ImpactedPopulation int    `json:"impactedPopulation"`
		ReportingMethod    string `json:"reportingMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.Title == "" || body.Region == "" {
		writeError(w, http.StatusBadRequest, "title and region are required")
		return
	}
	severity := incident.Severity(body.Severity)
	if severity.Rank() == 0 {
		writeError(w, http.StatusBadRequest, "invalid severity")
		return
	}

	// Ingested incidents always enter the review queue; only Accept makes
	// them visible.
	inc := &incident.Incident{
		Title:              body.Title,
		Description:        body.Description,
		Region:             body.Region,
		State:              body.State,
		LGA:                body.LGA,
		Location:           body.Location,
		Severity:           severity,
		Category:           body.Category,
		Status:             incident.StatusPending,
		Verification:       incident.VerificationUnverified,
		SourceID:           body.SourceID,
		ImpactedPopulation: body.ImpactedPopulation,
		ReportedAt:         time.Now().UTC(),
		ReportingMethod:    body.ReportingMethod,
	}

	if err := a.ingest.PutIncident(r.Context(), inc); err != nil {
		a.internalError(w, r, err, "failed to store incident")
		return
	}

	if a.notifier != nil {
		if _, err := a.notifier.EvaluateIncident(r.Context(), inc); err != nil {
			a.logger.Error(r.Context(), err, "incident rule evaluation incomplete", "incident_id", inc.ID)
		}
	}
	if a.hub != nil {
		a.hub.Emit("incident_created", inc)
	}

	writeJSON(w, http.StatusCreated, inc)
}

func (a *API) handleCreateIndicator(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string  `json:"name"`
		Region     string  `json:"region"`
		State      string  `json:"state"`
		Location   string  `json:"location"`
		Category   string  `json:"category"`
		Value      float64 `json:"value"`
		Trend      string  `json:"trend"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.Name == "" || body.Region == "" {
		writeError(w, http.StatusBadRequest, "name and region are required")
		return
	}
	if body.Value < 0 || body.Value > 100 {
		writeError(w, http.StatusBadRequest, "value must be 0..100")
		return
	}
	trend := incident.Trend(body.Trend)
	if trend == "" {
		trend = incident.TrendStable
	}
	switch trend {
	case incident.TrendIncreasing, incident.TrendStable, incident.TrendDecreasing:
	default:
		writeError(w, http.StatusBadRequest, "invalid trend")
		return
	}

	ind := &incident.Indicator{
		Name:       body.Name,
		Region:     body.Region,
		State:      body.State,
		Location:   body.Location,
		Category:   body.Category,
		Value:      body.Value,
		Trend:      trend,
		Confidence: body.Confidence,
		Timestamp:  time.Now().UTC(),
	}

	if err := a.ingest.PutIndicator(r.Context(), ind); err != nil {
		a.internalError(w, r, err, "failed to store indicator")
		return
	}

	writeJSON(w, http.StatusCreated, ind)
}
