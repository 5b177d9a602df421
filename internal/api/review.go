package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sentinel/internal/review"
)

func (a *API) handlePendingReview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := review.Filter{
		State:           q.Get("state"),
		LGA:             q.Get("lga"),
		ReportingMethod: q.Get("reportingMethod"),
	}

	incidents, err := a.reviews.Pending(r.Context(), f)
	if err != nil {
		a.internalError(w, r, err, "failed to list pending incidents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (a *API) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.reviews.Stats(r.Context())
	if err != nil {
		a.internalError(w, r, err, "failed to compute review stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int64("sentinel.incident.id", id))

	inc, err := a.reviews.Accept(r.Context(), actor(r), id)
	if err != nil {
		a.reviewError(w, r, err, "accept", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "incident accepted",
		"incident": inc,
	})
}

func (a *API) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int64("sentinel.incident.id", id))

	inc, err := a.reviews.Discard(r.Context(), actor(r), id, body.Reason)
	if err != nil {
		a.reviewError(w, r, err, "discard", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "incident discarded",
		"incident": inc,
	})
}

func (a *API) handleBatchAccept(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncidentIDs []int64 `json:"incidentIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(body.IncidentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "incidentIds is required")
		return
	}

	incidents, err := a.reviews.BatchAccept(r.Context(), actor(r), body.IncidentIDs)
	if err != nil {
		a.internalError(w, r, err, "batch accept failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("%d of %d incidents accepted", len(incidents), len(body.IncidentIDs)),
		"incidents": incidents,
	})
}

func (a *API) handleBatchDiscard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IncidentIDs []int64 `json:"incidentIds"`
		Reason      string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(body.IncidentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "incidentIds is required")
		return
	}

	incidents, err := a.reviews.BatchDiscard(r.Context(), actor(r), body.IncidentIDs, body.Reason)
	if err != nil {
		a.internalError(w, r, err, "batch discard failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   fmt.Sprintf("%d of %d incidents discarded", len(incidents), len(body.IncidentIDs)),
		"incidents": incidents,
	})
}

func incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid incident id")
		return 0, false
	}
	return id, true
}

func (a *API) reviewError(w http.ResponseWriter, r *http.Request, err error, op string, id int64) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		writeError(w, http.StatusNotFound, "incident not found")
	case errors.Is(err, review.ErrNotPending):
		writeError(w, http.StatusConflict, "incident is not pending review")
	default:
		a.internalError(w, r, err, "review transition failed", "op", op, "id", id)
	}
}
