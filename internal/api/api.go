// Package api exposes the service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/broadcast"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/linnemanlabs/sentinel/internal/notify"
	"github.com/linnemanlabs/sentinel/internal/review"
	"github.com/linnemanlabs/sentinel/internal/risk"
)

// ReviewService defines the verification operations the API needs.
type ReviewService interface {
	Pending(ctx context.Context, f review.Filter) ([]incident.Incident, error)
	Accept(ctx context.Context, actor string, id int64) (*incident.Incident, error)
	Discard(ctx context.Context, actor string, id int64, reason string) (*incident.Incident, error)
	BatchAccept(ctx context.Context, actor string, ids []int64) ([]incident.Incident, error)
	BatchDiscard(ctx context.Context, actor string, ids []int64, reason string) ([]incident.Incident, error)
	Stats(ctx context.Context) (review.Stats, error)
}

// RiskService generates risk analyses.
type RiskService interface {
	Generate(ctx context.Context, region, location string) (*risk.Analysis, error)
}

// AlertService generates alerts from analyses.
type AlertService interface {
	Generate(ctx context.Context, analysisID string) (*alerting.Alert, error)
}

// Notifier evaluates notification rules for creation events.
type Notifier interface {
	EvaluateIncident(ctx context.Context, inc *incident.Incident) (int, error)
	EvaluateAlert(ctx context.Context, al *alerting.Alert) (int, error)
}

// IngestStore persists ingested incidents and indicators.
type IngestStore interface {
	PutIncident(ctx context.Context, inc *incident.Incident) error
	PutIndicator(ctx context.Context, ind *incident.Indicator) error
}

// RuleStore manages the notification rule set.
type RuleStore interface {
	Rules(ctx context.Context) ([]notify.Rule, error)
	ReplaceRules(ctx context.Context, rules []notify.Rule) error
}

// NotificationReader serves per-user notification listings.
type NotificationReader interface {
	NotificationsForUser(ctx context.Context, userID int64) ([]notify.Notification, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	reviews  ReviewService
	analyzer RiskService
	alerts   AlertService
	notifier Notifier
	ingest   IngestStore
	rules    RuleStore
	inbox    NotificationReader
	hub      *broadcast.Hub
	auth     func(http.Handler) http.Handler
	admin    func(http.Handler) http.Handler
}

// Options bundles the API dependencies.
type Options struct {
	Logger   log.Logger
	Reviews  ReviewService
	Analyzer RiskService
	Alerts   AlertService
	Notifier Notifier
	Ingest   IngestStore
	Rules    RuleStore
	Inbox    NotificationReader
	Hub      *broadcast.Hub

	// Auth wraps every /api route. nil means no authentication.
	Auth func(http.Handler) http.Handler
	// Admin gates the rule-administration endpoints. nil means no extra gate.
	Admin func(http.Handler) http.Handler
}

// New creates a new API handler.
func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Reviews == nil || opts.Analyzer == nil || opts.Alerts == nil {
		panic(xerrors.New("review, risk and alert services are required"))
	}
	passthrough := func(next http.Handler) http.Handler { return next }
	if opts.Auth == nil {
		opts.Auth = passthrough
	}
	if opts.Admin == nil {
		opts.Admin = passthrough
	}
	return &API{
		logger:   opts.Logger,
		reviews:  opts.Reviews,
		analyzer: opts.Analyzer,
		alerts:   opts.Alerts,
		notifier: opts.Notifier,
		ingest:   opts.Ingest,
		rules:    opts.Rules,
		inbox:    opts.Inbox,
		hub:      opts.Hub,
		auth:     opts.Auth,
		admin:    opts.Admin,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(a.auth)
		r.Route("/incidents", func(r chi.Router) {
			r.Post("/", a.handleCreateIncident)
			r.Get("/pending-review", a.handlePendingReview)
			r.Get("/review-stats", a.handleReviewStats)
			r.Post("/batch-accept", a.handleBatchAccept)
			r.Post("/batch-discard", a.handleBatchDiscard)
			r.Post("/{id}/accept", a.handleAccept)
			r.Post("/{id}/discard", a.handleDiscard)
		})
		r.Post("/indicators", a.handleCreateIndicator)
		r.Get("/notifications", a.handleListNotifications)
		r.Post("/analysis/generate", a.handleGenerateAnalysis)
		r.Post("/analysis/generate-alert/{analysisId}", a.handleGenerateAlert)
		r.With(a.admin).Get("/notification-rules", a.handleGetRules)
		r.With(a.admin).Put("/notification-rules", a.handlePutRules)
		r.Get("/events", a.handleEvents)
	})
}

// actor identifies the caller for audit entries. Auth middleware guarantees
// a valid token but carries no identity, so callers self-identify.
func actor(r *http.Request) string {
	if v := r.Header.Get("X-Actor"); v != "" {
		return v
	}
	return "system"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	a.logger.Error(r.Context(), err, msg, kv...)
	writeError(w, http.StatusInternalServerError, "internal error")
}
