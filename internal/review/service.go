// Package review gates which machine-sourced incidents become publicly
// visible: pending incidents are accepted (active/verified) or discarded
// (rejected/rejected), singly or in batch, with best-effort audit logging.
package review

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/audit"
	"github.com/linnemanlabs/sentinel/internal/incident"
)

// ErrNotFound means the incident id does not exist.
var ErrNotFound = errors.New("incident not found")

// ErrNotPending means the incident is not awaiting review.
var ErrNotPending = errors.New("incident is not pending review")

// defaultDiscardReason is recorded when the reviewer gives none.
const defaultDiscardReason = "No reason provided"

// Filter narrows the pending-review listing. Empty fields are ignored; set
// fields combine with AND semantics.
type Filter struct {
	State           string
	LGA             string
	ReportingMethod string
}

// Stats summarizes the review population. Total is always the exact sum of
// the three buckets.
type Stats struct {
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// Store is the persistence the state machine needs.
type Store interface {
	GetIncident(ctx context.Context, id int64) (*incident.Incident, bool, error)
	UpdateIncident(ctx context.Context, inc *incident.Incident) error

	// PendingIncidents lists incidents with status pending and verification
	// unverified, narrowed by the filter.
	PendingIncidents(ctx context.Context, f Filter) ([]incident.Incident, error)
	ReviewStats(ctx context.Context) (Stats, error)
}

// Service runs the verification state machine.
type Service struct {
	store   Store
	audits  *audit.Logger
	logger  log.Logger
	metrics *Metrics
}

// NewService creates a review service. metrics may be nil.
func NewService(store Store, audits *audit.Logger, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, audits: audits, logger: logger, metrics: metrics}
}

// Accept verifies a pending incident, making it publicly visible. Accepting
// an already accepted incident is a no-op that writes no second audit entry.
func (s *Service) Accept(ctx context.Context, actor string, id int64) (*incident.Incident, error) {
	inc, changed, err := s.accept(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return inc, nil
	}

	// audit failure is logged inside Record and never fails the accept
	_ = s.audits.Record(ctx, audit.Entry{
		UserID:     actor,
		Action:     "incident_accepted",
		Resource:   "incident",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]string{"incidentTitle": inc.Title},
	})

	s.logger.Info(ctx, "incident accepted", "incident_id", id, "actor", actor)
	return inc, nil
}

// Discard rejects an incident. Discarding an already rejected incident is a
// no-op that writes no second audit entry.
func (s *Service) Discard(ctx context.Context, actor string, id int64, reason string) (*incident.Incident, error) {
	if reason == "" {
		reason = defaultDiscardReason
	}

	inc, changed, err := s.discard(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return inc, nil
	}

	_ = s.audits.Record(ctx, audit.Entry{
		UserID:     actor,
		Action:     "incident_discarded",
		Resource:   "incident",
		ResourceID: strconv.FormatInt(id, 10),
		Details: map[string]string{
			"incidentTitle": inc.Title,
			"reason":        reason,
		},
	})

	s.logger.Info(ctx, "incident discarded", "incident_id", id, "actor", actor, "reason", reason)
	return inc, nil
}

// BatchAccept accepts ids sequentially, best-effort: ids that are missing or
// not pending are skipped, prior items keep their new state on a later
// failure, and one audit entry covers the whole batch.
func (s *Service) BatchAccept(ctx context.Context, actor string, ids []int64) ([]incident.Incident, error) {
	accepted := make([]incident.Incident, 0, len(ids))
	for _, id := range ids {
		inc, _, err := s.accept(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotPending) {
				continue
			}
			return accepted, err
		}
		accepted = append(accepted, *inc)
	}

	_ = s.audits.Record(ctx, audit.Entry{
		UserID:   actor,
		Action:   "incidents_batch_accepted",
		Resource: "incident",
		Details: map[string]string{
			"count": strconv.Itoa(len(accepted)),
			"ids":   joinIDs(accepted),
		},
	})

	s.logger.Info(ctx, "batch accept complete", "requested", len(ids), "accepted", len(accepted), "actor", actor)
	return accepted, nil
}

// BatchDiscard discards ids sequentially with the same best-effort semantics
// as BatchAccept.
func (s *Service) BatchDiscard(ctx context.Context, actor string, ids []int64, reason string) ([]incident.Incident, error) {
	if reason == "" {
		reason = defaultDiscardReason
	}

	discarded := make([]incident.Incident, 0, len(ids))
	for _, id := range ids {
		inc, _, err := s.discard(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return discarded, err
		}
		discarded = append(discarded, *inc)
	}

	_ = s.audits.Record(ctx, audit.Entry{
		UserID:   actor,
		Action:   "incidents_batch_discarded",
		Resource: "incident",
		Details: map[string]string{
			"count":  strconv.Itoa(len(discarded)),
			"ids":    joinIDs(discarded),
			"reason": reason,
		},
	})

	s.logger.Info(ctx, "batch discard complete", "requested", len(ids), "discarded", len(discarded), "actor", actor)
	return discarded, nil
}

// accept applies the transition and reports whether state actually changed.
// The terminal state is idempotent.
func (s *Service) accept(ctx context.Context, id int64) (*incident.Incident, bool, error) {
	inc, ok, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrNotFound
	}
	if inc.Status == incident.StatusActive && inc.Verification == incident.VerificationVerified {
		return inc, false, nil
	}
	if inc.Status != incident.StatusPending {
		return nil, false, ErrNotPending
	}

	inc.Status = incident.StatusActive
	inc.Verification = incident.VerificationVerified
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		return nil, false, err
	}
	s.metrics.IncTransition("accepted")
	return inc, true, nil
}

func (s *Service) discard(ctx context.Context, id int64) (*incident.Incident, bool, error) {
	inc, ok, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrNotFound
	}
	if inc.Status == incident.StatusRejected && inc.Verification == incident.VerificationRejected {
		return inc, false, nil
	}

	inc.Status = incident.StatusRejected
	inc.Verification = incident.VerificationRejected
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		return nil, false, err
	}
	s.metrics.IncTransition("discarded")
	return inc, true, nil
}

// Pending lists incidents awaiting review.
func (s *Service) Pending(ctx context.Context, f Filter) ([]incident.Incident, error) {
	return s.store.PendingIncidents(ctx, f)
}

// Stats reports the review population counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.ReviewStats(ctx)
}

func joinIDs(incs []incident.Incident) string {
	parts := make([]string, len(incs))
	for i, inc := range incs {
		parts[i] = strconv.FormatInt(inc.ID, 10)
	}
	return strings.Join(parts, ",")
}
