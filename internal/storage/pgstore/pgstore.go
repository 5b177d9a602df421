// Package pgstore provides the PostgreSQL implementation of the service's
// store interfaces.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/audit"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/linnemanlabs/sentinel/internal/notify"
	"github.com/linnemanlabs/sentinel/internal/review"
	"github.com/linnemanlabs/sentinel/internal/risk"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sentinel/internal/storage/pgstore")

//go:embed schema.sql
var schema string

// severityRankSQL orders incidents the same way incident.Severity.Rank does.
const severityRankSQL = `CASE severity
	WHEN 'critical' THEN 4
	WHEN 'high' THEN 3
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 1
	ELSE 0 END`

// Store persists all service entities in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool stays owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

//  incidents

const incidentColumns = `id, title, description, region, state, lga, location, severity,
	category, status, verification_status, source_id, impacted_population, reported_at, reporting_method`

func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var inc incident.Incident
	err := row.Scan(
		&inc.ID, &inc.Title, &inc.Description, &inc.Region, &inc.State, &inc.LGA,
		&inc.Location, &inc.Severity, &inc.Category, &inc.Status, &inc.Verification,
		&inc.SourceID, &inc.ImpactedPopulation, &inc.ReportedAt, &inc.ReportingMethod,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// PutIncident inserts an incident. A zero id lets the database assign one,
// written back into inc.
func (s *Store) PutIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutIncident", "INSERT")
	defer span.End()

	query := `INSERT INTO incidents (title, description, region, state, lga, location, severity,
		category, status, verification_status, source_id, impacted_population, reported_at, reporting_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`
	err := s.pool.QueryRow(ctx, query,
		inc.Title, inc.Description, inc.Region, inc.State, inc.LGA, inc.Location,
		inc.Severity, inc.Category, inc.Status, inc.Verification, inc.SourceID,
		inc.ImpactedPopulation, inc.ReportedAt, inc.ReportingMethod,
	).Scan(&inc.ID)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// GetIncident retrieves an incident by id.
func (s *Store) GetIncident(ctx context.Context, id int64) (*incident.Incident, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetIncident", "SELECT")
	defer span.End()

	inc, err := scanIncident(s.pool.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	return inc, inc != nil, nil
}

// UpdateIncident overwrites the mutable fields of an incident.
func (s *Store) UpdateIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := s.startSpan(ctx, "pgstore.UpdateIncident", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE incidents SET status = $2, verification_status = $3 WHERE id = $1`,
		inc.ID, inc.Status, inc.Verification)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// ActiveIncidents returns visible incidents for the scope, severity
// descending, ties broken by highest id.
func (s *Store) ActiveIncidents(ctx context.Context, region, location string, limit int) ([]incident.Incident, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ActiveIncidents", "SELECT")
	defer span.End()

	// NULLIF turns a zero limit into LIMIT NULL, which Postgres reads as
	// no limit.
	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE region = $1 AND ($2 = '' OR location = $2)
		AND status = 'active' AND verification_status = 'verified'
		ORDER BY ` + severityRankSQL + ` DESC, id DESC
		LIMIT NULLIF($3, 0)`
	rows, err := s.pool.Query(ctx, query, region, location, limit)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	return collectIncidents(span, rows)
}

// MostSevereActiveIncident returns the single most severe visible incident
// for the scope.
func (s *Store) MostSevereActiveIncident(ctx context.Context, region, location string) (*incident.Incident, bool, error) {
	incs, err := s.ActiveIncidents(ctx, region, location, 1)
	if err != nil || len(incs) == 0 {
		return nil, false, err
	}
	return &incs[0], true, nil
}

// PendingIncidents lists incidents awaiting review, narrowed by the filter.
func (s *Store) PendingIncidents(ctx context.Context, f review.Filter) ([]incident.Incident, error) {
	ctx, span := s.startSpan(ctx, "pgstore.PendingIncidents", "SELECT")
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE status = 'pending' AND verification_status = 'unverified'
		AND ($1 = '' OR state = $1)
		AND ($2 = '' OR lga = $2)
		AND ($3 = '' OR reporting_method = $3)
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, f.State, f.LGA, f.ReportingMethod)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	return collectIncidents(span, rows)
}

func collectIncidents(span trace.Span, rows pgx.Rows) ([]incident.Incident, error) {
	var out []incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

// ReviewStats counts the review population in one pass.
func (s *Store) ReviewStats(ctx context.Context) (review.Stats, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ReviewStats", "SELECT")
	defer span.End()

	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'pending' AND verification_status = 'unverified'),
		COUNT(*) FILTER (WHERE verification_status = 'verified'),
		COUNT(*) FILTER (WHERE verification_status = 'rejected')
		FROM incidents`
	var st review.Stats
	if err := s.pool.QueryRow(ctx, query).Scan(&st.Pending, &st.Verified, &st.Rejected); err != nil {
		return review.Stats{}, spanErr(span, err)
	}
	st.Total = st.Pending + st.Verified + st.Rejected
	return st, nil
}

//  indicators

// PutIndicator inserts an indicator, writing the assigned id back.
func (s *Store) PutIndicator(ctx context.Context, ind *incident.Indicator) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutIndicator", "INSERT")
	defer span.End()

	query := `INSERT INTO risk_indicators (name, region, state, location, category, value, trend, confidence, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`
	err := s.pool.QueryRow(ctx, query,
		ind.Name, ind.Region, ind.State, ind.Location, ind.Category,
		ind.Value, ind.Trend, ind.Confidence, ind.Timestamp,
	).Scan(&ind.ID)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// Indicators returns indicators for the scope, ordered by value descending.
func (s *Store) Indicators(ctx context.Context, region, location string, limit int) ([]incident.Indicator, error) {
	ctx, span := s.startSpan(ctx, "pgstore.Indicators", "SELECT")
	defer span.End()

	query := `SELECT id, name, region, state, location, category, value, trend, confidence, ts
		FROM risk_indicators
		WHERE region = $1 AND ($2 = '' OR location = $2)
		ORDER BY value DESC, id
		LIMIT NULLIF($3, 0)`
	rows, err := s.pool.Query(ctx, query, region, location, limit)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	var out []incident.Indicator
	for rows.Next() {
		var ind incident.Indicator
		if err := rows.Scan(&ind.ID, &ind.Name, &ind.Region, &ind.State, &ind.Location,
			&ind.Category, &ind.Value, &ind.Trend, &ind.Confidence, &ind.Timestamp); err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

//  analyses

// PutAnalysis inserts an analysis.
func (s *Store) PutAnalysis(ctx context.Context, a *risk.Analysis) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutAnalysis", "INSERT")
	defer span.End()

	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal recommendations: %w", err))
	}
	patterns, err := json.Marshal(a.Patterns)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal patterns: %w", err))
	}

	query := `INSERT INTO risk_analyses (id, title, description, analysis, severity, likelihood,
		impact, recommendations, patterns, timeframe, region, location, source, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err = s.pool.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.Analysis, a.Severity, a.Likelihood,
		a.Impact, recs, patterns, a.Timeframe, a.Region, a.Location,
		a.Source, a.CreatedBy, a.CreatedAt)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by id.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*risk.Analysis, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetAnalysis", "SELECT")
	defer span.End()

	query := `SELECT id, title, description, analysis, severity, likelihood, impact,
		recommendations, patterns, timeframe, region, location, source, created_by, created_at
		FROM risk_analyses WHERE id = $1`
	var a risk.Analysis
	var recs, patterns []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.Description, &a.Analysis, &a.Severity, &a.Likelihood,
		&a.Impact, &recs, &patterns, &a.Timeframe, &a.Region, &a.Location,
		&a.Source, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if err := json.Unmarshal(recs, &a.Recommendations); err != nil {
		return nil, false, spanErr(span, fmt.Errorf("unmarshal recommendations: %w", err))
	}
	if err := json.Unmarshal(patterns, &a.Patterns); err != nil {
		return nil, false, spanErr(span, fmt.Errorf("unmarshal patterns: %w", err))
	}
	return &a, true, nil
}

//  alerts

// PutAlert inserts an alert.
func (s *Store) PutAlert(ctx context.Context, a *alerting.Alert) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutAlert", "INSERT")
	defer span.End()

	channels, err := json.Marshal(a.Channels)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal channels: %w", err))
	}

	query := `INSERT INTO alerts (id, analysis_id, title, description, severity, status,
		region, location, incident_id, escalation_level, channels, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = s.pool.Exec(ctx, query,
		a.ID, a.AnalysisID, a.Title, a.Description, a.Severity, a.Status,
		a.Region, a.Location, a.IncidentID, a.EscalationLevel, channels, a.CreatedAt)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (*alerting.Alert, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetAlert", "SELECT")
	defer span.End()

	query := `SELECT id, analysis_id, title, description, severity, status, region,
		location, incident_id, escalation_level, channels, created_at
		FROM alerts WHERE id = $1`
	var a alerting.Alert
	var channels []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.AnalysisID, &a.Title, &a.Description, &a.Severity, &a.Status,
		&a.Region, &a.Location, &a.IncidentID, &a.EscalationLevel, &channels, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if err := json.Unmarshal(channels, &a.Channels); err != nil {
		return nil, false, spanErr(span, fmt.Errorf("unmarshal channels: %w", err))
	}
	return &a, true, nil
}

//  notification rules

// ReplaceRules swaps the full rule set inside one transaction, renumbering
// positions by slice order.
func (s *Store) ReplaceRules(ctx context.Context, rules []notify.Rule) error {
	ctx, span := s.startSpan(ctx, "pgstore.ReplaceRules", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return spanErr(span, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM notification_rules`); err != nil {
		return spanErr(span, err)
	}
	for i, r := range rules {
		conditions, err := json.Marshal(r.Conditions)
		if err != nil {
			return spanErr(span, fmt.Errorf("marshal conditions: %w", err))
		}
		actions, err := json.Marshal(r.Actions)
		if err != nil {
			return spanErr(span, fmt.Errorf("marshal actions: %w", err))
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO notification_rules (name, enabled, event, conditions, actions, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			r.Name, r.Enabled, r.Event, conditions, actions, i)
		if err != nil {
			return spanErr(span, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return spanErr(span, err)
	}
	return nil
}

// Rules returns all rules in insertion order.
func (s *Store) Rules(ctx context.Context) ([]notify.Rule, error) {
	ctx, span := s.startSpan(ctx, "pgstore.Rules", "SELECT")
	defer span.End()

	return s.queryRules(ctx, span,
		`SELECT id, name, enabled, event, conditions, actions, position
		FROM notification_rules ORDER BY position`)
}

// EnabledRules returns enabled rules for the event in insertion order.
func (s *Store) EnabledRules(ctx context.Context, event notify.Event) ([]notify.Rule, error) {
	ctx, span := s.startSpan(ctx, "pgstore.EnabledRules", "SELECT")
	defer span.End()

	return s.queryRules(ctx, span,
		`SELECT id, name, enabled, event, conditions, actions, position
		FROM notification_rules WHERE enabled AND event = $1 ORDER BY position`, event)
}

func (s *Store) queryRules(ctx context.Context, span trace.Span, query string, args ...any) ([]notify.Rule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	var out []notify.Rule
	for rows.Next() {
		var r notify.Rule
		var conditions, actions []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.Event, &conditions, &actions, &r.Position); err != nil {
			return nil, spanErr(span, err)
		}
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return nil, spanErr(span, fmt.Errorf("unmarshal conditions: %w", err))
		}
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return nil, spanErr(span, fmt.Errorf("unmarshal actions: %w", err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

//  notifications

// PutNotification inserts a notification.
func (s *Store) PutNotification(ctx context.Context, n *notify.Notification) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutNotification", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, rule_id, title, message, type, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, n.RuleID, n.Title, n.Message, n.Type, n.Read, n.CreatedAt)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}

// NotificationsForUser lists a user's notifications in creation order.
func (s *Store) NotificationsForUser(ctx context.Context, userID int64) ([]notify.Notification, error) {
	ctx, span := s.startSpan(ctx, "pgstore.NotificationsForUser", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, rule_id, title, message, type, read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.RuleID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

//  users

// ListUsers returns the user directory.
func (s *Store) ListUsers(ctx context.Context) ([]notify.User, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListUsers", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, name, role FROM users ORDER BY id`)
	if err != nil {
		return nil, spanErr(span, err)
	}
	defer rows.Close()

	var out []notify.User
	for rows.Next() {
		var u notify.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role); err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, err)
	}
	return out, nil
}

//  audit

// WriteAudit appends an audit entry.
func (s *Store) WriteAudit(ctx context.Context, e *audit.Entry) error {
	ctx, span := s.startSpan(ctx, "pgstore.WriteAudit", "INSERT")
	defer span.End()

	details, err := json.Marshal(e.Details)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal details: %w", err))
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, resource, resource_id, details, ts)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.UserID, e.Action, e.Resource, e.ResourceID, details, e.Timestamp)
	if err != nil {
		return spanErr(span, err)
	}
	return nil
}
