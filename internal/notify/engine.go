package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/oklog/ulid/v2"
)

// defaultNotificationType is used when a rule does not set one.
const defaultNotificationType = "warning"

// Store is the persistence the engine needs.
type Store interface {
	// EnabledRules returns enabled rules for the event in insertion order.
	EnabledRules(ctx context.Context, event Event) ([]Rule, error)
	PutNotification(ctx context.Context, n *Notification) error
}

// Directory resolves notification recipients.
type Directory interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Pusher is the fire-and-forget push sink: no delivery guarantee, no retry.
type Pusher interface {
	PushToAll(ctx context.Context, title, body, link string) error
}

// Engine evaluates notification rules for incident and alert creation
// events. Evaluations share no mutable state, so concurrent events each
// produce their own independent notification set.
type Engine struct {
	store   Store
	users   Directory
	pusher  Pusher
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewEngine creates a rule engine. pusher and metrics may be nil.
func NewEngine(store Store, users Directory, pusher Pusher, logger log.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		store:   store,
		users:   users,
		pusher:  pusher,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// EvaluateIncident runs all incident_created rules against a new incident.
func (e *Engine) EvaluateIncident(ctx context.Context, inc *incident.Incident) (int, error) {
	return e.evaluate(ctx, IncidentEvent(inc))
}

// EvaluateAlert runs all alert_created rules against a new alert.
func (e *Engine) EvaluateAlert(ctx context.Context, al *alerting.Alert) (int, error) {
	return e.evaluate(ctx, AlertEvent(al))
}

// evaluate matches every enabled rule independently: one rule's outcome,
// including its persistence errors, never affects another rule's
// evaluation. It returns the number of notifications created.
func (e *Engine) evaluate(ctx context.Context, ev *EventRecord) (int, error) {
	rules, err := e.store.EnabledRules(ctx, ev.Event)
	if err != nil {
		return 0, fmt.Errorf("load rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	var directory []User
	var directoryErr error
	directoryLoaded := false
	loadDirectory := func() []User {
		if !directoryLoaded {
			directory, directoryErr = e.users.ListUsers(ctx)
			directoryLoaded = true
		}
		return directory
	}

	created := 0
	var errs []error

	for _, rule := range rules {
		e.metrics.IncRuleEvaluated(ev.Event)
		if !rule.Conditions.Match(ev) {
			continue
		}
		e.metrics.IncRuleMatched(ev.Event)

		recipients := resolveRecipients(rule.Actions, loadDirectory())
		if directoryErr != nil {
			errs = append(errs, fmt.Errorf("rule %q: list users: %w", rule.Name, directoryErr))
			break
		}
		if len(recipients) == 0 {
			// a matching rule with no resolvable recipients is not an error
			continue
		}

		title := Render(rule.Actions.TitleTemplate, ev)
		if title == "" {
			title = ev.Fields["title"]
		}
		message := Render(rule.Actions.MessageTemplate, ev)
		ntype := rule.Actions.NotificationType
		if ntype == "" {
			ntype = defaultNotificationType
		}

		for _, user := range recipients {
			n := &Notification{
				ID:        ulid.Make().String(),
				UserID:    user.ID,
				RuleID:    rule.ID,
				Title:     title,
				Message:   message,
				Type:      ntype,
				CreatedAt: e.now().UTC(),
			}
			if err := e.store.PutNotification(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("rule %q: notify user %d: %w", rule.Name, user.ID, err))
				continue
			}
			created++
		}

		if e.pusher != nil {
			if err := e.pusher.PushToAll(ctx, title, message, ""); err != nil {
				// push is fire-and-forget; delivery failure never fails the event
				e.logger.Warn(ctx, "push fan-out failed", "rule", rule.Name, "error", err)
				e.metrics.IncPushError()
			}
		}
	}

	e.metrics.AddNotificationsCreated(ev.Event, created)
	e.logger.Info(ctx, "rules evaluated",
		"event", ev.Event,
		"rules", len(rules),
		"notifications", created,
	)
	return created, errors.Join(errs...)
}

// resolveRecipients unions role matches and explicit user ids, deduplicated
// by user id, preserving directory order.
func resolveRecipients(a Actions, directory []User) []User {
	if len(a.NotifyRoles) == 0 && len(a.NotifyUserIDs) == 0 {
		return nil
	}

	wantID := make(map[int64]bool, len(a.NotifyUserIDs))
	for _, id := range a.NotifyUserIDs {
		wantID[id] = true
	}
	wantRole := make(map[string]bool, len(a.NotifyRoles))
	for _, role := range a.NotifyRoles {
		wantRole[role] = true
	}

	var out []User
	seen := make(map[int64]bool)
	for _, u := range directory {
		if seen[u.ID] {
			continue
		}
		if wantRole[u.Role] || wantID[u.ID] {
			seen[u.ID] = true
			out = append(out, u)
		}
	}
	return out
}
