// Package memstore provides an in-memory implementation of every store
// interface the service consumes. Suitable for dev/testing; the default
// when no database-url is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/audit"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/linnemanlabs/sentinel/internal/notify"
	"github.com/linnemanlabs/sentinel/internal/review"
	"github.com/linnemanlabs/sentinel/internal/risk"
)

// Store holds all entities in memory behind one lock.
type Store struct {
	mu             sync.RWMutex
	incidents      map[int64]*incident.Incident
	nextIncidentID int64
	indicators     []incident.Indicator
	analyses       map[string]*risk.Analysis
	alerts         map[string]*alerting.Alert
	rules          []notify.Rule
	nextRuleID     int64
	notifications  []notify.Notification
	users          []notify.User
	audits         []audit.Entry
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[int64]*incident.Incident),
		analyses:  make(map[string]*risk.Analysis),
		alerts:    make(map[string]*alerting.Alert),
	}
}

//  incidents

// PutIncident inserts an incident, assigning an id when none is set.
func (s *Store) PutIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inc.ID == 0 {
		s.nextIncidentID++
		inc.ID = s.nextIncidentID
	} else if inc.ID > s.nextIncidentID {
		s.nextIncidentID = inc.ID
	}
	cp := *inc
	s.incidents[inc.ID] = &cp
	return nil
}

// GetIncident retrieves an incident by id. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id int64) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// UpdateIncident overwrites an existing incident.
func (s *Store) UpdateIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		return nil
	}
	cp := *inc
	s.incidents[inc.ID] = &cp
	return nil
}

// ActiveIncidents returns visible incidents for the scope, ordered by
// severity descending then id descending.
func (s *Store) ActiveIncidents(_ context.Context, region, location string, limit int) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Incident
	for _, inc := range s.incidents {
		if !inc.Visible() || inc.Region != region {
			continue
		}
		if location != "" && inc.Location != location {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MostSevereActiveIncident returns the top entry of ActiveIncidents, ties
// resolved to the highest id.
func (s *Store) MostSevereActiveIncident(ctx context.Context, region, location string) (*incident.Incident, bool, error) {
	incs, err := s.ActiveIncidents(ctx, region, location, 1)
	if err != nil || len(incs) == 0 {
		return nil, false, err
	}
	return &incs[0], true, nil
}

// PendingIncidents lists incidents awaiting review, narrowed by the filter.
func (s *Store) PendingIncidents(_ context.Context, f review.Filter) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Incident
	for _, inc := range s.incidents {
		if inc.Status != incident.StatusPending || inc.Verification != incident.VerificationUnverified {
			continue
		}
		if f.State != "" && inc.State != f.State {
			continue
		}
		if f.LGA != "" && inc.LGA != f.LGA {
			continue
		}
		if f.ReportingMethod != "" && inc.ReportingMethod != f.ReportingMethod {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReviewStats counts the review population.
func (s *Store) ReviewStats(_ context.Context) (review.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st review.Stats
	for _, inc := range s.incidents {
		switch {
		case inc.Status == incident.StatusPending && inc.Verification == incident.VerificationUnverified:
			st.Pending++
		case inc.Verification == incident.VerificationVerified:
			st.Verified++
		case inc.Verification == incident.VerificationRejected:
			st.Rejected++
		}
	}
	st.Total = st.Pending + st.Verified + st.Rejected
	return st, nil
}

//  indicators

// PutIndicator inserts an indicator.
func (s *Store) PutIndicator(_ context.Context, ind *incident.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ind.ID == 0 {
		ind.ID = int64(len(s.indicators) + 1)
	}
	s.indicators = append(s.indicators, *ind)
	return nil
}

// Indicators returns indicators for the scope, ordered by value descending.
func (s *Store) Indicators(_ context.Context, region, location string, limit int) ([]incident.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Indicator
	for _, ind := range s.indicators {
		if ind.Region != region {
			continue
		}
		if location != "" && ind.Location != location {
			continue
		}
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

//  analyses

// PutAnalysis stores a copy of the analysis.
func (s *Store) PutAnalysis(_ context.Context, a *risk.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.analyses[a.ID] = &cp
	return nil
}

// GetAnalysis retrieves an analysis by id. Returns a copy.
func (s *Store) GetAnalysis(_ context.Context, id string) (*risk.Analysis, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

//  alerts

// PutAlert stores a copy of the alert.
func (s *Store) PutAlert(_ context.Context, a *alerting.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

// GetAlert retrieves an alert by id. Returns a copy.
func (s *Store) GetAlert(_ context.Context, id string) (*alerting.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

//  notification rules

// ReplaceRules swaps the full rule set, renumbering positions by slice
// order. Ids are assigned to rules that lack one.
func (s *Store) ReplaceRules(_ context.Context, rules []notify.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = make([]notify.Rule, len(rules))
	for i, r := range rules {
		if r.ID == 0 {
			s.nextRuleID++
			r.ID = s.nextRuleID
		} else if r.ID > s.nextRuleID {
			s.nextRuleID = r.ID
		}
		r.Position = i
		s.rules[i] = r
	}
	return nil
}

// Rules returns all rules in insertion order.
func (s *Store) Rules(_ context.Context) ([]notify.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notify.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// EnabledRules returns enabled rules for the event in insertion order.
func (s *Store) EnabledRules(_ context.Context, event notify.Event) ([]notify.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notify.Rule
	for _, r := range s.rules {
		if r.Enabled && r.Event == event {
			out = append(out, r)
		}
	}
	return out, nil
}

//  notifications

// PutNotification appends a notification.
func (s *Store) PutNotification(_ context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

// NotificationsForUser lists a user's notifications in creation order.
func (s *Store) NotificationsForUser(_ context.Context, userID int64) ([]notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notify.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

//  users

// PutUser inserts a directory entry.
func (s *Store) PutUser(_ context.Context, u notify.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
	return nil
}

// ListUsers returns the directory in insertion order.
func (s *Store) ListUsers(_ context.Context) ([]notify.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notify.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

//  audit

// WriteAudit appends an audit entry.
func (s *Store) WriteAudit(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *e)
	return nil
}

// AuditEntries returns a copy of the audit trail, for tests.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.audits))
	copy(out, s.audits)
	return out
}
