// Package notify matches configured notification rules against incident and
// alert creation events, resolves recipients, renders templates, and emits
// notification records plus fan-out calls.
package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/incident"
)

// Event names a trigger a rule can subscribe to.
type Event string

const (
	EventIncidentCreated Event = "incident_created"
	EventAlertCreated    Event = "alert_created"
)

// Rule is administrator-managed configuration. Rules are independent: every
// enabled rule whose conditions match fires, and insertion order (Position)
// only fixes output ordering.
type Rule struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	Event      Event      `json:"event"`
	Conditions Conditions `json:"conditions"`
	Actions    Actions    `json:"actions"`
	Position   int        `json:"position"`
}

// Conditions are AND-combined match criteria. Empty fields are unset and
// match everything; set membership is case-sensitive exact match.
type Conditions struct {
	SeverityIn         []string `json:"severity_in,omitempty"`
	RegionIn           []string `json:"region_in,omitempty"`
	CategoryIn         []string `json:"category_in,omitempty"`
	SourceIn           []string `json:"source_in,omitempty"`
	EscalationLevelGte *int     `json:"escalation_level_gte,omitempty"`
}

// Actions describe what a matching rule does.
type Actions struct {
	NotifyRoles      []string `json:"notify_roles,omitempty"`
	NotifyUserIDs    []int64  `json:"notify_user_ids,omitempty"`
	NotificationType string   `json:"notification_type,omitempty"`
	TitleTemplate    string   `json:"title_template,omitempty"`
	MessageTemplate  string   `json:"message_template,omitempty"`
}

// Notification is one delivered message for one user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	RuleID    int64     `json:"rule_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the slice of the user directory the engine needs for recipient
// resolution.
type User struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// EventRecord is the generic event shape conditions and templates evaluate
// against. EscalationLevel is negative when the trigger carries none, so
// escalation conditions can never match incident events.
type EventRecord struct {
	Event           Event
	Severity        string
	Region          string
	Category        string
	Source          string
	EscalationLevel int
	Fields          map[string]string
}

// IncidentEvent builds the event record for a freshly created incident.
func IncidentEvent(inc *incident.Incident) *EventRecord {
	return &EventRecord{
		Event:           EventIncidentCreated,
		Severity:        string(inc.Severity),
		Region:          inc.Region,
		Category:        inc.Category,
		Source:          inc.SourceID,
		EscalationLevel: -1,
		Fields: map[string]string{
			"title":               inc.Title,
			"incidentTitle":       inc.Title,
			"incidentDescription": inc.Description,
			"region":              inc.Region,
			"state":               inc.State,
			"lga":                 inc.LGA,
			"location":            inc.Location,
			"severity":            string(inc.Severity),
			"category":            inc.Category,
		},
	}
}

// AlertEvent builds the event record for a freshly created alert.
func AlertEvent(al *alerting.Alert) *EventRecord {
	return &EventRecord{
		Event:           EventAlertCreated,
		Severity:        string(al.Severity),
		Region:          al.Region,
		Source:          al.AnalysisID,
		EscalationLevel: al.EscalationLevel,
		Fields: map[string]string{
			"title":            al.Title,
			"alertTitle":       al.Title,
			"alertDescription": al.Description,
			"region":           al.Region,
			"location":         al.Location,
			"severity":         string(al.Severity),
			"escalationLevel":  strconv.Itoa(al.EscalationLevel),
		},
	}
}

// Validate rejects rules that can never fire sensibly.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	switch r.Event {
	case EventIncidentCreated, EventAlertCreated:
	default:
		return fmt.Errorf("unknown event %q", r.Event)
	}
	if lvl := r.Conditions.EscalationLevelGte; lvl != nil && (*lvl < 1 || *lvl > 3) {
		return fmt.Errorf("escalation_level_gte must be 1..3, got %d", *lvl)
	}
	return nil
}
