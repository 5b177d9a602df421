// Package alerting converts risk analyses into escalation-tagged alerts.
package alerting

import (
	"time"

	"github.com/linnemanlabs/sentinel/internal/incident"
)

// Status tracks where an alert is in its lifecycle. Alerts are created
// active; later status changes happen outside this package.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Channel names a delivery channel for an alert.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelApp   Channel = "app"
)

// Alert is an escalation-tagged warning derived from exactly one analysis.
type Alert struct {
	ID              string            `json:"id"`
	AnalysisID      string            `json:"analysis_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Severity        incident.Severity `json:"severity"`
	Status          Status            `json:"status"`
	Region          string            `json:"region"`
	Location        string            `json:"location,omitempty"`
	IncidentID      *int64            `json:"incident_id,omitempty"`
	EscalationLevel int               `json:"escalation_level"`
	Channels        []Channel         `json:"channels"`
	CreatedAt       time.Time         `json:"created_at"`
}
