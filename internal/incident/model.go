package incident

import "time"

// Severity ranks how bad an incident is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity to a sortable weight. Unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Status tracks where an incident is in its lifecycle.
type Status string

const (
	// StatusPending means ingested, awaiting review
	StatusPending Status = "pending"

	// StatusActive means accepted and publicly visible
	StatusActive Status = "active"

	// StatusRejected means discarded during review
	StatusRejected Status = "rejected"
)

// VerificationStatus tracks the review outcome for sourced incidents.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// Incident is a reported or ingested event under a region.
type Incident struct {
	ID                 int64              `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Region             string             `json:"region"`
	State              string             `json:"state,omitempty"`
	LGA                string             `json:"lga,omitempty"`
	Location           string             `json:"location,omitempty"`
	Severity           Severity           `json:"severity"`
	Category           string             `json:"category,omitempty"`
	Status             Status             `json:"status"`
	Verification       VerificationStatus `json:"verification_status"`
	SourceID           string             `json:"source_id,omitempty"`
	ImpactedPopulation int                `json:"impacted_population,omitempty"`
	ReportedAt         time.Time          `json:"reported_at"`
	ReportingMethod    string             `json:"reporting_method,omitempty"`
}

// Visible reports whether the incident should be served to consumers of
// active incidents: accepted by review, or created active+verified by a
// trusted path.
func (i *Incident) Visible() bool {
	return i.Status == StatusActive && i.Verification == VerificationVerified
}

// Trend describes the direction a risk indicator is moving.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// Indicator is a read-only risk signal scoped to a region.
type Indicator struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	State      string    `json:"state,omitempty"`
	Location   string    `json:"location,omitempty"`
	Category   string    `json:"category,omitempty"`
	Value      float64   `json:"value"` // 0..100
	Trend      Trend     `json:"trend"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
