package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/linnemanlabs/sentinel/internal/risk"
	"github.com/oklog/ulid/v2"
)

// ErrNotNeeded means the source analysis is low severity and no alert is
// warranted. Callers should treat it as a normal outcome, not a failure.
var ErrNotNeeded = errors.New("alert not needed for low severity analysis")

// ErrAnalysisNotFound means the referenced analysis does not exist.
var ErrAnalysisNotFound = errors.New("analysis not found")

// descriptionRecLimit caps how much of the recommendations text is folded
// into the alert description.
const descriptionRecLimit = 100

// Store is the persistence the generator needs.
type Store interface {
	GetAnalysis(ctx context.Context, id string) (*risk.Analysis, bool, error)
	PutAlert(ctx context.Context, a *Alert) error

	// MostSevereActiveIncident returns the highest-severity visible incident
	// for the scope; ties resolve to the highest id.
	MostSevereActiveIncident(ctx context.Context, region, location string) (*incident.Incident, bool, error)
}

// Generator derives alerts from analyses.
type Generator struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// NewGenerator creates a generator.
func NewGenerator(store Store, logger log.Logger) *Generator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{store: store, logger: logger, now: time.Now}
}

// Generate creates and persists an alert for the given analysis. Low
// severity analyses return ErrNotNeeded and create nothing.
func (g *Generator) Generate(ctx context.Context, analysisID string) (*Alert, error) {
	analysis, ok, err := g.store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAnalysisNotFound
	}

	if analysis.Severity != incident.SeverityHigh && analysis.Severity != incident.SeverityMedium {
		return nil, ErrNotNeeded
	}

	level := EscalationLevel(analysis.Severity, analysis.Likelihood)

	alert := &Alert{
		ID:              ulid.Make().String(),
		AnalysisID:      analysis.ID,
		Title:           titlePrefix(level) + " " + analysis.Title,
		Description:     buildDescription(analysis),
		Severity:        analysis.Severity,
		Status:          StatusActive,
		Region:          analysis.Region,
		Location:        analysis.Location,
		EscalationLevel: level,
		Channels:        []Channel{ChannelEmail, ChannelApp},
		CreatedAt:       g.now().UTC(),
	}

	if inc, found, err := g.store.MostSevereActiveIncident(ctx, analysis.Region, analysis.Location); err != nil {
		g.logger.Error(ctx, err, "failed to resolve related incident",
			"analysis_id", analysis.ID, "region", analysis.Region)
	} else if found {
		alert.IncidentID = &inc.ID
	}

	if err := g.store.PutAlert(ctx, alert); err != nil {
		return nil, err
	}

	g.logger.Info(ctx, "alert generated",
		"alert_id", alert.ID,
		"analysis_id", analysis.ID,
		"escalation_level", level,
		"severity", alert.Severity,
		"region", alert.Region,
	)
	return alert, nil
}

// EscalationLevel is a pure function of severity and likelihood:
// (high, very_likely) is 3; high otherwise is 2, as is (medium, very_likely);
// everything else is 1.
func EscalationLevel(severity incident.Severity, likelihood risk.Likelihood) int {
	switch {
	case severity == incident.SeverityHigh && likelihood == risk.LikelihoodVeryLikely:
		return 3
	case severity == incident.SeverityHigh:
		return 2
	case severity == incident.SeverityMedium && likelihood == risk.LikelihoodVeryLikely:
		return 2
	default:
		return 1
	}
}

func titlePrefix(level int) string {
	switch level {
	case 3:
		return "URGENT:"
	case 2:
		return "Warning:"
	default:
		return "Alert:"
	}
}

func buildDescription(a *risk.Analysis) string {
	recs := ""
	for i, r := range a.Recommendations {
		if i > 0 {
			recs += " "
		}
		recs += r
	}
	// truncate on runes so multi-byte text is never cut mid-character
	if runes := []rune(recs); len(runes) > descriptionRecLimit {
		recs = string(runes[:descriptionRecLimit])
	}
	if recs == "" {
		return a.Description
	}
	return a.Description + " Recommended: " + recs
}
