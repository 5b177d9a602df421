package risk

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/incident"
	"github.com/oklog/ulid/v2"
)

// DataSource supplies the read-only inputs for an analysis.
type DataSource interface {
	// ActiveIncidents returns visible incidents for the scope, ordered by
	// severity descending then id descending. A limit <= 0 means no limit.
	ActiveIncidents(ctx context.Context, region, location string, limit int) ([]incident.Incident, error)

	// Indicators returns risk indicators for the scope, ordered by value
	// descending. A limit <= 0 means no limit.
	Indicators(ctx context.Context, region, location string, limit int) ([]incident.Indicator, error)
}

// Store persists finished analyses.
type Store interface {
	PutAnalysis(ctx context.Context, a *Analysis) error
}

// Analyzer is the business boundary for analysis generation: it gathers
// scoped inputs, runs the scorer, and persists the result.
type Analyzer struct {
	data    DataSource
	store   Store
	scorer  Scorer
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewAnalyzer creates an analyzer. metrics may be nil.
func NewAnalyzer(data DataSource, store Store, scorer Scorer, logger log.Logger, metrics *Metrics) *Analyzer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Analyzer{
		data:    data,
		store:   store,
		scorer:  scorer,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// createdBySystem marks analyses generated by the service rather than a
// named analyst.
const createdBySystem = "system"

// Generate produces and persists an analysis for a region and optional
// location. A location-scoped query that matches nothing retries with the
// region alone before giving up with ErrInsufficientData.
func (a *Analyzer) Generate(ctx context.Context, region, location string) (*Analysis, error) {
	start := a.now()

	in, err := a.gather(ctx, region, location)
	if err != nil {
		return nil, err
	}
	if len(in.Incidents) == 0 && len(in.Indicators) == 0 {
		a.metrics.ObserveGenerate("", "insufficient_data", a.now().Sub(start))
		return nil, ErrInsufficientData
	}

	d, err := a.scorer.Score(ctx, in)
	if err != nil {
		a.metrics.ObserveGenerate("", "error", a.now().Sub(start))
		return nil, err
	}

	analysis := &Analysis{
		ID:              ulid.Make().String(),
		Title:           d.Title,
		Description:     d.Description,
		Analysis:        d.Analysis,
		Severity:        d.Severity,
		Likelihood:      d.Likelihood,
		Impact:          d.Impact,
		Recommendations: d.Recommendations,
		Patterns:        d.Patterns,
		Timeframe:       d.Timeframe,
		Region:          in.Region,
		Location:        in.Location,
		Source:          d.Source,
		CreatedBy:       createdBySystem,
		CreatedAt:       a.now().UTC(),
	}

	if err := a.store.PutAnalysis(ctx, analysis); err != nil {
		a.metrics.ObserveGenerate(string(d.Source), "store_error", a.now().Sub(start))
		return nil, err
	}

	a.metrics.ObserveGenerate(string(d.Source), "ok", a.now().Sub(start))
	a.logger.Info(ctx, "risk analysis generated",
		"analysis_id", analysis.ID,
		"region", analysis.Region,
		"location", analysis.Location,
		"severity", analysis.Severity,
		"likelihood", analysis.Likelihood,
		"source", analysis.Source,
		"incidents", len(in.Incidents),
		"indicators", len(in.Indicators),
	)
	return analysis, nil
}

// gather fetches the full scoped data set. Scoring inspects every entry
// (impact classification keys off any single incident), so no cap is applied
// here; the LLM prompt builder truncates separately.
func (a *Analyzer) gather(ctx context.Context, region, location string) (*Input, error) {
	incidents, err := a.data.ActiveIncidents(ctx, region, location, 0)
	if err != nil {
		return nil, err
	}
	indicators, err := a.data.Indicators(ctx, region, location, 0)
	if err != nil {
		return nil, err
	}

	// region-only retry when the location-scoped query finds nothing
	if location != "" && len(incidents) == 0 && len(indicators) == 0 {
		incidents, err = a.data.ActiveIncidents(ctx, region, "", 0)
		if err != nil {
			return nil, err
		}
		indicators, err = a.data.Indicators(ctx, region, "", 0)
		if err != nil {
			return nil, err
		}
	}

	return &Input{
		Region:     region,
		Location:   location,
		Incidents:  incidents,
		Indicators: indicators,
	}, nil
}
