package risk

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/incident"
)

// Input is the material a Scorer works from: active incidents ordered by
// severity descending and indicators ordered by value descending, both
// already scoped to the requested region/location.
type Input struct {
	Region     string
	Location   string
	Incidents  []incident.Incident
	Indicators []incident.Indicator
}

// Draft is the scored portion of an analysis before the Analyzer stamps
// identity, scope, and timestamps onto it.
type Draft struct {
	Title           string
	Description     string
	Analysis        string
	Severity        incident.Severity
	Likelihood      Likelihood
	Impact          Impact
	Recommendations []string
	Patterns        []string
	Timeframe       Timeframe
	Source          Source
}

// Scorer turns an Input into a Draft assessment.
type Scorer interface {
	Name() string
	Score(ctx context.Context, in *Input) (*Draft, error)
}

// FallbackScorer tries the primary scorer and falls back to the secondary on
// any error, including timeouts. The secondary's errors are returned to the
// caller; the primary's never are.
type FallbackScorer struct {
	primary    Scorer
	secondary  Scorer
	logger     log.Logger
	onFallback func()
}

// NewFallbackScorer composes two scorers. primary may be nil, in which case
// the secondary is used directly. onFallback may be nil.
func NewFallbackScorer(primary, secondary Scorer, logger log.Logger, onFallback func()) *FallbackScorer {
	if logger == nil {
		logger = log.Nop()
	}
	return &FallbackScorer{
		primary:    primary,
		secondary:  secondary,
		logger:     logger,
		onFallback: onFallback,
	}
}

// Name identifies the composed scorer by its parts.
func (f *FallbackScorer) Name() string {
	if f.primary == nil {
		return f.secondary.Name()
	}
	return f.primary.Name() + "+" + f.secondary.Name()
}

// Score runs the primary scorer and degrades to the secondary on failure.
func (f *FallbackScorer) Score(ctx context.Context, in *Input) (*Draft, error) {
	if f.primary != nil {
		d, err := f.primary.Score(ctx, in)
		if err == nil {
			return d, nil
		}
		f.logger.Warn(ctx, "primary scorer failed, falling back",
			"primary", f.primary.Name(),
			"secondary", f.secondary.Name(),
			"error", err,
		)
		if f.onFallback != nil {
			f.onFallback()
		}
	}
	return f.secondary.Score(ctx, in)
}
