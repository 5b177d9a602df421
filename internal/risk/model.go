package risk

import (
	"time"

	"github.com/linnemanlabs/sentinel/internal/incident"
)

// Likelihood estimates how probable the assessed risk is.
type Likelihood string

const (
	LikelihoodUnlikely   Likelihood = "unlikely"
	LikelihoodPossible   Likelihood = "possible"
	LikelihoodLikely     Likelihood = "likely"
	LikelihoodVeryLikely Likelihood = "very_likely"
)

// Impact estimates how much damage the assessed risk would cause.
type Impact string

const (
	ImpactMinor       Impact = "minor"
	ImpactModerate    Impact = "moderate"
	ImpactSignificant Impact = "significant"
	ImpactSevere      Impact = "severe"
)

// Timeframe estimates how soon the assessed risk is expected to materialize.
type Timeframe string

const (
	TimeframeImmediate  Timeframe = "immediate"
	TimeframeShortTerm  Timeframe = "short_term"
	TimeframeMediumTerm Timeframe = "medium_term"
	TimeframeLongTerm   Timeframe = "long_term"
)

// Source records which scoring path produced an analysis.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
)

// Analysis is a persisted risk assessment for a region. Analyses are
// append-only: new assessments are created, existing ones are never edited.
type Analysis struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Analysis        string            `json:"analysis"`
	Severity        incident.Severity `json:"severity"`
	Likelihood      Likelihood        `json:"likelihood"`
	Impact          Impact            `json:"impact"`
	Recommendations []string          `json:"recommendations"`
	Patterns        []string          `json:"patterns,omitempty"`
	Timeframe       Timeframe         `json:"timeframe"`
	Region          string            `json:"region"`
	Location        string            `json:"location,omitempty"`
	Source          Source            `json:"source"`
	CreatedBy       string            `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
}
