package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/sentinel/internal/incident"
)

// ErrInsufficientData means there is nothing to assess for the requested
// scope: no active incidents and no indicators above the floor.
var ErrInsufficientData = errors.New("insufficient data for risk analysis")

// indicatorFloor is the minimum indicator value the heuristic considers.
const indicatorFloor = 60

// HeuristicScorer classifies risk with fixed thresholds. Its output is a pure
// function of the input sets: identical incidents and indicators always yield
// the identical draft, which keeps snapshot-style tests honest.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the deterministic scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Name identifies the scorer.
func (h *HeuristicScorer) Name() string { return "heuristic" }

// Score classifies severity, likelihood, impact, and timeframe from
// thresholds and writes a templated narrative.
func (h *HeuristicScorer) Score(_ context.Context, in *Input) (*Draft, error) {
	indicators := eligibleIndicators(in.Indicators)
	if len(in.Incidents) == 0 && len(indicators) == 0 {
		return nil, ErrInsufficientData
	}

	severity := classifySeverity(in.Incidents, indicators)
	likelihood := classifyLikelihood(indicators)
	impact := classifyImpact(in.Incidents)
	timeframe := classifyTimeframe(severity, likelihood)

	d := &Draft{
		Severity:        severity,
		Likelihood:      likelihood,
		Impact:          impact,
		Timeframe:       timeframe,
		Source:          SourceHeuristic,
		Title:           buildTitle(severity, in),
		Description:     buildDescription(in, indicators),
		Analysis:        buildNarrative(in, indicators, severity, likelihood),
		Recommendations: buildRecommendations(severity, timeframe),
	}
	return d, nil
}

func eligibleIndicators(all []incident.Indicator) []incident.Indicator {
	out := make([]incident.Indicator, 0, len(all))
	for _, ind := range all {
		if ind.Value >= indicatorFloor {
			out = append(out, ind)
		}
	}
	return out
}

// classifySeverity treats critical incidents as high for threshold purposes.
func classifySeverity(incidents []incident.Incident, indicators []incident.Indicator) incident.Severity {
	anyHigh := false
	anyMedium := false
	for _, inc := range incidents {
		switch {
		case inc.Severity.Rank() >= incident.SeverityHigh.Rank():
			anyHigh = true
		case inc.Severity == incident.SeverityMedium:
			anyMedium = true
		}
	}
	maxValue := 0.0
	for _, ind := range indicators {
		if ind.Value > maxValue {
			maxValue = ind.Value
		}
	}

	switch {
	case anyHigh || maxValue >= 80:
		return incident.SeverityHigh
	case anyMedium || maxValue >= 70:
		return incident.SeverityMedium
	default:
		return incident.SeverityLow
	}
}

func classifyLikelihood(indicators []incident.Indicator) Likelihood {
	var at65, at70, at75 int
	for _, ind := range indicators {
		if ind.Value >= 65 {
			at65++
		}
		if ind.Value >= 70 {
			at70++
		}
		if ind.Value >= 75 {
			at75++
		}
	}

	switch {
	case len(indicators) >= 5 && at75 >= 3:
		return LikelihoodVeryLikely
	case len(indicators) >= 3 && at70 >= 2:
		return LikelihoodLikely
	case len(indicators) <= 1 || at65 == 0:
		return LikelihoodUnlikely
	default:
		return LikelihoodPossible
	}
}

func classifyImpact(incidents []incident.Incident) Impact {
	highCount := 0
	anyOver1000 := false
	anyOver500 := false
	anyMedium := false
	allSmallAndLow := true
	for _, inc := range incidents {
		if inc.Severity.Rank() >= incident.SeverityHigh.Rank() {
			highCount++
		}
		if inc.ImpactedPopulation > 1000 {
			anyOver1000 = true
		}
		if inc.ImpactedPopulation > 500 {
			anyOver500 = true
		}
		if inc.Severity == incident.SeverityMedium {
			anyMedium = true
		}
		if inc.ImpactedPopulation >= 100 || inc.Severity != incident.SeverityLow {
			allSmallAndLow = false
		}
	}

	switch {
	case anyOver1000 || highCount >= 2:
		return ImpactSevere
	case anyOver500 || anyMedium:
		return ImpactSignificant
	case allSmallAndLow:
		return ImpactMinor
	default:
		return ImpactModerate
	}
}

func classifyTimeframe(severity incident.Severity, likelihood Likelihood) Timeframe {
	switch {
	case severity == incident.SeverityHigh && (likelihood == LikelihoodLikely || likelihood == LikelihoodVeryLikely):
		return TimeframeImmediate
	case severity == incident.SeverityLow && likelihood == LikelihoodUnlikely:
		return TimeframeLongTerm
	default:
		return TimeframeMediumTerm
	}
}

func scopeLabel(in *Input) string {
	if in.Location != "" {
		return fmt.Sprintf("%s (%s)", in.Region, in.Location)
	}
	return in.Region
}

func buildTitle(severity incident.Severity, in *Input) string {
	label := map[incident.Severity]string{
		incident.SeverityHigh:   "High",
		incident.SeverityMedium: "Medium",
		incident.SeverityLow:    "Low",
	}[severity]
	return fmt.Sprintf("%s Risk Assessment: %s", label, scopeLabel(in))
}

func buildDescription(in *Input, indicators []incident.Indicator) string {
	return fmt.Sprintf(
		"Automated risk assessment for %s based on %d active incident(s) and %d risk indicator(s).",
		scopeLabel(in), len(in.Incidents), len(indicators),
	)
}

func buildNarrative(in *Input, indicators []incident.Indicator, severity incident.Severity, likelihood Likelihood) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d active incident(s) are recorded for %s.", len(in.Incidents), scopeLabel(in))
	if cat := dominantCategory(in); cat != "" {
		fmt.Fprintf(&b, " The dominant category is %s.", cat)
	}

	if len(indicators) > 0 {
		elevated := 0
		increasing := 0
		for _, ind := range indicators {
			if ind.Value >= 70 {
				elevated++
			}
			if ind.Trend == incident.TrendIncreasing {
				increasing++
			}
		}
		fmt.Fprintf(&b, " %d indicator(s) exceed the monitoring floor, %d of them elevated (value 70 or above).", len(indicators), elevated)
		if increasing*2 >= len(indicators) && increasing > 0 {
			fmt.Fprintf(&b, " %d of %d indicators are trending upward, suggesting conditions may deteriorate.", increasing, len(indicators))
		}
	}

	fmt.Fprintf(&b, " Overall the situation is assessed as %s severity and %s to escalate.",
		severity, likelihoodPhrase(likelihood))
	return b.String()
}

func likelihoodPhrase(l Likelihood) string {
	switch l {
	case LikelihoodVeryLikely:
		return "very likely"
	case LikelihoodLikely:
		return "likely"
	case LikelihoodPossible:
		return "possible"
	default:
		return "unlikely"
	}
}

// dominantCategory returns the most frequent non-empty category across
// incidents and indicators. Ties resolve to the category seen first, so the
// result is stable for a given input ordering.
func dominantCategory(in *Input) string {
	counts := make(map[string]int)
	var order []string
	bump := func(cat string) {
		if cat == "" {
			return
		}
		if _, seen := counts[cat]; !seen {
			order = append(order, cat)
		}
		counts[cat]++
	}
	for _, inc := range in.Incidents {
		bump(inc.Category)
	}
	for _, ind := range in.Indicators {
		bump(ind.Category)
	}

	best := ""
	bestCount := 0
	for _, cat := range order {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	return best
}

func buildRecommendations(severity incident.Severity, timeframe Timeframe) []string {
	recs := []string{
		"Continue monitoring incident reports and indicator values for the assessed area.",
		"Verify pending incident reports for the assessed area promptly.",
	}
	switch severity {
	case incident.SeverityHigh:
		recs = append(recs,
			"Notify response teams covering the assessed area.",
			"Prepare contingency and evacuation plans for the most affected communities.",
		)
	case incident.SeverityMedium:
		recs = append(recs, "Place response teams covering the assessed area on standby.")
	}
	if timeframe == TimeframeImmediate {
		recs = append(recs, "Escalate to the operations lead for immediate action.")
	}
	return recs
}
