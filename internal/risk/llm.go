package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sentinel/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sentinel/internal/risk")

// Provider is the contract the LLM path requires of a model backend: a
// single-shot completion that is expected to return a JSON object. The
// scorer never retries a failed call; failures degrade to the heuristic
// path via FallbackScorer.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// DefaultLLMTimeout bounds a single completion call. Timeouts are treated
// identically to any other provider error.
const DefaultLLMTimeout = 30 * time.Second

// contextEntryLimit caps how many incidents and indicators are serialized
// into the prompt.
const contextEntryLimit = 10

// LLMScorer produces a draft assessment by asking a model to score the
// incident/indicator context and return a structured JSON object.
type LLMScorer struct {
	provider Provider
	timeout  time.Duration
}

// NewLLMScorer wraps a provider. A non-positive timeout falls back to
// DefaultLLMTimeout.
func NewLLMScorer(provider Provider, timeout time.Duration) *LLMScorer {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMScorer{provider: provider, timeout: timeout}
}

// Name identifies the scorer.
func (s *LLMScorer) Name() string { return "llm" }

// Score sends the scoring prompt and parses the JSON response. Any provider
// failure, timeout, or malformed response is returned as an error.
func (s *LLMScorer) Score(ctx context.Context, in *Input) (*Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "llm.score", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.score"),
		attribute.String("sentinel.analysis.region", in.Region),
		attribute.String("sentinel.analysis.location", in.Location),
		attribute.Int("sentinel.score.incidents", len(in.Incidents)),
		attribute.Int("sentinel.score.indicators", len(in.Indicators)),
	))
	defer span.End()

	raw, err := s.provider.Complete(ctx, scoringSystemPrompt, buildScoringPrompt(in))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm complete failed")
		return nil, fmt.Errorf("llm complete: %w", err)
	}
	span.SetAttributes(attribute.Int("gen_ai.response.length", len(raw)))

	d, err := parseDraft(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm response invalid")
		return nil, fmt.Errorf("llm response: %w", err)
	}
	d.Source = SourceLLM
	return d, nil
}

const scoringSystemPrompt = `You are a risk analyst for a regional early-warning system.
You receive active incidents and risk indicators for one geographic area and produce a single risk assessment.

Respond with ONLY a JSON object, no prose and no code fences, with exactly these fields:
{
  "title": string,
  "description": string,
  "analysis": string,
  "severity": "low" | "medium" | "high",
  "likelihood": "unlikely" | "possible" | "likely" | "very_likely",
  "impact": "minor" | "moderate" | "significant" | "severe",
  "recommendations": [string, ...],
  "timeframe": "immediate" | "short_term" | "medium_term" | "long_term",
  "patterns": [string, ...]   // optional
}`

func buildScoringPrompt(in *Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Area under assessment: %s", in.Region)
	if in.Location != "" {
		fmt.Fprintf(&b, ", %s", in.Location)
	}
	b.WriteString("\n\nActive incidents (highest severity first):\n")
	if len(in.Incidents) == 0 {
		b.WriteString("  none\n")
	}
	for i, inc := range in.Incidents {
		if i >= contextEntryLimit {
			break
		}
		fmt.Fprintf(&b, "  - [%s] %s (category=%s, impacted_population=%d, reported=%s)\n",
			inc.Severity, inc.Title, inc.Category, inc.ImpactedPopulation,
			inc.ReportedAt.UTC().Format(time.RFC3339))
	}

	b.WriteString("\nRisk indicators (highest value first):\n")
	if len(in.Indicators) == 0 {
		b.WriteString("  none\n")
	}
	for i, ind := range in.Indicators {
		if i >= contextEntryLimit {
			break
		}
		fmt.Fprintf(&b, "  - %s: value=%.0f trend=%s category=%s\n",
			ind.Name, ind.Value, ind.Trend, ind.Category)
	}

	b.WriteString("\nScore this area now and answer with the JSON object only.")
	return b.String()
}

// draftPayload mirrors the JSON object the model is instructed to return.
type draftPayload struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Analysis        string   `json:"analysis"`
	Severity        string   `json:"severity"`
	Likelihood      string   `json:"likelihood"`
	Impact          string   `json:"impact"`
	Recommendations []string `json:"recommendations"`
	Timeframe       string   `json:"timeframe"`
	Patterns        []string `json:"patterns"`
}

// parseDraft extracts and validates the JSON object from a model response.
// Models occasionally wrap the object in code fences or prose despite
// instructions, so the parser scans for the outermost object.
func parseDraft(raw string) (*Draft, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var p draftPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if p.Title == "" || p.Analysis == "" {
		return nil, fmt.Errorf("missing title or analysis")
	}

	severity, ok := parseSeverity(p.Severity)
	if !ok {
		return nil, fmt.Errorf("invalid severity %q", p.Severity)
	}
	likelihood, ok := parseLikelihood(p.Likelihood)
	if !ok {
		return nil, fmt.Errorf("invalid likelihood %q", p.Likelihood)
	}
	impact, ok := parseImpact(p.Impact)
	if !ok {
		return nil, fmt.Errorf("invalid impact %q", p.Impact)
	}
	timeframe, ok := parseTimeframe(p.Timeframe)
	if !ok {
		return nil, fmt.Errorf("invalid timeframe %q", p.Timeframe)
	}

	return &Draft{
		Title:           p.Title,
		Description:     p.Description,
		Analysis:        p.Analysis,
		Severity:        severity,
		Likelihood:      likelihood,
		Impact:          impact,
		Recommendations: p.Recommendations,
		Patterns:        p.Patterns,
		Timeframe:       timeframe,
	}, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func parseSeverity(s string) (incident.Severity, bool) {
	switch incident.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case incident.SeverityLow:
		return incident.SeverityLow, true
	case incident.SeverityMedium:
		return incident.SeverityMedium, true
	case incident.SeverityHigh, incident.SeverityCritical:
		// alerting treats critical and high the same; store high
		return incident.SeverityHigh, true
	}
	return "", false
}

func parseLikelihood(s string) (Likelihood, bool) {
	switch Likelihood(strings.ToLower(strings.TrimSpace(s))) {
	case LikelihoodUnlikely, LikelihoodPossible, LikelihoodLikely, LikelihoodVeryLikely:
		return Likelihood(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}

func parseImpact(s string) (Impact, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "minimal" {
		v = string(ImpactMinor)
	}
	switch Impact(v) {
	case ImpactMinor, ImpactModerate, ImpactSignificant, ImpactSevere:
		return Impact(v), true
	}
	return "", false
}

func parseTimeframe(s string) (Timeframe, bool) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case TimeframeImmediate, TimeframeShortTerm, TimeframeMediumTerm, TimeframeLongTerm:
		return Timeframe(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}
