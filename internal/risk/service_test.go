package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sentinel/internal/incident"
)

// mockData implements DataSource for testing. Keys are "region/location".
type mockData struct {
	incidents  map[string][]incident.Incident
	indicators map[string][]incident.Indicator
	err        error
	queries    []string
}

func newMockData() *mockData {
	return &mockData{
		incidents:  make(map[string][]incident.Incident),
		indicators: make(map[string][]incident.Indicator),
	}
}

func (m *mockData) ActiveIncidents(_ context.Context, region, location string, limit int) ([]incident.Incident, error) {
	m.queries = append(m.queries, "incidents:"+region+"/"+location)
	if m.err != nil {
		return nil, m.err
	}
	out := m.incidents[region+"/"+location]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockData) Indicators(_ context.Context, region, location string, limit int) ([]incident.Indicator, error) {
	m.queries = append(m.queries, "indicators:"+region+"/"+location)
	if m.err != nil {
		return nil, m.err
	}
	out := m.indicators[region+"/"+location]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockAnalysisStore implements Store for testing.
type mockAnalysisStore struct {
	mu     sync.Mutex
	stored []*Analysis
	err    error
}

func (m *mockAnalysisStore) PutAnalysis(_ context.Context, a *Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *a
	m.stored = append(m.stored, &cp)
	return nil
}

func TestGenerate_PersistsAnalysis(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.incidents["Lagos/Ikeja"] = []incident.Incident{
		{Title: "Flooding", Severity: incident.SeverityHigh, ImpactedPopulation: 1200},
	}
	data.indicators["Lagos/Ikeja"] = []incident.Indicator{
		{Name: "water level", Value: 85, Trend: incident.TrendIncreasing},
	}
	store := &mockAnalysisStore{}

	a := NewAnalyzer(data, store, NewHeuristicScorer(), log.Nop(), nil)

	analysis, err := a.Generate(context.Background(), "Lagos", "Ikeja")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if analysis.ID == "" {
		t.Error("expected non-empty id")
	}
	if analysis.Region != "Lagos" || analysis.Location != "Ikeja" {
		t.Errorf("scope = %s/%s", analysis.Region, analysis.Location)
	}
	if analysis.CreatedBy != "system" {
		t.Errorf("CreatedBy = %q", analysis.CreatedBy)
	}
	if analysis.Source != SourceHeuristic {
		t.Errorf("Source = %q", analysis.Source)
	}
	if analysis.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
	if len(store.stored) != 1 {
		t.Fatalf("stored %d analyses, want 1", len(store.stored))
	}
	if store.stored[0].ID != analysis.ID {
		t.Error("stored analysis differs from returned one")
	}
}

func TestGenerate_InsufficientData(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(newMockData(), &mockAnalysisStore{}, NewHeuristicScorer(), log.Nop(), nil)

	_, err := a.Generate(context.Background(), "Lagos", "")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestGenerate_RegionRetryWhenLocationEmpty(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.incidents["Lagos/"] = []incident.Incident{
		{Title: "Region-wide unrest", Severity: incident.SeverityMedium},
	}
	store := &mockAnalysisStore{}

	a := NewAnalyzer(data, store, NewHeuristicScorer(), log.Nop(), nil)

	analysis, err := a.Generate(context.Background(), "Lagos", "Ikeja")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		"incidents:Lagos/Ikeja",
		"indicators:Lagos/Ikeja",
		"incidents:Lagos/",
		"indicators:Lagos/",
	}
	if len(data.queries) != len(want) {
		t.Fatalf("queries = %v", data.queries)
	}
	for i, q := range want {
		if data.queries[i] != q {
			t.Errorf("queries[%d] = %q, want %q", i, data.queries[i], q)
		}
	}

	// the analysis keeps the requested scope even though data came from the
	// region-wide retry
	if analysis.Location != "Ikeja" {
		t.Errorf("Location = %q, want Ikeja", analysis.Location)
	}
}

func TestGenerate_NoRetryWhenLocationHasData(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.indicators["Lagos/Ikeja"] = []incident.Indicator{
		{Name: "water level", Value: 72, Trend: incident.TrendStable},
	}

	a := NewAnalyzer(data, &mockAnalysisStore{}, NewHeuristicScorer(), log.Nop(), nil)

	if _, err := a.Generate(context.Background(), "Lagos", "Ikeja"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(data.queries) != 2 {
		t.Errorf("queries = %v, want only the location-scoped pair", data.queries)
	}
}

func TestGenerate_ScorerError(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.incidents["Lagos/"] = []incident.Incident{{Title: "x", Severity: incident.SeverityLow}}
	store := &mockAnalysisStore{}

	scorer := &stubScorer{name: "failing", err: errors.New("scoring broke")}
	a := NewAnalyzer(data, store, scorer, log.Nop(), nil)

	_, err := a.Generate(context.Background(), "Lagos", "")
	if err == nil || err.Error() != "scoring broke" {
		t.Fatalf("err = %v", err)
	}
	if len(store.stored) != 0 {
		t.Error("analysis stored despite scorer failure")
	}
}

func TestGenerate_StoreError(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.incidents["Lagos/"] = []incident.Incident{{Title: "x", Severity: incident.SeverityLow}}
	store := &mockAnalysisStore{err: errors.New("disk full")}

	a := NewAnalyzer(data, store, NewHeuristicScorer(), log.Nop(), nil)

	_, err := a.Generate(context.Background(), "Lagos", "")
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerate_DataSourceError(t *testing.T) {
	t.Parallel()

	data := newMockData()
	data.err = errors.New("db down")

	a := NewAnalyzer(data, &mockAnalysisStore{}, NewHeuristicScorer(), log.Nop(), nil)

	_, err := a.Generate(context.Background(), "Lagos", "")
	if err == nil || err.Error() != "db down" {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerate_HeuristicScoresFullDataSet(t *testing.T) {
	t.Parallel()

	// Eleven incidents ordered by severity: the low-severity one with the
	// large impacted population sorts last, so any fetch cap would hide it
	// from impact classification.
	var incidents []incident.Incident
	for i := range 10 {
		incidents = append(incidents, incident.Incident{
			Title:              fmt.Sprintf("incident %d", i+1),
			Severity:           incident.SeverityMedium,
			ImpactedPopulation: 50,
		})
	}
	incidents = append(incidents, incident.Incident{
		Title:              "mass displacement",
		Severity:           incident.SeverityLow,
		ImpactedPopulation: 5000,
	})

	data := newMockData()
	data.incidents["Lagos/"] = incidents
	store := &mockAnalysisStore{}

	a := NewAnalyzer(data, store, NewHeuristicScorer(), log.Nop(), nil)

	analysis, err := a.Generate(context.Background(), "Lagos", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if analysis.Impact != ImpactSevere {
		t.Errorf("Impact = %q, want %q (population 5000 incident must reach the scorer)", analysis.Impact, ImpactSevere)
	}
	if !strings.Contains(analysis.Description, "11 active incident(s)") {
		t.Errorf("Description = %q, want count over all 11 incidents", analysis.Description)
	}
}
