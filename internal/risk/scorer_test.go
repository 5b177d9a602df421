package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

// stubScorer implements Scorer for testing.
type stubScorer struct {
	name  string
	draft *Draft
	err   error
	calls int
}

func (s *stubScorer) Name() string { return s.name }

func (s *stubScorer) Score(context.Context, *Input) (*Draft, error) {
	s.calls++
	return s.draft, s.err
}

func TestFallbackScore_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &stubScorer{name: "llm", draft: &Draft{Title: "from llm", Source: SourceLLM}}
	secondary := &stubScorer{name: "heuristic"}

	fallbacks := 0
	f := NewFallbackScorer(primary, secondary, log.Nop(), func() { fallbacks++ })

	d, err := f.Score(context.Background(), &Input{Region: "Lagos"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if d.Title != "from llm" {
		t.Errorf("Title = %q", d.Title)
	}
	if secondary.calls != 0 {
		t.Error("secondary ran although primary succeeded")
	}
	if fallbacks != 0 {
		t.Errorf("fallbacks = %d, want 0", fallbacks)
	}
}

func TestFallbackScore_PrimaryFails(t *testing.T) {
	t.Parallel()

	primary := &stubScorer{name: "llm", err: errors.New("model unavailable")}
	secondary := &stubScorer{name: "heuristic", draft: &Draft{Title: "from heuristic", Source: SourceHeuristic}}

	fallbacks := 0
	f := NewFallbackScorer(primary, secondary, log.Nop(), func() { fallbacks++ })

	d, err := f.Score(context.Background(), &Input{Region: "Lagos"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if d.Source != SourceHeuristic {
		t.Errorf("Source = %q, want heuristic", d.Source)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
}

func TestFallbackScore_BothFail(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("nothing to assess")
	primary := &stubScorer{name: "llm", err: errors.New("model unavailable")}
	secondary := &stubScorer{name: "heuristic", err: wantErr}

	f := NewFallbackScorer(primary, secondary, log.Nop(), nil)

	_, err := f.Score(context.Background(), &Input{Region: "Lagos"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want secondary error", err)
	}
}

func TestFallbackScore_NilPrimary(t *testing.T) {
	t.Parallel()

	secondary := &stubScorer{name: "heuristic", draft: &Draft{Source: SourceHeuristic}}
	f := NewFallbackScorer(nil, secondary, log.Nop(), nil)

	if f.Name() != "heuristic" {
		t.Errorf("Name = %q, want heuristic", f.Name())
	}
	d, err := f.Score(context.Background(), &Input{Region: "Lagos"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if d.Source != SourceHeuristic {
		t.Errorf("Source = %q", d.Source)
	}
}

func TestFallbackName_Composed(t *testing.T) {
	t.Parallel()

	f := NewFallbackScorer(&stubScorer{name: "llm"}, &stubScorer{name: "heuristic"}, log.Nop(), nil)
	if f.Name() != "llm+heuristic" {
		t.Errorf("Name = %q", f.Name())
	}
}
