package postgres

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/sentinel/internal/storage/pgstore.(*Store).GetIncident", "(*Store).GetIncident"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Get", "(*Store).Get"},
		{"single segment", "foo.Bar", "Bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFrameNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fn   string
		want bool
	}{
		{"runtime.goexit", true},
		{"github.com/jackc/pgx/v5/pgxpool.(*Pool).Query", true},
		{"github.com/exaring/otelpgx.(*Tracer).TraceQueryStart", true},
		{"github.com/linnemanlabs/sentinel/internal/postgres.logTracer.TraceQueryStart", true},
		{"github.com/linnemanlabs/sentinel/internal/storage/pgstore.(*Store).GetIncident", false},
		{"github.com/linnemanlabs/sentinel/internal/review.(*Service).Accept", false},
	}
	for _, tt := range tests {
		if got := frameNoise(tt.fn); got != tt.want {
			t.Errorf("frameNoise(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestReqDBStats_AddQuery(t *testing.T) {
	t.Parallel()

	s := &ReqDBStats{}
	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))
	s.AddQuery(5*time.Millisecond, nil)

	if s.QueryCount != 3 {
		t.Errorf("QueryCount = %d, want 3", s.QueryCount)
	}
	if s.TotalDuration != 35*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 35ms", s.TotalDuration)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
}

func TestReqDBStatsContext(t *testing.T) {
	t.Parallel()

	if _, ok := ReqDBStatsFromContext(context.Background()); ok {
		t.Error("plain context should carry no stats")
	}

	ctx := NewReqDBStatsContext(context.Background())
	stats, ok := ReqDBStatsFromContext(ctx)
	if !ok || stats == nil {
		t.Fatal("stats not attached")
	}

	// both extractions see the same accumulator
	stats.AddQuery(time.Millisecond, nil)
	again, _ := ReqDBStatsFromContext(ctx)
	if again.QueryCount != 1 {
		t.Errorf("QueryCount = %d, want 1", again.QueryCount)
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "POST")
	if got, _ := ctx.Value(httpMethodKey{}).(string); got != "POST" {
		t.Errorf("stored method = %q, want POST", got)
	}

	// empty method leaves the context untouched
	base := context.Background()
	if got := WithHTTPMethod(base, ""); got != base {
		t.Error("empty method should return the context unchanged")
	}
}

func TestSetQueryObserver(t *testing.T) {
	// Not parallel: mutates the package-level observer.
	defer SetQueryObserver(nil)

	var calls int
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		calls++
	}))

	obs := currentObserver()
	if obs == nil {
		t.Fatal("observer not installed")
	}
	obs.ObserveQuery(context.Background(), "GET", "/api/incidents/pending-review", "ok", time.Millisecond)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	SetQueryObserver(nil)
	if currentObserver() != nil {
		t.Error("observer not removed")
	}
}
