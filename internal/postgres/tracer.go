package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

// QueryObserver receives one callback per executed query, labelled with the
// HTTP method and chi route pattern of the request that issued it. main wires
// a Prometheus histogram here.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, method, route, outcome string, dur time.Duration)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration) {
	f(ctx, method, route, outcome, dur)
}

type observerBox struct{ QueryObserver }

var observer atomic.Pointer[observerBox]

// SetQueryObserver installs the process-wide query observer. Passing nil
// removes it.
func SetQueryObserver(o QueryObserver) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&observerBox{QueryObserver: o})
}

func currentObserver() QueryObserver {
	box := observer.Load()
	if box == nil {
		return nil
	}
	return box.QueryObserver
}

// ReqDBStats accumulates the database work done on behalf of one request.
type ReqDBStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *ReqDBStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

type dbStatsKey struct{}

// NewReqDBStatsContext attaches an empty ReqDBStats to the context.
func NewReqDBStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbStatsKey{}, &ReqDBStats{})
}

// ReqDBStatsFromContext extracts the request's ReqDBStats, if attached.
func ReqDBStatsFromContext(ctx context.Context) (*ReqDBStats, bool) {
	s, ok := ctx.Value(dbStatsKey{}).(*ReqDBStats)
	return s, ok
}

type httpMethodKey struct{}

// WithHTTPMethod stores the request method for query metric labelling.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	if method == "" {
		return ctx
	}
	return context.WithValue(ctx, httpMethodKey{}, method)
}

// queryMeta carries everything TraceQueryEnd needs from TraceQueryStart.
type queryMeta struct {
	sql     string
	args    []any
	start   time.Time
	caller  string
	handler string
}

type queryMetaKey struct{}

// logTracer decorates an inner pgx tracer (otelpgx) with structured query
// logging, caller attribution, per-request stats, and the observer hook.
type logTracer struct {
	inner pgx.QueryTracer
}

func wrapQueryTracer(inner pgx.QueryTracer) pgx.QueryTracer {
	return logTracer{inner: inner}
}

func (t logTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	meta := &queryMeta{
		sql:   data.SQL,
		args:  data.Args,
		start: time.Now(),
	}
	meta.caller, meta.handler = attributeFrames()

	// inner first so the otelpgx span exists before we annotate it
	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}
	ctx = context.WithValue(ctx, queryMetaKey{}, meta)

	if span := trace.SpanFromContext(ctx); span != nil && span.IsRecording() {
		if meta.caller != "" {
			span.SetAttributes(attribute.String("db.caller", meta.caller))
		}
		if meta.handler != "" {
			span.SetAttributes(attribute.String("db.handler", meta.handler))
		}
	}
	return ctx
}

func (t logTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	// inner first so the span closes with the right timing
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	meta, _ := ctx.Value(queryMetaKey{}).(*queryMeta)
	if meta == nil {
		meta = &queryMeta{}
	}
	var dur time.Duration
	if !meta.start.IsZero() {
		dur = time.Since(meta.start)
	}

	if stats, ok := ReqDBStatsFromContext(ctx); ok {
		stats.AddQuery(dur, data.Err)
	}
	t.notifyObserver(ctx, data.Err, dur)
	t.logQuery(ctx, meta, data, dur)
}

func (t logTracer) notifyObserver(ctx context.Context, queryErr error, dur time.Duration) {
	obs := currentObserver()
	if obs == nil || dur <= 0 {
		return
	}

	method, _ := ctx.Value(httpMethodKey{}).(string)
	if method == "" {
		method = "UNKNOWN"
	}
	route := "unknown"
	if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern()
	}
	outcome := "ok"
	if queryErr != nil {
		outcome = "error"
	}
	obs.ObserveQuery(ctx, method, route, outcome, dur)
}

func (t logTracer) logQuery(ctx context.Context, meta *queryMeta, data pgx.TraceQueryEndData, dur time.Duration) {
	fields := []any{
		"db.statement", meta.sql,
		"db.args", meta.args,
		"db.duration", dur.Seconds(),
	}

	if tag := strings.TrimSpace(data.CommandTag.String()); tag != "" {
		if parts := strings.Fields(tag); len(parts) > 0 {
			fields = append(fields, "db.operation.name", strings.ToUpper(parts[0]))
		}
		fields = append(fields, "pg.command_tag", tag)
		if rows := data.CommandTag.RowsAffected(); rows >= 0 {
			fields = append(fields, "db.rows", rows)
		}
	}
	if meta.caller != "" {
		fields = append(fields, "db.caller", meta.caller)
	}
	if meta.handler != "" {
		fields = append(fields, "db.handler", meta.handler)
	}

	L := log.FromContext(ctx)
	if data.Err == nil {
		L.Info(ctx, "db query", fields...)
		return
	}

	var pgErr *pgconn.PgError
	if errors.As(data.Err, &pgErr) {
		fields = append(fields,
			"db.error_code", pgErr.Code,
			"db.error_constraint", pgErr.ConstraintName,
		)
	}
	L.Error(ctx, data.Err, "db query failed", fields...)
}

// frameNoise filters stack frames that sit between the store method issuing
// a query and the pgx machinery executing it.
func frameNoise(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(fn, "github.com/jackc/pgx/v5") ||
		strings.Contains(fn, "github.com/exaring/otelpgx") ||
		strings.Contains(fn, "logTracer.TraceQuery")
}

// attributeFrames walks the stack for the store method issuing the query
// (caller) and the first frame above it outside this package (handler,
// usually the domain service or HTTP handler).
func attributeFrames() (caller, handler string) {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])

	for {
		fr, more := frames.Next()
		if !more {
			return caller, handler
		}
		fn := fr.Function
		if frameNoise(fn) {
			continue
		}
		if caller == "" {
			caller = shortenFuncName(fn)
			continue
		}
		if strings.Contains(fn, "github.com/linnemanlabs/sentinel/internal/postgres.") {
			continue
		}
		return caller, shortenFuncName(fn)
	}
}

// shortenFuncName reduces a fully qualified function name to its receiver
// and method.
func shortenFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
