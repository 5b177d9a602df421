// Sentinel is an incident risk-analysis and early-warning service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/prof"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/health"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/sentinel/internal/alerting"
	"github.com/linnemanlabs/sentinel/internal/api"
	"github.com/linnemanlabs/sentinel/internal/audit"
	"github.com/linnemanlabs/sentinel/internal/authmw"
	"github.com/linnemanlabs/sentinel/internal/broadcast"
	sc "github.com/linnemanlabs/sentinel/internal/cfg"
	"github.com/linnemanlabs/sentinel/internal/llm/claude"
	"github.com/linnemanlabs/sentinel/internal/notify"
	"github.com/linnemanlabs/sentinel/internal/notify/push"
	"github.com/linnemanlabs/sentinel/internal/postgres"
	"github.com/linnemanlabs/sentinel/internal/review"
	"github.com/linnemanlabs/sentinel/internal/risk"
	"github.com/linnemanlabs/sentinel/internal/storage/memstore"
	"github.com/linnemanlabs/sentinel/internal/storage/pgstore"
)

const appName = "sentinel"
const component = "server"

// store is the full persistence surface the service wires together. Both
// memstore.Store and pgstore.Store satisfy it.
type store interface {
	risk.DataSource
	risk.Store
	alerting.Store
	notify.Store
	notify.Directory
	review.Store
	audit.Sink
	api.IngestStore
	api.RuleStore
	api.NotificationReader
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	// Every subsystem config registers its own flags; env vars with the
	// SENTINEL_ prefix fill in anything not set on the command line.
	var (
		appCfg    sc.Config
		httpCfg   httpserver.Config
		httpmwCfg httpmw.Config
		logCfg    log.Config
		opsCfg    opshttp.Config
		profCfg   prof.Config
		traceCfg  otelx.Config
	)
	type flagConfig interface {
		RegisterFlags(*flag.FlagSet)
		Validate() error
	}
	configs := []flagConfig{&appCfg, &httpCfg, &httpmwCfg, &logCfg, &opsCfg, &profCfg, &traceCfg}
	for _, c := range configs {
		c.RegisterFlags(flag.CommandLine)
	}
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		dirty := vi.VCSDirty != nil && *vi.VCSDirty
		fmt.Printf("%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate,
			vi.BuildId, vi.BuildDate, vi.GoVersion, dirty)
		return nil
	}

	cfg.FillFromEnv(flag.CommandLine, "SENTINEL_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	var cfgErrs []error
	for _, c := range configs {
		cfgErrs = append(cfgErrs, c.Validate())
	}
	if err := errors.Join(cfgErrs...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// cross-cutting checks that only main can validate
	if appCfg.APIPort == opsCfg.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", appCfg.APIPort)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	// Sync is a no-op on the stderr backend but keeps shutdown correct if
	// the backend ever buffers.
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit, "commit_date", vi.CommitDate,
		"build_id", vi.BuildId, "build_date", vi.BuildDate,
		"go_version", vi.GoVersion, "vcs_dirty", vi.VCSDirty,
		"http_port", appCfg.APIPort, "admin_port", opsCfg.Port,
		"enable_pprof", opsCfg.EnablePprof,
		"enable_pyroscope", profCfg.EnablePyroscope,
		"enable_tracing", traceCfg.EnableTracing,
		"trace_sample", traceCfg.TraceSample, "trace_insecure", traceCfg.Insecure,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
		"pyro_server", profCfg.PyroServer, "pyro_tenant", profCfg.PyroTenantID,
		"include_error_links", logCfg.IncludeErrorLinks, "max_error_links", logCfg.MaxErrorLinks,
		"trusted_proxy_hops", httpmwCfg.TrustedProxyHops,
	)

	// Profiling starts before anything else so the whole lifetime is covered.
	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
		"source":    "lmlabs-go-agent",
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		// tracing is optional, run without it
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(profErr == nil && profCfg.EnablePyroscope)

	// Initialize the store
	var st store
	if appCfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, appCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		pgStore, err := pgstore.New(ctx, pool)
		if err != nil {
			return fmt.Errorf("pgstore init: %w", err)
		}
		st = pgStore
		L.Info(ctx, "using postgres store")
	} else {
		st = memstore.New()
		L.Info(ctx, "using in-memory store (no database-url configured)")
	}

	// Register per-query DB duration histogram and wire the observer.
	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "outcome"})
	m.Registry().MustRegister(dbQueryDuration)

	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, method, route, outcome string, dur time.Duration) {
			dbQueryDuration.WithLabelValues(method, route, outcome).Observe(dur.Seconds())
		},
	))

	// Subsystem metrics live on the shared Prometheus registry.
	riskMetrics := risk.NewMetrics(m.Registry())
	notifyMetrics := notify.NewMetrics(m.Registry())
	reviewMetrics := review.NewMetrics(m.Registry())

	// Compose the scorer: heuristics always work; Claude, when configured,
	// is primary with heuristic fallback on any failure.
	heuristic := risk.NewHeuristicScorer()
	var scorer risk.Scorer = heuristic
	if appCfg.ClaudeAPIKey != "" {
		provider := claude.New(appCfg.ClaudeAPIKey, appCfg.ClaudeModel)
		llm := risk.NewLLMScorer(provider, risk.DefaultLLMTimeout)
		scorer = risk.NewFallbackScorer(llm, heuristic, L, riskMetrics.IncFallback)
		L.Info(ctx, "initialized LLM provider", "provider", "claude", "model", appCfg.ClaudeModel)
	} else {
		L.Info(ctx, "no claude-api-key configured, using heuristic scoring only")
	}

	analyzer := risk.NewAnalyzer(st, st, scorer, L, riskMetrics)
	alertGen := alerting.NewGenerator(st, L)

	var pusher notify.Pusher
	if appCfg.PushWebhookURL != "" {
		pusher = push.New(appCfg.PushWebhookURL)
		L.Info(ctx, "push sink enabled")
	}
	engine := notify.NewEngine(st, st, pusher, L, notifyMetrics)

	audits := audit.NewLogger(st, L)
	reviews := review.NewService(st, audits, L, reviewMetrics)

	hub := broadcast.NewHub()
	defer hub.Close()

	adminToken := appCfg.AdminToken
	if adminToken == "" {
		adminToken = appCfg.APIToken
	}

	apiHTTP := api.New(api.Options{
		Logger:   L,
		Reviews:  reviews,
		Analyzer: analyzer,
		Alerts:   alertGen,
		Notifier: engine,
		Ingest:   st,
		Rules:    st,
		Inbox:    st,
		Hub:      hub,
		Auth:     authmw.BearerToken(appCfg.APIToken, adminToken),
		Admin:    authmw.ElevatedBearerToken([]string{adminToken}, []string{appCfg.APIToken}),
	})

	// The readiness probe flips to failing during shutdown so the load
	// balancer drains traffic before the listeners close.
	var shutdownGate health.ShutdownGate
	readiness := health.All(shutdownGate.Probe())
	liveness := health.Fixed(true, "")

	// Ops listener serves metrics, health and pprof on the admin port only.
	opsOpts := opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}
	defer func() {
		err := opsHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop ops http listener")
		}
	}()

	r := chi.NewRouter()

	// All responses are JSON
	r.Use(middleware.Compress(5, "application/json"))

	// Stamps http.route from the chi pattern onto the request logger and span
	r.Use(httpmw.AnnotateHTTPRoute)

	// Stash HTTP method and per-request DB stats in context; the query
	// tracer fills the stats and labels metrics with the method.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := postgres.WithHTTPMethod(req.Context(), req.Method)
			ctx = postgres.NewReqDBStatsContext(ctx)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Use(httpmw.AccessLog())

	// 64KB covers the largest batch-review payloads, anything bigger gets 413
	r.Use(httpmw.MaxBody(1024 * 64))

	r.Get("/-/healthy", health.HealthzHandler(liveness))
	r.Get("/-/ready", health.ReadyzHandler(readiness))

	apiHTTP.RegisterRoutes(r)

	// Wrappers below run outermost-first on the request, so the router sits
	// at the bottom with the richest context.
	var h http.Handler = r

	// Innermost so the request logger carries trace_id and the chi route
	h = httpmw.WithLogger(L)(h)

	// Echo trace/span ids to the client when a trace is recording
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(h, "http.server",
		// health probes are noise in traces
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
		}),
		// provisional name, AnnotateHTTPRoute renames to the route pattern
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	h = m.Middleware(h)

	// Resolved client IP must be in place before anything downstream logs it
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{
		TrustedHops: httpmwCfg.TrustedProxyHops,
	})(h)

	h = httpmw.RequestID("X-Request-Id")(h)

	// Catches panics from the entire stack and serves a 500
	h = httpmw.Recover(L, nil)(h)

	h = httpmw.SecurityHeaders(h)

	apiOpts, err := httpCfg.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}

	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		return err
	}
	defer func() {
		err := apiHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop api http listener")
		}
	}()

	if err := notifySystemd(); err != nil {
		// not fatal, systemd falls back to its own timeout handling
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	// Fail readiness first so the load balancer stops routing here, then
	// hold for the drain window before closing listeners. A second signal
	// cuts the drain short.
	shutdownGate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	drainDuration := time.Duration(appCfg.DrainSeconds) * time.Second
	L.Info(context.Background(), "sleeping for drain period", "drain_seconds", appCfg.DrainSeconds)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainDuration):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	// SSE subscribers hold the hub open; closing it first lets the http
	// server shutdown finish instead of waiting on event streams.
	hub.Close()

	// Each component gets an equal slice of the total shutdown budget.
	// stopProf is synchronous and runs after, outside the budget.
	stops := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"api http server", apiHTTPStop},
		{"ops http server", opsHTTPStop},
		{"otel", shutdownOtelx},
	}

	budget := time.Duration(appCfg.ShutdownBudgetSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	slice := budget / time.Duration(len(stops))

	for _, s := range stops {
		stopCtx, stopCancel := context.WithTimeout(shutdownCtx, slice)
		if err := s.fn(stopCtx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		stopCancel()
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	return nil
}

// notifySystemd sends READY=1 over the NOTIFY_SOCKET datagram socket when
// running under systemd with Type=notify.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // G704: addr comes from systemd, and unixgram has no context dial
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
