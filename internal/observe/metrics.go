// Package observe provides application-wide observability primitives for
// Fabula: OpenTelemetry metrics, tracing helpers, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Story store ---

	// LoadDuration tracks the latency of a full story load (fetch + parse +
	// validate). Use with attribute.String("status", "ok"|"error").
	LoadDuration metric.Float64Histogram

	// StoryLoads counts completed store loads. Use with attributes:
	//   attribute.String("status", "ok"|"error")
	StoryLoads metric.Int64Counter

	// CacheHits counts loads answered from the story cache without a fetch.
	CacheHits metric.Int64Counter

	// ValidationFailures counts stories rejected at validation. Use with
	// attribute:
	//   attribute.String("rule", ...)
	ValidationFailures metric.Int64Counter

	// --- Navigation ---

	// SessionsStarted counts playthroughs started or restarted. Use with
	// attribute:
	//   attribute.String("story_id", ...)
	SessionsStarted metric.Int64Counter

	// ActiveSessions tracks the number of live playthroughs.
	ActiveSessions metric.Int64UpDownCounter

	// SceneTransitions counts successful scene changes (choices and jumps).
	SceneTransitions metric.Int64Counter

	// EndingsReached counts terminal scenes reached. Use with attribute:
	//   attribute.String("ending_type", ...)
	EndingsReached metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// loadBuckets defines histogram bucket boundaries (in seconds) sized for
// story loads, which are small-file or single-row fetches.
var loadBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(scopeName)
	var err error
	met := &Metrics{}

	if met.LoadDuration, err = m.Float64Histogram("fabula.store.load.duration",
		metric.WithDescription("Latency of story loads (fetch + parse + validate)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(loadBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoryLoads, err = m.Int64Counter("fabula.store.loads",
		metric.WithDescription("Total story loads by status."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("fabula.store.cache_hits",
		metric.WithDescription("Story loads answered from the cache."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("fabula.store.validation_failures",
		metric.WithDescription("Stories rejected at validation by rule."),
	); err != nil {
		return nil, err
	}

	if met.SessionsStarted, err = m.Int64Counter("fabula.nav.sessions_started",
		metric.WithDescription("Playthroughs started or restarted by story."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("fabula.nav.active_sessions",
		metric.WithDescription("Number of live playthroughs."),
	); err != nil {
		return nil, err
	}
	if met.SceneTransitions, err = m.Int64Counter("fabula.nav.scene_transitions",
		metric.WithDescription("Successful scene transitions."),
	); err != nil {
		return nil, err
	}
	if met.EndingsReached, err = m.Int64Counter("fabula.nav.endings_reached",
		metric.WithDescription("Terminal scenes reached by ending type."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("fabula.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLoad records a completed store load: its duration and the loads
// counter, both tagged with status "ok" or "error". Nil-safe so callers can
// run without metrics wired.
func (m *Metrics) RecordLoad(ctx context.Context, seconds float64, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.LoadDuration.Record(ctx, seconds, attrs)
	m.StoryLoads.Add(ctx, 1, attrs)
}

// RecordCacheHit records a load answered from the cache. Nil-safe.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

// RecordValidationFailure records a story rejected at validation. Nil-safe.
func (m *Metrics) RecordValidationFailure(ctx context.Context, rule string) {
	if m == nil {
		return
	}
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rule", rule)),
	)
}

// RecordSessionStarted records a started or restarted playthrough. Nil-safe.
func (m *Metrics) RecordSessionStarted(ctx context.Context, storyID string) {
	if m == nil {
		return
	}
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("story_id", storyID)),
	)
}

// RecordTransition records a successful scene transition, and an ending
// counter increment when the destination is terminal. Nil-safe.
func (m *Metrics) RecordTransition(ctx context.Context, endingType string, terminal bool) {
	if m == nil {
		return
	}
	m.SceneTransitions.Add(ctx, 1)
	if terminal {
		m.EndingsReached.Add(ctx, 1,
			metric.WithAttributes(attribute.String("ending_type", endingType)),
		)
	}
}

// AddActiveSessions adjusts the live playthrough gauge by delta. Nil-safe.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
