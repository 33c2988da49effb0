package cache

import (
	"errors"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation results recorded by Instrumented.
const (
	ResultHit        = "hit"
	ResultMiss       = "miss"
	ResultOK         = "ok"
	ResultFail       = "fail"
	ResultInvalidKey = "invalid_key"
)

// Metrics holds the collectors shared by every Instrumented cache registered
// on the same registry.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the cache collectors and registers them on reg. When the
// collectors already exist on reg, the registered ones are returned instead.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvcache",
			Name:      "operations_total",
			Help:      "Cache operations by engine, operation and result.",
		}, []string{"engine", "op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvcache",
			Name:      "operation_duration_seconds",
			Help:      "Cache operation latency by engine and operation.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"engine", "op"}),
	}
	if reg == nil {
		return m
	}
	m.Operations = register(reg, m.Operations)
	m.Duration = register(reg, m.Duration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Instrumented wraps a Cache and records every call in prometheus metrics.
// It does not change the wrapped cache's behavior.
type Instrumented[V any] struct {
	next    Cache[V]
	engine  string
	metrics *Metrics
}

var _ Cache[any] = (*Instrumented[any])(nil)

// NewInstrumented wraps next, labelling its metrics with engine.
func NewInstrumented[V any](next Cache[V], engine string, m *Metrics) *Instrumented[V] {
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Instrumented[V]{next: next, engine: engine, metrics: m}
}

// Unwrap returns the wrapped cache.
func (c *Instrumented[V]) Unwrap() Cache[V] { return c.next }

func (c *Instrumented[V]) observe(op string, start time.Time, result string) {
	c.metrics.Operations.WithLabelValues(c.engine, op, result).Inc()
	c.metrics.Duration.WithLabelValues(c.engine, op).Observe(time.Since(start).Seconds())
}

func boolResult(ok bool, err error) string {
	switch {
	case err != nil:
		return ResultInvalidKey
	case ok:
		return ResultOK
	default:
		return ResultFail
	}
}

// Get forwards to the wrapped cache and records the call.
func (c *Instrumented[V]) Get(key string, def V) (V, error) {
	start := time.Now()
	v, err := c.next.Get(key, def)
	result := ResultOK
	if err != nil {
		result = ResultInvalidKey
	}
	c.observe("get", start, result)
	return v, err
}

// Set forwards to the wrapped cache and records the outcome.
func (c *Instrumented[V]) Set(key string, value V, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.next.Set(key, value, ttl)
	c.observe("set", start, boolResult(ok, err))
	return ok, err
}

// Delete forwards to the wrapped cache and records the outcome.
func (c *Instrumented[V]) Delete(key string) (bool, error) {
	start := time.Now()
	ok, err := c.next.Delete(key)
	c.observe("delete", start, boolResult(ok, err))
	return ok, err
}

// Clear forwards to the wrapped cache and records the outcome.
func (c *Instrumented[V]) Clear() bool {
	start := time.Now()
	ok := c.next.Clear()
	c.observe("clear", start, boolResult(ok, nil))
	return ok
}

// Has forwards to the wrapped cache and records a hit or a miss.
func (c *Instrumented[V]) Has(key string) (bool, error) {
	start := time.Now()
	ok, err := c.next.Has(key)
	result := ResultMiss
	switch {
	case err != nil:
		result = ResultInvalidKey
	case ok:
		result = ResultHit
	}
	c.observe("has", start, result)
	return ok, err
}

// GetMultiple records the validation outcome only; the per-key reads happen
// later, while the caller ranges over the sequence.
func (c *Instrumented[V]) GetMultiple(keys []string, def V) (iter.Seq2[string, V], error) {
	start := time.Now()
	seq, err := c.next.GetMultiple(keys, def)
	result := ResultOK
	if err != nil {
		result = ResultInvalidKey
	}
	c.observe("get_multiple", start, result)
	return seq, err
}

// SetMultiple forwards to the wrapped cache and records the outcome.
func (c *Instrumented[V]) SetMultiple(values *Values[V], ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.next.SetMultiple(values, ttl)
	c.observe("set_multiple", start, boolResult(ok, err))
	return ok, err
}

// DeleteMultiple forwards to the wrapped cache and records the outcome.
func (c *Instrumented[V]) DeleteMultiple(keys []string) (bool, error) {
	start := time.Now()
	ok, err := c.next.DeleteMultiple(keys)
	c.observe("delete_multiple", start, boolResult(ok, err))
	return ok, err
}
