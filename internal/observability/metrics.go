package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// LLM call outcomes.
const (
	LLMAccepted    = "accepted"
	LLMRejected    = "rejected"
	LLMError       = "error"
	LLMTimeout     = "timeout"
	LLMUnavailable = "unavailable"
)

// Metrics holds the Prometheus collectors of the parser and a mirror of the
// counters in plain atomics so callers can read them without scraping.
//
// Metrics:
//   - eventsense_parse_total{path} - parses by terminal parsing path
//   - eventsense_parse_duration_seconds - end to end parse latency
//   - eventsense_cache_lookups_total{result} - hit, miss or error
//   - eventsense_llm_calls_total{outcome} - accepted, rejected, error, timeout, unavailable
//   - eventsense_field_timeouts_total{field} - field extractors that ran out of budget
type Metrics struct {
	ParseTotal     *prometheus.CounterVec
	ParseDuration  prometheus.Histogram
	CacheLookups   *prometheus.CounterVec
	LLMCalls       *prometheus.CounterVec
	FieldTimeouts  *prometheus.CounterVec
	registry       *prometheus.Registry
	parses         atomic.Int64
	mu             sync.Mutex
	byPath         map[string]int64
	byCacheResult  map[string]int64
	byLLMOutcome   map[string]int64
	byFieldTimeout map[string]int64
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ParseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventsense_parse_total",
				Help: "Total number of parse requests by terminal parsing path",
			},
			[]string{"path"},
		),
		ParseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventsense_parse_duration_seconds",
				Help:    "Duration of parse requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventsense_cache_lookups_total",
				Help: "Total number of parsed-event cache lookups",
			},
			[]string{"result"},
		),
		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventsense_llm_calls_total",
				Help: "Total number of LLM fallback calls by outcome",
			},
			[]string{"outcome"},
		),
		FieldTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventsense_field_timeouts_total",
				Help: "Total number of field extractions that exceeded their budget",
			},
			[]string{"field"},
		),
		registry:       prometheus.NewRegistry(),
		byPath:         make(map[string]int64),
		byCacheResult:  make(map[string]int64),
		byLLMOutcome:   make(map[string]int64),
		byFieldTimeout: make(map[string]int64),
	}
	m.registry.MustRegister(m.ParseTotal, m.ParseDuration, m.CacheLookups, m.LLMCalls, m.FieldTimeouts)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordParse records a finished parse.
func (m *Metrics) RecordParse(path string, d time.Duration) {
	m.ParseTotal.WithLabelValues(path).Inc()
	m.ParseDuration.Observe(d.Seconds())
	m.parses.Add(1)
	m.mu.Lock()
	m.byPath[path]++
	m.mu.Unlock()
}

// RecordCacheLookup records a cache lookup result.
func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
	m.mu.Lock()
	m.byCacheResult[result]++
	m.mu.Unlock()
}

// RecordLLMCall records an LLM call outcome.
func (m *Metrics) RecordLLMCall(outcome string) {
	m.LLMCalls.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.byLLMOutcome[outcome]++
	m.mu.Unlock()
}

// RecordFieldTimeout records a field extractor that ran out of budget.
func (m *Metrics) RecordFieldTimeout(field string) {
	m.FieldTimeouts.WithLabelValues(field).Inc()
	m.mu.Lock()
	m.byFieldTimeout[field]++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Parses        int64            `json:"parses"`
	ByPath        map[string]int64 `json:"by_path"`
	CacheLookups  map[string]int64 `json:"cache_lookups"`
	LLMCalls      map[string]int64 `json:"llm_calls"`
	FieldTimeouts map[string]int64 `json:"field_timeouts"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Parses:        m.parses.Load(),
		ByPath:        copyCounts(m.byPath),
		CacheLookups:  copyCounts(m.byCacheResult),
		LLMCalls:      copyCounts(m.byLLMOutcome),
		FieldTimeouts: copyCounts(m.byFieldTimeout),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
