// Package metrics is a small Prometheus-text-format registry for the search
// service: counters, gauges and histograms with optional labels, exposed on
// /metrics. Labels are baked into the metric name via WithLabels, so each
// label combination is its own series.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets suit request and embedding latencies (seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks a distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value into the first bucket it fits; Render accumulates
// cumulatively.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() ([]float64, []uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := make([]uint64, len(h.counts))
	copy(c, h.counts)
	return h.buckets, c, h.sum, h.count
}

// family groups every series sharing a base name.
type family struct {
	typ    string // "counter", "gauge", "histogram"
	help   string
	series []string // full names incl. labels, insertion order
}

// Registry holds named metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	families   map[string]*family
	order      []string // base names, insertion order
}

func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		families:   make(map[string]*family),
	}
}

func (r *Registry) track(name, typ, help string) {
	base := baseName(name)
	f, ok := r.families[base]
	if !ok {
		f = &family{typ: typ, help: help}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	f.series = append(f.series, name)
}

// Counter returns (or creates) the named counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.track(name, "counter", help)
	return c
}

// Gauge returns (or creates) the named gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.track(name, "gauge", help)
	return g
}

// Histogram returns (or creates) the named histogram.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.histograms[name] = h
	r.track(name, "histogram", help)
	return h
}

// WithLabels bakes label pairs into a metric name:
// WithLabels("foo", "k", "v") => `foo{k="v"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(name string) string {
	if idx := strings.IndexByte(name, '{'); idx != -1 {
		return name[:idx]
	}
	return name
}

// innerLabels returns `k="v"` from `foo{k="v"}`, or "".
func innerLabels(name string) string {
	idx := strings.IndexByte(name, '{')
	if idx == -1 {
		return ""
	}
	return name[idx+1 : len(name)-1]
}

// Render writes the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.typ)

		series := make([]string, len(f.series))
		copy(series, f.series)
		sort.Strings(series)

		for _, name := range series {
			switch f.typ {
			case "counter":
				fmt.Fprintf(&b, "%s %d\n", name, r.counters[name].Value())
			case "gauge":
				fmt.Fprintf(&b, "%s %d\n", name, r.gauges[name].Value())
			case "histogram":
				r.renderHistogram(&b, base, name)
			}
		}
	}
	return b.String()
}

func (r *Registry) renderHistogram(b *strings.Builder, base, name string) {
	buckets, counts, sum, count := r.histograms[name].snapshot()
	labels := innerLabels(name)
	extra := ""
	wrapped := ""
	if labels != "" {
		extra = "," + labels
		wrapped = "{" + labels + "}"
	}
	cumulative := uint64(0)
	for i, bk := range buckets {
		cumulative += counts[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s} %d\n", base, bk, extra, cumulative)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, extra, count)
	fmt.Fprintf(b, "%s_sum%s %g\n", base, wrapped, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, wrapped, count)
}

// Handler serves the registry in text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
