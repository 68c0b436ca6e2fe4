// Package metrics collects request latency observations from the client and
// aggregates them into per-route and overall percentile statistics.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histograms track microseconds from 1us to 60s at 3 significant figures.
const (
	histogramMin    = 1
	histogramMax    = 60_000_000
	histogramSigFig = 3
)

// Recorder accumulates request durations. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	overall *hdrhistogram.Histogram
	routes  map[string]*hdrhistogram.Histogram
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		overall: hdrhistogram.New(histogramMin, histogramMax, histogramSigFig),
		routes:  make(map[string]*hdrhistogram.Histogram),
	}
}

// Record adds one observation for a route, typically "METHOD /path".
func (r *Recorder) Record(route string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.overall.RecordValue(d.Microseconds())

	h, ok := r.routes[route]
	if !ok {
		h = hdrhistogram.New(histogramMin, histogramMax, histogramSigFig)
		r.routes[route] = h
	}
	_ = h.RecordValue(d.Microseconds())
}

// Stats summarizes one histogram.
type Stats struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// Snapshot is a point-in-time aggregation of all recorded durations.
type Snapshot struct {
	Overall Stats
	Routes  map[string]Stats
}

// Snapshot aggregates everything recorded so far.
func (r *Recorder) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &Snapshot{
		Overall: statsFrom(r.overall),
		Routes:  make(map[string]Stats, len(r.routes)),
	}
	for route, h := range r.routes {
		snap.Routes[route] = statsFrom(h)
	}
	return snap
}

// RouteNames returns the recorded routes in sorted order.
func (s *Snapshot) RouteNames() []string {
	names := make([]string, 0, len(s.Routes))
	for name := range s.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func statsFrom(h *hdrhistogram.Histogram) Stats {
	if h.TotalCount() == 0 {
		return Stats{}
	}
	return Stats{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}
