// Package stats keeps rolling-window latency percentiles for parse and
// render calls.
package stats

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds memory under sustained load; the oldest samples go first.
const maxSamples = 10000

type sample struct {
	timestamp time.Time
	label     string
	micros    int64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Summary holds the aggregate over all samples and per label.
type Summary struct {
	Window  string              `json:"window"`
	All     Snapshot            `json:"all"`
	ByLabel map[string]Snapshot `json:"by_label"`
}

// Window tracks recent latencies within a rolling window.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one sample under label, e.g. the input format.
func (w *Window) Record(label string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.samples) >= maxSamples {
		w.samples = append(w.samples[:0], w.samples[1:]...)
	}
	w.samples = append(w.samples, sample{
		timestamp: now,
		label:     label,
		micros:    d.Microseconds(),
	})
}

func (w *Window) Snapshot() Summary {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	out := Summary{Window: w.maxAge.String(), ByLabel: map[string]Snapshot{}}
	if len(w.samples) == 0 {
		return out
	}

	all := make([]int64, 0, len(w.samples))
	byLabel := map[string][]int64{}
	for _, sm := range w.samples {
		all = append(all, sm.micros)
		byLabel[sm.label] = append(byLabel[sm.label], sm.micros)
	}
	out.All = aggregate(all)
	for label, values := range byLabel {
		out.ByLabel[label] = aggregate(values)
	}
	return out
}

func aggregate(values []int64) Snapshot {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	var sum int64
	for _, v := range values {
		sum += v
	}
	return Snapshot{
		Count: len(values),
		MinMs: ms(float64(values[0])),
		MaxMs: ms(float64(values[len(values)-1])),
		AvgMs: ms(float64(sum) / float64(len(values))),
		P50Ms: ms(percentile(values, 50)),
		P95Ms: ms(percentile(values, 95)),
		P99Ms: ms(percentile(values, 99)),
	}
}

func ms(micros float64) float64 {
	return micros / 1000
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	writeIdx := 0
	for _, sm := range w.samples {
		if !sm.timestamp.Before(cutoff) {
			w.samples[writeIdx] = sm
			writeIdx++
		}
	}
	w.samples = w.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
