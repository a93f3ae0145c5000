package metrics

import (
	"math"
	"sort"
	"sync"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Histogram accumulates observations into fixed buckets. A trailing +Inf
// bound is appended at construction if the given bounds lack one, so every
// observation lands in some bucket.
type Histogram struct {
	mu     sync.Mutex
	sum    float64
	count  uint64
	bounds []float64
	counts []uint64
}

func NewHistogram(upperBounds []float64) *Histogram {
	bounds := append([]float64(nil), upperBounds...)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], +1) {
		bounds = append(bounds, math.Inf(+1))
	}
	return &Histogram{
		bounds: bounds,
		counts: make([]uint64, len(bounds)),
	}
}

func (h *Histogram) Observe(v float64) {
	h.observe(v)
}

// observe returns the index of the bucket the observation landed in.
func (h *Histogram) observe(v float64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	idx := sort.SearchFloat64s(h.bounds, v)
	if idx == len(h.counts) {
		// NaN compares false against every bound; count it under +Inf.
		idx--
	}
	h.counts[idx]++
	return idx
}

// Snapshot returns the sum, total count and cumulative buckets at one
// consistent point in time.
func (h *Histogram) Snapshot() (sum float64, count uint64, buckets []encoding.Bucket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buckets = make([]encoding.Bucket, len(h.bounds))
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += h.counts[i]
		buckets[i] = encoding.Bucket{UpperBound: bound, CumulativeCount: cumulative}
	}
	return h.sum, h.count, buckets
}

func (h *Histogram) Encode(enc encoding.MetricEncoder) error {
	sum, count, buckets := h.Snapshot()
	return enc.EncodeHistogram(sum, count, buckets, nil)
}

func (h *Histogram) MetricType() encoding.MetricType {
	return encoding.MetricTypeHistogram
}

// HistogramWithExemplars keeps at most one exemplar per bucket index next to
// the histogram itself.
type HistogramWithExemplars struct {
	hist *Histogram

	mu        sync.RWMutex
	exemplars map[int]*encoding.Exemplar[float64]
}

func NewHistogramWithExemplars(upperBounds []float64) *HistogramWithExemplars {
	return &HistogramWithExemplars{
		hist:      NewHistogram(upperBounds),
		exemplars: make(map[int]*encoding.Exemplar[float64]),
	}
}

func (h *HistogramWithExemplars) Observe(v float64) {
	h.hist.Observe(v)
}

// ObserveWithExemplar records the observation and stores an exemplar with
// the given labels at the bucket the observation landed in, replacing any
// previous exemplar of that bucket.
func (h *HistogramWithExemplars) ObserveWithExemplar(v float64, labels encoding.EncodeLabelSet) {
	idx := h.hist.observe(v)
	h.mu.Lock()
	h.exemplars[idx] = &encoding.Exemplar[float64]{Labels: labels, Value: v}
	h.mu.Unlock()
}

func (h *HistogramWithExemplars) Encode(enc encoding.MetricEncoder) error {
	sum, count, buckets := h.hist.Snapshot()
	h.mu.RLock()
	exemplars := make(map[int]*encoding.Exemplar[float64], len(h.exemplars))
	for i, ex := range h.exemplars {
		exemplars[i] = ex
	}
	h.mu.RUnlock()
	return enc.EncodeHistogram(sum, count, buckets, exemplars)
}

func (h *HistogramWithExemplars) MetricType() encoding.MetricType {
	return encoding.MetricTypeHistogram
}

// ExponentialBuckets returns count upper bounds starting at start, each
// factor times the previous.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	bounds := make([]float64, 0, count)
	bound := start
	for i := 0; i < count; i++ {
		bounds = append(bounds, bound)
		bound *= factor
	}
	return bounds
}

// LinearBuckets returns count upper bounds starting at start, spaced width
// apart.
func LinearBuckets(start, width float64, count int) []float64 {
	bounds := make([]float64, 0, count)
	bound := start
	for i := 0; i < count; i++ {
		bounds = append(bounds, bound)
		bound += width
	}
	return bounds
}
