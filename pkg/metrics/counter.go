// Package metrics provides the concrete metric types that can be registered
// and encoded: counters, gauges, histograms, info metrics, and families of
// any of them keyed by label sets. Update paths use atomics where the value
// domain allows it; Encode reads a consistent snapshot per metric.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Counter is a monotonically increasing integer counter. The zero value is
// ready to use.
type Counter struct {
	v atomic.Uint64
}

func (c *Counter) Inc() {
	c.v.Add(1)
}

func (c *Counter) Add(delta uint64) {
	c.v.Add(delta)
}

func (c *Counter) Get() uint64 {
	return c.v.Load()
}

func (c *Counter) Encode(enc encoding.MetricEncoder) error {
	return enc.EncodeCounterUint64(c.Get(), nil)
}

func (c *Counter) MetricType() encoding.MetricType {
	return encoding.MetricTypeCounter
}

// FloatCounter is a monotonically increasing float counter. The zero value
// is ready to use.
type FloatCounter struct {
	bits atomic.Uint64
}

func (c *FloatCounter) Inc() {
	c.Add(1)
}

func (c *FloatCounter) Add(delta float64) {
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (c *FloatCounter) Get() float64 {
	return math.Float64frombits(c.bits.Load())
}

func (c *FloatCounter) Encode(enc encoding.MetricEncoder) error {
	return enc.EncodeCounterFloat64(c.Get(), nil)
}

func (c *FloatCounter) MetricType() encoding.MetricType {
	return encoding.MetricTypeCounter
}

// CounterWithExemplar is a float counter that keeps the most recent exemplar
// alongside its total. At most one exemplar is attached per encode.
type CounterWithExemplar struct {
	mu       sync.RWMutex
	counter  FloatCounter
	exemplar *encoding.Exemplar[float64]
}

func (c *CounterWithExemplar) Inc() {
	c.counter.Inc()
}

func (c *CounterWithExemplar) Add(delta float64) {
	c.counter.Add(delta)
}

// AddWithExemplar increments the counter and replaces the stored exemplar
// with one carrying the given labels and this observation's value.
func (c *CounterWithExemplar) AddWithExemplar(delta float64, labels encoding.EncodeLabelSet) {
	c.mu.Lock()
	c.counter.Add(delta)
	c.exemplar = &encoding.Exemplar[float64]{Labels: labels, Value: delta}
	c.mu.Unlock()
}

func (c *CounterWithExemplar) Get() float64 {
	return c.counter.Get()
}

func (c *CounterWithExemplar) Encode(enc encoding.MetricEncoder) error {
	c.mu.RLock()
	v, exemplar := c.counter.Get(), c.exemplar
	c.mu.RUnlock()
	return enc.EncodeCounterFloat64(v, exemplar)
}

func (c *CounterWithExemplar) MetricType() encoding.MetricType {
	return encoding.MetricTypeCounter
}
