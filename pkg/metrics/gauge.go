package metrics

import (
	"math"
	"sync/atomic"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Gauge is an instantaneous integer value. The zero value is ready to use.
type Gauge struct {
	v atomic.Int64
}

func (g *Gauge) Set(v int64) {
	g.v.Store(v)
}

func (g *Gauge) Inc() {
	g.v.Add(1)
}

func (g *Gauge) Dec() {
	g.v.Add(-1)
}

func (g *Gauge) Add(delta int64) {
	g.v.Add(delta)
}

func (g *Gauge) Get() int64 {
	return g.v.Load()
}

func (g *Gauge) Encode(enc encoding.MetricEncoder) error {
	return enc.EncodeGaugeInt64(g.Get())
}

func (g *Gauge) MetricType() encoding.MetricType {
	return encoding.MetricTypeGauge
}

// FloatGauge is an instantaneous float value. The zero value is ready to
// use.
type FloatGauge struct {
	bits atomic.Uint64
}

func (g *FloatGauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

func (g *FloatGauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (g *FloatGauge) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

func (g *FloatGauge) Encode(enc encoding.MetricEncoder) error {
	return enc.EncodeGaugeFloat64(g.Get())
}

func (g *FloatGauge) MetricType() encoding.MetricType {
	return encoding.MetricTypeGauge
}
