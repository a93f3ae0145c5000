package metrics_test

import (
	"math"
	"testing"

	"github.com/kloudmate/openmetrics/pkg/encoding"
	"github.com/kloudmate/openmetrics/pkg/metrics"
)

func TestHistogramObserve(t *testing.T) {
	tests := []struct {
		name         string
		bounds       []float64
		observations []float64
		wantSum      float64
		wantCount    uint64
		wantBuckets  []encoding.Bucket
	}{
		{
			name:         "values across buckets",
			bounds:       []float64{1, 2},
			observations: []float64{0.5, 1.5, 10},
			wantSum:      12,
			wantCount:    3,
			wantBuckets: []encoding.Bucket{
				{UpperBound: 1, CumulativeCount: 1},
				{UpperBound: 2, CumulativeCount: 2},
				{UpperBound: math.Inf(+1), CumulativeCount: 3},
			},
		},
		{
			name:         "boundary value lands in its bucket",
			bounds:       []float64{1, 2},
			observations: []float64{1},
			wantSum:      1,
			wantCount:    1,
			wantBuckets: []encoding.Bucket{
				{UpperBound: 1, CumulativeCount: 1},
				{UpperBound: 2, CumulativeCount: 1},
				{UpperBound: math.Inf(+1), CumulativeCount: 1},
			},
		},
		{
			name:         "no bounds still counts",
			bounds:       nil,
			observations: []float64{3, 4},
			wantSum:      7,
			wantCount:    2,
			wantBuckets: []encoding.Bucket{
				{UpperBound: math.Inf(+1), CumulativeCount: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := metrics.NewHistogram(tt.bounds)
			for _, v := range tt.observations {
				h.Observe(v)
			}
			sum, count, buckets := h.Snapshot()
			if sum != tt.wantSum {
				t.Errorf("expected sum %v, got %v", tt.wantSum, sum)
			}
			if count != tt.wantCount {
				t.Errorf("expected count %d, got %d", tt.wantCount, count)
			}
			if len(buckets) != len(tt.wantBuckets) {
				t.Fatalf("expected %d buckets, got %d", len(tt.wantBuckets), len(buckets))
			}
			for i := range buckets {
				if buckets[i] != tt.wantBuckets[i] {
					t.Errorf("bucket %d: expected %+v, got %+v", i, tt.wantBuckets[i], buckets[i])
				}
			}
		})
	}
}

func TestHistogramObserveNaN(t *testing.T) {
	h := metrics.NewHistogram([]float64{1, 2})
	h.Observe(math.NaN())
	h.Observe(0.5)

	sum, count, buckets := h.Snapshot()
	if !math.IsNaN(sum) {
		t.Errorf("expected NaN sum, got %v", sum)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	if got := buckets[len(buckets)-1].CumulativeCount; got != 2 {
		t.Errorf("expected NaN counted under +Inf, got cumulative count %d", got)
	}
	if got := buckets[0].CumulativeCount; got != 1 {
		t.Errorf("expected only the finite observation in the first bucket, got %d", got)
	}

	he := metrics.NewHistogramWithExemplars([]float64{1})
	he.ObserveWithExemplar(math.NaN(), encoding.Labels{{Name: "trace_id", Value: "abc"}})
}

func TestExponentialBuckets(t *testing.T) {
	got := metrics.ExponentialBuckets(1, 2, 4)
	want := []float64{1, 2, 4, 8}
	if len(got) != len(want) {
		t.Fatalf("expected %d bounds, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bound %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestLinearBuckets(t *testing.T) {
	got := metrics.LinearBuckets(0.5, 0.25, 3)
	want := []float64{0.5, 0.75, 1.0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bound %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
