package metrics

import (
	"fmt"
	"math"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Quantile estimates the value at quantile q (0 to 1) from cumulative
// buckets, interpolating linearly within the bucket the quantile falls in.
// For the +Inf bucket the lower bound is returned, since no upper edge
// exists to interpolate toward.
func Quantile(buckets []encoding.Bucket, q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile must be between 0 and 1, got %g", q)
	}
	if len(buckets) == 0 {
		return 0, fmt.Errorf("no buckets")
	}

	total := buckets[len(buckets)-1].CumulativeCount
	if total == 0 {
		return 0, fmt.Errorf("total count is zero")
	}

	target := float64(total) * q
	previousBound := 0.0
	var previousCount uint64
	for _, bucket := range buckets {
		if float64(bucket.CumulativeCount) >= target {
			inBucket := bucket.CumulativeCount - previousCount
			if inBucket == 0 {
				return bucket.UpperBound, nil
			}
			if math.IsInf(bucket.UpperBound, +1) {
				return previousBound, nil
			}
			fraction := (target - float64(previousCount)) / float64(inBucket)
			return previousBound + fraction*(bucket.UpperBound-previousBound), nil
		}
		previousBound = bucket.UpperBound
		previousCount = bucket.CumulativeCount
	}

	return previousBound, nil
}

// Quantiles estimates several quantiles against the same buckets.
func Quantiles(buckets []encoding.Bucket, qs []float64) (map[float64]float64, error) {
	results := make(map[float64]float64, len(qs))
	for _, q := range qs {
		v, err := Quantile(buckets, q)
		if err != nil {
			return nil, fmt.Errorf("quantile %g: %w", q, err)
		}
		results[q] = v
	}
	return results, nil
}
