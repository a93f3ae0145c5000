package metrics

import (
	"sync"

	"github.com/kloudmate/openmetrics/internal/labelhash"
	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Family is one logical metric split by label combination: many instances
// of M under one registered name. Lookup is by label-set fingerprint, with
// hash buckets resolving collisions on the canonical string. Encoding walks
// combinations in creation order.
type Family[S encoding.EncodeLabelSet, M encoding.EncodeMetric] struct {
	newMetric func() M
	mtype     encoding.MetricType

	mu      sync.RWMutex
	buckets map[uint64][]*familyEntry[S, M]
	order   []*familyEntry[S, M]
}

type familyEntry[S encoding.EncodeLabelSet, M encoding.EncodeMetric] struct {
	labels      S
	fingerprint string
	metric      M
}

// NewFamily returns a family whose members are built by newMetric. The
// constructor is invoked once up front to fix the family's metric type.
func NewFamily[S encoding.EncodeLabelSet, M encoding.EncodeMetric](newMetric func() M) *Family[S, M] {
	return &Family[S, M]{
		newMetric: newMetric,
		mtype:     newMetric().MetricType(),
		buckets:   make(map[uint64][]*familyEntry[S, M]),
	}
}

// GetOrCreate returns the member for the given label combination, creating
// it on first use. Label sets that encode identically address the same
// member. Plain label slices are copied on insert; custom set types are
// retained as given and must not be mutated afterward.
func (f *Family[S, M]) GetOrCreate(labels S) (M, error) {
	fingerprint, hash, err := labelhash.Fingerprint(labels)
	if err != nil {
		var zero M
		return zero, err
	}

	f.mu.RLock()
	entry := f.lookup(hash, fingerprint)
	f.mu.RUnlock()
	if entry != nil {
		return entry.metric, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if entry := f.lookup(hash, fingerprint); entry != nil {
		return entry.metric, nil
	}
	entry = &familyEntry[S, M]{
		labels:      detachLabels(labels),
		fingerprint: fingerprint,
		metric:      f.newMetric(),
	}
	f.buckets[hash] = append(f.buckets[hash], entry)
	f.order = append(f.order, entry)
	return entry.metric, nil
}

// Delete removes the member for the given label combination and reports
// whether one existed.
func (f *Family[S, M]) Delete(labels S) (bool, error) {
	fingerprint, hash, err := labelhash.Fingerprint(labels)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.lookup(hash, fingerprint)
	if entry == nil {
		return false, nil
	}
	bucket := f.buckets[hash]
	for i, e := range bucket {
		if e == entry {
			f.buckets[hash] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(f.buckets[hash]) == 0 {
		delete(f.buckets, hash)
	}
	for i, e := range f.order {
		if e == entry {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// detachLabels copies plain label slices off the caller's backing array so
// later mutation cannot desync the stored set from its fingerprint.
func detachLabels[S encoding.EncodeLabelSet](labels S) S {
	if ls, ok := any(labels).(encoding.Labels); ok {
		return any(append(encoding.Labels(nil), ls...)).(S)
	}
	return labels
}

func (f *Family[S, M]) lookup(hash uint64, fingerprint string) *familyEntry[S, M] {
	for _, entry := range f.buckets[hash] {
		if entry.fingerprint == fingerprint {
			return entry
		}
	}
	return nil
}

func (f *Family[S, M]) Encode(enc encoding.MetricEncoder) error {
	f.mu.RLock()
	entries := append([]*familyEntry[S, M](nil), f.order...)
	f.mu.RUnlock()

	for _, entry := range entries {
		child, err := enc.EncodeFamily(entry.labels)
		if err != nil {
			return err
		}
		if err := entry.metric.Encode(child); err != nil {
			return err
		}
	}
	return nil
}

func (f *Family[S, M]) MetricType() encoding.MetricType {
	return f.mtype
}
