// Package registry keeps the ordered bookkeeping of metric families: names,
// help strings, prefixes and constant labels. It owns no encoding logic; a
// Registry is handed to the encode entry points as an encoding.Gatherer.
package registry

import (
	"fmt"
	"sync"

	"github.com/prometheus/common/model"

	"github.com/kloudmate/openmetrics/pkg/encoding"
)

// Registry holds registered metrics in registration order. Sub-registries
// share the root's lock and name table, so uniqueness holds across the whole
// tree.
type Registry struct {
	root *Registry

	mu      sync.RWMutex
	prefix  string
	labels  encoding.Labels
	entries []entry
	subs    []*Registry
	names   map[string]struct{}
}

type entry struct {
	desc   encoding.Descriptor
	metric encoding.EncodeMetric
}

func New() *Registry {
	r := &Registry{names: make(map[string]struct{})}
	r.root = r
	return r
}

// Register adds a metric family under the registry's prefix. The full name
// must be a valid metric name and unique across the registry tree.
func (r *Registry) Register(name, help string, m encoding.EncodeMetric) error {
	full := r.fullName(name)
	if !model.IsValidMetricName(model.LabelValue(full)) {
		return fmt.Errorf("invalid metric name %q", full)
	}

	root := r.root
	root.mu.Lock()
	defer root.mu.Unlock()
	if _, dup := root.names[full]; dup {
		return fmt.Errorf("metric %q already registered", full)
	}
	root.names[full] = struct{}{}
	r.entries = append(r.entries, entry{
		desc: encoding.Descriptor{
			Name:        full,
			Help:        help,
			ConstLabels: r.labels,
		},
		metric: m,
	})
	return nil
}

// MustRegister is Register, panicking on error. For use at program setup.
func (r *Registry) MustRegister(name, help string, m encoding.EncodeMetric) {
	if err := r.Register(name, help, m); err != nil {
		panic(err)
	}
}

// Sub returns a nested registry whose metrics gather under the given
// additional prefix, gathered after this registry's own entries.
func (r *Registry) Sub(prefix string) *Registry {
	root := r.root
	root.mu.Lock()
	defer root.mu.Unlock()
	sub := &Registry{
		root:   root,
		prefix: r.fullName(prefix),
		labels: r.labels,
	}
	r.subs = append(r.subs, sub)
	return sub
}

// With returns a nested registry attaching the given constant labels to
// every metric registered through it, in addition to this registry's own.
func (r *Registry) With(labels encoding.Labels) (*Registry, error) {
	for _, l := range labels {
		if !model.LabelName(l.Name).IsValid() {
			return nil, fmt.Errorf("invalid label name %q", l.Name)
		}
	}

	root := r.root
	root.mu.Lock()
	defer root.mu.Unlock()
	merged := make(encoding.Labels, 0, len(r.labels)+len(labels))
	merged = append(merged, r.labels...)
	merged = append(merged, labels...)
	sub := &Registry{
		root:   root,
		prefix: r.prefix,
		labels: merged,
	}
	r.subs = append(r.subs, sub)
	return sub, nil
}

// Gather visits every family of the tree: own entries in registration
// order, then sub-registries in creation order. The registry is read-locked
// for the duration of the walk; visit must not register metrics.
func (r *Registry) Gather(visit func(encoding.Descriptor, encoding.EncodeMetric) error) error {
	root := r.root
	root.mu.RLock()
	defer root.mu.RUnlock()
	return r.gatherLocked(visit)
}

func (r *Registry) gatherLocked(visit func(encoding.Descriptor, encoding.EncodeMetric) error) error {
	for _, e := range r.entries {
		if err := visit(e.desc, e.metric); err != nil {
			return err
		}
	}
	for _, sub := range r.subs {
		if err := sub.gatherLocked(visit); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) fullName(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "_" + name
}
