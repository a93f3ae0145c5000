package metrics

import "github.com/kloudmate/openmetrics/pkg/encoding"

// Info exposes a fixed label set as a metric whose value is always 1, for
// build or target metadata that never changes while the process runs.
type Info struct {
	labels encoding.EncodeLabelSet
}

func NewInfo(labels encoding.EncodeLabelSet) *Info {
	return &Info{labels: labels}
}

func (i *Info) Encode(enc encoding.MetricEncoder) error {
	return enc.EncodeInfo(i.labels)
}

func (i *Info) MetricType() encoding.MetricType {
	return encoding.MetricTypeInfo
}
