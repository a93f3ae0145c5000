package encoding

import (
	"bytes"
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
)

// GatherProto builds one MetricFamily message per family the gatherer
// holds, in gather order. The messages reference label pairs built during
// the walk and are fully owned by the caller.
func GatherProto(g Gatherer) ([]*dto.MetricFamily, error) {
	var families []*dto.MetricFamily
	err := g.Gather(func(d Descriptor, m EncodeMetric) error {
		t := m.MetricType()
		name := d.Name
		if t == MetricTypeInfo {
			name += "_info"
		}
		family := &dto.MetricFamily{
			Name: proto.String(name),
			Help: proto.String(d.Help),
			Type: protoMetricType(t).Enum(),
		}
		constLabels, err := protoLabelSet(d.ConstLabels)
		if err != nil {
			return err
		}
		enc := MetricEncoder{proto: &protoMetricEncoder{
			family: family,
			labels: constLabels,
		}}
		if err := m.Encode(enc); err != nil {
			return fmt.Errorf("encode family %q: %w", d.Name, err)
		}
		families = append(families, family)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return families, nil
}

// EncodeProto serializes the gatherer's families as a single owned buffer of
// length-delimited MetricFamily messages, the framing scrapers consume.
func EncodeProto(g Gatherer) ([]byte, error) {
	families, err := GatherProto(g)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, family := range families {
		if _, err := protodelim.MarshalTo(&buf, family); err != nil {
			return nil, fmt.Errorf("marshal family %q: %w", family.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// Info has no message kind of its own; it rides as a gauge fixed at 1 with
// an _info-suffixed name, which is how scrapers expect it on this format.
func protoMetricType(t MetricType) dto.MetricType {
	switch t {
	case MetricTypeCounter:
		return dto.MetricType_COUNTER
	case MetricTypeGauge, MetricTypeInfo:
		return dto.MetricType_GAUGE
	case MetricTypeHistogram:
		return dto.MetricType_HISTOGRAM
	}
	return dto.MetricType_UNTYPED
}

// protoMetricEncoder appends Metric messages to one family. labels holds
// the constant plus family label pairs every sample of this scope carries.
type protoMetricEncoder struct {
	family *dto.MetricFamily
	labels []*dto.LabelPair
}

func (p *protoMetricEncoder) sampleLabels() []*dto.LabelPair {
	return append([]*dto.LabelPair(nil), p.labels...)
}

func (p *protoMetricEncoder) encodeCounterUint64(v uint64, exemplar *Exemplar[uint64]) error {
	return p.encodeCounter(float64(v), protoExemplarArg(exemplar))
}

func (p *protoMetricEncoder) encodeCounterFloat64(v float64, exemplar *Exemplar[float64]) error {
	return p.encodeCounter(v, protoExemplarArg(exemplar))
}

func (p *protoMetricEncoder) encodeCounter(v float64, exemplar *Exemplar[float64]) error {
	ex, err := protoExemplar(exemplar)
	if err != nil {
		return err
	}
	p.family.Metric = append(p.family.Metric, &dto.Metric{
		Label: p.sampleLabels(),
		Counter: &dto.Counter{
			Value:    proto.Float64(v),
			Exemplar: ex,
		},
	})
	return nil
}

func (p *protoMetricEncoder) encodeGaugeInt64(v int64) error {
	return p.encodeGaugeFloat64(float64(v))
}

func (p *protoMetricEncoder) encodeGaugeFloat64(v float64) error {
	p.family.Metric = append(p.family.Metric, &dto.Metric{
		Label: p.sampleLabels(),
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	})
	return nil
}

func (p *protoMetricEncoder) encodeInfo(labels EncodeLabelSet) error {
	pairs, err := protoLabelSet(labels)
	if err != nil {
		return err
	}
	p.family.Metric = append(p.family.Metric, &dto.Metric{
		Label: append(p.sampleLabels(), pairs...),
		Gauge: &dto.Gauge{Value: proto.Float64(1)},
	})
	return nil
}

func (p *protoMetricEncoder) encodeHistogram(sum float64, count uint64, buckets []Bucket, exemplars map[int]*Exemplar[float64]) error {
	histogram := &dto.Histogram{
		SampleSum:   proto.Float64(sum),
		SampleCount: proto.Uint64(count),
	}
	for i, b := range buckets {
		ex, err := protoExemplar(exemplars[i])
		if err != nil {
			return err
		}
		histogram.Bucket = append(histogram.Bucket, &dto.Bucket{
			UpperBound:      proto.Float64(b.UpperBound),
			CumulativeCount: proto.Uint64(b.CumulativeCount),
			Exemplar:        ex,
		})
	}
	p.family.Metric = append(p.family.Metric, &dto.Metric{
		Label:     p.sampleLabels(),
		Histogram: histogram,
	})
	return nil
}

func (p *protoMetricEncoder) encodeFamily(labels EncodeLabelSet) (*protoMetricEncoder, error) {
	pairs, err := protoLabelSet(labels)
	if err != nil {
		return nil, err
	}
	return &protoMetricEncoder{
		family: p.family,
		labels: append(p.sampleLabels(), pairs...),
	}, nil
}

// protoExemplarArg widens an exemplar to the float domain the wire messages
// use for every exemplar value.
func protoExemplarArg[N Number](exemplar *Exemplar[N]) *Exemplar[float64] {
	if exemplar == nil {
		return nil
	}
	return &Exemplar[float64]{Labels: exemplar.Labels, Value: float64(exemplar.Value)}
}

func protoExemplar(exemplar *Exemplar[float64]) (*dto.Exemplar, error) {
	if exemplar == nil {
		return nil, nil
	}
	pairs, err := protoLabelSet(exemplar.Labels)
	if err != nil {
		return nil, err
	}
	return &dto.Exemplar{
		Label: pairs,
		Value: proto.Float64(exemplar.Value),
	}, nil
}

func protoLabelSet(set EncodeLabelSet) ([]*dto.LabelPair, error) {
	if set == nil {
		return nil, nil
	}
	var pairs []*dto.LabelPair
	enc := LabelSetEncoder{proto: &protoLabelSetEncoder{pairs: &pairs}}
	if err := set.EncodeLabelSet(enc); err != nil {
		return nil, err
	}
	return pairs, nil
}

type protoLabelSetEncoder struct {
	pairs *[]*dto.LabelPair
}

func (e *protoLabelSetEncoder) encodeLabel() *protoLabelEncoder {
	return &protoLabelEncoder{pairs: e.pairs}
}

type protoLabelEncoder struct {
	pairs *[]*dto.LabelPair
}

func (e *protoLabelEncoder) encodeLabelKey() *protoLabelKeyEncoder {
	return &protoLabelKeyEncoder{pairs: e.pairs}
}

type protoLabelKeyEncoder struct {
	pairs *[]*dto.LabelPair
	key   strings.Builder
}

func (e *protoLabelKeyEncoder) writeString(s string) (int, error) {
	return e.key.WriteString(s)
}

func (e *protoLabelKeyEncoder) encodeLabelValue() *protoLabelValueEncoder {
	return &protoLabelValueEncoder{pairs: e.pairs, name: e.key.String()}
}

type protoLabelValueEncoder struct {
	pairs *[]*dto.LabelPair
	name  string
	value strings.Builder
	done  bool
}

func (e *protoLabelValueEncoder) writeString(s string) (int, error) {
	if e.done {
		return 0, errValueFinished
	}
	return e.value.WriteString(s)
}

func (e *protoLabelValueEncoder) finish() error {
	if e.done {
		return errValueFinished
	}
	e.done = true
	*e.pairs = append(*e.pairs, &dto.LabelPair{
		Name:  proto.String(e.name),
		Value: proto.String(e.value.String()),
	})
	return nil
}
