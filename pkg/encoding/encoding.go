// Package encoding serializes registered metrics into the two exposition
// wire formats: the line-oriented text format and the protobuf metric-family
// stream. Metric types implement EncodeMetric against the format-agnostic
// encoder types in this package; the encoders dispatch every call to exactly
// one of the two backends, so neither format leaks into metric code.
package encoding

import (
	"errors"
	"io"
	"math"
	"strconv"
)

type MetricType int8

const (
	MetricTypeUnknown MetricType = iota
	MetricTypeCounter
	MetricTypeGauge
	MetricTypeHistogram
	MetricTypeInfo
)

func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	case MetricTypeInfo:
		return "info"
	}
	return "unknown"
}

// Number constrains the value domains an exemplar can carry.
type Number interface {
	~uint64 | ~float64
}

// Exemplar links an aggregate sample to one representative observation. Its
// labels belong to the exemplar alone and are never merged into the labels
// of the metric it annotates.
type Exemplar[N Number] struct {
	Labels EncodeLabelSet
	Value  N
}

// Bucket is one (upper bound, cumulative count) pair of a histogram
// snapshot. Buckets are encoded in the order supplied by the caller; the
// non-decreasing upper-bound ordering is the caller's responsibility.
type Bucket struct {
	UpperBound      float64
	CumulativeCount uint64
}

// Descriptor identifies one metric family within a gatherer.
type Descriptor struct {
	Name        string
	Help        string
	ConstLabels Labels
}

// Gatherer is the read-only view of a registry that the encode entry points
// walk. Families are visited in registration order; returning an error from
// visit aborts the walk.
type Gatherer interface {
	Gather(visit func(Descriptor, EncodeMetric) error) error
}

// EncodeMetric is the sole contract a metric type must satisfy to be
// encodable. MetricType must be pure: it is queried before Encode to write
// the family type framing.
type EncodeMetric interface {
	Encode(MetricEncoder) error
	MetricType() MetricType
}

// EncodeLabelSet is an encodable ordered collection of labels. Encoding an
// empty set must write nothing. A nil EncodeLabelSet is treated as the empty
// set everywhere in this package.
type EncodeLabelSet interface {
	EncodeLabelSet(LabelSetEncoder) error
}

// EncodeLabel is one encodable (key, value) pair.
type EncodeLabel interface {
	EncodeLabel(LabelEncoder) error
}

// EncodeLabelKey writes a label key into the given encoder.
type EncodeLabelKey interface {
	EncodeLabelKey(LabelKeyEncoder) error
}

// EncodeLabelValue writes a label value into the given encoder.
type EncodeLabelValue interface {
	EncodeLabelValue(LabelValueEncoder) error
}

var (
	errNoBackend     = errors.New("encoding: encoder has no backend")
	errValueFinished = errors.New("encoding: label value encoder already finished")
)

// MetricEncoder routes metric samples to the active backend. It is handed to
// EncodeMetric.Encode scoped to one metric family and must not be retained
// beyond that call.
type MetricEncoder struct {
	text  *textMetricEncoder
	proto *protoMetricEncoder
}

// EncodeCounterUint64 emits a counter sample with an integer total and an
// optional exemplar.
func (e MetricEncoder) EncodeCounterUint64(v uint64, exemplar *Exemplar[uint64]) error {
	switch {
	case e.text != nil:
		return e.text.encodeCounterUint64(v, exemplar)
	case e.proto != nil:
		return e.proto.encodeCounterUint64(v, exemplar)
	}
	return errNoBackend
}

// EncodeCounterFloat64 emits a counter sample with a float total and an
// optional exemplar.
func (e MetricEncoder) EncodeCounterFloat64(v float64, exemplar *Exemplar[float64]) error {
	switch {
	case e.text != nil:
		return e.text.encodeCounterFloat64(v, exemplar)
	case e.proto != nil:
		return e.proto.encodeCounterFloat64(v, exemplar)
	}
	return errNoBackend
}

// EncodeGaugeInt64 emits an instantaneous integer value. Gauges carry no
// exemplars.
func (e MetricEncoder) EncodeGaugeInt64(v int64) error {
	switch {
	case e.text != nil:
		return e.text.encodeGaugeInt64(v)
	case e.proto != nil:
		return e.proto.encodeGaugeInt64(v)
	}
	return errNoBackend
}

// EncodeGaugeFloat64 emits an instantaneous float value.
func (e MetricEncoder) EncodeGaugeFloat64(v float64) error {
	switch {
	case e.text != nil:
		return e.text.encodeGaugeFloat64(v)
	case e.proto != nil:
		return e.proto.encodeGaugeFloat64(v)
	}
	return errNoBackend
}

// EncodeInfo emits an info sample. The sample value is the constant 1; the
// substance is entirely the given label set.
func (e MetricEncoder) EncodeInfo(labels EncodeLabelSet) error {
	switch {
	case e.text != nil:
		return e.text.encodeInfo(labels)
	case e.proto != nil:
		return e.proto.encodeInfo(labels)
	}
	return errNoBackend
}

// EncodeHistogram emits sum, count and every bucket in the supplied order.
// Exemplars, if any, are addressed by bucket index.
func (e MetricEncoder) EncodeHistogram(sum float64, count uint64, buckets []Bucket, exemplars map[int]*Exemplar[float64]) error {
	switch {
	case e.text != nil:
		return e.text.encodeHistogram(sum, count, buckets, exemplars)
	case e.proto != nil:
		return e.proto.encodeHistogram(sum, count, buckets, exemplars)
	}
	return errNoBackend
}

// EncodeFamily opens a nested encoder bound to one label combination within
// the metric family. Samples written through the returned encoder carry the
// given labels in addition to the family's constant labels.
func (e MetricEncoder) EncodeFamily(labels EncodeLabelSet) (MetricEncoder, error) {
	switch {
	case e.text != nil:
		return MetricEncoder{text: e.text.encodeFamily(labels)}, nil
	case e.proto != nil:
		child, err := e.proto.encodeFamily(labels)
		if err != nil {
			return MetricEncoder{}, err
		}
		return MetricEncoder{proto: child}, nil
	}
	return MetricEncoder{}, errNoBackend
}

// LabelSetEncoder encodes one ordered label collection.
type LabelSetEncoder struct {
	text  *textLabelSetEncoder
	proto *protoLabelSetEncoder
}

// EncodeLabel starts the next label of the set.
func (e LabelSetEncoder) EncodeLabel() LabelEncoder {
	switch {
	case e.text != nil:
		return LabelEncoder{text: e.text.encodeLabel()}
	case e.proto != nil:
		return LabelEncoder{proto: e.proto.encodeLabel()}
	}
	return LabelEncoder{}
}

// LabelEncoder encodes a single (key, value) pair. The key must be written
// and advanced into a value encoder before any sibling label may start.
type LabelEncoder struct {
	text  *textLabelEncoder
	proto *protoLabelEncoder
}

// EncodeLabelKey begins the key of this label.
func (e LabelEncoder) EncodeLabelKey() (LabelKeyEncoder, error) {
	switch {
	case e.text != nil:
		key, err := e.text.encodeLabelKey()
		if err != nil {
			return LabelKeyEncoder{}, err
		}
		return LabelKeyEncoder{text: key}, nil
	case e.proto != nil:
		return LabelKeyEncoder{proto: e.proto.encodeLabelKey()}, nil
	}
	return LabelKeyEncoder{}, errNoBackend
}

// LabelKeyEncoder accepts the UTF-8 text of a label key. It implements
// io.Writer and io.StringWriter so key types can fmt.Fprintf into it.
type LabelKeyEncoder struct {
	text  *textLabelKeyEncoder
	proto *protoLabelKeyEncoder
}

func (e LabelKeyEncoder) Write(p []byte) (int, error) {
	return e.WriteString(string(p))
}

func (e LabelKeyEncoder) WriteString(s string) (int, error) {
	switch {
	case e.text != nil:
		return e.text.writeString(s)
	case e.proto != nil:
		return e.proto.writeString(s)
	}
	return 0, errNoBackend
}

// EncodeLabelValue completes the key and begins the value. The key encoder
// is spent after this call.
func (e LabelKeyEncoder) EncodeLabelValue() (LabelValueEncoder, error) {
	switch {
	case e.text != nil:
		val, err := e.text.encodeLabelValue()
		if err != nil {
			return LabelValueEncoder{}, err
		}
		return LabelValueEncoder{text: val}, nil
	case e.proto != nil:
		return LabelValueEncoder{proto: e.proto.encodeLabelValue()}, nil
	}
	return LabelValueEncoder{}, errNoBackend
}

// LabelValueEncoder accepts UTF-8 fragments of a label value and must be
// released with Finish. Writing after Finish is an error.
type LabelValueEncoder struct {
	text  *textLabelValueEncoder
	proto *protoLabelValueEncoder
}

func (e LabelValueEncoder) Write(p []byte) (int, error) {
	return e.WriteString(string(p))
}

func (e LabelValueEncoder) WriteString(s string) (int, error) {
	switch {
	case e.text != nil:
		return e.text.writeString(s)
	case e.proto != nil:
		return e.proto.writeString(s)
	}
	return 0, errNoBackend
}

// Finish closes the label value. It is the only way to complete a label and
// must be called exactly once.
func (e LabelValueEncoder) Finish() error {
	switch {
	case e.text != nil:
		return e.text.finish()
	case e.proto != nil:
		return e.proto.finish()
	}
	return errNoBackend
}

// formatFloat renders the shortest decimal representation that round-trips
// to v, with canonical spellings for the non-finite values.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, +1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func encodeLabelSetInto(enc LabelSetEncoder, set EncodeLabelSet) error {
	if set == nil {
		return nil
	}
	return set.EncodeLabelSet(enc)
}

var _ io.StringWriter = LabelKeyEncoder{}
var _ io.StringWriter = LabelValueEncoder{}
