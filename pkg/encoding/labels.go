package encoding

import "strconv"

// Label is a plain string-valued label.
type Label struct {
	Name  string
	Value string
}

func (l Label) EncodeLabel(enc LabelEncoder) error {
	return Pair[String, String]{Key: String(l.Name), Value: String(l.Value)}.EncodeLabel(enc)
}

// Labels is an ordered label set with string values. A nil or empty Labels
// encodes nothing.
type Labels []Label

func (ls Labels) EncodeLabelSet(enc LabelSetEncoder) error {
	for _, l := range ls {
		if err := l.EncodeLabel(enc.EncodeLabel()); err != nil {
			return err
		}
	}
	return nil
}

// Pair is a label with a polymorphic value. The encode sequence is fixed:
// key, then value, then Finish; implementers of EncodeLabel must not reorder
// it.
type Pair[K EncodeLabelKey, V EncodeLabelValue] struct {
	Key   K
	Value V
}

func (p Pair[K, V]) EncodeLabel(enc LabelEncoder) error {
	key, err := enc.EncodeLabelKey()
	if err != nil {
		return err
	}
	if err := p.Key.EncodeLabelKey(key); err != nil {
		return err
	}
	value, err := key.EncodeLabelValue()
	if err != nil {
		return err
	}
	if err := p.Value.EncodeLabelValue(value); err != nil {
		return err
	}
	return value.Finish()
}

// Set is an ordered label set over any label implementation.
type Set[L EncodeLabel] []L

func (s Set[L]) EncodeLabelSet(enc LabelSetEncoder) error {
	for _, l := range s {
		if err := l.EncodeLabel(enc.EncodeLabel()); err != nil {
			return err
		}
	}
	return nil
}

// String encodes as both a label key and a label value.
type String string

func (s String) EncodeLabelKey(enc LabelKeyEncoder) error {
	_, err := enc.WriteString(string(s))
	return err
}

func (s String) EncodeLabelValue(enc LabelValueEncoder) error {
	_, err := enc.WriteString(string(s))
	return err
}

// Uint64 encodes as a plain decimal label value.
type Uint64 uint64

func (v Uint64) EncodeLabelValue(enc LabelValueEncoder) error {
	_, err := enc.WriteString(strconv.FormatUint(uint64(v), 10))
	return err
}

// Int64 encodes as a plain decimal label value.
type Int64 int64

func (v Int64) EncodeLabelValue(enc LabelValueEncoder) error {
	_, err := enc.WriteString(strconv.FormatInt(int64(v), 10))
	return err
}

// Float64 encodes as the shortest round-trip decimal label value, with
// +Inf, -Inf and NaN for the non-finite values.
type Float64 float64

func (v Float64) EncodeLabelValue(enc LabelValueEncoder) error {
	_, err := enc.WriteString(formatFloat(float64(v)))
	return err
}
