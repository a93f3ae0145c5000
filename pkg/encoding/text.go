package encoding

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// EncodeText writes the text exposition of every family the gatherer holds,
// in gather order, terminated by the end-of-stream marker. Any write failure
// aborts the encode; the caller must discard whatever reached w.
func EncodeText(w io.Writer, g Gatherer) error {
	err := g.Gather(func(d Descriptor, m EncodeMetric) error {
		if err := writeTextHeader(w, d, m.MetricType()); err != nil {
			return err
		}
		enc := MetricEncoder{text: &textMetricEncoder{
			w:           w,
			name:        d.Name,
			constLabels: d.ConstLabels,
		}}
		if err := m.Encode(enc); err != nil {
			return fmt.Errorf("encode family %q: %w", d.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "# EOF\n")
	return err
}

// WriteLabelSet writes the canonical text form of a label set into w,
// braces included when the set is non-empty. It is the reference form the
// rest of the module uses for label-set fingerprints.
func WriteLabelSet(w io.Writer, set EncodeLabelSet) error {
	block := labelBlock{w: w, braces: true}
	enc := LabelSetEncoder{text: &textLabelSetEncoder{block: &block}}
	if err := encodeLabelSetInto(enc, set); err != nil {
		return err
	}
	return block.close()
}

func writeTextHeader(w io.Writer, d Descriptor, t MetricType) error {
	if _, err := io.WriteString(w, "# HELP "); err != nil {
		return err
	}
	if _, err := io.WriteString(w, d.Name); err != nil {
		return err
	}
	if _, err := io.WriteString(w, " "); err != nil {
		return err
	}
	if err := writeEscapedHelp(w, d.Help); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n# TYPE "); err != nil {
		return err
	}
	if _, err := io.WriteString(w, d.Name); err != nil {
		return err
	}
	if _, err := io.WriteString(w, " "); err != nil {
		return err
	}
	if _, err := io.WriteString(w, t.String()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// textMetricEncoder writes one family's samples. A nested family encoder is
// a copy of its parent with the family labels bound, so sibling label
// combinations never observe each other's state.
type textMetricEncoder struct {
	w            io.Writer
	name         string
	constLabels  Labels
	familyLabels EncodeLabelSet
}

func (t *textMetricEncoder) encodeCounterUint64(v uint64, exemplar *Exemplar[uint64]) error {
	if err := t.writeSampleStart(""); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, strconv.FormatUint(v, 10)); err != nil {
		return err
	}
	if exemplar != nil {
		if err := t.writeExemplar(exemplar.Labels, strconv.FormatUint(exemplar.Value, 10)); err != nil {
			return err
		}
	}
	return t.endLine()
}

func (t *textMetricEncoder) encodeCounterFloat64(v float64, exemplar *Exemplar[float64]) error {
	if err := t.writeSampleStart(""); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, formatFloat(v)); err != nil {
		return err
	}
	if exemplar != nil {
		if err := t.writeExemplar(exemplar.Labels, formatFloat(exemplar.Value)); err != nil {
			return err
		}
	}
	return t.endLine()
}

func (t *textMetricEncoder) encodeGaugeInt64(v int64) error {
	if err := t.writeSampleStart(""); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, strconv.FormatInt(v, 10)); err != nil {
		return err
	}
	return t.endLine()
}

func (t *textMetricEncoder) encodeGaugeFloat64(v float64) error {
	if err := t.writeSampleStart(""); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, formatFloat(v)); err != nil {
		return err
	}
	return t.endLine()
}

func (t *textMetricEncoder) encodeInfo(labels EncodeLabelSet) error {
	if err := t.writeName("_info"); err != nil {
		return err
	}
	if err := t.writeLabels(labels, nil); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, " 1"); err != nil {
		return err
	}
	return t.endLine()
}

func (t *textMetricEncoder) encodeHistogram(sum float64, count uint64, buckets []Bucket, exemplars map[int]*Exemplar[float64]) error {
	if err := t.writeSampleStart("_sum"); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, formatFloat(sum)); err != nil {
		return err
	}
	if err := t.endLine(); err != nil {
		return err
	}

	if err := t.writeSampleStart("_count"); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, strconv.FormatUint(count, 10)); err != nil {
		return err
	}
	if err := t.endLine(); err != nil {
		return err
	}

	for i, b := range buckets {
		if err := t.writeName("_bucket"); err != nil {
			return err
		}
		le := b.UpperBound
		if err := t.writeLabels(nil, &le); err != nil {
			return err
		}
		if _, err := io.WriteString(t.w, " "); err != nil {
			return err
		}
		if _, err := io.WriteString(t.w, strconv.FormatUint(b.CumulativeCount, 10)); err != nil {
			return err
		}
		if ex := exemplars[i]; ex != nil {
			if err := t.writeExemplar(ex.Labels, formatFloat(ex.Value)); err != nil {
				return err
			}
		}
		if err := t.endLine(); err != nil {
			return err
		}
	}
	return nil
}

func (t *textMetricEncoder) encodeFamily(labels EncodeLabelSet) *textMetricEncoder {
	child := *t
	child.familyLabels = labels
	return &child
}

func (t *textMetricEncoder) writeSampleStart(suffix string) error {
	if err := t.writeName(suffix); err != nil {
		return err
	}
	if err := t.writeLabels(nil, nil); err != nil {
		return err
	}
	_, err := io.WriteString(t.w, " ")
	return err
}

func (t *textMetricEncoder) writeName(suffix string) error {
	if _, err := io.WriteString(t.w, t.name); err != nil {
		return err
	}
	if suffix == "" {
		return nil
	}
	_, err := io.WriteString(t.w, suffix)
	return err
}

// writeLabels emits the {...} block of one sample line: constant labels,
// then family labels, then the extra set (info), then the le bound. The
// braces are omitted entirely when nothing gets written.
func (t *textMetricEncoder) writeLabels(extra EncodeLabelSet, le *float64) error {
	block := labelBlock{w: t.w, braces: true}
	enc := LabelSetEncoder{text: &textLabelSetEncoder{block: &block}}
	if err := t.constLabels.EncodeLabelSet(enc); err != nil {
		return err
	}
	if err := encodeLabelSetInto(enc, t.familyLabels); err != nil {
		return err
	}
	if err := encodeLabelSetInto(enc, extra); err != nil {
		return err
	}
	if le != nil {
		pair := Pair[String, leBound]{Key: "le", Value: leBound(*le)}
		if err := pair.EncodeLabel(enc.EncodeLabel()); err != nil {
			return err
		}
	}
	return block.close()
}

// writeExemplar appends the " # {labels} value" annotation. Unlike sample
// label blocks, exemplar braces are part of the syntax and always present.
func (t *textMetricEncoder) writeExemplar(labels EncodeLabelSet, value string) error {
	if _, err := io.WriteString(t.w, " # {"); err != nil {
		return err
	}
	block := labelBlock{w: t.w}
	enc := LabelSetEncoder{text: &textLabelSetEncoder{block: &block}}
	if err := encodeLabelSetInto(enc, labels); err != nil {
		return err
	}
	if _, err := io.WriteString(t.w, "} "); err != nil {
		return err
	}
	_, err := io.WriteString(t.w, value)
	return err
}

func (t *textMetricEncoder) endLine() error {
	_, err := io.WriteString(t.w, "\n")
	return err
}

// leBound renders a histogram bucket bound. Integral bounds keep an explicit
// decimal point (le="1.0", never le="1") so bounds always read as floats.
type leBound float64

func (v leBound) EncodeLabelValue(enc LabelValueEncoder) error {
	s := formatFloat(float64(v))
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	_, err := enc.WriteString(s)
	return err
}

// labelBlock tracks separators across the label sets that share one block.
// With braces set, the opening brace is written lazily on the first label
// and the closing brace only if one was written, so an empty block emits
// nothing at all.
type labelBlock struct {
	w      io.Writer
	braces bool
	wrote  bool
}

func (b *labelBlock) beginLabel() error {
	var sep string
	if b.wrote {
		sep = ","
	} else if b.braces {
		sep = "{"
	}
	b.wrote = true
	if sep == "" {
		return nil
	}
	_, err := io.WriteString(b.w, sep)
	return err
}

func (b *labelBlock) close() error {
	if !b.braces || !b.wrote {
		return nil
	}
	_, err := io.WriteString(b.w, "}")
	return err
}

type textLabelSetEncoder struct {
	block *labelBlock
}

func (e *textLabelSetEncoder) encodeLabel() *textLabelEncoder {
	return &textLabelEncoder{block: e.block}
}

type textLabelEncoder struct {
	block *labelBlock
}

func (e *textLabelEncoder) encodeLabelKey() (*textLabelKeyEncoder, error) {
	if err := e.block.beginLabel(); err != nil {
		return nil, err
	}
	return &textLabelKeyEncoder{w: e.block.w}, nil
}

type textLabelKeyEncoder struct {
	w io.Writer
}

func (e *textLabelKeyEncoder) writeString(s string) (int, error) {
	return io.WriteString(e.w, s)
}

func (e *textLabelKeyEncoder) encodeLabelValue() (*textLabelValueEncoder, error) {
	if _, err := io.WriteString(e.w, `="`); err != nil {
		return nil, err
	}
	return &textLabelValueEncoder{w: e.w}, nil
}

type textLabelValueEncoder struct {
	w    io.Writer
	done bool
}

func (e *textLabelValueEncoder) writeString(s string) (int, error) {
	if e.done {
		return 0, errValueFinished
	}
	return writeEscapedValue(e.w, s)
}

func (e *textLabelValueEncoder) finish() error {
	if e.done {
		return errValueFinished
	}
	e.done = true
	_, err := io.WriteString(e.w, `"`)
	return err
}

// writeEscapedValue escapes backslash, double quote and newline per the text
// format's quoting rules for label values.
func writeEscapedValue(w io.Writer, s string) (int, error) {
	start := 0
	for i := 0; i < len(s); i++ {
		var esc string
		switch s[i] {
		case '\\':
			esc = `\\`
		case '"':
			esc = `\"`
		case '\n':
			esc = `\n`
		default:
			continue
		}
		if _, err := io.WriteString(w, s[start:i]); err != nil {
			return start, err
		}
		if _, err := io.WriteString(w, esc); err != nil {
			return i, err
		}
		start = i + 1
	}
	if _, err := io.WriteString(w, s[start:]); err != nil {
		return start, err
	}
	return len(s), nil
}

// writeEscapedHelp escapes backslash and newline in help text.
func writeEscapedHelp(w io.Writer, s string) error {
	start := 0
	for i := 0; i < len(s); i++ {
		var esc string
		switch s[i] {
		case '\\':
			esc = `\\`
		case '\n':
			esc = `\n`
		default:
			continue
		}
		if _, err := io.WriteString(w, s[start:i]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, esc); err != nil {
			return err
		}
		start = i + 1
	}
	_, err := io.WriteString(w, s[start:])
	return err
}
