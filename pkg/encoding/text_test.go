package encoding_test

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/kloudmate/openmetrics/pkg/encoding"
	"github.com/kloudmate/openmetrics/pkg/metrics"
	"github.com/kloudmate/openmetrics/pkg/registry"
)

type gatherFunc func(func(encoding.Descriptor, encoding.EncodeMetric) error) error

func (f gatherFunc) Gather(visit func(encoding.Descriptor, encoding.EncodeMetric) error) error {
	return f(visit)
}

type metricFunc struct {
	mtype  encoding.MetricType
	encode func(encoding.MetricEncoder) error
}

func (m metricFunc) Encode(enc encoding.MetricEncoder) error {
	return m.encode(enc)
}

func (m metricFunc) MetricType() encoding.MetricType {
	return m.mtype
}

func singleFamily(name, help string, m encoding.EncodeMetric) encoding.Gatherer {
	return gatherFunc(func(visit func(encoding.Descriptor, encoding.EncodeMetric) error) error {
		return visit(encoding.Descriptor{Name: name, Help: help}, m)
	})
}

func encodeToText(t *testing.T, g encoding.Gatherer) string {
	t.Helper()
	var buf bytes.Buffer
	if err := encoding.EncodeText(&buf, g); err != nil {
		t.Fatalf("EncodeText failed: %v", err)
	}
	return buf.String()
}

func TestEncodeTextCounterFamily(t *testing.T) {
	reg := registry.New()
	family := metrics.NewFamily[encoding.Labels](func() *metrics.Counter {
		return &metrics.Counter{}
	})
	if err := reg.Register("requests_total", "Total requests handled.", family); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	counter, err := family.GetOrCreate(encoding.Labels{{Name: "method", Value: "GET"}})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	counter.Add(42)

	got := encodeToText(t, reg)
	want := "# HELP requests_total Total requests handled.\n" +
		"# TYPE requests_total counter\n" +
		"requests_total{method=\"GET\"} 42\n" +
		"# EOF\n"
	if got != want {
		t.Errorf("unexpected output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestEncodeTextHistogram(t *testing.T) {
	buckets := []encoding.Bucket{
		{UpperBound: 1.0, CumulativeCount: 3},
		{UpperBound: 2.0, CumulativeCount: 5},
		{UpperBound: math.Inf(+1), CumulativeCount: 5},
	}
	m := metricFunc{
		mtype: encoding.MetricTypeHistogram,
		encode: func(enc encoding.MetricEncoder) error {
			return enc.EncodeHistogram(4.2, 5, buckets, nil)
		},
	}

	got := encodeToText(t, singleFamily("request_duration_seconds", "Request latency.", m))
	want := "# HELP request_duration_seconds Request latency.\n" +
		"# TYPE request_duration_seconds histogram\n" +
		"request_duration_seconds_sum 4.2\n" +
		"request_duration_seconds_count 5\n" +
		"request_duration_seconds_bucket{le=\"1.0\"} 3\n" +
		"request_duration_seconds_bucket{le=\"2.0\"} 5\n" +
		"request_duration_seconds_bucket{le=\"+Inf\"} 5\n" +
		"# EOF\n"
	if got != want {
		t.Errorf("unexpected output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestEncodeTextBucketBounds(t *testing.T) {
	tests := []struct {
		name  string
		bound float64
		want  string
	}{
		{"integral keeps decimal point", 1, `le="1.0"`},
		{"large integral", 250, `le="250.0"`},
		{"fractional", 0.005, `le="0.005"`},
		{"exponent form", 1e21, `le="1e+21"`},
		{"infinity", math.Inf(+1), `le="+Inf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := []encoding.Bucket{{UpperBound: tt.bound, CumulativeCount: 1}}
			m := metricFunc{
				mtype: encoding.MetricTypeHistogram,
				encode: func(enc encoding.MetricEncoder) error {
					return enc.EncodeHistogram(1, 1, buckets, nil)
				},
			}
			got := encodeToText(t, singleFamily("latency_seconds", "Latency.", m))
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, got)
			}
		})
	}
}

func TestEncodeTextCounterExemplar(t *testing.T) {
	m := metricFunc{
		mtype: encoding.MetricTypeCounter,
		encode: func(enc encoding.MetricEncoder) error {
			return enc.EncodeCounterFloat64(1.0, &encoding.Exemplar[float64]{
				Labels: encoding.Labels{{Name: "trace_id", Value: "abc"}},
				Value:  1.0,
			})
		},
	}

	got := encodeToText(t, singleFamily("requests_total", "Total requests.", m))
	if !strings.Contains(got, "requests_total 1 # {trace_id=\"abc\"} 1\n") {
		t.Errorf("exemplar annotation missing or malformed:\n%s", got)
	}
	// Exemplar labels must not leak into the sample's own label block.
	if strings.Contains(got, "requests_total{") {
		t.Errorf("exemplar labels promoted to sample labels:\n%s", got)
	}
}

func TestEncodeTextHistogramBucketExemplar(t *testing.T) {
	buckets := []encoding.Bucket{
		{UpperBound: 1.0, CumulativeCount: 2},
		{UpperBound: math.Inf(+1), CumulativeCount: 3},
	}
	exemplars := map[int]*encoding.Exemplar[float64]{
		0: {Labels: encoding.Labels{{Name: "trace_id", Value: "abc"}}, Value: 0.5},
	}
	m := metricFunc{
		mtype: encoding.MetricTypeHistogram,
		encode: func(enc encoding.MetricEncoder) error {
			return enc.EncodeHistogram(2.5, 3, buckets, exemplars)
		},
	}

	got := encodeToText(t, singleFamily("latency_seconds", "Latency.", m))
	if !strings.Contains(got, "latency_seconds_bucket{le=\"1.0\"} 2 # {trace_id=\"abc\"} 0.5\n") {
		t.Errorf("bucket exemplar missing or on wrong bucket:\n%s", got)
	}
	if strings.Contains(got, "le=\"+Inf\"} 3 #") {
		t.Errorf("exemplar attached to wrong bucket:\n%s", got)
	}
}

func TestEncodeTextEmptyLabelSet(t *testing.T) {
	reg := registry.New()
	gauge := &metrics.Gauge{}
	gauge.Set(7)
	if err := reg.Register("inflight_requests", "In-flight requests.", gauge); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got := encodeToText(t, reg)
	if !strings.Contains(got, "inflight_requests 7\n") {
		t.Errorf("expected bare sample line:\n%s", got)
	}
	if strings.Contains(got, "{}") {
		t.Errorf("empty label block emitted:\n%s", got)
	}
}

func TestEncodeTextFamilyOrderAndFraming(t *testing.T) {
	reg := registry.New()
	names := []string{"alpha_total", "beta_bytes", "gamma_seconds"}
	for _, name := range names {
		counter := &metrics.Counter{}
		counter.Inc()
		if err := reg.Register(name, "help for "+name, counter); err != nil {
			t.Fatalf("Register(%q) failed: %v", name, err)
		}
	}

	got := encodeToText(t, reg)
	if n := strings.Count(got, "# HELP "); n != len(names) {
		t.Errorf("expected %d HELP lines, got %d", len(names), n)
	}
	if n := strings.Count(got, "# TYPE "); n != len(names) {
		t.Errorf("expected %d TYPE lines, got %d", len(names), n)
	}
	pos := -1
	for _, name := range names {
		next := strings.Index(got, "# TYPE "+name)
		if next < 0 {
			t.Fatalf("TYPE line for %q missing:\n%s", name, got)
		}
		if next < pos {
			t.Errorf("family %q encoded out of registration order", name)
		}
		pos = next
	}
	if !strings.HasSuffix(got, "# EOF\n") {
		t.Errorf("missing end-of-stream marker:\n%s", got)
	}
}

func TestEncodeTextLabelValueEscaping(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"backslash", `a\b`, `path="a\\b"`},
		{"quote", `say "hi"`, `path="say \"hi\""`},
		{"newline", "line1\nline2", `path="line1\nline2"`},
		{"plain", "plain", `path="plain"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metricFunc{
				mtype: encoding.MetricTypeCounter,
				encode: func(enc encoding.MetricEncoder) error {
					child, err := enc.EncodeFamily(encoding.Labels{{Name: "path", Value: tt.value}})
					if err != nil {
						return err
					}
					return child.EncodeCounterUint64(1, nil)
				},
			}
			got := encodeToText(t, singleFamily("hits_total", "Hits.", m))
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, got)
			}
		})
	}
}

func TestEncodeTextFloatRoundTrip(t *testing.T) {
	values := []float64{
		0, 1, -1, 4.2, 0.1 + 0.2, 1e-9, 1e21, -2.5e-3,
		math.MaxFloat64, math.SmallestNonzeroFloat64, 1.0 / 3.0,
	}

	for _, v := range values {
		t.Run(strconv.FormatFloat(v, 'g', -1, 64), func(t *testing.T) {
			gauge := &metrics.FloatGauge{}
			gauge.Set(v)
			got := encodeToText(t, singleFamily("value", "A value.", gauge))

			line := ""
			for _, l := range strings.Split(got, "\n") {
				if strings.HasPrefix(l, "value ") {
					line = l
					break
				}
			}
			if line == "" {
				t.Fatalf("sample line missing:\n%s", got)
			}
			parsed, err := strconv.ParseFloat(strings.TrimPrefix(line, "value "), 64)
			if err != nil {
				t.Fatalf("emitted value does not parse: %v", err)
			}
			if parsed != v {
				t.Errorf("round trip mismatch: wrote %v, read back %v", v, parsed)
			}
		})
	}
}

func TestEncodeTextNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  string
	}{
		{"positive infinity", math.Inf(+1), "value +Inf\n"},
		{"negative infinity", math.Inf(-1), "value -Inf\n"},
		{"nan", math.NaN(), "value NaN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gauge := &metrics.FloatGauge{}
			gauge.Set(tt.value)
			got := encodeToText(t, singleFamily("value", "A value.", gauge))
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, got)
			}
		})
	}
}

func TestEncodeTextUintFormatting(t *testing.T) {
	values := []uint64{0, 7, 42, 1002345, math.MaxUint64}

	for _, v := range values {
		counter := &metrics.Counter{}
		counter.Add(v)
		got := encodeToText(t, singleFamily("count_total", "Count.", counter))
		want := "count_total " + strconv.FormatUint(v, 10) + "\n"
		if !strings.Contains(got, want) {
			t.Errorf("value %d: expected %q in output:\n%s", v, want, got)
		}
	}
}

func TestEncodeTextLabelDeterminism(t *testing.T) {
	labels := encoding.Labels{
		{Name: "method", Value: "GET"},
		{Name: "status", Value: "200"},
	}

	substring := func(name string) string {
		family := metrics.NewFamily[encoding.Labels](func() *metrics.Counter {
			return &metrics.Counter{}
		})
		if _, err := family.GetOrCreate(labels); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		got := encodeToText(t, singleFamily(name, "Help.", family))
		start := strings.Index(got, "{")
		end := strings.Index(got, "}")
		if start < 0 || end < start {
			t.Fatalf("no label block in output:\n%s", got)
		}
		return got[start : end+1]
	}

	first := substring("first_total")
	second := substring("second_total")
	if first != second {
		t.Errorf("same label set encoded differently: %q vs %q", first, second)
	}
}

func TestEncodeTextInfo(t *testing.T) {
	info := metrics.NewInfo(encoding.Labels{
		{Name: "version", Value: "0.1.0"},
	})

	got := encodeToText(t, singleFamily("build", "Build information.", info))
	if !strings.Contains(got, "# TYPE build info\n") {
		t.Errorf("TYPE line missing or wrong kind:\n%s", got)
	}
	if !strings.Contains(got, "build_info{version=\"0.1.0\"} 1\n") {
		t.Errorf("info sample missing:\n%s", got)
	}
}

func TestEncodeTextConstAndFamilyLabels(t *testing.T) {
	reg := registry.New()
	sub, err := reg.With(encoding.Labels{{Name: "region", Value: "eu"}})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
	family := metrics.NewFamily[encoding.Labels](func() *metrics.Counter {
		return &metrics.Counter{}
	})
	if err := sub.Register("requests_total", "Requests.", family); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	counter, err := family.GetOrCreate(encoding.Labels{{Name: "method", Value: "GET"}})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	counter.Inc()

	got := encodeToText(t, reg)
	if !strings.Contains(got, "requests_total{region=\"eu\",method=\"GET\"} 1\n") {
		t.Errorf("constant labels must precede family labels:\n%s", got)
	}
}
