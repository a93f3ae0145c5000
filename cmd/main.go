package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kloudmate/openmetrics/pkg/encoding"
	"github.com/kloudmate/openmetrics/pkg/metrics"
	"github.com/kloudmate/openmetrics/pkg/registry"
)

type Config struct {
	Output struct {
		Format string `yaml:"format"`
		Path   string `yaml:"path"`
	} `yaml:"output"`

	Namespace   string            `yaml:"namespace"`
	ConstLabels map[string]string `yaml:"const_labels"`

	Simulate struct {
		Requests int   `yaml:"requests"`
		Seed     int64 `yaml:"seed"`
	} `yaml:"simulate"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := registry.New()
	app := reg
	if cfg.Namespace != "" {
		app = reg.Sub(cfg.Namespace)
	}
	if len(cfg.ConstLabels) > 0 {
		app, err = app.With(constLabels(cfg.ConstLabels))
		if err != nil {
			logger.Fatal("Invalid constant labels", zap.Error(err))
		}
	}

	requests := metrics.NewFamily[encoding.Labels](func() *metrics.CounterWithExemplar {
		return &metrics.CounterWithExemplar{}
	})
	app.MustRegister("requests_total", "Total requests handled.", requests)

	inflight := &metrics.Gauge{}
	app.MustRegister("inflight_requests", "Requests currently in flight.", inflight)

	latency := metrics.NewHistogramWithExemplars(metrics.ExponentialBuckets(0.001, 2, 12))
	app.MustRegister("request_duration_seconds", "Request latency in seconds.", latency)

	reg.MustRegister("build", "Build information.", metrics.NewInfo(encoding.Labels{
		{Name: "version", Value: "0.1.0"},
		{Name: "goos", Value: "linux"},
	}))

	simulate(cfg, requests, inflight, latency, logger)

	out, closeOut, err := openOutput(cfg.Output.Path)
	if err != nil {
		logger.Fatal("Failed to open output", zap.Error(err))
	}
	defer closeOut()

	switch cfg.Output.Format {
	case "text":
		if err := encoding.EncodeText(out, reg); err != nil {
			logger.Fatal("Text encode failed", zap.Error(err))
		}
	case "protobuf":
		data, err := encoding.EncodeProto(reg)
		if err != nil {
			logger.Fatal("Protobuf encode failed", zap.Error(err))
		}
		if _, err := out.Write(data); err != nil {
			logger.Fatal("Failed to write output", zap.Error(err))
		}
		logger.Info("encoded metric set", zap.Int("bytes", len(data)))
	default:
		logger.Fatal("Unknown output format", zap.String("format", cfg.Output.Format))
	}

	logger.Info("snapshot written",
		zap.String("format", cfg.Output.Format),
		zap.String("path", cfg.Output.Path))
}

func simulate(cfg *Config, requests *metrics.Family[encoding.Labels, *metrics.CounterWithExemplar], inflight *metrics.Gauge, latency *metrics.HistogramWithExemplars, logger *zap.Logger) {
	rng := rand.New(rand.NewSource(cfg.Simulate.Seed))
	methods := []string{"GET", "POST", "PUT"}
	statuses := []string{"200", "404", "500"}

	for i := 0; i < cfg.Simulate.Requests; i++ {
		trace := encoding.Labels{{Name: "trace_id", Value: fmt.Sprintf("%016x", rng.Uint64())}}

		counter, err := requests.GetOrCreate(encoding.Labels{
			{Name: "method", Value: methods[rng.Intn(len(methods))]},
			{Name: "status", Value: statuses[rng.Intn(len(statuses))]},
		})
		if err != nil {
			logger.Fatal("Failed to create counter", zap.Error(err))
		}
		counter.AddWithExemplar(1, trace)

		latency.ObserveWithExemplar(0.001*float64(1+rng.Intn(2000)), trace)
	}
	inflight.Set(int64(rng.Intn(32)))
}

func constLabels(m map[string]string) encoding.Labels {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	labels := make(encoding.Labels, 0, len(m))
	for _, name := range names {
		labels = append(labels, encoding.Label{Name: name, Value: m[name]})
	}
	return labels
}

func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = "-"
	}

	if cfg.Simulate.Requests == 0 {
		cfg.Simulate.Requests = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
