package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json or console
	OutputPath string // file path; stdout when empty

	// Service names the root logger and is attached to every entry as "service".
	Service string
	// Sampling keeps the first 100 identical entries per second, then every 100th.
	Sampling bool
}

// New builds a zap.Logger from cfg. Unknown levels fall back to info and unknown
// encodings to json.
func New(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.Config{
		Level:             parseLevel(cfg.Level),
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding(cfg.Encoding),
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{outputPath(cfg.OutputPath)},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if cfg.Sampling {
		zapConfig.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}
	if cfg.Service != "" {
		zapConfig.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.Service != "" {
		logger = logger.Named(cfg.Service)
	}
	return logger, nil
}

func parseLevel(raw string) zap.AtomicLevel {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if raw == "" {
		return level
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		// No logger exists yet to report this.
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", raw, err)
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

func encoding(raw string) string {
	if e := strings.ToLower(raw); e == "console" {
		return e
	}
	return "json"
}

func outputPath(raw string) string {
	if raw == "" {
		return "stdout"
	}
	return raw
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
