package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vibecampus/vibehub/pkg/config"
)

func TestScalyrEncoder(t *testing.T) {
	var buf bytes.Buffer

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		MessageKey:    "message",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(NewScalyrEncoder(encoderConfig), zapcore.AddSync(&buf), zapcore.InfoLevel)
	logger := zap.New(core).With(zap.String("component", "feed"))

	logger.Info("page loaded",
		zap.String("key", "value"),
		zap.Int("rows", 20),
		zap.Bool("has_more", true),
		zap.Duration("took", 1500*time.Millisecond),
		zap.Error(errors.New("boom")),
	)

	var logObj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logObj); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	checks := map[string]interface{}{
		"message":   "page loaded",
		"key":       "value",
		"component": "feed",
		"rows":      float64(20),
		"has_more":  true,
		"took":      "1.5s",
		"error":     "boom",
	}
	for k, want := range checks {
		if logObj[k] != want {
			t.Errorf("field %q = %v, want %v", k, logObj[k], want)
		}
	}
	if _, ok := logObj["timestamp"]; !ok {
		t.Error("Expected 'timestamp' field in log output")
	}
}

func TestInitLogger(t *testing.T) {
	defer SetLogger(nil)

	for _, cfg := range []config.LoggingConfig{
		{Level: "DEBUG", Format: "text"},
		{Level: "INFO", Format: "json"},
		{Level: "bogus", Format: "json", ScalyrFormat: true},
	} {
		if err := InitLogger(&cfg); err != nil {
			t.Fatalf("InitLogger(%+v) failed: %v", cfg, err)
		}
		if GetLogger() == nil {
			t.Fatal("expected logger after init")
		}
	}
}
