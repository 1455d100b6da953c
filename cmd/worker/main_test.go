package main

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/telemetry"
)

func TestServerConfigDefaults(t *testing.T) {
	cfg := serverConfig(config.Config{WorkerConcurrency: 0})
	if cfg.Concurrency != 1 {
		t.Fatalf("expected concurrency 1, got %d", cfg.Concurrency)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if cfg.ErrorHandler == nil || cfg.Logger == nil {
		t.Fatal("expected error handler and logger")
	}

	if got := serverConfig(config.Config{WorkerConcurrency: 6}).Concurrency; got != 6 {
		t.Fatalf("expected concurrency 6, got %d", got)
	}
}

func TestAsynqLoggerUsesTelemetry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	asynqLogger{}.Warn("redis ", "reconnecting")
	entries := logs.AllUntimed()
	if len(entries) != 1 || entries[0].Message != "redis reconnecting" || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
