package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"contract-analyzer/internal/shared/telemetry"
)

const (
	DispatchInline = "inline"
	DispatchAsynq  = "asynq"

	ProviderOpenAI      = "openai"
	ProviderPlaceholder = "placeholder"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	LocalStoreDir   string
	DatabaseURL     string
	JWTSecret       string
	MaxUploadBytes  int64

	LLMProvider string
	LLMModel    string
	OpenAIKey   string

	DispatchMode      string
	WorkerConcurrency int
	AnalysisTimeout   time.Duration
	Redis             RedisConfig

	SMTP SMTPConfig
}

// RedisConfig addresses the asynq broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig configures outgoing notification mail.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// IsProduction reports whether the service runs with production guarantees.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	cfg := Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "/tmp/uploads"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_BYTES", 20<<20)),

		LLMProvider: normalizeProvider(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:    getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),

		DispatchMode:      normalizeDispatch(getEnv("DISPATCH_MODE", DispatchInline)),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		AnalysisTimeout:   time.Duration(getInt("ANALYSIS_TIMEOUT_SECONDS", 0)) * time.Second,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},

		SMTP: SMTPConfig{
			Enabled:  getBool("NOTIFY_ENABLED", true),
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}

	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}
	if cfg.LLMProvider == ProviderOpenAI && cfg.OpenAIKey == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "OPENAI_API_KEY", "env": env})
	}
	return cfg
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderPlaceholder, "none", "stub":
		return ProviderPlaceholder
	default:
		return ProviderOpenAI
	}
}

func normalizeDispatch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DispatchAsynq, "redis":
		return DispatchAsynq
	default:
		return DispatchInline
	}
}
