package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"contract-analyzer/internal/shared/telemetry"
)

// Profile names the process a pool is sized for.
type Profile string

const (
	ProfileAPI    Profile = "api"
	ProfileWorker Profile = "worker"
	ProfileCLI    Profile = "cli"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	Profile         Profile
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	openDB   = sql.Open
	sharedMu sync.Mutex
	sharedDB *sql.DB
)

// OptionsFor returns pool defaults for a profile. Worker pools hold one
// connection per in-flight analysis plus one spare; concurrency is ignored
// for the other profiles.
func OptionsFor(profile Profile, concurrency int) Options {
	opts := Options{
		Profile:         profile,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
	switch profile {
	case ProfileWorker:
		if concurrency <= 0 {
			concurrency = 1
		}
		opts.MaxOpenConns, opts.MaxIdleConns = concurrency+1, concurrency
	case ProfileCLI:
		opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
	default:
		opts.MaxOpenConns, opts.MaxIdleConns = 10, 5
	}
	return opts
}

// WithEnv applies DB_* overrides. Unparseable values are logged and ignored.
func (o Options) WithEnv() Options {
	ints := []struct {
		key string
		dst *int
	}{
		{"DB_MAX_OPEN_CONNS", &o.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", &o.MaxIdleConns},
	}
	for _, e := range ints {
		if raw := strings.TrimSpace(os.Getenv(e.key)); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				telemetry.Warn("db.env_invalid", map[string]any{"key": e.key, "err": err})
				continue
			}
			*e.dst = v
		}
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", &o.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", &o.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", &o.PingTimeout},
	}
	for _, e := range durations {
		if raw := strings.TrimSpace(os.Getenv(e.key)); raw != "" {
			v, err := time.ParseDuration(raw)
			if err != nil {
				telemetry.Warn("db.env_invalid", map[string]any{"key": e.key, "err": err})
				continue
			}
			*e.dst = v
		}
	}
	return o
}

// Connect opens a pgx-backed pool for DATABASE_URL and pings it.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opts.apply(pool)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := pool.Stats()
	telemetry.Info("db.connected", map[string]any{
		"profile":  string(opts.Profile),
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return pool, nil
}

// Shared returns the process-wide pool used by the analysis and user stores.
// A failed connect is not cached, so the next caller retries.
func Shared(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedDB != nil {
		return sharedDB, nil
	}
	pool, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	sharedDB = pool
	return sharedDB, nil
}

func (o Options) apply(pool *sql.DB) {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	pool.SetMaxOpenConns(o.MaxOpenConns)
	pool.SetMaxIdleConns(o.MaxIdleConns)
	pool.SetConnMaxLifetime(o.ConnMaxLifetime)
	if o.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(o.ConnMaxIdleTime)
	}
}
