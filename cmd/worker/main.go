package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/bootstrap"
	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/workerproc"
)

const shutdownTimeout = 30 * time.Second

func main() {
	defer telemetry.Sync()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.RoleWorker)
	if err != nil {
		telemetry.Error("worker.bootstrap_failed", map[string]any{"err": err})
		os.Exit(1)
	}
	defer app.Close(context.Background())

	srv := asynq.NewServer(bootstrap.RedisOpt(cfg), serverConfig(cfg))

	go func() {
		<-ctx.Done()
		telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
		srv.Shutdown()
	}()

	telemetry.Info("worker.started", map[string]any{
		"redis":       cfg.Redis.Addr,
		"concurrency": cfg.WorkerConcurrency,
	})
	if err := srv.Run(workerproc.NewServeMux(app.Pipeline)); err != nil {
		telemetry.Error("worker.run_failed", map[string]any{"err": err})
		os.Exit(1)
	}
}

func serverConfig(cfg config.Config) asynq.Config {
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return asynq.Config{
		Concurrency:     concurrency,
		ShutdownTimeout: shutdownTimeout,
		Logger:          asynqLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			telemetry.Error("worker.task_error", map[string]any{"task_type": task.Type(), "err": err})
		}),
	}
}

// asynqLogger routes asynq's internal logging through the process logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { telemetry.L().Sugar().Debug(args...) }
func (asynqLogger) Info(args ...interface{})  { telemetry.L().Sugar().Info(args...) }
func (asynqLogger) Warn(args ...interface{})  { telemetry.L().Sugar().Warn(args...) }
func (asynqLogger) Error(args ...interface{}) { telemetry.L().Sugar().Error(args...) }
func (asynqLogger) Fatal(args ...interface{}) { telemetry.L().Sugar().Fatal(args...) }
