package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"contract-analyzer/internal/analyses"
	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/llm"
	openai "contract-analyzer/internal/llm/openai"
	"contract-analyzer/internal/notify"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/services/health"
	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/server"
	"contract-analyzer/internal/shared/storage/db"
	"contract-analyzer/internal/shared/storage/object"
	localstore "contract-analyzer/internal/shared/storage/object/local"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/users"
)

// Role selects what a process builds: the API also owns the inline
// dispatcher, the worker only needs the pipeline.
type Role int

const (
	RoleAPI Role = iota
	RoleWorker
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	AnalysesRepo analyses.Repo
	UsersRepo    users.Repo
	UsersService *users.Service
	Analyzer     *llm.Analyzer
	Pipeline     *analyses.Pipeline
	Dispatcher   queue.Dispatcher
	Service      *analyses.Service
	Verifier     *auth.HS256

	inline      *queue.InlineDispatcher
	asynqClient *asynq.Client
}

// Build prepares shared dependencies and, for RoleAPI, the router.
func Build(ctx context.Context, cfg config.Config, role Role) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  localstore.New(cfg.LocalStoreDir),
	}
	if sqlDB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}
	app.UsersService = users.NewService(app.UsersRepo)

	completer, err := BuildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	app.Analyzer = llm.NewAnalyzer(completer, cfg.LLMModel)
	app.Pipeline = &analyses.Pipeline{
		Repo:     app.AnalysesRepo,
		Reader:   extract.Reader{},
		Analyzer: app.Analyzer,
		Users:    app.UsersService,
		Notifier: buildNotifier(cfg),
		Timeout:  cfg.AnalysisTimeout,
	}

	if role == RoleWorker {
		return app, nil
	}

	app.Dispatcher, err = app.buildDispatcher()
	if err != nil {
		return nil, err
	}
	app.Service = analyses.NewService(app.AnalysesRepo, app.Store, app.Dispatcher)

	app.Verifier, err = auth.NewHS256(cfg.JWTSecret, cfg.IsProduction())
	if err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        app.Verifier,
		AnalysisHandler: analyses.NewHandler(app.Service, app.UsersService, cfg.MaxUploadBytes),
		UserHandler:     users.NewHandler(app.UsersService),
		Health:          health.NewService(pinger(sqlDB), cfg.DispatchMode),
	})
	return app, nil
}

// Close drains in-flight inline jobs and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.inline != nil {
		if err := a.inline.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain inline jobs: %w", err))
		}
	}
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close asynq client: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RedisOpt returns the asynq connection options for cfg.
func RedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// BuildCompleter selects the LLM provider.
func BuildCompleter(cfg config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderPlaceholder:
		return llm.PlaceholderClient{}, nil
	default:
		client, err := openai.NewClient(cfg.OpenAIKey, cfg.LLMModel)
		if err != nil {
			if cfg.IsProduction() {
				return nil, err
			}
			telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"err": err.Error()})
			return llm.PlaceholderClient{}, nil
		}
		return client, nil
	}
}

func (a *App) buildDispatcher() (queue.Dispatcher, error) {
	switch a.Config.DispatchMode {
	case config.DispatchAsynq:
		a.asynqClient = asynq.NewClient(RedisOpt(a.Config))
		telemetry.Info("bootstrap.dispatch", map[string]any{"mode": config.DispatchAsynq, "redis": a.Config.Redis.Addr})
		return queue.NewAsynqDispatcher(a.asynqClient, ""), nil
	default:
		pipeline := a.Pipeline
		a.inline = queue.NewInlineDispatcher(func(ctx context.Context, msg queue.Message) {
			pipeline.Process(analyses.WithRequestID(ctx, msg.RequestID), msg.AnalysisID, msg.UserID)
		}, a.Config.WorkerConcurrency)
		telemetry.Info("bootstrap.dispatch", map[string]any{"mode": config.DispatchInline, "concurrency": a.Config.WorkerConcurrency})
		return a.inline, nil
	}
}

func buildNotifier(cfg config.Config) notify.Sender {
	smtpCfg := notify.SMTPConfig{
		Enabled:  cfg.SMTP.Enabled,
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  10 * time.Second,
	}
	if !smtpCfg.Configured() {
		telemetry.Info("bootstrap.notify_disabled", map[string]any{"enabled": cfg.SMTP.Enabled})
	}
	return notify.NewSMTPSender(smtpCfg)
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			if role == RoleWorker {
				return nil, errors.New("DATABASE_URL is required for the worker")
			}
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	profile := db.ProfileAPI
	if role == RoleWorker {
		profile = db.ProfileWorker
	}
	sqlDB, err := db.Shared(ctx, cfg.DatabaseURL, db.OptionsFor(profile, cfg.WorkerConcurrency).WithEnv())
	if err != nil {
		if isDevLike(cfg.Env) && role == RoleAPI {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "connect failed", "err": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
