package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"contract-analyzer/internal/analyses"
	"contract-analyzer/internal/bootstrap"
	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/storage/db"
)

func connect(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return db.Connect(ctx, cfg.DatabaseURL, db.OptionsFor(db.ProfileCLI, 0).WithEnv())
}

func migrateCmd() *cobra.Command {
	var down, version bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Long: `Apply the embedded goose migrations to DATABASE_URL.

Examples:
  contractctl migrate
  contractctl migrate --version
  contractctl migrate --down`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sqlDB, err := connect(ctx, config.Load())
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			switch {
			case version:
			case down:
				if err := db.RollbackMigration(ctx, sqlDB); err != nil {
					return fmt.Errorf("rollback: %w", err)
				}
			default:
				if err := db.RunMigrations(ctx, sqlDB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			v, err := db.MigrationVersion(ctx, sqlDB)
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the latest migration")
	cmd.Flags().BoolVar(&version, "version", false, "print the schema version only")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var textOnly bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract a local PDF or DOCX and print the analysis JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			text, err := extract.ReadFile(ctx, args[0])
			if err != nil {
				return err
			}
			if textOnly {
				_, err := io.WriteString(cmd.OutOrStdout(), text+"\n")
				return err
			}
			cfg := config.Load()
			completer, err := bootstrap.BuildCompleter(cfg)
			if err != nil {
				return err
			}
			return runAnalyze(ctx, cmd.OutOrStdout(), llm.NewAnalyzer(completer, cfg.LLMModel), text)
		},
	}
	cmd.Flags().BoolVar(&textOnly, "text", false, "print the extracted text and skip the LLM call")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall deadline")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, analyzer *llm.Analyzer, text string) error {
	res, err := analyzer.Analyze(ctx, text)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Print a job record from the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sqlDB, err := connect(ctx, config.Load())
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return printStatus(ctx, cmd.OutOrStdout(), &analyses.PGRepo{DB: sqlDB}, args[0])
		},
	}
}

func printStatus(ctx context.Context, out io.Writer, repo analyses.Repo, id string) error {
	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(out, a)
}

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <analysis-id> <user-id>",
		Short: "Dispatch a pipeline run for an existing job over asynq",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			client := asynq.NewClient(bootstrap.RedisOpt(cfg))
			defer client.Close()
			msg := queue.NewMessage(args[0], args[1], "")
			if err := queue.NewAsynqDispatcher(client, "").Enqueue(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", args[0])
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var email, name string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token signed with JWT_SECRET for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			signer, err := auth.NewHS256(cfg.JWTSecret, cfg.IsProduction())
			if err != nil {
				return err
			}
			tok, err := issueToken(signer, args[0], email, name, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim used for notifications")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func issueToken(signer *auth.HS256, sub, email, name string, ttl time.Duration, now time.Time) (string, error) {
	claims := auth.Claims{Sub: sub, Email: email, Name: name, Iat: now.Unix()}
	if ttl > 0 {
		claims.Exp = now.Add(ttl).Unix()
	}
	return signer.Sign(claims)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
