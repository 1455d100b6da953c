package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/storage/object"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/shared/util"
)

// Upload is one file received by the submission endpoint.
type Upload struct {
	FileName string
	Reader   io.Reader
}

// Service creates analysis jobs and serves their status.
type Service struct {
	Repo       Repo
	Store      object.ObjectStore
	Dispatcher queue.Dispatcher
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, store object.ObjectStore, dispatcher queue.Dispatcher) *Service {
	return &Service{Repo: repo, Store: store, Dispatcher: dispatcher}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Submit stores every upload, creates one PENDING job per file and dispatches
// them. Records are returned in upload order. A job whose dispatch fails is
// marked FAILED and returned with that status.
func (s *Service) Submit(ctx context.Context, userID string, uploads []Upload) ([]Analysis, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", ErrInvalidInput)
	}

	created := make([]Analysis, len(uploads))
	keys := make([]string, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			a, key, err := s.store(gctx, userID, up)
			if err != nil {
				return err
			}
			created[i] = a
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.abandon(ctx, created, keys)
		return nil, err
	}

	requestID := requestIDFromContext(ctx)
	for i := range created {
		metrics.IncAnalysisSubmitted()
		msg := queue.NewMessage(created[i].ID, userID, requestID)
		if err := s.dispatch(ctx, msg); err != nil {
			telemetry.Error("analysis.enqueue_failed", map[string]any{
				"request_id":  requestID,
				"analysis_id": created[i].ID,
				"user_id":     userID,
				"err":         err.Error(),
			})
			updated, uerr := s.Repo.Update(context.WithoutCancel(ctx), created[i].ID, StatusPatch(StatusFailed))
			if uerr != nil {
				telemetry.Error("analysis.fail_update_failed", map[string]any{
					"analysis_id": created[i].ID,
					"err":         uerr.Error(),
				})
				continue
			}
			created[i] = updated
			continue
		}
		telemetry.Info("analysis.status", map[string]any{
			"request_id":        requestID,
			"user_id":           userID,
			"analysis_id":       created[i].ID,
			"file_name":         created[i].FileName,
			"status":            string(StatusPending),
			"status_transition": "->" + string(StatusPending),
		})
	}
	return created, nil
}

func (s *Service) store(ctx context.Context, userID string, up Upload) (Analysis, string, error) {
	name := strings.TrimSpace(up.FileName)
	if name == "" || up.Reader == nil {
		return Analysis{}, "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	key, _, _, err := s.Store.Save(ctx, userID, name, up.Reader)
	if err != nil {
		if errors.Is(err, util.ErrInvalidFileName) {
			return Analysis{}, "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		return Analysis{}, "", fmt.Errorf("save %s: %w", name, err)
	}
	path, err := s.Store.Path(key)
	if err != nil {
		_ = s.Store.Delete(context.WithoutCancel(ctx), key)
		return Analysis{}, "", fmt.Errorf("resolve %s: %w", name, err)
	}

	now := s.clock()
	analysis := Analysis{
		ID:         uuid.NewString(),
		UserID:     userID,
		FileName:   name,
		SourcePath: path,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		_ = s.Store.Delete(context.WithoutCancel(ctx), key)
		return Analysis{}, "", fmt.Errorf("create analysis: %w", err)
	}
	return analysis, key, nil
}

// abandon closes out the jobs of a submission that failed part-way: each
// created record is marked FAILED and its stored file removed.
func (s *Service) abandon(ctx context.Context, created []Analysis, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for i, a := range created {
		if a.ID == "" {
			continue
		}
		if _, err := s.Repo.Update(ctx, a.ID, StatusPatch(StatusFailed)); err != nil {
			telemetry.Error("analysis.fail_update_failed", map[string]any{
				"analysis_id": a.ID,
				"err":         err.Error(),
			})
		}
		if err := s.Store.Delete(ctx, keys[i]); err != nil {
			telemetry.Warn("analysis.upload_cleanup_failed", map[string]any{
				"analysis_id": a.ID,
				"err":         err.Error(),
			})
		}
		telemetry.Warn("analysis.status", map[string]any{
			"request_id":        requestIDFromContext(ctx),
			"user_id":           a.UserID,
			"analysis_id":       a.ID,
			"status":            string(StatusFailed),
			"status_transition": string(StatusPending) + "->" + string(StatusFailed),
			"error_code":        ErrorCodeUpload,
		})
	}
}

func (s *Service) dispatch(ctx context.Context, msg queue.Message) error {
	if s.Dispatcher == nil {
		return queue.ErrNotConfigured
	}
	return s.Dispatcher.Enqueue(ctx, msg)
}

// Get returns the caller's analysis. Jobs owned by someone else report ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if strings.TrimSpace(analysisID) == "" {
		return Analysis{}, ErrNotFound
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// List returns the caller's analyses, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}
