package analyses

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Analysis
	byUser map[string][]string
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Analysis),
		byUser: make(map[string][]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[analysis.ID]; exists {
		return fmt.Errorf("analysis %s already exists", analysis.ID)
	}
	r.byID[analysis.ID] = cloneAnalysis(analysis)
	r.byUser[analysis.UserID] = append(r.byUser[analysis.UserID], analysis.ID)
	return nil
}

// GetByID returns an analysis by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return cloneAnalysis(analysis), nil
}

// Update applies patch atomically under the write lock.
func (r *MemoryRepo) Update(ctx context.Context, analysisID string, patch Patch) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	if patch.Status != nil {
		if !analysis.Status.CanTransitionTo(*patch.Status) {
			return Analysis{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, analysis.Status, *patch.Status)
		}
		analysis.Status = *patch.Status
	}
	if patch.Result != nil {
		res := cloneResult(*patch.Result)
		analysis.Result = &res
	}
	analysis.UpdatedAt = r.now()
	r.byID[analysisID] = analysis
	return cloneAnalysis(analysis), nil
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	ids := r.byUser[userID]
	out := make([]Analysis, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneAnalysis(r.byID[id]))
	}
	r.mu.RUnlock()

	if offset >= len(out) {
		return []Analysis{}, nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func cloneAnalysis(a Analysis) Analysis {
	if a.Result != nil {
		res := cloneResult(*a.Result)
		a.Result = &res
	}
	return a
}

func cloneResult(r Result) Result {
	clauses := make([]string, len(r.Clauses))
	copy(clauses, r.Clauses)
	r.Clauses = clauses
	return r
}
