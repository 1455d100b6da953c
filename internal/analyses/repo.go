package analyses

import "context"

// Repo persists analysis records. Update applies only non-nil patch fields,
// refreshes UpdatedAt, rejects status regressions with ErrInvalidTransition
// and returns the updated record.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	Update(ctx context.Context, analysisID string, patch Patch) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// clampPage normalizes list paging so every Repo applies the same bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
