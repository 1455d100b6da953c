package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, file_name, source_path, status, result, created_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, user_id, file_name, source_path, status, result, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	resultPayload, err := marshalResult(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.FileName,
		analysis.SourcePath,
		string(analysis.Status),
		resultPayload,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// Update applies patch in a single statement. A status change only matches rows
// whose current status may legally precede it.
func (r *PGRepo) Update(ctx context.Context, analysisID string, patch Patch) (Analysis, error) {
	var status any
	guard := ""
	if patch.Status != nil {
		status = string(*patch.Status)
		guard = "\n  AND " + transitionGuard(*patch.Status)
	}
	resultPayload, err := marshalResult(patch.Result)
	if err != nil {
		return Analysis{}, err
	}

	query := `
UPDATE analyses
SET status = COALESCE($2::text, status),
    result = COALESCE($3::jsonb, result),
    updated_at = now()
WHERE id = $1` + guard + `
RETURNING ` + analysisColumns

	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, status, resultPayload))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, err
	}
	current, getErr := r.GetByID(ctx, analysisID)
	if getErr != nil {
		return Analysis{}, getErr
	}
	return Analysis{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *patch.Status)
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	limit, offset = clampPage(limit, offset)

	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var status string
	var result sql.NullString
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.FileName,
		&a.SourcePath,
		&status,
		&result,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Status = Status(status)
	if result.Valid && result.String != "" {
		var res Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return Analysis{}, fmt.Errorf("decode result for %s: %w", a.ID, err)
		}
		if res.Clauses == nil {
			res.Clauses = []string{}
		}
		a.Result = &res
	}
	return a, nil
}

func marshalResult(res *Result) (any, error) {
	if res == nil {
		return nil, nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func transitionGuard(next Status) string {
	from := predecessors[next]
	if len(from) == 0 {
		return "FALSE"
	}
	quoted := make([]string, 0, len(from))
	for _, s := range from {
		quoted = append(quoted, "'"+string(s)+"'")
	}
	return "status IN (" + strings.Join(quoted, ", ") + ")"
}
