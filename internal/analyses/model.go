package analyses

import "time"

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// predecessors lists, for each target status, the statuses it may be entered from.
var predecessors = map[Status][]Status{
	StatusInProgress: {StatusPending},
	StatusCompleted:  {StatusInProgress},
	StatusFailed:     {StatusPending, StatusInProgress},
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// forward-only.
func (s Status) CanTransitionTo(next Status) bool {
	for _, from := range predecessors[next] {
		if from == s {
			return true
		}
	}
	return false
}

// Result is the structured summary and clause list produced for a contract.
type Result struct {
	Summary string   `json:"summary"`
	Clauses []string `json:"clauses"`
}

// Analysis is one uploaded contract and its analysis job.
type Analysis struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FileName   string    `json:"fileName"`
	SourcePath string    `json:"sourcePath"`
	Status     Status    `json:"status"`
	Result     *Result   `json:"result,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Status *Status
	Result *Result
}

// StatusPatch builds a patch that only moves the status.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// CompletedPatch builds the patch that stores a result and completes the job.
func CompletedPatch(r Result) Patch {
	s := StatusCompleted
	if r.Clauses == nil {
		r.Clauses = []string{}
	}
	return Patch{Status: &s, Result: &r}
}
