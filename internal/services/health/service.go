package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports readiness of the process and its backing store.
type Service struct {
	db       Pinger
	dispatch string
	timeout  time.Duration
}

// NewService constructs a health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger, dispatchMode string) *Service {
	return &Service{db: db, dispatch: dispatchMode, timeout: 2 * time.Second}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Storage  string `json:"storage"`
	Dispatch string `json:"dispatch"`
	Error    string `json:"error,omitempty"`
}

// Check pings the database when one is configured.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{OK: true, Storage: "memory", Dispatch: s.dispatch}
	if s.db == nil {
		return st
	}
	st.Storage = "postgres"
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		st.OK = false
		st.Error = err.Error()
	}
	return st
}
