package analyses

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRepoTransitions(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	if err := repo.Create(context.Background(), Analysis{ID: "a1", UserID: "u1", Status: StatusPending, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(context.Background(), Analysis{ID: "a1", UserID: "u1"}); err == nil {
		t.Fatal("expected duplicate id to fail")
	}

	if _, err := repo.Update(context.Background(), "a1", CompletedPatch(Result{Summary: "s"})); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("PENDING->COMPLETED should be rejected, got %v", err)
	}
	updated, err := repo.Update(context.Background(), "a1", StatusPatch(StatusInProgress))
	if err != nil || updated.Status != StatusInProgress {
		t.Fatalf("PENDING->IN_PROGRESS: %+v err=%v", updated, err)
	}
	updated, err = repo.Update(context.Background(), "a1", CompletedPatch(Result{Summary: "s"}))
	if err != nil || updated.Status != StatusCompleted {
		t.Fatalf("IN_PROGRESS->COMPLETED: %+v err=%v", updated, err)
	}
	if updated.Result.Clauses == nil {
		t.Fatal("expected clauses normalized to empty list")
	}
	if _, err := repo.Update(context.Background(), "a1", StatusPatch(StatusFailed)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("COMPLETED->FAILED should be rejected, got %v", err)
	}
	if _, err := repo.Update(context.Background(), "missing", StatusPatch(StatusFailed)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	repo := NewMemoryRepo()
	_ = repo.Create(context.Background(), Analysis{ID: "a1", UserID: "u1", Status: StatusPending})
	_, _ = repo.Update(context.Background(), "a1", StatusPatch(StatusInProgress))
	_, _ = repo.Update(context.Background(), "a1", CompletedPatch(Result{Summary: "s", Clauses: []string{"A"}}))

	got, _ := repo.GetByID(context.Background(), "a1")
	got.Result.Clauses[0] = "mutated"
	again, _ := repo.GetByID(context.Background(), "a1")
	if again.Result.Clauses[0] != "A" {
		t.Fatalf("stored record was mutated through a returned copy")
	}
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		_ = repo.Create(context.Background(), Analysis{ID: id, UserID: "u1", Status: StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	list, err := repo.ListByUser(context.Background(), "u1", 2, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "mid" {
		t.Fatalf("unexpected order %+v", list)
	}
	rest, _ := repo.ListByUser(context.Background(), "u1", 2, 2)
	if len(rest) != 1 || rest[0].ID != "old" {
		t.Fatalf("unexpected page %+v", rest)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusFailed, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusFailed, StatusPending, false},
		{StatusInProgress, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMemoryRepoListClampsPaging(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		_ = repo.Create(context.Background(), Analysis{
			ID: fmt.Sprintf("job-%03d", i), UserID: "u1", Status: StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	cases := []struct {
		limit, offset, want int
	}{
		{limit: 0, offset: 0, want: 20},
		{limit: -5, offset: 0, want: 20},
		{limit: 500, offset: 0, want: 100},
		{limit: 10, offset: -3, want: 10},
		{limit: 50, offset: 100, want: 20},
	}
	for _, tc := range cases {
		list, err := repo.ListByUser(context.Background(), "u1", tc.limit, tc.offset)
		if err != nil {
			t.Fatalf("ListByUser(%d, %d): %v", tc.limit, tc.offset, err)
		}
		if len(list) != tc.want {
			t.Fatalf("ListByUser(%d, %d) returned %d records, want %d", tc.limit, tc.offset, len(list), tc.want)
		}
	}
	first, _ := repo.ListByUser(context.Background(), "u1", 10, -3)
	if first[0].ID != "job-119" {
		t.Fatalf("expected negative offset to start at newest, got %s", first[0].ID)
	}
}
