package workerproc

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/queue"
)

type recordingRunner struct {
	calls    int
	id, user string
}

func (r *recordingRunner) Process(ctx context.Context, analysisID, userID string) string {
	r.calls++
	r.id = analysisID
	r.user = userID
	return "Completed"
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage(nil); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	_, meta, err := ParseMessage([]byte("{not json"))
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen != 9 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if _, _, err := ParseMessage([]byte(`{"requestId":"r1"}`)); !errors.As(err, &ErrMissingAnalysisID{}) {
		t.Fatalf("expected ErrMissingAnalysisID, got %v", err)
	}
}

func TestHandleTaskRunsPipeline(t *testing.T) {
	task, err := queue.NewTask(queue.NewMessage("analysis-1", "user-1", "req-1"))
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	runner := &recordingRunner{}
	if err := HandleTask(context.Background(), runner, task); err != nil {
		t.Fatalf("HandleTask: %v", err)
	}
	if runner.calls != 1 || runner.id != "analysis-1" || runner.user != "user-1" {
		t.Fatalf("unexpected runner state %+v", runner)
	}
}

func TestHandleTaskMalformedSkipsRetry(t *testing.T) {
	runner := &recordingRunner{}
	err := HandleTask(context.Background(), runner, asynq.NewTask(queue.TypeAnalysisRun, []byte("garbage")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("runner should not be called for malformed payloads")
	}
}

func TestHandleTaskNilRunner(t *testing.T) {
	if err := HandleTask(context.Background(), nil, asynq.NewTask(queue.TypeAnalysisRun, nil)); err == nil {
		t.Fatal("expected error for nil runner")
	}
}
