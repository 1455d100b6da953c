package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/analyses"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/telemetry"
)

// Runner executes one analysis job. *analyses.Pipeline satisfies it.
type Runner interface {
	Process(ctx context.Context, analysisID, userID string) string
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the payload length and SHA-256 hash.
func ComputeMeta(body []byte) MessageMeta {
	if len(body) == 0 {
		return MessageMeta{}
	}
	sum := sha256.Sum256(body)
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty task payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty task payload" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode task"
	}
	return "decode task: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingAnalysisID indicates a payload without an analysis id.
type ErrMissingAnalysisID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnalysisID) Error() string { return "missing analysis id" }

// ParseMessage validates and decodes a task payload.
func ParseMessage(body []byte) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(string(body)) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage(body)
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Run processes a decoded message with the request id attached to ctx.
func Run(ctx context.Context, runner Runner, msg queue.Message) string {
	ctx = analyses.WithRequestID(ctx, msg.RequestID)
	return runner.Process(ctx, msg.AnalysisID, msg.UserID)
}

// HandleTask is the asynq handler for queue.TypeAnalysisRun. Malformed payloads
// are not retried; the pipeline itself never fails the task.
func HandleTask(ctx context.Context, runner Runner, task *asynq.Task) error {
	if runner == nil {
		return errors.New("analysis pipeline not configured")
	}
	metrics.IncJobsReceived()
	msg, meta, err := ParseMessage(task.Payload())
	if err != nil {
		telemetry.Error("worker.task_rejected", map[string]any{
			"task_type": task.Type(),
			"body_len":  meta.BodyLen,
			"body_sha":  meta.BodySHA,
			"err":       err.Error(),
		})
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	telemetry.Info("worker.task_received", map[string]any{
		"analysis_id": msg.AnalysisID,
		"request_id":  msg.RequestID,
		"body_sha":    meta.BodySHA,
	})
	marker := Run(ctx, runner, msg)
	telemetry.Info("worker.task_done", map[string]any{
		"analysis_id": msg.AnalysisID,
		"request_id":  msg.RequestID,
		"result":      marker,
	})
	return nil
}

// NewServeMux routes analysis tasks to runner.
func NewServeMux(runner Runner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeAnalysisRun, func(ctx context.Context, task *asynq.Task) error {
		return HandleTask(ctx, runner, task)
	})
	return mux
}
