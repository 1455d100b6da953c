package analyses

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/notify"
	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/users"
)

// CompletedMarker is returned by every pipeline run; callers read the record
// for the actual outcome.
const CompletedMarker = "Completed"

// TextReader extracts plain text from a stored contract.
type TextReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// ContractAnalyzer produces a structured result from contract text.
type ContractAnalyzer interface {
	Analyze(ctx context.Context, text string) (llm.Result, error)
}

// UserDirectory resolves a user to a notification address.
type UserDirectory interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
}

// Pipeline runs one analysis job from PENDING to a terminal status.
type Pipeline struct {
	Repo     Repo
	Reader   TextReader
	Analyzer ContractAnalyzer
	Users    UserDirectory
	Notifier notify.Sender
	// Timeout bounds one run; zero means no limit.
	Timeout time.Duration
}

// Process executes the job. It never returns an error: failures are recorded on
// the job as FAILED and reported to the owner.
func (p *Pipeline) Process(ctx context.Context, analysisID, userID string) (marker string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	startedAt := time.Now()
	var job Analysis
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("analysis.panic", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
				"panic":       fmt.Sprint(r),
				"stack":       string(debug.Stack()),
			})
			p.fail(ctx, analysisID, userID, job.FileName, fmt.Errorf("panic: %v", r), startedAt)
			marker = CompletedMarker
		}
	}()

	job, err := p.Repo.GetByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncAnalysisMissing()
			telemetry.Warn("analysis.missing", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
				"user_id":     userID,
			})
			return CompletedMarker
		}
		p.fail(ctx, analysisID, userID, "", tagged(ErrorCodeStorage, fmt.Errorf("load analysis: %w", err)), startedAt)
		return CompletedMarker
	}
	if userID == "" {
		userID = job.UserID
	}
	if job.Status.Terminal() {
		telemetry.Info("analysis.already_terminal", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"status":      string(job.Status),
		})
		return CompletedMarker
	}

	if _, err := p.Repo.Update(ctx, analysisID, StatusPatch(StatusInProgress)); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			p.logDuplicate(ctx, analysisID, err)
			return CompletedMarker
		}
		p.fail(ctx, analysisID, userID, job.FileName, tagged(ErrorCodeStorage, fmt.Errorf("set in progress: %w", err)), startedAt)
		return CompletedMarker
	}
	metrics.IncAnalysisStarted()
	p.logTransition(ctx, job, StatusPending, StatusInProgress, 0)

	text, err := p.Reader.ReadFile(ctx, job.SourcePath)
	if err != nil {
		p.fail(ctx, analysisID, userID, job.FileName, tagged(ErrorCodeExtraction, fmt.Errorf("read %s: %w", job.FileName, err)), startedAt)
		return CompletedMarker
	}

	res, err := p.Analyzer.Analyze(ctx, text)
	if err != nil {
		p.fail(ctx, analysisID, userID, job.FileName, tagged(ErrorCodeLLM, err), startedAt)
		return CompletedMarker
	}

	result := Result{Summary: res.Summary, Clauses: res.Clauses}
	if _, err := p.Repo.Update(ctx, analysisID, CompletedPatch(result)); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			p.logDuplicate(ctx, analysisID, err)
			return CompletedMarker
		}
		p.fail(ctx, analysisID, userID, job.FileName, tagged(ErrorCodeStorage, fmt.Errorf("store result: %w", err)), startedAt)
		return CompletedMarker
	}
	elapsed := metrics.SinceMs(startedAt)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(elapsed)
	p.logTransition(ctx, job, StatusInProgress, StatusCompleted, elapsed)

	p.notify(ctx, userID, notify.SubjectCompleted, notify.CompletedMessage(job.FileName))
	return CompletedMarker
}

// fail is the umbrella handler: it records FAILED and sends the failure notice.
// Neither step may raise.
func (p *Pipeline) fail(ctx context.Context, analysisID, userID, fileName string, cause error, startedAt time.Time) {
	code := classifyFailure(cause)
	elapsed := metrics.SinceMs(startedAt)
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(elapsed)

	updateCtx := context.WithoutCancel(ctx)
	if _, err := p.Repo.Update(updateCtx, analysisID, StatusPatch(StatusFailed)); err != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"err":         err.Error(),
			"cause":       sanitizeError(cause),
		})
	}
	telemetry.Error("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           userID,
		"analysis_id":       analysisID,
		"status":            string(StatusFailed),
		"status_transition": "->" + string(StatusFailed),
		"error_code":        code,
		"err":               sanitizeError(cause),
		"duration_ms":       elapsed,
	})

	p.notify(updateCtx, userID, notify.SubjectFailed, notify.FailedMessage(fileName))
}

// notify sends a best-effort message to the job owner. Lookup failures and
// panics are logged and swallowed.
func (p *Pipeline) notify(ctx context.Context, userID, subject, message string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncNotificationFailed()
			telemetry.Error("notify.panic", map[string]any{"user_id": userID, "subject": subject, "panic": fmt.Sprint(r)})
		}
	}()
	if p.Notifier == nil || p.Users == nil || userID == "" {
		metrics.IncNotificationSkipped()
		return
	}
	user, err := p.Users.GetByID(ctx, userID)
	if err != nil {
		metrics.IncNotificationSkipped()
		if !errors.Is(err, users.ErrNotFound) {
			telemetry.Warn("notify.user_lookup_failed", map[string]any{"user_id": userID, "err": err.Error()})
		}
		return
	}
	if strings.TrimSpace(user.Email) == "" {
		metrics.IncNotificationSkipped()
		return
	}
	p.Notifier.Send(ctx, user.Email, subject, message)
}

// logDuplicate records a run that lost the status race to another delivery of
// the same job.
func (p *Pipeline) logDuplicate(ctx context.Context, analysisID string, err error) {
	metrics.IncAnalysisDuplicate()
	telemetry.Warn("analysis.duplicate_delivery", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"err":         err.Error(),
	})
}

func (p *Pipeline) logTransition(ctx context.Context, job Analysis, from, to Status, durationMs float64) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           job.UserID,
		"analysis_id":       job.ID,
		"file_name":         job.FileName,
		"status":            string(to),
		"status_transition": string(from) + "->" + string(to),
	}
	if durationMs > 0 {
		fields["duration_ms"] = durationMs
	}
	telemetry.Info("analysis.status", fields)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
