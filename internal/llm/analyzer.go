package llm

import (
	"context"
	"errors"
	"fmt"

	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/telemetry"
)

// Analyzer turns contract text into a Result using a Completer.
type Analyzer struct {
	Completer Completer
	Model     string
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(c Completer, model string) *Analyzer {
	return &Analyzer{Completer: c, Model: model}
}

// Analyze makes exactly one completion call. It returns an error only when the
// call itself fails; unusable output yields FallbackResult.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if a == nil || a.Completer == nil {
		return Result{}, errors.New("llm analyzer not configured")
	}
	raw, err := a.Completer.Complete(ctx, BuildPrompt(text))
	if err != nil {
		return Result{}, fmt.Errorf("llm completion: %w", err)
	}
	res, err := decodeResult(raw)
	if err != nil {
		metrics.IncAnalysisFallback()
		telemetry.Warn("llm.result.fallback", map[string]any{
			"model":        a.Model,
			"reason":       fallbackReason(err),
			"err":          err.Error(),
			"response_len": len(raw),
		})
		return FallbackResult(), nil
	}
	return res, nil
}
