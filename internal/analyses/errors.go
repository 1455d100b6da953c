package analyses

import (
	"context"
	"errors"

	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/llm"
)

var (
	ErrNotFound          = errors.New("analysis not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrorCodeExtraction        = "EXTRACTION_ERROR"
	ErrorCodeLLM               = "LLM_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeUpload            = "UPLOAD_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// stageError tags a pipeline failure with the step that produced it.
type stageError struct {
	code string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func tagged(code string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{code: code, err: err}
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return ErrorCodeUnsupportedFormat
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeLLMTimeout
	case errors.Is(err, llm.ErrNotImplemented):
		return ErrorCodeLLM
	}
	var se *stageError
	if errors.As(err, &se) {
		return se.code
	}
	return ErrorCodeInternal
}
