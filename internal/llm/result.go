package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FallbackSummary is stored when the model output cannot be used.
const FallbackSummary = "Failed to parse analysis from AI."

// Result is the structured analysis of one contract.
type Result struct {
	Summary string   `json:"summary"`
	Clauses []string `json:"clauses"`
}

// FallbackResult returns the degraded result used for unusable model output.
func FallbackResult() Result {
	return Result{Summary: FallbackSummary, Clauses: []string{}}
}

// IsFallback reports whether r is the fallback result.
func (r Result) IsFallback() bool {
	return r.Summary == FallbackSummary && len(r.Clauses) == 0
}

var (
	errEmptyResponse  = errors.New("empty response")
	errInvalidJSON    = errors.New("invalid json")
	errSchemaMismatch = errors.New("json does not match result schema")
)

const resultSchemaJSON = `{
  "type": "object",
  "required": ["summary", "clauses"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "clauses": {"type": "array", "items": {"type": "string"}}
  }
}`

var resultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", strings.NewReader(resultSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("result.json")
})

// StripCodeFence removes a surrounding ``` fence (with optional language tag).
// The body ends at the last bare ``` line, so trailing prose after the fence is
// dropped. Text that does not start with a fence is returned trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseResult decodes model output into a Result, degrading to FallbackResult
// on any problem.
func ParseResult(raw string) Result {
	res, err := decodeResult(raw)
	if err != nil {
		return FallbackResult()
	}
	return res
}

func decodeResult(raw string) (Result, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return Result{}, errEmptyResponse
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	schema, err := resultSchema()
	if err != nil {
		return Result{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", errSchemaMismatch, err)
	}
	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if res.Clauses == nil {
		res.Clauses = []string{}
	}
	return res, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errEmptyResponse):
		return "empty"
	case errors.Is(err, errInvalidJSON):
		return "malformed"
	case errors.Is(err, errSchemaMismatch):
		return "schema"
	default:
		return "internal"
	}
}
