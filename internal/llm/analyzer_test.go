package llm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestAnalyzer_SingleCallWithPrompt(t *testing.T) {
	var calls int
	var got []Message
	a := NewAnalyzer(CompleterFunc(func(ctx context.Context, messages []Message) (string, error) {
		calls++
		got = messages
		return "```json\n{\"summary\":\"Short deal\",\"clauses\":[\"Term\"]}\n```", nil
	}), "gpt-3.5-turbo")

	res, err := a.Analyze(context.Background(), "Sample contract body")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one completion call, got %d", calls)
	}
	if !reflect.DeepEqual(res, Result{Summary: "Short deal", Clauses: []string{"Term"}}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(got) != 2 || got[0].Role != "system" || got[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if !strings.Contains(got[1].Content, "Sample contract body") {
		t.Fatalf("user prompt does not embed contract text: %q", got[1].Content)
	}
	if !strings.Contains(got[1].Content, `"summary"`) || !strings.Contains(got[1].Content, `"clauses"`) {
		t.Fatalf("user prompt does not name result keys: %q", got[1].Content)
	}
}

func TestAnalyzer_EmptyContentFallsBack(t *testing.T) {
	a := NewAnalyzer(CompleterFunc(func(ctx context.Context, messages []Message) (string, error) {
		return "", nil
	}), "m")
	res, err := a.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.IsFallback() {
		t.Fatalf("expected fallback, got %+v", res)
	}
}

func TestAnalyzer_CompletionErrorPropagates(t *testing.T) {
	boom := errors.New("401 unauthorized")
	a := NewAnalyzer(CompleterFunc(func(ctx context.Context, messages []Message) (string, error) {
		return "", boom
	}), "m")
	if _, err := a.Analyze(context.Background(), "text"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped completion error, got %v", err)
	}
}

func TestAnalyzer_PlaceholderErrors(t *testing.T) {
	a := NewAnalyzer(PlaceholderClient{}, "")
	if _, err := a.Analyze(context.Background(), "text"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}
