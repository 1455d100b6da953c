package llm

import (
	"reflect"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "no fence", in: "  {\"a\":1}\n", want: `{"a":1}`},
		{name: "missing closing fence", in: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "surrounding whitespace", in: "\n ```json\n{\"a\":1}\n```  \n", want: `{"a":1}`},
		{name: "empty", in: "", want: ""},
		{name: "prose after fence", in: "```json\n{\"a\":1}\n```\nLet me know if you need more detail.", want: `{"a":1}`},
		{name: "last bare fence wins", in: "```json\n{\"a\":\"```\"}\n```\nnote\n```", want: "{\"a\":\"```\"}\n```\nnote"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := StripCodeFence(tt.in)
			if got != tt.want {
				t.Fatalf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := StripCodeFence(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestParseResult_FencedAndBareAgree(t *testing.T) {
	fenced := ParseResult("```json\n{\"summary\":\"s\",\"clauses\":[]}\n```")
	bare := ParseResult(`{"summary":"s","clauses":[]}`)
	want := Result{Summary: "s", Clauses: []string{}}
	if !reflect.DeepEqual(fenced, want) {
		t.Fatalf("fenced = %+v, want %+v", fenced, want)
	}
	if !reflect.DeepEqual(bare, fenced) {
		t.Fatalf("bare %+v differs from fenced %+v", bare, fenced)
	}
}

func TestParseResult_TrailingProseAfterFence(t *testing.T) {
	got := ParseResult("```json\n{\"summary\":\"Short deal\",\"clauses\":[\"Term\"]}\n```\nLet me know if you need anything else.")
	want := Result{Summary: "Short deal", Clauses: []string{"Term"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseResult_Fallbacks(t *testing.T) {
	inputs := map[string]string{
		"not json":        "this is not json",
		"empty":           "",
		"whitespace":      "   \n",
		"fence only":      "```json\n```",
		"array":           `["a"]`,
		"missing clauses": `{"summary":"s"}`,
		"empty summary":   `{"summary":"","clauses":[]}`,
		"wrong types":     `{"summary":"s","clauses":[1,2]}`,
		"truncated":       `{"summary":"s","clauses":["a"`,
	}
	for name, in := range inputs {
		in := in
		t.Run(name, func(t *testing.T) {
			got := ParseResult(in)
			if !reflect.DeepEqual(got, FallbackResult()) {
				t.Fatalf("ParseResult(%q) = %+v, want fallback", in, got)
			}
			if !got.IsFallback() {
				t.Fatal("expected IsFallback")
			}
		})
	}
}

func TestParseResult_KeepsClauseOrder(t *testing.T) {
	got := ParseResult(`{"summary":"Lease","clauses":["Rent","Term","Deposit"],"extra":true}`)
	want := Result{Summary: "Lease", Clauses: []string{"Rent", "Term", "Deposit"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
