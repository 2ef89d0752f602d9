package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

func TestRegisterDemoToolsRegistersBothTools(t *testing.T) {
	reg := toolregistry.New(nil)
	registerDemoTools(reg)

	for _, name := range []string{"current_time", "text_stats"} {
		if _, ok := reg.Get(name); !ok {
			t.Fatalf("expected %q to be registered", name)
		}
	}
}

func TestCurrentTimeToolReturnsRFC3339(t *testing.T) {
	tool := currentTimeTool()
	out, err := tool.Func(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.(string); !ok {
		t.Fatalf("expected string result, got %T", out)
	}
}

func TestCurrentTimeToolRejectsUnknownTimezone(t *testing.T) {
	tool := currentTimeTool()
	_, err := tool.Func(context.Background(), json.RawMessage(`{"timezone":"Nowhere/Imaginary"}`))
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestTextStatsToolCountsWordsAndLines(t *testing.T) {
	tool := textStatsTool()
	out, err := tool.Func(context.Background(), json.RawMessage(`{"text":"hello world\nsecond line"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, ok := out.(textStatsResult)
	if !ok {
		t.Fatalf("expected textStatsResult, got %T", out)
	}
	if stats.Words != 4 {
		t.Fatalf("expected 4 words, got %d", stats.Words)
	}
	if stats.Lines != 2 {
		t.Fatalf("expected 2 lines, got %d", stats.Lines)
	}
}

func TestCountWordsHandlesEmptyString(t *testing.T) {
	if got := countWords(""); got != 0 {
		t.Fatalf("expected 0 words, got %d", got)
	}
}
