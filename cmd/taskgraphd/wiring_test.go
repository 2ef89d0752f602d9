package main

import (
	"context"
	"testing"

	"github.com/haasonsaas/taskgraph/internal/config"
)

func TestClientForProviderRejectsUnknownName(t *testing.T) {
	_, err := clientForProvider(context.Background(), "made-up", config.ModelConfig{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestClientForProviderRejectsMissingAnthropicConfig(t *testing.T) {
	_, err := clientForProvider(context.Background(), "anthropic", config.ModelConfig{})
	if err == nil {
		t.Fatal("expected error when anthropic provider config is absent")
	}
}

func TestBuildModelClientRequiresDefaultProvider(t *testing.T) {
	_, err := buildModelClient(context.Background(), config.ModelConfig{})
	if err == nil {
		t.Fatal("expected error when default_provider is unset")
	}
}

func TestBuildModelClientSkipsDuplicateFallback(t *testing.T) {
	_, err := buildModelClient(context.Background(), config.ModelConfig{
		DefaultProvider: "anthropic",
		Providers: map[string]config.ModelProviderConfig{
			"anthropic": {APIKey: "test-key", DefaultModel: "claude-3-5-sonnet"},
		},
		FallbackChain: []string{"anthropic"},
	})
	if err != nil {
		t.Fatalf("expected fallback chain naming only the primary to succeed, got %v", err)
	}
}
