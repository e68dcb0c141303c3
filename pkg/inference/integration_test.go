//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests for real API calls.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestOpenAIIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	client, err := NewClient(
		WithAPIKey(apiKey),
		WithModel("gpt-4o-mini"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Health", func(t *testing.T) {
		if err := client.Health(ctx); err != nil {
			t.Errorf("Health check failed: %v", err)
		}
	})

	t.Run("Assistant", func(t *testing.T) {
		a := NewAssistant(client)
		reply, err := a.Respond(ctx, "what's the weather usually like in Seattle in winter")
		if err != nil {
			t.Fatalf("Respond failed: %v", err)
		}
		t.Logf("Reply: %s", reply)
	})
}

func TestOllamaIntegration(t *testing.T) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		t.Skip("OLLAMA_BASE_URL not set")
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "llama3.2"
	}

	client, err := NewClient(WithBaseURL(baseURL), WithModel(model))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := client.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("Say hello in three words.")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	t.Logf("Response: %s (%dms)", resp.Message.Content, resp.LatencyMs)
}

func TestGeminiIntegration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := NewGemini(ctx, WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("Failed to create Gemini provider: %v", err)
	}
	defer g.Close()

	if err := g.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	chain, err := NewChain(g)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{
			NewSystemMessage("Answer in one short sentence."),
			NewUserMessage("How far is the moon?"),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	t.Logf("Response: %s (finish=%s)", resp.Message.Content, resp.FinishReason)
}
