package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAssistantRespond(t *testing.T) {
	mock := NewMock("  It's 72 and sunny.  ")
	a := NewAssistant(mock)

	reply, err := a.Respond(context.Background(), "what's the weather like")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if reply != "It's 72 and sunny." {
		t.Errorf("Unexpected reply: %q", reply)
	}

	req := mock.LastRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("Expected persona and user turn, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Role != RoleSystem || req.Messages[0].Content != DefaultPersona {
		t.Errorf("Expected default persona first, got %+v", req.Messages[0])
	}
	if req.Messages[1].Content != "what's the weather like" {
		t.Errorf("Unexpected user turn: %+v", req.Messages[1])
	}
	if h := a.History(); len(h) != 2 || h[1].Content != "It's 72 and sunny." {
		t.Errorf("Unexpected history: %+v", h)
	}
}

func TestAssistantHistoryIsBounded(t *testing.T) {
	n := 0
	mock := NewMock("")
	mock.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		n++
		return &ChatResponse{Message: NewAssistantMessage(fmt.Sprintf("answer %d", n))}, nil
	}
	a := NewAssistant(mock, WithPersona(""), WithHistoryTurns(2))

	for i := 1; i <= 4; i++ {
		if _, err := a.Respond(context.Background(), fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("Respond %d failed: %v", i, err)
		}
	}

	h := a.History()
	if len(h) != 4 {
		t.Fatalf("Expected 4 remembered messages, got %d", len(h))
	}
	if h[0].Content != "question 3" || h[3].Content != "answer 4" {
		t.Errorf("Expected the last two exchanges, got %+v", h)
	}

	// last request carries the two previous exchanges plus the new turn, no persona
	req := mock.LastRequest()
	if len(req.Messages) != 5 || req.Messages[0].Content != "question 2" {
		t.Errorf("Unexpected request messages: %+v", req.Messages)
	}

	a.Forget()
	if len(a.History()) != 0 {
		t.Error("Expected empty history after Forget")
	}
}

func TestAssistantWithoutMemory(t *testing.T) {
	mock := NewMock("ok")
	a := NewAssistant(mock, WithHistoryTurns(0))
	a.Respond(context.Background(), "one")
	a.Respond(context.Background(), "two")

	if len(a.History()) != 0 {
		t.Error("Expected no history")
	}
	if got := len(mock.LastRequest().Messages); got != 2 {
		t.Errorf("Expected persona and user turn only, got %d", got)
	}
}

func TestAssistantErrors(t *testing.T) {
	a := NewAssistant(NewMock("unused"))
	if _, err := a.Respond(context.Background(), "   "); err != ErrNoMessages {
		t.Errorf("Expected ErrNoMessages, got %v", err)
	}

	boom := errors.New("boom")
	failing := NewAssistant(WithError(boom))
	if _, err := failing.Respond(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if len(failing.History()) != 0 {
		t.Error("Failed exchanges should not be remembered")
	}

	empty := NewAssistant(NewMock("   "))
	if _, err := empty.Respond(context.Background(), "hello"); err != ErrEmptyResponse {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}
