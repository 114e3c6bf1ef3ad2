package mocks

import (
	"context"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/ports"
)

// MockLLMClient is a mock implementation of the LLMClient port.
type MockLLMClient struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	Prompts      []string
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return `{"intent":"unknown","fields":{}}`, nil
}

// MockInterpreter is a mock implementation of the Interpreter port.
type MockInterpreter struct {
	InterpretFunc func(ctx context.Context, utterance string, state *domain.DialogueState, doc domain.MenuDocument) (*domain.Intent, error)
	Utterances    []string
}

func (m *MockInterpreter) Interpret(ctx context.Context, utterance string, state *domain.DialogueState, doc domain.MenuDocument) (*domain.Intent, error) {
	m.Utterances = append(m.Utterances, utterance)
	if m.InterpretFunc != nil {
		return m.InterpretFunc(ctx, utterance, state, doc)
	}
	return domain.NewIntent(domain.IntentUnknown), nil
}

// MockDialogueEngine is a mock implementation of the DialogueEngine port.
type MockDialogueEngine struct {
	HandleTurnFunc func(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error)
	GreetingFunc   func(state *domain.DialogueState) string
}

func (m *MockDialogueEngine) HandleTurn(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	if m.HandleTurnFunc != nil {
		return m.HandleTurnFunc(ctx, state, utterance)
	}
	return ports.Reply{Speech: "ok"}, nil
}

func (m *MockDialogueEngine) Greeting(state *domain.DialogueState) string {
	if m.GreetingFunc != nil {
		return m.GreetingFunc(state)
	}
	return "hello"
}
