package interpreter

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/mocks"
)

func testMenu() domain.MenuDocument {
	return domain.MenuDocument{
		Version: 1,
		Items: []domain.MenuItem{
			{ID: "i1", Name: "Burger Deluxe", Price: 9.99, Category: "Mains", Available: true},
			{ID: "i2", Name: "Veggie Burger", Price: 8.50, Category: "Mains", Available: true},
			{ID: "i3", Name: "Tiramisu", Price: 6.00, Category: "Desserts", Available: true},
		},
	}
}

func TestInterpret_RuleBasedAdd(t *testing.T) {
	// Arrange
	svc := NewService(nil, zap.NewNop())

	// Act
	intent, err := svc.Interpret(context.Background(), "add a Caesar Salad for 8.50", nil, testMenu())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentAdd {
		t.Fatalf("expected add intent, got %s", intent.Kind)
	}
	if got := intent.Fields[domain.FieldName].Text; got != "Caesar Salad" {
		t.Errorf("expected name 'Caesar Salad', got %q", got)
	}
	if got := intent.Fields[domain.FieldPrice].Number; got != 8.50 {
		t.Errorf("expected price 8.50, got %v", got)
	}
}

func TestInterpret_RuleBasedAdd_NoNameGiven(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "add a new item", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentAdd {
		t.Fatalf("expected add intent, got %s", intent.Kind)
	}
	if _, ok := intent.Fields[domain.FieldName]; ok {
		t.Error("expected no name slot for a generic add")
	}
}

func TestInterpret_RuleBasedDelete_UniqueTarget(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "remove the tiramisu from the menu", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentDelete {
		t.Fatalf("expected delete intent, got %s", intent.Kind)
	}
	if intent.TargetID != "i3" {
		t.Errorf("expected target i3, got %q", intent.TargetID)
	}
}

func TestInterpret_RuleBasedDelete_AmbiguousTarget(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "delete the burger", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !intent.Ambiguous() {
		t.Fatal("expected ambiguous target")
	}
	// Candidates keep document order so positional answers stay stable.
	if intent.Candidates[0].ID != "i1" || intent.Candidates[1].ID != "i2" {
		t.Errorf("expected candidates [i1 i2], got %v", intent.Candidates)
	}
}

func TestInterpret_RuleBasedEdit_FieldOfTarget(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "change the price of the burger deluxe to 12.50", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentEdit {
		t.Fatalf("expected edit intent, got %s", intent.Kind)
	}
	if intent.TargetID != "i1" {
		t.Errorf("expected target i1, got %q", intent.TargetID)
	}
	if got := intent.Fields[domain.FieldPrice].Number; got != 12.50 {
		t.Errorf("expected price 12.50, got %v", got)
	}
}

func TestInterpret_Cancel(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "never mind", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentCancel {
		t.Errorf("expected cancel intent, got %s", intent.Kind)
	}
}

func TestInterpret_ModelFallback(t *testing.T) {
	// Arrange
	llm := &mocks.MockLLMClient{
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"intent":"edit","target":"tiramisu","fields":{"price":7.5}}`, nil
		},
	}
	svc := NewService(llm, zap.NewNop())

	// Act
	intent, err := svc.Interpret(context.Background(), "could you make the dessert a bit pricier, say seven fifty", nil, testMenu())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentEdit {
		t.Fatalf("expected edit intent, got %s", intent.Kind)
	}
	if intent.TargetID != "i3" {
		t.Errorf("expected target i3, got %q", intent.TargetID)
	}
	if got := intent.Fields[domain.FieldPrice].Number; got != 7.5 {
		t.Errorf("expected price 7.5, got %v", got)
	}
	if len(llm.Prompts) != 1 {
		t.Errorf("expected one model call, got %d", len(llm.Prompts))
	}
}

func TestInterpret_MalformedModelReply_IsUnknown(t *testing.T) {
	llm := &mocks.MockLLMClient{
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "I think the user wants to add something", nil
		},
	}
	svc := NewService(llm, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "hmm let me think about the menu", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentUnknown {
		t.Errorf("expected unknown intent, got %s", intent.Kind)
	}
}

func TestInterpret_ModelFailure_IsUnavailable(t *testing.T) {
	llm := &mocks.MockLLMClient{
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	svc := NewService(llm, zap.NewNop())

	_, err := svc.Interpret(context.Background(), "something the rules can't place", nil, testMenu())

	if !errors.Is(err, domain.ErrInterpreterUnavailable) {
		t.Fatalf("expected ErrInterpreterUnavailable, got %v", err)
	}
}

func TestInterpret_NoModelConfigured_IsUnknown(t *testing.T) {
	svc := NewService(nil, zap.NewNop())

	intent, err := svc.Interpret(context.Background(), "what's the weather like", nil, testMenu())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.Kind != domain.IntentUnknown {
		t.Errorf("expected unknown intent, got %s", intent.Kind)
	}
}

func TestMatchItems_ExactBeatsFuzzy(t *testing.T) {
	doc := domain.MenuDocument{Items: []domain.MenuItem{
		{ID: "a", Name: "Burger"},
		{ID: "b", Name: "Burger Deluxe"},
	}}

	matched := MatchItems("burger", doc)

	if len(matched) != 1 || matched[0].ID != "a" {
		t.Fatalf("expected exact match [a], got %v", matched)
	}
}

func TestMatchItems_NoMatch(t *testing.T) {
	if matched := MatchItems("sushi platter", testMenu()); matched != nil {
		t.Fatalf("expected no matches, got %v", matched)
	}
}
