package dialogue

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/mocks"
	"github.com/savoro/menuvoice/internal/ports"
	"github.com/savoro/menuvoice/internal/service/interpreter"
	"github.com/savoro/menuvoice/internal/service/menustore"
)

// newTestEngine wires a real store and the rule-based interpreter path, so
// these tests exercise full conversations end to end.
func newTestEngine(t *testing.T, items ...domain.MenuItem) (*Engine, *menustore.Store, *mocks.MockChangePublisher) {
	t.Helper()
	publisher := &mocks.MockChangePublisher{}
	store := menustore.NewStore(publisher, zap.NewNop())
	if len(items) > 0 {
		store.ReplaceSnapshot(context.Background(), items)
	}
	interp := interpreter.NewService(nil, zap.NewNop())
	return NewEngine(store, interp, 3, zap.NewNop()), store, publisher
}

func seedMenu() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: "i1", Name: "Burger Deluxe", Price: 9.99, Category: "Mains", Available: true},
		{ID: "i2", Name: "Veggie Burger", Price: 8.50, Category: "Mains", Available: true},
		{ID: "i3", Name: "Tiramisu", Price: 6.00, Category: "Desserts", Available: true},
	}
}

func turn(t *testing.T, e *Engine, state *domain.DialogueState, utterance string) ports.Reply {
	t.Helper()
	reply, err := e.HandleTurn(context.Background(), state, utterance)
	if err != nil {
		t.Fatalf("turn %q failed: %v", utterance, err)
	}
	return reply
}

func TestAddFlow_SlotFilling(t *testing.T) {
	// Arrange
	engine, store, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	// Act: the engine asks for exactly the missing fields, one at a time.
	r1 := turn(t, engine, state, "add a new item")
	r2 := turn(t, engine, state, "Caesar Salad")
	r3 := turn(t, engine, state, "8.50")
	r4 := turn(t, engine, state, "Starters")

	// Assert
	if !strings.Contains(r1.Speech, "called") {
		t.Errorf("expected name question, got %q", r1.Speech)
	}
	if !strings.Contains(r2.Speech, "price") {
		t.Errorf("expected price question, got %q", r2.Speech)
	}
	if !strings.Contains(r3.Speech, "category") {
		t.Errorf("expected category question, got %q", r3.Speech)
	}
	if !strings.Contains(r4.Speech, "Caesar Salad") || !strings.Contains(r4.Speech, "8.50") {
		t.Errorf("expected confirmation summary, got %q", r4.Speech)
	}
	if state.Phase != domain.PhaseConfirming {
		t.Fatalf("expected confirming phase, got %s", state.Phase)
	}
	if len(store.Snapshot().Items) != 0 {
		t.Fatal("nothing may be committed before confirmation")
	}

	r5 := turn(t, engine, state, "yes")
	if r5.Committed == nil {
		t.Fatal("expected a committed change event")
	}
	if r5.Committed.Operation != domain.OperationAdd {
		t.Errorf("expected add operation, got %s", r5.Committed.Operation)
	}
	doc := store.Snapshot()
	if len(doc.Items) != 1 || doc.Items[0].Name != "Caesar Salad" || doc.Items[0].Price != 8.50 {
		t.Errorf("unexpected committed item: %+v", doc.Items)
	}
	if !state.Idle() {
		t.Error("expected state reset to idle after commit")
	}
}

func TestAddFlow_InlineSlotsSkipQuestions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	r1 := turn(t, engine, state, "add a Caesar Salad for 8.50")

	// Name and price were spoken inline; only the category is missing.
	if !strings.Contains(r1.Speech, "category") {
		t.Errorf("expected category question, got %q", r1.Speech)
	}

	r2 := turn(t, engine, state, "Starters")
	if state.Phase != domain.PhaseConfirming {
		t.Fatalf("expected confirming phase after last slot, got %s", state.Phase)
	}
	if !strings.Contains(r2.Speech, "Caesar Salad") {
		t.Errorf("expected confirmation summary, got %q", r2.Speech)
	}
}

func TestDeleteFlow_DisambiguationByPosition(t *testing.T) {
	// Arrange
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	// Act
	r1 := turn(t, engine, state, "delete the burger")

	// Assert: candidates are listed in document order.
	if state.Phase != domain.PhaseDisambiguating {
		t.Fatalf("expected disambiguating phase, got %s", state.Phase)
	}
	if !strings.Contains(r1.Speech, "first Burger Deluxe") || !strings.Contains(r1.Speech, "second Veggie Burger") {
		t.Errorf("expected ordered candidate list, got %q", r1.Speech)
	}

	r2 := turn(t, engine, state, "the second one")
	if !strings.Contains(r2.Speech, "Veggie Burger") {
		t.Errorf("expected delete confirmation for Veggie Burger, got %q", r2.Speech)
	}

	r3 := turn(t, engine, state, "yes")
	if r3.Committed == nil || r3.Committed.Operation != domain.OperationDelete {
		t.Fatalf("expected committed delete, got %+v", r3.Committed)
	}
	if _, ok := store.Snapshot().FindByID("i2"); ok {
		t.Error("expected Veggie Burger to be removed")
	}
	if _, ok := store.Snapshot().FindByID("i1"); !ok {
		t.Error("Burger Deluxe must survive")
	}
}

func TestDisambiguation_ByName(t *testing.T) {
	engine, _, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	turn(t, engine, state, "delete the burger")
	r := turn(t, engine, state, "the veggie one")

	// "veggie" uniquely narrows the candidate set.
	if state.Phase != domain.PhaseConfirming {
		t.Fatalf("expected confirming phase, got %s", state.Phase)
	}
	if !strings.Contains(r.Speech, "Veggie Burger") {
		t.Errorf("expected Veggie Burger confirmation, got %q", r.Speech)
	}
}

func TestEditFlow_SummaryReadsPreviousValues(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	r1 := turn(t, engine, state, "change the price of the burger deluxe to 12.50")

	if state.Phase != domain.PhaseConfirming {
		t.Fatalf("expected confirming phase, got %s", state.Phase)
	}
	if !strings.Contains(r1.Speech, "9.99") || !strings.Contains(r1.Speech, "12.50") {
		t.Errorf("expected old and new price in summary, got %q", r1.Speech)
	}

	r2 := turn(t, engine, state, "go ahead")
	if r2.Committed == nil {
		t.Fatal("expected committed update")
	}
	item, _ := store.Snapshot().FindByID("i1")
	if item.Price != 12.50 {
		t.Errorf("expected price 12.50, got %v", item.Price)
	}
}

func TestEditFlow_AsksWhichFieldThenValue(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	r1 := turn(t, engine, state, "edit the tiramisu")
	if !strings.Contains(r1.Speech, "change") {
		t.Errorf("expected field-choice question, got %q", r1.Speech)
	}

	r2 := turn(t, engine, state, "the description")
	if !strings.Contains(r2.Speech, "description") {
		t.Errorf("expected description question, got %q", r2.Speech)
	}

	turn(t, engine, state, "Classic Italian dessert with mascarpone")
	r4 := turn(t, engine, state, "yes")
	if r4.Committed == nil {
		t.Fatal("expected committed update")
	}
	item, _ := store.Snapshot().FindByID("i3")
	if item.Description != "Classic Italian dessert with mascarpone" {
		t.Errorf("unexpected description: %q", item.Description)
	}
}

func TestConfirmation_NoLeavesMenuUntouched(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")
	before := store.Snapshot()

	turn(t, engine, state, "delete the tiramisu")
	r := turn(t, engine, state, "no")

	if !r.Cancelled {
		t.Error("expected cancelled reply")
	}
	if !state.Idle() {
		t.Error("expected idle state after decline")
	}
	after := store.Snapshot()
	if after.Version != before.Version || len(after.Items) != len(before.Items) {
		t.Error("declining the confirmation must not change the menu")
	}
}

func TestCancel_IsIdempotentFromIdle(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	for i := 0; i < 2; i++ {
		r := turn(t, engine, state, "cancel")
		if !r.Cancelled {
			t.Errorf("cancel %d: expected cancelled reply", i)
		}
		if !state.Idle() {
			t.Errorf("cancel %d: expected idle state", i)
		}
	}
}

func TestCancel_MidCollection(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	turn(t, engine, state, "add a new item")
	r := turn(t, engine, state, "actually, never mind")

	if !r.Cancelled {
		t.Error("expected cancelled reply")
	}
	if !state.Idle() {
		t.Error("expected idle state after cancellation")
	}
}

func TestConfirmation_RetryBoundForcesReset(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	turn(t, engine, state, "delete the tiramisu")

	var last ports.Reply
	for i := 0; i < 3; i++ {
		last = turn(t, engine, state, "what do you think")
	}

	if !last.Cancelled {
		t.Error("expected forced cancellation after retry bound")
	}
	if !state.Idle() {
		t.Error("expected idle state after giving up")
	}
	if _, ok := store.Snapshot().FindByID("i3"); !ok {
		t.Error("giving up must not mutate the menu")
	}
}

func TestCommit_ConflictRetriesDeleteTransparently(t *testing.T) {
	// Arrange: reach the confirmation gate, then let another writer land a
	// change so the captured snapshot version goes stale.
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")
	turn(t, engine, state, "delete the tiramisu")

	v := store.Snapshot().Version
	_, err := store.Apply(context.Background(), domain.Mutation{
		Operation: domain.OperationAdd,
		Item:      domain.MenuItem{Name: "Bruschetta", Price: 5, Category: "Starters", Available: true},
	}, v)
	if err != nil {
		t.Fatalf("concurrent add failed: %v", err)
	}

	// Act
	r := turn(t, engine, state, "yes")

	// Assert: the delete is still valid as spoken, so it commits without
	// bothering the user.
	if r.Committed == nil || r.Committed.Operation != domain.OperationDelete {
		t.Fatalf("expected transparent delete commit, got %+v", r)
	}
	if _, ok := store.Snapshot().FindByID("i3"); ok {
		t.Error("expected tiramisu removed")
	}
}

func TestCommit_ConflictTargetGoneExplains(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")
	turn(t, engine, state, "change the price of the tiramisu to 7")

	v := store.Snapshot().Version
	if _, err := store.Apply(context.Background(), domain.Mutation{
		Operation: domain.OperationDelete, TargetID: "i3",
	}, v); err != nil {
		t.Fatalf("concurrent delete failed: %v", err)
	}

	r := turn(t, engine, state, "yes")

	if r.Committed != nil {
		t.Fatal("expected no commit for a vanished target")
	}
	if !strings.Contains(r.Speech, "no longer on the menu") {
		t.Errorf("expected explanation, got %q", r.Speech)
	}
	if !state.Idle() {
		t.Error("expected idle state")
	}
}

func TestCommit_ConflictChangedTargetReconfirms(t *testing.T) {
	engine, store, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")
	turn(t, engine, state, "change the price of the tiramisu to 7")

	// Someone else moves the price while we wait for the yes.
	v := store.Snapshot().Version
	newPrice := 6.50
	if _, err := store.Apply(context.Background(), domain.Mutation{
		Operation: domain.OperationUpdate, TargetID: "i3",
		Patch: domain.ItemPatch{Price: &newPrice},
	}, v); err != nil {
		t.Fatalf("concurrent update failed: %v", err)
	}

	r1 := turn(t, engine, state, "yes")

	if r1.Committed != nil {
		t.Fatal("expected re-confirmation, not a commit")
	}
	if !strings.Contains(r1.Speech, "menu changed") || !strings.Contains(r1.Speech, "6.50") {
		t.Errorf("expected updated summary, got %q", r1.Speech)
	}
	if state.Phase != domain.PhaseConfirming {
		t.Fatalf("expected confirming phase, got %s", state.Phase)
	}

	r2 := turn(t, engine, state, "yes")
	if r2.Committed == nil {
		t.Fatal("expected commit after re-confirmation")
	}
	item, _ := store.Snapshot().FindByID("i3")
	if item.Price != 7 {
		t.Errorf("expected price 7, got %v", item.Price)
	}
}

func TestMidDialogue_FreshCommandReplacesPending(t *testing.T) {
	engine, _, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	turn(t, engine, state, "add a new item")
	r := turn(t, engine, state, "delete the tiramisu")

	// The answer to "what should it be called" was a new command; the add
	// is dropped in favor of the delete.
	if state.Pending == nil || state.Pending.Kind != domain.IntentDelete {
		t.Fatalf("expected pending delete, got %+v", state.Pending)
	}
	if !strings.Contains(r.Speech, "Tiramisu") {
		t.Errorf("expected delete confirmation, got %q", r.Speech)
	}
}

func TestNegativePrice_ReasksWithExplanation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	turn(t, engine, state, "add a Caesar Salad")
	r := turn(t, engine, state, "-5")

	if !strings.Contains(r.Speech, "can't be negative") {
		t.Errorf("expected negative-price explanation, got %q", r.Speech)
	}
	if state.PendingField != domain.FieldPrice {
		t.Errorf("expected price still pending, got %q", state.PendingField)
	}
}

func TestTargetNotFound_SaysSoAndReasks(t *testing.T) {
	engine, _, _ := newTestEngine(t, seedMenu()...)
	state := domain.NewDialogueState("s1")

	r := turn(t, engine, state, "delete the sushi platter")

	if !strings.Contains(r.Speech, "couldn't find") {
		t.Errorf("expected not-found notice, got %q", r.Speech)
	}
	if state.PendingField != domain.FieldTarget {
		t.Errorf("expected target question pending, got %q", state.PendingField)
	}

	r2 := turn(t, engine, state, "tiramisu")
	if state.Phase != domain.PhaseConfirming || !strings.Contains(r2.Speech, "Tiramisu") {
		t.Errorf("expected tiramisu confirmation, got %q in phase %s", r2.Speech, state.Phase)
	}
}

func TestInterpreterUnavailable_PreservesState(t *testing.T) {
	// Arrange: a scripted interpreter that recognizes the first command and
	// then goes dark.
	calls := 0
	interp := &mocks.MockInterpreter{
		InterpretFunc: func(ctx context.Context, utterance string, state *domain.DialogueState, doc domain.MenuDocument) (*domain.Intent, error) {
			calls++
			if calls == 1 {
				intent := domain.NewIntent(domain.IntentAdd)
				intent.Fields[domain.FieldName] = domain.TextValue("Caesar Salad")
				return intent, nil
			}
			return nil, fmt.Errorf("%w: connection refused", domain.ErrInterpreterUnavailable)
		},
	}
	store := menustore.NewStore(&mocks.MockChangePublisher{}, zap.NewNop())
	engine := NewEngine(store, interp, 3, zap.NewNop())
	state := domain.NewDialogueState("s1")

	// Act
	turn(t, engine, state, "add a caesar salad")
	r := turn(t, engine, state, "mumble mumble")

	// Assert: the turn degrades to a spoken notice without losing progress.
	if !strings.Contains(r.Speech, "trouble understanding") {
		t.Errorf("expected unavailable notice, got %q", r.Speech)
	}
	if state.Phase != domain.PhaseCollecting || state.PendingField != domain.FieldPrice {
		t.Errorf("expected price question preserved, got phase %s field %q", state.Phase, state.PendingField)
	}
}

func TestEmptyUtterance_RepeatsQuestion(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	state := domain.NewDialogueState("s1")

	r1 := turn(t, engine, state, "add a new item")
	r2 := turn(t, engine, state, "   ")

	if r2.Speech != r1.Speech {
		t.Errorf("expected repeated question %q, got %q", r1.Speech, r2.Speech)
	}
}
