package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
	"github.com/savoro/menuvoice/internal/ports"
	"github.com/savoro/menuvoice/internal/service/interpreter"
)

const defaultMaxRetries = 3

// Engine is the per-turn dialogue state machine. It owns question
// sequencing, the confirmation gate in front of every mutation, and
// conflict recovery at commit time. The caller serializes turns per session.
type Engine struct {
	store      ports.MenuStore
	interp     ports.Interpreter
	maxRetries int
	log        *zap.Logger
}

func NewEngine(store ports.MenuStore, interp ports.Interpreter, maxRetries int, log *zap.Logger) *Engine {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Engine{store: store, interp: interp, maxRetries: maxRetries, log: log}
}

// Greeting is spoken when a session connects.
func (e *Engine) Greeting(_ *domain.DialogueState) string {
	return greetingSpeech
}

// HandleTurn advances the session by one utterance and returns what to say
// back. The state is mutated in place; a nil error means the turn was
// handled, including degraded outcomes like an unavailable interpreter.
func (e *Engine) HandleTurn(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	start := time.Now()
	defer func() {
		telemetry.TurnLatency.Observe(time.Since(start).Seconds())
	}()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		if state.LastQuestion != "" {
			return ports.Reply{Speech: state.LastQuestion}, nil
		}
		return ports.Reply{Speech: greetingSpeech}, nil
	}

	// Cancellation wins from every state.
	if interpreter.IsCancel(utterance) {
		return e.cancel(state), nil
	}

	switch state.Phase {
	case domain.PhaseConfirming:
		return e.handleConfirmation(ctx, state, utterance)
	case domain.PhaseDisambiguating:
		return e.handleDisambiguation(ctx, state, utterance)
	case domain.PhaseCollecting:
		return e.handleAnswer(ctx, state, utterance)
	default:
		return e.handleFresh(ctx, state, utterance)
	}
}

func (e *Engine) cancel(state *domain.DialogueState) ports.Reply {
	if state.Idle() {
		return ports.Reply{Speech: nothingToCancel, Cancelled: true}
	}
	kind := domain.IntentCancel
	if state.Pending != nil {
		kind = state.Pending.Kind
	}
	telemetry.VoiceCommandsTotal.WithLabelValues(string(kind), "cancelled").Inc()
	state.Reset()
	return ports.Reply{Speech: cancelledSpeech, Cancelled: true}
}

// handleFresh interprets the utterance as a new command from idle.
func (e *Engine) handleFresh(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	intent, err := e.interp.Interpret(ctx, utterance, state, e.store.Snapshot())
	if err != nil {
		if errors.Is(err, domain.ErrInterpreterUnavailable) {
			e.log.Warn("Interpreter unavailable, keeping dialogue state",
				zap.String("session_id", state.SessionID),
			)
			return ports.Reply{Speech: unavailableReply}, nil
		}
		return ports.Reply{}, err
	}

	switch intent.Kind {
	case domain.IntentCancel:
		return e.cancel(state), nil
	case domain.IntentUnknown:
		return ports.Reply{Speech: unknownSpeech}, nil
	default:
		return e.advance(state, intent), nil
	}
}

// advance moves a pending intent to the next question, disambiguation or
// the confirmation gate, whichever its current slots call for.
func (e *Engine) advance(state *domain.DialogueState, intent *domain.Intent) ports.Reply {
	state.Pending = intent
	doc := e.store.Snapshot()

	if v, ok := intent.Fields[domain.FieldPrice]; ok && v.Number < 0 {
		delete(intent.Fields, domain.FieldPrice)
		q := fieldQuestion(intent.Kind, domain.FieldPrice)
		e.ask(state, domain.FieldPrice, q)
		return ports.Reply{Speech: "The price can't be negative. " + q}
	}

	if intent.Ambiguous() {
		state.Phase = domain.PhaseDisambiguating
		state.PendingField = ""
		state.Retries = 0
		state.LastQuestion = disambiguationQuestion(intent.TargetQuery, intent.Candidates)
		return ports.Reply{Speech: state.LastQuestion}
	}

	// A spoken reference that matched nothing: say so and ask again rather
	// than dropping the whole command.
	if (intent.Kind == domain.IntentEdit || intent.Kind == domain.IntentDelete) &&
		intent.TargetID == "" && intent.TargetQuery != "" {
		q := fieldQuestion(intent.Kind, domain.FieldTarget)
		e.ask(state, domain.FieldTarget, q)
		return ports.Reply{
			Speech: fmt.Sprintf("I couldn't find %s on the menu. %s", intent.TargetQuery, q),
		}
	}

	if missing := intent.MissingFields(); len(missing) > 0 {
		q := fieldQuestion(intent.Kind, missing[0])
		e.ask(state, missing[0], q)
		return ports.Reply{Speech: q}
	}

	return e.enterConfirmation(state, doc)
}

func (e *Engine) ask(state *domain.DialogueState, field domain.Field, question string) {
	state.Phase = domain.PhaseCollecting
	state.PendingField = field
	state.LastQuestion = question
	state.Retries = 0
}

func (e *Engine) enterConfirmation(state *domain.DialogueState, doc domain.MenuDocument) ports.Reply {
	intent := state.Pending
	var summary string
	switch intent.Kind {
	case domain.IntentAdd:
		summary = summarizeAdd(intent)
	case domain.IntentEdit, domain.IntentDelete:
		current, ok := doc.FindByID(intent.TargetID)
		if !ok {
			return e.targetGone(state, intent.TargetQuery)
		}
		if intent.Kind == domain.IntentEdit {
			summary = summarizeEdit(current, intent)
		} else {
			summary = summarizeDelete(current)
		}
	}
	state.Phase = domain.PhaseConfirming
	state.PendingField = ""
	state.LastQuestion = summary
	state.Retries = 0
	state.SnapshotVersion = doc.Version
	return ports.Reply{Speech: summary}
}

func (e *Engine) targetGone(state *domain.DialogueState, ref string) ports.Reply {
	if ref == "" {
		ref = "that item"
	}
	telemetry.VoiceCommandsTotal.WithLabelValues(string(state.Pending.Kind), "not_found").Inc()
	state.Reset()
	return ports.Reply{
		Speech: fmt.Sprintf("It looks like %s is no longer on the menu, so there's nothing to change. Anything else?", ref),
	}
}

// handleAnswer coerces the utterance as the answer to the outstanding
// question first, and only reinterprets it as a fresh command when coercion
// fails and the interpreter recognizes one.
func (e *Engine) handleAnswer(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	intent := state.Pending

	switch state.PendingField {
	case domain.FieldTarget:
		query := interpreter.CleanValue(utterance)
		matched := interpreter.MatchItems(query, e.store.Snapshot())
		switch len(matched) {
		case 0:
			return e.reinterpretOrRepeat(ctx, state, utterance,
				fmt.Sprintf("I couldn't find %s on the menu.", query))
		case 1:
			intent.TargetQuery = query
			intent.TargetID = matched[0].ID
			intent.Candidates = nil
		default:
			intent.TargetQuery = query
			intent.Candidates = matched
		}
		return e.advance(state, intent), nil

	case domain.FieldChange:
		field, ok := parseFieldChoice(utterance)
		if !ok {
			return e.reinterpretOrRepeat(ctx, state, utterance, "")
		}
		q := fieldQuestion(intent.Kind, field)
		e.ask(state, field, q)
		return ports.Reply{Speech: q}, nil

	case domain.FieldPrice:
		p, ok := interpreter.ParsePrice(utterance)
		if !ok {
			return e.reinterpretOrRepeat(ctx, state, utterance, "")
		}
		if p < 0 {
			return e.repeatQuestion(state, "The price can't be negative."), nil
		}
		intent.Fields[domain.FieldPrice] = domain.NumberValue(domain.RoundPrice(p))
		return e.advance(state, intent), nil

	case domain.FieldAvailable:
		avail, ok := interpreter.ParseAvailability(utterance)
		if !ok {
			return e.reinterpretOrRepeat(ctx, state, utterance, "")
		}
		intent.Fields[domain.FieldAvailable] = domain.BoolValue(avail)
		return e.advance(state, intent), nil

	default: // name, description, category: free text
		if interpreter.LooksLikeCommand(utterance) {
			return e.reinterpretOrRepeat(ctx, state, utterance, "")
		}
		value := interpreter.CleanValue(utterance)
		if value == "" {
			return e.repeatQuestion(state, ""), nil
		}
		intent.Fields[state.PendingField] = domain.TextValue(value)
		return e.advance(state, intent), nil
	}
}

func parseFieldChoice(utterance string) (domain.Field, bool) {
	n := interpreter.Normalize(utterance)
	switch {
	case strings.Contains(n, "price"):
		return domain.FieldPrice, true
	case strings.Contains(n, "name"):
		return domain.FieldName, true
	case strings.Contains(n, "description"):
		return domain.FieldDescription, true
	case strings.Contains(n, "category"):
		return domain.FieldCategory, true
	case strings.Contains(n, "availab"), strings.Contains(n, "stock"):
		return domain.FieldAvailable, true
	}
	return "", false
}

// reinterpretOrRepeat handles an utterance that did not answer the pending
// question: a recognizable fresh command replaces the pending intent,
// anything else repeats the question a bounded number of times.
func (e *Engine) reinterpretOrRepeat(ctx context.Context, state *domain.DialogueState, utterance, notice string) (ports.Reply, error) {
	intent, err := e.interp.Interpret(ctx, utterance, state, e.store.Snapshot())
	if err != nil {
		if errors.Is(err, domain.ErrInterpreterUnavailable) {
			return ports.Reply{Speech: unavailableReply}, nil
		}
		return ports.Reply{}, err
	}

	switch intent.Kind {
	case domain.IntentCancel:
		return e.cancel(state), nil
	case domain.IntentAdd, domain.IntentEdit, domain.IntentDelete:
		e.log.Debug("Mid-dialogue command replaces pending intent",
			zap.String("session_id", state.SessionID),
			zap.String("intent", string(intent.Kind)),
		)
		return e.advance(state, intent), nil
	default:
		return e.repeatQuestion(state, notice), nil
	}
}

func (e *Engine) repeatQuestion(state *domain.DialogueState, notice string) ports.Reply {
	state.Retries++
	if state.Retries >= e.maxRetries {
		kind := domain.IntentUnknown
		if state.Pending != nil {
			kind = state.Pending.Kind
		}
		telemetry.VoiceCommandsTotal.WithLabelValues(string(kind), "abandoned").Inc()
		state.Reset()
		return ports.Reply{Speech: gaveUpSpeech, Cancelled: true}
	}
	speech := state.LastQuestion
	if notice != "" {
		speech = notice + " " + speech
	}
	return ports.Reply{Speech: speech}
}

func (e *Engine) handleDisambiguation(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	intent := state.Pending
	candidates := intent.Candidates

	if idx, ok := interpreter.ParseChoice(utterance, len(candidates)); ok {
		return e.resolveCandidate(state, candidates[idx]), nil
	}

	// The answer may repeat one of the names more precisely.
	scoped := domain.MenuDocument{Items: candidates}
	if matched := interpreter.MatchItems(interpreter.CleanValue(utterance), scoped); len(matched) == 1 {
		return e.resolveCandidate(state, matched[0]), nil
	}

	return e.reinterpretOrRepeat(ctx, state, utterance, "")
}

func (e *Engine) resolveCandidate(state *domain.DialogueState, item domain.MenuItem) ports.Reply {
	intent := state.Pending
	intent.TargetID = item.ID
	intent.Candidates = nil
	return e.advance(state, intent)
}

func (e *Engine) handleConfirmation(ctx context.Context, state *domain.DialogueState, utterance string) (ports.Reply, error) {
	yes, no := interpreter.ParseYesNo(utterance)
	switch {
	case yes:
		return e.commit(ctx, state), nil
	case no:
		return e.cancel(state), nil
	default:
		return e.repeatQuestion(state, "Please answer yes or no."), nil
	}
}

// commit applies the confirmed intent through the document store. Version
// conflicts are retried against a fresh snapshot when the intent is still
// valid as spoken, and re-confirmed when the target has changed underneath.
func (e *Engine) commit(ctx context.Context, state *domain.DialogueState) ports.Reply {
	intent := state.Pending
	mutation := buildMutation(intent)
	expected := state.SnapshotVersion

	name := mutation.Item.Name
	if intent.TargetID != "" {
		doc := e.store.Snapshot()
		if current, ok := doc.FindByID(intent.TargetID); ok {
			name = current.Name
		}
	}

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		event, err := e.store.Apply(ctx, mutation, expected)
		if err == nil {
			telemetry.VoiceCommandsTotal.WithLabelValues(string(intent.Kind), "committed").Inc()
			if event.Item != nil {
				name = event.Item.Name
			}
			state.Reset()
			return ports.Reply{Speech: committedSpeech(event.Operation, name), Committed: &event}
		}

		if errors.Is(err, domain.ErrNotFound) {
			return e.targetGone(state, intent.TargetQuery)
		}

		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			field := domain.Field(ve.Field)
			delete(intent.Fields, field)
			q := fieldQuestion(intent.Kind, field)
			e.ask(state, field, q)
			return ports.Reply{Speech: fmt.Sprintf("That didn't work: %s. %s", ve.Reason, q)}
		}

		if domain.IsVersionConflict(err) {
			fresh := e.store.Snapshot()
			expected = fresh.Version

			switch intent.Kind {
			case domain.IntentAdd, domain.IntentDelete:
				// Still valid as spoken; retry against the fresh snapshot.
				if intent.Kind == domain.IntentDelete {
					if _, ok := fresh.FindByID(intent.TargetID); !ok {
						return e.targetGone(state, intent.TargetQuery)
					}
				}
				continue
			case domain.IntentEdit:
				current, ok := fresh.FindByID(intent.TargetID)
				if !ok {
					return e.targetGone(state, intent.TargetQuery)
				}
				// The item changed while we were talking: confirm again
				// against its current values.
				state.Phase = domain.PhaseConfirming
				state.SnapshotVersion = fresh.Version
				state.Retries = 0
				state.LastQuestion = summarizeEdit(current, intent)
				return ports.Reply{
					Speech: "The menu changed while we were talking. " + state.LastQuestion,
				}
			}
		}

		e.log.Error("Mutation failed", zap.Error(err), zap.String("session_id", state.SessionID))
		state.Reset()
		return ports.Reply{Speech: "Something went wrong applying that change. Nothing was changed."}
	}

	state.Reset()
	return ports.Reply{Speech: "The menu is changing too quickly right now. Please try again."}
}

func buildMutation(intent *domain.Intent) domain.Mutation {
	switch intent.Kind {
	case domain.IntentAdd:
		item := domain.MenuItem{
			Name:      intent.Fields[domain.FieldName].Text,
			Price:     domain.RoundPrice(intent.Fields[domain.FieldPrice].Number),
			Category:  intent.Fields[domain.FieldCategory].Text,
			Available: true,
		}
		if v, ok := intent.Fields[domain.FieldDescription]; ok {
			item.Description = v.Text
		}
		if v, ok := intent.Fields[domain.FieldAvailable]; ok {
			item.Available = v.Bool
		}
		return domain.Mutation{Operation: domain.OperationAdd, Item: item}

	case domain.IntentEdit:
		var patch domain.ItemPatch
		if v, ok := intent.Fields[domain.FieldName]; ok {
			name := v.Text
			patch.Name = &name
		}
		if v, ok := intent.Fields[domain.FieldPrice]; ok {
			price := domain.RoundPrice(v.Number)
			patch.Price = &price
		}
		if v, ok := intent.Fields[domain.FieldDescription]; ok {
			desc := v.Text
			patch.Description = &desc
		}
		if v, ok := intent.Fields[domain.FieldCategory]; ok {
			cat := v.Text
			patch.Category = &cat
		}
		if v, ok := intent.Fields[domain.FieldAvailable]; ok {
			avail := v.Bool
			patch.Available = &avail
		}
		return domain.Mutation{Operation: domain.OperationUpdate, TargetID: intent.TargetID, Patch: patch}

	default:
		return domain.Mutation{Operation: domain.OperationDelete, TargetID: intent.TargetID}
	}
}
