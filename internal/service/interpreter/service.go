package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/domain"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
	"github.com/savoro/menuvoice/internal/ports"
)

// Service turns a transcribed utterance into a typed Intent. Unambiguous
// commands are resolved by keyword rules without touching the model; the
// language model is the fallback for everything else, guarded by a circuit
// breaker so a flapping provider degrades to Unknown-style handling instead
// of hanging every session.
type Service struct {
	llm     ports.LLMClient
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewService(llm ports.LLMClient, log *zap.Logger) *Service {
	s := &Service{llm: llm, log: log}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "interpreter-llm",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// Interpret classifies the utterance against the current menu. It never
// mutates state or doc; resolving ambiguity and sequencing questions belong
// to the dialogue engine.
func (s *Service) Interpret(ctx context.Context, utterance string, state *domain.DialogueState, doc domain.MenuDocument) (*domain.Intent, error) {
	start := time.Now()
	defer func() {
		telemetry.InterpreterLatency.Observe(time.Since(start).Seconds())
	}()

	if IsCancel(utterance) {
		return domain.NewIntent(domain.IntentCancel), nil
	}

	if intent := s.interpretByRules(utterance, doc); intent != nil {
		s.log.Debug("Utterance resolved by keyword rules",
			zap.String("intent", string(intent.Kind)),
		)
		return intent, nil
	}

	if s.llm == nil {
		return domain.NewIntent(domain.IntentUnknown), nil
	}

	raw, err := s.complete(ctx, buildPrompt(utterance, state, doc))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.log.Warn("Interpreter model circuit open")
		} else {
			s.log.Error("Interpreter model call failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInterpreterUnavailable, err)
	}

	intent, ok := s.parseModelReply(raw, doc)
	if !ok {
		s.log.Warn("Interpreter model returned malformed reply",
			zap.String("reply", truncate(raw, 200)),
		)
		return domain.NewIntent(domain.IntentUnknown), nil
	}
	return intent, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.llm.Complete(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// LooksLikeCommand reports whether the utterance starts a new command
// rather than answering an open question. Used by the dialogue engine to
// keep free-text answers from swallowing mid-dialogue commands.
func LooksLikeCommand(utterance string) bool {
	var end int
	n := Normalize(utterance)
	return matchVerb(n, &end, "add", "create", "delete", "remove", "take off",
		"update", "edit", "change", "modify", "rename")
}

// interpretByRules covers the high-frequency phrasings so the common path
// never pays model latency. Returns nil when the rules cannot decide.
func (s *Service) interpretByRules(utterance string, doc domain.MenuDocument) *domain.Intent {
	n := Normalize(utterance)

	var kind domain.IntentKind
	var verbEnd int
	switch {
	case matchVerb(n, &verbEnd, "add", "create", "new item"):
		kind = domain.IntentAdd
	case matchVerb(n, &verbEnd, "delete", "remove", "take off"):
		kind = domain.IntentDelete
	case matchVerb(n, &verbEnd, "update", "edit", "change", "modify", "rename", "set"):
		kind = domain.IntentEdit
	default:
		return nil
	}

	intent := domain.NewIntent(kind)
	rest := strings.TrimSpace(n[verbEnd:])
	rest = strings.TrimPrefix(rest, "the ")
	rest = strings.TrimPrefix(rest, "a ")
	rest = strings.TrimPrefix(rest, "an ")

	switch kind {
	case domain.IntentAdd:
		s.extractAddSlots(utterance, rest, intent)
	case domain.IntentDelete, domain.IntentEdit:
		target := rest
		// "change the price of the burger to 12" carries both the field
		// and the target; peel them apart before matching.
		if kind == domain.IntentEdit {
			target = s.extractEditSlots(utterance, rest, intent)
		}
		target = strings.TrimSuffix(target, " from the menu")
		target = strings.TrimSuffix(target, " item")
		if target == "" {
			return intent
		}
		resolveTarget(intent, target, doc)
	}
	return intent
}

// matchVerb reports whether the utterance starts a command with one of the
// verbs, and records where the verb phrase ends.
func matchVerb(n string, end *int, verbs ...string) bool {
	for _, v := range verbs {
		if n == v {
			*end = len(v)
			return true
		}
		if strings.HasPrefix(n, v+" ") {
			*end = len(v)
			return true
		}
		if i := strings.Index(n, " "+v+" "); i >= 0 && i < 12 {
			// tolerate fillers like "please add ..." or "can you remove ..."
			*end = i + len(v) + 1
			return true
		}
	}
	return false
}

var (
	calledSplit = []string{" called ", " named "}
	fieldWords  = map[string]domain.Field{
		"name":         domain.FieldName,
		"price":        domain.FieldPrice,
		"description":  domain.FieldDescription,
		"category":     domain.FieldCategory,
		"availability": domain.FieldAvailable,
	}
)

func (s *Service) extractAddSlots(raw, rest string, intent *domain.Intent) {
	name := rest
	for _, sep := range calledSplit {
		if _, after, found := strings.Cut(rest, sep); found {
			name = after
			break
		}
	}
	// "add a caesar salad for 8.50" / "... at 8.50"
	if before, after, found := strings.Cut(name, " for "); found {
		if p, ok := ParsePrice(after); ok {
			intent.Fields[domain.FieldPrice] = domain.NumberValue(p)
			name = before
		}
	} else if before, after, found := strings.Cut(name, " at "); found {
		if p, ok := ParsePrice(after); ok {
			intent.Fields[domain.FieldPrice] = domain.NumberValue(p)
			name = before
		}
	}
	if before, after, found := strings.Cut(name, " to the "); found {
		// "add X to the desserts category"
		if cat := strings.TrimSuffix(after, " category"); cat != after {
			intent.Fields[domain.FieldCategory] = domain.TextValue(titleCase(cat))
		}
		name = before
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), " to the menu")
	if name != "" && !genericItemRef[name] {
		intent.Fields[domain.FieldName] = domain.TextValue(titleCase(name))
	}
}

// genericItemRef lists phrasings that refer to "an item" without naming one.
var genericItemRef = map[string]bool{
	"item":          true,
	"new item":      true,
	"menu item":     true,
	"new menu item": true,
	"something":     true,
	"dish":          true,
	"new dish":      true,
}

// extractEditSlots pulls "<field> of <target> to <value>" phrasings apart
// and returns what remains as the target reference.
func (s *Service) extractEditSlots(raw, rest string, intent *domain.Intent) string {
	for word, field := range fieldWords {
		prefix := word + " of "
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		target := strings.TrimPrefix(rest, prefix)
		target = strings.TrimPrefix(target, "the ")
		if before, after, found := strings.Cut(target, " to "); found {
			target = before
			intent.Fields[field] = coerceField(field, after)
		}
		return target
	}
	// "change the burger price to 12"
	if before, after, found := strings.Cut(rest, " to "); found {
		for word, field := range fieldWords {
			if strings.HasSuffix(before, " "+word) {
				intent.Fields[field] = coerceField(field, after)
				return strings.TrimSuffix(before, " "+word)
			}
		}
	}
	return rest
}

func coerceField(field domain.Field, text string) domain.FieldValue {
	switch field {
	case domain.FieldPrice:
		if p, ok := ParsePrice(text); ok {
			return domain.NumberValue(p)
		}
	case domain.FieldAvailable:
		if avail, ok := ParseAvailability(text); ok {
			return domain.BoolValue(avail)
		}
	}
	return domain.TextValue(titleCase(CleanValue(text)))
}

func resolveTarget(intent *domain.Intent, query string, doc domain.MenuDocument) {
	intent.TargetQuery = query
	switch matched := MatchItems(query, doc); len(matched) {
	case 0:
	case 1:
		intent.TargetID = matched[0].ID
	default:
		intent.Candidates = matched
	}
}

// modelReply is the closed response schema the model is instructed to emit.
type modelReply struct {
	Intent string `json:"intent"`
	Target string `json:"target,omitempty"`
	Fields struct {
		Name        *string  `json:"name,omitempty"`
		Price       *float64 `json:"price,omitempty"`
		Description *string  `json:"description,omitempty"`
		Category    *string  `json:"category,omitempty"`
		Available   *bool    `json:"available,omitempty"`
	} `json:"fields"`
}

func (s *Service) parseModelReply(raw string, doc domain.MenuDocument) (*domain.Intent, bool) {
	// Models wrap JSON in prose or fences often enough that extracting the
	// first object is cheaper than re-prompting.
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, false
	}

	var reply modelReply
	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&reply); err != nil {
		return nil, false
	}

	var kind domain.IntentKind
	switch reply.Intent {
	case "add":
		kind = domain.IntentAdd
	case "edit":
		kind = domain.IntentEdit
	case "delete":
		kind = domain.IntentDelete
	case "cancel":
		kind = domain.IntentCancel
	case "unknown":
		kind = domain.IntentUnknown
	default:
		return nil, false
	}

	intent := domain.NewIntent(kind)
	if reply.Fields.Name != nil {
		intent.Fields[domain.FieldName] = domain.TextValue(*reply.Fields.Name)
	}
	if reply.Fields.Price != nil {
		intent.Fields[domain.FieldPrice] = domain.NumberValue(*reply.Fields.Price)
	}
	if reply.Fields.Description != nil {
		intent.Fields[domain.FieldDescription] = domain.TextValue(*reply.Fields.Description)
	}
	if reply.Fields.Category != nil {
		intent.Fields[domain.FieldCategory] = domain.TextValue(*reply.Fields.Category)
	}
	if reply.Fields.Available != nil {
		intent.Fields[domain.FieldAvailable] = domain.BoolValue(*reply.Fields.Available)
	}
	if reply.Target != "" && (kind == domain.IntentEdit || kind == domain.IntentDelete) {
		resolveTarget(intent, reply.Target, doc)
	}
	return intent, true
}

func buildPrompt(utterance string, state *domain.DialogueState, doc domain.MenuDocument) string {
	var b strings.Builder
	b.WriteString("You classify restaurant menu editing commands from a voice transcript.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using this schema:\n")
	b.WriteString(`{"intent":"add|edit|delete|cancel|unknown","target":"<item reference or empty>","fields":{"name":"","price":0,"description":"","category":"","available":true}}` + "\n")
	b.WriteString("Omit fields the speaker did not mention. Use \"unknown\" when the request is not a menu edit.\n\n")

	b.WriteString("Current menu:\n")
	for _, item := range doc.Items {
		fmt.Fprintf(&b, "- %s (%.2f, %s)\n", item.Name, item.Price, item.Category)
	}
	if state != nil && state.AwaitingAnswer() {
		fmt.Fprintf(&b, "\nThe assistant just asked: %q\n", state.LastQuestion)
	}
	fmt.Fprintf(&b, "\nTranscript: %q\n", utterance)
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = string(w[0]-'a'+'A') + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
