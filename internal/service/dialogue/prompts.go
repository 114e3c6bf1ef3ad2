package dialogue

import (
	"fmt"
	"strings"

	"github.com/savoro/menuvoice/internal/domain"
)

// Spoken replies. These are read aloud by the voice channel, so they stay
// short and avoid symbols a TTS engine would stumble over.

const (
	greetingSpeech   = "Hi! I can add, update or delete items on your menu. What would you like to do?"
	unknownSpeech    = "Sorry, I didn't catch that. You can say things like add a new item, change a price, or remove an item."
	nothingToCancel  = "There's nothing in progress to cancel."
	cancelledSpeech  = "Okay, I've cancelled that. Nothing was changed."
	gaveUpSpeech     = "Let's start over. Nothing was changed."
	unavailableReply = "I'm having trouble understanding right now. Please say that again in a moment."
)

func fieldQuestion(kind domain.IntentKind, field domain.Field) string {
	switch field {
	case domain.FieldName:
		if kind == domain.IntentAdd {
			return "What should the new item be called?"
		}
		return "What should the new name be?"
	case domain.FieldPrice:
		if kind == domain.IntentAdd {
			return "What will the price be?"
		}
		return "What should the new price be?"
	case domain.FieldCategory:
		if kind == domain.IntentAdd {
			return "Which category should it go under?"
		}
		return "Which category should it move to?"
	case domain.FieldDescription:
		return "What should the new description be?"
	case domain.FieldAvailable:
		return "Should it be available or unavailable?"
	case domain.FieldChange:
		return "What do you want to change? Name, price, description, category, or availability?"
	case domain.FieldTarget:
		if kind == domain.IntentDelete {
			return "Which item do you want to delete?"
		}
		return "Which item do you want to edit?"
	}
	return unknownSpeech
}

func disambiguationQuestion(query string, candidates []domain.MenuItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d items matching %s: ", len(candidates), query)
	for i, item := range candidates {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", positionWord(i), item.Name)
	}
	b.WriteString(". Which one do you mean?")
	return b.String()
}

func positionWord(i int) string {
	words := []string{"first", "second", "third", "fourth", "fifth"}
	if i < len(words) {
		return words[i]
	}
	return fmt.Sprintf("number %d", i+1)
}

func summarizeAdd(intent *domain.Intent) string {
	name := intent.Fields[domain.FieldName].Text
	price := intent.Fields[domain.FieldPrice].Number
	category := intent.Fields[domain.FieldCategory].Text

	var b strings.Builder
	fmt.Fprintf(&b, "I'll add %s to %s for %s", name, category, speakPrice(price))
	if v, ok := intent.Fields[domain.FieldDescription]; ok && v.Text != "" {
		fmt.Fprintf(&b, ", described as %s", v.Text)
	}
	if v, ok := intent.Fields[domain.FieldAvailable]; ok && !v.Bool {
		b.WriteString(", marked unavailable")
	}
	b.WriteString(". Shall I go ahead?")
	return b.String()
}

// summarizeEdit reads the previous value of every changed field next to the
// new one, so the user confirms against what the menu actually says now.
func summarizeEdit(current domain.MenuItem, intent *domain.Intent) string {
	var changes []string
	for _, f := range []domain.Field{
		domain.FieldName, domain.FieldPrice, domain.FieldDescription,
		domain.FieldCategory, domain.FieldAvailable,
	} {
		v, ok := intent.Fields[f]
		if !ok {
			continue
		}
		switch f {
		case domain.FieldName:
			changes = append(changes, fmt.Sprintf("rename it from %s to %s", current.Name, v.Text))
		case domain.FieldPrice:
			changes = append(changes, fmt.Sprintf("change the price from %s to %s",
				speakPrice(current.Price), speakPrice(v.Number)))
		case domain.FieldDescription:
			changes = append(changes, fmt.Sprintf("set the description to %s", v.Text))
		case domain.FieldCategory:
			changes = append(changes, fmt.Sprintf("move it from %s to %s", current.Category, v.Text))
		case domain.FieldAvailable:
			if v.Bool {
				changes = append(changes, "mark it available")
			} else {
				changes = append(changes, "mark it unavailable")
			}
		}
	}
	return fmt.Sprintf("For %s, I'll %s. Shall I go ahead?", current.Name, joinSpoken(changes))
}

func summarizeDelete(current domain.MenuItem) string {
	return fmt.Sprintf("I'll remove %s from the menu. Are you sure?", current.Name)
}

func committedSpeech(op domain.Operation, name string) string {
	switch op {
	case domain.OperationAdd:
		return fmt.Sprintf("Done. %s is now on the menu. Anything else?", name)
	case domain.OperationUpdate:
		return fmt.Sprintf("Done. %s has been updated. Anything else?", name)
	case domain.OperationDelete:
		return fmt.Sprintf("Done. %s has been removed. Anything else?", name)
	}
	return "Done. Anything else?"
}

func speakPrice(p float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2f", p), ".00")
}

func joinSpoken(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}
