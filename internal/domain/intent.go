package domain

// IntentKind is the closed set of things a user can ask for. Anything the
// interpreter cannot map into this set is Unknown, never an error.
type IntentKind string

const (
	IntentAdd     IntentKind = "add"
	IntentEdit    IntentKind = "edit"
	IntentDelete  IntentKind = "delete"
	IntentCancel  IntentKind = "cancel"
	IntentUnknown IntentKind = "unknown"
)

// Field names the slots an intent can carry.
type Field string

const (
	FieldName        Field = "name"
	FieldPrice       Field = "price"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldAvailable   Field = "available"
)

// AddFieldOrder is the fixed priority in which missing Add fields are asked
// about. Description and availability are optional and only filled when the
// user volunteers them.
var AddFieldOrder = []Field{FieldName, FieldPrice, FieldCategory}

// FieldValue is a loosely-typed slot value as extracted from an utterance.
// Exactly one of the typed members is set, indicated by Kind.
type FieldValue struct {
	Text   string
	Number float64
	Bool   bool
	Kind   FieldValueKind
}

type FieldValueKind int

const (
	FieldValueText FieldValueKind = iota
	FieldValueNumber
	FieldValueBool
)

// TextValue builds a text-typed slot value.
func TextValue(s string) FieldValue { return FieldValue{Text: s, Kind: FieldValueText} }

// NumberValue builds a number-typed slot value.
func NumberValue(f float64) FieldValue { return FieldValue{Number: f, Kind: FieldValueNumber} }

// BoolValue builds a bool-typed slot value.
func BoolValue(b bool) FieldValue { return FieldValue{Bool: b, Kind: FieldValueBool} }

// Intent is the structured representation of one user request: its kind, the
// slots that were already provided, and for Edit/Delete the target item
// reference.
type Intent struct {
	Kind   IntentKind
	Fields map[Field]FieldValue

	// Target resolution for Edit/Delete. TargetID is set once the reference
	// resolved to exactly one item. TargetQuery keeps the raw spoken
	// reference. Candidates holds the tied matches, in document order, when
	// the reference was ambiguous.
	TargetID    string
	TargetQuery string
	Candidates  []MenuItem
}

// NewIntent returns an intent of the given kind with an empty slot set.
func NewIntent(kind IntentKind) *Intent {
	return &Intent{Kind: kind, Fields: make(map[Field]FieldValue)}
}

// Ambiguous reports whether the target reference matched more than one item.
func (in *Intent) Ambiguous() bool {
	return len(in.Candidates) > 1
}

// MissingFields returns the required fields not yet filled, in priority
// order for the intent's operation.
func (in *Intent) MissingFields() []Field {
	switch in.Kind {
	case IntentAdd:
		var missing []Field
		for _, f := range AddFieldOrder {
			if _, ok := in.Fields[f]; !ok {
				missing = append(missing, f)
			}
		}
		return missing
	case IntentEdit:
		// Target first, then at least one field to change.
		if in.TargetID == "" && !in.Ambiguous() {
			return []Field{FieldTarget}
		}
		if len(in.Fields) == 0 {
			return []Field{FieldChange}
		}
		return nil
	case IntentDelete:
		if in.TargetID == "" && !in.Ambiguous() {
			return []Field{FieldTarget}
		}
		return nil
	default:
		return nil
	}
}

// Pseudo-fields used only for question selection on Edit/Delete: "which
// item" and "which field do you want to change".
const (
	FieldTarget Field = "target"
	FieldChange Field = "change"
)
