package domain

import (
	"math"
	"strings"
	"time"
)

// Operation identifies the kind of mutation applied to the menu document.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"

	// OperationReplace is emitted when a full snapshot push swapped the
	// document; observers should re-fetch rather than patch incrementally.
	OperationReplace Operation = "replace"
)

// MenuItem is a single line item of the menu. The ID is stable and never
// changes after the item is created.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Available   bool    `json:"available"`
}

// Validate checks the item invariants: a name, a category and a non-negative
// price.
func (i *MenuItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return &ValidationError{Field: "name", Reason: "name must not be empty"}
	}
	if i.Price < 0 {
		return &ValidationError{Field: "price", Reason: "price must not be negative"}
	}
	if strings.TrimSpace(i.Category) == "" {
		return &ValidationError{Field: "category", Reason: "category must not be empty"}
	}
	return nil
}

// RoundPrice normalizes a price to cents so that values echoed back to the
// user compare equal to what the store has committed.
func RoundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// MenuDocument is a point-in-time copy of the menu: items in document order
// plus the version at which the copy was taken.
type MenuDocument struct {
	Items   []MenuItem `json:"items"`
	Version uint64     `json:"version"`
}

// FindByID returns the item with the given identifier, if present.
func (d MenuDocument) FindByID(id string) (MenuItem, bool) {
	for _, item := range d.Items {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}

// ItemPatch carries the fields of an Edit. Nil fields are left unchanged.
type ItemPatch struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Available   *bool    `json:"available,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *ItemPatch) IsEmpty() bool {
	return p == nil || (p.Name == nil && p.Price == nil && p.Description == nil &&
		p.Category == nil && p.Available == nil)
}

// Mutation is a single requested change to the menu document.
//
// Add uses Item; Update uses TargetID and Patch; Delete uses TargetID.
type Mutation struct {
	Operation Operation `json:"operation"`
	Item      MenuItem  `json:"item,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Patch     ItemPatch `json:"patch,omitempty"`
}

// ChangeEvent records one committed mutation. It is immutable once published.
type ChangeEvent struct {
	Operation Operation `json:"operation"`
	Item      *MenuItem `json:"item,omitempty"`
	ItemID    string    `json:"item_id"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
