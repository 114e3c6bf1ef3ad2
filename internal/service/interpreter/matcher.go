package interpreter

import (
	"strings"

	"github.com/savoro/menuvoice/internal/domain"
)

// MatchItems resolves a spoken reference against the current menu. An exact
// normalized name match wins outright; otherwise items are scored by
// substring containment and token overlap, and every item tying for the
// best score is returned in document order so positional disambiguation
// stays stable.
func MatchItems(query string, doc domain.MenuDocument) []domain.MenuItem {
	q := Normalize(query)
	if q == "" {
		return nil
	}

	var exact []domain.MenuItem
	for _, item := range doc.Items {
		if Normalize(item.Name) == q {
			exact = append(exact, item)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	qTokens := strings.Fields(q)
	best := 0
	scores := make([]int, len(doc.Items))
	for i, item := range doc.Items {
		s := scoreMatch(q, qTokens, Normalize(item.Name))
		scores[i] = s
		if s > best {
			best = s
		}
	}
	if best == 0 {
		return nil
	}

	var matched []domain.MenuItem
	for i, item := range doc.Items {
		if scores[i] == best {
			matched = append(matched, item)
		}
	}
	return matched
}

func scoreMatch(query string, qTokens []string, name string) int {
	score := 0
	if strings.Contains(name, query) || strings.Contains(query, name) {
		score += 3
	}
	nameTokens := strings.Fields(name)
	for _, qt := range qTokens {
		for _, nt := range nameTokens {
			if qt == nt {
				score += 2
			} else if len(qt) > 3 && (strings.HasPrefix(nt, qt) || strings.HasPrefix(qt, nt)) {
				score++
			}
		}
	}
	return score
}
