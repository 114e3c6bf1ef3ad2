package interpreter

import (
	"regexp"
	"strings"
)

// Coercion helpers shared with the dialogue engine: they turn a raw
// transcribed turn into a typed slot value for the question that is
// currently outstanding. The engine tries these first and only reinterprets
// the turn as a fresh command when coercion fails.

var (
	priceRe     = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)
	yesRe       = regexp.MustCompile(`\b(yes|yeah|yep|yup|correct|confirm|confirmed|ok|okay|sure|affirmative|go ahead|do it)\b`)
	noRe        = regexp.MustCompile(`\b(no|nope|nah|don't|negative|wrong)\b`)
	cancelRe    = regexp.MustCompile(`\b(cancel|stop|never mind|nevermind|forget it|abort)\b`)
	leadInRe    = regexp.MustCompile(`(?i)^(the\s+)?(new\s+)?(name|price|description|category)\s+(is|will be|should be)\s+`)
	trailPunct  = regexp.MustCompile(`[.,!?]+$`)
	nonWordHead = regexp.MustCompile(`^[^a-zA-Z0-9]+`)
	ordinalRe   = regexp.MustCompile(`\b(?:the\s+)?(first|second|third|fourth|fifth|last|number\s+(\d+)|(\d+))\b`)
)

// Normalize lowercases, strips punctuation and collapses whitespace, so
// keyword and name comparisons are stable across speech transcriptions.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == ',':
			// Keep decimal separators for price parsing.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParsePrice extracts the first decimal number from free text. "9.99",
// "nine, 9.99 dollars" and "12,50" all resolve; text without digits fails.
func ParsePrice(text string) (float64, bool) {
	match := priceRe.FindString(text)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", ".")
	var v float64
	var neg bool
	s := match
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	for _, c := range intPart {
		v = v*10 + float64(c-'0')
	}
	scale := 0.1
	for _, c := range fracPart {
		v += float64(c-'0') * scale
		scale /= 10
	}
	if neg {
		v = -v
	}
	return v, true
}

// ParseYesNo classifies a confirmation answer. Cancel words count as no.
func ParseYesNo(text string) (yes, no bool) {
	n := Normalize(text)
	if cancelRe.MatchString(n) || noRe.MatchString(n) {
		return false, true
	}
	if yesRe.MatchString(n) {
		return true, false
	}
	return false, false
}

// IsCancel reports whether the turn is a bare cancellation from any state.
func IsCancel(text string) bool {
	return cancelRe.MatchString(Normalize(text))
}

// CleanValue strips spoken lead-ins ("the name is ...") and trailing
// punctuation from a free-text answer.
func CleanValue(text string) string {
	text = strings.TrimSpace(text)
	text = leadInRe.ReplaceAllString(text, "")
	text = nonWordHead.ReplaceAllString(text, "")
	text = trailPunct.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseAvailability maps an answer onto the availability flag.
func ParseAvailability(text string) (available, ok bool) {
	n := Normalize(text)
	switch {
	case strings.Contains(n, "unavailable"), strings.Contains(n, "not available"),
		strings.Contains(n, "out of stock"), strings.Contains(n, "sold out"):
		return false, true
	case strings.Contains(n, "available"), strings.Contains(n, "in stock"):
		return true, true
	}
	if yes, no := ParseYesNo(text); yes || no {
		return yes, true
	}
	return false, false
}

// ParseChoice resolves a positional disambiguation answer ("the second
// one", "number 2", "2") to a zero-based index among n candidates.
func ParseChoice(text string, n int) (int, bool) {
	m := ordinalRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	idx := -1
	switch m[1] {
	case "first":
		idx = 0
	case "second":
		idx = 1
	case "third":
		idx = 2
	case "fourth":
		idx = 3
	case "fifth":
		idx = 4
	case "last":
		idx = n - 1
	default:
		digits := m[2]
		if digits == "" {
			digits = m[3]
		}
		for _, c := range digits {
			if idx < 0 {
				idx = 0
			}
			idx = idx*10 + int(c-'0')
		}
		idx-- // spoken positions are one-based
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
