// Package matcher scores profile keys against form fields. The
// heuristic is deliberately cheap: tokenized name/label text, a fixed
// stop-word list, and a positional character-overlap ratio. Confirmed
// custom mappings override everything.
package matcher

import (
	"strings"

	"formflow/backend/internal/dom"
	"formflow/backend/internal/models"
)

// Score thresholds. A custom mapping always scores 1.0; a near-exact
// name match is trusted at 0.9 without further scoring; at or above
// the confident bound a match is never queued for training, and below
// the unmatched bound the field counts as effectively unmatched.
const (
	OverrideScore    = 1.0
	ExactScore       = 0.9
	ConfidentScore   = 0.8
	UnmatchedScore   = 0.25
	DefaultThreshold = 0.5
)

// Common field words with low discriminative power.
var stopWords = map[string]bool{
	"name": true, "first": true, "last": true, "middle": true,
	"email": true, "phone": true, "address": true, "street": true,
	"city": true, "state": true, "zip": true, "code": true,
	"country": true,
}

// Field is the matcher's view of a form field.
type Field struct {
	Name  string
	ID    string
	Label string
	Tag   string
	Type  string
}

// Identifier returns the key used for custom mappings and training:
// name, falling back to id, falling back to label text.
func (f Field) Identifier() string {
	if f.Name != "" {
		return f.Name
	}
	if f.ID != "" {
		return f.ID
	}
	return f.Label
}

// Describe extracts the matcher-relevant facts about a field element.
func Describe(page dom.Page, el dom.Element) Field {
	return Field{
		Name:  el.Attr("name"),
		ID:    el.ID(),
		Label: LabelText(page, el),
		Tag:   el.Tag(),
		Type:  el.Type(),
	}
}

// LabelText resolves the text of the label associated with a field:
// label[for=id] first, then the nearest ancestor label, then a label
// immediately adjacent among the parent's children.
func LabelText(page dom.Page, el dom.Element) string {
	if id := el.ID(); id != "" {
		for _, lbl := range page.QueryAll("label") {
			if lbl.Attr("for") == id {
				return lbl.Text()
			}
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.Tag() == "label" {
			return p.Text()
		}
	}
	if parent := el.Parent(); parent != nil {
		siblings := parent.Children()
		for i, sib := range siblings {
			if sib == el && i > 0 && siblings[i-1].Tag() == "label" {
				return siblings[i-1].Text()
			}
		}
	}
	return ""
}

// Result is a match outcome. Key is empty when no profile key
// resolved above the threshold; Guess is the best-scoring key
// regardless of threshold, so learning mode can surface it for a
// low-confidence field. Ignored marks a deliberate skip via the
// ignore sentinel.
type Result struct {
	Key     string  `json:"key,omitempty"`
	Guess   string  `json:"guess,omitempty"`
	Score   float64 `json:"score"`
	Ignored bool    `json:"ignored,omitempty"`
}

// Match scores the candidate profile keys against a field. Custom
// mappings (site-specific winning over global) replace the heuristic
// outright; the ignore sentinel forces a null result regardless of
// profile contents.
func Match(profile models.Profile, mappings Mappings, context string, field Field, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if mapped, ok := mappings.Lookup(context, field.Name, field.ID, field.Label); ok {
		if mapped == IgnoreSentinel {
			return Result{Ignored: true}
		}
		return Result{Key: mapped, Guess: mapped, Score: OverrideScore}
	}

	fieldName := strings.ToLower(field.Name)
	if fieldName == "" {
		fieldName = strings.ToLower(field.ID)
	}
	tokens := Tokenize(fieldName + " " + field.Label)

	best := Result{}
	for key := range profile {
		lowerKey := strings.ToLower(key)

		exact := false
		for _, tok := range tokens {
			if tok == lowerKey {
				exact = true
				break
			}
		}
		if !exact && len(fieldName) >= 3 && strings.Contains(lowerKey, fieldName) {
			exact = true
		}
		if exact {
			return Result{Key: key, Guess: key, Score: ExactScore}
		}

		score := similarity(tokens, Tokenize(lowerKey))
		if score > best.Score {
			best = Result{Key: key, Score: score}
		}
	}
	// The best raw score and key are reported either way so learning
	// mode can surface the guess; the key itself is only trusted above
	// the similarity threshold.
	best.Guess = best.Key
	if best.Score <= threshold {
		best.Key = ""
	}
	return best
}

// Tokenize lowercases, splits on whitespace and drops stop words.
func Tokenize(s string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Similarity is the positional character-overlap ratio between two
// strings: matching characters at identical positions over the longer
// string's length. Identical strings score 1.0. It is order- and
// length-sensitive on purpose; see the token scoring it feeds.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	match := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			match++
		}
	}
	return float64(match) / float64(longer)
}

// similarity sums pairwise token overlap and normalizes by the larger
// token count.
func similarity(input, key []string) float64 {
	if len(input) == 0 || len(key) == 0 {
		return 0
	}
	var sum float64
	for _, it := range input {
		for _, kt := range key {
			sum += Similarity(it, kt)
		}
	}
	denom := len(input)
	if len(key) > denom {
		denom = len(key)
	}
	return sum / float64(denom)
}
