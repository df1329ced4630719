package metadata

import (
	"slices"
	"strings"
	"unicode"
)

// Matcher finds the external catalog entry for a record, first by exact
// candidate keys and then by token scoring. It is pure and safe for
// concurrent use.
type Matcher struct {
	rules Rules
	stop  map[string]bool
}

// NewMatcher creates a matcher from rules.
func NewMatcher(r Rules) *Matcher {
	stop := make(map[string]bool, len(r.StopTokens))
	for _, t := range r.StopTokens {
		stop[strings.ToLower(t)] = true
	}
	return &Matcher{rules: r, stop: stop}
}

// CandidateKeys returns the exact keys to try, in order: the bare id, then
// the id under each of the source's catalog prefixes.
func (m *Matcher) CandidateKeys(source, modelID string) []string {
	keys := []string{modelID}
	for _, prefix := range m.rules.KeyPrefixes[source] {
		k := prefix + modelID
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Tokenize lowercases a model id, splits it on non-alphanumeric runes and
// drops stop tokens.
func (m *Matcher) Tokenize(modelID string) []string {
	fields := strings.FieldsFunc(strings.ToLower(modelID), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if !m.stop[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

var keySeparators = strings.NewReplacer("-", " ", ".", " ", "/", " ", "_", " ")

// Score rates how well catalog key matches a record's model id.
func (m *Matcher) Score(tokens []string, modelID, key string, e Entry) float64 {
	keyLower := strings.ToLower(key)
	normalized := keySeparators.Replace(keyLower)
	idLower := strings.ToLower(modelID)

	var score float64
	for _, t := range tokens {
		if len(t) >= m.rules.MinTokenLength && strings.Contains(normalized, t) {
			score++
		}
	}

	switch {
	case strings.Contains(idLower, "v2") && strings.Contains(keyLower, "v2"):
		score += m.rules.V2Bonus
	case strings.Contains(idLower, "v1") && strings.Contains(keyLower, "v1"):
		score += m.rules.V1Bonus
	}

	if e.hasLimits() {
		score += m.rules.LimitsBonus
	}
	return score
}

// inScope reports whether key may be fuzzy-matched for source.
func (m *Matcher) inScope(source, key string) bool {
	scope, ok := m.rules.FuzzyScopes[source]
	if !ok {
		return true
	}
	lower := strings.ToLower(key)
	for _, x := range scope.Exclude {
		if strings.Contains(lower, strings.ToLower(x)) {
			return false
		}
	}
	if len(scope.KeyPrefixes) == 0 {
		return true
	}
	for _, p := range scope.KeyPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Match is a selected catalog entry.
type Match struct {
	Key   string
	Entry Entry
	Fuzzy bool
	Score float64
}

// Find looks up a record's catalog entry. Exact candidate keys win; otherwise
// the highest-scoring in-scope key is accepted if it reaches the minimum
// score. Ties go to the first key in catalog order.
func (m *Matcher) Find(source, modelID string, catalog *Snapshot) (Match, bool) {
	if catalog == nil {
		return Match{}, false
	}

	for _, k := range m.CandidateKeys(source, modelID) {
		if e, ok := catalog.Lookup(k); ok {
			return Match{Key: k, Entry: e}, true
		}
	}

	tokens := m.Tokenize(modelID)
	var best Match
	found := false
	for _, k := range catalog.Keys() {
		if !m.inScope(source, k) {
			continue
		}
		e, _ := catalog.Lookup(k)
		s := m.Score(tokens, modelID, k, e)
		if s > best.Score {
			best = Match{Key: k, Entry: e, Fuzzy: true, Score: s}
			found = true
		}
	}

	if !found || best.Score < m.rules.MinFuzzyScore {
		return Match{}, false
	}
	return best, true
}
