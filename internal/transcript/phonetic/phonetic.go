// Package phonetic suggests which reference word a learner most likely meant
// when speech recognition produced a different word.
//
// Candidates are filtered with Double Metaphone codes and ranked with
// Jaro-Winkler similarity on the lowercased strings:
//
//  1. If any Double Metaphone code of the heard word overlaps a code of an
//     expected word, the expected word is a phonetic candidate and is accepted
//     when its similarity reaches the phonetic threshold (default 0.70).
//
//  2. Without a phonetic candidate, pure Jaro-Winkler similarity is tested
//     against every expected word using the stricter fuzzy threshold
//     (default 0.85).
//
// Multi-word input is compared token-wise, concatenated, and in full; the best
// of the three scores is used.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/medshadow/pkg/scoring"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Hint pairs a misrecognised token with the reference word it probably was.
type Hint struct {
	Heard      string  `json:"heard"`
	Expected   string  `json:"expected"`
	Confidence float64 `json:"confidence"`
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically-matched word. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score used when no
// phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the word in expected that heard most likely was. When ok is
// false, word equals heard unchanged and confidence is 0.
func (m *Matcher) Match(heard string, expected []string) (word string, confidence float64, ok bool) {
	if len(expected) == 0 || strings.TrimSpace(heard) == "" {
		return heard, 0, false
	}

	heardLower := strings.ToLower(strings.TrimSpace(heard))
	heardTokens := strings.Fields(heardLower)
	heardCodes := codesForTokens(heardTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, exp := range expected {
		expLower := strings.ToLower(strings.TrimSpace(exp))
		if expLower == "" {
			continue
		}
		expTokens := strings.Fields(expLower)

		phonetic := codesOverlap(heardCodes, codesForTokens(expTokens))
		score := bestJWScore(heardTokens, expTokens, heardLower, expLower)

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = exp, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			best, bestScore = exp, score
		}
	}

	if best == "" {
		return heard, 0, false
	}
	return best, bestScore, true
}

// Hints proposes, for each extra token in d, the missing reference word it
// most likely was. Each missing word is proposed at most once, to the extra
// token that reaches it first. Hints never change d.
func (m *Matcher) Hints(d scoring.DiffResult) []Hint {
	hints := []Hint{}
	if len(d.Missing) == 0 {
		return hints
	}

	remaining := uniq(d.Missing)
	for _, e := range d.Entries {
		if !e.IsExtra || len(remaining) == 0 {
			continue
		}
		word, conf, ok := m.Match(e.Token, remaining)
		if !ok {
			continue
		}
		hints = append(hints, Hint{Heard: e.Token, Expected: word, Confidence: conf})
		remaining = remove(remaining, word)
	}
	return hints
}

func uniq(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func remove(words []string, target string) []string {
	out := words[:0:0]
	for _, w := range words {
		if w != target {
			out = append(out, w)
		}
	}
	return out
}

// codesForTokens returns the union of all non-empty Double Metaphone codes
// for the given tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the maximum Jaro-Winkler similarity over full strings,
// space-stripped strings, and every token pair.
func bestJWScore(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
