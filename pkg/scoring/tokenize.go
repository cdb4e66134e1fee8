// Package scoring implements the pronunciation scoring routine used by the
// shadowing flow: a bag-of-words comparison between a scenario's reference
// sentence and the transcript produced by speech recognition.
//
// All functions are pure and allocate only local state, so they are safe for
// concurrent use from any number of goroutines.
//
// Usage:
//
//	res := scoring.Score("The patient is stable.", "the patient is table")
//	// res.Score == 75, res.MatchCount == 3, res.TotalWords == 4
//
//	d := scoring.Diff("the cat sat", "the the dog")
//	// d.Entries == [{the correct} {the correct} {dog extra}], d.Missing == [cat sat]
package scoring

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrInvalidInput is returned by [ValidateInput] when a sentence cannot be
// tokenised meaningfully (currently: it is not valid UTF-8).
var ErrInvalidInput = errors.New("scoring: invalid input")

// stripped is the fixed punctuation set removed before splitting. Characters
// are deleted, not replaced by a space, so "don't!" stays one token.
var stripped = strings.NewReplacer(
	".", "",
	",", "",
	"!", "",
	"?", "",
	";", "",
	":", "",
)

// Tokenize normalises text into a sequence of comparable word tokens: the
// input is lowercased, the characters . , ! ? ; : are removed, and the rest is
// split on runs of whitespace. Empty tokens are dropped. The result is an
// empty, non-nil slice when text contains no words.
func Tokenize(text string) []string {
	normalised := stripped.Replace(strings.ToLower(text))
	tokens := strings.Fields(normalised)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// ValidateInput reports [ErrInvalidInput] when reference or candidate is not
// valid UTF-8. Score and Diff themselves are total over all strings; callers
// that accept text from the network check input here first so that garbage
// surfaces as a distinct condition instead of a silent zero score.
func ValidateInput(reference, candidate string) error {
	var errs []error
	if !utf8.ValidString(reference) {
		errs = append(errs, errors.New("reference text is not valid UTF-8"))
	}
	if !utf8.ValidString(candidate) {
		errs = append(errs, errors.New("candidate text is not valid UTF-8"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidInput}, errs...)...)
}
