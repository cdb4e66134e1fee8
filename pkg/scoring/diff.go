package scoring

import "slices"

// DiffEntry classifies one candidate token.
type DiffEntry struct {
	Token     string `json:"word"`
	IsCorrect bool   `json:"isCorrect"`
	IsExtra   bool   `json:"isExtra"`
}

// DiffResult is the word-level feedback shown to the learner.
type DiffResult struct {
	// Entries has one element per candidate token, in candidate order.
	Entries []DiffEntry `json:"userDiff"`

	// Missing lists reference tokens (in reference order, duplicates kept)
	// that do not appear anywhere in the candidate.
	Missing []string `json:"missingWords"`
}

// Diff classifies each candidate token as correct or extra and lists the
// reference tokens the candidate never produced.
//
// Unlike [Score], Diff uses a plain membership test with no consumption:
// every occurrence of a word that exists in the reference is marked correct.
// Diff("the cat sat", "the the dog") marks both "the" tokens correct even
// though the reference has a single "the". Displayed feedback can therefore
// look more generous than the stored score.
func Diff(reference, candidate string) DiffResult {
	ref := Tokenize(reference)
	cand := Tokenize(candidate)

	res := DiffResult{
		Entries: make([]DiffEntry, 0, len(cand)),
		Missing: []string{},
	}
	for _, heard := range cand {
		ok := slices.Contains(ref, heard)
		res.Entries = append(res.Entries, DiffEntry{
			Token:     heard,
			IsCorrect: ok,
			IsExtra:   !ok,
		})
	}
	for _, word := range ref {
		if !slices.Contains(cand, word) {
			res.Missing = append(res.Missing, word)
		}
	}
	return res
}

// Extras returns the candidate tokens marked as extra, in candidate order.
func (d DiffResult) Extras() []string {
	var out []string
	for _, e := range d.Entries {
		if e.IsExtra {
			out = append(out, e.Token)
		}
	}
	return out
}
