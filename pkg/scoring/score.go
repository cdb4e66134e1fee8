package scoring

import "math"

// Result is the outcome of a single [Score] call. It is created fresh per
// call and owned by the caller.
type Result struct {
	// Score is round(MatchCount / TotalWords * 100), in the range [0, 100].
	Score int `json:"score"`

	// MatchCount is the number of reference tokens matched by a distinct
	// candidate token.
	MatchCount int `json:"matchCount"`

	// TotalWords is the number of reference tokens.
	TotalWords int `json:"totalWords"`

	// ReferenceTokens is the tokenised reference sentence.
	ReferenceTokens []string `json:"correctWords"`

	// CandidateTokens is the tokenised transcript.
	CandidateTokens []string `json:"userWords"`
}

// Score compares the reference sentence against the candidate transcript.
//
// Matching is order-insensitive but consumption-limited: reference tokens are
// visited in order and each claims the earliest candidate token that is equal
// to it and not yet claimed. A candidate token therefore satisfies at most one
// reference token, so "a a a" against "a a" yields two matches, not three.
// Reference tokens without a partner contribute nothing.
//
// An empty reference yields Score 0 and MatchCount 0.
func Score(reference, candidate string) Result {
	ref := Tokenize(reference)
	cand := Tokenize(candidate)

	res := Result{
		TotalWords:      len(ref),
		ReferenceTokens: ref,
		CandidateTokens: cand,
	}
	if len(ref) == 0 {
		return res
	}

	consumed := make([]bool, len(cand))
	for _, word := range ref {
		for j, heard := range cand {
			if !consumed[j] && heard == word {
				consumed[j] = true
				res.MatchCount++
				break
			}
		}
	}

	res.Score = int(math.Round(float64(res.MatchCount) / float64(res.TotalWords) * 100))
	return res
}
