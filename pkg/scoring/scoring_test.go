package scoring_test

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/medshadow/pkg/scoring"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "punctuation and case", in: "Hello, world!", want: []string{"hello", "world"}},
		{name: "whitespace runs", in: "  The   patient\tis\nstable.  ", want: []string{"the", "patient", "is", "stable"}},
		{name: "only punctuation", in: "?!.", want: []string{}},
		{name: "empty", in: "", want: []string{}},
		{name: "apostrophe kept", in: "Don't worry.", want: []string{"don't", "worry"}},
		{name: "hyphen kept", in: "X-ray; CT-scan:", want: []string{"x-ray", "ct-scan"}},
		{name: "punctuation removed not spaced", in: "a.b", want: []string{"ab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scoring.Tokenize(tt.in)
			if got == nil {
				t.Fatal("Tokenize returned nil slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenize_NoEmptyOrPunctuatedTokens(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Please take a deep breath, and hold it.",
		"Where does it hurt?; Show me!",
		" , . ! ",
	}
	for _, in := range inputs {
		for _, tok := range scoring.Tokenize(in) {
			if tok == "" {
				t.Errorf("Tokenize(%q) produced an empty token", in)
			}
			if strings.ContainsAny(tok, ".,!?;: \t\n") {
				t.Errorf("Tokenize(%q) token %q contains stripped characters", in, tok)
			}
			if tok != strings.ToLower(tok) {
				t.Errorf("Tokenize(%q) token %q is not lowercase", in, tok)
			}
		}
	}
}

func TestTokenize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"please relax while i check your blood pressure",
		"take a deep breath",
		"x-ray ct-scan 120 80",
		"don't worry",
		"single",
		"",
		"Hello, world! The   patient is STABLE.",
	}
	for _, in := range inputs {
		once := scoring.Tokenize(in)
		twice := scoring.Tokenize(strings.Join(once, " "))
		if !slices.Equal(once, twice) {
			t.Errorf("Tokenize(%q): re-tokenizing %q gave %q", in, once, twice)
		}
	}

	normalized := "the nurse checks 3 vitals"
	if got := strings.Join(scoring.Tokenize(normalized), " "); got != normalized {
		t.Errorf("Tokenize changed normalized input: %q", got)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ref, cand string
		wantScore int
		wantMatch int
		wantTotal int
	}{
		{name: "identical", ref: "The patient is stable.", cand: "the patient is stable", wantScore: 100, wantMatch: 4, wantTotal: 4},
		{name: "two of three rounds up", ref: "The cat sat", cand: "cat sat", wantScore: 67, wantMatch: 2, wantTotal: 3},
		{name: "one of three rounds down", ref: "The cat sat", cand: "dog cat", wantScore: 33, wantMatch: 1, wantTotal: 3},
		{name: "order insensitive", ref: "take a deep breath", cand: "breath deep a take", wantScore: 100, wantMatch: 4, wantTotal: 4},
		{name: "duplicates consumed", ref: "a a a", cand: "a a", wantScore: 67, wantMatch: 2, wantTotal: 3},
		{name: "extra candidate words ignored", ref: "hold still", cand: "please hold very still now", wantScore: 100, wantMatch: 2, wantTotal: 2},
		{name: "empty candidate", ref: "open your mouth", cand: "", wantScore: 0, wantMatch: 0, wantTotal: 3},
		{name: "empty reference", ref: "", cand: "anything at all", wantScore: 0, wantMatch: 0, wantTotal: 0},
		{name: "punctuation only reference", ref: "...", cand: "hello", wantScore: 0, wantMatch: 0, wantTotal: 0},
		{name: "half rounds away from zero", ref: "a b", cand: "a", wantScore: 50, wantMatch: 1, wantTotal: 2},
		{name: "seven eighths", ref: "a b c d e f g h", cand: "a b c d e f g", wantScore: 88, wantMatch: 7, wantTotal: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scoring.Score(tt.ref, tt.cand)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.MatchCount != tt.wantMatch {
				t.Errorf("MatchCount = %d, want %d", got.MatchCount, tt.wantMatch)
			}
			if got.TotalWords != tt.wantTotal {
				t.Errorf("TotalWords = %d, want %d", got.TotalWords, tt.wantTotal)
			}
		})
	}
}

func TestScore_Properties(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"The cat sat", "cat sat"},
		{"a a a", "a a"},
		{"Is there any history of heart disease in your family?", "is there history of heart disease in the family"},
		{"Please lie down on the bed.", "lie down bed please please"},
		{"", "x"},
		{"one", ""},
	}
	for _, p := range pairs {
		ref, cand := p[0], p[1]
		got := scoring.Score(ref, cand)

		if got.Score < 0 || got.Score > 100 {
			t.Errorf("Score(%q, %q).Score = %d out of range", ref, cand, got.Score)
		}
		if got.MatchCount > got.TotalWords {
			t.Errorf("Score(%q, %q): MatchCount %d > TotalWords %d", ref, cand, got.MatchCount, got.TotalWords)
		}
		if got.MatchCount > len(got.CandidateTokens) {
			t.Errorf("Score(%q, %q): MatchCount %d > candidate tokens %d", ref, cand, got.MatchCount, len(got.CandidateTokens))
		}
		if got.TotalWords != len(scoring.Tokenize(ref)) {
			t.Errorf("Score(%q, %q): TotalWords %d does not match tokenised reference", ref, cand, got.TotalWords)
		}
		if got.TotalWords > 0 {
			want := int(math.Round(float64(got.MatchCount) / float64(got.TotalWords) * 100))
			if got.Score != want {
				t.Errorf("Score(%q, %q).Score = %d, want %d", ref, cand, got.Score, want)
			}
		}

		self := scoring.Score(ref, ref)
		if self.TotalWords > 0 && self.Score != 100 {
			t.Errorf("Score(%q, %q).Score = %d, want 100", ref, ref, self.Score)
		}
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	got := scoring.Diff("the cat sat", "the the dog")

	want := []scoring.DiffEntry{
		{Token: "the", IsCorrect: true},
		{Token: "the", IsCorrect: true},
		{Token: "dog", IsExtra: true},
	}
	if !slices.Equal(got.Entries, want) {
		t.Errorf("Entries = %+v, want %+v", got.Entries, want)
	}
	if !slices.Equal(got.Missing, []string{"cat", "sat"}) {
		t.Errorf("Missing = %q, want [cat sat]", got.Missing)
	}
	if !slices.Equal(got.Extras(), []string{"dog"}) {
		t.Errorf("Extras() = %q, want [dog]", got.Extras())
	}
}

func TestDiff_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("empty candidate", func(t *testing.T) {
		t.Parallel()
		got := scoring.Diff("Open your mouth.", "")
		if len(got.Entries) != 0 {
			t.Errorf("Entries = %+v, want none", got.Entries)
		}
		if !slices.Equal(got.Missing, []string{"open", "your", "mouth"}) {
			t.Errorf("Missing = %q", got.Missing)
		}
	})

	t.Run("empty reference", func(t *testing.T) {
		t.Parallel()
		got := scoring.Diff("", "hello there")
		for _, e := range got.Entries {
			if !e.IsExtra || e.IsCorrect {
				t.Errorf("entry %+v should be extra", e)
			}
		}
		if got.Missing == nil || len(got.Missing) != 0 {
			t.Errorf("Missing = %#v, want empty non-nil", got.Missing)
		}
	})

	t.Run("missing keeps reference duplicates", func(t *testing.T) {
		t.Parallel()
		got := scoring.Diff("no no no", "yes")
		if !slices.Equal(got.Missing, []string{"no", "no", "no"}) {
			t.Errorf("Missing = %q", got.Missing)
		}
	})
}

func TestDiff_Properties(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"the cat sat", "the the dog"},
		{"Where does it hurt?", "where it hurts"},
		{"Take a deep breath.", "take deep breath a"},
	}
	for _, p := range pairs {
		ref, cand := p[0], p[1]
		d := scoring.Diff(ref, cand)
		refTokens := scoring.Tokenize(ref)
		candTokens := scoring.Tokenize(cand)

		if len(d.Entries) != len(candTokens) {
			t.Errorf("Diff(%q, %q): %d entries, want %d", ref, cand, len(d.Entries), len(candTokens))
		}
		for _, e := range d.Entries {
			if e.IsCorrect == e.IsExtra {
				t.Errorf("Diff(%q, %q): entry %+v must be exactly one of correct/extra", ref, cand, e)
			}
			if e.IsCorrect != slices.Contains(refTokens, e.Token) {
				t.Errorf("Diff(%q, %q): entry %+v disagrees with reference membership", ref, cand, e)
			}
		}
		for _, m := range d.Missing {
			if slices.Contains(candTokens, m) {
				t.Errorf("Diff(%q, %q): missing %q appears in candidate", ref, cand, m)
			}
		}
	}
}

func TestValidateInput(t *testing.T) {
	t.Parallel()

	if err := scoring.ValidateInput("The patient is stable.", "the patient"); err != nil {
		t.Errorf("ValidateInput(valid) = %v, want nil", err)
	}
	if err := scoring.ValidateInput("", ""); err != nil {
		t.Errorf("ValidateInput(empty) = %v, want nil", err)
	}

	err := scoring.ValidateInput("fine", "bad \xff bytes")
	if !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("ValidateInput(invalid) = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "candidate") {
		t.Errorf("error %q should name the candidate", err)
	}
}

func TestWordErrorRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		ref, cand           string
		wantS, wantI, wantD int
		wantRate            float64
	}{
		{name: "identical", ref: "the cat sat", cand: "The cat sat.", wantRate: 0},
		{name: "one substitution", ref: "the cat sat", cand: "the dog sat", wantS: 1, wantRate: 1.0 / 3},
		{name: "one deletion", ref: "the cat sat", cand: "cat sat", wantD: 1, wantRate: 1.0 / 3},
		{name: "one insertion", ref: "cat sat", cand: "the cat sat", wantI: 1, wantRate: 0.5},
		{name: "empty candidate", ref: "a b c", cand: "", wantD: 3, wantRate: 1},
		{name: "reordered", ref: "a b", cand: "b a", wantS: 2, wantRate: 1},
		{name: "empty reference", ref: "", cand: "x y", wantRate: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scoring.WordErrorRate(tt.ref, tt.cand)
			if got.Substitutions+got.Insertions+got.Deletions != tt.wantS+tt.wantI+tt.wantD {
				t.Errorf("edits = S%d I%d D%d, want S%d I%d D%d",
					got.Substitutions, got.Insertions, got.Deletions, tt.wantS, tt.wantI, tt.wantD)
			}
			if tt.name != "reordered" {
				if got.Substitutions != tt.wantS || got.Insertions != tt.wantI || got.Deletions != tt.wantD {
					t.Errorf("edits = S%d I%d D%d, want S%d I%d D%d",
						got.Substitutions, got.Insertions, got.Deletions, tt.wantS, tt.wantI, tt.wantD)
				}
			}
			if math.Abs(got.Rate-tt.wantRate) > 1e-9 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
		})
	}
}
