// Package catalog loads the shadowing scenario catalog from YAML and seeds it
// into a [store.ScenarioStore].
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/medshadow/pkg/store"
)

// Word types accepted in a catalog file.
const (
	WordTypeWord   = "word"
	WordTypePhrase = "phrase"
)

// importConcurrency bounds the number of scenarios upserted in parallel.
const importConcurrency = 4

// File is the top-level structure of a scenario catalog YAML file.
//
// Example:
//
//	scenarios:
//	  - id: 1
//	    title: "Taking a blood sample"
//	    sentence_en: "I'm going to take a blood sample from your arm."
//	    sentence_ja: "腕から採血しますね。"
//	    difficulty_level: 1
//	    words:
//	      - id: 10
//	        word: "blood sample"
//	        word_type: phrase
//	        meaning: "血液検体"
type File struct {
	Scenarios []ScenarioDef `yaml:"scenarios"`
}

// ScenarioDef is one scenario as written in the catalog.
type ScenarioDef struct {
	ID              int64     `yaml:"id"`
	Title           string    `yaml:"title"`
	SentenceEn      string    `yaml:"sentence_en"`
	SentenceJa      string    `yaml:"sentence_ja"`
	DifficultyLevel int       `yaml:"difficulty_level"`
	Words           []WordDef `yaml:"words"`
}

// WordDef is one vocabulary entry of a scenario. WordType defaults to
// "word" and Position to the entry's 1-based index in the list.
type WordDef struct {
	ID       int64  `yaml:"id"`
	Word     string `yaml:"word"`
	WordType string `yaml:"word_type"`
	Meaning  string `yaml:"meaning"`
	Position int    `yaml:"position"`
}

// LoadFile reads and parses a catalog YAML file from disk.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return cf, nil
}

// LoadFromReader parses catalog YAML from r and applies defaults. Unknown
// keys are rejected.
func LoadFromReader(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	cf.applyDefaults()
	return &cf, nil
}

func (f *File) applyDefaults() {
	for i := range f.Scenarios {
		sc := &f.Scenarios[i]
		if sc.DifficultyLevel == 0 {
			sc.DifficultyLevel = 1
		}
		for j := range sc.Words {
			w := &sc.Words[j]
			if w.WordType == "" {
				w.WordType = WordTypeWord
			}
			if w.Position == 0 {
				w.Position = j + 1
			}
		}
	}
}

// Validate checks the catalog for consistency.
//
// Rules:
//   - Scenario ids are positive and unique.
//   - Title and sentence_en are non-empty; difficulty_level is 1..5.
//   - Every scenario lists at least one word.
//   - Word ids are positive, the word text is non-empty, and word_type is
//     "word" or "phrase".
//   - Positions are unique within a scenario.
//   - A word id shared by several scenarios has the same text everywhere.
func Validate(f *File) error {
	if f == nil {
		return errors.New("catalog: file must not be nil")
	}
	var errs []error

	scenarioIDs := make(map[int64]int, len(f.Scenarios))
	wordText := make(map[int64]string)

	for i, sc := range f.Scenarios {
		prefix := fmt.Sprintf("scenarios[%d]", i)
		if sc.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive", prefix))
		} else if prev, dup := scenarioIDs[sc.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %d already used by scenarios[%d]", prefix, sc.ID, prev))
		} else {
			scenarioIDs[sc.ID] = i
		}
		if sc.Title == "" {
			errs = append(errs, fmt.Errorf("%s: title must not be empty", prefix))
		}
		if sc.SentenceEn == "" {
			errs = append(errs, fmt.Errorf("%s: sentence_en must not be empty", prefix))
		}
		if sc.DifficultyLevel < 1 || sc.DifficultyLevel > 5 {
			errs = append(errs, fmt.Errorf("%s: difficulty_level %d out of range [1, 5]", prefix, sc.DifficultyLevel))
		}
		if len(sc.Words) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one word is required", prefix))
		}

		positions := make(map[int]bool, len(sc.Words))
		inScenario := make(map[int64]bool, len(sc.Words))
		for j, w := range sc.Words {
			wp := fmt.Sprintf("%s.words[%d]", prefix, j)
			if w.ID <= 0 {
				errs = append(errs, fmt.Errorf("%s: id must be positive", wp))
			} else if inScenario[w.ID] {
				errs = append(errs, fmt.Errorf("%s: word %d listed twice", wp, w.ID))
			}
			inScenario[w.ID] = true
			if w.Word == "" {
				errs = append(errs, fmt.Errorf("%s: word must not be empty", wp))
			}
			if w.WordType != WordTypeWord && w.WordType != WordTypePhrase {
				errs = append(errs, fmt.Errorf("%s: word_type %q must be %q or %q", wp, w.WordType, WordTypeWord, WordTypePhrase))
			}
			if positions[w.Position] {
				errs = append(errs, fmt.Errorf("%s: position %d already used", wp, w.Position))
			}
			positions[w.Position] = true
			if w.ID > 0 && w.Word != "" {
				if prev, seen := wordText[w.ID]; seen && prev != w.Word {
					errs = append(errs, fmt.Errorf("%s: word %d is %q here but %q elsewhere", wp, w.ID, w.Word, prev))
				} else if !seen {
					wordText[w.ID] = w.Word
				}
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// ToScenarios converts the catalog into store records.
func (f *File) ToScenarios() []store.Scenario {
	out := make([]store.Scenario, 0, len(f.Scenarios))
	for _, sc := range f.Scenarios {
		words := make([]store.Word, 0, len(sc.Words))
		for _, w := range sc.Words {
			words = append(words, store.Word{
				ID:       w.ID,
				Word:     w.Word,
				WordType: w.WordType,
				Meaning:  w.Meaning,
				Position: w.Position,
			})
		}
		out = append(out, store.Scenario{
			ID:              sc.ID,
			Title:           sc.Title,
			SentenceEn:      sc.SentenceEn,
			SentenceJa:      sc.SentenceJa,
			DifficultyLevel: sc.DifficultyLevel,
			Words:           words,
		})
	}
	return out
}

// Import validates f and upserts every scenario into s. It returns the
// number of scenarios written. The first store error cancels the remaining
// upserts and is returned together with the count so far.
func Import(ctx context.Context, s store.ScenarioStore, f *File) (int, error) {
	if err := Validate(f); err != nil {
		return 0, fmt.Errorf("catalog: invalid catalog: %w", err)
	}

	var n atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for _, sc := range f.ToScenarios() {
		g.Go(func() error {
			if err := s.UpsertScenario(gctx, sc); err != nil {
				return fmt.Errorf("catalog: import scenario %d: %w", sc.ID, err)
			}
			n.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(n.Load()), err
}
