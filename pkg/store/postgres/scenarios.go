package postgres

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/medshadow/pkg/store"
)

// ListScenarios implements [store.ScenarioStore].
func (s *Store) ListScenarios(ctx context.Context, userID int64) ([]store.ScenarioSummary, error) {
	const q = `
		SELECT s.id,
		       s.title,
		       s.difficulty_level,
		       p.best_score,
		       p.id IS NOT NULL AS attempted
		FROM   scenarios s
		LEFT   JOIN progress p ON p.scenario_id = s.id AND p.user_id = $1
		ORDER  BY s.id`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, wrapErr("list scenarios", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ScenarioSummary, error) {
		var sum store.ScenarioSummary
		err := row.Scan(&sum.ID, &sum.Title, &sum.DifficultyLevel, &sum.BestScore, &sum.Attempted)
		return sum, err
	})
	if err != nil {
		return nil, wrapErr("list scenarios: scan rows", err)
	}
	if out == nil {
		out = []store.ScenarioSummary{}
	}
	return out, nil
}

// GetScenario implements [store.ScenarioStore].
func (s *Store) GetScenario(ctx context.Context, id int64) (store.Scenario, error) {
	const qScenario = `
		SELECT id, title, sentence_en, sentence_ja, difficulty_level
		FROM   scenarios
		WHERE  id = $1`

	var sc store.Scenario
	err := s.pool.QueryRow(ctx, qScenario, id).
		Scan(&sc.ID, &sc.Title, &sc.SentenceEn, &sc.SentenceJa, &sc.DifficultyLevel)
	if err != nil {
		return store.Scenario{}, wrapErr(fmt.Sprintf("get scenario %d", id), err)
	}

	const qWords = `
		SELECT w.id, w.word, w.word_type, w.meaning, sw.position
		FROM   scenario_words sw
		JOIN   words w ON w.id = sw.word_id
		WHERE  sw.scenario_id = $1
		ORDER  BY sw.position, w.id`

	rows, err := s.pool.Query(ctx, qWords, id)
	if err != nil {
		return store.Scenario{}, wrapErr("get scenario words", err)
	}
	words, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Word, error) {
		var w store.Word
		err := row.Scan(&w.ID, &w.Word, &w.WordType, &w.Meaning, &w.Position)
		return w, err
	})
	if err != nil {
		return store.Scenario{}, wrapErr("get scenario words: scan rows", err)
	}
	if words == nil {
		words = []store.Word{}
	}
	sc.Words = words
	return sc, nil
}

// UpsertScenario implements [store.ScenarioStore]. The scenario row, its
// words, and the word ordering are replaced in one transaction.
func (s *Store) UpsertScenario(ctx context.Context, sc store.Scenario) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const qScenario = `
			INSERT INTO scenarios (id, title, sentence_en, sentence_ja, difficulty_level)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
			    title            = EXCLUDED.title,
			    sentence_en      = EXCLUDED.sentence_en,
			    sentence_ja      = EXCLUDED.sentence_ja,
			    difficulty_level = EXCLUDED.difficulty_level,
			    updated_at       = now()`
		if _, err := tx.Exec(ctx, qScenario, sc.ID, sc.Title, sc.SentenceEn, sc.SentenceJa, sc.DifficultyLevel); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM scenario_words WHERE scenario_id = $1`, sc.ID); err != nil {
			return err
		}

		const qWord = `
			INSERT INTO words (id, word, word_type, meaning)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
			    word      = EXCLUDED.word,
			    word_type = EXCLUDED.word_type,
			    meaning   = EXCLUDED.meaning`
		const qLink = `
			INSERT INTO scenario_words (scenario_id, word_id, position)
			VALUES ($1, $2, $3)`

		// Word rows are locked in id order so that concurrent upserts of
		// scenarios sharing vocabulary cannot deadlock.
		words := slices.Clone(sc.Words)
		slices.SortFunc(words, func(a, b store.Word) int { return cmp.Compare(a.ID, b.ID) })

		batch := &pgx.Batch{}
		for _, w := range words {
			batch.Queue(qWord, w.ID, w.Word, w.WordType, w.Meaning)
		}
		for _, w := range words {
			batch.Queue(qLink, sc.ID, w.ID, w.Position)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return wrapErr(fmt.Sprintf("upsert scenario %d", sc.ID), err)
	}
	return nil
}

// GetWord implements [store.ScenarioStore].
func (s *Store) GetWord(ctx context.Context, id int64) (store.Word, error) {
	const q = `SELECT id, word, word_type, meaning FROM words WHERE id = $1`

	var w store.Word
	if err := s.pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.Word, &w.WordType, &w.Meaning); err != nil {
		return store.Word{}, wrapErr(fmt.Sprintf("get word %d", id), err)
	}
	return w, nil
}
