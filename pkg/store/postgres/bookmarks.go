package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/medshadow/pkg/store"
)

const bookmarkColumns = `
	b.id, b.word_id, w.word, w.meaning, w.word_type,
	b.scenario_id, s.title, s.sentence_en, b.created_at`

func scanBookmark(row pgx.Row) (store.Bookmark, error) {
	var b store.Bookmark
	err := row.Scan(
		&b.ID,
		&b.WordID,
		&b.Word,
		&b.Meaning,
		&b.WordType,
		&b.ScenarioID,
		&b.ScenarioTitle,
		&b.ExampleSentence,
		&b.CreatedAt,
	)
	return b, err
}

// ListBookmarks implements [store.BookmarkStore].
func (s *Store) ListBookmarks(ctx context.Context, userID int64) ([]store.Bookmark, error) {
	q := `
		SELECT ` + bookmarkColumns + `
		FROM   bookmarks b
		JOIN   words w     ON w.id = b.word_id
		JOIN   scenarios s ON s.id = b.scenario_id
		WHERE  b.user_id = $1
		ORDER  BY b.created_at DESC, b.id DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, wrapErr("list bookmarks", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Bookmark, error) {
		return scanBookmark(row)
	})
	if err != nil {
		return nil, wrapErr("list bookmarks: scan rows", err)
	}
	if out == nil {
		out = []store.Bookmark{}
	}
	return out, nil
}

// AddBookmark implements [store.BookmarkStore]. Missing words or scenarios
// surface as foreign key violations and map to [store.ErrNotFound].
func (s *Store) AddBookmark(ctx context.Context, userID, wordID, scenarioID int64) (store.Bookmark, error) {
	q := `
		WITH b AS (
		    INSERT INTO bookmarks (user_id, word_id, scenario_id)
		    VALUES ($1, $2, $3)
		    RETURNING id, word_id, scenario_id, created_at
		)
		SELECT ` + bookmarkColumns + `
		FROM   b
		JOIN   words w     ON w.id = b.word_id
		JOIN   scenarios s ON s.id = b.scenario_id`

	b, err := scanBookmark(s.pool.QueryRow(ctx, q, userID, wordID, scenarioID))
	if err != nil {
		return store.Bookmark{}, wrapErr("add bookmark", err)
	}
	return b, nil
}

// DeleteBookmark implements [store.BookmarkStore].
func (s *Store) DeleteBookmark(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrapErr("delete bookmark", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: delete bookmark %d: %w", id, store.ErrNotFound)
	}
	return nil
}
