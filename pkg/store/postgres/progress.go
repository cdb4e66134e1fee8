package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/medshadow/pkg/store"
)

// ListProgress implements [store.ProgressStore].
func (s *Store) ListProgress(ctx context.Context, userID int64) ([]store.Progress, error) {
	const q = `
		SELECT p.scenario_id,
		       s.title,
		       p.best_score,
		       p.attempt_count,
		       p.last_attempted_at
		FROM   progress p
		JOIN   scenarios s ON s.id = p.scenario_id
		WHERE  p.user_id = $1
		ORDER  BY p.last_attempted_at DESC, p.id DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, wrapErr("list progress", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Progress, error) {
		var p store.Progress
		err := row.Scan(&p.ScenarioID, &p.ScenarioTitle, &p.BestScore, &p.AttemptCount, &p.LastAttemptedAt)
		return p, err
	})
	if err != nil {
		return nil, wrapErr("list progress: scan rows", err)
	}
	if out == nil {
		out = []store.Progress{}
	}
	return out, nil
}

// SaveProgress implements [store.ProgressStore]. The first attempt inserts
// the row; later attempts lock it before folding in the score, so concurrent
// attempts are serialised and only one of them can set a new record.
func (s *Store) SaveProgress(ctx context.Context, userID, scenarioID int64, score int) (store.ProgressUpdate, error) {
	const qInsert = `
		INSERT INTO progress (user_id, scenario_id, best_score, attempt_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, scenario_id) DO NOTHING`
	const qLock = `
		SELECT best_score
		FROM   progress
		WHERE  user_id = $1 AND scenario_id = $2
		FOR UPDATE`
	const qUpdate = `
		UPDATE progress SET
		    best_score        = GREATEST(best_score, $3),
		    attempt_count     = attempt_count + 1,
		    last_attempted_at = now(),
		    updated_at        = now()
		WHERE  user_id = $1 AND scenario_id = $2
		RETURNING best_score, attempt_count`

	up := store.ProgressUpdate{ScenarioID: scenarioID}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, qInsert, userID, scenarioID, score)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			up.BestScore, up.AttemptCount, up.IsNewRecord = score, 1, true
			return nil
		}

		var prev int
		if err := tx.QueryRow(ctx, qLock, userID, scenarioID).Scan(&prev); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, qUpdate, userID, scenarioID, score).Scan(&up.BestScore, &up.AttemptCount); err != nil {
			return err
		}
		up.IsNewRecord = score > prev
		return nil
	})
	if err != nil {
		return store.ProgressUpdate{}, wrapErr("save progress", err)
	}
	return up, nil
}
