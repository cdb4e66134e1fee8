// Package postgres provides the PostgreSQL-backed implementation of
// [store.Store].
//
// All operations share a single [pgxpool.Pool]. [Migrate] creates the schema
// on start and is safe to run against an existing database.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn, postgres.WithMaxConns(8))
//	if err != nil { … }
//	defer s.Close()
//
//	up, _ := s.SaveProgress(ctx, userID, scenarioID, 85)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Accounts
// ─────────────────────────────────────────────────────────────────────────────

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL    PRIMARY KEY,
    email       TEXT         NOT NULL UNIQUE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Catalog ids are assigned by the catalog file, not by sequences.
// ─────────────────────────────────────────────────────────────────────────────

const ddlCatalog = `
CREATE TABLE IF NOT EXISTS scenarios (
    id                BIGINT       PRIMARY KEY,
    title             TEXT         NOT NULL,
    sentence_en       TEXT         NOT NULL,
    sentence_ja       TEXT         NOT NULL DEFAULT '',
    difficulty_level  INTEGER      NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS words (
    id         BIGINT  PRIMARY KEY,
    word       TEXT    NOT NULL,
    word_type  TEXT    NOT NULL DEFAULT 'word',
    meaning    TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scenario_words (
    scenario_id  BIGINT   NOT NULL REFERENCES scenarios (id) ON DELETE CASCADE,
    word_id      BIGINT   NOT NULL REFERENCES words (id) ON DELETE CASCADE,
    position     INTEGER  NOT NULL,
    PRIMARY KEY (scenario_id, word_id)
);

CREATE INDEX IF NOT EXISTS idx_scenario_words_position
    ON scenario_words (scenario_id, position);
`

// ─────────────────────────────────────────────────────────────────────────────
// Learner state
// ─────────────────────────────────────────────────────────────────────────────

const ddlLearner = `
CREATE TABLE IF NOT EXISTS progress (
    id                 BIGSERIAL    PRIMARY KEY,
    user_id            BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    scenario_id        BIGINT       NOT NULL REFERENCES scenarios (id) ON DELETE CASCADE,
    best_score         INTEGER      NOT NULL CHECK (best_score BETWEEN 0 AND 100),
    attempt_count      INTEGER      NOT NULL DEFAULT 1,
    last_attempted_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, scenario_id)
);

CREATE INDEX IF NOT EXISTS idx_progress_user_last
    ON progress (user_id, last_attempted_at DESC);

CREATE TABLE IF NOT EXISTS bookmarks (
    id           BIGSERIAL    PRIMARY KEY,
    user_id      BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    word_id      BIGINT       NOT NULL REFERENCES words (id) ON DELETE CASCADE,
    scenario_id  BIGINT       NOT NULL REFERENCES scenarios (id) ON DELETE CASCADE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, word_id)
);

CREATE INDEX IF NOT EXISTS idx_bookmarks_user_created
    ON bookmarks (user_id, created_at DESC);
`

// Migrate creates or ensures all required database tables exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlUsers,
		ddlCatalog,
		ddlLearner,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
