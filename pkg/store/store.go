// Package store defines the persistence model of medshadow: learners,
// the scenario catalog with its vocabulary, per-scenario progress, and
// vocabulary bookmarks.
//
// Two implementations ship with the module: [github.com/MrWong99/medshadow/pkg/store/postgres]
// for production and [github.com/MrWong99/medshadow/pkg/store/memstore] for tests and
// database-less development. Both are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested row does not exist or is
	// owned by another user.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a write would violate a uniqueness
	// constraint (an email already registered, a word already bookmarked).
	ErrDuplicate = errors.New("store: duplicate entry")
)

// User is a registered learner. Learners are identified by email only.
type User struct {
	ID        int64     `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Word is a vocabulary entry attached to a scenario. WordType is "word" or
// "phrase". Position is the order in the scenario's word list and is zero
// outside a scenario context.
type Word struct {
	ID       int64  `json:"id"`
	Word     string `json:"word"`
	WordType string `json:"wordType"`
	Meaning  string `json:"meaning"`
	Position int    `json:"position"`
}

// Scenario is one shadowing exercise: an English sentence spoken in a
// clinical situation, its Japanese translation, and the vocabulary it
// teaches.
type Scenario struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	SentenceEn      string `json:"sentenceEn"`
	SentenceJa      string `json:"sentenceJa"`
	DifficultyLevel int    `json:"difficultyLevel"`
	Words           []Word `json:"words"`
}

// ScenarioSummary is a catalog row annotated with one user's progress.
// BestScore is nil when the user has never attempted the scenario.
type ScenarioSummary struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	DifficultyLevel int    `json:"difficultyLevel"`
	BestScore       *int   `json:"bestScore"`
	Attempted       bool   `json:"attempted"`
}

// Progress is a user's record for one scenario.
type Progress struct {
	ScenarioID      int64     `json:"scenarioId"`
	ScenarioTitle   string    `json:"scenarioTitle"`
	BestScore       int       `json:"bestScore"`
	AttemptCount    int       `json:"attemptCount"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt"`
}

// ProgressUpdate is the outcome of recording one attempt.
type ProgressUpdate struct {
	ScenarioID   int64 `json:"scenarioId"`
	BestScore    int   `json:"bestScore"`
	AttemptCount int   `json:"attemptCount"`

	// IsNewRecord is true on the first attempt and whenever the score is
	// strictly greater than the previous best.
	IsNewRecord bool `json:"isNewRecord"`
}

// Bookmark is a saved vocabulary entry together with the scenario it was
// saved from. ExampleSentence is that scenario's English sentence.
type Bookmark struct {
	ID              int64     `json:"id"`
	WordID          int64     `json:"wordId"`
	Word            string    `json:"word"`
	Meaning         string    `json:"meaning"`
	WordType        string    `json:"wordType"`
	ScenarioID      int64     `json:"scenarioId"`
	ScenarioTitle   string    `json:"scenarioTitle"`
	ExampleSentence string    `json:"exampleSentence"`
	CreatedAt       time.Time `json:"createdAt"`
}

// UserStore persists learners.
type UserStore interface {
	// CreateUser registers email. Returns [ErrDuplicate] if it is taken.
	CreateUser(ctx context.Context, email string) (User, error)

	// UserByEmail returns [ErrNotFound] for unknown addresses.
	UserByEmail(ctx context.Context, email string) (User, error)
}

// ScenarioStore persists the scenario catalog.
type ScenarioStore interface {
	// ListScenarios returns every scenario ordered by id, annotated with
	// userID's best score.
	ListScenarios(ctx context.Context, userID int64) ([]ScenarioSummary, error)

	// GetScenario returns the scenario with its words ordered by position.
	GetScenario(ctx context.Context, id int64) (Scenario, error)

	// UpsertScenario inserts or replaces a scenario, its words, and the
	// word ordering. Used to seed the catalog.
	UpsertScenario(ctx context.Context, sc Scenario) error

	// GetWord returns a vocabulary entry with Position zero.
	GetWord(ctx context.Context, id int64) (Word, error)
}

// ProgressStore persists attempts.
type ProgressStore interface {
	// ListProgress returns userID's records, most recently attempted first.
	ListProgress(ctx context.Context, userID int64) ([]Progress, error)

	// SaveProgress records one attempt atomically. Returns [ErrNotFound] if
	// the scenario does not exist.
	SaveProgress(ctx context.Context, userID, scenarioID int64, score int) (ProgressUpdate, error)
}

// BookmarkStore persists vocabulary bookmarks.
type BookmarkStore interface {
	// ListBookmarks returns userID's bookmarks, newest first.
	ListBookmarks(ctx context.Context, userID int64) ([]Bookmark, error)

	// AddBookmark saves wordID for userID. Returns [ErrDuplicate] if the user
	// already bookmarked the word and [ErrNotFound] if the word or scenario
	// does not exist.
	AddBookmark(ctx context.Context, userID, wordID, scenarioID int64) (Bookmark, error)

	// DeleteBookmark removes one of userID's bookmarks. Returns [ErrNotFound]
	// if it does not exist or belongs to another user.
	DeleteBookmark(ctx context.Context, userID, id int64) error
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	ScenarioStore
	ProgressStore
	BookmarkStore

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}
