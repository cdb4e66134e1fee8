// Package memstore is an in-memory [store.Store]. It backs the server when
// no database is configured and serves as the fixture store in tests.
// All data is lost when the process exits.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/medshadow/pkg/store"
)

var _ store.Store = (*Store)(nil)

type scenarioRow struct {
	scenario store.Scenario
	wordIDs  []int64 // ordered by position
}

type progressKey struct{ userID, scenarioID int64 }

type progressRow struct {
	best, attempts int
	last           time.Time
	seq            uint64
}

type bookmarkRow struct {
	id, userID, wordID, scenarioID int64
	created                        time.Time
}

// Store is safe for concurrent use.
type Store struct {
	now func() time.Time

	mu        sync.RWMutex
	users     map[int64]store.User
	byEmail   map[string]int64
	scenarios map[int64]*scenarioRow
	words     map[int64]store.Word
	progress  map[progressKey]*progressRow
	bookmarks map[int64]bookmarkRow
	nextUser  int64
	nextMark  int64
	seq       uint64
	pingErr   error
}

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		users:     make(map[int64]store.User),
		byEmail:   make(map[string]int64),
		scenarios: make(map[int64]*scenarioRow),
		words:     make(map[int64]store.Word),
		progress:  make(map[progressKey]*progressRow),
		bookmarks: make(map[int64]bookmarkRow),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetPingErr makes subsequent [Store.Ping] calls return err.
func (s *Store) SetPingErr(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}

// Ping implements [store.Store].
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Close implements [store.Store]. It is a no-op.
func (s *Store) Close() {}

// ── Users ────────────────────────────────────────────────────────────────────

// CreateUser implements [store.UserStore].
func (s *Store) CreateUser(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return store.User{}, fmt.Errorf("memstore: create user: %w", store.ErrDuplicate)
	}
	s.nextUser++
	u := store.User{ID: s.nextUser, Email: email, CreatedAt: s.now()}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return u, nil
}

// UserByEmail implements [store.UserStore].
func (s *Store) UserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return store.User{}, fmt.Errorf("memstore: user by email: %w", store.ErrNotFound)
	}
	return s.users[id], nil
}

// ── Scenarios ────────────────────────────────────────────────────────────────

// ListScenarios implements [store.ScenarioStore].
func (s *Store) ListScenarios(_ context.Context, userID int64) ([]store.ScenarioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ScenarioSummary, 0, len(s.scenarios))
	for id, row := range s.scenarios {
		sum := store.ScenarioSummary{
			ID:              id,
			Title:           row.scenario.Title,
			DifficultyLevel: row.scenario.DifficultyLevel,
		}
		if p, ok := s.progress[progressKey{userID, id}]; ok {
			best := p.best
			sum.BestScore = &best
			sum.Attempted = true
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b store.ScenarioSummary) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// GetScenario implements [store.ScenarioStore].
func (s *Store) GetScenario(_ context.Context, id int64) (store.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.scenarios[id]
	if !ok {
		return store.Scenario{}, fmt.Errorf("memstore: get scenario %d: %w", id, store.ErrNotFound)
	}
	sc := row.scenario
	sc.Words = make([]store.Word, 0, len(row.wordIDs))
	for i, wid := range row.wordIDs {
		w := s.words[wid]
		w.Position = row.scenario.Words[i].Position
		sc.Words = append(sc.Words, w)
	}
	return sc, nil
}

// UpsertScenario implements [store.ScenarioStore]. Words are shared across
// scenarios by id; the latest upsert wins for their text.
func (s *Store) UpsertScenario(_ context.Context, sc store.Scenario) error {
	if sc.ID <= 0 {
		return fmt.Errorf("memstore: upsert scenario: id must be positive, got %d", sc.ID)
	}
	words := slices.Clone(sc.Words)
	slices.SortStableFunc(words, func(a, b store.Word) int { return cmp.Compare(a.Position, b.Position) })

	s.mu.Lock()
	defer s.mu.Unlock()
	row := &scenarioRow{scenario: sc}
	row.scenario.Words = words
	for _, w := range words {
		stored := w
		stored.Position = 0
		s.words[w.ID] = stored
		row.wordIDs = append(row.wordIDs, w.ID)
	}
	s.scenarios[sc.ID] = row
	return nil
}

// GetWord implements [store.ScenarioStore].
func (s *Store) GetWord(_ context.Context, id int64) (store.Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.words[id]
	if !ok {
		return store.Word{}, fmt.Errorf("memstore: get word %d: %w", id, store.ErrNotFound)
	}
	return w, nil
}

// ── Progress ─────────────────────────────────────────────────────────────────

// ListProgress implements [store.ProgressStore].
func (s *Store) ListProgress(_ context.Context, userID int64) ([]store.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type ordered struct {
		p   store.Progress
		seq uint64
	}
	var rows []ordered
	for k, p := range s.progress {
		if k.userID != userID {
			continue
		}
		rows = append(rows, ordered{
			p: store.Progress{
				ScenarioID:      k.scenarioID,
				ScenarioTitle:   s.scenarios[k.scenarioID].scenario.Title,
				BestScore:       p.best,
				AttemptCount:    p.attempts,
				LastAttemptedAt: p.last,
			},
			seq: p.seq,
		})
	}
	slices.SortFunc(rows, func(a, b ordered) int {
		if c := b.p.LastAttemptedAt.Compare(a.p.LastAttemptedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	out := make([]store.Progress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.p)
	}
	return out, nil
}

// SaveProgress implements [store.ProgressStore].
func (s *Store) SaveProgress(_ context.Context, userID, scenarioID int64, score int) (store.ProgressUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[scenarioID]; !ok {
		return store.ProgressUpdate{}, fmt.Errorf("memstore: save progress: scenario %d: %w", scenarioID, store.ErrNotFound)
	}
	s.seq++
	key := progressKey{userID, scenarioID}
	p, ok := s.progress[key]
	if !ok {
		s.progress[key] = &progressRow{best: score, attempts: 1, last: s.now(), seq: s.seq}
		return store.ProgressUpdate{ScenarioID: scenarioID, BestScore: score, AttemptCount: 1, IsNewRecord: true}, nil
	}
	isNew := score > p.best
	p.best = max(p.best, score)
	p.attempts++
	p.last = s.now()
	p.seq = s.seq
	return store.ProgressUpdate{
		ScenarioID:   scenarioID,
		BestScore:    p.best,
		AttemptCount: p.attempts,
		IsNewRecord:  isNew,
	}, nil
}

// ── Bookmarks ────────────────────────────────────────────────────────────────

// ListBookmarks implements [store.BookmarkStore].
func (s *Store) ListBookmarks(_ context.Context, userID int64) ([]store.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Bookmark{}
	for _, b := range s.bookmarks {
		if b.userID == userID {
			out = append(out, s.hydrate(b))
		}
	}
	slices.SortFunc(out, func(a, b store.Bookmark) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// AddBookmark implements [store.BookmarkStore].
func (s *Store) AddBookmark(_ context.Context, userID, wordID, scenarioID int64) (store.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.words[wordID]; !ok {
		return store.Bookmark{}, fmt.Errorf("memstore: add bookmark: word %d: %w", wordID, store.ErrNotFound)
	}
	if _, ok := s.scenarios[scenarioID]; !ok {
		return store.Bookmark{}, fmt.Errorf("memstore: add bookmark: scenario %d: %w", scenarioID, store.ErrNotFound)
	}
	for _, b := range s.bookmarks {
		if b.userID == userID && b.wordID == wordID {
			return store.Bookmark{}, fmt.Errorf("memstore: add bookmark: %w", store.ErrDuplicate)
		}
	}
	s.nextMark++
	b := bookmarkRow{id: s.nextMark, userID: userID, wordID: wordID, scenarioID: scenarioID, created: s.now()}
	s.bookmarks[b.id] = b
	return s.hydrate(b), nil
}

// DeleteBookmark implements [store.BookmarkStore].
func (s *Store) DeleteBookmark(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookmarks[id]
	if !ok || b.userID != userID {
		return fmt.Errorf("memstore: delete bookmark %d: %w", id, store.ErrNotFound)
	}
	delete(s.bookmarks, id)
	return nil
}

// hydrate must be called with mu held.
func (s *Store) hydrate(b bookmarkRow) store.Bookmark {
	w := s.words[b.wordID]
	out := store.Bookmark{
		ID:         b.id,
		WordID:     b.wordID,
		Word:       w.Word,
		Meaning:    w.Meaning,
		WordType:   w.WordType,
		ScenarioID: b.scenarioID,
		CreatedAt:  b.created,
	}
	if sc, ok := s.scenarios[b.scenarioID]; ok {
		out.ScenarioTitle = sc.scenario.Title
		out.ExampleSentence = sc.scenario.SentenceEn
	}
	return out
}
