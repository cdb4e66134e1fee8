// Package storetest is a behavioural test suite shared by every
// [store.Store] implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/medshadow/pkg/store"
)

// Scenarios is the fixture catalog installed by [Seed].
var Scenarios = []store.Scenario{
	{
		ID:              1,
		Title:           "Taking a blood sample",
		SentenceEn:      "I am going to take a blood sample from your arm.",
		SentenceJa:      "腕から採血します。",
		DifficultyLevel: 1,
		Words: []store.Word{
			{ID: 10, Word: "blood sample", WordType: "phrase", Meaning: "血液検体", Position: 1},
			{ID: 11, Word: "arm", WordType: "word", Meaning: "腕", Position: 2},
		},
	},
	{
		ID:              2,
		Title:           "Checking blood pressure",
		SentenceEn:      "Please relax while I check your blood pressure.",
		SentenceJa:      "血圧を測る間、楽にしてください。",
		DifficultyLevel: 2,
		Words: []store.Word{
			{ID: 21, Word: "relax", WordType: "word", Meaning: "楽にする", Position: 2},
			{ID: 20, Word: "blood pressure", WordType: "phrase", Meaning: "血圧", Position: 1},
		},
	},
}

// Seed installs [Scenarios] into s.
func Seed(t *testing.T, s store.Store) {
	t.Helper()
	for _, sc := range Scenarios {
		if err := s.UpsertScenario(context.Background(), sc); err != nil {
			t.Fatalf("UpsertScenario(%d): %v", sc.ID, err)
		}
	}
}

// Run exercises newStore's implementation. newStore must return an empty
// store and register its own cleanup.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Scenarios", func(t *testing.T) { testScenarios(t, newStore(t)) })
	t.Run("Progress", func(t *testing.T) { testProgress(t, newStore(t)) })
	t.Run("ConcurrentFirstAttempts", func(t *testing.T) { testConcurrentFirstAttempts(t, newStore(t)) })
	t.Run("Bookmarks", func(t *testing.T) { testBookmarks(t, newStore(t)) })
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "nurse@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID <= 0 || u.Email != "nurse@example.com" || u.CreatedAt.IsZero() {
		t.Errorf("CreateUser returned %+v", u)
	}

	if _, err := s.CreateUser(ctx, "nurse@example.com"); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("duplicate CreateUser: got %v, want ErrDuplicate", err)
	}

	got, err := s.UserByEmail(ctx, "nurse@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("UserByEmail id = %d, want %d", got.ID, u.ID)
	}

	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserByEmail(unknown): got %v, want ErrNotFound", err)
	}
}

func testScenarios(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)

	sc, err := s.GetScenario(ctx, 2)
	if err != nil {
		t.Fatalf("GetScenario: %v", err)
	}
	if sc.Title != "Checking blood pressure" || sc.DifficultyLevel != 2 {
		t.Errorf("GetScenario = %+v", sc)
	}
	if len(sc.Words) != 2 || sc.Words[0].ID != 20 || sc.Words[1].ID != 21 {
		t.Fatalf("words not ordered by position: %+v", sc.Words)
	}
	if sc.Words[0].Position != 1 || sc.Words[0].Meaning != "血圧" {
		t.Errorf("word[0] = %+v", sc.Words[0])
	}

	if _, err := s.GetScenario(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetScenario(99): got %v, want ErrNotFound", err)
	}

	w, err := s.GetWord(ctx, 11)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if w.Word != "arm" || w.Position != 0 {
		t.Errorf("GetWord = %+v", w)
	}
	if _, err := s.GetWord(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetWord(999): got %v, want ErrNotFound", err)
	}

	// Re-seeding replaces the sentence and word list.
	updated := Scenarios[0]
	updated.SentenceEn = "I will take a blood sample."
	updated.Words = updated.Words[:1]
	if err := s.UpsertScenario(ctx, updated); err != nil {
		t.Fatalf("UpsertScenario(update): %v", err)
	}
	sc, err = s.GetScenario(ctx, 1)
	if err != nil {
		t.Fatalf("GetScenario after update: %v", err)
	}
	if sc.SentenceEn != "I will take a blood sample." || len(sc.Words) != 1 {
		t.Errorf("after update: %+v", sc)
	}

	u, err := s.CreateUser(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	list, err := s.ListScenarios(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListScenarios: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("ListScenarios = %+v", list)
	}
	for _, sum := range list {
		if sum.Attempted || sum.BestScore != nil {
			t.Errorf("unattempted scenario reported progress: %+v", sum)
		}
	}

	if _, err := s.SaveProgress(ctx, u.ID, 2, 80); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	list, err = s.ListScenarios(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListScenarios: %v", err)
	}
	if !list[1].Attempted || list[1].BestScore == nil || *list[1].BestScore != 80 {
		t.Errorf("scenario 2 after attempt = %+v", list[1])
	}
	if list[0].Attempted {
		t.Errorf("scenario 1 should be unattempted: %+v", list[0])
	}

	other, err := s.ListScenarios(ctx, u.ID+1000)
	if err != nil {
		t.Fatalf("ListScenarios(other): %v", err)
	}
	if other[1].Attempted {
		t.Error("progress leaked to another user")
	}
}

func testConcurrentFirstAttempts(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)
	u, err := s.CreateUser(ctx, "intern@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		records int
		counts  = make(map[int]bool)
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up, err := s.SaveProgress(ctx, u.ID, 1, 70)
			if err != nil {
				t.Errorf("SaveProgress: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if up.IsNewRecord {
				records++
			}
			counts[up.AttemptCount] = true
		}()
	}
	wg.Wait()

	if records != 1 {
		t.Errorf("%d attempts reported a new record, want 1", records)
	}
	if len(counts) != attempts {
		t.Errorf("attempt counts %v are not distinct", counts)
	}
	list, err := s.ListProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(list) != 1 || list[0].AttemptCount != attempts || list[0].BestScore != 70 {
		t.Errorf("ListProgress = %+v, want one row with %d attempts", list, attempts)
	}
}

func testProgress(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)
	u, err := s.CreateUser(ctx, "resident@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	steps := []struct {
		score     int
		wantBest  int
		wantCount int
		wantNew   bool
	}{
		{score: 60, wantBest: 60, wantCount: 1, wantNew: true},
		{score: 50, wantBest: 60, wantCount: 2, wantNew: false},
		{score: 60, wantBest: 60, wantCount: 3, wantNew: false},
		{score: 90, wantBest: 90, wantCount: 4, wantNew: true},
	}
	for i, st := range steps {
		up, err := s.SaveProgress(ctx, u.ID, 1, st.score)
		if err != nil {
			t.Fatalf("step %d: SaveProgress: %v", i, err)
		}
		if up.ScenarioID != 1 || up.BestScore != st.wantBest || up.AttemptCount != st.wantCount || up.IsNewRecord != st.wantNew {
			t.Errorf("step %d: got %+v, want best=%d count=%d new=%v", i, up, st.wantBest, st.wantCount, st.wantNew)
		}
	}

	if _, err := s.SaveProgress(ctx, u.ID, 99, 10); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SaveProgress(missing scenario): got %v, want ErrNotFound", err)
	}

	if _, err := s.SaveProgress(ctx, u.ID, 2, 40); err != nil {
		t.Fatalf("SaveProgress(2): %v", err)
	}
	list, err := s.ListProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListProgress len = %d, want 2", len(list))
	}
	if list[0].ScenarioID != 2 || list[1].ScenarioID != 1 {
		t.Errorf("ListProgress not ordered by last attempt: %+v", list)
	}
	if list[1].BestScore != 90 || list[1].AttemptCount != 4 || list[1].ScenarioTitle != "Taking a blood sample" {
		t.Errorf("ListProgress[1] = %+v", list[1])
	}
	if list[0].LastAttemptedAt.IsZero() {
		t.Error("LastAttemptedAt not set")
	}

	empty, err := s.ListProgress(ctx, u.ID+1000)
	if err != nil {
		t.Fatalf("ListProgress(other): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListProgress(other) = %+v, want empty", empty)
	}
}

func testBookmarks(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)
	alice, err := s.CreateUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bob, err := s.CreateUser(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	b1, err := s.AddBookmark(ctx, alice.ID, 10, 1)
	if err != nil {
		t.Fatalf("AddBookmark: %v", err)
	}
	if b1.ID <= 0 || b1.Word != "blood sample" || b1.Meaning != "血液検体" || b1.WordType != "phrase" {
		t.Errorf("AddBookmark = %+v", b1)
	}
	if b1.ExampleSentence != Scenarios[0].SentenceEn || b1.ScenarioTitle != Scenarios[0].Title {
		t.Errorf("AddBookmark scenario fields = %+v", b1)
	}

	if _, err := s.AddBookmark(ctx, alice.ID, 10, 2); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("duplicate AddBookmark: got %v, want ErrDuplicate", err)
	}
	if _, err := s.AddBookmark(ctx, bob.ID, 10, 1); err != nil {
		t.Errorf("same word for another user: %v", err)
	}
	if _, err := s.AddBookmark(ctx, alice.ID, 999, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AddBookmark(missing word): got %v, want ErrNotFound", err)
	}
	if _, err := s.AddBookmark(ctx, alice.ID, 11, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AddBookmark(missing scenario): got %v, want ErrNotFound", err)
	}

	b2, err := s.AddBookmark(ctx, alice.ID, 20, 2)
	if err != nil {
		t.Fatalf("AddBookmark(2): %v", err)
	}

	list, err := s.ListBookmarks(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(list) != 2 || list[0].ID != b2.ID || list[1].ID != b1.ID {
		t.Fatalf("ListBookmarks not newest first: %+v", list)
	}
	if list[0].ScenarioTitle != "Checking blood pressure" || list[0].CreatedAt.IsZero() {
		t.Errorf("ListBookmarks[0] = %+v", list[0])
	}

	if err := s.DeleteBookmark(ctx, bob.ID, b1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteBookmark by non-owner: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteBookmark(ctx, alice.ID, b1.ID); err != nil {
		t.Fatalf("DeleteBookmark: %v", err)
	}
	if err := s.DeleteBookmark(ctx, alice.ID, b1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteBookmark: got %v, want ErrNotFound", err)
	}

	list, err = s.ListBookmarks(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(list) != 1 || list[0].ID != b2.ID {
		t.Errorf("after delete: %+v", list)
	}

	// The word is free to bookmark again after deletion.
	if _, err := s.AddBookmark(ctx, alice.ID, 10, 1); err != nil {
		t.Errorf("re-add after delete: %v", err)
	}
}
