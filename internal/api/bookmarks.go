package api

import (
	"errors"
	"net/http"

	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/store"
)

type addBookmarkRequest struct {
	WordID     int64 `json:"wordId"`
	ScenarioID int64 `json:"scenarioId"`
}

type deletedBookmark struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListBookmarks(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, "list bookmarks", err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"bookmarks": list})
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req addBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.WordID == 0 || req.ScenarioID == 0 {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "wordId and scenarioId are required")
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetWord(ctx, req.WordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respond.Fail(w, http.StatusNotFound, respond.CodeWordNotFound, "word not found")
			return
		}
		s.fail(w, r, "get word", err)
		return
	}
	if _, err := s.store.GetScenario(ctx, req.ScenarioID); err != nil {
		s.scenarioError(w, r, "get scenario", err)
		return
	}

	bm, err := s.store.AddBookmark(ctx, userID(r), req.WordID, req.ScenarioID)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		respond.Fail(w, http.StatusConflict, respond.CodeAlreadyBookmarked, "word is already bookmarked")
		return
	case errors.Is(err, store.ErrNotFound):
		// Lost a race with a catalog reseed.
		respond.Fail(w, http.StatusNotFound, respond.CodeWordNotFound, "word not found")
		return
	case err != nil:
		s.fail(w, r, "add bookmark", err)
		return
	}
	s.metrics.BookmarksAdded.Add(ctx, 1)
	respond.OK(w, http.StatusCreated, bm)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidID, "invalid bookmark id")
		return
	}
	err := s.store.DeleteBookmark(r.Context(), userID(r), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.Fail(w, http.StatusNotFound, respond.CodeBookmarkNotFound, "bookmark not found")
		return
	}
	if err != nil {
		s.fail(w, r, "delete bookmark", err)
		return
	}
	respond.OK(w, http.StatusOK, deletedBookmark{ID: id, Deleted: true})
}
