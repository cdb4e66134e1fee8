package api

import (
	"errors"
	"math"
	"net/http"

	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/store"
)

type saveProgressRequest struct {
	ScenarioID *int64   `json:"scenarioId"`
	Score      *float64 `json:"score"`
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListProgress(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, "list progress", err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"progress": list})
}

// handleSaveProgress records a score computed by the client. Typed and
// recorded attempts scored on the server go through /evaluate instead.
func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req saveProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ScenarioID == nil || *req.ScenarioID == 0 || req.Score == nil {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "scenarioId and score are required")
		return
	}
	score := *req.Score
	if score < 0 || score > 100 || score != math.Trunc(score) {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidScore, "score must be an integer between 0 and 100")
		return
	}

	upd, err := s.store.SaveProgress(r.Context(), userID(r), *req.ScenarioID, int(score))
	if errors.Is(err, store.ErrNotFound) {
		respond.Fail(w, http.StatusNotFound, respond.CodeScenarioNotFound, "scenario not found")
		return
	}
	if err != nil {
		s.fail(w, r, "save progress", err)
		return
	}
	respond.OK(w, http.StatusOK, upd)
}
