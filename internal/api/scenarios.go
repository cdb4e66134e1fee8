package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/MrWong99/medshadow/internal/evaluation"
	"github.com/MrWong99/medshadow/internal/observe"
	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/audio"
	"github.com/MrWong99/medshadow/pkg/provider/stt"
	"github.com/MrWong99/medshadow/pkg/scoring"
	"github.com/MrWong99/medshadow/pkg/store"
)

// uploadField is the multipart form field carrying a recording.
const uploadField = "audio"

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListScenarios(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, "list scenarios", err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"scenarios": list})
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidID, "invalid scenario id")
		return
	}
	sc, err := s.store.GetScenario(r.Context(), id)
	if err != nil {
		s.scenarioError(w, r, "get scenario", err)
		return
	}
	respond.OK(w, http.StatusOK, sc)
}

func (s *Server) handleScenarioAudio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidID, "invalid scenario id")
		return
	}
	clip, err := s.eval.Synthesize(r.Context(), id)
	if err != nil {
		s.scenarioError(w, r, "synthesize scenario", err)
		return
	}

	wav := audio.EncodeWAV(clip)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

type evaluateRequest struct {
	Transcript *string `json:"transcript"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidID, "invalid scenario id")
		return
	}
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Transcript == nil {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "transcript is required")
		return
	}

	rep, err := s.eval.Evaluate(r.Context(), userID(r), id, *req.Transcript)
	if err != nil {
		s.scenarioError(w, r, "evaluate", err)
		return
	}
	respond.OK(w, http.StatusOK, rep)
}

func (s *Server) handleEvaluateAudio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidID, "invalid scenario id")
		return
	}
	if recognition, _ := s.eval.SpeechEnabled(); !recognition {
		respond.Fail(w, http.StatusServiceUnavailable, respond.CodeSpeechUnavailable, "speech recognition is not configured")
		return
	}

	wav, err := s.readUpload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(w, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "recording is too large")
			return
		}
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidAudio, "could not read recording: "+err.Error())
		return
	}
	clip, err := audio.ParseWAV(wav)
	if err != nil {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidAudio, "recording must be a 16-bit PCM WAV file")
		return
	}

	rep, err := s.eval.EvaluateAudio(r.Context(), userID(r), id, clip)
	if err != nil {
		s.scenarioError(w, r, "evaluate audio", err)
		return
	}
	respond.OK(w, http.StatusOK, rep)
}

// readUpload returns the WAV bytes of a recording sent either as the raw
// request body or as the "audio" field of a multipart form.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	f, _, err := r.FormFile(uploadField)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type previewRequest struct {
	Reference  string  `json:"reference"`
	Transcript *string `json:"transcript"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reference == "" || req.Transcript == nil {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "reference and transcript are required")
		return
	}
	a, err := s.eval.Assess(req.Reference, *req.Transcript)
	if err != nil {
		s.scenarioError(w, r, "preview", err)
		return
	}
	respond.OK(w, http.StatusOK, a)
}

// scenarioError maps the errors of scenario-scoped operations.
func (s *Server) scenarioError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond.Fail(w, http.StatusNotFound, respond.CodeScenarioNotFound, "scenario not found")
	case errors.Is(err, scoring.ErrInvalidInput):
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "text must be valid UTF-8")
	case errors.Is(err, evaluation.ErrSpeechUnavailable):
		respond.Fail(w, http.StatusServiceUnavailable, respond.CodeSpeechUnavailable, "speech provider is not configured")
	case errors.Is(err, stt.ErrNoSpeech):
		respond.Fail(w, http.StatusUnprocessableEntity, respond.CodeNoSpeech, "no speech was recognised in the recording")
	case errors.Is(err, audio.ErrUnsupportedFormat):
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidAudio, "unsupported recording format")
	case errors.Is(err, evaluation.ErrProviderFailed):
		observe.Logger(r.Context()).Warn(op+" failed", "err", err)
		respond.Fail(w, http.StatusBadGateway, respond.CodeSpeechProvider, "speech provider failed")
	default:
		s.fail(w, r, op, err)
	}
}
