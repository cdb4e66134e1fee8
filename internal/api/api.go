// Package api implements the /api HTTP endpoints of medshadow.
//
// Every response uses the [respond] envelope. Routes other than
// /api/auth/* require a bearer token issued by [auth.Issuer].
//
//	POST   /api/auth/register
//	POST   /api/auth/login
//	GET    /api/scenarios
//	GET    /api/scenarios/{id}
//	GET    /api/scenarios/{id}/audio
//	POST   /api/scenarios/{id}/evaluate
//	POST   /api/scenarios/{id}/evaluate/audio
//	POST   /api/scoring/preview
//	GET    /api/progress
//	POST   /api/progress
//	GET    /api/bookmarks
//	POST   /api/bookmarks
//	DELETE /api/bookmarks/{id}
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/MrWong99/medshadow/internal/auth"
	"github.com/MrWong99/medshadow/internal/evaluation"
	"github.com/MrWong99/medshadow/internal/observe"
	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/store"
)

const (
	// maxJSONBytes bounds JSON request bodies.
	maxJSONBytes = 1 << 20

	// DefaultMaxUploadBytes bounds recorded attempts when no limit is set.
	DefaultMaxUploadBytes = 10 << 20
)

// Server holds the dependencies of the /api handlers.
type Server struct {
	store     store.Store
	issuer    *auth.Issuer
	eval      *evaluation.Service
	metrics   *observe.Metrics
	maxUpload int64
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMaxUploadBytes bounds the size of uploaded recordings.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New returns a Server.
func New(st store.Store, issuer *auth.Issuer, eval *evaluation.Service, opts ...Option) *Server {
	s := &Server{
		store:     st,
		issuer:    issuer,
		eval:      eval,
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the /api routes to mux. Unmatched /api paths answer with a
// NOT_FOUND envelope.
func (s *Server) Register(mux *http.ServeMux) {
	authed := auth.Middleware(s.issuer)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	handle("GET /api/scenarios", s.handleListScenarios)
	handle("GET /api/scenarios/{id}", s.handleGetScenario)
	handle("GET /api/scenarios/{id}/audio", s.handleScenarioAudio)
	handle("POST /api/scenarios/{id}/evaluate", s.handleEvaluate)
	handle("POST /api/scenarios/{id}/evaluate/audio", s.handleEvaluateAudio)
	handle("POST /api/scoring/preview", s.handlePreview)

	handle("GET /api/progress", s.handleListProgress)
	handle("POST /api/progress", s.handleSaveProgress)

	handle("GET /api/bookmarks", s.handleListBookmarks)
	handle("POST /api/bookmarks", s.handleAddBookmark)
	handle("DELETE /api/bookmarks/{id}", s.handleDeleteBookmark)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		respond.Fail(w, http.StatusNotFound, respond.CodeNotFound, "no such endpoint: "+r.Method+" "+r.URL.Path)
	})
}

// userID returns the authenticated learner. Handlers behind the auth
// middleware always have claims.
func userID(r *http.Request) int64 {
	c, _ := auth.ClaimsFromContext(r.Context())
	if c == nil {
		return 0
	}
	return c.UserID
}

// pathID parses the {id} wildcard. Non-numeric and non-positive ids are
// rejected.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeJSON reads a single JSON object from the request body into dst.
// Bodies that are not valid UTF-8 are rejected before decoding, since
// encoding/json would silently replace the offending bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err == nil && !utf8.Valid(body) {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "request body is not valid UTF-8")
		return false
	}
	if err == nil {
		err = json.NewDecoder(bytes.NewReader(body)).Decode(dst)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respond.Fail(w, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "request body is required")
		default:
			respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidInput, "request body must be a JSON object")
		}
		return false
	}
	return true
}

// fail maps errors no handler treats specifically: uniqueness violations
// become 409 DUPLICATE_ENTRY, everything else a logged 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, store.ErrDuplicate) {
		respond.Fail(w, http.StatusConflict, respond.CodeDuplicateEntry, "entry already exists")
		return
	}
	observe.Logger(r.Context()).Error(op+" failed", "err", err, "path", r.URL.Path)
	respond.Fail(w, http.StatusInternalServerError, respond.CodeServerError, "internal server error")
}
