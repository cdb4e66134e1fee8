package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrWong99/medshadow/internal/respond"
	"github.com/MrWong99/medshadow/pkg/store"
)

type credentials struct {
	Email string `json:"email"`
}

type session struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func validEmail(email string) bool {
	return email != "" && strings.Contains(email, "@")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidEmail, "email address is invalid")
		return
	}

	u, err := s.store.CreateUser(r.Context(), req.Email)
	if errors.Is(err, store.ErrDuplicate) {
		respond.Fail(w, http.StatusConflict, respond.CodeEmailAlreadyExists, "email address is already registered")
		return
	}
	if err != nil {
		s.fail(w, r, "register", err)
		return
	}
	s.metrics.UsersRegistered.Add(r.Context(), 1)

	s.issueSession(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		respond.Fail(w, http.StatusBadRequest, respond.CodeInvalidEmail, "email address is invalid")
		return
	}

	u, err := s.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		respond.Fail(w, http.StatusNotFound, respond.CodeUserNotFound, "no learner with this email address")
		return
	}
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}

	s.issueSession(w, r, http.StatusOK, u)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, status int, u store.User) {
	token, err := s.issuer.Issue(u.ID, u.Email)
	if err != nil {
		s.fail(w, r, "issue token", err)
		return
	}
	respond.OK(w, status, session{UserID: u.ID, Email: u.Email, Token: token})
}
