package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"readinglist/internal/ratelimit"
	"readinglist/internal/util"
	"readinglist/pkg/domain"
	"readinglist/pkg/view"
	"readinglist/services/webapp/internal/app"
	"readinglist/services/webapp/internal/authclient"
	"readinglist/services/webapp/internal/bookclient"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Auth                     *authclient.Client
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
}

// Server exposes the web application's HTTP surface.
type Server struct {
	app           *app.App
	auth          *authclient.Client
	mux           *http.ServeMux
	signupLimiter *ratelimit.FixedWindowLimiter
	loginLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "readinglist:webapp:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:           cfg.App,
		auth:          cfg.Auth,
		mux:           http.NewServeMux(),
		signupLimiter: signupLimiter,
		loginLimiter:  loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("webapp", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// shelf
	s.mux.Handle("/api/shelf", s.authenticated(s.handleShelf))
	s.mux.Handle("/api/shelf/sort", s.authenticated(s.handleShelfSort))
	s.mux.Handle("/api/shelf/refresh", s.authenticated(s.handleShelfRefresh))

	// books
	s.mux.Handle("/api/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/api/books/", s.authenticated(s.handleBookByID))

	// preferences
	s.mux.Handle("/api/preferences", s.authenticated(s.handlePreferences))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User, string)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "webapp.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.auth.Me(token)
		if err != nil {
			s.audit(r, "webapp.authorize", "fail", "reason", "auth_me_failed")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user, token)
	})
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "webapp.signup", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "webapp.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.auth.SignUp(req.Email, req.Password)
	if err != nil {
		s.audit(r, "webapp.signup", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "webapp.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "webapp.login", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "webapp.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "webapp.login", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "webapp.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "webapp.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.auth.Logout(token); err != nil {
		s.audit(r, "webapp.logout", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "webapp.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// shelf handlers

// GET /api/shelf. Optional query params adjust the per-user view state:
// status sets the filter, sort+dir set an explicit sort.
func (s *Server) handleShelf(w http.ResponseWriter, r *http.Request, user domain.User, token string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		if !validFilter(raw) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		s.app.Views.SetFilter(user.ID, raw)
	}
	if raw := q.Get("sort"); raw != "" {
		field, ok := view.ParseSortField(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid sort field")
			return
		}
		dir := view.Ascending
		if rawDir := q.Get("dir"); rawDir != "" {
			parsed, ok := view.ParseSortDirection(rawDir)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid sort direction")
				return
			}
			dir = parsed
		}
		s.app.Views.SetSort(user.ID, field, dir)
	}
	writeJSON(w, http.StatusOK, s.app.Shelf(token, user.ID))
}

// POST /api/shelf/sort applies column-header click semantics.
func (s *Server) handleShelfSort(w http.ResponseWriter, r *http.Request, user domain.User, token string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sortRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	field, ok := view.ParseSortField(req.Field)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sort field")
		return
	}
	s.app.Views.ToggleSort(user.ID, field)
	writeJSON(w, http.StatusOK, s.app.Shelf(token, user.ID))
}

// POST /api/shelf/refresh forces a reload from the books service.
func (s *Server) handleShelfRefresh(w http.ResponseWriter, r *http.Request, user domain.User, token string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Shelf(token, user.ID))
}

// book handlers
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User, token string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.SaveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.ID = ""
	if _, err := s.app.Collection.Save(token, user.ID, req); err != nil {
		writeSaveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.app.ShelfFromSnapshot(user.ID))
}

// /api/books/{id} and /api/books/{id}/confirm-delete
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User, token string) {
	path := strings.TrimPrefix(r.URL.Path, "/api/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 && parts[1] == "confirm-delete" {
		s.handleConfirmDelete(w, r, user, id)
		return
	}
	if len(parts) == 2 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req app.SaveRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.ID = id
		if _, err := s.app.Collection.Save(token, user.ID, req); err != nil {
			writeSaveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.app.ShelfFromSnapshot(user.ID))
	case http.MethodDelete:
		s.handleDeleteBook(w, r, user, token, id)
	default:
		methodNotAllowed(w)
	}
}

// POST /api/books/{id}/confirm-delete issues the token the delete must echo.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	confirmToken, err := s.app.Confirm.Issue(user.ID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"confirmToken": confirmToken})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, user domain.User, token, id string) {
	var req deleteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	confirmed, err := s.app.Confirm.Consume(user.ID, id, req.ConfirmToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !confirmed {
		s.audit(r, "webapp.book.delete", "fail", "reason", "not_confirmed", "user_id", user.ID)
		writeError(w, http.StatusConflict, app.ErrConfirmationRequired.Error())
		return
	}
	if _, err := s.app.Collection.Remove(token, user.ID, id); err != nil {
		writeSaveError(w, err)
		return
	}
	s.audit(r, "webapp.book.delete", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, s.app.ShelfFromSnapshot(user.ID))
}

// PUT /api/preferences stores presentation settings.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request, user domain.User, _ string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.app.Prefs.Get(user.ID))
	case http.MethodPut:
		var req app.Preferences
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.ViewMode != "" && req.ViewMode != "grid" && req.ViewMode != "list" {
			writeError(w, http.StatusBadRequest, "invalid view mode")
			return
		}
		if err := s.app.Prefs.Set(user.ID, req); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, s.app.Prefs.Get(user.ID))
	default:
		methodNotAllowed(w)
	}
}

func validFilter(raw string) bool {
	if raw == view.FilterAll {
		return true
	}
	_, ok := domain.ParseBookStatus(raw)
	return ok
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type sortRequest struct {
	Field string `json:"field"`
}

type deleteRequest struct {
	ConfirmToken string `json:"confirmToken"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForWebapp(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForWebapp(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "title is required":
		return "SHELF_TITLE_REQUIRED"
	case message == "invalid status":
		return "SHELF_INVALID_STATUS"
	case message == "invalid status filter":
		return "SHELF_INVALID_FILTER"
	case message == "invalid sort field", message == "invalid sort direction":
		return "SHELF_INVALID_SORT"
	case message == "invalid view mode":
		return "SHELF_INVALID_VIEW_MODE"
	case message == "delete confirmation required":
		return "SHELF_DELETE_NOT_CONFIRMED"
	case message == "invalid json body":
		return "SHELF_INVALID_REQUEST"
	case strings.Contains(message, "too many"):
		return "RATE_LIMITED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	}

	switch status {
	case http.StatusBadRequest:
		return "SHELF_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "SHELF_FORBIDDEN"
	case http.StatusNotFound:
		return "SHELF_NOT_FOUND"
	case http.StatusConflict:
		return "SHELF_DELETE_NOT_CONFIRMED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

// writeSaveError maps collection write failures onto HTTP statuses.
func writeSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrTitleRequired), errors.Is(err, app.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var apiErr *bookclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "books service unavailable")
}

func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "auth service unavailable")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
