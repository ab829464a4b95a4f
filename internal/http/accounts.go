package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"semaphore/gradebook/internal/auth"
	"semaphore/gradebook/internal/gradebook"
	"semaphore/gradebook/internal/metrics"
	"semaphore/gradebook/internal/model"
)

type credentialsRequest struct {
	GivenName  string `json:"given_name" validate:"required,max=100"`
	FamilyName string `json:"family_name" validate:"required,max=100"`
	Secret     string `json:"secret" validate:"required,secret"`
}

func (c *credentialsRequest) fromForm(form url.Values) {
	c.GivenName = form.Get("given_name")
	c.FamilyName = form.Get("family_name")
	c.Secret = form.Get("secret")
}

func (c *credentialsRequest) normalize() {
	c.GivenName = strings.TrimSpace(c.GivenName)
	c.FamilyName = strings.TrimSpace(c.FamilyName)
}

type formDescription struct {
	Action string   `json:"action"`
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

type loginResponse struct {
	Redirect    string         `json:"redirect"`
	AccessToken string         `json:"accessToken"`
	User        model.Identity `json:"user"`
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if identity, err := s.sessions.Identity(r); err == nil {
		http.Redirect(w, r, identity.Role.DashboardPath(), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, formDescription{
		Action: "/login",
		Method: http.MethodPost,
		Fields: []string{"given_name", "family_name", "secret"},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.bind(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	req.normalize()

	identity, err := s.service.Authenticate(r.Context(), req.GivenName, req.FamilyName, req.Secret)
	if err != nil {
		if errors.Is(err, gradebook.ErrAuthFailure) {
			s.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		s.serverError(w, r, err)
		return
	}

	if err := s.sessions.Start(w, r, identity); err != nil {
		s.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		s.serverError(w, r, err)
		return
	}
	s.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info("login", "account_id", identity.AccountID, "role", identity.Role.String())

	redirect := identity.Role.DashboardPath()
	if !wantsJSON(r) {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Redirect:    redirect,
		AccessToken: accessToken,
		User:        identity,
	})
}

func (s *Server) handleCreateAccountForm(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, formDescription{
		Action: "/create_account",
		Method: http.MethodPost,
		Fields: []string{"given_name", "family_name", "secret"},
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := s.bind(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.normalize()
	if req.GivenName == "" || req.FamilyName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	account, err := s.service.CreateStudent(r.Context(), req.GivenName, req.FamilyName, req.Secret)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.AccountsCreated.Inc()

	if !wantsJSON(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// handleLogout ends the cookie session. Bearer tokens stay valid until they
// expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(w, r); err != nil {
		s.serverError(w, r, err)
		return
	}
	if !wantsJSON(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
