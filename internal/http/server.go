package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semaphore/gradebook/internal/auth"
	"semaphore/gradebook/internal/config"
	"semaphore/gradebook/internal/crypto"
	"semaphore/gradebook/internal/gradebook"
	"semaphore/gradebook/internal/metrics"
	"semaphore/gradebook/internal/model"
	"semaphore/gradebook/internal/session"
)

type Server struct {
	cfg      config.Config
	service  *gradebook.Service
	sessions *session.Manager
	metrics  *metrics.Metrics
	logger   *slog.Logger
	validate *validator.Validate
}

func NewServer(cfg config.Config, service *gradebook.Service, sessions *session.Manager, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; bcrypt limits bytes
	_ = validate.RegisterValidation("secret", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= crypto.MaxPasswordBytes
	})
	return validate
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)
	r.Get("/create_account", s.handleCreateAccountForm)
	r.Post("/create_account", s.handleCreateAccount)
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)

	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Get("/admin_dashboard", s.handleAdminDashboard)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(model.RoleAdmin))
		r.Get("/change_user_role/{accountId}", s.handleGetAccountRole)
		r.Post("/change_user_role/{accountId}", s.handleChangeUserRole)
	})

	r.With(s.authMiddleware, s.requireRole(model.RoleTeacher)).Get("/teacher_dashboard", s.handleTeacherDashboard)
	r.Route("/teacher", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(model.RoleTeacher))
		r.Get("/change_grade/{studentId}/{className}", s.handleGetGrade)
		r.Post("/change_grade/{studentId}/{className}", s.handleChangeGrade)
	})

	r.With(s.authMiddleware, s.requireRole(model.RoleStudent)).Get("/student_dashboard", s.handleStudentDashboard)

	return r
}

// authMiddleware resolves the caller from a bearer token or, failing that,
// from the session cookie.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r.Header.Get("Authorization")); token != "" {
			claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			identity, err := claims.Identity()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
			return
		}

		identity, err := s.sessions.Identity(r)
		if errors.Is(err, session.ErrNotFound) {
			s.deny(w, r, http.StatusUnauthorized, "missing_session")
			return
		}
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

func (s *Server) requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok || identity.Role != role {
				s.deny(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// deny sends browsers back to the login page and API clients an error code.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, status int, code string) {
	if wantsJSON(r) {
		writeError(w, status, code)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gradebook.ErrForbidden):
		s.endStaleSession(w, r)
		s.deny(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, gradebook.ErrAuthFailure):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, gradebook.ErrClassMismatch):
		writeError(w, http.StatusForbidden, "class_mismatch")
	case errors.Is(err, gradebook.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, gradebook.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "account_exists")
	case errors.Is(err, gradebook.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role")
	case errors.Is(err, gradebook.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "invalid_score")
	default:
		s.serverError(w, r, err)
	}
}

// endStaleSession drops a cookie session whose stored account no longer holds
// the role it was opened with, so /login stops redirecting back to it.
func (s *Server) endStaleSession(w http.ResponseWriter, r *http.Request) {
	if bearerToken(r.Header.Get("Authorization")) != "" {
		return
	}
	if err := s.sessions.End(w, r); err != nil {
		s.logger.Warn("end stale session", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "server_error")
}

type identityKey struct{}

func withIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func identityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	return identity, ok && !identity.IsZero()
}
