package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"semaphore/gradebook/internal/metrics"
	"semaphore/gradebook/internal/model"
)

type roleChangeRequest struct {
	NewRole  string  `json:"new_role" validate:"required"`
	NewClass *string `json:"new_class" validate:"omitempty,max=100"`
}

func (c *roleChangeRequest) fromForm(form url.Values) {
	c.NewRole = form.Get("new_role")
	c.NewClass = optionalFormValue(form, "new_class")
}

type gradeChangeRequest struct {
	NewScore string `json:"new_score" validate:"required"`
}

func (c *gradeChangeRequest) fromForm(form url.Values) {
	c.NewScore = form.Get("new_score")
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	view, err := s.service.AdminDashboard(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTeacherDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	view, err := s.service.TeacherDashboard(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	view, err := s.service.StudentDashboard(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetAccountRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	account, err := s.service.AccountForAdmin(r.Context(), identity, accountID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleChangeUserRole(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	accountID, err := uuid.Parse(chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	var req roleChangeRequest
	if err := s.bind(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	role, err := model.ParseRole(req.NewRole)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	account, err := s.service.SetRole(r.Context(), identity, accountID, role, req.NewClass)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.RoleChanges.WithLabelValues(role.String()).Inc()

	if !wantsJSON(r) {
		http.Redirect(w, r, "/admin_dashboard", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	studentID, err := uuid.Parse(chi.URLParam(r, "studentId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	grade, err := s.service.GradeForTeacher(r.Context(), identity, studentID, chi.URLParam(r, "className"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

func (s *Server) handleChangeGrade(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	studentID, err := uuid.Parse(chi.URLParam(r, "studentId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	var req gradeChangeRequest
	if err := s.bind(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	grade, err := s.service.SetGrade(r.Context(), identity, studentID, chi.URLParam(r, "className"), req.NewScore)
	if err != nil {
		s.metrics.GradeUpdates.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.GradeUpdates.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if !wantsJSON(r) {
		http.Redirect(w, r, "/teacher_dashboard", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, grade)
}
