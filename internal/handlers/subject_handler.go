package handlers

import (
	"net/http"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/service/subject"
	"github.com/1282saa/paperone/pkg/api"
	"github.com/1282saa/paperone/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SubjectHandler serves /api/v1/subjects.
type SubjectHandler struct {
	service      *subject.Service
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(service *subject.Service, logger *zap.Logger, errorHandler *errors.ErrorHandler) *SubjectHandler {
	return &SubjectHandler{service: service, logger: logger, errorHandler: errorHandler}
}

// CreateSubjectRequest is the body of POST /subjects.
type CreateSubjectRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=20"`
	Description *string `json:"description,omitempty"`
}

// UpdateSubjectRequest is the body of PATCH /subjects/{subject_id}. Absent
// fields are left unchanged and null clears a nullable field.
type UpdateSubjectRequest struct {
	Name        domain.Optional[string] `json:"name"`
	Color       domain.Optional[string] `json:"color"`
	Description domain.Optional[string] `json:"description"`
}

// Create handles POST /subjects
func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CreateSubjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), uid, subject.CreateInput{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, created)
}

// List handles GET /subjects
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	subjects, err := h.service.List(r.Context(), uid)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []*domain.Subject{}
	}
	api.Success(w, http.StatusOK, subjects)
}

// Get handles GET /subjects/{subject_id}
func (h *SubjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	s, err := h.service.Get(r.Context(), uid, chi.URLParam(r, "subject_id"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, s)
}

// Update handles PATCH /subjects/{subject_id}
func (h *SubjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req UpdateSubjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), uid, chi.URLParam(r, "subject_id"), domain.SubjectUpdate{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, updated)
}

// Delete handles DELETE /subjects/{subject_id}. The subject and all of its
// documents are removed.
func (h *SubjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	subjectID := chi.URLParam(r, "subject_id")
	report, err := h.service.Delete(r.Context(), uid, subjectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.logger.Debug("Subject deleted",
		zap.String("subject_id", subjectID),
		zap.Int("documents_deleted", report.DocumentsDeleted),
	)
	api.NoContent(w)
}
