package handlers

import (
	"net/http"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/service/document"
	"github.com/1282saa/paperone/pkg/api"
	"github.com/1282saa/paperone/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DocumentHandler serves the document, review and AI correction routes.
type DocumentHandler struct {
	service      *document.Service
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(service *document.Service, logger *zap.Logger, errorHandler *errors.ErrorHandler) *DocumentHandler {
	return &DocumentHandler{service: service, logger: logger, errorHandler: errorHandler}
}

// CreateDocumentRequest is the body of POST /subjects/documents.
type CreateDocumentRequest struct {
	SubjectID        string  `json:"subject_id" validate:"required"`
	Title            string  `json:"title" validate:"required,min=1,max=200"`
	ExtractedText    *string `json:"extracted_text,omitempty"`
	OriginalFilename *string `json:"original_filename,omitempty"`
	ImageURL         *string `json:"image_url,omitempty"`
	ThumbnailURL     *string `json:"thumbnail_url,omitempty"`
	FileSize         *int64  `json:"file_size,omitempty" validate:"omitempty,gte=0"`
	Pages            *int    `json:"pages,omitempty" validate:"omitempty,gte=1"`
}

// UpdateDocumentRequest is the body of PATCH /subjects/documents/{document_id}.
// Absent fields are left unchanged and null clears a nullable field.
type UpdateDocumentRequest struct {
	Title         domain.Optional[string] `json:"title"`
	ExtractedText domain.Optional[string] `json:"extracted_text"`
	Pages         domain.Optional[int]    `json:"pages"`
	ImageURL      domain.Optional[string] `json:"image_url"`
	ThumbnailURL  domain.Optional[string] `json:"thumbnail_url"`
}

// CorrectionRequest is the body of both AI correction routes.
type CorrectionRequest struct {
	OriginalText string `json:"original_text"`
}

// Create handles POST /subjects/documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CreateDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	doc, err := h.service.Create(r.Context(), uid, domain.NewDocument{
		SubjectID:        req.SubjectID,
		Title:            req.Title,
		ExtractedText:    req.ExtractedText,
		OriginalFilename: req.OriginalFilename,
		ImageURL:         req.ImageURL,
		ThumbnailURL:     req.ThumbnailURL,
		FileSize:         req.FileSize,
		Pages:            req.Pages,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, doc)
}

// ListBySubject handles GET /subjects/{subject_id}/documents
func (h *DocumentHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	docs, err := h.service.ListBySubject(r.Context(), uid, chi.URLParam(r, "subject_id"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	api.Success(w, http.StatusOK, docs)
}

// Get handles GET /subjects/documents/{document_id}. A subject_id query
// parameter turns the lookup into a direct key read.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	doc, err := h.service.Get(r.Context(), uid, chi.URLParam(r, "document_id"), r.URL.Query().Get("subject_id"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, doc)
}

// Update handles PATCH /subjects/documents/{document_id}
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req UpdateDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	doc, err := h.service.Update(r.Context(), uid, chi.URLParam(r, "document_id"), domain.DocumentUpdate{
		Title:         req.Title,
		ExtractedText: req.ExtractedText,
		Pages:         req.Pages,
		ImageURL:      req.ImageURL,
		ThumbnailURL:  req.ThumbnailURL,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, doc)
}

// Delete handles DELETE /subjects/documents/{document_id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), uid, chi.URLParam(r, "document_id")); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.NoContent(w)
}

// ToggleReview handles PATCH /subjects/documents/{document_id}/review
func (h *DocumentHandler) ToggleReview(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	doc, err := h.service.ToggleReview(r.Context(), uid, chi.URLParam(r, "document_id"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, doc)
}

// DueReviews handles GET /subjects/reviews
func (h *DocumentHandler) DueReviews(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	reviews, err := h.service.DueReviews(r.Context(), uid)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, reviews)
}

// Correct handles POST /subjects/documents/{document_id}/ai-correction
func (h *DocumentHandler) Correct(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CorrectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	result, err := h.service.Correct(r.Context(), uid, chi.URLParam(r, "document_id"), req.OriginalText)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

// CorrectStream handles POST /subjects/documents/{document_id}/ai-correction-stream.
// Errors found before streaming starts are ordinary JSON errors; later
// failures arrive as a text frame from the service.
func (h *DocumentHandler) CorrectStream(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req CorrectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	documentID := chi.URLParam(r, "document_id")
	fragments, err := h.service.CorrectStream(r.Context(), uid, documentID, req.OriginalText)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := sse.relay(r.Context(), fragments); err != nil {
		h.logger.Info("Correction stream ended early",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}
