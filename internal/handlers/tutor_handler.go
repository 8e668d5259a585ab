package handlers

import (
	"net/http"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/service/tutor"
	"github.com/1282saa/paperone/pkg/api"
	"github.com/1282saa/paperone/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TutorHandler serves /api/v1/ai/tutor.
type TutorHandler struct {
	service      *tutor.Service
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewTutorHandler creates a new tutor handler
func NewTutorHandler(service *tutor.Service, logger *zap.Logger, errorHandler *errors.ErrorHandler) *TutorHandler {
	return &TutorHandler{service: service, logger: logger, errorHandler: errorHandler}
}

// TutorRequest is the body of POST /ai/tutor.
type TutorRequest struct {
	Message        string  `json:"message" validate:"required"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// Chat handles POST /ai/tutor
func (h *TutorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	var req TutorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	in := tutor.ChatInput{Message: req.Message}
	if req.ConversationID != nil {
		in.ConversationID = *req.ConversationID
	}
	reply, err := h.service.Chat(r.Context(), uid, in)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, reply)
}

// ListConversations handles GET /ai/tutor/conversations
func (h *TutorHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	conversations, err := h.service.Conversations(r.Context(), uid)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, map[string][]domain.ConversationSummary{"conversations": conversations})
}

// GetConversation handles GET /ai/tutor/conversations/{conversation_id}
func (h *TutorHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	messages, err := h.service.Conversation(r.Context(), uid, chi.URLParam(r, "conversation_id"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if messages == nil {
		messages = []*domain.TutorMessage{}
	}
	api.Success(w, http.StatusOK, map[string][]*domain.TutorMessage{"messages": messages})
}
