// Package tutor runs the AI tutor: short multi-turn conversations kept per
// user and replayed to the model as context.
package tutor

import (
	"context"
	"strings"
	"time"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/generation"
	"github.com/1282saa/paperone/internal/observability"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// HistoryLimit is how many earlier messages are replayed to the model.
	HistoryLimit = 10
	// DetailLimit caps the messages returned for one conversation.
	DetailLimit = 100

	chatMaxTokens   = 1000
	chatTemperature = 0.7

	modeTutor = "tutor"
)

// Repository is the conversation persistence the service needs.
type Repository interface {
	Save(ctx context.Context, m *domain.TutorMessage) error
	History(ctx context.Context, userID, conversationID string, limit int) ([]*domain.TutorMessage, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.TutorMessage, error)
}

// ChatInput is one user message. An empty ConversationID starts a new
// conversation.
type ChatInput struct {
	Message        string
	ConversationID string
}

// Service implements the tutor operations.
type Service struct {
	conversations Repository
	chatter       generation.Chatter
	metrics       *observability.Collector
	tracer        trace.Tracer
	logger        *zap.Logger

	now   func() time.Time
	newID func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a tutor service. metrics may be nil.
func NewService(conversations Repository, chatter generation.Chatter, metrics *observability.Collector, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		conversations: conversations,
		chatter:       chatter,
		metrics:       metrics,
		tracer:        observability.Tracer(),
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers one message. The last HistoryLimit messages of the
// conversation go to the model as context. Both turns are stored only after
// the model answered, so a failed call leaves the conversation unchanged.
func (s *Service) Chat(ctx context.Context, userID string, in ChatInput) (*domain.TutorReply, error) {
	if err := domain.ValidateTutorMessage(in.Message); err != nil {
		return nil, err
	}
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = s.newID()
	}

	ctx, span := s.tracer.Start(ctx, "tutor.Chat", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	history, err := s.conversations.History(ctx, userID, conversationID, HistoryLimit)
	if err != nil {
		span.RecordError(err)
		return nil, appErrors.Wrap(err, "failed to load conversation history")
	}

	req := generation.ChatRequest{
		System:      generation.TutorSystemPrompt,
		Messages:    make([]generation.Message, 0, len(history)+1),
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	}
	for _, m := range history {
		req.Messages = append(req.Messages, generation.Message{Role: m.Role, Content: m.Message})
	}
	req.Messages = append(req.Messages, generation.Message{Role: domain.RoleUser, Content: in.Message})

	start := time.Now()
	reply, err := s.chatter.Chat(ctx, req)
	s.metrics.ObserveGeneration(modeTutor, start, err)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Tutor request failed",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		if appErrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, appErrors.NewGeneration("AI tutor request failed", err)
	}

	askedAt := s.now().UTC()
	answeredAt := s.now().UTC()
	if !answeredAt.After(askedAt) {
		answeredAt = askedAt.Add(time.Microsecond)
	}
	tokens := reply.TotalTokens()

	turns := []*domain.TutorMessage{
		{
			MessageID:      s.newID(),
			ConversationID: conversationID,
			UserID:         userID,
			Role:           domain.RoleUser,
			Message:        in.Message,
			CreatedAt:      askedAt,
		},
		{
			MessageID:      s.newID(),
			ConversationID: conversationID,
			UserID:         userID,
			Role:           domain.RoleAssistant,
			Message:        reply.Text,
			TokenCount:     &tokens,
			CreatedAt:      answeredAt,
		},
	}
	for _, m := range turns {
		if err := s.conversations.Save(ctx, m); err != nil {
			span.RecordError(err)
			return nil, appErrors.Wrap(err, "failed to store tutor message")
		}
	}

	s.logger.Info("Tutor replied",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
		zap.Int("history", len(history)),
		zap.Int("token_count", tokens),
	)
	return &domain.TutorReply{Message: reply.Text, ConversationID: conversationID}, nil
}

// Conversations lists the user's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "tutor.Conversations", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	msgs, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return domain.SummarizeConversations(msgs), nil
}

// Conversation returns up to DetailLimit messages of one conversation,
// oldest first. An unknown conversation yields an empty list.
func (s *Service) Conversation(ctx context.Context, userID, conversationID string) ([]*domain.TutorMessage, error) {
	ctx, span := s.tracer.Start(ctx, "tutor.Conversation", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	msgs, err := s.conversations.History(ctx, userID, conversationID, DetailLimit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return msgs, nil
}
