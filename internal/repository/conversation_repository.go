package repository

import (
	"context"

	"github.com/1282saa/paperone/internal/domain"
	"github.com/1282saa/paperone/internal/store"
	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

const messageSortPrefix = "MSG#"

// ConversationsTable describes the tutor conversations table and its user
// index.
func ConversationsTable(name, userIndex string) store.TableDefinition {
	return store.TableDefinition{
		Name: name,
		Indexes: []store.IndexDefinition{
			{Name: userIndex, PartitionAttr: attrUserID, SortAttr: attrCreatedAt},
		},
	}
}

func conversationPartition(userID, conversationID string) string {
	return "USER#" + userID + "#CONV#" + conversationID
}

// Sort keys start with the fixed-width timestamp so a partition reads in
// chronological order.
func messageKey(m *domain.TutorMessage) store.Key {
	return store.Key{
		PK: conversationPartition(m.UserID, m.ConversationID),
		SK: messageSortPrefix + formatTime(m.CreatedAt) + "#" + m.MessageID,
	}
}

type tutorMessageRecord struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"entity_type"`
	MessageID      string `dynamodbav:"message_id"`
	ConversationID string `dynamodbav:"conversation_id"`
	UserID         string `dynamodbav:"user_id"`
	Role           string `dynamodbav:"role"`
	Message        string `dynamodbav:"message"`
	TokenCount     *int   `dynamodbav:"token_count,omitempty"`
	CreatedAt      string `dynamodbav:"created_at"`
}

// EncodeTutorMessage converts a tutor message into a store item.
func EncodeTutorMessage(m *domain.TutorMessage) (store.Item, error) {
	key := messageKey(m)
	item, err := attributevalue.MarshalMap(tutorMessageRecord{
		PK:             key.PK,
		SK:             key.SK,
		EntityType:     domain.EntityTypeTutorMessage,
		MessageID:      m.MessageID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Role:           m.Role,
		Message:        m.Message,
		TokenCount:     m.TokenCount,
		CreatedAt:      formatTime(m.CreatedAt),
	})
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode tutor message", err)
	}
	return item, nil
}

// DecodeTutorMessage validates item against the tutor message schema.
func DecodeTutorMessage(item store.Item) (*domain.TutorMessage, error) {
	var rec tutorMessageRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, schemaError("tutor message", err.Error())
	}
	if rec.EntityType != "" && rec.EntityType != domain.EntityTypeTutorMessage {
		return nil, schemaError("tutor message", "entity_type is "+rec.EntityType)
	}
	if rec.ConversationID == "" || rec.UserID == "" {
		return nil, schemaError("tutor message", "conversation_id and user_id are required")
	}
	if rec.Role != domain.RoleUser && rec.Role != domain.RoleAssistant {
		return nil, schemaError("tutor message", "unknown role "+rec.Role)
	}
	createdAt, err := parseTime(rec.CreatedAt)
	if err != nil {
		return nil, schemaError("tutor message", "created_at: "+err.Error())
	}
	return &domain.TutorMessage{
		MessageID:      rec.MessageID,
		ConversationID: rec.ConversationID,
		UserID:         rec.UserID,
		Role:           rec.Role,
		Message:        rec.Message,
		TokenCount:     rec.TokenCount,
		CreatedAt:      createdAt,
	}, nil
}

// ConversationRepository stores tutor messages under
// USER#{user_id}#CONV#{conversation_id} / MSG#{created_at}#{message_id}.
type ConversationRepository struct {
	store     store.Store
	userIndex string
	logger    *zap.Logger
}

// NewConversationRepository creates a repository over a conversations table
// store.
func NewConversationRepository(s store.Store, userIndex string, logger *zap.Logger) *ConversationRepository {
	if userIndex == "" {
		userIndex = DefaultUserIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationRepository{store: s, userIndex: userIndex, logger: logger}
}

// Save appends one message.
func (r *ConversationRepository) Save(ctx context.Context, m *domain.TutorMessage) error {
	item, err := EncodeTutorMessage(m)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, item)
}

// History returns the last limit messages of a conversation, oldest first.
// A conversation without messages yields an empty slice.
func (r *ConversationRepository) History(ctx context.Context, userID, conversationID string, limit int) ([]*domain.TutorMessage, error) {
	items, err := r.store.Query(ctx, store.KeyCondition{
		PartitionValue: conversationPartition(userID, conversationID),
		SortAttr:       store.AttrSK,
		SortPrefix:     messageSortPrefix,
	}, false)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	msgs, err := r.decode(items, zap.String("conversation_id", conversationID))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListByUser returns every tutor message of a user newest first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TutorMessage, error) {
	items, err := r.store.Query(ctx, store.KeyCondition{
		Index:          r.userIndex,
		PartitionAttr:  attrUserID,
		PartitionValue: userID,
	}, false)
	if err != nil {
		return nil, err
	}
	return r.decode(items, zap.String("user_id", userID))
}

func (r *ConversationRepository) decode(items []store.Item, field zap.Field) ([]*domain.TutorMessage, error) {
	msgs := make([]*domain.TutorMessage, 0, len(items))
	for _, item := range items {
		if !isEntity(item, domain.EntityTypeTutorMessage) {
			continue
		}
		m, err := DecodeTutorMessage(item)
		if err != nil {
			r.logger.Error("Malformed tutor message item", field, zap.Error(err))
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
