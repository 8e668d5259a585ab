// Package events publishes study-notes lifecycle events.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const Source = "paperone.subjects"

const (
	TypeDocumentCreated       = "DocumentCreated"
	TypeDocumentUpdated       = "DocumentUpdated"
	TypeDocumentDeleted       = "DocumentDeleted"
	TypeDocumentReviewToggled = "DocumentReviewToggled"
	TypeSubjectDeleted        = "SubjectDeleted"
)

// Event is the detail payload of a published event.
type Event struct {
	Type       string                 `json:"event_type"`
	UserID     string                 `json:"user_id"`
	SubjectID  string                 `json:"subject_id"`
	DocumentID string                 `json:"document_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// AggregateID is the id of the entity the event is about.
func (e Event) AggregateID() string {
	if e.DocumentID != "" {
		return e.DocumentID
	}
	return e.SubjectID
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

// BestEffort publishes and logs failures instead of returning them. Events
// never decide the outcome of the request that produced them.
func BestEffort(ctx context.Context, p Publisher, logger *zap.Logger, evts ...Event) {
	if p == nil || len(evts) == 0 {
		return
	}
	if err := p.Publish(ctx, evts...); err != nil {
		logger.Warn("Failed to publish events",
			zap.String("event_type", evts[0].Type),
			zap.Int("count", len(evts)),
			zap.Error(err),
		)
	}
}
