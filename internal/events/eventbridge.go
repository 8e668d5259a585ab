package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventBridgeAPI is the part of the EventBridge client the publisher uses.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher sends events to an EventBridge bus.
type EventBridgePublisher struct {
	client       EventBridgeAPI
	eventBusName string
	source       string
	logger       *zap.Logger
}

// NewEventBridgePublisher creates a publisher for eventBusName.
func NewEventBridgePublisher(client EventBridgeAPI, eventBusName string, logger *zap.Logger) *EventBridgePublisher {
	return &EventBridgePublisher{
		client:       client,
		eventBusName: eventBusName,
		source:       Source,
		logger:       logger,
	}
}

// PutEvents accepts at most 10 entries per call.
const batchSize = 10

// Publish sends events in batches.
func (p *EventBridgePublisher) Publish(ctx context.Context, evts ...Event) error {
	for i := 0; i < len(evts); i += batchSize {
		end := i + batchSize
		if end > len(evts) {
			end = len(evts)
		}
		if err := p.publishBatch(ctx, evts[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *EventBridgePublisher) publishBatch(ctx context.Context, batch []Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, e := range batch {
		detail, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("Failed to marshal event", zap.String("event_type", e.Type), zap.Error(err))
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(e.Type),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(e.Timestamp),
			Resources:    []string{fmt.Sprintf("arn:aws:paperone::%s", e.AggregateID())},
		})
	}
	if len(entries) == 0 {
		return nil
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}
	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil && i < len(batch) {
				p.logger.Error("Failed to publish event",
					zap.String("event_type", batch[i].Type),
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", out.FailedEntryCount)
	}

	p.logger.Debug("Events published", zap.Int("count", len(entries)), zap.String("event_bus", p.eventBusName))
	return nil
}
