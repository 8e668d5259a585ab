package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBus struct {
	calls []*eventbridge.PutEventsInput
	out   *eventbridge.PutEventsOutput
	err   error
}

func (f *fakeBus) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgePublisherBatches(t *testing.T) {
	bus := &fakeBus{}
	p := NewEventBridgePublisher(bus, "study-bus", zap.NewNop())

	evts := make([]Event, 12)
	for i := range evts {
		evts[i] = Event{Type: TypeDocumentCreated, UserID: "u1", SubjectID: "s1", DocumentID: "d", Timestamp: time.Now()}
	}
	require.NoError(t, p.Publish(context.Background(), evts...))

	require.Len(t, bus.calls, 2)
	assert.Len(t, bus.calls[0].Entries, 10)
	assert.Len(t, bus.calls[1].Entries, 2)

	entry := bus.calls[0].Entries[0]
	assert.Equal(t, "study-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, TypeDocumentCreated, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "s1", detail["subject_id"])
}

func TestEventBridgePublisherFailedEntries(t *testing.T) {
	bus := &fakeBus{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
	}}
	p := NewEventBridgePublisher(bus, "bus", zap.NewNop())
	err := p.Publish(context.Background(), Event{Type: TypeSubjectDeleted, SubjectID: "s1"})
	assert.Error(t, err)
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	bus := &fakeBus{err: errors.New("network down")}
	p := NewEventBridgePublisher(bus, "bus", zap.NewNop())

	assert.NotPanics(t, func() {
		BestEffort(context.Background(), p, zap.NewNop(), Event{Type: TypeDocumentDeleted})
	})
	assert.Len(t, bus.calls, 1)
}
