package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu         sync.Mutex
	pending    []types.Message
	deleted    []string
	visibility map[string]int32
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &sqs.ReceiveMessageOutput{Messages: f.pending}
	f.pending = nil
	return out, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.visibility[aws.ToString(in.ReceiptHandle)] = in.VisibilityTimeout
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (f *fakeSQS) settled() ([]string, map[string]int32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	visibility := make(map[string]int32, len(f.visibility))
	for k, v := range f.visibility {
		visibility[k] = v
	}
	return append([]string(nil), f.deleted...), visibility
}

func queueMessage(t *testing.T, handle string, receiveCount string, event *events.Event) types.Message {
	t.Helper()
	body, err := encodeEnvelope(event)
	require.NoError(t, err)

	return types.Message{
		MessageId:     aws.String("msg-" + handle),
		ReceiptHandle: aws.String(handle),
		Body:          aws.String(string(body)),
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): receiveCount,
		},
		MessageAttributes: map[string]types.MessageAttributeValue{
			MessageKindKey: {DataType: aws.String("String"), StringValue: aws.String(MessageKindCommand)},
		},
	}
}

func TestSQSEventSubscriber_SettlesMessages(t *testing.T) {
	good := events.NewEvent(models.GenerateUUID(), "command.organization", nil)
	bad := events.NewEvent(models.GenerateUUID(), "command.organization", nil)

	client := &fakeSQS{
		visibility: make(map[string]int32),
		pending: []types.Message{
			queueMessage(t, "good", "1", good),
			queueMessage(t, "bad", "7", bad),
			{MessageId: aws.String("garbage"), ReceiptHandle: aws.String("garbage"), Body: aws.String("not json")},
		},
	}

	var (
		mu   sync.Mutex
		seen = make(map[models.ID]string)
	)
	handler := NewEventHandlerFunc("test", func(ctx context.Context, event *events.Event) error {
		kind, _ := event.Metadata.Get(MessageKindKey)
		mu.Lock()
		seen[event.ID] = kind
		mu.Unlock()

		if event.ID == bad.ID {
			return errors.New("handler failed")
		}
		return nil
	})

	subscriber := NewSQSEventSubscriber(client, "http://localhost:4566/000000000000/organization", handler, logging.Discard(),
		WithWorkers(2),
		WithWaitTimeSeconds(0),
		WithSleepTimes(5*time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, subscriber.Start(context.Background()))

	require.Eventually(t, func() bool {
		deleted, visibility := client.settled()
		return len(deleted) == 1 && len(visibility) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, subscriber.Stop(stopCtx))

	deleted, visibility := client.settled()
	assert.Equal(t, []string{"good"}, deleted)
	// 30s base plus 30s for every 3 receives
	assert.Equal(t, int32(90), visibility["bad"])

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 2)
	assert.Equal(t, MessageKindCommand, seen[good.ID])
}

func TestSQSEventSubscriber_StartStopIdempotent(t *testing.T) {
	client := &fakeSQS{visibility: make(map[string]int32)}
	handler := NewEventHandlerFunc("noop", func(ctx context.Context, event *events.Event) error { return nil })
	subscriber := NewSQSEventSubscriber(client, "queue", handler, logging.Discard(),
		WithWorkers(1),
		WithSleepTimes(time.Millisecond, time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, subscriber.Start(ctx))
	require.NoError(t, subscriber.Start(ctx))
	require.NoError(t, subscriber.Stop(ctx))
	require.NoError(t, subscriber.Stop(ctx))
}
