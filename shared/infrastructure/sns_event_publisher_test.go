package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	mu      sync.Mutex
	inputs  []*sns.PublishBatchInput
	failIDs map[string]bool
}

func (f *fakeSNS) PublishBatch(_ context.Context, in *sns.PublishBatchInput, _ ...func(*sns.Options)) (*sns.PublishBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, in)

	out := &sns.PublishBatchOutput{}
	for _, entry := range in.PublishBatchRequestEntries {
		if f.failIDs[aws.ToString(entry.Id)] {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{
				Id:      entry.Id,
				Code:    aws.String("InternalError"),
				Message: aws.String("throttled"),
			})
			continue
		}
		out.Successful = append(out.Successful, types.PublishBatchResultEntry{Id: entry.Id})
	}
	return out, nil
}

func newEvents(n int) []*events.Event {
	evts := make([]*events.Event, n)
	for i := range evts {
		evts[i] = events.NewEvent(models.GenerateUUID(), "organization.created.processed", map[string]int{"step": i}).
			WithMetadata("lifecycle_kind", "processed").
			WithMetadata(SQSMessageIDKey, "from-sqs")
	}
	return evts
}

func TestSNSEventPublisher_Publish(t *testing.T) {
	client := &fakeSNS{}
	publisher := NewSNSEventPublisher(client, "arn:aws:sns:us-east-1:000000000000:organization", logging.Discard())

	evts := newEvents(23)
	require.NoError(t, publisher.Publish(context.Background(), evts...))

	require.Len(t, client.inputs, 3)

	total := 0
	for _, in := range client.inputs {
		assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:organization", aws.ToString(in.TopicArn))
		assert.LessOrEqual(t, len(in.PublishBatchRequestEntries), maxBatchSize)
		total += len(in.PublishBatchRequestEntries)

		for _, entry := range in.PublishBatchRequestEntries {
			assert.Equal(t, "organization.created.processed", aws.ToString(entry.MessageAttributes["topic"].StringValue))
			assert.Equal(t, "processed", aws.ToString(entry.MessageAttributes["lifecycle_kind"].StringValue))
			assert.NotContains(t, entry.MessageAttributes, SQSMessageIDKey)

			decoded, err := decodeEnvelope([]byte(aws.ToString(entry.Message)))
			require.NoError(t, err)
			assert.Equal(t, aws.ToString(entry.Id), decoded.ID.String())
		}
	}
	assert.Equal(t, 23, total)
}

func TestSNSEventPublisher_ReportsRejectedEntries(t *testing.T) {
	evts := newEvents(3)
	client := &fakeSNS{failIDs: map[string]bool{evts[1].ID.String(): true}}
	publisher := NewSNSEventPublisher(client, "arn", logging.Discard())

	err := publisher.Publish(context.Background(), evts...)

	require.Error(t, err)
	assert.Contains(t, err.Error(), evts[1].ID.String())
}

func TestSNSEventPublisher_NoEvents(t *testing.T) {
	client := &fakeSNS{}
	publisher := NewSNSEventPublisher(client, "arn", logging.Discard())

	require.NoError(t, publisher.Publish(context.Background()))
	assert.Empty(t, client.inputs)
}

func TestSplitToChunks(t *testing.T) {
	chunks := splitToChunks([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Empty(t, splitToChunks([]int{}, 2))
}
