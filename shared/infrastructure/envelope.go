package infrastructure

import (
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
)

const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
	SQSReceiveCountKey  = "sqs_receive_count"
)

var ErrMalformedMessage = errors.New("malformed message")

// envelope is the body published to SNS and read back from SQS
type envelope struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Metadata      events.Metadata `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// snsNotification wraps the envelope when the subscription has raw delivery disabled
type snsNotification struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// transient metadata never leaves the process
func isTransientKey(key string) bool {
	return key == SQSMessageIDKey || key == SQSReceiptHandleKey || key == SQSReceiveCountKey
}

func encodeEnvelope(event *events.Event) ([]byte, error) {
	payload, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	metadata := make(events.Metadata, len(event.Metadata))
	for k, v := range event.Metadata {
		if isTransientKey(k) {
			continue
		}
		metadata.Set(k, v)
	}

	return json.Marshal(&envelope{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		CorrelationID: event.CorrelationID.String(),
		Topic:         event.Topic.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Metadata:      metadata,
		Payload:       payload,
		Timestamp:     event.Timestamp,
	})
}

// decodeEnvelope accepts both raw envelopes and SNS notifications carrying one
func decodeEnvelope(body []byte) (*events.Event, error) {
	var notification snsNotification
	if err := json.Unmarshal(body, &notification); err == nil && notification.Type == "Notification" && notification.Message != "" {
		body = []byte(notification.Message)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	if env.ID == "" || env.Topic == "" {
		return nil, errors.Wrap(ErrMalformedMessage, "missing id or topic")
	}

	metadata := env.Metadata
	if metadata == nil {
		metadata = make(events.Metadata)
	}

	eventType := env.EventType
	if eventType == "" {
		eventType = env.Topic
	}

	return &events.Event{
		ID:            models.ID(env.ID),
		AggregateID:   models.ID(env.AggregateID),
		CorrelationID: models.ID(env.CorrelationID),
		Topic:         events.Topic(env.Topic),
		EventType:     eventType,
		Version:       env.Version,
		Data:          env.Payload,
		Metadata:      metadata,
		Timestamp:     env.Timestamp,
	}, nil
}
