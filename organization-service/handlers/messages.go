package handlers

import (
	"context"

	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/infrastructure"
	"github.com/draftea/organization-system/shared/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultDedupCacheSize = 4096

// ReplyHandler is the orchestrator side of the inbound queue
type ReplyHandler interface {
	HandleReply(ctx context.Context, reply *commands.Reply) error
	ReplyChannel() commands.Channel
}

// CommandDispatcher is the participant side of the inbound queue
type CommandDispatcher interface {
	Handles(channel commands.Channel, commandType string) bool
	Dispatch(ctx context.Context, cmd *commands.Command) *commands.Reply
}

// MessageHandlers routes queue messages: commands go to the participant
// dispatcher and their reply is sent back, replies go to the orchestrator.
type MessageHandlers struct {
	dispatcher CommandDispatcher
	replies    commands.ReplyProducer
	sagas      ReplyHandler
	processed  *lru.Cache[models.ID, struct{}]
	logger     logrus.FieldLogger
}

// NewMessageHandlers creates the inbound message router. cacheSize bounds the
// number of recently processed message ids remembered for deduplication.
func NewMessageHandlers(
	dispatcher CommandDispatcher,
	replies commands.ReplyProducer,
	sagas ReplyHandler,
	cacheSize int,
	logger logrus.FieldLogger,
) (*MessageHandlers, error) {
	if cacheSize <= 0 {
		cacheSize = defaultDedupCacheSize
	}

	processed, err := lru.New[models.ID, struct{}](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dedup cache")
	}

	return &MessageHandlers{
		dispatcher: dispatcher,
		replies:    replies,
		sagas:      sagas,
		processed:  processed,
		logger:     logger,
	}, nil
}

// HandlerID returns the unique identifier for this event handler
func (h *MessageHandlers) HandlerID() string {
	return "organization-service-message-handler"
}

// Handle processes one queue message. A returned error leaves the message on
// the queue for redelivery.
func (h *MessageHandlers) Handle(ctx context.Context, event *events.Event) error {
	logger := h.logger.WithFields(logrus.Fields{
		"message_id": event.ID,
		"topic":      event.Topic,
		"event_type": event.EventType,
	})

	if h.processed.Contains(event.ID) {
		logger.Debug("duplicate message dropped")
		return nil
	}

	var err error
	switch {
	case event.Topic.Matches(infrastructure.CommandTopicPattern):
		err = h.handleCommand(ctx, event, logger)
	case event.Topic.Matches(infrastructure.ReplyTopicPattern):
		err = h.handleReply(ctx, event, logger)
	default:
		logger.Debug("message ignored")
		return nil
	}

	if errors.Is(err, infrastructure.ErrMalformedMessage) {
		logger.WithError(err).Warn("malformed message dropped")
		return nil
	}
	if err != nil {
		return err
	}

	h.processed.Add(event.ID, struct{}{})
	return nil
}

func (h *MessageHandlers) handleCommand(ctx context.Context, event *events.Event, logger logrus.FieldLogger) error {
	cmd, err := infrastructure.CommandFromEvent(event)
	if err != nil {
		return err
	}

	if !h.dispatcher.Handles(cmd.Channel, cmd.Type) {
		logger.WithField("channel", cmd.Channel).Debug("command for another participant ignored")
		return nil
	}

	reply := h.dispatcher.Dispatch(ctx, cmd)
	if err := h.replies.SendReply(ctx, reply); err != nil {
		return errors.Wrapf(err, "failed to send reply for %s", cmd.Type)
	}

	logger.WithFields(logrus.Fields{
		"saga_id": cmd.CorrelationID,
		"code":    reply.Code,
	}).Info("command handled")
	return nil
}

func (h *MessageHandlers) handleReply(ctx context.Context, event *events.Event, logger logrus.FieldLogger) error {
	reply, err := infrastructure.ReplyFromEvent(event)
	if err != nil {
		return err
	}

	if reply.Channel != h.sagas.ReplyChannel() {
		logger.WithField("channel", reply.Channel).Debug("reply for another orchestrator ignored")
		return nil
	}

	return errors.Wrapf(h.sagas.HandleReply(ctx, reply), "failed to handle reply %s", reply.Type)
}
