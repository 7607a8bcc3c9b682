package infrastructure

import (
	"context"
	"strconv"
	"strings"

	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/pkg/errors"
)

// Message attributes set on every command and reply
const (
	MessageKindKey = "message_kind"
	ChannelKey     = "channel"
	CommandTypeKey = "command_type"
	StepKey        = "step"

	MessageKindCommand = "command"
	MessageKindReply   = "reply"
)

// Topic patterns inbound routing matches on
var (
	CommandTopicPattern = events.Topic("command.#")
	ReplyTopicPattern   = events.Topic("reply.#")
)

var (
	_ commands.Producer      = (*SNSCommandBus)(nil)
	_ commands.ReplyProducer = (*SNSCommandBus)(nil)
)

// CommandTopic is the topic commands addressed to channel are published on
func CommandTopic(channel commands.Channel) events.Topic {
	return events.Topic("command." + strings.ToLower(channel.String()))
}

// ReplyTopic is the topic replies for channel are published on
func ReplyTopic(channel commands.Channel) events.Topic {
	return events.Topic("reply." + strings.ToLower(channel.String()))
}

// SNSCommandBus carries saga commands and participant replies over the
// service topic. Subscription filter policies on the channel attribute route
// each message to the queue of the service that owns the channel.
type SNSCommandBus struct {
	publisher events.Publisher
}

func NewSNSCommandBus(publisher events.Publisher) *SNSCommandBus {
	return &SNSCommandBus{publisher: publisher}
}

// Send publishes cmd to its channel
func (b *SNSCommandBus) Send(ctx context.Context, cmd *commands.Command) error {
	event, err := CommandToEvent(cmd)
	if err != nil {
		return err
	}
	return errors.Wrapf(b.publisher.Publish(ctx, event), "failed to send %s", cmd.Type)
}

// SendReply publishes reply to the reply channel of the issuing saga
func (b *SNSCommandBus) SendReply(ctx context.Context, reply *commands.Reply) error {
	event, err := ReplyToEvent(reply)
	if err != nil {
		return err
	}
	return errors.Wrapf(b.publisher.Publish(ctx, event), "failed to send %s", reply.Type)
}

// CommandToEvent wraps cmd in the wire envelope
func CommandToEvent(cmd *commands.Command) (*events.Event, error) {
	if cmd.Channel == "" {
		return nil, errors.Errorf("command %s has no channel", cmd.Type)
	}

	event := events.NewEventWithTopic(cmd.CorrelationID, CommandTopic(cmd.Channel), cmd.Type, cmd).
		WithCorrelationID(cmd.CorrelationID).
		WithMetadata(MessageKindKey, MessageKindCommand).
		WithMetadata(ChannelKey, cmd.Channel.String()).
		WithMetadata(CommandTypeKey, cmd.Type).
		WithMetadata(StepKey, strconv.Itoa(cmd.Step))
	event.ID = cmd.ID

	return event, nil
}

// ReplyToEvent wraps reply in the wire envelope
func ReplyToEvent(reply *commands.Reply) (*events.Event, error) {
	if reply.Channel == "" {
		return nil, errors.Errorf("reply %s has no reply channel", reply.Type)
	}

	event := events.NewEventWithTopic(reply.CorrelationID, ReplyTopic(reply.Channel), reply.Type, reply).
		WithCorrelationID(reply.CorrelationID).
		WithMetadata(MessageKindKey, MessageKindReply).
		WithMetadata(ChannelKey, reply.Channel.String()).
		WithMetadata(CommandTypeKey, reply.Type).
		WithMetadata(StepKey, strconv.Itoa(reply.Step))
	event.ID = reply.ID

	return event, nil
}

// CommandFromEvent decodes a command received from the queue
func CommandFromEvent(event *events.Event) (*commands.Command, error) {
	var cmd commands.Command
	if err := event.UnmarshalPayload(&cmd); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "failed to decode command %s: %v", event.ID, err)
	}
	if cmd.Channel == "" || cmd.Type == "" {
		return nil, errors.Wrapf(ErrMalformedMessage, "command %s has no channel or type", event.ID)
	}
	return &cmd, nil
}

// ReplyFromEvent decodes a reply received from the queue
func ReplyFromEvent(event *events.Event) (*commands.Reply, error) {
	var reply commands.Reply
	if err := event.UnmarshalPayload(&reply); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "failed to decode reply %s: %v", event.ID, err)
	}
	if reply.CorrelationID.IsZero() || reply.Type == "" {
		return nil, errors.Wrapf(ErrMalformedMessage, "reply %s has no correlation id or type", event.ID)
	}
	return &reply, nil
}
