package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
)

// Channel is a named inbound queue a participant listens on
type Channel string

const (
	ChannelOrganization   Channel = "ORGANIZATION"
	ChannelUserProfile    Channel = "USER_PROFILE"
	ChannelTeam           Channel = "TEAM"
	ChannelUserPreference Channel = "USER_PREFERENCE"
)

func (c Channel) String() string {
	return string(c)
}

// Codes shared by every participant
const (
	CodeSuccess        = "SUCCESS"
	CodeInternalError  = "INTERNAL_SERVER_ERROR"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeTargetLocked   = "TARGET_LOCKED"
)

// Endpoint addresses one command type on a channel
type Endpoint struct {
	Channel     Channel
	CommandType string
}

func NewEndpoint(channel Channel, commandType string) Endpoint {
	return Endpoint{Channel: channel, CommandType: commandType}
}

// SuccessReplyType is the reply tag a participant answers a successful command with
func SuccessReplyType(commandType string) string {
	return commandType + ".Success"
}

// FailureReplyType is the reply tag a participant answers a failed command with
func FailureReplyType(commandType string) string {
	return commandType + ".Failure"
}

// Command is addressed to a channel and correlated to the issuing saga
type Command struct {
	ID            models.ID       `json:"id"`
	Channel       Channel         `json:"channel"`
	Type          string          `json:"type"`
	CorrelationID models.ID       `json:"correlation_id"`
	ReplyChannel  Channel         `json:"reply_channel"`
	Step          int             `json:"step"`
	Compensation  bool            `json:"compensation,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewCommand builds a command for endpoint carrying payload
func NewCommand(endpoint Endpoint, correlationID models.ID, step int, payload interface{}) (*Command, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s payload", endpoint.CommandType)
	}

	return &Command{
		ID:            models.GenerateUUID(),
		Channel:       endpoint.Channel,
		Type:          endpoint.CommandType,
		CorrelationID: correlationID,
		Step:          step,
		Payload:       raw,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v
func (c *Command) Decode(v interface{}) error {
	if len(c.Payload) == 0 {
		return errors.Errorf("command %s has no payload", c.Type)
	}
	return errors.Wrapf(json.Unmarshal(c.Payload, v), "failed to decode %s payload", c.Type)
}

// Outcome tells success replies from failure replies
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Reply answers exactly one Command
type Reply struct {
	ID            models.ID       `json:"id"`
	CorrelationID models.ID       `json:"correlation_id"`
	Channel       Channel         `json:"channel"`
	Type          string          `json:"type"`
	Outcome       Outcome         `json:"outcome"`
	Code          string          `json:"code"`
	Caption       string          `json:"caption"`
	Step          int             `json:"step"`
	Compensation  bool            `json:"compensation,omitempty"`
	LockedTarget  *lock.Target    `json:"locked_target,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// IsSuccess reports whether the participant completed the command
func (r *Reply) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess
}

// Decode unmarshals the payload into v
func (r *Reply) Decode(v interface{}) error {
	if len(r.Payload) == 0 {
		return errors.Errorf("reply %s has no payload", r.Type)
	}
	return errors.Wrapf(json.Unmarshal(r.Payload, v), "failed to decode %s payload", r.Type)
}

// WithLockedTarget asks the orchestrator to record target on the saga instance
func (r *Reply) WithLockedTarget(target lock.Target) *Reply {
	r.LockedTarget = &target
	return r
}

// Success builds the success reply for cmd
func Success(cmd *Command, caption string, data interface{}) (*Reply, error) {
	reply := newReply(cmd, SuccessReplyType(cmd.Type), OutcomeSuccess, CodeSuccess, caption)
	if data == nil {
		return reply, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s reply", cmd.Type)
	}
	reply.Payload = raw

	return reply, nil
}

// Failure is the error a handler returns for an expected business failure.
// It is turned into a typed failure reply instead of an internal error.
type Failure struct {
	Code    string
	Caption string
	Data    interface{}
}

func NewFailure(code, caption string, data interface{}) *Failure {
	return &Failure{Code: code, Caption: caption, Data: data}
}

func (f *Failure) Error() string {
	return f.Code + ": " + f.Caption
}

// Reply builds the failure reply answering cmd
func (f *Failure) Reply(cmd *Command) *Reply {
	return failureReply(cmd, f.Code, f.Caption, f.Data)
}

func failureReply(cmd *Command, code, caption string, data interface{}) *Reply {
	reply := newReply(cmd, FailureReplyType(cmd.Type), OutcomeFailure, code, caption)
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			reply.Payload = raw
		}
	}
	return reply
}

func newReply(cmd *Command, replyType string, outcome Outcome, code, caption string) *Reply {
	return &Reply{
		ID:            models.GenerateUUID(),
		CorrelationID: cmd.CorrelationID,
		Channel:       cmd.ReplyChannel,
		Type:          replyType,
		Outcome:       outcome,
		Code:          code,
		Caption:       caption,
		Step:          cmd.Step,
		Compensation:  cmd.Compensation,
		Timestamp:     time.Now().UTC(),
	}
}

// Producer sends commands to participant channels
type Producer interface {
	Send(ctx context.Context, cmd *Command) error
}

// ReplyProducer sends replies back to the issuing saga
type ReplyProducer interface {
	SendReply(ctx context.Context, reply *Reply) error
}
