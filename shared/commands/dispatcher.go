package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type handlerKey struct {
	channel     Channel
	commandType string
}

// Dispatcher routes inbound commands to their registered handler and turns
// every outcome into exactly one Reply.
type Dispatcher struct {
	handlers map[handlerKey]*Handler
	locks    lock.Manager
	logger   logrus.FieldLogger
}

// NewDispatcher registers every handler set. Two sets claiming the same
// (channel, command type) panic.
func NewDispatcher(locks lock.Manager, logger logrus.FieldLogger, sets ...*Handlers) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[handlerKey]*Handler),
		locks:    locks,
		logger:   logger,
	}

	for _, set := range sets {
		for _, h := range set.handlers {
			key := handlerKey{channel: h.channel, commandType: h.commandType}
			if _, ok := d.handlers[key]; ok {
				panic(fmt.Sprintf("commands: %s already handled on %s", h.commandType, h.channel))
			}
			d.handlers[key] = h
		}
	}

	return d
}

// Handles reports whether a handler exists for channel and commandType
func (d *Dispatcher) Handles(channel Channel, commandType string) bool {
	_, ok := d.handlers[handlerKey{channel: channel, commandType: commandType}]
	return ok
}

// Dispatch runs the handler for cmd, holding its pre-lock target if one is
// configured.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *Command) *Reply {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "dispatch_command",
		trace.WithAttributes(
			attribute.String("channel", cmd.Channel.String()),
			attribute.String("command_type", cmd.Type),
			attribute.String("saga_id", cmd.CorrelationID.String()),
		),
	)
	defer span.End()

	logger := d.logger.WithFields(logrus.Fields{
		"channel":      cmd.Channel,
		"command_type": cmd.Type,
		"saga_id":      cmd.CorrelationID,
		"step":         cmd.Step,
	})

	reply := d.dispatch(ctx, cmd, logger)

	span.SetAttributes(
		attribute.String("outcome", string(reply.Outcome)),
		attribute.String("code", reply.Code),
	)
	telemetry.RecordCounter(ctx, "participant_commands_total", "Total participant commands handled", 1,
		attribute.String("channel", cmd.Channel.String()),
		attribute.String("command_type", cmd.Type),
		attribute.String("outcome", string(reply.Outcome)),
	)
	telemetry.RecordHistogram(ctx, "participant_command_duration_seconds", "Participant command duration", time.Since(start).Seconds(),
		attribute.String("command_type", cmd.Type),
	)

	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd *Command, logger logrus.FieldLogger) *Reply {
	h, ok := d.handlers[handlerKey{channel: cmd.Channel, commandType: cmd.Type}]
	if !ok {
		logger.Warn("no handler registered for command")
		return failureReply(cmd, CodeUnknownCommand, "Unknown command", nil)
	}

	if h.preLock == nil {
		return d.invoke(ctx, h, cmd, logger)
	}

	target, err := h.preLock(cmd)
	if err != nil {
		logger.WithError(err).Error("failed to compute pre-lock target")
		return failureReply(cmd, CodeInternalError, "Internal error", nil)
	}

	var reply *Reply
	err = lock.WithLock(ctx, d.locks, target, func(ctx context.Context) error {
		reply = d.invoke(ctx, h, cmd, logger.WithField("lock_target", target.Key()))
		return nil
	})
	if err != nil && reply == nil {
		if errors.Is(err, lock.ErrLockHeld) {
			logger.WithField("lock_target", target.Key()).Warn("pre-lock target is held")
			return failureReply(cmd, CodeTargetLocked, "Target is locked", nil)
		}
		logger.WithError(err).Error("failed to hold pre-lock target")
		return failureReply(cmd, CodeInternalError, "Internal error", nil)
	}
	if err != nil {
		logger.WithError(err).Warn("pre-lock release failed after handler completed")
	}

	return reply
}

func (d *Dispatcher) invoke(ctx context.Context, h *Handler, cmd *Command, logger logrus.FieldLogger) (reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("command handler panicked")
			reply = failureReply(cmd, CodeInternalError, "Internal error", nil)
		}
	}()

	reply, err := h.fn(ctx, cmd)
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			logger.WithField("code", failure.Code).Info(failure.Caption)
			return failureReply(cmd, failure.Code, failure.Caption, failure.Data)
		}

		logger.WithError(err).Error("command handler failed")
		return failureReply(cmd, CodeInternalError, "Internal error", nil)
	}

	if reply == nil {
		reply, _ = Success(cmd, "", nil)
	}

	return reply
}
