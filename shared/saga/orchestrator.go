package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	CodeSagaTimeout = "SAGA_TIMEOUT"

	defaultReplyChannel commands.Channel = "SAGA_REPLY"
)

var ErrUnknownSagaType = errors.New("unknown saga type")

// cause describes why an instance stopped moving forward
type cause struct {
	code    string
	caption string
	data    interface{}
}

// Orchestrator drives saga instances through their definitions. Every
// operation on one instance runs under a per saga id guard.
type Orchestrator struct {
	definitions  map[string]*Definition
	store        InstanceStore
	producer     commands.Producer
	lifecycle    events.Publisher
	guard        lock.Manager
	replyChannel commands.Channel
	logger       logrus.FieldLogger
}

type Option func(*Orchestrator)

// WithGuard replaces the per instance guard, e.g. with a redis backed one
// when several replicas consume the same reply queue
func WithGuard(guard lock.Manager) Option {
	return func(o *Orchestrator) {
		o.guard = guard
	}
}

// WithReplyChannel sets the channel participants answer on
func WithReplyChannel(channel commands.Channel) Option {
	return func(o *Orchestrator) {
		o.replyChannel = channel
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an orchestrator for the given definitions
func NewOrchestrator(
	store InstanceStore,
	producer commands.Producer,
	lifecycle events.Publisher,
	definitions []*Definition,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		definitions:  make(map[string]*Definition),
		store:        store,
		producer:     producer,
		lifecycle:    lifecycle,
		guard:        lock.NewMemoryManager(lock.PolicyBlock),
		replyChannel: defaultReplyChannel,
		logger:       logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(o)
	}

	for _, def := range definitions {
		if _, ok := o.definitions[def.sagaType]; ok {
			panic(fmt.Sprintf("saga: %s registered twice", def.sagaType))
		}
		o.definitions[def.sagaType] = def
	}

	return o
}

// ReplyChannel returns the channel this orchestrator expects replies on
func (o *Orchestrator) ReplyChannel() commands.Channel {
	return o.replyChannel
}

// Definition returns the registered definition of sagaType
func (o *Orchestrator) Definition(sagaType string) (*Definition, bool) {
	def, ok := o.definitions[sagaType]
	return def, ok
}

// Create starts a new instance of def with state and runs it up to the first
// participant step. A local failure with a registered rollback is reported
// through lifecycle events only; any other local failure marks the instance
// FAILED and is returned together with the saga id.
func (o *Orchestrator) Create(ctx context.Context, def *Definition, state interface{}) (models.ID, error) {
	if _, ok := o.definitions[def.sagaType]; !ok {
		return "", errors.Wrap(ErrUnknownSagaType, def.sagaType)
	}
	if !def.accepts(state) {
		return "", errors.Errorf("saga %s: unexpected state type %T", def.sagaType, state)
	}

	id := models.GenerateUUID()

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "saga_create",
		trace.WithAttributes(
			attribute.String("saga_id", id.String()),
			attribute.String("saga_type", def.sagaType),
		),
	)
	defer span.End()
	defer func() {
		telemetry.RecordHistogram(ctx, "saga_step_duration_seconds", "Duration of saga create and reply handling", time.Since(start).Seconds(),
			attribute.String("saga_type", def.sagaType),
			attribute.String("operation", "create"),
		)
	}()

	err := lock.WithLock(ctx, o.guard, lock.NewTarget(lock.TargetSaga, id.String()), func(ctx context.Context) error {
		raw, err := json.Marshal(state)
		if err != nil {
			return errors.Wrap(err, "failed to marshal saga state")
		}

		now := time.Now().UTC()
		instance := &Instance{
			ID:        id,
			SagaType:  def.sagaType,
			Status:    StatusStarted,
			State:     raw,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := o.store.Create(ctx, instance); err != nil {
			return errors.Wrap(err, "failed to create saga instance")
		}

		o.loggerFor(instance).Info("saga started")
		o.publish(ctx, def, instance, events.LifecycleBegin, "", commands.CodeSuccess, "Saga started", state)

		return o.advance(ctx, def, instance, state)
	})
	if err != nil {
		span.RecordError(err)
		return id, err
	}

	return id, nil
}

// HandleReply applies a participant reply to the instance it correlates to.
// Replies for another step or for an instance that is no longer running are
// discarded.
func (o *Orchestrator) HandleReply(ctx context.Context, reply *commands.Reply) error {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "saga_handle_reply",
		trace.WithAttributes(
			attribute.String("saga_id", reply.CorrelationID.String()),
			attribute.String("reply_type", reply.Type),
			attribute.Int("step", reply.Step),
		),
	)
	defer span.End()

	logger := o.logger.WithFields(logrus.Fields{
		"saga_id":    reply.CorrelationID,
		"reply_type": reply.Type,
		"reply_step": reply.Step,
		"outcome":    reply.Outcome,
	})

	var sagaType string
	defer func() {
		telemetry.RecordHistogram(ctx, "saga_step_duration_seconds", "Duration of saga create and reply handling", time.Since(start).Seconds(),
			attribute.String("saga_type", sagaType),
			attribute.String("operation", "reply"),
		)
	}()

	err := lock.WithLock(ctx, o.guard, lock.NewTarget(lock.TargetSaga, reply.CorrelationID.String()), func(ctx context.Context) error {
		instance, err := o.store.Load(ctx, reply.CorrelationID)
		if errors.Is(err, ErrInstanceNotFound) {
			logger.Warn("reply for unknown saga discarded")
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load saga instance")
		}
		sagaType = instance.SagaType

		if reply.Compensation {
			logger.WithField("code", reply.Code).Debug("compensation reply received")
			return nil
		}

		if instance.Status != StatusStarted {
			logger.WithField("status", instance.Status).Debug("reply for inactive saga discarded")
			return nil
		}

		if reply.Step != instance.CurrentStep {
			logger.WithField("current_step", instance.CurrentStep).Debug("stale reply discarded")
			return nil
		}

		def, ok := o.definitions[instance.SagaType]
		if !ok {
			return errors.Wrap(ErrUnknownSagaType, instance.SagaType)
		}

		st := &def.steps[instance.CurrentStep]
		if st.kind != StepParticipant {
			logger.Warn("reply for local step discarded")
			return nil
		}

		state, err := o.restoreState(def, instance)
		if err != nil {
			return err
		}

		if handler, ok := st.replies[reply.Type]; ok {
			if err := handler(ctx, state, reply); err != nil {
				logger.WithError(err).Error("reply handler failed")
				return o.compensate(ctx, def, instance, state, cause{
					code:    commands.CodeInternalError,
					caption: "Failed to handle reply",
				})
			}
		}

		if !reply.IsSuccess() {
			logger.WithFields(logrus.Fields{"code": reply.Code, "caption": reply.Caption}).Warn("participant replied with failure")
			return o.compensate(ctx, def, instance, state, cause{
				code:    reply.Code,
				caption: reply.Caption,
				data:    reply.Payload,
			})
		}

		if reply.LockedTarget != nil {
			instance.AddLockedTarget(*reply.LockedTarget)
		}

		o.publish(ctx, def, instance, events.LifecycleProcessed, st.name, reply.Code, reply.Caption, nil)
		instance.CurrentStep++

		return o.advance(ctx, def, instance, state)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// CompensateStalled forces compensation of an instance that has not moved
// since stalledSince. An instance stuck while compensating is marked FAILED
// for an operator. Instances that advanced or ended meanwhile are left alone.
func (o *Orchestrator) CompensateStalled(ctx context.Context, id models.ID, stalledSince time.Time) (bool, error) {
	compensated := false

	err := lock.WithLock(ctx, o.guard, lock.NewTarget(lock.TargetSaga, id.String()), func(ctx context.Context) error {
		instance, err := o.store.Load(ctx, id)
		if err != nil {
			return errors.Wrap(err, "failed to load saga instance")
		}

		if instance.Status.IsTerminal() || !instance.UpdatedAt.Before(stalledSince) {
			return nil
		}

		def, ok := o.definitions[instance.SagaType]
		if !ok {
			return errors.Wrap(ErrUnknownSagaType, instance.SagaType)
		}

		state, err := o.restoreState(def, instance)
		if err != nil {
			return err
		}

		if instance.Status == StatusCompensating {
			o.loggerFor(instance).WithField("updated_at", instance.UpdatedAt).Error("saga stuck compensating, operator intervention required")
			compensated = true

			instance.Status = StatusFailed
			o.publish(ctx, def, instance, events.LifecycleFailed, def.StepName(instance.CurrentStep), instance.FailureCode, instance.FailureCaption,
				map[string]interface{}{"compensation_error": "compensation stalled"})
			return o.finish(ctx, def, instance, state)
		}

		o.loggerFor(instance).WithField("updated_at", instance.UpdatedAt).Warn("saga stalled, forcing compensation")
		compensated = true

		return o.compensate(ctx, def, instance, state, cause{
			code:    CodeSagaTimeout,
			caption: fmt.Sprintf("No reply for step %s", def.StepName(instance.CurrentStep)),
		})
	})

	return compensated, err
}

// Instance returns the persisted instance
func (o *Orchestrator) Instance(ctx context.Context, id models.ID) (*Instance, error) {
	return o.store.Load(ctx, id)
}

// advance runs steps from the current one until a participant command is
// dispatched or the definition ends.
func (o *Orchestrator) advance(ctx context.Context, def *Definition, instance *Instance, state interface{}) error {
	for instance.CurrentStep < len(def.steps) {
		st := &def.steps[instance.CurrentStep]
		logger := o.loggerFor(instance).WithField("step_name", st.name)

		if st.kind == StepLocal {
			if err := st.local(ctx, state); err != nil {
				return o.handleLocalFailure(ctx, def, instance, state, st, err)
			}

			logger.Debug("local step completed")
			o.publish(ctx, def, instance, events.LifecycleProcessed, st.name, commands.CodeSuccess, st.name+" completed", nil)
			instance.CurrentStep++
			continue
		}

		payload, err := st.command(state)
		if err != nil {
			logger.WithError(err).Error("failed to build participant command")
			return o.compensate(ctx, def, instance, state, cause{
				code:    commands.CodeInternalError,
				caption: "Failed to build " + st.endpoint.CommandType,
			})
		}

		cmd, err := commands.NewCommand(st.endpoint, instance.ID, instance.CurrentStep, payload)
		if err != nil {
			logger.WithError(err).Error("failed to build participant command")
			return o.compensate(ctx, def, instance, state, cause{
				code:    commands.CodeInternalError,
				caption: "Failed to build " + st.endpoint.CommandType,
			})
		}
		cmd.ReplyChannel = o.replyChannel

		// persisted before sending so the reply always finds this step
		if err := o.save(ctx, instance, state); err != nil {
			return err
		}

		if err := o.producer.Send(ctx, cmd); err != nil {
			logger.WithError(err).Error("failed to dispatch participant command")
			return o.compensate(ctx, def, instance, state, cause{
				code:    commands.CodeInternalError,
				caption: "Failed to dispatch " + st.endpoint.CommandType,
			})
		}

		logger.WithFields(logrus.Fields{
			"channel":      st.endpoint.Channel,
			"command_type": st.endpoint.CommandType,
		}).Info("participant command dispatched")
		return nil
	}

	return o.complete(ctx, def, instance, state)
}

func (o *Orchestrator) handleLocalFailure(ctx context.Context, def *Definition, instance *Instance, state interface{}, st *step, stepErr error) error {
	logger := o.loggerFor(instance).WithField("step_name", st.name).WithError(stepErr)

	for _, h := range st.exceptions {
		if errors.Is(stepErr, h.target) {
			h.handle(ctx, state, stepErr)
			break
		}
	}

	failure := cause{code: ErrorCode(stepErr), caption: stepErr.Error()}

	for _, target := range st.rollbackOn {
		if errors.Is(stepErr, target) {
			logger.Warn("local step failed, rolling back")
			return o.compensate(ctx, def, instance, state, failure)
		}
	}

	logger.Error("local step failed")
	instance.Status = StatusFailed
	instance.FailureCode = failure.code
	instance.FailureCaption = failure.caption
	o.publish(ctx, def, instance, events.LifecycleFailed, st.name, failure.code, failure.caption, nil)

	if err := o.finish(ctx, def, instance, state); err != nil {
		return err
	}
	return stepErr
}

// compensate dispatches the undo command of every completed participant step
// before the current one, newest first. A failed dispatch stops the walk and
// leaves the instance FAILED for an operator to repair.
func (o *Orchestrator) compensate(ctx context.Context, def *Definition, instance *Instance, state interface{}, c cause) error {
	ctx, span := telemetry.StartSpan(ctx, "saga_compensate",
		trace.WithAttributes(
			attribute.String("saga_id", instance.ID.String()),
			attribute.String("code", c.code),
		),
	)
	defer span.End()

	failedStep := instance.CurrentStep
	logger := o.loggerFor(instance).WithFields(logrus.Fields{"failed_step": failedStep, "code": c.code})

	instance.Status = StatusCompensating
	instance.FailureCode = c.code
	instance.FailureCaption = c.caption
	if err := o.save(ctx, instance, state); err != nil {
		return err
	}

	for i := failedStep - 1; i >= 0; i-- {
		st := &def.steps[i]
		if st.kind != StepParticipant || st.compensation == nil {
			continue
		}

		instance.CurrentStep = i
		if err := o.dispatchCompensation(ctx, instance, state, st, i); err != nil {
			span.RecordError(err)
			logger.WithError(err).WithField("step", i).Error("compensation dispatch failed, operator intervention required")

			instance.Status = StatusFailed
			o.publish(ctx, def, instance, events.LifecycleFailed, st.name, c.code, c.caption, map[string]interface{}{
				"cause":              c.data,
				"compensation_step":  st.name,
				"compensation_error": err.Error(),
			})
			return o.finish(ctx, def, instance, state)
		}

		logger.WithFields(logrus.Fields{
			"step":         i,
			"command_type": st.compensation.endpoint.CommandType,
		}).Info("compensation dispatched")
	}

	instance.Status = StatusCompensated
	o.publish(ctx, def, instance, events.LifecycleFailed, def.StepName(failedStep), c.code, c.caption, c.data)

	return o.finish(ctx, def, instance, state)
}

func (o *Orchestrator) dispatchCompensation(ctx context.Context, instance *Instance, state interface{}, st *step, index int) error {
	payload, err := st.compensation.command(state)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s", st.compensation.endpoint.CommandType)
	}

	cmd, err := commands.NewCommand(st.compensation.endpoint, instance.ID, index, payload)
	if err != nil {
		return err
	}
	cmd.ReplyChannel = o.replyChannel
	cmd.Compensation = true

	return errors.Wrapf(o.producer.Send(ctx, cmd), "failed to send %s", cmd.Type)
}

func (o *Orchestrator) complete(ctx context.Context, def *Definition, instance *Instance, state interface{}) error {
	var result interface{}
	if def.onCompleted != nil {
		var err error
		result, err = def.onCompleted(ctx, state)
		if err != nil {
			o.loggerFor(instance).WithError(err).Error("failed to build saga result")
			return o.compensate(ctx, def, instance, state, cause{
				code:    commands.CodeInternalError,
				caption: "Failed to build saga result",
			})
		}
	}

	instance.Status = StatusCompleted
	o.publish(ctx, def, instance, events.LifecycleSuccess, "", commands.CodeSuccess, "Saga completed", result)

	return o.finish(ctx, def, instance, state)
}

// finish persists a terminal instance and clears the targets recorded for it
func (o *Orchestrator) finish(ctx context.Context, def *Definition, instance *Instance, state interface{}) error {
	logger := o.loggerFor(instance)

	if len(instance.LockedTargets) > 0 {
		logger.WithField("locked_targets", instance.LockedTargets).Debug("clearing recorded targets")
		instance.LockedTargets = nil
	}

	if err := o.save(ctx, instance, state); err != nil {
		return err
	}

	telemetry.RecordCounter(ctx, "saga_instances_total", "Total saga instances reaching a terminal status", 1,
		attribute.String("saga_type", def.sagaType),
		attribute.String("status", string(instance.Status)),
	)
	logger.WithField("failure_code", instance.FailureCode).Info("saga finished")
	return nil
}

func (o *Orchestrator) save(ctx context.Context, instance *Instance, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal saga state")
	}
	instance.State = raw
	instance.UpdatedAt = time.Now().UTC()

	outbox := instance.outbox
	instance.outbox = nil
	if err := o.store.Update(ctx, instance); err != nil {
		return errors.Wrap(err, "failed to save saga instance")
	}

	// events go out only after the transition they report is stored
	for _, event := range outbox {
		if err := o.lifecycle.Publish(ctx, event); err != nil {
			o.loggerFor(instance).WithError(err).WithField("event_type", event.EventType).Warn("failed to publish lifecycle event")
		}
	}
	return nil
}

func (o *Orchestrator) restoreState(def *Definition, instance *Instance) (interface{}, error) {
	state := def.newState()
	if err := json.Unmarshal(instance.State, state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal saga state")
	}
	return state, nil
}

// publish queues a lifecycle event on instance; save sends it
func (o *Orchestrator) publish(ctx context.Context, def *Definition, instance *Instance, kind events.LifecycleKind, action, code, caption string, data interface{}) {
	event := events.NewLifecycleEvent(def.lifecycle, events.LifecycleData{
		JobID:    instance.ID,
		SagaType: instance.SagaType,
		Kind:     kind,
		Step:     instance.CurrentStep,
		Action:   action,
		Code:     code,
		Caption:  caption,
		Data:     data,
	})

	instance.outbox = append(instance.outbox, event)
}

func (o *Orchestrator) loggerFor(instance *Instance) logrus.FieldLogger {
	return o.logger.WithFields(logrus.Fields{
		"saga_id":   instance.ID,
		"saga_type": instance.SagaType,
		"step":      instance.CurrentStep,
		"status":    instance.Status,
	})
}

// ErrorCode extracts the stable business code carried by err, if any
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return commands.CodeInternalError
}
