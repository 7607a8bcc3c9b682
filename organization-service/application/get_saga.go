package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/pkg/errors"
)

// SagaReader exposes persisted saga instances and their definitions
type SagaReader interface {
	Instance(ctx context.Context, id models.ID) (*saga.Instance, error)
	Definition(sagaType string) (*saga.Definition, bool)
}

// SagaResponse reports the progress of one job
type SagaResponse struct {
	JobID          string        `json:"job_id"`
	SagaType       string        `json:"saga_type"`
	Status         saga.Status   `json:"status"`
	CurrentStep    int           `json:"current_step"`
	StepName       string        `json:"step_name,omitempty"`
	LockedTargets  []lock.Target `json:"locked_targets"`
	FailureCode    string        `json:"failure_code,omitempty"`
	FailureCaption string        `json:"failure_caption,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// LifecycleEventResponse is one recorded lifecycle notification of a job
type LifecycleEventResponse struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// GetSaga use case serves job status and history
type GetSaga struct {
	sagas  SagaReader
	events events.EventStore
}

// NewGetSaga creates a new GetSaga use case
func NewGetSaga(sagas SagaReader, eventStore events.EventStore) *GetSaga {
	return &GetSaga{
		sagas:  sagas,
		events: eventStore,
	}
}

// Execute returns the current status of job id
func (uc *GetSaga) Execute(ctx context.Context, id string) (*SagaResponse, error) {
	instance, err := uc.sagas.Instance(ctx, models.ID(id))
	if err != nil {
		return nil, err
	}

	response := &SagaResponse{
		JobID:          instance.ID.String(),
		SagaType:       instance.SagaType,
		Status:         instance.Status,
		CurrentStep:    instance.CurrentStep,
		LockedTargets:  instance.LockedTargets,
		FailureCode:    instance.FailureCode,
		FailureCaption: instance.FailureCaption,
		CreatedAt:      instance.CreatedAt,
		UpdatedAt:      instance.UpdatedAt,
	}
	if response.LockedTargets == nil {
		response.LockedTargets = []lock.Target{}
	}
	if def, ok := uc.sagas.Definition(instance.SagaType); ok {
		response.StepName = def.StepName(instance.CurrentStep)
	}

	return response, nil
}

// Events returns the lifecycle events recorded for job id, oldest first
func (uc *GetSaga) Events(ctx context.Context, id string) ([]*LifecycleEventResponse, error) {
	if _, err := uc.sagas.Instance(ctx, models.ID(id)); err != nil {
		return nil, err
	}

	evts, err := uc.events.GetEvents(ctx, models.ID(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load lifecycle events")
	}

	responses := make([]*LifecycleEventResponse, 0, len(evts))
	for _, event := range evts {
		data, err := event.MarshalPayload()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode event %s", event.ID)
		}
		responses = append(responses, &LifecycleEventResponse{
			ID:        event.ID.String(),
			EventType: event.EventType,
			Data:      data,
			Timestamp: event.Timestamp,
		})
	}

	return responses, nil
}
