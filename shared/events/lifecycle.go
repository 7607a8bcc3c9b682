package events

import (
	"github.com/draftea/organization-system/shared/models"
)

// LifecycleKind identifies one of the four notifications a saga instance emits.
type LifecycleKind string

const (
	LifecycleBegin     LifecycleKind = "begin"
	LifecycleProcessed LifecycleKind = "processed"
	LifecycleFailed    LifecycleKind = "failed"
	LifecycleSuccess   LifecycleKind = "success"
)

const LifecycleKindKey = "lifecycle_kind"

// LifecycleTypes holds the event types a saga type publishes for each kind.
type LifecycleTypes struct {
	Begin     string
	Processed string
	Failed    string
	Success   string
}

// NewLifecycleTypes derives the four event types from a dotted prefix.
func NewLifecycleTypes(prefix string) LifecycleTypes {
	return LifecycleTypes{
		Begin:     prefix + ".begin",
		Processed: prefix + ".processed",
		Failed:    prefix + ".failed",
		Success:   prefix + ".success",
	}
}

// For returns the event type registered for kind.
func (t LifecycleTypes) For(kind LifecycleKind) string {
	switch kind {
	case LifecycleBegin:
		return t.Begin
	case LifecycleProcessed:
		return t.Processed
	case LifecycleFailed:
		return t.Failed
	case LifecycleSuccess:
		return t.Success
	default:
		return ""
	}
}

// Lifecycle event types
var (
	OrganizationCreatedEvents    = NewLifecycleTypes("organization.created")
	OrganizationAddedUsersEvents = NewLifecycleTypes("organization.added_users")
)

// LifecycleData is the payload of every lifecycle event.
type LifecycleData struct {
	JobID    models.ID     `json:"job_id"`
	SagaType string        `json:"saga_type"`
	Kind     LifecycleKind `json:"kind"`
	Step     int           `json:"step"`
	Action   string        `json:"action,omitempty"`
	Code     string        `json:"code,omitempty"`
	Caption  string        `json:"caption,omitempty"`
	Data     interface{}   `json:"data,omitempty"`
}

// NewLifecycleEvent creates the lifecycle event for a saga instance.
func NewLifecycleEvent(types LifecycleTypes, data LifecycleData) *Event {
	return NewEvent(data.JobID, types.For(data.Kind), data).
		WithCorrelationID(data.JobID).
		WithMetadata(LifecycleKindKey, string(data.Kind))
}
