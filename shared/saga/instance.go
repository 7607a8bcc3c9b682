package saga

import (
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
)

// Status represents the current status of a saga instance
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensated  Status = "COMPENSATED"
	StatusFailed       Status = "FAILED"
)

// IsTerminal reports whether no further step will run
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// Instance is the execution record of one business request
type Instance struct {
	ID             models.ID       `json:"id"`
	SagaType       string          `json:"saga_type"`
	CurrentStep    int             `json:"current_step"`
	Status         Status          `json:"status"`
	State          json.RawMessage `json:"state"`
	LockedTargets  []lock.Target   `json:"locked_targets"`
	FailureCode    string          `json:"failure_code,omitempty"`
	FailureCaption string          `json:"failure_caption,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// lifecycle events waiting for the next successful save
	outbox []*events.Event
}

// AddLockedTarget records target once. Targets are an audit of what the
// participants claimed; the locks themselves are held only while a
// participant handles a command.
func (i *Instance) AddLockedTarget(target lock.Target) {
	for _, t := range i.LockedTargets {
		if t == target {
			return
		}
	}
	i.LockedTargets = append(i.LockedTargets, target)
}

// Clone returns a deep copy
func (i *Instance) Clone() *Instance {
	clone := *i
	clone.outbox = nil
	if i.State != nil {
		clone.State = append(json.RawMessage(nil), i.State...)
	}
	if i.LockedTargets != nil {
		clone.LockedTargets = append([]lock.Target(nil), i.LockedTargets...)
	}
	return &clone
}
