package lock

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// TargetType names the kind of aggregate a lock guards
type TargetType string

const (
	TargetOrganization TargetType = "ORGANIZATION"
	TargetTeam         TargetType = "TEAM"
	TargetUserProfile  TargetType = "USER_PROFILE"
	TargetSaga         TargetType = "SAGA"
)

// Target is the (type, id) pair a command execution holds exclusively
type Target struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

// NewTarget creates a lock target
func NewTarget(targetType TargetType, id string) Target {
	return Target{Type: targetType, ID: id}
}

// Key returns the string form used by lock backends
func (t Target) Key() string {
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

// IsZero reports whether the target is unset
func (t Target) IsZero() bool {
	return t.Type == "" && t.ID == ""
}

func (t Target) String() string {
	return t.Key()
}

// Policy decides what Acquire does when the target is already held
type Policy string

const (
	PolicyBlock    Policy = "block"
	PolicyFailFast Policy = "fail_fast"
)

// ParsePolicy parses a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyBlock, "":
		return PolicyBlock, nil
	case PolicyFailFast:
		return PolicyFailFast, nil
	default:
		return "", errors.Errorf("unknown lock policy %q", s)
	}
}

var (
	ErrLockHeld = errors.New("lock target is held by another execution")
	ErrNotHeld  = errors.New("lock is not held")
)

// Handle is a held lock. Release must be called exactly once.
type Handle interface {
	Target() Target
	Release(ctx context.Context) error
}

// Manager grants exclusive access to lock targets. A command execution
// acquires at most one target, there is no nesting or upgrading.
type Manager interface {
	Acquire(ctx context.Context, target Target) (Handle, error)
}

// WithLock runs fn while holding target and releases it on every exit path,
// including panics.
func WithLock(ctx context.Context, manager Manager, target Target, fn func(ctx context.Context) error) (err error) {
	handle, err := manager.Acquire(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire lock %s", target)
	}

	defer func() {
		if releaseErr := handle.Release(context.WithoutCancel(ctx)); releaseErr != nil && err == nil {
			err = errors.Wrapf(releaseErr, "failed to release lock %s", target)
		}
	}()

	return fn(ctx)
}
