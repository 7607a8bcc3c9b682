package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type targetPayload struct {
	OrganizationID string `json:"organization_id"`
}

func newTestCommand(t *testing.T, commandType string, payload interface{}) *Command {
	t.Helper()
	cmd, err := NewCommand(NewEndpoint(ChannelOrganization, commandType), models.GenerateUUID(), 2, payload)
	require.NoError(t, err)
	cmd.ReplyChannel = "ORGANIZATION_REPLY"
	return cmd
}

func TestDispatcher_Dispatch(t *testing.T) {
	handlers := FromChannel(ChannelOrganization).
		OnMessage("Create", func(ctx context.Context, cmd *Command) (*Reply, error) {
			var payload targetPayload
			if err := cmd.Decode(&payload); err != nil {
				return nil, err
			}
			return Success(cmd, "created", map[string]string{"organization_id": payload.OrganizationID})
		}).
		OnMessage("AlreadyExists", func(ctx context.Context, cmd *Command) (*Reply, error) {
			return nil, errors.Wrap(NewFailure("ALREADY_EXIST_USER", "Users already added", []string{"u1"}), "add users")
		}).
		OnMessage("Broken", func(ctx context.Context, cmd *Command) (*Reply, error) {
			return nil, errors.New("connection refused")
		}).
		OnMessage("Panics", func(ctx context.Context, cmd *Command) (*Reply, error) {
			panic("nil map")
		}).
		OnMessage("Silent", func(ctx context.Context, cmd *Command) (*Reply, error) {
			return nil, nil
		}).
		Build()

	dispatcher := NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), handlers)

	tests := []struct {
		name         string
		commandType  string
		expectedType string
		outcome      Outcome
		code         string
		caption      string
	}{
		{
			name:         "success reply",
			commandType:  "Create",
			expectedType: "Create.Success",
			outcome:      OutcomeSuccess,
			code:         CodeSuccess,
			caption:      "created",
		},
		{
			name:         "business failure keeps its code",
			commandType:  "AlreadyExists",
			expectedType: "AlreadyExists.Failure",
			outcome:      OutcomeFailure,
			code:         "ALREADY_EXIST_USER",
			caption:      "Users already added",
		},
		{
			name:         "unexpected error is wrapped as internal",
			commandType:  "Broken",
			expectedType: "Broken.Failure",
			outcome:      OutcomeFailure,
			code:         CodeInternalError,
			caption:      "Internal error",
		},
		{
			name:         "panic is wrapped as internal",
			commandType:  "Panics",
			expectedType: "Panics.Failure",
			outcome:      OutcomeFailure,
			code:         CodeInternalError,
			caption:      "Internal error",
		},
		{
			name:         "nil reply becomes bare success",
			commandType:  "Silent",
			expectedType: "Silent.Success",
			outcome:      OutcomeSuccess,
			code:         CodeSuccess,
		},
		{
			name:         "unknown command",
			commandType:  "Missing",
			expectedType: "Missing.Failure",
			outcome:      OutcomeFailure,
			code:         CodeUnknownCommand,
			caption:      "Unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCommand(t, tt.commandType, targetPayload{OrganizationID: "org-1"})

			reply := dispatcher.Dispatch(context.Background(), cmd)

			require.NotNil(t, reply)
			assert.Equal(t, tt.expectedType, reply.Type)
			assert.Equal(t, tt.outcome, reply.Outcome)
			assert.Equal(t, tt.code, reply.Code)
			assert.Equal(t, tt.caption, reply.Caption)
			assert.Equal(t, cmd.CorrelationID, reply.CorrelationID)
			assert.Equal(t, cmd.Step, reply.Step)
			assert.Equal(t, cmd.ReplyChannel, reply.Channel)
		})
	}
}

func TestDispatcher_FailureReplyCarriesData(t *testing.T) {
	handlers := FromChannel(ChannelOrganization).
		OnMessage("AddUsers", func(ctx context.Context, cmd *Command) (*Reply, error) {
			return nil, NewFailure("ALREADY_EXIST_USER", "Users already added", map[string][]string{"user_ids": {"u1", "u2"}})
		}).
		Build()
	dispatcher := NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), handlers)

	reply := dispatcher.Dispatch(context.Background(), newTestCommand(t, "AddUsers", nil))

	var data map[string][]string
	require.NoError(t, reply.Decode(&data))
	assert.Equal(t, []string{"u1", "u2"}, data["user_ids"])
}

func TestDispatcher_PreLockSerializesSameTarget(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	preLock := func(cmd *Command) (lock.Target, error) {
		var payload targetPayload
		if err := cmd.Decode(&payload); err != nil {
			return lock.Target{}, err
		}
		return lock.NewTarget(lock.TargetOrganization, payload.OrganizationID), nil
	}

	handlers := FromChannel(ChannelOrganization).
		OnMessage("Undo", func(ctx context.Context, cmd *Command) (*Reply, error) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		}).
		WithPreLock(preLock).
		Build()

	dispatcher := NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), handlers)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := dispatcher.Dispatch(context.Background(), newTestCommand(t, "Undo", targetPayload{OrganizationID: "org-1"}))
			assert.True(t, reply.IsSuccess())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestDispatcher_PreLockFailFast(t *testing.T) {
	locks := lock.NewMemoryManager(lock.PolicyFailFast)
	handlers := FromChannel(ChannelOrganization).
		OnMessage("Undo", func(ctx context.Context, cmd *Command) (*Reply, error) {
			return nil, nil
		}).
		WithPreLock(func(cmd *Command) (lock.Target, error) {
			return lock.NewTarget(lock.TargetOrganization, "org-1"), nil
		}).
		Build()
	dispatcher := NewDispatcher(locks, logging.Discard(), handlers)

	held, err := locks.Acquire(context.Background(), lock.NewTarget(lock.TargetOrganization, "org-1"))
	require.NoError(t, err)
	defer held.Release(context.Background())

	reply := dispatcher.Dispatch(context.Background(), newTestCommand(t, "Undo", nil))

	assert.Equal(t, OutcomeFailure, reply.Outcome)
	assert.Equal(t, CodeTargetLocked, reply.Code)
}

func TestHandlersBuilder_Panics(t *testing.T) {
	noop := func(ctx context.Context, cmd *Command) (*Reply, error) { return nil, nil }

	assert.Panics(t, func() {
		FromChannel(ChannelOrganization).OnMessage("A", noop).OnMessage("A", noop)
	})
	assert.Panics(t, func() {
		FromChannel(ChannelOrganization).WithPreLock(func(cmd *Command) (lock.Target, error) {
			return lock.Target{}, nil
		})
	})
	assert.Panics(t, func() {
		FromChannel(ChannelOrganization).OnMessage("A", nil)
	})
	assert.Panics(t, func() {
		first := FromChannel(ChannelOrganization).OnMessage("A", noop).Build()
		second := FromChannel(ChannelOrganization).OnMessage("A", noop).Build()
		NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), first, second)
	})
}
