package application

import (
	"context"
	"sync"
	"testing"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/organization-service/mocks"
	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentCommands struct {
	mu   sync.Mutex
	sent []*commands.Command
}

func (p *sentCommands) Send(_ context.Context, cmd *commands.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, cmd)
	return nil
}

func (p *sentCommands) all() []*commands.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*commands.Command(nil), p.sent...)
}

func (p *sentCommands) last(t *testing.T) *commands.Command {
	t.Helper()
	sent := p.all()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

type lifecycleRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *lifecycleRecorder) Publish(_ context.Context, evts ...*events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evts...)
	return nil
}

func (r *lifecycleRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.EventType
	}
	return types
}

func (r *lifecycleRecorder) last(t *testing.T) events.LifecycleData {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.events)
	data, ok := r.events[len(r.events)-1].Data.(events.LifecycleData)
	require.True(t, ok)
	return data
}

type harness struct {
	repo         *mocks.MockOrganizationRepository
	producer     *sentCommands
	lifecycle    *lifecycleRecorder
	orchestrator *saga.Orchestrator
	create       *CreateOrganization
	addUsers     *AddUsersToOrganization
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		repo:      mocks.NewMockOrganizationRepository(t),
		producer:  &sentCommands{},
		lifecycle: &lifecycleRecorder{},
	}

	validator := NewLocalValidator(h.repo)
	createSaga := NewCreateOrganizationSaga(validator)
	addUsersSaga := NewAddUsersToOrganizationSaga(validator)

	h.orchestrator = saga.NewOrchestrator(saga.NewMemoryStore(), h.producer, h.lifecycle,
		[]*saga.Definition{createSaga, addUsersSaga},
		saga.WithLogger(logging.Discard()),
		saga.WithReplyChannel(commands.ChannelOrganization),
	)
	h.create = NewCreateOrganization(h.orchestrator, createSaga)
	h.addUsers = NewAddUsersToOrganization(h.orchestrator, addUsersSaga)

	return h
}

func (h *harness) instance(t *testing.T, jobID string) *saga.Instance {
	t.Helper()
	instance, err := h.orchestrator.Instance(context.Background(), models.ID(jobID))
	require.NoError(t, err)
	return instance
}

func (h *harness) succeed(t *testing.T, data interface{}) {
	t.Helper()
	reply, err := commands.Success(h.producer.last(t), "ok", data)
	require.NoError(t, err)
	require.NoError(t, h.orchestrator.HandleReply(context.Background(), reply))
}

func (h *harness) fail(t *testing.T, code string, data interface{}) {
	t.Helper()
	reply := commands.NewFailure(code, "rejected", data).Reply(h.producer.last(t))
	require.NoError(t, h.orchestrator.HandleReply(context.Background(), reply))
}

func (h *harness) startCreate(t *testing.T) string {
	t.Helper()
	resp, err := h.create.Execute(context.Background(), &CreateOrganizationCommand{
		OperatorID: "owner",
		Name:       "Acme",
		Plan:       "STANDARD",
		Users:      []string{"u1", "u2"},
	})
	require.NoError(t, err)
	return resp.JobID
}

var (
	createdOrganization = CreateOrganizationAndAddInitialOrganizationUserReply{
		Organization: OrganizationDTO{ID: "org-1", OwnerID: "owner", Name: "Acme", Plan: "STANDARD"},
		Users: []OrganizationUserDTO{
			{ID: "ou-0", OrganizationID: "org-1", UserID: "owner"},
			{ID: "ou-1", OrganizationID: "org-1", UserID: "u1"},
			{ID: "ou-2", OrganizationID: "org-1", UserID: "u2"},
		},
	}
	createdTeam = CreateDefaultTeamAndAddInitialDefaultTeamUserReply{
		Team: TeamDTO{ID: "team-1", OrganizationID: "org-1", Name: "default", IsDefault: true},
	}
)

func TestCreateOrganizationSaga_Completes(t *testing.T) {
	h := newHarness(t)
	jobID := h.startCreate(t)

	validate := h.producer.last(t)
	assert.Equal(t, UserExistValidate.CommandType, validate.Type)
	assert.Equal(t, commands.ChannelUserProfile, validate.Channel)
	assert.Equal(t, commands.ChannelOrganization, validate.ReplyChannel)
	assert.Equal(t, 1, validate.Step)

	var checked UserIDsPayload
	require.NoError(t, validate.Decode(&checked))
	assert.Equal(t, []string{"owner", "u1", "u2"}, checked.UserIDs)

	h.succeed(t, nil)

	create := h.producer.last(t)
	assert.Equal(t, CreateOrganizationAndAddInitialOrganizationUser.CommandType, create.Type)
	var createPayload CreateOrganizationAndAddInitialOrganizationUserCommand
	require.NoError(t, create.Decode(&createPayload))
	assert.Equal(t, "Acme", createPayload.Name)
	assert.Len(t, createPayload.Users, 3)

	reply, err := commands.Success(create, "created", createdOrganization)
	require.NoError(t, err)
	reply.WithLockedTarget(lock.NewTarget(lock.TargetOrganization, "org-1"))
	require.NoError(t, h.orchestrator.HandleReply(context.Background(), reply))

	assert.Equal(t, []lock.Target{lock.NewTarget(lock.TargetOrganization, "org-1")}, h.instance(t, jobID).LockedTargets)

	team := h.producer.last(t)
	assert.Equal(t, CreateDefaultTeamAndAddInitialDefaultTeamUser.CommandType, team.Type)
	var teamPayload CreateDefaultTeamAndAddInitialDefaultTeamUserCommand
	require.NoError(t, team.Decode(&teamPayload))
	assert.Equal(t, "org-1", teamPayload.OrganizationID)

	h.succeed(t, createdTeam)

	instance := h.instance(t, jobID)
	assert.Equal(t, saga.StatusCompleted, instance.Status)
	assert.Empty(t, instance.LockedTargets)

	assert.Equal(t, []string{
		"organization.created.begin",
		"organization.created.processed",
		"organization.created.processed",
		"organization.created.processed",
		"organization.created.processed",
		"organization.created.success",
	}, h.lifecycle.types())

	result, ok := h.lifecycle.last(t).Data.(CreateOrganizationResult)
	require.True(t, ok)
	assert.Equal(t, "org-1", result.Organization.ID)
	assert.Len(t, result.Users, 3)
	assert.Equal(t, "team-1", result.Team.ID)
}

func TestCreateOrganizationSaga_LocalValidationRollsBack(t *testing.T) {
	tests := []struct {
		name     string
		plan     string
		users    []string
		wantCode string
	}{
		{name: "invalid plan", plan: "ENTERPRISE", users: []string{"u1"}, wantCode: domain.CodeInvalidPlan},
		{name: "duplicate users", plan: "BASIC", users: []string{"u1", "u1"}, wantCode: domain.CodeDuplicateUser},
		{name: "owner in users", plan: "PREMIUM", users: []string{"u1", "owner"}, wantCode: domain.CodeOwnerInUsers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			resp, err := h.create.Execute(context.Background(), &CreateOrganizationCommand{
				OperatorID: "owner",
				Name:       "Acme",
				Plan:       tt.plan,
				Users:      tt.users,
			})
			require.NoError(t, err)
			require.NotEmpty(t, resp.JobID)

			instance := h.instance(t, resp.JobID)
			assert.Equal(t, saga.StatusCompensated, instance.Status)
			assert.Equal(t, tt.wantCode, instance.FailureCode)
			assert.Empty(t, h.producer.all())

			assert.Equal(t, []string{"organization.created.begin", "organization.created.failed"}, h.lifecycle.types())
			failed := h.lifecycle.last(t)
			assert.Equal(t, tt.wantCode, failed.Code)
			assert.Equal(t, StepValidateOrganization, failed.Action)
		})
	}
}

func TestCreateOrganizationSaga_TeamFailureUndoesOrganization(t *testing.T) {
	h := newHarness(t)
	jobID := h.startCreate(t)

	h.succeed(t, nil)
	h.succeed(t, createdOrganization)
	h.fail(t, commands.CodeInternalError, nil)

	undo := h.producer.last(t)
	assert.Equal(t, UndoCreateOrganizationAndAddInitialOrganizationUser.CommandType, undo.Type)
	assert.True(t, undo.Compensation)
	assert.Equal(t, 2, undo.Step)

	var payload UndoCreateOrganizationAndAddInitialOrganizationUserCommand
	require.NoError(t, undo.Decode(&payload))
	assert.Equal(t, "org-1", payload.OrganizationID)

	// four forward commands were never followed by a team undo
	assert.Len(t, h.producer.all(), 4)

	instance := h.instance(t, jobID)
	assert.Equal(t, saga.StatusCompensated, instance.Status)
	assert.Equal(t, commands.CodeInternalError, instance.FailureCode)

	failed := h.lifecycle.last(t)
	assert.Equal(t, events.LifecycleFailed, failed.Kind)
	assert.Equal(t, StepCreateDefaultTeamAndAddInitialDefaultTeamUser, failed.Action)
}

func TestCreateOrganizationSaga_UserValidationFailureSendsNoUndo(t *testing.T) {
	h := newHarness(t)
	jobID := h.startCreate(t)

	h.fail(t, domain.CodeNotExistUser, UserIDsPayload{UserIDs: []string{"u2"}})

	assert.Len(t, h.producer.all(), 1)
	instance := h.instance(t, jobID)
	assert.Equal(t, saga.StatusCompensated, instance.Status)
	assert.Equal(t, domain.CodeNotExistUser, instance.FailureCode)
}

func TestCreateOrganizationSaga_DiscardsStaleReply(t *testing.T) {
	h := newHarness(t)
	jobID := h.startCreate(t)

	validate := h.producer.last(t)
	h.succeed(t, nil)

	// redelivered reply for the validation step
	stale, err := commands.Success(validate, "ok", nil)
	require.NoError(t, err)
	require.NoError(t, h.orchestrator.HandleReply(context.Background(), stale))

	assert.Len(t, h.producer.all(), 2)
	assert.Equal(t, 2, h.instance(t, jobID).CurrentStep)
}

func TestAddUsersSaga_Completes(t *testing.T) {
	h := newHarness(t)
	h.repo.EXPECT().CountByIDs(mock.Anything, []models.ID{"org-1"}).Return(1, nil).Once()

	resp, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{
		OperatorID:     "owner",
		OrganizationID: "org-1",
		Users:          []string{"u3", "u4"},
	})
	require.NoError(t, err)

	assert.Equal(t, UserProfileExistValidate.CommandType, h.producer.last(t).Type)
	h.succeed(t, nil)

	add := h.producer.last(t)
	assert.Equal(t, AddUsersOrganization.CommandType, add.Type)
	h.succeed(t, AddUsersOrganizationReply{Users: []OrganizationUserDTO{
		{ID: "ou-3", OrganizationID: "org-1", UserID: "u3"},
		{ID: "ou-4", OrganizationID: "org-1", UserID: "u4"},
	}})

	assert.Equal(t, AddUsersDefaultTeam.CommandType, h.producer.last(t).Type)
	h.succeed(t, AddUsersDefaultTeamReply{Users: []TeamUserDTO{{ID: "tu-3", TeamID: "team-1", UserID: "u3"}}})

	assert.Equal(t, saga.StatusCompleted, h.instance(t, resp.JobID).Status)
	assert.Equal(t, "organization.added_users.success", h.lifecycle.types()[len(h.lifecycle.types())-1])

	result, ok := h.lifecycle.last(t).Data.(AddUsersToOrganizationResult)
	require.True(t, ok)
	assert.Len(t, result.AddedUsers, 2)
}

func TestAddUsersSaga_LocalValidationRollsBack(t *testing.T) {
	tests := []struct {
		name       string
		users      []string
		setupMocks func(*mocks.MockOrganizationRepository)
		wantCode   string
	}{
		{
			name:  "organization not found",
			users: []string{"u3"},
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().CountByIDs(mock.Anything, []models.ID{"org-1"}).Return(0, nil).Once()
			},
			wantCode: domain.CodeNotFound,
		},
		{
			name:       "duplicate users",
			users:      []string{"u3", "u3"},
			setupMocks: func(repo *mocks.MockOrganizationRepository) {},
			wantCode:   domain.CodeDuplicateUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setupMocks(h.repo)

			resp, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{
				OperatorID:     "owner",
				OrganizationID: "org-1",
				Users:          tt.users,
			})
			require.NoError(t, err)

			instance := h.instance(t, resp.JobID)
			assert.Equal(t, saga.StatusCompensated, instance.Status)
			assert.Equal(t, tt.wantCode, instance.FailureCode)
			assert.Empty(t, h.producer.all())
			assert.Equal(t, []string{"organization.added_users.begin", "organization.added_users.failed"}, h.lifecycle.types())
		})
	}
}

func TestAddUsersSaga_RepositoryErrorFailsWithoutRollback(t *testing.T) {
	h := newHarness(t)
	h.repo.EXPECT().CountByIDs(mock.Anything, mock.Anything).Return(0, assert.AnError).Once()

	_, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{
		OperatorID:     "owner",
		OrganizationID: "org-1",
		Users:          []string{"u3"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"organization.added_users.begin", "organization.added_users.failed"}, h.lifecycle.types())
	assert.Equal(t, commands.CodeInternalError, h.lifecycle.last(t).Code)
}

func TestAddUsersSaga_AlreadyMemberFailure(t *testing.T) {
	h := newHarness(t)
	h.repo.EXPECT().CountByIDs(mock.Anything, mock.Anything).Return(1, nil).Once()

	resp, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{
		OperatorID:     "owner",
		OrganizationID: "org-1",
		Users:          []string{"u3", "u4"},
	})
	require.NoError(t, err)

	h.succeed(t, nil)
	h.fail(t, domain.CodeAlreadyExistUser, UserIDsPayload{UserIDs: []string{"u4"}})

	// the user profile check has nothing to undo
	assert.Len(t, h.producer.all(), 2)

	instance := h.instance(t, resp.JobID)
	assert.Equal(t, saga.StatusCompensated, instance.Status)
	assert.Equal(t, domain.CodeAlreadyExistUser, instance.FailureCode)
	assert.Contains(t, string(instance.State), `"already_members":["u4"]`)
}

func TestAddUsersSaga_TeamFailureUndoesMemberships(t *testing.T) {
	h := newHarness(t)
	h.repo.EXPECT().CountByIDs(mock.Anything, mock.Anything).Return(1, nil).Once()

	resp, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{
		OperatorID:     "owner",
		OrganizationID: "org-1",
		Users:          []string{"u3"},
	})
	require.NoError(t, err)

	h.succeed(t, nil)
	h.succeed(t, AddUsersOrganizationReply{Users: []OrganizationUserDTO{{ID: "ou-3", OrganizationID: "org-1", UserID: "u3"}}})
	h.fail(t, commands.CodeTargetLocked, nil)

	undo := h.producer.last(t)
	assert.Equal(t, UndoAddUsersOrganization.CommandType, undo.Type)
	assert.True(t, undo.Compensation)

	var payload UndoAddUsersOrganizationCommand
	require.NoError(t, undo.Decode(&payload))
	assert.Equal(t, "org-1", payload.OrganizationID)
	assert.Equal(t, []string{"ou-3"}, payload.OrganizationUserIDs)

	assert.Equal(t, saga.StatusCompensated, h.instance(t, resp.JobID).Status)
}

func TestCreateOrganization_RejectsIncompleteRequests(t *testing.T) {
	tests := []struct {
		name    string
		command *CreateOrganizationCommand
		wantErr string
	}{
		{name: "missing operator", command: &CreateOrganizationCommand{Name: "Acme", Plan: "BASIC"}, wantErr: "operator ID is required"},
		{name: "missing name", command: &CreateOrganizationCommand{OperatorID: "owner", Name: "  ", Plan: "BASIC"}, wantErr: "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			resp, err := h.create.Execute(context.Background(), tt.command)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, h.lifecycle.types())
		})
	}
}

func TestAddUsersToOrganization_RejectsIncompleteRequests(t *testing.T) {
	h := newHarness(t)

	_, err := h.addUsers.Execute(context.Background(), &AddUsersCommand{OperatorID: "owner", OrganizationID: "org-1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "at least one user is required")
}
