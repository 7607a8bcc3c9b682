package application

import (
	"context"
	"testing"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/organization-service/mocks"
	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var participantSagaID = models.ID("5d1f8b1e-0c5a-4b8e-9d36-7f0e2b1c9a10")

func newParticipantCommand(t *testing.T, endpoint commands.Endpoint, payload interface{}) *commands.Command {
	t.Helper()
	cmd, err := commands.NewCommand(endpoint, participantSagaID, 2, payload)
	require.NoError(t, err)
	cmd.ReplyChannel = "SAGA_REPLY"
	return cmd
}

func newParticipantDispatcher(t *testing.T, locks lock.Manager) (*commands.Dispatcher, *mocks.MockOrganizationRepository) {
	repo := mocks.NewMockOrganizationRepository(t)
	participant := NewOrganizationParticipant(repo, logging.Discard())
	return commands.NewDispatcher(locks, logging.Discard(), participant.Handlers()), repo
}

func existingOrganization() *domain.Organization {
	org := domain.CreateOrganization("other-saga", "owner", "Acme", domain.PlanBasic, "", []models.ID{"owner", "u1"})
	org.ID = "org-1"
	for _, u := range org.Users {
		u.OrganizationID = org.ID
	}
	return org
}

func TestOrganizationParticipant_Handles(t *testing.T) {
	dispatcher, _ := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))

	for _, endpoint := range []commands.Endpoint{
		CreateOrganizationAndAddInitialOrganizationUser,
		UndoCreateOrganizationAndAddInitialOrganizationUser,
		AddUsersOrganization,
		UndoAddUsersOrganization,
		OrganizationAndOrganizationUserExistValidate,
	} {
		assert.True(t, dispatcher.Handles(endpoint.Channel, endpoint.CommandType), endpoint.CommandType)
	}
	assert.False(t, dispatcher.Handles(commands.ChannelTeam, AddUsersDefaultTeam.CommandType))
}

func TestOrganizationParticipant_CreateOrganization(t *testing.T) {
	payload := CreateOrganizationAndAddInitialOrganizationUserCommand{
		OperatorID: "owner",
		Name:       "Acme",
		Plan:       "PREMIUM",
		Users:      []UserRef{{UserID: "owner"}, {UserID: "u1"}},
	}

	tests := []struct {
		name       string
		payload    CreateOrganizationAndAddInitialOrganizationUserCommand
		undone     bool
		setupMocks func(*mocks.MockOrganizationRepository)
		wantCode   string
		wantOrgID  string
	}{
		{
			name:    "creates organization with members",
			payload: payload,
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindBySagaID(mock.Anything, participantSagaID).Return(nil, domain.ErrOrganizationNotFound).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(org *domain.Organization) bool {
					return org.SagaID == participantSagaID &&
						org.OwnerID == "owner" &&
						org.Plan == domain.PlanPremium &&
						len(org.Users) == 2
				})).Return(nil).Once()
			},
			wantCode: domain.CodeSuccess,
		},
		{
			name:    "redelivery returns the organization created by the saga",
			payload: payload,
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindBySagaID(mock.Anything, participantSagaID).Return(existingOrganization(), nil).Once()
			},
			wantCode:  domain.CodeSuccess,
			wantOrgID: "org-1",
		},
		{
			name: "invalid plan",
			payload: CreateOrganizationAndAddInitialOrganizationUserCommand{
				OperatorID: "owner", Name: "Acme", Plan: "GOLD",
			},
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindBySagaID(mock.Anything, participantSagaID).Return(nil, domain.ErrOrganizationNotFound).Once()
			},
			wantCode: domain.CodeInvalidPlan,
		},
		{
			name:    "save failure",
			payload: payload,
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindBySagaID(mock.Anything, participantSagaID).Return(nil, domain.ErrOrganizationNotFound).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(assert.AnError).Once()
			},
			wantCode: commands.CodeInternalError,
		},
		{
			name:       "saga already undone",
			payload:    payload,
			undone:     true,
			setupMocks: func(repo *mocks.MockOrganizationRepository) {},
			wantCode:   domain.CodeSagaUndone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, repo := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))
			repo.EXPECT().IsSagaUndone(mock.Anything, participantSagaID).Return(tt.undone, nil).Once()
			tt.setupMocks(repo)

			cmd := newParticipantCommand(t, CreateOrganizationAndAddInitialOrganizationUser, tt.payload)
			reply := dispatcher.Dispatch(context.Background(), cmd)

			assert.Equal(t, tt.wantCode, reply.Code)
			assert.Equal(t, cmd.Step, reply.Step)
			assert.Equal(t, participantSagaID, reply.CorrelationID)
			if tt.wantCode != domain.CodeSuccess {
				assert.False(t, reply.IsSuccess())
				assert.Nil(t, reply.LockedTarget)
				return
			}

			var data CreateOrganizationAndAddInitialOrganizationUserReply
			require.NoError(t, reply.Decode(&data))
			require.NotNil(t, reply.LockedTarget)
			assert.Equal(t, lock.NewTarget(lock.TargetOrganization, data.Organization.ID), *reply.LockedTarget)
			assert.Len(t, data.Users, 2)
			if tt.wantOrgID != "" {
				assert.Equal(t, tt.wantOrgID, data.Organization.ID)
			}
		})
	}
}

func TestOrganizationParticipant_UndoCreateOrganization(t *testing.T) {
	t.Run("deletes the organization", func(t *testing.T) {
		dispatcher, repo := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))
		repo.EXPECT().Delete(mock.Anything, models.ID("org-1"), participantSagaID).Return(nil).Once()

		cmd := newParticipantCommand(t, UndoCreateOrganizationAndAddInitialOrganizationUser,
			UndoCreateOrganizationAndAddInitialOrganizationUserCommand{OrganizationID: "org-1"})
		reply := dispatcher.Dispatch(context.Background(), cmd)

		assert.True(t, reply.IsSuccess())
		assert.Equal(t, commands.SuccessReplyType(UndoCreateOrganizationAndAddInitialOrganizationUser.CommandType), reply.Type)
	})

	t.Run("held organization fails fast", func(t *testing.T) {
		locks := lock.NewMemoryManager(lock.PolicyFailFast)
		dispatcher, _ := newParticipantDispatcher(t, locks)

		held, err := locks.Acquire(context.Background(), lock.NewTarget(lock.TargetOrganization, "org-1"))
		require.NoError(t, err)
		defer held.Release(context.Background())

		cmd := newParticipantCommand(t, UndoCreateOrganizationAndAddInitialOrganizationUser,
			UndoCreateOrganizationAndAddInitialOrganizationUserCommand{OrganizationID: "org-1"})
		reply := dispatcher.Dispatch(context.Background(), cmd)

		assert.Equal(t, commands.CodeTargetLocked, reply.Code)
	})
}

func TestOrganizationParticipant_AddUsers(t *testing.T) {
	payload := AddUsersOrganizationCommand{
		OperatorID:     "owner",
		OrganizationID: "org-1",
		Users:          []UserRef{{UserID: "u2"}, {UserID: "u3"}},
	}

	tests := []struct {
		name       string
		undone     bool
		setupMocks func(*mocks.MockOrganizationRepository)
		wantCode   string
		wantIDs    []string
		wantUsers  int
	}{
		{
			name: "adds members",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindByID(mock.Anything, models.ID("org-1")).Return(existingOrganization(), nil).Once()
				repo.EXPECT().FindUsersBySagaID(mock.Anything, models.ID("org-1"), participantSagaID).Return(nil, nil).Once()
				repo.EXPECT().FindUsers(mock.Anything, models.ID("org-1"), []models.ID{"u2", "u3"}).Return(nil, nil).Once()
				repo.EXPECT().AddUsers(mock.Anything, mock.MatchedBy(func(users []*domain.OrganizationUser) bool {
					return len(users) == 2 && users[0].SagaID == participantSagaID && users[1].UserID == "u3"
				})).Return(nil).Once()
			},
			wantCode:  domain.CodeSuccess,
			wantUsers: 2,
		},
		{
			name: "redelivery returns members added by the saga",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindByID(mock.Anything, models.ID("org-1")).Return(existingOrganization(), nil).Once()
				repo.EXPECT().FindUsersBySagaID(mock.Anything, models.ID("org-1"), participantSagaID).
					Return([]*domain.OrganizationUser{{ID: "ou-2", OrganizationID: "org-1", UserID: "u2", SagaID: participantSagaID}}, nil).Once()
			},
			wantCode:  domain.CodeSuccess,
			wantUsers: 1,
		},
		{
			name: "already a member",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindByID(mock.Anything, models.ID("org-1")).Return(existingOrganization(), nil).Once()
				repo.EXPECT().FindUsersBySagaID(mock.Anything, models.ID("org-1"), participantSagaID).Return(nil, nil).Once()
				repo.EXPECT().FindUsers(mock.Anything, models.ID("org-1"), []models.ID{"u2", "u3"}).
					Return([]*domain.OrganizationUser{{ID: "ou-3", OrganizationID: "org-1", UserID: "u3", SagaID: "other-saga"}}, nil).Once()
			},
			wantCode: domain.CodeAlreadyExistUser,
			wantIDs:  []string{"u3"},
		},
		{
			name: "organization missing",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().FindByID(mock.Anything, models.ID("org-1")).Return(nil, domain.ErrOrganizationNotFound).Once()
			},
			wantCode: domain.CodeNotFound,
		},
		{
			name:       "saga already undone",
			undone:     true,
			setupMocks: func(repo *mocks.MockOrganizationRepository) {},
			wantCode:   domain.CodeSagaUndone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, repo := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))
			repo.EXPECT().IsSagaUndone(mock.Anything, participantSagaID).Return(tt.undone, nil).Once()
			tt.setupMocks(repo)

			reply := dispatcher.Dispatch(context.Background(), newParticipantCommand(t, AddUsersOrganization, payload))
			assert.Equal(t, tt.wantCode, reply.Code)

			switch {
			case tt.wantIDs != nil:
				var data UserIDsPayload
				require.NoError(t, reply.Decode(&data))
				assert.Equal(t, tt.wantIDs, data.UserIDs)
			case tt.wantUsers > 0:
				var data AddUsersOrganizationReply
				require.NoError(t, reply.Decode(&data))
				assert.Len(t, data.Users, tt.wantUsers)
			}
		})
	}
}

func TestOrganizationParticipant_UndoAddUsers(t *testing.T) {
	dispatcher, repo := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))
	repo.EXPECT().DeleteUsers(mock.Anything, []models.ID{"ou-2", "ou-3"}, participantSagaID).Return(nil).Once()

	cmd := newParticipantCommand(t, UndoAddUsersOrganization, UndoAddUsersOrganizationCommand{
		OrganizationID:      "org-1",
		OrganizationUserIDs: []string{"ou-2", "ou-3"},
	})
	cmd.Compensation = true

	reply := dispatcher.Dispatch(context.Background(), cmd)
	assert.True(t, reply.IsSuccess())
	assert.True(t, reply.Compensation)
}

func TestOrganizationParticipant_ExistValidate(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*mocks.MockOrganizationRepository)
		wantCode   string
		wantUsers  []string
	}{
		{
			name: "organization and users exist",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().CountByIDs(mock.Anything, []models.ID{"org-1"}).Return(1, nil).Once()
				repo.EXPECT().FindUsers(mock.Anything, models.ID("org-1"), []models.ID{"owner", "u1"}).
					Return(existingOrganization().Users, nil).Once()
			},
			wantCode: domain.CodeSuccess,
		},
		{
			name: "organization missing",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().CountByIDs(mock.Anything, []models.ID{"org-1"}).Return(0, nil).Once()
			},
			wantCode: domain.CodeNotFound,
		},
		{
			name: "user is not a member",
			setupMocks: func(repo *mocks.MockOrganizationRepository) {
				repo.EXPECT().CountByIDs(mock.Anything, []models.ID{"org-1"}).Return(1, nil).Once()
				repo.EXPECT().FindUsers(mock.Anything, models.ID("org-1"), []models.ID{"owner", "u1"}).
					Return(existingOrganization().Users[:1], nil).Once()
			},
			wantCode:  domain.CodeNotExistUser,
			wantUsers: []string{"u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, repo := newParticipantDispatcher(t, lock.NewMemoryManager(lock.PolicyBlock))
			tt.setupMocks(repo)

			cmd := newParticipantCommand(t, OrganizationAndOrganizationUserExistValidate, OrganizationAndOrganizationUserExistValidateCommand{
				OrganizationID: "org-1",
				UserIDs:        []string{"owner", "u1"},
			})
			reply := dispatcher.Dispatch(context.Background(), cmd)

			assert.Equal(t, tt.wantCode, reply.Code)
			if tt.wantUsers != nil {
				var data UserIDsPayload
				require.NoError(t, reply.Decode(&data))
				assert.Equal(t, tt.wantUsers, data.UserIDs)
			}
		})
	}
}

// memoryRepository is a stateful OrganizationRepository for redelivery scenarios
type memoryRepository struct {
	organizations map[models.ID]*domain.Organization
	users         map[models.ID]*domain.OrganizationUser
	undone        map[models.ID]bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		organizations: map[models.ID]*domain.Organization{},
		users:         map[models.ID]*domain.OrganizationUser{},
		undone:        map[models.ID]bool{},
	}
}

func (r *memoryRepository) Save(_ context.Context, org *domain.Organization) error {
	r.organizations[org.ID] = org
	for _, u := range org.Users {
		r.users[u.ID] = u
	}
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id models.ID) (*domain.Organization, error) {
	if org, ok := r.organizations[id]; ok {
		return org, nil
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r *memoryRepository) FindBySagaID(_ context.Context, sagaID models.ID) (*domain.Organization, error) {
	for _, org := range r.organizations {
		if org.SagaID == sagaID {
			return org, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r *memoryRepository) List(context.Context, domain.ListFilter) ([]*domain.Organization, error) {
	return nil, nil
}

func (r *memoryRepository) Delete(_ context.Context, id, sagaID models.ID) error {
	delete(r.organizations, id)
	for uid, u := range r.users {
		if u.OrganizationID == id {
			delete(r.users, uid)
		}
	}
	r.undone[sagaID] = true
	return nil
}

func (r *memoryRepository) CountByIDs(_ context.Context, ids []models.ID) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := r.organizations[id]; ok {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) FindUsers(_ context.Context, organizationID models.ID, userIDs []models.ID) ([]*domain.OrganizationUser, error) {
	var found []*domain.OrganizationUser
	for _, u := range r.users {
		for _, id := range userIDs {
			if u.OrganizationID == organizationID && u.UserID == id {
				found = append(found, u)
			}
		}
	}
	return found, nil
}

func (r *memoryRepository) FindUsersBySagaID(_ context.Context, organizationID, sagaID models.ID) ([]*domain.OrganizationUser, error) {
	var found []*domain.OrganizationUser
	for _, u := range r.users {
		if u.OrganizationID == organizationID && u.SagaID == sagaID {
			found = append(found, u)
		}
	}
	return found, nil
}

func (r *memoryRepository) AddUsers(_ context.Context, users []*domain.OrganizationUser) error {
	for _, u := range users {
		r.users[u.ID] = u
	}
	return nil
}

func (r *memoryRepository) DeleteUsers(_ context.Context, ids []models.ID, sagaID models.ID) error {
	for _, id := range ids {
		delete(r.users, id)
	}
	r.undone[sagaID] = true
	return nil
}

func (r *memoryRepository) IsSagaUndone(_ context.Context, sagaID models.ID) (bool, error) {
	return r.undone[sagaID], nil
}

func TestOrganizationParticipant_RedeliveryAfterUndo(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		repo := newMemoryRepository()
		participant := NewOrganizationParticipant(repo, logging.Discard())
		dispatcher := commands.NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), participant.Handlers())

		create := newParticipantCommand(t, CreateOrganizationAndAddInitialOrganizationUser, CreateOrganizationAndAddInitialOrganizationUserCommand{
			OperatorID: "owner",
			Name:       "Acme",
			Plan:       "BASIC",
			Users:      []UserRef{{UserID: "owner"}},
		})
		reply := dispatcher.Dispatch(context.Background(), create)
		require.True(t, reply.IsSuccess())

		var created CreateOrganizationAndAddInitialOrganizationUserReply
		require.NoError(t, reply.Decode(&created))

		undo := newParticipantCommand(t, UndoCreateOrganizationAndAddInitialOrganizationUser,
			UndoCreateOrganizationAndAddInitialOrganizationUserCommand{OrganizationID: created.Organization.ID})
		undo.Compensation = true
		require.True(t, dispatcher.Dispatch(context.Background(), undo).IsSuccess())
		require.Empty(t, repo.organizations)

		reply = dispatcher.Dispatch(context.Background(), create)
		assert.Equal(t, domain.CodeSagaUndone, reply.Code)
		assert.Empty(t, repo.organizations)
		assert.Empty(t, repo.users)
	})

	t.Run("add users", func(t *testing.T) {
		repo := newMemoryRepository()
		require.NoError(t, repo.Save(context.Background(), existingOrganization()))
		participant := NewOrganizationParticipant(repo, logging.Discard())
		dispatcher := commands.NewDispatcher(lock.NewMemoryManager(lock.PolicyBlock), logging.Discard(), participant.Handlers())

		add := newParticipantCommand(t, AddUsersOrganization, AddUsersOrganizationCommand{
			OperatorID:     "owner",
			OrganizationID: "org-1",
			Users:          []UserRef{{UserID: "u2"}},
		})
		reply := dispatcher.Dispatch(context.Background(), add)
		require.True(t, reply.IsSuccess())

		var added AddUsersOrganizationReply
		require.NoError(t, reply.Decode(&added))
		require.Len(t, added.Users, 1)

		undo := newParticipantCommand(t, UndoAddUsersOrganization, UndoAddUsersOrganizationCommand{
			OrganizationID:      "org-1",
			OrganizationUserIDs: []string{added.Users[0].ID},
		})
		undo.Compensation = true
		require.True(t, dispatcher.Dispatch(context.Background(), undo).IsSuccess())
		require.Len(t, repo.users, 2)

		reply = dispatcher.Dispatch(context.Background(), add)
		assert.Equal(t, domain.CodeSagaUndone, reply.Code)
		assert.Len(t, repo.users, 2)
	})
}
