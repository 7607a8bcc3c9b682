package application

import (
	"context"
	"strings"
	"time"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const AddUsersToOrganizationSagaType = "ADD_USERS_TO_ORGANIZATION"

// Steps of the add users saga
const (
	StepValidateUserProfile  = "VALIDATE_USER_PROFILE"
	StepAddUsersOrganization = "ADD_USERS_ORGANIZATION"
	StepAddUsersDefaultTeam  = "ADD_USERS_DEFAULT_TEAM"
)

// AddUsersToOrganizationState is the persisted state of one add users saga
type AddUsersToOrganizationState struct {
	OperatorID     string   `json:"operator_id"`
	OrganizationID string   `json:"organization_id"`
	Users          []string `json:"users"`

	AddedUsers     []OrganizationUserDTO `json:"added_users,omitempty"`
	TeamUsers      []TeamUserDTO         `json:"team_users,omitempty"`
	AlreadyMembers []string              `json:"already_members,omitempty"`
}

// AddUsersToOrganizationResult is the payload of the success lifecycle event
type AddUsersToOrganizationResult struct {
	AddedUsers []OrganizationUserDTO `json:"added_users"`
}

// NewAddUsersToOrganizationSaga declares the add users saga
func NewAddUsersToOrganizationSaga(validator *LocalValidator) *saga.Definition {
	return saga.NewBuilder[AddUsersToOrganizationState](AddUsersToOrganizationSagaType, events.OrganizationAddedUsersEvents).
		Step(StepValidateOrganization).
		InvokeLocal(func(ctx context.Context, s *AddUsersToOrganizationState) error {
			return validator.ValidateAddUsers(ctx, s.OrganizationID, s.Users)
		}).
		OnExceptionRollback(domain.ErrOrganizationNotFound).
		OnExceptionRollback(domain.ErrDuplicateUsers).
		Step(StepValidateUserProfile).
		InvokeParticipant(UserProfileExistValidate, func(s *AddUsersToOrganizationState) (interface{}, error) {
			return UserIDsPayload{UserIDs: s.Users}, nil
		}).
		OnReply(commands.SuccessReplyType(UserProfileExistValidate.CommandType), acknowledge[AddUsersToOrganizationState]).
		Step(StepAddUsersOrganization).
		InvokeParticipant(AddUsersOrganization, func(s *AddUsersToOrganizationState) (interface{}, error) {
			return AddUsersOrganizationCommand{
				OperatorID:     s.OperatorID,
				OrganizationID: s.OrganizationID,
				Users:          userRefs(s.Users),
			}, nil
		}).
		OnReply(commands.SuccessReplyType(AddUsersOrganization.CommandType),
			func(ctx context.Context, s *AddUsersToOrganizationState, r *commands.Reply) error {
				var payload AddUsersOrganizationReply
				if err := r.Decode(&payload); err != nil {
					return err
				}
				s.AddedUsers = payload.Users
				return nil
			}).
		OnReply(commands.FailureReplyType(AddUsersOrganization.CommandType),
			func(ctx context.Context, s *AddUsersToOrganizationState, r *commands.Reply) error {
				if r.Code != domain.CodeAlreadyExistUser || len(r.Payload) == 0 {
					return nil
				}
				var payload UserIDsPayload
				if err := r.Decode(&payload); err != nil {
					return err
				}
				s.AlreadyMembers = payload.UserIDs
				return nil
			}).
		WithCompensation(UndoAddUsersOrganization, func(s *AddUsersToOrganizationState) (interface{}, error) {
			ids := make([]string, len(s.AddedUsers))
			for i, u := range s.AddedUsers {
				ids[i] = u.ID
			}
			return UndoAddUsersOrganizationCommand{
				OrganizationID:      s.OrganizationID,
				OrganizationUserIDs: ids,
			}, nil
		}).
		Step(StepAddUsersDefaultTeam).
		InvokeParticipant(AddUsersDefaultTeam, func(s *AddUsersToOrganizationState) (interface{}, error) {
			return AddUsersDefaultTeamCommand{
				OperatorID:     s.OperatorID,
				OrganizationID: s.OrganizationID,
				Users:          userRefs(s.Users),
			}, nil
		}).
		OnReply(commands.SuccessReplyType(AddUsersDefaultTeam.CommandType),
			func(ctx context.Context, s *AddUsersToOrganizationState, r *commands.Reply) error {
				var payload AddUsersDefaultTeamReply
				if err := r.Decode(&payload); err != nil {
					return err
				}
				s.TeamUsers = payload.Users
				return nil
			}).
		WithCompensation(UndoAddUsersDefaultTeam, func(s *AddUsersToOrganizationState) (interface{}, error) {
			ids := make([]string, len(s.TeamUsers))
			for i, u := range s.TeamUsers {
				ids[i] = u.ID
			}
			return UndoAddUsersDefaultTeamCommand{TeamUserIDs: ids}, nil
		}).
		OnCompleted(func(ctx context.Context, s *AddUsersToOrganizationState) (interface{}, error) {
			return AddUsersToOrganizationResult{AddedUsers: s.AddedUsers}, nil
		}).
		Build()
}

// AddUsersCommand represents the request to add users to an organization
type AddUsersCommand struct {
	OperatorID     string   `json:"-"`
	OrganizationID string   `json:"-"`
	Users          []string `json:"users"`
}

// AddUsersToOrganization use case starts the add users saga
type AddUsersToOrganization struct {
	sagas      SagaStarter
	definition *saga.Definition
}

// NewAddUsersToOrganization creates a new AddUsersToOrganization use case
func NewAddUsersToOrganization(sagas SagaStarter, definition *saga.Definition) *AddUsersToOrganization {
	return &AddUsersToOrganization{
		sagas:      sagas,
		definition: definition,
	}
}

// Execute starts the saga and returns its job id
func (uc *AddUsersToOrganization) Execute(ctx context.Context, cmd *AddUsersCommand) (*JobResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "begin_add_users_to_organization",
		trace.WithAttributes(
			attribute.String("operator_id", cmd.OperatorID),
			attribute.String("organization_id", cmd.OrganizationID),
			attribute.Int("users", len(cmd.Users)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordOperation(ctx, "begin_add_users_to_organization", status, start)
	}()

	if strings.TrimSpace(cmd.OperatorID) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "operator ID is required")
	}
	if strings.TrimSpace(cmd.OrganizationID) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "organization ID is required")
	}
	if len(cmd.Users) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "at least one user is required")
	}

	state := &AddUsersToOrganizationState{
		OperatorID:     cmd.OperatorID,
		OrganizationID: cmd.OrganizationID,
		Users:          append([]string{}, cmd.Users...),
	}

	jobID, err := uc.sagas.Create(ctx, uc.definition, state)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to start add users saga")
	}

	span.SetAttributes(attribute.String("job_id", jobID.String()))
	status = "success"

	return &JobResponse{JobID: jobID.String()}, nil
}
