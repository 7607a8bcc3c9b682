package application

import (
	"context"
	"strings"
	"time"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const CreateOrganizationSagaType = "CREATE_ORGANIZATION"

// Steps of the create organization saga
const (
	StepValidateOrganization                            = "VALIDATE_ORGANIZATION"
	StepValidateUser                                    = "VALIDATE_USER"
	StepCreateOrganizationAndAddInitialOrganizationUser = "CREATE_ORGANIZATION_AND_ADD_INITIAL_ORGANIZATION_USER"
	StepCreateDefaultTeamAndAddInitialDefaultTeamUser   = "CREATE_DEFAULT_TEAM_AND_ADD_INITIAL_DEFAULT_TEAM_USER"
)

var ErrInvalidRequest = errors.New("invalid request")

// SagaStarter creates saga instances
type SagaStarter interface {
	Create(ctx context.Context, def *saga.Definition, state interface{}) (models.ID, error)
}

// CreateOrganizationState is the persisted state of one create organization saga
type CreateOrganizationState struct {
	OperatorID string   `json:"operator_id"`
	Name       string   `json:"name"`
	Plan       string   `json:"plan"`
	SiteURL    string   `json:"site_url,omitempty"`
	Users      []string `json:"users"`

	Organization      *OrganizationDTO      `json:"organization,omitempty"`
	OrganizationUsers []OrganizationUserDTO `json:"organization_users,omitempty"`
	Team              *TeamDTO              `json:"team,omitempty"`
}

// CreateOrganizationResult is the payload of the success lifecycle event
type CreateOrganizationResult struct {
	Organization *OrganizationDTO      `json:"organization"`
	Users        []OrganizationUserDTO `json:"users"`
	Team         *TeamDTO              `json:"team"`
}

// NewCreateOrganizationSaga declares the create organization saga
func NewCreateOrganizationSaga(validator *LocalValidator) *saga.Definition {
	return saga.NewBuilder[CreateOrganizationState](CreateOrganizationSagaType, events.OrganizationCreatedEvents).
		Step(StepValidateOrganization).
		InvokeLocal(func(ctx context.Context, s *CreateOrganizationState) error {
			if err := validator.ValidateCreate(s.Plan, s.OperatorID, s.Users); err != nil {
				return err
			}
			// the owner is always the first member
			s.Users = append([]string{s.OperatorID}, s.Users...)
			return nil
		}).
		OnExceptionRollback(domain.ErrInvalidPlan).
		OnExceptionRollback(domain.ErrDuplicateUsers).
		OnExceptionRollback(domain.ErrOwnerInUsers).
		Step(StepValidateUser).
		InvokeParticipant(UserExistValidate, func(s *CreateOrganizationState) (interface{}, error) {
			return UserIDsPayload{UserIDs: s.Users}, nil
		}).
		OnReply(commands.SuccessReplyType(UserExistValidate.CommandType), acknowledge[CreateOrganizationState]).
		Step(StepCreateOrganizationAndAddInitialOrganizationUser).
		InvokeParticipant(CreateOrganizationAndAddInitialOrganizationUser, func(s *CreateOrganizationState) (interface{}, error) {
			return CreateOrganizationAndAddInitialOrganizationUserCommand{
				OperatorID: s.OperatorID,
				Name:       s.Name,
				Plan:       s.Plan,
				SiteURL:    s.SiteURL,
				Users:      userRefs(s.Users),
			}, nil
		}).
		OnReply(commands.SuccessReplyType(CreateOrganizationAndAddInitialOrganizationUser.CommandType),
			func(ctx context.Context, s *CreateOrganizationState, r *commands.Reply) error {
				var payload CreateOrganizationAndAddInitialOrganizationUserReply
				if err := r.Decode(&payload); err != nil {
					return err
				}
				s.Organization = &payload.Organization
				s.OrganizationUsers = payload.Users
				return nil
			}).
		WithCompensation(UndoCreateOrganizationAndAddInitialOrganizationUser, func(s *CreateOrganizationState) (interface{}, error) {
			if s.Organization == nil {
				return nil, errors.New("no organization to undo")
			}
			return UndoCreateOrganizationAndAddInitialOrganizationUserCommand{OrganizationID: s.Organization.ID}, nil
		}).
		Step(StepCreateDefaultTeamAndAddInitialDefaultTeamUser).
		InvokeParticipant(CreateDefaultTeamAndAddInitialDefaultTeamUser, func(s *CreateOrganizationState) (interface{}, error) {
			if s.Organization == nil {
				return nil, errors.New("organization not created")
			}
			return CreateDefaultTeamAndAddInitialDefaultTeamUserCommand{
				OperatorID:     s.OperatorID,
				OrganizationID: s.Organization.ID,
				Users:          userRefs(s.Users),
			}, nil
		}).
		OnReply(commands.SuccessReplyType(CreateDefaultTeamAndAddInitialDefaultTeamUser.CommandType),
			func(ctx context.Context, s *CreateOrganizationState, r *commands.Reply) error {
				var payload CreateDefaultTeamAndAddInitialDefaultTeamUserReply
				if err := r.Decode(&payload); err != nil {
					return err
				}
				s.Team = &payload.Team
				return nil
			}).
		WithCompensation(UndoCreateDefaultTeamAndAddInitialDefaultTeamUser, func(s *CreateOrganizationState) (interface{}, error) {
			if s.Team == nil {
				return nil, errors.New("no team to undo")
			}
			return UndoCreateDefaultTeamAndAddInitialDefaultTeamUserCommand{TeamID: s.Team.ID}, nil
		}).
		OnCompleted(func(ctx context.Context, s *CreateOrganizationState) (interface{}, error) {
			return CreateOrganizationResult{
				Organization: s.Organization,
				Users:        s.OrganizationUsers,
				Team:         s.Team,
			}, nil
		}).
		Build()
}

func acknowledge[S any](context.Context, *S, *commands.Reply) error {
	return nil
}

// CreateOrganizationCommand represents the request to create an organization
type CreateOrganizationCommand struct {
	OperatorID string   `json:"-"`
	Name       string   `json:"name"`
	Plan       string   `json:"plan"`
	SiteURL    string   `json:"site_url,omitempty"`
	Users      []string `json:"users"`
}

// JobResponse identifies the saga instance processing a request
type JobResponse struct {
	JobID string `json:"job_id"`
}

// CreateOrganization use case starts the create organization saga
type CreateOrganization struct {
	sagas      SagaStarter
	definition *saga.Definition
}

// NewCreateOrganization creates a new CreateOrganization use case
func NewCreateOrganization(sagas SagaStarter, definition *saga.Definition) *CreateOrganization {
	return &CreateOrganization{
		sagas:      sagas,
		definition: definition,
	}
}

// Execute starts the saga and returns its job id. Business validation runs
// inside the saga, so invalid plans or users still yield a job id whose
// lifecycle ends with a failed event.
func (uc *CreateOrganization) Execute(ctx context.Context, cmd *CreateOrganizationCommand) (*JobResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "begin_create_organization",
		trace.WithAttributes(
			attribute.String("operator_id", cmd.OperatorID),
			attribute.String("plan", cmd.Plan),
			attribute.Int("users", len(cmd.Users)),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordOperation(ctx, "begin_create_organization", status, start)
	}()

	if strings.TrimSpace(cmd.OperatorID) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "operator ID is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "name is required")
	}

	state := &CreateOrganizationState{
		OperatorID: cmd.OperatorID,
		Name:       strings.TrimSpace(cmd.Name),
		Plan:       cmd.Plan,
		SiteURL:    cmd.SiteURL,
		Users:      append([]string{}, cmd.Users...),
	}

	jobID, err := uc.sagas.Create(ctx, uc.definition, state)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to start create organization saga")
	}

	span.SetAttributes(attribute.String("job_id", jobID.String()))
	status = "success"

	return &JobResponse{JobID: jobID.String()}, nil
}

func recordOperation(ctx context.Context, operation, status string, start time.Time) {
	telemetry.RecordCounter(ctx, "organization_operations_total", "Total organization operations", 1,
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	telemetry.RecordHistogram(ctx, "organization_operation_duration_seconds", "Organization operation duration", time.Since(start).Seconds(),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}
