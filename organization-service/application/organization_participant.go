package application

import (
	"context"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OrganizationParticipant handles the commands sagas send to the ORGANIZATION channel.
// Forward commands are idempotent per saga id so a redelivered command
// answers with the outcome of its first execution. Once a saga has been
// undone here its forward commands are refused with SAGA_UNDONE.
type OrganizationParticipant struct {
	repository domain.OrganizationRepository
	logger     logrus.FieldLogger
}

// NewOrganizationParticipant creates the ORGANIZATION channel participant
func NewOrganizationParticipant(repository domain.OrganizationRepository, logger logrus.FieldLogger) *OrganizationParticipant {
	return &OrganizationParticipant{
		repository: repository,
		logger:     logger,
	}
}

// Handlers declares every command this participant accepts
func (p *OrganizationParticipant) Handlers() *commands.Handlers {
	return commands.FromChannel(commands.ChannelOrganization).
		OnMessage(CreateOrganizationAndAddInitialOrganizationUser.CommandType, p.createOrganizationAndAddInitialOrganizationUser).
		OnMessage(UndoCreateOrganizationAndAddInitialOrganizationUser.CommandType, p.undoCreateOrganizationAndAddInitialOrganizationUser).
		WithPreLock(p.undoCreateOrganizationPreLock).
		OnMessage(AddUsersOrganization.CommandType, p.addUsersOrganization).
		OnMessage(UndoAddUsersOrganization.CommandType, p.undoAddUsersOrganization).
		WithPreLock(p.undoAddUsersOrganizationPreLock).
		OnMessage(OrganizationAndOrganizationUserExistValidate.CommandType, p.organizationAndOrganizationUserExistValidate).
		Build()
}

func (p *OrganizationParticipant) undoCreateOrganizationPreLock(cmd *commands.Command) (lock.Target, error) {
	var payload UndoCreateOrganizationAndAddInitialOrganizationUserCommand
	if err := cmd.Decode(&payload); err != nil {
		return lock.Target{}, err
	}
	return lock.NewTarget(lock.TargetOrganization, payload.OrganizationID), nil
}

func (p *OrganizationParticipant) undoAddUsersOrganizationPreLock(cmd *commands.Command) (lock.Target, error) {
	var payload UndoAddUsersOrganizationCommand
	if err := cmd.Decode(&payload); err != nil {
		return lock.Target{}, err
	}
	return lock.NewTarget(lock.TargetOrganization, payload.OrganizationID), nil
}

func (p *OrganizationParticipant) createOrganizationAndAddInitialOrganizationUser(ctx context.Context, cmd *commands.Command) (*commands.Reply, error) {
	var payload CreateOrganizationAndAddInitialOrganizationUserCommand
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}

	if err := p.refuseUndone(ctx, cmd); err != nil {
		return nil, err
	}

	org, err := p.repository.FindBySagaID(ctx, cmd.CorrelationID)
	switch {
	case err == nil:
		p.logger.WithFields(logrus.Fields{
			"saga_id":         cmd.CorrelationID,
			"organization_id": org.ID,
		}).Info("organization already created by this saga")
	case errors.Is(err, domain.ErrOrganizationNotFound):
		plan, err := domain.ParsePlan(payload.Plan)
		if err != nil {
			return nil, commands.NewFailure(domain.CodeInvalidPlan, "Invalid plan", nil)
		}

		userIDs := make([]models.ID, len(payload.Users))
		for i, u := range payload.Users {
			userIDs[i] = models.ID(u.UserID)
		}

		org = domain.CreateOrganization(cmd.CorrelationID, models.ID(payload.OperatorID), payload.Name, plan, payload.SiteURL, userIDs)
		if err := p.repository.Save(ctx, org); err != nil {
			return nil, errors.Wrap(err, "failed to save organization")
		}
	default:
		return nil, errors.Wrap(err, "failed to find organization by saga")
	}

	reply, err := commands.Success(cmd, "Organization created successfully", CreateOrganizationAndAddInitialOrganizationUserReply{
		Organization: toOrganizationDTO(org),
		Users:        toOrganizationUserDTOs(org.Users),
	})
	if err != nil {
		return nil, err
	}

	return reply.WithLockedTarget(lock.NewTarget(lock.TargetOrganization, org.ID.String())), nil
}

func (p *OrganizationParticipant) undoCreateOrganizationAndAddInitialOrganizationUser(ctx context.Context, cmd *commands.Command) (*commands.Reply, error) {
	var payload UndoCreateOrganizationAndAddInitialOrganizationUserCommand
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}

	if err := p.repository.Delete(ctx, models.ID(payload.OrganizationID), cmd.CorrelationID); err != nil {
		return nil, errors.Wrap(err, "failed to delete organization")
	}

	return commands.Success(cmd, "Organization creation undone", nil)
}

func (p *OrganizationParticipant) addUsersOrganization(ctx context.Context, cmd *commands.Command) (*commands.Reply, error) {
	var payload AddUsersOrganizationCommand
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}

	if err := p.refuseUndone(ctx, cmd); err != nil {
		return nil, err
	}

	org, err := p.repository.FindByID(ctx, models.ID(payload.OrganizationID))
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, commands.NewFailure(domain.CodeNotFound, "Organization not found",
			OrganizationIDsPayload{OrganizationIDs: []string{payload.OrganizationID}})
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find organization")
	}

	added, err := p.repository.FindUsersBySagaID(ctx, org.ID, cmd.CorrelationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find users added by saga")
	}

	if len(added) == 0 {
		userIDs := make([]models.ID, len(payload.Users))
		for i, u := range payload.Users {
			userIDs[i] = models.ID(u.UserID)
		}

		existing, err := p.repository.FindUsers(ctx, org.ID, userIDs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find organization users")
		}
		if len(existing) > 0 {
			ids := make([]string, len(existing))
			for i, u := range existing {
				ids[i] = u.UserID.String()
			}
			return nil, commands.NewFailure(domain.CodeAlreadyExistUser, "Users already added", UserIDsPayload{UserIDs: ids})
		}

		added = org.NewMembers(cmd.CorrelationID, userIDs)
		if err := p.repository.AddUsers(ctx, added); err != nil {
			return nil, errors.Wrap(err, "failed to add organization users")
		}
	}

	return commands.Success(cmd, "Users added successfully", AddUsersOrganizationReply{
		Users: toOrganizationUserDTOs(added),
	})
}

func (p *OrganizationParticipant) undoAddUsersOrganization(ctx context.Context, cmd *commands.Command) (*commands.Reply, error) {
	var payload UndoAddUsersOrganizationCommand
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}

	ids := make([]models.ID, len(payload.OrganizationUserIDs))
	for i, id := range payload.OrganizationUserIDs {
		ids[i] = models.ID(id)
	}

	if err := p.repository.DeleteUsers(ctx, ids, cmd.CorrelationID); err != nil {
		return nil, errors.Wrap(err, "failed to delete organization users")
	}

	return commands.Success(cmd, "Users removed", nil)
}

func (p *OrganizationParticipant) refuseUndone(ctx context.Context, cmd *commands.Command) error {
	undone, err := p.repository.IsSagaUndone(ctx, cmd.CorrelationID)
	if err != nil {
		return errors.Wrap(err, "failed to check undone saga")
	}
	if !undone {
		return nil
	}

	p.logger.WithFields(logrus.Fields{
		"saga_id":      cmd.CorrelationID,
		"command_type": cmd.Type,
	}).Warn("forward command received after the saga was undone")
	return commands.NewFailure(domain.CodeSagaUndone, "Saga already undone", nil)
}

func (p *OrganizationParticipant) organizationAndOrganizationUserExistValidate(ctx context.Context, cmd *commands.Command) (*commands.Reply, error) {
	var payload OrganizationAndOrganizationUserExistValidateCommand
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}

	organizationID := models.ID(payload.OrganizationID)
	count, err := p.repository.CountByIDs(ctx, []models.ID{organizationID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count organizations")
	}
	if count != 1 {
		return nil, commands.NewFailure(domain.CodeNotFound, "Organization not found",
			OrganizationIDsPayload{OrganizationIDs: []string{payload.OrganizationID}})
	}

	userIDs := toIDs(payload.UserIDs)
	members, err := p.repository.FindUsers(ctx, organizationID, userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find organization users")
	}

	found := make(map[models.ID]bool, len(members))
	for _, m := range members {
		found[m.UserID] = true
	}
	var missing []string
	for _, id := range userIDs {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, commands.NewFailure(domain.CodeNotExistUser, "Organization user not found", UserIDsPayload{UserIDs: missing})
	}

	return commands.Success(cmd, "Organization and users exist", nil)
}
