package application

import (
	"context"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
)

// LocalValidator runs the checks a saga performs before contacting any participant
type LocalValidator struct {
	repository domain.OrganizationRepository
}

func NewLocalValidator(repository domain.OrganizationRepository) *LocalValidator {
	return &LocalValidator{repository: repository}
}

// ValidateCreate checks the plan, that users has no duplicates and that the
// owner is not listed among users
func (v *LocalValidator) ValidateCreate(plan string, ownerID string, users []string) error {
	if _, err := domain.ParsePlan(plan); err != nil {
		return err
	}

	ids := toIDs(users)
	if duplicates := domain.DuplicateIDs(ids); len(duplicates) > 0 {
		return domain.WithIDs(domain.ErrDuplicateUsers, duplicates...)
	}

	for _, id := range ids {
		if id.String() == ownerID {
			return domain.WithIDs(domain.ErrOwnerInUsers, ownerID)
		}
	}

	return nil
}

// ValidateAddUsers checks that users has no duplicates and that the organization exists
func (v *LocalValidator) ValidateAddUsers(ctx context.Context, organizationID string, users []string) error {
	if duplicates := domain.DuplicateIDs(toIDs(users)); len(duplicates) > 0 {
		return domain.WithIDs(domain.ErrDuplicateUsers, duplicates...)
	}

	count, err := v.repository.CountByIDs(ctx, []models.ID{models.ID(organizationID)})
	if err != nil {
		return errors.Wrap(err, "failed to count organizations")
	}
	if count != 1 {
		return domain.WithIDs(domain.ErrOrganizationNotFound, organizationID)
	}

	return nil
}

func toIDs(ids []string) []models.ID {
	out := make([]models.ID, len(ids))
	for i, id := range ids {
		out[i] = models.ID(id)
	}
	return out
}
