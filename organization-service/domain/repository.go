package domain

import (
	"context"

	"github.com/draftea/organization-system/shared/models"
)

// ListFilter narrows an organization listing. Zero fields do not filter.
type ListFilter struct {
	IDs     []models.ID
	OwnerID models.ID
	Plans   []Plan
	UserID  models.ID
	Offset  int
	Limit   int
}

// OrganizationRepository defines the interface for organization persistence
type OrganizationRepository interface {
	// Save inserts the organization together with its initial members
	Save(ctx context.Context, organization *Organization) error
	// FindByID returns ErrOrganizationNotFound when no row matches
	FindByID(ctx context.Context, id models.ID) (*Organization, error)
	// FindBySagaID returns the organization created by sagaID, or ErrOrganizationNotFound
	FindBySagaID(ctx context.Context, sagaID models.ID) (*Organization, error)
	List(ctx context.Context, filter ListFilter) ([]*Organization, error)
	// Delete removes the organization and its members and marks sagaID as
	// undone. Deleting a missing organization is not an error.
	Delete(ctx context.Context, id, sagaID models.ID) error
	CountByIDs(ctx context.Context, ids []models.ID) (int, error)

	// FindUsers returns the memberships of organizationID among userIDs
	FindUsers(ctx context.Context, organizationID models.ID, userIDs []models.ID) ([]*OrganizationUser, error)
	FindUsersBySagaID(ctx context.Context, organizationID, sagaID models.ID) ([]*OrganizationUser, error)
	AddUsers(ctx context.Context, users []*OrganizationUser) error
	// DeleteUsers removes memberships by id, ignores unknown ids and marks
	// sagaID as undone
	DeleteUsers(ctx context.Context, ids []models.ID, sagaID models.ID) error
	// IsSagaUndone reports whether a compensation of sagaID already ran here
	IsSagaUndone(ctx context.Context, sagaID models.ID) (bool, error)
}
