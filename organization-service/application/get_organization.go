package application

import (
	"context"
	"strings"
	"time"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// OrganizationResponse is the read model of one organization
type OrganizationResponse struct {
	OrganizationDTO
	Users     []OrganizationUserDTO `json:"users"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ListOrganizationsQuery filters the organization listing
type ListOrganizationsQuery struct {
	IDs     []string
	OwnerID string
	Plans   []string
	UserID  string
	Offset  int
	Limit   int
}

// GetOrganization use case serves the organization read model
type GetOrganization struct {
	repository domain.OrganizationRepository
}

// NewGetOrganization creates a new GetOrganization use case
func NewGetOrganization(repository domain.OrganizationRepository) *GetOrganization {
	return &GetOrganization{repository: repository}
}

// Execute returns the organization with id
func (uc *GetOrganization) Execute(ctx context.Context, id string) (*OrganizationResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "get_organization",
		trace.WithAttributes(attribute.String("organization_id", id)),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordOperation(ctx, "get_organization", status, start)
	}()

	if strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "organization ID is required")
	}

	org, err := uc.repository.FindByID(ctx, models.ID(id))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	status = "success"
	return toOrganizationResponse(org), nil
}

// List returns the organizations matching query
func (uc *GetOrganization) List(ctx context.Context, query *ListOrganizationsQuery) ([]*OrganizationResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "list_organizations")
	defer span.End()

	status := "error"
	defer func() {
		recordOperation(ctx, "list_organizations", status, start)
	}()

	filter := domain.ListFilter{
		OwnerID: models.ID(query.OwnerID),
		UserID:  models.ID(query.UserID),
		Offset:  query.Offset,
		Limit:   query.Limit,
	}
	if filter.Offset < 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "offset must not be negative")
	}
	if len(query.IDs) > 0 {
		filter.IDs = toIDs(query.IDs)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	for _, p := range query.Plans {
		plan, err := domain.ParsePlan(p)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidRequest, err.Error())
		}
		filter.Plans = append(filter.Plans, plan)
	}

	orgs, err := uc.repository.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list organizations")
	}

	responses := make([]*OrganizationResponse, len(orgs))
	for i, org := range orgs {
		responses[i] = toOrganizationResponse(org)
	}

	span.SetAttributes(attribute.Int("organizations", len(responses)))
	status = "success"
	return responses, nil
}

func toOrganizationResponse(org *domain.Organization) *OrganizationResponse {
	return &OrganizationResponse{
		OrganizationDTO: toOrganizationDTO(org),
		Users:           toOrganizationUserDTOs(org.Users),
		CreatedAt:       org.Timestamps.CreatedAt,
		UpdatedAt:       org.Timestamps.UpdatedAt,
	}
}
