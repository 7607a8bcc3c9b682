package domain

import (
	"strings"
	"time"

	"github.com/draftea/organization-system/shared/models"
)

// Plan represents the subscription plan of an organization
type Plan string

const (
	PlanBasic    Plan = "BASIC"
	PlanStandard Plan = "STANDARD"
	PlanPremium  Plan = "PREMIUM"
)

// Plans lists every accepted plan
var Plans = []Plan{PlanBasic, PlanStandard, PlanPremium}

// ParsePlan returns the plan named s or ErrInvalidPlan
func ParsePlan(s string) (Plan, error) {
	for _, p := range Plans {
		if string(p) == strings.TrimSpace(s) {
			return p, nil
		}
	}
	return "", WithIDs(ErrInvalidPlan, s)
}

// Organization aggregate root
type Organization struct {
	ID         models.ID           `json:"id"`
	OwnerID    models.ID           `json:"owner_id"`
	Name       string              `json:"name"`
	Plan       Plan                `json:"plan"`
	SiteURL    string              `json:"site_url,omitempty"`
	SagaID     models.ID           `json:"saga_id,omitempty"`
	Users      []*OrganizationUser `json:"users,omitempty"`
	Timestamps models.Timestamps   `json:"timestamps"`
	Version    models.Version      `json:"version"`
}

// OrganizationUser is the membership of one user in one organization
type OrganizationUser struct {
	ID             models.ID `json:"id"`
	OrganizationID models.ID `json:"organization_id"`
	UserID         models.ID `json:"user_id"`
	SagaID         models.ID `json:"saga_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateOrganization factory method. userIDs become the initial members in order.
func CreateOrganization(sagaID, ownerID models.ID, name string, plan Plan, siteURL string, userIDs []models.ID) *Organization {
	org := &Organization{
		ID:         models.GenerateUUID(),
		OwnerID:    ownerID,
		Name:       name,
		Plan:       plan,
		SiteURL:    siteURL,
		SagaID:     sagaID,
		Timestamps: models.NewTimestamps(),
		Version:    models.NewVersion(),
	}

	org.Users = org.NewMembers(sagaID, userIDs)
	return org
}

// NewMembers builds memberships of userIDs in the organization issued by sagaID
func (o *Organization) NewMembers(sagaID models.ID, userIDs []models.ID) []*OrganizationUser {
	now := time.Now().UTC()
	members := make([]*OrganizationUser, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, &OrganizationUser{
			ID:             models.GenerateUUID(),
			OrganizationID: o.ID,
			UserID:         userID,
			SagaID:         sagaID,
			CreatedAt:      now,
		})
	}
	return members
}

// UserIDs returns the member user ids in membership order
func (o *Organization) UserIDs() []models.ID {
	ids := make([]models.ID, 0, len(o.Users))
	for _, u := range o.Users {
		ids = append(ids, u.UserID)
	}
	return ids
}

// DuplicateIDs returns every id that appears more than once, in first-seen order
func DuplicateIDs(ids []models.ID) []string {
	seen := make(map[models.ID]int, len(ids))
	var duplicates []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			duplicates = append(duplicates, id.String())
		}
	}
	return duplicates
}
