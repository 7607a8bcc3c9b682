package application

import (
	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/commands"
)

// Participant endpoints the organization sagas address
var (
	UserExistValidate        = commands.NewEndpoint(commands.ChannelUserProfile, "UserExistValidate")
	UserProfileExistValidate = commands.NewEndpoint(commands.ChannelUserProfile, "UserProfileExistValidate")

	CreateOrganizationAndAddInitialOrganizationUser     = commands.NewEndpoint(commands.ChannelOrganization, "CreateOrganizationAndAddInitialOrganizationUser")
	UndoCreateOrganizationAndAddInitialOrganizationUser = commands.NewEndpoint(commands.ChannelOrganization, "UndoCreateOrganizationAndAddInitialOrganizationUser")
	AddUsersOrganization                                = commands.NewEndpoint(commands.ChannelOrganization, "AddUsersOrganization")
	UndoAddUsersOrganization                            = commands.NewEndpoint(commands.ChannelOrganization, "UndoAddUsersOrganization")
	OrganizationAndOrganizationUserExistValidate        = commands.NewEndpoint(commands.ChannelOrganization, "OrganizationAndOrganizationUserExistValidate")

	CreateDefaultTeamAndAddInitialDefaultTeamUser     = commands.NewEndpoint(commands.ChannelTeam, "CreateDefaultTeamAndAddInitialDefaultTeamUser")
	UndoCreateDefaultTeamAndAddInitialDefaultTeamUser = commands.NewEndpoint(commands.ChannelTeam, "UndoCreateDefaultTeamAndAddInitialDefaultTeamUser")
	AddUsersDefaultTeam                               = commands.NewEndpoint(commands.ChannelTeam, "AddUsersDefaultTeam")
	UndoAddUsersDefaultTeam                           = commands.NewEndpoint(commands.ChannelTeam, "UndoAddUsersDefaultTeam")
)

// OrganizationDTO is the wire form of an organization
type OrganizationDTO struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Plan    string `json:"plan"`
	SiteURL string `json:"site_url,omitempty"`
}

// OrganizationUserDTO is the wire form of a membership
type OrganizationUserDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
}

// TeamDTO is the team the TEAM participant reports back
type TeamDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	IsDefault      bool   `json:"is_default"`
}

// TeamUserDTO is a team membership the TEAM participant reports back
type TeamUserDTO struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

// UserRef names one user in a command
type UserRef struct {
	UserID string `json:"user_id"`
}

// UserIDsPayload carries user ids, used by validation commands and by
// failure replies that name offending users
type UserIDsPayload struct {
	UserIDs []string `json:"user_ids"`
}

// OrganizationIDsPayload names organizations a failure reply is about
type OrganizationIDsPayload struct {
	OrganizationIDs []string `json:"organization_ids"`
}

type CreateOrganizationAndAddInitialOrganizationUserCommand struct {
	OperatorID string    `json:"operator_id"`
	Name       string    `json:"name"`
	Plan       string    `json:"plan"`
	SiteURL    string    `json:"site_url,omitempty"`
	Users      []UserRef `json:"users"`
}

type CreateOrganizationAndAddInitialOrganizationUserReply struct {
	Organization OrganizationDTO       `json:"organization"`
	Users        []OrganizationUserDTO `json:"users"`
}

type UndoCreateOrganizationAndAddInitialOrganizationUserCommand struct {
	OrganizationID string `json:"organization_id"`
}

type CreateDefaultTeamAndAddInitialDefaultTeamUserCommand struct {
	OperatorID     string    `json:"operator_id"`
	OrganizationID string    `json:"organization_id"`
	Users          []UserRef `json:"users"`
}

type CreateDefaultTeamAndAddInitialDefaultTeamUserReply struct {
	Team TeamDTO `json:"team"`
}

type UndoCreateDefaultTeamAndAddInitialDefaultTeamUserCommand struct {
	TeamID string `json:"team_id"`
}

type AddUsersOrganizationCommand struct {
	OperatorID     string    `json:"operator_id"`
	OrganizationID string    `json:"organization_id"`
	Users          []UserRef `json:"users"`
}

type AddUsersOrganizationReply struct {
	Users []OrganizationUserDTO `json:"users"`
}

type UndoAddUsersOrganizationCommand struct {
	OrganizationID      string   `json:"organization_id"`
	OrganizationUserIDs []string `json:"organization_user_ids"`
}

type AddUsersDefaultTeamCommand struct {
	OperatorID     string    `json:"operator_id"`
	OrganizationID string    `json:"organization_id"`
	Users          []UserRef `json:"users"`
}

type AddUsersDefaultTeamReply struct {
	Users []TeamUserDTO `json:"users"`
}

type UndoAddUsersDefaultTeamCommand struct {
	TeamUserIDs []string `json:"team_user_ids"`
}

type OrganizationAndOrganizationUserExistValidateCommand struct {
	OrganizationID string   `json:"organization_id"`
	UserIDs        []string `json:"user_ids"`
}

func userRefs(ids []string) []UserRef {
	refs := make([]UserRef, len(ids))
	for i, id := range ids {
		refs[i] = UserRef{UserID: id}
	}
	return refs
}

func toOrganizationDTO(org *domain.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:      org.ID.String(),
		OwnerID: org.OwnerID.String(),
		Name:    org.Name,
		Plan:    string(org.Plan),
		SiteURL: org.SiteURL,
	}
}

func toOrganizationUserDTOs(users []*domain.OrganizationUser) []OrganizationUserDTO {
	dtos := make([]OrganizationUserDTO, len(users))
	for i, u := range users {
		dtos[i] = OrganizationUserDTO{
			ID:             u.ID.String(),
			OrganizationID: u.OrganizationID.String(),
			UserID:         u.UserID.String(),
		}
	}
	return dtos
}
