package infrastructure

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ domain.OrganizationRepository = (*PostgresOrganizationRepository)(nil)

// PostgresOrganizationRepository implements OrganizationRepository using PostgreSQL
type PostgresOrganizationRepository struct {
	db *sqlx.DB
}

// NewPostgresOrganizationRepository creates a new PostgresOrganizationRepository
func NewPostgresOrganizationRepository(db *sqlx.DB) *PostgresOrganizationRepository {
	return &PostgresOrganizationRepository{db: db}
}

// postgresOrganization represents organization in database
type postgresOrganization struct {
	ID        string         `db:"id"`
	OwnerID   string         `db:"owner_id"`
	Name      string         `db:"name"`
	Plan      string         `db:"plan"`
	SiteURL   sql.NullString `db:"site_url"`
	SagaID    sql.NullString `db:"saga_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Version   int            `db:"version"`
}

// postgresOrganizationUser represents organization membership in database
type postgresOrganizationUser struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	UserID         string         `db:"user_id"`
	SagaID         sql.NullString `db:"saga_id"`
	CreatedAt      time.Time      `db:"created_at"`
}

const (
	organizationColumns = `id, owner_id, name, plan, site_url, saga_id, created_at, updated_at, version`
	userColumns         = `id, organization_id, user_id, saga_id, created_at`
)

// Save inserts the organization and its initial members in one transaction
func (r *PostgresOrganizationRepository) Save(ctx context.Context, organization *domain.Organization) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO organizations (
			id, owner_id, name, plan, site_url, saga_id,
			created_at, updated_at, version
		) VALUES (
			:id, :owner_id, :name, :plan, :site_url, :saga_id,
			:created_at, :updated_at, :version
		)`

	if _, err := tx.NamedExecContext(ctx, query, toPostgresOrganization(organization)); err != nil {
		return errors.Wrap(err, "failed to insert organization")
	}

	if err := insertUsers(ctx, tx, organization.Users); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit organization")
}

// FindByID finds an organization by ID
func (r *PostgresOrganizationRepository) FindByID(ctx context.Context, id models.ID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return r.findOne(ctx, query, id.String())
}

// FindBySagaID finds the organization created by a saga instance
func (r *PostgresOrganizationRepository) FindBySagaID(ctx context.Context, sagaID models.ID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE saga_id = $1 LIMIT 1`
	return r.findOne(ctx, query, sagaID.String())
}

func (r *PostgresOrganizationRepository) findOne(ctx context.Context, query string, arg string) (*domain.Organization, error) {
	var pgOrg postgresOrganization
	if err := r.db.GetContext(ctx, &pgOrg, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, errors.Wrap(err, "failed to find organization")
	}

	orgs, err := r.withUsers(ctx, []postgresOrganization{pgOrg})
	if err != nil {
		return nil, err
	}
	return orgs[0], nil
}

// List returns organizations matching filter ordered by creation time
func (r *PostgresOrganizationRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Organization, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, "id = ANY("+arg(pq.Array(models.Strings(filter.IDs)))+")")
	}
	if !filter.OwnerID.IsZero() {
		conditions = append(conditions, "owner_id = "+arg(filter.OwnerID.String()))
	}
	if len(filter.Plans) > 0 {
		plans := make([]string, len(filter.Plans))
		for i, p := range filter.Plans {
			plans[i] = string(p)
		}
		conditions = append(conditions, "plan = ANY("+arg(pq.Array(plans))+")")
	}
	if !filter.UserID.IsZero() {
		conditions = append(conditions,
			"id IN (SELECT organization_id FROM organization_users WHERE user_id = "+arg(filter.UserID.String())+")")
	}

	query := `SELECT ` + organizationColumns + ` FROM organizations`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	var pgOrgs []postgresOrganization
	if err := r.db.SelectContext(ctx, &pgOrgs, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list organizations")
	}

	return r.withUsers(ctx, pgOrgs)
}

// Delete removes the organization and its members
func (r *PostgresOrganizationRepository) Delete(ctx context.Context, id, sagaID models.ID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_users WHERE organization_id = $1`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete organization users")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete organization")
	}
	if err := markUndone(ctx, tx, sagaID); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit organization delete")
}

// CountByIDs counts the distinct existing organizations among ids
func (r *PostgresOrganizationRepository) CountByIDs(ctx context.Context, ids []models.ID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM organizations WHERE id = ANY($1)`
	if err := r.db.GetContext(ctx, &count, query, pq.Array(models.Strings(ids))); err != nil {
		return 0, errors.Wrap(err, "failed to count organizations")
	}
	return count, nil
}

// FindUsers returns the memberships of organizationID among userIDs
func (r *PostgresOrganizationRepository) FindUsers(ctx context.Context, organizationID models.ID, userIDs []models.ID) ([]*domain.OrganizationUser, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM organization_users
		WHERE organization_id = $1 AND user_id = ANY($2)
		ORDER BY created_at, id`

	return r.selectUsers(ctx, query, organizationID.String(), pq.Array(models.Strings(userIDs)))
}

// FindUsersBySagaID returns the memberships added to organizationID by sagaID
func (r *PostgresOrganizationRepository) FindUsersBySagaID(ctx context.Context, organizationID, sagaID models.ID) ([]*domain.OrganizationUser, error) {
	query := `
		SELECT ` + userColumns + `
		FROM organization_users
		WHERE organization_id = $1 AND saga_id = $2
		ORDER BY created_at, id`

	return r.selectUsers(ctx, query, organizationID.String(), sagaID.String())
}

// AddUsers inserts memberships in one transaction
func (r *PostgresOrganizationRepository) AddUsers(ctx context.Context, users []*domain.OrganizationUser) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := insertUsers(ctx, tx, users); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit organization users")
}

// DeleteUsers removes memberships by id
func (r *PostgresOrganizationRepository) DeleteUsers(ctx context.Context, ids []models.ID, sagaID models.ID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if len(ids) > 0 {
		query := `DELETE FROM organization_users WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, query, pq.Array(models.Strings(ids))); err != nil {
			return errors.Wrap(err, "failed to delete organization users")
		}
	}
	if err := markUndone(ctx, tx, sagaID); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit organization users delete")
}

// IsSagaUndone reports whether sagaID has a tombstone
func (r *PostgresOrganizationRepository) IsSagaUndone(ctx context.Context, sagaID models.ID) (bool, error) {
	var undone bool
	query := `SELECT EXISTS (SELECT 1 FROM undone_sagas WHERE saga_id = $1)`
	if err := r.db.GetContext(ctx, &undone, query, sagaID.String()); err != nil {
		return false, errors.Wrap(err, "failed to check undone saga")
	}
	return undone, nil
}

// markUndone records a tombstone so forward commands of sagaID redelivered
// after their compensation do not write again
func markUndone(ctx context.Context, tx *sqlx.Tx, sagaID models.ID) error {
	if sagaID.IsZero() {
		return nil
	}

	query := `
		INSERT INTO undone_sagas (saga_id, undone_at)
		VALUES ($1, $2)
		ON CONFLICT (saga_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, sagaID.String(), time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to mark saga undone")
	}
	return nil
}

func insertUsers(ctx context.Context, tx *sqlx.Tx, users []*domain.OrganizationUser) error {
	if len(users) == 0 {
		return nil
	}

	rows := make([]postgresOrganizationUser, len(users))
	for i, u := range users {
		rows[i] = toPostgresUser(u)
	}

	query := `
		INSERT INTO organization_users (
			id, organization_id, user_id, saga_id, created_at
		) VALUES (
			:id, :organization_id, :user_id, :saga_id, :created_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return errors.Wrap(err, "failed to insert organization users")
	}
	return nil
}

func (r *PostgresOrganizationRepository) selectUsers(ctx context.Context, query string, args ...interface{}) ([]*domain.OrganizationUser, error) {
	var rows []postgresOrganizationUser
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to find organization users")
	}

	users := make([]*domain.OrganizationUser, len(rows))
	for i := range rows {
		users[i] = toDomainUser(&rows[i])
	}
	return users, nil
}

// withUsers converts rows to aggregates and loads their members with one query
func (r *PostgresOrganizationRepository) withUsers(ctx context.Context, pgOrgs []postgresOrganization) ([]*domain.Organization, error) {
	orgs := make([]*domain.Organization, len(pgOrgs))
	if len(pgOrgs) == 0 {
		return orgs, nil
	}

	byID := make(map[models.ID]*domain.Organization, len(pgOrgs))
	ids := make([]string, len(pgOrgs))
	for i := range pgOrgs {
		orgs[i] = toDomainOrganization(&pgOrgs[i])
		byID[orgs[i].ID] = orgs[i]
		ids[i] = pgOrgs[i].ID
	}

	query := `
		SELECT ` + userColumns + `
		FROM organization_users
		WHERE organization_id = ANY($1)
		ORDER BY created_at, id`

	users, err := r.selectUsers(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if org, ok := byID[u.OrganizationID]; ok {
			org.Users = append(org.Users, u)
		}
	}

	return orgs, nil
}

func toPostgresOrganization(org *domain.Organization) *postgresOrganization {
	return &postgresOrganization{
		ID:        org.ID.String(),
		OwnerID:   org.OwnerID.String(),
		Name:      org.Name,
		Plan:      string(org.Plan),
		SiteURL:   nullString(org.SiteURL),
		SagaID:    nullString(org.SagaID.String()),
		CreatedAt: org.Timestamps.CreatedAt,
		UpdatedAt: org.Timestamps.UpdatedAt,
		Version:   org.Version.Value,
	}
}

func toDomainOrganization(pgOrg *postgresOrganization) *domain.Organization {
	return &domain.Organization{
		ID:      models.ID(pgOrg.ID),
		OwnerID: models.ID(pgOrg.OwnerID),
		Name:    pgOrg.Name,
		Plan:    domain.Plan(pgOrg.Plan),
		SiteURL: pgOrg.SiteURL.String,
		SagaID:  models.ID(pgOrg.SagaID.String),
		Timestamps: models.Timestamps{
			CreatedAt: pgOrg.CreatedAt,
			UpdatedAt: pgOrg.UpdatedAt,
		},
		Version: models.Version{Value: pgOrg.Version},
	}
}

func toPostgresUser(u *domain.OrganizationUser) postgresOrganizationUser {
	return postgresOrganizationUser{
		ID:             u.ID.String(),
		OrganizationID: u.OrganizationID.String(),
		UserID:         u.UserID.String(),
		SagaID:         nullString(u.SagaID.String()),
		CreatedAt:      u.CreatedAt,
	}
}

func toDomainUser(row *postgresOrganizationUser) *domain.OrganizationUser {
	return &domain.OrganizationUser{
		ID:             models.ID(row.ID),
		OrganizationID: models.ID(row.OrganizationID),
		UserID:         models.ID(row.UserID),
		SagaID:         models.ID(row.SagaID.String),
		CreatedAt:      row.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
