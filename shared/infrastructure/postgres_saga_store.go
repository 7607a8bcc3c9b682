package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/models"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ saga.InstanceStore = (*PostgresSagaStore)(nil)

const uniqueViolation = "23505"

const selectInstanceColumns = `
	SELECT id, saga_type, current_step, status, state, locked_targets,
		   failure_code, failure_caption, version, created_at, updated_at
	FROM saga_instances`

// PostgresSagaStore persists saga instances with optimistic versioning
type PostgresSagaStore struct {
	db *sqlx.DB
}

func NewPostgresSagaStore(db *sqlx.DB) *PostgresSagaStore {
	return &PostgresSagaStore{db: db}
}

type postgresInstance struct {
	ID             string    `db:"id"`
	SagaType       string    `db:"saga_type"`
	CurrentStep    int       `db:"current_step"`
	Status         string    `db:"status"`
	State          []byte    `db:"state"`
	LockedTargets  []byte    `db:"locked_targets"`
	FailureCode    string    `db:"failure_code"`
	FailureCaption string    `db:"failure_caption"`
	Version        int       `db:"version"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (s *PostgresSagaStore) Create(ctx context.Context, instance *saga.Instance) error {
	row, err := toPostgresInstance(instance)
	if err != nil {
		return err
	}
	row.Version = 1

	query := `
		INSERT INTO saga_instances (
			id, saga_type, current_step, status, state, locked_targets,
			failure_code, failure_caption, version, created_at, updated_at
		) VALUES (
			:id, :saga_type, :current_step, :status, :state, :locked_targets,
			:failure_code, :failure_caption, :version, :created_at, :updated_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return saga.ErrInstanceExists
		}
		return errors.Wrap(err, "failed to insert saga instance")
	}

	instance.Version = 1
	return nil
}

func (s *PostgresSagaStore) Load(ctx context.Context, id models.ID) (*saga.Instance, error) {
	var row postgresInstance
	err := s.db.GetContext(ctx, &row, selectInstanceColumns+" WHERE id = $1", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, saga.ErrInstanceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saga instance")
	}

	return toSagaInstance(&row)
}

func (s *PostgresSagaStore) Update(ctx context.Context, instance *saga.Instance) error {
	row, err := toPostgresInstance(instance)
	if err != nil {
		return err
	}

	query := `
		UPDATE saga_instances SET
			current_step = :current_step,
			status = :status,
			state = :state,
			locked_targets = :locked_targets,
			failure_code = :failure_code,
			failure_caption = :failure_caption,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to update saga instance")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}

	if affected == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM saga_instances WHERE id = $1)", row.ID); err != nil {
			return errors.Wrap(err, "failed to check saga instance")
		}
		if !exists {
			return saga.ErrInstanceNotFound
		}
		return errors.Wrapf(saga.ErrVersionConflict, "saga %s at version %d", row.ID, row.Version)
	}

	instance.Version++
	return nil
}

func (s *PostgresSagaStore) ListStalled(ctx context.Context, before time.Time, limit int) ([]*saga.Instance, error) {
	active := []string{string(saga.StatusStarted), string(saga.StatusCompensating)}

	var rows []postgresInstance
	err := s.db.SelectContext(ctx, &rows,
		selectInstanceColumns+" WHERE status = ANY($1) AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3",
		pq.Array(active), before, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stalled saga instances")
	}

	instances := make([]*saga.Instance, 0, len(rows))
	for i := range rows {
		instance, err := toSagaInstance(&rows[i])
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func toPostgresInstance(instance *saga.Instance) (*postgresInstance, error) {
	targets := instance.LockedTargets
	if targets == nil {
		targets = []lock.Target{}
	}

	lockedTargets, err := json.Marshal(targets)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal locked targets")
	}

	state := []byte(instance.State)
	if len(state) == 0 {
		state = []byte("{}")
	}

	return &postgresInstance{
		ID:             instance.ID.String(),
		SagaType:       instance.SagaType,
		CurrentStep:    instance.CurrentStep,
		Status:         string(instance.Status),
		State:          state,
		LockedTargets:  lockedTargets,
		FailureCode:    instance.FailureCode,
		FailureCaption: instance.FailureCaption,
		Version:        instance.Version,
		CreatedAt:      instance.CreatedAt,
		UpdatedAt:      instance.UpdatedAt,
	}, nil
}

func toSagaInstance(row *postgresInstance) (*saga.Instance, error) {
	var targets []lock.Target
	if len(row.LockedTargets) > 0 {
		if err := json.Unmarshal(row.LockedTargets, &targets); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal locked targets")
		}
	}
	if len(targets) == 0 {
		targets = nil
	}

	return &saga.Instance{
		ID:             models.ID(row.ID),
		SagaType:       row.SagaType,
		CurrentStep:    row.CurrentStep,
		Status:         saga.Status(row.Status),
		State:          json.RawMessage(row.State),
		LockedTargets:  targets,
		FailureCode:    row.FailureCode,
		FailureCaption: row.FailureCaption,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}
