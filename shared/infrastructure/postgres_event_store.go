package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	_ events.EventStore = (*PostgresEventStore)(nil)

	ErrStreamVersionConflict = errors.New("event stream version conflict")
)

const insertEventQuery = `
	INSERT INTO event_stream (
		id, aggregate_id, event_type, version, data, metadata,
		timestamp, correlation_id, stream_version
	) VALUES (
		:id, :aggregate_id, :event_type, :version, :data, :metadata,
		:timestamp, :correlation_id, :stream_version
	)`

const selectEventColumns = `
	SELECT id, aggregate_id, event_type, version, data, metadata,
		   timestamp, correlation_id, stream_version
	FROM event_stream`

// PostgresEventStore implements EventStore using PostgreSQL
type PostgresEventStore struct {
	db *sqlx.DB
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

type postgresEvent struct {
	ID            string         `db:"id"`
	AggregateID   string         `db:"aggregate_id"`
	EventType     string         `db:"event_type"`
	Version       string         `db:"version"`
	Data          []byte         `db:"data"`
	Metadata      []byte         `db:"metadata"`
	Timestamp     time.Time      `db:"timestamp"`
	CorrelationID sql.NullString `db:"correlation_id"`
	StreamVersion int            `db:"stream_version"`
}

// SaveEvents appends events if the stream is still at expectedVersion
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	version := expectedVersion
	return es.append(ctx, aggregateID, evts, &version)
}

// AppendEvents appends events after whatever the stream holds
func (es *PostgresEventStore) AppendEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event) error {
	return es.append(ctx, aggregateID, evts, nil)
}

func (es *PostgresEventStore) append(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion *int) error {
	if len(evts) == 0 {
		return nil
	}

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion,
		"SELECT COALESCE(MAX(stream_version), 0) FROM event_stream WHERE aggregate_id = $1",
		aggregateID.String())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "failed to get current version")
	}

	if expectedVersion != nil && currentVersion != *expectedVersion {
		return errors.Wrapf(ErrStreamVersionConflict, "expected version %d, got %d", *expectedVersion, currentVersion)
	}

	for i, event := range evts {
		pgEvent, err := es.toPostgres(event, currentVersion+i+1)
		if err != nil {
			return errors.Wrap(err, "failed to convert event")
		}

		if _, err := tx.NamedExecContext(ctx, insertEventQuery, pgEvent); err != nil {
			return errors.Wrap(err, "failed to insert event")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit events")
}

// GetEvents retrieves all events for an aggregate
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	var pgEvents []postgresEvent
	err := es.db.SelectContext(ctx, &pgEvents,
		selectEventColumns+" WHERE aggregate_id = $1 ORDER BY stream_version ASC",
		aggregateID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	return es.toDomainList(pgEvents)
}

// GetEventsByType retrieves events by type with pagination
func (es *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	var pgEvents []postgresEvent
	err := es.db.SelectContext(ctx, &pgEvents,
		selectEventColumns+" WHERE event_type = $1 ORDER BY timestamp ASC LIMIT $2 OFFSET $3",
		eventType, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events by type")
	}

	return es.toDomainList(pgEvents)
}

func (es *PostgresEventStore) toDomainList(pgEvents []postgresEvent) ([]*events.Event, error) {
	result := make([]*events.Event, len(pgEvents))
	for i := range pgEvents {
		event, err := es.toDomain(&pgEvents[i])
		if err != nil {
			return nil, err
		}
		result[i] = event
	}
	return result, nil
}

func (es *PostgresEventStore) toPostgres(event *events.Event, streamVersion int) (*postgresEvent, error) {
	data, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata := make(events.Metadata, len(event.Metadata))
	for k, v := range event.Metadata {
		if isTransientKey(k) {
			continue
		}
		metadata.Set(k, v)
	}

	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &postgresEvent{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Data:          data,
		Metadata:      rawMetadata,
		Timestamp:     event.Timestamp,
		CorrelationID: sql.NullString{String: event.CorrelationID.String(), Valid: !event.CorrelationID.IsZero()},
		StreamVersion: streamVersion,
	}, nil
}

func (es *PostgresEventStore) toDomain(pgEvent *postgresEvent) (*events.Event, error) {
	id, err := models.NewID(pgEvent.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event ID")
	}

	aggregateID, err := models.NewID(pgEvent.AggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid aggregate ID")
	}

	metadata := make(events.Metadata)
	if len(pgEvent.Metadata) > 0 {
		if err := json.Unmarshal(pgEvent.Metadata, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal event metadata")
		}
	}

	var correlationID models.ID
	if pgEvent.CorrelationID.Valid {
		correlationID, err = models.NewID(pgEvent.CorrelationID.String)
		if err != nil {
			return nil, errors.Wrap(err, "invalid correlation ID")
		}
	}

	topic, _ := events.NewTopic(pgEvent.EventType)

	return &events.Event{
		ID:            id,
		AggregateID:   aggregateID,
		Topic:         topic,
		EventType:     pgEvent.EventType,
		Version:       pgEvent.Version,
		Data:          json.RawMessage(pgEvent.Data),
		Metadata:      metadata,
		Timestamp:     pgEvent.Timestamp,
		CorrelationID: correlationID,
	}, nil
}
