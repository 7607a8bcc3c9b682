package infrastructure

import (
	"context"

	"github.com/draftea/organization-system/shared/events"
	"github.com/draftea/organization-system/shared/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ events.Publisher = (*LifecyclePublisher)(nil)

// LifecyclePublisher records saga lifecycle events in the event store, keyed
// by job id, and then fans them out to downstream consumers. The store write
// is authoritative; a failed fan-out is logged and not retried.
type LifecyclePublisher struct {
	store     events.EventStore
	publisher events.Publisher
	logger    logrus.FieldLogger
}

func NewLifecyclePublisher(store events.EventStore, publisher events.Publisher, logger logrus.FieldLogger) *LifecyclePublisher {
	return &LifecyclePublisher{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (p *LifecyclePublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	byAggregate := make(map[models.ID][]*events.Event)
	var order []models.ID
	for _, event := range evts {
		if _, ok := byAggregate[event.AggregateID]; !ok {
			order = append(order, event.AggregateID)
		}
		byAggregate[event.AggregateID] = append(byAggregate[event.AggregateID], event)
	}

	for _, aggregateID := range order {
		if err := p.store.AppendEvents(ctx, aggregateID, byAggregate[aggregateID]); err != nil {
			return errors.Wrapf(err, "failed to store lifecycle events for %s", aggregateID)
		}
	}

	if p.publisher == nil {
		return nil
	}

	if err := p.publisher.Publish(ctx, evts...); err != nil {
		p.logger.WithError(err).WithField("events", len(evts)).Warn("failed to fan out lifecycle events")
	}
	return nil
}
