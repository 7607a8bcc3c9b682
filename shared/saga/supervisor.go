package saga

import (
	"context"
	"time"

	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultSweepLimit = 100

// Supervisor periodically forces compensation of instances that have been
// waiting for a participant reply longer than the stall timeout.
type Supervisor struct {
	orchestrator *Orchestrator
	store        InstanceStore
	timeout      time.Duration
	limit        int
	logger       logrus.FieldLogger
	cron         *cron.Cron
	now          func() time.Time
}

func NewSupervisor(orchestrator *Orchestrator, store InstanceStore, timeout time.Duration, logger logrus.FieldLogger) *Supervisor {
	return &Supervisor{
		orchestrator: orchestrator,
		store:        store,
		timeout:      timeout,
		limit:        defaultSweepLimit,
		logger:       logger.WithField("component", "saga_supervisor"),
		now:          time.Now,
	}
}

// Start schedules Sweep with a cron spec such as "@every 30s"
func (s *Supervisor) Start(schedule string) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("stall sweep failed")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid supervisor schedule %q", schedule)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{"schedule": schedule, "timeout": s.timeout}).Info("saga supervisor started")
	return nil
}

// Stop waits for a running sweep to finish
func (s *Supervisor) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep compensates every stalled instance and returns how many it forced
func (s *Supervisor) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.timeout)

	stalled, err := s.store.ListStalled(ctx, cutoff, s.limit)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list stalled sagas")
	}

	telemetry.RecordGauge(ctx, "saga_stalled_instances", "Stalled saga instances found by the last sweep", float64(len(stalled)))

	forced := 0
	for _, instance := range stalled {
		ok, err := s.orchestrator.CompensateStalled(ctx, instance.ID, cutoff)
		if err != nil {
			s.logger.WithError(err).WithField("saga_id", instance.ID).Error("failed to compensate stalled saga")
			continue
		}
		if ok {
			forced++
		}
	}

	if forced > 0 {
		s.logger.WithField("forced", forced).Warn("stalled sagas compensated")
	}
	return forced, nil
}
