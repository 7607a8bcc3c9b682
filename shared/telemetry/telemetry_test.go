package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	tel := &Telemetry{config: Config{ServiceName: "organization-service"}}
	ctx := WithTelemetry(context.Background(), tel)
	assert.Same(t, tel, FromContext(ctx))
}

func TestRecordWithoutTelemetry(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		RecordCounter(ctx, "saga_started_total", "Sagas started", 1, attribute.String("saga_type", "create"))
		RecordHistogram(ctx, "saga_step_duration_seconds", "Step duration", 0.25)
		RecordGauge(ctx, "saga_stalled_instances", "Stalled sagas", 2)
	})

	_, span := StartSpan(ctx, "sweep")
	span.End()
}

func TestInitTelemetry(t *testing.T) {
	tel, shutdown, err := InitTelemetry(context.Background(), OrganizationServiceConfig.WithVersion("test"))
	require.NoError(t, err)
	defer shutdown()

	ctx := WithTelemetry(context.Background(), tel)
	assert.NotPanics(t, func() {
		RecordCounter(ctx, "organizations_created_total", "Organizations created", 1)
	})
}
