package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/draftea/organization-system/organization-service/application"
	"github.com/draftea/organization-system/organization-service/handlers"
	"github.com/draftea/organization-system/organization-service/infrastructure"
	"github.com/draftea/organization-system/shared/commands"
	sharedinfra "github.com/draftea/organization-system/shared/infrastructure"
	"github.com/draftea/organization-system/shared/lock"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Dependencies struct {
	Telemetry         *telemetry.Telemetry
	shutdownTelemetry func()

	// Database
	DB *sqlx.DB

	// Redis, nil with the memory lock backend
	Redis *redis.Client

	// Repositories and stores
	OrganizationRepository *infrastructure.PostgresOrganizationRepository
	SagaStore              *sharedinfra.PostgresSagaStore
	EventStore             *sharedinfra.PostgresEventStore

	// Saga engine
	Orchestrator *saga.Orchestrator
	Supervisor   *saga.Supervisor
	Dispatcher   *commands.Dispatcher

	// Use Cases
	CreateOrganization     *application.CreateOrganization
	AddUsersToOrganization *application.AddUsersToOrganization
	GetOrganization        *application.GetOrganization
	GetSaga                *application.GetSaga

	// HTTP Handlers
	OrganizationHandlers *handlers.OrganizationHandlers

	// Message Handlers
	MessageHandlers *handlers.MessageHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSEventPublisher
	CommandBus      *sharedinfra.SNSCommandBus
	EventSubscriber *sharedinfra.SQSEventSubscriber
}

func BuildDependencies(ctx context.Context, config *Config, version string, logger logrus.FieldLogger) (*Dependencies, error) {
	deps := &Dependencies{}

	telemetryConfig := telemetry.OrganizationServiceConfig.WithVersion(version)
	if config.Telemetry.Enabled {
		telemetryConfig = telemetryConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
	}
	tel, shutdown, err := telemetry.InitTelemetry(ctx, telemetryConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	deps.Telemetry = tel
	deps.shutdownTelemetry = shutdown

	// Initialize database
	db, err := sqlx.ConnectContext(ctx, "postgres", config.GetDatabaseURL())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	participantLocks, guard, err := deps.buildLocks(ctx, config)
	if err != nil {
		deps.Close()
		return nil, err
	}

	// Initialize AWS infrastructure
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.AWS.Region))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if config.AWS.EndpointSNS != "" {
			o.BaseEndpoint = aws.String(config.AWS.EndpointSNS)
		}
	})
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if config.AWS.EndpointSQS != "" {
			o.BaseEndpoint = aws.String(config.AWS.EndpointSQS)
		}
	})

	deps.EventPublisher = sharedinfra.NewSNSEventPublisher(snsClient, config.AWS.SNSTopicArn, logger)
	deps.CommandBus = sharedinfra.NewSNSCommandBus(deps.EventPublisher)

	// Initialize repositories and stores
	deps.OrganizationRepository = infrastructure.NewPostgresOrganizationRepository(db)
	deps.SagaStore = sharedinfra.NewPostgresSagaStore(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	// Initialize the saga engine
	validator := application.NewLocalValidator(deps.OrganizationRepository)
	createOrganizationSaga := application.NewCreateOrganizationSaga(validator)
	addUsersSaga := application.NewAddUsersToOrganizationSaga(validator)

	lifecycle := sharedinfra.NewLifecyclePublisher(deps.EventStore, deps.EventPublisher, logger)
	deps.Orchestrator = saga.NewOrchestrator(
		deps.SagaStore,
		deps.CommandBus,
		lifecycle,
		[]*saga.Definition{createOrganizationSaga, addUsersSaga},
		saga.WithGuard(guard),
		saga.WithReplyChannel(commands.ChannelOrganization),
		saga.WithLogger(logger),
	)
	deps.Supervisor = saga.NewSupervisor(deps.Orchestrator, deps.SagaStore, config.Saga.StallTimeout, logger)

	participant := application.NewOrganizationParticipant(deps.OrganizationRepository, logger)
	deps.Dispatcher = commands.NewDispatcher(participantLocks, logger, participant.Handlers())

	// Initialize use cases
	deps.CreateOrganization = application.NewCreateOrganization(deps.Orchestrator, createOrganizationSaga)
	deps.AddUsersToOrganization = application.NewAddUsersToOrganization(deps.Orchestrator, addUsersSaga)
	deps.GetOrganization = application.NewGetOrganization(deps.OrganizationRepository)
	deps.GetSaga = application.NewGetSaga(deps.Orchestrator, deps.EventStore)

	// Initialize handlers
	deps.OrganizationHandlers = handlers.NewOrganizationHandlers(
		deps.CreateOrganization,
		deps.AddUsersToOrganization,
		deps.GetOrganization,
		deps.GetSaga,
	)

	deps.MessageHandlers, err = handlers.NewMessageHandlers(
		deps.Dispatcher,
		deps.CommandBus,
		deps.Orchestrator,
		config.Saga.DedupCacheSize,
		logger,
	)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.EventSubscriber = sharedinfra.NewSQSEventSubscriber(
		sqsClient,
		config.AWS.SQSQueueURL,
		deps.MessageHandlers,
		logger,
		sharedinfra.WithName(config.ServiceName),
	)

	return deps, nil
}

// buildLocks returns the participant lock manager and the per-saga guard of
// the orchestrator. The guard always blocks; participants follow the
// configured policy.
func (d *Dependencies) buildLocks(ctx context.Context, config *Config) (lock.Manager, lock.Manager, error) {
	policy, err := lock.ParsePolicy(config.Lock.Policy)
	if err != nil {
		return nil, nil, err
	}

	if config.Lock.Backend != LockBackendRedis {
		return lock.NewMemoryManager(policy), lock.NewMemoryManager(lock.PolicyBlock), nil
	}

	opts, err := redis.ParseURL(config.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(opts)
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	participants := lock.NewRedisManager(d.Redis,
		lock.WithPolicy(policy),
		lock.WithTTL(config.Redis.LockTTL),
		lock.WithRetryInterval(config.Lock.RetryInterval),
		lock.WithKeyPrefix("lock:target:"),
	)
	guard := lock.NewRedisManager(d.Redis,
		lock.WithPolicy(lock.PolicyBlock),
		lock.WithTTL(config.Redis.LockTTL),
		lock.WithRetryInterval(config.Lock.RetryInterval),
		lock.WithKeyPrefix("lock:saga:"),
	)

	return participants, guard, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.Supervisor != nil {
		d.Supervisor.Stop()
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.shutdownTelemetry != nil {
		d.shutdownTelemetry()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
