package container

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nexum-io/nexum/cmd/engine/repository"
	"github.com/nexum-io/nexum/cmd/engine/rpc"
	"github.com/nexum-io/nexum/cmd/engine/service"
	"github.com/nexum-io/nexum/common/blob"
	"github.com/nexum-io/nexum/common/bootstrap"
	redisWrapper "github.com/nexum-io/nexum/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *goredis.Client

	// Repositories
	WorkflowRepo  *repository.WorkflowRepository
	ExecutionRepo *repository.ExecutionRepository
	TaskRepo      *repository.TaskRepository

	// Services
	Blobs            *blob.Store
	Events           *service.EventPublisher
	RegistryService  *service.RegistryService
	SchedulerService *service.SchedulerService
	QueueService     *service.QueueService
	ExecutionService *service.ExecutionService
	Ticker           *service.Ticker
	RPCService       *rpc.Service
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	// Redis backs the hot-path status mirror and event channel; the
	// engine runs without it when disabled.
	var redisClient *goredis.Client
	var wrappedRedis *redisWrapper.Client
	if cfg.Redis.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		wrappedRedis = redisWrapper.NewClient(redisClient, log)
	}

	// Blob sidecar
	blobs, err := blob.NewStore(cfg.Blob.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	// Initialize repositories
	workflowRepo := repository.NewWorkflowRepository(components.DB)
	executionRepo := repository.NewExecutionRepository(components.DB)
	taskRepo := repository.NewTaskRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	events := service.NewEventPublisher(wrappedRedis, log)

	registryService := service.NewRegistryService(workflowRepo, components.Cache, cfg.Cache.DefaultTTL, log)

	schedulerService := service.NewSchedulerService(registryService, executionRepo, taskRepo, blobs, log)

	queueService := service.NewQueueService(service.QueueServiceOpts{
		DB:         components.DB,
		Executions: executionRepo,
		Tasks:      taskRepo,
		Registry:   registryService,
		Scheduler:  schedulerService,
		Blobs:      blobs,
		Events:     events,
		Policy: service.RetryPolicy{
			MaxAttemptsEffect: cfg.Scheduler.MaxAttemptsEffect,
			BackoffBase:       cfg.Scheduler.BackoffBase,
			BackoffCap:        cfg.Scheduler.BackoffCap,
		},
		LeaseTTL:        cfg.Scheduler.LeaseTTL,
		InlineThreshold: cfg.Blob.InlineThreshold,
		Logger:          log,
	})

	executionService := service.NewExecutionService(
		components.DB,
		executionRepo,
		registryService,
		schedulerService,
		events,
		log,
	)

	ticker := service.NewTicker(
		components.DB,
		executionRepo,
		taskRepo,
		schedulerService,
		queueService,
		events,
		cfg.Scheduler.TickInterval,
		log,
	)

	rpcService := rpc.NewService(registryService, executionService, queueService, log)

	return &Container{
		Components:       components,
		Redis:            redisClient,
		WorkflowRepo:     workflowRepo,
		ExecutionRepo:    executionRepo,
		TaskRepo:         taskRepo,
		Blobs:            blobs,
		Events:           events,
		RegistryService:  registryService,
		SchedulerService: schedulerService,
		QueueService:     queueService,
		ExecutionService: executionService,
		Ticker:           ticker,
		RPCService:       rpcService,
	}, nil
}

// Close releases container-owned resources
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
