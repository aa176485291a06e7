package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/events"
	"github.com/fithub/fithub-api/internal/platform/kafka"
	"github.com/fithub/fithub-api/internal/platform/metrics"
	"github.com/fithub/fithub-api/internal/platform/objectstore"
	"github.com/fithub/fithub-api/internal/platform/postgres"
	"github.com/fithub/fithub-api/internal/platform/redis"
	"github.com/fithub/fithub-api/internal/service"
	"github.com/fithub/fithub-api/internal/service/attach"
	"github.com/fithub/fithub-api/internal/service/auth"
	"github.com/fithub/fithub-api/internal/service/reconcile"
	"github.com/fithub/fithub-api/internal/store"
	"github.com/fithub/fithub-api/internal/task"
)

// application holds the shared dependencies so they can be wired once and
// released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	metrics    *metrics.Metrics
	redis      *goredis.Client
	publisher  *kafka.NotificationPublisher
	taskRunner *task.TaskRunner

	jwtService     auth.JWTService
	userService    service.UserService
	contentService service.ContentService
	commentService service.CommentService
}

// newApplication wires stores, backing services, the task outbox and the
// domain services. The task runner is started before it returns.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: logger, db: db}
	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics, err = metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Stores
	runTx := store.DBTxRunner(db)
	userStore := postgres.NewPostgresUserStore(db, logger)
	contentStore := postgres.NewPostgresContentStore(db, logger)
	assetStore := postgres.NewPostgresAssetStore(db, logger)
	commentStore := postgres.NewPostgresCommentStore(db, logger)
	toggleStore := postgres.NewPostgresToggleStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)

	// Object storage: S3, guarded by a breaker, optionally adding thumbnails.
	s3Store, err := objectstore.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	var objects objectstore.Store = objectstore.NewBreaker(
		s3Store, cfg.Storage.BreakerMaxFailures, cfg.Storage.BreakerTimeout, logger)
	if cfg.Storage.Thumbnails {
		objects = objectstore.NewThumbnailer(objects, cfg.Storage.ThumbnailWidth, cfg.Storage.ThumbnailMaxPixels, logger)
	}

	uploader, err := attach.NewUploader(objects, nil, app.metrics, attach.Config{
		MaxWorkers:  cfg.Storage.UploadWorkers,
		GracePeriod: cfg.Storage.UploadGracePeriod,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %w", err)
	}

	reconciler, err := reconcile.NewReconciler(toggleStore, runTx, logger, reconcile.WithObserver(app.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create toggle reconciler: %w", err)
	}

	app.redis, err = redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	ranking := redis.NewRankingStore(app.redis, cfg.Redis.RankingPrefix, logger)

	app.publisher = kafka.NewNotificationPublisher(cfg.Kafka, logger)

	// Task outbox
	emitter, err := app.setupTasks(taskStore, userStore, objects)
	if err != nil {
		return nil, err
	}

	// Services
	app.userService, err = service.NewUserService(
		userStore,
		runTx,
		auth.NewBcryptHasher(cfg.Auth.BCryptCost),
		app.jwtService,
		cfg.Auth.TokenLifetime(),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.contentService, err = service.NewContentService(service.ContentServiceDeps{
		Contents: contentStore,
		Assets:   assetStore,
		Toggles:  toggleStore,
		Users:    userStore,
		RunTx:    runTx,
		Uploader: uploader,
		Toggler:  reconciler,
		Ranking:  ranking,
		Emitter:  emitter,
		Paging:   cfg.Paging,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create content service: %w", err)
	}

	app.commentService, err = service.NewCommentService(
		commentStore,
		contentStore,
		toggleStore,
		userStore,
		runTx,
		reconciler,
		emitter,
		cfg.Paging,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment service: %w", err)
	}

	ok = true
	logger.Info("Application initialized successfully")
	return app, nil
}

// setupTasks registers the task factories, starts the runner and returns
// the emitter services use to request background work.
func (app *application) setupTasks(
	taskStore task.TaskStore,
	users task.RecipientLookup,
	objects task.ObjectDeleter,
) (events.EventEmitter, error) {
	registry := task.NewRegistry()

	notify, err := task.NotificationFactory(app.publisher, users, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification factory: %w", err)
	}
	registry.Register(task.TaskTypeNotification, notify)

	cleanup, err := task.ObjectCleanupFactory(objects, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create object cleanup factory: %w", err)
	}
	registry.Register(task.TaskTypeObjectCleanup, cleanup)

	app.taskRunner = task.NewTaskRunner(taskStore, registry, task.TaskRunnerConfig{
		WorkerCount:  app.config.Task.WorkerCount,
		QueueSize:    app.config.Task.QueueSize,
		StuckTaskAge: app.config.Task.StuckTaskAge,
	}, app.logger)
	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(app.logger)
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(registry, app.taskRunner, app.logger))
	return emitter, nil
}

// Run serves HTTP until ctx is canceled, then releases every resource.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse dependency order. It tolerates a
// partially initialized application.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("Error closing notification publisher", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
