package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/nordstift/foundation-console/internal/application/dispatcher"
	appworkflow "github.com/nordstift/foundation-console/internal/application/workflow"
	"github.com/nordstift/foundation-console/internal/config"
	"github.com/nordstift/foundation-console/internal/domain/authz"
	"github.com/nordstift/foundation-console/internal/domain/event"
	"github.com/nordstift/foundation-console/internal/infrastructure/external/documents"
	"github.com/nordstift/foundation-console/internal/infrastructure/external/signing"
	"github.com/nordstift/foundation-console/internal/infrastructure/persistence/repository"
	"github.com/nordstift/foundation-console/internal/infrastructure/persistence/sqlite"
	"github.com/nordstift/foundation-console/internal/infrastructure/worker"
	httpserver "github.com/nordstift/foundation-console/internal/interfaces/http"
	"github.com/nordstift/foundation-console/pkg/database"
	"github.com/nordstift/foundation-console/pkg/utils"
)

func main() {
	// Local development credentials from .env, if present.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Foundation Console",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database and migrations
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	resultRepo := repository.NewStepResultRepository(db.DB, logger)
	sideEffectRepo := repository.NewSideEffectRepository(db.DB, logger)
	signatureRepo := repository.NewSignatureRepository(db.DB, logger)

	// Event dispatcher with an audit log subscriber
	sugared := &zapLogger{logger.Sugar()}
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(sugared))
	defer events.Close()
	subscribeAuditLog(events, logger)

	// Domain engines
	authzEngine := authz.NewEngine(authz.DefaultPermissionTable())
	registry := appworkflow.NewRegistry()

	engine := appworkflow.NewEngine(
		registry,
		instanceRepo,
		resultRepo,
		sideEffectRepo,
		txManager,
		appworkflow.WithDispatcher(events),
	)

	signer := signing.NewProvider(signing.Config{
		BaseURL: cfg.Signing.BaseURL,
		APIKey:  cfg.Signing.APIKey,
		Timeout: cfg.Signing.Timeout,
	}, logger)

	chain := appworkflow.NewApprovalChain(
		registry,
		instanceRepo,
		resultRepo,
		sideEffectRepo,
		signatureRepo,
		signer,
		txManager,
		appworkflow.WithChainDispatcher(events),
	)

	// Document generation worker
	generator, err := documents.NewGenerator(cfg.Documents.OutputDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document generator", zap.Error(err))
	}

	workers := worker.NewWorkerManager(logger)
	workers.Register(worker.NewSideEffectWorker(
		sideEffectRepo,
		instanceRepo,
		generator,
		events,
		logger,
		cfg.Worker.PollInterval,
		cfg.Worker.BatchSize,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:          cfg.Server.Host,
			Port:          cfg.Server.Port,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			WebhookSecret: cfg.Server.WebhookSecret,
		},
		authzEngine,
		engine,
		chain,
		sideEffectRepo,
		signatureRepo,
		sugared,
	)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	cancel()
	if err := workers.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
	if err := server.Stop(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// subscribeAuditLog logs every domain event as it is dispatched.
func subscribeAuditLog(d dispatcher.Dispatcher, logger *zap.Logger) {
	types := []event.Type{
		event.TypeWorkflowStarted,
		event.TypeStepPassed,
		event.TypeStepBlocked,
		event.TypeWorkflowCompleted,
		event.TypeWorkflowRejected,
		event.TypeSideEffectRequested,
		event.TypeSideEffectCompleted,
		event.TypeSideEffectFailed,
		event.TypeSignatureRecorded,
	}
	for _, t := range types {
		d.Subscribe(t, "audit_log", func(ctx context.Context, evt *event.Event) error {
			logger.Info("Domain event",
				zap.String("type", string(evt.Type)),
				zap.Int64("instance_id", evt.InstanceID),
				zap.Any("payload", evt.Payload))
			return nil
		})
	}
}

// zapLogger adapts zap's sugared logger to the HTTP server's Logger
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
