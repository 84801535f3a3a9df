package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"caseflow/internal/api"
	"caseflow/internal/casemanagement"
	"caseflow/internal/config"
	"caseflow/internal/credentials"
	"caseflow/internal/deadletter"
	"caseflow/internal/dochash"
	"caseflow/internal/ledger"
	"caseflow/internal/logger"
	"caseflow/internal/orchestrator"
	"caseflow/internal/payments"
	"caseflow/internal/pipeline"
	"caseflow/pkg/bootstrap"
	"caseflow/pkg/health"
	"caseflow/pkg/metrics"
	"caseflow/pkg/middleware"
)

const serviceName = "orchestrator"

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	postgres *sql.DB
	redis    *redis.Client
	mongo    *mongo.Client

	ledgerService *ledger.Service
	deadLetters   *deadletter.Manager
	sweeper       *deadletter.Sweeper
	processor     *pipeline.Processor
	server        *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return err
	}

	a.InitProducer()

	if err := a.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	a.InitConsumer(serviceName, a.deadLetters)

	metrics.RegisterPipelineMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDeadLetterMetrics()
	metrics.RegisterCaseClientMetrics()
	metrics.RegisterPaymentMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	postgres, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.postgres = postgres

	if a.Config.Database.RunMigrations {
		if err := ledger.Migrate(a.postgres, "migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.Info("Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = redisClient

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.mongo = mongoClient

	return nil
}

func (a *App) initServices() error {
	cacheTTL := time.Duration(a.Config.Database.Redis.TTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	a.ledgerService = ledger.NewService(ledger.NewRepository(a.postgres), a.redis, cacheTTL, a.Logger)

	dlStore := deadletter.NewMongoStore(
		a.mongo.Database(a.Config.Database.MongoDB.Database),
		a.Config.DeadLetter.Collection,
	)
	a.deadLetters = deadletter.NewManager(dlStore, a.Producer, a.Config.Broker.Kafka.TelemetryTopic, a.Logger)
	a.sweeper = deadletter.NewSweeper(dlStore, a.Config.DeadLetter.Retention, a.Config.DeadLetter.SweepInterval, a.Logger)

	tokenSource := credentials.NewHTTPTokenSource(a.Config.Credentials.IdentityURL)
	credProvider := credentials.NewProvider(a.Config.Credentials, tokenSource, a.Logger)

	caseClient := casemanagement.NewClient(a.Config.CaseManagement, a.Config.CircuitBreaker, a.Logger)

	var hashClient orchestrator.HashClient
	if a.Config.CaseManagement.DocumentHash.Enabled {
		hashClient = dochash.NewClient(a.Config.CaseManagement.DocumentHash)
	}

	orchestratorService := orchestrator.NewService(caseClient, credProvider, hashClient, a.Logger)

	paymentNotifier := payments.NewNotifier(a.Producer, a.Config.Broker.Kafka.PaymentsTopic, a.Logger)

	a.processor = pipeline.NewProcessor(
		orchestratorService,
		a.ledgerService,
		paymentNotifier,
		a.Producer,
		a.Config.Broker.Kafka.ProcessedEnvelopesTopic,
		a.Logger,
	)

	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(a.Logger))
	router.Use(middleware.Recovery(a.Logger))

	api.NewHandler(a.ledgerService, a.Logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.postgres))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewMongoDBChecker(a.mongo))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Envelope consumer starting",
			"topic", a.Config.Broker.Kafka.EnvelopesTopic,
		)
		return a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.EnvelopesTopic, a.processor.Handle)
	})

	g.Go(func() error {
		return ignoreCanceled(a.sweeper.Run(gCtx))
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := a.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.Errorw("Shutdown error", "error", shutdownErr)
	}

	return ignoreCanceled(err)
}

// ignoreCanceled filters out the error a clean shutdown produces. The
// errgroup can hand back a wrapped cancellation from any of the
// goroutines, so a plain equality check is not enough.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown closes the broker endpoints and the stores.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgres, a.mongo)
	})
}
