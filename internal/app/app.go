package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/sokoni/server/internal/domain/order"
	"github.com/sokoni/server/internal/domain/payment"

	// Inbound adapters
	httpadapter "github.com/sokoni/server/internal/adapter/inbound/gin"

	// Outbound adapters
	"github.com/sokoni/server/internal/adapter/outbound/mpesa"
	"github.com/sokoni/server/internal/adapter/outbound/postgres"
	"github.com/sokoni/server/internal/adapter/outbound/rabbitmq"
	redisadapter "github.com/sokoni/server/internal/adapter/outbound/redis"
	s3adapter "github.com/sokoni/server/internal/adapter/outbound/s3"

	// Infrastructure
	_ "github.com/sokoni/server/cmd/server/docs" // swagger docs
	"github.com/sokoni/server/internal/infra/config"
	"github.com/sokoni/server/internal/infra/events"
	"github.com/sokoni/server/internal/infra/httpclient"
	"github.com/sokoni/server/internal/infra/task"
	sharedcache "github.com/sokoni/server/internal/shared/cache"
	"github.com/sokoni/server/internal/shared/database"
	"github.com/sokoni/server/internal/shared/logger"
	"github.com/sokoni/server/internal/utils/metrics"
	"github.com/sokoni/server/internal/utils/middleware"
)

const metricsNamespace = "sokoni"

// App wires the payment reconciliation service together.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   goredis.UniversalClient
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Domain services
	orderDomain   order.OrderDomain
	paymentDomain payment.PaymentDomain

	eventBus  *events.Bus
	streamHub *httpadapter.StreamHub
	sweeper   *task.Sweeper

	// Cleanup functions
	cleanupFuncs []func()
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	zapLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config:       cfg,
		logger:       zapLog,
		metrics:      metrics.New(metricsNamespace),
		cleanupFuncs: make([]func(), 0),
	}

	if err := app.initInfrastructure(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	if err := app.initDomains(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("init domains: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	app.sweeper.Start()

	return app, nil
}

// initInfrastructure initializes database and cache connections.
func (a *App) initInfrastructure() error {
	db, err := database.New(&a.config.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.db = db

	if a.config.Database.AutoMigrate {
		if err := postgres.RunMigrations(a.config.Database.URL(), a.logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Redis is optional; without it probes are not deduplicated across
	// instances and initiation is neither rate limited nor idempotent.
	if a.config.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&a.config.Redis)
		if err != nil {
			a.logger.Warn("Redis connection failed, continuing without cache", zap.Error(err))
		} else {
			a.redis = redisClient
		}
	}

	return nil
}

// initDomains initializes the domains with their adapters.
func (a *App) initDomains() error {
	a.orderDomain = order.NewOrderDomain(postgres.NewOrderAdapter(a.db), a.logger.Named("order"))

	a.eventBus = events.NewBus(a.logger)
	if err := a.initBroker(); err != nil {
		return fmt.Errorf("init broker: %w", err)
	}

	opts := payment.Options{
		Recorder:     a.metrics,
		ProbeLockTTL: a.config.Reconciliation.ProbeLockTTL,
	}
	if a.redis != nil {
		opts.ProbeLock = redisadapter.NewProbeLock(a.redis)
	}
	if a.config.Storage.Bucket != "" {
		client, err := s3adapter.NewClient(context.Background(), &a.config.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		opts.Archive = s3adapter.NewCallbackArchive(client, a.config.Storage.Bucket, a.config.Storage.Prefix)
	}

	httpClient := httpclient.New(a.config.HTTPClient, a.config.Mpesa.RequestTimeout)
	provider := mpesa.NewClient(a.config.Mpesa, httpClient, a.metrics, a.logger)

	a.paymentDomain = payment.NewPaymentDomain(
		postgres.NewPaymentRequestAdapter(a.db),
		postgres.NewCallbackEventAdapter(a.db),
		provider,
		newOrderBridgeAdapter(a.orderDomain),
		postgres.NewTransactionAdapter(a.db),
		a.eventBus,
		opts,
		a.logger,
	)

	a.streamHub = httpadapter.NewStreamHub(a.metrics)
	a.eventBus.Register(a.streamHub)

	rc := a.config.Reconciliation
	a.sweeper = task.NewSweeper(a.paymentDomain, a.metrics, &task.Config{
		Interval:         rc.SweepInterval,
		PendingThreshold: rc.PendingThreshold,
		BatchSize:        rc.BatchSize,
	}, a.logger)
	a.cleanupFuncs = append(a.cleanupFuncs, a.sweeper.Stop)

	return nil
}

// initBroker forwards payment events to RabbitMQ when a broker is configured.
func (a *App) initBroker() error {
	bc := a.config.Broker
	if bc.URL == "" {
		return nil
	}

	queues := []string{bc.ResolvedQueue}
	if bc.SucceededQueue != "" {
		queues = append(queues, bc.SucceededQueue)
	}

	publisher, err := rabbitmq.Dial(bc.URL, bc.PublishTimeout, queues...)
	if err != nil {
		return err
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("close broker", zap.Error(err))
		}
	})

	a.eventBus.Register(rabbitmq.NewPaymentForwarder(publisher, bc.ResolvedQueue, bc.SucceededQueue, a.logger))
	a.logger.Info("payment events forwarded to broker",
		zap.String("resolved_queue", bc.ResolvedQueue),
		zap.String("succeeded_queue", bc.SucceededQueue))

	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(a.config.Server.AllowedOrigins))

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes registers all HTTP routes.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	var initiateMW []gin.HandlerFunc
	if a.redis != nil {
		rl := a.config.RateLimit
		if rl.Enabled {
			limiter := redisadapter.NewRateLimiter(a.redis)
			initiateMW = append(initiateMW, middleware.RateLimitInitiate(limiter, rl.InitiateLimit, rl.InitiateWindow, a.logger))
		}
		initiateMW = append(initiateMW, middleware.Idempotency(a.redis, rl.IdempotencyTTL, a.logger))
	}

	paymentHandler := httpadapter.NewPaymentAdapter(a.paymentDomain, a.logger)
	streamHandler := httpadapter.NewStreamAdapter(a.paymentDomain, a.streamHub, a.config.Server.AllowedOrigins, a.logger)
	httpadapter.RegisterPaymentRoutes(v1, paymentHandler, streamHandler, initiateMW...)
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := database.Ping(ctx, a.db); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}

	c.JSON(code, status)
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	// Run in reverse so the sweeper stops before the broker closes
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}

	if a.db != nil {
		_ = database.Close(a.db)
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
