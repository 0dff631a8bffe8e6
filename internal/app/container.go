package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/mongodb"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/security"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/sqlc"
	"github.com/Lakshmikallagunta/Shams/internal/modules/autoattendance"
	"github.com/Lakshmikallagunta/Shams/internal/modules/health"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Container struct {
	Config        *config.Config
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	AuditLogger   *observability.AuditLogger
	Tracer        *observability.Tracer
	Gate          *database.Gate
	OriginMatcher *security.OriginMatcher

	// Exactly one of DB and Mongo is set, depending on STORE_DRIVER.
	DB        *database.DB
	Mongo     *mongodb.Client
	Queries   *sqlc.Queries
	Store     autoattendance.Store
	Connector *database.Connector

	Reconciler *autoattendance.Reconciler
	Scheduler  *autoattendance.Scheduler

	HealthHandler         *health.Handler
	AutoAttendanceHandler *autoattendance.Handler

	redisMu     sync.RWMutex
	redisClient *redis.Client
}

// NewContainer wires every component. It fails only on configuration that can
// never work (bad origin patterns, schedule or time zone); an unreachable or
// unconfigured store leaves the gate closed instead.
func NewContainer(cfg *config.Config, logger *observability.Logger) (*Container, error) {
	ctx := context.Background()

	matcher, err := security.NewOriginMatcher(cfg.CORS.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	job := cfg.AutoAttendance
	location, err := autoattendance.LoadLocation(job.Timezone)
	if err != nil {
		return nil, err
	}
	schedule, err := autoattendance.ParseSchedule(job.Schedule, location)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:        cfg,
		Logger:        logger,
		Metrics:       observability.NewMetrics(),
		Tracer:        observability.NewTracer("shams"),
		Gate:          database.NewGate(),
		OriginMatcher: matcher,
	}
	c.AuditLogger = c.newAuditLogger(ctx)
	c.Metrics.RecordConnectivity(false)
	c.initStore(ctx)

	recorder := c.newRunRecorder(ctx)
	c.Reconciler = autoattendance.NewReconciler(
		c.Store,
		autoattendance.OverwritePolicy(job.OverwritePolicy),
		location,
		c.Tracer,
		logger.Named(autoattendance.JobName),
	)
	c.Scheduler = autoattendance.NewScheduler(
		c.Reconciler,
		c.Gate,
		recorder,
		autoattendance.SchedulerOptions{
			Expression:   job.Schedule,
			Schedule:     schedule,
			StartupDelay: job.StartupDelay,
			Location:     location,
		},
		c.Metrics,
		c.AuditLogger,
		logger.Named(autoattendance.JobName),
	)

	c.HealthHandler = c.newHealthHandler()
	c.AutoAttendanceHandler = autoattendance.NewHandler(c.Scheduler, job.Enabled, c.Gate, logger)

	return c, nil
}

func (c *Container) newAuditLogger(ctx context.Context) *observability.AuditLogger {
	cfg := c.Config.AuditLog
	if !cfg.Enabled || cfg.Path == "" {
		return observability.NewAuditLogger(c.Logger)
	}

	dedicated, err := observability.NewDedicatedAuditLogger(cfg.Path, cfg.Format)
	if err != nil {
		c.Logger.Error(ctx, "Failed to initialize dedicated audit logger, falling back to main logger",
			zap.Error(err),
			zap.String("path", cfg.Path),
		)
		return observability.NewAuditLogger(c.Logger)
	}
	c.Logger.Info(ctx, "Audit logging enabled with dedicated file",
		zap.String("path", cfg.Path),
		zap.String("format", cfg.Format),
	)
	return dedicated
}

// initStore builds the store for the configured driver without dialing it.
// On failure Store stays nil; the gate never opens so the job never runs.
func (c *Container) initStore(ctx context.Context) {
	dbCfg := &c.Config.Database

	switch dbCfg.Driver {
	case config.DriverMongo:
		client, err := mongodb.NewClient(ctx, dbCfg, c.Metrics, c.Logger)
		if err != nil {
			c.Logger.Error(ctx, "MongoDB store unavailable, serving in degraded mode", zap.Error(err))
			return
		}
		store := autoattendance.NewMongoStore(client.Database())
		c.Mongo = client
		c.Store = store
		c.Connector = client.Connector()
		c.Connector.Prepare = store.EnsureIndexes

	default:
		db, err := database.NewMariaDB(dbCfg, c.Metrics, c.Logger)
		if err != nil {
			c.Logger.Error(ctx, "MariaDB store unavailable, serving in degraded mode", zap.Error(err))
			return
		}
		c.DB = db

		var queryDB database.DBTX = db
		if dbCfg.CircuitBreaker.Enabled {
			c.Logger.Info(ctx, "Initializing database circuit breaker",
				zap.Uint32("max_failures", dbCfg.CircuitBreaker.MaxFailures),
				zap.Float64("failure_threshold", dbCfg.CircuitBreaker.FailureThreshold),
				zap.Duration("reset_timeout", dbCfg.CircuitBreaker.ResetTimeout),
			)
			queryDB = database.NewBreakerDB(db, "mariadb", dbCfg.CircuitBreaker, c.Metrics, c.Logger)
		}
		c.Queries = sqlc.New(queryDB)
		c.Store = autoattendance.NewSQLStore(c.Queries)
		c.Connector = db.Connector(dbCfg.ConnectTimeout)
	}
}

func (c *Container) newRunRecorder(ctx context.Context) autoattendance.RunRecorder {
	if !c.Config.Redis.Enabled {
		return autoattendance.NewMemoryRecorder()
	}

	client, err := c.GetRedisClient()
	if err != nil {
		c.Logger.Warn(ctx, "Redis unavailable, keeping auto-attendance status in memory", zap.Error(err))
		return autoattendance.NewMemoryRecorder()
	}
	c.Logger.Info(ctx, "Auto-attendance status stored in Redis", zap.String("redis_host", c.Config.Redis.Host))
	return autoattendance.NewRedisRecorder(client, autoattendance.DefaultStatusKey, c.Config.Redis.StatusTTL)
}

func (c *Container) newHealthHandler() *health.Handler {
	var redisClient redis.Cmdable
	c.redisMu.RLock()
	if c.redisClient != nil {
		redisClient = c.redisClient
	}
	c.redisMu.RUnlock()

	if c.DB != nil {
		return health.NewHandler(c.Gate, c.DB.Stats, redisClient)
	}
	return health.NewHandler(c.Gate, nil, redisClient)
}

// ConnectStore makes the one bounded connection attempt for the configured
// store and opens the gate on success. It is meant to run on its own
// goroutine while the HTTP server starts.
func (c *Container) ConnectStore(ctx context.Context) error {
	if c.Connector == nil {
		err := fmt.Errorf("no %s store configured", c.Config.Database.Driver)
		c.Logger.Error(ctx, "Attendance store not configured, serving in degraded mode", zap.Error(err))
		return err
	}
	return c.Connector.Connect(ctx, c.Gate)
}

// GetRedisClient provides a thread-safe singleton that allows retries on failure
func (c *Container) GetRedisClient() (*redis.Client, error) {
	c.redisMu.RLock()
	if c.redisClient != nil {
		client := c.redisClient
		c.redisMu.RUnlock()
		return client, nil
	}
	c.redisMu.RUnlock()

	c.redisMu.Lock()
	defer c.redisMu.Unlock()

	// Double-check after acquiring lock
	if c.redisClient != nil {
		return c.redisClient, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%s", c.Config.Redis.Host, c.Config.Redis.Port),
		Password:        c.Config.Redis.Password,
		DB:              c.Config.Redis.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        c.Config.Redis.PoolSize,
		MinIdleConns:    c.Config.Redis.MinIdleConns,
		MaxRetries:      c.Config.Redis.MaxRetries,
		ConnMaxLifetime: c.Config.Redis.ConnMaxLifetime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c.redisClient = client
	return c.redisClient, nil
}

// Close gracefully closes all infrastructure connections
func (c *Container) Close() {
	ctx := context.Background()

	if c.AuditLogger != nil {
		if err := c.AuditLogger.Close(); err != nil {
			c.Logger.Error(ctx, "Error closing audit logger", zap.Error(err))
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error(ctx, "Error closing DB", zap.Error(err))
		}
	}

	if c.Mongo != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Mongo.Close(closeCtx); err != nil {
			c.Logger.Error(ctx, "Error closing MongoDB", zap.Error(err))
		}
	}

	c.redisMu.Lock()
	defer c.redisMu.Unlock()
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.Logger.Error(ctx, "Error closing Redis", zap.Error(err))
		}
		c.redisClient = nil
	}
}
