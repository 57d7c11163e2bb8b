// Package main - точка входа фонового процесса ядра обработки результатов.
//
// Worker поднимает движок утверждения поверх PostgreSQL, подключает кэш
// агрегатов в Redis и шину событий, подписывает инвалидацию кэша на события
// и по расписанию сверяет сохранённые GPA/CGPA с засчитанными оценками.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fastresult/results-core/config"
	"github.com/fastresult/results-core/internal/application/command"
	"github.com/fastresult/results-core/internal/application/eventhandler"
	"github.com/fastresult/results-core/internal/application/query"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/gradescale"
	"github.com/fastresult/results-core/internal/infrastructure/messaging"
	"github.com/fastresult/results-core/internal/infrastructure/persistence/postgres"
	"github.com/fastresult/results-core/internal/infrastructure/persistence/redis"
	"github.com/fastresult/results-core/internal/infrastructure/rolegate"
	"github.com/fastresult/results-core/internal/infrastructure/scheduler"
	"github.com/fastresult/results-core/internal/infrastructure/scheduler/jobs"
	"github.com/fastresult/results-core/pkg/circuitbreaker"
	"github.com/fastresult/results-core/pkg/logger"
	"github.com/fastresult/results-core/pkg/retry"
	goredis "github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting results worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// База может подниматься дольше воркера, поэтому подключение повторяется.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	var dbConn *postgres.Connection
	err = retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnection(ctx, postgresConfig(cfg))
		if connErr != nil {
			log.Warn("database not reachable yet", logger.Err(connErr))
		}
		return connErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	health, err := dbConn.Health(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if !health.Healthy {
		return fmt.Errorf("database unhealthy: %s", health.Error)
	}
	log.Info("database health",
		"ping_latency", health.PingLatency.String(),
		"total_conns", health.TotalConns,
		"max_conns", health.MaxConns,
		"lock_waits", health.LockWaits,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		migrateCtx, cancelMigrate := context.WithTimeout(ctx, cfg.Database.QueryTimeout)
		err := postgres.NewMigrator(dbConn).Migrate(migrateCtx)
		cancelMigrate()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS: КЭШ АГРЕГАТОВ (опционально)
	// Без Redis запросы GPA идут прямо в базу, события остаются в процессе.
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache     *redis.Cache
		aggregateCache *redis.AggregateCache
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg, err := redisConfig(cfg)
		if err != nil {
			return fmt.Errorf("invalid redis config: %w", err)
		}
		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			})
			aggregateCache = redis.NewAggregateCache(redisCache, breaker, cfg.Redis.CacheTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localCfg := messaging.DefaultInMemoryEventBusConfig()
	localCfg.Logger = log

	var bus eventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			InstanceID:     cfg.App.InstanceID,
			LocalBusConfig: localCfg,
			Logger:         log,
		})
		if err != nil {
			log.Warn("failed to start redis event bus, using in-process bus", logger.Err(err))
		} else {
			bus = redisBus
		}
	}
	if bus == nil {
		bus = messaging.NewInMemoryEventBus(localCfg)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{Bus: bus, Logger: log})
	defer dispatcher.Stop()

	if aggregateCache != nil {
		invalidator := eventhandler.NewOnAggregatesRecomputedHandler(aggregateCache, log)
		if err := dispatcher.Register(shared.EventAggregatesRecomputed, "invalidate_on_recompute", invalidator.HandleRecomputed); err != nil {
			return fmt.Errorf("failed to register handler: %w", err)
		}
		if err := dispatcher.Register(shared.EventResultTransitioned, "invalidate_on_transition", invalidator.HandleTransitioned); err != nil {
			return fmt.Errorf("failed to register handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ДВИЖОК УТВЕРЖДЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	scales, err := gradescale.LoadFile(cfg.Engine.GradeScaleFile)
	if err != nil {
		return fmt.Errorf("failed to load grade scales: %w", err)
	}
	log.Info("grade scales loaded", "scales", scales.Names())

	transactor := postgres.NewTransactor(dbConn)
	catalog := postgres.NewCatalog(dbConn)
	gate := rolegate.New(postgres.NewAssignments(dbConn), catalog, rolegate.WithLogger(log))

	engine := command.NewEngine(transactor, gate, scales, catalog, bus,
		command.EngineConfig{
			BulkBatchSize:      cfg.Engine.BulkBatchSize,
			MaxConflictRetries: cfg.Engine.MaxConflictRetries,
		},
		command.WithLogger(log),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedule, err := scheduler.ParseSchedule(cfg.Scheduler.ReconcileSchedule)
		if err != nil {
			return fmt.Errorf("invalid reconcile schedule: %w", err)
		}

		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.App.Location,
		})
		sched.OnJobError(func(jobName string, err error) {
			log.Error("scheduled job failed", logger.JobName(jobName), logger.Err(err))
		})

		reconcile := jobs.NewReconcileAggregatesJob(transactor, engine, log, jobs.ReconcileAggregatesConfig{
			Concurrency: cfg.Scheduler.ReconcileConcurrency,
			Timeout:     cfg.Scheduler.JobTimeout,
		})
		if err := sched.Register(reconcile, schedule); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started", "reconcile_schedule", cfg.Scheduler.ReconcileSchedule)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("results worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if sched != nil {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out, exiting with jobs still running")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Кэш агрегатов в Redis обслуживает и инвалидацию, и чтение GPA.
var _ query.AggregateCache = (*redis.AggregateCache)(nil)

// eventBus - шина, которую worker публикует и на которую подписывает обработчики.
type eventBus interface {
	shared.EventBus
	Close() error
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Observability.LogLevel
	if cfg.App.Debug {
		level = "debug"
	}
	log := logger.New(logger.Options{
		Level:   level,
		Format:  cfg.Observability.LogFormat,
		Output:  os.Stdout,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	slog.SetDefault(log)
	return log
}

func postgresConfig(cfg *config.Config) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = cfg.Database.URL
	pg.MaxConns = int32(cfg.Database.MaxConns)
	pg.MinConns = int32(cfg.Database.MinConns)
	pg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pg.LockTimeout = cfg.Database.LockTimeout
	return pg
}

// redisConfig переводит настройки окружения в конфиг кэша. REDIS_URL, если
// задан, важнее отдельных полей.
func redisConfig(cfg *config.Config) (redis.Config, error) {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	if cfg.Redis.URL == "" {
		return rc, nil
	}
	opts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return rc, err
	}
	host, port, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return rc, err
	}
	rc.Host = host
	if rc.Port, err = strconv.Atoi(port); err != nil {
		return rc, err
	}
	rc.Password = opts.Password
	rc.DB = opts.DB
	return rc, nil
}
