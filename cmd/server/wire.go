package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"drone-dispatch/config"
	"drone-dispatch/internal/common"
	"drone-dispatch/internal/delivery"
	"drone-dispatch/internal/drone"
	"drone-dispatch/internal/job"
	"drone-dispatch/internal/medication"
	"drone-dispatch/internal/order"
	"drone-dispatch/internal/redis"
	"drone-dispatch/internal/repo/postgres"
)

type AppContext struct {
	DB     *sqlx.DB
	Config *config.Config
	Redis  *goredis.Client
	Router *gin.Engine
	Clock  common.Clock

	// Infrastructure
	IdempotencyStore *redis.IdempotencyStore
	RateLimiter      *redis.RateLimiter
	TickLock         *redis.TickLock

	DroneHandler      *drone.Handler
	MedicationHandler *medication.Handler
	OrderHandler      *order.Handler

	DroneService      drone.Service
	MedicationService medication.Service
	OrderService      order.Service
	DeliveryService   delivery.Service

	Sweeper   *job.Sweeper
	Scheduler *job.Scheduler
}

func wireApp(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	// ── Postgres ──
	db, err := postgres.Connect(cfg.Postgres.DSN(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: postgres.DefaultPoolConfig().ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// ── Redis ──
	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	app := buildApp(cfg, db, rdb, common.SystemClock{})

	// ── Seed ──
	inserted, err := app.DroneService.SeedFleet(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("seed fleet: %w", err)
	}
	slog.Info("fleet seeded", slog.Int("inserted", inserted))

	if err := app.Scheduler.Register(app.Sweeper.Jobs(cfg.Scheduler)...); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	var rdb *goredis.Client
	if cfg.URL != "" {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis parse url: %w", err)
		}
		rdb = goredis.NewClient(opts)
	} else {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rdb, nil
}

// buildApp composes repositories, services and handlers over already open
// connections.
func buildApp(cfg *config.Config, db *sqlx.DB, rdb *goredis.Client, clock common.Clock) *AppContext {
	// ── Infrastructure ──
	idempotencyStore := redis.NewIdempotencyStore(rdb, cfg.Idempotency.TTL)
	rateLimiter := redis.NewRateLimiter(rdb, cfg.RateLimiter.Window)
	tickLock := redis.NewTickLock(rdb, cfg.AppName)

	// ── Repositories ──
	droneRepo := drone.NewRepository()
	medicationRepo := medication.NewRepository()
	orderRepo := order.NewOrderRepository()
	lineRepo := order.NewLineRepository()
	deliveryRepo := delivery.NewRepository(orderRepo, lineRepo, droneRepo)

	// ── Services ──
	minBattery := cfg.Fleet.MinLoadBattery
	droneService := drone.NewDroneService(droneRepo, db, minBattery)
	medicationService := medication.NewMedicationService(medicationRepo, db, clock, nil)
	orderService := order.NewOrderService(orderRepo, lineRepo, db)
	deliveryService := delivery.NewService(db, deliveryRepo, droneRepo, medicationRepo, minBattery)

	// ── Jobs ──
	sweeper := job.NewSweeper(db, droneRepo, orderRepo, deliveryService, cfg.Fleet)
	scheduler := job.NewScheduler(clock, tickLock, cfg.Scheduler.LockTTL)

	return &AppContext{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Router: gin.New(),
		Clock:  clock,

		IdempotencyStore: idempotencyStore,
		RateLimiter:      rateLimiter,
		TickLock:         tickLock,

		DroneService:      droneService,
		MedicationService: medicationService,
		OrderService:      orderService,
		DeliveryService:   deliveryService,

		DroneHandler:      drone.NewHandler(droneService),
		MedicationHandler: medication.NewHandler(medicationService),
		OrderHandler:      order.NewHandler(orderService, deliveryService),

		Sweeper:   sweeper,
		Scheduler: scheduler,
	}
}

func (a *AppContext) Close() {
	a.DB.Close()
	a.Redis.Close()
}

func (a *AppContext) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

func (a *AppContext) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	checks := map[string]string{}
	healthy := true

	if err := a.DB.PingContext(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": checks,
		"pool":   postgres.GetPoolMetrics(a.DB),
	})
}
