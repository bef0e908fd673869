package app

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"Gin_postgres_redis_tool_booking/booking"
	"Gin_postgres_redis_tool_booking/cache"
	"Gin_postgres_redis_tool_booking/config"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/scheduler"
	"Gin_postgres_redis_tool_booking/session"
	"Gin_postgres_redis_tool_booking/timeutil"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	RDB     *redis.Client // nil: single-process mode
	Config  *config.Config
	Repo    *db.Repo
	Booking *booking.Manager

	sessions session.Store
	locker   scheduler.Locker
	clock    timeutil.Clock
	sched    *scheduler.Scheduler
}

func (a *App) Sessions() session.Store { return a.sessions }

// New connects to the database and, when REDIS_ADDR is set, to redis.
func New(cfg *config.Config) (*App, error) {
	conn, err := db.ConnectDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		slog.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		slog.Warn("REDIS_ADDR not set, sessions and throttles stay in process")
	}

	return Assemble(cfg, conn, rdb, timeutil.Real())
}

// Assemble wires an App from already opened connections. rdb may be nil.
func Assemble(cfg *config.Config, conn *gorm.DB, rdb *redis.Client, clock timeutil.Clock) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("booking timezone: %w", err)
	}
	guest, err := regexp.Compile(cfg.Booking.GuestCodePattern)
	if err != nil {
		return nil, fmt.Errorf("guest code pattern: %w", err)
	}
	if clock == nil {
		clock = timeutil.Real()
	}
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	a := &App{DB: conn, RDB: rdb, Config: cfg, Repo: db.NewRepo(conn), clock: clock}

	var throttle booking.Throttle
	if rdb != nil {
		c := cache.NewCache(rdb, "booking:")
		throttle, a.locker = c, c
		a.sessions = session.NewAppSessionStore(rdb, ttl)
	} else {
		throttle = cache.NewLocal(clock.Now)
		a.sessions = session.NewMemoryStore(ttl, clock.Now)
	}

	a.Booking = booking.NewManager(a.Repo, a.Repo, throttle, clock, booking.Options{
		Location:      loc,
		RetentionDays: cfg.Booking.RetentionDays,
		GuestCode:     guest,
		PurgeThrottle: cfg.Booking.PurgeThrottle,
	})

	r := gin.Default()
	useCORS(r, cfg.WebOrigin)
	a.Router = r
	return a, nil
}

// StartScheduler starts the reconciliation passes.
func (a *App) StartScheduler() error {
	loc, err := a.Config.Location()
	if err != nil {
		return err
	}
	tasks := scheduler.Reconcilers(a.Repo, a.Booking, a.clock, scheduler.Intervals{
		FastSync:  a.Config.Booking.FastSyncInterval,
		FullReset: a.Config.Booking.FullResetInterval,
		PurgeSpec: a.Config.Booking.PurgeSchedule,
	})
	s, err := scheduler.Start(loc, a.locker, tasks)
	if err != nil {
		return err
	}
	a.sched = s
	// 启动时先跑一次全量校正
	for _, t := range tasks {
		if t.Name == scheduler.FullResetTask {
			go s.RunOnce(context.Background(), t)
		}
	}
	return nil
}

func (a *App) Close(ctx context.Context) {
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
