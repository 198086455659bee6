package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"loopmix/internal/config"
	"loopmix/internal/health"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/pkg/shutdown"
	"loopmix/internal/profile"
	"loopmix/internal/storage"
	"loopmix/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().LogFatal("loading configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "loopmix-worker",
	})

	prof, err := profile.Resolve(cfg.PresetName)
	if err != nil {
		log.LogFatal("resolving encoding preset", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.LogFatal("connecting to postgres", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	sp, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("building storage provider", err)
	}

	mgr := shutdown.NewManager(log, 30*time.Second)
	mgr.RegisterSimple("postgres", pool.Close)
	mgr.Register("redis", func(context.Context) error { return rdb.Close() })

	workCtx, cancelWork := context.WithCancel(ctx)
	mgr.RegisterSimple("worker", cancelWork)

	tracker := worker.NewTracker()

	if cfg.HealthAddr != "" {
		srv := &http.Server{
			Addr: cfg.HealthAddr,
			Handler: health.NewRouter(health.Deps{
				Pool:    pool,
				RDB:     rdb,
				SP:      sp,
				Tracker: tracker,
				Log:     log,
			}),
		}
		go func() {
			log.Info("health listener started", "addr", cfg.HealthAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("health listener failed", "error", err.Error())
			}
		}()
		mgr.Register("health", srv.Shutdown)
	}

	go mgr.Wait()

	err = worker.Run(workCtx, worker.Deps{
		Pool:    pool,
		RDB:     rdb,
		Cfg:     cfg,
		SP:      sp,
		Prof:    prof,
		Tracker: tracker,
		Log:     log,
	})
	if err != nil && err != context.Canceled {
		// A failure out of the worker itself (missing ffmpeg binary, broken
		// connections) must bring the process down, not leave it waiting
		// for a signal that may never come.
		log.Error("worker stopped", "error", err.Error())
		mgr.Shutdown()
	}

	<-mgr.Done()
}
