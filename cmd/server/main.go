package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviewhub/internal/config"
	"reviewhub/internal/db"
	"reviewhub/internal/logger"
	"reviewhub/internal/middleware"
	"reviewhub/internal/ratelimit"
	"reviewhub/internal/router"
	"reviewhub/internal/services"
	"reviewhub/internal/task"
	"reviewhub/internal/utils"
	"reviewhub/internal/ws"
	"reviewhub/web"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.Server.Debug)
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	gdb, err := db.Init(cfg.Database.URL, cfg.Database.Debug)
	if err != nil {
		return err
	}

	// 限流记录：配置了 Redis 就用 Redis（多实例共享），否则落库
	var (
		store  ratelimit.Store
		pruner task.Pruner
	)
	if cfg.Redis.Addr != "" {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb)
		log.Info("rate limiter using redis", "addr", cfg.Redis.Addr)
	} else {
		gormStore := ratelimit.NewGormStore(gdb)
		store, pruner = gormStore, gormStore
	}
	limiter := ratelimit.New(store, log)

	cache, err := utils.NewTTLCache(cfg.Feed.CacheSize)
	if err != nil {
		return err
	}

	hub := ws.NewHub(log, cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	tags := services.NewTagService(gdb)
	feed := services.NewFeedService(gdb, tags, cache, cfg.Feed.CacheTTL)
	recount := services.NewRecountService(gdb, feed)
	go recount.Run(ctx)

	scheduler := task.NewScheduler(log)
	if err := scheduler.RegisterJobs(pruner, maxWindow(cfg), recount); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	throttle := middleware.NewIPThrottle(cfg.Server.ThrottleRPS, cfg.Server.ThrottleBurst)
	go throttle.RunCleanup(ctx, 10*time.Minute)

	tmpl, err := web.Templates()
	if err != nil {
		return err
	}

	engine := router.New(router.Deps{
		Config:     cfg,
		Logger:     log,
		DB:         gdb,
		Templates:  tmpl,
		Limiter:    limiter,
		Throttle:   throttle,
		Hub:        hub,
		Auth:       services.NewAuthService(gdb, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminEmails),
		Posts:      services.NewPostService(gdb, tags, feed, recount, hub),
		Feed:       feed,
		Tags:       tags,
		Votes:      services.NewVoteService(gdb, feed, hub),
		Moderation: services.NewModerationService(gdb, feed, hub),
		Audit:      services.NewAuditService(gdb),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("reviewhub server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exiting")
	return nil
}

// maxWindow is how long rate-limit entries must be kept.
func maxWindow(cfg *config.Config) time.Duration {
	var longest time.Duration
	for _, name := range []string{config.PolicyVote, config.PolicyCreatePost, config.PolicyModerate, config.PolicyLogin} {
		longest = max(longest, cfg.RateLimit(name).Window)
	}
	return longest
}
