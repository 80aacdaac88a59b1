package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"gift-platform/internal/analytics"
	"gift-platform/internal/archive"
	"gift-platform/internal/config"
	"gift-platform/internal/gateway"
	"gift-platform/internal/handlers"
	"gift-platform/internal/leaderboard"
	"gift-platform/internal/logger"
	"gift-platform/internal/mediaqueue"
	"gift-platform/internal/middleware"
	"gift-platform/internal/notify"
	"gift-platform/internal/reconcile"
	"gift-platform/internal/settlement"
	"gift-platform/internal/store"
	"gift-platform/internal/store/memstore"
	"gift-platform/internal/store/postgres"
	ws "gift-platform/internal/websocket"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	lg, err := logger.NewLogger(cfg.Development())
	if err != nil {
		log.Fatal("cannot build logger:", err)
	}
	defer lg.Sync()
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped with error: ", err)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	lg.Infow("starting gift platform", "env", cfg.AppEnv, "store", cfg.StoreDriver)
	loc := cfg.Location()

	st, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer st.Close()

	var cache leaderboard.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Warnw("redis unreachable, leaderboard cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = leaderboard.NewRedisCache(rdb, cfg.LeaderboardCacheTTL)
		}
	}

	var sink archive.Sink
	if cfg.ClickHouseAddr != "" {
		ch, err := analytics.Open(ctx, analytics.Options{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			lg.Warnw("clickhouse unavailable, analytics mirror disabled", "error", err)
		} else {
			defer ch.Close()
			sink = ch
		}
	}

	var gw gateway.Gateway
	if cfg.MidtransServerKey != "" {
		gw = gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction)
	}

	var telegram notify.TelegramSender
	if cfg.TelegramBotToken != "" {
		b, err := notify.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			lg.Warnw("telegram notifications disabled", "error", err)
		} else {
			telegram = b
		}
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(lg.With("component", "hub"))
	go hub.Run(hubCtx)

	leaderboards := leaderboard.NewService(st, cache, loc, cfg.LeaderboardTopN, lg.With("component", "leaderboard"))
	engine := mediaqueue.NewEngine(st, hub, lg.With("component", "mediaqueue"))
	notifier := notify.New(hub, telegram, st, lg.With("component", "notify"))
	controller := settlement.NewController(st, notifier, engine, lg.With("component", "settlement"),
		settlement.WithRefresher(leaderboards))
	reconciler := reconcile.New(st, reconcile.Config{
		Secret:              cfg.WebhookSecret,
		Channel:             cfg.PaymentChannel,
		Lookback:            cfg.Lookback,
		SentinelAmount:      cfg.SentinelAmount,
		AllowAmountFallback: cfg.AllowAmountFallback,
	}, lg.With("component", "reconcile"))
	signals := settlement.NewService(reconciler, controller, lg.With("component", "settlement"))
	intake := settlement.NewIntake(st, gw, cfg.PaymentChannel, lg.With("component", "intake"))
	pipeline := archive.NewPipeline(st, leaderboards, sink, archive.Config{Retention: cfg.Retention, Location: loc},
		lg.With("component", "archive"))

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.WebhookRate), cfg.WebhookBurst)
	defer limiter.Stop()

	router := &handlers.Router{
		JWTSecret:    cfg.JWTSecret,
		CronSecret:   cfg.CronSecret,
		CORSOrigins:  cfg.Origins(),
		WebhookLimit: limiter,
		Webhook:      handlers.NewWebhookHandler(signals, gw, lg),
		Donation:     handlers.NewDonationHandler(intake, lg),
		Queue:        handlers.NewQueueHandler(engine, lg),
		Leaderboard:  handlers.NewLeaderboardHandler(leaderboards, lg),
		Archive:      handlers.NewArchiveHandler(pipeline, lg),
		WebSocket:    handlers.NewWebSocketHandler(st, hub, lg),
		Creator:      handlers.NewCreatorHandler(st, lg),
		Log:          lg,
	}

	var scheduler *archive.Scheduler
	if cfg.ArchiveInterval > 0 {
		scheduler = &archive.Scheduler{Pipeline: pipeline, Interval: cfg.ArchiveInterval, Log: lg.With("component", "scheduler")}
		scheduler.Start(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		lg.Infow("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		lg.Infow("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorw("http shutdown failed", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	controller.Wait()
	stopHub()
	lg.Infow("server stopped")
	return serveErr
}

func openStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		lg.Warnw("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DSN); err != nil {
			return nil, err
		}
		lg.Infow("migrations applied")
	}
	db, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	lg.Infow("connected to postgres")
	return db, nil
}
