package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"quota-gateway/quota"
	"quota-gateway/quota/application"
	"quota-gateway/quota/domain"
	"quota-gateway/quota/infra"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := readConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	stdr.SetVerbosity(cfg.logVerbosity)
	logger := stdr.New(log.New(os.Stdout, "", log.LstdFlags)).WithName("quota-server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryStore(
		infra.WithLimit(cfg.dailyLimit),
		infra.WithVIPPolicy(cfg.policy),
		infra.WithLocation(cfg.location),
		infra.WithRecordCleanupEvery(cfg.cleanupEvery),
	)

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
	var stats domain.StatsStore = memStats
	if cfg.statsRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	passwords := infra.EnvPasswords{Var: cfg.passwordVar}
	svc := &application.QuotaService{
		Store:     store,
		Passwords: passwords,
		Stats:     stats,
	}

	keyFn := quota.DeviceKeyFunc(cfg.deviceHeader)
	if cfg.identityMode == "address" {
		keyFn = quota.AddressKeyFunc(cfg.trustXFF)
	}

	handlers := quota.NewHandlers(svc, keyFn)

	// unlock e check_auth com senha dividem o mesmo bucket por endereço
	var attempts *infra.BucketStore
	var unlockMW func(http.Handler) http.Handler
	if cfg.unlockThrottle {
		attempts = infra.NewBucketStore(cfg.unlockPerMinute, cfg.unlockBurst)
		throttleOpts := quota.ThrottleOptions{
			Store:              attempts,
			TrustXForwardedFor: cfg.trustXFF,
			Stats:              stats,
		}
		unlockMW = quota.ThrottleMiddleware(throttleOpts)
		handlers.PasswordThrottle = quota.NewThrottle(throttleOpts)
	}

	h := quota.NewRouter(quota.RoutesOptions{
		Handlers:         handlers,
		UnlockMiddleware: unlockMW,
		APIMiddleware: quota.ConcurrencyMiddleware(quota.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		}),
		StaticDir: cfg.staticDir,
		Log:       logger.WithName("http"),
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logStartup(logger, cfg, len(passwords.Passwords()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.RunJanitor(gctx)
		return nil
	})
	if attempts != nil {
		g.Go(func() error {
			attempts.RunJanitor(gctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	if cfg.statsRedisEnabled {
		logger.Info("stopped", "records", store.Len())
		return
	}
	logger.Info("stopped", "records", store.Len(), "outcomes", memStats.Total())
}

func logStartup(logger logr.Logger, cfg config, passwordCount int) {
	logger.Info("listening", "addr", cfg.listenAddr, "staticDir", cfg.staticDir)
	logger.Info("quota",
		"dailyLimit", cfg.dailyLimit,
		"timezone", cfg.location.String(),
		"vipReset", cfg.policy.String(),
		"cleanupEvery", cfg.cleanupEvery,
		"identity", cfg.identityMode,
		"deviceHeader", cfg.deviceHeader,
		"trustXFF", cfg.trustXFF,
	)
	logger.Info("unlock", "passwordEnv", cfg.passwordVar, "passwordsLoaded", passwordCount,
		"throttle", cfg.unlockThrottle, "perMinute", cfg.unlockPerMinute, "burst", cfg.unlockBurst)
	if passwordCount == 0 {
		// não é fatal: a variável é relida a cada unlock
		logger.Info("WARNING: no unlock passwords configured, /api/unlock answers 500 until " + cfg.passwordVar + " is set")
	}
	logger.Info("stats", "redis", cfg.statsRedisEnabled, "redisAddr", cfg.statsRedisAddr,
		"bucket", cfg.statsBucket, "ttl", cfg.statsTTL, "trackKeys", cfg.statsTrackKeys)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquireTimeout", cfg.concurrencyTimeout)
}
