package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/clearpay/portal/internal/adapters/cache"
	grpcadapter "github.com/clearpay/portal/internal/adapters/grpc"
	httpadapter "github.com/clearpay/portal/internal/adapters/http"
	memoryadapter "github.com/clearpay/portal/internal/adapters/memory"
	"github.com/clearpay/portal/internal/adapters/postgres"
	"github.com/clearpay/portal/internal/adapters/security"
	"github.com/clearpay/portal/internal/application"
	"github.com/clearpay/portal/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	sweeper    *application.Sweeper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping portal security service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	tokenSigner, err := security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM, cfg.RefreshTokenTTL)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT keys for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID, cfg.RefreshTokenTTL)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	// Security state lives in Redis when configured, so multiple instances
	// share one lockout ledger and rate budget. Without Redis the in-memory
	// stores serve a single-instance deployment.
	var (
		lockouts      ports.LockoutStore
		rates         ports.RateLimitStore
		refreshTokens ports.RefreshTokenStore
		events        ports.EventLog
		closeRedis    func()
	)
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		lockouts = cacheadapter.NewRedisLockoutStore(redisClient)
		rates = cacheadapter.NewRedisRateLimitStore(redisClient)
		refreshTokens = cacheadapter.NewRedisRefreshTokenStore(redisClient)
		events = cacheadapter.NewRedisEventLog(redisClient, cfg.EventLogCapacity)
		closeRedis = func() { _ = redisClient.Close() }
	} else {
		logger.Warn("no REDIS_URL configured, security state is per-instance")
		lockouts = memoryadapter.NewLockoutStore()
		rates = memoryadapter.NewRateLimitStore()
		refreshTokens = memoryadapter.NewRefreshTokenStore()
		events = memoryadapter.NewEventLog(cfg.EventLogCapacity)
		closeRedis = func() {}
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			Lockout: ports.LockoutPolicy{
				Threshold:    cfg.LockoutThreshold,
				BaseDuration: cfg.LockoutBaseDuration,
				Multiplier:   cfg.LockoutMultiplier,
				MaxDuration:  cfg.LockoutMaxDuration,
			},
			LockoutIdleTTL:  cfg.LockoutIdleTTL,
			RateLimit:       cfg.RateLimit,
			RateLimitWindow: cfg.RateLimitWindow,
			AllowedOrigins:  cfg.AllowedOrigins,
			AnomalyWindow:   cfg.AnomalyWindow,
		},
		Principals:    postgres.NewPrincipalRepository(pool),
		LoginAttempts: postgres.NewLoginAttemptRepository(pool),
		Lockouts:      lockouts,
		Rates:         rates,
		RefreshTokens: refreshTokens,
		Events:        events,
		Hasher: security.NewArgon2Hasher(security.Argon2Params{
			MemoryKiB:   uint32(cfg.Argon2MemoryKiB),
			Iterations:  uint32(cfg.Argon2Iterations),
			Parallelism: uint8(cfg.Argon2Parallelism),
		}),
		TokenSigner: tokenSigner,
	})

	handler := httpadapter.NewHandler(svc, httpadapter.CookiePolicy{
		Secure:  cfg.SecureCookies,
		CSRFTTL: cfg.CSRFTokenTTL,
	})
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewTokenIntrospectionServer(svc, tokenSigner))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		closeRedis()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		sweeper:    application.NewSweeper(svc, cfg.SweepInterval),
		cleanupFn: func(ctx context.Context) {
			closeRedis()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.sweeper.Start(ctx)

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.sweeper.Stop()
	r.cleanupFn(shutdownCtx)
	return nil
}
