package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/medico-billing/config"
	"github.com/ErlanBelekov/medico-billing/internal/email"
	"github.com/ErlanBelekov/medico-billing/internal/health"
	"github.com/ErlanBelekov/medico-billing/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/medico-billing/internal/log"
	"github.com/ErlanBelekov/medico-billing/internal/metrics"
	"github.com/ErlanBelekov/medico-billing/internal/password"
	"github.com/ErlanBelekov/medico-billing/internal/ratelimit"
	"github.com/ErlanBelekov/medico-billing/internal/scheduler"
	"github.com/ErlanBelekov/medico-billing/internal/session"
	httptransport "github.com/ErlanBelekov/medico-billing/internal/transport/http"
	"github.com/ErlanBelekov/medico-billing/internal/transport/http/handler"
	"github.com/ErlanBelekov/medico-billing/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	metrics.Register()
	deps := []health.Dependency{{Name: "postgres", Pinger: pool}}

	// Attempt throttling is optional; without Redis every attempt is allowed.
	var signinLimiter, otpLimiter usecase.AttemptLimiter = ratelimit.Noop{}, ratelimit.Noop{}
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()

		signinLimiter = ratelimit.New(rdb, "signin", cfg.MaxSigninAttempts, cfg.AttemptWindow)
		otpLimiter = ratelimit.New(rdb, "otp", cfg.MaxOTPAttempts, cfg.AttemptWindow)
		deps = append(deps, health.Dependency{
			Name:   "redis",
			Pinger: health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		})
	} else {
		logger.Warn("REDIS_URL not set, attempt throttling disabled")
	}

	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	issuer, err := session.NewIssuer(session.Config{
		Secret:     []byte(cfg.JWTSecret),
		TTL:        cfg.SessionTTL,
		CookieName: cfg.SessionCookieName,
		Secure:     cfg.SecureCookies(),
	})
	if err != nil {
		stop()
		log.Fatalf("session issuer: %v", err)
	}

	hasher := password.NewHasher(cfg.BcryptCost)
	sender := email.NewSender(email.SenderConfig{
		Env:     cfg.Env,
		APIKey:  cfg.ResendAPIKey,
		From:    cfg.ResendFrom,
		ReplyTo: cfg.SupportEmail,
	}, logger)

	// Users
	userRepo := postgres.NewUserRepository(pool)
	credentials := usecase.NewCredentialUsecase(userRepo, hasher)

	// Passcodes
	passcodeRepo := postgres.NewPasscodeRepository(pool)
	passcodes := usecase.NewPasscodeUsecase(passcodeRepo, hasher, sender, logger,
		usecase.WithPasscodeTTL(cfg.OTPTTL),
		usecase.WithEmailTimeout(cfg.EmailTimeout),
		usecase.WithBranding(email.Branding{Name: cfg.BrandName, SupportEmail: cfg.SupportEmail}),
	)

	authUsecase := usecase.NewAuthUsecase(credentials, passcodes, issuer, logger,
		usecase.WithLimiters(signinLimiter, otpLimiter),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        logger,
		AuthHandler:   handler.NewAuthHandler(authUsecase, issuer, logger),
		UserHandler:   handler.NewUserHandler(credentials, logger),
		TokenVerifier: issuer,
		HSTS:          cfg.SecureCookies(),
	})

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsMW(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	reaper := scheduler.NewReaper(passcodeRepo, cfg.ReaperSchedule, cfg.OTPTTL, logger)

	go func() {
		logger.Info("server started", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		if err := reaper.Start(ctx); err != nil {
			logger.Error("reaper", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	<-reaperDone
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
