package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presencegate/internal/account"
	"presencegate/internal/attendance"
	"presencegate/internal/audit"
	"presencegate/internal/auth"
	"presencegate/internal/authclient"
	"presencegate/internal/config"
	"presencegate/internal/device"
	"presencegate/internal/handler"
	"presencegate/internal/httpmiddleware"
	"presencegate/internal/logging"
	"presencegate/internal/metrics"
	"presencegate/internal/queue"
	"presencegate/internal/registration"
	"presencegate/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	var (
		stores store.Stores
		checks []handler.HealthCheck
	)
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory stores; data is lost on restart")
		stores = store.Memory()
	} else {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		stores = store.Postgres(db.Client)
		checks = append(checks, handler.HealthCheck{Name: "db", Check: db.Healthy})
	}

	var redisClient *store.Redis
	if cfg.UsesRedis() {
		rc, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rc.Close()
		redisClient = rc
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: rc.Healthy})
	}

	q, closeQueue, err := newQueue(ctx, cfg, redisClient, stores.Audit, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	authc := authclient.New(cfg.AuthServiceURL, cfg.AuthServiceKey, cfg.AuthSkip)
	if err := authc.Health(ctx); err != nil {
		logger.Warn("auth service not available", zap.Error(err))
	}
	checks = append(checks, handler.HealthCheck{Name: "auth", Check: func(ctx context.Context) bool {
		return authc.Health(ctx) == nil
	}})

	m := metrics.New(nil)
	policy := cfg.Policy()

	h := handler.New(handler.Deps{
		Pipeline:     attendance.NewPipeline(stores.Identities, stores.Devices, stores.Ledger, policy),
		History:      attendance.NewHistory(stores.Identities, stores.Ledger),
		Registration: registration.NewService(registration.NewValidator(policy), stores.Identities, authc),
		Devices:      device.NewService(stores.Identities, stores.Devices),
		Accounts: account.NewService(stores.Identities, stores.Tokens, authc, account.TokenConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: cfg.JWTSigningKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		}, cfg.AdminRolls),
		Queue:   q,
		Metrics: m,
		Logger:  logger,
		Health:  checks,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(logger, "/healthz", "/metrics", "/ping"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	var fallback httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		fallback = limiter
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}
	r.Use(httpmiddleware.RateLimit(limiter, fallback, m.RateLimited.Inc, logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r, auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// newQueue builds the event queue. The memory queue has no other process to drain it, so
// an in-process audit worker consumes it until the returned close func runs.
func newQueue(ctx context.Context, cfg config.App, redisClient *store.Redis, auditStore audit.Store, logger *zap.Logger) (queue.Queue, func(), error) {
	switch cfg.QueueBackend {
	case "memory":
		q := queue.NewInMemory(256)
		workerCtx, stop := context.WithCancel(ctx)
		msgs, err := q.Consume(workerCtx)
		if err != nil {
			stop()
			return nil, nil, err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = audit.NewWorker(auditStore, logger).Run(workerCtx, msgs)
		}()
		return q, func() { stop(); <-done }, nil
	case "kafka":
		kq := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		return kq, func() {
			if err := kq.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}, nil
	default:
		return queue.NewRedisQueue(redisClient.Client, "", logger), func() {}, nil
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
