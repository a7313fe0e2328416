package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/api"
	"github.com/lalith-99/castboard/internal/cache"
	"github.com/lalith-99/castboard/internal/config"
	"github.com/lalith-99/castboard/internal/db"
	"github.com/lalith-99/castboard/internal/middleware"
	"github.com/lalith-99/castboard/internal/observ"
	"github.com/lalith-99/castboard/internal/repository"
	"github.com/lalith-99/castboard/internal/repository/postgres"
	"github.com/lalith-99/castboard/internal/storage"
	"github.com/lalith-99/castboard/internal/upload"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no parent request or deadline, so Background() is right
	// here; every HTTP request later gets its own cancellable context.
	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional: no REDIS_URL means poll reads go straight to
	// Postgres. A configured-but-unreachable Redis fails startup loudly
	// instead of silently running slow.
	rdb, err := cache.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	channelCache := cache.NewChannelCache(rdb, cfg.PollCacheTTL, logger)

	pool := database.Pool()
	var channelRepo repository.ChannelRepository = postgres.NewChannelStore(pool)
	var mediaRepo repository.MediaRepository = postgres.NewMediaStore(pool)
	var userRepo repository.UserRepository = postgres.NewUserStore(pool)

	blobs, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("init upload dir: %w", err)
	}

	if err := ensureAdmin(ctx, userRepo, cfg, logger); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	pipeline := upload.NewPipeline(mediaRepo, channelRepo, blobs, upload.Limits{
		MaxFileSize: cfg.MaxFileSize,
		AllowedMIME: cfg.AllowedMIME,
	}, logger)

	channelHandler := api.NewChannelHandler(channelRepo, channelCache, logger)
	mediaHandler := api.NewMediaHandler(mediaRepo, blobs, logger)
	manageHandler := api.NewManageHandler(channelRepo, mediaRepo, pipeline, blobs, channelCache, logger)
	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// In-memory multipart threshold; larger uploads spill to temp files.
	// The actual size ceiling is enforced by the upload pipeline.
	srv.MaxMultipartMemory = 32 << 20

	// Health check is public; load balancers hit this unauthenticated.
	srv.GET("/api/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Reads are public: displays are unattended and carry no credentials.
	srv.GET("/api/channels", channelHandler.List)
	srv.GET("/api/channels/:name", channelHandler.Get)
	srv.GET("/api/media", mediaHandler.List)
	srv.GET("/api/media/:id", mediaHandler.Get)
	srv.GET("/api/media/:id/download", mediaHandler.Download)

	srv.POST("/api/auth/login", authHandler.Login)

	// All mutations go through the guarded manage endpoint.
	manage := srv.Group("/api")
	manage.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	manage.POST("/manage", manageHandler.Handle)

	logger.Info("starting castboard",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("upload_dir", cfg.UploadDir),
		zap.Bool("poll_cache", rdb != nil),
	)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// ensureAdmin creates the operator account on first boot when
// ADMIN_PASSWORD is set. Idempotent: an existing account is left alone
// (in particular its password is never reset from env).
func ensureAdmin(ctx context.Context, users repository.UserRepository, cfg *config.Config, logger *zap.Logger) error {
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin seed; manage API unusable until a user exists")
		return nil
	}

	existing, err := users.GetByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := users.Create(ctx, cfg.AdminUsername, string(hash)); err != nil {
		return err
	}

	logger.Info("admin user created", zap.String("username", cfg.AdminUsername))
	return nil
}
