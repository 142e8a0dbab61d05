package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/contentflow/core/internal/config"
	"github.com/contentflow/core/internal/database"
	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/modules/activity"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/modules/storage/upload"
	"github.com/contentflow/core/internal/modules/video"
	pkgcron "github.com/contentflow/core/internal/pkg/cron"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/jwt"
	pkgredis "github.com/contentflow/core/internal/pkg/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	tokens *jwt.Verifier
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	activity *activity.Service
	auto     *automation.Service
	jobs     *jobs.Store
	video    *video.Service
	uploader upload.Uploader
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rc, err := pkgredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		cancel()
		_ = database.Close(db)
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	a := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		tokens: tokens,
		logger: logger,
		cancel: cancel,
		sched:  pkgcron.New(pkgcron.WithLogger(logger)),
	}
	if err := a.buildServices(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}

	if err := registerCronJobs(a.sched, a.activity, a.jobs, logger); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("cron: %w", err)
	}
	go a.sched.Start(ctx)

	if a.video != nil {
		go func() {
			n, err := a.video.Resume(ctx)
			if err != nil {
				logger.Warn("resume video jobs failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("resumed video jobs", zap.Int("count", n))
			}
		}()
	}

	a.registerRoutes()
	return a, nil
}

func (a *App) buildServices(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	builder := automation.NewBuilder(
		automation.WithUserResolver(automation.UserResolverFunc(middleware.UserIDFromContext)),
		automation.WithSource(cfg.Automation.Source),
	)
	client := automation.NewClient(automation.ClientConfig{
		BaseOrigin: cfg.Automation.BaseOrigin,
		ClientTag:  cfg.Automation.ClientTag,
		Env:        cfg.Env,
		Timeout:    cfg.Automation.Timeout,
		RetryBase:  cfg.Automation.RetryBase,
		RetryMax:   cfg.Automation.RetryMax,
		Paths:      cfg.Automation.Paths,
	}, automation.WithLogger(logger))

	a.activity = activity.NewService(a.db, activity.WithLogger(logger))
	a.auto = automation.NewService(builder, client, a.activity,
		cfg.Automation.RetryAttempts, config.MaxRetryAttempts, logger)
	a.jobs = jobs.NewStore(a.rc)

	if cfg.Video.BaseURL != "" {
		provider := video.NewProvider(cfg.Video.BaseURL, cfg.Video.APIKey, nil)
		a.video = video.NewService(ctx, builder, client, a.jobs, a.activity, provider, video.Config{
			Attempts:     cfg.Automation.RetryAttempts,
			PollInterval: cfg.Video.PollInterval,
			PollTimeout:  cfg.Video.PollTimeout,
		}, logger)
	} else {
		logger.Warn("video.base_url is empty, avatar video endpoints are disabled")
	}

	if cfg.Storage.S3.Enabled() {
		up, err := upload.NewS3Uploader(cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.uploader = up
	} else {
		logger.Warn("storage.s3 is not configured, uploads are disabled")
	}
	return nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, origin)
		}
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background work and releases connections. Running video
// jobs are left in the store and picked up again by the next start.
func (a *App) Shutdown() {
	a.cancel()
	if a.video != nil {
		a.video.Shutdown()
	}
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("close redis failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database failed", zap.Error(err))
		}
	}
}

var processStart = time.Now()
