package app

import (
	"net/http"
	"time"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/modules/activity"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/modules/content/company"
	"github.com/contentflow/core/internal/modules/content/idea"
	"github.com/contentflow/core/internal/modules/content/post"
	"github.com/contentflow/core/internal/modules/content/strategy"
	"github.com/contentflow/core/internal/modules/storage/upload"
	"github.com/contentflow/core/internal/modules/tasks/crontask"
	"github.com/contentflow/core/internal/modules/video"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	apiPrefix     = "/api/v1"
	triggerLimit  = 30
	triggerWindow = time.Minute
	appName       = "contentflow-core"
	appVersion    = "1.0.0"
)

func (a *App) registerRoutes() {
	r := a.router
	rdb := a.rc.Raw()
	authMW := middleware.Auth(a.tokens)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Trigger endpoints reach the workflow engine; they are rate limited per
	// caller and guarded against duplicate submissions.
	triggerMW := []gin.HandlerFunc{
		middleware.RateLimit(rdb, "trigger", triggerLimit, triggerWindow),
		middleware.Idempotence(rdb),
	}

	api := r.Group(apiPrefix)
	api.GET("", a.info)
	api.GET("/health", a.health)

	automation.NewHandler(a.auto).RegisterRoutes(api, authMW, triggerMW...)
	activity.NewHandler(a.activity).RegisterRoutes(api, authMW)
	crontask.NewHandler(a.sched, a.jobs).RegisterRoutes(api, authMW, middleware.Admin(a.cfg.Admins))

	company.NewHandler(company.NewService(a.db), a.auto).RegisterRoutes(api, authMW, triggerMW...)
	strategy.NewHandler(strategy.NewService(a.db), a.auto).RegisterRoutes(api, authMW, triggerMW...)
	idea.NewHandler(idea.NewService(a.db), a.auto).RegisterRoutes(api, authMW, triggerMW...)
	post.NewHandler(post.NewService(a.db)).RegisterRoutes(api, authMW)

	if a.video != nil {
		video.NewHandler(a.video).RegisterRoutes(api, authMW, triggerMW...)
	}
	upload.NewHandler(a.uploader).RegisterRoutes(api, authMW)
}

func (a *App) info(c *gin.Context) {
	response.OK(c, gin.H{
		"name":    appName,
		"version": appVersion,
		"env":     a.cfg.Env,
		"uptime":  humanizeDuration(time.Since(processStart)),
	})
}

// health pings the database and Redis.
func (a *App) health(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "down"
		healthy = false
	}
	if err := a.rc.Raw().Ping(ctx).Err(); err != nil {
		checks["redis"] = "down"
		healthy = false
	}
	if !healthy {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"ok":      0,
			"code":    http.StatusServiceUnavailable,
			"message": "service degraded",
			"checks":  checks,
		})
		return
	}
	response.OK(c, gin.H{"ok": 1, "checks": checks})
}
