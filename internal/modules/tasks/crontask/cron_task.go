// Package crontask exposes the background scheduler and the caller's
// tracked jobs over HTTP.
package crontask

import (
	"errors"

	"github.com/contentflow/core/internal/middleware"
	pkgcron "github.com/contentflow/core/internal/pkg/cron"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// Handler wraps the scheduler and the job store for HTTP access.
type Handler struct {
	sched *pkgcron.Scheduler
	store *jobs.Store
}

func NewHandler(sched *pkgcron.Scheduler, store *jobs.Store) *Handler {
	return &Handler{sched: sched, store: store}
}

// RegisterRoutes mounts the routes. The scheduler is shared by every user, so
// its routes also require adminMW; tracked jobs only need authMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/tasks", authMW)

	cron := g.Group("/cron", adminMW)
	cron.GET("", h.list)
	cron.GET("/:name", h.get)
	cron.POST("/:name/run", h.run)

	js := g.Group("/jobs")
	js.GET("", h.listJobs)
	js.GET("/:id", h.getJob)
}

// GET /tasks/cron
func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// GET /tasks/cron/:name
func (h *Handler) get(c *gin.Context) {
	item, ok := h.sched.Get(c.Param("name"))
	if !ok {
		response.NotFoundMsg(c, "scheduled job not found")
		return
	}
	response.OK(c, item)
}

// POST /tasks/cron/:name/run runs the job now and waits for it.
func (h *Handler) run(c *gin.Context) {
	name := c.Param("name")
	err := h.sched.Run(c.Request.Context(), name)
	switch {
	case errors.Is(err, pkgcron.ErrUnknownJob):
		response.NotFoundMsg(c, "scheduled job not found")
		return
	case errors.Is(err, pkgcron.ErrBusy):
		response.Conflict(c, "scheduled job is already running")
		return
	}
	item, _ := h.sched.Get(name)
	if err != nil {
		response.BadGateway(c, err.Error(), item)
		return
	}
	response.OK(c, item)
}

// GET /tasks/jobs?kind=&status=
func (h *Handler) listJobs(c *gin.Context) {
	q := pagination.FromContext(c)
	items, total, err := h.store.List(c.Request.Context(), q.Page, q.Size, jobs.Filter{
		Kind:   c.Query("kind"),
		Status: jobs.Status(c.Query("status")),
		UserID: middleware.CurrentUserID(c),
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(total, q))
}

// GET /tasks/jobs/:id
func (h *Handler) getJob(c *gin.Context) {
	j, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) || (err == nil && j.UserID != middleware.CurrentUserID(c)) {
		response.NotFoundMsg(c, "job not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, j)
}
