package video

import (
	"errors"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, triggerMW ...gin.HandlerFunc) {
	g := rg.Group("/videos", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", append(triggerMW, h.start)...)
	g.POST("/:id/cancel", h.cancel)
}

func (h *Handler) start(c *gin.Context) {
	var in StartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	out, err := h.svc.Start(c.Request.Context(), middleware.CurrentUserID(c), in)
	var invalid *automation.ValidationError
	switch {
	case errors.As(err, &invalid):
		response.Invalid(c, invalid.Result.Errors, invalid.Result.Warnings)
	case errors.Is(err, ErrNotAccepted), errors.Is(err, ErrNoJobID):
		msg := err.Error()
		if out != nil && out.Delivery != nil && errors.Is(err, ErrNotAccepted) && out.Delivery.Status != 0 {
			msg = automation.UpstreamMessage(out.Delivery)
		}
		response.BadGateway(c, msg, out)
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Accepted(c, out)
	}
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), q.Page, q.Size)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pagination.Meta(total, q))
}

func (h *Handler) get(c *gin.Context) {
	j, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		response.NotFoundMsg(c, "video job not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, j)
}

func (h *Handler) cancel(c *gin.Context) {
	j, err := h.svc.Cancel(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		response.NotFoundMsg(c, "video job not found")
	case errors.Is(err, jobs.ErrNotRunning):
		response.Conflict(c, "video job already finished")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, j)
	}
}
