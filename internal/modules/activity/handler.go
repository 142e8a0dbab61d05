package activity

import (
	"errors"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/models"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/activity", authMW)
	g.GET("", h.list)
	g.GET("/:request_id", h.get)
	g.DELETE("", h.clear)
}

func (h *Handler) list(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.ActivityQueued, models.ActivityOK, models.ActivityError, models.ActivityCancelled:
	default:
		response.BadRequest(c, "status must be queued, ok, error or cancelled")
		return
	}
	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), pagination.FromContext(c, "timestamp", "kind", "status"), status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	row, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("request_id"))
	if errors.Is(err, ErrNotFound) {
		response.NotFoundMsg(c, "activity not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, row)
}

func (h *Handler) clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": n})
}
