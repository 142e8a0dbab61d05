package post

import (
	"errors"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/params"
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
	posts := rg.Group("/posts", authMW)
	posts.GET("", h.list)
	posts.GET("/:id", h.get)
	posts.GET("/:id/preview", h.preview)
	posts.POST("", h.create)
	posts.PUT("/:id", h.update)
	posts.PATCH("/:id", h.update)
	posts.DELETE("/:id", h.delete)
}

// list GET /posts?company_id=&status=&platform=
func (h *Handler) list(c *gin.Context) {
	var lq ListQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	items, pag, err := h.svc.List(middleware.CurrentUserID(c), lq,
		pagination.FromContext(c, "created_at", "scheduled_at", "status"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFoundMsg(c, "post not found")
		return
	}
	response.OK(c, p)
}

// preview GET /posts/:id/preview renders the body as HTML.
func (h *Handler) preview(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFoundMsg(c, "post not found")
		return
	}
	response.OK(c, previewResponse{ID: p.ID, Title: p.Title, Platform: p.Platform, HTML: RenderMarkdown(p.Body)})
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		response.UnprocessableEntity(c, err.Error())
	case err != nil:
		response.BadRequest(c, err.Error())
	default:
		response.Created(c, p)
	}
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto UpdatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Update(middleware.CurrentUserID(c), id, &dto)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if p == nil {
		response.NotFoundMsg(c, "post not found")
		return
	}
	response.OK(c, p)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	found, err := h.svc.Delete(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFoundMsg(c, "post not found")
		return
	}
	response.NoContent(c)
}
