package idea

import (
	"errors"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/params"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc  *Service
	auto *automation.Service
}

func NewHandler(svc *Service, auto *automation.Service) *Handler {
	return &Handler{svc: svc, auto: auto}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, triggerMW ...gin.HandlerFunc) {
	g := rg.Group("/ideas", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/content", append(triggerMW, h.generateContent)...)
}

func (h *Handler) list(c *gin.Context) {
	companyID, ok := params.QueryID(c, "company_id")
	if !ok {
		return
	}
	strategyID, ok := params.QueryID(c, "strategy_id")
	if !ok {
		return
	}
	items, pag, err := h.svc.List(middleware.CurrentUserID(c),
		ListFilter{CompanyID: companyID, StrategyID: strategyID},
		pagination.FromContext(c, "created_at", "title", "angle_number"))
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
	idea, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if idea == nil {
		response.NotFoundMsg(c, "idea not found")
		return
	}
	response.OK(c, idea)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateIdeaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	idea, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	switch {
	case errors.Is(err, ErrStrategyNotFound):
		response.UnprocessableEntity(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Created(c, idea)
	}
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto UpdateIdeaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	idea, err := h.svc.Update(middleware.CurrentUserID(c), id, &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if idea == nil {
		response.NotFoundMsg(c, "idea not found")
		return
	}
	response.OK(c, idea)
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
		response.NotFoundMsg(c, "idea not found")
		return
	}
	response.NoContent(c)
}

type contentDTO struct {
	Platforms []string `json:"platforms"`
	Attempts  int      `json:"attempts"`
}

// generateContent POST /ideas/:id/content. Without platforms in the body the
// idea's own platforms are used.
func (h *Handler) generateContent(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto contentDTO
	if !params.OptionalJSON(c, &dto) {
		return
	}
	idea, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if idea == nil {
		response.NotFoundMsg(c, "idea not found")
		return
	}
	platforms := dto.Platforms
	if len(platforms) == 0 {
		platforms = idea.Platforms
	}

	p := h.auto.Builder().GenerateContent(c.Request.Context(), automation.ContentInput{
		CompanyID:  int64(idea.CompanyID),
		StrategyID: int64(idea.StrategyID),
		IdeaID:     int64(idea.ID),
		Platforms:  platforms,
	})
	out, err := h.auto.Deliver(c.Request.Context(), idea.UserID, p, dto.Attempts)
	automation.Respond(c, out, err)
}
