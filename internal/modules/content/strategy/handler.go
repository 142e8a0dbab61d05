package strategy

import (
	"errors"
	"fmt"

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
	g := rg.Group("/strategies", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/ideas", append(triggerMW, h.generateIdeas)...)
}

func (h *Handler) list(c *gin.Context) {
	companyID, ok := params.QueryID(c, "company_id")
	if !ok {
		return
	}
	items, pag, err := h.svc.List(middleware.CurrentUserID(c), companyID, pagination.FromContext(c, "created_at", "title"))
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
	st, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if st == nil {
		response.NotFoundMsg(c, "strategy not found")
		return
	}
	response.OK(c, st)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateStrategyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	st, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		response.UnprocessableEntity(c, err.Error())
	case err != nil:
		response.BadRequest(c, err.Error())
	default:
		response.Created(c, st)
	}
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto UpdateStrategyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	st, err := h.svc.Update(middleware.CurrentUserID(c), id, &dto)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if st == nil {
		response.NotFoundMsg(c, "strategy not found")
		return
	}
	response.OK(c, st)
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
		response.NotFoundMsg(c, "strategy not found")
		return
	}
	response.NoContent(c)
}

type ideasDTO struct {
	AngleNumber int      `json:"angle_number" binding:"required"`
	Platforms   []string `json:"platforms"    binding:"required"`
	Attempts    int      `json:"attempts"`
}

// generateIdeas POST /strategies/:id/ideas asks the workflow for ideas on
// one angle of the strategy.
func (h *Handler) generateIdeas(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto ideasDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	st, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if st == nil {
		response.NotFoundMsg(c, "strategy not found")
		return
	}
	if _, ok := st.Angle(dto.AngleNumber); !ok {
		response.UnprocessableEntity(c, fmt.Sprintf("strategy %d has no angle %d", st.ID, dto.AngleNumber))
		return
	}

	p := h.auto.Builder().GenerateIdeas(c.Request.Context(), automation.IdeasInput{
		CompanyID:   int64(st.CompanyID),
		StrategyID:  int64(st.ID),
		AngleNumber: dto.AngleNumber,
		Platforms:   dto.Platforms,
	})
	out, err := h.auto.Deliver(c.Request.Context(), st.UserID, p, dto.Attempts)
	automation.Respond(c, out, err)
}
