package company

import (
	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/models"
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
	g := rg.Group("/companies", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	g.POST("/:id/autofill", append(triggerMW, h.autofill)...)
	g.POST("/:id/angles", append(triggerMW, h.angles)...)
	g.POST("/:id/campaigns", append(triggerMW, h.campaign)...)
}

func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(middleware.CurrentUserID(c), pagination.FromContext(c, "created_at", "name"), c.Query("q"))
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
	co, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if co == nil {
		response.NotFoundMsg(c, "company not found")
		return
	}
	response.OK(c, co)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateCompanyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	co, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, co)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := params.ID(c, "id")
	if !ok {
		return
	}
	var dto UpdateCompanyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	co, err := h.svc.Update(middleware.CurrentUserID(c), id, &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if co == nil {
		response.NotFoundMsg(c, "company not found")
		return
	}
	response.OK(c, co)
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
		response.NotFoundMsg(c, "company not found")
		return
	}
	response.NoContent(c)
}

type triggerDTO struct {
	Platforms []string           `json:"platforms"`
	Attempts  int                `json:"attempts"`
	Product   automation.Product `json:"product"`
	Images    []string           `json:"images"`
}

func (h *Handler) autofill(c *gin.Context) {
	co, dto, ok := h.loadForTrigger(c)
	if !ok {
		return
	}
	p := h.auto.Builder().Autofill(c.Request.Context(), automation.AutofillInput{
		Website:   co.Website,
		CompanyID: int64(co.ID),
	})
	out, err := h.auto.Deliver(c.Request.Context(), co.UserID, p, dto.Attempts)
	automation.Respond(c, out, err)
}

func (h *Handler) angles(c *gin.Context) {
	co, dto, ok := h.loadForTrigger(c)
	if !ok {
		return
	}
	platforms := dto.Platforms
	if len(platforms) == 0 {
		platforms = co.Platforms
	}
	p := h.auto.Builder().GenerateAngles(c.Request.Context(), automation.AnglesInput{
		CompanyID: int64(co.ID),
		Brand:     BrandOf(co),
		Platforms: platforms,
	})
	out, err := h.auto.Deliver(c.Request.Context(), co.UserID, p, dto.Attempts)
	automation.Respond(c, out, err)
}

func (h *Handler) campaign(c *gin.Context) {
	co, dto, ok := h.loadForTrigger(c)
	if !ok {
		return
	}
	platforms := dto.Platforms
	if len(platforms) == 0 {
		platforms = co.Platforms
	}
	p := h.auto.Builder().ProductCampaign(c.Request.Context(), automation.CampaignInput{
		CompanyID: int64(co.ID),
		Product:   dto.Product,
		Platforms: platforms,
		Images:    dto.Images,
	})
	out, err := h.auto.Deliver(c.Request.Context(), co.UserID, p, dto.Attempts)
	automation.Respond(c, out, err)
}

// loadForTrigger resolves the company and an optional JSON body.
func (h *Handler) loadForTrigger(c *gin.Context) (*models.CompanyModel, triggerDTO, bool) {
	var dto triggerDTO
	id, ok := params.ID(c, "id")
	if !ok {
		return nil, dto, false
	}
	if !params.OptionalJSON(c, &dto) {
		return nil, dto, false
	}
	co, err := h.svc.GetByID(middleware.CurrentUserID(c), id)
	if err != nil {
		response.InternalError(c, err)
		return nil, dto, false
	}
	if co == nil {
		response.NotFoundMsg(c, "company not found")
		return nil, dto, false
	}
	return co, dto, true
}
