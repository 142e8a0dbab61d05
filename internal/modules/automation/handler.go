package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the workflow endpoints. triggerMW guards the routes
// that actually deliver.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, triggerMW ...gin.HandlerFunc) {
	g := rg.Group("/automation", authMW)
	g.GET("", h.contracts)
	g.POST("/:identifier/validate", h.validate)
	g.POST("/:identifier", append(triggerMW, h.trigger)...)
}

func (h *Handler) contracts(c *gin.Context) {
	response.OK(c, h.svc.Contracts())
}

func (h *Handler) validate(c *gin.Context) {
	id := Identifier(c.Param("identifier"))
	if !id.Known() {
		response.NotFoundMsg(c, fmt.Sprintf("unknown workflow %q", id))
		return
	}
	body, err := readTriggerBody(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res := h.svc.Check(c.Request.Context(), id, body.operation, body.fields)
	if c.Query("strict") == "true" {
		res = res.Strict()
	}
	response.OK(c, res)
}

func (h *Handler) trigger(c *gin.Context) {
	id := Identifier(c.Param("identifier"))
	body, err := readTriggerBody(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	out, err := h.svc.Trigger(c.Request.Context(), TriggerRequest{
		Identifier: id,
		Operation:  body.operation,
		Fields:     body.fields,
		Attempts:   body.attempts,
		UserID:     middleware.CurrentUserID(c),
	})
	if errors.Is(err, ErrUnknownIdentifier) {
		response.NotFoundMsg(c, fmt.Sprintf("unknown workflow %q", id))
		return
	}
	Respond(c, out, err)
}

// Respond writes the outcome of a Trigger or Deliver call.
func Respond(c *gin.Context, out *TriggerResult, err error) {
	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid):
		response.Invalid(c, invalid.Result.Errors, invalid.Result.Warnings)
	case err != nil && out == nil:
		response.InternalError(c, err)
	case err != nil:
		response.BadGateway(c, err.Error(), out)
	case !out.Delivery.OK:
		response.BadGateway(c, UpstreamMessage(out.Delivery), out)
	default:
		response.OK(c, out)
	}
}

type triggerBody struct {
	operation string
	attempts  int
	fields    map[string]any
}

// readTriggerBody splits the control keys from the workflow fields. An empty
// body is an empty field set.
func readTriggerBody(c *gin.Context) (triggerBody, error) {
	out := triggerBody{fields: map[string]any{}}
	raw, err := c.GetRawData()
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out.fields); err != nil {
		return out, errors.New("body must be a JSON object")
	}
	if op, ok := out.fields["operation"].(string); ok {
		out.operation = op
	}
	if n, ok := out.fields["attempts"].(float64); ok {
		out.attempts = int(n)
	}
	delete(out.fields, "operation")
	delete(out.fields, "attempts")
	return out, nil
}
