package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{Data: data, Pagination: pagination})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Accepted sends a 202 response for work that continues in the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": 0, "code": status, "message": message})
}

func BadRequest(c *gin.Context, message string) { abort(c, http.StatusBadRequest, message) }

func Unauthorized(c *gin.Context) { abort(c, http.StatusUnauthorized, "authentication required") }

func Forbidden(c *gin.Context) { abort(c, http.StatusForbidden, "forbidden") }

func NotFound(c *gin.Context) { abort(c, http.StatusNotFound, "not found") }

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) { abort(c, http.StatusNotFound, message) }

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	abort(c, http.StatusInternalServerError, err.Error())
}

func Conflict(c *gin.Context, message string) { abort(c, http.StatusConflict, message) }

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	abort(c, http.StatusUnprocessableEntity, message)
}

// Invalid sends a 422 response listing every blocking problem, plus any
// non-blocking warnings, so a form can show them all at once.
func Invalid(c *gin.Context, errs []string, warnings interface{}) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"ok":       0,
		"code":     http.StatusUnprocessableEntity,
		"message":  "validation failed",
		"errors":   errs,
		"warnings": warnings,
	})
}

// BadGateway reports a failure of an upstream workflow or provider. data,
// when set, carries the upstream outcome.
func BadGateway(c *gin.Context, message string, data interface{}) {
	body := gin.H{"ok": 0, "code": http.StatusBadGateway, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, body)
}

func ServiceUnavailable(c *gin.Context, message string) {
	abort(c, http.StatusServiceUnavailable, message)
}

func MethodNotAllowed(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, "method not allowed")
}
