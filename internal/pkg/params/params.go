// Package params reads typed route and query parameters and optional JSON
// bodies.
package params

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// ID parses the numeric route parameter name. Anything else answers 404
// and returns false.
func ID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.NotFound(c)
		return 0, false
	}
	return id, true
}

// QueryID parses an optional numeric filter such as ?company_id=12. ok is
// false when the value is present but malformed; the request is then
// already answered with 400.
func QueryID(c *gin.Context, name string) (id uint64, ok bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.BadRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// OptionalJSON binds a JSON body into dst when the request has one. An absent
// or empty body, chunked or not, leaves dst untouched. A malformed body is
// answered with 400 and false is returned.
func OptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}
