package middleware

import (
	"context"
	"strings"

	"github.com/contentflow/core/internal/pkg/jwt"
	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const ContextKeyUserID = "user_id"

type userIDKey struct{}

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// Auth rejects requests without a valid bearer token. The user id is stored
// on the gin context and on the request context.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, tokens) {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the user id if a valid token is present, but does not
// block the request.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, tokens)
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens TokenParser) bool {
	token := extractToken(c)
	if token == "" || tokens == nil {
		return false
	}
	claims, err := tokens.Parse(token)
	if err != nil {
		return false
	}
	c.Set(ContextKeyUserID, claims.UserID())
	c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), claims.UserID()))
	return true
}

// WithUserID attaches the acting user to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the acting user attached by the auth middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// CurrentUserID extracts the authenticated user ID from the gin context.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// Admin only lets through users listed in ids. It must run after Auth.
func Admin(ids []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			response.Unauthorized(c)
			return
		}
		if _, ok := allowed[CurrentUserID(c)]; !ok {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}
