// Package middleware wires the cross-cutting HTTP concerns: authentication,
// error rendering, logging, rate limiting and the rest of the request
// plumbing shared by every route.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/audit"
	"github.com/clinovia/clinic-api/pkg/auth"
)

// Authenticate verifies the bearer token and parks the acting user on the
// context for handlers to pick up. The client address is threaded through the
// request context so audit entries can attach it.
func Authenticate(tokens auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "Authentication required.")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "Authorization header must be: Bearer <token>.")
			return
		}

		claims, err := tokens.ValidateAccessToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token.")
			return
		}

		actor := &model.Actor{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		}
		c.Set(handler.ActorKey, actor)
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// RequireRole admits only actors holding one of the given roles. It must run
// after Authenticate.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := handler.Actor(c)
		if actor == nil {
			abortUnauthorized(c, "Authentication required.")
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			handler.NewErrorResponse("You do not have permission to perform this action."))
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse(message))
}
