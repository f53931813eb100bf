package middleware

import (
	"strings"

	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
	RoleKey   = "userRole"
)

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context.
// Browsers cannot set headers on WebSocket upgrades, so a `token` query parameter is
// accepted as a fallback.
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.FromContext(c).Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole returns a middleware that requires the user to have a specific role
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		if !claims.HasRole(role) {
			c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// Claims returns the JWT claims stored by JWTAuthMiddleware
func Claims(c *gin.Context) (*jwt.JWTClaims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.JWTClaims)
	return claims, ok
}

// CurrentUserID returns the authenticated user's id
func CurrentUserID(c *gin.Context) (uint, bool) {
	claims, ok := Claims(c)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}
