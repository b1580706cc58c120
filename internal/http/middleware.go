package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/http/handlers"
	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/security"
)

// bearerToken pulls the token out of an Authorization header, tolerating a
// missing "Bearer" prefix the way browser clients sometimes send it.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// verified claims to the request context.
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
			return
		}
		claims, errParse := security.ParseToken(jwtSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(handlers.ClaimsContextKey, claims)
		c.Next()
	}
}

// RequireSuperAdmin gates an endpoint to super admins: a valid token whose
// role is admin with the super-admin flag set. Missing or bad tokens get 401,
// valid tokens without the privilege get 403.
func RequireSuperAdmin(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
			return
		}
		claims, errParse := security.ParseToken(jwtSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if claims.Role != models.RoleAdmin || !claims.IsSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			return
		}
		c.Set(handlers.ClaimsContextKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present but never
// rejects the request. Used where anonymous access is allowed and the user
// id, when known, is recorded as creator or reporter.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, errParse := security.ParseToken(jwtSecret, token); errParse == nil {
				c.Set(handlers.ClaimsContextKey, claims)
			}
		}
		c.Next()
	}
}

// CORS reflects the request origin and allows credentials, matching a
// same-site frontend served from a separate dev port.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
