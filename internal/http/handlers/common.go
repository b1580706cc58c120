package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/security"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

// ClaimsContextKey is where the auth middleware stores verified claims.
const ClaimsContextKey = "authClaims"

// ClaimsFrom returns the verified bearer claims when the request carried a
// valid token.
func ClaimsFrom(c *gin.Context) (*security.UserClaims, bool) {
	value, ok := c.Get(ClaimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*security.UserClaims)
	return claims, ok
}

// currentUserID returns the authenticated user id, or nil for anonymous
// requests. Used for creator/reporter attribution on public endpoints.
func currentUserID(c *gin.Context) any {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return nil
	}
	return claims.UserID
}

// parseIDParam extracts a numeric id path parameter.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, errParse := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseLimit clamps an optional limit query parameter into [0, max].
func parseLimit(c *gin.Context, fallback, max int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	limit, errParse := strconv.Atoi(raw)
	if raw == "" || errParse != nil {
		limit = fallback
	}
	if limit < 0 {
		limit = 0
	}
	if limit > max {
		limit = max
	}
	return limit
}

// storeFail maps a record-store failure onto the HTTP error taxonomy. The
// backend message is logged server-side only.
func storeFail(c *gin.Context, err error, notFoundMsg, serverMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		log.WithError(err).Error(serverMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": serverMsg})
	}
}

// rowID reads the id column of a record-store row.
func rowID(row store.Row) int64 {
	id, _ := util.AsInt64(row["id"])
	return id
}

// userJSON shapes a user row for responses; the password hash and the TOTP
// secret are never serialized.
func userJSON(row store.Row) gin.H {
	out := gin.H{
		"id":             rowID(row),
		"username":       util.AsString(row["username"]),
		"role":           util.AsString(row["role"]),
		"is_super_admin": util.AsBool(row["is_super_admin"]),
		"email":          row["email"],
	}
	if createdAt, ok := row["created_at"]; ok {
		out["created_at"] = createdAt
	}
	return out
}

// normalizeTags accepts tags as a JSON array or a plain string and stores
// them comma-joined, preserving order.
func normalizeTags(value any) string {
	switch v := value.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, strings.TrimSpace(util.AsString(item)))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	case string:
		return v
	default:
		return ""
	}
}

// enumError builds the 400 message listing permitted enum values.
func enumError(field string, allowed []string) string {
	return "Invalid " + field + ". Must be one of: " + strings.Join(allowed, ", ")
}

// inList reports whether value is one of the allowed enum values.
func inList(value string, allowed []string) bool {
	for _, item := range allowed {
		if value == item {
			return true
		}
	}
	return false
}
