package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

// AdminHandler serves the super-admin user management endpoints.
type AdminHandler struct {
	st store.Store
}

func NewAdminHandler(st store.Store) *AdminHandler {
	return &AdminHandler{st: st}
}

// ListUsers returns every account, newest first.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	rows, errList := h.st.List(c.Request.Context(), models.TableUsers, store.Query{
		OrderBy: "created_at",
	})
	if errList != nil {
		storeFail(c, errList, "not found", "Failed to list users")
		return
	}
	users := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		users = append(users, userJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser returns a single account.
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, errFind := h.st.Get(c.Request.Context(), models.TableUsers, id)
	if errFind != nil {
		storeFail(c, errFind, "User not found", "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(row)})
}

// UpdateRole changes an account's role and super-admin flag. Demoting the
// last remaining super admin is refused so the panel cannot lock itself out.
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Role         string `json:"role"`
		IsSuperAdmin bool   `json:"is_super_admin"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role := strings.ToLower(strings.TrimSpace(body.Role))
	if !inList(role, validRoles) {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid role. Must be "user" or "admin"`})
		return
	}

	target, errFind := h.st.Get(c.Request.Context(), models.TableUsers, id)
	if errFind != nil {
		storeFail(c, errFind, "User not found", "Failed to update role")
		return
	}
	if util.AsBool(target["is_super_admin"]) && !body.IsSuperAdmin {
		supers, errCount := h.st.Count(c.Request.Context(), models.TableUsers, map[string]any{"is_super_admin": true})
		if errCount != nil {
			storeFail(c, errCount, "User not found", "Failed to update role")
			return
		}
		if supers <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last super admin"})
			return
		}
	}

	if _, errUpdate := h.st.Update(c.Request.Context(), models.TableUsers, id, store.Row{
		"role":           role,
		"is_super_admin": body.IsSuperAdmin,
	}); errUpdate != nil {
		storeFail(c, errUpdate, "User not found", "Failed to update role")
		return
	}

	updated, errFetch := h.st.Get(c.Request.Context(), models.TableUsers, id)
	if errFetch != nil {
		storeFail(c, errFetch, "User not found", "Failed to update role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(updated), "message": "User role updated successfully"})
}

// DeleteUser removes an account. Self-deletion and deleting the last super
// admin are both refused.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	claims, _ := ClaimsFrom(c)
	if claims != nil && claims.UserID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}

	target, errFind := h.st.Get(c.Request.Context(), models.TableUsers, id)
	if errFind != nil {
		storeFail(c, errFind, "User not found", "Failed to delete user")
		return
	}
	if util.AsBool(target["is_super_admin"]) {
		supers, errCount := h.st.Count(c.Request.Context(), models.TableUsers, map[string]any{"is_super_admin": true})
		if errCount != nil {
			storeFail(c, errCount, "User not found", "Failed to delete user")
			return
		}
		if supers <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete the last super admin"})
			return
		}
	}

	affected, errDelete := h.st.Delete(c.Request.Context(), models.TableUsers, id)
	if errDelete != nil {
		storeFail(c, errDelete, "User not found", "Failed to delete user")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// Stats reports account totals and the most recent signups.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	total, errTotal := h.st.Count(ctx, models.TableUsers, nil)
	if errTotal != nil {
		storeFail(c, errTotal, "not found", "Failed to load stats")
		return
	}
	admins, errAdmins := h.st.Count(ctx, models.TableUsers, map[string]any{"role": models.RoleAdmin})
	if errAdmins != nil {
		storeFail(c, errAdmins, "not found", "Failed to load stats")
		return
	}
	supers, errSupers := h.st.Count(ctx, models.TableUsers, map[string]any{"is_super_admin": true})
	if errSupers != nil {
		storeFail(c, errSupers, "not found", "Failed to load stats")
		return
	}
	recentRows, errRecent := h.st.List(ctx, models.TableUsers, store.Query{
		OrderBy: "created_at",
		Limit:   5,
	})
	if errRecent != nil {
		storeFail(c, errRecent, "not found", "Failed to load stats")
		return
	}
	recent := make([]gin.H, 0, len(recentRows))
	for _, row := range recentRows {
		recent = append(recent, gin.H{
			"id":         rowID(row),
			"username":   util.AsString(row["username"]),
			"email":      row["email"],
			"role":       util.AsString(row["role"]),
			"created_at": row["created_at"],
		})
	}
	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"totalUsers":       total,
		"totalAdmins":      admins,
		"totalSuperAdmins": supers,
		"recentUsers":      recent,
	}})
}
