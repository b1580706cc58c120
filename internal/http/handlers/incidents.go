package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

var (
	incidentSeverities = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}
	incidentStatuses   = []string{"OPEN", "INVESTIGATING", "RESOLVED", "CLOSED"}
)

const (
	maxIncidentTitle       = 255
	maxIncidentDescription = 2000
	maxIncidentAssignee    = 100
)

// IncidentsHandler serves the incident tracking endpoints.
type IncidentsHandler struct {
	st store.Store
}

func NewIncidentsHandler(st store.Store) *IncidentsHandler {
	return &IncidentsHandler{st: st}
}

func incidentJSON(row store.Row) gin.H {
	return gin.H{
		"id":          rowID(row),
		"title":       util.AsString(row["title"]),
		"description": util.AsString(row["description"]),
		"severity":    util.AsString(row["severity"]),
		"status":      util.AsString(row["status"]),
		"assignedTo":  util.AsString(row["assigned_to"]),
		"reportedBy":  row["reported_by"],
		"reportedAt":  row["reported_at"],
		"updatedAt":   row["updated_at"],
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// List returns incidents, newest first, optionally filtered by status.
func (h *IncidentsHandler) List(c *gin.Context) {
	query := store.Query{
		OrderBy: "reported_at",
		Limit:   parseLimit(c, 100, 200),
	}
	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" && status != "ALL" {
		query.Filters = map[string]any{"status": status}
	}
	rows, errList := h.st.List(c.Request.Context(), models.TableIncidents, query)
	if errList != nil {
		storeFail(c, errList, "Not found", "Failed to list incidents")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, incidentJSON(row))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one incident.
func (h *IncidentsHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, errFind := h.st.Get(c.Request.Context(), models.TableIncidents, id)
	if errFind != nil {
		storeFail(c, errFind, "Not found", "Failed to fetch incident")
		return
	}
	c.JSON(http.StatusOK, incidentJSON(row))
}

// Create reports a new incident. New incidents always open as OPEN; the
// free-text fields are truncated to their column limits rather than
// rejected.
func (h *IncidentsHandler) Create(c *gin.Context) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		AssignedTo  string `json:"assignedTo"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	severity := strings.ToUpper(strings.TrimSpace(body.Severity))
	if title == "" || severity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and severity are required"})
		return
	}
	if !inList(severity, incidentSeverities) {
		c.JSON(http.StatusBadRequest, gin.H{"error": enumError("severity", incidentSeverities)})
		return
	}

	now := time.Now().UTC()
	id, errCreate := h.st.Insert(c.Request.Context(), models.TableIncidents, store.Row{
		"title":       truncate(title, maxIncidentTitle),
		"description": truncate(strings.TrimSpace(body.Description), maxIncidentDescription),
		"severity":    severity,
		"status":      "OPEN",
		"assigned_to": truncate(strings.TrimSpace(body.AssignedTo), maxIncidentAssignee),
		"reported_by": currentUserID(c),
		"reported_at": now,
		"updated_at":  now,
	})
	if errCreate != nil {
		storeFail(c, errCreate, "Not found", "Failed to create incident")
		return
	}
	created, errFetch := h.st.Get(c.Request.Context(), models.TableIncidents, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Not found", "Failed to create incident")
		return
	}
	c.JSON(http.StatusCreated, incidentJSON(created))
}

// UpdateStatus moves an incident through its lifecycle. The new status may
// arrive as a query parameter or in the body.
func (h *IncidentsHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	status := strings.TrimSpace(c.Query("status"))
	if status == "" {
		var body struct {
			Status string `json:"status"`
		}
		if errBind := c.ShouldBindJSON(&body); errBind == nil {
			status = strings.TrimSpace(body.Status)
		}
	}
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	status = strings.ToUpper(status)
	if !inList(status, incidentStatuses) {
		c.JSON(http.StatusBadRequest, gin.H{"error": enumError("status", incidentStatuses)})
		return
	}

	affected, errUpdate := h.st.Update(c.Request.Context(), models.TableIncidents, id, store.Row{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if errUpdate != nil {
		storeFail(c, errUpdate, "Not found", "Failed to update incident")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	updated, errFetch := h.st.Get(c.Request.Context(), models.TableIncidents, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Not found", "Failed to update incident")
		return
	}
	c.JSON(http.StatusOK, incidentJSON(updated))
}
