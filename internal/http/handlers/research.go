package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

var (
	researchStatuses      = []string{"active", "pending", "completed", "archived"}
	researchTypes         = []string{"online", "offline"}
	researchSearchColumns = []string{"title", "lead_researcher", "description", "tags"}
)

// ResearchHandler serves research projects and their collaborators.
type ResearchHandler struct {
	st store.Store
}

func NewResearchHandler(st store.Store) *ResearchHandler {
	return &ResearchHandler{st: st}
}

type collaboratorBody struct {
	ResearcherName string `json:"researcher_name"`
	Role           string `json:"role"`
	Email          string `json:"email"`
}

type researchBody struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Status         string             `json:"status"`
	Type           string             `json:"type"`
	LeadResearcher string             `json:"lead_researcher"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Progress       *int               `json:"progress"`
	Tags           any                `json:"tags"`
	Collaborators  []collaboratorBody `json:"collaborators"`
}

func (b *researchBody) validate(c *gin.Context) (store.Row, bool) {
	title := strings.TrimSpace(b.Title)
	status := strings.ToLower(strings.TrimSpace(b.Status))
	projectType := strings.ToLower(strings.TrimSpace(b.Type))
	lead := strings.TrimSpace(b.LeadResearcher)
	if title == "" || status == "" || projectType == "" || lead == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, status, type, and lead researcher are required"})
		return nil, false
	}
	if !inList(status, researchStatuses) {
		c.JSON(http.StatusBadRequest, gin.H{"error": enumError("status", researchStatuses)})
		return nil, false
	}
	if !inList(projectType, researchTypes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": enumError("type", researchTypes)})
		return nil, false
	}
	progress := 0
	if b.Progress != nil {
		progress = *b.Progress
	}
	if progress < 0 || progress > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Progress must be between 0 and 100"})
		return nil, false
	}
	row := store.Row{
		"title":           title,
		"description":     strings.TrimSpace(b.Description),
		"status":          status,
		"type":            projectType,
		"lead_researcher": lead,
		"progress":        progress,
		"tags":            normalizeTags(b.Tags),
	}
	if start := strings.TrimSpace(b.StartDate); start != "" {
		row["start_date"] = start
	} else {
		row["start_date"] = nil
	}
	if end := strings.TrimSpace(b.EndDate); end != "" {
		row["end_date"] = end
	} else {
		row["end_date"] = nil
	}
	return row, true
}

// List returns projects with optional status/type filters and free-text
// search over title, lead researcher, description and tags.
func (h *ResearchHandler) List(c *gin.Context) {
	query := store.Query{
		OrderBy: "created_at",
		Limit:   parseLimit(c, 50, 200),
	}
	filters := map[string]any{}
	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" && status != "all" {
		filters["status"] = status
	}
	if projectType := strings.ToLower(strings.TrimSpace(c.Query("type"))); projectType != "" && projectType != "all" {
		filters["type"] = projectType
	}
	if len(filters) > 0 {
		query.Filters = filters
	}
	if term := strings.TrimSpace(c.Query("search")); term != "" {
		query.Search = &store.Search{Term: term, Columns: researchSearchColumns}
	}
	rows, errList := h.st.List(c.Request.Context(), models.TableResearch, query)
	if errList != nil {
		storeFail(c, errList, "not found", "Failed to list research projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": rows})
}

// Get returns one project with its collaborators embedded.
func (h *ResearchHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, errFind := h.st.Get(c.Request.Context(), models.TableResearch, id)
	if errFind != nil {
		storeFail(c, errFind, "Research project not found", "Failed to fetch research project")
		return
	}
	collaborators, errCollab := h.st.List(c.Request.Context(), models.TableCollaborators, store.Query{
		Filters:   map[string]any{"project_id": id},
		OrderBy:   "id",
		Ascending: true,
	})
	if errCollab != nil {
		storeFail(c, errCollab, "Research project not found", "Failed to fetch research project")
		return
	}
	project["collaborators"] = collaborators
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// Create adds a project and any inline collaborators. If a collaborator
// insert fails the fresh project is deleted again so no half-created project
// is left behind.
func (h *ResearchHandler) Create(c *gin.Context) {
	var body researchBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, ok := body.validate(c)
	if !ok {
		return
	}
	now := time.Now().UTC()
	row["created_by"] = currentUserID(c)
	row["created_at"] = now
	row["updated_at"] = now

	ctx := c.Request.Context()
	id, errCreate := h.st.Insert(ctx, models.TableResearch, row)
	if errCreate != nil {
		storeFail(c, errCreate, "not found", "Failed to create research project")
		return
	}

	for _, collab := range body.Collaborators {
		name := strings.TrimSpace(collab.ResearcherName)
		if name == "" {
			continue
		}
		_, errCollab := h.st.Insert(ctx, models.TableCollaborators, store.Row{
			"project_id":      id,
			"researcher_name": name,
			"role":            strings.TrimSpace(collab.Role),
			"email":           strings.TrimSpace(collab.Email),
			"created_at":      now,
		})
		if errCollab != nil {
			if _, errRollback := h.st.Delete(ctx, models.TableResearch, id); errRollback != nil {
				log.WithError(errRollback).Error("rollback research project")
			}
			log.WithError(errCollab).Error("create collaborator")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create research project"})
			return
		}
	}

	created, errFetch := h.st.Get(ctx, models.TableResearch, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Research project not found", "Failed to create research project")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": created, "message": "Research project created successfully"})
}

// Update replaces a project's fields with the same validation as Create.
func (h *ResearchHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body researchBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, ok := body.validate(c)
	if !ok {
		return
	}
	row["updated_at"] = time.Now().UTC()

	affected, errUpdate := h.st.Update(c.Request.Context(), models.TableResearch, id, row)
	if errUpdate != nil {
		storeFail(c, errUpdate, "Research project not found", "Failed to update research project")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Research project not found"})
		return
	}
	updated, errFetch := h.st.Get(c.Request.Context(), models.TableResearch, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Research project not found", "Failed to update research project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": updated, "message": "Research project updated successfully"})
}

// UpdateProgress sets just the progress percentage.
func (h *ResearchHandler) UpdateProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Progress *json.Number `json:"progress"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Progress == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Progress must be between 0 and 100"})
		return
	}
	progress, errNum := body.Progress.Int64()
	if errNum != nil || progress < 0 || progress > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Progress must be between 0 and 100"})
		return
	}

	affected, errUpdate := h.st.Update(c.Request.Context(), models.TableResearch, id, store.Row{
		"progress":   progress,
		"updated_at": time.Now().UTC(),
	})
	if errUpdate != nil {
		storeFail(c, errUpdate, "Research project not found", "Failed to update progress")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Research project not found"})
		return
	}
	updated, errFetch := h.st.Get(c.Request.Context(), models.TableResearch, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Research project not found", "Failed to update progress")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": updated, "message": "Project progress updated successfully"})
}

// Delete removes a project; its collaborators go with it.
func (h *ResearchHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	affected, errDelete := h.st.Delete(c.Request.Context(), models.TableResearch, id)
	if errDelete != nil {
		storeFail(c, errDelete, "Research project not found", "Failed to delete research project")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Research project not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Research project deleted successfully"})
}

// AddCollaborator attaches a collaborator to an existing project.
func (h *ResearchHandler) AddCollaborator(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body collaboratorBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.ResearcherName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Researcher name is required"})
		return
	}

	ctx := c.Request.Context()
	if _, errFind := h.st.Get(ctx, models.TableResearch, id); errFind != nil {
		storeFail(c, errFind, "Research project not found", "Failed to add collaborator")
		return
	}
	collabID, errCreate := h.st.Insert(ctx, models.TableCollaborators, store.Row{
		"project_id":      id,
		"researcher_name": name,
		"role":            strings.TrimSpace(body.Role),
		"email":           strings.TrimSpace(body.Email),
		"created_at":      time.Now().UTC(),
	})
	if errCreate != nil {
		storeFail(c, errCreate, "Research project not found", "Failed to add collaborator")
		return
	}
	created, errFetch := h.st.Get(ctx, models.TableCollaborators, collabID)
	if errFetch != nil {
		storeFail(c, errFetch, "Collaborator not found", "Failed to add collaborator")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collaborator": created, "message": "Collaborator added successfully"})
}

// RemoveCollaborator deletes a collaborator, scoped to the project in the
// path so a collaborator id cannot be removed through another project's URL.
func (h *ResearchHandler) RemoveCollaborator(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	collabID, ok := parseIDParam(c, "collaboratorId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	row, errFind := h.st.Get(ctx, models.TableCollaborators, collabID)
	if errFind != nil {
		storeFail(c, errFind, "Collaborator not found", "Failed to remove collaborator")
		return
	}
	owner, _ := util.AsInt64(row["project_id"])
	if owner != projectID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Collaborator not found"})
		return
	}
	if _, errDelete := h.st.Delete(ctx, models.TableCollaborators, collabID); errDelete != nil {
		storeFail(c, errDelete, "Collaborator not found", "Failed to remove collaborator")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Collaborator removed successfully"})
}

// Stats summarizes projects by status and type, counts distinct researchers
// across leads and collaborators, and averages progress over non-archived
// projects.
func (h *ResearchHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	projects, errList := h.st.List(ctx, models.TableResearch, store.Query{OrderBy: "id", Ascending: true})
	if errList != nil {
		storeFail(c, errList, "not found", "Failed to load stats")
		return
	}
	collaborators, errCollab := h.st.List(ctx, models.TableCollaborators, store.Query{OrderBy: "id", Ascending: true})
	if errCollab != nil {
		storeFail(c, errCollab, "not found", "Failed to load stats")
		return
	}

	byStatus := map[string]int{}
	byType := map[string]int{}
	researchers := map[string]struct{}{}
	progressSum, progressCount := 0, 0
	for _, row := range projects {
		status := util.AsString(row["status"])
		byStatus[status]++
		byType[util.AsString(row["type"])]++
		if lead := strings.TrimSpace(util.AsString(row["lead_researcher"])); lead != "" {
			researchers[lead] = struct{}{}
		}
		if status != "archived" {
			progress, _ := util.AsInt64(row["progress"])
			progressSum += int(progress)
			progressCount++
		}
	}
	for _, row := range collaborators {
		if name := strings.TrimSpace(util.AsString(row["researcher_name"])); name != "" {
			researchers[name] = struct{}{}
		}
	}
	averageProgress := 0
	if progressCount > 0 {
		averageProgress = int(math.Round(float64(progressSum) / float64(progressCount)))
	}

	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"totalProjects":     len(projects),
		"activeProjects":    byStatus["active"],
		"completedProjects": byStatus["completed"],
		"pendingProjects":   byStatus["pending"],
		"onlineProjects":    byType["online"],
		"offlineProjects":   byType["offline"],
		"totalResearchers":  len(researchers),
		"averageProgress":   averageProgress,
	}})
}
