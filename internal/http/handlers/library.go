package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/store"
)

var libraryTypes = []string{"ebook", "article", "whitepaper", "research"}

var librarySearchColumns = []string{"title", "author", "description", "tags"}

// LibraryHandler serves the digital library CRUD and stats endpoints.
type LibraryHandler struct {
	st store.Store
}

func NewLibraryHandler(st store.Store) *LibraryHandler {
	return &LibraryHandler{st: st}
}

type libraryBody struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Author      string `json:"author"`
	Description string `json:"description"`
	URL         string `json:"url"`
	FilePath    string `json:"file_path"`
	Tags        any    `json:"tags"`
}

func (b *libraryBody) validate(c *gin.Context) (store.Row, bool) {
	title := strings.TrimSpace(b.Title)
	itemType := strings.ToLower(strings.TrimSpace(b.Type))
	author := strings.TrimSpace(b.Author)
	if title == "" || itemType == "" || author == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, type, and author are required"})
		return nil, false
	}
	if !inList(itemType, libraryTypes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": enumError("type", libraryTypes)})
		return nil, false
	}
	url := strings.TrimSpace(b.URL)
	row := store.Row{
		"title":       title,
		"type":        itemType,
		"author":      author,
		"description": strings.TrimSpace(b.Description),
		"tags":        normalizeTags(b.Tags),
		"is_online":   url != "",
	}
	if url != "" {
		row["url"] = url
	} else {
		row["url"] = nil
	}
	if filePath := strings.TrimSpace(b.FilePath); filePath != "" {
		row["file_path"] = filePath
	} else {
		row["file_path"] = nil
	}
	return row, true
}

// List returns library items, optionally filtered by type and a free-text
// search over title, author, description and tags.
func (h *LibraryHandler) List(c *gin.Context) {
	query := store.Query{
		OrderBy: "created_at",
		Limit:   parseLimit(c, 50, 200),
	}
	if itemType := strings.ToLower(strings.TrimSpace(c.Query("type"))); itemType != "" && itemType != "all" {
		query.Filters = map[string]any{"type": itemType}
	}
	if term := strings.TrimSpace(c.Query("search")); term != "" {
		query.Search = &store.Search{Term: term, Columns: librarySearchColumns}
	}
	rows, errList := h.st.List(c.Request.Context(), models.TableLibrary, query)
	if errList != nil {
		storeFail(c, errList, "not found", "Failed to list library items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// Get returns one library item.
func (h *LibraryHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, errFind := h.st.Get(c.Request.Context(), models.TableLibrary, id)
	if errFind != nil {
		storeFail(c, errFind, "Library item not found", "Failed to fetch library item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": row})
}

// Create adds a library item. The online flag is derived from URL presence,
// never taken from the client.
func (h *LibraryHandler) Create(c *gin.Context) {
	var body libraryBody
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

	id, errCreate := h.st.Insert(c.Request.Context(), models.TableLibrary, row)
	if errCreate != nil {
		storeFail(c, errCreate, "not found", "Failed to create library item")
		return
	}
	created, errFetch := h.st.Get(c.Request.Context(), models.TableLibrary, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Library item not found", "Failed to create library item")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": created, "message": "Library item created successfully"})
}

// Update replaces an item's fields with the same validation as Create.
func (h *LibraryHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body libraryBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, ok := body.validate(c)
	if !ok {
		return
	}
	row["updated_at"] = time.Now().UTC()

	affected, errUpdate := h.st.Update(c.Request.Context(), models.TableLibrary, id, row)
	if errUpdate != nil {
		storeFail(c, errUpdate, "Library item not found", "Failed to update library item")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Library item not found"})
		return
	}
	updated, errFetch := h.st.Get(c.Request.Context(), models.TableLibrary, id)
	if errFetch != nil {
		storeFail(c, errFetch, "Library item not found", "Failed to update library item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": updated, "message": "Library item updated successfully"})
}

// Delete removes a library item.
func (h *LibraryHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	affected, errDelete := h.st.Delete(c.Request.Context(), models.TableLibrary, id)
	if errDelete != nil {
		storeFail(c, errDelete, "Library item not found", "Failed to delete library item")
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Library item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Library item deleted successfully"})
}

// Stats summarizes the collection by type and delivery mode.
func (h *LibraryHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	total, errTotal := h.st.Count(ctx, models.TableLibrary, nil)
	if errTotal != nil {
		storeFail(c, errTotal, "not found", "Failed to load stats")
		return
	}
	byType := make(map[string]int64, len(libraryTypes))
	for _, itemType := range libraryTypes {
		count, errCount := h.st.Count(ctx, models.TableLibrary, map[string]any{"type": itemType})
		if errCount != nil {
			storeFail(c, errCount, "not found", "Failed to load stats")
			return
		}
		byType[itemType] = count
	}
	online, errOnline := h.st.Count(ctx, models.TableLibrary, map[string]any{"is_online": true})
	if errOnline != nil {
		storeFail(c, errOnline, "not found", "Failed to load stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"totalItems":   total,
		"ebooks":       byType["ebook"],
		"articles":     byType["article"],
		"whitepapers":  byType["whitepaper"],
		"research":     byType["research"],
		"onlineItems":  online,
		"offlineItems": total - online,
	}})
}
