package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/models"
	"github.com/scorpion-security/hub/internal/store"
	"github.com/scorpion-security/hub/internal/util"
)

// ThreatsHandler serves the read-only threat intelligence feed.
type ThreatsHandler struct {
	st store.Store
}

func NewThreatsHandler(st store.Store) *ThreatsHandler {
	return &ThreatsHandler{st: st}
}

func threatJSON(row store.Row) gin.H {
	return gin.H{
		"id":          rowID(row),
		"source":      util.AsString(row["source"]),
		"title":       util.AsString(row["title"]),
		"severity":    util.AsString(row["severity"]),
		"type":        util.AsString(row["type"]),
		"description": util.AsString(row["description"]),
		"iocs":        util.AsString(row["iocs"]),
		"mitigation":  util.AsString(row["mitigation"]),
		"publishedAt": row["published_at"],
	}
}

// ListFeeds returns threat intel entries, newest first.
func (h *ThreatsHandler) ListFeeds(c *gin.Context) {
	rows, errList := h.st.List(c.Request.Context(), models.TableThreats, store.Query{
		OrderBy: "published_at",
		Limit:   parseLimit(c, 50, 200),
	})
	if errList != nil {
		storeFail(c, errList, "Not found", "Failed to list threat feeds")
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, threatJSON(row))
	}
	c.JSON(http.StatusOK, out)
}

// GetFeed returns one threat intel entry.
func (h *ThreatsHandler) GetFeed(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, errFind := h.st.Get(c.Request.Context(), models.TableThreats, id)
	if errFind != nil {
		storeFail(c, errFind, "Not found", "Failed to fetch threat feed")
		return
	}
	c.JSON(http.StatusOK, threatJSON(row))
}
