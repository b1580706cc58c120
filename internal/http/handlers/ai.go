package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/ai"
)

// AIHandler serves the chat assistant endpoint.
type AIHandler struct {
	responder *ai.Responder
}

func NewAIHandler(responder *ai.Responder) *AIHandler {
	return &AIHandler{responder: responder}
}

// Chat answers a user message. The reply is best-effort: upstream failures
// degrade to the built-in knowledge base, so this endpoint never surfaces a
// provider error.
func (h *AIHandler) Chat(c *gin.Context) {
	var body struct {
		Message  string `json:"message"`
		Provider string `json:"provider"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil || strings.TrimSpace(body.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	reply := h.responder.Reply(c.Request.Context(), strings.TrimSpace(body.Message), strings.ToLower(strings.TrimSpace(body.Provider)))
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
