package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/store"
)

const (
	serviceName    = "scorpion-security-hub"
	serviceVersion = "1.0.0"
)

// HealthHandler reports liveness and which storage backend was selected at
// startup.
type HealthHandler struct {
	st store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{st: st}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": serviceName,
		"version": serviceVersion,
		"backend": h.st.Kind(),
	})
}
