package chathistory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/server/middleware"
	"studybuddy-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches chat history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:id/chat-history", h.save)
	rg.GET("/documents/:id/chat-history", h.load)
}

func (h *Handler) save(c *gin.Context) {
	var entries []Entry
	if err := c.ShouldBindJSON(&entries); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "body must be a JSON array of {role, content}", nil)
		return
	}

	saved, err := h.Svc.Save(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c), entries)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"documentId":  saved.DocumentID,
		"entries":     len(saved.Entries),
		"lastUpdated": saved.LastUpdated,
	})
}

func (h *Handler) load(c *gin.Context) {
	entries, err := h.Svc.Load(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, entries)
}
