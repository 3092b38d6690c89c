package content

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/server/middleware"
	"studybuddy-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the coordinator.
type Handler struct {
	Coordinator *Coordinator
}

// NewHandler constructs a Handler.
func NewHandler(c *Coordinator) *Handler {
	return &Handler{Coordinator: c}
}

// RegisterRoutes attaches content routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/content", h.get)
	rg.POST("/documents/extract", h.extract)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.Coordinator.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toContentResponse(out))
}

func (h *Handler) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.DocumentID != "" {
		c.Set("documentId", req.DocumentID)
	}

	userID := middleware.UserIDFromContext(c)
	out, err := h.Coordinator.ExtractAndCache(c.Request.Context(), req.StoragePath, req.DocumentID, userID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toExtractResponse(out))
}
