package secrets

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweenec/Secrets/internal/logger"
	"github.com/sweenec/Secrets/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	Secret string `form:"secret" json:"secret" binding:"required"`
}

// Submit handles POST /submit. The route is guarded; by the time this
// runs the session has already been resolved to an identity.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.service.Submit(c.Request.Context(), userID, req.Secret); err != nil {
		logger.Error("failed to save secret", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save secret"})
		return
	}

	c.Redirect(http.StatusFound, "/secrets")
}

// List handles GET /secrets, the public listing.
func (h *Handler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context())
	if err != nil {
		logger.Error("failed to list secrets", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list secrets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"secrets": entries})
}
