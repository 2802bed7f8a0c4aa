package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

type KnowledgeHandler struct {
	logger    *logrus.Logger
	knowledge services.KnowledgeBaseInterface
}

func NewKnowledgeHandler(logger *logrus.Logger, knowledge services.KnowledgeBaseInterface) *KnowledgeHandler {
	return &KnowledgeHandler{
		logger:    logger,
		knowledge: knowledge,
	}
}

// List returns knowledge objects filtered by kind and status.
func (h *KnowledgeHandler) List(c *gin.Context) {
	kind := models.ObjectKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_KIND",
				"message": "Unknown object kind",
			},
		})
		return
	}

	status := models.ObjectStatus(c.Query("status"))

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	objects, err := h.knowledge.ListObjects(c.Request.Context(), kind, status, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list knowledge objects")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "KNOWLEDGE_FAILED",
				"message": "Failed to list knowledge objects",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"objects": objects,
			"count":   len(objects),
			"limit":   limit,
			"offset":  offset,
		},
	})
}
