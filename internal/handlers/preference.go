package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
)

type PreferenceHandler struct {
	logger *logrus.Logger
	engine services.PreferenceEngineInterface
	store  services.PreferenceStoreInterface
}

func NewPreferenceHandler(logger *logrus.Logger, engine services.PreferenceEngineInterface, store services.PreferenceStoreInterface) *PreferenceHandler {
	return &PreferenceHandler{
		logger: logger,
		engine: engine,
		store:  store,
	}
}

// GetUser returns the stored snapshot for a user, falling back to the
// cold-start default when nothing has been learned yet.
func (h *PreferenceHandler) GetUser(c *gin.Context) {
	userID := c.Param("userId")

	snapshot, err := h.engine.GetUserPreferences(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to load user preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to load preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// GetGlobal returns the pooled cross-user snapshot.
func (h *PreferenceHandler) GetGlobal(c *gin.Context) {
	snapshot, err := h.engine.GetGlobalPreferences(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load global preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to load preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// GetTag returns the learned weight for a single tag.
func (h *PreferenceHandler) GetTag(c *gin.Context) {
	userID := c.Param("userId")
	tag := c.Param("tag")

	weight, err := h.engine.GetUserPreference(c.Request.Context(), userID, tag)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"tag":     tag,
		}).Error("Failed to load tag preference")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to load tag preference",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user_id": userID,
			"tag":     tag,
			"weight":  weight,
		},
	})
}

// SetTag pins a tag weight directly, bypassing the learning loop. Admin
// surface for correcting runaway weights by hand.
func (h *PreferenceHandler) SetTag(c *gin.Context) {
	userID := c.Param("userId")
	tag := c.Param("tag")

	// Pointer so an explicit zero is distinguishable from a missing field
	var req struct {
		Weight *float64 `json:"weight" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.store.SetTagWeight(c.Request.Context(), userID, tag, *req.Weight); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"tag":     tag,
		}).Error("Failed to set tag preference")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "PREFERENCES_FAILED",
				"message": "Failed to set tag preference",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tag preference updated",
	})
}
