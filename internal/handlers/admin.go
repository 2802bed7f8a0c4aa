package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
)

// AdminHandler exposes the learning-loop diagnostics and the maintenance
// sweeps that are normally driven by a scheduler.
type AdminHandler struct {
	logger *logrus.Logger
	engine services.PreferenceEngineInterface
	health services.LearningHealthInterface
}

func NewAdminHandler(logger *logrus.Logger, engine services.PreferenceEngineInterface, health services.LearningHealthInterface) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		engine: engine,
		health: health,
	}
}

// LearningMetrics returns the learning-loop dashboard numbers.
func (h *AdminHandler) LearningMetrics(c *gin.Context) {
	metrics, err := h.health.GetLearningMetrics(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute learning metrics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "METRICS_FAILED",
				"message": "Failed to compute learning metrics",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": metrics})
}

// RefreshGlobal forces a recompute of the pooled global snapshot.
func (h *AdminHandler) RefreshGlobal(c *gin.Context) {
	if err := h.engine.RefreshGlobalPreferences(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to refresh global preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "REFRESH_FAILED",
				"message": "Failed to refresh global preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Global preferences refreshed"})
}

// DecayUser applies one decay step to a user's snapshot.
func (h *AdminHandler) DecayUser(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.engine.DecayPreferences(c.Request.Context(), userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to decay preferences")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "DECAY_FAILED",
				"message": "Failed to decay preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preferences decayed"})
}

// DeprecationSweep retires objects with consistently negative feedback.
func (h *AdminHandler) DeprecationSweep(c *gin.Context) {
	deprecated, err := h.health.DeprecateStaleObjects(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Deprecation sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SWEEP_FAILED",
				"message": "Deprecation sweep failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    gin.H{"deprecated": deprecated},
		"message": "Deprecation sweep complete",
	})
}

// RetentionSweep deletes events and feedback past the retention horizon. An
// optional retention_days in the body overrides the configured default.
func (h *AdminHandler) RetentionSweep(c *gin.Context) {
	var req struct {
		RetentionDays int `json:"retention_days" binding:"omitempty,min=1"`
	}
	if c.Request.ContentLength > 0 {
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
	}

	result, err := h.health.CleanupOldData(c.Request.Context(), req.RetentionDays)
	if err != nil {
		h.logger.WithError(err).Error("Retention sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SWEEP_FAILED",
				"message": "Retention sweep failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": "Retention sweep complete",
	})
}
