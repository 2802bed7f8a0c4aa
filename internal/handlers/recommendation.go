package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

type RecommendationHandler struct {
	logger         *logrus.Logger
	recommendation services.RecommendationServiceInterface
}

func NewRecommendationHandler(logger *logrus.Logger, recommendation services.RecommendationServiceInterface) *RecommendationHandler {
	return &RecommendationHandler{
		logger:         logger,
		recommendation: recommendation,
	}
}

// Get returns ranked tag recommendations for a user. The generation
// pipeline uses these as retrieval hints when assembling context.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID := c.Param("userId")

	opts := models.RecommendationOptions{
		EnsureDiversity: c.DefaultQuery("diversity", "true") == "true",
	}

	recommendations, err := h.recommendation.GetRecommendations(c.Request.Context(), userID, opts)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to build recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATIONS_FAILED",
				"message": "Failed to build recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user_id":         userID,
			"recommendations": recommendations,
			"count":           len(recommendations),
		},
	})
}

// Bias reports the tags whose learned weight crossed the alert threshold.
func (h *RecommendationHandler) Bias(c *gin.Context) {
	userID := c.Param("userId")

	report, err := h.recommendation.AnalyzeBias(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to analyze bias")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "BIAS_ANALYSIS_FAILED",
				"message": "Failed to analyze bias",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
