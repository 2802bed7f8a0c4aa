package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

type FeedbackHandler struct {
	logger    *logrus.Logger
	engine    services.PreferenceEngineInterface
	validator *validator.Validate
}

func NewFeedbackHandler(logger *logrus.Logger, engine services.PreferenceEngineInterface) *FeedbackHandler {
	return &FeedbackHandler{
		logger:    logger,
		engine:    engine,
		validator: validator.New(),
	}
}

// Submit records one feedback signal against a generation event.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req models.FeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind feedback request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.WithError(err).Error("Validation failed for feedback")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	if authUser := c.GetString("user_id"); authUser != "" && req.UserID == "" {
		req.UserID = authUser
	}

	result, err := h.engine.ProcessFeedback(c.Request.Context(), &req)
	if err != nil {
		h.respondFeedbackError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    result,
		"message": "Feedback recorded successfully",
	})
}

// SubmitImplicit records an automatic signal fired by the application
// itself, such as an export. Always returns 202; processing failures are
// logged server-side.
func (h *FeedbackHandler) SubmitImplicit(c *gin.Context) {
	var req struct {
		EventID int64                 `json:"event_id" binding:"required,min=1"`
		Signal  models.FeedbackSignal `json:"signal" binding:"required"`
		UserID  string                `json:"user_id"`
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

	if authUser := c.GetString("user_id"); authUser != "" && req.UserID == "" {
		req.UserID = authUser
	}

	h.engine.SubmitImplicitFeedback(c.Request.Context(), req.EventID, req.Signal, req.UserID)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Implicit feedback accepted",
	})
}

// SubmitBatch processes multiple feedback signals in one request. Items fail
// independently; the response reports per-item outcomes.
func (h *FeedbackHandler) SubmitBatch(c *gin.Context) {
	var req models.FeedbackBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind batch feedback request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "EMPTY_BATCH",
				"message": "Batch request must contain at least one feedback item",
			},
		})
		return
	}

	if authUser := c.GetString("user_id"); authUser != "" {
		for i := range req.Items {
			if req.Items[i].UserID == "" {
				req.Items[i].UserID = authUser
			}
		}
	}

	items := h.engine.ProcessFeedbackBatch(c.Request.Context(), req.Items)

	succeeded := 0
	for _, item := range items {
		if item.Error == "" {
			succeeded++
		}
	}

	c.JSON(http.StatusMultiStatus, gin.H{
		"data": gin.H{
			"items":     items,
			"total":     len(items),
			"succeeded": succeeded,
			"failed":    len(items) - succeeded,
		},
		"message": "Batch feedback processed",
	})
}

func (h *FeedbackHandler) respondFeedbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "EVENT_NOT_FOUND",
				"message": "Generation event not found",
			},
		})
	case errors.Is(err, services.ErrUnknownSignal):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "UNKNOWN_SIGNAL",
				"message": "Unknown feedback signal",
			},
		})
	case services.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": err.Error(),
			},
		})
	default:
		h.logger.WithError(err).Error("Failed to process feedback")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "FEEDBACK_FAILED",
				"message": "Failed to process feedback",
			},
		})
	}
}
