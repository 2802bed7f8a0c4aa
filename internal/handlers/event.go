package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

type EventHandler struct {
	logger    *logrus.Logger
	ledger    services.FeedbackLedgerInterface
	validator *validator.Validate
}

func NewEventHandler(logger *logrus.Logger, ledger services.FeedbackLedgerInterface) *EventHandler {
	return &EventHandler{
		logger:    logger,
		ledger:    ledger,
		validator: validator.New(),
	}
}

// Record stores a generation event so feedback can reference it later.
func (h *EventHandler) Record(c *gin.Context) {
	var req models.GenerationEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind generation event request")
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
		h.logger.WithError(err).Error("Validation failed for generation event")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	// Default to the authenticated user when the payload names none
	if authUser := c.GetString("user_id"); authUser != "" && req.UserID == "" {
		req.UserID = authUser
	}

	event, err := h.ledger.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record generation event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "EVENT_FAILED",
				"message": "Failed to record generation event",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    event,
		"message": "Generation event recorded successfully",
	})
}

// Get returns a single generation event by id.
func (h *EventHandler) Get(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_EVENT_ID",
				"message": "Event ID must be a positive integer",
			},
		})
		return
	}

	event, err := h.ledger.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		if err == services.ErrEventNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "EVENT_NOT_FOUND",
					"message": "Generation event not found",
				},
			})
			return
		}

		h.logger.WithError(err).Error("Failed to load generation event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "EVENT_FAILED",
				"message": "Failed to load generation event",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}
