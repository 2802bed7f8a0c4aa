package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

func RateLimit(limiter *services.RateLimiter, cfg *config.Config, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			// Anonymous callers share one window, keyed by client address
			userID = "anon:" + c.ClientIP()
		}

		userTier := c.GetString("user_tier")
		limit := cfg.Auth.RateLimit.Default
		if userTier == "premium" || userTier == "enterprise" {
			limit = cfg.Auth.RateLimit.Premium
		}
		window := cfg.Auth.RateLimit.Window

		allowed := limiter.Allow(userID, "api", limit, window)

		used := limiter.GetCurrentCount(userID, "api", window)
		remaining := limit - int(used)
		if remaining < 0 {
			remaining = 0
		}

		info := models.RateLimitInfo{
			Limit:     limit,
			Remaining: remaining,
			ResetTime: time.Now().Add(window).Unix(),
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !allowed {
			logger.WithFields(logrus.Fields{
				"user_id":   userID,
				"user_tier": userTier,
				"limit":     limit,
			}).Warn("Rate limit exceeded")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
