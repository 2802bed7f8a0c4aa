package middleware

import (
	"context"
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ResponseCache caches successful GET responses in warm redis. It is meant
// for the read-heavy preference and recommendation routes, where the same
// snapshot is fetched far more often than it changes. Keys are scoped to the
// authenticated user so one user's cached snapshot never serves another.
func ResponseCache(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	if rdb == nil {
		logger.Warn("Warm redis not available, response caching disabled")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method != "GET" {
			c.Next()
			return
		}

		key := responseCacheKey(c)

		cached := rdb.Get(c.Request.Context(), key).Val()
		if cached != "" {
			if entry, err := decodeCacheEntry(cached); err == nil {
				c.Header("X-Cache", "HIT")
				c.Data(entry.StatusCode, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
			// Undecodable entry, fall through and overwrite it
		}

		writer := &cachingWriter{
			ResponseWriter: c.Writer,
			rdb:            rdb,
			key:            key,
			ttl:            ttl,
			logger:         logger,
		}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		writer.store(c.Request.Context())
	}
}

// CacheInvalidation drops a user's cached responses after any write. Runs
// after the handler so a failed write still invalidates, which only costs a
// recompute on the next read.
func CacheInvalidation(rdb *redis.Client, logger *logrus.Logger) gin.HandlerFunc {
	if rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "DELETE":
			userID := c.GetString("user_id")
			if userID == "" {
				userID = c.Param("userId")
			}
			if userID == "" {
				return
			}
			go invalidateUserCache(rdb, userID, logger)
		}
	}
}

type cacheEntry struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type cachingWriter struct {
	gin.ResponseWriter
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *logrus.Logger
	body   []byte
	status int
}

func (w *cachingWriter) Write(data []byte) (int, error) {
	w.body = append(w.body, data...)
	return w.ResponseWriter.Write(data)
}

func (w *cachingWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cachingWriter) store(ctx context.Context) {
	status := w.status
	if status == 0 {
		status = w.ResponseWriter.Status()
	}
	if status != 200 || len(w.body) == 0 {
		return
	}

	encoded := encodeCacheEntry(&cacheEntry{
		StatusCode:  status,
		ContentType: w.Header().Get("Content-Type"),
		Body:        w.body,
	})

	if err := w.rdb.Set(ctx, w.key, encoded, w.ttl).Err(); err != nil {
		w.logger.WithError(err).WithField("key", w.key).Warn("Failed to cache response")
	}
}

// responseCacheKey scopes entries by user, path, and query. The query string
// matters because diversity and pagination parameters change the payload.
func responseCacheKey(c *gin.Context) string {
	userID := c.GetString("user_id")
	if userID == "" {
		userID = "anon"
	}

	sum := md5.Sum([]byte(c.Request.URL.Path + "?" + c.Request.URL.RawQuery))
	return fmt.Sprintf("httpcache:%s:%x", userID, sum)
}

func invalidateUserCache(rdb *redis.Client, userID string, logger *logrus.Logger) {
	ctx := context.Background()

	patterns := []string{
		fmt.Sprintf("httpcache:%s:*", userID),
		fmt.Sprintf("preferences:%s", userID),
	}

	for _, pattern := range patterns {
		keys, err := rdb.Keys(ctx, pattern).Result()
		if err != nil {
			logger.WithError(err).WithField("pattern", pattern).Warn("Failed to list cache keys for invalidation")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := rdb.Del(ctx, keys...).Err(); err != nil {
			logger.WithError(err).WithField("count", len(keys)).Warn("Failed to invalidate cache keys")
		}
	}
}

// encodeCacheEntry packs an entry as status|contentType|body. The body is
// JSON and never contains the separator before it.
func encodeCacheEntry(entry *cacheEntry) string {
	return fmt.Sprintf("%d|%s|%s", entry.StatusCode, entry.ContentType, string(entry.Body))
}

func decodeCacheEntry(data string) (*cacheEntry, error) {
	parts := strings.SplitN(data, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cache entry format")
	}

	status, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cached status code: %w", err)
	}

	return &cacheEntry{
		StatusCode:  status,
		ContentType: parts[1],
		Body:        []byte(parts[2]),
	}, nil
}
