package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis. Feedback
// submission is the main consumer; one user hammering the feedback endpoint
// must not be able to drag the global snapshot around.
type RateLimiter struct {
	redisClient *redis.Client
	ctx         context.Context
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		ctx:         context.Background(),
	}
}

// Allow checks whether another request fits inside the window. Fails open on
// Redis errors.
func (rl *RateLimiter) Allow(userID, action string, limit int, window time.Duration) bool {
	key := fmt.Sprintf("rate_limit:%s:%s", userID, action)
	now := time.Now().Unix()
	windowStart := now - int64(window.Seconds())

	pipe := rl.redisClient.Pipeline()

	pipe.ZRemRangeByScore(rl.ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(rl.ctx, key)
	pipe.ZAdd(rl.ctx, key, redis.Z{
		Score:  float64(now),
		Member: fmt.Sprintf("%d", now),
	})
	pipe.Expire(rl.ctx, key, window)

	_, err := pipe.Exec(rl.ctx)
	if err != nil {
		return true
	}

	count := countCmd.Val()
	return count < int64(limit)
}

// GetCurrentCount returns the number of requests recorded inside the window.
func (rl *RateLimiter) GetCurrentCount(userID, action string, window time.Duration) int64 {
	key := fmt.Sprintf("rate_limit:%s:%s", userID, action)
	now := time.Now().Unix()
	windowStart := now - int64(window.Seconds())

	count, err := rl.redisClient.ZCount(rl.ctx, key,
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now, 10)).Result()
	if err != nil {
		return 0
	}

	return count
}

// Reset clears the window for a user/action pair.
func (rl *RateLimiter) Reset(userID, action string) error {
	key := fmt.Sprintf("rate_limit:%s:%s", userID, action)
	return rl.redisClient.Del(rl.ctx, key).Err()
}
