package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// PreferenceStore persists preference snapshots, one row per user plus the
// global singleton. Reads go through the warm cache; an unseen user gets the
// cold-start default without a row being created.
type PreferenceStore struct {
	db     DatabaseQuerier
	redis  *redis.Client // warm cache, may be nil in tests
	config *config.LearningConfig
	logger *logrus.Logger
}

func NewPreferenceStore(db DatabaseQuerier, redisClient *redis.Client, cfg *config.LearningConfig, logger *logrus.Logger) *PreferenceStore {
	return &PreferenceStore{
		db:     db,
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

func snapshotCacheKey(userID string) string {
	return fmt.Sprintf("preferences:%s", userID)
}

// Get returns the stored snapshot for a user, or the cold-start default if
// none exists. Never errors for unseen users.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*models.PreferenceSnapshot, error) {
	// Try cache first
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, snapshotCacheKey(userID)).Result()
		if err == nil {
			var snapshot models.PreferenceSnapshot
			if json.Unmarshal([]byte(cached), &snapshot) == nil {
				return &snapshot, nil
			}
		}
	}

	query := `
		SELECT user_id, tag_weights, kind_weights, quality_threshold, diversity_weight, updated_at
		FROM preference_snapshots
		WHERE user_id = $1`

	var snapshot models.PreferenceSnapshot
	var tagJSON, kindJSON []byte

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&snapshot.UserID,
		&tagJSON,
		&kindJSON,
		&snapshot.QualityThreshold,
		&snapshot.DiversityWeight,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Cold start: defaults, nothing persisted yet
			return models.DefaultPreferenceSnapshot(userID, s.config.QualityFloor, s.config.DiversityFloor), nil
		}
		return nil, fmt.Errorf("failed to query preference snapshot: %w", err)
	}

	if err := json.Unmarshal(tagJSON, &snapshot.TagWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tag weights: %w", err)
	}
	if err := json.Unmarshal(kindJSON, &snapshot.KindWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kind weights: %w", err)
	}

	s.cacheSnapshot(ctx, &snapshot)

	return &snapshot, nil
}

// GetGlobal returns the singleton pooled snapshot.
func (s *PreferenceStore) GetGlobal(ctx context.Context) (*models.PreferenceSnapshot, error) {
	return s.Get(ctx, models.GlobalPreferenceKey)
}

// Save upserts a snapshot, last-write-wins, stamping updated_at.
func (s *PreferenceStore) Save(ctx context.Context, snapshot *models.PreferenceSnapshot) error {
	tagJSON, err := json.Marshal(snapshot.TagWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal tag weights: %w", err)
	}
	kindJSON, err := json.Marshal(snapshot.KindWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal kind weights: %w", err)
	}

	snapshot.UpdatedAt = time.Now()

	query := `
		INSERT INTO preference_snapshots (user_id, tag_weights, kind_weights, quality_threshold, diversity_weight, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			tag_weights = EXCLUDED.tag_weights,
			kind_weights = EXCLUDED.kind_weights,
			quality_threshold = EXCLUDED.quality_threshold,
			diversity_weight = EXCLUDED.diversity_weight,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, query,
		snapshot.UserID,
		tagJSON,
		kindJSON,
		snapshot.QualityThreshold,
		snapshot.DiversityWeight,
		snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preference snapshot: %w", err)
	}

	// Invalidate cache
	if s.redis != nil {
		s.redis.Del(ctx, snapshotCacheKey(snapshot.UserID))
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    snapshot.UserID,
		"tag_count":  len(snapshot.TagWeights),
		"kind_count": len(snapshot.KindWeights),
	}).Debug("Saved preference snapshot")

	return nil
}

// LastUpdated reports when a snapshot was last written; the zero time means
// no snapshot exists. Used to gate the periodic global refresh.
func (s *PreferenceStore) LastUpdated(ctx context.Context, userID string) (time.Time, error) {
	var updatedAt time.Time
	err := s.db.QueryRow(ctx,
		"SELECT updated_at FROM preference_snapshots WHERE user_id = $1", userID,
	).Scan(&updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to query snapshot age: %w", err)
	}
	return updatedAt, nil
}

// SetTagWeight writes a single tag weight directly, bypassing aggregation.
// Admin and test use only; the bias cap still applies.
func (s *PreferenceStore) SetTagWeight(ctx context.Context, userID, tag string, value float64) error {
	snapshot, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if value > s.config.MaxWeight {
		value = s.config.MaxWeight
	}

	snapshot.TagWeights[NormalizeTag(tag)] = value
	return s.Save(ctx, snapshot)
}

// GetTagWeight reads a single tag weight; unknown tags read as zero.
func (s *PreferenceStore) GetTagWeight(ctx context.Context, userID, tag string) (float64, error) {
	snapshot, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return snapshot.TagWeights[NormalizeTag(tag)], nil
}

func (s *PreferenceStore) cacheSnapshot(ctx context.Context, snapshot *models.PreferenceSnapshot) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, snapshotCacheKey(snapshot.UserID), data, s.config.SnapshotCacheTTL).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", snapshot.UserID).Warn("Failed to cache preference snapshot")
	}
}
