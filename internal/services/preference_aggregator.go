package services

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// PreferenceAggregator folds a window of enriched feedback into a raw
// preference snapshot. The result is unclamped; the bias controller runs
// before anything is persisted.
type PreferenceAggregator struct {
	config *config.LearningConfig
	logger *logrus.Logger
}

func NewPreferenceAggregator(cfg *config.LearningConfig, logger *logrus.Logger) *PreferenceAggregator {
	return &PreferenceAggregator{
		config: cfg,
		logger: logger,
	}
}

// Aggregate computes tag/kind weightings and a quality threshold from the
// window. For every feedback row, its weight is added to the running sum of
// each referenced object's tags and kind; quality accumulates as
// quality × |weight| over a |weight| denominator. Sums are normalized by the
// total |weight|; a zero total leaves them at zero.
func (a *PreferenceAggregator) Aggregate(userID string, window []models.EnrichedFeedback) *models.PreferenceSnapshot {
	tagSums := make(map[string]float64)
	kindSums := make(map[models.ObjectKind]float64)

	var qualityNum, qualityDen, totalWeight float64

	for _, fb := range window {
		weight := fb.Weight
		absWeight := math.Abs(weight)

		for _, obj := range fb.Objects {
			for _, tag := range NormalizeTags(obj.Tags) {
				tagSums[tag] += weight
			}
			kindSums[obj.Kind] += weight

			if obj.QualityScore != nil {
				qualityNum += *obj.QualityScore * absWeight
				qualityDen += absWeight
			}
		}

		totalWeight += absWeight
	}

	if totalWeight > 0 {
		for tag := range tagSums {
			tagSums[tag] /= totalWeight
		}
		for kind := range kindSums {
			kindSums[kind] /= totalWeight
		}
	}

	qualityThreshold := a.config.QualityFloor
	if qualityDen > 0 {
		qualityThreshold = qualityNum / qualityDen
	}
	if qualityThreshold < a.config.QualityFloor {
		qualityThreshold = a.config.QualityFloor
	}

	snapshot := &models.PreferenceSnapshot{
		UserID:           userID,
		TagWeights:       tagSums,
		KindWeights:      kindSums,
		QualityThreshold: qualityThreshold,
		DiversityWeight:  a.config.DiversityFloor,
		UpdatedAt:        time.Now(),
	}

	a.logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"window_size":    len(window),
		"distinct_tags":  len(tagSums),
		"distinct_kinds": len(kindSums),
	}).Debug("Aggregated preference window")

	return snapshot
}

// MinimumMet reports whether the window is large enough for a per-user
// update. Sparse windows produce unstable preferences, so they are skipped.
func (a *PreferenceAggregator) MinimumMet(window []models.EnrichedFeedback) bool {
	return len(window) >= a.config.MinFeedbackCount
}
