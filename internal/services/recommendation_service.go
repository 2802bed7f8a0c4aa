package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// RecommendationService surfaces the learned tag weights as retrieval hints
// for the generation pipeline: the caller's top personal tags, padded with
// global tags for breadth.
type RecommendationService struct {
	store  PreferenceStoreInterface
	config *config.LearningConfig
	logger *logrus.Logger
}

func NewRecommendationService(store PreferenceStoreInterface, cfg *config.LearningConfig, logger *logrus.Logger) *RecommendationService {
	return &RecommendationService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// GetRecommendations returns the user's top positive tags, followed by the
// top global tags when diversity is requested or the user has no learned
// signal yet. The global fallback means the result degrades to popular
// defaults rather than coming back empty for cold-start users.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string, opts models.RecommendationOptions) ([]models.TagRecommendation, error) {
	var userTags []models.TagRecommendation

	if userID != "" && userID != models.GlobalPreferenceKey {
		snapshot, err := s.store.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user preferences: %w", err)
		}
		userTags = topTags(snapshot, s.config.UserRecommendations, models.SourceUser)
	}

	recommendations := userTags
	if opts.EnsureDiversity || len(userTags) == 0 {
		global, err := s.store.GetGlobal(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load global preferences: %w", err)
		}

		// The global entries are independent of the user's list: a tag the
		// user already has still appears again with its global weight, so
		// callers always see the pooled view alongside the personal one.
		recommendations = append(recommendations, topTags(global, s.config.GlobalRecommendations, models.SourceGlobal)...)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"user_tags": len(userTags),
		"total":     len(recommendations),
	}).Debug("Built tag recommendations")

	return recommendations, nil
}

// AnalyzeBias reports the tags whose magnitude crosses the alert threshold.
// Weights at the hard cap still land here since the threshold sits below the
// cap.
func (s *RecommendationService) AnalyzeBias(ctx context.Context, userID string) (*models.BiasReport, error) {
	snapshot, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &models.BiasReport{}
	for tag, weight := range snapshot.TagWeights {
		if math.Abs(weight) > s.config.BiasThreshold {
			report.BiasedTags = append(report.BiasedTags, tag)
		}
	}
	sort.Strings(report.BiasedTags)

	if len(report.BiasedTags) > 0 {
		report.HasExtremeBias = true
		report.RecommendedActions = append(report.RecommendedActions,
			fmt.Sprintf("diversify retrieval away from %d over-weighted tag(s)", len(report.BiasedTags)))
	}

	return report, nil
}

// WeightDiversityScore measures how evenly spread a snapshot's tag weights
// are: 1.0 for uniform weights, falling toward 0 as a few tags dominate.
// Empty and single-tag snapshots count as perfectly diverse.
func WeightDiversityScore(snapshot *models.PreferenceSnapshot) float64 {
	if snapshot == nil || len(snapshot.TagWeights) <= 1 {
		return 1.0
	}

	weights := make([]float64, 0, len(snapshot.TagWeights))
	for _, w := range snapshot.TagWeights {
		weights = append(weights, w)
	}

	return math.Max(0, 1.0-stat.StdDev(weights, nil))
}

// topTags returns the n highest positively weighted tags, descending. Ties
// break alphabetically so output is stable across runs.
func topTags(snapshot *models.PreferenceSnapshot, n int, source string) []models.TagRecommendation {
	if snapshot == nil || n <= 0 {
		return nil
	}

	recs := make([]models.TagRecommendation, 0, len(snapshot.TagWeights))
	for tag, weight := range snapshot.TagWeights {
		if weight <= 0 {
			continue
		}
		recs = append(recs, models.TagRecommendation{Tag: tag, Weight: weight, Source: source})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Weight != recs[j].Weight {
			return recs[i].Weight > recs[j].Weight
		}
		return recs[i].Tag < recs[j].Tag
	})

	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}
