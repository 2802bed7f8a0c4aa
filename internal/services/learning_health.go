package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// LearningHealthService reports on the health of the learning loop and runs
// the periodic maintenance sweeps: object deprecation and data retention.
type LearningHealthService struct {
	ledger    FeedbackLedgerInterface
	knowledge KnowledgeBaseInterface
	store     PreferenceStoreInterface
	config    *config.LearningConfig
	logger    *logrus.Logger
}

func NewLearningHealthService(
	ledger FeedbackLedgerInterface,
	knowledge KnowledgeBaseInterface,
	store PreferenceStoreInterface,
	cfg *config.LearningConfig,
	logger *logrus.Logger,
) *LearningHealthService {
	return &LearningHealthService{
		ledger:    ledger,
		knowledge: knowledge,
		store:     store,
		config:    cfg,
		logger:    logger,
	}
}

// GetLearningMetrics computes the dashboard numbers over the global window.
func (s *LearningHealthService) GetLearningMetrics(ctx context.Context) (*models.LearningMetrics, error) {
	since := time.Now().AddDate(0, 0, -s.config.GlobalWindowDays)

	totalEvents, err := s.ledger.CountEvents(ctx)
	if err != nil {
		return nil, err
	}

	feedbackCount, err := s.ledger.CountFeedback(ctx)
	if err != nil {
		return nil, err
	}

	avgQuality, err := s.ledger.AverageObjectQuality(ctx, since)
	if err != nil {
		return nil, err
	}

	coverage, err := s.retrievalCoverage(ctx, since)
	if err != nil {
		return nil, err
	}

	global, err := s.store.GetGlobal(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &models.LearningMetrics{
		TotalEvents:       totalEvents,
		FeedbackCount:     feedbackCount,
		AverageQuality:    avgQuality,
		WeightDiversity:   WeightDiversityScore(global),
		RetrievalCoverage: coverage,
		BiasScore:         biasScore(global),
		StabilityScore:    s.stabilityScore(global),
		GeneratedAt:       time.Now(),
	}
	if totalEvents > 0 {
		metrics.FeedbackRate = float64(feedbackCount) / float64(totalEvents)
	}

	s.logger.WithFields(logrus.Fields{
		"total_events":   totalEvents,
		"feedback_count": feedbackCount,
		"coverage":       coverage,
	}).Debug("Computed learning metrics")

	return metrics, nil
}

// DeprecateStaleObjects retires objects whose recent feedback is clearly
// negative. Each object is handled independently so one failed update does
// not block the rest of the sweep.
func (s *LearningHealthService) DeprecateStaleObjects(ctx context.Context) (int, error) {
	since := time.Now().AddDate(0, 0, -s.config.GlobalWindowDays)

	candidates, err := s.ledger.LowRatedObjects(ctx, since, s.config.DeprecationMinFeedback, s.config.DeprecationThreshold)
	if err != nil {
		return 0, err
	}

	deprecated := 0
	for _, id := range candidates {
		if err := s.knowledge.DeprecateObject(ctx, id); err != nil {
			s.logger.WithError(err).WithField("object_id", id).Warn("Failed to deprecate object")
			continue
		}
		deprecated++
		objectsDeprecatedTotal.Inc()
	}

	if deprecated > 0 {
		s.logger.WithFields(logrus.Fields{
			"candidates": len(candidates),
			"deprecated": deprecated,
		}).Info("Deprecation sweep complete")
	}

	return deprecated, nil
}

// CleanupOldData deletes events and feedback past the retention horizon.
// A positive retentionDays overrides the configured default for this run.
func (s *LearningHealthService) CleanupOldData(ctx context.Context, retentionDays int) (*models.CleanupResult, error) {
	if retentionDays <= 0 {
		retentionDays = s.config.RetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	feedback, err := s.ledger.DeleteOlderThan(ctx, "feedback_records", cutoff)
	if err != nil {
		return nil, err
	}
	retentionDeletedTotal.WithLabelValues("feedback_records").Add(float64(feedback))

	events, err := s.ledger.DeleteOlderThan(ctx, "generation_events", cutoff)
	if err != nil {
		return nil, err
	}
	retentionDeletedTotal.WithLabelValues("generation_events").Add(float64(events))

	s.logger.WithFields(logrus.Fields{
		"events_deleted":   events,
		"feedback_deleted": feedback,
		"cutoff":           cutoff,
	}).Info("Retention sweep complete")

	return &models.CleanupResult{Events: events, Feedback: feedback}, nil
}

// retrievalCoverage is the share of active knowledge objects referenced by
// at least one recent generation event.
func (s *LearningHealthService) retrievalCoverage(ctx context.Context, since time.Time) (float64, error) {
	active, err := s.knowledge.CountActiveObjects(ctx)
	if err != nil {
		return 0, err
	}
	if active == 0 {
		return 0, nil
	}

	used, err := s.ledger.DistinctObjectsUsed(ctx, since)
	if err != nil {
		return 0, err
	}

	return float64(used) / float64(active), nil
}

// biasScore is the coefficient of variation of the absolute tag weights. A
// flat distribution scores near zero; a handful of dominant tags pushes it
// up.
func biasScore(snapshot *models.PreferenceSnapshot) float64 {
	if snapshot == nil || len(snapshot.TagWeights) <= 1 {
		return 0
	}

	weights := make([]float64, 0, len(snapshot.TagWeights))
	for _, w := range snapshot.TagWeights {
		weights = append(weights, math.Abs(w))
	}

	mean := stat.Mean(weights, nil)
	if mean == 0 {
		return 0
	}
	return stat.StdDev(weights, nil) / mean
}

// stabilityScore rises with the age of the global snapshot, capped at 1.0
// once it has survived a full user window without being recomputed away from
// its shape.
func (s *LearningHealthService) stabilityScore(snapshot *models.PreferenceSnapshot) float64 {
	if snapshot == nil || snapshot.UpdatedAt.IsZero() {
		return 0
	}

	age := time.Since(snapshot.UpdatedAt).Hours() / 24
	window := float64(s.config.UserWindowDays)
	if window <= 0 {
		return 0
	}

	return math.Min(1.0, age/window)
}
