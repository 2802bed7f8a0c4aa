package services

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

func testAggregator() *PreferenceAggregator {
	cfg := config.DefaultLearningConfig()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewPreferenceAggregator(&cfg, logger)
}

func feedbackWith(weight float64, objects ...models.KnowledgeObject) models.EnrichedFeedback {
	return models.EnrichedFeedback{
		FeedbackRecord: models.FeedbackRecord{Weight: weight},
		Objects:        objects,
	}
}

func objectWith(kind models.ObjectKind, quality *float64, tags ...string) models.KnowledgeObject {
	return models.KnowledgeObject{
		Kind:         kind,
		Tags:         tags,
		QualityScore: quality,
	}
}

func qualityPtr(v float64) *float64 { return &v }

func TestAggregate_TagWeights(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(2.0, objectWith(models.KindMotif, nil, "geometric")),
		feedbackWith(-0.5, objectWith(models.KindMotif, nil, "geometric", "organic")),
		feedbackWith(1.0, objectWith(models.KindStylePack, nil, "organic")),
	}

	snapshot := a.Aggregate("u1", window)

	// geometric: (2.0 - 0.5) / 3.5, organic: (-0.5 + 1.0) / 3.5
	assert.InDelta(t, 1.5/3.5, snapshot.TagWeights["geometric"], 1e-9)
	assert.InDelta(t, 0.5/3.5, snapshot.TagWeights["organic"], 1e-9)

	assert.InDelta(t, 1.5/3.5, snapshot.KindWeights[models.KindMotif], 1e-9)
	assert.InDelta(t, 1.0/3.5, snapshot.KindWeights[models.KindStylePack], 1e-9)
}

func TestAggregate_NegativeDominantSignal(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(-3.0, objectWith(models.KindMotif, nil, "skulls")),
		feedbackWith(1.0, objectWith(models.KindMotif, nil, "flowers")),
	}

	snapshot := a.Aggregate("u1", window)

	assert.Less(t, snapshot.TagWeights["skulls"], 0.0)
	assert.Greater(t, snapshot.TagWeights["flowers"], 0.0)
}

func TestAggregate_QualityThreshold(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(2.0, objectWith(models.KindMotif, qualityPtr(0.9), "a")),
		feedbackWith(1.0, objectWith(models.KindMotif, qualityPtr(0.6), "b")),
	}

	snapshot := a.Aggregate("u1", window)

	// (0.9*2 + 0.6*1) / 3
	assert.InDelta(t, 0.8, snapshot.QualityThreshold, 1e-9)
}

func TestAggregate_QualityThresholdFloor(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(1.0, objectWith(models.KindMotif, qualityPtr(0.1), "a")),
	}

	snapshot := a.Aggregate("u1", window)

	// Weighted mean 0.1 is floored
	assert.Equal(t, 0.3, snapshot.QualityThreshold)
}

func TestAggregate_NoQualityScores(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(1.0, objectWith(models.KindMotif, nil, "a")),
	}

	snapshot := a.Aggregate("u1", window)

	assert.Equal(t, 0.3, snapshot.QualityThreshold)
	assert.Equal(t, 0.3, snapshot.DiversityWeight)
}

func TestAggregate_EmptyWindow(t *testing.T) {
	a := testAggregator()

	snapshot := a.Aggregate("u1", nil)

	assert.Empty(t, snapshot.TagWeights)
	assert.Empty(t, snapshot.KindWeights)
	assert.Equal(t, 0.3, snapshot.QualityThreshold)
}

func TestAggregate_ZeroTotalWeight(t *testing.T) {
	a := testAggregator()

	// All-zero weights must not divide by zero
	window := []models.EnrichedFeedback{
		feedbackWith(0.0, objectWith(models.KindMotif, nil, "a")),
	}

	snapshot := a.Aggregate("u1", window)

	assert.Equal(t, 0.0, snapshot.TagWeights["a"])
}

func TestAggregate_TagCaseFolding(t *testing.T) {
	a := testAggregator()

	window := []models.EnrichedFeedback{
		feedbackWith(1.0, objectWith(models.KindMotif, nil, "Blue")),
		feedbackWith(1.0, objectWith(models.KindMotif, nil, "blue")),
	}

	snapshot := a.Aggregate("u1", window)

	assert.Len(t, snapshot.TagWeights, 1)
	assert.InDelta(t, 1.0, snapshot.TagWeights["blue"], 1e-9)
}

func TestMinimumMet(t *testing.T) {
	a := testAggregator()

	window := make([]models.EnrichedFeedback, 9)
	assert.False(t, a.MinimumMet(window))

	window = append(window, models.EnrichedFeedback{})
	assert.True(t, a.MinimumMet(window))
}
