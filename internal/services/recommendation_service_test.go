package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

func newTestRecommendationService(store *MockPreferenceStore) *RecommendationService {
	cfg := config.DefaultLearningConfig()
	return NewRecommendationService(store, &cfg, testLogger())
}

func snapshotWithTags(userID string, weights map[string]float64) *models.PreferenceSnapshot {
	return &models.PreferenceSnapshot{
		UserID:      userID,
		TagWeights:  weights,
		KindWeights: map[models.ObjectKind]float64{},
	}
}

func TestGetRecommendations_TopUserTagsRankedByWeight(t *testing.T) {
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "artist-7").Return(snapshotWithTags("artist-7", map[string]float64{
		"geometric":  1.2,
		"organic":    0.8,
		"monoline":   0.5,
		"halftone":   0.3,
		"distressed": -0.9,
	}), nil)

	svc := newTestRecommendationService(store)

	recs, err := svc.GetRecommendations(context.Background(), "artist-7", models.RecommendationOptions{})

	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "geometric", recs[0].Tag)
	assert.Equal(t, "organic", recs[1].Tag)
	assert.Equal(t, "monoline", recs[2].Tag)
	for _, rec := range recs {
		assert.Equal(t, models.SourceUser, rec.Source)
		assert.Greater(t, rec.Weight, 0.0)
	}
}

func TestGetRecommendations_DiversityPadsWithGlobal(t *testing.T) {
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "artist-7").Return(snapshotWithTags("artist-7", map[string]float64{
		"geometric": 1.2,
		"organic":   0.8,
		"monoline":  0.5,
	}), nil)
	store.On("GetGlobal", mock.Anything).Return(snapshotWithTags(models.GlobalPreferenceKey, map[string]float64{
		"vintage":  0.9,
		"halftone": 0.6,
		"badge":    0.4,
	}), nil)

	svc := newTestRecommendationService(store)

	recs, err := svc.GetRecommendations(context.Background(), "artist-7", models.RecommendationOptions{EnsureDiversity: true})

	require.NoError(t, err)
	require.Len(t, recs, 5)

	assert.Equal(t, "vintage", recs[3].Tag)
	assert.Equal(t, models.SourceGlobal, recs[3].Source)
	assert.Equal(t, "halftone", recs[4].Tag)
}

func TestGetRecommendations_GlobalEntriesIndependentOfUserTags(t *testing.T) {
	// A user whose tags dominate the global pool still gets the global view:
	// the shared tag appears once per source, each with its own weight.
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "artist-7").Return(snapshotWithTags("artist-7", map[string]float64{
		"blue": 1.5,
	}), nil)
	store.On("GetGlobal", mock.Anything).Return(snapshotWithTags(models.GlobalPreferenceKey, map[string]float64{
		"blue": 1.4,
	}), nil)

	svc := newTestRecommendationService(store)

	recs, err := svc.GetRecommendations(context.Background(), "artist-7", models.RecommendationOptions{EnsureDiversity: true})

	require.NoError(t, err)
	require.Len(t, recs, 2)

	globalCount := 0
	for _, rec := range recs {
		if rec.Source == models.SourceGlobal {
			globalCount++
			assert.Equal(t, "blue", rec.Tag)
			assert.Equal(t, 1.4, rec.Weight)
		}
	}
	assert.GreaterOrEqual(t, globalCount, 1)
}

func TestGetRecommendations_ColdStartFallsBackToGlobal(t *testing.T) {
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "new-user").Return(snapshotWithTags("new-user", map[string]float64{}), nil)
	store.On("GetGlobal", mock.Anything).Return(snapshotWithTags(models.GlobalPreferenceKey, map[string]float64{
		"vintage":  0.9,
		"halftone": 0.6,
		"badge":    0.4,
	}), nil)

	svc := newTestRecommendationService(store)

	recs, err := svc.GetRecommendations(context.Background(), "new-user", models.RecommendationOptions{})

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "vintage", recs[0].Tag)
	assert.Equal(t, models.SourceGlobal, recs[0].Source)
}

func TestGetRecommendations_AnonymousUsesGlobalOnly(t *testing.T) {
	store := &MockPreferenceStore{}
	store.On("GetGlobal", mock.Anything).Return(snapshotWithTags(models.GlobalPreferenceKey, map[string]float64{
		"vintage": 0.9,
	}), nil)

	svc := newTestRecommendationService(store)

	recs, err := svc.GetRecommendations(context.Background(), "", models.RecommendationOptions{})

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.SourceGlobal, recs[0].Source)
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestAnalyzeBias(t *testing.T) {
	tests := []struct {
		name        string
		weights     map[string]float64
		wantExtreme bool
		wantTags    []string
	}{
		{
			name:        "no weights over threshold",
			weights:     map[string]float64{"geometric": 1.1, "organic": -1.0},
			wantExtreme: false,
		},
		{
			name:        "positive weight over threshold",
			weights:     map[string]float64{"geometric": 1.5, "organic": 0.4},
			wantExtreme: true,
			wantTags:    []string{"geometric"},
		},
		{
			name:        "negative magnitude counts",
			weights:     map[string]float64{"distressed": -2.1, "geometric": 1.3},
			wantExtreme: true,
			wantTags:    []string{"distressed", "geometric"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockPreferenceStore{}
			store.On("Get", mock.Anything, "artist-7").Return(snapshotWithTags("artist-7", tt.weights), nil)

			svc := newTestRecommendationService(store)

			report, err := svc.AnalyzeBias(context.Background(), "artist-7")

			require.NoError(t, err)
			assert.Equal(t, tt.wantExtreme, report.HasExtremeBias)
			assert.Equal(t, tt.wantTags, report.BiasedTags)
			if tt.wantExtreme {
				assert.NotEmpty(t, report.RecommendedActions)
			} else {
				assert.Empty(t, report.RecommendedActions)
			}
		})
	}
}

func TestWeightDiversityScore(t *testing.T) {
	assert.Equal(t, 1.0, WeightDiversityScore(nil))
	assert.Equal(t, 1.0, WeightDiversityScore(snapshotWithTags("u", map[string]float64{})))
	assert.Equal(t, 1.0, WeightDiversityScore(snapshotWithTags("u", map[string]float64{"a": 1.5})))

	uniform := WeightDiversityScore(snapshotWithTags("u", map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5}))
	assert.Equal(t, 1.0, uniform)

	skewed := WeightDiversityScore(snapshotWithTags("u", map[string]float64{"a": 1.5, "b": 0.1, "c": 0.1}))
	assert.Less(t, skewed, uniform)

	extreme := WeightDiversityScore(snapshotWithTags("u", map[string]float64{"a": 3.0, "b": -3.0}))
	assert.Equal(t, 0.0, extreme)
}
