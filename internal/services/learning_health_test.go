package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

func newTestHealthService(ledger *MockFeedbackLedger, kb *MockKnowledgeBase, store *MockPreferenceStore) *LearningHealthService {
	cfg := config.DefaultLearningConfig()
	return NewLearningHealthService(ledger, kb, store, &cfg, testLogger())
}

func TestGetLearningMetrics(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("CountEvents", mock.Anything).Return(int64(200), nil)
	ledger.On("CountFeedback", mock.Anything).Return(int64(50), nil)
	ledger.On("AverageObjectQuality", mock.Anything, mock.Anything).Return(0.72, nil)
	ledger.On("DistinctObjectsUsed", mock.Anything, mock.Anything).Return(int64(30), nil)

	kb := &MockKnowledgeBase{}
	kb.On("CountActiveObjects", mock.Anything).Return(int64(40), nil)

	store := &MockPreferenceStore{}
	store.On("GetGlobal", mock.Anything).Return(&models.PreferenceSnapshot{
		UserID:      models.GlobalPreferenceKey,
		TagWeights:  map[string]float64{"geometric": 0.8, "organic": 0.8},
		KindWeights: map[models.ObjectKind]float64{},
		UpdatedAt:   time.Now().Add(-6 * time.Hour),
	}, nil)

	svc := newTestHealthService(ledger, kb, store)

	metrics, err := svc.GetLearningMetrics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(200), metrics.TotalEvents)
	assert.Equal(t, int64(50), metrics.FeedbackCount)
	assert.Equal(t, 0.25, metrics.FeedbackRate)
	assert.Equal(t, 0.72, metrics.AverageQuality)
	assert.Equal(t, 0.75, metrics.RetrievalCoverage)
	// Uniform weights: perfectly diverse, no bias
	assert.Equal(t, 1.0, metrics.WeightDiversity)
	assert.Equal(t, 0.0, metrics.BiasScore)
	// Snapshot is a quarter day old against a 30-day window
	assert.Greater(t, metrics.StabilityScore, 0.0)
	assert.Less(t, metrics.StabilityScore, 0.1)
	assert.False(t, metrics.GeneratedAt.IsZero())
}

func TestGetLearningMetrics_NoEvents(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("CountEvents", mock.Anything).Return(int64(0), nil)
	ledger.On("CountFeedback", mock.Anything).Return(int64(0), nil)
	ledger.On("AverageObjectQuality", mock.Anything, mock.Anything).Return(0.0, nil)
	ledger.On("DistinctObjectsUsed", mock.Anything, mock.Anything).Return(int64(0), nil)

	kb := &MockKnowledgeBase{}
	kb.On("CountActiveObjects", mock.Anything).Return(int64(0), nil)

	store := &MockPreferenceStore{}
	store.On("GetGlobal", mock.Anything).Return(&models.PreferenceSnapshot{
		UserID:      models.GlobalPreferenceKey,
		TagWeights:  map[string]float64{},
		KindWeights: map[models.ObjectKind]float64{},
	}, nil)

	svc := newTestHealthService(ledger, kb, store)

	metrics, err := svc.GetLearningMetrics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0.0, metrics.FeedbackRate)
	assert.Equal(t, 0.0, metrics.RetrievalCoverage)
	assert.Equal(t, 0.0, metrics.StabilityScore)
}

func TestDeprecateStaleObjects(t *testing.T) {
	good := uuid.New()
	bad := uuid.New()

	ledger := &MockFeedbackLedger{}
	ledger.On("LowRatedObjects", mock.Anything, mock.Anything, 5, -0.5).
		Return([]uuid.UUID{good, bad}, nil)

	kb := &MockKnowledgeBase{}
	kb.On("DeprecateObject", mock.Anything, good).Return(nil)
	kb.On("DeprecateObject", mock.Anything, bad).Return(errors.New("row locked"))

	svc := newTestHealthService(ledger, kb, &MockPreferenceStore{})

	deprecated, err := svc.DeprecateStaleObjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, deprecated)
	kb.AssertExpectations(t)
}

func TestDeprecateStaleObjects_NoCandidates(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("LowRatedObjects", mock.Anything, mock.Anything, 5, -0.5).
		Return([]uuid.UUID{}, nil)

	kb := &MockKnowledgeBase{}

	svc := newTestHealthService(ledger, kb, &MockPreferenceStore{})

	deprecated, err := svc.DeprecateStaleObjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, deprecated)
	kb.AssertNotCalled(t, "DeprecateObject", mock.Anything, mock.Anything)
}

func TestCleanupOldData(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("DeleteOlderThan", mock.Anything, "feedback_records", mock.Anything).Return(int64(120), nil)
	ledger.On("DeleteOlderThan", mock.Anything, "generation_events", mock.Anything).Return(int64(80), nil)

	svc := newTestHealthService(ledger, &MockKnowledgeBase{}, &MockPreferenceStore{})

	result, err := svc.CleanupOldData(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, int64(80), result.Events)
	assert.Equal(t, int64(120), result.Feedback)
}

func TestCleanupOldData_CutoffRespectsRetention(t *testing.T) {
	tests := []struct {
		name          string
		retentionDays int
		wantDays      int
	}{
		{"configured default", 0, 90},
		{"per-run override", 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cutoff time.Time
			ledger := &MockFeedbackLedger{}
			ledger.On("DeleteOlderThan", mock.Anything, "feedback_records", mock.Anything).
				Run(func(args mock.Arguments) { cutoff = args.Get(2).(time.Time) }).
				Return(int64(0), nil)
			ledger.On("DeleteOlderThan", mock.Anything, "generation_events", mock.Anything).Return(int64(0), nil)

			svc := newTestHealthService(ledger, &MockKnowledgeBase{}, &MockPreferenceStore{})

			_, err := svc.CleanupOldData(context.Background(), tt.retentionDays)

			require.NoError(t, err)
			expected := time.Now().AddDate(0, 0, -tt.wantDays)
			assert.WithinDuration(t, expected, cutoff, time.Minute)
		})
	}
}
