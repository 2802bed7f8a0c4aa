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

type MockFeedbackLedger struct {
	mock.Mock
}

func (m *MockFeedbackLedger) CreateEvent(ctx context.Context, req *models.GenerationEventRequest) (*models.GenerationEvent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GenerationEvent), args.Error(1)
}

func (m *MockFeedbackLedger) GetEvent(ctx context.Context, eventID int64) (*models.GenerationEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GenerationEvent), args.Error(1)
}

func (m *MockFeedbackLedger) UpsertFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFeedbackLedger) QueryUserFeedback(ctx context.Context, userID string, since time.Time) ([]models.EnrichedFeedback, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrichedFeedback), args.Error(1)
}

func (m *MockFeedbackLedger) QueryGlobalFeedback(ctx context.Context, since time.Time) ([]models.EnrichedFeedback, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrichedFeedback), args.Error(1)
}

func (m *MockFeedbackLedger) DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, table, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackLedger) CountEvents(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackLedger) CountFeedback(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackLedger) AverageObjectQuality(ctx context.Context, since time.Time) (float64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockFeedbackLedger) DistinctObjectsUsed(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackLedger) LowRatedObjects(ctx context.Context, since time.Time, minFeedback int, threshold float64) ([]uuid.UUID, error) {
	args := m.Called(ctx, since, minFeedback, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) Get(ctx context.Context, userID string) (*models.PreferenceSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferenceSnapshot), args.Error(1)
}

func (m *MockPreferenceStore) GetGlobal(ctx context.Context) (*models.PreferenceSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferenceSnapshot), args.Error(1)
}

func (m *MockPreferenceStore) Save(ctx context.Context, snapshot *models.PreferenceSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockPreferenceStore) LastUpdated(ctx context.Context, userID string) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockPreferenceStore) SetTagWeight(ctx context.Context, userID, tag string, value float64) error {
	args := m.Called(ctx, userID, tag, value)
	return args.Error(0)
}

func (m *MockPreferenceStore) GetTagWeight(ctx context.Context, userID, tag string) (float64, error) {
	args := m.Called(ctx, userID, tag)
	return args.Get(0).(float64), args.Error(1)
}

func newTestEngine(ledger *MockFeedbackLedger, kb *MockKnowledgeBase, store *MockPreferenceStore) *PreferenceEngine {
	cfg := config.DefaultLearningConfig()
	return NewPreferenceEngine(ledger, kb, store, nil, &cfg, testLogger())
}

func testEvent(objectIDs ...uuid.UUID) *models.GenerationEvent {
	return &models.GenerationEvent{
		ID:        7,
		UserID:    "artist-7",
		Prompt:    "fox",
		ObjectIDs: objectIDs,
		CreatedAt: time.Now(),
	}
}

func windowOf(n int, weight float64, tags ...string) []models.EnrichedFeedback {
	window := make([]models.EnrichedFeedback, n)
	for i := range window {
		window[i] = feedbackWith(weight, objectWith(models.KindMotif, nil, tags...))
	}
	return window
}

func TestProcessFeedback_UnknownSignal(t *testing.T) {
	engine := newTestEngine(&MockFeedbackLedger{}, &MockKnowledgeBase{}, &MockPreferenceStore{})

	_, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID: 7,
		Signal:  "liked",
	})

	assert.ErrorIs(t, err, ErrUnknownSignal)
}

func TestProcessFeedback_EventNotFound(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(99)).Return(nil, ErrEventNotFound)

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, &MockPreferenceStore{})

	_, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID: 99,
		Signal:  models.SignalKept,
	})

	assert.ErrorIs(t, err, ErrEventNotFound)
	ledger.AssertExpectations(t)
}

func TestProcessFeedback_BelowMinimum_NoUpdate(t *testing.T) {
	objectID := uuid.New()

	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(7)).Return(testEvent(objectID), nil)
	ledger.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)
	ledger.On("QueryUserFeedback", mock.Anything, "artist-7", mock.Anything).
		Return(windowOf(3, 1.0, "geometric"), nil)

	kb := &MockKnowledgeBase{}
	kb.On("GetObjectsByIDs", mock.Anything, []uuid.UUID{objectID}).Return([]models.KnowledgeObject{
		{ID: objectID, Kind: models.KindMotif, Tags: []string{"geometric"}},
	}, nil)

	store := &MockPreferenceStore{}
	store.On("LastUpdated", mock.Anything, models.GlobalPreferenceKey).Return(time.Now(), nil)

	engine := newTestEngine(ledger, kb, store)

	result, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID: 7,
		Signal:  models.SignalKept,
		UserID:  "artist-7",
	})

	require.NoError(t, err)
	assert.False(t, result.PreferencesUpdated)
	assert.Equal(t, 1.0, result.WeightApplied)
	assert.Equal(t, []string{"geometric"}, result.TagsAffected)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProcessFeedback_MinimumMet_SavesBlendedSnapshot(t *testing.T) {
	objectID := uuid.New()

	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(7)).Return(testEvent(objectID), nil)
	ledger.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)
	ledger.On("QueryUserFeedback", mock.Anything, "artist-7", mock.Anything).
		Return(windowOf(12, 1.0, "geometric"), nil)

	kb := &MockKnowledgeBase{}
	kb.On("GetObjectsByIDs", mock.Anything, []uuid.UUID{objectID}).Return([]models.KnowledgeObject{
		{ID: objectID, Kind: models.KindMotif, Tags: []string{"geometric"}},
	}, nil)

	cfg := config.DefaultLearningConfig()
	old := models.DefaultPreferenceSnapshot("artist-7", cfg.QualityFloor, cfg.DiversityFloor)

	var saved *models.PreferenceSnapshot
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "artist-7").Return(old, nil)
	store.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.PreferenceSnapshot)
	}).Return(nil)
	store.On("LastUpdated", mock.Anything, models.GlobalPreferenceKey).Return(time.Now(), nil)

	engine := newTestEngine(ledger, kb, store)

	result, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID: 7,
		Signal:  models.SignalKept,
		UserID:  "artist-7",
	})

	require.NoError(t, err)
	assert.True(t, result.PreferencesUpdated)

	require.NotNil(t, saved)
	// Aggregated window weight is 1.0 for "geometric", blended 0.9·0 + 0.1·1.0
	assert.InDelta(t, 0.1, saved.TagWeights["geometric"], 1e-9)
	// Every persisted weight obeys the cap
	for _, w := range saved.TagWeights {
		assert.LessOrEqual(t, w, cfg.MaxWeight)
	}
	assert.GreaterOrEqual(t, saved.DiversityWeight, cfg.DiversityFloor)
	assert.GreaterOrEqual(t, saved.QualityThreshold, cfg.QualityFloor)
}

func TestProcessFeedback_WeightOverride(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(7)).Return(testEvent(), nil)

	var upserted *models.FeedbackRecord
	ledger.On("UpsertFeedback", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		upserted = args.Get(1).(*models.FeedbackRecord)
	}).Return(nil)

	store := &MockPreferenceStore{}
	store.On("LastUpdated", mock.Anything, models.GlobalPreferenceKey).Return(time.Now(), nil)

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, store)

	override := 0.2
	result, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID:        7,
		Signal:         models.SignalExported,
		WeightOverride: &override,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.2, result.WeightApplied)
	require.NotNil(t, upserted)
	assert.Equal(t, 0.2, upserted.Weight)
	assert.Equal(t, models.SignalExported, upserted.Signal)
}

func TestProcessFeedback_AnonymousSkipsUserRecompute(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(7)).Return(testEvent(), nil)
	ledger.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)

	store := &MockPreferenceStore{}
	store.On("LastUpdated", mock.Anything, models.GlobalPreferenceKey).Return(time.Now(), nil)

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, store)

	result, err := engine.ProcessFeedback(context.Background(), &models.FeedbackInput{
		EventID: 7,
		Signal:  models.SignalKept,
	})

	require.NoError(t, err)
	assert.False(t, result.PreferencesUpdated)
	ledger.AssertNotCalled(t, "QueryUserFeedback", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessFeedbackBatch_PartialFailure(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(7)).Return(testEvent(), nil)
	ledger.On("GetEvent", mock.Anything, int64(99)).Return(nil, ErrEventNotFound)
	ledger.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)

	store := &MockPreferenceStore{}
	store.On("LastUpdated", mock.Anything, models.GlobalPreferenceKey).Return(time.Now(), nil)

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, store)

	items := engine.ProcessFeedbackBatch(context.Background(), []models.FeedbackInput{
		{EventID: 7, Signal: models.SignalKept},
		{EventID: 99, Signal: models.SignalKept},
		{EventID: 7, Signal: "bogus"},
	})

	require.Len(t, items, 3)
	assert.Empty(t, items[0].Error)
	assert.NotNil(t, items[0].Result)
	assert.Contains(t, items[1].Error, "not found")
	assert.NotEmpty(t, items[2].Error)
}

func TestRefreshGlobalPreferences_EmptyWindowSkips(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("QueryGlobalFeedback", mock.Anything, mock.Anything).Return([]models.EnrichedFeedback{}, nil)

	store := &MockPreferenceStore{}

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, store)

	err := engine.RefreshGlobalPreferences(context.Background())

	require.NoError(t, err)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRefreshGlobalPreferences_NoMinimumGate(t *testing.T) {
	// The global pool aggregates whatever exists, even below the per-user
	// minimum.
	ledger := &MockFeedbackLedger{}
	ledger.On("QueryGlobalFeedback", mock.Anything, mock.Anything).
		Return(windowOf(2, 1.0, "organic"), nil)

	cfg := config.DefaultLearningConfig()
	old := models.DefaultPreferenceSnapshot(models.GlobalPreferenceKey, cfg.QualityFloor, cfg.DiversityFloor)

	var saved *models.PreferenceSnapshot
	store := &MockPreferenceStore{}
	store.On("GetGlobal", mock.Anything).Return(old, nil)
	store.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.PreferenceSnapshot)
	}).Return(nil)

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, store)

	err := engine.RefreshGlobalPreferences(context.Background())

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, models.GlobalPreferenceKey, saved.UserID)
	assert.Greater(t, saved.TagWeights["organic"], 0.0)
}

func TestDecayPreferences(t *testing.T) {
	snapshot := &models.PreferenceSnapshot{
		UserID:      "artist-7",
		TagWeights:  map[string]float64{"geometric": 1.0},
		KindWeights: map[models.ObjectKind]float64{},
	}

	var saved *models.PreferenceSnapshot
	store := &MockPreferenceStore{}
	store.On("Get", mock.Anything, "artist-7").Return(snapshot, nil)
	store.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.PreferenceSnapshot)
	}).Return(nil)

	engine := newTestEngine(&MockFeedbackLedger{}, &MockKnowledgeBase{}, store)

	err := engine.DecayPreferences(context.Background(), "artist-7")

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.InDelta(t, 0.95, saved.TagWeights["geometric"], 1e-9)
}

func TestSubmitFeedback_PropagatesErrors(t *testing.T) {
	ledger := &MockFeedbackLedger{}
	ledger.On("GetEvent", mock.Anything, int64(1)).Return(nil, errors.New("connection refused"))

	engine := newTestEngine(ledger, &MockKnowledgeBase{}, &MockPreferenceStore{})

	err := engine.SubmitFeedback(context.Background(), 1, models.SignalKept, "", nil)

	assert.Error(t, err)
}
