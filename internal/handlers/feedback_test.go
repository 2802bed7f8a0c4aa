package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/pkg/models"
)

// mockPreferenceEngine records calls and returns canned results.
type mockPreferenceEngine struct {
	processErr     error
	processedInput *models.FeedbackInput
	implicitCalls  int
	batchInputs    []models.FeedbackInput
}

func (m *mockPreferenceEngine) SubmitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string, notes *string) error {
	return m.processErr
}

func (m *mockPreferenceEngine) SubmitImplicitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string) {
	m.implicitCalls++
}

func (m *mockPreferenceEngine) ProcessFeedback(ctx context.Context, input *models.FeedbackInput) (*models.FeedbackResult, error) {
	m.processedInput = input
	if m.processErr != nil {
		return nil, m.processErr
	}
	return &models.FeedbackResult{
		PreferencesUpdated: true,
		TagsAffected:       []string{"geometric"},
		WeightApplied:      1.0,
	}, nil
}

func (m *mockPreferenceEngine) ProcessFeedbackBatch(ctx context.Context, inputs []models.FeedbackInput) []models.FeedbackBatchItem {
	m.batchInputs = inputs
	items := make([]models.FeedbackBatchItem, len(inputs))
	for i := range inputs {
		items[i] = models.FeedbackBatchItem{Index: i}
		if inputs[i].EventID == 99 {
			items[i].Error = "generation event not found"
		} else {
			items[i].Result = &models.FeedbackResult{WeightApplied: 1.0}
		}
	}
	return items
}

func (m *mockPreferenceEngine) RefreshGlobalPreferences(ctx context.Context) error { return nil }

func (m *mockPreferenceEngine) DecayPreferences(ctx context.Context, userID string) error {
	return nil
}

func (m *mockPreferenceEngine) GetUserPreferences(ctx context.Context, userID string) (*models.PreferenceSnapshot, error) {
	return &models.PreferenceSnapshot{UserID: userID, TagWeights: map[string]float64{}}, nil
}

func (m *mockPreferenceEngine) GetGlobalPreferences(ctx context.Context) (*models.PreferenceSnapshot, error) {
	return &models.PreferenceSnapshot{UserID: models.GlobalPreferenceKey, TagWeights: map[string]float64{}}, nil
}

func (m *mockPreferenceEngine) GetUserPreference(ctx context.Context, userID, tag string) (float64, error) {
	return 0, nil
}

func setupFeedbackRouter(engine *mockPreferenceEngine, authUser string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	handler := NewFeedbackHandler(logger, engine)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if authUser != "" {
			c.Set("user_id", authUser)
		}
		c.Next()
	})
	router.POST("/api/v1/feedback", handler.Submit)
	router.POST("/api/v1/feedback/implicit", handler.SubmitImplicit)
	router.POST("/api/v1/feedback/batch", handler.SubmitBatch)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", path, bytes.NewBuffer(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFeedbackHandler_Submit_Success(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "")

	w := postJSON(t, router, "/api/v1/feedback", models.FeedbackInput{
		EventID: 7,
		Signal:  models.SignalKept,
		UserID:  "artist-7",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Data models.FeedbackResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Data.PreferencesUpdated)
	assert.Equal(t, []string{"geometric"}, response.Data.TagsAffected)
}

func TestFeedbackHandler_Submit_DefaultsToAuthenticatedUser(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "artist-7")

	w := postJSON(t, router, "/api/v1/feedback", models.FeedbackInput{
		EventID: 7,
		Signal:  models.SignalKept,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, engine.processedInput)
	assert.Equal(t, "artist-7", engine.processedInput.UserID)
}

func TestFeedbackHandler_Submit_InvalidSignal(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "")

	w := postJSON(t, router, "/api/v1/feedback", map[string]interface{}{
		"event_id": 7,
		"signal":   "liked",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, engine.processedInput)
}

func TestFeedbackHandler_Submit_EventNotFound(t *testing.T) {
	engine := &mockPreferenceEngine{processErr: services.ErrEventNotFound}
	router := setupFeedbackRouter(engine, "")

	w := postJSON(t, router, "/api/v1/feedback", models.FeedbackInput{
		EventID: 99,
		Signal:  models.SignalKept,
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "EVENT_NOT_FOUND")
}

func TestFeedbackHandler_SubmitImplicit(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "")

	w := postJSON(t, router, "/api/v1/feedback/implicit", map[string]interface{}{
		"event_id": 7,
		"signal":   "exported",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, engine.implicitCalls)
}

func TestFeedbackHandler_SubmitBatch_PartialFailure(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "artist-7")

	w := postJSON(t, router, "/api/v1/feedback/batch", models.FeedbackBatchRequest{
		Items: []models.FeedbackInput{
			{EventID: 7, Signal: models.SignalKept},
			{EventID: 99, Signal: models.SignalKept},
		},
	})

	assert.Equal(t, http.StatusMultiStatus, w.Code)

	var response struct {
		Data struct {
			Total     int `json:"total"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Data.Total)
	assert.Equal(t, 1, response.Data.Succeeded)
	assert.Equal(t, 1, response.Data.Failed)

	// Anonymous items inherit the authenticated user
	require.Len(t, engine.batchInputs, 2)
	assert.Equal(t, "artist-7", engine.batchInputs[0].UserID)
}

func TestFeedbackHandler_SubmitBatch_Empty(t *testing.T) {
	engine := &mockPreferenceEngine{}
	router := setupFeedbackRouter(engine, "")

	w := postJSON(t, router, "/api/v1/feedback/batch", map[string]interface{}{
		"items": []interface{}{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, engine.batchInputs)
}
