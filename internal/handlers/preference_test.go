package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmuse/atelier/pkg/models"
)

func jsonBody(t *testing.T, body interface{}) io.Reader {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// mockStore records tag writes; reads return empty snapshots.
type mockStore struct {
	setUserID string
	setTag    string
	setWeight float64
	setCalls  int
}

func (m *mockStore) Get(ctx context.Context, userID string) (*models.PreferenceSnapshot, error) {
	return &models.PreferenceSnapshot{UserID: userID, TagWeights: map[string]float64{}}, nil
}

func (m *mockStore) GetGlobal(ctx context.Context) (*models.PreferenceSnapshot, error) {
	return &models.PreferenceSnapshot{UserID: models.GlobalPreferenceKey, TagWeights: map[string]float64{}}, nil
}

func (m *mockStore) Save(ctx context.Context, snapshot *models.PreferenceSnapshot) error {
	return nil
}

func (m *mockStore) LastUpdated(ctx context.Context, userID string) (time.Time, error) {
	return time.Time{}, nil
}

func (m *mockStore) SetTagWeight(ctx context.Context, userID, tag string, value float64) error {
	m.setUserID = userID
	m.setTag = tag
	m.setWeight = value
	m.setCalls++
	return nil
}

func (m *mockStore) GetTagWeight(ctx context.Context, userID, tag string) (float64, error) {
	return 0, nil
}

func setupPreferenceRouter(store *mockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	handler := NewPreferenceHandler(logger, &mockPreferenceEngine{}, store)

	router := gin.New()
	router.PUT("/api/v1/users/:userId/preferences/tags/:tag", handler.SetTag)
	return router
}

func TestPreferenceHandler_SetTag(t *testing.T) {
	store := &mockStore{}
	router := setupPreferenceRouter(store)

	req, err := http.NewRequest("PUT", "/api/v1/users/artist-7/preferences/tags/geometric", jsonBody(t, map[string]interface{}{
		"weight": 0.75,
	}))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "artist-7", store.setUserID)
	assert.Equal(t, "geometric", store.setTag)
	assert.Equal(t, 0.75, store.setWeight)
}

func TestPreferenceHandler_SetTag_ZeroWeight(t *testing.T) {
	// Pinning a runaway tag back to zero is a legitimate admin correction.
	store := &mockStore{}
	router := setupPreferenceRouter(store)

	req, err := http.NewRequest("PUT", "/api/v1/users/artist-7/preferences/tags/geometric", jsonBody(t, map[string]interface{}{
		"weight": 0,
	}))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.setCalls)
	assert.Equal(t, 0.0, store.setWeight)
}

func TestPreferenceHandler_SetTag_MissingWeight(t *testing.T) {
	store := &mockStore{}
	router := setupPreferenceRouter(store)

	req, err := http.NewRequest("PUT", "/api/v1/users/artist-7/preferences/tags/geometric", jsonBody(t, map[string]interface{}{}))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.setCalls)
}
