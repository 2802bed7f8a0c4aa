package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inkmuse/atelier/pkg/models"
)

// FeedbackLedgerInterface is the read/write contract over generation events
// and feedback rows.
type FeedbackLedgerInterface interface {
	CreateEvent(ctx context.Context, req *models.GenerationEventRequest) (*models.GenerationEvent, error)
	GetEvent(ctx context.Context, eventID int64) (*models.GenerationEvent, error)
	UpsertFeedback(ctx context.Context, record *models.FeedbackRecord) error
	QueryUserFeedback(ctx context.Context, userID string, since time.Time) ([]models.EnrichedFeedback, error)
	QueryGlobalFeedback(ctx context.Context, since time.Time) ([]models.EnrichedFeedback, error)
	DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error)
	CountEvents(ctx context.Context) (int64, error)
	CountFeedback(ctx context.Context) (int64, error)
	AverageObjectQuality(ctx context.Context, since time.Time) (float64, error)
	DistinctObjectsUsed(ctx context.Context, since time.Time) (int64, error)
	LowRatedObjects(ctx context.Context, since time.Time, minFeedback int, threshold float64) ([]uuid.UUID, error)
}

// KnowledgeBaseInterface is the narrow contract with the knowledge-base
// collaborator. The engine reads objects and flips deprecation status;
// authoring belongs to the knowledge-base manager.
type KnowledgeBaseInterface interface {
	GetObjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.KnowledgeObject, error)
	DeprecateObject(ctx context.Context, id uuid.UUID) error
	CountActiveObjects(ctx context.Context) (int64, error)
	ListObjects(ctx context.Context, kind models.ObjectKind, status models.ObjectStatus, limit, offset int) ([]models.KnowledgeObject, error)
}

// PreferenceStoreInterface is the snapshot façade: get with cold-start
// fallback, last-write-wins save, and direct single-tag access for admin use.
type PreferenceStoreInterface interface {
	Get(ctx context.Context, userID string) (*models.PreferenceSnapshot, error)
	GetGlobal(ctx context.Context) (*models.PreferenceSnapshot, error)
	Save(ctx context.Context, snapshot *models.PreferenceSnapshot) error
	LastUpdated(ctx context.Context, userID string) (time.Time, error)
	SetTagWeight(ctx context.Context, userID, tag string, value float64) error
	GetTagWeight(ctx context.Context, userID, tag string) (float64, error)
}

// PreferenceEngineInterface is the public surface called by the API layer
// and periodic jobs.
type PreferenceEngineInterface interface {
	SubmitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string, notes *string) error
	SubmitImplicitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string)
	ProcessFeedback(ctx context.Context, input *models.FeedbackInput) (*models.FeedbackResult, error)
	ProcessFeedbackBatch(ctx context.Context, inputs []models.FeedbackInput) []models.FeedbackBatchItem
	RefreshGlobalPreferences(ctx context.Context) error
	DecayPreferences(ctx context.Context, userID string) error
	GetUserPreferences(ctx context.Context, userID string) (*models.PreferenceSnapshot, error)
	GetGlobalPreferences(ctx context.Context) (*models.PreferenceSnapshot, error)
	GetUserPreference(ctx context.Context, userID, tag string) (float64, error)
}

// RecommendationServiceInterface ranks tags and reports bias health.
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context, userID string, opts models.RecommendationOptions) ([]models.TagRecommendation, error)
	AnalyzeBias(ctx context.Context, userID string) (*models.BiasReport, error)
}

// LearningHealthInterface covers diagnostics and the periodic sweeps.
type LearningHealthInterface interface {
	GetLearningMetrics(ctx context.Context) (*models.LearningMetrics, error)
	DeprecateStaleObjects(ctx context.Context) (int, error)
	CleanupOldData(ctx context.Context, retentionDays int) (*models.CleanupResult, error)
}
