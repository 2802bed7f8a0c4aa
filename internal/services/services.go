package services

import (
	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/internal/database"
	"github.com/inkmuse/atelier/internal/messaging"

	"github.com/sirupsen/logrus"
)

type Services struct {
	Auth           *AuthService
	Health         *HealthService
	RateLimiter    *RateLimiter
	EventBus       *messaging.FeedbackEventBus
	Knowledge      *KnowledgeBaseService
	Ledger         *FeedbackLedger
	Store          *PreferenceStore
	Engine         *PreferenceEngine
	Recommendation *RecommendationService
	LearningHealth *LearningHealthService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	authService := NewAuthService(cfg, logger, db.Redis.Hot)
	healthService := NewHealthService(cfg, logger, db)
	rateLimiter := NewRateLimiter(db.Redis.Hot)

	eventBus := messaging.NewFeedbackEventBus(cfg, logger)

	knowledge := NewKnowledgeBaseService(db.PG, logger)
	ledger := NewFeedbackLedger(db.PG, knowledge, logger)
	store := NewPreferenceStore(db.PG, db.Redis.Warm, &cfg.Learning, logger)

	engine := NewPreferenceEngine(ledger, knowledge, store, eventBus, &cfg.Learning, logger)
	recommendation := NewRecommendationService(store, &cfg.Learning, logger)
	learningHealth := NewLearningHealthService(ledger, knowledge, store, &cfg.Learning, logger)

	return &Services{
		Auth:           authService,
		Health:         healthService,
		RateLimiter:    rateLimiter,
		EventBus:       eventBus,
		Knowledge:      knowledge,
		Ledger:         ledger,
		Store:          store,
		Engine:         engine,
		Recommendation: recommendation,
		LearningHealth: learningHealth,
	}, nil
}
