package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Event          *EventHandler
	Feedback       *FeedbackHandler
	Preference     *PreferenceHandler
	Recommendation *RecommendationHandler
	Knowledge      *KnowledgeHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Event:          NewEventHandler(logger, services.Ledger),
		Feedback:       NewFeedbackHandler(logger, services.Engine),
		Preference:     NewPreferenceHandler(logger, services.Engine, services.Store),
		Recommendation: NewRecommendationHandler(logger, services.Recommendation),
		Knowledge:      NewKnowledgeHandler(logger, services.Knowledge),
		Admin:          NewAdminHandler(logger, services.Engine, services.LearningHealth),
	}
}
