package services

import (
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// BiasController enforces safety bounds on a raw snapshot before it is
// persisted: tag and kind weights are capped at MaxWeight (ceiling only,
// negative weights pass through), diversity weight and quality threshold are
// raised to their floors. Applying it twice is a no-op.
type BiasController struct {
	config *config.LearningConfig
	logger *logrus.Logger
}

func NewBiasController(cfg *config.LearningConfig, logger *logrus.Logger) *BiasController {
	return &BiasController{
		config: cfg,
		logger: logger,
	}
}

// Apply clamps the snapshot in place and returns it.
func (b *BiasController) Apply(snapshot *models.PreferenceSnapshot) *models.PreferenceSnapshot {
	capped := 0

	for tag, weight := range snapshot.TagWeights {
		if weight > b.config.MaxWeight {
			snapshot.TagWeights[tag] = b.config.MaxWeight
			capped++
		}
	}

	for kind, weight := range snapshot.KindWeights {
		if weight > b.config.MaxWeight {
			snapshot.KindWeights[kind] = b.config.MaxWeight
			capped++
		}
	}

	if snapshot.DiversityWeight < b.config.DiversityFloor {
		snapshot.DiversityWeight = b.config.DiversityFloor
	}

	if snapshot.QualityThreshold < b.config.QualityFloor {
		snapshot.QualityThreshold = b.config.QualityFloor
	}

	if capped > 0 {
		b.logger.WithFields(logrus.Fields{
			"user_id":        snapshot.UserID,
			"weights_capped": capped,
		}).Debug("Capped preference weights")
	}

	return snapshot
}
