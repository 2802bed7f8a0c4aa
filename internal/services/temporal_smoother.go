package services

import (
	"math"
	"time"

	"github.com/inkmuse/atelier/pkg/models"
)

// Exponential smoothing and decay over preference snapshots. These are pure
// functions of (old, new, factor); nothing here touches a store.

// BlendSnapshots combines a stored snapshot with a freshly aggregated one
// using an exponential moving average: blended = (1-α)·old + α·new. Entries
// missing on either side count as zero. Kind weights, the quality threshold
// and the diversity weight blend by the same rule.
func BlendSnapshots(old, fresh *models.PreferenceSnapshot, alpha float64) *models.PreferenceSnapshot {
	blended := &models.PreferenceSnapshot{
		UserID:           fresh.UserID,
		TagWeights:       make(map[string]float64, len(fresh.TagWeights)),
		KindWeights:      make(map[models.ObjectKind]float64, len(fresh.KindWeights)),
		QualityThreshold: (1-alpha)*old.QualityThreshold + alpha*fresh.QualityThreshold,
		DiversityWeight:  (1-alpha)*old.DiversityWeight + alpha*fresh.DiversityWeight,
		UpdatedAt:        time.Now(),
	}

	for tag, oldWeight := range old.TagWeights {
		blended.TagWeights[tag] = (1 - alpha) * oldWeight
	}
	for tag, newWeight := range fresh.TagWeights {
		blended.TagWeights[tag] += alpha * newWeight
	}

	for kind, oldWeight := range old.KindWeights {
		blended.KindWeights[kind] = (1 - alpha) * oldWeight
	}
	for kind, newWeight := range fresh.KindWeights {
		blended.KindWeights[kind] += alpha * newWeight
	}

	return blended
}

// DecaySnapshot multiplies every tag weight by the decay factor. Invoked
// periodically, not per feedback event, to cool off preferences that have
// received no fresh signal.
func DecaySnapshot(snapshot *models.PreferenceSnapshot, factor float64) *models.PreferenceSnapshot {
	decayed := snapshot.Clone()
	for tag, weight := range decayed.TagWeights {
		decayed.TagWeights[tag] = weight * factor
	}
	decayed.UpdatedAt = time.Now()
	return decayed
}

// FreshnessScore maps snapshot age to (0, 1] with exponential decay.
// halfLifeDays controls the midpoint: score 0.5 at exactly one half-life.
// Diagnostics and ranking only; never mutates stored state.
func FreshnessScore(age time.Duration, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1.0
	}
	ageDays := age.Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}
	return math.Exp(-ageDays * math.Ln2 / halfLifeDays)
}
