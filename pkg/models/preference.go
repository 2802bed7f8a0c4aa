package models

import "time"

// GlobalPreferenceKey is the singleton key under which the pooled global
// snapshot is stored.
const GlobalPreferenceKey = "global"

// PreferenceSnapshot is the persisted preference state for one user or the
// global pool. Every weight at rest satisfies the bias-control bounds.
type PreferenceSnapshot struct {
	UserID           string                 `json:"user_id" db:"user_id"`
	TagWeights       map[string]float64     `json:"tag_weights" db:"tag_weights"`
	KindWeights      map[ObjectKind]float64 `json:"kind_weights" db:"kind_weights"`
	QualityThreshold float64                `json:"quality_threshold" db:"quality_threshold"`
	DiversityWeight  float64                `json:"diversity_weight" db:"diversity_weight"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}

// DefaultKindWeights is the cold-start kind-weight profile.
var DefaultKindWeights = map[ObjectKind]float64{
	KindStylePack: 1.0,
	KindMotif:     1.0,
	KindGlossary:  0.8,
	KindRule:      0.6,
	KindFewshot:   0.9,
}

// DefaultPreferenceSnapshot is what an unseen user observes: empty tag
// weights, the fixed kind-weight profile, threshold and diversity at floor.
func DefaultPreferenceSnapshot(userID string, qualityFloor, diversityFloor float64) *PreferenceSnapshot {
	kinds := make(map[ObjectKind]float64, len(DefaultKindWeights))
	for k, w := range DefaultKindWeights {
		kinds[k] = w
	}
	return &PreferenceSnapshot{
		UserID:           userID,
		TagWeights:       make(map[string]float64),
		KindWeights:      kinds,
		QualityThreshold: qualityFloor,
		DiversityWeight:  diversityFloor,
		UpdatedAt:        time.Now(),
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the
// cached snapshot.
func (p *PreferenceSnapshot) Clone() *PreferenceSnapshot {
	tags := make(map[string]float64, len(p.TagWeights))
	for t, w := range p.TagWeights {
		tags[t] = w
	}
	kinds := make(map[ObjectKind]float64, len(p.KindWeights))
	for k, w := range p.KindWeights {
		kinds[k] = w
	}
	clone := *p
	clone.TagWeights = tags
	clone.KindWeights = kinds
	return &clone
}
