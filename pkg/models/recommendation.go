package models

import "time"

// Recommendation sources.
const (
	SourceUser   = "user"
	SourceGlobal = "global"
)

// TagRecommendation is one ranked tag with the snapshot it came from.
type TagRecommendation struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
	Source string  `json:"source"` // "user" or "global"
}

type RecommendationOptions struct {
	EnsureDiversity bool `json:"ensure_diversity"`
}

// BiasReport flags tags whose absolute weight exceeds the bias threshold.
type BiasReport struct {
	HasExtremeBias     bool     `json:"has_extreme_bias"`
	BiasedTags         []string `json:"biased_tags"`
	RecommendedActions []string `json:"recommended_actions"`
}

// LearningMetrics is the health bundle for monitoring the engine.
type LearningMetrics struct {
	TotalEvents       int64     `json:"total_events"`
	FeedbackCount     int64     `json:"feedback_count"`
	FeedbackRate      float64   `json:"feedback_rate"`
	AverageQuality    float64   `json:"average_quality"`
	WeightDiversity   float64   `json:"weight_diversity"`
	RetrievalCoverage float64   `json:"retrieval_coverage"`
	BiasScore         float64   `json:"bias_score"`
	StabilityScore    float64   `json:"stability_score"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// CleanupResult reports rows removed by the retention sweep.
type CleanupResult struct {
	Events   int64 `json:"events"`
	Feedback int64 `json:"feedback"`
}
