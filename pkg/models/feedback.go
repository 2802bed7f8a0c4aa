package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackSignal is the closed set of user actions reported against a
// generation event.
type FeedbackSignal string

const (
	SignalKept        FeedbackSignal = "kept"
	SignalEdited      FeedbackSignal = "edited"
	SignalRegenerated FeedbackSignal = "regenerated"
	SignalExported    FeedbackSignal = "exported"
	SignalFavorited   FeedbackSignal = "favorited"
	SignalReported    FeedbackSignal = "reported"
)

func (s FeedbackSignal) Valid() bool {
	switch s {
	case SignalKept, SignalEdited, SignalRegenerated, SignalExported, SignalFavorited, SignalReported:
		return true
	}
	return false
}

// FeedbackRecord is one feedback submission per (event, user) pair.
// Resubmission overwrites signal/weight/notes/timestamp in place.
type FeedbackRecord struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	EventID   int64          `json:"event_id" db:"event_id"`
	UserID    string         `json:"user_id,omitempty" db:"user_id"` // empty = anonymous
	Signal    FeedbackSignal `json:"signal" db:"signal"`
	Weight    float64        `json:"weight" db:"weight"`
	Notes     *string        `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// EnrichedFeedback is a feedback row joined with its event and the event's
// referenced knowledge objects, as returned by the ledger's window queries.
type EnrichedFeedback struct {
	FeedbackRecord
	Event   GenerationEvent   `json:"event"`
	Objects []KnowledgeObject `json:"objects"`
}

// FeedbackInput is the engine's submission payload. Tags and ObjectIDs may be
// supplied by the caller; when absent they are resolved from the event's
// referenced objects.
type FeedbackInput struct {
	EventID        int64          `json:"event_id" validate:"required,min=1"`
	Signal         FeedbackSignal `json:"signal" validate:"required,oneof=kept edited regenerated exported favorited reported"`
	UserID         string         `json:"user_id,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
	WeightOverride *float64       `json:"weight_override,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	ObjectIDs      []uuid.UUID    `json:"object_ids,omitempty"`
}

// FeedbackResult reports what a ProcessFeedback call actually did.
type FeedbackResult struct {
	PreferencesUpdated bool        `json:"preferences_updated"`
	TagsAffected       []string    `json:"tags_affected"`
	ObjectsAffected    []uuid.UUID `json:"objects_affected"`
	WeightApplied      float64     `json:"weight_applied"`
}

type FeedbackBatchRequest struct {
	Items []FeedbackInput `json:"items" validate:"required,min=1,max=100"`
}

// FeedbackBatchItem is the per-item outcome of a batch run; failed items
// carry an error string instead of a result.
type FeedbackBatchItem struct {
	Index  int             `json:"index"`
	Result *FeedbackResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
