package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationEvent is one artifact generation attempt. Rows are immutable once
// created; the engine reads them to resolve which knowledge objects a
// feedback signal applies to.
type GenerationEvent struct {
	ID        int64                  `json:"id" db:"id"`
	UserID    string                 `json:"user_id,omitempty" db:"user_id"` // empty = anonymous
	Prompt    string                 `json:"prompt" db:"prompt"`
	ObjectIDs []uuid.UUID            `json:"object_ids" db:"object_ids"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

type GenerationEventRequest struct {
	UserID    string                 `json:"user_id,omitempty"`
	Prompt    string                 `json:"prompt" validate:"required,min=1"`
	ObjectIDs []uuid.UUID            `json:"object_ids,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
