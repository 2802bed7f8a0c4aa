package models

import (
	"time"

	"github.com/google/uuid"
)

// ObjectKind is the closed set of knowledge-base object kinds.
type ObjectKind string

const (
	KindStylePack ObjectKind = "style_pack"
	KindMotif     ObjectKind = "motif"
	KindGlossary  ObjectKind = "glossary"
	KindRule      ObjectKind = "rule"
	KindFewshot   ObjectKind = "fewshot"
)

var AllObjectKinds = []ObjectKind{KindStylePack, KindMotif, KindGlossary, KindRule, KindFewshot}

func (k ObjectKind) Valid() bool {
	switch k {
	case KindStylePack, KindMotif, KindGlossary, KindRule, KindFewshot:
		return true
	}
	return false
}

type ObjectStatus string

const (
	ObjectActive     ObjectStatus = "active"
	ObjectDeprecated ObjectStatus = "deprecated"
)

// KnowledgeObject is a knowledge-base item consulted to ground a generation.
// The knowledge-base manager owns these rows; the learning engine only reads
// them and, during the deprecation sweep, flips their status.
type KnowledgeObject struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Kind         ObjectKind   `json:"kind" db:"kind"`
	Name         string       `json:"name" db:"name"`
	Tags         []string     `json:"tags" db:"tags"`
	QualityScore *float64     `json:"quality_score,omitempty" db:"quality_score"`
	Status       ObjectStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
