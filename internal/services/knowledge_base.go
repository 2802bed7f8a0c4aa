package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/pkg/models"
)

// KnowledgeBaseService reads grounding objects and flips their deprecation
// status. Authoring and curation of objects belong to the knowledge-base
// manager; this service stays read-mostly on purpose.
type KnowledgeBaseService struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewKnowledgeBaseService(db DatabaseQuerier, logger *logrus.Logger) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		db:     db,
		logger: logger,
	}
}

func (s *KnowledgeBaseService) GetObjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.KnowledgeObject, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, kind, name, tags, quality_score, status, created_at, updated_at
		FROM knowledge_objects
		WHERE id = ANY($1)`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge objects: %w", err)
	}
	defer rows.Close()

	var objects []models.KnowledgeObject
	for rows.Next() {
		var obj models.KnowledgeObject
		err := rows.Scan(
			&obj.ID,
			&obj.Kind,
			&obj.Name,
			&obj.Tags,
			&obj.QualityScore,
			&obj.Status,
			&obj.CreatedAt,
			&obj.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge object: %w", err)
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

// DeprecateObject marks an active object deprecated so retrieval stops
// surfacing it.
func (s *KnowledgeBaseService) DeprecateObject(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE knowledge_objects
		SET status = 'deprecated', updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deprecate object %s: %w", id, err)
	}

	if tag.RowsAffected() > 0 {
		s.logger.WithField("object_id", id).Info("Deprecated knowledge object")
	}

	return nil
}

func (s *KnowledgeBaseService) CountActiveObjects(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM knowledge_objects WHERE status = 'active'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active objects: %w", err)
	}
	return count, nil
}

// ListObjects pages through objects, optionally filtered by kind and status.
func (s *KnowledgeBaseService) ListObjects(ctx context.Context, kind models.ObjectKind, status models.ObjectStatus, limit, offset int) ([]models.KnowledgeObject, error) {
	query := `
		SELECT id, kind, name, tags, quality_score, status, created_at, updated_at
		FROM knowledge_objects
		WHERE 1=1`

	args := []interface{}{}
	argCount := 0

	if kind != "" {
		argCount++
		query += fmt.Sprintf(" AND kind = $%d", argCount)
		args = append(args, kind)
	}
	if status != "" {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC"
	if limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, limit)
	}
	if offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge objects: %w", err)
	}
	defer rows.Close()

	var objects []models.KnowledgeObject
	for rows.Next() {
		var obj models.KnowledgeObject
		err := rows.Scan(
			&obj.ID,
			&obj.Kind,
			&obj.Name,
			&obj.Tags,
			&obj.QualityScore,
			&obj.Status,
			&obj.CreatedAt,
			&obj.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge object: %w", err)
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}
