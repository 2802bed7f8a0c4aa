package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/pkg/models"
)

// DatabaseQuerier is the slice of pgxpool.Pool the data services need; it is
// also satisfied by pgxmock in tests.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// FeedbackLedger is the append/read contract over generation events and
// feedback rows. Pure data access; the learning logic lives in the engine.
type FeedbackLedger struct {
	db        DatabaseQuerier
	knowledge KnowledgeBaseInterface
	logger    *logrus.Logger
}

func NewFeedbackLedger(db DatabaseQuerier, knowledge KnowledgeBaseInterface, logger *logrus.Logger) *FeedbackLedger {
	return &FeedbackLedger{
		db:        db,
		knowledge: knowledge,
		logger:    logger,
	}
}

// CreateEvent appends a generation event. Events are immutable once written.
func (l *FeedbackLedger) CreateEvent(ctx context.Context, req *models.GenerationEventRequest) (*models.GenerationEvent, error) {
	metadataJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	event := &models.GenerationEvent{
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		ObjectIDs: req.ObjectIDs,
		Metadata:  req.Metadata,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO generation_events (user_id, prompt, object_ids, metadata, created_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5)
		RETURNING id`

	err = l.db.QueryRow(ctx, query,
		req.UserID,
		req.Prompt,
		req.ObjectIDs,
		metadataJSON,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert generation event: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"user_id":      req.UserID,
		"object_count": len(req.ObjectIDs),
	}).Debug("Recorded generation event")

	return event, nil
}

// GetEvent resolves an event by id, returning ErrEventNotFound for unknown
// identifiers.
func (l *FeedbackLedger) GetEvent(ctx context.Context, eventID int64) (*models.GenerationEvent, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), prompt, object_ids, metadata, created_at
		FROM generation_events
		WHERE id = $1`

	var event models.GenerationEvent
	var metadataJSON []byte

	err := l.db.QueryRow(ctx, query, eventID).Scan(
		&event.ID,
		&event.UserID,
		&event.Prompt,
		&event.ObjectIDs,
		&metadataJSON,
		&event.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query generation event: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			l.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to unmarshal event metadata")
		}
	}

	return &event, nil
}

// UpsertFeedback inserts a feedback row keyed by (event_id, user_id),
// replacing signal/weight/notes/timestamp on resubmission.
func (l *FeedbackLedger) UpsertFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	query := `
		INSERT INTO feedback_records (id, event_id, user_id, signal, weight, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, user_id)
		DO UPDATE SET
			signal = EXCLUDED.signal,
			weight = EXCLUDED.weight,
			notes = EXCLUDED.notes,
			created_at = EXCLUDED.created_at`

	_, err := l.db.Exec(ctx, query,
		record.ID,
		record.EventID,
		record.UserID,
		record.Signal,
		record.Weight,
		record.Notes,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feedback record: %w", err)
	}

	return nil
}

// QueryUserFeedback returns one user's feedback since the cutoff, enriched
// with each event and its referenced knowledge objects.
func (l *FeedbackLedger) QueryUserFeedback(ctx context.Context, userID string, since time.Time) ([]models.EnrichedFeedback, error) {
	return l.queryFeedback(ctx, userID, since)
}

// QueryGlobalFeedback returns the pooled window across all users.
func (l *FeedbackLedger) QueryGlobalFeedback(ctx context.Context, since time.Time) ([]models.EnrichedFeedback, error) {
	return l.queryFeedback(ctx, "", since)
}

func (l *FeedbackLedger) queryFeedback(ctx context.Context, userID string, since time.Time) ([]models.EnrichedFeedback, error) {
	query := `
		SELECT f.id, f.event_id, f.user_id, f.signal, f.weight, f.notes, f.created_at,
		       e.id, COALESCE(e.user_id, ''), e.prompt, e.object_ids, e.created_at
		FROM feedback_records f
		JOIN generation_events e ON e.id = f.event_id
		WHERE f.created_at >= $1`

	args := []interface{}{since}
	if userID != "" {
		query += " AND f.user_id = $2"
		args = append(args, userID)
	}
	query += " ORDER BY f.created_at DESC"

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback window: %w", err)
	}
	defer rows.Close()

	var window []models.EnrichedFeedback
	objectIDs := make(map[uuid.UUID]bool)

	for rows.Next() {
		var fb models.EnrichedFeedback
		err := rows.Scan(
			&fb.ID,
			&fb.EventID,
			&fb.UserID,
			&fb.Signal,
			&fb.Weight,
			&fb.Notes,
			&fb.CreatedAt,
			&fb.Event.ID,
			&fb.Event.UserID,
			&fb.Event.Prompt,
			&fb.Event.ObjectIDs,
			&fb.Event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}

		for _, id := range fb.Event.ObjectIDs {
			objectIDs[id] = true
		}
		window = append(window, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback window: %w", err)
	}

	if len(objectIDs) == 0 {
		return window, nil
	}

	// One object fetch for the whole window, then fan the objects back out
	// to their rows.
	ids := make([]uuid.UUID, 0, len(objectIDs))
	for id := range objectIDs {
		ids = append(ids, id)
	}

	objects, err := l.knowledge.GetObjectsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referenced objects: %w", err)
	}

	byID := make(map[uuid.UUID]models.KnowledgeObject, len(objects))
	for _, obj := range objects {
		byID[obj.ID] = obj
	}

	for i := range window {
		for _, id := range window[i].Event.ObjectIDs {
			if obj, ok := byID[id]; ok {
				window[i].Objects = append(window[i].Objects, obj)
			}
		}
	}

	return window, nil
}

// retentionTables whitelists what the retention sweep may touch.
var retentionTables = map[string]string{
	"generation_events": "created_at",
	"feedback_records":  "created_at",
}

// DeleteOlderThan purges rows older than the cutoff from one of the
// retention-managed tables and reports the count removed.
func (l *FeedbackLedger) DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	column, ok := retentionTables[table]
	if !ok {
		return 0, fmt.Errorf("table %q is not retention-managed", table)
	}

	tag, err := l.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s < $1", table, column), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return tag.RowsAffected(), nil
}

func (l *FeedbackLedger) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := l.db.QueryRow(ctx, "SELECT COUNT(*) FROM generation_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count generation events: %w", err)
	}
	return count, nil
}

func (l *FeedbackLedger) CountFeedback(ctx context.Context) (int64, error) {
	var count int64
	if err := l.db.QueryRow(ctx, "SELECT COUNT(*) FROM feedback_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback records: %w", err)
	}
	return count, nil
}

// AverageObjectQuality averages the quality score of objects referenced by
// events in the trailing window.
func (l *FeedbackLedger) AverageObjectQuality(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(AVG(o.quality_score), 0)
		FROM generation_events e
		CROSS JOIN LATERAL UNNEST(e.object_ids) AS ref(object_id)
		JOIN knowledge_objects o ON o.id = ref.object_id
		WHERE e.created_at >= $1 AND o.quality_score IS NOT NULL`

	var avg float64
	if err := l.db.QueryRow(ctx, query, since).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to average object quality: %w", err)
	}
	return avg, nil
}

// DistinctObjectsUsed counts distinct knowledge objects referenced by events
// in the trailing window (the numerator of retrieval coverage).
func (l *FeedbackLedger) DistinctObjectsUsed(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT ref.object_id)
		FROM generation_events e
		CROSS JOIN LATERAL UNNEST(e.object_ids) AS ref(object_id)
		WHERE e.created_at >= $1`

	var count int64
	if err := l.db.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct objects used: %w", err)
	}
	return count, nil
}

// LowRatedObjects lists objects whose recent average feedback weight fell
// below the threshold with at least minFeedback contributing rows. These are
// the deprecation-sweep candidates.
func (l *FeedbackLedger) LowRatedObjects(ctx context.Context, since time.Time, minFeedback int, threshold float64) ([]uuid.UUID, error) {
	query := `
		SELECT ref.object_id
		FROM feedback_records f
		JOIN generation_events e ON e.id = f.event_id
		CROSS JOIN LATERAL UNNEST(e.object_ids) AS ref(object_id)
		WHERE f.created_at >= $1
		GROUP BY ref.object_id
		HAVING COUNT(*) >= $2 AND AVG(f.weight) < $3`

	rows, err := l.db.Query(ctx, query, since, minFeedback, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-rated objects: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan object id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
