package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/internal/messaging"
	"github.com/inkmuse/atelier/pkg/models"
)

// FeedbackPublisher is the slice of the message bus the engine uses.
type FeedbackPublisher interface {
	Publish(ctx context.Context, event messaging.FeedbackEvent) error
}

// PreferenceEngine converts feedback events into updated preference
// snapshots: resolve weight, upsert the ledger row, aggregate the trailing
// window, clamp, blend with the stored snapshot, persist. One engine
// instance is constructed per process and injected into its callers.
type PreferenceEngine struct {
	ledger     FeedbackLedgerInterface
	knowledge  KnowledgeBaseInterface
	store      PreferenceStoreInterface
	aggregator *PreferenceAggregator
	bias       *BiasController
	bus        FeedbackPublisher // may be nil
	config     *config.LearningConfig
	logger     *logrus.Logger
}

func NewPreferenceEngine(
	ledger FeedbackLedgerInterface,
	knowledge KnowledgeBaseInterface,
	store PreferenceStoreInterface,
	bus FeedbackPublisher,
	cfg *config.LearningConfig,
	logger *logrus.Logger,
) *PreferenceEngine {
	return &PreferenceEngine{
		ledger:     ledger,
		knowledge:  knowledge,
		store:      store,
		aggregator: NewPreferenceAggregator(cfg, logger),
		bias:       NewBiasController(cfg, logger),
		bus:        bus,
		config:     cfg,
		logger:     logger,
	}
}

// SubmitFeedback records one feedback signal against an event. Raises
// ErrEventNotFound for unknown events and a validation error for
// unrecognized signals.
func (e *PreferenceEngine) SubmitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string, notes *string) error {
	_, err := e.ProcessFeedback(ctx, &models.FeedbackInput{
		EventID: eventID,
		Signal:  signal,
		UserID:  userID,
		Notes:   notes,
	})
	return err
}

// SubmitImplicitFeedback is the fire-and-forget wrapper for automatic
// signals (e.g. "exported" fired by the export flow). Failures are logged
// and swallowed so they never interrupt the user-facing flow that triggered
// them.
func (e *PreferenceEngine) SubmitImplicitFeedback(ctx context.Context, eventID int64, signal models.FeedbackSignal, userID string) {
	note := "auto-recorded " + string(signal) + " signal"
	_, err := e.ProcessFeedback(ctx, &models.FeedbackInput{
		EventID: eventID,
		Signal:  signal,
		UserID:  userID,
		Notes:   &note,
	})
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": eventID,
			"signal":   signal,
			"user_id":  userID,
		}).Warn("Implicit feedback dropped")
	}
}

// ProcessFeedback is the full submission path: validate, resolve the weight
// and affected tags/objects, upsert the ledger row, then trigger the
// per-user recompute and, when stale, the global refresh.
func (e *PreferenceEngine) ProcessFeedback(ctx context.Context, input *models.FeedbackInput) (*models.FeedbackResult, error) {
	start := time.Now()

	if err := e.validateInput(input); err != nil {
		feedbackFailedTotal.Inc()
		return nil, err
	}

	event, err := e.ledger.GetEvent(ctx, input.EventID)
	if err != nil {
		feedbackFailedTotal.Inc()
		return nil, err
	}

	weight, err := ResolveWeight(input.Signal, input.WeightOverride)
	if err != nil {
		feedbackFailedTotal.Inc()
		return nil, err
	}

	tags, objectIDs, err := e.resolveAffected(ctx, input, event)
	if err != nil {
		feedbackFailedTotal.Inc()
		return nil, err
	}

	record := &models.FeedbackRecord{
		ID:        uuid.New(),
		EventID:   input.EventID,
		UserID:    input.UserID,
		Signal:    input.Signal,
		Weight:    weight,
		Notes:     input.Notes,
		CreatedAt: time.Now(),
	}

	if err := e.ledger.UpsertFeedback(ctx, record); err != nil {
		feedbackFailedTotal.Inc()
		return nil, err
	}

	e.publishFeedback(ctx, record, tags)

	updated := false
	if input.UserID != "" {
		updated, err = e.recomputeUserPreferences(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
	}

	e.maybeRefreshGlobal(ctx)

	feedbackProcessedTotal.WithLabelValues(string(input.Signal)).Inc()
	feedbackProcessingSeconds.Observe(time.Since(start).Seconds())

	e.logger.WithFields(logrus.Fields{
		"event_id":            input.EventID,
		"user_id":             input.UserID,
		"signal":              input.Signal,
		"weight":              weight,
		"preferences_updated": updated,
	}).Info("Processed feedback")

	return &models.FeedbackResult{
		PreferencesUpdated: updated,
		TagsAffected:       tags,
		ObjectsAffected:    objectIDs,
		WeightApplied:      weight,
	}, nil
}

// ProcessFeedbackBatch fans out independent ProcessFeedback calls
// concurrently. No ordering guarantee between items; one item failing never
// aborts its siblings.
func (e *PreferenceEngine) ProcessFeedbackBatch(ctx context.Context, inputs []models.FeedbackInput) []models.FeedbackBatchItem {
	results := make([]models.FeedbackBatchItem, len(inputs))

	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := e.ProcessFeedback(ctx, &inputs[idx])
			item := models.FeedbackBatchItem{Index: idx, Result: result}
			if err != nil {
				item.Error = err.Error()
				e.logger.WithError(err).WithField("batch_index", idx).Warn("Batch feedback item failed")
			}
			results[idx] = item
		}(i)
	}
	wg.Wait()

	return results
}

func (e *PreferenceEngine) validateInput(input *models.FeedbackInput) error {
	if input.EventID <= 0 {
		return &ValidationError{Field: "event_id", Reason: "required"}
	}
	if input.Signal == "" {
		return &ValidationError{Field: "signal", Reason: "required"}
	}
	if !input.Signal.Valid() {
		return ErrUnknownSignal
	}
	return nil
}

// resolveAffected derives the tags and object ids a signal applies to when
// the caller did not supply them: the union over the event's referenced
// objects.
func (e *PreferenceEngine) resolveAffected(ctx context.Context, input *models.FeedbackInput, event *models.GenerationEvent) ([]string, []uuid.UUID, error) {
	if len(input.Tags) > 0 || len(input.ObjectIDs) > 0 {
		return NormalizeTags(input.Tags), input.ObjectIDs, nil
	}

	if len(event.ObjectIDs) == 0 {
		return nil, nil, nil
	}

	objects, err := e.knowledge.GetObjectsByIDs(ctx, event.ObjectIDs)
	if err != nil {
		return nil, nil, err
	}

	var tags []string
	for _, obj := range objects {
		tags = append(tags, obj.Tags...)
	}

	return NormalizeTags(tags), event.ObjectIDs, nil
}

// recomputeUserPreferences runs the aggregate→clamp→blend→save pipeline over
// the user's trailing window. Skipped entirely below the minimum feedback
// count; the stored snapshot is left untouched in that case.
func (e *PreferenceEngine) recomputeUserPreferences(ctx context.Context, userID string) (bool, error) {
	since := time.Now().AddDate(0, 0, -e.config.UserWindowDays)
	window, err := e.ledger.QueryUserFeedback(ctx, userID, since)
	if err != nil {
		return false, err
	}

	if !e.aggregator.MinimumMet(window) {
		e.logger.WithFields(logrus.Fields{
			"user_id":     userID,
			"window_size": len(window),
			"minimum":     e.config.MinFeedbackCount,
		}).Debug("Skipping preference update, window below minimum")
		return false, nil
	}

	raw := e.aggregator.Aggregate(userID, window)
	clamped := e.bias.Apply(raw)

	old, err := e.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}

	blended := BlendSnapshots(old, clamped, e.config.SmoothingAlpha)
	if err := e.store.Save(ctx, blended); err != nil {
		return false, err
	}

	preferenceUpdatesTotal.WithLabelValues("user").Inc()
	return true, nil
}

// RefreshGlobalPreferences recomputes the pooled snapshot over the global
// window. An empty pool skips the update. Recomputing from source data makes
// redundant refreshes harmless.
func (e *PreferenceEngine) RefreshGlobalPreferences(ctx context.Context) error {
	since := time.Now().AddDate(0, 0, -e.config.GlobalWindowDays)
	window, err := e.ledger.QueryGlobalFeedback(ctx, since)
	if err != nil {
		return err
	}

	if len(window) == 0 {
		return nil
	}

	raw := e.aggregator.Aggregate(models.GlobalPreferenceKey, window)
	clamped := e.bias.Apply(raw)

	old, err := e.store.GetGlobal(ctx)
	if err != nil {
		return err
	}

	blended := BlendSnapshots(old, clamped, e.config.SmoothingAlpha)
	if err := e.store.Save(ctx, blended); err != nil {
		return err
	}

	preferenceUpdatesTotal.WithLabelValues("global").Inc()
	return nil
}

// maybeRefreshGlobal rate-limits the global recompute to once per refresh
// interval. The check-then-act is not atomic; a racing duplicate refresh is
// tolerated because the recompute is idempotent.
func (e *PreferenceEngine) maybeRefreshGlobal(ctx context.Context) {
	last, err := e.store.LastUpdated(ctx, models.GlobalPreferenceKey)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to check global snapshot age")
		return
	}

	if time.Since(last) < e.config.GlobalRefreshInterval {
		return
	}

	if err := e.RefreshGlobalPreferences(ctx); err != nil {
		e.logger.WithError(err).Warn("Global preference refresh failed")
	}
}

// DecayPreferences cools off a stored snapshot that has received no fresh
// signal. Intended to be driven by an external periodic job.
func (e *PreferenceEngine) DecayPreferences(ctx context.Context, userID string) error {
	snapshot, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	decayed := DecaySnapshot(snapshot, e.config.DecayFactor)
	return e.store.Save(ctx, decayed)
}

func (e *PreferenceEngine) GetUserPreferences(ctx context.Context, userID string) (*models.PreferenceSnapshot, error) {
	return e.store.Get(ctx, userID)
}

func (e *PreferenceEngine) GetGlobalPreferences(ctx context.Context) (*models.PreferenceSnapshot, error) {
	return e.store.GetGlobal(ctx)
}

func (e *PreferenceEngine) GetUserPreference(ctx context.Context, userID, tag string) (float64, error) {
	return e.store.GetTagWeight(ctx, userID, tag)
}

func (e *PreferenceEngine) publishFeedback(ctx context.Context, record *models.FeedbackRecord, tags []string) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, messaging.FeedbackEvent{
		EventID:   record.EventID,
		UserID:    record.UserID,
		Signal:    record.Signal,
		Weight:    record.Weight,
		Tags:      tags,
		Timestamp: record.CreatedAt,
	})
	if err != nil {
		e.logger.WithError(err).WithField("event_id", record.EventID).Warn("Failed to publish feedback event")
	}
}
