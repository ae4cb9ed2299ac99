package safeguarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard/backend/internal/metrics"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/storage"
)

var ErrEnqueueFailed = errors.New("failed to enqueue alert for review")

// ReviewQueue places alerts in front of human reviewers.
type ReviewQueue struct {
	store     storage.QueueStore
	retry     retryPolicy
	incidents incidentSink
	logger    *zap.Logger
}

// Enqueue creates the single pending, unassigned entry for an alert. Queuing an
// alert that already has an entry returns the existing entry.
func (q *ReviewQueue) Enqueue(ctx context.Context, alert *models.SafeguardingAlert) (*models.ReviewQueueEntry, error) {
	entry := &models.ReviewQueueEntry{
		ID:       uuid.NewString(),
		AlertID:  alert.ID,
		Priority: models.PriorityForSeverity(alert.Severity),
		Status:   models.QueueStatusPending,
	}

	err := q.retry.do(ctx, func(ctx context.Context) error {
		return permanent(q.store.CreateQueueEntry(ctx, entry), storage.ErrQueueEntryExists)
	})
	if errors.Is(err, storage.ErrQueueEntryExists) {
		existing, lookupErr := q.store.GetQueueEntryByAlertID(ctx, alert.ID)
		if lookupErr == nil {
			return existing, nil
		}
		err = lookupErr
	}
	if err != nil {
		metrics.QueueEnqueues.WithLabelValues(string(entry.Priority), metrics.OutcomeFailed).Inc()
		q.incidents.report(ctx, models.Incident{
			Kind:     models.IncidentQueueEnqueueExhausted,
			AlertID:  alert.ID,
			UserID:   alert.UserID,
			Severity: alert.Severity,
			Detail:   err.Error(),
		})
		return nil, fmt.Errorf("%w %s: %w", ErrEnqueueFailed, alert.ID, err)
	}

	metrics.QueueEnqueues.WithLabelValues(string(entry.Priority), metrics.OutcomeStored).Inc()
	q.logger.Info("alert queued for review",
		zap.String("alert_id", alert.ID),
		zap.String("entry_id", entry.ID),
		zap.String("priority", string(entry.Priority)),
	)
	return entry, nil
}
