package safeguarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard/backend/internal/config"
	"safeguard/backend/internal/metrics"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/storage"
)

// AlertInput is the flagged submission to record.
type AlertInput struct {
	UserID   string
	Content  string
	Context  string
	Metadata map[string]any
}

// AlertRecorder writes one audit record per flagged submission.
type AlertRecorder struct {
	store     storage.AlertStore
	retry     retryPolicy
	incidents incidentSink
	logger    *zap.Logger
	now       func() time.Time
}

// Record persists the alert. The returned alert always carries its id, even
// when the write failed and an error is returned, so escalation can still
// reference it. Critical content is replaced with the redaction placeholder
// before anything is written.
func (r *AlertRecorder) Record(ctx context.Context, in AlertInput, flags []models.ModerationFlag) (*models.SafeguardingAlert, error) {
	severity := models.MaxSeverity(flags)

	content := in.Content
	if severity == models.SeverityCritical {
		content = config.RedactedContent
	}

	alert := &models.SafeguardingAlert{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Content:   content,
		Context:   in.Context,
		Flags:     append(models.FlagList(nil), flags...),
		Keywords:  safeguardingKeywords(flags),
		Metadata:  copyMetadata(in.Metadata),
		Status:    models.StatusForSeverity(severity),
		Severity:  severity,
		CreatedAt: r.now().UTC(),
	}

	err := r.retry.do(ctx, func(ctx context.Context) error {
		err := r.store.CreateAlert(ctx, alert)
		if errors.Is(err, storage.ErrAlertExists) {
			// an earlier attempt landed after its timeout fired
			return nil
		}
		return err
	})
	if err == nil {
		metrics.AlertWrites.WithLabelValues(string(severity), metrics.OutcomeStored).Inc()
		r.logger.Info("alert recorded",
			zap.String("alert_id", alert.ID),
			zap.String("user_id", alert.UserID),
			zap.String("severity", string(severity)),
			zap.String("status", string(alert.Status)),
		)
		return alert, nil
	}

	metrics.AlertWrites.WithLabelValues(string(severity), metrics.OutcomeFailed).Inc()

	if severity.AtLeast(models.SeverityMedium) {
		r.incidents.report(ctx, models.Incident{
			Kind:     models.IncidentAlertPersistFailed,
			AlertID:  alert.ID,
			UserID:   alert.UserID,
			Severity: severity,
			Detail:   err.Error(),
		})
	} else {
		r.logger.Warn("failed to record low severity alert",
			zap.String("alert_id", alert.ID),
			zap.String("user_id", alert.UserID),
			zap.Error(err),
		)
	}

	return alert, fmt.Errorf("failed to record alert %s: %w", alert.ID, err)
}

func safeguardingKeywords(flags []models.ModerationFlag) []string {
	var out []string
	for _, f := range flags {
		if f.Kind != models.KindSafeguardingConcern {
			continue
		}
		if len(f.Keywords) > 0 {
			out = append(out, f.Keywords...)
		} else if f.Keyword != "" {
			out = append(out, f.Keyword)
		}
	}
	return out
}

func copyMetadata(in map[string]any) models.Metadata {
	if len(in) == 0 {
		return nil
	}
	out := make(models.Metadata, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// permanent stops the retry policy for errors a second attempt cannot fix.
func permanent(err error, targets ...error) error {
	for _, t := range targets {
		if errors.Is(err, t) {
			return backoff.Permanent(err)
		}
	}
	return err
}
