package safeguarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"safeguard/backend/internal/localization"
	"safeguard/backend/internal/metrics"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/storage"
)

// Deliverer pushes a stored notification to a staff member over an outbound
// channel. Delivery is best effort; the stored notification is the record.
type Deliverer interface {
	Deliver(ctx context.Context, recipient models.StaffMember, n *models.Notification) error
}

// RecipientResult is the outcome for one DSL.
type RecipientResult struct {
	RecipientID    string
	NotificationID string
	Delivered      bool
	Err            error
}

// EscalationReport summarises one fan-out.
type EscalationReport struct {
	AlertID    string
	Recipients []RecipientResult
	// Incident is set when the escalation raised an operational incident.
	Incident models.IncidentKind
}

// Stored counts recipients whose notification was written.
func (r EscalationReport) Stored() int {
	n := 0
	for _, res := range r.Recipients {
		if res.Err == nil {
			n++
		}
	}
	return n
}

var ErrEscalationUndelivered = errors.New("no DSL notification could be stored")

// EscalationNotifier fans a Critical alert out to every active DSL.
type EscalationNotifier struct {
	directory     storage.StaffDirectory
	notifications storage.NotificationStore
	deliverer     Deliverer
	localizer     *localization.Localizer
	retry         retryPolicy
	incidents     incidentSink
	workers       int
	baseURL       string
	logger        *zap.Logger
}

// Escalate never returns early on a single recipient failure; each DSL is an
// independent unit of work.
func (n *EscalationNotifier) Escalate(ctx context.Context, alertID, userID string, flags []models.ModerationFlag) EscalationReport {
	report := EscalationReport{AlertID: alertID}
	severity := models.MaxSeverity(flags)
	log := n.logger.With(
		zap.String("alert_id", alertID),
		zap.String("user_id", userID),
		zap.Strings("patterns", patternIDs(flags)),
	)

	var roster []models.StaffMember
	err := n.retry.do(ctx, func(ctx context.Context) error {
		staff, err := n.directory.ListActiveStaffByRole(ctx, models.RoleDSL)
		if err != nil {
			return err
		}
		roster = staff
		return nil
	})
	if err != nil {
		report.Incident = models.IncidentDSLRosterUnavailable
		n.incidents.report(ctx, models.Incident{
			Kind:     models.IncidentDSLRosterUnavailable,
			AlertID:  alertID,
			UserID:   userID,
			Severity: severity,
			Detail:   err.Error(),
		})
		return report
	}
	if len(roster) == 0 {
		report.Incident = models.IncidentDSLRosterEmpty
		n.incidents.report(ctx, models.Incident{
			Kind:     models.IncidentDSLRosterEmpty,
			AlertID:  alertID,
			UserID:   userID,
			Severity: severity,
			Detail:   "no active DSL accounts in the staff directory",
		})
		return report
	}

	report.Recipients = make([]RecipientResult, len(roster))

	var g errgroup.Group
	g.SetLimit(n.workers)
	for i, recipient := range roster {
		g.Go(func() error {
			report.Recipients[i] = n.notify(ctx, recipient, alertID, userID, log)
			return nil
		})
	}
	_ = g.Wait()

	stored := report.Stored()
	switch {
	case stored == 0:
		report.Incident = models.IncidentEscalationUndelivered
		n.incidents.report(ctx, models.Incident{
			Kind:     models.IncidentEscalationUndelivered,
			AlertID:  alertID,
			UserID:   userID,
			Severity: severity,
			Detail:   fmt.Sprintf("%v for %d recipients", ErrEscalationUndelivered, len(roster)),
		})
	case stored < len(roster):
		log.Error("escalation partially failed",
			zap.Int("stored", stored),
			zap.Int("recipients", len(roster)),
			zap.Strings("failed_recipients", failedRecipients(report.Recipients)),
		)
	default:
		log.Info("escalation sent", zap.Int("recipients", stored))
	}

	return report
}

func (n *EscalationNotifier) notify(ctx context.Context, recipient models.StaffMember, alertID, userID string, log *zap.Logger) RecipientResult {
	res := RecipientResult{RecipientID: recipient.ID}

	notification := &models.Notification{
		ID:             uuid.NewString(),
		RecipientID:    recipient.ID,
		AlertID:        alertID,
		Type:           models.NotificationSafeguardingCritical,
		Title:          n.localizer.GetString(localization.DefaultLanguage, "notification_title"),
		Message:        n.localizer.Format(localization.DefaultLanguage, "notification_message", alertID, userID),
		Priority:       models.NotificationPriorityUrgent,
		RequiresAction: true,
		ActionURL:      ActionURL(n.baseURL, alertID),
	}

	err := n.retry.do(ctx, func(ctx context.Context) error {
		err := n.notifications.CreateNotification(ctx, notification)
		if errors.Is(err, storage.ErrNotificationExists) {
			return nil
		}
		return err
	})
	if err != nil {
		metrics.Notifications.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error("failed to store DSL notification", zap.String("recipient_id", recipient.ID), zap.Error(err))
		res.Err = err
		return res
	}
	metrics.Notifications.WithLabelValues(metrics.OutcomeStored).Inc()
	res.NotificationID = notification.ID

	if n.deliverer == nil {
		return res
	}

	dctx, cancel := context.WithTimeout(ctx, n.retry.timeout)
	defer cancel()
	if err := n.deliverer.Deliver(dctx, recipient, notification); err != nil {
		metrics.Notifications.WithLabelValues(metrics.OutcomeUndelivered).Inc()
		log.Warn("failed to deliver DSL notification",
			zap.String("recipient_id", recipient.ID),
			zap.String("notification_id", notification.ID),
			zap.Error(err),
		)
		return res
	}
	metrics.Notifications.WithLabelValues(metrics.OutcomeDelivered).Inc()
	res.Delivered = true
	return res
}

// ActionURL is the staff link for an alert.
func ActionURL(baseURL, alertID string) string {
	return strings.TrimRight(baseURL, "/") + "/safeguarding/alerts/" + alertID
}

func patternIDs(flags []models.ModerationFlag) []string {
	var out []string
	for _, f := range flags {
		if f.Pattern != "" {
			out = append(out, f.Pattern)
		}
	}
	return out
}

func failedRecipients(results []RecipientResult) []string {
	var out []string
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.RecipientID)
		}
	}
	return out
}
