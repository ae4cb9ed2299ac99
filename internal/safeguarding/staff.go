package safeguarding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"safeguard/backend/internal/models"
	"safeguard/backend/internal/storage"
)

var (
	ErrNotAuthorized   = errors.New("staff member may not act on safeguarding alerts")
	ErrAlreadyResolved = errors.New("alert is already resolved")
)

// authorize allows active DSL and admin accounts.
func (s *Service) authorize(ctx context.Context, staffID string) (*models.StaffMember, error) {
	member, err := s.store.GetStaffByID(ctx, staffID)
	if errors.Is(err, storage.ErrStaffNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, err
	}
	if !member.IsActive || (member.Role != models.RoleDSL && member.Role != models.RoleAdmin) {
		return nil, ErrNotAuthorized
	}
	return member, nil
}

// ResolveAlert closes an alert and completes its review queue entry, if any.
func (s *Service) ResolveAlert(ctx context.Context, alertID, staffID string) error {
	if _, err := s.authorize(ctx, staffID); err != nil {
		return err
	}
	alert, err := s.store.GetAlertByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert.Status == models.AlertStatusResolved {
		return ErrAlreadyResolved
	}
	if err := s.store.UpdateAlertStatus(ctx, alertID, models.AlertStatusResolved, staffID); err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", alertID, err)
	}

	entry, err := s.store.GetQueueEntryByAlertID(ctx, alertID)
	switch {
	case errors.Is(err, storage.ErrQueueEntryNotFound):
	case err != nil:
		s.logger.Warn("resolved alert but could not load its queue entry", zap.String("alert_id", alertID), zap.Error(err))
	case entry.Status != models.QueueStatusDone:
		if err := s.store.CompleteQueueEntry(ctx, entry.ID, staffID); err != nil {
			s.logger.Warn("resolved alert but could not complete its queue entry", zap.String("alert_id", alertID), zap.Error(err))
		}
	}

	s.logger.Info("alert resolved", zap.String("alert_id", alertID), zap.String("staff_id", staffID))
	return nil
}

// EscalateAlert lets staff raise a non-critical alert to the DSLs by hand.
func (s *Service) EscalateAlert(ctx context.Context, alertID, staffID string) (*EscalationReport, error) {
	if _, err := s.authorize(ctx, staffID); err != nil {
		return nil, err
	}
	alert, err := s.store.GetAlertByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertStatusResolved {
		return nil, ErrAlreadyResolved
	}
	if alert.Status != models.AlertStatusEscalated {
		if err := s.store.UpdateAlertStatus(ctx, alertID, models.AlertStatusEscalated, staffID); err != nil {
			return nil, fmt.Errorf("failed to escalate alert %s: %w", alertID, err)
		}
	}

	report := s.notifier.Escalate(context.WithoutCancel(ctx), alert.ID, alert.UserID, alert.Flags)
	s.logger.Info("alert escalated by staff",
		zap.String("alert_id", alertID),
		zap.String("staff_id", staffID),
		zap.Int("notified", report.Stored()),
	)
	return &report, nil
}

// ListReviewQueue returns entries in triage order.
func (s *Service) ListReviewQueue(ctx context.Context, status models.QueueStatus, limit int) ([]models.ReviewQueueEntry, error) {
	if status == "" {
		status = models.QueueStatusPending
	}
	return s.store.ListQueueEntries(ctx, status, limit)
}

// CompleteQueueEntry marks an entry done on behalf of staffID.
func (s *Service) CompleteQueueEntry(ctx context.Context, entryID, staffID string) error {
	if _, err := s.authorize(ctx, staffID); err != nil {
		return err
	}
	return s.store.CompleteQueueEntry(ctx, entryID, staffID)
}

// GetUserRiskHistory summarises the user's trailing 30 days of alerts.
func (s *Service) GetUserRiskHistory(ctx context.Context, userID string) (*models.UserRiskProfile, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.risk.Analyze(ctx, userID)
}
