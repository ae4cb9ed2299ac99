// Package storage is the record store and staff directory backed by PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"safeguard/backend/internal/models"
)

var (
	ErrAlertNotFound      = errors.New("alert not found")
	ErrAlertExists        = errors.New("alert already recorded")
	ErrQueueEntryNotFound = errors.New("review queue entry not found")
	ErrQueueEntryExists   = errors.New("alert is already queued for review")
	ErrStaffNotFound      = errors.New("staff member not found")
	ErrNotificationExists = errors.New("notification already stored")
)

// AlertStore persists safeguarding alerts. Alerts are never deleted.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.SafeguardingAlert) error
	GetAlertByID(ctx context.Context, id string) (*models.SafeguardingAlert, error)
	// GetAlertsForUserSince returns the user's alerts created at or after since, newest first.
	GetAlertsForUserSince(ctx context.Context, userID string, since time.Time) ([]models.SafeguardingAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, staffID string) error
}

type QueueStore interface {
	CreateQueueEntry(ctx context.Context, entry *models.ReviewQueueEntry) error
	GetQueueEntryByAlertID(ctx context.Context, alertID string) (*models.ReviewQueueEntry, error)
	// ListQueueEntries returns entries with the given status, most urgent first, oldest first within a priority.
	ListQueueEntries(ctx context.Context, status models.QueueStatus, limit int) ([]models.ReviewQueueEntry, error)
	CompleteQueueEntry(ctx context.Context, entryID, staffID string) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotificationsForAlert(ctx context.Context, alertID string) ([]models.Notification, error)
}

// StaffDirectory resolves staff members by role.
type StaffDirectory interface {
	ListActiveStaffByRole(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error)
	GetStaffByID(ctx context.Context, id string) (*models.StaffMember, error)
}

type Storage interface {
	AlertStore
	QueueStore
	NotificationStore
	StaffDirectory
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Open connects to PostgreSQL. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SafeguardingAlert{},
		&models.ReviewQueueEntry{},
		&models.Notification{},
		&models.StaffMember{},
	)
}

// Ping checks the database and, when configured, Redis.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s *Service) CreateAlert(ctx context.Context, alert *models.SafeguardingAlert) error {
	err := s.DB.WithContext(ctx).Create(alert).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlertExists
	}
	return err
}

func (s *Service) GetAlertByID(ctx context.Context, id string) (*models.SafeguardingAlert, error) {
	var alert models.SafeguardingAlert
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Service) GetAlertsForUserSince(ctx context.Context, userID string, since time.Time) ([]models.SafeguardingAlert, error) {
	var alerts []models.SafeguardingAlert
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// UpdateAlertStatus is the only mutation an alert ever receives. Resolving
// records who resolved it and when.
func (s *Service) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, staffID string) error {
	updates := map[string]interface{}{"status": status}
	if status == models.AlertStatusResolved {
		updates["resolved_by"] = staffID
		updates["resolved_at"] = gorm.Expr("NOW()")
	}

	result := s.DB.WithContext(ctx).Model(&models.SafeguardingAlert{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (s *Service) CreateQueueEntry(ctx context.Context, entry *models.ReviewQueueEntry) error {
	err := s.DB.WithContext(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrQueueEntryExists
	}
	return err
}

func (s *Service) GetQueueEntryByAlertID(ctx context.Context, alertID string) (*models.ReviewQueueEntry, error) {
	var entry models.ReviewQueueEntry
	err := s.DB.WithContext(ctx).Where("alert_id = ?", alertID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQueueEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

const priorityOrder = "CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 ELSE 2 END"

func (s *Service) ListQueueEntries(ctx context.Context, status models.QueueStatus, limit int) ([]models.ReviewQueueEntry, error) {
	var entries []models.ReviewQueueEntry
	q := s.DB.WithContext(ctx).
		Where("status = ?", status).
		Order(priorityOrder).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) CompleteQueueEntry(ctx context.Context, entryID, staffID string) error {
	result := s.DB.WithContext(ctx).Model(&models.ReviewQueueEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"status":      models.QueueStatusDone,
			"assigned_to": staffID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQueueEntryNotFound
	}
	return nil
}

func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) error {
	err := s.DB.WithContext(ctx).Create(n).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrNotificationExists
	}
	return err
}

func (s *Service) GetNotificationsForAlert(ctx context.Context, alertID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.DB.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Service) ListActiveStaffByRole(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	var staff []models.StaffMember
	err := s.DB.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("name ASC").
		Find(&staff).Error
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *Service) GetStaffByID(ctx context.Context, id string) (*models.StaffMember, error) {
	var member models.StaffMember
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// SaveStaffMember creates or updates a directory entry.
func (s *Service) SaveStaffMember(ctx context.Context, member *models.StaffMember) error {
	return s.DB.WithContext(ctx).Save(member).Error
}
