package safeguarding_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"safeguard/backend/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateAlert(ctx context.Context, alert *models.SafeguardingAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockStorage) GetAlertByID(ctx context.Context, id string) (*models.SafeguardingAlert, error) {
	args := m.Called(ctx, id)
	alert, _ := args.Get(0).(*models.SafeguardingAlert)
	return alert, args.Error(1)
}

func (m *MockStorage) GetAlertsForUserSince(ctx context.Context, userID string, since time.Time) ([]models.SafeguardingAlert, error) {
	args := m.Called(ctx, userID, since)
	alerts, _ := args.Get(0).([]models.SafeguardingAlert)
	return alerts, args.Error(1)
}

func (m *MockStorage) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, staffID string) error {
	args := m.Called(ctx, id, status, staffID)
	return args.Error(0)
}

func (m *MockStorage) CreateQueueEntry(ctx context.Context, entry *models.ReviewQueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) GetQueueEntryByAlertID(ctx context.Context, alertID string) (*models.ReviewQueueEntry, error) {
	args := m.Called(ctx, alertID)
	entry, _ := args.Get(0).(*models.ReviewQueueEntry)
	return entry, args.Error(1)
}

func (m *MockStorage) ListQueueEntries(ctx context.Context, status models.QueueStatus, limit int) ([]models.ReviewQueueEntry, error) {
	args := m.Called(ctx, status, limit)
	entries, _ := args.Get(0).([]models.ReviewQueueEntry)
	return entries, args.Error(1)
}

func (m *MockStorage) CompleteQueueEntry(ctx context.Context, entryID, staffID string) error {
	args := m.Called(ctx, entryID, staffID)
	return args.Error(0)
}

func (m *MockStorage) CreateNotification(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockStorage) GetNotificationsForAlert(ctx context.Context, alertID string) ([]models.Notification, error) {
	args := m.Called(ctx, alertID)
	ns, _ := args.Get(0).([]models.Notification)
	return ns, args.Error(1)
}

func (m *MockStorage) ListActiveStaffByRole(ctx context.Context, role models.StaffRole) ([]models.StaffMember, error) {
	args := m.Called(ctx, role)
	staff, _ := args.Get(0).([]models.StaffMember)
	return staff, args.Error(1)
}

func (m *MockStorage) GetStaffByID(ctx context.Context, id string) (*models.StaffMember, error) {
	args := m.Called(ctx, id)
	member, _ := args.Get(0).(*models.StaffMember)
	return member, args.Error(1)
}

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, inc models.Incident) error {
	args := m.Called(ctx, inc)
	return args.Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, recipient models.StaffMember, n *models.Notification) error {
	args := m.Called(ctx, recipient, n)
	return args.Error(0)
}

// callsTo returns the recorded calls of one method, in call order.
func callsTo(m *mock.Mock, method string) []mock.Call {
	var out []mock.Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func incidentOfKind(kind models.IncidentKind) interface{} {
	return mock.MatchedBy(func(inc models.Incident) bool { return inc.Kind == kind })
}

func dsls(ids ...string) []models.StaffMember {
	out := make([]models.StaffMember, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.StaffMember{ID: id, Name: id, Role: models.RoleDSL, IsActive: true})
	}
	return out
}
