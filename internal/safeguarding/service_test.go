package safeguarding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"safeguard/backend/internal/config"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/patterns"
	"safeguard/backend/internal/safeguarding"
	"safeguard/backend/internal/storage"
)

const (
	criticalText = "I just want to kill myself"
	highText     = "he's bringing a knife tomorrow"
	cleanText    = "Can we go over the homework for Tuesday? I finished the maths worksheet."
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store     *MockStorage
	reporter  *MockReporter
	deliverer *MockDeliverer
	svc       *safeguarding.Service
}

func newFixture(t *testing.T, withDeliverer bool, tweak ...func(*safeguarding.Options)) *fixture {
	t.Helper()
	cat, err := patterns.LoadDefault()
	require.NoError(t, err)

	f := &fixture{store: new(MockStorage), reporter: new(MockReporter)}
	deps := safeguarding.Dependencies{Catalogue: cat, Store: f.store, Incidents: f.reporter}
	if withDeliverer {
		f.deliverer = new(MockDeliverer)
		deps.Deliverer = f.deliverer
	}

	opts := safeguarding.DefaultOptions()
	opts.StoreTimeout = 200 * time.Millisecond
	opts.RetryInterval = time.Millisecond
	opts.EscalationWorkers = 4
	opts.QueueCriticalFollowUp = false
	opts.BaseURL = "https://school.test/"
	opts.Now = func() time.Time { return fixedNow }
	for _, fn := range tweak {
		fn(&opts)
	}

	f.svc, err = safeguarding.NewService(deps, opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) moderate(t *testing.T, text string, ctxLabel string, metadata map[string]any) *models.ModerationResult {
	t.Helper()
	result, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{
		Text:     text,
		UserID:   "student-42",
		Context:  ctxLabel,
		Metadata: metadata,
	})
	require.NoError(t, err)
	f.drain(t)
	return result
}

// drain waits for the side effects of every Moderate call made so far.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx))
}

func (f *fixture) createdAlert(t *testing.T) *models.SafeguardingAlert {
	t.Helper()
	calls := callsTo(&f.store.Mock, "CreateAlert")
	require.NotEmpty(t, calls, "no alert was written")
	return calls[0].Arguments.Get(1).(*models.SafeguardingAlert)
}

func TestModerate_InputErrors(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: "   ", UserID: "u"})
	assert.ErrorIs(t, err, safeguarding.ErrEmptyText)

	_, err = f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: criticalText})
	assert.ErrorIs(t, err, safeguarding.ErrMissingUserID)

	assert.Empty(t, f.store.Calls)
}

func TestModerate_CleanTextCreatesNoAlert(t *testing.T) {
	f := newFixture(t, false)

	result := f.moderate(t, cleanText, "chat", nil)

	assert.True(t, result.Approved)
	assert.False(t, result.Blocked)
	assert.False(t, result.RequiresReview)
	assert.Empty(t, result.Flags)
	assert.Empty(t, result.Suggestions)
	f.store.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
}

func TestModerate_CriticalIsBlockedAndRedacted(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	result := f.moderate(t, criticalText, "chat", nil)

	assert.True(t, result.Blocked)
	assert.False(t, result.Approved)
	assert.True(t, result.RequiresReview)
	require.NotEmpty(t, result.Suggestions)
	assert.Contains(t, result.Suggestions[len(result.Suggestions)-1], "0800 1111")

	alert := f.createdAlert(t)
	assert.Equal(t, config.RedactedContent, alert.Content)
	assert.NotContains(t, alert.Content, "kill myself")
	assert.Equal(t, models.AlertStatusEscalated, alert.Status)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, "student-42", alert.UserID)
	assert.Equal(t, fixedNow, alert.CreatedAt)
	assert.NotEmpty(t, alert.ID)
}

func TestModerate_KeywordThreshold(t *testing.T) {
	t.Run("two keywords", func(t *testing.T) {
		f := newFixture(t, false)

		result := f.moderate(t, "I'm scared and worried about the test", "chat", nil)

		assert.True(t, result.Approved)
		assert.Empty(t, result.Flags)
		f.store.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
	})

	t.Run("three keywords", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)

		result := f.moderate(t, "I'm scared and worried and lonely", "chat", nil)

		require.Len(t, result.Flags, 1)
		assert.Equal(t, models.KindSafeguardingConcern, result.Flags[0].Kind)
		assert.True(t, result.Approved)
		assert.True(t, result.RequiresReview)
		assert.NotEmpty(t, result.Suggestions)

		alert := f.createdAlert(t)
		assert.Equal(t, models.AlertStatusReview, alert.Status)
		assert.Equal(t, "I'm scared and worried and lonely", alert.Content)
		assert.Equal(t, []string{"scared", "worried", "lonely"}, []string(alert.Keywords))
		f.store.AssertNotCalled(t, "CreateQueueEntry", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "ListActiveStaffByRole", mock.Anything, mock.Anything)
	})
}

func TestModerate_HistoryContext(t *testing.T) {
	text := "Explain how the world war started"

	t.Run("history subject", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)

		result := f.moderate(t, text, "HISTORY", map[string]any{"subject": "HISTORY"})

		require.Len(t, result.Flags, 1)
		assert.Equal(t, models.KindContextualConcern, result.Flags[0].Kind)
		assert.Equal(t, models.SeverityLow, result.Flags[0].Severity)
		assert.True(t, result.Approved)
		assert.False(t, result.RequiresReview)
	})

	t.Run("no context", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)

		result := f.moderate(t, text, "chat", nil)

		require.Len(t, result.Flags, 1)
		assert.Equal(t, models.KindInappropriateContent, result.Flags[0].Kind)
		assert.Equal(t, models.SeverityMedium, result.Flags[0].Severity)
	})
}

func TestModerate_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	for _, text := range []string{cleanText, highText, "you're so stupid, damn"} {
		first := f.moderate(t, text, "forum", map[string]any{"subject": "ENGLISH"})
		second := f.moderate(t, text, "forum", map[string]any{"subject": "ENGLISH"})
		assert.Equal(t, first, second, text)
	}
}

func TestModerate_EscalatesToEveryDSL(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1", "dsl-2", "dsl-3"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	f.moderate(t, criticalText, "chat", nil)

	alert := f.createdAlert(t)
	calls := callsTo(&f.store.Mock, "CreateNotification")
	require.Len(t, calls, 3)

	recipients := make([]string, 0, 3)
	for _, c := range calls {
		n := c.Arguments.Get(1).(*models.Notification)
		recipients = append(recipients, n.RecipientID)
		assert.Equal(t, alert.ID, n.AlertID)
		assert.Equal(t, models.NotificationSafeguardingCritical, n.Type)
		assert.Equal(t, models.NotificationPriorityUrgent, n.Priority)
		assert.True(t, n.RequiresAction)
		assert.Equal(t, "https://school.test/safeguarding/alerts/"+alert.ID, n.ActionURL)
		assert.Contains(t, n.Message, alert.ID)
		assert.Contains(t, n.Message, "student-42")
		assert.NotContains(t, n.Message, "kill myself")
		assert.NotContains(t, n.Title, "kill myself")
	}
	assert.ElementsMatch(t, []string{"dsl-1", "dsl-2", "dsl-3"}, recipients)
	f.store.AssertNotCalled(t, "CreateQueueEntry", mock.Anything, mock.Anything)
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_HighIsQueuedNotEscalated(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	result := f.moderate(t, highText, "chat", nil)

	assert.False(t, result.Blocked)
	assert.False(t, result.Approved)
	assert.True(t, result.RequiresReview)

	alert := f.createdAlert(t)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.Equal(t, highText, alert.Content)

	calls := callsTo(&f.store.Mock, "CreateQueueEntry")
	require.Len(t, calls, 1)
	entry := calls[0].Arguments.Get(1).(*models.ReviewQueueEntry)
	assert.Equal(t, alert.ID, entry.AlertID)
	assert.Equal(t, models.QueuePriorityHigh, entry.Priority)
	assert.Equal(t, models.QueueStatusPending, entry.Status)
	assert.Nil(t, entry.AssignedTo)

	f.store.AssertNotCalled(t, "ListActiveStaffByRole", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "CreateNotification", mock.Anything, mock.Anything)
}

func TestModerate_CriticalFollowUpQueue(t *testing.T) {
	f := newFixture(t, false, func(o *safeguarding.Options) { o.QueueCriticalFollowUp = true })
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	f.moderate(t, criticalText, "chat", nil)

	calls := callsTo(&f.store.Mock, "CreateQueueEntry")
	require.Len(t, calls, 1)
	assert.Equal(t, models.QueuePriorityUrgent, calls[0].Arguments.Get(1).(*models.ReviewQueueEntry).Priority)
}

func TestModerate_CriticalRecordFailureStillBlocksAndEscalates(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentAlertPersistFailed)).Return(nil)

	result := f.moderate(t, criticalText, "chat", nil)

	assert.True(t, result.Blocked)
	assert.False(t, result.Approved)
	f.store.AssertNumberOfCalls(t, "CreateAlert", 2)

	reports := callsTo(&f.reporter.Mock, "Report")
	require.Len(t, reports, 1)
	inc := reports[0].Arguments.Get(1).(models.Incident)
	assert.Equal(t, models.SeverityCritical, inc.Severity)
	assert.Equal(t, "student-42", inc.UserID)
	assert.NotContains(t, inc.Detail, "kill myself")

	n := callsTo(&f.store.Mock, "CreateNotification")[0].Arguments.Get(1).(*models.Notification)
	assert.Equal(t, inc.AlertID, n.AlertID)
	assert.Equal(t, f.createdAlert(t).ID, inc.AlertID)
}

func TestModerate_RecordRetriesOnce(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil).Once()

	f.moderate(t, "I'm scared and worried and lonely", "chat", nil)

	f.store.AssertNumberOfCalls(t, "CreateAlert", 2)
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_LowRecordFailureIsQuiet(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	result := f.moderate(t, "oh damn I forgot my pencil", "chat", nil)

	assert.True(t, result.Approved)
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_HighRecordFailureSkipsQueue(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentAlertPersistFailed)).Return(nil)

	f.moderate(t, highText, "chat", nil)

	f.store.AssertNotCalled(t, "CreateQueueEntry", mock.Anything, mock.Anything)
	f.reporter.AssertNumberOfCalls(t, "Report", 1)
}

func TestModerate_EmptyRosterIsReported(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return([]models.StaffMember{}, nil)
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentDSLRosterEmpty)).Return(nil)

	result := f.moderate(t, criticalText, "chat", nil)

	assert.True(t, result.Blocked)
	f.reporter.AssertNumberOfCalls(t, "Report", 1)
	inc := callsTo(&f.reporter.Mock, "Report")[0].Arguments.Get(1).(models.Incident)
	assert.Equal(t, f.createdAlert(t).ID, inc.AlertID)
}

func TestModerate_RosterUnavailableIsReported(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(nil, errors.New("directory down"))
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentDSLRosterUnavailable)).Return(nil)

	result := f.moderate(t, criticalText, "chat", nil)

	assert.True(t, result.Blocked)
	f.store.AssertNumberOfCalls(t, "ListActiveStaffByRole", 2)
	f.reporter.AssertNumberOfCalls(t, "Report", 1)
}

func TestModerate_PartialNotificationFailure(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1", "dsl-2", "dsl-3"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.RecipientID == "dsl-2"
	})).Return(errors.New("write failed"))
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	f.moderate(t, criticalText, "chat", nil)

	calls := callsTo(&f.store.Mock, "CreateNotification")
	assert.Len(t, calls, 4, "dsl-2 retried once, the others written once")
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_AllNotificationsFail(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Return(dsls("dsl-1", "dsl-2"), nil)
	f.store.On("CreateNotification", mock.Anything, mock.Anything).Return(errors.New("write failed"))
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentEscalationUndelivered)).Return(nil)

	result := f.moderate(t, criticalText, "chat", nil)

	assert.True(t, result.Blocked)
	f.reporter.AssertNumberOfCalls(t, "Report", 1)
}

func TestModerate_EnqueueRetriesOnce(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(errors.New("deadlock")).Once()
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil).Once()

	f.moderate(t, highText, "chat", nil)

	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 2)
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_EnqueueExhausted(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(errors.New("deadlock"))
	f.reporter.On("Report", mock.Anything, incidentOfKind(models.IncidentQueueEnqueueExhausted)).Return(nil)

	result := f.moderate(t, highText, "chat", nil)

	assert.False(t, result.Approved)
	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 2)
	inc := callsTo(&f.reporter.Mock, "Report")[0].Arguments.Get(1).(models.Incident)
	assert.Equal(t, models.SeverityHigh, inc.Severity)
	assert.Equal(t, f.createdAlert(t).ID, inc.AlertID)
}

func TestModerate_EnqueueExistingEntry(t *testing.T) {
	f := newFixture(t, false)
	existing := &models.ReviewQueueEntry{ID: "entry-1", Status: models.QueueStatusPending, Priority: models.QueuePriorityHigh}
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(storage.ErrQueueEntryExists)
	f.store.On("GetQueueEntryByAlertID", mock.Anything, mock.Anything).Return(existing, nil)

	f.moderate(t, highText, "chat", nil)

	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 1)
	f.reporter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
}

func TestModerate_CancelledCallerStillRecords(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := f.svc.Moderate(ctx, safeguarding.ModerationRequest{Text: highText, UserID: "student-42"})

	require.NoError(t, err)
	assert.False(t, result.Approved)
	f.drain(t)
	f.store.AssertNumberOfCalls(t, "CreateAlert", 1)
	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 1)
}

func TestModerate_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	t.Run("Parallel", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			t.Run("Submission", func(t *testing.T) {
				t.Parallel()
				result, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: highText, UserID: "student-42"})
				require.NoError(t, err)
				assert.False(t, result.Approved)
			})
		}
	})

	f.drain(t)
	f.store.AssertNumberOfCalls(t, "CreateAlert", 20)
}

func hangUntilDone(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

func TestModerate_VerdictDoesNotWaitForDegradedStore(t *testing.T) {
	f := newFixture(t, false, func(o *safeguarding.Options) { o.StoreTimeout = 500 * time.Millisecond })
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Run(hangUntilDone).Return(context.DeadlineExceeded)
	f.store.On("ListActiveStaffByRole", mock.Anything, models.RoleDSL).Run(hangUntilDone).Return(nil, context.DeadlineExceeded)
	f.reporter.On("Report", mock.Anything, mock.Anything).Return(nil)

	start := time.Now()
	result, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: criticalText, UserID: "student-42"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Less(t, elapsed, 250*time.Millisecond, "verdict must not wait on the store")

	f.drain(t)
	f.store.AssertNumberOfCalls(t, "CreateAlert", 2)
	f.store.AssertNumberOfCalls(t, "ListActiveStaffByRole", 2)
	kinds := make([]models.IncidentKind, 0, 2)
	for _, c := range callsTo(&f.reporter.Mock, "Report") {
		kinds = append(kinds, c.Arguments.Get(1).(models.Incident).Kind)
	}
	assert.ElementsMatch(t, []models.IncidentKind{models.IncidentAlertPersistFailed, models.IncidentDSLRosterUnavailable}, kinds)
}

func TestModerate_ResultIsNotSharedWithBackgroundWork(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan struct{})
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	metadata := map[string]any{"subject": "PE"}
	result, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: highText, UserID: "student-42", Metadata: metadata})
	require.NoError(t, err)

	result.Flags[0].Severity = models.SeverityLow
	metadata["subject"] = "changed"
	close(release)
	f.drain(t)

	alert := f.createdAlert(t)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, models.SeverityHigh, alert.Flags[0].Severity)
	assert.Equal(t, "PE", alert.Metadata["subject"])
	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 1)
}

func TestWait_HonoursDeadline(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan struct{})
	f.store.On("CreateAlert", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	f.store.On("CreateQueueEntry", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: highText, UserID: "student-42"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.svc.Wait(ctx), context.DeadlineExceeded)

	close(release)
	f.drain(t)
	f.store.AssertNumberOfCalls(t, "CreateQueueEntry", 1)
}

func TestNewService_ZeroOptionsStillRetry(t *testing.T) {
	cat, err := patterns.LoadDefault()
	require.NoError(t, err)
	store := new(MockStorage)
	store.On("CreateAlert", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	store.On("CreateAlert", mock.Anything, mock.Anything).Return(nil).Once()

	svc, err := safeguarding.NewService(safeguarding.Dependencies{Catalogue: cat, Store: store, Incidents: new(MockReporter)}, safeguarding.Options{})
	require.NoError(t, err)

	_, err = svc.Moderate(context.Background(), safeguarding.ModerationRequest{Text: "I'm scared and worried and lonely", UserID: "student-42"})
	require.NoError(t, err)
	f := &fixture{store: store, svc: svc}
	f.drain(t)

	store.AssertNumberOfCalls(t, "CreateAlert", 2)
}

func TestEvaluate_HasNoSideEffects(t *testing.T) {
	f := newFixture(t, false)

	result := f.svc.Evaluate(safeguarding.ModerationRequest{Text: criticalText})

	assert.True(t, result.Blocked)
	assert.Empty(t, f.store.Calls)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	cat, err := patterns.LoadDefault()
	require.NoError(t, err)

	_, err = safeguarding.NewService(safeguarding.Dependencies{Store: new(MockStorage)}, safeguarding.DefaultOptions())
	assert.Error(t, err)

	_, err = safeguarding.NewService(safeguarding.Dependencies{Catalogue: cat}, safeguarding.DefaultOptions())
	assert.Error(t, err)
}
