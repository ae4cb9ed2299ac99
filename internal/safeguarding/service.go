// Package safeguarding runs the moderation pipeline: it grades a submission,
// records flagged content, escalates Critical alerts to every DSL and queues
// High alerts for review.
package safeguarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"safeguard/backend/internal/analysis"
	"safeguard/backend/internal/config"
	"safeguard/backend/internal/incident"
	"safeguard/backend/internal/localization"
	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/metrics"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/patterns"
	"safeguard/backend/internal/risk"
	"safeguard/backend/internal/storage"
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrMissingUserID = errors.New("user id is required")
)

// ModerationRequest is one submission from the surrounding platform. Context
// and Metadata are supplied by trusted platform code, never by the author.
type ModerationRequest struct {
	Text     string
	UserID   string
	Context  string
	Metadata map[string]any
	// Language selects the suggestion texts; empty means English.
	Language string
}

// Dependencies are the collaborators the service consumes.
type Dependencies struct {
	Catalogue *patterns.Catalogue
	Store     storage.Storage
	Incidents incident.Reporter
	// Deliverer is optional.
	Deliverer Deliverer
	Localizer *localization.Localizer
	Logger    *zap.Logger
}

type Options struct {
	StoreTimeout          time.Duration
	RetryInterval         time.Duration
	StoreRetries          uint64
	EscalationWorkers     int
	QueueCriticalFollowUp bool
	BaseURL               string
	Now                   func() time.Time
}

func DefaultOptions() Options {
	return Options{
		StoreTimeout:          config.DefaultStoreTimeout,
		RetryInterval:         config.DefaultRetryInterval,
		StoreRetries:          config.StoreRetries,
		EscalationWorkers:     config.DefaultEscalationWorkers,
		QueueCriticalFollowUp: true,
	}
}

// OptionsFromConfig maps runtime configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.StoreTimeout = cfg.StoreTimeout
	opts.EscalationWorkers = cfg.EscalationWorkers
	opts.QueueCriticalFollowUp = cfg.QueueCriticalFollowUp
	opts.BaseURL = cfg.BaseURL
	return opts
}

type Service struct {
	matcher       *patterns.Matcher
	classifier    *analysis.Classifier
	disambiguator *analysis.Disambiguator
	localizer     *localization.Localizer

	store    storage.Storage
	recorder *AlertRecorder
	notifier *EscalationNotifier
	queue    *ReviewQueue
	risk     *risk.Analyzer

	queueCriticalFollowUp bool
	logger                *zap.Logger

	// pending tracks side effects still running for returned verdicts.
	pending sync.WaitGroup
}

func NewService(deps Dependencies, opts Options) (*Service, error) {
	if deps.Catalogue == nil {
		return nil, errors.New("safeguarding: catalogue is required")
	}
	if deps.Store == nil {
		return nil, errors.New("safeguarding: store is required")
	}
	log := logger.OrNop(deps.Logger)

	localizer := deps.Localizer
	if localizer == nil {
		var err error
		if localizer, err = localization.NewDefault(); err != nil {
			return nil, fmt.Errorf("safeguarding: %w", err)
		}
	}
	reporter := deps.Incidents
	if reporter == nil {
		reporter = incident.NewLogReporter(log)
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = config.DefaultStoreTimeout
	}
	if opts.EscalationWorkers < 1 {
		opts.EscalationWorkers = config.DefaultEscalationWorkers
	}
	if opts.StoreRetries < config.StoreRetries {
		opts.StoreRetries = config.StoreRetries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = config.DefaultRetryInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	retry := retryPolicy{timeout: opts.StoreTimeout, interval: opts.RetryInterval, retries: opts.StoreRetries}
	sink := incidentSink{reporter: reporter, timeout: opts.StoreTimeout, logger: log}

	return &Service{
		matcher:       patterns.NewMatcher(deps.Catalogue),
		classifier:    analysis.NewClassifier(deps.Catalogue),
		disambiguator: analysis.NewDisambiguator(deps.Catalogue),
		localizer:     localizer,
		store:         deps.Store,
		recorder: &AlertRecorder{
			store:     deps.Store,
			retry:     retry,
			incidents: sink,
			logger:    log.Named("recorder"),
			now:       opts.Now,
		},
		notifier: &EscalationNotifier{
			directory:     deps.Store,
			notifications: deps.Store,
			deliverer:     deps.Deliverer,
			localizer:     localizer,
			retry:         retry,
			incidents:     sink,
			workers:       opts.EscalationWorkers,
			baseURL:       opts.BaseURL,
			logger:        log.Named("escalation"),
		},
		queue: &ReviewQueue{
			store:     deps.Store,
			retry:     retry,
			incidents: sink,
			logger:    log.Named("queue"),
		},
		risk:                  risk.NewAnalyzer(deps.Store).WithClock(opts.Now),
		queueCriticalFollowUp: opts.QueueCriticalFollowUp,
		logger:                log,
	}, nil
}

// Evaluate grades a submission without any side effects.
func (s *Service) Evaluate(req ModerationRequest) *models.ModerationResult {
	flags := s.classifier.Classify(s.matcher.Match(req.Text))
	flags = s.disambiguator.Disambiguate(flags, req.Context, req.Metadata)

	result := analysis.BuildResult(flags)
	lang := req.Language
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	result.Suggestions = s.localizer.Messages(lang, analysis.SuggestionKeys(result))
	return result
}

// Moderate grades a submission and returns the verdict at once. When it is
// flagged, recording and routing the alert continue in the background; the
// verdict depends only on the text and the caller context, and downstream
// failures are reported as incidents without changing it. Call Wait to drain
// the background work before exiting.
func (s *Service) Moderate(ctx context.Context, req ModerationRequest) (*models.ModerationResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrMissingUserID
	}

	start := time.Now()
	result := s.Evaluate(req)
	metrics.ModerationLatency.Observe(time.Since(start).Seconds())

	severityLabel := "NONE"
	if result.Flagged() {
		severityLabel = string(result.MaxSeverity())
	}
	metrics.Verdicts.WithLabelValues(severityLabel, metrics.BoolLabel(result.Blocked)).Inc()

	if !result.Flagged() {
		return result, nil
	}

	// The caller owns result and req.Metadata once we return.
	flags := append([]models.ModerationFlag(nil), result.Flags...)
	req.Metadata = copyMetadata(req.Metadata)
	routeCtx := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.route(routeCtx, req, flags)
	}()
	return result, nil
}

// Wait blocks until every background side effect started by Moderate has
// finished, or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// route runs the side effects for a flagged submission: record first, then
// escalate or enqueue against the recorded id.
func (s *Service) route(ctx context.Context, req ModerationRequest, flags []models.ModerationFlag) {
	log := logger.FromContext(ctx, s.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("alert routing panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	alert, err := s.recorder.Record(ctx, AlertInput{
		UserID:   req.UserID,
		Content:  req.Text,
		Context:  req.Context,
		Metadata: req.Metadata,
	}, flags)
	persisted := err == nil

	switch alert.Severity {
	case models.SeverityCritical:
		s.notifier.Escalate(ctx, alert.ID, alert.UserID, flags)
		if s.queueCriticalFollowUp && persisted {
			if _, err := s.queue.Enqueue(ctx, alert); err != nil {
				log.Error("failed to queue critical alert for follow-up", zap.String("alert_id", alert.ID), zap.Error(err))
			}
		}
	case models.SeverityHigh:
		if !persisted {
			log.Error("skipping review queue for unrecorded alert", zap.String("alert_id", alert.ID))
			return
		}
		if _, err := s.queue.Enqueue(ctx, alert); err != nil {
			log.Error("high severity alert not queued", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
}
