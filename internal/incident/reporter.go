// Package incident raises operational failures on a channel watched by the
// on-call engineer, separate from routine logs.
package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/metrics"
	"safeguard/backend/internal/models"
)

const (
	// Channel is the Redis Pub/Sub channel incidents are published on.
	Channel = "safeguard:incidents"
	// ListKey keeps the most recent incidents for the admin CLI.
	ListKey = "safeguard:incidents:recent"
	// ListCap bounds ListKey.
	ListCap = 500
)

// Reporter accepts incident reports.
type Reporter interface {
	Report(ctx context.Context, inc models.Incident) error
}

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisReporter publishes incidents and keeps a capped history list. Every
// incident is also written to the log at error level, so a Redis outage never
// hides one.
type RedisReporter struct {
	Redis  redisClient
	Logger *zap.Logger
}

func NewRedisReporter(rdb redisClient, log *zap.Logger) *RedisReporter {
	return &RedisReporter{Redis: rdb, Logger: logger.OrNop(log)}
}

func (r *RedisReporter) Report(ctx context.Context, inc models.Incident) error {
	inc = stamp(inc)
	logIncident(r.Logger, inc)
	metrics.Incidents.WithLabelValues(string(inc.Kind)).Inc()

	payload, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	var errs []error
	if err := r.Redis.Publish(ctx, Channel, payload).Err(); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}
	if err := r.Redis.LPush(ctx, ListKey, payload).Err(); err != nil {
		errs = append(errs, fmt.Errorf("lpush: %w", err))
	} else if err := r.Redis.LTrim(ctx, ListKey, 0, ListCap-1).Err(); err != nil {
		errs = append(errs, fmt.Errorf("ltrim: %w", err))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.Logger.Error("failed to publish incident",
			zap.String("incident_id", inc.ID),
			zap.String("kind", string(inc.Kind)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Recent returns up to n incidents, newest first.
func (r *RedisReporter) Recent(ctx context.Context, n int64) ([]models.Incident, error) {
	if n <= 0 {
		n = ListCap
	}
	raw, err := r.Redis.LRange(ctx, ListKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read incidents: %w", err)
	}
	out := make([]models.Incident, 0, len(raw))
	for _, item := range raw {
		var inc models.Incident
		if err := json.Unmarshal([]byte(item), &inc); err != nil {
			r.Logger.Warn("skipping malformed incident", zap.Error(err))
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}

// LogReporter writes incidents to the log only. Used when Redis is not configured.
type LogReporter struct {
	Logger *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{Logger: logger.OrNop(log)}
}

func (r *LogReporter) Report(_ context.Context, inc models.Incident) error {
	inc = stamp(inc)
	logIncident(r.Logger, inc)
	metrics.Incidents.WithLabelValues(string(inc.Kind)).Inc()
	return nil
}

func stamp(inc models.Incident) models.Incident {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = time.Now().UTC()
	}
	return inc
}

func logIncident(l *zap.Logger, inc models.Incident) {
	l.Error("safeguarding incident",
		zap.String("incident_id", inc.ID),
		zap.String("kind", string(inc.Kind)),
		zap.String("alert_id", inc.AlertID),
		zap.String("user_id", inc.UserID),
		zap.String("severity", string(inc.Severity)),
		zap.String("detail", inc.Detail),
	)
}
