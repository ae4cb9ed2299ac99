package safeguarding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"safeguard/backend/internal/incident"
	"safeguard/backend/internal/models"
)

// incidentSink reports incidents on a context detached from the caller, so a
// cancelled request cannot swallow the report.
type incidentSink struct {
	reporter incident.Reporter
	timeout  time.Duration
	logger   *zap.Logger
}

func (s incidentSink) report(ctx context.Context, inc models.Incident) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.reporter.Report(rctx, inc); err != nil {
		s.logger.Error("failed to report incident",
			zap.String("kind", string(inc.Kind)),
			zap.String("alert_id", inc.AlertID),
			zap.Error(err),
		)
	}
}
