package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/funnelworks/movement-engine/internal/logger"
)

// logSink writes notifications to the structured log. Always configured; it
// is the floor of observability when no external sink is set up.
type logSink struct{}

// NewLogSink creates a sink that logs every notification
func NewLogSink() Sink {
	return &logSink{}
}

func (s *logSink) Name() string {
	return "log"
}

func (s *logSink) Deliver(ctx context.Context, n *Notification) error {
	logger.InfoCtx(ctx, "Notification",
		zap.String("notificationID", n.ID),
		zap.String("type", n.Type),
		zap.String("contactID", n.ContactID),
		zap.String("companyID", n.CompanyID),
		zap.Any("data", n.Data),
	)
	return nil
}
