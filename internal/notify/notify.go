package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funnelworks/movement-engine/internal/logger"
)

// Notification type constants
const (
	// TypeTransitionApplied is fired when a lifecycle transition is applied
	TypeTransitionApplied = "transition.applied"

	// TypeContactLocked is fired when a contact is locked out of processing
	TypeContactLocked = "contact.locked"

	// TypeScoreBandChanged is fired when a company's BIT score crosses a band
	// threshold (warm or hot)
	TypeScoreBandChanged = "score.band_changed"

	// TypeReengagementExhausted is fired when a contact runs out of
	// re-engagement cycles and falls back to the top of the funnel
	TypeReengagementExhausted = "reengagement.exhausted"
)

// Notification is a fire-and-forget message to downstream consumers
// (sequencer, CRM sync, ops alerting)
type Notification struct {
	// ID is a unique delivery identifier assigned at emit time
	ID string `json:"id"`
	// Type is the notification type (e.g. "transition.applied")
	Type string `json:"type"`
	// ContactID is set for contact-scoped notifications
	ContactID string `json:"contact_id,omitempty"`
	// CompanyID is set for company-scoped notifications
	CompanyID string `json:"company_id,omitempty"`
	// Timestamp is when the notification was generated
	Timestamp time.Time `json:"timestamp"`
	// Data contains the type-specific payload
	Data map[string]interface{} `json:"data,omitempty"`
}

// Sink delivers notifications to one destination
//
//go:generate mockgen -source=notify.go -destination=../mocks/notify.go -package=mocks -mock_names=Sink=MockSink
type Sink interface {
	// Name identifies the sink in logs
	Name() string
	// Deliver delivers a single notification
	Deliver(ctx context.Context, n *Notification) error
}

// Notifier fans a notification out to every configured sink. Delivery is
// best effort: a failing sink is logged and never blocks the engine or the
// other sinks.
type Notifier struct {
	sinks []Sink
}

// NewNotifier creates a notifier over the given sinks
func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Notify assigns the delivery ID and timestamp, then fans out
func (n *Notifier) Notify(ctx context.Context, notification *Notification) {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now().UTC()
	}

	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, notification); err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to deliver notification"),
				zap.String("sink", sink.Name()),
				zap.String("notificationID", notification.ID),
				zap.String("type", notification.Type),
			)
		}
	}
}
