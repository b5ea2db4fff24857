package notify

import (
	"context"
	"fmt"

	"github.com/funnelworks/movement-engine/internal/adapter"
)

// natsSink publishes notifications to JetStream under
// movement.notifications.{type}, letting any number of downstream consumers
// subscribe without the engine knowing them.
type natsSink struct {
	js   adapter.JetStream
	json adapter.JSON
}

// NewNATSSink creates a sink that publishes notifications to JetStream
func NewNATSSink(js adapter.JetStream, jsonAdapter adapter.JSON) Sink {
	return &natsSink{js: js, json: jsonAdapter}
}

func (s *natsSink) Name() string {
	return "nats"
}

func (s *natsSink) Deliver(ctx context.Context, n *Notification) error {
	data, err := s.json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := fmt.Sprintf("movement.notifications.%s", n.Type)
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}
