package messaging

import (
	"context"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// Publisher defines the interface for publishing to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishMovementEvent publishes a detected movement event for the
	// orchestrator workers to consume
	PublishMovementEvent(ctx context.Context, event *domain.MovementEvent) error
	// PublishTransition publishes an applied transition for downstream
	// consumers (sequencer, CRM sync, analytics)
	PublishTransition(ctx context.Context, record *domain.TransitionRecord) error
	// Close closes the connection
	Close()
}
