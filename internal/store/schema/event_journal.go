package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// EventOutcome records how the orchestrator disposed of an evaluated event
type EventOutcome string

const (
	// OutcomeApplied indicates the event produced a transition
	OutcomeApplied EventOutcome = "applied"
	// OutcomeDuplicate indicates the dedup hash was already applied
	OutcomeDuplicate EventOutcome = "duplicate"
	// OutcomeConditionNotMet indicates the rule re-check failed at evaluation
	OutcomeConditionNotMet EventOutcome = "condition_not_met"
	// OutcomeSuppressedCooldown indicates the cooldown window discarded it
	OutcomeSuppressedCooldown EventOutcome = "suppressed_cooldown"
	// OutcomeSuppressedDirection indicates a direction lock discarded it
	OutcomeSuppressedDirection EventOutcome = "suppressed_direction_lock"
	// OutcomeInvalidTransition indicates the automaton rejected the pair
	OutcomeInvalidTransition EventOutcome = "invalid_transition"
	// OutcomeOutranked indicates a higher-priority event won the window
	OutcomeOutranked EventOutcome = "outranked"
	// OutcomeRequeued indicates processing was deferred (locked contact)
	OutcomeRequeued EventOutcome = "requeued"
)

// EventJournal represents the event_journal table - the observability and
// audit feed for every evaluated movement event, applied or not. Rejection
// outcomes are data here, never errors.
type EventJournal struct {
	// Cursor is an auto-incrementing sequence number for pagination
	Cursor int64 `gorm:"column:\"cursor\";primaryKey;autoIncrement"`
	// ContactID references the contact the event targeted
	ContactID string `gorm:"column:contact_id;not null;type:text;index"`
	// EventID is the ULID assigned at detection
	EventID string `gorm:"column:event_id;not null;type:text"`
	// EventType is the canonical movement event type
	EventType domain.EventType `gorm:"column:event_type;not null;type:text"`
	// DedupHash is the event's dedup key
	DedupHash string `gorm:"column:dedup_hash;not null;type:text"`
	// Outcome is the disposition of the event
	Outcome EventOutcome `gorm:"column:outcome;not null;type:text"`
	// Meta carries evaluation context as JSON (selected event, window size, ...)
	Meta datatypes.JSON `gorm:"column:meta;type:jsonb"`
	// DetectedAt is when the event was originally detected
	DetectedAt time.Time `gorm:"column:detected_at;not null;type:timestamptz"`
	// EvaluatedAt is when the orchestrator disposed of it
	EvaluatedAt time.Time `gorm:"column:evaluated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the EventJournal model
func (EventJournal) TableName() string {
	return "event_journal"
}
