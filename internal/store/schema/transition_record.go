package schema

import (
	"time"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// TransitionRecord represents the transition_records table - the append-only
// audit of applied lifecycle changes. Exactly one row is created per applied
// transition, in the same transaction as the contact update.
type TransitionRecord struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ContactID references the contact that moved
	ContactID string `gorm:"column:contact_id;not null;type:text;index:idx_transitions_contact_applied,priority:1"`
	// FromState is the lifecycle state before the transition
	FromState domain.LifecycleState `gorm:"column:from_state;not null;type:text"`
	// ToState is the lifecycle state after the transition
	ToState domain.LifecycleState `gorm:"column:to_state;not null;type:text"`
	// EventType is the canonical event that triggered the transition
	EventType domain.EventType `gorm:"column:event_type;not null;type:text"`
	// EventID is the ULID of the triggering movement event
	EventID string `gorm:"column:event_id;not null;type:text"`
	// DedupHash is the triggering event's dedup key, indexed for idempotence
	DedupHash string `gorm:"column:dedup_hash;not null;type:text;index:idx_transitions_dedup"`
	// BypassedCooldown records whether the event used the cooldown bypass set
	BypassedCooldown bool `gorm:"column:bypassed_cooldown;not null;default:false"`
	// AppliedAt is when the transition took effect
	AppliedAt time.Time `gorm:"column:applied_at;not null;type:timestamptz;index:idx_transitions_contact_applied,priority:2"`
	// CreatedAt is when this record was written
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Contact Contact `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the TransitionRecord model
func (TransitionRecord) TableName() string {
	return "transition_records"
}
