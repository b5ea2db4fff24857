package schema

import (
	"time"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// Contact represents the contacts table - the only mutable shared state in
// the movement engine. It is owned exclusively by the orchestrator; Version
// guards the single-writer invariant with optimistic concurrency when
// sharding spans processes.
type Contact struct {
	// ID is the stable external contact identifier
	ID string `gorm:"column:id;primaryKey;type:text"`
	// CompanyID links the contact to its target company
	CompanyID string `gorm:"column:company_id;not null;type:text;index"`
	// CurrentState is the lifecycle state (exactly one at a time)
	CurrentState domain.LifecycleState `gorm:"column:current_state;not null;type:text;index"`
	// Funnel is the reporting funnel derived from CurrentState
	Funnel domain.Funnel `gorm:"column:funnel;not null;type:text"`
	// Version increments on every write for optimistic concurrency
	Version int64 `gorm:"column:version;not null;default:0"`
	// LastTransitionAt anchors cooldown enforcement
	LastTransitionAt *time.Time `gorm:"column:last_transition_at;type:timestamptz"`
	// LastPromotionAt anchors the promotion-side direction lock
	LastPromotionAt *time.Time `gorm:"column:last_promotion_at;type:timestamptz"`
	// LastDemotionAt anchors the demotion-side direction lock
	LastDemotionAt *time.Time `gorm:"column:last_demotion_at;type:timestamptz"`
	// LastEngagementAt is the most recent engagement touch, used by the
	// inactivity sweep
	LastEngagementAt *time.Time `gorm:"column:last_engagement_at;type:timestamptz"`
	// ReengagementCycleCount counts completed re-engagement cycles (0-3)
	ReengagementCycleCount int `gorm:"column:reengagement_cycle_count;not null;default:0"`
	// ReengagementCycleStartedAt is when the current cycle began
	ReengagementCycleStartedAt *time.Time `gorm:"column:reengagement_cycle_started_at;type:timestamptz"`
	// Locked excludes the contact from movement processing
	Locked bool `gorm:"column:locked;not null;default:false"`
	// LockReason explains the lock (PERSISTENCE_FAILURE, MANUAL)
	LockReason *string `gorm:"column:lock_reason;type:text"`
	// CreatedAt is when the contact record was ingested
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Transitions []TransitionRecord `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Contact model
func (Contact) TableName() string {
	return "contacts"
}
