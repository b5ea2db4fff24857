package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Company represents the companies table - the identity anchor for scoring.
// The row carries a running score cache (impact total, per-source breakdown)
// maintained transactionally with every signal append, so score reads never
// refold the full signal history.
type Company struct {
	// ID is the stable external company identifier
	ID string `gorm:"column:id;primaryKey;type:text"`
	// ImpactTotal is the running sum of signal impacts (pre-decay, unclamped)
	ImpactTotal float64 `gorm:"column:impact_total;not null;default:0"`
	// SignalCount is the number of distinct signals folded into ImpactTotal
	SignalCount int64 `gorm:"column:signal_count;not null;default:0"`
	// Breakdown is the per-source-category impact subtotal as JSON
	Breakdown datatypes.JSON `gorm:"column:breakdown;type:jsonb"`
	// LastSignalAt is the timestamp of the most recent signal
	LastSignalAt *time.Time `gorm:"column:last_signal_at;type:timestamptz"`
	// LastEngagementAt is the timestamp of the most recent engagement touch,
	// used for recency decay
	LastEngagementAt *time.Time `gorm:"column:last_engagement_at;type:timestamptz"`
	// CreatedAt is the timestamp when this company was first seen
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last score cache update
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Signals  []Signal  `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Contacts []Contact `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Company model
func (Company) TableName() string {
	return "companies"
}
