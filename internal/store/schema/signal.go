package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// Signal represents the signals table - the append-only buyer-intent ledger.
// Rows are never updated or deleted; a duplicate SignalID insert is a no-op.
type Signal struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SignalID is the deterministic dedup key (hash of type+company+source+day)
	SignalID string `gorm:"column:signal_id;not null;uniqueIndex;type:text"`
	// CompanyID references the company this signal scores
	CompanyID string `gorm:"column:company_id;not null;type:text;index:idx_signals_company_ts,priority:1"`
	// SignalType identifies the kind of fact (SLOT_FILLED, BROKER_CHANGE, ...)
	SignalType domain.SignalType `gorm:"column:signal_type;not null;type:text"`
	// Impact is the signed scoring contribution
	Impact float64 `gorm:"column:impact;not null"`
	// SourceCategory identifies the emitting subsystem
	SourceCategory domain.SourceCategory `gorm:"column:source_category;not null;type:text"`
	// Metadata carries opaque source-specific context as JSON
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// Timestamp is when the underlying fact occurred
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz;index:idx_signals_company_ts,priority:2"`
	// CreatedAt is when this record was ingested
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Signal model
func (Signal) TableName() string {
	return "signals"
}
