package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// AppendSignal appends a signal to the ledger and folds its impact into the
// company's running totals in a single transaction. The signal_id unique
// index makes the append idempotent: a duplicate leaves both the ledger and
// the running totals untouched.
func (s *pgStore) AppendSignal(ctx context.Context, in AppendSignalInput) (*schema.Signal, bool, error) {
	var (
		row     schema.Signal
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row = schema.Signal{
			SignalID:       in.SignalID,
			CompanyID:      in.CompanyID,
			SignalType:     in.Type,
			Impact:         in.Impact,
			SourceCategory: in.Source,
			Metadata:       in.Metadata,
			Timestamp:      in.Timestamp,
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "signal_id"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("failed to append signal: %w", result.Error)
		}

		// Conflict means this dedup key was already ledgered. Return the
		// existing row and skip the company totals.
		if result.RowsAffected == 0 {
			if err := tx.Where("signal_id = ?", in.SignalID).First(&row).Error; err != nil {
				return fmt.Errorf("failed to load existing signal: %w", err)
			}
			return nil
		}
		created = true

		breakdownPath := fmt.Sprintf("{%s}", in.Source)
		company := schema.Company{
			ID:           in.CompanyID,
			ImpactTotal:  in.Impact,
			SignalCount:  1,
			Breakdown:    []byte(fmt.Sprintf(`{%q: %g}`, string(in.Source), in.Impact)),
			LastSignalAt: &in.Timestamp,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"impact_total": gorm.Expr("companies.impact_total + ?", in.Impact),
				"signal_count": gorm.Expr("companies.signal_count + 1"),
				"breakdown": gorm.Expr(
					`jsonb_set(COALESCE(companies.breakdown, '{}'::jsonb), ?::text[], to_jsonb(COALESCE((companies.breakdown->>?)::numeric, 0) + ?))`,
					breakdownPath, string(in.Source), in.Impact,
				),
				"last_signal_at": gorm.Expr("GREATEST(COALESCE(companies.last_signal_at, ?::timestamptz), ?::timestamptz)", in.Timestamp, in.Timestamp),
				"updated_at":     time.Now(),
			}),
		}).Create(&company).Error; err != nil {
			return fmt.Errorf("failed to update company totals: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &row, created, nil
}

// GetSignals retrieves a company's signals ordered by timestamp ascending
func (s *pgStore) GetSignals(ctx context.Context, companyID string, since *time.Time) ([]schema.Signal, error) {
	query := s.db.WithContext(ctx).
		Where("company_id = ?", companyID)
	if since != nil {
		query = query.Where("timestamp >= ?", *since)
	}

	var signals []schema.Signal
	err := query.Order("timestamp ASC").Find(&signals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}

	return signals, nil
}

// GetCompany retrieves a company's score cache row by ID
func (s *pgStore) GetCompany(ctx context.Context, companyID string) (*schema.Company, error) {
	var company schema.Company
	err := s.db.WithContext(ctx).Where("id = ?", companyID).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// GetCompaniesWithImpactAbove retrieves companies with a running impact total
// of at least minImpactTotal, highest first
func (s *pgStore) GetCompaniesWithImpactAbove(ctx context.Context, minImpactTotal float64, limit int) ([]schema.Company, error) {
	var companies []schema.Company
	err := s.db.WithContext(ctx).
		Where("impact_total >= ?", minImpactTotal).
		Order("impact_total DESC").
		Limit(limit).
		Find(&companies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get companies above impact floor: %w", err)
	}

	return companies, nil
}

// TouchCompanyEngagement restamps the company's engagement-recency anchor.
// Older timestamps never move the anchor backwards.
func (s *pgStore) TouchCompanyEngagement(ctx context.Context, companyID string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Company{}).
		Where("id = ?", companyID).
		Where("last_engagement_at IS NULL OR last_engagement_at < ?", at).
		Update("last_engagement_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch company engagement: %w", err)
	}

	return nil
}

// CreateContact inserts a new contact record
func (s *pgStore) CreateContact(ctx context.Context, contact *schema.Contact) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(contact)
	if result.Error != nil {
		return fmt.Errorf("failed to create contact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactAlreadyExists
	}

	return nil
}

// GetContact retrieves a contact by ID
func (s *pgStore) GetContact(ctx context.Context, contactID string) (*schema.Contact, error) {
	var contact schema.Contact
	err := s.db.WithContext(ctx).Where("id = ?", contactID).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// ApplyTransition updates the contact, appends the transition record, and
// journals the event outcome in a single transaction. The version predicate
// guarantees that concurrent writers cannot both apply: the loser's update
// matches zero rows and the whole transaction rolls back with
// domain.ErrVersionConflict.
func (s *pgStore) ApplyTransition(ctx context.Context, in ApplyTransitionInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"current_state":      in.ToState,
			"funnel":             in.Funnel,
			"version":            gorm.Expr("version + 1"),
			"last_transition_at": in.AppliedAt,
			"updated_at":         time.Now(),
		}
		if in.Promotion {
			updates["last_promotion_at"] = in.AppliedAt
		}
		if in.Demotion {
			updates["last_demotion_at"] = in.AppliedAt
		}
		if in.TouchEngagement {
			updates["last_engagement_at"] = in.AppliedAt
		}
		if in.ReengagementCycleCount != nil {
			updates["reengagement_cycle_count"] = *in.ReengagementCycleCount
		}
		if in.ReengagementCycleStartedAt != nil {
			updates["reengagement_cycle_started_at"] = *in.ReengagementCycleStartedAt
		}

		result := tx.Model(&schema.Contact{}).
			Where("id = ? AND version = ?", in.ContactID, in.ExpectedVersion).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update contact: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Distinguish a missing contact from a lost version race
			var count int64
			if err := tx.Model(&schema.Contact{}).Where("id = ?", in.ContactID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check contact existence: %w", err)
			}
			if count == 0 {
				return domain.ErrContactNotFound
			}
			return domain.ErrVersionConflict
		}

		record := schema.TransitionRecord{
			ContactID:        in.ContactID,
			FromState:        in.FromState,
			ToState:          in.ToState,
			EventType:        in.EventType,
			EventID:          in.EventID,
			DedupHash:        in.DedupHash,
			BypassedCooldown: in.BypassedCooldown,
			AppliedAt:        in.AppliedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create transition record: %w", err)
		}

		journal := schema.EventJournal{
			ContactID:   in.ContactID,
			EventID:     in.EventID,
			EventType:   in.EventType,
			DedupHash:   in.DedupHash,
			Outcome:     schema.OutcomeApplied,
			DetectedAt:  in.DetectedAt,
			EvaluatedAt: in.AppliedAt,
		}
		if err := tx.Create(&journal).Error; err != nil {
			return fmt.Errorf("failed to journal applied event: %w", err)
		}

		return nil
	})
}

// LockContact marks a contact as excluded from movement processing
func (s *pgStore) LockContact(ctx context.Context, contactID string, reason domain.LockReason) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Contact{}).
		Where("id = ?", contactID).
		Updates(map[string]interface{}{
			"locked":      true,
			"lock_reason": reason,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to lock contact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}

	return nil
}

// HasAppliedDedupHash reports whether an event with this dedup key has
// already produced a transition for the contact
func (s *pgStore) HasAppliedDedupHash(ctx context.Context, contactID string, dedupHash string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.TransitionRecord{}).
		Where("contact_id = ? AND dedup_hash = ?", contactID, dedupHash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check dedup hash: %w", err)
	}

	return count > 0, nil
}

// JournalEvents appends evaluated-event dispositions to the audit feed
func (s *pgStore) JournalEvents(ctx context.Context, entries []schema.EventJournal) error {
	if len(entries) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to journal events: %w", err)
	}

	return nil
}

// ListJournalEntries retrieves a contact's evaluated-event audit feed, newest first
func (s *pgStore) ListJournalEntries(ctx context.Context, contactID string, limit int) ([]schema.EventJournal, error) {
	var entries []schema.EventJournal
	err := s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("cursor DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	return entries, nil
}

// ListTransitions retrieves a contact's transition audit trail, newest first
func (s *pgStore) ListTransitions(ctx context.Context, contactID string, limit int, offset uint64) ([]schema.TransitionRecord, uint64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&schema.TransitionRecord{}).
		Where("contact_id = ?", contactID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transitions: %w", err)
	}

	var records []schema.TransitionRecord
	err = s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("applied_at DESC").
		Limit(limit).
		Offset(int(offset)).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transitions: %w", err)
	}

	return records, uint64(total), nil
}

// ListContactsInactiveSince retrieves unlocked contacts in the given states
// whose engagement anchor predates the cutoff
func (s *pgStore) ListContactsInactiveSince(ctx context.Context, states []domain.LifecycleState, cutoff time.Time, limit int) ([]schema.Contact, error) {
	if len(states) == 0 {
		return []schema.Contact{}, nil
	}

	var contacts []schema.Contact
	err := s.db.WithContext(ctx).
		Where("current_state IN ?", states).
		Where("locked = ?", false).
		Where("COALESCE(last_engagement_at, last_transition_at, created_at) < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive contacts: %w", err)
	}

	return contacts, nil
}

// ListContactsInState retrieves unlocked contacts in one state
func (s *pgStore) ListContactsInState(ctx context.Context, state domain.LifecycleState, limit int) ([]schema.Contact, error) {
	var contacts []schema.Contact
	err := s.db.WithContext(ctx).
		Where("current_state = ? AND locked = ?", state, false).
		Order("id ASC").
		Limit(limit).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts in state: %w", err)
	}

	return contacts, nil
}

func (s *pgStore) ListContactsByCompanyInState(ctx context.Context, companyID string, state domain.LifecycleState) ([]schema.Contact, error) {
	var contacts []schema.Contact
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND current_state = ? AND locked = ?", companyID, state, false).
		Order("id ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts by company: %w", err)
	}

	return contacts, nil
}

// GetSweepCursor retrieves a named sweep cursor, "" when absent
func (s *pgStore) GetSweepCursor(ctx context.Context, name string) (string, error) {
	key := fmt.Sprintf("sweep_cursor:%s", name)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get sweep cursor: %w", err)
	}

	return kv.Value, nil
}

// SetSweepCursor stores a named sweep cursor
func (s *pgStore) SetSweepCursor(ctx context.Context, name string, value string) error {
	key := fmt.Sprintf("sweep_cursor:%s", name)

	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set sweep cursor: %w", err)
	}

	return nil
}
