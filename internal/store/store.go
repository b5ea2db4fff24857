package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// AppendSignalInput holds the fields for an idempotent signal append
type AppendSignalInput struct {
	SignalID  string
	CompanyID string
	Type      domain.SignalType
	Impact    float64
	Source    domain.SourceCategory
	Metadata  datatypes.JSON
	Timestamp time.Time
}

// ApplyTransitionInput holds everything persisted atomically when a
// transition is applied: the contact update, the transition record, and the
// journal entry. ExpectedVersion guards the single-writer invariant.
type ApplyTransitionInput struct {
	ContactID       string
	ExpectedVersion int64
	FromState       domain.LifecycleState
	ToState         domain.LifecycleState
	Funnel          domain.Funnel

	EventID          string
	EventType        domain.EventType
	DedupHash        string
	DetectedAt       time.Time
	AppliedAt        time.Time
	BypassedCooldown bool

	// Promotion/Demotion stamp the direction-lock anchors
	Promotion bool
	Demotion  bool
	// TouchEngagement refreshes the inactivity anchor (engagement-driven events)
	TouchEngagement bool
	// ReengagementCycleCount, when non-nil, overwrites the cycle counter
	ReengagementCycleCount *int
	// ReengagementCycleStartedAt, when non-nil, restamps the cycle start
	ReengagementCycleStartedAt *time.Time
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// AppendSignal idempotently appends a signal and folds its impact into
	// the company score cache. The bool reports whether a new row was
	// created; a duplicate dedup key returns the pre-existing record.
	AppendSignal(ctx context.Context, in AppendSignalInput) (*schema.Signal, bool, error)
	// GetSignals retrieves a company's signals ordered by timestamp
	GetSignals(ctx context.Context, companyID string, since *time.Time) ([]schema.Signal, error)

	// GetCompany retrieves a company's score cache row
	GetCompany(ctx context.Context, companyID string) (*schema.Company, error)
	// GetCompaniesWithImpactAbove retrieves companies whose running impact
	// total is at least the given floor, highest first. Decay only ever
	// subtracts, so the floor is a safe pre-filter for threshold selection.
	GetCompaniesWithImpactAbove(ctx context.Context, minImpactTotal float64, limit int) ([]schema.Company, error)
	// TouchCompanyEngagement restamps the engagement-recency anchor
	TouchCompanyEngagement(ctx context.Context, companyID string, at time.Time) error

	// CreateContact inserts a new contact record
	CreateContact(ctx context.Context, contact *schema.Contact) error
	// GetContact retrieves a contact by ID
	GetContact(ctx context.Context, contactID string) (*schema.Contact, error)
	// ApplyTransition performs the transactional transition write: contact
	// update guarded by ExpectedVersion, transition record, journal entry.
	// Returns domain.ErrVersionConflict if another writer won the race.
	ApplyTransition(ctx context.Context, in ApplyTransitionInput) error
	// LockContact marks a contact as excluded from movement processing
	LockContact(ctx context.Context, contactID string, reason domain.LockReason) error
	// HasAppliedDedupHash reports whether an event with this dedup key has
	// already produced a transition for the contact
	HasAppliedDedupHash(ctx context.Context, contactID string, dedupHash string) (bool, error)
	// JournalEvents appends evaluated-event dispositions to the audit feed
	JournalEvents(ctx context.Context, entries []schema.EventJournal) error
	// ListJournalEntries retrieves a contact's evaluated-event audit feed,
	// newest first
	ListJournalEntries(ctx context.Context, contactID string, limit int) ([]schema.EventJournal, error)
	// ListTransitions retrieves a contact's transition audit trail
	ListTransitions(ctx context.Context, contactID string, limit int, offset uint64) ([]schema.TransitionRecord, uint64, error)

	// ListContactsInactiveSince retrieves unlocked contacts in the given
	// states whose engagement anchor predates the cutoff
	ListContactsInactiveSince(ctx context.Context, states []domain.LifecycleState, cutoff time.Time, limit int) ([]schema.Contact, error)
	// ListContactsInState retrieves unlocked contacts in one state
	ListContactsInState(ctx context.Context, state domain.LifecycleState, limit int) ([]schema.Contact, error)
	// ListContactsByCompanyInState retrieves a company's unlocked contacts
	// in one state
	ListContactsByCompanyInState(ctx context.Context, companyID string, state domain.LifecycleState) ([]schema.Contact, error)
	// GetSweepCursor retrieves a named sweep cursor ("" when absent)
	GetSweepCursor(ctx context.Context, name string) (string, error)
	// SetSweepCursor stores a named sweep cursor
	SetSweepCursor(ctx context.Context, name string, value string) error
}
