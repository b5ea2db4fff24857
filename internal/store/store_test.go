package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// StoreTestSuite provides the interface for running store tests against different implementations
type StoreTestSuite struct {
	Store Store
	// InitDB should be called before each test to initialize the database
	InitDB func(t *testing.T) Store
	// CleanupDB should be called after each test to clean up the database
	CleanupDB func(t *testing.T)
}

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestSignal creates a signal append input with a unique dedup key
func buildTestSignal(companyID string, signalType domain.SignalType, source domain.SourceCategory, at time.Time) AppendSignalInput {
	return AppendSignalInput{
		SignalID:  fmt.Sprintf("sig-%s-%s-%s-%d", companyID, signalType, source, at.UnixNano()),
		CompanyID: companyID,
		Type:      signalType,
		Impact:    signalType.DefaultImpact(),
		Source:    source,
		Timestamp: at,
	}
}

// buildTestContact creates a contact in the initial lifecycle state
func buildTestContact(id, companyID string) *schema.Contact {
	return &schema.Contact{
		ID:           id,
		CompanyID:    companyID,
		CurrentState: domain.StateSuspect,
		Funnel:       domain.StateSuspect.Funnel(),
	}
}

// buildTestTransition creates a transition apply input for a contact
func buildTestTransition(contact *schema.Contact, event domain.EventType, to domain.LifecycleState, at time.Time) ApplyTransitionInput {
	return ApplyTransitionInput{
		ContactID:       contact.ID,
		ExpectedVersion: contact.Version,
		FromState:       contact.CurrentState,
		ToState:         to,
		Funnel:          to.Funnel(),
		EventID:         domain.NewEventID(at),
		EventType:       event,
		DedupHash:       fmt.Sprintf("dedup-%s-%s-%d", contact.ID, event, at.UnixNano()),
		DetectedAt:      at,
		AppliedAt:       at,
	}
}

// =============================================================================
// Test: AppendSignal
// =============================================================================

func testAppendSignal(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("first append creates signal and company totals", func(t *testing.T) {
		in := buildTestSignal("acme-1", domain.SignalBrokerChange, domain.SourceRegulatory, now)

		row, created, err := store.AppendSignal(ctx, in)
		require.NoError(t, err)
		require.True(t, created)
		require.NotNil(t, row)
		assert.Equal(t, in.SignalID, row.SignalID)
		assert.Equal(t, in.CompanyID, row.CompanyID)
		assert.Equal(t, 20.0, row.Impact)

		company, err := store.GetCompany(ctx, "acme-1")
		require.NoError(t, err)
		require.NotNil(t, company)
		assert.Equal(t, 20.0, company.ImpactTotal)
		assert.Equal(t, int64(1), company.SignalCount)
		require.NotNil(t, company.LastSignalAt)
		assert.WithinDuration(t, now, *company.LastSignalAt, time.Second)

		var breakdown map[string]float64
		require.NoError(t, json.Unmarshal(company.Breakdown, &breakdown))
		assert.Equal(t, 20.0, breakdown["regulatory"])
	})

	t.Run("duplicate dedup key is a no-op", func(t *testing.T) {
		in := buildTestSignal("acme-2", domain.SignalLargePlan, domain.SourceRegulatory, now)

		_, created, err := store.AppendSignal(ctx, in)
		require.NoError(t, err)
		require.True(t, created)

		row, created, err := store.AppendSignal(ctx, in)
		require.NoError(t, err)
		assert.False(t, created)
		require.NotNil(t, row)
		assert.Equal(t, in.SignalID, row.SignalID)

		// Running totals must not be folded twice
		company, err := store.GetCompany(ctx, "acme-2")
		require.NoError(t, err)
		require.NotNil(t, company)
		assert.Equal(t, 15.0, company.ImpactTotal)
		assert.Equal(t, int64(1), company.SignalCount)
	})

	t.Run("breakdown accumulates per source category", func(t *testing.T) {
		first := buildTestSignal("acme-3", domain.SignalSlotFilled, domain.SourceTalentFlow, now)
		second := buildTestSignal("acme-3", domain.SignalSlotVacated, domain.SourceTalentFlow, now.Add(time.Minute))
		third := buildTestSignal("acme-3", domain.SignalFundingEvent, domain.SourceNews, now.Add(2*time.Minute))

		for _, in := range []AppendSignalInput{first, second, third} {
			_, created, err := store.AppendSignal(ctx, in)
			require.NoError(t, err)
			require.True(t, created)
		}

		company, err := store.GetCompany(ctx, "acme-3")
		require.NoError(t, err)
		require.NotNil(t, company)
		assert.Equal(t, 25.0, company.ImpactTotal)
		assert.Equal(t, int64(3), company.SignalCount)

		var breakdown map[string]float64
		require.NoError(t, json.Unmarshal(company.Breakdown, &breakdown))
		assert.Equal(t, 13.0, breakdown["talentflow"])
		assert.Equal(t, 12.0, breakdown["news"])
	})

	t.Run("older signal does not move last_signal_at backwards", func(t *testing.T) {
		recent := buildTestSignal("acme-4", domain.SignalAcquisition, domain.SourceNews, now)
		stale := buildTestSignal("acme-4", domain.SignalLayoff, domain.SourceNews, now.Add(-72*time.Hour))

		_, _, err := store.AppendSignal(ctx, recent)
		require.NoError(t, err)
		_, _, err = store.AppendSignal(ctx, stale)
		require.NoError(t, err)

		company, err := store.GetCompany(ctx, "acme-4")
		require.NoError(t, err)
		require.NotNil(t, company)
		require.NotNil(t, company.LastSignalAt)
		assert.WithinDuration(t, now, *company.LastSignalAt, time.Second)
	})
}

// =============================================================================
// Test: GetSignals
// =============================================================================

func testGetSignals(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	times := []time.Time{now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), now}
	for _, ts := range times {
		_, _, err := store.AppendSignal(ctx, buildTestSignal("globex-1", domain.SignalForm5500Filed, domain.SourceRegulatory, ts))
		require.NoError(t, err)
	}

	t.Run("returns signals ordered by timestamp", func(t *testing.T) {
		signals, err := store.GetSignals(ctx, "globex-1", nil)
		require.NoError(t, err)
		require.Len(t, signals, 3)
		assert.True(t, signals[0].Timestamp.Before(signals[1].Timestamp))
		assert.True(t, signals[1].Timestamp.Before(signals[2].Timestamp))
	})

	t.Run("since filter excludes older signals", func(t *testing.T) {
		since := now.Add(-36 * time.Hour)
		signals, err := store.GetSignals(ctx, "globex-1", &since)
		require.NoError(t, err)
		assert.Len(t, signals, 2)
	})

	t.Run("unknown company returns empty slice", func(t *testing.T) {
		signals, err := store.GetSignals(ctx, "no-such-company", nil)
		require.NoError(t, err)
		assert.Empty(t, signals)
	})
}

// =============================================================================
// Test: Companies
// =============================================================================

func testCompanies(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("GetCompany returns nil for unknown company", func(t *testing.T) {
		company, err := store.GetCompany(ctx, "no-such-company")
		require.NoError(t, err)
		assert.Nil(t, company)
	})

	t.Run("GetCompaniesWithImpactAbove filters and orders", func(t *testing.T) {
		// acme-hot accumulates 38, acme-cold only 2
		_, _, err := store.AppendSignal(ctx, buildTestSignal("acme-hot", domain.SignalBrokerChange, domain.SourceRegulatory, now))
		require.NoError(t, err)
		_, _, err = store.AppendSignal(ctx, buildTestSignal("acme-hot", domain.SignalAcquisition, domain.SourceNews, now.Add(time.Minute)))
		require.NoError(t, err)
		_, _, err = store.AppendSignal(ctx, buildTestSignal("acme-cold", domain.SignalEmailVerified, domain.SourceEnrichment, now))
		require.NoError(t, err)

		companies, err := store.GetCompaniesWithImpactAbove(ctx, 10, 100)
		require.NoError(t, err)
		require.Len(t, companies, 1)
		assert.Equal(t, "acme-hot", companies[0].ID)
		assert.Equal(t, 38.0, companies[0].ImpactTotal)
	})

	t.Run("TouchCompanyEngagement is monotonic", func(t *testing.T) {
		_, _, err := store.AppendSignal(ctx, buildTestSignal("initech-1", domain.SignalSlotFilled, domain.SourceTalentFlow, now))
		require.NoError(t, err)

		require.NoError(t, store.TouchCompanyEngagement(ctx, "initech-1", now))
		require.NoError(t, store.TouchCompanyEngagement(ctx, "initech-1", now.Add(-time.Hour)))

		company, err := store.GetCompany(ctx, "initech-1")
		require.NoError(t, err)
		require.NotNil(t, company)
		require.NotNil(t, company.LastEngagementAt)
		assert.WithinDuration(t, now, *company.LastEngagementAt, time.Second)
	})
}

// =============================================================================
// Test: Contacts
// =============================================================================

func testContacts(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		contact := buildTestContact("contact-1", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		got, err := store.GetContact(ctx, "contact-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.StateSuspect, got.CurrentState)
		assert.Equal(t, domain.FunnelProspecting, got.Funnel)
		assert.Equal(t, int64(0), got.Version)
		assert.False(t, got.Locked)
	})

	t.Run("duplicate create returns ErrContactAlreadyExists", func(t *testing.T) {
		contact := buildTestContact("contact-2", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		err := store.CreateContact(ctx, buildTestContact("contact-2", "acme-1"))
		assert.ErrorIs(t, err, domain.ErrContactAlreadyExists)
	})

	t.Run("unknown contact returns nil", func(t *testing.T) {
		got, err := store.GetContact(ctx, "no-such-contact")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// =============================================================================
// Test: ApplyTransition
// =============================================================================

func testApplyTransition(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("applies state, record, and journal atomically", func(t *testing.T) {
		contact := buildTestContact("mover-1", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		in := buildTestTransition(contact, domain.EventReply, domain.StateWarm, now)
		in.Promotion = true
		in.TouchEngagement = true
		require.NoError(t, store.ApplyTransition(ctx, in))

		got, err := store.GetContact(ctx, "mover-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.StateWarm, got.CurrentState)
		assert.Equal(t, domain.FunnelNurture, got.Funnel)
		assert.Equal(t, int64(1), got.Version)
		require.NotNil(t, got.LastTransitionAt)
		require.NotNil(t, got.LastPromotionAt)
		require.NotNil(t, got.LastEngagementAt)
		assert.Nil(t, got.LastDemotionAt)

		records, total, err := store.ListTransitions(ctx, "mover-1", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, domain.StateSuspect, records[0].FromState)
		assert.Equal(t, domain.StateWarm, records[0].ToState)
		assert.Equal(t, domain.EventReply, records[0].EventType)
		assert.Equal(t, in.DedupHash, records[0].DedupHash)

		entries, err := store.ListJournalEntries(ctx, "mover-1", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, schema.OutcomeApplied, entries[0].Outcome)
		assert.Equal(t, in.EventID, entries[0].EventID)
	})

	t.Run("stale version returns ErrVersionConflict and writes nothing", func(t *testing.T) {
		contact := buildTestContact("mover-2", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		first := buildTestTransition(contact, domain.EventReply, domain.StateWarm, now)
		require.NoError(t, store.ApplyTransition(ctx, first))

		// Re-using the pre-transition version must lose the race
		stale := buildTestTransition(contact, domain.EventAppointment, domain.StateAppointment, now.Add(time.Minute))
		err := store.ApplyTransition(ctx, stale)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		got, err := store.GetContact(ctx, "mover-2")
		require.NoError(t, err)
		assert.Equal(t, domain.StateWarm, got.CurrentState)
		assert.Equal(t, int64(1), got.Version)

		_, total, err := store.ListTransitions(ctx, "mover-2", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
	})

	t.Run("unknown contact returns ErrContactNotFound", func(t *testing.T) {
		in := buildTestTransition(buildTestContact("ghost", "acme-1"), domain.EventReply, domain.StateWarm, now)
		err := store.ApplyTransition(ctx, in)
		assert.ErrorIs(t, err, domain.ErrContactNotFound)
	})

	t.Run("demotion stamps the demotion anchor and cycle fields", func(t *testing.T) {
		contact := buildTestContact("mover-3", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		promote := buildTestTransition(contact, domain.EventReply, domain.StateWarm, now)
		promote.Promotion = true
		require.NoError(t, store.ApplyTransition(ctx, promote))

		cycle := 1
		demote := buildTestTransition(contact, domain.EventInactivity30D, domain.StateReengagement, now.Add(time.Hour))
		demote.ExpectedVersion = 1
		demote.FromState = domain.StateWarm
		demote.Demotion = true
		demote.ReengagementCycleCount = &cycle
		demote.ReengagementCycleStartedAt = &demote.AppliedAt
		require.NoError(t, store.ApplyTransition(ctx, demote))

		got, err := store.GetContact(ctx, "mover-3")
		require.NoError(t, err)
		assert.Equal(t, domain.StateReengagement, got.CurrentState)
		assert.Equal(t, int64(2), got.Version)
		require.NotNil(t, got.LastDemotionAt)
		assert.Equal(t, 1, got.ReengagementCycleCount)
		require.NotNil(t, got.ReengagementCycleStartedAt)
	})
}

// =============================================================================
// Test: LockContact
// =============================================================================

func testLockContact(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("locks with reason", func(t *testing.T) {
		contact := buildTestContact("locked-1", "acme-1")
		require.NoError(t, store.CreateContact(ctx, contact))

		require.NoError(t, store.LockContact(ctx, "locked-1", domain.LockReasonPersistenceFailure))

		got, err := store.GetContact(ctx, "locked-1")
		require.NoError(t, err)
		assert.True(t, got.Locked)
		require.NotNil(t, got.LockReason)
		assert.Equal(t, string(domain.LockReasonPersistenceFailure), *got.LockReason)
	})

	t.Run("unknown contact returns ErrContactNotFound", func(t *testing.T) {
		err := store.LockContact(ctx, "no-such-contact", domain.LockReasonManual)
		assert.ErrorIs(t, err, domain.ErrContactNotFound)
	})
}

// =============================================================================
// Test: Dedup hashes
// =============================================================================

func testHasAppliedDedupHash(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	contact := buildTestContact("dedup-1", "acme-1")
	require.NoError(t, store.CreateContact(ctx, contact))

	in := buildTestTransition(contact, domain.EventReply, domain.StateWarm, now)
	require.NoError(t, store.ApplyTransition(ctx, in))

	t.Run("applied hash is found", func(t *testing.T) {
		applied, err := store.HasAppliedDedupHash(ctx, "dedup-1", in.DedupHash)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("unknown hash is not found", func(t *testing.T) {
		applied, err := store.HasAppliedDedupHash(ctx, "dedup-1", "unseen-hash")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("hash is scoped per contact", func(t *testing.T) {
		applied, err := store.HasAppliedDedupHash(ctx, "other-contact", in.DedupHash)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

// =============================================================================
// Test: Event journal
// =============================================================================

func testJournalEvents(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("entries are appended and listed newest first", func(t *testing.T) {
		entries := []schema.EventJournal{
			{
				ContactID:   "journal-1",
				EventID:     domain.NewEventID(now),
				EventType:   domain.EventOpensX3,
				DedupHash:   "hash-a",
				Outcome:     schema.OutcomeOutranked,
				DetectedAt:  now,
				EvaluatedAt: now,
			},
			{
				ContactID:   "journal-1",
				EventID:     domain.NewEventID(now.Add(time.Second)),
				EventType:   domain.EventAppointment,
				DedupHash:   "hash-b",
				Outcome:     schema.OutcomeSuppressedCooldown,
				DetectedAt:  now.Add(time.Second),
				EvaluatedAt: now.Add(time.Second),
			},
		}
		require.NoError(t, store.JournalEvents(ctx, entries))

		got, err := store.ListJournalEntries(ctx, "journal-1", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, schema.OutcomeSuppressedCooldown, got[0].Outcome)
		assert.Equal(t, schema.OutcomeOutranked, got[1].Outcome)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		require.NoError(t, store.JournalEvents(ctx, nil))
	})
}

// =============================================================================
// Test: ListTransitions pagination
// =============================================================================

func testListTransitions(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	contact := buildTestContact("pager-1", "acme-1")
	require.NoError(t, store.CreateContact(ctx, contact))

	// SUSPECT -> WARM -> REENGAGEMENT -> WARM
	steps := []struct {
		event domain.EventType
		from  domain.LifecycleState
		to    domain.LifecycleState
	}{
		{domain.EventReply, domain.StateSuspect, domain.StateWarm},
		{domain.EventInactivity30D, domain.StateWarm, domain.StateReengagement},
		{domain.EventReply, domain.StateReengagement, domain.StateWarm},
	}
	for i, step := range steps {
		in := buildTestTransition(contact, step.event, step.to, now.Add(time.Duration(i)*time.Hour))
		in.ExpectedVersion = int64(i)
		in.FromState = step.from
		require.NoError(t, store.ApplyTransition(ctx, in))
	}

	t.Run("pages newest first", func(t *testing.T) {
		page, total, err := store.ListTransitions(ctx, "pager-1", 2, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)
		require.Len(t, page, 2)
		assert.Equal(t, domain.StateWarm, page[0].ToState)
		assert.Equal(t, domain.StateReengagement, page[1].ToState)

		rest, _, err := store.ListTransitions(ctx, "pager-1", 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, domain.StateSuspect, rest[0].FromState)
	})
}

// =============================================================================
// Test: Sweep listings
// =============================================================================

func testSweepListings(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// A stale WARM contact, a fresh WARM contact, and a locked stale one
	stale := buildTestContact("sweep-stale", "acme-1")
	require.NoError(t, store.CreateContact(ctx, stale))
	in := buildTestTransition(stale, domain.EventReply, domain.StateWarm, now.Add(-40*24*time.Hour))
	in.TouchEngagement = true
	require.NoError(t, store.ApplyTransition(ctx, in))

	fresh := buildTestContact("sweep-fresh", "acme-1")
	require.NoError(t, store.CreateContact(ctx, fresh))
	in = buildTestTransition(fresh, domain.EventReply, domain.StateWarm, now)
	in.TouchEngagement = true
	require.NoError(t, store.ApplyTransition(ctx, in))

	locked := buildTestContact("sweep-locked", "acme-1")
	require.NoError(t, store.CreateContact(ctx, locked))
	in = buildTestTransition(locked, domain.EventReply, domain.StateWarm, now.Add(-40*24*time.Hour))
	in.TouchEngagement = true
	require.NoError(t, store.ApplyTransition(ctx, in))
	require.NoError(t, store.LockContact(ctx, "sweep-locked", domain.LockReasonManual))

	t.Run("inactive listing excludes fresh and locked contacts", func(t *testing.T) {
		cutoff := now.Add(-30 * 24 * time.Hour)
		contacts, err := store.ListContactsInactiveSince(ctx, []domain.LifecycleState{domain.StateWarm, domain.StateTalentFlowWarm}, cutoff, 100)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "sweep-stale", contacts[0].ID)
	})

	t.Run("empty state list returns empty slice", func(t *testing.T) {
		contacts, err := store.ListContactsInactiveSince(ctx, nil, now, 100)
		require.NoError(t, err)
		assert.Empty(t, contacts)
	})

	t.Run("state listing excludes locked contacts", func(t *testing.T) {
		contacts, err := store.ListContactsInState(ctx, domain.StateWarm, 100)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, "sweep-fresh", contacts[0].ID)
		assert.Equal(t, "sweep-stale", contacts[1].ID)
	})

	t.Run("company listing filters by company and state", func(t *testing.T) {
		other := buildTestContact("sweep-other", "acme-2")
		require.NoError(t, store.CreateContact(ctx, other))

		contacts, err := store.ListContactsByCompanyInState(ctx, "acme-1", domain.StateWarm)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, "sweep-fresh", contacts[0].ID)

		contacts, err = store.ListContactsByCompanyInState(ctx, "acme-2", domain.StateWarm)
		require.NoError(t, err)
		assert.Empty(t, contacts)

		contacts, err = store.ListContactsByCompanyInState(ctx, "acme-2", domain.StateSuspect)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "sweep-other", contacts[0].ID)
	})
}

// =============================================================================
// Test: Sweep cursors
// =============================================================================

func testSweepCursor(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("missing cursor returns empty string", func(t *testing.T) {
		value, err := store.GetSweepCursor(ctx, "inactivity")
		require.NoError(t, err)
		assert.Equal(t, "", value)
	})

	t.Run("set and get round-trips", func(t *testing.T) {
		require.NoError(t, store.SetSweepCursor(ctx, "inactivity", "contact-42"))

		value, err := store.GetSweepCursor(ctx, "inactivity")
		require.NoError(t, err)
		assert.Equal(t, "contact-42", value)
	})

	t.Run("set overwrites previous value", func(t *testing.T) {
		require.NoError(t, store.SetSweepCursor(ctx, "reengagement", "contact-1"))
		require.NoError(t, store.SetSweepCursor(ctx, "reengagement", "contact-9"))

		value, err := store.GetSweepCursor(ctx, "reengagement")
		require.NoError(t, err)
		assert.Equal(t, "contact-9", value)
	})
}

// =============================================================================
// Suite runner
// =============================================================================

// RunStoreTests runs the full store test suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"AppendSignal", testAppendSignal},
		{"GetSignals", testGetSignals},
		{"Companies", testCompanies},
		{"Contacts", testContacts},
		{"ApplyTransition", testApplyTransition},
		{"LockContact", testLockContact},
		{"HasAppliedDedupHash", testHasAppliedDedupHash},
		{"JournalEvents", testJournalEvents},
		{"ListTransitions", testListTransitions},
		{"SweepListings", testSweepListings},
		{"SweepCursor", testSweepCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
