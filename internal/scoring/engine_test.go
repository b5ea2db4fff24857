package scoring

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/store"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// fixedClock returns a constant now for deterministic decay math
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time                                { return c.now }
func (c *fixedClock) Since(t time.Time) time.Duration               { return c.now.Sub(t) }
func (c *fixedClock) Sleep(d time.Duration)                         {}
func (c *fixedClock) Parse(layout, value string) (time.Time, error) { return time.Parse(layout, value) }
func (c *fixedClock) Unix(sec int64, nsec int64) time.Time          { return time.Unix(sec, nsec) }
func (c *fixedClock) After(d time.Duration) <-chan time.Time        { return time.After(0) }

// fakeStore keeps company score caches in memory, folding appends the same
// way the Postgres store does. Unimplemented Store methods panic via the
// embedded nil interface.
type fakeStore struct {
	store.Store
	companies map[string]*schema.Company
	signals   map[string]*schema.Signal
	touched   map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		companies: map[string]*schema.Company{},
		signals:   map[string]*schema.Signal{},
		touched:   map[string]time.Time{},
	}
}

func (f *fakeStore) AppendSignal(ctx context.Context, in store.AppendSignalInput) (*schema.Signal, bool, error) {
	if existing, ok := f.signals[in.SignalID]; ok {
		return existing, false, nil
	}

	row := &schema.Signal{
		SignalID:       in.SignalID,
		CompanyID:      in.CompanyID,
		SignalType:     in.Type,
		Impact:         in.Impact,
		SourceCategory: in.Source,
		Timestamp:      in.Timestamp,
	}
	f.signals[in.SignalID] = row

	company := f.companies[in.CompanyID]
	if company == nil {
		company = &schema.Company{ID: in.CompanyID}
		f.companies[in.CompanyID] = company
	}
	company.ImpactTotal += in.Impact
	company.SignalCount++
	if company.LastSignalAt == nil || in.Timestamp.After(*company.LastSignalAt) {
		ts := in.Timestamp
		company.LastSignalAt = &ts
	}

	breakdown := map[string]float64{}
	if len(company.Breakdown) > 0 {
		_ = json.Unmarshal(company.Breakdown, &breakdown)
	}
	breakdown[string(in.Source)] += in.Impact
	company.Breakdown, _ = json.Marshal(breakdown)

	return row, true, nil
}

func (f *fakeStore) GetCompany(ctx context.Context, companyID string) (*schema.Company, error) {
	company, ok := f.companies[companyID]
	if !ok {
		return nil, nil
	}
	copied := *company
	return &copied, nil
}

func (f *fakeStore) GetCompaniesWithImpactAbove(ctx context.Context, minImpactTotal float64, limit int) ([]schema.Company, error) {
	var result []schema.Company
	for _, company := range f.companies {
		if company.ImpactTotal >= minImpactTotal {
			result = append(result, *company)
		}
	}
	return result, nil
}

func (f *fakeStore) TouchCompanyEngagement(ctx context.Context, companyID string, at time.Time) error {
	f.touched[companyID] = at
	return nil
}

func seedCompany(f *fakeStore, id string, impact float64, lastEngagement time.Time) {
	f.companies[id] = &schema.Company{
		ID:               id,
		ImpactTotal:      impact,
		SignalCount:      1,
		LastEngagementAt: &lastEngagement,
	}
}

func TestIngestSignal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("defaults impact and dedup key from the signal type", func(t *testing.T) {
		fake := newFakeStore()
		engine := NewEngine(fake, &fixedClock{now: now})

		result, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalBrokerChange,
			Source:    domain.SourceRegulatory,
			Timestamp: now,
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.NotEmpty(t, result.SignalID)
		assert.Equal(t, 20.0, fake.companies["acme-1"].ImpactTotal)
	})

	t.Run("explicit impact overrides the type default", func(t *testing.T) {
		fake := newFakeStore()
		seedCompany(fake, "acme-1", 40, now)
		engine := NewEngine(fake, &fixedClock{now: now})

		churn := -25.0
		result, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalBrokerChange,
			Impact:    &churn,
			Source:    domain.SourceEnrichment,
			Timestamp: now,
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, 40.0, result.PrevScore)
		assert.Equal(t, 15.0, result.Score)
		assert.Equal(t, 15.0, fake.companies["acme-1"].ImpactTotal)
	})

	t.Run("explicit zero impact is not replaced by the default", func(t *testing.T) {
		fake := newFakeStore()
		engine := NewEngine(fake, &fixedClock{now: now})

		zero := 0.0
		result, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalBrokerChange,
			Impact:    &zero,
			Source:    domain.SourceEnrichment,
			Timestamp: now,
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, 0.0, fake.companies["acme-1"].ImpactTotal)
	})

	t.Run("rejects unknown signal types", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), &fixedClock{now: now})

		_, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalType("MOON_PHASE"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSignalType)
	})

	t.Run("replay of the same dedup key changes nothing", func(t *testing.T) {
		fake := newFakeStore()
		engine := NewEngine(fake, &fixedClock{now: now})

		sig := domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalLargePlan,
			Source:    domain.SourceRegulatory,
			Timestamp: now,
		}
		first, err := engine.IngestSignal(ctx, sig)
		require.NoError(t, err)
		require.True(t, first.Created)

		second, err := engine.IngestSignal(ctx, sig)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.Score, second.Score)
		assert.Equal(t, 15.0, fake.companies["acme-1"].ImpactTotal)
	})

	t.Run("reports warm and hot crossings", func(t *testing.T) {
		fake := newFakeStore()
		seedCompany(fake, "acme-1", 45, now)
		engine := NewEngine(fake, &fixedClock{now: now})

		result, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalBrokerChange, // +20 -> 65
			Source:    domain.SourceRegulatory,
			Timestamp: now,
		})
		require.NoError(t, err)
		assert.Equal(t, 45.0, result.PrevScore)
		assert.Equal(t, 65.0, result.Score)
		assert.True(t, result.CrossedWarm)
		assert.False(t, result.CrossedHot)

		result, err = engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalLargePlan, // +15 -> 80
			Source:    domain.SourceRegulatory,
			Timestamp: now.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.False(t, result.CrossedWarm)
		assert.True(t, result.CrossedHot)
	})
}

func TestScore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("impact 40 with engagement 5 days ago scores exactly 35", func(t *testing.T) {
		fake := newFakeStore()
		seedCompany(fake, "acme-1", 40, now.Add(-5*24*time.Hour))
		engine := NewEngine(fake, &fixedClock{now: now})

		score, err := engine.Score(ctx, "acme-1")
		require.NoError(t, err)
		assert.Equal(t, 35.0, score.Score)
		assert.Equal(t, 5, score.DecayDays)
		assert.Equal(t, domain.BandCold, score.Band)
	})

	t.Run("decay caps at 30 days", func(t *testing.T) {
		fake := newFakeStore()
		seedCompany(fake, "acme-1", 40, now.Add(-90*24*time.Hour))
		engine := NewEngine(fake, &fixedClock{now: now})

		score, err := engine.Score(ctx, "acme-1")
		require.NoError(t, err)
		assert.Equal(t, 10.0, score.Score)
		assert.Equal(t, 30, score.DecayDays)
	})

	t.Run("score clamps to the 0-100 range", func(t *testing.T) {
		fake := newFakeStore()
		seedCompany(fake, "huge", 250, now)
		seedCompany(fake, "tiny", 3, now.Add(-20*24*time.Hour))
		engine := NewEngine(fake, &fixedClock{now: now})

		huge, err := engine.Score(ctx, "huge")
		require.NoError(t, err)
		assert.Equal(t, 100.0, huge.Score)
		assert.Equal(t, domain.BandHot, huge.Band)

		tiny, err := engine.Score(ctx, "tiny")
		require.NoError(t, err)
		assert.Equal(t, 0.0, tiny.Score)
	})

	t.Run("unknown company returns ErrCompanyNotFound", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), &fixedClock{now: now})

		_, err := engine.Score(ctx, "no-such-company")
		assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
	})

	t.Run("breakdown is decoded from the cache", func(t *testing.T) {
		fake := newFakeStore()
		engine := NewEngine(fake, &fixedClock{now: now})

		_, err := engine.IngestSignal(ctx, domain.Signal{
			CompanyID: "acme-1",
			Type:      domain.SignalSlotFilled,
			Source:    domain.SourceTalentFlow,
			Timestamp: now,
		})
		require.NoError(t, err)

		score, err := engine.Score(ctx, "acme-1")
		require.NoError(t, err)
		assert.Equal(t, 5.0, score.Breakdown["talentflow"])
	})
}

func TestHotCompanies(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	fake := newFakeStore()
	// Hot today, hot-but-decayed, and plainly cold
	seedCompany(fake, "fresh", 80, now)
	seedCompany(fake, "stale", 80, now.Add(-20*24*time.Hour))
	seedCompany(fake, "cold", 30, now)
	engine := NewEngine(fake, &fixedClock{now: now})

	hot, err := engine.HotCompanies(ctx, 100)
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.Equal(t, "fresh", hot[0].CompanyID)
	assert.Equal(t, 80.0, hot[0].Score)
	assert.Equal(t, domain.BandHot, hot[0].Band)
}

func TestOutreachGate(t *testing.T) {
	assert.True(t, domain.OutreachAllowed(50))
	assert.True(t, domain.OutreachAllowed(75))
	assert.False(t, domain.OutreachAllowed(49.9))
}
