package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/store"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// Engine folds company signal histories into current buyer-intent scores.
// The companies table carries a running impact cache maintained by the store,
// so scoring a company never refolds its full signal ledger.
type Engine struct {
	store store.Store
	clock adapter.Clock
}

// NewEngine creates a new scoring engine
func NewEngine(s store.Store, clock adapter.Clock) *Engine {
	return &Engine{store: s, clock: clock}
}

// CompanyScore is the decay-adjusted score of a single company
type CompanyScore struct {
	CompanyID    string             `json:"company_id"`
	Score        float64            `json:"score"`
	Band         domain.ScoreBand   `json:"band"`
	ImpactTotal  float64            `json:"impact_total"`
	DecayDays    int                `json:"decay_days"`
	SignalCount  int64              `json:"signal_count"`
	Breakdown    map[string]float64 `json:"breakdown_by_source"`
	LastSignalAt *time.Time         `json:"last_signal_at,omitempty"`
}

// IngestResult reports the outcome of a signal ingestion, including whether
// the company's score crossed a band threshold as a consequence
type IngestResult struct {
	SignalID    string  `json:"signal_id"`
	Created     bool    `json:"created"`
	Score       float64 `json:"score"`
	PrevScore   float64 `json:"prev_score"`
	CrossedWarm bool    `json:"crossed_warm"`
	CrossedHot  bool    `json:"crossed_hot"`
}

// IngestSignal appends a signal idempotently and reports the resulting score
// movement. A replayed dedup key returns Created=false with no score change.
func (e *Engine) IngestSignal(ctx context.Context, sig domain.Signal) (*IngestResult, error) {
	if !domain.IsValidSignalType(sig.Type) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSignalType, sig.Type)
	}

	if sig.Timestamp.IsZero() {
		sig.Timestamp = e.clock.Now().UTC()
	}
	impact := sig.EffectiveImpact()
	if sig.SignalID == "" {
		sig.SignalID = domain.SignalDedupID(sig.CompanyID, sig.Type, sig.Source, sig.Timestamp)
	}

	now := e.clock.Now().UTC()

	before, err := e.store.GetCompany(ctx, sig.CompanyID)
	if err != nil {
		return nil, err
	}
	prevScore, _ := scoreOf(before, now)

	var metadata []byte
	if sig.Metadata != nil {
		metadata, err = json.Marshal(sig.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode signal metadata: %w", err)
		}
	}

	row, created, err := e.store.AppendSignal(ctx, store.AppendSignalInput{
		SignalID:  sig.SignalID,
		CompanyID: sig.CompanyID,
		Type:      sig.Type,
		Impact:    impact,
		Source:    sig.Source,
		Metadata:  metadata,
		Timestamp: sig.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		SignalID:  row.SignalID,
		Created:   created,
		Score:     prevScore,
		PrevScore: prevScore,
	}
	if !created {
		return result, nil
	}

	after, err := e.store.GetCompany(ctx, sig.CompanyID)
	if err != nil {
		return nil, err
	}
	result.Score, _ = scoreOf(after, now)
	result.CrossedWarm = prevScore < domain.WarmScoreThreshold && result.Score >= domain.WarmScoreThreshold
	result.CrossedHot = prevScore < domain.HotScoreThreshold && result.Score >= domain.HotScoreThreshold

	return result, nil
}

// Score computes the current decay-adjusted score for a company
func (e *Engine) Score(ctx context.Context, companyID string) (*CompanyScore, error) {
	company, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrCompanyNotFound
	}

	now := e.clock.Now().UTC()
	score, decayDays := scoreOf(company, now)

	breakdown := map[string]float64{}
	if len(company.Breakdown) > 0 {
		if err := json.Unmarshal(company.Breakdown, &breakdown); err != nil {
			return nil, fmt.Errorf("failed to decode score breakdown: %w", err)
		}
	}

	return &CompanyScore{
		CompanyID:    company.ID,
		Score:        score,
		Band:         domain.BandForScore(score),
		ImpactTotal:  company.ImpactTotal,
		DecayDays:    decayDays,
		SignalCount:  company.SignalCount,
		Breakdown:    breakdown,
		LastSignalAt: company.LastSignalAt,
	}, nil
}

// HotCompanies lists companies currently scoring in the hot band, highest
// first.
func (e *Engine) HotCompanies(ctx context.Context, limit int) ([]CompanyScore, error) {
	return e.CompaniesAbove(ctx, domain.HotScoreThreshold, limit)
}

// CompaniesAbove lists companies whose decayed score clears the threshold.
// Decay only subtracts from the running impact total, so the impact floor
// is a safe pre-filter before applying decay.
func (e *Engine) CompaniesAbove(ctx context.Context, threshold float64, limit int) ([]CompanyScore, error) {
	companies, err := e.store.GetCompaniesWithImpactAbove(ctx, threshold, limit)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	result := make([]CompanyScore, 0, len(companies))
	for i := range companies {
		score, decayDays := scoreOf(&companies[i], now)
		if score < threshold {
			continue
		}
		result = append(result, CompanyScore{
			CompanyID:    companies[i].ID,
			Score:        score,
			Band:         domain.BandForScore(score),
			ImpactTotal:  companies[i].ImpactTotal,
			DecayDays:    decayDays,
			SignalCount:  companies[i].SignalCount,
			LastSignalAt: companies[i].LastSignalAt,
		})
	}

	return result, nil
}

// TouchEngagement restamps a company's engagement-recency anchor, resetting
// decay. Called when a contact at the company engages.
func (e *Engine) TouchEngagement(ctx context.Context, companyID string, at time.Time) error {
	return e.store.TouchCompanyEngagement(ctx, companyID, at)
}

// scoreOf computes clamp(impact_total - decay, 0, 100) for a company row.
// Decay is min(days since the recency anchor, 30); the anchor is the last
// engagement touch when present, else the last signal.
func scoreOf(company *schema.Company, now time.Time) (float64, int) {
	if company == nil {
		return 0, 0
	}

	anchor := company.LastSignalAt
	if company.LastEngagementAt != nil && (anchor == nil || company.LastEngagementAt.After(*anchor)) {
		anchor = company.LastEngagementAt
	}

	decayDays := domain.MaxDecayDays
	if anchor != nil {
		days := int(now.Sub(*anchor).Hours() / 24)
		if days < 0 {
			days = 0
		}
		if days < decayDays {
			decayDays = days
		}
	}

	score := company.ImpactTotal - float64(decayDays)
	if score < domain.ScoreMin {
		score = domain.ScoreMin
	}
	if score > domain.ScoreMax {
		score = domain.ScoreMax
	}

	return score, decayDays
}
