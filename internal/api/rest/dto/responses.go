package dto

import (
	"encoding/json"
	"time"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/scoring"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// IngestSignalResponse is the response for POST /signals
type IngestSignalResponse struct {
	SignalID    string           `json:"signal_id"`
	Created     bool             `json:"created"`
	Score       float64          `json:"score"`
	Band        domain.ScoreBand `json:"band"`
	CrossedWarm bool             `json:"crossed_warm"`
	CrossedHot  bool             `json:"crossed_hot"`
}

// NewIngestSignalResponse maps an ingest result to the response shape
func NewIngestSignalResponse(result *scoring.IngestResult) IngestSignalResponse {
	return IngestSignalResponse{
		SignalID:    result.SignalID,
		Created:     result.Created,
		Score:       result.Score,
		Band:        domain.BandForScore(result.Score),
		CrossedWarm: result.CrossedWarm,
		CrossedHot:  result.CrossedHot,
	}
}

// CompanyScoreResponse is the response for GET /companies/:id/score
type CompanyScoreResponse struct {
	CompanyID    string             `json:"company_id"`
	Score        float64            `json:"score"`
	Band         domain.ScoreBand   `json:"band"`
	ImpactTotal  float64            `json:"impact_total"`
	DecayDays    int                `json:"decay_days"`
	SignalCount  int64              `json:"signal_count"`
	Breakdown    map[string]float64 `json:"breakdown_by_source,omitempty"`
	LastSignalAt *time.Time         `json:"last_signal_at,omitempty"`
}

// NewCompanyScoreResponse maps a company score to the response shape
func NewCompanyScoreResponse(score *scoring.CompanyScore) CompanyScoreResponse {
	return CompanyScoreResponse{
		CompanyID:    score.CompanyID,
		Score:        score.Score,
		Band:         score.Band,
		ImpactTotal:  score.ImpactTotal,
		DecayDays:    score.DecayDays,
		SignalCount:  score.SignalCount,
		Breakdown:    score.Breakdown,
		LastSignalAt: score.LastSignalAt,
	}
}

// HotCompaniesResponse is the response for GET /companies/hot
type HotCompaniesResponse struct {
	Companies []CompanyScoreResponse `json:"companies"`
}

// ContactResponse is the contact resource shape
type ContactResponse struct {
	ContactID                  string                `json:"contact_id"`
	CompanyID                  string                `json:"company_id"`
	CurrentState               domain.LifecycleState `json:"current_state"`
	Funnel                     domain.Funnel         `json:"funnel"`
	Version                    int64                 `json:"version"`
	LastTransitionAt           *time.Time            `json:"last_transition_at,omitempty"`
	LastEngagementAt           *time.Time            `json:"last_engagement_at,omitempty"`
	ReengagementCycleCount     int                   `json:"reengagement_cycle_count"`
	ReengagementCycleStartedAt *time.Time            `json:"reengagement_cycle_started_at,omitempty"`
	Locked                     bool                  `json:"locked"`
	LockReason                 *string               `json:"lock_reason,omitempty"`
	CreatedAt                  time.Time             `json:"created_at"`
}

// NewContactResponse maps a contact row to the response shape
func NewContactResponse(contact *schema.Contact) ContactResponse {
	return ContactResponse{
		ContactID:                  contact.ID,
		CompanyID:                  contact.CompanyID,
		CurrentState:               contact.CurrentState,
		Funnel:                     contact.Funnel,
		Version:                    contact.Version,
		LastTransitionAt:           contact.LastTransitionAt,
		LastEngagementAt:           contact.LastEngagementAt,
		ReengagementCycleCount:     contact.ReengagementCycleCount,
		ReengagementCycleStartedAt: contact.ReengagementCycleStartedAt,
		Locked:                     contact.Locked,
		LockReason:                 contact.LockReason,
		CreatedAt:                  contact.CreatedAt,
	}
}

// TransitionResponse is one applied transition in the audit trail
type TransitionResponse struct {
	FromState        domain.LifecycleState `json:"from_state"`
	ToState          domain.LifecycleState `json:"to_state"`
	EventType        domain.EventType      `json:"event_type"`
	EventID          string                `json:"event_id"`
	BypassedCooldown bool                  `json:"bypassed_cooldown"`
	AppliedAt        time.Time             `json:"applied_at"`
}

// ListTransitionsResponse is the response for GET /contacts/:id/transitions
type ListTransitionsResponse struct {
	Transitions []TransitionResponse `json:"transitions"`
	Total       uint64               `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      uint64               `json:"offset"`
}

// NewTransitionResponse maps a transition record to the response shape
func NewTransitionResponse(record *schema.TransitionRecord) TransitionResponse {
	return TransitionResponse{
		FromState:        record.FromState,
		ToState:          record.ToState,
		EventType:        record.EventType,
		EventID:          record.EventID,
		BypassedCooldown: record.BypassedCooldown,
		AppliedAt:        record.AppliedAt,
	}
}

// JournalEntryResponse is one evaluated event in the journal feed
type JournalEntryResponse struct {
	Cursor      int64               `json:"cursor"`
	EventID     string              `json:"event_id"`
	EventType   domain.EventType    `json:"event_type"`
	Outcome     schema.EventOutcome `json:"outcome"`
	DetectedAt  time.Time           `json:"detected_at"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
}

// ListJournalResponse is the response for GET /contacts/:id/journal
type ListJournalResponse struct {
	Entries []JournalEntryResponse `json:"entries"`
}

// NewJournalEntryResponse maps a journal row to the response shape
func NewJournalEntryResponse(entry *schema.EventJournal) JournalEntryResponse {
	return JournalEntryResponse{
		Cursor:      entry.Cursor,
		EventID:     entry.EventID,
		EventType:   entry.EventType,
		Outcome:     entry.Outcome,
		DetectedAt:  entry.DetectedAt,
		EvaluatedAt: entry.EvaluatedAt,
	}
}

// DetectEventResponse is the response for POST /contacts/:id/events
type DetectEventResponse struct {
	EventID   string           `json:"event_id"`
	Type      domain.EventType `json:"type"`
	DedupHash string           `json:"dedup_hash"`
	Accepted  bool             `json:"accepted"`
}

// SignalResponse is one signal in the company ledger
type SignalResponse struct {
	SignalID  string                `json:"signal_id"`
	CompanyID string                `json:"company_id"`
	Type      domain.SignalType     `json:"type"`
	Impact    float64               `json:"impact"`
	Source    domain.SourceCategory `json:"source"`
	Metadata  json.RawMessage       `json:"metadata,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// ListSignalsResponse is the response for GET /companies/:id/signals
type ListSignalsResponse struct {
	Signals []SignalResponse `json:"signals"`
}

// NewSignalResponse maps a signal row to the response shape
func NewSignalResponse(sig *schema.Signal) SignalResponse {
	return SignalResponse{
		SignalID:  sig.SignalID,
		CompanyID: sig.CompanyID,
		Type:      sig.SignalType,
		Impact:    sig.Impact,
		Source:    sig.SourceCategory,
		Metadata:  json.RawMessage(sig.Metadata),
		Timestamp: sig.Timestamp,
	}
}
