package domain

import (
	"time"
)

// LifecycleState represents a contact's position in the engagement lifecycle
type LifecycleState string

const (
	StateSuspect        LifecycleState = "SUSPECT"
	StateWarm           LifecycleState = "WARM"
	StateTalentFlowWarm LifecycleState = "TALENTFLOW_WARM"
	StateReengagement   LifecycleState = "REENGAGEMENT"
	StateAppointment    LifecycleState = "APPOINTMENT"
	StateClient         LifecycleState = "CLIENT"
	StateDisqualified   LifecycleState = "DISQUALIFIED"
	StateUnsubscribed   LifecycleState = "UNSUBSCRIBED"
)

// IsValidState checks if a lifecycle state is valid
func IsValidState(s LifecycleState) bool {
	switch s {
	case StateSuspect, StateWarm, StateTalentFlowWarm, StateReengagement,
		StateAppointment, StateClient, StateDisqualified, StateUnsubscribed:
		return true
	}
	return false
}

// Terminal reports whether the state admits no outgoing transitions
func (s LifecycleState) Terminal() bool {
	return s == StateClient || s == StateDisqualified || s == StateUnsubscribed
}

// Rank orders states for promotion/demotion classification.
// A transition to a higher rank is a promotion, to a lower rank a demotion.
func (s LifecycleState) Rank() int {
	switch s {
	case StateSuspect:
		return 0
	case StateReengagement:
		return 1
	case StateWarm, StateTalentFlowWarm:
		return 2
	case StateAppointment:
		return 3
	case StateClient:
		return 4
	default:
		// Terminal exclusion states sit outside the promotion ladder
		return -1
	}
}

// Funnel is a named grouping of contacts sharing a lifecycle state,
// used for reporting and sequencing
type Funnel string

const (
	FunnelProspecting Funnel = "prospecting"
	FunnelNurture     Funnel = "nurture"
	FunnelPipeline    Funnel = "pipeline"
	FunnelClosed      Funnel = "closed"
	FunnelExcluded    Funnel = "excluded"
)

// Funnel returns the funnel membership derived from the state
func (s LifecycleState) Funnel() Funnel {
	switch s {
	case StateSuspect:
		return FunnelProspecting
	case StateWarm, StateTalentFlowWarm, StateReengagement:
		return FunnelNurture
	case StateAppointment:
		return FunnelPipeline
	case StateClient:
		return FunnelClosed
	default:
		return FunnelExcluded
	}
}

// EventType represents the type of movement event
type EventType string

const (
	EventReply                 EventType = "EVENT_REPLY"
	EventOpensX3               EventType = "EVENT_OPENS_X3"
	EventClicksX2              EventType = "EVENT_CLICKS_X2"
	EventBITThreshold          EventType = "EVENT_BIT_THRESHOLD"
	EventTalentFlowMove        EventType = "EVENT_TALENTFLOW_MOVE"
	EventAppointment           EventType = "EVENT_APPOINTMENT"
	EventClientSigned          EventType = "EVENT_CLIENT_SIGNED"
	EventInactivity30D         EventType = "EVENT_INACTIVITY_30D"
	EventReengagementTrigger   EventType = "EVENT_REENGAGEMENT_TRIGGER"
	EventReengagementExhausted EventType = "EVENT_REENGAGEMENT_EXHAUSTED"
	EventUnsubscribe           EventType = "EVENT_UNSUBSCRIBE"
	EventHardBounce            EventType = "EVENT_HARD_BOUNCE"
	EventManualOverride        EventType = "EVENT_MANUAL_OVERRIDE"
)

// IsValidEventType checks if an event type is valid
func IsValidEventType(t EventType) bool {
	_, ok := eventPriorities[t]
	return ok
}

// eventPriorities is the fixed conflict-resolution order. Higher wins.
// Kept as an explicit table so tie-break behavior stays testable and
// immune to accidental reordering.
var eventPriorities = map[EventType]int{
	EventClientSigned:          100,
	EventManualOverride:        100,
	EventUnsubscribe:           95,
	EventHardBounce:            95,
	EventAppointment:           90,
	EventTalentFlowMove:        80,
	EventReply:                 70,
	EventBITThreshold:          60,
	EventClicksX2:              50,
	EventOpensX3:               40,
	EventInactivity30D:         30,
	EventReengagementExhausted: 20,
	EventReengagementTrigger:   10,
}

// Priority returns the conflict-resolution priority of the event type.
// Unknown types rank below everything.
func (t EventType) Priority() int {
	return eventPriorities[t]
}

// BypassesCooldown reports whether the event type may apply a transition
// inside an active cooldown window
func (t EventType) BypassesCooldown() bool {
	switch t {
	case EventAppointment, EventClientSigned, EventUnsubscribe, EventHardBounce, EventManualOverride:
		return true
	}
	return false
}

// BypassesAccumulation reports whether the event type is evaluated
// immediately instead of waiting for the accumulation window to close
func (t EventType) BypassesAccumulation() bool {
	switch t {
	case EventAppointment, EventClientSigned, EventUnsubscribe:
		return true
	}
	return false
}

// SignalType represents the type of buyer-intent signal
type SignalType string

const (
	SignalSlotFilled       SignalType = "SLOT_FILLED"
	SignalSlotVacated      SignalType = "SLOT_VACATED"
	SignalEmailVerified    SignalType = "EMAIL_VERIFIED"
	SignalLinkedInFound    SignalType = "LINKEDIN_FOUND"
	SignalForm5500Filed    SignalType = "FORM_5500_FILED"
	SignalLargePlan        SignalType = "LARGE_PLAN"
	SignalBrokerChange     SignalType = "BROKER_CHANGE"
	SignalExecutiveJoined  SignalType = "EXECUTIVE_JOINED"
	SignalExecutiveLeft    SignalType = "EXECUTIVE_LEFT"
	SignalTitleChange      SignalType = "TITLE_CHANGE"
	SignalFundingEvent     SignalType = "FUNDING_EVENT"
	SignalAcquisition      SignalType = "ACQUISITION"
	SignalLayoff           SignalType = "LAYOFF"
	SignalLeadershipChange SignalType = "LEADERSHIP_CHANGE"
)

// defaultImpacts maps each signal type to its scoring impact when the
// emitting subsystem does not override it
var defaultImpacts = map[SignalType]float64{
	SignalSlotFilled:       5,
	SignalSlotVacated:      8,
	SignalEmailVerified:    2,
	SignalLinkedInFound:    1,
	SignalForm5500Filed:    10,
	SignalLargePlan:        15,
	SignalBrokerChange:     20,
	SignalExecutiveJoined:  15,
	SignalExecutiveLeft:    10,
	SignalTitleChange:      5,
	SignalFundingEvent:     12,
	SignalAcquisition:      18,
	SignalLayoff:           6,
	SignalLeadershipChange: 10,
}

// IsValidSignalType checks if a signal type is valid
func IsValidSignalType(t SignalType) bool {
	_, ok := defaultImpacts[t]
	return ok
}

// DefaultImpact returns the default scoring impact for the signal type
func (t SignalType) DefaultImpact() float64 {
	return defaultImpacts[t]
}

// SourceCategory identifies the subsystem that emitted a signal
type SourceCategory string

const (
	SourceEngagement SourceCategory = "engagement"
	SourceTalentFlow SourceCategory = "talentflow"
	SourceRegulatory SourceCategory = "regulatory"
	SourceNews       SourceCategory = "news"
	SourceEnrichment SourceCategory = "enrichment"
	SourceManual     SourceCategory = "manual"
)

// IsValidSourceCategory checks if a source category is valid
func IsValidSourceCategory(c SourceCategory) bool {
	switch c {
	case SourceEngagement, SourceTalentFlow, SourceRegulatory, SourceNews, SourceEnrichment, SourceManual:
		return true
	}
	return false
}

// Signal is an immutable fact about a company with a numeric scoring impact.
// Impact is signed and nil when the producer did not override the type
// default; an explicit zero or negative value is carried through as-is.
type Signal struct {
	SignalID  string         `json:"signal_id"`
	CompanyID string         `json:"company_id"`
	Type      SignalType     `json:"signal_type"`
	Impact    *float64       `json:"impact,omitempty"`
	Source    SourceCategory `json:"source_category"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EffectiveImpact resolves the signal's impact, falling back to the type
// default when no override was supplied.
func (s *Signal) EffectiveImpact() float64 {
	if s.Impact != nil {
		return *s.Impact
	}
	return s.Type.DefaultImpact()
}

// MovementEvent is a candidate trigger for a lifecycle transition.
// It is consumed and discarded by the orchestrator after evaluation.
type MovementEvent struct {
	ID          string         `json:"id"` // ULID, assigned at detection
	Type        EventType      `json:"event_type"`
	ContactID   string         `json:"contact_id"`
	DedupHash   string         `json:"dedup_hash"`
	DetectedAt  time.Time      `json:"detected_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	TargetState LifecycleState `json:"target_state,omitempty"` // manual override only
}

// Valid performs boundary validation on an incoming event
func (e *MovementEvent) Valid() bool {
	if e.ContactID == "" || e.DedupHash == "" {
		return false
	}
	if !IsValidEventType(e.Type) {
		return false
	}
	if e.Type == EventManualOverride && !IsValidState(e.TargetState) {
		return false
	}
	return true
}

// TransitionRecord is the append-only audit of one applied transition
type TransitionRecord struct {
	ContactID        string         `json:"contact_id"`
	FromState        LifecycleState `json:"from_state"`
	ToState          LifecycleState `json:"to_state"`
	TriggeringEvent  EventType      `json:"triggering_event_type"`
	AppliedAt        time.Time      `json:"applied_at"`
	BypassedCooldown bool           `json:"bypassed_cooldown"`
}

// ScoreBand categorizes a BIT score for outreach gating
type ScoreBand string

const (
	BandHot  ScoreBand = "hot"  // immediate outreach
	BandWarm ScoreBand = "warm" // nurture
	BandCold ScoreBand = "cold" // no outreach
)

// BandForScore maps a BIT score to its outreach band
func BandForScore(score float64) ScoreBand {
	switch {
	case score >= HotScoreThreshold:
		return BandHot
	case score >= WarmScoreThreshold:
		return BandWarm
	default:
		return BandCold
	}
}

// OutreachAllowed is the outreach gate: no downstream promotion call may
// execute below the warm band regardless of caller
func OutreachAllowed(score float64) bool {
	return score >= WarmScoreThreshold
}

// LockReason explains why a contact is excluded from movement processing
type LockReason string

const (
	LockReasonPersistenceFailure LockReason = "PERSISTENCE_FAILURE"
	LockReasonManual             LockReason = "MANUAL"
)
