// Package rules holds the stateless movement rules: reply classification,
// engagement threshold checks, BIT threshold checks, TalentFlow freshness,
// and re-engagement cycle bookkeeping.
package rules

import (
	"strings"
	"time"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// Config holds all movement rule thresholds. Every value is
// runtime-configurable per environment; the defaults mirror production.
type Config struct {
	OpensThreshold        int     `mapstructure:"opens_threshold"`
	ClicksThreshold       int     `mapstructure:"clicks_threshold"`
	BITWarmThreshold      float64 `mapstructure:"bit_warm_threshold"`
	BITHotThreshold       float64 `mapstructure:"bit_hot_threshold"`
	BITPriorityThreshold  float64 `mapstructure:"bit_priority_threshold"`
	InactivityDays        int     `mapstructure:"inactivity_days"`
	MaxReengagementCycles int     `mapstructure:"max_reengagement_cycles"`
	// ReengagementIntervalDays holds one interval per cycle; the last entry
	// repeats for later cycles, so a flat range is a single-element slice.
	ReengagementIntervalDays []int         `mapstructure:"reengagement_interval_days"`
	Cooldown                 time.Duration `mapstructure:"cooldown"`
	TalentFlowFreshnessDays  int           `mapstructure:"talentflow_freshness_days"`
	AccumulationWindow       time.Duration `mapstructure:"accumulation_window"`
	PromotionLock            time.Duration `mapstructure:"promotion_lock"`
	DemotionLock             time.Duration `mapstructure:"demotion_lock"`
}

// DefaultConfig returns the production default thresholds
func DefaultConfig() Config {
	return Config{
		OpensThreshold:           3,
		ClicksThreshold:          2,
		BITWarmThreshold:         25,
		BITHotThreshold:          50,
		BITPriorityThreshold:     75,
		InactivityDays:           30,
		MaxReengagementCycles:    3,
		ReengagementIntervalDays: []int{60, 75, 90},
		Cooldown:                 24 * time.Hour,
		TalentFlowFreshnessDays:  90,
		AccumulationWindow:       4 * time.Hour,
		PromotionLock:            7 * 24 * time.Hour,
		DemotionLock:             3 * 24 * time.Hour,
	}
}

// Evaluator applies the movement rules. It carries no mutable state.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates a new rule evaluator
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Config returns the evaluator's threshold configuration
func (e *Evaluator) Config() Config {
	return e.cfg
}

// ReplySentiment classifies the content of an email reply
type ReplySentiment string

const (
	SentimentPositive    ReplySentiment = "POSITIVE"
	SentimentNeutral     ReplySentiment = "NEUTRAL"
	SentimentNegative    ReplySentiment = "NEGATIVE"
	SentimentUnsubscribe ReplySentiment = "UNSUBSCRIBE"
	SentimentOutOfOffice ReplySentiment = "OUT_OF_OFFICE"
	SentimentAutoReply   ReplySentiment = "AUTO_REPLY"
)

// Promotes reports whether a reply with this sentiment advances the contact.
// Negative, out-of-office, and auto replies are ignored without error.
func (s ReplySentiment) Promotes() bool {
	return s == SentimentPositive || s == SentimentNeutral
}

// Phrase lists for the lexical reply classifier. Order of evaluation
// matters: unsubscribe intent wins over everything, then automated
// replies, then negative, then positive.
var (
	unsubscribePhrases = []string{
		"unsubscribe", "remove me", "take me off", "stop emailing", "opt out", "opt-out",
	}
	outOfOfficePhrases = []string{
		"out of office", "out of the office", "on vacation", "on leave",
		"annual leave", "parental leave", "返回时间", "currently away", "limited access to email",
	}
	autoReplyPhrases = []string{
		"auto-reply", "automatic reply", "autoreply", "do not reply", "no longer with",
		"is no longer at", "delivery has failed", "undeliverable",
	}
	negativePhrases = []string{
		"not interested", "no thanks", "no thank you", "not a fit", "not a good fit",
		"we're all set", "we are all set", "already have", "don't contact", "do not contact",
		"not right now", "no budget",
	}
	positivePhrases = []string{
		"interested", "love to learn", "tell me more", "sounds good", "let's talk",
		"lets talk", "schedule", "set up a call", "book a time", "send over",
		"more information", "more info", "pricing", "demo", "happy to chat",
	}
)

// ClassifyReply runs the lexical reply classifier. The contract is the
// three-way POSITIVE/NEUTRAL/NEGATIVE split plus the automated categories;
// anything that matches nothing is NEUTRAL.
func (e *Evaluator) ClassifyReply(text string) ReplySentiment {
	body := strings.ToLower(text)

	for _, p := range unsubscribePhrases {
		if strings.Contains(body, p) {
			return SentimentUnsubscribe
		}
	}
	for _, p := range outOfOfficePhrases {
		if strings.Contains(body, p) {
			return SentimentOutOfOffice
		}
	}
	for _, p := range autoReplyPhrases {
		if strings.Contains(body, p) {
			return SentimentAutoReply
		}
	}
	// Negative before positive: "not interested" contains "interested"
	for _, p := range negativePhrases {
		if strings.Contains(body, p) {
			return SentimentNegative
		}
	}
	for _, p := range positivePhrases {
		if strings.Contains(body, p) {
			return SentimentPositive
		}
	}

	return SentimentNeutral
}

// CheckOpenThreshold reports whether the unique-open count meets the
// promotion threshold. "Unique" means distinct sends, not repeated opens
// of one send within a day; the counter upstream enforces that.
func (e *Evaluator) CheckOpenThreshold(uniqueOpens int) bool {
	return uniqueOpens >= e.cfg.OpensThreshold
}

// CheckClickThreshold reports whether the unique-click count meets the
// promotion threshold. Unsubscribe-link and tracking-pixel clicks are
// excluded by the upstream counter.
func (e *Evaluator) CheckClickThreshold(uniqueClicks int) bool {
	return uniqueClicks >= e.cfg.ClicksThreshold
}

// BITResult is the outcome of a windowed BIT score calculation
type BITResult struct {
	Total           float64
	CrossedWarm     bool
	CrossedHot      bool
	CrossedPriority bool
}

// CalculateBITScore folds the signals in a window into a decayed total:
// the sum of impacts minus an engagement-recency decay capped at 30 days.
func (e *Evaluator) CalculateBITScore(signals []domain.Signal, daysSinceLastEngagement int) BITResult {
	var total float64
	for _, s := range signals {
		total += s.EffectiveImpact()
	}

	decay := float64(min(daysSinceLastEngagement, domain.MaxDecayDays))
	total -= decay

	return BITResult{
		Total:           total,
		CrossedWarm:     total >= e.cfg.BITWarmThreshold,
		CrossedHot:      total >= e.cfg.BITHotThreshold,
		CrossedPriority: total >= e.cfg.BITPriorityThreshold,
	}
}

// CheckTalentFlowFreshness reports whether a detected employer/role change
// is recent enough to act on
func (e *Evaluator) CheckTalentFlowFreshness(movementAgeDays int) bool {
	return movementAgeDays >= 0 && movementAgeDays <= e.cfg.TalentFlowFreshnessDays
}

// ReengagementDecision is the outcome of a re-engagement cycle check
type ReengagementDecision struct {
	ShouldTrigger bool
	ShouldExhaust bool
}

// ReengagementIntervalDays returns the configured interval for a cycle.
// Cycles beyond the configured slice reuse the last entry.
func (e *Evaluator) ReengagementIntervalDays(cycle int) int {
	intervals := e.cfg.ReengagementIntervalDays
	if len(intervals) == 0 {
		return 60
	}
	if cycle < 0 {
		cycle = 0
	}
	if cycle >= len(intervals) {
		return intervals[len(intervals)-1]
	}
	return intervals[cycle]
}

// CheckReengagementCycle decides whether a contact in re-engagement is due
// for another cycle or has exhausted its cycles without a response
func (e *Evaluator) CheckReengagementCycle(cycleCount int, daysSinceLastCycle int) ReengagementDecision {
	if daysSinceLastCycle < e.ReengagementIntervalDays(cycleCount) {
		return ReengagementDecision{}
	}

	if cycleCount >= e.cfg.MaxReengagementCycles {
		return ReengagementDecision{ShouldExhaust: true}
	}

	return ReengagementDecision{ShouldTrigger: true}
}

// Holds re-checks an event's triggering condition at evaluation time.
// Events whose conditions are self-evident (appointments, unsubscribes,
// manual overrides) always hold; threshold events are re-verified against
// the counters captured at detection.
func (e *Evaluator) Holds(event *domain.MovementEvent, now time.Time) bool {
	switch event.Type {
	case domain.EventOpensX3:
		return e.CheckOpenThreshold(metaInt(event.Metadata, "unique_opens"))
	case domain.EventClicksX2:
		return e.CheckClickThreshold(metaInt(event.Metadata, "unique_clicks"))
	case domain.EventBITThreshold:
		return metaFloat(event.Metadata, "bit_score") >= e.cfg.BITWarmThreshold
	case domain.EventTalentFlowMove:
		return e.CheckTalentFlowFreshness(metaInt(event.Metadata, "movement_age_days"))
	case domain.EventReply:
		if sentiment, ok := event.Metadata["sentiment"].(string); ok {
			return ReplySentiment(sentiment).Promotes()
		}
		if text, ok := event.Metadata["reply_text"].(string); ok {
			return e.ClassifyReply(text).Promotes()
		}
		// A bare reply event carries no disqualifying evidence
		return true
	default:
		return true
	}
}

// metaFloat reads a numeric metadata field; JSON transport decodes all
// numbers to float64
func metaFloat(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func metaInt(meta map[string]any, key string) int {
	return int(metaFloat(meta, key))
}
