package rules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/rules"
)

func newEvaluator() *rules.Evaluator {
	return rules.NewEvaluator(rules.DefaultConfig())
}

func TestClassifyReply(t *testing.T) {
	e := newEvaluator()

	tests := []struct {
		name string
		text string
		want rules.ReplySentiment
	}{
		{"positive interest", "I'd love to learn more about this", rules.SentimentPositive},
		{"positive scheduling", "Can we schedule a call next week?", rules.SentimentPositive},
		{"negative", "Thanks, but we're not interested.", rules.SentimentNegative},
		{"negative beats positive phrasing", "Not interested in a demo", rules.SentimentNegative},
		{"unsubscribe", "Please remove me from this list", rules.SentimentUnsubscribe},
		{"unsubscribe wins", "Not interested, unsubscribe me", rules.SentimentUnsubscribe},
		{"out of office", "I am out of office until Monday", rules.SentimentOutOfOffice},
		{"auto reply", "This is an automatic reply, do not reply", rules.SentimentAutoReply},
		{"neutral fallthrough", "Who is the right person for this at our company?", rules.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ClassifyReply(tt.text))
		})
	}
}

func TestSentimentPromotes(t *testing.T) {
	assert.True(t, rules.SentimentPositive.Promotes())
	assert.True(t, rules.SentimentNeutral.Promotes())
	assert.False(t, rules.SentimentNegative.Promotes())
	assert.False(t, rules.SentimentUnsubscribe.Promotes())
	assert.False(t, rules.SentimentOutOfOffice.Promotes())
	assert.False(t, rules.SentimentAutoReply.Promotes())
}

func TestCheckOpenAndClickThresholds(t *testing.T) {
	e := newEvaluator()

	assert.False(t, e.CheckOpenThreshold(2))
	assert.True(t, e.CheckOpenThreshold(3))
	assert.True(t, e.CheckOpenThreshold(10))

	assert.False(t, e.CheckClickThreshold(1))
	assert.True(t, e.CheckClickThreshold(2))
}

func impactOf(v float64) *float64 {
	return &v
}

func TestCalculateBITScore(t *testing.T) {
	e := newEvaluator()

	signals := []domain.Signal{
		{Type: domain.SignalBrokerChange, Impact: impactOf(20)},
		{Type: domain.SignalExecutiveJoined, Impact: impactOf(15)},
		{Type: domain.SignalForm5500Filed, Impact: impactOf(10)},
	}

	t.Run("decay subtracts engagement age", func(t *testing.T) {
		result := e.CalculateBITScore(signals, 5)
		assert.InDelta(t, 40.0, result.Total, 0.0001)
		assert.True(t, result.CrossedWarm)
		assert.False(t, result.CrossedHot)
	})

	t.Run("decay caps at 30 days", func(t *testing.T) {
		at35 := e.CalculateBITScore(signals, 35)
		at90 := e.CalculateBITScore(signals, 90)
		assert.InDelta(t, 15.0, at35.Total, 0.0001)
		assert.Equal(t, at35.Total, at90.Total)
	})

	t.Run("nil impact falls back to the type default", func(t *testing.T) {
		result := e.CalculateBITScore([]domain.Signal{{Type: domain.SignalBrokerChange}}, 0)
		assert.InDelta(t, 20.0, result.Total, 0.0001)
	})

	t.Run("crossed flags", func(t *testing.T) {
		hot := e.CalculateBITScore([]domain.Signal{{Impact: impactOf(80)}}, 0)
		assert.True(t, hot.CrossedWarm)
		assert.True(t, hot.CrossedHot)
		assert.True(t, hot.CrossedPriority)
	})
}

func TestCheckTalentFlowFreshness(t *testing.T) {
	e := newEvaluator()

	assert.True(t, e.CheckTalentFlowFreshness(0))
	assert.True(t, e.CheckTalentFlowFreshness(90))
	assert.False(t, e.CheckTalentFlowFreshness(91))
	assert.False(t, e.CheckTalentFlowFreshness(-1))
}

func TestCheckReengagementCycle(t *testing.T) {
	e := newEvaluator()

	t.Run("not yet due", func(t *testing.T) {
		d := e.CheckReengagementCycle(0, 30)
		assert.False(t, d.ShouldTrigger)
		assert.False(t, d.ShouldExhaust)
	})

	t.Run("triggers when interval elapsed", func(t *testing.T) {
		d := e.CheckReengagementCycle(0, 60)
		assert.True(t, d.ShouldTrigger)
		assert.False(t, d.ShouldExhaust)
	})

	t.Run("interval escalates per cycle", func(t *testing.T) {
		// Cycle 1 interval is 75 days
		assert.False(t, e.CheckReengagementCycle(1, 60).ShouldTrigger)
		assert.True(t, e.CheckReengagementCycle(1, 75).ShouldTrigger)
	})

	t.Run("exhausts at max cycles", func(t *testing.T) {
		d := e.CheckReengagementCycle(3, 90)
		assert.False(t, d.ShouldTrigger)
		assert.True(t, d.ShouldExhaust)
	})
}

func TestHolds(t *testing.T) {
	e := newEvaluator()
	now := time.Now()

	tests := []struct {
		name  string
		event domain.MovementEvent
		want  bool
	}{
		{
			"opens threshold met",
			domain.MovementEvent{Type: domain.EventOpensX3, Metadata: map[string]any{"unique_opens": float64(3)}},
			true,
		},
		{
			"opens threshold not met",
			domain.MovementEvent{Type: domain.EventOpensX3, Metadata: map[string]any{"unique_opens": float64(2)}},
			false,
		},
		{
			"clicks threshold met",
			domain.MovementEvent{Type: domain.EventClicksX2, Metadata: map[string]any{"unique_clicks": float64(2)}},
			true,
		},
		{
			"bit score below warm threshold",
			domain.MovementEvent{Type: domain.EventBITThreshold, Metadata: map[string]any{"bit_score": float64(20)}},
			false,
		},
		{
			"stale talentflow move",
			domain.MovementEvent{Type: domain.EventTalentFlowMove, Metadata: map[string]any{"movement_age_days": float64(120)}},
			false,
		},
		{
			"negative reply does not hold",
			domain.MovementEvent{Type: domain.EventReply, Metadata: map[string]any{"reply_text": "not interested, thanks"}},
			false,
		},
		{
			"positive reply holds",
			domain.MovementEvent{Type: domain.EventReply, Metadata: map[string]any{"sentiment": "POSITIVE"}},
			true,
		},
		{
			"appointment always holds",
			domain.MovementEvent{Type: domain.EventAppointment},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Holds(&tt.event, now))
		})
	}
}
