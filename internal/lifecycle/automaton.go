// Package lifecycle holds the fixed contact lifecycle automaton: a pure
// transition table with no I/O and no side effects.
package lifecycle

import (
	"fmt"

	"github.com/funnelworks/movement-engine/internal/domain"
)

// InitialState is the state every contact is created in
const InitialState = domain.StateSuspect

// transitions is the fixed lifecycle table. Any (state, event) pair absent
// from it is invalid; the automaton never guesses a target state.
var transitions = map[domain.LifecycleState]map[domain.EventType]domain.LifecycleState{
	domain.StateSuspect: {
		domain.EventReply:          domain.StateWarm,
		domain.EventOpensX3:        domain.StateWarm,
		domain.EventClicksX2:       domain.StateWarm,
		domain.EventBITThreshold:   domain.StateWarm,
		domain.EventTalentFlowMove: domain.StateTalentFlowWarm,
	},
	domain.StateWarm: {
		domain.EventAppointment:    domain.StateAppointment,
		domain.EventTalentFlowMove: domain.StateTalentFlowWarm,
		domain.EventInactivity30D:  domain.StateReengagement,
	},
	domain.StateTalentFlowWarm: {
		domain.EventAppointment:   domain.StateAppointment,
		domain.EventInactivity30D: domain.StateReengagement,
	},
	domain.StateReengagement: {
		domain.EventReply:                 domain.StateWarm,
		domain.EventTalentFlowMove:        domain.StateTalentFlowWarm,
		domain.EventAppointment:           domain.StateAppointment,
		domain.EventReengagementExhausted: domain.StateSuspect,
	},
	domain.StateAppointment: {
		domain.EventClientSigned:  domain.StateClient,
		domain.EventInactivity30D: domain.StateReengagement,
	},
}

// NextState resolves the target state for an event against the transition
// table. It is a pure function: the caller enforces cooldowns, locks, and
// persistence.
//
// EVENT_UNSUBSCRIBE and EVENT_HARD_BOUNCE are valid from every non-terminal
// state. EVENT_MANUAL_OVERRIDE must be resolved through Override since it
// carries an explicit target.
func NextState(current domain.LifecycleState, event domain.EventType) (domain.LifecycleState, error) {
	if current.Terminal() {
		return "", fmt.Errorf("%w: %s", domain.ErrTerminalState, current)
	}

	switch event {
	case domain.EventUnsubscribe:
		return domain.StateUnsubscribed, nil
	case domain.EventHardBounce:
		return domain.StateDisqualified, nil
	case domain.EventManualOverride:
		return "", fmt.Errorf("%w: manual override requires an explicit target state", domain.ErrInvalidTransition)
	}

	next, ok := transitions[current][event]
	if !ok {
		return "", fmt.Errorf("%w: %s + %s", domain.ErrInvalidTransition, current, event)
	}

	return next, nil
}

// Override resolves a manual override to an explicit target state,
// bypassing the transition table. Overrides out of CLIENT are rejected;
// a signed client never moves without a dedicated, separately audited path.
func Override(current, target domain.LifecycleState) (domain.LifecycleState, error) {
	if current == domain.StateClient {
		return "", fmt.Errorf("%w: cannot override out of %s", domain.ErrTerminalState, domain.StateClient)
	}
	if !domain.IsValidState(target) {
		return "", fmt.Errorf("%w: unknown target state %q", domain.ErrInvalidTransition, target)
	}

	return target, nil
}

// CanTransition reports whether the table admits the (state, event) pair
func CanTransition(current domain.LifecycleState, event domain.EventType) bool {
	_, err := NextState(current, event)
	return err == nil
}
