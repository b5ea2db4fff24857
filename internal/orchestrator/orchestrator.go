// Package orchestrator serializes movement evaluation per contact: events
// accumulate in a short window, the window closes, and at most one
// transition attempt is made against the lifecycle automaton.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/lifecycle"
	"github.com/funnelworks/movement-engine/internal/logger"
	"github.com/funnelworks/movement-engine/internal/messaging"
	"github.com/funnelworks/movement-engine/internal/notify"
	"github.com/funnelworks/movement-engine/internal/rules"
	"github.com/funnelworks/movement-engine/internal/scoring"
	"github.com/funnelworks/movement-engine/internal/store"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// Config holds the orchestrator's tuning knobs
type Config struct {
	// Shards is the number of contact-keyed worker goroutines
	Shards int
	// AccumulationWindow is how long a contact's first event waits for
	// companions before evaluation
	AccumulationWindow time.Duration
	// Cooldown is the minimum gap between transitions for one contact
	Cooldown time.Duration
	// PromotionLock blocks demotions after a recent promotion
	PromotionLock time.Duration
	// DemotionLock blocks promotions after a recent demotion
	DemotionLock time.Duration
	// RequeueDelay is how long deferred events wait when a contact is locked
	RequeueDelay time.Duration
	// MaxRequeues bounds locked-contact deferrals before events are dropped
	MaxRequeues int
	// PersistMaxElapsed bounds the exponential-backoff retry of the
	// transition write before the contact is locked
	PersistMaxElapsed time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Shards:             16,
		AccumulationWindow: 4 * time.Hour,
		Cooldown:           24 * time.Hour,
		PromotionLock:      7 * 24 * time.Hour,
		DemotionLock:       3 * 24 * time.Hour,
		RequeueDelay:       5 * time.Minute,
		MaxRequeues:        3,
		PersistMaxElapsed:  2 * time.Minute,
	}
}

// Orchestrator owns contact movement. It is the only writer of contact
// state; everything else feeds it events.
type Orchestrator struct {
	cfg       Config
	rules     *rules.Evaluator
	store     store.Store
	scorer    *scoring.Engine
	clock     adapter.Clock
	notifier  *notify.Notifier
	publisher messaging.Publisher
	json      adapter.JSON

	shards []*shard
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// shard serializes all processing for its slice of the contact space
type shard struct {
	events  chan *domain.MovementEvent
	flushes chan string
	windows map[string][]*domain.MovementEvent
	timers  map[string]*time.Timer
}

// New creates an orchestrator. publisher may be nil when transition fan-out
// to the broker is not wanted (tests, tools).
func New(
	cfg Config,
	evaluator *rules.Evaluator,
	st store.Store,
	scorer *scoring.Engine,
	clock adapter.Clock,
	notifier *notify.Notifier,
	publisher messaging.Publisher,
) *Orchestrator {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}

	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{
			events:  make(chan *domain.MovementEvent, 256),
			flushes: make(chan string, 64),
			windows: make(map[string][]*domain.MovementEvent),
			timers:  make(map[string]*time.Timer),
		}
	}

	return &Orchestrator{
		cfg:       cfg,
		rules:     evaluator,
		store:     st,
		scorer:    scorer,
		clock:     clock,
		notifier:  notifier,
		publisher: publisher,
		json:      adapter.NewJSON(),
		shards:    shards,
	}
}

// Start launches the shard workers. It returns immediately.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return errors.New("orchestrator already started")
	}
	o.started = true

	ctx, o.cancel = context.WithCancel(ctx)
	for _, s := range o.shards {
		o.wg.Add(1)
		go o.runShard(ctx, s)
	}

	logger.Info("Movement orchestrator started",
		zap.Int("shards", o.cfg.Shards),
		zap.Duration("accumulationWindow", o.cfg.AccumulationWindow),
	)

	return nil
}

// Stop cancels the workers and waits for in-flight evaluations to finish.
// Events still buffered in open windows are dropped; dedup keys make their
// redelivery safe.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started || o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

// DetectEvent is the fire-and-forget entry point for every collaborator
// (ingest API, sweeper, broker consumer). Malformed events are rejected
// here and never enter the core.
func (o *Orchestrator) DetectEvent(ctx context.Context, event *domain.MovementEvent) error {
	if event == nil || !event.Valid() {
		return fmt.Errorf("%w: malformed movement event", domain.ErrInvalidEvent)
	}

	o.mu.Lock()
	if !o.started || o.stopped {
		o.mu.Unlock()
		return errors.New("orchestrator not running")
	}
	o.mu.Unlock()

	if event.ID == "" {
		event.ID = domain.NewEventID(o.clock.Now())
	}

	s := o.shards[shardFor(event.ContactID, len(o.shards))]
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shardFor(contactID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contactID))
	return int(h.Sum32() % uint32(n))
}

// runShard is the per-shard loop. Everything for a given contact happens
// here, which is what guarantees the single-writer invariant in-process.
func (o *Orchestrator) runShard(ctx context.Context, s *shard) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for _, timer := range s.timers {
				timer.Stop()
			}
			return
		case event := <-s.events:
			o.accumulate(ctx, s, event)
		case contactID := <-s.flushes:
			o.flushWindow(ctx, s, contactID)
		}
	}
}

// accumulate appends an event to the contact's open window, opening one if
// needed. Forced-flush events short-circuit the window.
func (o *Orchestrator) accumulate(ctx context.Context, s *shard, event *domain.MovementEvent) {
	contactID := event.ContactID
	s.windows[contactID] = append(s.windows[contactID], event)

	if event.Type.BypassesAccumulation() {
		if timer, ok := s.timers[contactID]; ok {
			timer.Stop()
		}
		o.flushWindow(ctx, s, contactID)
		return
	}

	if _, open := s.timers[contactID]; !open {
		s.timers[contactID] = time.AfterFunc(o.cfg.AccumulationWindow, func() {
			select {
			case s.flushes <- contactID:
			case <-ctx.Done():
			}
		})
	}
}

// flushWindow closes the contact's accumulation window and evaluates it
func (o *Orchestrator) flushWindow(ctx context.Context, s *shard, contactID string) {
	events := s.windows[contactID]
	delete(s.windows, contactID)
	if timer, ok := s.timers[contactID]; ok {
		timer.Stop()
		delete(s.timers, contactID)
	}
	if len(events) == 0 {
		return
	}

	o.evaluateWindow(ctx, s, contactID, events)
}

// evaluateWindow runs the movement algorithm for one closed window. All
// rejection outcomes are journaled, never returned: callers cannot tell a
// suppressed movement from an applied one, and must not care.
func (o *Orchestrator) evaluateWindow(ctx context.Context, s *shard, contactID string, events []*domain.MovementEvent) {
	now := o.clock.Now().UTC()

	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to load contact"), zap.String("contactID", contactID))
		o.requeue(ctx, s, events)
		return
	}
	if contact == nil {
		logger.WarnCtx(ctx, "Dropping events for unknown contact", zap.String("contactID", contactID), zap.Int("events", len(events)))
		return
	}

	if contact.Locked {
		o.journal(ctx, events, schema.OutcomeRequeued, now, nil)
		o.requeue(ctx, s, events)
		return
	}

	// Dedup and condition re-check
	var survivors []*domain.MovementEvent
	for _, event := range events {
		applied, err := o.store.HasAppliedDedupHash(ctx, contactID, event.DedupHash)
		if err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to check dedup hash"), zap.String("eventID", event.ID))
			o.requeue(ctx, s, []*domain.MovementEvent{event})
			continue
		}
		if applied {
			o.journal(ctx, []*domain.MovementEvent{event}, schema.OutcomeDuplicate, now, nil)
			continue
		}
		if !o.rules.Holds(event, now) {
			o.journal(ctx, []*domain.MovementEvent{event}, schema.OutcomeConditionNotMet, now, nil)
			continue
		}
		survivors = append(survivors, event)
	}
	if len(survivors) == 0 {
		return
	}

	// Highest priority wins; ties go to the earliest detection
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].Type.Priority() != survivors[j].Type.Priority() {
			return survivors[i].Type.Priority() > survivors[j].Type.Priority()
		}
		return survivors[i].DetectedAt.Before(survivors[j].DetectedAt)
	})
	winner, losers := survivors[0], survivors[1:]
	o.journal(ctx, losers, schema.OutcomeOutranked, now, map[string]interface{}{"outranked_by": winner.ID})

	o.attempt(ctx, contact, winner, now)
}

// attempt runs the gates and, if all pass, persists the transition. Each
// window produces at most one attempt.
func (o *Orchestrator) attempt(ctx context.Context, contact *schema.Contact, winner *domain.MovementEvent, now time.Time) {
	// Cooldown
	if !winner.Type.BypassesCooldown() && contact.LastTransitionAt != nil &&
		now.Sub(*contact.LastTransitionAt) < o.cfg.Cooldown {
		o.journal(ctx, []*domain.MovementEvent{winner}, schema.OutcomeSuppressedCooldown, now, map[string]interface{}{
			"last_transition_at": contact.LastTransitionAt,
		})
		return
	}

	// Resolve the target state
	var (
		next domain.LifecycleState
		err  error
	)
	switch {
	case winner.Type == domain.EventManualOverride:
		next, err = lifecycle.Override(contact.CurrentState, winner.TargetState)
	case winner.Type == domain.EventReengagementTrigger:
		// A re-engagement trigger is a cycle action, not a table entry: the
		// contact stays in REENGAGEMENT and the cycle counter advances.
		if contact.CurrentState != domain.StateReengagement {
			err = fmt.Errorf("%w: %s + %s", domain.ErrInvalidTransition, contact.CurrentState, winner.Type)
		} else {
			next = domain.StateReengagement
		}
	default:
		next, err = lifecycle.NextState(contact.CurrentState, winner.Type)
	}
	if err != nil {
		logger.InfoCtx(ctx, "Transition rejected",
			zap.String("contactID", contact.ID),
			zap.String("state", string(contact.CurrentState)),
			zap.String("eventType", string(winner.Type)),
			zap.Error(err),
		)
		o.journal(ctx, []*domain.MovementEvent{winner}, schema.OutcomeInvalidTransition, now, map[string]interface{}{
			"current_state": contact.CurrentState,
		})
		return
	}

	// Direction lock. Appointment and client moves are exempt in both
	// directions; so are laterals (equal rank).
	promotion := next.Rank() > contact.CurrentState.Rank()
	demotion := next.Rank() >= 0 && next.Rank() < contact.CurrentState.Rank()
	if !directionLockExempt(contact.CurrentState, next) {
		if demotion && contact.LastPromotionAt != nil && now.Sub(*contact.LastPromotionAt) < o.cfg.PromotionLock {
			o.journal(ctx, []*domain.MovementEvent{winner}, schema.OutcomeSuppressedDirection, now, map[string]interface{}{
				"last_promotion_at": contact.LastPromotionAt,
			})
			return
		}
		if promotion && contact.LastDemotionAt != nil && now.Sub(*contact.LastDemotionAt) < o.cfg.DemotionLock {
			o.journal(ctx, []*domain.MovementEvent{winner}, schema.OutcomeSuppressedDirection, now, map[string]interface{}{
				"last_demotion_at": contact.LastDemotionAt,
			})
			return
		}
	}

	o.persist(ctx, contact, winner, next, promotion, demotion, now)
}

// directionLockExempt reports whether the pair sits outside the
// anti-thrashing locks
func directionLockExempt(from, to domain.LifecycleState) bool {
	for _, state := range []domain.LifecycleState{from, to} {
		if state == domain.StateAppointment || state == domain.StateClient {
			return true
		}
	}
	return false
}

// persist writes the transition with bounded exponential backoff. Retry
// exhaustion locks the contact: the in-memory view must never diverge from
// the stored one, and a contact we cannot persist must stop moving.
func (o *Orchestrator) persist(ctx context.Context, contact *schema.Contact, winner *domain.MovementEvent, next domain.LifecycleState, promotion, demotion bool, now time.Time) {
	input := store.ApplyTransitionInput{
		ContactID:        contact.ID,
		ExpectedVersion:  contact.Version,
		FromState:        contact.CurrentState,
		ToState:          next,
		Funnel:           next.Funnel(),
		EventID:          winner.ID,
		EventType:        winner.Type,
		DedupHash:        winner.DedupHash,
		DetectedAt:       winner.DetectedAt,
		AppliedAt:        now,
		BypassedCooldown: winner.Type.BypassesCooldown(),
		Promotion:        promotion,
		Demotion:         demotion,
		TouchEngagement:  isEngagementEvent(winner.Type),
	}

	switch {
	case next == domain.StateReengagement && contact.CurrentState != domain.StateReengagement:
		// Entering re-engagement starts cycle bookkeeping from zero
		zero := 0
		input.ReengagementCycleCount = &zero
		input.ReengagementCycleStartedAt = &now
	case winner.Type == domain.EventReengagementTrigger:
		count := contact.ReengagementCycleCount + 1
		input.ReengagementCycleCount = &count
		input.ReengagementCycleStartedAt = &now
	case contact.CurrentState == domain.StateReengagement && next != domain.StateReengagement:
		// Leaving re-engagement resets the cycle
		zero := 0
		input.ReengagementCycleCount = &zero
	}

	operation := func() error {
		err := o.store.ApplyTransition(ctx, input)
		if err == nil {
			return nil
		}
		// Domain rejections will not heal with retries
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrContactNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = o.cfg.PersistMaxElapsed

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Retrying transition persistence",
			zap.String("contactID", contact.ID),
			zap.Error(err),
			zap.Duration("nextAttempt", next),
		)
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Another writer moved the contact; this window's attempt is over
			logger.WarnCtx(ctx, "Lost transition write race", zap.String("contactID", contact.ID))
			o.journal(ctx, []*domain.MovementEvent{winner}, schema.OutcomeRequeued, now, map[string]interface{}{
				"reason": "version_conflict",
			})
			return
		}

		logger.ErrorCtx(ctx, err, zap.String("message", "Transition persistence exhausted retries"), zap.String("contactID", contact.ID))
		if lockErr := o.store.LockContact(ctx, contact.ID, domain.LockReasonPersistenceFailure); lockErr != nil {
			logger.ErrorCtx(ctx, lockErr, zap.String("message", "Failed to lock contact"), zap.String("contactID", contact.ID))
		}
		if o.notifier != nil {
			o.notifier.Notify(ctx, &notify.Notification{
				Type:      notify.TypeContactLocked,
				ContactID: contact.ID,
				CompanyID: contact.CompanyID,
				Data: map[string]interface{}{
					"reason": string(domain.LockReasonPersistenceFailure),
				},
			})
		}
		return
	}

	record := &domain.TransitionRecord{
		ContactID:        contact.ID,
		FromState:        contact.CurrentState,
		ToState:          next,
		TriggeringEvent:  winner.Type,
		AppliedAt:        now,
		BypassedCooldown: input.BypassedCooldown,
	}

	logger.InfoCtx(ctx, "Transition applied",
		zap.String("contactID", contact.ID),
		zap.String("from", string(record.FromState)),
		zap.String("to", string(record.ToState)),
		zap.String("eventType", string(winner.Type)),
	)

	// Engagement refreshes the company's scoring recency anchor
	if isEngagementEvent(winner.Type) && o.scorer != nil && contact.CompanyID != "" {
		if err := o.scorer.TouchEngagement(ctx, contact.CompanyID, now); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to touch company engagement"), zap.String("companyID", contact.CompanyID))
		}
	}

	if o.publisher != nil {
		if err := o.publisher.PublishTransition(ctx, record); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to publish transition"), zap.String("contactID", contact.ID))
		}
	}

	if o.notifier != nil {
		notificationType := notify.TypeTransitionApplied
		if winner.Type == domain.EventReengagementExhausted {
			notificationType = notify.TypeReengagementExhausted
		}
		o.notifier.Notify(ctx, &notify.Notification{
			Type:      notificationType,
			ContactID: contact.ID,
			CompanyID: contact.CompanyID,
			Data: map[string]interface{}{
				"from_state": string(record.FromState),
				"to_state":   string(record.ToState),
				"event_type": string(winner.Type),
				"event_id":   winner.ID,
			},
		})
	}
}

// isEngagementEvent reports whether the event represents the contact
// actively engaging, which resets inactivity and scoring decay anchors
func isEngagementEvent(t domain.EventType) bool {
	switch t {
	case domain.EventReply, domain.EventOpensX3, domain.EventClicksX2,
		domain.EventAppointment, domain.EventClientSigned:
		return true
	}
	return false
}

// requeue re-enqueues deferred events after a delay, bounding how many
// times a single event may be deferred
func (o *Orchestrator) requeue(ctx context.Context, s *shard, events []*domain.MovementEvent) {
	for _, event := range events {
		count := requeueCount(event) + 1
		if count > o.cfg.MaxRequeues {
			logger.WarnCtx(ctx, "Dropping event after repeated deferrals",
				zap.String("eventID", event.ID),
				zap.String("contactID", event.ContactID),
			)
			continue
		}
		if event.Metadata == nil {
			event.Metadata = map[string]interface{}{}
		}
		event.Metadata["requeue_count"] = count

		deferred := event
		time.AfterFunc(o.cfg.RequeueDelay, func() {
			select {
			case s.events <- deferred:
			case <-ctx.Done():
			}
		})
	}
}

func requeueCount(event *domain.MovementEvent) int {
	if event.Metadata == nil {
		return 0
	}
	switch v := event.Metadata["requeue_count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// journal records dispositions for a batch of events. Journal failures are
// logged and swallowed: audit must never block movement.
func (o *Orchestrator) journal(ctx context.Context, events []*domain.MovementEvent, outcome schema.EventOutcome, now time.Time, meta map[string]interface{}) {
	if len(events) == 0 {
		return
	}

	entries := make([]schema.EventJournal, 0, len(events))
	for _, event := range events {
		entry := schema.EventJournal{
			ContactID:   event.ContactID,
			EventID:     event.ID,
			EventType:   event.Type,
			DedupHash:   event.DedupHash,
			Outcome:     outcome,
			DetectedAt:  event.DetectedAt,
			EvaluatedAt: now,
		}
		if meta != nil {
			if data, err := o.json.Marshal(meta); err == nil {
				entry.Meta = data
			}
		}
		entries = append(entries, entry)
	}

	if err := o.store.JournalEvents(ctx, entries); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to journal events"), zap.Int("count", len(entries)))
	}
}
