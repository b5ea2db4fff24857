package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/logger"
	"github.com/funnelworks/movement-engine/internal/rules"
	"github.com/funnelworks/movement-engine/internal/scoring"
	"github.com/funnelworks/movement-engine/internal/store"
)

const (
	SWEEP_CYCLE_INTERVAL = 15 * time.Minute // Time to sleep between sweep cycles
)

// Pass names double as sweep cursor keys
const (
	passInactivity   = "inactivity"
	passReengagement = "reengagement"
	passBITCrossing  = "bit_crossing"
)

// inactivityStates are the states the inactivity pass demotes out of
var inactivityStates = []domain.LifecycleState{
	domain.StateWarm,
	domain.StateTalentFlowWarm,
	domain.StateAppointment,
}

// MovementSweeperConfig holds configuration for the movement sweeper
type MovementSweeperConfig struct {
	BatchSize      int // Contacts/companies per pass per cycle
	WorkerPoolSize int // Concurrent workers
}

// Detector is the downstream the sweeper emits events to; satisfied by the
// orchestrator
//
//go:generate mockgen -source=movement.go -destination=../mocks/detector.go -package=mocks -mock_names=Detector=MockDetector
type Detector interface {
	DetectEvent(ctx context.Context, event *domain.MovementEvent) error
}

// movementSweeper implements the Sweeper interface for time-driven movement:
// 30-day inactivity demotions, re-engagement cycle triggers and exhaustion,
// and BIT threshold crossings picked up by decay-aware rescans.
type movementSweeper struct {
	config    *MovementSweeperConfig
	store     store.Store
	rules     *rules.Evaluator
	scorer    *scoring.Engine
	detector  Detector
	pool      pond.Pool
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewMovementSweeper creates a new movement sweeper
func NewMovementSweeper(
	config *MovementSweeperConfig,
	st store.Store,
	evaluator *rules.Evaluator,
	scorer *scoring.Engine,
	detector Detector,
	clock adapter.Clock,
) Sweeper {
	return &movementSweeper{
		config:    config,
		store:     st,
		rules:     evaluator,
		scorer:    scorer,
		detector:  detector,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *movementSweeper) Name() string {
	return "movement-sweeper"
}

// Start begins the sweeper's main loop - runs cycles until stopped
func (s *movementSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting movement sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)

	// Create worker pool
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Movement sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Movement sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *movementSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *movementSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping movement sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Movement sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Movement sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs the three passes and sleeps until the next cycle
func (s *movementSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()
	logger.InfoCtx(ctx, "Starting sweep cycle")

	var emitted atomic.Int32

	if err := s.runPass(ctx, passInactivity, func() error {
		return s.sweepInactivity(ctx, &emitted)
	}); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("pass", passInactivity))
	}
	if err := s.runPass(ctx, passReengagement, func() error {
		return s.sweepReengagement(ctx, &emitted)
	}); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("pass", passReengagement))
	}
	if err := s.runPass(ctx, passBITCrossing, func() error {
		return s.sweepBITCrossings(ctx, &emitted)
	}); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("pass", passBITCrossing))
	}

	// Wait for all emissions to complete, then recreate the pool for the
	// next cycle
	s.pool.StopAndWait()
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	duration := s.clock.Since(startTime)
	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", duration),
		zap.Int32("events_emitted", emitted.Load()),
	)

	if !s.sleep(ctx, SWEEP_CYCLE_INTERVAL) {
		return ctx.Err() // Context canceled during sleep
	}

	return nil
}

// runPass runs one pass behind its sweep cursor. The cursor records the last
// completed run so restarts and concurrent replicas do not repeat a pass
// within one interval; the orchestrator's dedup keys make repeats harmless
// anyway.
func (s *movementSweeper) runPass(ctx context.Context, name string, pass func() error) error {
	cursor, err := s.store.GetSweepCursor(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read sweep cursor: %w", err)
	}
	if cursor != "" {
		last, err := time.Parse(time.RFC3339Nano, cursor)
		if err == nil && s.clock.Now().Sub(last) < SWEEP_CYCLE_INTERVAL {
			logger.DebugCtx(ctx, "Skipping pass, swept recently", zap.String("pass", name), zap.Time("last", last))
			return nil
		}
	}

	if err := pass(); err != nil {
		return err
	}

	if err := s.store.SetSweepCursor(ctx, name, s.clock.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to advance sweep cursor: %w", err)
	}

	return nil
}

// sweepInactivity demotes contacts that have been engagement-silent past the
// inactivity threshold
func (s *movementSweeper) sweepInactivity(ctx context.Context, emitted *atomic.Int32) error {
	now := s.clock.Now().UTC()
	cutoff := now.AddDate(0, 0, -s.rules.Config().InactivityDays)

	contacts, err := s.store.ListContactsInactiveSince(ctx, inactivityStates, cutoff, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list inactive contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil
	}

	logger.InfoCtx(ctx, "Found inactive contacts", zap.Int("count", len(contacts)))

	for _, contact := range contacts {
		contactID := contact.ID
		s.pool.Submit(func() {
			s.emit(ctx, &domain.MovementEvent{
				Type:       domain.EventInactivity30D,
				ContactID:  contactID,
				DedupHash:  domain.EventDedupHash(contactID, domain.EventInactivity30D, now),
				DetectedAt: now,
			}, emitted)
		})
	}

	return nil
}

// sweepReengagement advances or exhausts re-engagement cycles that are due
func (s *movementSweeper) sweepReengagement(ctx context.Context, emitted *atomic.Int32) error {
	now := s.clock.Now().UTC()

	contacts, err := s.store.ListContactsInState(ctx, domain.StateReengagement, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list re-engagement contacts: %w", err)
	}

	for _, contact := range contacts {
		anchor := contact.ReengagementCycleStartedAt
		if anchor == nil {
			anchor = contact.LastTransitionAt
		}
		if anchor == nil {
			continue
		}

		days := int(now.Sub(*anchor).Hours() / 24)
		decision := s.rules.CheckReengagementCycle(contact.ReengagementCycleCount, days)

		var eventType domain.EventType
		switch {
		case decision.ShouldExhaust:
			eventType = domain.EventReengagementExhausted
		case decision.ShouldTrigger:
			eventType = domain.EventReengagementTrigger
		default:
			continue
		}

		contactID := contact.ID
		s.pool.Submit(func() {
			s.emit(ctx, &domain.MovementEvent{
				Type:       eventType,
				ContactID:  contactID,
				DedupHash:  domain.EventDedupHash(contactID, eventType, now),
				DetectedAt: now,
			}, emitted)
		})
	}

	return nil
}

// sweepBITCrossings promotes SUSPECT contacts of companies whose decayed BIT
// score sits at or above the warm threshold. The impact floor is a safe
// pre-filter since decay only subtracts.
func (s *movementSweeper) sweepBITCrossings(ctx context.Context, emitted *atomic.Int32) error {
	now := s.clock.Now().UTC()
	warm := s.rules.Config().BITWarmThreshold

	companies, err := s.store.GetCompaniesWithImpactAbove(ctx, warm, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list companies above threshold: %w", err)
	}

	for _, company := range companies {
		score, err := s.scorer.Score(ctx, company.ID)
		if err != nil {
			logger.ErrorCtx(ctx, err, zap.String("companyID", company.ID))
			continue
		}
		if score.Score < warm {
			continue
		}

		contacts, err := s.store.ListContactsByCompanyInState(ctx, company.ID, domain.StateSuspect)
		if err != nil {
			logger.ErrorCtx(ctx, err, zap.String("companyID", company.ID))
			continue
		}

		for _, contact := range contacts {
			contactID := contact.ID
			bitScore := score.Score
			s.pool.Submit(func() {
				s.emit(ctx, &domain.MovementEvent{
					Type:       domain.EventBITThreshold,
					ContactID:  contactID,
					DedupHash:  domain.EventDedupHash(contactID, domain.EventBITThreshold, now),
					DetectedAt: now,
					Metadata:   map[string]interface{}{"bit_score": bitScore},
				}, emitted)
			})
		}
	}

	return nil
}

// emit hands one event to the orchestrator. Emission failures are logged and
// left for the next cycle; dedup keys make the retry safe.
func (s *movementSweeper) emit(ctx context.Context, event *domain.MovementEvent, emitted *atomic.Int32) {
	if err := s.detector.DetectEvent(ctx, event); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("contactID", event.ContactID),
			zap.String("eventType", string(event.Type)),
		)
		return
	}

	emitted.Add(1)
	logger.DebugCtx(ctx, "Sweep event emitted",
		zap.String("contactID", event.ContactID),
		zap.String("eventType", string(event.Type)),
	)
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request
func (s *movementSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true // Sleep completed
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
