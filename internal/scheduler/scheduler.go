// Package scheduler drives segment production for mixarr. A single
// long-lived goroutine plans segments through the pipeline factories in
// strict index order, widening its cooldown after failures, while
// cron-scheduled maintenance jobs keep the disk within budget.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/usercontext"
)

// recentSegmentsKept bounds the rendered-path history carried in memory.
const recentSegmentsKept = 100

// Config holds tuning for the segment scheduler.
type Config struct {
	// TickInterval is how often the steady loop re-evaluates its gates.
	// Default: 2 seconds
	TickInterval time.Duration

	// QueueLowWater is the queue length at which planning resumes.
	// Default: 3
	QueueLowWater int

	// CooldownInitial is the cooldown after the first failure in a streak.
	// Default: 5 seconds
	CooldownInitial time.Duration

	// CooldownAfterPlan is the cooldown after a successful plan.
	// Default: 3 seconds
	CooldownAfterPlan time.Duration

	// CooldownMax caps the failure cooldown.
	// Default: 120 seconds
	CooldownMax time.Duration

	// CooldownFactor widens the cooldown on consecutive failures.
	// Default: 1.5
	CooldownFactor float64

	// BootstrapRetryDelay is the sleep between failed bootstrap attempts.
	// Default: 30 seconds
	BootstrapRetryDelay time.Duration

	// SessionMode selects continuous play or a fixed segment count.
	// Default: continuous
	SessionMode models.SessionMode

	// MaxSegments stops the session after this many segments when the mode
	// is one_shot. Zero means unbounded.
	MaxSegments int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:        2 * time.Second,
		QueueLowWater:       3,
		CooldownInitial:     5 * time.Second,
		CooldownAfterPlan:   3 * time.Second,
		CooldownMax:         120 * time.Second,
		CooldownFactor:      1.5,
		BootstrapRetryDelay: 30 * time.Second,
		SessionMode:         models.SessionModeContinuous,
	}
}

// Scheduler owns the session lifecycle and the planning loop. It opens a
// session on Start, runs the bootstrap invocation until it lands, then
// plans steady segments whenever the cooldown and queue gates allow.
type Scheduler struct {
	mu sync.Mutex

	bootstrap core.OrchestratorFactory
	steady    core.OrchestratorFactory
	queue     *queue.Queue
	sessions  repository.SessionRepository
	history   repository.PlayHistoryRepository

	logger      *slog.Logger
	cfg         Config
	contextFile string

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	session         *models.Session
	initialLoaded   bool
	segmentsPlanned int
	nextIndex       int
	renderedPaths   []string
	lastPlanAt      time.Time
	cooldown        time.Duration
	urgent          bool
	nudge           chan struct{}
}

// NewScheduler creates a segment scheduler over the two pipeline factories.
func NewScheduler(
	bootstrap core.OrchestratorFactory,
	steady core.OrchestratorFactory,
	q *queue.Queue,
	sessions repository.SessionRepository,
	history repository.PlayHistoryRepository,
) *Scheduler {
	return &Scheduler{
		bootstrap: bootstrap,
		steady:    steady,
		queue:     q,
		sessions:  sessions,
		history:   history,
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
		nudge:     make(chan struct{}, 1),
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the scheduler.
func (s *Scheduler) WithConfig(cfg Config) *Scheduler {
	if cfg.TickInterval > 0 {
		s.cfg.TickInterval = cfg.TickInterval
	}
	if cfg.QueueLowWater > 0 {
		s.cfg.QueueLowWater = cfg.QueueLowWater
	}
	if cfg.CooldownInitial > 0 {
		s.cfg.CooldownInitial = cfg.CooldownInitial
	}
	if cfg.CooldownAfterPlan > 0 {
		s.cfg.CooldownAfterPlan = cfg.CooldownAfterPlan
	}
	if cfg.CooldownMax > 0 {
		s.cfg.CooldownMax = cfg.CooldownMax
	}
	if cfg.CooldownFactor > 1 {
		s.cfg.CooldownFactor = cfg.CooldownFactor
	}
	if cfg.BootstrapRetryDelay > 0 {
		s.cfg.BootstrapRetryDelay = cfg.BootstrapRetryDelay
	}
	if cfg.SessionMode != "" {
		s.cfg.SessionMode = cfg.SessionMode
	}
	if cfg.MaxSegments > 0 {
		s.cfg.MaxSegments = cfg.MaxSegments
	}
	return s
}

// WithContextFile sets the user context file snapshotted into each session.
func (s *Scheduler) WithContextFile(path string) *Scheduler {
	s.contextFile = path
	return s
}

// Start opens a session and begins the planning loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	session, err := s.openSession(ctx)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	s.session = session
	s.initialLoaded = false
	s.segmentsPlanned = 0
	s.nextIndex = 0
	s.renderedPaths = nil
	s.cooldown = s.cfg.CooldownAfterPlan
	s.lastPlanAt = time.Now()
	s.urgent = false

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("segment scheduler started",
		slog.String("session_id", session.ID.String()),
		slog.String("mode", string(session.Mode)),
		slog.Duration("tick_interval", s.cfg.TickInterval),
		slog.Int("queue_low_water", s.cfg.QueueLowWater))

	return nil
}

// Stop halts planning, waits for the in-flight invocation, and ends the
// session. The queue drains naturally; nothing already rendered is lost.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("segment scheduler stopped")
}

// RequestMoreSegments marks the next tick urgent, bypassing both the
// cooldown and the queue-length gate. Called by the transport when the
// consumer is running low.
func (s *Scheduler) RequestMoreSegments() {
	s.mu.Lock()
	s.urgent = true
	s.mu.Unlock()

	select {
	case s.nudge <- struct{}{}:
	default:
	}

	s.logger.Debug("more segments requested")
}

// openSession creates the session row with a snapshot of the user context,
// so later analysis sees exactly what the planner saw.
func (s *Scheduler) openSession(ctx context.Context) (*models.Session, error) {
	snapshot := ""
	if user, err := usercontext.Load(s.contextFile); err != nil {
		s.logger.Warn("failed to load user context for session snapshot",
			slog.String("path", s.contextFile),
			slog.Any("error", err))
	} else {
		snapshot = user.RawText
	}

	session := &models.Session{
		Mode:                s.cfg.SessionMode,
		UserContextSnapshot: snapshot,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// run is the scheduler goroutine: bootstrap until loaded, then steady.
func (s *Scheduler) run() {
	defer s.wg.Done()
	defer s.closeSession()

	if !s.runBootstrap() {
		return
	}
	s.runSteady()
}

// runBootstrap drives the opening invocation until it produces a segment,
// sleeping between failed attempts. Returns false when shut down first.
func (s *Scheduler) runBootstrap() bool {
	for {
		if s.ctx.Err() != nil {
			return false
		}

		if s.planSegment(true) {
			s.mu.Lock()
			s.initialLoaded = true
			s.mu.Unlock()
			return true
		}

		if s.ctx.Err() != nil {
			return false
		}

		s.logger.Warn("bootstrap segment failed, retrying",
			slog.Duration("retry_in", s.cfg.BootstrapRetryDelay))

		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(s.cfg.BootstrapRetryDelay):
		}
	}
}

// runSteady is the tick loop. A consumed signal or an urgency nudge wakes
// it between ticks so the queue refills without waiting out the interval.
func (s *Scheduler) runSteady() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if s.quotaReached() {
			s.logger.Info("segment quota reached, ending session",
				slog.Int("segments", s.cfg.MaxSegments))
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.queue.Consumed():
		case <-s.nudge:
		}

		if s.quotaReached() {
			s.logger.Info("segment quota reached, ending session",
				slog.Int("segments", s.cfg.MaxSegments))
			return
		}

		if !s.shouldPlan() {
			continue
		}

		s.planSegment(false)
	}
}

// quotaReached reports whether a one_shot session has produced its fill.
func (s *Scheduler) quotaReached() bool {
	if s.cfg.MaxSegments <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmentsPlanned >= s.cfg.MaxSegments
}

// shouldPlan evaluates the planning gates: the cooldown must have elapsed
// and the queue must sit below the low-water mark. Urgency bypasses both.
func (s *Scheduler) shouldPlan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	urgent := s.urgent
	due := time.Since(s.lastPlanAt) >= s.cooldown
	room := s.queue.Len() < s.cfg.QueueLowWater

	return (due || urgent) && (room || urgent)
}

// planSegment runs one graph invocation and settles the cooldown from its
// outcome. Returns true when a segment was produced.
func (s *Scheduler) planSegment(bootstrap bool) bool {
	s.mu.Lock()
	s.urgent = false
	index := s.nextIndex
	session := s.session
	s.mu.Unlock()

	factory := s.steady
	if bootstrap {
		factory = s.bootstrap
	}

	orch, err := factory.Create(session, index)
	if err != nil {
		s.logger.Error("failed to build graph invocation",
			slog.Int("segment_index", index),
			slog.Any("error", err))
		s.recordFailure()
		return false
	}

	result, err := orch.Execute(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			// Shutdown, not a planning failure.
			return false
		}
		cooldown := s.recordFailure()
		s.logger.Warn("segment planning failed",
			slog.Int("segment_index", index),
			slog.String("failure_kind", string(result.FailureKind)),
			slog.Duration("cooldown", cooldown))
		return false
	}

	s.recordSuccess(result)
	s.logger.Info("segment planned",
		slog.Int("segment_index", index),
		slog.String("segment_name", result.SegmentName),
		slog.Float64("duration_sec", result.DurationSec),
		slog.Int("queue_length", s.queue.Len()))
	return true
}

// recordSuccess advances the index and resets the cooldown.
func (s *Scheduler) recordSuccess(result *core.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.segmentsPlanned++
	s.nextIndex++
	s.renderedPaths = append(s.renderedPaths, result.SegmentPath)
	if len(s.renderedPaths) > recentSegmentsKept {
		s.renderedPaths = s.renderedPaths[len(s.renderedPaths)-recentSegmentsKept:]
	}
	s.cooldown = s.cfg.CooldownAfterPlan
	s.lastPlanAt = time.Now()
}

// recordFailure widens the cooldown: the first failure in a streak jumps to
// the initial failure cooldown, consecutive ones multiply up to the cap.
// Returns the new cooldown.
func (s *Scheduler) recordFailure() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cooldown < s.cfg.CooldownInitial {
		s.cooldown = s.cfg.CooldownInitial
	} else {
		widened := time.Duration(float64(s.cooldown) * s.cfg.CooldownFactor)
		if widened > s.cfg.CooldownMax {
			widened = s.cfg.CooldownMax
		}
		s.cooldown = widened
	}
	s.lastPlanAt = time.Now()
	return s.cooldown
}

// closeSession stamps open play history and the session row on the way out.
// The run context is already canceled by then, so it uses a short deadline
// of its own.
func (s *Scheduler) closeSession() {
	s.mu.Lock()
	session := s.session
	segments := s.segmentsPlanned
	s.mu.Unlock()

	if session == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.history != nil {
		if err := s.history.CloseOpen(ctx, session.ID); err != nil {
			s.logger.Warn("failed to close open play history",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err))
		}
	}

	if err := s.sessions.End(ctx, session.ID); err != nil {
		s.logger.Warn("failed to end session",
			slog.String("session_id", session.ID.String()),
			slog.Any("error", err))
		return
	}

	s.logger.Info("session ended",
		slog.String("session_id", session.ID.String()),
		slog.Int("segments_planned", segments))
}

// Status reports the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:         s.ctx != nil && s.ctx.Err() == nil,
		Mode:            s.cfg.SessionMode,
		InitialLoaded:   s.initialLoaded,
		SegmentsPlanned: s.segmentsPlanned,
		Cooldown:        s.cooldown,
		Urgent:          s.urgent,
	}
	if s.session != nil {
		status.SessionID = s.session.ID.String()
	}
	if s.queue != nil {
		status.QueueLength = s.queue.Len()
	}
	if len(s.renderedPaths) > 0 {
		status.LastSegmentPath = s.renderedPaths[len(s.renderedPaths)-1]
	}
	return status
}

// RecentSegments returns the paths of recently rendered segments, oldest
// first.
func (s *Scheduler) RecentSegments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, len(s.renderedPaths))
	copy(paths, s.renderedPaths)
	return paths
}

// Status represents the current state of the segment scheduler.
type Status struct {
	Running         bool               `json:"running"`
	SessionID       string             `json:"session_id,omitempty"`
	Mode            models.SessionMode `json:"mode"`
	InitialLoaded   bool               `json:"initial_loaded"`
	SegmentsPlanned int                `json:"segments_planned"`
	QueueLength     int                `json:"queue_length"`
	Cooldown        time.Duration      `json:"cooldown"`
	Urgent          bool               `json:"urgent"`
	LastSegmentPath string             `json:"last_segment_path,omitempty"`
}
