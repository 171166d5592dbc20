package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/jmylchreest/mixarr/pkg/format"
)

// Default schedules for the housekeeping jobs.
const (
	// CacheSweepSchedule is how often the audio cache budget is enforced.
	CacheSweepSchedule = "@every 15m"

	// StaleCleanupSchedule is how often abandoned render scratch
	// directories are removed.
	StaleCleanupSchedule = "@every 1h"

	// StatsSchedule is how often the stats snapshot is logged.
	StatsSchedule = "@every 10m"

	// maintenanceJobTimeout bounds a single job run.
	maintenanceJobTimeout = 10 * time.Minute
)

// Job is one housekeeping task. It returns a short result summary for the
// completion log.
type Job func(ctx context.Context) (string, error)

// Maintenance runs named housekeeping jobs on cron schedules. Jobs are
// registered before Start; a slow job never overlaps itself.
type Maintenance struct {
	mu sync.Mutex

	cron    *cron.Cron
	jobs    map[string]Job
	entries map[string]cron.EntryID
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMaintenance creates an empty maintenance runner.
func NewMaintenance() *Maintenance {
	m := &Maintenance{
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		logger:  slog.Default(),
	}
	m.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{m}),
		cron.SkipIfStillRunning(cronLogger{m}),
	))
	return m
}

// WithLogger sets a custom logger.
func (m *Maintenance) WithLogger(logger *slog.Logger) *Maintenance {
	m.logger = logger
	return m
}

// Register adds a job under the given schedule. Standard five-field cron
// expressions and descriptors like "@every 15m" are both accepted.
func (m *Maintenance) Register(name, schedule string, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("maintenance job %q already registered", name)
	}

	id, err := m.cron.AddFunc(schedule, func() { m.runJob(name) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}

	m.jobs[name] = job
	m.entries[name] = id

	m.logger.Debug("registered maintenance job",
		slog.String("job", name),
		slog.String("schedule", format.CronDescription(schedule)))
	return nil
}

// Start begins running registered jobs on their schedules.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("maintenance already started")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cron.Start()

	m.logger.Info("maintenance jobs started", slog.Int("jobs", len(m.jobs)))
	return nil
}

// Stop halts scheduling and waits for any running job to finish.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	<-m.cron.Stop().Done()

	m.mu.Lock()
	m.ctx = nil
	m.cancel = nil
	m.mu.Unlock()

	m.logger.Info("maintenance jobs stopped")
}

// RunNow executes a registered job immediately, outside its schedule.
func (m *Maintenance) RunNow(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	job := m.jobs[name]
	m.mu.Unlock()

	if job == nil {
		return "", fmt.Errorf("no maintenance job named %q", name)
	}
	return job(ctx)
}

// EntryCount returns the number of scheduled jobs.
func (m *Maintenance) EntryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// runJob executes one scheduled job with a bounded context and logs the
// outcome.
func (m *Maintenance) runJob(name string) {
	m.mu.Lock()
	job := m.jobs[name]
	base := m.ctx
	m.mu.Unlock()

	if job == nil || base == nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, maintenanceJobTimeout)
	defer cancel()

	start := time.Now()
	result, err := job(ctx)
	if err != nil {
		m.logger.Error("maintenance job failed",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return
	}

	m.logger.Info("maintenance job completed",
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
		slog.String("result", result))
}

// CacheSweepJob returns a job that evicts cached audio down to the byte
// budget.
func CacheSweepJob(manager *cache.Manager) Job {
	return func(ctx context.Context) (string, error) {
		evicted, freed, err := manager.EnforceBudget(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("evicted %d tracks (%s)", evicted, format.Bytes(freed)), nil
	}
}

// StaleCleanupJob returns a job that removes render scratch directories
// left behind by interrupted invocations.
func StaleCleanupJob(store *storage.SegmentStore, maxAge time.Duration) Job {
	return func(_ context.Context) (string, error) {
		removed, err := store.CleanupStale(maxAge)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("removed %d stale work dirs", removed), nil
	}
}

// cronLogger adapts the maintenance logger to the cron logger interface.
// The cron library only speaks up for recovered panics and skipped runs.
type cronLogger struct {
	m *Maintenance
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.m.logger.Debug(msg, slog.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.m.logger.Error(msg, slog.Any("error", err), slog.Any("details", keysAndValues))
}
