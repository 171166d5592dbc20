package ffmpeg

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a point-in-time resource snapshot of a render process.
type ProcessStats struct {
	PID int `json:"pid"`

	CPUPercent float64       `json:"cpu_percent"`
	CPUUser    time.Duration `json:"cpu_user"`
	CPUSystem  time.Duration `json:"cpu_system"`

	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	MemoryVMSBytes uint64  `json:"memory_vms_bytes"`
	MemoryPercent  float64 `json:"memory_percent"`

	NumThreads int32 `json:"num_threads"`

	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime"`
	SampledAt time.Time     `json:"sampled_at"`
}

// ProcessMonitor samples resource usage of a running ffmpeg process on
// a fixed interval. A long crossfade render that leaks memory or spins
// a core shows up here before it threatens the segment deadline.
type ProcessMonitor struct {
	pid       int
	proc      *process.Process
	startedAt time.Time
	interval  time.Duration

	mu    sync.RWMutex
	stats ProcessStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given PID. The process
// may exit at any time; samples after exit are silently skipped.
func NewProcessMonitor(pid int) *ProcessMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	// NewProcess fails only when the PID is already gone.
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		proc = nil
	}

	return &ProcessMonitor{
		pid:       pid,
		proc:      proc,
		startedAt: time.Now(),
		interval:  time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetInterval sets the sampling interval. Call before Start.
func (pm *ProcessMonitor) SetInterval(d time.Duration) {
	pm.mu.Lock()
	pm.interval = d
	pm.mu.Unlock()
}

// Start begins sampling in a background goroutine.
func (pm *ProcessMonitor) Start() {
	pm.mu.RLock()
	interval := pm.interval
	pm.mu.RUnlock()

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		pm.sample()
		for {
			select {
			case <-pm.ctx.Done():
				return
			case <-ticker.C:
				pm.sample()
			}
		}
	}()
}

// Stop ends sampling and waits for the background goroutine.
func (pm *ProcessMonitor) Stop() {
	pm.cancel()
	pm.wg.Wait()
}

// Stats returns the most recent snapshot.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.stats
}

func (pm *ProcessMonitor) sample() {
	if pm.proc == nil {
		return
	}

	now := time.Now()
	snap := ProcessStats{
		PID:       pm.pid,
		StartedAt: pm.startedAt,
		Uptime:    now.Sub(pm.startedAt),
		SampledAt: now,
	}

	// Percent(0) measures CPU since the previous call, which lines up
	// with the ticker interval.
	if pct, err := pm.proc.Percent(0); err == nil {
		snap.CPUPercent = pct
	} else {
		// Process exited; keep the last snapshot intact.
		return
	}

	if times, err := pm.proc.Times(); err == nil {
		snap.CPUUser = time.Duration(times.User * float64(time.Second))
		snap.CPUSystem = time.Duration(times.System * float64(time.Second))
	}

	if mi, err := pm.proc.MemoryInfo(); err == nil {
		snap.MemoryRSSBytes = mi.RSS
		snap.MemoryVMSBytes = mi.VMS
	}
	if pct, err := pm.proc.MemoryPercent(); err == nil {
		snap.MemoryPercent = float64(pct)
	}
	if threads, err := pm.proc.NumThreads(); err == nil {
		snap.NumThreads = threads
	}

	pm.mu.Lock()
	pm.stats = snap
	pm.mu.Unlock()
}
