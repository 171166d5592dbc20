package daemon

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	v3process "github.com/shirou/gopsutil/v3/process"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/scheduler"
	"github.com/jmylchreest/mixarr/pkg/format"
)

// Snapshot is one runtime stats sample: host load, this process and its
// render children, and the daemon's own queue and cache fill.
type Snapshot struct {
	Hostname  string    `json:"hostname"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	Timestamp time.Time `json:"timestamp"`

	UptimeSeconds     int64   `json:"uptime_seconds"`
	HostUptimeSeconds int64   `json:"host_uptime_seconds"`
	CPUPercent        float64 `json:"cpu_percent"`
	LoadAvg1m         float64 `json:"load_avg_1m"`
	LoadAvg5m         float64 `json:"load_avg_5m"`
	LoadAvg15m        float64 `json:"load_avg_15m"`

	MemoryTotalBytes uint64  `json:"memory_total_bytes"`
	MemoryUsedBytes  uint64  `json:"memory_used_bytes"`
	MemoryPercent    float64 `json:"memory_percent"`

	DiskTotalBytes uint64  `json:"disk_total_bytes"`
	DiskFreeBytes  uint64  `json:"disk_free_bytes"`
	DiskPercent    float64 `json:"disk_percent"`

	ProcessRSSBytes  uint64 `json:"process_rss_bytes"`
	ChildProcesses   int    `json:"child_processes"`
	ChildrenRSSBytes uint64 `json:"children_rss_bytes"`

	QueueLength   int `json:"queue_length"`
	QueueCapacity int `json:"queue_capacity"`

	CacheUsedBytes  int64 `json:"cache_used_bytes"`
	CacheLimitBytes int64 `json:"cache_limit_bytes"`
	CachedTracks    int   `json:"cached_tracks"`
}

// StatsCollector samples host and process statistics together with the
// daemon's queue depth and cache fill. Individual probes that fail leave
// their fields zero rather than failing the sample.
type StatsCollector struct {
	hostname  string
	startTime time.Time
	dataDir   string

	queue *queue.Queue
	cache *cache.Manager
}

// NewStatsCollector creates a stats collector. dataDir is the storage
// root whose disk usage is reported.
func NewStatsCollector(q *queue.Queue, cacheMgr *cache.Manager, dataDir string) *StatsCollector {
	hostname, _ := os.Hostname()
	return &StatsCollector{
		hostname:  hostname,
		startTime: time.Now(),
		dataDir:   dataDir,
		queue:     q,
		cache:     cacheMgr,
	}
}

// Collect gathers one snapshot.
func (c *StatsCollector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Hostname:      c.hostname,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		snap.HostUptimeSeconds = int64(uptime)
	}

	if cpuPercents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercents) > 0 {
		snap.CPUPercent = cpuPercents[0]
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil {
		snap.LoadAvg1m = loadAvg.Load1
		snap.LoadAvg5m = loadAvg.Load5
		snap.LoadAvg15m = loadAvg.Load15
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryTotalBytes = memInfo.Total
		snap.MemoryUsedBytes = memInfo.Used
		snap.MemoryPercent = memInfo.UsedPercent
	}

	if c.dataDir != "" {
		if diskInfo, err := disk.UsageWithContext(ctx, c.dataDir); err == nil {
			snap.DiskTotalBytes = diskInfo.Total
			snap.DiskFreeBytes = diskInfo.Free
			snap.DiskPercent = diskInfo.UsedPercent
		}
	}

	c.collectProcess(snap)

	if c.queue != nil {
		snap.QueueLength = c.queue.Len()
		snap.QueueCapacity = c.queue.Capacity()
	}

	if c.cache != nil {
		if stats, err := c.cache.Stats(ctx); err == nil && stats != nil {
			snap.CacheUsedBytes = stats.UsedBytes
			snap.CacheLimitBytes = stats.LimitBytes
			snap.CachedTracks = stats.CachedTracks
		}
	}

	return snap
}

// collectProcess samples this process and its children. Render and
// download children (ffmpeg, yt-dlp) dominate the tree's footprint, so
// they are reported separately from the daemon itself.
func (c *StatsCollector) collectProcess(snap *Snapshot) {
	proc, err := v3process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		snap.ProcessRSSBytes = memInfo.RSS
	}

	children, err := proc.Children()
	if err != nil {
		return
	}
	snap.ChildProcesses = len(children)
	for _, child := range children {
		if childMem, err := child.MemoryInfo(); err == nil && childMem != nil {
			snap.ChildrenRSSBytes += childMem.RSS
		}
	}
}

// Summary renders the snapshot as a one-line log message.
func (s *Snapshot) Summary() string {
	return fmt.Sprintf("queue %d/%d, cache %s/%s (%d tracks), cpu %s, mem %s, rss %s (+%d children)",
		s.QueueLength, s.QueueCapacity,
		format.Bytes(s.CacheUsedBytes), format.Bytes(s.CacheLimitBytes), s.CachedTracks,
		format.Percentage(s.CPUPercent, 1),
		format.Percentage(s.MemoryPercent, 1),
		format.Bytes(int64(s.ProcessRSSBytes)), s.ChildProcesses)
}

// StatsSnapshotJob returns a maintenance job that samples runtime stats
// and reports the summary line.
func StatsSnapshotJob(collector *StatsCollector) scheduler.Job {
	return func(ctx context.Context) (string, error) {
		return collector.Collect(ctx).Summary(), nil
	}
}
