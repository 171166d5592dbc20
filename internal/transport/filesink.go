package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/jmylchreest/mixarr/pkg/m3u"
)

// Config holds tuning for the file sink.
type Config struct {
	// PlaybackRate simulates the listener: each delivered segment is held
	// for its duration divided by this rate before the next is taken.
	// Default: 1.0
	PlaybackRate float64

	// PollInterval is the fallback wake-up while the queue is empty.
	// Default: 1 second
	PollInterval time.Duration

	// KeepSegments caps how many delivered segments stay in the playout
	// directory before the oldest are removed.
	// Default: 12
	KeepSegments int

	// PlaylistName is the M3U playlist maintained over the kept segments.
	// Default: playlist.m3u
	PlaylistName string
}

// DefaultConfig returns the default file sink configuration.
func DefaultConfig() Config {
	return Config{
		PlaybackRate: 1.0,
		PollInterval: time.Second,
		KeepSegments: 12,
		PlaylistName: "playlist.m3u",
	}
}

// FileSink is the reference transport. It links each rendered segment and
// its sidecar into a playout directory, maintains an M3U playlist over the
// kept segments, and holds each one for its playback window so the queue
// drains the way a listener would drain it.
type FileSink struct {
	mu sync.Mutex

	queue    *queue.Queue
	producer Producer
	playout  *storage.Sandbox
	notifier *events.Notifier
	logger   *slog.Logger
	cfg      Config

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *events.Subscriber

	entries     []playoutEntry
	delivered   int
	starvations int
	nowPlaying  string
}

var _ Transport = (*FileSink)(nil)

// playoutEntry is one delivered segment still present in the playout
// directory.
type playoutEntry struct {
	audioName   string
	sidecarName string
	trackID     string
	duration    float64
}

// NewFileSink creates a file sink delivering into playoutDir. The directory
// is created if it does not exist.
func NewFileSink(q *queue.Queue, producer Producer, playoutDir string) (*FileSink, error) {
	sandbox, err := storage.NewSandbox(playoutDir)
	if err != nil {
		return nil, fmt.Errorf("creating playout directory: %w", err)
	}

	return &FileSink{
		queue:    q,
		producer: producer,
		playout:  sandbox,
		logger:   slog.Default(),
		cfg:      DefaultConfig(),
	}, nil
}

// WithLogger sets a custom logger.
func (s *FileSink) WithLogger(logger *slog.Logger) *FileSink {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the file sink.
func (s *FileSink) WithConfig(cfg Config) *FileSink {
	if cfg.PlaybackRate > 0 {
		s.cfg.PlaybackRate = cfg.PlaybackRate
	}
	if cfg.PollInterval > 0 {
		s.cfg.PollInterval = cfg.PollInterval
	}
	if cfg.KeepSegments > 0 {
		s.cfg.KeepSegments = cfg.KeepSegments
	}
	if cfg.PlaylistName != "" {
		s.cfg.PlaylistName = cfg.PlaylistName
	}
	return s
}

// WithNotifier subscribes the sink to segment_ready broadcasts so starvation
// ends the moment a segment lands instead of on the next poll.
func (s *FileSink) WithNotifier(n *events.Notifier) *FileSink {
	s.notifier = n
	return s
}

// Name identifies the transport in logs.
func (s *FileSink) Name() string { return "file_sink" }

// Connect starts the delivery loop.
func (s *FileSink) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("file sink already connected")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if s.notifier != nil {
		s.sub = s.notifier.Subscribe()
	}

	s.wg.Add(1)
	go s.run(s.sub)

	s.logger.Info("file sink connected",
		slog.String("playout_dir", s.playout.BaseDir()),
		slog.Float64("playback_rate", s.cfg.PlaybackRate))
	return nil
}

// Disconnect stops delivery, interrupting the current playback hold, and
// waits for the loop to exit. Segments already in the playout directory stay
// there.
func (s *FileSink) Disconnect() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if s.sub != nil && s.notifier != nil {
		s.notifier.Unsubscribe(s.sub.ID)
	}
	s.sub = nil
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("file sink disconnected")
}

// run is the delivery goroutine: take the head, publish it, hold for its
// playback window, repeat. An empty queue raises the urgency signal and
// waits for a segment_ready broadcast or the next poll.
func (s *FileSink) run(sub *events.Subscriber) {
	defer s.wg.Done()

	var wake <-chan events.Event
	if sub != nil {
		wake = sub.Events
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	starved := false
	for {
		if s.ctx.Err() != nil {
			return
		}

		handle, err := s.queue.ConsumeHead()
		if err != nil {
			if !starved {
				starved = true
				s.recordStarved()
				s.logger.Warn("segment queue empty, playout waiting")
			}
			if s.producer != nil {
				s.producer.RequestMoreSegments()
			}

			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-wake:
				if !ok {
					wake = nil
				}
			}
			continue
		}
		starved = false

		if err := s.deliver(handle); err != nil {
			s.logger.Error("failed to deliver segment",
				slog.Int("segment_index", handle.Index),
				slog.String("segment_path", handle.Path),
				slog.Any("error", err))
			continue
		}

		// The last buffered segment is now playing; refill before it ends.
		if s.producer != nil && s.queue.Len() == 0 {
			s.producer.RequestMoreSegments()
		}

		if !s.hold(s.playbackWindow(handle.Duration)) {
			return
		}
	}
}

// deliver links the segment and its sidecar into the playout directory,
// drops the oldest delivery past the keep limit, and refreshes the playlist.
func (s *FileSink) deliver(h queue.Handle) error {
	audioName := filepath.Base(h.Path)
	if err := s.playout.LinkOrCopy(h.Path, audioName); err != nil {
		return fmt.Errorf("publishing audio: %w", err)
	}

	sidecarName := ""
	if h.SidecarPath != "" {
		sidecarName = filepath.Base(h.SidecarPath)
		if err := s.playout.LinkOrCopy(h.SidecarPath, sidecarName); err != nil {
			s.logger.Warn("failed to publish sidecar",
				slog.String("sidecar_path", h.SidecarPath),
				slog.Any("error", err))
			sidecarName = ""
		}
	}

	s.mu.Lock()
	s.entries = append(s.entries, playoutEntry{
		audioName:   audioName,
		sidecarName: sidecarName,
		trackID:     h.TrackID,
		duration:    h.Duration,
	})
	var pruned []playoutEntry
	for len(s.entries) > s.cfg.KeepSegments {
		pruned = append(pruned, s.entries[0])
		s.entries = s.entries[1:]
	}
	s.nowPlaying = audioName
	kept := make([]playoutEntry, len(s.entries))
	copy(kept, s.entries)
	s.mu.Unlock()

	for _, old := range pruned {
		s.removeEntry(old)
	}

	if err := s.writePlaylist(kept); err != nil {
		s.logger.Warn("failed to refresh playlist", slog.Any("error", err))
	}

	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()

	s.logger.Info("segment delivered",
		slog.Int("segment_index", h.Index),
		slog.String("segment", audioName),
		slog.Float64("duration_sec", h.Duration),
		slog.Int("queue_length", s.queue.Len()))
	return nil
}

// removeEntry deletes a pruned segment's files from the playout directory.
func (s *FileSink) removeEntry(e playoutEntry) {
	if err := s.playout.Remove(e.audioName); err != nil {
		s.logger.Warn("failed to remove played segment",
			slog.String("segment", e.audioName),
			slog.Any("error", err))
	}
	if e.sidecarName == "" {
		return
	}
	if err := s.playout.Remove(e.sidecarName); err != nil {
		s.logger.Warn("failed to remove played sidecar",
			slog.String("sidecar", e.sidecarName),
			slog.Any("error", err))
	}
}

// writePlaylist rewrites the playout playlist to match the kept segments.
func (s *FileSink) writePlaylist(entries []playoutEntry) error {
	var buf bytes.Buffer
	w := m3u.NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		return err
	}

	for _, e := range entries {
		entry := &m3u.Entry{
			Duration: int(math.Round(e.duration)),
			TvgID:    e.trackID,
			Title:    strings.TrimSuffix(e.audioName, filepath.Ext(e.audioName)),
			URL:      e.audioName,
		}
		if err := w.WriteEntry(entry); err != nil {
			return err
		}
	}

	return s.playout.AtomicWrite(s.cfg.PlaylistName, buf.Bytes())
}

// playbackWindow converts a segment duration to wall time at the configured
// playback rate.
func (s *FileSink) playbackWindow(durationSec float64) time.Duration {
	return time.Duration(durationSec / s.cfg.PlaybackRate * float64(time.Second))
}

// hold keeps the current segment in its playback window. Returns false when
// interrupted by shutdown.
func (s *FileSink) hold(d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// recordStarved counts a transition into starvation.
func (s *FileSink) recordStarved() {
	s.mu.Lock()
	s.starvations++
	s.mu.Unlock()
}

// Status reports the current file sink state.
func (s *FileSink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Connected:   s.ctx != nil && s.ctx.Err() == nil,
		Delivered:   s.delivered,
		Starvations: s.starvations,
		NowPlaying:  s.nowPlaying,
		PlayoutDir:  s.playout.BaseDir(),
	}
}

// Status represents the current state of the file sink.
type Status struct {
	Connected   bool   `json:"connected"`
	Delivered   int    `json:"delivered"`
	Starvations int    `json:"starvations"`
	NowPlaying  string `json:"now_playing,omitempty"`
	PlayoutDir  string `json:"playout_dir"`
}
