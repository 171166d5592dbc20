package core

import (
	"log/slog"
	"net/http"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/storage"
)

// Builder provides a fluent interface for assembling the stage dependency
// bundle. Build validates that everything the graph cannot run without is
// present; optional capabilities (artwork, archive, notifier) may stay nil.
type Builder struct {
	deps Dependencies
}

// NewBuilder creates a new dependency Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithTrackRepository sets the track repository.
func (b *Builder) WithTrackRepository(repo repository.TrackRepository) *Builder {
	b.deps.TrackRepo = repo
	return b
}

// WithFeaturesRepository sets the track features repository.
func (b *Builder) WithFeaturesRepository(repo repository.TrackFeaturesRepository) *Builder {
	b.deps.FeatureRepo = repo
	return b
}

// WithLyricsRepository sets the lyrics analysis repository.
func (b *Builder) WithLyricsRepository(repo repository.LyricsAnalysisRepository) *Builder {
	b.deps.LyricsRepo = repo
	return b
}

// WithHistoryRepository sets the play history repository.
func (b *Builder) WithHistoryRepository(repo repository.PlayHistoryRepository) *Builder {
	b.deps.HistoryRepo = repo
	return b
}

// WithSegmentRepository sets the segment repository.
func (b *Builder) WithSegmentRepository(repo repository.SegmentRepository) *Builder {
	b.deps.SegmentRepo = repo
	return b
}

// WithTraceRepository sets the planner trace repository.
func (b *Builder) WithTraceRepository(repo repository.PlannerTraceRepository) *Builder {
	b.deps.TraceRepo = repo
	return b
}

// WithMetadataProvider sets the metadata catalog provider.
func (b *Builder) WithMetadataProvider(p provider.MetadataProvider) *Builder {
	b.deps.Metadata = p
	return b
}

// WithPlanner sets the LLM planner.
func (b *Builder) WithPlanner(p *provider.Planner) *Builder {
	b.deps.Planner = p
	return b
}

// WithVoice sets the voice synthesizer.
func (b *Builder) WithVoice(v provider.VoiceSynthesizer) *Builder {
	b.deps.Voice = v
	return b
}

// WithCache sets the audio cache manager.
func (b *Builder) WithCache(c *cache.Manager) *Builder {
	b.deps.Cache = c
	return b
}

// WithSegmentStore sets the segment store.
func (b *Builder) WithSegmentStore(s *storage.SegmentStore) *Builder {
	b.deps.Store = s
	return b
}

// WithArtCache sets the cover art cache and its download client.
func (b *Builder) WithArtCache(art *storage.ArtCache, client *http.Client) *Builder {
	b.deps.Art = art
	b.deps.ArtClient = client
	return b
}

// WithArchive sets the archive sandbox.
func (b *Builder) WithArchive(archive *storage.Sandbox) *Builder {
	b.deps.Archive = archive
	return b
}

// WithExecutor sets the ffmpeg executor.
func (b *Builder) WithExecutor(e *ffmpeg.Executor) *Builder {
	b.deps.Executor = e
	return b
}

// WithQueue sets the segment queue.
func (b *Builder) WithQueue(q *queue.Queue) *Builder {
	b.deps.Queue = q
	return b
}

// WithNotifier sets the event notifier.
func (b *Builder) WithNotifier(n *events.Notifier) *Builder {
	b.deps.Notifier = n
	return b
}

// WithAudioConfig sets the render tuning knobs.
func (b *Builder) WithAudioConfig(audio config.AudioConfig) *Builder {
	b.deps.Audio = audio
	return b
}

// WithContextFile sets the listener profile path.
func (b *Builder) WithContextFile(path string) *Builder {
	b.deps.ContextFile = path
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.deps.Logger = logger
	return b
}

// Build validates the configured dependencies and returns the bundle.
func (b *Builder) Build() (*Dependencies, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	deps := b.deps
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &deps, nil
}

// validate checks that all required dependencies are set.
func (b *Builder) validate() error {
	if b.deps.TrackRepo == nil {
		return NewConfigurationError("trackRepo", "track repository is required")
	}
	if b.deps.FeatureRepo == nil {
		return NewConfigurationError("featureRepo", "track features repository is required")
	}
	if b.deps.LyricsRepo == nil {
		return NewConfigurationError("lyricsRepo", "lyrics analysis repository is required")
	}
	if b.deps.HistoryRepo == nil {
		return NewConfigurationError("historyRepo", "play history repository is required")
	}
	if b.deps.SegmentRepo == nil {
		return NewConfigurationError("segmentRepo", "segment repository is required")
	}
	if b.deps.TraceRepo == nil {
		return NewConfigurationError("traceRepo", "planner trace repository is required")
	}
	if b.deps.Metadata == nil {
		return NewConfigurationError("metadata", "metadata provider is required")
	}
	if b.deps.Planner == nil {
		return NewConfigurationError("planner", "planner is required")
	}
	if b.deps.Voice == nil {
		return NewConfigurationError("voice", "voice synthesizer is required")
	}
	if b.deps.Cache == nil {
		return NewConfigurationError("cache", "cache manager is required")
	}
	if b.deps.Store == nil {
		return NewConfigurationError("store", "segment store is required")
	}
	if b.deps.Executor == nil {
		return NewConfigurationError("executor", "ffmpeg executor is required")
	}
	if b.deps.Queue == nil {
		return NewConfigurationError("queue", "segment queue is required")
	}
	return nil
}
