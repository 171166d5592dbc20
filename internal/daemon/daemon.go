// Package daemon assembles the mixarr process: database and migrations,
// capability providers, storage, the planning pipeline, the segment
// scheduler, maintenance jobs, and the optional file-sink transport.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/mixarr/internal/cache"
	"github.com/jmylchreest/mixarr/internal/config"
	"github.com/jmylchreest/mixarr/internal/database"
	"github.com/jmylchreest/mixarr/internal/database/migrations"
	"github.com/jmylchreest/mixarr/internal/events"
	"github.com/jmylchreest/mixarr/internal/ffmpeg"
	"github.com/jmylchreest/mixarr/internal/ingest"
	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/observability"
	"github.com/jmylchreest/mixarr/internal/pipeline"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/queue"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/scheduler"
	"github.com/jmylchreest/mixarr/internal/storage"
	"github.com/jmylchreest/mixarr/internal/transport"
	"github.com/jmylchreest/mixarr/pkg/httpclient"
)

// Maintenance job names.
const (
	jobCacheSweep = "cache_sweep"
	jobTempSweep  = "temp_sweep"
	jobStats      = "stats_snapshot"
)

// artClientTimeout bounds cover art downloads.
const artClientTimeout = 30 * time.Second

// Daemon is the assembled mixarr process. Build one with New, then drive
// it with Start and Stop.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *database.DB
	queue       *queue.Queue
	notifier    *events.Notifier
	cache       *cache.Manager
	store       *storage.SegmentStore
	scheduler   *scheduler.Scheduler
	maintenance *scheduler.Maintenance
	sink        *transport.FileSink
	stats       *StatsCollector

	trackRepo   repository.TrackRepository
	featureRepo repository.TrackFeaturesRepository
	lyricsRepo  repository.LyricsAnalysisRepository
	metadata    provider.MetadataProvider
}

// New builds the daemon from configuration: it opens the database, runs
// pending migrations, constructs every capability provider (falling back
// to no-op implementations where credentials are missing), and wires the
// planning pipeline, scheduler, and maintenance jobs. Nothing starts
// running until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	migrator := migrations.NewMigrator(db.DB, observability.WithComponent(logger, "migrations"))
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	trackRepo := repository.NewTrackRepository(db.DB)
	featureRepo := repository.NewTrackFeaturesRepository(db.DB)
	lyricsRepo := repository.NewLyricsAnalysisRepository(db.DB)
	historyRepo := repository.NewPlayHistoryRepository(db.DB)
	segmentRepo := repository.NewSegmentRepository(db.DB)
	traceRepo := repository.NewPlannerTraceRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)

	providers := buildProviders(cfg, logger)

	store, err := storage.NewSegmentStore(cfg.Storage.SegmentPath())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating segment store: %w", err)
	}
	art, err := storage.NewArtCache(cfg.Storage.ArtPath())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating art cache: %w", err)
	}
	var archive *storage.Sandbox
	if dir := cfg.Storage.ArchivePath(); dir != "" {
		archive, err = storage.NewSandbox(dir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating archive sandbox: %w", err)
		}
	}

	cacheMgr := cache.NewManager(cfg.Storage.CachePath(), cfg.Cache.MaxBytes.Bytes(), trackRepo, providers.fetcher).
		WithLogger(observability.WithComponent(logger, "cache"))

	executor := ffmpeg.NewExecutor(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath).
		WithSampleRate(cfg.Audio.SampleRate).
		WithBitrate(fmt.Sprintf("%dk", cfg.Audio.BitrateKbps)).
		WithLogDir(cfg.Storage.SegmentPath())

	q := queue.New(cfg.Scheduler.QueueMax)
	notifier := events.NewNotifier(observability.WithComponent(logger, "events"))

	deps := &core.Dependencies{
		TrackRepo:   trackRepo,
		FeatureRepo: featureRepo,
		LyricsRepo:  lyricsRepo,
		HistoryRepo: historyRepo,
		SegmentRepo: segmentRepo,
		TraceRepo:   traceRepo,
		Metadata:    providers.metadata,
		Planner:     providers.planner,
		Voice:       providers.voice,
		Cache:       cacheMgr,
		Store:       store,
		Art:         art,
		Archive:     archive,
		ArtClient:   providers.artClient,
		Executor:    executor,
		Queue:       q,
		Notifier:    notifier,
		Audio:       cfg.Audio,
		ContextFile: cfg.User.ContextFile,
		Logger:      observability.WithComponent(logger, "pipeline"),
	}

	sched := scheduler.NewScheduler(
		pipeline.NewBootstrapFactory(deps),
		pipeline.NewSteadyFactory(deps),
		q, sessionRepo, historyRepo,
	).
		WithLogger(observability.WithComponent(logger, "scheduler")).
		WithConfig(schedulerConfig(cfg.Scheduler)).
		WithContextFile(cfg.User.ContextFile)

	stats := NewStatsCollector(q, cacheMgr, cfg.Storage.BaseDir)

	maint := scheduler.NewMaintenance().
		WithLogger(observability.WithComponent(logger, "maintenance"))
	if err := maint.Register(jobCacheSweep, cfg.Maintenance.CacheSweepCron, scheduler.CacheSweepJob(cacheMgr)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering %s: %w", jobCacheSweep, err)
	}
	if err := maint.Register(jobTempSweep, cfg.Maintenance.TempSweepCron, scheduler.StaleCleanupJob(store, cfg.Maintenance.TempMaxAge)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering %s: %w", jobTempSweep, err)
	}
	if err := maint.Register(jobStats, cfg.Maintenance.StatsCron, StatsSnapshotJob(stats)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering %s: %w", jobStats, err)
	}

	var sink *transport.FileSink
	if cfg.Transport.FileSink {
		sink, err = transport.NewFileSink(q, sched, cfg.Storage.PlayoutPath())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating file sink: %w", err)
		}
		sinkCfg := transport.DefaultConfig()
		if cfg.Transport.PlaybackRate > 0 {
			sinkCfg.PlaybackRate = cfg.Transport.PlaybackRate
		}
		if cfg.Transport.KeepSegments > 0 {
			sinkCfg.KeepSegments = cfg.Transport.KeepSegments
		}
		sink.WithConfig(sinkCfg).
			WithNotifier(notifier).
			WithLogger(observability.WithComponent(logger, "transport"))
	}

	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		queue:       q,
		notifier:    notifier,
		cache:       cacheMgr,
		store:       store,
		scheduler:   sched,
		maintenance: maint,
		sink:        sink,
		stats:       stats,
		trackRepo:   trackRepo,
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		metadata:    providers.metadata,
	}, nil
}

// Start brings the daemon up: maintenance jobs first, then the scheduler,
// then the file sink when enabled.
func (d *Daemon) Start(ctx context.Context) error {
	d.db.StartStatsMonitor(ctx)

	if err := d.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("starting maintenance: %w", err)
	}
	if err := d.scheduler.Start(ctx); err != nil {
		d.maintenance.Stop()
		return fmt.Errorf("starting scheduler: %w", err)
	}
	if d.sink != nil {
		if err := d.sink.Connect(ctx); err != nil {
			d.scheduler.Stop()
			d.maintenance.Stop()
			return fmt.Errorf("connecting file sink: %w", err)
		}
	}

	d.logger.Info("daemon started",
		slog.String("database", d.db.Driver()),
		slog.Int("queue_capacity", d.queue.Capacity()),
		slog.Bool("file_sink", d.sink != nil))
	return nil
}

// Stop tears the daemon down in reverse start order and closes the
// database.
func (d *Daemon) Stop() {
	if d.sink != nil {
		d.sink.Disconnect()
	}
	d.scheduler.Stop()
	d.maintenance.Stop()

	if err := d.db.Close(); err != nil {
		d.logger.Warn("closing database", slog.String("error", err.Error()))
	}
	d.logger.Info("daemon stopped")
}

// Scheduler returns the segment scheduler.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// Queue returns the segment queue.
func (d *Daemon) Queue() *queue.Queue {
	return d.queue
}

// Notifier returns the playback event notifier.
func (d *Daemon) Notifier() *events.Notifier {
	return d.notifier
}

// Stats returns the runtime stats collector.
func (d *Daemon) Stats() *StatsCollector {
	return d.stats
}

// Cache returns the audio cache manager.
func (d *Daemon) Cache() *cache.Manager {
	return d.cache
}

// SeedImporter builds a seed-list importer over the daemon's cache,
// catalog, and metadata provider.
func (d *Daemon) SeedImporter() *ingest.Importer {
	return ingest.NewImporter(d.cache, d.trackRepo).
		WithMetadata(d.metadata, d.featureRepo, d.lyricsRepo).
		WithDelay(d.cfg.Fetcher.SeedDelay).
		WithLogger(observability.WithComponent(d.logger, "ingest"))
}

// capabilities bundles the built providers and their shared HTTP client
// for artwork downloads.
type capabilities struct {
	metadata  provider.MetadataProvider
	planner   *provider.Planner
	voice     provider.VoiceSynthesizer
	fetcher   provider.TrackFetcher
	artClient *http.Client
}

// buildProviders constructs each capability adapter, substituting the
// no-op implementation when its credentials are missing. A missing
// capability degrades the mix rather than blocking startup.
func buildProviders(cfg *config.Config, logger *slog.Logger) capabilities {
	caps := capabilities{
		artClient: serviceClient("artwork", artClientTimeout, logger),
	}

	if cfg.Metadata.APIKey != "" {
		caps.metadata = provider.NewSoundchartsClient(cfg.Metadata.AppID, cfg.Metadata.APIKey).
			WithBaseURL(cfg.Metadata.BaseURL).
			WithHTTPClient(serviceClient("metadata", cfg.Metadata.Timeout, logger))
	} else {
		logger.Info("metadata catalog not configured, enrichment disabled")
		caps.metadata = provider.NoopMetadataProvider{}
	}

	var llm provider.PlannerLLM
	if cfg.Planner.APIKey != "" {
		llm = provider.NewOpenRouterClient(cfg.Planner.APIKey).
			WithBaseURL(cfg.Planner.BaseURL).
			WithModel(cfg.Planner.Model).
			WithHTTPClient(serviceClient("planner", cfg.Planner.Timeout, logger))
	} else {
		logger.Info("planner llm not configured, using fallback selection")
		llm = provider.NoopPlanner{}
	}
	caps.planner = provider.NewPlanner(llm).
		WithBudgets(cfg.Planner.TrackBudget, cfg.Planner.TransitionBudget, cfg.Planner.SpeechBudget)

	if cfg.Voice.APIKey != "" && cfg.Voice.VoiceID != "" {
		caps.voice = provider.NewElevenLabsClient(cfg.Voice.APIKey, cfg.Voice.VoiceID, cfg.Storage.SegmentPath()).
			WithBaseURL(cfg.Voice.BaseURL).
			WithModelID(cfg.Voice.ModelID).
			WithVoiceSettings(cfg.Voice.Stability, cfg.Voice.Similarity).
			WithHTTPClient(serviceClient("voice", cfg.Voice.SynthTimeout, logger))
	} else {
		logger.Info("voice synthesizer not configured, segments play without narration")
		caps.voice = provider.NoopVoice{}
	}

	caps.fetcher = provider.NewYtdlpFetcher(cfg.Storage.CachePath()).
		WithBinaryPath(cfg.Fetcher.BinaryPath).
		WithQuality(cfg.Fetcher.AudioQuality).
		WithTimeout(cfg.Fetcher.Timeout).
		WithLogger(observability.WithComponent(logger, "fetcher"))

	return caps
}

// serviceClient builds a circuit-breaker wrapped HTTP client for one
// upstream service and registers it for status reporting.
func serviceClient(name string, timeout time.Duration, logger *slog.Logger) *http.Client {
	cfg := httpclient.DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.Logger = observability.WithComponent(logger, "httpclient")

	client := httpclient.NewWithBreaker(cfg, httpclient.DefaultManager.GetOrCreate(name))
	httpclient.DefaultRegistry.Register(name, client)
	return client.StandardClient()
}

// schedulerConfig maps the configuration file's scheduler section onto
// the scheduler's tuning struct, keeping defaults for unset knobs.
func schedulerConfig(sc config.SchedulerConfig) scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if sc.TickInterval > 0 {
		cfg.TickInterval = sc.TickInterval
	}
	if sc.QueueLowWater > 0 {
		cfg.QueueLowWater = sc.QueueLowWater
	}
	if sc.CooldownInitial > 0 {
		cfg.CooldownInitial = sc.CooldownInitial
	}
	if sc.CooldownAfterPlan > 0 {
		cfg.CooldownAfterPlan = sc.CooldownAfterPlan
	}
	if sc.CooldownMax > 0 {
		cfg.CooldownMax = sc.CooldownMax
	}
	if sc.CooldownFactor > 1 {
		cfg.CooldownFactor = sc.CooldownFactor
	}
	if sc.BootstrapRetryDelay > 0 {
		cfg.BootstrapRetryDelay = sc.BootstrapRetryDelay
	}
	if sc.SessionMode != "" {
		cfg.SessionMode = models.SessionMode(sc.SessionMode)
	}
	cfg.MaxSegments = sc.MaxSegments
	return cfg
}
