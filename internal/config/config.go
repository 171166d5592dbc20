// Package config provides configuration management for mixarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 10
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultCacheMaxBytes      = 50_000_000_000 // 50 GB
	defaultSampleRate         = 44100
	defaultTargetLUFS         = -14.0
	defaultBassCrossoverHz    = 250
	defaultDuckLevel          = 0.45
	defaultCrossfade          = 10.0
	defaultBEndBuffer         = 20.0
	defaultLeadIn             = 12.0
	defaultVoiceLead          = 5.0
	defaultOverlap            = 0.75
	defaultBitrateKbps        = 320
	defaultMaxFiltergraphLen  = 2000
	defaultTickInterval       = 2 * time.Second
	defaultQueueMax           = 5
	defaultQueueLowWater      = 3
	defaultCooldownInitial    = 5 * time.Second
	defaultCooldownAfterPlan  = 3 * time.Second
	defaultCooldownMax        = 120 * time.Second
	defaultCooldownFactor     = 1.5
	defaultBootstrapRetry     = 30 * time.Second
	defaultTrackBudget        = 2000
	defaultTransitionBudget   = 1500
	defaultSpeechBudget       = 3500
	defaultPlannerTimeout     = 60 * time.Second
	defaultMetadataTimeout    = 30 * time.Second
	defaultVoiceInfoTimeout   = 10 * time.Second
	defaultVoiceSynthTimeout  = 30 * time.Second
	defaultFetchTimeout       = 5 * time.Minute
	defaultSeedDelay          = 2 * time.Second
	defaultTempMaxAge         = 24 * time.Hour
	defaultVoiceStability     = 0.5
	defaultVoiceSimilarity    = 0.75
	defaultPlaybackRate       = 1.0
	defaultKeepSegments       = 12
)

// Config holds all configuration for the application.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Audio       AudioConfig       `mapstructure:"audio"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Planner     PlannerConfig     `mapstructure:"planner"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Voice       VoiceConfig       `mapstructure:"voice"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher"`
	FFmpeg      FFmpegConfig      `mapstructure:"ffmpeg"`
	User        UserConfig        `mapstructure:"user"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir    string `mapstructure:"base_dir"`
	CacheDir   string `mapstructure:"cache_dir"`   // downloaded track audio
	SegmentDir string `mapstructure:"segment_dir"` // rendered segments + sidecars + render scratch
	ArtDir     string `mapstructure:"art_dir"`     // cover art cache
	ArchiveDir string `mapstructure:"archive_dir"` // optional archive copies of segments
	PlayoutDir string `mapstructure:"playout_dir"` // file-sink playout target
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// AudioConfig holds the segment-contract and render parameters.
type AudioConfig struct {
	SampleRate      int     `mapstructure:"sample_rate"` // 44100 or 48000
	BitrateKbps     int     `mapstructure:"bitrate_kbps"`
	TargetLUFS      float64 `mapstructure:"target_lufs"`
	BassCrossoverHz int     `mapstructure:"bass_crossover_hz"`
	DuckLevel       float64 `mapstructure:"duck_level"`        // linear music gain under voice
	CrossfadeSec    float64 `mapstructure:"crossfade_sec"`     // default crossfade length X
	BEndBufferSec   float64 `mapstructure:"b_end_buffer_sec"`  // tail of B reserved for the next segment
	LeadInSec       float64 `mapstructure:"lead_in_sec"`       // length of A carried before the crossfade
	VoiceLeadSec    float64 `mapstructure:"voice_lead_sec"`    // voice starts this long before the crossfade
	OverlapSec      float64 `mapstructure:"overlap_sec"`       // planned overlap with the next segment
	MaxGraphLen     int     `mapstructure:"max_filtergraph_len"`
}

// CacheConfig holds media cache limits.
type CacheConfig struct {
	// MaxBytes is the byte budget for cached track audio.
	// Supports human-readable values like "50GB" or raw byte counts.
	MaxBytes ByteSize `mapstructure:"max_bytes"`
}

// SchedulerConfig holds segment scheduler tuning.
type SchedulerConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	QueueMax            int           `mapstructure:"queue_max"`
	QueueLowWater       int           `mapstructure:"queue_low_water"`
	CooldownInitial     time.Duration `mapstructure:"cooldown_initial"`
	CooldownAfterPlan   time.Duration `mapstructure:"cooldown_after_plan"`
	CooldownMax         time.Duration `mapstructure:"cooldown_max"`
	CooldownFactor      float64       `mapstructure:"cooldown_factor"`
	BootstrapRetryDelay time.Duration `mapstructure:"bootstrap_retry_delay"`
	SessionMode         string        `mapstructure:"session_mode"`
	MaxSegments         int           `mapstructure:"max_segments"` // one_shot stops after this many segments
}

// TransportConfig controls the built-in file-sink transport. Production
// deployments leave file_sink off and attach an external consumer instead.
type TransportConfig struct {
	FileSink     bool    `mapstructure:"file_sink"`     // deliver segments into the playout directory
	PlaybackRate float64 `mapstructure:"playback_rate"` // 1.0 consumes at listener speed
	KeepSegments int     `mapstructure:"keep_segments"` // delivered segments kept before pruning
}

// PlannerConfig holds the planner LLM client configuration.
type PlannerConfig struct {
	APIKey           string        `mapstructure:"api_key" masq:"secret"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TrackBudget      int           `mapstructure:"track_budget"`      // reasoning budget for track selection
	TransitionBudget int           `mapstructure:"transition_budget"` // reasoning budget for transition planning
	SpeechBudget     int           `mapstructure:"speech_budget"`     // reasoning budget for script writing
}

// MetadataConfig holds the track metadata provider configuration.
type MetadataConfig struct {
	AppID   string        `mapstructure:"app_id"`
	APIKey  string        `mapstructure:"api_key" masq:"secret"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// VoiceConfig holds the voice synthesizer configuration.
type VoiceConfig struct {
	APIKey       string        `mapstructure:"api_key" masq:"secret"`
	BaseURL      string        `mapstructure:"base_url"`
	VoiceID      string        `mapstructure:"voice_id"`
	ModelID      string        `mapstructure:"model_id"`
	Stability    float64       `mapstructure:"stability"`
	Similarity   float64       `mapstructure:"similarity"`
	InfoTimeout  time.Duration `mapstructure:"info_timeout"`
	SynthTimeout time.Duration `mapstructure:"synth_timeout"`
}

// FetcherConfig holds the track downloader configuration.
type FetcherConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"` // path to yt-dlp (empty = look up in PATH)
	AudioQuality string        `mapstructure:"audio_quality"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SeedDelay    time.Duration `mapstructure:"seed_delay"` // pause between bulk downloads
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// UserConfig points at listener-context inputs.
type UserConfig struct {
	ContextFile string `mapstructure:"context_file"`
}

// MaintenanceConfig holds cron schedules for housekeeping jobs.
type MaintenanceConfig struct {
	CacheSweepCron string        `mapstructure:"cache_sweep_cron"`
	TempSweepCron  string        `mapstructure:"temp_sweep_cron"`
	StatsCron      string        `mapstructure:"stats_cron"`
	TempMaxAge     time.Duration `mapstructure:"temp_max_age"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MIXARR_ and use underscores for nesting.
// Example: MIXARR_CACHE_MAX_BYTES=50GB.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mixarr")
		v.AddConfigPath("$HOME/.mixarr")
	}

	// Environment variable settings
	v.SetEnvPrefix("MIXARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mixarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.cache_dir", "songs")
	v.SetDefault("storage.segment_dir", "segments")
	v.SetDefault("storage.art_dir", "artwork")
	v.SetDefault("storage.archive_dir", "")
	v.SetDefault("storage.playout_dir", "playout")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Audio defaults
	v.SetDefault("audio.sample_rate", defaultSampleRate)
	v.SetDefault("audio.bitrate_kbps", defaultBitrateKbps)
	v.SetDefault("audio.target_lufs", defaultTargetLUFS)
	v.SetDefault("audio.bass_crossover_hz", defaultBassCrossoverHz)
	v.SetDefault("audio.duck_level", defaultDuckLevel)
	v.SetDefault("audio.crossfade_sec", defaultCrossfade)
	v.SetDefault("audio.b_end_buffer_sec", defaultBEndBuffer)
	v.SetDefault("audio.lead_in_sec", defaultLeadIn)
	v.SetDefault("audio.voice_lead_sec", defaultVoiceLead)
	v.SetDefault("audio.overlap_sec", defaultOverlap)
	v.SetDefault("audio.max_filtergraph_len", defaultMaxFiltergraphLen)

	// Cache defaults
	v.SetDefault("cache.max_bytes", defaultCacheMaxBytes)

	// Scheduler defaults
	v.SetDefault("scheduler.tick_interval", defaultTickInterval)
	v.SetDefault("scheduler.queue_max", defaultQueueMax)
	v.SetDefault("scheduler.queue_low_water", defaultQueueLowWater)
	v.SetDefault("scheduler.cooldown_initial", defaultCooldownInitial)
	v.SetDefault("scheduler.cooldown_after_plan", defaultCooldownAfterPlan)
	v.SetDefault("scheduler.cooldown_max", defaultCooldownMax)
	v.SetDefault("scheduler.cooldown_factor", defaultCooldownFactor)
	v.SetDefault("scheduler.bootstrap_retry_delay", defaultBootstrapRetry)
	v.SetDefault("scheduler.session_mode", "continuous")
	v.SetDefault("scheduler.max_segments", 0)

	// Transport defaults
	v.SetDefault("transport.file_sink", false)
	v.SetDefault("transport.playback_rate", defaultPlaybackRate)
	v.SetDefault("transport.keep_segments", defaultKeepSegments)

	// Planner defaults
	v.SetDefault("planner.api_key", "")
	v.SetDefault("planner.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("planner.model", "google/gemini-2.5-flash")
	v.SetDefault("planner.timeout", defaultPlannerTimeout)
	v.SetDefault("planner.track_budget", defaultTrackBudget)
	v.SetDefault("planner.transition_budget", defaultTransitionBudget)
	v.SetDefault("planner.speech_budget", defaultSpeechBudget)

	// Metadata defaults
	v.SetDefault("metadata.app_id", "")
	v.SetDefault("metadata.api_key", "")
	v.SetDefault("metadata.base_url", "https://customer.api.soundcharts.com")
	v.SetDefault("metadata.timeout", defaultMetadataTimeout)

	// Voice defaults
	v.SetDefault("voice.api_key", "")
	v.SetDefault("voice.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("voice.voice_id", "")
	v.SetDefault("voice.model_id", "eleven_turbo_v2_5")
	v.SetDefault("voice.stability", defaultVoiceStability)
	v.SetDefault("voice.similarity", defaultVoiceSimilarity)
	v.SetDefault("voice.info_timeout", defaultVoiceInfoTimeout)
	v.SetDefault("voice.synth_timeout", defaultVoiceSynthTimeout)

	// Fetcher defaults
	v.SetDefault("fetcher.binary_path", "")
	v.SetDefault("fetcher.audio_quality", "192")
	v.SetDefault("fetcher.timeout", defaultFetchTimeout)
	v.SetDefault("fetcher.seed_delay", defaultSeedDelay)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// User context defaults
	v.SetDefault("user.context_file", "data/user_context.txt")

	// Maintenance defaults (6-field cron expressions)
	v.SetDefault("maintenance.cache_sweep_cron", "*/15 * * * *")
	v.SetDefault("maintenance.temp_sweep_cron", "0 * * * *")
	v.SetDefault("maintenance.stats_cron", "*/10 * * * *")
	v.SetDefault("maintenance.temp_max_age", defaultTempMaxAge)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Audio validation
	if c.Audio.SampleRate != 44100 && c.Audio.SampleRate != 48000 {
		return fmt.Errorf("audio.sample_rate must be 44100 or 48000")
	}
	if c.Audio.DuckLevel <= 0 || c.Audio.DuckLevel > 1 {
		return fmt.Errorf("audio.duck_level must be in (0, 1]")
	}
	if c.Audio.CrossfadeSec < 0.05 {
		return fmt.Errorf("audio.crossfade_sec must be at least 0.05")
	}
	if c.Audio.LeadInSec < c.Audio.CrossfadeSec {
		return fmt.Errorf("audio.lead_in_sec must be at least audio.crossfade_sec")
	}
	if c.Audio.OverlapSec < 0 {
		return fmt.Errorf("audio.overlap_sec must not be negative")
	}
	if c.Audio.MaxGraphLen < 1 {
		return fmt.Errorf("audio.max_filtergraph_len must be at least 1")
	}

	// Cache validation
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache.max_bytes must not be negative")
	}

	// Scheduler validation
	if c.Scheduler.QueueMax < 1 {
		return fmt.Errorf("scheduler.queue_max must be at least 1")
	}
	if c.Scheduler.QueueLowWater < 1 || c.Scheduler.QueueLowWater > c.Scheduler.QueueMax {
		return fmt.Errorf("scheduler.queue_low_water must be between 1 and scheduler.queue_max")
	}
	if c.Scheduler.CooldownFactor <= 1 {
		return fmt.Errorf("scheduler.cooldown_factor must be greater than 1")
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive")
	}
	switch c.Scheduler.SessionMode {
	case "continuous":
	case "one_shot":
		if c.Scheduler.MaxSegments < 1 {
			return fmt.Errorf("scheduler.max_segments must be at least 1 in one_shot mode")
		}
	default:
		return fmt.Errorf("scheduler.session_mode must be one of: continuous, one_shot")
	}

	// Transport validation
	if c.Transport.PlaybackRate <= 0 {
		return fmt.Errorf("transport.playback_rate must be positive")
	}
	if c.Transport.KeepSegments < 1 {
		return fmt.Errorf("transport.keep_segments must be at least 1")
	}

	// Planner validation
	if c.Planner.TrackBudget < 0 || c.Planner.TransitionBudget < 0 || c.Planner.SpeechBudget < 0 {
		return fmt.Errorf("planner reasoning budgets must not be negative")
	}

	return nil
}

// CachePath returns the full path to the track audio cache directory.
func (c *StorageConfig) CachePath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.CacheDir)
}

// SegmentPath returns the full path to the rendered segment directory.
func (c *StorageConfig) SegmentPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.SegmentDir)
}

// ArtPath returns the full path to the cover art directory.
func (c *StorageConfig) ArtPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.ArtDir)
}

// ArchivePath returns the archive directory path, or "" when archiving is disabled.
func (c *StorageConfig) ArchivePath() string {
	if c.ArchiveDir == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", c.BaseDir, c.ArchiveDir)
}

// PlayoutPath returns the full path to the file-sink playout directory.
func (c *StorageConfig) PlayoutPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.PlayoutDir)
}
