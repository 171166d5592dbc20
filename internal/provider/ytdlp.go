package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/mixarr/internal/util"
)

// Defaults for the yt-dlp fetcher.
const (
	DefaultFetchQuality = "192"
	DefaultFetchTimeout = 5 * time.Minute

	ytdlpBinaryName = "yt-dlp"
	ytdlpBinaryEnv  = "MIXARR_YTDLP_BINARY"

	// searchPrefix makes yt-dlp resolve the query as "first search hit".
	searchPrefix = "ytsearch1:"

	fallbackArtist = "Unknown"

	stderrTailLines = 3

	// killGrace bounds Wait after the context kills yt-dlp, in case an
	// orphaned extraction subprocess still holds the output pipes.
	killGrace = 5 * time.Second
)

// YtdlpFetcher downloads tracks with an external yt-dlp binary, extracting
// the audio to MP3 in the cache directory. Fetches are idempotent: the
// destination name is derived from the sanitized artist and title, and an
// existing file is overwritten.
type YtdlpFetcher struct {
	binaryPath string
	cacheDir   string
	quality    string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewYtdlpFetcher creates a fetcher writing into cacheDir. The yt-dlp
// binary is resolved per call, so a binary installed after startup is
// picked up without a restart.
func NewYtdlpFetcher(cacheDir string) *YtdlpFetcher {
	return &YtdlpFetcher{
		cacheDir: cacheDir,
		quality:  DefaultFetchQuality,
		timeout:  DefaultFetchTimeout,
	}
}

// WithBinaryPath pins the yt-dlp binary instead of searching for it.
// Empty keeps the search behavior.
func (f *YtdlpFetcher) WithBinaryPath(path string) *YtdlpFetcher {
	f.binaryPath = path
	return f
}

// WithQuality sets the MP3 extraction quality (a yt-dlp audio-quality
// value, e.g. "192"). Empty keeps the current value.
func (f *YtdlpFetcher) WithQuality(quality string) *YtdlpFetcher {
	if quality != "" {
		f.quality = quality
	}
	return f
}

// WithTimeout bounds one download end to end. Zero or negative disables
// the bound.
func (f *YtdlpFetcher) WithTimeout(timeout time.Duration) *YtdlpFetcher {
	f.timeout = timeout
	return f
}

// WithLogger sets a structured logger for the fetcher.
func (f *YtdlpFetcher) WithLogger(logger *slog.Logger) *YtdlpFetcher {
	f.logger = logger
	return f
}

// resolveBinary finds the yt-dlp executable.
func (f *YtdlpFetcher) resolveBinary() (string, error) {
	if f.binaryPath != "" {
		return f.binaryPath, nil
	}
	return util.FindBinary(ytdlpBinaryName, ytdlpBinaryEnv)
}

// mediaInfo is the subset of yt-dlp's info JSON the fetcher reads. Search
// URLs resolve to a playlist wrapper whose entries hold the real media.
type mediaInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Uploader   string      `json:"uploader"`
	Duration   float64     `json:"duration"`
	WebpageURL string      `json:"webpage_url"`
	Thumbnail  string      `json:"thumbnail"`
	Entries    []mediaInfo `json:"entries"`
}

// firstEntry unwraps search results, which arrive as a one-entry playlist.
func (m *mediaInfo) firstEntry() *mediaInfo {
	if len(m.Entries) > 0 {
		return &m.Entries[0]
	}
	return m
}

// artistName resolves the credited artist, falling back to the uploader.
func (m *mediaInfo) artistName() string {
	if m.Artist != "" {
		return m.Artist
	}
	if m.Uploader != "" {
		return m.Uploader
	}
	return fallbackArtist
}

// probeArgs builds the metadata-only invocation.
func probeArgs(mediaURL string) []string {
	return []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		mediaURL,
	}
}

// fetchArgs builds the download-and-extract invocation.
func fetchArgs(mediaURL, outputTemplate, quality string) []string {
	return []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", quality,
		"--output", outputTemplate,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--force-overwrites",
		mediaURL,
	}
}

// Download resolves query against the source, downloads the first hit, and
// extracts it as MP3 into the cache directory. A missing yt-dlp binary is
// reported as ErrUnavailable; a failed download is an ordinary error.
func (f *YtdlpFetcher) Download(ctx context.Context, query, artist, title string) (*FetchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("download: query is empty")
	}

	binary, err := f.resolveBinary()
	if err != nil {
		return nil, fmt.Errorf("track fetcher: %w", ErrUnavailable)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	info, err := f.probe(ctx, binary, searchPrefix+query)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", query, err)
	}

	if artist == "" {
		artist = info.artistName()
	}
	if title == "" {
		title = info.Title
	}
	filename := util.TrackFilename(artist, title)

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	// yt-dlp substitutes the post-extraction extension itself.
	outputTemplate := filepath.Join(f.cacheDir, strings.TrimSuffix(filename, ".mp3")+".%(ext)s")

	downloadURL := info.WebpageURL
	if downloadURL == "" {
		downloadURL = searchPrefix + query
	}

	if f.logger != nil {
		f.logger.Debug("downloading track",
			slog.String("query", query),
			slog.String("url", downloadURL),
			slog.String("file", filename))
	}

	if err := f.fetch(ctx, binary, downloadURL, outputTemplate); err != nil {
		return nil, fmt.Errorf("downloading %q: %w", query, err)
	}

	path := filepath.Join(f.cacheDir, filename)
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("downloaded file missing at %s: %w", path, err)
	}

	if f.logger != nil {
		f.logger.Info("track downloaded",
			slog.String("artist", artist),
			slog.String("title", title),
			slog.Int64("size_bytes", stat.Size()))
	}

	return &FetchResult{
		Path:         path,
		Title:        title,
		Artist:       artist,
		DurationSec:  info.Duration,
		SizeBytes:    stat.Size(),
		SourceID:     info.ID,
		SourceURL:    info.WebpageURL,
		ThumbnailURL: info.Thumbnail,
	}, nil
}

// probe asks yt-dlp for the info JSON without downloading.
func (f *YtdlpFetcher) probe(ctx context.Context, binary, mediaURL string) (*mediaInfo, error) {
	cmd := exec.CommandContext(ctx, binary, probeArgs(mediaURL)...)
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp probe failed: %w (stderr: %s)", err, tailLines(stderr.String(), stderrTailLines))
	}

	var root mediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &root); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp info: %w", err)
	}

	info := root.firstEntry()
	if info.ID == "" && info.Title == "" {
		return nil, fmt.Errorf("search returned no matches")
	}
	return info, nil
}

// fetch downloads and extracts the audio.
func (f *YtdlpFetcher) fetch(ctx context.Context, binary, mediaURL, outputTemplate string) error {
	cmd := exec.CommandContext(ctx, binary, fetchArgs(mediaURL, outputTemplate, f.quality)...)
	cmd.WaitDelay = killGrace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("yt-dlp failed: %w (stderr: %s)", err, tailLines(stderr.String(), stderrTailLines))
	}
	return nil
}

// tailLines returns the last n lines of s joined with " | ".
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, " | ")
}

var _ TrackFetcher = (*YtdlpFetcher)(nil)
