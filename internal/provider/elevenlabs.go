package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/mixarr/internal/util"
	"github.com/jmylchreest/mixarr/internal/version"
)

// Default ElevenLabs connection values.
const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceModelID      = "eleven_turbo_v2_5"
	DefaultVoiceStability    = 0.5
	DefaultVoiceSimilarity   = 0.75
	DefaultSynthesisTimeout  = 30 * time.Second

	headerXIAPIKey = "xi-api-key"

	pathTextToSpeech = "/text-to-speech/%s"
	pathVoice        = "/voices/%s"

	voiceFilePrefix = "tts_"
)

// ElevenLabsClient synthesizes DJ speech through an ElevenLabs-style TTS
// API. Clips are written into OutputDir as "tts_{8 hex}.mp3" unless the
// caller names the file. A client without an API key or voice ID is valid
// but permanently unavailable.
type ElevenLabsClient struct {
	// BaseURL is the API root (e.g. "https://api.elevenlabs.io/v1").
	BaseURL string

	// APIKey is the xi-api-key header value. Empty disables the client.
	APIKey string

	// VoiceID is the voice used for synthesis. Empty disables the client.
	VoiceID string

	// ModelID is the TTS model used for synthesis.
	ModelID string

	// Stability and Similarity are the default voice settings, overridable
	// per call through SynthesisOptions.
	Stability  float64
	Similarity float64

	// OutputDir is the directory synthesized clips are written into.
	OutputDir string

	// HTTPClient is the standard HTTP client used for requests.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// NewElevenLabsClient creates a voice synthesis client with default
// settings.
func NewElevenLabsClient(apiKey, voiceID, outputDir string) *ElevenLabsClient {
	return &ElevenLabsClient{
		BaseURL:    DefaultElevenLabsBaseURL,
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    DefaultVoiceModelID,
		Stability:  DefaultVoiceStability,
		Similarity: DefaultVoiceSimilarity,
		OutputDir:  outputDir,
		HTTPClient: &http.Client{Timeout: DefaultSynthesisTimeout},
		UserAgent:  version.UserAgent(),
	}
}

// WithBaseURL points the client at a different API root. Empty keeps the
// current value.
func (c *ElevenLabsClient) WithBaseURL(baseURL string) *ElevenLabsClient {
	if baseURL != "" {
		c.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// WithModelID selects the TTS model. Empty keeps the current value.
func (c *ElevenLabsClient) WithModelID(modelID string) *ElevenLabsClient {
	if modelID != "" {
		c.ModelID = modelID
	}
	return c
}

// WithVoiceSettings sets the default stability and similarity boost.
// Values outside (0, 1] keep the current setting.
func (c *ElevenLabsClient) WithVoiceSettings(stability, similarity float64) *ElevenLabsClient {
	if stability > 0 && stability <= 1 {
		c.Stability = stability
	}
	if similarity > 0 && similarity <= 1 {
		c.Similarity = similarity
	}
	return c
}

// WithHTTPClient injects a custom standard library HTTP client.
func (c *ElevenLabsClient) WithHTTPClient(client *http.Client) *ElevenLabsClient {
	if client != nil {
		c.HTTPClient = client
	}
	return c
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func (c *ElevenLabsClient) WithTimeout(timeout time.Duration) *ElevenLabsClient {
	if timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c
}

// Available reports whether the client is configured to synthesize.
func (c *ElevenLabsClient) Available() bool {
	return c.APIKey != "" && c.VoiceID != ""
}

// VoiceSettings are the per-voice tuning knobs.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// VoiceInfo describes a voice as the API reports it.
type VoiceInfo struct {
	VoiceID     string         `json:"voice_id"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Settings    *VoiceSettings `json:"settings"`
}

// synthesisRequest is the wire payload for the text-to-speech endpoint.
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize renders text to speech and returns the path of the written
// MP3 clip.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("voice synthesizer: %w", ErrUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("synthesize: text is empty")
	}

	stability := opts.Stability
	if stability <= 0 {
		stability = c.Stability
	}
	similarity := opts.Similarity
	if similarity <= 0 {
		similarity = c.Similarity
	}
	filename := opts.Filename
	if filename == "" {
		filename = voiceFilePrefix + util.ShortID() + ".mp3"
	}

	payload := synthesisRequest{
		Text:    text,
		ModelID: c.ModelID,
		VoiceSettings: VoiceSettings{
			Stability:       stability,
			SimilarityBoost: similarity,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding synthesis request: %w", err)
	}

	requestURL := c.BaseURL + fmt.Sprintf(pathTextToSpeech, url.PathEscape(c.VoiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerXIAPIKey, c.APIKey)
	req.Header.Set(headerContentType, contentTypeJSON)
	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorBody(resp.Body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading audio response: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio response")
	}

	outDir := opts.Dir
	if outDir == "" {
		outDir = c.OutputDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	outputPath := filepath.Join(outDir, filename)
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("writing voice clip: %w", err)
	}

	return outputPath, nil
}

// GetVoiceInfo returns the configured voice's metadata, useful as a
// startup credential check.
func (c *ElevenLabsClient) GetVoiceInfo(ctx context.Context) (*VoiceInfo, error) {
	if !c.Available() {
		return nil, fmt.Errorf("voice synthesizer: %w", ErrUnavailable)
	}

	requestURL := c.BaseURL + fmt.Sprintf(pathVoice, url.PathEscape(c.VoiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerXIAPIKey, c.APIKey)
	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorBody(resp.Body))
	}

	var info VoiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding voice info: %w", err)
	}
	return &info, nil
}

var _ VoiceSynthesizer = (*ElevenLabsClient)(nil)
