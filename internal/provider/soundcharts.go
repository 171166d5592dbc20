package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmylchreest/mixarr/internal/version"
)

// Default Soundcharts connection values.
const (
	DefaultSoundchartsBaseURL = "https://customer.api.soundcharts.com"
	DefaultSoundchartsTimeout = 30 * time.Second

	// DefaultPopularityPlatform is queried when the caller does not name one.
	DefaultPopularityPlatform = "spotify"

	defaultSearchLimit = 5

	headerAppID  = "x-app-id"
	headerAPIKey = "x-api-key"

	// API endpoint paths. Single-object endpoints wrap their payload in an
	// "object" envelope; search returns a top-level "items" list.
	pathSongSearch     = "/api/v2/song/search/%s"
	pathSongMetadata   = "/api/v2.25/song/%s"
	pathSongLyrics     = "/api/v2/song/%s/lyrics-analysis"
	pathSongPopularity = "/api/v2/song/%s/popularity/%s"
)

// SoundchartsClient talks to a Soundcharts-style song metadata API.
// Credentials travel in the x-app-id and x-api-key headers; a client
// missing either is valid but permanently unavailable.
type SoundchartsClient struct {
	// BaseURL is the API root (e.g. "https://customer.api.soundcharts.com").
	BaseURL string

	// AppID is the application identifier header value.
	AppID string

	// APIKey is the API key header value.
	APIKey string

	// HTTPClient is the standard HTTP client used for requests.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// NewSoundchartsClient creates a metadata client with default settings.
func NewSoundchartsClient(appID, apiKey string) *SoundchartsClient {
	return &SoundchartsClient{
		BaseURL:    DefaultSoundchartsBaseURL,
		AppID:      appID,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: DefaultSoundchartsTimeout},
		UserAgent:  version.UserAgent(),
	}
}

// WithBaseURL points the client at a different API root. Empty keeps the
// current value.
func (c *SoundchartsClient) WithBaseURL(baseURL string) *SoundchartsClient {
	if baseURL != "" {
		c.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// WithHTTPClient injects a custom standard library HTTP client.
func (c *SoundchartsClient) WithHTTPClient(client *http.Client) *SoundchartsClient {
	if client != nil {
		c.HTTPClient = client
	}
	return c
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func (c *SoundchartsClient) WithTimeout(timeout time.Duration) *SoundchartsClient {
	if timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c
}

// Available reports whether both credentials are configured.
func (c *SoundchartsClient) Available() bool {
	return c.AppID != "" && c.APIKey != ""
}

// songObject is the wire shape of a song in search hits and the metadata
// envelope. creditName carries the display artist; the nested artist
// object is the fallback.
type songObject struct {
	UUID        string  `json:"uuid"`
	Name        string  `json:"name"`
	CreditName  string  `json:"creditName"`
	ReleaseDate string  `json:"releaseDate"`
	Language    string  `json:"language"`
	Explicit    bool    `json:"explicit"`
	Duration    float64 `json:"duration"`
	ImageURL    string  `json:"imageUrl"`
	Artist      *struct {
		Name string `json:"name"`
	} `json:"artist"`
	Audio *AudioFeatures `json:"audio"`
}

// artistName resolves the display artist for a song object.
func (s *songObject) artistName() string {
	if s.CreditName != "" {
		return s.CreditName
	}
	if s.Artist != nil {
		return s.Artist.Name
	}
	return ""
}

// doRequest performs a GET request and decodes the JSON response.
func (c *SoundchartsClient) doRequest(ctx context.Context, requestURL string, target any) error {
	if !c.Available() {
		return fmt.Errorf("metadata provider: %w", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerAppID, c.AppID)
	req.Header.Set(headerAPIKey, c.APIKey)
	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Search finds songs by name or by artist plus name. The search endpoint is
// typo-tolerant; an empty result list is normal.
func (c *SoundchartsClient) Search(ctx context.Context, query string, limit int) ([]SongHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	requestURL := c.BaseURL + fmt.Sprintf(pathSongSearch, url.PathEscape(query)) +
		fmt.Sprintf("?limit=%d", limit)

	var out struct {
		Items []songObject `json:"items"`
	}
	if err := c.doRequest(ctx, requestURL, &out); err != nil {
		return nil, fmt.Errorf("searching songs: %w", err)
	}

	hits := make([]SongHit, 0, len(out.Items))
	for _, item := range out.Items {
		hits = append(hits, SongHit{
			ID:          item.UUID,
			Title:       item.Name,
			Artist:      item.artistName(),
			ReleaseDate: item.ReleaseDate,
		})
	}
	return hits, nil
}

// GetMetadata returns the full song record. Audio is nil when the catalog
// has not analyzed the song.
func (c *SoundchartsClient) GetMetadata(ctx context.Context, id string) (*SongMetadata, error) {
	requestURL := c.BaseURL + fmt.Sprintf(pathSongMetadata, url.PathEscape(id))

	var out struct {
		Object songObject `json:"object"`
	}
	if err := c.doRequest(ctx, requestURL, &out); err != nil {
		return nil, fmt.Errorf("fetching song metadata: %w", err)
	}

	obj := out.Object
	if obj.UUID == "" {
		obj.UUID = id
	}

	return &SongMetadata{
		ID:           obj.UUID,
		Title:        obj.Name,
		Artist:       obj.artistName(),
		ReleaseDate:  obj.ReleaseDate,
		LanguageCode: obj.Language,
		Explicit:     obj.Explicit,
		DurationSec:  obj.Duration,
		ArtworkURL:   obj.ImageURL,
		Audio:        obj.Audio,
	}, nil
}

// GetLyricsAnalysis returns the lyric-level analysis for a song.
func (c *SoundchartsClient) GetLyricsAnalysis(ctx context.Context, id string) (*LyricsReport, error) {
	requestURL := c.BaseURL + fmt.Sprintf(pathSongLyrics, url.PathEscape(id))

	var out struct {
		Object struct {
			Themes             []string `json:"themes"`
			Moods              []string `json:"moods"`
			Brands             []string `json:"brands"`
			Locations          []string `json:"locations"`
			CulturalReferences struct {
				People    []string `json:"people"`
				NonPeople []string `json:"non_people"`
			} `json:"cultural_references"`
			NarrativeStyle string `json:"narrative_style"`
			Scores         struct {
				EmotionalIntensity float64 `json:"emotional_intensity"`
				Imagery            float64 `json:"imagery"`
				Complexity         float64 `json:"complexity"`
				RhymeScheme        float64 `json:"rhyme_scheme"`
				Repetitiveness     float64 `json:"repetitiveness"`
			} `json:"scores"`
		} `json:"object"`
	}
	if err := c.doRequest(ctx, requestURL, &out); err != nil {
		return nil, fmt.Errorf("fetching lyrics analysis: %w", err)
	}

	obj := out.Object
	return &LyricsReport{
		Themes:               obj.Themes,
		Moods:                obj.Moods,
		Brands:               obj.Brands,
		Locations:            obj.Locations,
		CulturalRefPeople:    obj.CulturalReferences.People,
		CulturalRefNonPeople: obj.CulturalReferences.NonPeople,
		NarrativeStyle:       obj.NarrativeStyle,
		EmotionalIntensity:   obj.Scores.EmotionalIntensity,
		Imagery:              obj.Scores.Imagery,
		Complexity:           obj.Scores.Complexity,
		RhymeScheme:          obj.Scores.RhymeScheme,
		Repetitiveness:       obj.Scores.Repetitiveness,
	}, nil
}

// GetPopularity returns the song's popularity on one streaming platform.
func (c *SoundchartsClient) GetPopularity(ctx context.Context, id, platform string) (*Popularity, error) {
	if platform == "" {
		platform = DefaultPopularityPlatform
	}

	requestURL := c.BaseURL + fmt.Sprintf(pathSongPopularity, url.PathEscape(id), url.PathEscape(platform))

	var out struct {
		Object struct {
			Platform string  `json:"platform"`
			Value    float64 `json:"value"`
			Date     string  `json:"date"`
		} `json:"object"`
	}
	if err := c.doRequest(ctx, requestURL, &out); err != nil {
		return nil, fmt.Errorf("fetching popularity: %w", err)
	}

	pop := &Popularity{
		Platform: out.Object.Platform,
		Value:    out.Object.Value,
		Date:     out.Object.Date,
	}
	if pop.Platform == "" {
		pop.Platform = platform
	}
	return pop, nil
}

var _ MetadataProvider = (*SoundchartsClient)(nil)
