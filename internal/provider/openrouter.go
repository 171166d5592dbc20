package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/mixarr/internal/version"
)

// Default OpenRouter connection values.
const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "google/gemini-2.5-flash"
	DefaultOpenRouterTimeout = 60 * time.Second

	pathChatCompletions = "/chat/completions"

	headerAuthorization = "Authorization"
	headerHTTPReferer   = "HTTP-Referer"
	headerXTitle        = "X-Title"

	// App attribution headers OpenRouter uses for rankings.
	openRouterReferer = "https://mixarr.local"
	openRouterTitle   = "mixarr"

	// jsonOnlyInstruction is appended to the system message in JSON mode.
	// Some models honor response_format only when the prompt also says so.
	jsonOnlyInstruction = "\n\nRespond with valid JSON only."
)

// OpenRouterClient talks to an OpenRouter-style chat-completions API. A
// client without an API key is valid but permanently unavailable: Chat
// returns ErrUnavailable and callers plan with defaults instead.
type OpenRouterClient struct {
	// BaseURL is the API root (e.g. "https://openrouter.ai/api/v1").
	BaseURL string

	// APIKey is the bearer token. Empty disables the client.
	APIKey string

	// Model is the model identifier sent with every request.
	Model string

	// HTTPClient is the standard HTTP client used for requests.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// NewOpenRouterClient creates a planner LLM client with default settings.
func NewOpenRouterClient(apiKey string) *OpenRouterClient {
	return &OpenRouterClient{
		BaseURL:    DefaultOpenRouterBaseURL,
		APIKey:     apiKey,
		Model:      DefaultOpenRouterModel,
		HTTPClient: &http.Client{Timeout: DefaultOpenRouterTimeout},
		UserAgent:  version.UserAgent(),
	}
}

// WithBaseURL points the client at a different API root. Empty keeps the
// current value.
func (c *OpenRouterClient) WithBaseURL(baseURL string) *OpenRouterClient {
	if baseURL != "" {
		c.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// WithModel selects the model requested for completions. Empty keeps the
// current value.
func (c *OpenRouterClient) WithModel(model string) *OpenRouterClient {
	if model != "" {
		c.Model = model
	}
	return c
}

// WithHTTPClient injects a custom standard library HTTP client, e.g. one
// wrapped with retries and a circuit breaker.
func (c *OpenRouterClient) WithHTTPClient(client *http.Client) *OpenRouterClient {
	if client != nil {
		c.HTTPClient = client
	}
	return c
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func (c *OpenRouterClient) WithTimeout(timeout time.Duration) *OpenRouterClient {
	if timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c
}

// Available reports whether the client is configured to make calls.
func (c *OpenRouterClient) Available() bool {
	return c.APIKey != ""
}

// chatRequest is the wire payload for the chat-completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxReasoning   int             `json:"max_reasoning_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the subset of the completion response the client reads.
type chatResponse struct {
	Model   string    `json:"model"`
	Usage   ChatUsage `json:"usage"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends the messages and returns the first completion.
func (c *OpenRouterClient) Chat(ctx context.Context, messages []ChatMessage, temperature float64, reasoningBudget int, jsonMode bool) (*ChatResult, error) {
	if !c.Available() {
		return nil, fmt.Errorf("planner llm: %w", ErrUnavailable)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("chat needs at least one message")
	}

	if jsonMode {
		messages = withJSONInstruction(messages)
	}

	payload := chatRequest{
		Model:        c.Model,
		Messages:     messages,
		Temperature:  temperature,
		MaxReasoning: reasoningBudget,
	}
	if jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+pathChatCompletions, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerAuthorization, "Bearer "+c.APIKey)
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerHTTPReferer, openRouterReferer)
	req.Header.Set(headerXTitle, openRouterTitle)
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

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	choice := out.Choices[0]
	return &ChatResult{
		Content:      choice.Message.Content,
		Model:        out.Model,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}

// withJSONInstruction appends the JSON-only instruction to the system
// message. The caller's slice is copied, not mutated.
func withJSONInstruction(messages []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	copy(out, messages)
	if out[0].Role == RoleSystem {
		out[0].Content += jsonOnlyInstruction
	}
	return out
}

var _ PlannerLLM = (*OpenRouterClient)(nil)
