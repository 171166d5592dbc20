package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/mixarr/internal/models"
)

// Planner stage names, recorded in planner traces.
const (
	StageTrackSelection = "track_selection"
	StageTransitionPlan = "transition_plan"
	StageIntroScript    = "intro_script"
	StageDJScript       = "dj_script"
	StageSearchQueries  = "search_queries"
)

// Default per-stage reasoning budgets. Speech gets the biggest budget
// because creativity burns tokens; query suggestion barely reasons at all.
const (
	DefaultTrackBudget      = 2000
	DefaultTransitionBudget = 1500
	DefaultSpeechBudget     = 3500
	queryBudget             = 500
)

// Per-stage sampling temperatures. Selection wants some variety, query
// suggestion needs predictable artist names, speech wants personality.
const (
	selectionTemperature  = 0.7
	transitionTemperature = 0.5
	queryTemperature      = 0.3
	speechTemperature     = 0.9
)

// Prompt input caps.
const (
	maxSessionHistory = 5
	maxGlobalHistory  = 10
	maxCandidates     = 20
	maxRecentArtists  = 10

	// MaxSuggestedQueries bounds how many search queries one suggestion
	// call may return.
	MaxSuggestedQueries = 5
)

// Exchange captures one LLM call for planner tracing.
type Exchange struct {
	// Stage names the planning step that made the call.
	Stage string

	// Prompt is the full prompt text: system message, blank line, user
	// message.
	Prompt string

	// Response is the raw completion text.
	Response string

	// Model is the model identifier the provider reported.
	Model string

	// Budget is the reasoning budget granted for the call.
	Budget int
}

// HistoryEntry is a play-history row as the prompts see it.
type HistoryEntry struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	PlayedAt string `json:"played_at,omitempty"`
}

// CandidateTrack is one selectable track with whatever analysis is on file.
// Key and Mode follow the features convention: -1 when unknown.
type CandidateTrack struct {
	ID           string   `json:"uuid"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	DurationSec  float64  `json:"duration_sec,omitempty"`
	PlayCount    int      `json:"play_count"`
	Tempo        float64  `json:"tempo,omitempty"`
	Energy       float64  `json:"energy,omitempty"`
	Valence      float64  `json:"valence,omitempty"`
	Danceability float64  `json:"danceability,omitempty"`
	Key          int      `json:"key"`
	Mode         int      `json:"mode"`
	Themes       []string `json:"themes,omitempty"`
	Moods        []string `json:"moods,omitempty"`
}

// SelectionContext carries the inputs to track selection. Histories are
// newest first; the prompts cap them to their configured windows.
type SelectionContext struct {
	Mood           float64
	Genres         []string
	Prompt         string
	SessionHistory []HistoryEntry
	GlobalHistory  []HistoryEntry
	Candidates     []CandidateTrack
}

// TrackSelection is the planner's parsed selection decision.
type TrackSelection struct {
	SelectedID  string
	Rationale   string
	EnergyMatch float64
	GenreMatch  bool
	RecencyOK   bool
	Trace       Exchange
}

// TrackBrief summarizes one track for transition planning and scripts.
// Key and Mode follow the features convention: -1 when unknown.
type TrackBrief struct {
	ID          string   `json:"uuid,omitempty"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	DurationSec float64  `json:"duration_sec,omitempty"`
	Tempo       float64  `json:"tempo,omitempty"`
	Energy      float64  `json:"energy,omitempty"`
	Key         int      `json:"key"`
	Mode        int      `json:"mode"`
	Themes      []string `json:"themes,omitempty"`
	Moods       []string `json:"moods,omitempty"`
}

// TransitionPlan is the planner's parsed transition decision. The values
// are proposals: the timeline clamps them into the valid domain, and an
// unknown transition type has already been replaced with blend.
type TransitionPlan struct {
	Kind            models.TransitionKind
	TransitionStart float64 // position in the outgoing track where the crossfade begins
	Crossfade       float64 // crossfade length in seconds
	VoiceLead       float64 // seconds before TransitionStart the voice starts
	Analysis        string
	Trace           Exchange
}

// DefaultTransitionPlan is the fallback when planning fails or the planner
// is unavailable: a plain crossfade late in the outgoing track.
func DefaultTransitionPlan(durationA float64) *TransitionPlan {
	return &TransitionPlan{
		Kind:            models.TransitionBlend,
		TransitionStart: durationA - 30,
		Crossfade:       10,
		VoiceLead:       5,
		Analysis:        "fallback: safe crossfade transition",
	}
}

// Script is a parsed voice script.
type Script struct {
	Text       string
	Tone       string
	References []string
	Trace      Exchange
}

// ScriptContext carries what the mid-set script prompt mentions.
type ScriptContext struct {
	Outgoing   TrackBrief     `json:"current_song"`
	Incoming   TrackBrief     `json:"next_song"`
	Transition string         `json:"transition_type,omitempty"`
	Recent     []HistoryEntry `json:"recent_tracks,omitempty"`
}

// QuerySuggestion is the parsed search-query list.
type QuerySuggestion struct {
	Queries []string
	Trace   Exchange
}

// Planner wraps a PlannerLLM with the prompt construction and response
// parsing for each planning stage. Budgets default to the stage constants;
// override them from configuration with WithBudgets.
type Planner struct {
	llm              PlannerLLM
	trackBudget      int
	transitionBudget int
	speechBudget     int
}

// NewPlanner creates a planner over the given LLM.
func NewPlanner(llm PlannerLLM) *Planner {
	return &Planner{
		llm:              llm,
		trackBudget:      DefaultTrackBudget,
		transitionBudget: DefaultTransitionBudget,
		speechBudget:     DefaultSpeechBudget,
	}
}

// WithBudgets overrides the per-stage reasoning budgets. Zero or negative
// values keep the current budget.
func (p *Planner) WithBudgets(track, transition, speech int) *Planner {
	if track > 0 {
		p.trackBudget = track
	}
	if transition > 0 {
		p.transitionBudget = transition
	}
	if speech > 0 {
		p.speechBudget = speech
	}
	return p
}

// ask runs one JSON-mode exchange and returns the raw content plus the
// trace record. Errors are wrapped with the stage name; ErrUnavailable
// survives the wrapping so callers can still branch on it.
func (p *Planner) ask(ctx context.Context, stage, system, user string, temperature float64, budget int) (string, Exchange, error) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}

	res, err := p.llm.Chat(ctx, messages, temperature, budget, true)
	if err != nil {
		return "", Exchange{}, fmt.Errorf("%s: %w", stage, err)
	}

	ex := Exchange{
		Stage:    stage,
		Prompt:   system + "\n\n" + user,
		Response: res.Content,
		Model:    res.Model,
		Budget:   budget,
	}
	return res.Content, ex, nil
}

// SelectTrack asks the planner to choose the next track from the candidate
// list. The returned selection is not validated against the candidates;
// the caller decides what a hallucinated ID means.
func (p *Planner) SelectTrack(ctx context.Context, sel SelectionContext) (*TrackSelection, error) {
	if len(sel.Candidates) == 0 {
		return nil, fmt.Errorf("track selection: no candidates")
	}

	user, err := buildSelectionPrompt(sel)
	if err != nil {
		return nil, fmt.Errorf("track selection: %w", err)
	}

	content, ex, err := p.ask(ctx, StageTrackSelection, selectionSystemPrompt, user, selectionTemperature, p.trackBudget)
	if err != nil {
		return nil, err
	}

	var raw struct {
		SelectedUUID string  `json:"selected_uuid"`
		Rationale    string  `json:"rationale"`
		EnergyMatch  float64 `json:"energy_match"`
		GenreMatch   bool    `json:"genre_match"`
		RecencyOK    bool    `json:"recency_ok"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("track selection: parsing response: %w", err)
	}
	if raw.SelectedUUID == "" {
		return nil, fmt.Errorf("track selection: response has no selected_uuid")
	}

	return &TrackSelection{
		SelectedID:  raw.SelectedUUID,
		Rationale:   raw.Rationale,
		EnergyMatch: raw.EnergyMatch,
		GenreMatch:  raw.GenreMatch,
		RecencyOK:   raw.RecencyOK,
		Trace:       ex,
	}, nil
}

// PlanTransition asks the planner how to join the outgoing track into the
// incoming one. An unknown transition type falls back to blend; a response
// that does not parse is an error and the caller plans with
// DefaultTransitionPlan.
func (p *Planner) PlanTransition(ctx context.Context, outgoing, incoming TrackBrief) (*TransitionPlan, error) {
	user, err := buildTransitionPrompt(outgoing, incoming)
	if err != nil {
		return nil, fmt.Errorf("transition plan: %w", err)
	}

	content, ex, err := p.ask(ctx, StageTransitionPlan, transitionSystemPrompt, user, transitionTemperature, p.transitionBudget)
	if err != nil {
		return nil, err
	}

	var raw struct {
		TransitionType    string  `json:"transition_type"`
		TransitionStart   float64 `json:"transition_start"`
		CrossfadeDuration float64 `json:"crossfade_duration"`
		TTSStartOffset    float64 `json:"tts_start_offset"`
		Analysis          string  `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("transition plan: parsing response: %w", err)
	}

	return &TransitionPlan{
		Kind:            models.TransitionKind(raw.TransitionType).OrBlend(),
		TransitionStart: raw.TransitionStart,
		Crossfade:       raw.CrossfadeDuration,
		VoiceLead:       raw.TTSStartOffset,
		Analysis:        raw.Analysis,
		Trace:           ex,
	}, nil
}

// WriteIntroScript asks the planner for the set-opening speech.
func (p *Planner) WriteIntroScript(ctx context.Context, first TrackBrief, userContext string) (*Script, error) {
	system := fmt.Sprintf(introSystemPromptFmt, userContext)
	user, err := buildIntroPrompt(first)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageIntroScript, err)
	}

	content, ex, err := p.ask(ctx, StageIntroScript, system, user, speechTemperature, p.speechBudget)
	if err != nil {
		return nil, err
	}
	return parseScript(StageIntroScript, content, ex)
}

// WriteTransitionScript asks the planner for a short spoken bridge over the
// upcoming transition.
func (p *Planner) WriteTransitionScript(ctx context.Context, sc ScriptContext, userContext string) (*Script, error) {
	system := fmt.Sprintf(djSystemPromptFmt, userContext)
	user, err := buildScriptPrompt(sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageDJScript, err)
	}

	content, ex, err := p.ask(ctx, StageDJScript, system, user, speechTemperature, p.speechBudget)
	if err != nil {
		return nil, err
	}
	return parseScript(StageDJScript, content, ex)
}

// SuggestQueries asks the planner for specific artist or title search
// queries matching the user's preferences. count is clamped to
// [1, MaxSuggestedQueries].
func (p *Planner) SuggestQueries(ctx context.Context, preferences, recentArtists []string, count int) (*QuerySuggestion, error) {
	if count <= 0 || count > MaxSuggestedQueries {
		count = MaxSuggestedQueries
	}

	user, err := buildQueryPrompt(preferences, recentArtists, count)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageSearchQueries, err)
	}

	content, ex, err := p.ask(ctx, StageSearchQueries, querySystemPrompt, user, queryTemperature, queryBudget)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("%s: parsing response: %w", StageSearchQueries, err)
	}

	queries := make([]string, 0, len(raw.Queries))
	for _, q := range raw.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == count {
			break
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s: response has no queries", StageSearchQueries)
	}

	return &QuerySuggestion{Queries: queries, Trace: ex}, nil
}

// parseScript parses the {text, tone, references} response shared by both
// script stages. Empty text is an error; the caller renders without voice.
func parseScript(stage, content string, ex Exchange) (*Script, error) {
	var raw struct {
		Text       string   `json:"text"`
		Tone       string   `json:"tone"`
		References []string `json:"references"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("%s: parsing response: %w", stage, err)
	}

	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, fmt.Errorf("%s: empty script text", stage)
	}

	return &Script{
		Text:       text,
		Tone:       raw.Tone,
		References: raw.References,
		Trace:      ex,
	}, nil
}
