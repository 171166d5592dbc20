package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/models"
)

// scriptedLLM returns a canned completion and records the call parameters.
type scriptedLLM struct {
	content string
	err     error

	gotMessages    []ChatMessage
	gotTemperature float64
	gotBudget      int
	gotJSONMode    bool
	calls          int
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []ChatMessage, temperature float64, reasoningBudget int, jsonMode bool) (*ChatResult, error) {
	s.calls++
	s.gotMessages = messages
	s.gotTemperature = temperature
	s.gotBudget = reasoningBudget
	s.gotJSONMode = jsonMode

	if s.err != nil {
		return nil, s.err
	}
	return &ChatResult{Content: s.content, Model: "test-model", FinishReason: "stop"}, nil
}

func selectionFixture() SelectionContext {
	return SelectionContext{
		Mood:   0.8,
		Genres: []string{"pop", "rock"},
		Prompt: "keep it upbeat",
		SessionHistory: []HistoryEntry{
			{Title: "Levitating", Artist: "Dua Lipa"},
		},
		Candidates: []CandidateTrack{
			{ID: "uuid-1", Title: "Don't Stop Me Now", Artist: "Queen", Tempo: 156, Energy: 0.9, Key: 5, Mode: 1},
			{ID: "uuid-2", Title: "Take On Me", Artist: "a-ha", Tempo: 169, Energy: 0.9, Key: -1, Mode: -1},
		},
	}
}

func TestPlanner_SelectTrack(t *testing.T) {
	llm := &scriptedLLM{content: `{
		"selected_uuid": "uuid-2",
		"rationale": "tempo continuity",
		"energy_match": 0.93,
		"genre_match": true,
		"recency_ok": true
	}`}
	p := NewPlanner(llm)

	sel, err := p.SelectTrack(context.Background(), selectionFixture())
	require.NoError(t, err)

	assert.Equal(t, "uuid-2", sel.SelectedID)
	assert.Equal(t, "tempo continuity", sel.Rationale)
	assert.Equal(t, 0.93, sel.EnergyMatch)
	assert.True(t, sel.GenreMatch)
	assert.True(t, sel.RecencyOK)

	assert.Equal(t, StageTrackSelection, sel.Trace.Stage)
	assert.Equal(t, "test-model", sel.Trace.Model)
	assert.Equal(t, DefaultTrackBudget, sel.Trace.Budget)
	assert.Contains(t, sel.Trace.Prompt, "uuid-1")
	assert.Contains(t, sel.Trace.Prompt, "keep it upbeat")
	assert.Equal(t, llm.content, sel.Trace.Response)

	assert.Equal(t, selectionTemperature, llm.gotTemperature)
	assert.Equal(t, DefaultTrackBudget, llm.gotBudget)
	assert.True(t, llm.gotJSONMode)
	require.Len(t, llm.gotMessages, 2)
	assert.Equal(t, RoleSystem, llm.gotMessages[0].Role)
	assert.Equal(t, RoleUser, llm.gotMessages[1].Role)
	assert.Contains(t, llm.gotMessages[1].Content, "Don't Stop Me Now")
}

func TestPlanner_SelectTrack_NoCandidates(t *testing.T) {
	llm := &scriptedLLM{content: "{}"}
	p := NewPlanner(llm)

	_, err := p.SelectTrack(context.Background(), SelectionContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
	assert.Zero(t, llm.calls, "no LLM call should be made without candidates")
}

func TestPlanner_SelectTrack_MalformedResponse(t *testing.T) {
	llm := &scriptedLLM{content: "sure! here is my pick: uuid-1"}
	p := NewPlanner(llm)

	_, err := p.SelectTrack(context.Background(), selectionFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing response")
}

func TestPlanner_SelectTrack_MissingID(t *testing.T) {
	llm := &scriptedLLM{content: `{"rationale": "great vibes"}`}
	p := NewPlanner(llm)

	_, err := p.SelectTrack(context.Background(), selectionFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selected_uuid")
}

func TestPlanner_SelectTrack_UnavailablePassthrough(t *testing.T) {
	llm := &scriptedLLM{err: fmt.Errorf("planner llm: %w", ErrUnavailable)}
	p := NewPlanner(llm)

	_, err := p.SelectTrack(context.Background(), selectionFixture())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "wrapping must preserve the sentinel")
}

func TestPlanner_PlanTransition(t *testing.T) {
	llm := &scriptedLLM{content: `{
		"transition_type": "bass_swap",
		"transition_start": 196.5,
		"crossfade_duration": 10.0,
		"tts_start_offset": 5.0,
		"analysis": "matched tempo, swap on the downbeat"
	}`}
	p := NewPlanner(llm)

	outgoing := TrackBrief{Title: "One More Time", Artist: "Daft Punk", DurationSec: 212, Tempo: 123, Key: 2, Mode: 1}
	incoming := TrackBrief{Title: "Around the World", Artist: "Daft Punk", DurationSec: 428, Tempo: 121, Key: 9, Mode: 0}

	plan, err := p.PlanTransition(context.Background(), outgoing, incoming)
	require.NoError(t, err)

	assert.Equal(t, models.TransitionBassSwap, plan.Kind)
	assert.Equal(t, 196.5, plan.TransitionStart)
	assert.Equal(t, 10.0, plan.Crossfade)
	assert.Equal(t, 5.0, plan.VoiceLead)
	assert.Equal(t, "matched tempo, swap on the downbeat", plan.Analysis)

	assert.Equal(t, StageTransitionPlan, plan.Trace.Stage)
	assert.Equal(t, DefaultTransitionBudget, plan.Trace.Budget)
	assert.Equal(t, transitionTemperature, llm.gotTemperature)
	assert.Contains(t, llm.gotMessages[1].Content, "One More Time")
	assert.Contains(t, llm.gotMessages[1].Content, "Around the World")
}

func TestPlanner_PlanTransition_UnknownKindFallsBackToBlend(t *testing.T) {
	llm := &scriptedLLM{content: `{
		"transition_type": "slam_cut",
		"transition_start": 180,
		"crossfade_duration": 8,
		"tts_start_offset": 4
	}`}
	p := NewPlanner(llm)

	plan, err := p.PlanTransition(context.Background(), TrackBrief{Title: "A"}, TrackBrief{Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, models.TransitionBlend, plan.Kind)
}

func TestPlanner_PlanTransition_MalformedResponse(t *testing.T) {
	llm := &scriptedLLM{content: "I suggest a smooth blend around 3:16."}
	p := NewPlanner(llm)

	_, err := p.PlanTransition(context.Background(), TrackBrief{Title: "A"}, TrackBrief{Title: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transition plan")
}

func TestDefaultTransitionPlan(t *testing.T) {
	plan := DefaultTransitionPlan(212)

	assert.Equal(t, models.TransitionBlend, plan.Kind)
	assert.Equal(t, 182.0, plan.TransitionStart)
	assert.Equal(t, 10.0, plan.Crossfade)
	assert.Equal(t, 5.0, plan.VoiceLead)
	assert.NotEmpty(t, plan.Analysis)
}

func TestPlanner_WithBudgets(t *testing.T) {
	llm := &scriptedLLM{content: `{"selected_uuid": "uuid-1"}`}
	p := NewPlanner(llm).WithBudgets(4000, 0, -1)

	_, err := p.SelectTrack(context.Background(), selectionFixture())
	require.NoError(t, err)
	assert.Equal(t, 4000, llm.gotBudget)

	assert.Equal(t, DefaultTransitionBudget, p.transitionBudget, "zero keeps the default")
	assert.Equal(t, DefaultSpeechBudget, p.speechBudget, "negative keeps the default")
}

func TestPlanner_WriteIntroScript(t *testing.T) {
	llm := &scriptedLLM{content: `{
		"text": "Hey Alex, welcome in. We are opening with a stone-cold classic.",
		"tone": "excited",
		"references": []
	}`}
	p := NewPlanner(llm)

	script, err := p.WriteIntroScript(context.Background(), TrackBrief{Title: "Don't Stop Me Now", Artist: "Queen"}, "Alex, likes 70s rock")
	require.NoError(t, err)

	assert.Equal(t, "Hey Alex, welcome in. We are opening with a stone-cold classic.", script.Text)
	assert.Equal(t, "excited", script.Tone)
	assert.Equal(t, StageIntroScript, script.Trace.Stage)
	assert.Equal(t, DefaultSpeechBudget, script.Trace.Budget)

	assert.Equal(t, speechTemperature, llm.gotTemperature)
	assert.Contains(t, llm.gotMessages[0].Content, "Alex, likes 70s rock")
	assert.Contains(t, llm.gotMessages[1].Content, "Queen")
}

func TestPlanner_WriteIntroScript_EmptyText(t *testing.T) {
	llm := &scriptedLLM{content: `{"text": "   ", "tone": "excited"}`}
	p := NewPlanner(llm)

	_, err := p.WriteIntroScript(context.Background(), TrackBrief{Title: "A"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty script text")
}

func TestPlanner_WriteTransitionScript(t *testing.T) {
	llm := &scriptedLLM{content: `{
		"text": "That was Queen. Watch the bass drop out from under you.",
		"tone": "humorous",
		"references": ["1978 single"]
	}`}
	p := NewPlanner(llm)

	sc := ScriptContext{
		Outgoing:   TrackBrief{Title: "Don't Stop Me Now", Artist: "Queen"},
		Incoming:   TrackBrief{Title: "Take On Me", Artist: "a-ha"},
		Transition: "bass_swap",
		Recent:     []HistoryEntry{{Title: "Levitating", Artist: "Dua Lipa"}},
	}
	script, err := p.WriteTransitionScript(context.Background(), sc, "Alex")
	require.NoError(t, err)

	assert.Equal(t, StageDJScript, script.Trace.Stage)
	assert.Equal(t, []string{"1978 single"}, script.References)
	assert.Contains(t, llm.gotMessages[1].Content, "bass_swap")
	assert.Contains(t, llm.gotMessages[1].Content, "a-ha")
}

func TestPlanner_SuggestQueries(t *testing.T) {
	llm := &scriptedLLM{content: `{"queries": ["Queen", "  ", "ABBA", "Dua Lipa", "Elton John"]}`}
	p := NewPlanner(llm)

	got, err := p.SuggestQueries(context.Background(), []string{"70s/80s UK pop"}, []string{"Queen"}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"Queen", "ABBA", "Dua Lipa"}, got.Queries, "blank entries dropped, list capped at count")
	assert.Equal(t, StageSearchQueries, got.Trace.Stage)
	assert.Equal(t, queryBudget, got.Trace.Budget)
	assert.Equal(t, queryTemperature, llm.gotTemperature)
	assert.Contains(t, llm.gotMessages[1].Content, "70s/80s UK pop")
}

func TestPlanner_SuggestQueries_CountClamped(t *testing.T) {
	llm := &scriptedLLM{content: `{"queries": ["a", "b", "c", "d", "e", "f", "g"]}`}
	p := NewPlanner(llm)

	got, err := p.SuggestQueries(context.Background(), nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, got.Queries, MaxSuggestedQueries)

	got, err = p.SuggestQueries(context.Background(), nil, nil, 99)
	require.NoError(t, err)
	assert.Len(t, got.Queries, MaxSuggestedQueries)
}

func TestPlanner_SuggestQueries_Empty(t *testing.T) {
	llm := &scriptedLLM{content: `{"queries": ["", "   "]}`}
	p := NewPlanner(llm)

	_, err := p.SuggestQueries(context.Background(), nil, nil, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no queries")
}

func TestPlanner_ErrorsCarryStageName(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("boom")}
	p := NewPlanner(llm)

	_, err := p.SelectTrack(context.Background(), selectionFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageTrackSelection)

	_, err = p.PlanTransition(context.Background(), TrackBrief{}, TrackBrief{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageTransitionPlan)

	_, err = p.SuggestQueries(context.Background(), nil, nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageSearchQueries)
}
