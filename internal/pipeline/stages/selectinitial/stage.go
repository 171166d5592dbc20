// Package selectinitial implements the session-opening track selection stage.
package selectinitial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/mixarr/internal/models"
	"github.com/jmylchreest/mixarr/internal/pipeline/core"
	"github.com/jmylchreest/mixarr/internal/pipeline/shared"
	"github.com/jmylchreest/mixarr/internal/provider"
	"github.com/jmylchreest/mixarr/internal/repository"
	"github.com/jmylchreest/mixarr/internal/usercontext"
)

const (
	// StageID is the unique identifier for this stage.
	StageID = "select_initial"
	// StageName is the human-readable name for this stage.
	StageName = "Select Initial Track"
)

const (
	// queryCount is how many search queries the planner is asked for.
	queryCount = 5
	// searchLimit caps catalog search results per query.
	searchLimit = 10
)

// Stage selects the opening track of a session. The catalog has no play
// history to lean on yet, so selection always goes through a suggested
// search query.
type Stage struct {
	shared.BaseStage
	trackRepo   repository.TrackRepository
	traceRepo   repository.PlannerTraceRepository
	metadata    provider.MetadataProvider
	planner     *provider.Planner
	contextFile string
	logger      *slog.Logger
}

// New creates a new initial selection stage.
func New(trackRepo repository.TrackRepository, traceRepo repository.PlannerTraceRepository, metadata provider.MetadataProvider, planner *provider.Planner, contextFile string) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName, core.PhaseSelecting),
		trackRepo:   trackRepo,
		traceRepo:   traceRepo,
		metadata:    metadata,
		planner:     planner,
		contextFile: contextFile,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.TrackRepo, deps.TraceRepo, deps.Metadata, deps.Planner, deps.ContextFile)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute picks the session's first track and leaves it on the state as the
// incoming track.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	user, err := usercontext.Load(s.contextFile)
	if err != nil {
		s.log(ctx, slog.LevelWarn, "failed to load user context, using defaults",
			slog.String("error", err.Error()))
	}
	state.User = user

	hits, query, err := s.searchCandidates(ctx, state, user)
	if err != nil {
		return result, err
	}

	s.log(ctx, slog.LevelInfo, "searched catalog for opening track",
		slog.String("query", query),
		slog.Int("hits", len(hits)))

	candidates := make([]provider.CandidateTrack, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, provider.CandidateTrack{
			ID:     h.ID,
			Title:  h.Title,
			Artist: h.Artist,
			Key:    -1,
			Mode:   -1,
		})
	}

	sel := provider.SelectionContext{
		Mood:       user.Mood,
		Genres:     user.Genres,
		Prompt:     strings.Join(user.Preferences, "; "),
		Candidates: candidates,
	}

	chosen, rationale := s.chooseTrack(ctx, state, sel, hits)

	id, err := models.ParseUUID(chosen.ID)
	if err != nil {
		return result, fmt.Errorf("%w: catalog returned unusable track id %q", core.ErrNoCandidate, chosen.ID)
	}

	track, err := shared.EnsureTrackRow(ctx, s.trackRepo, id, chosen)
	if err != nil {
		return result, fmt.Errorf("%w: %v", core.ErrNoCandidate, err)
	}

	state.TrackB = track
	state.AddDecision("initial_track_selection", rationale)

	s.log(ctx, slog.LevelInfo, "selected opening track",
		slog.String("track_id", track.ID.String()),
		slog.String("track", track.DisplayName()))

	result.RecordsProcessed = len(candidates)
	result.Message = fmt.Sprintf("Selected %s from %d candidates", track.DisplayName(), len(candidates))
	return result, nil
}

// searchCandidates finds opening-track candidates via a suggested query,
// retrying once with a fresh query before giving up.
func (s *Stage) searchCandidates(ctx context.Context, state *core.State, user usercontext.Context) ([]provider.SongHit, string, error) {
	query := s.suggestQuery(ctx, state, user)

	hits, err := s.metadata.Search(ctx, query, searchLimit)
	if provider.IsUnavailable(err) {
		return nil, query, fmt.Errorf("%w: metadata catalog unavailable", core.ErrNoCandidate)
	}

	if err != nil || len(hits) == 0 {
		retry := s.suggestQuery(ctx, state, user)
		s.log(ctx, slog.LevelWarn, "no results for opening query, retrying",
			slog.String("query", query),
			slog.String("retry_query", retry))
		query = retry
		hits, err = s.metadata.Search(ctx, query, searchLimit)
	}

	if err != nil {
		return nil, query, fmt.Errorf("%w: searching %q: %v", core.ErrNoCandidate, query, err)
	}
	if len(hits) == 0 {
		return nil, query, fmt.Errorf("%w: no results for %q", core.ErrNoCandidate, query)
	}
	return hits, query, nil
}

// suggestQuery asks the planner for search queries and falls back to a
// known artist when the planner is unavailable or suggests nothing usable.
func (s *Stage) suggestQuery(ctx context.Context, state *core.State, user usercontext.Context) string {
	suggestion, err := s.planner.SuggestQueries(ctx, user.Preferences, nil, queryCount)
	if err != nil {
		if !provider.IsUnavailable(err) {
			s.log(ctx, slog.LevelWarn, "query suggestion failed, using fallback artist",
				slog.String("error", err.Error()))
		}
		return shared.FallbackQuery()
	}

	shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, suggestion.Trace)

	if q := shared.PickQuery(suggestion.Queries); q != "" {
		return q
	}
	s.log(ctx, slog.LevelWarn, "suggested queries failed validation, using fallback artist",
		slog.Any("queries", suggestion.Queries))
	return shared.FallbackQuery()
}

// chooseTrack runs planner selection over the candidates and falls back to
// the first hit when the planner is unavailable, fails, or picks an ID that
// is not among the candidates.
func (s *Stage) chooseTrack(ctx context.Context, state *core.State, sel provider.SelectionContext, hits []provider.SongHit) (provider.SongHit, string) {
	selection, err := s.planner.SelectTrack(ctx, sel)
	switch {
	case err == nil:
		shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, selection.Trace)
		for _, h := range hits {
			if h.ID == selection.SelectedID {
				return h, selection.Rationale
			}
		}
		s.log(ctx, slog.LevelWarn, "planner selected unknown track, falling back to first result",
			slog.String("selected_id", selection.SelectedID))
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "planner unavailable, falling back to first result")
	default:
		s.log(ctx, slog.LevelWarn, "track selection failed, falling back to first result",
			slog.String("error", err.Error()))
	}
	return hits[0], "Fallback selection"
}

// log logs a message if the logger is set.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
