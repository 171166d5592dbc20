// Package plannext implements the steady-state track selection stage: given
// the session's play history, pick the next track to transition into.
package plannext

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
	StageID = "plan_next_track"
	// StageName is the human-readable name for this stage.
	StageName = "Plan Next Track"
)

const (
	// sessionHistoryLimit is how many recent session plays feed the prompt.
	sessionHistoryLimit = 5
	// globalHistoryLimit is how far back repeat avoidance looks, across
	// all sessions.
	globalHistoryLimit = 50
	// candidateLimit caps cached candidates offered to the planner.
	candidateLimit = 20
	// queryCount is how many search queries the planner is asked for.
	queryCount = 5
	// searchLimit caps catalog search results per query.
	searchLimit = 10
)

// Stage picks the next incoming track. Cached tracks that have not been
// played recently are offered first; the catalog is searched only when the
// cache has nothing to offer.
type Stage struct {
	shared.BaseStage
	trackRepo   repository.TrackRepository
	featureRepo repository.TrackFeaturesRepository
	lyricsRepo  repository.LyricsAnalysisRepository
	historyRepo repository.PlayHistoryRepository
	traceRepo   repository.PlannerTraceRepository
	metadata    provider.MetadataProvider
	planner     *provider.Planner
	contextFile string
	logger      *slog.Logger
}

// New creates a new steady-state selection stage.
func New(
	trackRepo repository.TrackRepository,
	featureRepo repository.TrackFeaturesRepository,
	lyricsRepo repository.LyricsAnalysisRepository,
	historyRepo repository.PlayHistoryRepository,
	traceRepo repository.PlannerTraceRepository,
	metadata provider.MetadataProvider,
	planner *provider.Planner,
	contextFile string,
) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName, core.PhaseSelecting),
		trackRepo:   trackRepo,
		featureRepo: featureRepo,
		lyricsRepo:  lyricsRepo,
		historyRepo: historyRepo,
		traceRepo:   traceRepo,
		metadata:    metadata,
		planner:     planner,
		contextFile: contextFile,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		s := New(deps.TrackRepo, deps.FeatureRepo, deps.LyricsRepo, deps.HistoryRepo,
			deps.TraceRepo, deps.Metadata, deps.Planner, deps.ContextFile)
		if deps.Logger != nil {
			s.logger = deps.Logger.With("stage", StageID)
		}
		return s
	}
}

// Execute resolves the outgoing track from session history and selects the
// incoming track.
func (s *Stage) Execute(ctx context.Context, state *core.State) (*core.StageResult, error) {
	result := shared.NewResult()

	user, err := usercontext.Load(s.contextFile)
	if err != nil {
		s.log(ctx, slog.LevelWarn, "failed to load user context, using defaults",
			slog.String("error", err.Error()))
	}
	state.User = user

	// The outgoing track is the most recent play in this session.
	recent, err := s.historyRepo.RecentTracksBySession(ctx, state.Session.ID, sessionHistoryLimit)
	if err != nil {
		return result, fmt.Errorf("%w: loading session history: %v", core.ErrNoCandidate, err)
	}
	if len(recent) == 0 {
		return result, fmt.Errorf("%w: session has no play history", core.ErrNoCandidate)
	}
	state.TrackA = recent[0]

	// Repeat avoidance looks across all sessions.
	global, err := s.historyRepo.RecentGlobal(ctx, globalHistoryLimit)
	if err != nil {
		return result, fmt.Errorf("%w: loading global history: %v", core.ErrNoCandidate, err)
	}
	excludeIDs := shared.HistoryTrackIDs(global)

	candidates, cachedByID, hitByID, err := s.gatherCandidates(ctx, state, user, recent, excludeIDs)
	if err != nil {
		return result, err
	}

	sel := provider.SelectionContext{
		Mood:           user.Mood,
		Genres:         user.Genres,
		Prompt:         strings.Join(user.Preferences, "; "),
		SessionHistory: shared.HistoryEntries(recent),
		Candidates:     candidates,
	}

	chosenID, rationale := s.chooseTrack(ctx, state, sel, candidates)

	track, err := s.resolveTrack(ctx, chosenID, cachedByID, hitByID)
	if err != nil {
		return result, err
	}

	state.TrackB = track
	state.AddDecision("planning_next_track", rationale)

	s.log(ctx, slog.LevelInfo, "planned next track",
		slog.String("outgoing", state.TrackA.DisplayName()),
		slog.String("incoming", track.DisplayName()),
		slog.String("track_id", track.ID.String()))

	result.RecordsProcessed = len(candidates)
	result.Message = fmt.Sprintf("Selected %s from %d candidates", track.DisplayName(), len(candidates))
	return result, nil
}

// gatherCandidates assembles the candidate pool: cached tracks when any
// are eligible, otherwise a catalog search driven by a suggested query.
func (s *Stage) gatherCandidates(
	ctx context.Context,
	state *core.State,
	user usercontext.Context,
	recent []*models.Track,
	excludeIDs []models.UUID,
) ([]provider.CandidateTrack, map[string]*models.Track, map[string]provider.SongHit, error) {
	cached, err := s.trackRepo.CachedCandidates(ctx, candidateLimit, excludeIDs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: loading cached candidates: %v", core.ErrNoCandidate, err)
	}

	if len(cached) > 0 {
		s.log(ctx, slog.LevelInfo, "using cached candidates",
			slog.Int("count", len(cached)))

		candidates := make([]provider.CandidateTrack, 0, len(cached))
		byID := make(map[string]*models.Track, len(cached))
		for _, t := range cached {
			features, lyrics := s.analysisFor(ctx, t.ID)
			candidates = append(candidates, shared.Candidate(t, features, lyrics))
			byID[t.ID.String()] = t
		}
		return candidates, byID, nil, nil
	}

	// Nothing eligible in the cache: search the catalog.
	query := s.suggestQuery(ctx, state, user, shared.RecentArtists(recent))

	hits, err := s.metadata.Search(ctx, query, searchLimit)
	if provider.IsUnavailable(err) {
		return nil, nil, nil, fmt.Errorf("%w: no cached candidates and metadata catalog unavailable", core.ErrNoCandidate)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: searching %q: %v", core.ErrNoCandidate, query, err)
	}
	if len(hits) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no results for %q", core.ErrNoCandidate, query)
	}

	s.log(ctx, slog.LevelInfo, "using catalog candidates",
		slog.String("query", query),
		slog.Int("count", len(hits)))

	candidates := make([]provider.CandidateTrack, 0, len(hits))
	byID := make(map[string]provider.SongHit, len(hits))
	for _, h := range hits {
		candidates = append(candidates, provider.CandidateTrack{
			ID:     h.ID,
			Title:  h.Title,
			Artist: h.Artist,
			Key:    -1,
			Mode:   -1,
		})
		byID[h.ID] = h
	}
	return candidates, nil, byID, nil
}

// suggestQuery asks the planner for search queries seeded with listener
// preferences and recent artists, falling back to a known artist.
func (s *Stage) suggestQuery(ctx context.Context, state *core.State, user usercontext.Context, recentArtists []string) string {
	suggestion, err := s.planner.SuggestQueries(ctx, user.Preferences, recentArtists, queryCount)
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
// the first candidate when the planner is unavailable, fails, or picks an
// ID that is not in the pool.
func (s *Stage) chooseTrack(ctx context.Context, state *core.State, sel provider.SelectionContext, candidates []provider.CandidateTrack) (string, string) {
	selection, err := s.planner.SelectTrack(ctx, sel)
	switch {
	case err == nil:
		shared.RecordTrace(ctx, s.traceRepo, s.logger, state.Session.ID, selection.Trace)
		for _, c := range candidates {
			if c.ID == selection.SelectedID {
				return c.ID, selection.Rationale
			}
		}
		s.log(ctx, slog.LevelWarn, "planner selected unknown track, falling back to first candidate",
			slog.String("selected_id", selection.SelectedID))
	case provider.IsUnavailable(err):
		s.log(ctx, slog.LevelInfo, "planner unavailable, falling back to first candidate")
	default:
		s.log(ctx, slog.LevelWarn, "track selection failed, falling back to first candidate",
			slog.String("error", err.Error()))
	}
	return candidates[0].ID, "Fallback selection"
}

// resolveTrack turns the chosen candidate ID back into a catalog row.
func (s *Stage) resolveTrack(ctx context.Context, chosenID string, cachedByID map[string]*models.Track, hitByID map[string]provider.SongHit) (*models.Track, error) {
	if track, ok := cachedByID[chosenID]; ok {
		return track, nil
	}

	hit, ok := hitByID[chosenID]
	if !ok {
		return nil, fmt.Errorf("%w: chosen track %s not in candidate pool", core.ErrNoCandidate, chosenID)
	}

	id, err := models.ParseUUID(hit.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog returned unusable track id %q", core.ErrNoCandidate, hit.ID)
	}

	track, err := shared.EnsureTrackRow(ctx, s.trackRepo, id, hit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoCandidate, err)
	}
	return track, nil
}

// analysisFor loads whatever analysis is on file for a track. Missing or
// failed lookups degrade to nil; the prompt then shows fewer fields.
func (s *Stage) analysisFor(ctx context.Context, id models.UUID) (*models.TrackFeatures, *models.LyricsAnalysis) {
	features, err := s.featureRepo.Get(ctx, id)
	if err != nil {
		s.log(ctx, slog.LevelDebug, "failed to load track features",
			slog.String("track_id", id.String()),
			slog.String("error", err.Error()))
	}
	lyrics, err := s.lyricsRepo.Get(ctx, id)
	if err != nil {
		s.log(ctx, slog.LevelDebug, "failed to load lyrics analysis",
			slog.String("track_id", id.String()),
			slog.String("error", err.Error()))
	}
	return features, lyrics
}

// log logs a message if the logger is set.
func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
