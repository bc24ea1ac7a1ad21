// Package engine coordinates per-team filters over a stream of game results.
package engine

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/filter"
	"github.com/collinh52/cbb-predictor-sub000/internal/metrics"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// Registry owns one TeamFilter per team identifier, created lazily on first
// reference. It is the single writer over team state: one goroutine ingests
// games while any number of readers take consistent snapshots under the
// read lock. A reader can never observe a half-applied two-sided update.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]*filter.TeamFilter
	cfg     config.FilterConfig
	logger  *logrus.Logger
	skipped uint64
	epoch   uint64
}

// NewRegistry creates an empty registry with constructor-injected
// configuration. There is no process-wide instance; callers share one by
// ordinary dependency injection.
func NewRegistry(cfg config.FilterConfig, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		filters: make(map[string]*filter.TeamFilter),
		cfg:     cfg,
		logger:  logger,
	}
}

// ProcessGame applies one completed game to both participants. Each side is
// updated against a pre-game value copy of its opponent's state, so the away
// update never observes mutations the home update just made. Games with
// unresolvable team identifiers are skipped and counted, never raised.
func (r *Registry) ProcessGame(game *models.Game) {
	if game == nil || game.HomeTeam == "" || game.AwayTeam == "" || game.HomeTeam == game.AwayTeam {
		r.skipGame(game)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	home, err := r.getOrCreate(game.HomeTeam)
	if err != nil {
		r.skipGameLocked(game, err)
		return
	}
	away, err := r.getOrCreate(game.AwayTeam)
	if err != nil {
		r.skipGameLocked(game, err)
		return
	}

	// Snapshot both sides before either mutates.
	homePre := home.State()
	awayPre := away.State()

	home.Update(filter.Observation{
		Score:         game.HomeScore,
		OpponentScore: game.AwayScore,
		IsHome:        true,
		Features:      game.HomeFeatures,
		ActualPace:    game.HomePaceEstimate,
		Opponent:      awayPre,
	})
	away.Update(filter.Observation{
		Score:         game.AwayScore,
		OpponentScore: game.HomeScore,
		IsHome:        false,
		Features:      game.AwayFeatures,
		ActualPace:    game.AwayPaceEstimate,
		Opponent:      homePre,
	})

	r.epoch++
	metrics.RecordGameProcessed()
}

// ProcessGames replays a batch in the given order. The caller is responsible
// for chronological ordering; the replay is order-sensitive by design.
func (r *Registry) ProcessGames(games []*models.Game) {
	for _, game := range games {
		r.ProcessGame(game)
	}
	r.logger.WithFields(logrus.Fields{
		"games":   len(games),
		"teams":   r.TeamCount(),
		"skipped": r.SkippedGames(),
	}).Info("Replay batch complete")
}

// Ensure creates the filter for teamID if it does not exist yet, seeding the
// default prior. Useful for preloading a league before any games replay.
func (r *Registry) Ensure(teamID string) error {
	if teamID == "" {
		return models.ErrUnknownTeam
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.getOrCreate(teamID)
	return err
}

// Ratings returns the current ratings for one team.
func (r *Registry) Ratings(teamID string) (models.TeamRatings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[teamID]
	if !ok {
		return models.TeamRatings{}, false
	}
	return f.Ratings(), true
}

// View returns a consistent state-plus-variance snapshot for one team.
func (r *Registry) View(teamID string) (filter.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[teamID]
	if !ok {
		return filter.Snapshot{}, false
	}
	return f.Snapshot(), true
}

// MatchupViews returns snapshots for both sides of a matchup taken under a
// single read lock, so they belong to the same epoch.
func (r *Registry) MatchupViews(homeID, awayID string) (home, away filter.Snapshot, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hf, hok := r.filters[homeID]
	af, aok := r.filters[awayID]
	if !hok || !aok {
		return filter.Snapshot{}, filter.Snapshot{}, false
	}
	return hf.Snapshot(), af.Snapshot(), true
}

// Snapshot returns ratings for every team ever observed.
func (r *Registry) Snapshot() models.TeamRatingsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(models.TeamRatingsSnapshot, len(r.filters))
	for id, f := range r.filters {
		out[id] = f.Ratings()
	}
	return out
}

// TeamCount returns the number of teams with an active filter.
func (r *Registry) TeamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filters)
}

// SkippedGames returns how many games were dropped for unresolvable teams.
func (r *Registry) SkippedGames() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skipped
}

// Epoch returns a counter that increments on every state mutation. Cached
// prediction layers key on it to avoid serving stale forecasts.
func (r *Registry) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// getOrCreate is called with the write lock held.
func (r *Registry) getOrCreate(teamID string) (*filter.TeamFilter, error) {
	if f, ok := r.filters[teamID]; ok {
		return f, nil
	}
	f, err := filter.NewTeamFilter(teamID, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.filters[teamID] = f
	metrics.UpdateTrackedTeams(float64(len(r.filters)))
	return f, nil
}

func (r *Registry) skipGame(game *models.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipGameLocked(game, models.ErrUnknownTeam)
}

// skipGameLocked is called with the write lock held.
func (r *Registry) skipGameLocked(game *models.Game, err error) {
	r.skipped++
	metrics.RecordGameSkipped()
	fields := logrus.Fields{"error": err}
	if game != nil {
		fields["home"] = game.HomeTeam
		fields["away"] = game.AwayTeam
	}
	r.logger.WithFields(fields).Warn("Skipping game")
}
