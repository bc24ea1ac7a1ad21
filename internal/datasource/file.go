package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// FileSource reads a JSON array of completed games from disk. Records that
// fail validation are dropped with a warning rather than failing the load;
// one malformed game must not abort a season replay.
type FileSource struct {
	path   string
	logger *logrus.Logger
}

// NewFileSource creates a game source backed by a JSON file.
func NewFileSource(path string, logger *logrus.Logger) *FileSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &FileSource{path: path, logger: logger}
}

// Name returns the name of the game source
func (s *FileSource) Name() string {
	return "file"
}

// Games loads, validates and chronologically sorts the game records.
func (s *FileSource) Games(ctx context.Context) ([]*models.Game, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game file %s: %w", s.path, err)
	}

	var raw []*models.Game
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse game file %s: %w", s.path, err)
	}

	games := make([]*models.Game, 0, len(raw))
	dropped := 0
	for _, game := range raw {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if game == nil {
			dropped++
			s.logger.Warn("Dropping null game record")
			continue
		}
		if issues := validateGame(game); len(issues) > 0 {
			dropped++
			s.logger.WithFields(logrus.Fields{
				"home":   game.HomeTeam,
				"away":   game.AwayTeam,
				"issues": issues,
			}).Warn("Dropping invalid game record")
			continue
		}
		if game.ID == uuid.Nil {
			game.ID = uuid.New()
		}
		games = append(games, game)
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].Tipoff.Before(games[j].Tipoff)
	})

	if len(games) == 0 {
		return nil, models.ErrNoGames
	}

	s.logger.WithFields(logrus.Fields{
		"loaded":  len(games),
		"dropped": dropped,
		"source":  s.path,
	}).Info("Loaded game history")
	return games, nil
}

// validateGame checks a record for required fields and constraints
func validateGame(game *models.Game) []string {
	var issues []string

	if game.HomeTeam == "" {
		issues = append(issues, "home_team is required")
	}
	if game.AwayTeam == "" {
		issues = append(issues, "away_team is required")
	}
	if game.HomeTeam != "" && game.HomeTeam == game.AwayTeam {
		issues = append(issues, "home and away teams are identical")
	}
	if game.HomeScore < 0 || game.AwayScore < 0 {
		issues = append(issues, fmt.Sprintf("negative score %d-%d", game.HomeScore, game.AwayScore))
	}
	if game.Tipoff.IsZero() {
		issues = append(issues, "tipoff is required")
	}
	for _, v := range []float64{
		game.HomeFeatures.HealthStatus, game.HomeFeatures.Momentum, game.HomeFeatures.Fatigue,
		game.AwayFeatures.HealthStatus, game.AwayFeatures.Momentum, game.AwayFeatures.Fatigue,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			issues = append(issues, "non-finite feature value")
			break
		}
	}

	return issues
}
