// Package models defines the data entities shared across the prediction engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamFeatures carries the externally computed context for one side of a game.
// Feature computation (injury reports, schedule analysis, box-score pace) is
// owned by upstream collaborators; the engine consumes the finished values.
type TeamFeatures struct {
	HealthStatus float64 `json:"health_status" validate:"gte=0,lte=1"`
	Momentum     float64 `json:"momentum" validate:"gte=-1,lte=1"`
	Fatigue      float64 `json:"fatigue" validate:"gte=0,lte=1"`
	Pace         float64 `json:"pace" validate:"gte=0"`
}

// Game represents a completed game observation. Immutable once recorded.
type Game struct {
	ID               uuid.UUID    `json:"id"`
	HomeTeam         string       `json:"home_team" validate:"required"`
	AwayTeam         string       `json:"away_team" validate:"required"`
	HomeScore        int          `json:"home_score" validate:"gte=0"`
	AwayScore        int          `json:"away_score" validate:"gte=0"`
	Tipoff           time.Time    `json:"tipoff" validate:"required"`
	HomeFeatures     TeamFeatures `json:"home_features"`
	AwayFeatures     TeamFeatures `json:"away_features"`
	HomePaceEstimate float64      `json:"home_pace_estimate"`
	AwayPaceEstimate float64      `json:"away_pace_estimate"`
}

// ScoreDiff returns the home-perspective score differential.
func (g *Game) ScoreDiff() int {
	return g.HomeScore - g.AwayScore
}

// TotalPoints returns the combined score of both teams.
func (g *Game) TotalPoints() int {
	return g.HomeScore + g.AwayScore
}

// TeamRatings is a read-only view of one team's current state estimate.
type TeamRatings struct {
	OffensiveRating float64 `json:"offensive_rating"`
	DefensiveRating float64 `json:"defensive_rating"`
	HomeAdvantage   float64 `json:"home_advantage"`
	HealthStatus    float64 `json:"health_status"`
	Momentum        float64 `json:"momentum"`
	Fatigue         float64 `json:"fatigue"`
	Pace            float64 `json:"pace"`
}

// TeamRatingsSnapshot maps team identifiers to their current ratings, one
// entry per team ever observed by the registry.
type TeamRatingsSnapshot map[string]TeamRatings
