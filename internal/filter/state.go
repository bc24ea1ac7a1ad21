// Package filter implements the per-team state estimator: a bounded
// seven-component state vector tracked by an unscented Kalman filter with a
// coupled, opponent-aware measurement model.
package filter

import (
	"math"

	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// State vector component indices.
const (
	IdxOffense = iota
	IdxDefense
	IdxHomeAdvantage
	IdxHealth
	IdxMomentum
	IdxFatigue
	IdxPace
	StateDim
)

// Per-component domain bounds. Every mutation of a state ends with a clamp
// back into these ranges.
var (
	stateLower = [StateDim]float64{50, 50, 0, 0, -1, 0, 60}
	stateUpper = [StateDim]float64{150, 150, 10, 1, 1, 1, 80}
)

// State is one team's latent strength/context vector.
type State [StateDim]float64

// DefaultState returns the prior for a team with no observed games.
func DefaultState(homeAdvantage float64) State {
	return State{
		IdxOffense:       100,
		IdxDefense:       100,
		IdxHomeAdvantage: clamp(homeAdvantage, stateLower[IdxHomeAdvantage], stateUpper[IdxHomeAdvantage]),
		IdxHealth:        1.0,
		IdxMomentum:      0.0,
		IdxFatigue:       0.0,
		IdxPace:          70,
	}
}

// Clamp forces every component back into its documented domain.
func (s *State) Clamp() {
	for i := 0; i < StateDim; i++ {
		s[i] = clamp(s[i], stateLower[i], stateUpper[i])
	}
}

// Ratings converts the state into its exported read-only view.
func (s State) Ratings() models.TeamRatings {
	return models.TeamRatings{
		OffensiveRating: s[IdxOffense],
		DefensiveRating: s[IdxDefense],
		HomeAdvantage:   s[IdxHomeAdvantage],
		HealthStatus:    s[IdxHealth],
		Momentum:        s[IdxMomentum],
		Fatigue:         s[IdxFatigue],
		Pace:            s[IdxPace],
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampSlice applies the component domains to a raw state vector, used when
// sigma points wander outside the admissible region.
func clampSlice(x []float64) {
	for i := 0; i < StateDim && i < len(x); i++ {
		x[i] = clamp(x[i], stateLower[i], stateUpper[i])
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
