package filter

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/metrics"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// Measurement vector component indices: score differential, total points,
// pace.
const (
	MeasScoreDiff = iota
	MeasTotal
	MeasPace
	MeasDim
)

// Fixed measurement-model weights and smoothing gains. These are design
// constants of the rating system, not tuned parameters.
const (
	healthImpactWeight   = 5.0
	momentumImpactWeight = 3.0
	fatigueImpactWeight  = 2.0

	fatigueDecay     = 0.95
	paceSmoothing    = 0.1
	homeAdvSmoothing = 0.05
	residualGain     = 0.1
)

// Observation is one team's view of a completed game. Opponent carries a
// pre-game value copy of the other team's state, never a live reference.
type Observation struct {
	Score         int
	OpponentScore int
	IsHome        bool
	Features      models.TeamFeatures
	ActualPace    float64
	Opponent      State
}

// Snapshot is a point-in-time copy of a team's state and per-component
// variances, safe to hand across goroutines.
type Snapshot struct {
	State     State
	Variances [StateDim]float64
}

// TeamFilter owns one team's state estimate and applies the per-game update.
type TeamFilter struct {
	teamID string
	ukf    *UKF
	cfg    config.FilterConfig
	logger *logrus.Logger
}

// NewTeamFilter creates a filter seeded with the default prior for teamID.
func NewTeamFilter(teamID string, cfg config.FilterConfig, logger *logrus.Logger) (*TeamFilter, error) {
	if logger == nil {
		logger = logrus.New()
	}
	initial := DefaultState(cfg.HomeAdvantage)
	ukf, err := NewUKF(initial[:], cfg.ProcessNoise, cfg.InitialVariance, cfg.Alpha, cfg.Beta, cfg.Kappa)
	if err != nil {
		return nil, err
	}
	return &TeamFilter{
		teamID: teamID,
		ukf:    ukf,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// TeamID returns the identifier this filter tracks.
func (f *TeamFilter) TeamID() string {
	return f.teamID
}

// State returns a copy of the current state estimate.
func (f *TeamFilter) State() State {
	var s State
	copy(s[:], f.ukf.State())
	return s
}

// Snapshot returns the current state plus per-component variances.
func (f *TeamFilter) Snapshot() Snapshot {
	snap := Snapshot{State: f.State()}
	for i := 0; i < StateDim; i++ {
		snap.Variances[i] = f.ukf.Variance(i)
	}
	return snap
}

// Ratings returns the exported read-only view of the state.
func (f *TeamFilter) Ratings() models.TeamRatings {
	return f.State().Ratings()
}

// Update applies one completed game to the state estimate. The sequence is:
// drift the state through the process model, overwrite the context
// components from the feature bundle, smooth pace and home advantage from
// the raw observations, run the unscented correction on the observed
// (score differential, total, pace) triple, then apply the residual nudge
// to the efficiency ratings. Every step ends inside the component domains.
func (f *TeamFilter) Update(obs Observation) {
	if reset := f.ukf.Predict(f.processModel); reset {
		f.warnReset("predict")
	}
	f.clampState()

	// Health, momentum and fatigue are externally computed point
	// observations; they replace the estimate rather than blending in.
	f.setObserved(IdxHealth, obs.Features.HealthStatus)
	f.setObserved(IdxMomentum, obs.Features.Momentum)
	f.setObserved(IdxFatigue, obs.Features.Fatigue)

	if isFinite(obs.ActualPace) {
		actual := clamp(obs.ActualPace, stateLower[IdxPace], stateUpper[IdxPace])
		old := f.ukf.Component(IdxPace)
		f.ukf.SetComponent(IdxPace, (1-paceSmoothing)*old+paceSmoothing*actual)
	} else {
		f.warnSkipped("actual_pace", obs.ActualPace)
	}

	scoreDiff := float64(obs.Score - obs.OpponentScore)

	if obs.IsHome {
		old := f.ukf.Component(IdxHomeAdvantage)
		observed := math.Max(0, scoreDiff/2)
		f.ukf.SetComponent(IdxHomeAdvantage, (1-homeAdvSmoothing)*old+homeAdvSmoothing*observed)
	}
	f.clampState()

	z := []float64{scoreDiff, float64(obs.Score + obs.OpponentScore), obs.ActualPace}
	active := make([]int, 0, MeasDim)
	for i, v := range z {
		if isFinite(v) {
			active = append(active, i)
		} else {
			f.warnSkipped(measurementName(i), v)
		}
	}

	// The context components were just overwritten from the bundle; freeze
	// them for the measurement model so the correction cannot re-filter
	// what is defined as a point observation.
	ctx := f.currentContext()
	opp := obs.Opponent
	reset, err := f.ukf.Correct(z, f.cfg.MeasurementNoise, active, func(x []float64) []float64 {
		return measurementVector(x, opp, obs.IsHome, ctx, f.cfg.HealthBaseline)
	})
	if err != nil {
		f.logger.WithError(err).WithField("team", f.teamID).Warn("Measurement correction abandoned")
	}
	if reset {
		f.warnReset("correct")
	}
	f.clampState()

	f.applyResidualNudge(obs)
	f.clampState()
}

// ExpectedMeasurement evaluates the measurement model at the current state
// mean against a fixed opponent snapshot.
func (f *TeamFilter) ExpectedMeasurement(opp State, isHome bool) (scoreDiff, total, pace float64) {
	z := measurementVector(f.ukf.State(), opp, isHome, f.currentContext(), f.cfg.HealthBaseline)
	return z[MeasScoreDiff], z[MeasTotal], z[MeasPace]
}

// gameContext is the frozen health/momentum/fatigue trio a correction runs
// against.
type gameContext struct {
	health   float64
	momentum float64
	fatigue  float64
}

func (f *TeamFilter) currentContext() gameContext {
	return gameContext{
		health:   f.ukf.Component(IdxHealth),
		momentum: f.ukf.Component(IdxMomentum),
		fatigue:  f.ukf.Component(IdxFatigue),
	}
}

// ApplyResidualNudge exposes the heuristic rating adjustment for isolated
// use; Update invokes it after the statistical correction.
func (f *TeamFilter) ApplyResidualNudge(obs Observation) {
	f.applyResidualNudge(obs)
	f.clampState()
}

// processModel drifts one sigma point between observations: pure random walk
// for ratings, home advantage, health and pace (noise enters through Q), a
// multiplicative decay for momentum and fatigue.
func (f *TeamFilter) processModel(x []float64) {
	x[IdxMomentum] *= f.cfg.MomentumDecay
	x[IdxFatigue] *= fatigueDecay
	clampSlice(x)
}

// applyResidualNudge moves the efficiency ratings by a flat fraction of the
// scoring residual: offense toward points scored, defense away from points
// allowed. The unscented correction alone converges too slowly across a
// single season.
func (f *TeamFilter) applyResidualNudge(obs Observation) {
	s := f.ukf.State()
	opp := obs.Opponent

	ourPace := clamp(s[IdxPace], stateLower[IdxPace], stateUpper[IdxPace])
	oppPace := clamp(opp[IdxPace], stateLower[IdxPace], stateUpper[IdxPace])
	healthAvg := (s[IdxHealth] + opp[IdxHealth]) / 2

	expectedOwn := (s[IdxOffense] - opp[IdxDefense] + 100) / 100 * ourPace * healthAvg
	expectedAllowed := (opp[IdxOffense] - s[IdxDefense] + 100) / 100 * oppPace * healthAvg

	f.ukf.SetComponent(IdxOffense, s[IdxOffense]+residualGain*(float64(obs.Score)-expectedOwn))
	f.ukf.SetComponent(IdxDefense, s[IdxDefense]-residualGain*(float64(obs.OpponentScore)-expectedAllowed))
}

// measurementVector predicts (score differential, total points, pace) for a
// state vector x against a fixed opponent snapshot. This is the coupling
// point between the two teams' filters: the opponent enters as a frozen
// pre-game value, so the prediction is nonlinear in x but never aliases
// another live filter. The context trio is likewise frozen: only the
// filtered components (ratings, home advantage, pace) vary across sigma
// points.
func measurementVector(x []float64, opp State, isHome bool, ctx gameContext, healthBaseline float64) []float64 {
	diff := (x[IdxOffense] - opp[IdxDefense]) - (opp[IdxOffense] - x[IdxDefense])
	if isHome {
		diff += x[IdxHomeAdvantage]
	}
	diff += healthImpactWeight * (ctx.health - healthBaseline)
	diff += momentumImpactWeight * ctx.momentum
	diff -= fatigueImpactWeight * ctx.fatigue

	// Pace is clamped before the ratio conversion so a wandering sigma
	// point cannot blow up the total.
	ourPace := clamp(x[IdxPace], stateLower[IdxPace], stateUpper[IdxPace])
	oppPace := clamp(opp[IdxPace], stateLower[IdxPace], stateUpper[IdxPace])
	healthAvg := (ctx.health + opp[IdxHealth]) / 2

	ourPts := (x[IdxOffense] - opp[IdxDefense] + 100) / 100 * ourPace
	oppPts := (opp[IdxOffense] - x[IdxDefense] + 100) / 100 * oppPace
	total := (ourPts + oppPts) * healthAvg

	return []float64{diff, total, x[IdxPace]}
}

func (f *TeamFilter) setObserved(idx int, v float64) {
	if !isFinite(v) {
		f.warnSkipped(componentName(idx), v)
		return
	}
	f.ukf.SetComponent(idx, clamp(v, stateLower[idx], stateUpper[idx]))
}

func (f *TeamFilter) clampState() {
	for i := 0; i < StateDim; i++ {
		f.ukf.SetComponent(i, clamp(f.ukf.Component(i), stateLower[i], stateUpper[i]))
	}
}

func (f *TeamFilter) warnSkipped(name string, v float64) {
	metrics.RecordInvalidMeasurement()
	f.logger.WithFields(logrus.Fields{
		"team":  f.teamID,
		"input": name,
		"value": v,
	}).Warn("Skipping non-finite measurement input")
}

func (f *TeamFilter) warnReset(stage string) {
	metrics.RecordCovarianceReset()
	f.logger.WithFields(logrus.Fields{
		"team":  f.teamID,
		"stage": stage,
	}).Warn("Covariance lost positive definiteness, reset to initial")
}

func componentName(idx int) string {
	switch idx {
	case IdxOffense:
		return "offensive_rating"
	case IdxDefense:
		return "defensive_rating"
	case IdxHomeAdvantage:
		return "home_advantage"
	case IdxHealth:
		return "health_status"
	case IdxMomentum:
		return "momentum"
	case IdxFatigue:
		return "fatigue"
	case IdxPace:
		return "pace"
	default:
		return "unknown"
	}
}

func measurementName(idx int) string {
	switch idx {
	case MeasScoreDiff:
		return "score_differential"
	case MeasTotal:
		return "total_points"
	case MeasPace:
		return "pace"
	default:
		return "unknown"
	}
}
