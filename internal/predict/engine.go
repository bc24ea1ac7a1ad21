// Package predict turns filter state into scored game forecasts with
// propagated uncertainty.
package predict

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/engine"
	"github.com/collinh52/cbb-predictor-sub000/internal/filter"
	"github.com/collinh52/cbb-predictor-sub000/internal/metrics"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// efficiencyFactor corrects the simplifying offense/100 ratio assumption in
// the total-points conversion.
const efficiencyFactor = 1.15

// neutralConfidence is reported when no line-based confidence is computable.
const neutralConfidence = 50.0

// Engine produces matchup forecasts from registry state. It reads consistent
// snapshots and never mutates team state.
type Engine struct {
	registry  *engine.Registry
	cfg       config.PredictionConfig
	measNoise []float64
	logger    *logrus.Logger
}

// NewEngine creates a prediction engine over the given registry. measNoise is
// the filter's measurement noise diagonal, reused here so forecast
// uncertainty includes observation error.
func NewEngine(registry *engine.Registry, cfg config.PredictionConfig, measNoise []float64, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		registry:  registry,
		cfg:       cfg,
		measNoise: append([]float64(nil), measNoise...),
		logger:    logger,
	}
}

// Epoch returns the registry mutation epoch, used by the caching layer.
func (e *Engine) Epoch() uint64 {
	return e.registry.Epoch()
}

// Predict forecasts a single matchup. Feature bundles are optional; when nil
// the filter's own context estimates are used. An unresolvable team yields
// the empty sentinel rather than an error so batch callers are not
// interrupted by one bad record.
func (e *Engine) Predict(homeID, awayID string, homeFeatures, awayFeatures *models.TeamFeatures, lines models.Lines) *models.PredictionResult {
	start := time.Now()

	home, away, ok := e.registry.MatchupViews(homeID, awayID)
	if !ok {
		e.logger.WithFields(logrus.Fields{"home": homeID, "away": awayID}).
			Warn("Unresolvable matchup, returning empty prediction")
		metrics.RecordPrediction("engine", false, time.Since(start).Seconds())
		return models.EmptyPrediction()
	}

	hCtx := resolveContext(home, homeFeatures)
	aCtx := resolveContext(away, awayFeatures)

	margin := e.predictMargin(home, away, hCtx, aCtx, lines)
	total := e.predictTotal(home, away, hCtx, aCtx, lines)
	marginUnc, totalUnc := e.propagateUncertainty(home, away)

	result := &models.PredictionResult{
		PredictedMargin:   margin,
		PredictedTotal:    total,
		MarginUncertainty: marginUnc,
		TotalUncertainty:  totalUnc,
		PredictedWinner:   models.WinnerHome,
	}
	if margin < 0 {
		result.PredictedWinner = models.WinnerAway
	}

	var confidences []float64
	if lines.PointSpread != nil {
		p := coverProbability(*lines.PointSpread, margin, marginUnc)
		q := 1 - p
		c := confidenceScore(p)
		result.HomeCoversProbability = &p
		result.AwayCoversProbability = &q
		result.HomeCoversConfidence = &c
		confidences = append(confidences, c)
	}
	if lines.OverUnder != nil {
		p := coverProbability(*lines.OverUnder, total, totalUnc)
		q := 1 - p
		c := confidenceScore(p)
		result.OverProbability = &p
		result.UnderProbability = &q
		result.OverConfidence = &c
		confidences = append(confidences, c)
	}
	result.OverallConfidence = neutralConfidence
	if len(confidences) > 0 {
		sum := 0.0
		for _, c := range confidences {
			sum += c
		}
		result.OverallConfidence = sum / float64(len(confidences))
	}

	metrics.RecordPrediction("engine", true, time.Since(start).Seconds())
	return result
}

// matchupContext is the health/momentum/fatigue context used for feature
// impacts, taken from the prediction-time bundle when supplied.
type matchupContext struct {
	health   float64
	momentum float64
	fatigue  float64
}

func resolveContext(snap filter.Snapshot, features *models.TeamFeatures) matchupContext {
	if features != nil {
		return matchupContext{
			health:   features.HealthStatus,
			momentum: features.Momentum,
			fatigue:  features.Fatigue,
		}
	}
	return matchupContext{
		health:   snap.State[filter.IdxHealth],
		momentum: snap.State[filter.IdxMomentum],
		fatigue:  snap.State[filter.IdxFatigue],
	}
}

// predictMargin mirrors the filter's score-differential model for the home
// side, with the optional external power-rating adjustment on top.
func (e *Engine) predictMargin(home, away filter.Snapshot, hCtx, aCtx matchupContext, lines models.Lines) float64 {
	h, a := home.State, away.State

	margin := (h[filter.IdxOffense] - a[filter.IdxDefense]) - (a[filter.IdxOffense] - h[filter.IdxDefense])
	margin += h[filter.IdxHomeAdvantage]

	margin += 5.0 * (hCtx.health - aCtx.health)
	margin += 3.0 * (hCtx.momentum - aCtx.momentum)
	// Fatigue works against the tired side, so higher away fatigue favors
	// the home team.
	margin += 2.0 * (aCtx.fatigue - hCtx.fatigue)

	if lines.ExternalRatingHome != nil && lines.ExternalRatingAway != nil && e.cfg.ExternalRatingWeight > 0 {
		avgPace := (h[filter.IdxPace] + a[filter.IdxPace]) / 2
		ratingDiff := *lines.ExternalRatingHome - *lines.ExternalRatingAway
		margin += e.cfg.ExternalRatingWeight * ratingDiff * (avgPace / 100)
	}

	return margin
}

func (e *Engine) predictTotal(home, away filter.Snapshot, hCtx, aCtx matchupContext, lines models.Lines) float64 {
	h, a := home.State, away.State

	avgPace := (h[filter.IdxPace] + a[filter.IdxPace]) / 2
	if lines.ExternalPace != nil && e.cfg.ExternalPaceWeight > 0 {
		w := e.cfg.ExternalPaceWeight
		avgPace = (1-w)*avgPace + w*(*lines.ExternalPace)
	}
	avgPace = math.Min(80, math.Max(60, avgPace))

	homePts := h[filter.IdxOffense] / 100 * avgPace
	awayPts := a[filter.IdxOffense] / 100 * avgPace
	healthAvg := (hCtx.health + aCtx.health) / 2

	return (homePts + awayPts) * efficiencyFactor * healthAvg
}

// propagateUncertainty combines the rating variances with measurement noise.
// Configured noise entries are variances, so they enter the sums directly.
func (e *Engine) propagateUncertainty(home, away filter.Snapshot) (marginUnc, totalUnc float64) {
	hOff := home.Variances[filter.IdxOffense]
	hDef := home.Variances[filter.IdxDefense]
	aOff := away.Variances[filter.IdxOffense]
	aDef := away.Variances[filter.IdxDefense]

	var scoreDiffNoise, totalNoise float64
	if len(e.measNoise) > filter.MeasScoreDiff {
		scoreDiffNoise = e.measNoise[filter.MeasScoreDiff]
	}
	if len(e.measNoise) > filter.MeasTotal {
		totalNoise = e.measNoise[filter.MeasTotal]
	}

	marginUnc = math.Sqrt(hOff + hDef + aOff + aDef + scoreDiffNoise)
	totalUnc = math.Sqrt(hOff + aOff + totalNoise)
	return marginUnc, totalUnc
}
