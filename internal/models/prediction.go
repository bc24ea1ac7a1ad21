package models

// Winner designations for PredictionResult.
const (
	WinnerHome = "home"
	WinnerAway = "away"
)

// Lines holds the optional betting-market context for a prediction request.
// Nil fields mean the market value was not available.
type Lines struct {
	PointSpread        *float64 `json:"point_spread,omitempty"`
	OverUnder          *float64 `json:"over_under,omitempty"`
	ExternalRatingHome *float64 `json:"external_rating_home,omitempty"`
	ExternalRatingAway *float64 `json:"external_rating_away,omitempty"`
	ExternalPace       *float64 `json:"external_pace,omitempty"`
}

// PredictionResult is the scored forecast for a single matchup.
// Probability and confidence fields are nil when the corresponding betting
// line was not supplied. PredictedWinner is empty only when a team could not
// be resolved, in which case the whole result is the empty sentinel.
type PredictionResult struct {
	PredictedMargin       float64  `json:"predicted_margin"`
	PredictedTotal        float64  `json:"predicted_total"`
	MarginUncertainty     float64  `json:"margin_uncertainty"`
	TotalUncertainty      float64  `json:"total_uncertainty"`
	PredictedWinner       string   `json:"predicted_winner,omitempty"`
	HomeCoversProbability *float64 `json:"home_covers_probability,omitempty"`
	AwayCoversProbability *float64 `json:"away_covers_probability,omitempty"`
	OverProbability       *float64 `json:"over_probability,omitempty"`
	UnderProbability      *float64 `json:"under_probability,omitempty"`
	HomeCoversConfidence  *float64 `json:"home_covers_confidence,omitempty"`
	OverConfidence        *float64 `json:"over_confidence,omitempty"`
	OverallConfidence     float64  `json:"overall_confidence"`
}

// EmptyPrediction returns the sentinel result used when a matchup cannot be
// resolved. Callers iterating many games check IsEmpty instead of handling
// an error per bad record.
func EmptyPrediction() *PredictionResult {
	return &PredictionResult{}
}

// IsEmpty reports whether the result is the unresolved-matchup sentinel.
func (r *PredictionResult) IsEmpty() bool {
	return r.PredictedWinner == "" &&
		r.PredictedMargin == 0 &&
		r.PredictedTotal == 0 &&
		r.OverallConfidence == 0
}
