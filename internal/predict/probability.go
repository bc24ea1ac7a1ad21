package predict

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Cover probabilities are clamped away from certainty; the model is never
// allowed to claim more than a 97.5% edge against a market line.
const (
	minCoverProbability = 0.025
	maxCoverProbability = 0.975
)

// coverProbability returns P(outcome > line) for a Gaussian forecast with
// the given mean and standard deviation, clamped to the allowed band.
func coverProbability(line, mean, std float64) float64 {
	if std <= 0 {
		// Degenerate forecast; fall back to a step around the line.
		if mean > line {
			return maxCoverProbability
		}
		return minCoverProbability
	}
	dist := distuv.Normal{Mu: mean, Sigma: std}
	p := 1 - dist.CDF(line)
	return clampProbability(p)
}

func clampProbability(p float64) float64 {
	return math.Min(maxCoverProbability, math.Max(minCoverProbability, p))
}

// confidenceScore maps a cover probability onto [0,100], where 0 is a coin
// flip and larger values mark a stronger edge against the line.
func confidenceScore(p float64) float64 {
	return math.Abs(p-0.5) * 200
}
