package models

import "errors"

// Custom errors
var (
	ErrUnknownTeam        = errors.New("unknown team identifier")
	ErrInvalidMeasurement = errors.New("non-finite measurement input")
	ErrCovarianceNotPD    = errors.New("covariance matrix not positive definite")
	ErrNoGames            = errors.New("game source returned no games")
)
