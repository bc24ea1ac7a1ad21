// Package config provides configuration management for the cbb-predictor engine.
package config

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Filter     FilterConfig     `mapstructure:"filter" validate:"required"`
	Prediction PredictionConfig `mapstructure:"prediction" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// FilterConfig holds the per-team filter tuning. Process and measurement
// noise are fixed configuration, not learned.
type FilterConfig struct {
	// ProcessNoise is the diagonal of Q, one variance per state component:
	// offense, defense, home advantage, health, momentum, fatigue, pace.
	ProcessNoise []float64 `mapstructure:"process_noise" validate:"required,len=7,dive,gt=0"`
	// MeasurementNoise is the diagonal of R: score differential, total
	// points, pace.
	MeasurementNoise []float64 `mapstructure:"measurement_noise" validate:"required,len=3,dive,gt=0"`
	// InitialVariance seeds the covariance diagonal for a new team and is
	// the reset target after a failed covariance update.
	InitialVariance float64 `mapstructure:"initial_variance" validate:"required,gt=0"`

	// Unscented transform spread parameters.
	Alpha float64 `mapstructure:"alpha" validate:"required,gt=0,lte=1"`
	Beta  float64 `mapstructure:"beta" validate:"gte=0"`
	Kappa float64 `mapstructure:"kappa" validate:"gte=0"`

	// MomentumDecay is applied to the momentum component every process step.
	MomentumDecay float64 `mapstructure:"momentum_decay" validate:"required,gt=0,lt=1"`
	// HomeAdvantage is the starting home-court edge in points for a new team.
	HomeAdvantage float64 `mapstructure:"home_advantage" validate:"gte=0,lte=10"`
	// HealthBaseline is the assumed full-strength health fraction that
	// feature impacts are measured against.
	HealthBaseline float64 `mapstructure:"health_baseline" validate:"gte=0,lte=1"`
}

// PredictionConfig holds blending weights and caching for the prediction engine
type PredictionConfig struct {
	// ExternalRatingWeight scales the adjustment from a third-party power
	// rating differential. Zero disables the blend.
	ExternalRatingWeight float64 `mapstructure:"external_rating_weight" validate:"gte=0,lte=1"`
	// ExternalPaceWeight blends a market pace figure into the pace average.
	ExternalPaceWeight float64 `mapstructure:"external_pace_weight" validate:"gte=0,lte=1"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize       int     `mapstructure:"cache_max_size" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// DefaultFilterConfig returns the filter tuning used when no config file is
// present. The noise scales assume ratings move a point or two per game and
// context components are effectively re-observed every game.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ProcessNoise:     []float64{0.5, 0.5, 0.01, 0.01, 0.05, 0.02, 0.1},
		MeasurementNoise: []float64{25.0, 100.0, 4.0},
		InitialVariance:  10.0,
		Alpha:            1.0,
		Beta:             2.0,
		Kappa:            0.0,
		MomentumDecay:    0.9,
		HomeAdvantage:    3.0,
		HealthBaseline:   1.0,
	}
}

// DefaultPredictionConfig returns prediction defaults suitable for tests and
// CLI runs without a config file.
func DefaultPredictionConfig() PredictionConfig {
	return PredictionConfig{
		ExternalRatingWeight: 0.3,
		ExternalPaceWeight:   0.5,
		CacheTTLSeconds:      300,
		CacheMaxSize:         10000,
	}
}
