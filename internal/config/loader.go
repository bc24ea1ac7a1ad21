// Package config provides configuration management for the cbb-predictor engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the configuration from file and environment variables.
// Environment variable placeholders in the YAML file (${VAR_NAME}) are
// expanded before parsing. A missing file is not an error; defaults and
// environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix("CBB_PREDICTOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cbb-predictor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	fc := DefaultFilterConfig()
	v.SetDefault("filter.process_noise", fc.ProcessNoise)
	v.SetDefault("filter.measurement_noise", fc.MeasurementNoise)
	v.SetDefault("filter.initial_variance", fc.InitialVariance)
	v.SetDefault("filter.alpha", fc.Alpha)
	v.SetDefault("filter.beta", fc.Beta)
	v.SetDefault("filter.kappa", fc.Kappa)
	v.SetDefault("filter.momentum_decay", fc.MomentumDecay)
	v.SetDefault("filter.home_advantage", fc.HomeAdvantage)
	v.SetDefault("filter.health_baseline", fc.HealthBaseline)

	pc := DefaultPredictionConfig()
	v.SetDefault("prediction.external_rating_weight", pc.ExternalRatingWeight)
	v.SetDefault("prediction.external_pace_weight", pc.ExternalPaceWeight)
	v.SetDefault("prediction.cache_ttl_seconds", pc.CacheTTLSeconds)
	v.SetDefault("prediction.cache_max_size", pc.CacheMaxSize)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")
}
