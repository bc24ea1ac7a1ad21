// Package main provides the prediction engine CLI: replay a game history
// into team ratings and forecast upcoming matchups.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/datasource"
	"github.com/collinh52/cbb-predictor-sub000/internal/engine"
	"github.com/collinh52/cbb-predictor-sub000/internal/logger"
	"github.com/collinh52/cbb-predictor-sub000/internal/metrics"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
	"github.com/collinh52/cbb-predictor-sub000/internal/predict"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	gamesFile  string
	appLogger  *logrus.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Team-strength estimation and game prediction engine",
	Long:  `Replays completed games through per-team state filters and forecasts margins, totals and line cover probabilities for upcoming matchups.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appLogger = logger.NewLogger(cfg.App.LogLevel)
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a game history and print the team ratings snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := replayGames(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(registry.Snapshot())
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Replay a game history and forecast one matchup",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := replayGames(cmd.Context())
		if err != nil {
			return err
		}

		home, _ := cmd.Flags().GetString("home")
		away, _ := cmd.Flags().GetString("away")
		lines := models.Lines{
			PointSpread:        optionalFloat(cmd, "spread"),
			OverUnder:          optionalFloat(cmd, "total"),
			ExternalRatingHome: optionalFloat(cmd, "rating-home"),
			ExternalRatingAway: optionalFloat(cmd, "rating-away"),
			ExternalPace:       optionalFloat(cmd, "pace"),
		}

		eng := predict.NewEngine(registry, cfg.Prediction, cfg.Filter.MeasurementNoise, appLogger)
		cached := predict.NewCachedEngine(eng, cfg.Prediction, appLogger)
		result := cached.Predict(home, away, nil, nil, lines)
		if result.IsEmpty() {
			appLogger.WithFields(logrus.Fields{"home": home, "away": away}).
				Warn("One or both teams have no observed games")
		}
		return printJSON(result)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("predictor %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&gamesFile, "games", "g", "./data/games.json", "Path to completed games JSON file")

	predictCmd.Flags().String("home", "", "Home team identifier")
	predictCmd.Flags().String("away", "", "Away team identifier")
	predictCmd.Flags().Float64("spread", 0, "Point spread for the home side")
	predictCmd.Flags().Float64("total", 0, "Over/under line")
	predictCmd.Flags().Float64("rating-home", 0, "External power rating for the home team")
	predictCmd.Flags().Float64("rating-away", 0, "External power rating for the away team")
	predictCmd.Flags().Float64("pace", 0, "External pace estimate")
	predictCmd.MarkFlagRequired("home")
	predictCmd.MarkFlagRequired("away")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func replayGames(ctx context.Context) (*engine.Registry, error) {
	startMetricsServer()

	source := datasource.NewFileSource(gamesFile, appLogger)
	games, err := source.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	registry := engine.NewRegistry(cfg.Filter, appLogger)
	registry.ProcessGames(games)
	return registry, nil
}

// startMetricsServer exposes the Prometheus handler for long replays when
// metrics are enabled.
func startMetricsServer() {
	if !cfg.Metrics.Enabled {
		return
	}
	metrics.InitRegistry()
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			appLogger.WithError(err).Warn("Metrics server stopped")
		}
	}()
	appLogger.WithField("addr", cfg.Metrics.Addr).Info("Serving metrics")
}

func optionalFloat(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return nil
	}
	return &v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
