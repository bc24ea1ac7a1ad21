package predict

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/metrics"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// CachedEngine wraps Engine with TTL-bounded memoization. Cache keys include
// the registry epoch, so any state mutation naturally routes the next
// request past stale entries.
type CachedEngine struct {
	engine  *Engine
	cache   *cache.Cache
	maxSize int
	logger  *logrus.Logger
}

// NewCachedEngine creates a caching layer over a prediction engine.
func NewCachedEngine(engine *Engine, cfg config.PredictionConfig, logger *logrus.Logger) *CachedEngine {
	if logger == nil {
		logger = logrus.New()
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CachedEngine{
		engine:  engine,
		cache:   cache.New(ttl, ttl*2),
		maxSize: cfg.CacheMaxSize,
		logger:  logger,
	}
}

// Predict returns a cached forecast when one exists for the current registry
// epoch, otherwise delegates to the underlying engine. Empty sentinel
// results are not cached; a missing team may appear on the next replay.
func (c *CachedEngine) Predict(homeID, awayID string, homeFeatures, awayFeatures *models.TeamFeatures, lines models.Lines) *models.PredictionResult {
	key := c.cacheKey(homeID, awayID, homeFeatures, awayFeatures, lines)

	if cached, found := c.cache.Get(key); found {
		if result, ok := cached.(*models.PredictionResult); ok {
			c.logger.WithField("cache_key", key).Debug("Cache hit for prediction")
			metrics.RecordPrediction("cached", true, 0)
			return result
		}
	}

	result := c.engine.Predict(homeID, awayID, homeFeatures, awayFeatures, lines)
	if result.IsEmpty() {
		return result
	}

	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
	}
	c.cache.Set(key, result, cache.DefaultExpiration)
	return result
}

func (c *CachedEngine) cacheKey(homeID, awayID string, homeFeatures, awayFeatures *models.TeamFeatures, lines models.Lines) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s%s%s%s%s",
		c.engine.Epoch(), homeID, awayID,
		featuresKey(homeFeatures), featuresKey(awayFeatures),
		floatKey(lines.PointSpread), floatKey(lines.OverUnder),
		floatKey(lines.ExternalRatingHome), floatKey(lines.ExternalRatingAway),
		floatKey(lines.ExternalPace))
}

func featuresKey(f *models.TeamFeatures) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", f.HealthStatus, f.Momentum, f.Fatigue, f.Pace)
}

func floatKey(v *float64) string {
	if v == nil {
		return "|-"
	}
	return fmt.Sprintf("|%.4f", *v)
}
