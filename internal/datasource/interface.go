// Package datasource supplies completed games to the replay pipeline.
// Retrieval from live sports data services is owned by external
// collaborators; this package only adapts already-fetched records.
package datasource

import (
	"context"

	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

// GameSource yields completed games in nondecreasing tipoff order. The
// replay is order-sensitive, so sources must sort before returning.
type GameSource interface {
	// Games returns every available completed game, chronologically.
	Games(ctx context.Context) ([]*models.Game, error)

	// Name returns the name of the game source
	Name() string
}
