// Package locate provides the user's starting position.
package locate

import (
	"context"
	"errors"

	"github.com/nikolayrodzhev/mapty/internal/models"
)

// ErrUnavailable is returned when no position can be determined.
var ErrUnavailable = errors.New("position unavailable")

// Locator reports the current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (models.Coords, error)
}

// Static always reports the same configured position.
type Static models.Coords

func (s Static) CurrentPosition(ctx context.Context) (models.Coords, error) {
	if err := ctx.Err(); err != nil {
		return models.Coords{}, err
	}
	return models.Coords(s), nil
}

// Unavailable never yields a position.
type Unavailable struct{}

func (Unavailable) CurrentPosition(context.Context) (models.Coords, error) {
	return models.Coords{}, ErrUnavailable
}

// FromConfig returns a Static locator when home is set, Unavailable otherwise.
func FromConfig(home *models.Coords) Locator {
	if home == nil {
		return Unavailable{}
	}
	return Static(*home)
}
