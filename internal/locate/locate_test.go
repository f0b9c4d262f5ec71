package locate

import (
	"context"
	"errors"
	"testing"

	"github.com/nikolayrodzhev/mapty/internal/models"
)

// TestFromConfig verifies a configured home is reported and a missing one fails.
func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	home := models.Coords{Lat: 38.7, Lng: -9.1}

	got, err := FromConfig(&home).CurrentPosition(ctx)
	if err != nil || got != home {
		t.Errorf("CurrentPosition = %+v, %v; want %+v", got, err, home)
	}

	if _, err := FromConfig(nil).CurrentPosition(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := FromConfig(&home).CurrentPosition(cancelled); err == nil {
		t.Error("expected error for cancelled context")
	}
}
