package ports

import (
	"context"

	"github.com/johnpc/jpc-homie/pkg/homie"
)

// PlayerSource is the high-level media-player abstraction. It knows the
// player's active queue and its current/next pointers but cannot edit the
// queue itself.
type PlayerSource interface {
	// ActiveQueue returns the player's queue summary. The second return is
	// false when the player has no active queue.
	ActiveQueue(ctx context.Context, playerID string) (homie.ActiveQueue, bool, error)
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// VolumeCache remembers the last volume seen or set for a player.
type VolumeCache interface {
	Put(playerID string, level float64, muted bool)
	// Get reports the cached volume; fresh is false when the entry is
	// missing or older than the cache lifetime.
	Get(playerID string) (level float64, muted bool, fresh bool)
}
