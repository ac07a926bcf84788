// Package audio defines the capability the player needs from an audio engine.
package audio

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnloaded is returned by a Handle after Unload.
var ErrUnloaded = errors.New("audio resource unloaded")

// Options configure a resource at creation time.
type Options struct {
	AutoPlay         bool          // Start playing as soon as the source is ready
	Rate             float64       // Initial playback rate (1.0 = normal)
	Volume           float64       // Linear volume, 1.0 = unchanged
	ProgressInterval time.Duration // How often status callbacks report progress
	DurationHint     time.Duration // Duration advertised by the catalog, if any
}

// Status is a point-in-time report of a resource.
type Status struct {
	Loaded    bool
	Playing   bool
	Buffering bool
	Position  time.Duration
	Duration  time.Duration
	Finished  bool  // Reached the end of the source
	Err       error // Non-nil when the resource failed irrecoverably
}

// StatusFunc receives status reports. Implementations must not block.
type StatusFunc func(Status)

// Backend creates audio resources.
type Backend interface {
	// Create loads the source at url and returns a handle once it is ready.
	Create(ctx context.Context, url string, opts Options, onStatus StatusFunc) (Handle, error)
	// Close releases the output device, if any.
	Close() error
}

// Handle controls one loaded audio resource.
type Handle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SetPosition(ctx context.Context, pos time.Duration) error
	SetRate(ctx context.Context, rate float64, preservePitch bool) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
}
