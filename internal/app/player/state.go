// Package player provides the playback controller that owns the single audio
// resource and the playlist cursor.
package player

import (
	"time"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/domain/playlist"
)

// Phase represents the lifecycle phase of the bound audio resource.
type Phase int

const (
	PhaseIdle     Phase = iota // No resource
	PhaseLoading               // Resource is being created
	PhaseReady                 // Loaded, not started yet
	PhasePlaying               // Playing
	PhasePaused                // Paused by the listener
	PhaseFinished              // Reached the end of the episode
	PhaseStopped               // Stopped by the listener
	PhaseError                 // Resource failed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	case PhaseStopped:
		return "stopped"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the player.
// A snapshot is never modified after it has been published; Playlist must
// be treated as read-only by observers.
type State struct {
	CurrentEpisode  *episode.Episode
	IsPlaying       bool
	Position        time.Duration
	Duration        time.Duration
	Rate            float64
	IsBuffering     bool
	Playlist        playlist.Playlist
	CurrentIndex    int // -1 when nothing in the playlist is selected
	PlaylistVisible bool
	Phase           Phase
	Version         uint64 // Incremented on every transition
}

// NewState returns the empty startup state.
func NewState(rate float64) State {
	if rate <= 0 {
		rate = 1.0
	}
	return State{
		Rate:         rate,
		Playlist:     playlist.Playlist{},
		CurrentIndex: -1,
		Phase:        PhaseIdle,
	}
}

// HasSelection reports whether a playlist entry is selected.
func (s State) HasSelection() bool {
	return s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Playlist)
}
