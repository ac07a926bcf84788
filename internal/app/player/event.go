package player

import "github.com/osa030/podbox/internal/domain/episode"

// EventType represents a player lifecycle event type.
type EventType int

const (
	EventEpisodeStarted    EventType = iota // Resource created and playing
	EventEpisodeFinished                    // Resource reached the end of the episode
	EventPlaybackFailed                     // Resource could not be created or failed while playing
	EventPlaybackStopped                    // Listener stopped playback
	EventPlaybackRecovered                  // Resource was re-created after a failure
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventEpisodeStarted:
		return "episode_started"
	case EventEpisodeFinished:
		return "episode_finished"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventPlaybackStopped:
		return "playback_stopped"
	case EventPlaybackRecovered:
		return "playback_recovered"
	default:
		return "unknown"
	}
}

// Event represents a player lifecycle event.
type Event struct {
	Type    EventType
	Episode *episode.Episode // Episode concerned (nil for some events)
	Err     error            // Cause of EventPlaybackFailed
	State   State            // Snapshot after the event
}
