package player

import (
	"time"

	"github.com/osa030/podbox/internal/domain/episode"
)

// ActionType discriminates the transitions understood by Reduce.
type ActionType int

const (
	ActionSetCurrentEpisode ActionType = iota
	ActionSetPlaying
	ActionSetPosition
	ActionSetDuration
	ActionSetRate
	ActionSetBuffering
	ActionSetPhase
	ActionLoading
	ActionLoaded
	ActionLoadFailed
	ActionResourceReleased
	ActionStop
	ActionSetPlaylist
	ActionNext
	ActionPrevious
	ActionAddToPlaylist
	ActionRemoveFromPlaylist
	ActionClearPlaylist
	ActionSetCurrentIndex
	ActionTogglePlaylistVisible
)

// String returns the string representation of the action type.
func (a ActionType) String() string {
	switch a {
	case ActionSetCurrentEpisode:
		return "set_current_episode"
	case ActionSetPlaying:
		return "set_playing"
	case ActionSetPosition:
		return "set_position"
	case ActionSetDuration:
		return "set_duration"
	case ActionSetRate:
		return "set_rate"
	case ActionSetBuffering:
		return "set_buffering"
	case ActionSetPhase:
		return "set_phase"
	case ActionLoading:
		return "loading"
	case ActionLoaded:
		return "loaded"
	case ActionLoadFailed:
		return "load_failed"
	case ActionResourceReleased:
		return "resource_released"
	case ActionStop:
		return "stop"
	case ActionSetPlaylist:
		return "set_playlist"
	case ActionNext:
		return "next"
	case ActionPrevious:
		return "previous"
	case ActionAddToPlaylist:
		return "add_to_playlist"
	case ActionRemoveFromPlaylist:
		return "remove_from_playlist"
	case ActionClearPlaylist:
		return "clear_playlist"
	case ActionSetCurrentIndex:
		return "set_current_index"
	case ActionTogglePlaylistVisible:
		return "toggle_playlist_visible"
	default:
		return "unknown"
	}
}

// Action is a state transition request. Only the fields relevant to Type
// are read.
type Action struct {
	Type     ActionType
	Episode  *episode.Episode  // SetCurrentEpisode, AddToPlaylist
	Episodes []episode.Episode // SetPlaylist
	Index    int               // SetPlaylist (start index), SetCurrentIndex
	ID       string            // RemoveFromPlaylist
	Flag     bool              // SetPlaying, SetBuffering
	Position time.Duration     // SetPosition
	Duration time.Duration     // SetDuration
	Rate     float64           // SetRate
	Phase    Phase             // SetPhase
}
