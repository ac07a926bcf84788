// Package playerapi defines the wire messages, procedures, handler and
// client of the podbox.player.v1.PlayerService Connect service.
package playerapi

import (
	"time"

	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/domain/episode"
)

// Notification types besides the player event types.
const (
	NotificationInitialState = "initial_state"
	NotificationState        = "state"
)

// Episode is the wire form of episode.Episode.
type Episode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Host        string `json:"host,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	AudioURL    string `json:"audio_url"`
	DurationMs  int64  `json:"duration_ms"`
	ShowID      string `json:"show_id,omitempty"`
	Description string `json:"description,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// PlayerState is the wire form of player.State.
type PlayerState struct {
	CurrentEpisode  *Episode  `json:"current_episode"`
	IsPlaying       bool      `json:"is_playing"`
	PositionMs      int64     `json:"position_ms"`
	DurationMs      int64     `json:"duration_ms"`
	Rate            float64   `json:"rate"`
	IsBuffering     bool      `json:"is_buffering"`
	Playlist        []Episode `json:"playlist"`
	PlaylistMs      int64     `json:"playlist_duration_ms"`
	CurrentIndex    int32     `json:"current_index"`
	PlaylistVisible bool      `json:"playlist_visible"`
	Phase           string    `json:"phase"`
	Version         uint64    `json:"version"`
}

// Notification is pushed to state watchers.
type Notification struct {
	Type       string       `json:"type"`
	SequenceNo uint64       `json:"sequence_no"`
	State      *PlayerState `json:"state,omitempty"`
	Episode    *Episode     `json:"episode,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Empty is the request of parameterless procedures.
type Empty struct{}

// StateResponse carries the snapshot after a procedure ran.
type StateResponse struct {
	State PlayerState `json:"state"`
}

// PlayEpisodeRequest plays an episode given by catalog ID or inline.
type PlayEpisodeRequest struct {
	EpisodeID string   `json:"episode_id,omitempty"`
	Episode   *Episode `json:"episode,omitempty"`
}

// SeekToRequest moves the playhead.
type SeekToRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// SetPlaybackRateRequest changes the playback rate.
type SetPlaybackRateRequest struct {
	Rate float64 `json:"rate"`
}

// SetPlaylistRequest replaces the playlist. Episodes given inline are used
// as is, EpisodeIDs are resolved through the catalog and appended after them.
type SetPlaylistRequest struct {
	Episodes   []Episode `json:"episodes,omitempty"`
	EpisodeIDs []string  `json:"episode_ids,omitempty"`
	StartIndex int32     `json:"start_index"`
}

// AddToPlaylistRequest appends an episode. With Play set the episode starts
// when the playlist was empty.
type AddToPlaylistRequest struct {
	EpisodeID string   `json:"episode_id,omitempty"`
	Episode   *Episode `json:"episode,omitempty"`
	Play      bool     `json:"play,omitempty"`
}

// RemoveFromPlaylistRequest removes an episode by ID.
type RemoveFromPlaylistRequest struct {
	EpisodeID string `json:"episode_id"`
}

// SetCurrentIndexRequest selects a playlist entry.
type SetCurrentIndexRequest struct {
	Index int32 `json:"index"`
}

// FromEpisode converts a domain episode.
func FromEpisode(e episode.Episode) Episode {
	return Episode{
		ID:          e.ID,
		Title:       e.Title,
		Host:        e.Host,
		ImageURL:    e.ImageURL,
		AudioURL:    e.AudioURL,
		DurationMs:  e.Duration.Milliseconds(),
		ShowID:      e.ShowID,
		Description: e.Description,
		ReleaseDate: e.ReleaseDate,
	}
}

// ToDomain converts the wire episode to a domain episode.
func (e Episode) ToDomain() episode.Episode {
	return episode.Episode{
		ID:          e.ID,
		Title:       e.Title,
		Host:        e.Host,
		ImageURL:    e.ImageURL,
		AudioURL:    e.AudioURL,
		Duration:    time.Duration(e.DurationMs) * time.Millisecond,
		ShowID:      e.ShowID,
		Description: e.Description,
		ReleaseDate: e.ReleaseDate,
	}
}

// FromState converts a player snapshot.
func FromState(s player.State) PlayerState {
	out := PlayerState{
		IsPlaying:       s.IsPlaying,
		PositionMs:      s.Position.Milliseconds(),
		DurationMs:      s.Duration.Milliseconds(),
		Rate:            s.Rate,
		IsBuffering:     s.IsBuffering,
		Playlist:        make([]Episode, len(s.Playlist)),
		PlaylistMs:      s.Playlist.TotalDuration().Milliseconds(),
		CurrentIndex:    int32(s.CurrentIndex),
		PlaylistVisible: s.PlaylistVisible,
		Phase:           s.Phase.String(),
		Version:         s.Version,
	}
	if s.CurrentEpisode != nil {
		e := FromEpisode(*s.CurrentEpisode)
		out.CurrentEpisode = &e
	}
	for i, e := range s.Playlist {
		out.Playlist[i] = FromEpisode(e)
	}
	return out
}

// FromEvent converts a player lifecycle event into a notification.
func FromEvent(e player.Event) *Notification {
	state := FromState(e.State)
	n := &Notification{
		Type:  e.Type.String(),
		State: &state,
	}
	if e.Episode != nil {
		ep := FromEpisode(*e.Episode)
		n.Episode = &ep
	}
	if e.Err != nil {
		n.Error = e.Err.Error()
	}
	return n
}
