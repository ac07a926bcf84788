package player

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/domain/episode"
)

// SetPlaylist replaces the playlist and selects startIndex, falling back to
// the first entry when it is out of range.
func (c *Controller) SetPlaylist(ctx context.Context, episodes []episode.Episode, startIndex int) {
	c.transition(ctx, Action{Type: ActionSetPlaylist, Episodes: episodes, Index: startIndex}, false)
}

// Next selects the following playlist entry, wrapping at the end.
func (c *Controller) Next(ctx context.Context) {
	c.transition(ctx, Action{Type: ActionNext}, true)
}

// Previous selects the preceding playlist entry, wrapping at the start.
func (c *Controller) Previous(ctx context.Context) {
	c.transition(ctx, Action{Type: ActionPrevious}, true)
}

// AddToPlaylist appends ep unless an episode with the same ID is present.
func (c *Controller) AddToPlaylist(ctx context.Context, ep episode.Episode) {
	c.transition(ctx, Action{Type: ActionAddToPlaylist, Episode: &ep}, false)
}

// AddToPlaylistAndPlay appends ep and starts it when the playlist was empty.
func (c *Controller) AddToPlaylistAndPlay(ctx context.Context, ep episode.Episode) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	wasEmpty := len(c.State().Playlist) == 0
	_, changed := c.dispatch(Action{Type: ActionAddToPlaylist, Episode: &ep})
	switch {
	case wasEmpty:
		zlog.Info().Msgf("player: play episode: id=%s title=%s", ep.ID, ep.Title)
		c.playLocked(ctx, ep)
	case changed:
		c.syncResourceLocked(ctx, false)
	}
}

// RemoveFromPlaylist removes the episode with the given ID.
func (c *Controller) RemoveFromPlaylist(ctx context.Context, id string) {
	c.transition(ctx, Action{Type: ActionRemoveFromPlaylist, ID: id}, false)
}

// ClearPlaylist empties the playlist and stops playback.
func (c *Controller) ClearPlaylist(ctx context.Context) {
	c.transition(ctx, Action{Type: ActionClearPlaylist}, false)
}

// SetCurrentIndex selects the playlist entry at i and plays it from the
// start. Out of range indexes are ignored.
func (c *Controller) SetCurrentIndex(ctx context.Context, i int) {
	c.transition(ctx, Action{Type: ActionSetCurrentIndex, Index: i}, true)
}

// TogglePlaylistVisible flips the playlist visibility flag.
func (c *Controller) TogglePlaylistVisible() {
	if c.ctx.Err() != nil {
		return
	}
	c.dispatch(Action{Type: ActionTogglePlaylistVisible})
}

// transition applies a playlist action and reconciles the resource with the
// resulting selection.
func (c *Controller) transition(ctx context.Context, a Action, restart bool) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	if _, changed := c.dispatch(a); !changed {
		zlog.Debug().Msgf("player: %s: no change", a.Type)
		return
	}
	c.syncResourceLocked(ctx, restart)
}
