package player

import "github.com/osa030/podbox/internal/domain/playlist"

// Reduce applies a to s and returns the next snapshot.
// s is never modified. When a does not change anything s is returned as is,
// otherwise the result carries Version s.Version+1.
func Reduce(s State, a Action) State {
	next, changed := reduce(s, a)
	if !changed {
		return s
	}
	next.Version = s.Version + 1
	return next
}

func reduce(s State, a Action) (State, bool) {
	next := s

	switch a.Type {
	case ActionSetCurrentEpisode:
		if a.Episode == nil {
			return clearSelection(s), true
		}
		ep := *a.Episode
		next.CurrentEpisode = &ep
		next.CurrentIndex = s.Playlist.IndexOf(ep.ID)
		next.Position = 0
		next.Duration = ep.Duration
		return next, true

	case ActionSetPlaying:
		if s.IsPlaying == a.Flag {
			return s, false
		}
		next.IsPlaying = a.Flag
		switch s.Phase {
		case PhaseReady, PhasePlaying, PhasePaused:
			if a.Flag {
				next.Phase = PhasePlaying
			} else {
				next.Phase = PhasePaused
			}
		}
		return next, true

	case ActionSetPosition:
		pos := a.Position
		if pos < 0 {
			pos = 0
		}
		if s.Position == pos {
			return s, false
		}
		next.Position = pos
		return next, true

	case ActionSetDuration:
		if s.Duration == a.Duration {
			return s, false
		}
		next.Duration = a.Duration
		return next, true

	case ActionSetRate:
		if s.Rate == a.Rate || a.Rate <= 0 {
			return s, false
		}
		next.Rate = a.Rate
		return next, true

	case ActionSetBuffering:
		if s.IsBuffering == a.Flag {
			return s, false
		}
		next.IsBuffering = a.Flag
		return next, true

	case ActionSetPhase:
		if s.Phase == a.Phase {
			return s, false
		}
		next.Phase = a.Phase
		return next, true

	case ActionLoading:
		next.IsBuffering = true
		next.Phase = PhaseLoading
		return next, true

	case ActionLoaded:
		next.IsBuffering = false
		next.IsPlaying = a.Flag
		if a.Flag {
			next.Phase = PhasePlaying
		} else {
			next.Phase = PhaseReady
		}
		return next, true

	case ActionLoadFailed, ActionStop:
		next = clearSelection(s)
		next.IsBuffering = false
		next.Phase = PhaseIdle
		return next, true

	case ActionResourceReleased:
		next.IsPlaying = false
		next.IsBuffering = false
		next.Phase = PhaseIdle
		return next, true

	case ActionSetPlaylist:
		next.Playlist = playlist.New(a.Episodes)
		if len(next.Playlist) == 0 {
			next = clearSelection(next)
			next.Playlist = playlist.Playlist{}
			return next, true
		}
		idx := a.Index
		if idx < 0 || idx >= len(next.Playlist) {
			idx = 0
		}
		return selectIndex(next, idx, false), true

	case ActionNext, ActionPrevious:
		n := len(s.Playlist)
		if n == 0 {
			return s, false
		}
		var idx int
		switch {
		case a.Type == ActionNext && !s.HasSelection():
			idx = 0
		case a.Type == ActionNext:
			idx = (s.CurrentIndex + 1) % n
		case !s.HasSelection():
			idx = n - 1
		default:
			idx = (s.CurrentIndex - 1 + n) % n
		}
		next = selectIndex(next, idx, true)
		next.IsPlaying = true
		return next, true

	case ActionAddToPlaylist:
		if a.Episode == nil {
			return s, false
		}
		wasEmpty := len(s.Playlist) == 0
		pl, added := s.Playlist.Append(*a.Episode)
		if !added {
			return s, false
		}
		next.Playlist = pl
		switch {
		case wasEmpty:
			next = selectIndex(next, 0, false)
		case !s.HasSelection() && s.CurrentEpisode.Same(a.Episode):
			next.CurrentIndex = len(pl) - 1
		}
		return next, true

	case ActionRemoveFromPlaylist:
		pl, removed := s.Playlist.Remove(a.ID)
		if removed < 0 {
			return s, false
		}
		next.Playlist = pl
		switch {
		case !s.HasSelection():
			// ad-hoc selection is unaffected
		case removed == s.CurrentIndex:
			if len(pl) == 0 {
				next = clearSelection(next)
				break
			}
			next = selectIndex(next, min(s.CurrentIndex, len(pl)-1), false)
		case removed < s.CurrentIndex:
			next.CurrentIndex = s.CurrentIndex - 1
		}
		return next, true

	case ActionClearPlaylist:
		next = clearSelection(s)
		next.Playlist = playlist.Playlist{}
		return next, true

	case ActionSetCurrentIndex:
		if s.Playlist.At(a.Index) == nil {
			return s, false
		}
		next = selectIndex(next, a.Index, true)
		next.IsPlaying = true
		return next, true

	case ActionTogglePlaylistVisible:
		next.PlaylistVisible = !s.PlaylistVisible
		return next, true
	}

	return s, false
}

// selectIndex points the cursor at i. Position is reset when the episode
// changes or when restart is set.
func selectIndex(s State, i int, restart bool) State {
	ep := s.Playlist.At(i)
	if ep == nil {
		return s
	}
	changed := !s.CurrentEpisode.Same(ep)
	s.CurrentIndex = i
	s.CurrentEpisode = ep
	if changed || restart {
		s.Position = 0
		s.Duration = ep.Duration
	}
	return s
}

func clearSelection(s State) State {
	s.CurrentEpisode = nil
	s.CurrentIndex = -1
	s.IsPlaying = false
	s.Position = 0
	s.Duration = 0
	return s
}
