package player

import (
	"time"

	"github.com/osa030/podbox/internal/app/audio"
)

// seekTolerance is how far a reported position may be from a manual seek
// target and still be accepted while the seek guard is active.
const seekTolerance = 2 * time.Second

// StatusEvent is a status report stamped with the generation of the
// resource that produced it.
type StatusEvent struct {
	Generation uint64
	Status     audio.Status
	At         time.Time
}

// ReduceStatus folds a resource status report into s.
// When keepPosition is set the reported position is ignored.
// s is never modified; an unchanged snapshot is returned as is.
func ReduceStatus(s State, st audio.Status, keepPosition bool) State {
	next := s
	next.IsBuffering = st.Buffering

	if st.Loaded || st.Finished {
		if !keepPosition {
			next.Position = st.Position
		}
		if st.Duration > 0 {
			next.Duration = st.Duration
		}

		switch {
		case st.Finished:
			next.IsPlaying = false
			next.Phase = PhaseFinished
		case st.Playing:
			next.IsPlaying = true
			next.Phase = PhasePlaying
		default:
			next.IsPlaying = false
			switch s.Phase {
			case PhasePlaying:
				next.Phase = PhasePaused
			case PhaseLoading:
				next.Phase = PhaseReady
			}
		}
	}

	if next.IsBuffering == s.IsBuffering &&
		next.Position == s.Position &&
		next.Duration == s.Duration &&
		next.IsPlaying == s.IsPlaying &&
		next.Phase == s.Phase {
		return s
	}
	next.Version = s.Version + 1
	return next
}

// seekGuard suppresses stale positions reported right after a manual seek.
type seekGuard struct {
	target time.Duration
	until  time.Time
}

// suppresses reports whether a position reported at the given time must be
// ignored.
func (g seekGuard) suppresses(pos time.Duration, at time.Time) bool {
	if g.until.IsZero() || !at.Before(g.until) {
		return false
	}
	d := pos - g.target
	if d < 0 {
		d = -d
	}
	return d > seekTolerance
}

// playGuard pins the reported playing flag to the last play or pause command
// for a short window, so a report read before the command cannot revert it.
type playGuard struct {
	playing bool
	until   time.Time
}

// apply returns st with Playing replaced while the guard is active.
// Finished reports pass through unchanged.
func (g playGuard) apply(st audio.Status, at time.Time) audio.Status {
	if g.until.IsZero() || !at.Before(g.until) || st.Finished {
		return st
	}
	st.Playing = g.playing
	return st
}
