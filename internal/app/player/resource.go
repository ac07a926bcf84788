package player

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/audio"
	"github.com/osa030/podbox/internal/domain/episode"
)

// playLocked selects ep as the current episode and loads it.
// Must be called with mu held.
func (c *Controller) playLocked(ctx context.Context, ep episode.Episode) {
	c.teardownLocked(ctx)
	c.dispatch(Action{Type: ActionSetCurrentEpisode, Episode: &ep})
	if c.loadLocked(ctx, ep) {
		c.sendEvent(Event{Type: EventEpisodeStarted, Episode: &ep})
	}
}

// loadLocked replaces the bound resource with a new one playing ep.
// On failure the selection is cleared and false is returned.
// Must be called with mu held.
func (c *Controller) loadLocked(ctx context.Context, ep episode.Episode) bool {
	c.teardownLocked(ctx)

	c.generation++
	gen := c.generation

	c.stateMu.Lock()
	c.activeGen = gen
	c.finishedGen = 0
	c.guard = seekGuard{}
	c.playGuard = playGuard{}
	rate := c.state.Rate
	c.stateMu.Unlock()

	c.wantPlaying.Store(true)
	c.dispatch(Action{Type: ActionLoading})

	h, err := c.create(ctx, ep, rate, gen)
	if err != nil {
		zlog.Error().Err(err).Msgf("player: failed to load episode: id=%s url=%s", ep.ID, ep.AudioURL)
		c.setActiveGeneration(0)
		c.wantPlaying.Store(false)
		c.dispatch(Action{Type: ActionLoadFailed})
		c.sendEvent(Event{Type: EventPlaybackFailed, Episode: &ep, Err: err})
		return false
	}

	c.handle = h
	c.handleEpisode = ep.ID
	c.dispatch(Action{Type: ActionLoaded, Flag: true})
	c.startWatchdogLocked(gen)

	zlog.Debug().Msgf("player: resource ready: id=%s generation=%d", ep.ID, gen)
	return true
}

func (c *Controller) create(ctx context.Context, ep episode.Episode, rate float64, gen uint64) (audio.Handle, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	opts := audio.Options{
		AutoPlay:         true,
		Rate:             rate,
		Volume:           c.config.Volume,
		ProgressInterval: c.config.ProgressInterval,
		DurationHint:     ep.Duration,
	}
	h, err := c.backend.Create(ctx, ep.AudioURL, opts, c.statusFunc(gen))
	if err != nil {
		return nil, errors.Wrapf(err, "create resource for episode %s", ep.ID)
	}
	return h, nil
}

// recoverLocked re-creates the resource for the current episode, resuming
// at the last known position. play selects the state after recovery.
// Must be called with mu held.
func (c *Controller) recoverLocked(ctx context.Context, play bool) {
	st := c.State()
	if st.CurrentEpisode == nil {
		return
	}
	ep := *st.CurrentEpisode
	resumeAt := st.Position

	if !c.loadLocked(ctx, ep) {
		return
	}

	if resumeAt > 0 {
		if err := c.handle.SetPosition(ctx, resumeAt); err != nil {
			zlog.Warn().Err(err).Msgf("player: resume position lost: id=%s position=%v", ep.ID, resumeAt)
		} else {
			c.dispatch(Action{Type: ActionSetPosition, Position: resumeAt})
		}
	}
	if !play {
		if err := c.handle.Pause(ctx); err != nil {
			zlog.Warn().Err(err).Msgf("player: pause after recovery failed: id=%s", ep.ID)
		} else {
			c.commandPlaying(false)
		}
	}

	zlog.Info().Msgf("player: resource recovered: id=%s position=%v", ep.ID, resumeAt)
	c.sendEvent(Event{Type: EventPlaybackRecovered, Episode: &ep})
}

// teardownLocked stops and unloads the bound resource. Errors are
// swallowed; in-flight callbacks of the old resource are ignored afterwards.
// Must be called with mu held.
func (c *Controller) teardownLocked(ctx context.Context) {
	if c.watchdogCancel != nil {
		c.watchdogCancel()
		c.watchdogCancel = nil
	}
	c.setActiveGeneration(0)

	if c.handle == nil {
		return
	}
	h := c.handle
	c.handle = nil
	c.handleEpisode = ""

	if err := h.Stop(ctx); err != nil {
		zlog.Debug().Err(err).Msg("player: stop during teardown failed")
	}
	if err := h.Unload(ctx); err != nil {
		zlog.Debug().Err(err).Msg("player: unload during teardown failed")
	}
}

// syncResourceLocked reconciles the bound resource with the selection
// after a playlist transition. restart forces a reload of the selected
// episode even when it is already bound.
// Must be called with mu held.
func (c *Controller) syncResourceLocked(ctx context.Context, restart bool) {
	st := c.State()

	if st.CurrentEpisode == nil {
		if c.handle != nil {
			c.teardownLocked(ctx)
			c.dispatch(Action{Type: ActionResourceReleased})
		}
		c.wantPlaying.Store(false)
		return
	}

	bound := c.handle != nil && c.handleEpisode == st.CurrentEpisode.ID
	if bound && !restart {
		return
	}

	if st.IsPlaying {
		ep := *st.CurrentEpisode
		if c.loadLocked(ctx, ep) {
			c.sendEvent(Event{Type: EventEpisodeStarted, Episode: &ep})
		}
		return
	}

	if c.handle != nil {
		c.teardownLocked(ctx)
		c.wantPlaying.Store(false)
		c.dispatch(Action{Type: ActionResourceReleased})
	}
}

func (c *Controller) activeGeneration() uint64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.activeGen
}

func (c *Controller) setActiveGeneration(gen uint64) {
	c.stateMu.Lock()
	c.activeGen = gen
	c.stateMu.Unlock()
}

// statusFunc returns the callback handed to the backend for generation gen.
// It never blocks the backend.
func (c *Controller) statusFunc(gen uint64) audio.StatusFunc {
	return func(st audio.Status) {
		ev := StatusEvent{Generation: gen, Status: st, At: c.config.Clock()}
		select {
		case c.statusCh <- ev:
			return
		default:
		}

		// Progress reports may be dropped, terminal ones may not.
		if !st.Finished && st.Err == nil {
			return
		}
		go func() {
			select {
			case c.statusCh <- ev:
			case <-c.ctx.Done():
			}
		}()
	}
}

func (c *Controller) statusLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.statusCh:
			c.applyStatus(ev)
		}
	}
}

// applyStatus folds a status event into the state when it belongs to the
// bound resource.
func (c *Controller) applyStatus(ev StatusEvent) {
	c.stateMu.Lock()
	if ev.Generation == 0 || ev.Generation != c.activeGen {
		active := c.activeGen
		c.stateMu.Unlock()
		zlog.Debug().Msgf("player: stale status dropped: generation=%d active=%d", ev.Generation, active)
		return
	}

	if ev.Status.Err != nil {
		c.stateMu.Unlock()
		c.wg.Add(1)
		go c.fail(ev.Generation, ev.Status.Err)
		return
	}

	keep := c.guard.suppresses(ev.Status.Position, ev.At)
	st := c.playGuard.apply(ev.Status, ev.At)
	prev := c.state
	c.state = ReduceStatus(prev, st, keep)
	changed := c.state.Version != prev.Version

	finished := ev.Status.Finished && c.finishedGen != ev.Generation
	if finished {
		c.finishedGen = ev.Generation
	}
	c.stateMu.Unlock()

	if changed {
		c.notify()
	}
	if finished {
		c.wg.Add(1)
		go c.advance(ev.Generation)
	}
}

// advance moves to the next playlist entry after the resource of
// generation gen finished.
func (c *Controller) advance(gen uint64) {
	defer c.wg.Done()

	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	if c.activeGeneration() != gen {
		return
	}

	st := c.State()
	c.sendEvent(Event{Type: EventEpisodeFinished, Episode: st.CurrentEpisode})

	if len(st.Playlist) == 0 {
		c.teardownLocked(c.ctx)
		c.wantPlaying.Store(false)
		c.dispatch(Action{Type: ActionResourceReleased})
		c.dispatch(Action{Type: ActionSetPosition, Position: 0})
		return
	}

	c.dispatch(Action{Type: ActionNext})
	c.syncResourceLocked(c.ctx, true)
}

// fail releases the resource of generation gen after it reported an error.
func (c *Controller) fail(gen uint64, cause error) {
	defer c.wg.Done()

	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	if c.activeGeneration() != gen {
		return
	}

	ep := c.State().CurrentEpisode
	zlog.Error().Err(cause).Msg("player: resource failed")
	c.teardownLocked(c.ctx)
	c.wantPlaying.Store(false)
	c.dispatch(Action{Type: ActionLoadFailed})
	c.sendEvent(Event{Type: EventPlaybackFailed, Episode: ep, Err: cause})
}

// startWatchdogLocked starts the stalled-playback check for generation gen.
// Must be called with mu held.
func (c *Controller) startWatchdogLocked(gen uint64) {
	ctx, cancel := context.WithCancel(c.ctx)
	c.watchdogCancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.config.WatchdogInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.checkStalled(ctx, gen)
			}
		}
	}()
}

// checkStalled re-issues play when the resource of generation gen is
// loaded but not playing while the listener wants it to play.
func (c *Controller) checkStalled(ctx context.Context, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.handle == nil || c.activeGeneration() != gen {
		return
	}
	if !c.wantPlaying.Load() {
		return
	}

	st, err := c.handle.Status(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("player: watchdog status failed")
		return
	}
	if !st.Loaded || st.Playing || st.Finished {
		return
	}

	zlog.Info().Msgf("player: playback stalled, resuming: generation=%d", gen)
	if err := c.handle.Play(ctx); err != nil {
		zlog.Warn().Err(err).Msg("player: watchdog resume failed")
		return
	}
	c.dispatch(Action{Type: ActionSetPlaying, Flag: true})
}
