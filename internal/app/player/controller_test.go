package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/app/audio"
)

var errBoom = errors.New("boom")

type fakeBackend struct {
	mu        sync.Mutex
	createErr error
	handles   []*fakeHandle
}

func (b *fakeBackend) Create(_ context.Context, url string, opts audio.Options, onStatus audio.StatusFunc) (audio.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.createErr != nil {
		return nil, b.createErr
	}
	h := &fakeHandle{
		url:      url,
		opts:     opts,
		onStatus: onStatus,
		loaded:   true,
		playing:  opts.AutoPlay,
		rate:     opts.Rate,
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) setCreateErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createErr = err
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

func (b *fakeBackend) last() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

type fakeHandle struct {
	mu       sync.Mutex
	url      string
	opts     audio.Options
	onStatus audio.StatusFunc
	loaded   bool
	playing  bool
	position time.Duration
	rate     float64
	errs     map[string]error
	calls    map[string]int
}

func (h *fakeHandle) call(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[op]++
	return h.errs[op]
}

func (h *fakeHandle) Play(context.Context) error {
	if err := h.call("play"); err != nil {
		return err
	}
	h.mu.Lock()
	h.playing = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Pause(context.Context) error {
	if err := h.call("pause"); err != nil {
		return err
	}
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetPosition(_ context.Context, pos time.Duration) error {
	if err := h.call("seek"); err != nil {
		return err
	}
	h.mu.Lock()
	h.position = pos
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetRate(_ context.Context, rate float64, _ bool) error {
	if err := h.call("rate"); err != nil {
		return err
	}
	h.mu.Lock()
	h.rate = rate
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Stop(context.Context) error {
	if err := h.call("stop"); err != nil {
		return err
	}
	h.mu.Lock()
	h.playing = false
	h.position = 0
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Unload(context.Context) error {
	if err := h.call("unload"); err != nil {
		return err
	}
	h.mu.Lock()
	h.loaded = false
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Status(context.Context) (audio.Status, error) {
	if err := h.call("status"); err != nil {
		return audio.Status{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return audio.Status{Loaded: h.loaded, Playing: h.playing, Position: h.position}, nil
}

func (h *fakeHandle) fail(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs[op] = errBoom
}

func (h *fakeHandle) count(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[op]
}

// stall simulates the resource silently stopping.
func (h *fakeHandle) stall() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = true
	h.playing = false
}

func (h *fakeHandle) isPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) pos() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *fakeHandle) currentRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

func newTestController(t *testing.T, b *fakeBackend, cfg Config) *Controller {
	t.Helper()
	c := NewController(b, cfg)
	t.Cleanup(c.Close)
	return c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func drainEvents(c *Controller) []EventType {
	var types []EventType
	for {
		select {
		case e, ok := <-c.Events():
			if !ok {
				return types
			}
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestController_PlayEpisode(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	a := testEpisode("a")

	c.PlayEpisode(context.Background(), a)

	s := c.State()
	assert.Equal(t, "a", currentID(s))
	assert.Equal(t, -1, s.CurrentIndex)
	assert.True(t, s.IsPlaying)
	assert.False(t, s.IsBuffering)
	assert.Equal(t, PhasePlaying, s.Phase)

	require.Equal(t, 1, b.count())
	h := b.last()
	assert.Equal(t, a.AudioURL, h.url)
	assert.True(t, h.opts.AutoPlay)
	assert.Equal(t, 1.0, h.opts.Rate)
	assert.Equal(t, a.Duration, h.opts.DurationHint)

	assert.Equal(t, []EventType{EventEpisodeStarted}, drainEvents(c))
}

func TestController_PlayEpisodeResetsPosition(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	first := b.last()
	first.onStatus(audio.Status{Loaded: true, Playing: true, Position: 5 * time.Minute, Duration: 30 * time.Minute})
	eventually(t, func() bool { return c.State().Position == 5*time.Minute }, "progress applied")

	c.PlayEpisode(ctx, testEpisode("b"))

	s := c.State()
	assert.Equal(t, "b", currentID(s))
	assert.Zero(t, s.Position)
	assert.Equal(t, 1, first.count("stop"))
	assert.Equal(t, 1, first.count("unload"))
	assert.Equal(t, 2, b.count())
}

func TestController_PlayEpisodeFailure(t *testing.T) {
	t.Run("create fails", func(t *testing.T) {
		b := &fakeBackend{createErr: errBoom}
		c := newTestController(t, b, Config{})

		c.PlayEpisode(context.Background(), testEpisode("a"))

		s := c.State()
		assert.Nil(t, s.CurrentEpisode)
		assert.Equal(t, -1, s.CurrentIndex)
		assert.False(t, s.IsBuffering)
		assert.False(t, s.IsPlaying)
		assert.Equal(t, PhaseIdle, s.Phase)

		select {
		case e := <-c.Events():
			assert.Equal(t, EventPlaybackFailed, e.Type)
			assert.ErrorIs(t, e.Err, errBoom)
			require.NotNil(t, e.Episode)
			assert.Equal(t, "a", e.Episode.ID)
		case <-time.After(time.Second):
			t.Fatal("no failure event")
		}

		b.setCreateErr(nil)
		c.PlayEpisode(context.Background(), testEpisode("a"))
		assert.Equal(t, "a", currentID(c.State()))
		assert.Equal(t, 1, b.count())
	})

	t.Run("invalid episode never reaches backend", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})
		ep := testEpisode("a")
		ep.AudioURL = ""

		c.PlayEpisode(context.Background(), ep)

		assert.Zero(t, b.count())
		assert.Nil(t, c.State().CurrentEpisode)
	})
}

func TestController_StaleStatusIgnored(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	oldGen := c.activeGeneration()
	c.PlayEpisode(ctx, testEpisode("b"))
	require.NotEqual(t, oldGen, c.activeGeneration())

	before := c.State()
	c.applyStatus(StatusEvent{
		Generation: oldGen,
		Status:     audio.Status{Loaded: true, Playing: false, Position: 99 * time.Second, Duration: time.Hour},
		At:         time.Now(),
	})
	c.applyStatus(StatusEvent{
		Generation: oldGen,
		Status:     audio.Status{Loaded: true, Finished: true},
		At:         time.Now(),
	})

	assert.Equal(t, before, c.State())
	assert.Equal(t, 2, b.count(), "stale finish must not advance")
}

func TestController_StopPlayback(t *testing.T) {
	tests := []struct {
		name string
		fail []string
	}{
		{name: "clean teardown"},
		{name: "stop fails", fail: []string{"stop"}},
		{name: "unload fails", fail: []string{"unload"}},
		{name: "both fail", fail: []string{"stop", "unload"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c := newTestController(t, b, Config{})
			ctx := context.Background()

			c.SetPlaylist(ctx, episodes("a", "b"), 1)
			c.SetCurrentIndex(ctx, 1)
			h := b.last()
			require.NotNil(t, h)
			c.SeekTo(ctx, time.Minute)
			for _, op := range tt.fail {
				h.fail(op)
			}

			c.StopPlayback(ctx)

			s := c.State()
			assert.Nil(t, s.CurrentEpisode)
			assert.Equal(t, -1, s.CurrentIndex)
			assert.Zero(t, s.Position)
			assert.Zero(t, s.Duration)
			assert.False(t, s.IsPlaying)
			assert.False(t, s.IsBuffering)
			assert.Equal(t, PhaseIdle, s.Phase)
			assert.Equal(t, []string{"a", "b"}, s.Playlist.IDs())
			assert.Equal(t, 1, h.count("stop"))
			assert.Equal(t, 1, h.count("unload"))
		})
	}
}

func TestController_StopWithoutResource(t *testing.T) {
	c := newTestController(t, &fakeBackend{}, Config{})

	c.StopPlayback(context.Background())
	c.StopPlayback(context.Background())

	s := c.State()
	assert.Nil(t, s.CurrentEpisode)
	assert.Equal(t, -1, s.CurrentIndex)
}

func TestController_TogglePlayback(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()

	c.TogglePlayback(ctx)
	assert.False(t, c.State().IsPlaying)
	assert.Equal(t, PhasePaused, c.State().Phase)
	assert.Equal(t, 1, h.count("pause"))
	assert.False(t, h.isPlaying())

	c.TogglePlayback(ctx)
	assert.True(t, c.State().IsPlaying)
	assert.Equal(t, PhasePlaying, c.State().Phase)
	assert.Equal(t, 1, h.count("play"))
	assert.True(t, h.isPlaying())

	assert.Equal(t, 1, b.count())
}

func TestController_ToggleIgnoresStalePlayingReport(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{SeekGuard: time.Minute})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()

	c.TogglePlayback(ctx)
	require.False(t, h.isPlaying())

	// Progress read before the pause but delivered after it.
	h.onStatus(audio.Status{Loaded: true, Playing: true, Position: 10 * time.Second, Duration: 30 * time.Minute})
	eventually(t, func() bool { return c.State().Position == 10*time.Second }, "report applied")

	s := c.State()
	assert.False(t, s.IsPlaying)
	assert.Equal(t, PhasePaused, s.Phase)

	c.TogglePlayback(ctx)
	assert.True(t, h.isPlaying(), "second toggle resumes")
	assert.True(t, c.State().IsPlaying)
	assert.Equal(t, 1, h.count("play"))
}

func TestController_PlayGuardExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{}
	c := newTestController(t, b, Config{
		SeekGuard: 1500 * time.Millisecond,
		Clock:     func() time.Time { return now },
	})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	c.TogglePlayback(ctx)
	gen := c.activeGeneration()

	c.applyStatus(StatusEvent{Generation: gen, At: now.Add(time.Second),
		Status: audio.Status{Loaded: true, Playing: true, Position: time.Second}})
	assert.False(t, c.State().IsPlaying, "inside the window")

	c.applyStatus(StatusEvent{Generation: gen, At: now.Add(2 * time.Second),
		Status: audio.Status{Loaded: true, Playing: true, Position: 2 * time.Second}})
	assert.True(t, c.State().IsPlaying, "window expired")
	assert.Equal(t, PhasePlaying, c.State().Phase)
}

func TestController_ToggleFailureRecreates(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	first := b.last()
	c.SeekTo(ctx, 2*time.Minute)
	first.fail("pause")
	drainEvents(c)

	c.TogglePlayback(ctx)

	require.Equal(t, 2, b.count())
	second := b.last()
	assert.Equal(t, 1, first.count("unload"))
	assert.Equal(t, 2*time.Minute, second.pos(), "resumes where it was")
	assert.Equal(t, 1, second.count("pause"), "keeps the requested pause")

	s := c.State()
	assert.Equal(t, "a", currentID(s))
	assert.False(t, s.IsPlaying)
	assert.Equal(t, 2*time.Minute, s.Position)
	assert.Contains(t, drainEvents(c), EventPlaybackRecovered)
}

func TestController_ToggleWithoutResourceSelfHeals(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()
	h.onStatus(audio.Status{Loaded: true, Finished: true, Position: 30 * time.Minute, Duration: 30 * time.Minute})

	eventually(t, func() bool {
		s := c.State()
		return h.count("unload") == 1 && s.Phase == PhaseIdle
	}, "finished resource released")
	s := c.State()
	assert.Equal(t, "a", currentID(s), "episode stays selected")
	assert.False(t, s.IsPlaying)

	c.TogglePlayback(ctx)

	require.Equal(t, 2, b.count())
	s = c.State()
	assert.True(t, s.IsPlaying)
	assert.Zero(t, s.Position)
	assert.Equal(t, "a", currentID(s))
}

func TestController_ToggleWithNothingSelected(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})

	c.TogglePlayback(context.Background())

	assert.Zero(t, b.count())
	assert.False(t, c.State().IsPlaying)
}

func TestController_SeekTo(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	c.SeekTo(ctx, time.Minute)
	assert.Zero(t, c.State().Position, "no resource")

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()

	c.SeekTo(ctx, 90*time.Second)
	assert.Equal(t, 90*time.Second, h.pos())
	assert.Equal(t, 90*time.Second, c.State().Position)

	c.SeekTo(ctx, time.Hour)
	assert.Equal(t, 30*time.Minute, c.State().Position, "clamped to duration")

	c.SeekTo(ctx, -time.Second)
	assert.Zero(t, c.State().Position)

	h.fail("seek")
	c.SeekTo(ctx, 2*time.Minute)
	assert.Zero(t, c.State().Position, "failed seek leaves position")
}

func TestController_SeekGuard(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{}
	c := newTestController(t, b, Config{
		SeekGuard: 1500 * time.Millisecond,
		Clock:     func() time.Time { return now },
	})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	c.SeekTo(ctx, 10*time.Minute)
	gen := c.activeGeneration()

	c.applyStatus(StatusEvent{Generation: gen, At: now,
		Status: audio.Status{Loaded: true, Playing: true, Position: 3 * time.Second, Duration: 30 * time.Minute}})
	assert.Equal(t, 10*time.Minute, c.State().Position, "stale report inside the window")

	c.applyStatus(StatusEvent{Generation: gen, At: now.Add(500 * time.Millisecond),
		Status: audio.Status{Loaded: true, Playing: true, Position: 10*time.Minute + time.Second}})
	assert.Equal(t, 10*time.Minute+time.Second, c.State().Position, "report near the target")

	c.applyStatus(StatusEvent{Generation: gen, At: now.Add(2 * time.Second),
		Status: audio.Status{Loaded: true, Playing: true, Position: 3 * time.Second}})
	assert.Equal(t, 3*time.Second, c.State().Position, "window expired")
}

func TestController_SetPlaybackRate(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{MinRate: 0.5, MaxRate: 2.0})
	ctx := context.Background()

	c.SetPlaybackRate(ctx, 1.5)
	assert.Equal(t, 1.0, c.State().Rate, "no resource")

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()

	c.SetPlaybackRate(ctx, 1.5)
	assert.Equal(t, 1.5, c.State().Rate)
	assert.Equal(t, 1.5, h.currentRate())

	c.SetPlaybackRate(ctx, 3.0)
	assert.Equal(t, 1.5, c.State().Rate, "out of range")
	assert.True(t, errors.Is(c.CheckRate(3.0), ErrRateOutOfRange))
	assert.NoError(t, c.CheckRate(0.5))

	h.fail("rate")
	c.SetPlaybackRate(ctx, 0.75)
	assert.Equal(t, 1.5, c.State().Rate, "failed call leaves rate")

	c.PlayEpisode(ctx, testEpisode("b"))
	assert.Equal(t, 1.5, b.last().opts.Rate, "new resources use the current rate")
}

func TestController_FinishedAdvances(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()
	eps := episodes("a", "b", "c")

	c.SetPlaylist(ctx, eps, 0)
	assert.Zero(t, b.count(), "setting a playlist does not start playback")

	c.SetCurrentIndex(ctx, 0)
	require.Equal(t, 1, b.count())

	b.last().onStatus(audio.Status{Loaded: true, Finished: true})
	eventually(t, func() bool {
		return b.count() == 2 && c.State().CurrentIndex == 1
	}, "advanced to b")
	assert.Equal(t, eps[1].AudioURL, b.last().url)
	assert.True(t, c.State().IsPlaying)

	c.SetCurrentIndex(ctx, 2)
	b.last().onStatus(audio.Status{Loaded: true, Finished: true})
	eventually(t, func() bool {
		return c.State().CurrentIndex == 0 && b.last().url == eps[0].AudioURL
	}, "wrapped to a")

	assert.Contains(t, drainEvents(c), EventEpisodeFinished)
}

func TestController_StatusErrorResets(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})

	c.PlayEpisode(context.Background(), testEpisode("a"))
	h := b.last()
	h.onStatus(audio.Status{Err: errBoom})

	eventually(t, func() bool { return c.State().CurrentEpisode == nil }, "state reset")
	assert.Equal(t, 1, h.count("unload"))
	assert.False(t, c.State().IsPlaying)
	assert.Contains(t, drainEvents(c), EventPlaybackFailed)
}

func TestController_Watchdog(t *testing.T) {
	t.Run("resumes stalled resource", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{WatchdogInterval: 10 * time.Millisecond})

		c.PlayEpisode(context.Background(), testEpisode("a"))
		h := b.last()
		h.stall()

		eventually(t, func() bool { return h.count("play") >= 1 && h.isPlaying() }, "play re-issued")
	})

	t.Run("leaves paused resource alone", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{WatchdogInterval: 10 * time.Millisecond})
		ctx := context.Background()

		c.PlayEpisode(ctx, testEpisode("a"))
		c.TogglePlayback(ctx)
		h := b.last()

		time.Sleep(60 * time.Millisecond)
		assert.Zero(t, h.count("play"))
	})

	t.Run("ignores superseded resource", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{WatchdogInterval: 10 * time.Millisecond})
		ctx := context.Background()

		c.PlayEpisode(ctx, testEpisode("a"))
		old := b.last()
		c.PlayEpisode(ctx, testEpisode("b"))
		old.stall()

		time.Sleep(60 * time.Millisecond)
		assert.Zero(t, old.count("play"))
	})
}

func TestController_PlaylistReconcilesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("set playlist while playing loads selection", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})
		eps := episodes("a", "b")

		c.PlayEpisode(ctx, testEpisode("x"))
		c.SetPlaylist(ctx, eps, 1)

		require.Equal(t, 2, b.count())
		assert.Equal(t, eps[1].AudioURL, b.last().url)
		assert.Equal(t, 1, c.State().CurrentIndex)
	})

	t.Run("remove current while playing loads next", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})
		eps := episodes("a", "b", "c")

		c.SetPlaylist(ctx, eps, 0)
		c.SetCurrentIndex(ctx, 1)
		c.RemoveFromPlaylist(ctx, "b")

		s := c.State()
		assert.Equal(t, 1, s.CurrentIndex)
		assert.Equal(t, "c", currentID(s))
		assert.Equal(t, eps[2].AudioURL, b.last().url)
		assert.True(t, s.IsPlaying)
	})

	t.Run("remove current while paused releases resource", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})

		c.SetPlaylist(ctx, episodes("a", "b"), 0)
		c.SetCurrentIndex(ctx, 0)
		c.TogglePlayback(ctx)
		h := b.last()

		c.RemoveFromPlaylist(ctx, "a")

		assert.Equal(t, 1, h.count("unload"))
		assert.Equal(t, 1, b.count())
		s := c.State()
		assert.Equal(t, "b", currentID(s))
		assert.Equal(t, PhaseIdle, s.Phase)
	})

	t.Run("remove other entry keeps resource", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})

		c.SetPlaylist(ctx, episodes("a", "b", "c"), 0)
		c.SetCurrentIndex(ctx, 2)
		h := b.last()
		c.RemoveFromPlaylist(ctx, "a")

		assert.Equal(t, 1, b.count())
		assert.Zero(t, h.count("unload"))
		assert.Equal(t, 1, c.State().CurrentIndex)
	})

	t.Run("clear releases resource", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})

		c.SetPlaylist(ctx, episodes("a", "b"), 0)
		c.Next(ctx)
		h := b.last()
		c.ClearPlaylist(ctx)

		assert.Equal(t, 1, h.count("unload"))
		s := c.State()
		assert.Empty(t, s.Playlist)
		assert.Nil(t, s.CurrentEpisode)
		assert.False(t, s.IsPlaying)
		assert.Equal(t, PhaseIdle, s.Phase)
	})

	t.Run("next on empty playlist does nothing", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})
		before := c.State()

		c.Next(ctx)
		c.Previous(ctx)

		assert.Zero(t, b.count())
		assert.Equal(t, before, c.State())
	})

	t.Run("next on single entry restarts it", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Config{})

		c.SetPlaylist(ctx, episodes("a"), 0)
		c.SetCurrentIndex(ctx, 0)
		c.SeekTo(ctx, time.Minute)
		c.Next(ctx)

		assert.Equal(t, 2, b.count())
		assert.Zero(t, c.State().Position)
	})
}

func TestController_AddToPlaylistAndPlay(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})

	c.AddToPlaylistAndPlay(ctx, testEpisode("a"))
	require.Equal(t, 1, b.count())
	s := c.State()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.True(t, s.IsPlaying)

	c.AddToPlaylistAndPlay(ctx, testEpisode("b"))
	assert.Equal(t, 1, b.count(), "non-empty playlist only appends")
	assert.Equal(t, []string{"a", "b"}, c.State().Playlist.IDs())

	c.AddToPlaylist(ctx, testEpisode("a"))
	assert.Equal(t, []string{"a", "b"}, c.State().Playlist.IDs())
}

func TestController_AddToEmptyPlaylistSelectsWithoutPlaying(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})

	c.AddToPlaylist(context.Background(), testEpisode("a"))

	s := c.State()
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, "a", currentID(s))
	assert.False(t, s.IsPlaying)
	assert.Zero(t, b.count())
}

func TestController_Subscribe(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Config{})
	ctx := context.Background()

	var (
		mu       sync.Mutex
		versions []uint64
	)
	last := func() (uint64, int) {
		mu.Lock()
		defer mu.Unlock()
		if len(versions) == 0 {
			return 0, 0
		}
		return versions[len(versions)-1], len(versions)
	}

	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})

	eventually(t, func() bool { _, n := last(); return n == 1 }, "initial snapshot")

	c.SetPlaylist(ctx, episodes("a", "b", "c"), 0)
	c.Next(ctx)
	c.TogglePlaylistVisible()
	c.SeekTo(ctx, time.Minute)

	eventually(t, func() bool { v, _ := last(); return v == c.State().Version }, "latest snapshot delivered")

	mu.Lock()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
	mu.Unlock()

	unsubscribe()
	_, n := last()
	c.TogglePlaylistVisible()
	time.Sleep(50 * time.Millisecond)
	_, after := last()
	assert.Equal(t, n, after)
}

func TestController_Close(t *testing.T) {
	b := &fakeBackend{}
	c := NewController(b, Config{})
	ctx := context.Background()

	c.PlayEpisode(ctx, testEpisode("a"))
	h := b.last()

	c.Close()
	c.Close()

	assert.Equal(t, 1, h.count("unload"))

	for range c.Events() {
	}

	c.PlayEpisode(ctx, testEpisode("b"))
	c.TogglePlaylistVisible()
	assert.Equal(t, 1, b.count())
}
