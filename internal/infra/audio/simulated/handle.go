package simulated

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/podbox/internal/app/audio"
)

type handle struct {
	backend  *Backend
	now      func() time.Time
	onStatus audio.StatusFunc

	mu       sync.Mutex
	duration time.Duration
	rate     float64
	base     time.Duration // position when playback last (re)started
	since    time.Time     // wall clock at that moment
	playing  bool
	finished bool
	unloaded bool

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

func (h *handle) start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-h.quit:
				return
			case <-t.C:
				h.tick()
			}
		}
	}()
}

// tick reports progress while playing and detects the end of the source.
func (h *handle) tick() {
	h.mu.Lock()
	if h.unloaded || !h.playing {
		h.mu.Unlock()
		return
	}
	if h.positionLocked() >= h.duration {
		h.base = h.duration
		h.playing = false
		h.finished = true
	}
	st := h.statusLocked()
	h.mu.Unlock()

	h.onStatus(st)
}

func (h *handle) positionLocked() time.Duration {
	pos := h.base
	if h.playing {
		pos += time.Duration(float64(h.now().Sub(h.since)) * h.rate)
	}
	if pos > h.duration {
		pos = h.duration
	}
	return pos
}

func (h *handle) statusLocked() audio.Status {
	return audio.Status{
		Loaded:   true,
		Playing:  h.playing,
		Position: h.positionLocked(),
		Duration: h.duration,
		Finished: h.finished,
	}
}

// rebaseLocked folds elapsed playback into base.
func (h *handle) rebaseLocked() {
	h.base = h.positionLocked()
	h.since = h.now()
}

func (h *handle) Play(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	if h.finished {
		h.base = 0
		h.finished = false
	}
	if !h.playing {
		h.since = h.now()
		h.playing = true
	}
	return nil
}

func (h *handle) Pause(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	h.rebaseLocked()
	h.playing = false
	return nil
}

func (h *handle) SetPosition(_ context.Context, pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	if pos < 0 {
		pos = 0
	}
	if pos > h.duration {
		pos = h.duration
	}
	h.base = pos
	h.since = h.now()
	h.finished = false
	return nil
}

func (h *handle) SetRate(_ context.Context, rate float64, _ bool) error {
	if rate <= 0 {
		return errors.Newf("invalid playback rate %.2f", rate)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	h.rebaseLocked()
	h.rate = rate
	return nil
}

func (h *handle) Stop(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	h.base = 0
	h.playing = false
	h.finished = false
	return nil
}

func (h *handle) Unload(_ context.Context) error {
	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		return nil
	}
	h.unloaded = true
	h.playing = false
	h.mu.Unlock()

	h.quitOnce.Do(func() { close(h.quit) })
	h.wg.Wait()
	h.backend.release(h)
	return nil
}

func (h *handle) Status(_ context.Context) (audio.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return audio.Status{}, audio.ErrUnloaded
	}
	return h.statusLocked(), nil
}
