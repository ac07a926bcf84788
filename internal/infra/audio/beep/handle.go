package beep

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/audio"
)

// handle is one decoded source attached to the output.
// Fields below the output lock comment are guarded by out.Lock.
type handle struct {
	out      Output
	stream   beep.StreamSeekCloser
	format   beep.Format
	baseRate float64
	quality  int
	volume   float64
	onStatus audio.StatusFunc

	// output lock
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	rate      float64
	attached  bool
	finished  bool
	unloaded  bool

	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

func newHandle(out Output, stream beep.StreamSeekCloser, format beep.Format, device beep.SampleRate,
	quality int, rate, volume float64, onStatus audio.StatusFunc) *handle {
	if volume <= 0 {
		volume = 1
	}
	h := &handle{
		out:      out,
		stream:   stream,
		format:   format,
		baseRate: float64(format.SampleRate) / float64(device),
		quality:  quality,
		volume:   volume,
		onStatus: onStatus,
		rate:     rate,
		done:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	h.buildLocked(true)
	return h
}

// buildLocked assembles a fresh resampler, volume and pause chain over the stream.
func (h *handle) buildLocked(paused bool) {
	h.resampler = beep.ResampleRatio(h.quality, h.baseRate*h.rate, h.stream)
	vol := &effects.Volume{
		Streamer: h.resampler,
		Base:     2,
		Volume:   math.Log2(h.volume),
	}
	h.ctrl = &beep.Ctrl{Streamer: vol, Paused: paused}
}

func (h *handle) start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	h.wg.Add(1)
	go h.run(interval)
}

func (h *handle) run(interval time.Duration) {
	defer h.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-h.done:
			if st, ok := h.snapshot(); ok {
				h.onStatus(st)
			}
		case <-t.C:
			if st, ok := h.snapshot(); ok && st.Playing {
				h.onStatus(st)
			}
		}
	}
}

// onEnd runs on the output goroutine with the output lock held.
func (h *handle) onEnd() {
	if h.unloaded {
		return
	}
	h.attached = false
	h.finished = true
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func (h *handle) snapshot() (audio.Status, bool) {
	h.out.Lock()
	defer h.out.Unlock()
	if h.unloaded {
		return audio.Status{}, false
	}
	return h.statusLocked(), true
}

func (h *handle) statusLocked() audio.Status {
	sr := h.format.SampleRate
	dur := sr.D(h.stream.Len())
	pos := sr.D(h.stream.Position())
	if h.finished {
		pos = dur
	}
	return audio.Status{
		Loaded:   true,
		Playing:  h.attached && !h.ctrl.Paused && !h.finished,
		Position: pos,
		Duration: dur,
		Finished: h.finished,
		Err:      h.stream.Err(),
	}
}

func (h *handle) Play(_ context.Context) error {
	h.out.Lock()
	if h.unloaded {
		h.out.Unlock()
		return audio.ErrUnloaded
	}
	if h.finished {
		if err := h.stream.Seek(0); err != nil {
			h.out.Unlock()
			return errors.Wrap(err, "failed to rewind")
		}
		h.finished = false
	}
	var attach beep.Streamer
	if !h.attached {
		h.buildLocked(false)
		h.attached = true
		attach = beep.Seq(h.ctrl, beep.Callback(h.onEnd))
	} else {
		h.ctrl.Paused = false
	}
	h.out.Unlock()

	if attach != nil {
		h.out.Play(attach)
	}
	return nil
}

func (h *handle) Pause(_ context.Context) error {
	h.out.Lock()
	defer h.out.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	h.ctrl.Paused = true
	return nil
}

func (h *handle) SetPosition(_ context.Context, pos time.Duration) error {
	h.out.Lock()
	defer h.out.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if l := h.stream.Len(); n > l {
		n = l
	}
	if err := h.stream.Seek(n); err != nil {
		return errors.Wrapf(err, "failed to seek to %s", pos)
	}
	h.finished = false
	return nil
}

func (h *handle) SetRate(_ context.Context, rate float64, preservePitch bool) error {
	if rate <= 0 {
		return errors.Newf("invalid playback rate %.2f", rate)
	}
	h.out.Lock()
	defer h.out.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	if preservePitch && rate != 1 {
		zlog.Debug().Msgf("beep: pitch correction unavailable, resampling: rate=%.2f", rate)
	}
	h.rate = rate
	h.resampler.SetRatio(h.baseRate * rate)
	return nil
}

func (h *handle) Stop(_ context.Context) error {
	h.out.Lock()
	defer h.out.Unlock()
	if h.unloaded {
		return audio.ErrUnloaded
	}
	h.ctrl.Paused = true
	h.finished = false
	if err := h.stream.Seek(0); err != nil {
		return errors.Wrap(err, "failed to rewind")
	}
	return nil
}

func (h *handle) Unload(_ context.Context) error {
	h.out.Lock()
	if h.unloaded {
		h.out.Unlock()
		return nil
	}
	h.unloaded = true
	h.ctrl.Streamer = nil
	h.out.Unlock()

	h.quitOnce.Do(func() { close(h.quit) })
	h.wg.Wait()
	return h.stream.Close()
}

func (h *handle) Status(_ context.Context) (audio.Status, error) {
	st, ok := h.snapshot()
	if !ok {
		return audio.Status{}, audio.ErrUnloaded
	}
	return st, nil
}
