// Package simulated provides a clock-driven audio backend without a sound device.
package simulated

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/audio"
)

// ErrEmptyURL is returned by Create for an empty source.
var ErrEmptyURL = errors.New("source url is empty")

// Settings configure the simulated backend.
type Settings struct {
	DefaultDurationSec int `mapstructure:"default_duration_sec" default:"600" validate:"gte=1"`
	LoadDelayMs        int `mapstructure:"load_delay_ms" validate:"gte=0,lte=60000"`
}

// Backend creates simulated resources whose position advances with the clock.
type Backend struct {
	settings Settings
	now      func() time.Time

	mu      sync.Mutex
	handles map[*handle]struct{}
}

// New creates a backend from a settings map.
func New(settings map[string]any) (*Backend, error) {
	var s Settings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("simulated backend config: %+v", s)
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return NewWithClock(s, time.Now), nil
}

// NewWithClock creates a backend reading time from now.
func NewWithClock(s Settings, now func() time.Time) *Backend {
	return &Backend{settings: s, now: now, handles: make(map[*handle]struct{})}
}

// Create returns a resource for url once the configured load delay elapses.
func (b *Backend) Create(ctx context.Context, url string, opts audio.Options, onStatus audio.StatusFunc) (audio.Handle, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if onStatus == nil {
		onStatus = func(audio.Status) {}
	}
	onStatus(audio.Status{Buffering: true})

	if d := time.Duration(b.settings.LoadDelayMs) * time.Millisecond; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrap(ctx.Err(), "load cancelled")
		case <-t.C:
		}
	}

	duration := opts.DurationHint
	if duration <= 0 {
		duration = time.Duration(b.settings.DefaultDurationSec) * time.Second
	}
	rate := opts.Rate
	if rate <= 0 {
		rate = 1
	}

	h := &handle{
		backend:  b,
		now:      b.now,
		onStatus: onStatus,
		duration: duration,
		rate:     rate,
		quit:     make(chan struct{}),
	}

	b.mu.Lock()
	b.handles[h] = struct{}{}
	b.mu.Unlock()

	if opts.AutoPlay {
		h.playing = true
		h.since = h.now()
	}
	h.start(opts.ProgressInterval)

	st, _ := h.Status(ctx)
	onStatus(st)
	zlog.Debug().Msgf("simulated: resource created: url=%s duration=%s", url, duration)
	return h, nil
}

// Close unloads every live resource.
func (b *Backend) Close() error {
	b.mu.Lock()
	hs := make([]*handle, 0, len(b.handles))
	for h := range b.handles {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		_ = h.Unload(context.Background())
	}
	return nil
}

func (b *Backend) release(h *handle) {
	b.mu.Lock()
	delete(b.handles, h)
	b.mu.Unlock()
}

// live reports how many resources are loaded.
func (b *Backend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}
