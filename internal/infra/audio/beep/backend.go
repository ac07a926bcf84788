// Package beep plays episodes on the local sound device using faiface/beep.
package beep

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/audio"
)

// Settings configure the beep backend.
type Settings struct {
	SampleRate      int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	HTTPTimeoutSec  int `mapstructure:"http_timeout_sec" default:"60" validate:"gte=1"`
	MaxDownloadMB   int `mapstructure:"max_download_mb" default:"512" validate:"gte=1"`
}

// Output is the sound device. speaker implements it in production.
type Output interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
	Close()
}

type speakerOutput struct{}

func (speakerOutput) Init(sr beep.SampleRate, n int) error { return speaker.Init(sr, n) }
func (speakerOutput) Play(s ...beep.Streamer)              { speaker.Play(s...) }
func (speakerOutput) Lock()                                { speaker.Lock() }
func (speakerOutput) Unlock()                              { speaker.Unlock() }
func (speakerOutput) Close()                               { speaker.Clear() }

// Backend creates beep-backed audio resources.
type Backend struct {
	settings Settings
	out      Output
	fetcher  *fetcher

	initOnce sync.Once
	initErr  error
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
	zlog.Debug().Msgf("beep backend config: %+v", s)
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return NewWithOutput(s, speakerOutput{}), nil
}

// NewWithOutput creates a backend writing to out.
func NewWithOutput(s Settings, out Output) *Backend {
	return &Backend{
		settings: s,
		out:      out,
		fetcher:  newFetcher(time.Duration(s.HTTPTimeoutSec)*time.Second, int64(s.MaxDownloadMB)<<20),
	}
}

func (b *Backend) deviceRate() beep.SampleRate {
	return beep.SampleRate(b.settings.SampleRate)
}

func (b *Backend) init() error {
	b.initOnce.Do(func() {
		sr := b.deviceRate()
		b.initErr = b.out.Init(sr, sr.N(time.Duration(b.settings.BufferMs)*time.Millisecond))
		if b.initErr != nil {
			b.initErr = errors.Wrap(b.initErr, "failed to initialize speaker")
		}
	})
	return b.initErr
}

// Create fetches and decodes the source at url.
func (b *Backend) Create(ctx context.Context, url string, opts audio.Options, onStatus audio.StatusFunc) (audio.Handle, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	if onStatus == nil {
		onStatus = func(audio.Status) {}
	}
	onStatus(audio.Status{Buffering: true})

	src, format, err := b.fetcher.open(ctx, url)
	if err != nil {
		return nil, err
	}
	stream, sf, err := decode(src, format)
	if err != nil {
		_ = src.Close()
		return nil, errors.Wrapf(err, "failed to decode %s", url)
	}

	rate := opts.Rate
	if rate <= 0 {
		rate = 1
	}
	h := newHandle(b.out, stream, sf, b.deviceRate(), b.settings.ResampleQuality, rate, opts.Volume, onStatus)
	h.start(opts.ProgressInterval)
	if opts.AutoPlay {
		if err := h.Play(ctx); err != nil {
			_ = h.Unload(ctx)
			return nil, err
		}
	}

	st, _ := h.Status(ctx)
	onStatus(st)
	zlog.Debug().Msgf("beep: resource created: url=%s rate=%d len=%s", url, sf.SampleRate, st.Duration)
	return h, nil
}

// Close stops all output.
func (b *Backend) Close() error {
	b.out.Close()
	return nil
}
