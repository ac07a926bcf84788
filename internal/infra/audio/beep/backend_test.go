package beep

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/app/audio"
)

const testRate = beep.SampleRate(8000)

type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	inits     int
	closed    bool
}

func (o *fakeOutput) Init(beep.SampleRate, int) error {
	o.inits++
	return nil
}

func (o *fakeOutput) Play(s ...beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s...)
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }
func (o *fakeOutput) Close()  { o.closed = true }

// pump mixes n samples the way the speaker does, holding the output lock.
func (o *fakeOutput) pump(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([][2]float64, 512)
	for n > 0 {
		chunk := len(buf)
		if n < chunk {
			chunk = n
		}
		active := o.streamers[:0]
		for _, s := range o.streamers {
			if _, ok := s.Stream(buf[:chunk]); ok {
				active = append(active, s)
			}
		}
		o.streamers = active
		n -= chunk
	}
}

func (o *fakeOutput) active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streamers)
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []audio.Status
}

func (r *statusRecorder) record(st audio.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
}

func (r *statusRecorder) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.statuses {
		if st.Finished {
			return true
		}
	}
	return false
}

func writeWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	format := beep.Format{SampleRate: testRate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(samples), format))
	return path
}

func testSettings() Settings {
	return Settings{SampleRate: int(testRate), BufferMs: 100, ResampleQuality: 1, HTTPTimeoutSec: 5, MaxDownloadMB: 1}
}

func TestNew_Settings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		want     Settings
	}{
		{
			name:     "defaults",
			settings: nil,
			want:     Settings{SampleRate: 44100, BufferMs: 100, ResampleQuality: 4, HTTPTimeoutSec: 60, MaxDownloadMB: 512},
		},
		{
			name:     "overrides",
			settings: map[string]any{"sample_rate": 48000, "resample_quality": 6},
			want:     Settings{SampleRate: 48000, BufferMs: 100, ResampleQuality: 6, HTTPTimeoutSec: 60, MaxDownloadMB: 512},
		},
		{
			name:     "sample rate too low",
			settings: map[string]any{"sample_rate": 4000},
			wantErr:  true,
		},
		{
			name:     "wrong type",
			settings: map[string]any{"buffer_ms": "fast"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.settings)
		})
	}
}

func TestFormatFromExt(t *testing.T) {
	tests := []struct {
		path        string
		contentType string
		want        string
	}{
		{"/a/episode.wav", "", formatWAV},
		{"/a/episode.WAV", "", formatWAV},
		{"/a/episode.mp3", "", formatMP3},
		{"/a/stream", "audio/x-wav", formatWAV},
		{"/a/stream", "audio/mpeg", formatMP3},
		{"/a/stream", "", formatMP3},
	}
	for _, tt := range tests {
		t.Run(tt.path+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFromExt(tt.path, tt.contentType))
		})
	}
}

func TestBackend_CreateAndPlay(t *testing.T) {
	out := &fakeOutput{}
	b := NewWithOutput(testSettings(), out)
	rec := &statusRecorder{}
	ctx := context.Background()

	h, err := b.Create(ctx, writeWAV(t, 8000), audio.Options{Rate: 1, ProgressInterval: 10 * time.Millisecond}, rec.record)
	require.NoError(t, err)
	defer h.Unload(ctx)

	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Loaded)
	assert.False(t, st.Playing)
	assert.Equal(t, time.Second, st.Duration)
	assert.Equal(t, 0, out.active())
	assert.Equal(t, 1, out.inits)

	require.NoError(t, h.Play(ctx))
	assert.Equal(t, 1, out.active())
	out.pump(4000)

	st, err = h.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.InDelta(t, 500*time.Millisecond, st.Position, float64(100*time.Millisecond))

	require.NoError(t, h.Pause(ctx))
	st, _ = h.Status(ctx)
	assert.False(t, st.Playing)

	require.NoError(t, h.Play(ctx))
	assert.Equal(t, 1, out.active(), "resume must not attach twice")

	out.pump(8000)
	assert.Eventually(t, rec.finished, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, out.active())

	st, _ = h.Status(ctx)
	assert.True(t, st.Finished)
	assert.False(t, st.Playing)
	assert.Equal(t, time.Second, st.Position)

	require.NoError(t, h.Play(ctx))
	st, _ = h.Status(ctx)
	assert.False(t, st.Finished)
	assert.Equal(t, time.Duration(0), st.Position)
	assert.Equal(t, 1, out.active())
}

func TestBackend_AutoPlay(t *testing.T) {
	out := &fakeOutput{}
	b := NewWithOutput(testSettings(), out)
	ctx := context.Background()

	h, err := b.Create(ctx, writeWAV(t, 800), audio.Options{AutoPlay: true}, nil)
	require.NoError(t, err)
	defer h.Unload(ctx)

	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.Equal(t, 1, out.active())
}

func TestHandle_Controls(t *testing.T) {
	out := &fakeOutput{}
	b := NewWithOutput(testSettings(), out)
	ctx := context.Background()

	ah, err := b.Create(ctx, writeWAV(t, 8000), audio.Options{}, nil)
	require.NoError(t, err)
	h := ah.(*handle)

	require.NoError(t, h.SetPosition(ctx, 250*time.Millisecond))
	st, _ := h.Status(ctx)
	assert.Equal(t, 250*time.Millisecond, st.Position)

	require.NoError(t, h.SetPosition(ctx, 5*time.Second))
	st, _ = h.Status(ctx)
	assert.Equal(t, time.Second, st.Position)

	require.NoError(t, h.SetRate(ctx, 2, true))
	assert.InDelta(t, 2.0, h.resampler.Ratio(), 1e-9)
	assert.Error(t, h.SetRate(ctx, 0, false))

	require.NoError(t, h.Stop(ctx))
	st, _ = h.Status(ctx)
	assert.Equal(t, time.Duration(0), st.Position)
	assert.False(t, st.Playing)

	require.NoError(t, h.Unload(ctx))
	require.NoError(t, h.Unload(ctx))

	tests := []struct {
		name string
		call func() error
	}{
		{"play", func() error { return h.Play(ctx) }},
		{"pause", func() error { return h.Pause(ctx) }},
		{"seek", func() error { return h.SetPosition(ctx, 0) }},
		{"rate", func() error { return h.SetRate(ctx, 1, false) }},
		{"stop", func() error { return h.Stop(ctx) }},
		{"status", func() error { _, err := h.Status(ctx); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), audio.ErrUnloaded)
		})
	}
}

func TestBackend_UnloadDetachesSilently(t *testing.T) {
	out := &fakeOutput{}
	b := NewWithOutput(testSettings(), out)
	rec := &statusRecorder{}
	ctx := context.Background()

	h, err := b.Create(ctx, writeWAV(t, 8000), audio.Options{AutoPlay: true, ProgressInterval: 5 * time.Millisecond}, rec.record)
	require.NoError(t, err)
	require.NoError(t, h.Unload(ctx))

	out.pump(512)
	assert.Equal(t, 0, out.active())
	assert.False(t, rec.finished())
}

func TestBackend_HTTPSource(t *testing.T) {
	data, err := os.ReadFile(writeWAV(t, 1600))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/episode.wav":
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b := NewWithOutput(testSettings(), &fakeOutput{})
	ctx := context.Background()

	h, err := b.Create(ctx, srv.URL+"/episode.wav", audio.Options{}, nil)
	require.NoError(t, err)
	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, st.Duration)
	require.NoError(t, h.Unload(ctx))

	_, err = b.Create(ctx, srv.URL+"/missing.wav", audio.Options{}, nil)
	assert.Error(t, err)
}

func TestBackend_CreateErrors(t *testing.T) {
	b := NewWithOutput(testSettings(), &fakeOutput{})
	ctx := context.Background()

	_, err := b.Create(ctx, "ftp://example.com/a.mp3", audio.Options{}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = b.Create(ctx, filepath.Join(t.TempDir(), "missing.mp3"), audio.Options{}, nil)
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wave file"), 0o600))
	_, err = b.Create(ctx, garbage, audio.Options{}, nil)
	assert.Error(t, err)
}

func TestBackend_Close(t *testing.T) {
	out := &fakeOutput{}
	b := NewWithOutput(testSettings(), out)
	require.NoError(t, b.Close())
	assert.True(t, out.closed)
}
