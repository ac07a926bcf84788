package player

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/audio"
	"github.com/osa030/podbox/internal/domain/episode"
)

// Errors
var (
	ErrRateOutOfRange = errors.New("playback rate out of range")
)

const (
	statusBufferSize = 64
	eventBufferSize  = 32
)

// Config holds controller configuration.
type Config struct {
	WatchdogInterval time.Duration    // Interval of the stalled-playback check
	ProgressInterval time.Duration    // Status callback interval requested from the backend
	SeekGuard        time.Duration    // Window in which status reports cannot undo a manual seek, play or pause
	DefaultRate      float64          // Initial playback rate
	MinRate          float64          // Lowest accepted playback rate
	MaxRate          float64          // Highest accepted playback rate
	Volume           float64          // Linear output volume passed to new resources
	Clock            func() time.Time // Time source, defaults to time.Now
}

func (c *Config) setDefaults() {
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = 30 * time.Second
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = time.Second
	}
	if c.SeekGuard <= 0 {
		c.SeekGuard = 1500 * time.Millisecond
	}
	if c.DefaultRate <= 0 {
		c.DefaultRate = 1.0
	}
	if c.MinRate <= 0 {
		c.MinRate = 0.5
	}
	if c.MaxRate <= 0 {
		c.MaxRate = 2.0
	}
	if c.Volume <= 0 {
		c.Volume = 1.0
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

type subscriber struct {
	fn     func(State)
	last   uint64
	primed bool
}

// Controller owns the single audio resource and the player state.
//
// Resource operations are serialized by mu. The state snapshot lives behind
// stateMu so readers never wait on audio I/O.
type Controller struct {
	mu sync.Mutex

	backend audio.Backend
	config  Config

	// Bound resource, guarded by mu
	handle         audio.Handle
	handleEpisode  string
	watchdogCancel func()
	generation     uint64 // Last issued resource generation

	stateMu     sync.RWMutex
	state       State
	activeGen   uint64 // Generation of the bound resource, 0 when none
	finishedGen uint64 // Generation whose finish has been handled
	guard       seekGuard
	playGuard   playGuard

	// Listener intent, independent of what the resource reports
	wantPlaying atomic.Bool

	statusCh chan StatusEvent

	// Events
	eventMu      sync.Mutex
	eventCh      chan Event
	eventsClosed bool

	// Observers
	subMu     sync.Mutex
	subs      map[uint64]*subscriber
	nextSub   uint64
	publishCh chan struct{}

	// Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewController creates a new playback controller and starts its
// background goroutines.
func NewController(backend audio.Backend, config Config) *Controller {
	config.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:   backend,
		config:    config,
		state:     NewState(config.DefaultRate),
		statusCh:  make(chan StatusEvent, statusBufferSize),
		eventCh:   make(chan Event, eventBufferSize),
		subs:      make(map[uint64]*subscriber),
		publishCh: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.wg.Add(2)
	go c.statusLoop()
	go c.publishLoop()
	return c
}

// Events returns the lifecycle event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// CheckRate validates a playback rate against the configured range.
func (c *Controller) CheckRate(rate float64) error {
	if rate < c.config.MinRate || rate > c.config.MaxRate {
		return errors.Wrapf(ErrRateOutOfRange, "rate %.2f not in [%.2f, %.2f]",
			rate, c.config.MinRate, c.config.MaxRate)
	}
	return nil
}

// Subscribe registers fn to receive snapshots. fn is called from a single
// publisher goroutine, first with the current snapshot and then with the
// latest snapshot after every change; intermediate snapshots may be
// skipped but versions never go backwards. fn must not call Subscribe or
// the returned function. The returned function unsubscribes; a delivery
// already in flight may still arrive.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = &subscriber{fn: fn}
	c.subMu.Unlock()

	c.notify()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// PlayEpisode tears down the current resource and starts ep from the
// beginning. Failures are logged and reflected in the state only.
func (c *Controller) PlayEpisode(ctx context.Context, ep episode.Episode) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	zlog.Info().Msgf("player: play episode: id=%s title=%s", ep.ID, ep.Title)
	c.playLocked(ctx, ep)
}

// TogglePlayback pauses a playing resource or resumes a paused one.
// Without a resource the current episode is re-created.
func (c *Controller) TogglePlayback(ctx context.Context) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	st := c.State()
	if c.handle == nil {
		if st.CurrentEpisode == nil {
			zlog.Warn().Msg("player: toggle ignored: nothing selected")
			return
		}
		zlog.Info().Msgf("player: no resource for %s, re-creating", st.CurrentEpisode.ID)
		c.recoverLocked(ctx, true)
		return
	}

	var err error
	if st.IsPlaying {
		if err = c.handle.Pause(ctx); err == nil {
			c.commandPlaying(false)
		}
	} else {
		if err = c.handle.Play(ctx); err == nil {
			c.commandPlaying(true)
		}
	}

	if err != nil {
		zlog.Warn().Err(err).Msg("player: toggle failed, re-creating resource")
		c.recoverLocked(ctx, !st.IsPlaying)
	}
}

// commandPlaying records the outcome of a successful play or pause call.
func (c *Controller) commandPlaying(playing bool) {
	c.wantPlaying.Store(playing)

	c.stateMu.Lock()
	c.playGuard = playGuard{playing: playing, until: c.config.Clock().Add(c.config.SeekGuard)}
	c.stateMu.Unlock()

	c.dispatch(Action{Type: ActionSetPlaying, Flag: playing})
}

// SeekTo moves the bound resource to pos. Without a resource it does nothing.
func (c *Controller) SeekTo(ctx context.Context, pos time.Duration) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	if c.handle == nil {
		zlog.Warn().Msgf("player: seek ignored: no resource: position=%v", pos)
		return
	}
	if pos < 0 {
		pos = 0
	}
	if d := c.State().Duration; d > 0 && pos > d {
		pos = d
	}

	if err := c.handle.SetPosition(ctx, pos); err != nil {
		zlog.Warn().Err(err).Msgf("player: seek failed: position=%v", pos)
		return
	}

	c.stateMu.Lock()
	c.guard = seekGuard{target: pos, until: c.config.Clock().Add(c.config.SeekGuard)}
	c.stateMu.Unlock()

	c.dispatch(Action{Type: ActionSetPosition, Position: pos})
}

// SetPlaybackRate changes the rate of the bound resource. Rates outside the
// configured range are rejected.
func (c *Controller) SetPlaybackRate(ctx context.Context, rate float64) {
	if err := c.CheckRate(rate); err != nil {
		zlog.Warn().Err(err).Msg("player: rate rejected")
		return
	}
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	if c.handle == nil {
		zlog.Warn().Msgf("player: rate ignored: no resource: rate=%.2f", rate)
		return
	}
	if err := c.handle.SetRate(ctx, rate, true); err != nil {
		zlog.Warn().Err(err).Msgf("player: set rate failed: rate=%.2f", rate)
		return
	}
	c.dispatch(Action{Type: ActionSetRate, Rate: rate})
}

// StopPlayback tears down the resource and clears the selection.
// The state is reset even when the teardown fails.
func (c *Controller) StopPlayback(ctx context.Context) {
	if !c.lock() {
		return
	}
	defer c.mu.Unlock()

	ep := c.State().CurrentEpisode
	c.teardownLocked(ctx)
	c.wantPlaying.Store(false)
	c.dispatch(Action{Type: ActionStop})

	if ep != nil {
		zlog.Info().Msgf("player: stopped: id=%s", ep.ID)
	}
	c.sendEvent(Event{Type: EventPlaybackStopped, Episode: ep})
}

// Close stops the background goroutines, releases the resource and closes
// the event channel. The controller ignores every call afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.cancel()
		c.teardownLocked(context.Background())
		c.mu.Unlock()

		c.wg.Wait()

		c.eventMu.Lock()
		c.eventsClosed = true
		close(c.eventCh)
		c.eventMu.Unlock()
	})
}

// lock acquires mu unless the controller is closed.
func (c *Controller) lock() bool {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		zlog.Debug().Msg("player: controller closed, call ignored")
		return false
	}
	return true
}

// dispatch reduces a into the state and wakes the publisher on change.
func (c *Controller) dispatch(a Action) (State, bool) {
	c.stateMu.Lock()
	prev := c.state
	next := Reduce(prev, a)
	c.state = next
	c.stateMu.Unlock()

	changed := next.Version != prev.Version
	if changed {
		zlog.Debug().Msgf("player: %s: version=%d phase=%s playing=%v index=%d",
			a.Type, next.Version, next.Phase, next.IsPlaying, next.CurrentIndex)
		c.notify()
	}
	return next, changed
}

func (c *Controller) notify() {
	select {
	case c.publishCh <- struct{}{}:
	default:
	}
}

func (c *Controller) publishLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.publishCh:
		}

		s := c.State()

		c.subMu.Lock()
		targets := make([]*subscriber, 0, len(c.subs))
		for _, sub := range c.subs {
			if sub.primed && sub.last >= s.Version {
				continue
			}
			sub.primed = true
			sub.last = s.Version
			targets = append(targets, sub)
		}
		c.subMu.Unlock()

		for _, sub := range targets {
			sub.fn(s)
		}
	}
}

// sendEvent sends an event without blocking.
func (c *Controller) sendEvent(e Event) {
	e.State = c.State()

	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("player: event channel full, dropped %s", e.Type)
	}
}
