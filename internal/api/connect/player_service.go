package connect

import (
	"context"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/api/playerapi"
	"github.com/osa030/podbox/internal/app/catalog"
	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/domain/episode"
)

// Player is the part of player.Controller the service drives.
type Player interface {
	State() player.State
	CheckRate(rate float64) error
	PlayEpisode(ctx context.Context, ep episode.Episode)
	TogglePlayback(ctx context.Context)
	SeekTo(ctx context.Context, pos time.Duration)
	SetPlaybackRate(ctx context.Context, rate float64)
	StopPlayback(ctx context.Context)
	SetPlaylist(ctx context.Context, episodes []episode.Episode, startIndex int)
	Next(ctx context.Context)
	Previous(ctx context.Context)
	AddToPlaylist(ctx context.Context, ep episode.Episode)
	AddToPlaylistAndPlay(ctx context.Context, ep episode.Episode)
	RemoveFromPlaylist(ctx context.Context, id string)
	ClearPlaylist(ctx context.Context)
	SetCurrentIndex(ctx context.Context, i int)
	TogglePlaylistVisible()
}

// PlayerService implements playerapi.PlayerServiceHandler.
type PlayerService struct {
	player   Player
	catalog  catalog.Catalog
	notifier *notification.Manager
}

var _ playerapi.PlayerServiceHandler = (*PlayerService)(nil)

// NewPlayerService creates a new PlayerService. A nil catalog disables
// lookups by episode ID.
func NewPlayerService(p Player, c catalog.Catalog, notifier *notification.Manager) *PlayerService {
	if c == nil {
		c = catalog.Disabled{}
	}
	return &PlayerService{player: p, catalog: c, notifier: notifier}
}

func (s *PlayerService) stateResponse() *connect.Response[playerapi.StateResponse] {
	return connect.NewResponse(&playerapi.StateResponse{State: playerapi.FromState(s.player.State())})
}

func (s *PlayerService) initialState() *playerapi.Notification {
	state := playerapi.FromState(s.player.State())
	return &playerapi.Notification{Type: playerapi.NotificationInitialState, State: &state}
}

// GetState returns the current snapshot.
func (s *PlayerService) GetState(
	_ context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	return s.stateResponse(), nil
}

// WatchState streams the current snapshot followed by every notification
// until the client goes away or the notifier closes.
func (s *PlayerService) WatchState(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
	stream *connect.ServerStream[playerapi.Notification],
) error {
	id, err := s.notifier.SubscribeWithInitial(&notificationStreamAdapter{stream: stream}, s.initialState)
	if err != nil {
		return err
	}
	defer s.notifier.Unsubscribe(id)

	select {
	case <-ctx.Done():
	case <-s.notifier.Done():
	}
	return nil
}

// PlayEpisode plays an inline episode or one resolved from the catalog.
func (s *PlayerService) PlayEpisode(
	ctx context.Context,
	req *connect.Request[playerapi.PlayEpisodeRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	ep, err := s.episodeFrom(ctx, req.Msg.EpisodeID, req.Msg.Episode)
	if err != nil {
		return nil, err
	}
	s.player.PlayEpisode(ctx, ep)
	return s.stateResponse(), nil
}

// TogglePlayback pauses or resumes.
func (s *PlayerService) TogglePlayback(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.TogglePlayback(ctx)
	return s.stateResponse(), nil
}

// SeekTo moves the playhead.
func (s *PlayerService) SeekTo(
	ctx context.Context,
	req *connect.Request[playerapi.SeekToRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	if req.Msg.PositionMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("negative position %d", req.Msg.PositionMs))
	}
	s.player.SeekTo(ctx, time.Duration(req.Msg.PositionMs)*time.Millisecond)
	return s.stateResponse(), nil
}

// SetPlaybackRate changes the rate.
func (s *PlayerService) SetPlaybackRate(
	ctx context.Context,
	req *connect.Request[playerapi.SetPlaybackRateRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	if err := s.player.CheckRate(req.Msg.Rate); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.player.SetPlaybackRate(ctx, req.Msg.Rate)
	return s.stateResponse(), nil
}

// StopPlayback stops and clears the selection.
func (s *PlayerService) StopPlayback(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.StopPlayback(ctx)
	return s.stateResponse(), nil
}

// SetPlaylist replaces the playlist.
func (s *PlayerService) SetPlaylist(
	ctx context.Context,
	req *connect.Request[playerapi.SetPlaylistRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	if req.Msg.StartIndex < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("negative start index %d", req.Msg.StartIndex))
	}

	eps := make([]episode.Episode, 0, len(req.Msg.Episodes)+len(req.Msg.EpisodeIDs))
	for _, e := range req.Msg.Episodes {
		ep := e.ToDomain()
		if err := ep.Validate(); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		eps = append(eps, ep)
	}
	resolved, err := catalog.Resolve(ctx, s.catalog, req.Msg.EpisodeIDs)
	if err != nil {
		return nil, catalogError(err)
	}
	eps = append(eps, resolved...)

	s.player.SetPlaylist(ctx, eps, int(req.Msg.StartIndex))
	return s.stateResponse(), nil
}

// Next selects the following entry.
func (s *PlayerService) Next(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.Next(ctx)
	return s.stateResponse(), nil
}

// Previous selects the preceding entry.
func (s *PlayerService) Previous(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.Previous(ctx)
	return s.stateResponse(), nil
}

// AddToPlaylist appends an episode, optionally starting it.
func (s *PlayerService) AddToPlaylist(
	ctx context.Context,
	req *connect.Request[playerapi.AddToPlaylistRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	ep, err := s.episodeFrom(ctx, req.Msg.EpisodeID, req.Msg.Episode)
	if err != nil {
		return nil, err
	}
	if req.Msg.Play {
		s.player.AddToPlaylistAndPlay(ctx, ep)
	} else {
		s.player.AddToPlaylist(ctx, ep)
	}
	return s.stateResponse(), nil
}

// RemoveFromPlaylist removes an entry by ID.
func (s *PlayerService) RemoveFromPlaylist(
	ctx context.Context,
	req *connect.Request[playerapi.RemoveFromPlaylistRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	if req.Msg.EpisodeID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, episode.ErrMissingID)
	}
	s.player.RemoveFromPlaylist(ctx, req.Msg.EpisodeID)
	return s.stateResponse(), nil
}

// ClearPlaylist empties the playlist.
func (s *PlayerService) ClearPlaylist(
	ctx context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.ClearPlaylist(ctx)
	return s.stateResponse(), nil
}

// SetCurrentIndex plays the entry at an index.
func (s *PlayerService) SetCurrentIndex(
	ctx context.Context,
	req *connect.Request[playerapi.SetCurrentIndexRequest],
) (*connect.Response[playerapi.StateResponse], error) {
	n := len(s.player.State().Playlist)
	if req.Msg.Index < 0 || int(req.Msg.Index) >= n {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			errors.Newf("index %d out of range [0, %d)", req.Msg.Index, n))
	}
	s.player.SetCurrentIndex(ctx, int(req.Msg.Index))
	return s.stateResponse(), nil
}

// TogglePlaylistVisible flips the playlist visibility flag.
func (s *PlayerService) TogglePlaylistVisible(
	_ context.Context,
	_ *connect.Request[playerapi.Empty],
) (*connect.Response[playerapi.StateResponse], error) {
	s.player.TogglePlaylistVisible()
	return s.stateResponse(), nil
}

// episodeFrom returns the inline episode or looks id up in the catalog.
func (s *PlayerService) episodeFrom(ctx context.Context, id string, inline *playerapi.Episode) (episode.Episode, error) {
	switch {
	case inline != nil && id != "":
		return episode.Episode{}, connect.NewError(connect.CodeInvalidArgument,
			errors.New("episode_id and episode are mutually exclusive"))
	case inline != nil:
		ep := inline.ToDomain()
		if err := ep.Validate(); err != nil {
			return episode.Episode{}, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return ep, nil
	case id != "":
		ep, err := s.catalog.Episode(ctx, id)
		if err != nil {
			return episode.Episode{}, catalogError(err)
		}
		return *ep, nil
	default:
		return episode.Episode{}, connect.NewError(connect.CodeInvalidArgument, episode.ErrMissingID)
	}
}

func catalogError(err error) *connect.Error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, catalog.ErrDisabled):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, catalog.ErrUnplayable), errors.Is(err, catalog.ErrEmptyQuery):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		zlog.Error().Err(err).Msg("connect: catalog lookup failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}

// notificationStreamAdapter serializes sends on a server stream, which is
// not safe for concurrent use.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[playerapi.Notification]
}

func (a *notificationStreamAdapter) Send(n *playerapi.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(n)
}
