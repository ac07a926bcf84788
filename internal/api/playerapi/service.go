package playerapi

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified name of the player service.
const ServiceName = "podbox.player.v1.PlayerService"

// Procedures of ServiceName.
const (
	GetStateProcedure              = "/" + ServiceName + "/GetState"
	WatchStateProcedure            = "/" + ServiceName + "/WatchState"
	PlayEpisodeProcedure           = "/" + ServiceName + "/PlayEpisode"
	TogglePlaybackProcedure        = "/" + ServiceName + "/TogglePlayback"
	SeekToProcedure                = "/" + ServiceName + "/SeekTo"
	SetPlaybackRateProcedure       = "/" + ServiceName + "/SetPlaybackRate"
	StopPlaybackProcedure          = "/" + ServiceName + "/StopPlayback"
	SetPlaylistProcedure           = "/" + ServiceName + "/SetPlaylist"
	NextProcedure                  = "/" + ServiceName + "/Next"
	PreviousProcedure              = "/" + ServiceName + "/Previous"
	AddToPlaylistProcedure         = "/" + ServiceName + "/AddToPlaylist"
	RemoveFromPlaylistProcedure    = "/" + ServiceName + "/RemoveFromPlaylist"
	ClearPlaylistProcedure         = "/" + ServiceName + "/ClearPlaylist"
	SetCurrentIndexProcedure       = "/" + ServiceName + "/SetCurrentIndex"
	TogglePlaylistVisibleProcedure = "/" + ServiceName + "/TogglePlaylistVisible"
)

// IsReadOnly reports whether a procedure leaves the player untouched.
func IsReadOnly(procedure string) bool {
	return procedure == GetStateProcedure || procedure == WatchStateProcedure
}

// PlayerServiceHandler is implemented by the player service.
type PlayerServiceHandler interface {
	GetState(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	WatchState(context.Context, *connect.Request[Empty], *connect.ServerStream[Notification]) error
	PlayEpisode(context.Context, *connect.Request[PlayEpisodeRequest]) (*connect.Response[StateResponse], error)
	TogglePlayback(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	SeekTo(context.Context, *connect.Request[SeekToRequest]) (*connect.Response[StateResponse], error)
	SetPlaybackRate(context.Context, *connect.Request[SetPlaybackRateRequest]) (*connect.Response[StateResponse], error)
	StopPlayback(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	SetPlaylist(context.Context, *connect.Request[SetPlaylistRequest]) (*connect.Response[StateResponse], error)
	Next(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	Previous(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	AddToPlaylist(context.Context, *connect.Request[AddToPlaylistRequest]) (*connect.Response[StateResponse], error)
	RemoveFromPlaylist(context.Context, *connect.Request[RemoveFromPlaylistRequest]) (*connect.Response[StateResponse], error)
	ClearPlaylist(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
	SetCurrentIndex(context.Context, *connect.Request[SetCurrentIndexRequest]) (*connect.Response[StateResponse], error)
	TogglePlaylistVisible(context.Context, *connect.Request[Empty]) (*connect.Response[StateResponse], error)
}

// NewPlayerServiceHandler builds an HTTP handler serving svc. It returns the
// path prefix to mount the handler on.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	handlers := map[string]http.Handler{
		GetStateProcedure:              connect.NewUnaryHandler(GetStateProcedure, svc.GetState, opts...),
		WatchStateProcedure:            connect.NewServerStreamHandler(WatchStateProcedure, svc.WatchState, opts...),
		PlayEpisodeProcedure:           connect.NewUnaryHandler(PlayEpisodeProcedure, svc.PlayEpisode, opts...),
		TogglePlaybackProcedure:        connect.NewUnaryHandler(TogglePlaybackProcedure, svc.TogglePlayback, opts...),
		SeekToProcedure:                connect.NewUnaryHandler(SeekToProcedure, svc.SeekTo, opts...),
		SetPlaybackRateProcedure:       connect.NewUnaryHandler(SetPlaybackRateProcedure, svc.SetPlaybackRate, opts...),
		StopPlaybackProcedure:          connect.NewUnaryHandler(StopPlaybackProcedure, svc.StopPlayback, opts...),
		SetPlaylistProcedure:           connect.NewUnaryHandler(SetPlaylistProcedure, svc.SetPlaylist, opts...),
		NextProcedure:                  connect.NewUnaryHandler(NextProcedure, svc.Next, opts...),
		PreviousProcedure:              connect.NewUnaryHandler(PreviousProcedure, svc.Previous, opts...),
		AddToPlaylistProcedure:         connect.NewUnaryHandler(AddToPlaylistProcedure, svc.AddToPlaylist, opts...),
		RemoveFromPlaylistProcedure:    connect.NewUnaryHandler(RemoveFromPlaylistProcedure, svc.RemoveFromPlaylist, opts...),
		ClearPlaylistProcedure:         connect.NewUnaryHandler(ClearPlaylistProcedure, svc.ClearPlaylist, opts...),
		SetCurrentIndexProcedure:       connect.NewUnaryHandler(SetCurrentIndexProcedure, svc.SetCurrentIndex, opts...),
		TogglePlaylistVisibleProcedure: connect.NewUnaryHandler(TogglePlaylistVisibleProcedure, svc.TogglePlaylistVisible, opts...),
	}

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// PlayerServiceClient calls a remote player service.
type PlayerServiceClient struct {
	getState              *connect.Client[Empty, StateResponse]
	watchState            *connect.Client[Empty, Notification]
	playEpisode           *connect.Client[PlayEpisodeRequest, StateResponse]
	togglePlayback        *connect.Client[Empty, StateResponse]
	seekTo                *connect.Client[SeekToRequest, StateResponse]
	setPlaybackRate       *connect.Client[SetPlaybackRateRequest, StateResponse]
	stopPlayback          *connect.Client[Empty, StateResponse]
	setPlaylist           *connect.Client[SetPlaylistRequest, StateResponse]
	next                  *connect.Client[Empty, StateResponse]
	previous              *connect.Client[Empty, StateResponse]
	addToPlaylist         *connect.Client[AddToPlaylistRequest, StateResponse]
	removeFromPlaylist    *connect.Client[RemoveFromPlaylistRequest, StateResponse]
	clearPlaylist         *connect.Client[Empty, StateResponse]
	setCurrentIndex       *connect.Client[SetCurrentIndexRequest, StateResponse]
	togglePlaylistVisible *connect.Client[Empty, StateResponse]
}

// NewPlayerServiceClient creates a client for the service at baseURL.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)

	return &PlayerServiceClient{
		getState:              connect.NewClient[Empty, StateResponse](httpClient, baseURL+GetStateProcedure, opts...),
		watchState:            connect.NewClient[Empty, Notification](httpClient, baseURL+WatchStateProcedure, opts...),
		playEpisode:           connect.NewClient[PlayEpisodeRequest, StateResponse](httpClient, baseURL+PlayEpisodeProcedure, opts...),
		togglePlayback:        connect.NewClient[Empty, StateResponse](httpClient, baseURL+TogglePlaybackProcedure, opts...),
		seekTo:                connect.NewClient[SeekToRequest, StateResponse](httpClient, baseURL+SeekToProcedure, opts...),
		setPlaybackRate:       connect.NewClient[SetPlaybackRateRequest, StateResponse](httpClient, baseURL+SetPlaybackRateProcedure, opts...),
		stopPlayback:          connect.NewClient[Empty, StateResponse](httpClient, baseURL+StopPlaybackProcedure, opts...),
		setPlaylist:           connect.NewClient[SetPlaylistRequest, StateResponse](httpClient, baseURL+SetPlaylistProcedure, opts...),
		next:                  connect.NewClient[Empty, StateResponse](httpClient, baseURL+NextProcedure, opts...),
		previous:              connect.NewClient[Empty, StateResponse](httpClient, baseURL+PreviousProcedure, opts...),
		addToPlaylist:         connect.NewClient[AddToPlaylistRequest, StateResponse](httpClient, baseURL+AddToPlaylistProcedure, opts...),
		removeFromPlaylist:    connect.NewClient[RemoveFromPlaylistRequest, StateResponse](httpClient, baseURL+RemoveFromPlaylistProcedure, opts...),
		clearPlaylist:         connect.NewClient[Empty, StateResponse](httpClient, baseURL+ClearPlaylistProcedure, opts...),
		setCurrentIndex:       connect.NewClient[SetCurrentIndexRequest, StateResponse](httpClient, baseURL+SetCurrentIndexProcedure, opts...),
		togglePlaylistVisible: connect.NewClient[Empty, StateResponse](httpClient, baseURL+TogglePlaylistVisibleProcedure, opts...),
	}
}

// GetState calls GetState.
func (c *PlayerServiceClient) GetState(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

// WatchState calls WatchState.
func (c *PlayerServiceClient) WatchState(ctx context.Context, req *connect.Request[Empty]) (*connect.ServerStreamForClient[Notification], error) {
	return c.watchState.CallServerStream(ctx, req)
}

// PlayEpisode calls PlayEpisode.
func (c *PlayerServiceClient) PlayEpisode(ctx context.Context, req *connect.Request[PlayEpisodeRequest]) (*connect.Response[StateResponse], error) {
	return c.playEpisode.CallUnary(ctx, req)
}

// TogglePlayback calls TogglePlayback.
func (c *PlayerServiceClient) TogglePlayback(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.togglePlayback.CallUnary(ctx, req)
}

// SeekTo calls SeekTo.
func (c *PlayerServiceClient) SeekTo(ctx context.Context, req *connect.Request[SeekToRequest]) (*connect.Response[StateResponse], error) {
	return c.seekTo.CallUnary(ctx, req)
}

// SetPlaybackRate calls SetPlaybackRate.
func (c *PlayerServiceClient) SetPlaybackRate(ctx context.Context, req *connect.Request[SetPlaybackRateRequest]) (*connect.Response[StateResponse], error) {
	return c.setPlaybackRate.CallUnary(ctx, req)
}

// StopPlayback calls StopPlayback.
func (c *PlayerServiceClient) StopPlayback(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.stopPlayback.CallUnary(ctx, req)
}

// SetPlaylist calls SetPlaylist.
func (c *PlayerServiceClient) SetPlaylist(ctx context.Context, req *connect.Request[SetPlaylistRequest]) (*connect.Response[StateResponse], error) {
	return c.setPlaylist.CallUnary(ctx, req)
}

// Next calls Next.
func (c *PlayerServiceClient) Next(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.next.CallUnary(ctx, req)
}

// Previous calls Previous.
func (c *PlayerServiceClient) Previous(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.previous.CallUnary(ctx, req)
}

// AddToPlaylist calls AddToPlaylist.
func (c *PlayerServiceClient) AddToPlaylist(ctx context.Context, req *connect.Request[AddToPlaylistRequest]) (*connect.Response[StateResponse], error) {
	return c.addToPlaylist.CallUnary(ctx, req)
}

// RemoveFromPlaylist calls RemoveFromPlaylist.
func (c *PlayerServiceClient) RemoveFromPlaylist(ctx context.Context, req *connect.Request[RemoveFromPlaylistRequest]) (*connect.Response[StateResponse], error) {
	return c.removeFromPlaylist.CallUnary(ctx, req)
}

// ClearPlaylist calls ClearPlaylist.
func (c *PlayerServiceClient) ClearPlaylist(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.clearPlaylist.CallUnary(ctx, req)
}

// SetCurrentIndex calls SetCurrentIndex.
func (c *PlayerServiceClient) SetCurrentIndex(ctx context.Context, req *connect.Request[SetCurrentIndexRequest]) (*connect.Response[StateResponse], error) {
	return c.setCurrentIndex.CallUnary(ctx, req)
}

// TogglePlaylistVisible calls TogglePlaylistVisible.
func (c *PlayerServiceClient) TogglePlaylistVisible(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return c.togglePlaylistVisible.CallUnary(ctx, req)
}
