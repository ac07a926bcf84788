// Package rest serves the read-mostly HTTP API: player snapshots, the
// websocket notification stream, catalog browsing and the listener library.
package rest

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/catalog"
	"github.com/osa030/podbox/internal/app/library"
	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/player"
)

const maxBodyBytes = 1 << 20

// StateReader exposes the player snapshot.
type StateReader interface {
	State() player.State
}

// Server holds the dependencies of the REST handlers.
type Server struct {
	player   StateReader
	catalog  catalog.Catalog
	library  *library.Library
	notifier *notification.Manager
}

// NewServer creates a REST server. A nil catalog answers catalog routes
// with 503.
func NewServer(p StateReader, c catalog.Catalog, lib *library.Library, notifier *notification.Manager) *Server {
	if c == nil {
		c = catalog.Disabled{}
	}
	return &Server{player: p, catalog: c, library: lib, notifier: notifier}
}

// Router returns the HTTP handler with every route mounted under /api.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/player", s.getPlayer).Methods(http.MethodGet)
	api.HandleFunc("/player/ws", s.watchPlayer).Methods(http.MethodGet)

	api.HandleFunc("/shows", s.searchShows).Methods(http.MethodGet)
	api.HandleFunc("/shows/{id}/episodes", s.showEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/episodes", s.searchEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}", s.getEpisode).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}/comments", s.listComments).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}/comments", s.postComment).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/comments/count", s.countComments).Methods(http.MethodGet)

	api.HandleFunc("/subscriptions", s.listSubscriptions).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions", s.putSubscription).Methods(http.MethodPut)
	api.HandleFunc("/subscriptions/{id}", s.getSubscription).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{id}", s.deleteSubscription).Methods(http.MethodDelete)
	api.HandleFunc("/favorites", s.listFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", s.putFavorite).Methods(http.MethodPut)
	api.HandleFunc("/favorites/{id}", s.getFavorite).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{id}", s.deleteFavorite).Methods(http.MethodDelete)
	api.HandleFunc("/favorites/{id}/toggle", s.toggleFavorite).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})
	return r
}

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Total   *int   `json:"total,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Debug().Err(err).Msg("rest: failed to write response")
	}
}

func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	total := len(items)
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: items, Total: &total})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Message: message})
}

// respondCatalogError maps catalog errors onto HTTP statuses.
func respondCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrDisabled):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, catalog.ErrEmptyQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnplayable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zlog.Error().Err(err).Msg("rest: catalog request failed")
		respondError(w, http.StatusBadGateway, "catalog request failed")
	}
}

// intParam parses an optional non-negative query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Newf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *statusRecorder) Hijack() (c net.Conn, b *bufio.ReadWriter, err error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zlog.Debug().Msgf("rest: %s %s: status=%d duration=%v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
