package rest

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/api/playerapi"
	"github.com/osa030/podbox/internal/app/library"
	"github.com/osa030/podbox/internal/domain/episode"
)

func (s *Server) getPlayer(w http.ResponseWriter, _ *http.Request) {
	respondData(w, playerapi.FromState(s.player.State()))
}

func (s *Server) searchShows(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	shows, err := s.catalog.SearchShows(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondList(w, shows)
}

func (s *Server) searchEpisodes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	eps, err := s.catalog.SearchEpisodes(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondList(w, toWire(eps))
}

func (s *Server) showEpisodes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	eps, err := s.catalog.ShowEpisodes(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondList(w, toWire(eps))
}

func (s *Server) getEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := s.catalog.Episode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondData(w, playerapi.FromEpisode(*ep))
}

func toWire(eps []episode.Episode) []playerapi.Episode {
	out := make([]playerapi.Episode, len(eps))
	for i, e := range eps {
		out[i] = playerapi.FromEpisode(e)
	}
	return out
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.library.Subscriptions(r.Context())
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondList(w, subs)
}

func (s *Server) putSubscription(w http.ResponseWriter, r *http.Request) {
	var show episode.Show
	if err := decodeBody(w, r, &show); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.library.Subscribe(r.Context(), show)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]bool{"added": added})
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := s.library.IsSubscribed(r.Context(), id)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]any{"id": id, "subscribed": ok})
}

func (s *Server) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, err := s.library.Unsubscribe(r.Context(), id)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "subscription "+id+" not found")
		return
	}
	respondData(w, map[string]bool{"removed": true})
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.library.Favorites(r.Context())
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondList(w, favs)
}

func (s *Server) putFavorite(w http.ResponseWriter, r *http.Request) {
	var wire playerapi.Episode
	if err := decodeBody(w, r, &wire); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.library.AddFavorite(r.Context(), wire.ToDomain())
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]bool{"added": added})
}

func (s *Server) getFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := s.library.IsFavorite(r.Context(), id)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]any{"id": id, "favorite": ok})
}

// toggleFavorite flips the favorite state of an episode. The episode comes
// from the request body or, when the body is empty and the episode is not a
// favorite yet, from the catalog.
func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ep := episode.Episode{ID: id}

	if r.ContentLength != 0 {
		var wire playerapi.Episode
		if err := decodeBody(w, r, &wire); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if wire.ID != "" && wire.ID != id {
			respondError(w, http.StatusBadRequest, "episode id does not match the path")
			return
		}
		wire.ID = id
		ep = wire.ToDomain()
	} else {
		fav, err := s.library.IsFavorite(r.Context(), id)
		if err != nil {
			respondLibraryError(w, err)
			return
		}
		if !fav {
			found, err := s.catalog.Episode(r.Context(), id)
			if err != nil {
				respondCatalogError(w, err)
				return
			}
			ep = *found
		}
	}

	favorite, err := s.library.ToggleFavorite(r.Context(), ep)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]any{"id": id, "favorite": favorite})
}

func (s *Server) deleteFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	removed, err := s.library.RemoveFavorite(r.Context(), id)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "favorite "+id+" not found")
		return
	}
	respondData(w, map[string]bool{"removed": true})
}

type commentRequest struct {
	Text     string `json:"text"`
	Username string `json:"username"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.library.Comments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondList(w, comments)
}

func (s *Server) countComments(w http.ResponseWriter, r *http.Request) {
	count, err := s.library.CommentCount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondData(w, map[string]int{"count": count})
}

func (s *Server) postComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.library.AddComment(r.Context(), mux.Vars(r)["id"], req.Username, req.Text)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{Success: true, Data: c})
}

func respondLibraryError(w http.ResponseWriter, err error) {
	if errors.Is(err, library.ErrMissingID) ||
		errors.Is(err, library.ErrEmptyComment) ||
		errors.Is(err, library.ErrCommentTooLong) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	zlog.Error().Err(err).Msg("rest: library request failed")
	respondError(w, http.StatusInternalServerError, "library request failed")
}
