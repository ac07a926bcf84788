// Package library manages the listener's show subscriptions and favorite
// episodes on top of a key-value store.
package library

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/kvstore"
)

// Storage keys
const (
	SubscriptionsKey = "library:subscriptions"
	FavoritesKey     = "library:favorites"
)

// ErrMissingID is returned when an entry without ID is added.
var ErrMissingID = errors.New("library entry id is required")

// Subscription is a subscribed show.
type Subscription struct {
	episode.Show
	SubscribedAt time.Time `json:"subscribed_at"`
}

// Favorite is a favorited episode.
type Favorite struct {
	episode.Episode
	FavoritedAt time.Time `json:"favorited_at"`
}

// Library stores subscriptions and favorites as JSON arrays.
type Library struct {
	mu    sync.Mutex // serializes read-modify-write cycles
	store kvstore.Store
	now   func() time.Time
}

// New creates a library backed by store.
func New(store kvstore.Store) *Library {
	return &Library{store: store, now: time.Now}
}

// Subscriptions lists subscribed shows in subscription order.
func (l *Library) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := l.load(ctx, SubscriptionsKey, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscribe adds show unless it is already subscribed. It reports whether
// the show was added.
func (l *Library) Subscribe(ctx context.Context, show episode.Show) (bool, error) {
	if show.ID == "" {
		return false, ErrMissingID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	subs, err := l.Subscriptions(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if s.ID == show.ID {
			return false, nil
		}
	}
	subs = append(subs, Subscription{Show: show, SubscribedAt: l.now()})
	if err := l.save(ctx, SubscriptionsKey, subs); err != nil {
		return false, err
	}
	zlog.Info().Msgf("library: subscribed: id=%s title=%s", show.ID, show.Title)
	return true, nil
}

// Unsubscribe removes the show with the given ID. It reports whether the
// show was subscribed.
func (l *Library) Unsubscribe(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs, err := l.Subscriptions(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(subs) {
		return false, nil
	}
	if err := l.save(ctx, SubscriptionsKey, kept); err != nil {
		return false, err
	}
	zlog.Info().Msgf("library: unsubscribed: id=%s", id)
	return true, nil
}

// IsSubscribed reports whether the show with the given ID is subscribed.
func (l *Library) IsSubscribed(ctx context.Context, id string) (bool, error) {
	subs, err := l.Subscriptions(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Favorites lists favorite episodes in the order they were added.
func (l *Library) Favorites(ctx context.Context) ([]Favorite, error) {
	var favs []Favorite
	if err := l.load(ctx, FavoritesKey, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

// AddFavorite adds ep unless it is already a favorite. It reports whether
// the episode was added.
func (l *Library) AddFavorite(ctx context.Context, ep episode.Episode) (bool, error) {
	if ep.ID == "" {
		return false, ErrMissingID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addFavoriteLocked(ctx, ep)
}

func (l *Library) addFavoriteLocked(ctx context.Context, ep episode.Episode) (bool, error) {
	favs, err := l.Favorites(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range favs {
		if f.ID == ep.ID {
			return false, nil
		}
	}
	favs = append(favs, Favorite{Episode: ep, FavoritedAt: l.now()})
	if err := l.save(ctx, FavoritesKey, favs); err != nil {
		return false, err
	}
	zlog.Info().Msgf("library: favorite added: id=%s title=%s", ep.ID, ep.Title)
	return true, nil
}

// RemoveFavorite removes the episode with the given ID. It reports whether
// the episode was a favorite.
func (l *Library) RemoveFavorite(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeFavoriteLocked(ctx, id)
}

func (l *Library) removeFavoriteLocked(ctx context.Context, id string) (bool, error) {
	favs, err := l.Favorites(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]Favorite, 0, len(favs))
	for _, f := range favs {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(favs) {
		return false, nil
	}
	if err := l.save(ctx, FavoritesKey, kept); err != nil {
		return false, err
	}
	zlog.Info().Msgf("library: favorite removed: id=%s", id)
	return true, nil
}

// IsFavorite reports whether the episode with the given ID is a favorite.
func (l *Library) IsFavorite(ctx context.Context, id string) (bool, error) {
	favs, err := l.Favorites(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range favs {
		if f.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// ToggleFavorite adds ep when it is not a favorite and removes it otherwise.
// It returns whether ep is a favorite afterwards.
func (l *Library) ToggleFavorite(ctx context.Context, ep episode.Episode) (bool, error) {
	if ep.ID == "" {
		return false, ErrMissingID
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	removed, err := l.removeFavoriteLocked(ctx, ep.ID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	return l.addFavoriteLocked(ctx, ep)
}

// load decodes the JSON array stored under key into v. A missing key
// yields an empty list.
func (l *Library) load(ctx context.Context, key string, v any) error {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && raw == "") {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", key)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", key)
	}
	return nil
}

func (l *Library) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	if err := l.store.Set(ctx, key, string(raw)); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}
