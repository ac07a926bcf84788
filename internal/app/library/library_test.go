package library

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/kvstore"
)

type failingStore struct {
	kvstore.Store
	err error
}

func (s *failingStore) Get(context.Context, string) (string, error) { return "", s.err }

func newTestLibrary() *Library {
	l := New(kvstore.NewMemory())
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	return l
}

func TestLibrary_Subscribe(t *testing.T) {
	ctx := context.Background()
	l := newTestLibrary()
	show := episode.Show{ID: "show-1", Title: "Morning Tech", Category: "Technology"}

	added, err := l.Subscribe(ctx, show)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = l.Subscribe(ctx, show)
	require.NoError(t, err)
	assert.False(t, added, "subscribing twice is idempotent")

	subs, err := l.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Morning Tech", subs[0].Title)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), subs[0].SubscribedAt)

	ok, err := l.IsSubscribed(ctx, "show-1")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := l.Unsubscribe(ctx, "show-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = l.Unsubscribe(ctx, "show-1")
	require.NoError(t, err)
	assert.False(t, removed)

	subs, err = l.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestLibrary_Favorites(t *testing.T) {
	ctx := context.Background()
	l := newTestLibrary()
	a := episode.Episode{ID: "ep-a", Title: "A", AudioURL: "https://example.com/a.mp3", Duration: time.Hour}
	b := episode.Episode{ID: "ep-b", Title: "B", AudioURL: "https://example.com/b.mp3"}

	for _, ep := range []episode.Episode{a, b, a} {
		_, err := l.AddFavorite(ctx, ep)
		require.NoError(t, err)
	}

	favs, err := l.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "ep-a", favs[0].ID)
	assert.Equal(t, time.Hour, favs[0].Duration)
	assert.Equal(t, "ep-b", favs[1].ID)

	isFav, err := l.ToggleFavorite(ctx, a)
	require.NoError(t, err)
	assert.False(t, isFav)

	isFav, err = l.IsFavorite(ctx, "ep-a")
	require.NoError(t, err)
	assert.False(t, isFav)

	isFav, err = l.ToggleFavorite(ctx, a)
	require.NoError(t, err)
	assert.True(t, isFav)

	favs, err = l.Favorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ep-a", favs[len(favs)-1].ID)
}

func TestLibrary_MissingID(t *testing.T) {
	ctx := context.Background()
	l := newTestLibrary()

	_, err := l.Subscribe(ctx, episode.Show{Title: "no id"})
	assert.True(t, errors.Is(err, ErrMissingID))

	_, err = l.AddFavorite(ctx, episode.Episode{Title: "no id"})
	assert.True(t, errors.Is(err, ErrMissingID))

	_, err = l.ToggleFavorite(ctx, episode.Episode{})
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestLibrary_StoreErrors(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	l := New(&failingStore{Store: kvstore.NewMemory(), err: storeErr})

	_, err := l.Subscriptions(ctx)
	assert.True(t, errors.Is(err, storeErr))

	_, err = l.AddFavorite(ctx, episode.Episode{ID: "ep"})
	assert.True(t, errors.Is(err, storeErr))
}

func TestLibrary_CorruptData(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(ctx, FavoritesKey, "{not json"))
	l := New(store)

	_, err := l.Favorites(ctx)
	assert.Error(t, err)
}
