// Package catalog defines podcast lookup used by the API layer.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/podbox/internal/domain/episode"
)

// Errors
var (
	ErrNotFound   = errors.New("not found in catalog")
	ErrDisabled   = errors.New("catalog is disabled")
	ErrUnplayable = errors.New("episode has no playable audio")
	ErrEmptyQuery = errors.New("search query is required")
)

// Catalog looks up shows and episodes.
type Catalog interface {
	SearchShows(ctx context.Context, query string, limit int) ([]episode.Show, error)
	SearchEpisodes(ctx context.Context, query string, limit int) ([]episode.Episode, error)
	ShowEpisodes(ctx context.Context, showID string, limit, offset int) ([]episode.Episode, error)
	Episode(ctx context.Context, id string) (*episode.Episode, error)
}

// Disabled is a Catalog that rejects every call with ErrDisabled.
type Disabled struct{}

func (Disabled) SearchShows(context.Context, string, int) ([]episode.Show, error) {
	return nil, ErrDisabled
}

func (Disabled) SearchEpisodes(context.Context, string, int) ([]episode.Episode, error) {
	return nil, ErrDisabled
}

func (Disabled) ShowEpisodes(context.Context, string, int, int) ([]episode.Episode, error) {
	return nil, ErrDisabled
}

func (Disabled) Episode(context.Context, string) (*episode.Episode, error) {
	return nil, ErrDisabled
}

// Resolve looks up every id in order, stopping at the first failure.
func Resolve(ctx context.Context, c Catalog, ids []string) ([]episode.Episode, error) {
	eps := make([]episode.Episode, 0, len(ids))
	for _, id := range ids {
		ep, err := c.Episode(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve episode %s", id)
		}
		eps = append(eps, *ep)
	}
	return eps, nil
}
