// Package spotify provides a podcast catalog backed by the Spotify Web API.
package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/podbox/internal/app/catalog"
	"github.com/osa030/podbox/internal/domain/episode"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

// Scopes requested by the auth helper and the refreshing client.
var Scopes = []string{
	"user-read-playback-position", // not exported as a constant by spotifyauth v2
	spotifyauth.ScopeUserLibraryRead,
}

// Client is a Spotify API client implementing catalog.Catalog.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a client that refreshes its access token from cfg.RefreshToken.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return newClient(spotify.New(httpClient), cfg.Market), nil
}

// NewWithHTTPClient creates a client over an already authorized HTTP client.
// A non-empty baseURL replaces the Spotify API endpoint.
func NewWithHTTPClient(httpClient *http.Client, baseURL, market string) *Client {
	var opts []spotify.ClientOption
	if baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(baseURL))
	}
	return newClient(spotify.New(httpClient, opts...), market)
}

func newClient(sc *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     sc,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// SearchShows searches podcasts by keyword.
func (c *Client) SearchShows(ctx context.Context, query string, limit int) ([]episode.Show, error) {
	result, err := c.search(ctx, query, spotify.SearchTypeShow, limit)
	if err != nil {
		return nil, err
	}
	if result.Shows == nil {
		return []episode.Show{}, nil
	}

	shows := make([]episode.Show, 0, len(result.Shows.Shows))
	for _, s := range result.Shows.Shows {
		shows = append(shows, episode.Show{
			ID:          string(s.ID),
			Title:       s.Name,
			Host:        s.Publisher,
			ImageURL:    firstImage(s.Images),
			Description: s.Description,
			Category:    s.MediaType,
		})
	}
	return shows, nil
}

// SearchEpisodes searches episodes by keyword. Episodes without audio are skipped.
func (c *Client) SearchEpisodes(ctx context.Context, query string, limit int) ([]episode.Episode, error) {
	result, err := c.search(ctx, query, spotify.SearchTypeEpisode, limit)
	if err != nil {
		return nil, err
	}
	if result.Episodes == nil {
		return []episode.Episode{}, nil
	}
	return c.convertPage(result.Episodes.Episodes, ""), nil
}

func (c *Client) search(ctx context.Context, query string, st spotify.SearchType, limit int) (*spotify.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, catalog.ErrEmptyQuery
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, st, spotify.Limit(clampLimit(limit)), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	return result, nil
}

// ShowEpisodes lists a page of a show's episodes.
func (c *Client) ShowEpisodes(ctx context.Context, showID string, limit, offset int) ([]episode.Episode, error) {
	id := extractID(showID, "show")
	if id == "" {
		return nil, errors.Wrap(catalog.ErrNotFound, "empty show id")
	}
	if offset < 0 {
		offset = 0
	}

	var page *spotify.SimpleEpisodePage
	err := c.retry(ctx, func() error {
		p, err := c.client.GetShowEpisodes(ctx, id,
			spotify.Limit(clampLimit(limit)),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, c.wrapLookup(err, "show", id)
	}
	return c.convertPage(page.Episodes, id), nil
}

// Episode looks up a single episode by ID, URL, or URI.
func (c *Client) Episode(ctx context.Context, episodeID string) (*episode.Episode, error) {
	id := extractID(episodeID, "episode")
	if id == "" {
		return nil, errors.Wrap(catalog.ErrNotFound, "empty episode id")
	}

	var result *spotify.EpisodePage
	err := c.retry(ctx, func() error {
		e, err := c.client.GetEpisode(ctx, id, spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, c.wrapLookup(err, "episode", id)
	}

	ep := convertEpisode(result, "")
	if ep.AudioURL == "" {
		return nil, errors.Wrapf(catalog.ErrUnplayable, "episode %s", id)
	}
	return &ep, nil
}

func (c *Client) wrapLookup(err error, kind, id string) error {
	if statusOf(err) == http.StatusNotFound || statusOf(err) == http.StatusBadRequest {
		return errors.Wrapf(catalog.ErrNotFound, "%s %s", kind, id)
	}
	return errors.Wrapf(err, "failed to get %s %s", kind, id)
}

func (c *Client) convertPage(items []spotify.EpisodePage, showID string) []episode.Episode {
	eps := make([]episode.Episode, 0, len(items))
	for i := range items {
		ep := convertEpisode(&items[i], showID)
		if ep.AudioURL == "" {
			zlog.Debug().Msgf("spotify: skipping episode without audio: id=%s", ep.ID)
			continue
		}
		eps = append(eps, ep)
	}
	return eps
}

// convertEpisode converts a Spotify episode to a domain Episode. The audio URL
// is the preview clip, which is the only audio the Web API exposes.
func convertEpisode(e *spotify.EpisodePage, showID string) episode.Episode {
	ep := episode.Episode{
		ID:          string(e.ID),
		Title:       e.Name,
		Host:        e.Show.Publisher,
		ImageURL:    firstImage(e.Images),
		AudioURL:    e.AudioPreviewURL,
		Duration:    time.Duration(e.Duration_ms) * time.Millisecond,
		ShowID:      string(e.Show.ID),
		Description: e.Description,
		ReleaseDate: e.ReleaseDate,
	}
	if ep.ShowID == "" {
		ep.ShowID = showID
	}
	if ep.ImageURL == "" {
		ep.ImageURL = firstImage(e.Show.Images)
	}
	return ep
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// retry retries an operation with linear backoff while ctx is alive.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

func statusOf(err error) int {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch status := statusOf(err); {
	case status == http.StatusTooManyRequests, status >= 500:
		return true
	case status != 0:
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts an ID of the given kind ("show", "episode") from a
// Spotify URL or URI. Anything else is assumed to be a bare ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	segment := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
