package library

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/rs/xid"
	zlog "github.com/rs/zerolog/log"
)

// CommentsKey stores every episode's comments as one JSON object keyed by
// episode ID.
const CommentsKey = "library:comments"

// MaxCommentLength is the longest accepted comment text, in runes.
const MaxCommentLength = 2000

// DefaultUsername is used for comments posted without a name.
const DefaultUsername = "listener"

// Comment errors
var (
	ErrEmptyComment   = errors.New("comment text is required")
	ErrCommentTooLong = errors.Newf("comment text exceeds %d characters", MaxCommentLength)
)

// Comment is a listener comment on an episode.
type Comment struct {
	ID        string    `json:"id"`
	EpisodeID string    `json:"episode_id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"likes"`
}

// AddComment stores a comment on the episode and returns it. Text is
// trimmed; blank text is rejected.
func (l *Library) AddComment(ctx context.Context, episodeID, username, text string) (Comment, error) {
	if episodeID == "" {
		return Comment{}, ErrMissingID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return Comment{}, ErrCommentTooLong
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	all := map[string][]Comment{}
	if err := l.load(ctx, CommentsKey, &all); err != nil {
		return Comment{}, err
	}
	if all == nil {
		all = map[string][]Comment{}
	}

	c := Comment{
		ID:        xid.New().String(),
		EpisodeID: episodeID,
		Text:      text,
		Username:  username,
		CreatedAt: l.now(),
	}
	all[episodeID] = append([]Comment{c}, all[episodeID]...)
	if err := l.save(ctx, CommentsKey, all); err != nil {
		return Comment{}, err
	}

	zlog.Debug().Msgf("library: comment added: episode=%s id=%s", episodeID, c.ID)
	return c, nil
}

// Comments lists the comments on the episode, newest first.
func (l *Library) Comments(ctx context.Context, episodeID string) ([]Comment, error) {
	var all map[string][]Comment
	if err := l.load(ctx, CommentsKey, &all); err != nil {
		return nil, err
	}
	return all[episodeID], nil
}

// CommentCount returns the number of comments on the episode.
func (l *Library) CommentCount(ctx context.Context, episodeID string) (int, error) {
	comments, err := l.Comments(ctx, episodeID)
	if err != nil {
		return 0, err
	}
	return len(comments), nil
}
