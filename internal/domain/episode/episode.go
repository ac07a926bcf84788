// Package episode provides the Episode and Show domain entities.
package episode

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrMissingID       = errors.New("episode id is required")
	ErrMissingAudioURL = errors.New("episode audio url is required")
)

// Episode represents a playable podcast episode.
// Identity is the ID; values are never mutated after construction.
type Episode struct {
	ID          string        `json:"id"`                     // Catalog episode ID
	Title       string        `json:"title"`                  // Episode title
	Host        string        `json:"host,omitempty"`         // Show publisher / host name
	ImageURL    string        `json:"image_url,omitempty"`    // Artwork URL
	AudioURL    string        `json:"audio_url"`              // Stream or file URL
	Duration    time.Duration `json:"duration"`               // Advertised duration
	ShowID      string        `json:"show_id,omitempty"`      // Owning show (optional)
	Description string        `json:"description,omitempty"`  // Episode description
	ReleaseDate string        `json:"release_date,omitempty"` // Release date as reported by the catalog
}

// Show represents a podcast a listener can subscribe to.
type Show struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Host        string `json:"host,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Validate checks the fields required for playback.
func (e *Episode) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.AudioURL == "" {
		return errors.Wrapf(ErrMissingAudioURL, "episode %s", e.ID)
	}
	return nil
}

// Same reports whether two episodes share an identity.
func (e *Episode) Same(other *Episode) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}
