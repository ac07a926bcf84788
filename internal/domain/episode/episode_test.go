package episode

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestEpisode_Validate(t *testing.T) {
	tests := []struct {
		name    string
		episode Episode
		wantErr error
	}{
		{
			name: "valid episode",
			episode: Episode{
				ID:       "ep-1",
				Title:    "Morning Tech",
				AudioURL: "https://example.com/ep-1.mp3",
				Duration: 45 * time.Minute,
			},
		},
		{
			name:    "missing id",
			episode: Episode{AudioURL: "https://example.com/ep-1.mp3"},
			wantErr: ErrMissingID,
		},
		{
			name:    "missing audio url",
			episode: Episode{ID: "ep-1"},
			wantErr: ErrMissingAudioURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.episode.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestEpisode_Same(t *testing.T) {
	a := &Episode{ID: "a", Title: "first"}
	a2 := &Episode{ID: "a", Title: "renamed"}
	b := &Episode{ID: "b"}

	assert.True(t, a.Same(a2))
	assert.False(t, a.Same(b))
	assert.False(t, a.Same(nil))

	var none *Episode
	assert.True(t, none.Same(nil))
}
