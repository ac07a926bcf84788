// Package playlist provides the episode Playlist value.
package playlist

import (
	"time"

	"github.com/osa030/podbox/internal/domain/episode"
)

// Playlist is an ordered sequence of episodes with unique IDs.
// Methods never modify the receiver; changes return a fresh slice.
type Playlist []episode.Episode

// New builds a playlist from episodes, dropping later duplicates of an ID.
func New(episodes []episode.Episode) Playlist {
	p := make(Playlist, 0, len(episodes))
	seen := make(map[string]bool, len(episodes))
	for _, e := range episodes {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		p = append(p, e)
	}
	return p
}

// IDs returns all episode IDs in order.
func (p Playlist) IDs() []string {
	ids := make([]string, len(p))
	for i, e := range p {
		ids[i] = e.ID
	}
	return ids
}

// TotalDuration returns the sum of the advertised episode durations.
func (p Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, e := range p {
		total += e.Duration
	}
	return total
}

// IndexOf returns the position of the episode with the given ID, or -1.
func (p Playlist) IndexOf(id string) int {
	for i, e := range p {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether an episode with the given ID is present.
func (p Playlist) Contains(id string) bool {
	return p.IndexOf(id) >= 0
}

// Append returns a copy with e appended. When e is already present the
// receiver is returned unchanged and added is false.
func (p Playlist) Append(e episode.Episode) (result Playlist, added bool) {
	if p.Contains(e.ID) {
		return p, false
	}
	result = make(Playlist, len(p), len(p)+1)
	copy(result, p)
	return append(result, e), true
}

// Remove returns a copy without the episode with the given ID and the index
// it occupied, or the receiver and -1 when absent.
func (p Playlist) Remove(id string) (Playlist, int) {
	idx := p.IndexOf(id)
	if idx < 0 {
		return p, -1
	}
	result := make(Playlist, 0, len(p)-1)
	result = append(result, p[:idx]...)
	result = append(result, p[idx+1:]...)
	return result, idx
}

// At returns the episode at i, or nil when i is out of range.
func (p Playlist) At(i int) *episode.Episode {
	if i < 0 || i >= len(p) {
		return nil
	}
	e := p[i]
	return &e
}
