package main

import (
	"fmt"
	"io"
	"time"

	"github.com/osa030/podbox/internal/api/playerapi"
)

func formatPhase(phase string) string {
	switch phase {
	case "idle":
		return "⏹  Idle"
	case "loading":
		return "⏳ Loading"
	case "ready":
		return "⏸  Ready"
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "finished":
		return "🔚 Finished"
	case "stopped":
		return "⏹  Stopped"
	case "error":
		return "⚠️  Error"
	default:
		return "❓ Unknown"
	}
}

// formatClock renders milliseconds as [h:]mm:ss.
func formatClock(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func printState(w io.Writer, s *playerapi.PlayerState) {
	fmt.Fprintln(w, "\n=== PLAYER STATE ===")
	fmt.Fprintf(w, "State: %s", formatPhase(s.Phase))
	if s.IsBuffering {
		fmt.Fprint(w, " (buffering)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rate: %.2fx\n", s.Rate)

	if s.CurrentEpisode != nil {
		fmt.Fprintln(w, "\nCurrent Episode:")
		fmt.Fprintf(w, "  ID: %s\n", s.CurrentEpisode.ID)
		fmt.Fprintf(w, "  Title: %s\n", s.CurrentEpisode.Title)
		if s.CurrentEpisode.Host != "" {
			fmt.Fprintf(w, "  Host: %s\n", s.CurrentEpisode.Host)
		}
		fmt.Fprintf(w, "  Position: %s / %s\n", formatClock(s.PositionMs), formatClock(s.DurationMs))
	} else {
		fmt.Fprintln(w, "\nNothing selected")
	}

	if len(s.Playlist) > 0 {
		fmt.Fprintf(w, "\nPlaylist: %d episodes (current: %d), total %s\n",
			len(s.Playlist), s.CurrentIndex, formatClock(s.PlaylistMs))
	}
	fmt.Fprintln(w)
}

func printPlaylist(w io.Writer, s *playerapi.PlayerState) {
	if len(s.Playlist) == 0 {
		fmt.Fprintln(w, "Playlist is empty")
		return
	}
	for i, e := range s.Playlist {
		marker := " "
		if int32(i) == s.CurrentIndex {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %2d. %s [%s] (%s)\n", marker, i, e.Title, formatClock(e.DurationMs), e.ID)
	}
	fmt.Fprintf(w, "Total: %s\n", formatClock(s.PlaylistMs))
}

func printNotification(w io.Writer, n *playerapi.Notification) {
	fmt.Fprintf(w, "\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case playerapi.NotificationInitialState:
		fmt.Fprintln(w, "=== INITIAL STATE ===")
	case playerapi.NotificationState:
		fmt.Fprintln(w, "=== STATE CHANGED ===")
	default:
		fmt.Fprintf(w, "=== %s ===\n", n.Type)
	}

	if n.Episode != nil {
		fmt.Fprintf(w, "Episode: %s (%s)\n", n.Episode.Title, n.Episode.ID)
	}
	if n.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", n.Error)
	}
	if n.State != nil {
		printState(w, n.State)
	}
}
