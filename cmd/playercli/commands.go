package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"

	"github.com/osa030/podbox/internal/api/playerapi"
)

// cli holds the command tree and the values parsed into it. A fresh cli is
// built for every shell line so repeated arguments never accumulate.
type cli struct {
	app    *kingpin.Application
	server *string
	token  *string

	status *kingpin.CmdClause
	watch  *kingpin.CmdClause
	shell  *kingpin.CmdClause

	play      *kingpin.CmdClause
	playRef   *string
	playTitle *string

	toggle  *kingpin.CmdClause
	seek    *kingpin.CmdClause
	seekPos *string
	rate    *kingpin.CmdClause
	rateVal *float64
	stop    *kingpin.CmdClause

	next     *kingpin.CmdClause
	prev     *kingpin.CmdClause
	playlist *kingpin.CmdClause

	setPlaylist      *kingpin.CmdClause
	setPlaylistRefs  *[]string
	setPlaylistStart *int32

	add     *kingpin.CmdClause
	addRef  *string
	addPlay *bool

	remove   *kingpin.CmdClause
	removeID *string
	clear    *kingpin.CmdClause

	selectCmd   *kingpin.CmdClause
	selectIndex *int32

	togglePlaylist *kingpin.CmdClause
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("podbox-playercli", "podbox player client")}
	c.server = c.app.Flag("server", "Server address").Default("http://localhost:8080").Envar("PODBOX_SERVER").String()
	c.token = c.app.Flag("token", "Control token (or set PODBOX_CONTROL_TOKEN env)").Envar("PODBOX_CONTROL_TOKEN").String()

	c.status = c.app.Command("status", "Show the player state").Default()
	c.watch = c.app.Command("watch", "Stream player notifications")
	c.shell = c.app.Command("shell", "Interactive shell")

	c.play = c.app.Command("play", "Play an episode by catalog ID, audio URL or file path")
	c.playRef = c.play.Arg("episode", "Episode ID, URL or path").Required().String()
	c.playTitle = c.play.Flag("title", "Title of an inline episode").String()

	c.toggle = c.app.Command("toggle", "Pause or resume playback").Alias("pause").Alias("resume")
	c.seek = c.app.Command("seek", "Seek to a position (90, 1:30 or 1m30s)")
	c.seekPos = c.seek.Arg("position", "Target position").Required().String()
	c.rate = c.app.Command("rate", "Set the playback rate")
	c.rateVal = c.rate.Arg("rate", "Playback rate, e.g. 1.5").Required().Float64()
	c.stop = c.app.Command("stop", "Stop playback and clear the selection")

	c.next = c.app.Command("next", "Play the next playlist entry")
	c.prev = c.app.Command("prev", "Play the previous playlist entry").Alias("previous")
	c.playlist = c.app.Command("playlist", "Show the playlist").Alias("ls")

	c.setPlaylist = c.app.Command("set-playlist", "Replace the playlist")
	c.setPlaylistRefs = c.setPlaylist.Arg("episodes", "Episode IDs, URLs or paths").Required().Strings()
	c.setPlaylistStart = c.setPlaylist.Flag("start", "Index to select").Default("0").Int32()

	c.add = c.app.Command("add", "Append an episode to the playlist")
	c.addRef = c.add.Arg("episode", "Episode ID, URL or path").Required().String()
	c.addPlay = c.add.Flag("play", "Start it when the playlist was empty").Bool()

	c.remove = c.app.Command("remove", "Remove an episode from the playlist").Alias("rm")
	c.removeID = c.remove.Arg("episode-id", "Episode ID").Required().String()
	c.clear = c.app.Command("clear", "Clear the playlist")

	c.selectCmd = c.app.Command("select", "Play the playlist entry at an index")
	c.selectIndex = c.selectCmd.Arg("index", "Zero-based playlist index").Required().Int32()

	c.togglePlaylist = c.app.Command("toggle-playlist", "Show or hide the playlist in clients")
	return c
}

// run executes a parsed command against the server.
func (c *cli) run(ctx context.Context, client *playerapi.PlayerServiceClient, command string, out io.Writer) error {
	empty := func() *connect.Request[playerapi.Empty] { return connect.NewRequest(&playerapi.Empty{}) }

	var (
		res *connect.Response[playerapi.StateResponse]
		err error
	)
	switch command {
	case c.status.FullCommand(), c.playlist.FullCommand():
		res, err = client.GetState(ctx, empty())
	case c.watch.FullCommand():
		return watch(ctx, client, out)
	case c.play.FullCommand():
		id, inline := episodeRef(*c.playRef, *c.playTitle)
		res, err = client.PlayEpisode(ctx, connect.NewRequest(&playerapi.PlayEpisodeRequest{EpisodeID: id, Episode: inline}))
	case c.toggle.FullCommand():
		res, err = client.TogglePlayback(ctx, empty())
	case c.seek.FullCommand():
		pos, perr := parsePosition(*c.seekPos)
		if perr != nil {
			return perr
		}
		res, err = client.SeekTo(ctx, connect.NewRequest(&playerapi.SeekToRequest{PositionMs: pos.Milliseconds()}))
	case c.rate.FullCommand():
		res, err = client.SetPlaybackRate(ctx, connect.NewRequest(&playerapi.SetPlaybackRateRequest{Rate: *c.rateVal}))
	case c.stop.FullCommand():
		res, err = client.StopPlayback(ctx, empty())
	case c.next.FullCommand():
		res, err = client.Next(ctx, empty())
	case c.prev.FullCommand():
		res, err = client.Previous(ctx, empty())
	case c.setPlaylist.FullCommand():
		req := &playerapi.SetPlaylistRequest{StartIndex: *c.setPlaylistStart}
		for _, ref := range *c.setPlaylistRefs {
			if id, inline := episodeRef(ref, ""); inline != nil {
				req.Episodes = append(req.Episodes, *inline)
			} else {
				req.EpisodeIDs = append(req.EpisodeIDs, id)
			}
		}
		res, err = client.SetPlaylist(ctx, connect.NewRequest(req))
	case c.add.FullCommand():
		id, inline := episodeRef(*c.addRef, "")
		res, err = client.AddToPlaylist(ctx, connect.NewRequest(&playerapi.AddToPlaylistRequest{EpisodeID: id, Episode: inline, Play: *c.addPlay}))
	case c.remove.FullCommand():
		res, err = client.RemoveFromPlaylist(ctx, connect.NewRequest(&playerapi.RemoveFromPlaylistRequest{EpisodeID: *c.removeID}))
	case c.clear.FullCommand():
		res, err = client.ClearPlaylist(ctx, empty())
	case c.selectCmd.FullCommand():
		res, err = client.SetCurrentIndex(ctx, connect.NewRequest(&playerapi.SetCurrentIndexRequest{Index: *c.selectIndex}))
	case c.togglePlaylist.FullCommand():
		res, err = client.TogglePlaylistVisible(ctx, empty())
	default:
		return errors.Newf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	if command == c.playlist.FullCommand() {
		printPlaylist(out, &res.Msg.State)
		return nil
	}
	printState(out, &res.Msg.State)
	return nil
}

// episodeRef turns a command line reference into a catalog ID or an inline
// episode. URLs and existing-looking paths become inline episodes.
func episodeRef(ref, title string) (string, *playerapi.Episode) {
	if !strings.Contains(ref, "://") && !strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, ".") {
		return ref, nil
	}
	if title == "" {
		title = filepath.Base(strings.SplitN(ref, "?", 2)[0])
	}
	return "", &playerapi.Episode{ID: ref, Title: title, AudioURL: ref}
}

// parsePosition accepts plain seconds, [h:]mm:ss or a Go duration.
func parsePosition(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, errors.Newf("negative position %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, errors.Newf("invalid position %q", s)
		}
		var total time.Duration
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, errors.Newf("invalid position %q", s)
			}
			total = total*60 + time.Duration(n)
		}
		return total * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Newf("invalid position %q", s)
	}
	if d < 0 {
		return 0, errors.Newf("negative position %q", s)
	}
	return d, nil
}

func watch(ctx context.Context, client *playerapi.PlayerServiceClient, out io.Writer) error {
	stream, err := client.WatchState(ctx, connect.NewRequest(&playerapi.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Fprintln(out, "Watching player notifications. Press Ctrl+C to exit.")
	for stream.Receive() {
		printNotification(out, stream.Msg())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "stream error")
	}
	return nil
}
