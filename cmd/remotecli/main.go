// Package main provides the remote control CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/osa030/19remote/internal/app/notification"
	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/app/poller"
	"github.com/osa030/19remote/internal/domain/session"
	"github.com/osa030/19remote/internal/domain/track"
	"github.com/osa030/19remote/internal/infra/remote"
)

var (
	app        = kingpin.New("19remote-cli", "19remote playback control client")
	server     = app.Flag("server", "Server address").Default("http://localhost:3000").Envar("REMOTE_SERVER").String()
	sessionArg = app.Flag("session", "Session key (guild id)").Short('s').Default("default").Envar("REMOTE_SESSION").String()
	timeout    = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	// status command
	statusCmd = app.Command("status", "Show the session state").Default()

	// watch command
	watchCmd      = app.Command("watch", "Follow the session state")
	watchInterval = watchCmd.Flag("interval", "Polling interval (defaults to the server's poll interval)").Duration()
	watchPush     = watchCmd.Flag("push", "Use the websocket stream instead of polling").Bool()

	// control command
	controlCmd     = app.Command("control", "Send a control command")
	controlName    = controlCmd.Arg("command", "Command name ("+strings.Join(commandNames(), ", ")+")").Required().String()
	controlPayload = controlCmd.Arg("payload", "Payload fields as key=value").Strings()

	// library command
	libraryCmd     = app.Command("library", "List the track library")
	libraryRefresh = libraryCmd.Flag("refresh", "Reload the server library first").Bool()

	// search command
	searchCmd   = app.Command("search", "Search the track library")
	searchQuery = searchCmd.Arg("query", "Search text").String()

	// playurl command
	playURLCmd = app.Command("playurl", "Queue an http(s) URL")
	playURLArg = playURLCmd.Arg("url", "Audio URL").Required().String()

	// config command
	configCmd = app.Command("config", "Show or set the base URL for relative track paths")
	configSet = configCmd.Flag("set", "New base URL").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := remote.New(*server, *timeout)

	key, err := session.ParseKey(*sessionArg)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute command
	switch command {
	case statusCmd.FullCommand():
		status(ctx, client, key)
	case watchCmd.FullCommand():
		if *watchPush {
			watchPushed(ctx, client, key)
		} else {
			watchPolled(ctx, client, key, resolveInterval(ctx, client, *watchInterval))
		}
	case controlCmd.FullCommand():
		control(ctx, client, key, *controlName, *controlPayload)
	case libraryCmd.FullCommand():
		listLibrary(ctx, client, *libraryRefresh)
	case searchCmd.FullCommand():
		search(ctx, client, *searchQuery)
	case playURLCmd.FullCommand():
		playURL(ctx, client, key, *playURLArg)
	case configCmd.FullCommand():
		showConfig(ctx, client, *configSet)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func commandNames() []string {
	names := make([]string, len(playback.Commands))
	for i, c := range playback.Commands {
		names[i] = string(c)
	}
	return names
}

func status(ctx context.Context, client *remote.Client, key session.Key) {
	st, err := client.Snapshot(ctx, key)
	if err != nil {
		fail(err)
	}
	fmt.Printf("\n=== SESSION %s ===\n", key)
	printState(st)
	fmt.Println()
}

// resolveInterval returns flag when set, otherwise the interval the server
// reports, falling back to poller.DefaultInterval.
func resolveInterval(ctx context.Context, client *remote.Client, flag time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	interval, err := client.PollInterval(ctx)
	if err != nil {
		fmt.Printf("Warning: could not read server poll interval: %v\n", err)
		return poller.DefaultInterval
	}
	if interval <= 0 {
		return poller.DefaultInterval
	}
	return interval
}

func watchPolled(ctx context.Context, client *remote.Client, key session.Key, interval time.Duration) {
	fmt.Printf("Watching session %s every %v (Ctrl+C to stop)\n", key, interval)

	p := poller.New(client, key, poller.Config{
		Interval:   interval,
		OnlyChange: true,
		OnState: func(st playback.State) {
			fmt.Printf("\n[%s]\n", time.Now().Format("15:04:05"))
			printState(st)
		},
		OnError: func(err error) {
			fmt.Printf("[%s] Error: %v\n", time.Now().Format("15:04:05"), err)
		},
	})
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	fmt.Printf("\nStopped after %d polls\n", p.Fetches())
}

func watchPushed(ctx context.Context, client *remote.Client, key session.Key) {
	fmt.Printf("Watching session %s via push (Ctrl+C to stop)\n", key)

	err := client.Watch(ctx, key, func(n *notification.Notification) {
		fmt.Printf("\n[#%d %s", n.SequenceNo, n.Event)
		if n.Command != "" {
			fmt.Printf(" by %s", n.Command)
		}
		fmt.Println("]")
		printState(n.State)
	})
	if err != nil {
		fail(err)
	}
}

func control(ctx context.Context, client *remote.Client, key session.Key, name string, fields []string) {
	payload, err := parsePayload(fields)
	if err != nil {
		fail(err)
	}

	st, err := client.Control(ctx, key, name, payload)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s: ok\n", name)
	printState(st)
}

// parsePayload turns key=value arguments into a payload. Numeric values are
// sent as numbers.
func parsePayload(fields []string) (map[string]any, error) {
	payload := make(map[string]any, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, errors.Newf("invalid payload field %q: want key=value", f)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			payload[k] = n
			continue
		}
		payload[k] = v
	}
	return payload, nil
}

func listLibrary(ctx context.Context, client *remote.Client, refresh bool) {
	if refresh {
		res, err := client.RefreshLibrary(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Library reloaded from %s: %d tracks\n", res.Source, res.Tracks)
	}

	tracks, err := client.Library(ctx)
	if err != nil {
		fail(err)
	}
	printTracks(tracks)
}

func search(ctx context.Context, client *remote.Client, query string) {
	tracks, err := client.Search(ctx, query)
	if err != nil {
		fail(err)
	}
	if len(tracks) == 0 {
		fmt.Printf("No tracks match %q\n", query)
		return
	}
	printTracks(tracks)
}

func playURL(ctx context.Context, client *remote.Client, key session.Key, rawURL string) {
	res, err := client.PlayURL(ctx, key, rawURL)
	if err != nil {
		fail(err)
	}
	if res.Track != nil {
		fmt.Printf("Queued: %s\n", formatTrack(*res.Track))
	}
	if res.State != nil {
		printState(*res.State)
	}
}

func showConfig(ctx context.Context, client *remote.Client, set string) {
	if set != "" {
		baseURL, err := client.SetBaseURLSetting(ctx, set)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Base URL updated: %s\n", baseURL)
		return
	}

	baseURL, err := client.BaseURLSetting(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Base URL: %s\n", baseURL)
}

func printState(st playback.State) {
	fmt.Printf("Status: %s\n", st.Status())
	if st.CurrentTrack != nil {
		fmt.Printf("Now Playing: %s\n", formatTrack(*st.CurrentTrack))
	} else {
		fmt.Println("Now Playing: -")
	}
	fmt.Printf("Volume: %d%%\n", st.VolumePercent())
	fmt.Printf("Loop: %s\n", st.LoopMode)
	fmt.Printf("Queue (%d):\n", len(st.Queue))
	for i, t := range st.Queue {
		fmt.Printf("  %2d. %s\n", i+1, formatTrack(t))
	}
}

func printTracks(tracks []track.Track) {
	fmt.Printf("%-24s %-32s %-24s %s\n", "ID", "TITLE", "ARTIST", "LENGTH")
	for _, t := range tracks {
		fmt.Printf("%-24s %-32s %-24s %s\n", t.ID, t.Title, t.Artist, t.Duration)
	}
	fmt.Printf("\n%d tracks\n", len(tracks))
}

func formatTrack(t track.Track) string {
	s := t.Title
	if t.Artist != "" {
		s += " - " + t.Artist
	}
	if t.Duration > 0 {
		s += " (" + t.Duration.String() + ")"
	}
	return s + " [" + t.ID + "]"
}
