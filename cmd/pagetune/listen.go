package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagetune/pagetune-server/internal/audio"
	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/errors"
	"github.com/pagetune/pagetune-server/internal/music"
	"github.com/pagetune/pagetune-server/internal/service"
)

const listenHelp = `commands:
  n            next page or chapter
  p            previous page or chapter
  g <page>     go to page (or chapter index for sequential documents)
  j <chapter>  jump to chapter
  c <chapter>  play chapter without moving
  t            toggle playback
  s            show status
  q            quit`

type listenOptions struct {
	preferences []string
	paused      bool
}

func newListenCmd(flags *globalFlags) *cobra.Command {
	opts := &listenOptions{}

	cmd := &cobra.Command{
		Use:   "listen <document-id>",
		Short: "Read a document with chapter music on the local speaker",
		Long:  "Opens a reading session and plays each chapter's track on this machine.\n\n" + listenHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListen(ctx, flags, opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&opts.preferences, "prefs", nil, "Music preference tags; requires a music service")
	cmd.Flags().BoolVar(&opts.paused, "paused", false, "Do not autoplay the first track")
	return cmd
}

func runListen(ctx context.Context, flags *globalFlags, opts *listenOptions, documentID string, in io.Reader, out io.Writer) error {
	rt, err := openRuntime(flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !audio.LocalAvailable {
		fmt.Fprintln(out, "warning: this build has no speaker output; tracks resolve silently")
	}

	var generator chaptersync.TrackGenerator
	if rt.cfg.Music.ServiceURL != "" {
		client, err := music.New(music.Config{
			BaseURL:   rt.cfg.Music.ServiceURL,
			Timeout:   rt.cfg.Music.Timeout,
			RPS:       rt.cfg.Music.RPS,
			Burst:     rt.cfg.Music.Burst,
			CacheSize: rt.cfg.Music.CacheSize,
		}, rt.log.Logger)
		if err != nil {
			return err
		}
		defer client.Close()
		generator = client
	}

	fetcher := audio.NewFetcher(rt.cfg.Music.Timeout)
	// One session per run, so the single player is kept for status output.
	var player *audio.LocalPlayer
	sessions := service.NewSessionService(rt.store, rt.checkpoints, generator, nil, service.SessionConfig{
		TickInterval:    rt.cfg.Checkpoint.Interval,
		GenerateTimeout: rt.cfg.Music.Timeout,
		NewPlayer: func(string) chaptersync.Player {
			player = audio.NewLocalPlayer(fetcher)
			return player
		},
	}, rt.log.Logger)

	snap, err := sessions.Open(ctx, service.OpenInput{
		DocumentID:  documentID,
		Preferences: opts.preferences,
		StartPaused: opts.paused,
	})
	if err != nil {
		return err
	}
	sessionID := snap.SessionID
	defer func() {
		// Terminate with a fresh context so the final checkpoint is written
		// even after an interrupt.
		if err := sessions.Close(context.WithoutCancel(ctx), sessionID); err != nil {
			rt.log.Warn("close session", "error", err)
		}
	}()

	printSnapshot(out, snap)
	fmt.Fprintln(out, listenHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if cmd.op == opQuit {
				return nil
			}
			snap, err := cmd.apply(sessions, sessionID)
			if err != nil && !errors.CodeOf(err).Recoverable() {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			if err != nil {
				fmt.Fprintln(out, "warning:", err)
			}
			printSnapshot(out, snap)
			if cmd.op == opStatus && player != nil && snap.Playback.HasTrack() {
				fmt.Fprintf(out, "  track at %s\n", formatTrackTime(player.Position()))
			}
		}
	}
}

type commandOp int

const (
	opNext commandOp = iota
	opPrev
	opGoto
	opJump
	opPlay
	opToggle
	opStatus
	opQuit
)

type command struct {
	op  commandOp
	arg int
}

// parseCommand reads one line of listen input.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{op: opStatus}, nil
	}

	withArg := func(op commandOp) (command, error) {
		if len(fields) != 2 {
			return command{}, fmt.Errorf("%s needs one number", fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return command{}, fmt.Errorf("not a valid number: %q", fields[1])
		}
		return command{op: op, arg: n}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "n", "next":
		return command{op: opNext}, nil
	case "p", "prev":
		return command{op: opPrev}, nil
	case "t", "toggle":
		return command{op: opToggle}, nil
	case "s", "status":
		return command{op: opStatus}, nil
	case "q", "quit", "exit":
		return command{op: opQuit}, nil
	case "g", "goto":
		return withArg(opGoto)
	case "j", "jump":
		return withArg(opJump)
	case "c", "play":
		return withArg(opPlay)
	default:
		return command{}, fmt.Errorf("unknown command %q\n%s", fields[0], listenHelp)
	}
}

func (c command) apply(sessions *service.SessionService, sessionID string) (chaptersync.Snapshot, error) {
	switch c.op {
	case opNext:
		return sessions.NextPage(sessionID)
	case opPrev:
		return sessions.PrevPage(sessionID)
	case opToggle:
		return sessions.TogglePlayback(sessionID)
	case opJump:
		return sessions.JumpToChapter(sessionID, c.arg)
	case opPlay:
		return sessions.PlayChapter(sessionID, c.arg)
	case opGoto:
		snap, err := sessions.Get(sessionID)
		if err != nil {
			return snap, err
		}
		pos := snap.Position
		if pos.Kind == domain.Paginated {
			pos.CurrentPage = c.arg
		} else {
			pos.CurrentChapterIndex = c.arg
		}
		return sessions.SetPosition(sessionID, pos)
	default:
		return sessions.Get(sessionID)
	}
}

func printSnapshot(w io.Writer, s chaptersync.Snapshot) {
	where := fmt.Sprintf("page %d/%d", s.Position.CurrentPage, s.Position.TotalPages)
	if s.Position.Kind == domain.Sequential {
		where = fmt.Sprintf("chapter %d/%d", s.Position.CurrentChapterIndex+1, s.Position.TotalChapters)
	}
	track := s.Playback.ActiveTrackURL
	if track == "" {
		track = "(no track)"
	}
	fmt.Fprintf(w, "[%s] %s  %.1f%%  chapter %d/%d  %s  %d min\n",
		s.State, where, s.Percentage, s.ActiveChapter+1, s.ChapterCount, track, s.AccumulatedMinutes)
}

// formatTrackTime renders a playback offset as m:ss.
func formatTrackTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}
