package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/truthordare/gameclient/internal/game"
	"github.com/truthordare/gameclient/internal/identity"
	"github.com/truthordare/gameclient/internal/protocol"
	"github.com/truthordare/gameclient/internal/transport"
)

var errQuit = errors.New("quit")

func runClient(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	store := identity.NewFileStore(cfg.stateDir)
	ident, err := store.Load()
	if err != nil {
		return err
	}
	if ident == nil {
		fmt.Println("no identity found; run `tord register --name ...` first to take part, spectating for now")
	}

	mgr := transport.NewManager(cfg.serverURL, log)
	sess := game.NewSession(ctx, mgr, ident, log)

	views := make(chan game.View, 16)
	sess.Inbox() <- game.Watch{ID: uuid.NewString(), Outbox: views}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.Run(ctx, sess.Inbox())
	})

	g.Go(func() error {
		printViews(ctx, views)
		return nil
	})

	g.Go(func() error {
		err := readInput(ctx, sess)
		if errors.Is(err, errQuit) {
			return context.Canceled
		}
		return err
	})

	err = g.Wait()
	sess.Inbox() <- game.Shutdown{}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printViews renders each view snapshot as it arrives. Rendering is
// deliberately plain; all game state comes from the snapshot alone.
func printViews(ctx context.Context, views <-chan game.View) {
	var last game.View
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			render(last, v)
			last = v
		}
	}
}

func render(prev, v game.View) {
	if v.Offline && !prev.Offline {
		fmt.Println("!! offline: gave up reconnecting")
		return
	}
	if v.Connected && !prev.Connected {
		fmt.Printf("connected (%d online)\n", v.OnlineCount)
	}
	if !v.Connected && prev.Connected {
		fmt.Println("disconnected, reconnecting...")
	}
	if v.LastError != "" && v.LastError != prev.LastError {
		fmt.Printf("!! %s\n", v.LastError)
	}
	if v.OnlineCount != prev.OnlineCount {
		fmt.Printf("online players: %d\n", v.OnlineCount)
	}

	if len(v.Chat) > 0 && (len(prev.Chat) == 0 || !sameEntry(lastEntry(prev.Chat), lastEntry(v.Chat))) {
		e := lastEntry(v.Chat)
		if e.System() {
			fmt.Printf("*** %s\n", e.Content)
		} else {
			fmt.Printf("<%s> %s\n", e.Author, e.Content)
		}
	}

	if v.MyTurn && !prev.MyTurn {
		fmt.Println(">> your turn! /truth [category] or /dare [category]")
	}
	if !v.MyTurn && prev.MyTurn {
		if v.ActiveName != "" {
			fmt.Printf("waiting for %s's turn...\n", v.ActiveName)
		} else {
			fmt.Println("game in progress...")
		}
	}

	if v.Choice == game.ChoicePresented && prev.Choice != game.ChoicePresented {
		fmt.Printf(">> %s question (%s): %s\n", strings.ToUpper(v.Kind), v.Category, v.Prompt)
		fmt.Println(">> answer with /answer <text>")
	}
}

func lastEntry(entries []game.Entry) game.Entry {
	return entries[len(entries)-1]
}

func sameEntry(a, b game.Entry) bool {
	return a.Author == b.Author && a.Content == b.Content
}

// readInput turns stdin lines into session commands. Plain lines are chat;
// /truth, /dare and /answer drive the choice flow.
func readInput(ctx context.Context, sess *game.Session) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := dispatchLine(line, sess); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				fmt.Printf("!! %v\n", err)
			}
		}
	}
}

func dispatchLine(line string, sess *game.Session) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	switch {
	case line == "/quit":
		return errQuit

	case strings.HasPrefix(line, "/truth"), strings.HasPrefix(line, "/dare"):
		kind := protocol.KindTruth
		if strings.HasPrefix(line, "/dare") {
			kind = protocol.KindDare
		}
		category := "all"
		if fields := strings.Fields(line); len(fields) > 1 {
			category = fields[1]
		}
		reply := make(chan error, 1)
		sess.Inbox() <- game.RequestPrompt{Kind: kind, Category: category, Reply: reply}
		return <-reply

	case strings.HasPrefix(line, "/answer"):
		reply := make(chan error, 1)
		sess.Inbox() <- game.SubmitAnswer{Text: strings.TrimPrefix(line, "/answer"), Reply: reply}
		return <-reply

	case strings.HasPrefix(line, "/"):
		return fmt.Errorf("unknown command %q", strings.Fields(line)[0])

	default:
		sess.Inbox() <- game.SendChat{Text: line}
		return nil
	}
}
