package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/client/participant"
	"github.com/eventpass/eventpass-api/internal/coop"
	"github.com/eventpass/eventpass-api/internal/proof"
)

func runSheet(_ context.Context, args []string) error {
	fs := newFlagSet("sheet")
	eventID := fs.String("event", "", "event id")
	badgeID := fs.String("badge", "", "badge template id the puzzle unlocks (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *eventID == "" {
		return errors.New("--event is required")
	}

	for _, piece := range proof.PuzzleSheet(*eventID, *badgeID) {
		code, err := piece.Encode()
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", piece.PieceID, code)
	}
	return nil
}

type playerFlags struct {
	id   string
	name string
}

func (f *playerFlags) player() (coop.Player, error) {
	if f.id == "" {
		return coop.Player{}, errors.New("--user-id is required")
	}
	name := f.name
	if name == "" {
		name = f.id
	}
	return coop.Player{ID: f.id, Name: name}, nil
}

func runHost(ctx context.Context, args []string) error {
	var (
		device deviceFlags
		me     playerFlags
	)
	fs := newFlagSet("host")
	eventID := fs.String("event", "", "event the session is bound to (empty allows bare piece ids)")
	bind := fs.String("bind", ":12345", "listen address")
	fs.StringVar(&me.id, "user-id", "", "your user id")
	fs.StringVar(&me.name, "name", "", "your display name")
	claim := fs.Bool("claim", false, "redeem the badge when the puzzle is solved")
	device.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	self, err := me.player()
	if err != nil {
		return err
	}

	host := coop.NewHost(self)
	sub, cancel := host.Subscribe()
	defer cancel()

	addr, err := host.Start(ctx, proof.CanonicalPieces, *bind, *eventID)
	if err != nil {
		return err
	}
	defer host.Stop()
	fmt.Printf("hosting on %s, type \"begin\" to start, scan piece codes to submit\n", addr)

	return play(ctx, host, sub, nil, *claim, device)
}

func runJoin(ctx context.Context, args []string) error {
	var (
		device deviceFlags
		me     playerFlags
	)
	fs := newFlagSet("join")
	addr := fs.String("addr", "", "host address, host:port")
	fs.StringVar(&me.id, "user-id", "", "your user id")
	fs.StringVar(&me.name, "name", "", "your display name")
	claim := fs.Bool("claim", false, "redeem the badge when the puzzle is solved")
	device.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return errors.New("--addr is required")
	}
	self, err := me.player()
	if err != nil {
		return err
	}

	client := coop.NewClient(self)
	sub, cancel := client.Subscribe()
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dialCancel()
	if err := client.Connect(dialCtx, *addr); err != nil {
		return err
	}
	defer client.Stop()
	fmt.Println("joined, scan piece codes to submit")

	return play(ctx, client, sub, client.Done(), *claim, device)
}

// session is the part of a host or client the interactive loop drives.
type session interface {
	Submit(raw string) error
	State() coop.State
}

type beginner interface {
	Begin() error
}

func play(ctx context.Context, s session, sub <-chan coop.Notification, done <-chan struct{}, claim bool, device deviceFlags) error {
	lines := scanLines(ctx, os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return errors.New("disconnected from host")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			handleLine(s, line)
		case n, ok := <-sub:
			if !ok {
				return nil
			}
			switch n.Kind {
			case coop.NotifyState:
				printState(n.State)
			case coop.NotifyError:
				fmt.Printf("rejected: %v\n", n.Err)
			case coop.NotifyWin:
				return finish(ctx, n.State, claim, device)
			}
		}
	}
}

func handleLine(s session, line string) {
	switch line {
	case "":
	case "begin":
		b, ok := s.(beginner)
		if !ok {
			fmt.Println("only the host can begin")
			return
		}
		if err := b.Begin(); err != nil {
			fmt.Printf("begin: %v\n", err)
		}
	case "state":
		printState(s.State())
	default:
		if err := s.Submit(line); err != nil {
			fmt.Printf("rejected: %v\n", err)
		}
	}
}

func finish(ctx context.Context, st coop.State, claim bool, device deviceFlags) error {
	code, err := coop.SecureClaimFromWin(st, time.Now())
	if err != nil {
		return err
	}
	fmt.Println("puzzle solved, win code:")
	fmt.Println(code)
	if !claim {
		return nil
	}

	box, err := device.openOutbox(ctx)
	if err != nil {
		return err
	}
	defer box.Close()

	res, err := participant.NewRedeemer(device.client(), box).Redeem(ctx, code)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printState(st coop.State) {
	found := 0
	for _, p := range st.Pieces {
		if p.FoundBy != "" {
			found++
		}
	}
	zap.L().Debug("session state", zap.Any("state", st))
	fmt.Printf("[%s] players=%d pieces=%d/%d badge=%q\n", st.Status, len(st.Players), found, len(st.Pieces), st.BadgeID)
}

func scanLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
