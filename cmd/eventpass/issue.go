package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eventpass/eventpass-api/internal/client/organizer"
	"github.com/eventpass/eventpass-api/internal/client/outbox"
	"github.com/eventpass/eventpass-api/internal/client/participant"
)

func runIssue(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: eventpass issue <online|static|secure|handshake|verify-win> [flags]")
	}
	mode, args := args[0], args[1:]

	var device deviceFlags
	fs := newFlagSet("issue " + mode)
	eventID := fs.String("event", "", "event id")
	badgeID := fs.String("badge", "", "badge template id")
	participantID := fs.String("participant", "", "participant user id (secure)")
	key := fs.String("key", os.Getenv("EVENTPASS_SESSION_KEY"), "session key from the handshake (secure)")
	device.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *eventID == "" {
		return errors.New("--event is required")
	}

	box, err := device.openOutbox(ctx)
	if err != nil {
		return err
	}
	defer box.Close()
	issuer := organizer.NewIssuer(device.client(), box)

	switch mode {
	case "online":
		token, err := issuer.IssueOnline(ctx, *eventID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t(expires %s)\n", token.Token, token.ExpiresAt.Local().Format("15:04:05"))
	case "static":
		fmt.Println(issuer.IssueStatic(*eventID, *badgeID))
	case "handshake":
		sessionKey, err := issuer.Handshake(ctx, *eventID)
		if err != nil {
			return err
		}
		fmt.Println(sessionKey)
	case "secure":
		if *participantID == "" || *badgeID == "" {
			return errors.New("--participant and --badge are required")
		}
		issue, err := issuer.IssueSecure(ctx, *eventID, *badgeID, *participantID, *key)
		if err != nil {
			return err
		}
		if issue.Synced {
			fmt.Println("validation synced with the server")
		} else {
			fmt.Println("offline: validation queued, show this code to the participant")
		}
		fmt.Println(issue.Code)
	case "verify-win":
		if fs.NArg() != 1 {
			return errors.New("usage: eventpass issue verify-win --event ID CODE")
		}
		win, err := issuer.VerifyWin(*eventID, fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Printf("win verified: team=%s badge=%q\n", strings.Join(win.Team, ","), win.BadgeID)
	default:
		return fmt.Errorf("unknown issue mode %q", mode)
	}
	return nil
}

func runRedeem(ctx context.Context, args []string) error {
	var device deviceFlags
	fs := newFlagSet("redeem")
	device.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: eventpass redeem [flags] CODE")
	}

	box, err := device.openOutbox(ctx)
	if err != nil {
		return err
	}
	defer box.Close()

	res, err := participant.NewRedeemer(device.client(), box).Redeem(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runFlush(ctx context.Context, args []string) error {
	var device deviceFlags
	fs := newFlagSet("flush")
	device.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	box, err := device.openOutbox(ctx)
	if err != nil {
		return err
	}
	defer box.Close()

	client := device.client()
	report, err := box.Flush(ctx, outbox.Mux{
		outbox.KindClaim:      participant.NewRedeemer(client, box),
		outbox.KindValidation: organizer.NewIssuer(client, box),
	})
	if err != nil {
		return err
	}

	fmt.Printf("delivered=%d already-satisfied=%d kept=%d failed=%d\n",
		report.Delivered, report.Satisfied, report.Kept, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  dropped %s (%s): %v\n", f.Entry.Kind, f.Entry.Context, f.Err)
	}
	return nil
}

func printResult(res participant.Result) {
	if res.Queued {
		fmt.Printf("saved to outbox (%v), run \"eventpass flush\" once online\n", res.Reason)
		return
	}
	b, _ := json.MarshalIndent(res.Record, "", "  ")
	fmt.Println(string(b))
}
