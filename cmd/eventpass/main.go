// eventpass is the device-side companion of the eventpass API. It hosts and
// joins cooperative puzzle sessions, issues and redeems badge codes, and
// flushes the offline outbox.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Autoload .env file.
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/client/api"
	"github.com/eventpass/eventpass-api/internal/client/outbox"
	"github.com/eventpass/eventpass-api/internal/logger"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"sheet":  {summary: "print the signed puzzle piece codes of an event", run: runSheet},
	"host":   {summary: "host a cooperative puzzle session", run: runHost},
	"join":   {summary: "join a cooperative puzzle session", run: runJoin},
	"issue":  {summary: "issue a badge code (online|static|secure|handshake|verify-win)", run: runIssue},
	"redeem": {summary: "redeem a scanned badge code", run: runRedeem},
	"flush":  {summary: "replay queued claims and validations", run: runFlush},
}

func main() {
	if err := logger.Init(os.Getenv("EVENTPASS_ENV")); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(ctx, args[1:])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: eventpass <command> [flags]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
}

// deviceFlags are shared by every command that talks to the server.
type deviceFlags struct {
	server string
	token  string
	outbox string
}

func (f *deviceFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&f.server, "server", envOr("EVENTPASS_SERVER", "http://localhost:8080/api/v1"), "API base URL")
	fs.StringVar(&f.token, "token", os.Getenv("EVENTPASS_TOKEN"), "bearer token")
	fs.StringVar(&f.outbox, "outbox", envOr("EVENTPASS_OUTBOX", "eventpass-outbox.db"), "path of the offline outbox database")
}

func (f *deviceFlags) client() *api.Client {
	return api.New(f.server, api.WithBearer(f.token))
}

func (f *deviceFlags) openOutbox(ctx context.Context) (*outbox.Outbox, error) {
	box, err := outbox.Open(ctx, f.outbox)
	if err != nil {
		return nil, fmt.Errorf("outbox.Open -> %w", err)
	}
	return box, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("eventpass "+name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}
