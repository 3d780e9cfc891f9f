// Command studydeck is a terminal front end for study decks.
//
// Usage:
//
//	studydeck [-config file] [-offline] [-v] <command> [subcommand] [flags]
//
// Every invocation re-establishes the selection it needs (deck, then module) from
// its flags and forwards one intent to the controller. Settled lists are mirrored
// to the local database, so -offline can show the last synced view.
//
// Run "studydeck help" for the command list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/config"
	"github.com/sakif/studydeck/internal/repository/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("studydeck", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to a YAML config file")
	offline := global.Bool("offline", false, "read the last synced snapshot instead of the remote service")
	verbose := global.Bool("v", false, "log at debug level")
	if err := global.Parse(args); err != nil {
		return 2
	}

	cmd, rest, ok := lookup(global.Args())
	if !ok {
		usage(stderr)
		return 2
	}
	if cmd.name == "help" {
		usage(stdout)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		fmt.Fprintf(stderr, "creating database directory: %v\n", err)
		return 1
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		offline: *offline,
		stdin:   stdin,
		out:     stdout,
		errOut:  stderr,
	}
	defer a.close()

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintln(stderr, "error:", message(err))
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

// message is what the user sees for err.
func message(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return apperror.UserMessage(err)
	}
	return err.Error()
}

// lookup resolves "group sub" before "group".
func lookup(args []string) (command, []string, bool) {
	if len(args) == 0 {
		return command{}, nil, false
	}
	if len(args) > 1 {
		if c, ok := commands[args[0]+" "+args[1]]; ok {
			return c, args[2:], true
		}
	}
	c, ok := commands[args[0]]
	return c, args[1:], ok
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: studydeck [-config file] [-offline] [-v] <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %s\n", name, commands[name].summary)
	}
}
