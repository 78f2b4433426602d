package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"deploy":   {"Deploy a model and follow its progress", cmdDeploy},
	"progress": {"Follow the progress of a deployment job", cmdProgress},
	"history":  {"List recent deployment attempts", cmdHistory},
	"models":   {"List deployed model containers", cmdModels},
	"health":   {"Check the health of a deployed model", cmdHealth},
	"api-info": {"Show how to call deployed models directly", cmdAPIInfo},
	"board":    {"Board status, reset and cache refresh", cmdBoard},
	"logs":     {"List backend log files or print one", cmdLogs},
	"chat":     {"Send a chat message to a deployed model", cmdChat},
	"releases": {"List published studio releases", cmdReleases},
	"profiles": {"List, add or delete connection profiles", cmdProfiles},
	"use":      {"Set the active connection profile", cmdUse},
}

// errUsage signals that usage was already printed.
var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.run(ctx, os.Args[2:])
	stop()

	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: studioctl <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'studioctl <command> --help' for command flags.")
}

func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: studioctl %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}
