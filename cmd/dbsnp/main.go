// Package main provides the dbsnp command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/inodb/vibe-dbsnp/internal/ingest"
	"github.com/inodb/vibe-dbsnp/internal/store"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := NewRootCommand(stdin, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintf(stderr, "Hint: %s\n", hint)
		}
		if errors.Is(err, store.ErrInvalidArgument) || errors.Is(err, store.ErrConfiguration) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNotInitialized):
		return "Create the database with: dbsnp init, then load it with: dbsnp build <file.bed>"
	case errors.Is(err, store.ErrNotConfirmed):
		return "Pass --yes to skip the confirmation prompt"
	case errors.Is(err, store.ErrRemoteInitialization):
		return "Remote databases are read-only; build locally and use: dbsnp publish <location>"
	case errors.Is(err, ingest.ErrParse):
		return "Rows already committed remain; rerun dbsnp init before rebuilding"
	case errors.Is(err, store.ErrConfiguration):
		return "Pass a directory with --dir (or set db.dir), not a database file"
	case errors.Is(err, os.ErrNotExist):
		return "Check that the file path is correct"
	}
	return ""
}
