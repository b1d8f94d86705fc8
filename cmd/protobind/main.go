package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	perrors "github.com/shhac/protobind/internal/errors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			slog.New(slog.NewTextHandler(stderr, nil)).Error("panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			code = 2
		}
	}()

	rc, err := newRootCommand(stdin, stdout, stderr)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	if err := rc.execute(context.Background(), args); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// printError renders err with its classification and recovery hints.
func printError(w io.Writer, err error) {
	uiErr := perrors.ClassifyGRPCError(err)
	fmt.Fprintf(w, "%s: %s\n", uiErr.Title, uiErr.Message)
	if uiErr.Details != "" && uiErr.Details != uiErr.Message {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(uiErr.Details, "\n", "\n  "))
	}
	for _, hint := range uiErr.Recovery {
		fmt.Fprintf(w, "  - %s\n", hint)
	}
}
