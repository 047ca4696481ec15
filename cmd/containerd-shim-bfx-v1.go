package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	bfx_shim "github.com/MarcinKonowalczyk/runbfx/shim"

	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/log"
)

const runtimeName = "io.containerd.bfx.v1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The shim starts task processes by running itself with "brainfuck"
	if interpret, args := brainfuckArgs(os.Args[1:]); interpret {
		code := runBrainfuck(ctx, args)
		cancel()
		os.Exit(code)
	}
	shim.Run(ctx, bfx_shim.NewManager(runtimeName))
}

// brainfuckArgs reports whether the "brainfuck" sub-command was given and
// returns the remaining arguments.
func brainfuckArgs(args []string) (bool, []string) {
	for i, arg := range args {
		if arg == "brainfuck" {
			rest := make([]string, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			return true, append(rest, args[i+1:]...)
		}
	}
	return false, args
}

type brainfuckFlags struct {
	file      string
	crlf      bool
	debug     bool
	maxRepeat int
}

func parseBrainfuckFlags(args []string) (brainfuckFlags, error) {
	var f brainfuckFlags
	fs := flag.NewFlagSet("brainfuck", flag.ContinueOnError)
	fs.StringVar(&f.file, "file", "", "brainfuck source file")
	fs.BoolVar(&f.crlf, "crlf", false, `write "\n" as "\r\n"`)
	fs.BoolVar(&f.debug, "debug", false, "debug logging")
	fs.IntVar(&f.maxRepeat, "max-repeat", 0, "largest allowed repetition count, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.file == "" {
		return f, fmt.Errorf("invalid argument: -file is required")
	}
	return f, nil
}

func runBrainfuck(ctx context.Context, args []string) int {
	f, err := parseBrainfuckFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running brainfuck:", err)
		return 2
	}

	opts := bf.DefaultOptions()
	opts.CRLF = f.crlf
	opts.Debug = opts.Debug || f.debug
	opts.MaxRepeat = f.maxRepeat
	if opts.Debug {
		setLogLevel(os.Stderr, "debug")
	}

	err = bf.RunFile(ctx, f.file, os.Stdin, os.Stdout, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running brainfuck:", err)
	}
	return brainfuckExitCode(err)
}

// setLogLevel reports a bad level on w and keeps the current one.
func setLogLevel(w io.Writer, level string) {
	if err := log.SetLevel(level); err != nil {
		fmt.Fprintln(w, "Error running brainfuck:", err)
	}
}

// brainfuckExitCode maps the result of a task run to its exit status.
// A cancelled run exits as if killed by SIGTERM.
func brainfuckExitCode(err error) int {
	var syntaxErr *bf.SyntaxError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &syntaxErr):
		return 3
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 128 + int(syscall.SIGTERM)
	default:
		return 1
	}
}
