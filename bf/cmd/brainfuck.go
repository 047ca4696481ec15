package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	"github.com/containerd/log"
)

const (
	exitRuntime  = 1
	exitUsage    = 2
	exitSyntax   = 3
	exitCanceled = 130
)

var (
	filename   string
	configPath string
	debugFlag  bool
	crlfFlag   bool
)

func init() {
	flag.StringVar(&filename, "file", "", "brainfuck source file (.bf or .brainfuck)")
	flag.StringVar(&configPath, "config", "", "YAML options file")
	flag.BoolVar(&debugFlag, "debug", false, "log parser and interpreter activity to stderr")
	flag.BoolVar(&crlfFlag, "crlf", false, `write "\n" as "\r\n"`)
}

func main() {
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

// sourcePath takes the file from -file or from a single positional argument.
func sourcePath() (string, error) {
	args := flag.Args()
	switch {
	case filename != "" && len(args) == 0:
		return filename, nil
	case filename == "" && len(args) == 1:
		return args[0], nil
	case filename == "" && len(args) == 0:
		return "", errors.New("please provide a source file")
	default:
		return "", errors.New("too many arguments were provided to the interpreter")
	}
}

func options() (bf.Options, error) {
	opts := bf.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = bf.LoadOptions(configPath); err != nil {
			return opts, err
		}
	}
	opts = opts.FromEnv()
	if debugFlag {
		opts.Debug = true
	}
	if crlfFlag {
		opts.CRLF = true
	}
	return opts, nil
}

func run(ctx context.Context) int {
	path, err := sourcePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		flag.Usage()
		return exitUsage
	}

	opts, err := options()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitUsage
	}
	if opts.Debug {
		if err := log.SetLevel("debug"); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}

	err = bf.RunFile(ctx, path, os.Stdin, os.Stdout, opts)
	code := exitCode(err)
	switch code {
	case 0:
	case exitRuntime:
		fmt.Fprintln(os.Stderr, "\nError:", err)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return code
}

// exitCode maps the result of a run to the process exit status.
func exitCode(err error) int {
	var syntaxErr *bf.SyntaxError
	var runtimeErr *bf.RuntimeError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &syntaxErr):
		return exitSyntax
	case errors.As(err, &runtimeErr):
		return exitRuntime
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitCanceled
	default:
		return exitUsage
	}
}
