package bf

import (
	"context"
	"io"

	"github.com/containerd/log"
)

// Run parses source and runs it. Nothing is executed if parsing fails.
func Run(source string, input io.Reader, output io.StringWriter, opts Options) error {
	return RunContext(context.Background(), source, input, output, opts)
}

func RunContext(ctx context.Context, source string, input io.Reader, output io.StringWriter, opts Options) error {
	program, err := NewParser(source, opts.MaxRepeat).Parse()
	if err != nil {
		return err
	}
	if opts.Debug {
		log.G(ctx).WithFields(log.Fields{
			"instructions": program.Len(),
			"depth":        program.Depth(),
		}).Debug("parsed")
	}
	return NewInterpreter(program, input, output, opts).RunContext(ctx)
}

// RunFile reads a .bf file and runs it.
func RunFile(ctx context.Context, path string, input io.Reader, output io.StringWriter, opts Options) error {
	source, err := ReadSource(path)
	if err != nil {
		return err
	}
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("file", path))
	return RunContext(ctx, source, input, output, opts)
}
