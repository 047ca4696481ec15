package shim

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/containerd/fifo"
	"github.com/containerd/log"
)

// openFifo opens path, which containerd must have created as a fifo.
func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo", path)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

// connectStdio pipes the fifos of a task to the standard streams of cmd.
// Empty paths are left unconnected. Without a separate stderr fifo, stderr
// shares the stdout pipe.
func connectStdio(ctx context.Context, cmd *exec.Cmd, stdin, stdout, stderr string) error {
	if stdout != "" {
		fw, err := openFifo(ctx, stdout, syscall.O_WRONLY)
		if err != nil {
			return err
		}
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("getting stdout pipe: %w", err)
		}
		go copyStream(ctx, fw, pipe, stdout)
	}

	if stdin != "" {
		fr, err := openFifo(ctx, stdin, syscall.O_RDONLY)
		if err != nil {
			return err
		}
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("getting stdin pipe: %w", err)
		}
		go copyStream(ctx, pipe, fr, stdin)
	}

	if stderr == "" || stderr == stdout {
		cmd.Stderr = cmd.Stdout
		return nil
	}

	fe, err := openFifo(ctx, stderr, syscall.O_WRONLY)
	if err != nil {
		return err
	}
	pipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}
	go copyStream(ctx, fe, pipe, stderr)
	return nil
}

func copyStream(ctx context.Context, dst io.WriteCloser, src io.Reader, name string) {
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		log.G(ctx).WithError(err).Errorf("failed to copy stream %s", name)
	}
}
