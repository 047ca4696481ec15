package shim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/containerd/log"
)

// proc is the init process of a task: the interpreter running one script.
type proc struct {
	pid     int
	started bool

	done       context.Context
	exitTime   time.Time
	exitStatus int

	stdout string
	stdin  string
	stderr string
}

func (p *proc) exited() bool {
	return p.done.Err() != nil
}

func (p *proc) String() string {
	if p.exited() {
		return fmt.Sprintf("pid:%d, exitTime:%s, exitStatus:%d", p.pid, p.exitTime.Format(time.RFC3339), p.exitStatus)
	}
	return fmt.Sprintf("pid:%d running", p.pid)
}

const stopPollInterval = 2 * time.Millisecond

// waitStopped returns once process pid is in the stopped state, as read
// from /proc/<pid>/stat.
func waitStopped(ctx context.Context, pid int) error {
	path := fmt.Sprintf("/proc/%d/stat", pid)
	for {
		stat, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading state of process %d: %w", pid, err)
		}
		// the state follows the parenthesised command name
		i := bytes.LastIndexByte(stat, ')')
		if i < 0 || i+2 >= len(stat) {
			return fmt.Errorf("malformed %s", path)
		}
		switch stat[i+2] {
		case 'T':
			return nil
		case 'Z', 'X':
			return errors.New("process exited before it was stopped")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stopPollInterval):
		}
	}
}

// exitStatus maps a finished process to a shell-style exit status. Death by
// signal is 128+signal. Without a process state the status is 255.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 255
	}
	if state.Exited() {
		return state.ExitCode()
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitCodeSignal + int(ws.Signal())
	}
	return 255
}

// finalizer waits for the init process of a task, records how it ended and
// shuts the shim down once every task is done.
type finalizer struct {
	done func()
	cmd  *exec.Cmd
	s    *bfxTaskService
	id   string
}

// schedule returns once the waiting goroutine is running.
func (f *finalizer) schedule(ctx context.Context) {
	ready := make(chan struct{})
	go f.run(ctx, ready)
	<-ready
}

func (f *finalizer) run(ctx context.Context, ready chan<- struct{}) {
	close(ready)

	pid := f.cmd.Process.Pid
	logger := log.G(ctx).WithField("id", f.id).WithField("pid", pid)
	if err := f.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			logger.WithError(err).Error("failed to wait for init process")
		}
	}
	if f.cmd.ProcessState == nil {
		logger.Warn("init process wait returned without setting process state")
	}
	status := exitStatus(f.cmd.ProcessState)
	logger.WithField("status", status).Debug("init process exited")

	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.procs[f.id]
	if !ok {
		logger.Error("failed to write final status of done init process: task was removed")
		f.done()
		return
	}
	p.exitStatus = status
	p.exitTime = time.Now()
	f.done()

	for _, p := range s.procs {
		if !p.exited() {
			return
		}
	}
	logger.Debug("all procs exited. shutting down the shim")
	s.shutdown.Shutdown()
}
