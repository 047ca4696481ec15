package shim

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/errdefs"

	"github.com/MarcinKonowalczyk/runbfx/utils"
	"golang.org/x/sys/unix"
)

// createStopped registers a task whose init process is held by the
// start-stopped script the way Create does.
func createStopped(t *testing.T, s *bfxTaskService, id string) {
	t.Helper()
	script := filepath.Join(t.TempDir(), "start-stopped.sh")
	utils.AssertNoError(t, os.WriteFile(script, []byte(startStoppedScript), 0755))

	cmd := exec.Command("/bin/sh", script, "/bin/sleep", "30")
	cmd.WaitDelay = commandWaitDelay
	utils.AssertNoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	done, markDone := context.WithCancel(context.Background())
	s.mu.Lock()
	f := &finalizer{done: markDone, cmd: cmd, s: s, id: id}
	f.schedule(context.Background())
	s.procs[id] = &proc{pid: cmd.Process.Pid, done: done}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	utils.AssertNoError(t, waitStopped(ctx, cmd.Process.Pid))
}

func newTestService() *bfxTaskService {
	return &bfxTaskService{procs: map[string]*proc{}, shutdown: &fakeShutdown{}}
}

func waitStatus(t *testing.T, s *bfxTaskService, id string) uint32 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := s.Wait(ctx, &taskAPI.WaitRequest{ID: id})
	utils.AssertNoError(t, err)
	return resp.ExitStatus
}

func taskStatus(t *testing.T, s *bfxTaskService, id string) tasktypes.Status {
	t.Helper()
	resp, err := s.State(context.Background(), &taskAPI.StateRequest{ID: id})
	utils.AssertNoError(t, err)
	return resp.Status
}

func TestKill_CreatedTaskTerm(t *testing.T) {
	s := newTestService()
	createStopped(t, s, "task")
	utils.AssertEqual(t, taskStatus(t, s, "task"), tasktypes.Status_CREATED)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	_, err := s.Kill(ctx, &taskAPI.KillRequest{ID: "task", Signal: uint32(unix.SIGTERM)})
	utils.AssertNoError(t, err)
	utils.Assert(t, time.Since(start) < time.Second, "kill should not wait for the process to exit")

	utils.AssertEqual(t, waitStatus(t, s, "task"), uint32(exitCodeSignal+int(unix.SIGTERM)))
	utils.AssertEqual(t, taskStatus(t, s, "task"), tasktypes.Status_STOPPED)
}

func TestKill_CreatedTaskNonTerminating(t *testing.T) {
	s := newTestService()
	createStopped(t, s, "task")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Kill(ctx, &taskAPI.KillRequest{ID: "task", Signal: uint32(unix.SIGWINCH)})
	utils.AssertNoError(t, err)
	// still held, not started by the signal
	utils.AssertEqual(t, taskStatus(t, s, "task"), tasktypes.Status_CREATED)

	_, err = s.Kill(ctx, &taskAPI.KillRequest{ID: "task"})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, waitStatus(t, s, "task"), uint32(exitCodeSignal+int(unix.SIGKILL)))
}

func TestKill_StartedTask(t *testing.T) {
	s := newTestService()
	createStopped(t, s, "task")

	_, err := s.Start(context.Background(), &taskAPI.StartRequest{ID: "task"})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, taskStatus(t, s, "task"), tasktypes.Status_RUNNING)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.Kill(ctx, &taskAPI.KillRequest{ID: "task", Signal: uint32(unix.SIGTERM)})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, waitStatus(t, s, "task"), uint32(exitCodeSignal+int(unix.SIGTERM)))

	// a second kill on the exited task is not an error
	_, err = s.Kill(ctx, &taskAPI.KillRequest{ID: "task"})
	utils.AssertNoError(t, err)
}

func TestKill_UnknownTask(t *testing.T) {
	s := newTestService()
	_, err := s.Kill(context.Background(), &taskAPI.KillRequest{ID: "missing"})
	utils.AssertErrorIs(t, err, errdefs.ErrNotFound)
}

func TestWaitStopped_Exited(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	utils.AssertNoError(t, cmd.Start())
	defer func() { _ = cmd.Wait() }()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	utils.Assert(t, waitStopped(ctx, cmd.Process.Pid) != nil, "an exited process is never stopped")
}

func TestTerminates(t *testing.T) {
	utils.Assert(t, terminates(unix.SIGTERM), "SIGTERM terminates")
	utils.Assert(t, terminates(unix.SIGUSR1), "SIGUSR1 terminates")
	utils.Assert(t, !terminates(unix.SIGWINCH), "SIGWINCH is ignored by default")
	utils.Assert(t, !terminates(unix.SIGSTOP), "SIGSTOP stops")
}
