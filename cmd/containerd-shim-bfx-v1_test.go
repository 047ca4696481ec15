package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MarcinKonowalczyk/runbfx/bf"
	"github.com/MarcinKonowalczyk/runbfx/utils"
	"github.com/containerd/log"
)

func TestBrainfuckArgs(t *testing.T) {
	args := []string{"-debug", "brainfuck", "-file", "a.bf"}
	interpret, rest := brainfuckArgs(args)
	utils.Assert(t, interpret, "expected the brainfuck sub-command")
	utils.AssertDeepEqual(t, []string{"-debug", "-file", "a.bf"}, rest)
	// input is left alone
	utils.AssertDeepEqual(t, []string{"-debug", "brainfuck", "-file", "a.bf"}, args)
}

func TestBrainfuckArgs_Shim(t *testing.T) {
	interpret, rest := brainfuckArgs([]string{"-namespace", "moby", "start"})
	utils.Assert(t, !interpret, "unexpected brainfuck sub-command")
	utils.AssertDeepEqual(t, []string{"-namespace", "moby", "start"}, rest)
}

func TestParseBrainfuckFlags(t *testing.T) {
	f, err := parseBrainfuckFlags([]string{"-file", "a.bf", "-crlf=true", "-max-repeat=9"})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, f, brainfuckFlags{file: "a.bf", crlf: true, maxRepeat: 9})

	_, err = parseBrainfuckFlags([]string{"-crlf"})
	utils.Assert(t, err != nil, "expected an error without -file")
}

func TestSetLogLevel(t *testing.T) {
	utils.AssertNoError(t, log.SetLevel("info"))
	t.Cleanup(func() { _ = log.SetLevel("info") })

	var buf bytes.Buffer
	setLogLevel(&buf, "loud")
	utils.Assert(t, strings.Contains(buf.String(), "loud"), "expected the bad level to be reported, got "+buf.String())
	utils.AssertEqual(t, log.GetLevel(), log.InfoLevel)

	buf.Reset()
	setLogLevel(&buf, "debug")
	utils.AssertEqual(t, buf.String(), "")
	utils.AssertEqual(t, log.GetLevel(), log.DebugLevel)
}

func TestBrainfuckExitCode(t *testing.T) {
	utils.AssertEqual(t, brainfuckExitCode(nil), 0)
	utils.AssertEqual(t, brainfuckExitCode(&bf.SyntaxError{Err: bf.ErrUnmatchedLoopClose}), 3)
	utils.AssertEqual(t, brainfuckExitCode(&bf.RuntimeError{Err: bf.ErrInputParse}), 1)
	utils.AssertEqual(t, brainfuckExitCode(errors.New("no such file")), 1)
	utils.AssertEqual(t, brainfuckExitCode(fmt.Errorf("run: %w", context.Canceled)), 143)
	utils.AssertEqual(t, brainfuckExitCode(context.DeadlineExceeded), 143)
}
