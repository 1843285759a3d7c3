package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ExitOutcome is what a finished child process reports back.
type ExitOutcome struct {
	ExitCode int
	Signaled bool
	Output   []byte
	// OutputIncomplete is set when a background child kept the output
	// pipes open past the wait delay. The exit status is still the
	// process's own.
	OutputIncomplete bool
}

// Success reports whether the process exited with code zero on its own.
func (o ExitOutcome) Success() bool {
	return !o.Signaled && o.ExitCode == 0
}

// CommandRunner runs one operator-configured command to completion.
// A non-nil error means the process could not be launched; a process that
// started and failed is reported through ExitOutcome instead.
type CommandRunner interface {
	Run(ctx context.Context, command string) (ExitOutcome, error)
}

// outputWaitDelay bounds how long Wait keeps reading output after the
// process exits, in case a background child inherited the pipes.
const outputWaitDelay = 5 * time.Second

// ExecRunner runs commands as child processes without a shell.
type ExecRunner struct {
	waitDelay time.Duration
}

// NewExecRunner creates the production command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{waitDelay: outputWaitDelay}
}

// Run splits command on whitespace into a program and its arguments and
// executes it with stdout and stderr captured into one buffer. The command
// string is trusted operator configuration and is never interpreted by a
// shell.
func (r *ExecRunner) Run(ctx context.Context, command string) (ExitOutcome, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ExitOutcome{}, fmt.Errorf("empty command")
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = r.waitDelay

	if err := cmd.Start(); err != nil {
		return ExitOutcome{}, err
	}

	err := cmd.Wait()
	outcome := ExitOutcome{Output: output.Bytes()}

	state := cmd.ProcessState
	if state == nil {
		return outcome, fmt.Errorf("waiting for command: %w", err)
	}

	outcome.ExitCode = state.ExitCode()
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		outcome.Signaled = true
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		outcome.OutputIncomplete = true
	}
	return outcome, nil
}
