// Package testrun invokes the external commands that run tests and clear
// previous results.
package testrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrNoCommand indicates the requested command is not configured.
	ErrNoCommand = errors.New("no command configured")

	// ErrTestsFailed indicates the command ran and exited non-zero. The
	// invocation itself succeeded.
	ErrTestsFailed = errors.New("tests failed")
)

// Runner runs tests on behalf of the watch loop.
type Runner interface {
	// RunAll runs the whole suite. It is tried first.
	RunAll(ctx context.Context) error

	// Run is the fallback when RunAll fails.
	Run(ctx context.Context) error

	// ClearResults discards results of previous runs.
	ClearResults(ctx context.Context) error
}

// Commands are the argv lists used by CommandRunner.
type Commands struct {
	RunAll       []string
	Run          []string
	ClearResults []string
}

// CommandRunner implements Runner by executing configured commands in the
// workspace. Command output is streamed to Stdout and Stderr.
type CommandRunner struct {
	cmds   Commands
	dir    string
	stdout io.Writer
	stderr io.Writer
}

// NewCommandRunner creates a CommandRunner. nil writers default to
// os.Stdout / os.Stderr.
func NewCommandRunner(cmds Commands, dir string, stdout, stderr io.Writer) *CommandRunner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &CommandRunner{cmds: cmds, dir: dir, stdout: stdout, stderr: stderr}
}

// RunAll executes the runAll command.
func (r *CommandRunner) RunAll(ctx context.Context) error {
	return r.exec(ctx, "runAll", r.cmds.RunAll)
}

// Run executes the fallback run command.
func (r *CommandRunner) Run(ctx context.Context) error {
	return r.exec(ctx, "run", r.cmds.Run)
}

// ClearResults executes the clearResults command. Without one configured
// there is nothing to clear and it succeeds.
func (r *CommandRunner) ClearResults(ctx context.Context) error {
	if len(r.cmds.ClearResults) == 0 {
		return nil
	}
	return r.exec(ctx, "clearResults", r.cmds.ClearResults)
}

func (r *CommandRunner) exec(ctx context.Context, name string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s: %w", name, ErrNoCommand)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s: %w (exit status %d)", name, ErrTestsFailed, exitErr.ExitCode())
	}
	return fmt.Errorf("%s %q failed: %w", name, strings.Join(argv, " "), err)
}

// FakeRunner implements Runner for testing. Each method returns its
// configured error and counts calls.
type FakeRunner struct {
	mu sync.Mutex

	RunAllErr       error
	RunErr          error
	ClearResultsErr error

	runAllCalls       int
	runCalls          int
	clearResultsCalls int

	// OnRunAll, when set, is called inside RunAll before returning.
	OnRunAll func()
}

// NewFakeRunner creates a FakeRunner whose commands all succeed.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// SetErrors sets the errors returned by RunAll and Run.
func (f *FakeRunner) SetErrors(runAll, run error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunAllErr = runAll
	f.RunErr = run
}

// RunAll records the call.
func (f *FakeRunner) RunAll(ctx context.Context) error {
	f.mu.Lock()
	f.runAllCalls++
	hook, err := f.OnRunAll, f.RunAllErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

// Run records the call.
func (f *FakeRunner) Run(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls++
	return f.RunErr
}

// ClearResults records the call.
func (f *FakeRunner) ClearResults(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearResultsCalls++
	return f.ClearResultsErr
}

// Calls returns the number of RunAll, Run and ClearResults calls.
func (f *FakeRunner) Calls() (runAll, run, clearResults int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runAllCalls, f.runCalls, f.clearResultsCalls
}
