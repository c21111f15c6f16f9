// Package runner starts the programs named on a command line and waits for
// them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	"github.com/josephlewis42/lxfsh/core/logger"
	"github.com/josephlewis42/lxfsh/core/redirect"
	"github.com/josephlewis42/lxfsh/core/shell"
)

// DefaultBufferSize is the chunk size used to relay child output.
const DefaultBufferSize = 4096

// ErrNoCommand is returned for a line or pipeline stage without a program.
var ErrNoCommand = errors.New("empty command")

// SetupError is a failure to prepare a command: opening a target,
// duplicating a descriptor, creating a pipe or starting the program.
type SetupError = redirect.SetupError

// Runner executes command lines.
//
// The zero value runs against the process's standard streams with the
// default buffer size and records no events.
type Runner struct {
	// Streams the children inherit, unset fields use the os.Std* files.
	Streams redirect.Streams
	// Redirect controls how redirection targets are opened.
	Redirect redirect.Options
	// BufferSize is the relay chunk size, DefaultBufferSize if zero.
	BufferSize int
	// Log receives command events, may be nil.
	Log *logger.SessionLogger
}

// Child is one program started for a line.
type Child struct {
	Argv []string
	// Pid is 0 if the child was never started.
	Pid int
	// ExitCode is -1 if the child was not started or was killed by a
	// signal.
	ExitCode int
	// Err is set if the child could not be started.
	Err error
}

// Result describes every child of one line.
type Result struct {
	Children []*Child
	// Err is the first failure affecting the line as a whole.
	Err error
}

// Pids returns the process IDs of the started children.
func (r *Result) Pids() []int {
	var out []int
	for _, c := range r.children() {
		if c.Pid != 0 {
			out = append(out, c.Pid)
		}
	}
	return out
}

// ExitCodes returns the exit code of every child, in stage order.
func (r *Result) ExitCodes() []int {
	var out []int
	for _, c := range r.children() {
		out = append(out, c.ExitCode)
	}
	return out
}

// Success reports whether every child was started and exited with 0.
func (r *Result) Success() bool {
	if r == nil || r.Err != nil || len(r.Children) == 0 {
		return false
	}
	for _, c := range r.Children {
		if c.Err != nil || c.ExitCode != 0 {
			return false
		}
	}
	return true
}

func (r *Result) children() []*Child {
	if r == nil {
		return nil
	}
	return r.Children
}

// Run executes line as a pipeline if it contains an unquoted pipe and as a
// single command with redirections otherwise.
//
// Failures are reported on the runner's stderr as "name: error" and
// returned. Blank lines do nothing.
func (r *Runner) Run(ctx context.Context, line string) (*Result, error) {
	if strings.TrimSpace(line) == "" {
		return &Result{}, nil
	}

	var (
		res *Result
		err error
	)
	if shell.IsPipeline(line) {
		segments := shell.SplitPipeline(line)
		r.recorded("command", r.Log.RunCommand(line, shell.SplitWhitespace(segments[0]), len(segments)))
		res, err = r.RunPipeline(ctx, segments)
	} else {
		redirs := shell.ExtractRedirections(line)
		argv := redirs.Argv()
		r.recorded("command", r.Log.RunCommand(line, argv, 1))
		res, err = r.runRedirected(ctx, argv, redirs)
	}

	r.recorded("result", r.Log.CommandResult(line, res.ExitCodes(), err))
	return res, err
}

// recorded logs a failure to write an event, the line still runs.
func (r *Runner) recorded(what string, err error) {
	if err != nil {
		log.Printf("recording %s: %v", what, err)
	}
}

func (r *Runner) runRedirected(ctx context.Context, argv []string, redirs shell.Redirections) (*Result, error) {
	set, err := redirect.Resolve(redirs, r.Streams, r.Redirect)
	if err != nil {
		r.report(err)
		return nil, err
	}

	return r.RunSingle(ctx, argv, set)
}

func (r *Runner) bufferSize() int {
	if r.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return r.BufferSize
}

func (r *Runner) stderr() io.Writer {
	return r.Streams.WithDefaults().Stderr
}

// report prints a diagnostic for err and records setup failures.
func (r *Runner) report(err error) {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		r.recorded("setup error", r.Log.SetupError(setupErr.Op, setupErr.Target, setupErr.Err))
		fmt.Fprintf(r.stderr(), "%s: %v\n", setupErr.Target, setupErr.Err)
		return
	}

	fmt.Fprintf(r.stderr(), "lxfsh: %v\n", err)
}

func startError(name string, err error) *SetupError {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		err = execErr.Err
	}
	return redirect.NewSetupError("start", name, err)
}
