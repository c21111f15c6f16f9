package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/josephlewis42/lxfsh/core/redirect"
	"github.com/josephlewis42/lxfsh/core/shell"
)

// RunPipeline connects segments with pipes and runs them concurrently.
//
// Every pipe is created before the first stage starts. Stage i reads from
// pipe i-1 and writes to pipe i; the first stage reads the runner's stdin
// and the last writes to its stdout. Every stage shares the runner's
// stderr. Redirection words inside segments are passed to the program as
// arguments.
//
// A stage that can't be started is reported and skipped, the rest still
// run. The returned error joins the failures of all stages.
func (r *Runner) RunPipeline(ctx context.Context, segments []string) (*Result, error) {
	if len(segments) == 0 {
		r.report(ErrNoCommand)
		return nil, ErrNoCommand
	}

	streams := r.Streams.WithDefaults()

	pipes, err := makePipes(len(segments) - 1)
	if err != nil {
		r.report(err)
		return nil, err
	}
	defer pipes.close()

	res := &Result{}
	cmds := make([]*exec.Cmd, len(segments))
	var errs []error

	for i, segment := range segments {
		argv := shell.SplitWhitespace(segment)
		child := &Child{Argv: argv, ExitCode: -1}
		res.Children = append(res.Children, child)

		if len(argv) == 0 {
			child.Err = ErrNoCommand
			r.report(child.Err)
			errs = append(errs, child.Err)
			continue
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = streams.Stdin
		if i > 0 {
			cmd.Stdin = pipes[i-1].r
		}
		cmd.Stdout = streams.Stdout
		if i < len(pipes) {
			cmd.Stdout = pipes[i].w
		}
		cmd.Stderr = streams.Stderr

		if err := cmd.Start(); err != nil {
			child.Err = startError(argv[0], err)
			r.report(child.Err)
			errs = append(errs, child.Err)
			continue
		}

		child.Pid = cmd.Process.Pid
		cmds[i] = cmd
	}

	// Readers see EOF only once every write end is closed.
	pipes.close()

	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}

		waitErr := cmd.Wait()
		res.Children[i].ExitCode = cmd.ProcessState.ExitCode()

		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) {
			res.Children[i].Err = waitErr
			errs = append(errs, waitErr)
		}
	}

	err = errors.Join(errs...)
	res.Err = err
	return res, err
}

type pipePair struct {
	r, w *os.File
}

type pipeList []pipePair

func makePipes(n int) (pipeList, error) {
	var out pipeList
	for i := 0; i < n; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			out.close()
			return nil, redirect.NewSetupError("pipe", "pipeline", err)
		}
		out = append(out, pipePair{r: r, w: w})
	}
	return out, nil
}

// close closes every end, it is safe to call more than once.
func (pl pipeList) close() {
	for _, p := range pl {
		p.r.Close()
		p.w.Close()
	}
}
