package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/lxfsh/core/redirect"
	"golang.org/x/sync/errgroup"
)

// RunSingle starts argv with the descriptors in set and relays its output
// until it exits.
//
// Streams with redirect targets are read by the shell through a pipe and
// each chunk is written to every destination of that stream. Streams
// without targets are inherited by the child directly. set is always closed
// before RunSingle returns.
func (r *Runner) RunSingle(ctx context.Context, argv []string, set *redirect.DescriptorSet) (*Result, error) {
	if set == nil {
		set = &redirect.DescriptorSet{}
	}
	defer set.Close()

	if len(argv) == 0 {
		r.report(ErrNoCommand)
		return nil, ErrNoCommand
	}

	streams := r.Streams.WithDefaults()
	stdoutDests, stderrDests := destinations(set, streams)

	var p plumbing
	defer p.closeAll()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr

	if set.Stdin != nil {
		w, err := p.input(cmd)
		if err != nil {
			r.report(err)
			return nil, err
		}
		p.feed = func() error { return feed(w, set.Stdin) }
	}
	if len(set.Stdout) > 0 {
		if err := p.output(&cmd.Stdout, "stdout", stdoutDests); err != nil {
			r.report(err)
			return nil, err
		}
	}
	if len(set.Stderr) > 0 {
		if err := p.output(&cmd.Stderr, "stderr", stderrDests); err != nil {
			r.report(err)
			return nil, err
		}
	}

	child := &Child{Argv: argv, ExitCode: -1}
	res := &Result{Children: []*Child{child}}

	if err := cmd.Start(); err != nil {
		child.Err = startError(argv[0], err)
		r.report(child.Err)
		return res, child.Err
	}
	child.Pid = cmd.Process.Pid

	// The child holds its own copies now.
	p.closeChildEnds()

	var g errgroup.Group
	if p.feed != nil {
		g.Go(p.feed)
	}
	bufSize := r.bufferSize()
	for _, rl := range p.relays {
		g.Go(func() error { return rl.run(bufSize) })
	}
	relayErr := g.Wait()

	set.Close()

	waitErr := cmd.Wait()
	child.ExitCode = cmd.ProcessState.ExitCode()

	var exitErr *exec.ExitError
	switch {
	case relayErr != nil:
		res.Err = relayErr
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		res.Err = fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
	}

	if res.Err != nil {
		r.report(res.Err)
	}
	return res, res.Err
}

// destinations returns where each stream's relay writes. A stream that
// follows the other gets the other's destinations too. A stream left with
// no files writes to the inherited stream.
func destinations(set *redirect.DescriptorSet, streams redirect.Streams) (stdout, stderr []io.Writer) {
	ownStdout := set.StdoutFiles()
	ownStderr := set.StderrFiles()

	effectiveStdout := ownStdout
	if len(effectiveStdout) == 0 {
		effectiveStdout = []*os.File{streams.Stdout}
	}
	effectiveStderr := ownStderr
	if len(effectiveStderr) == 0 {
		effectiveStderr = []*os.File{streams.Stderr}
	}

	stdoutFiles := ownStdout
	if set.StdoutToStderr {
		stdoutFiles = append(append([]*os.File{}, ownStdout...), effectiveStderr...)
	}
	stderrFiles := ownStderr
	if set.StderrToStdout {
		stderrFiles = append(append([]*os.File{}, ownStderr...), effectiveStdout...)
	}

	if len(stdoutFiles) == 0 {
		stdoutFiles = []*os.File{streams.Stdout}
	}
	if len(stderrFiles) == 0 {
		stderrFiles = []*os.File{streams.Stderr}
	}

	return uniqueWriters(stdoutFiles), uniqueWriters(stderrFiles)
}

func uniqueWriters(files []*os.File) []io.Writer {
	seen := make(map[*os.File]bool)
	var out []io.Writer
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// plumbing tracks the pipes created for one command.
type plumbing struct {
	// childEnds are handed to the child and closed in the parent after
	// start.
	childEnds []*os.File
	// parentEnds are owned by the relays once started.
	parentEnds []*os.File

	relays []*relay
	feed   func() error
}

func (p *plumbing) pipe(stream string) (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	if err != nil {
		return nil, nil, redirect.NewSetupError("pipe", stream, err)
	}
	return r, w, nil
}

func (p *plumbing) input(cmd *exec.Cmd) (*os.File, error) {
	r, w, err := p.pipe("stdin")
	if err != nil {
		return nil, err
	}
	p.childEnds = append(p.childEnds, r)
	p.parentEnds = append(p.parentEnds, w)
	cmd.Stdin = r
	return w, nil
}

func (p *plumbing) output(target *io.Writer, stream string, dests []io.Writer) error {
	r, w, err := p.pipe(stream)
	if err != nil {
		return err
	}
	p.childEnds = append(p.childEnds, w)
	p.parentEnds = append(p.parentEnds, r)
	*target = w
	p.relays = append(p.relays, &relay{stream: stream, src: r, dests: dests})
	return nil
}

func (p *plumbing) closeChildEnds() {
	for _, f := range p.childEnds {
		f.Close()
	}
	p.childEnds = nil
}

// closeAll releases anything still open. os.File.Close on an already
// closed file only returns an error.
func (p *plumbing) closeAll() {
	p.closeChildEnds()
	for _, f := range p.parentEnds {
		f.Close()
	}
	p.parentEnds = nil
}

// relay copies one child stream to its destinations.
type relay struct {
	stream string
	src    *os.File
	dests  []io.Writer
}

// run reads until EOF. A failed write stops the relay and closes the read
// end so the child sees a broken pipe.
func (rl *relay) run(bufSize int) error {
	defer rl.src.Close()

	buf := make([]byte, bufSize)
	for {
		n, err := rl.src.Read(buf)
		if n > 0 {
			for _, dest := range rl.dests {
				if _, werr := dest.Write(buf[:n]); werr != nil {
					return fmt.Errorf("relaying %s: %w", rl.stream, werr)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", rl.stream, err)
		}
	}
}

// feed copies src into the child's stdin and closes it. A child that exits
// without reading everything is not an error.
func feed(w *os.File, src io.Reader) error {
	defer w.Close()

	if _, err := io.Copy(w, src); err != nil && !errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("feeding stdin: %w", err)
	}
	return nil
}
