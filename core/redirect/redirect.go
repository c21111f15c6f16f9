// Package redirect turns the redirection words of a command line into open
// descriptors.
package redirect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/josephlewis42/lxfsh/core/shell"
	"golang.org/x/sys/unix"
)

// DefaultFileMode is used when creating overwrite targets.
const DefaultFileMode os.FileMode = 0600

// Streams are the standard streams a command is started with. A zero
// value field means the matching os.Std* file.
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// StdStreams returns the process's own standard streams.
func StdStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// WithDefaults fills unset streams with the process's standard streams.
func (s Streams) WithDefaults() Streams {
	if s.Stdin == nil {
		s.Stdin = os.Stdin
	}
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
	return s
}

// Options controls how targets are opened.
type Options struct {
	// AppendCreates adds O_CREATE to append targets. Without it appending to
	// a missing file fails.
	AppendCreates bool
	// FileMode is the permission for newly created files, DefaultFileMode if
	// zero.
	FileMode os.FileMode
}

func (o Options) mode() os.FileMode {
	if o.FileMode == 0 {
		return DefaultFileMode
	}
	return o.FileMode
}

// SetupError is a failure to acquire a resource before a command starts.
type SetupError struct {
	// Op is the failing operation: open, dup, pipe or start.
	Op string
	// Target is the path, stream or program involved.
	Target string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// NewSetupError creates a SetupError, unwrapping path errors so the target
// is not repeated in the message.
func NewSetupError(op, target string, err error) *SetupError {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &SetupError{Op: op, Target: target, Err: err}
}

// DescriptorSet holds everything opened for one command invocation.
//
// A nil entry in Stdout or Stderr is the slot of a cross-stream alias, it
// has no descriptor of its own.
type DescriptorSet struct {
	Stdout []*os.File
	Stderr []*os.File

	// StderrToStdout is set by 2>&1.
	StderrToStdout bool
	// StdoutToStderr is set by >&2.
	StdoutToStderr bool

	Stdin *os.File

	closed bool
}

// StdoutFiles returns the open stdout destinations, skipping alias slots.
func (d *DescriptorSet) StdoutFiles() []*os.File {
	return nonNil(d.Stdout)
}

// StderrFiles returns the open stderr destinations, skipping alias slots.
func (d *DescriptorSet) StderrFiles() []*os.File {
	return nonNil(d.Stderr)
}

// Slots is the number of output clauses the set was built from.
func (d *DescriptorSet) Slots() int {
	return len(d.Stdout) + len(d.Stderr)
}

// Close closes every descriptor in the set. Calling it again is a no-op.
func (d *DescriptorSet) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	closeAll := func(files []*os.File) {
		for _, f := range files {
			if f == nil {
				continue
			}
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	closeAll(d.Stdout)
	closeAll(d.Stderr)
	if d.Stdin != nil {
		closeAll([]*os.File{d.Stdin})
	}
	return firstErr
}

// Resolve opens the targets named in r.
//
// Overwrite words are opened before append words for each stream. An empty
// word duplicates the stream's current descriptor, a cross-stream marker
// sets the alias flag. Only the first input word is used. On failure every
// descriptor opened so far is closed and a *SetupError is returned.
func Resolve(r shell.Redirections, streams Streams, opts Options) (*DescriptorSet, error) {
	streams = streams.WithDefaults()
	out := &DescriptorSet{}

	fail := func(err error) (*DescriptorSet, error) {
		out.Close()
		return nil, err
	}

	stderr := stream{
		current: streams.Stderr,
		marker:  shell.StdoutMarker,
		alias:   &out.StderrToStdout,
		files:   &out.Stderr,
	}
	if err := stderr.resolve(r.StderrOverwrite, r.StderrAppend, opts); err != nil {
		return fail(err)
	}

	stdout := stream{
		current: streams.Stdout,
		marker:  shell.StderrMarker,
		alias:   &out.StdoutToStderr,
		files:   &out.Stdout,
	}
	if err := stdout.resolve(r.StdoutOverwrite, r.StdoutAppend, opts); err != nil {
		return fail(err)
	}

	if src, ok := r.StdinSource(); ok {
		fd, err := os.Open(src)
		if err != nil {
			return fail(NewSetupError("open", src, err))
		}
		out.Stdin = fd
	}

	return out, nil
}

type stream struct {
	current *os.File
	marker  string
	alias   *bool
	files   *[]*os.File
}

func (s *stream) resolve(overwrite, appendTo []string, opts Options) error {
	for _, word := range overwrite {
		if err := s.add(word, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, opts.mode()); err != nil {
			return err
		}
	}

	appendFlags := os.O_WRONLY | os.O_APPEND
	if opts.AppendCreates {
		appendFlags |= os.O_CREATE
	}
	for _, word := range appendTo {
		if err := s.add(word, appendFlags, opts.mode()); err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) add(word string, flags int, mode os.FileMode) error {
	switch word {
	case "":
		fd, err := Dup(s.current)
		if err != nil {
			return err
		}
		*s.files = append(*s.files, fd)
	case s.marker:
		*s.alias = true
		*s.files = append(*s.files, nil)
	default:
		fd, err := os.OpenFile(word, flags, mode)
		if err != nil {
			return NewSetupError("open", word, err)
		}
		*s.files = append(*s.files, fd)
	}
	return nil
}

// Dup duplicates f's descriptor. The copy is close-on-exec so it never
// leaks into children.
func Dup(f *os.File) (*os.File, error) {
	newFd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, NewSetupError("dup", f.Name(), err)
	}
	return os.NewFile(uintptr(newFd), f.Name()), nil
}

func nonNil(files []*os.File) []*os.File {
	var out []*os.File
	for _, f := range files {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
