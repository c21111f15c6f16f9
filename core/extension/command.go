package extension

import (
	"fmt"
	"io"
	"strings"

	"github.com/josephlewis42/lxfsh/core/shell"
	getopt "github.com/pborman/getopt/v2"
)

// SimpleCommand parses the flags of a command implemented by an
// extension. Create a new one for every invocation, flag values are kept
// between runs.
type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses args, args[0] being the command name, and calls callback with
// the positional arguments. Help goes to env.Stdout on request and to
// env.Stderr after a parse error.
func (s *SimpleCommand) Run(env *Env, args []string, callback func(args []string) error) error {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		s.PrintHelp(env.Stderr)
		return err
	}

	if *s.ShowHelp {
		s.PrintHelp(env.Stdout)
		return nil
	}

	return callback(opts.Args())
}

// commandArgs splits line into arguments if its first word is name.
func commandArgs(line, name string) ([]string, bool) {
	args := shell.SplitWhitespace(strings.TrimSpace(line))
	if len(args) == 0 || args[0] != name {
		return nil, false
	}
	return args, true
}
