package extension

import (
	"context"
	"errors"
	"fmt"
)

// History prints stored commands, oldest of the selection first.
type History struct{}

var _ CommandHandler = (*History)(nil)

func (*History) Name() string { return "history" }

func (*History) Init(*Env) error { return nil }

func (*History) Close() error { return nil }

func (h *History) Execute(ctx context.Context, env *Env, line string) (bool, error) {
	args, ok := commandArgs(line, "history")
	if !ok {
		return false, nil
	}

	cmd := &SimpleCommand{
		Use:   "history [-d] [-n COUNT]",
		Short: "Display stored commands with line numbers.",
	}
	count := cmd.Flags().IntLong("count", 'n', 0, "show only the last COUNT commands")
	here := cmd.Flags().BoolLong("directory", 'd', "show only commands run in the working directory")

	return true, cmd.Run(env, args, func(args []string) error {
		if len(args) > 0 {
			return errors.New("too many arguments")
		}
		if env.History == nil {
			return errors.New("history is disabled")
		}
		if *count < 0 {
			return fmt.Errorf("invalid count %d", *count)
		}

		var dir string
		if *here {
			wd, err := env.Getwd()
			if err != nil {
				return err
			}
			dir = wd
		}

		entries, err := env.History.List(ctx, *count, dir)
		if err != nil {
			return err
		}

		for i := len(entries) - 1; i >= 0; i-- {
			fmt.Fprintf(env.Stdout, "% 5d  %s\n", len(entries)-i, entries[i].Command)
		}
		return nil
	})
}
