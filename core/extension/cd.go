package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const envOldPwd = "OLDPWD"

// Cd changes the shell's working directory.
type Cd struct {
	previous string
}

var _ CommandHandler = (*Cd)(nil)

func (*Cd) Name() string { return "cd" }

func (c *Cd) Init(env *Env) error {
	c.previous = os.Getenv(envOldPwd)
	return nil
}

func (*Cd) Close() error { return nil }

// Execute handles `cd [DIR]`. No DIR means the home directory, "-" the
// previous directory.
func (c *Cd) Execute(ctx context.Context, env *Env, line string) (bool, error) {
	args, ok := commandArgs(line, "cd")
	if !ok {
		return false, nil
	}

	cmd := &SimpleCommand{
		Use:   "cd [DIR]",
		Short: "Change the shell working directory, DIR defaults to HOME and - is the previous directory.",
	}

	return true, cmd.Run(env, args, func(args []string) error {
		var target string
		switch len(args) {
		case 0:
			if env.Home == "" {
				return errors.New("HOME not set")
			}
			target = env.Home
		case 1:
			target = args[0]
		default:
			return errors.New("too many arguments")
		}

		printTarget := false
		if target == "-" {
			if c.previous == "" {
				return errors.New("OLDPWD not set")
			}
			target = c.previous
			printTarget = true
		}

		current, err := env.Getwd()
		if err != nil {
			return err
		}
		if err := os.Chdir(target); err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				return fmt.Errorf("%s: %w", target, pathErr.Err)
			}
			return err
		}

		c.previous = current
		os.Setenv(envOldPwd, current)
		if wd, err := env.Getwd(); err == nil {
			os.Setenv("PWD", wd)
			if printTarget {
				fmt.Fprintln(env.Stdout, filepath.Clean(wd))
			}
		}
		return nil
	})
}
