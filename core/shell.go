// Package core ties the line editor, the extensions, the history store and
// the runner into an interactive shell.
package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/user"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/lxfsh/core/config"
	"github.com/josephlewis42/lxfsh/core/extension"
	"github.com/josephlewis42/lxfsh/core/history"
	"github.com/josephlewis42/lxfsh/core/logger"
	"github.com/josephlewis42/lxfsh/core/redirect"
	"github.com/josephlewis42/lxfsh/core/runner"
	"github.com/mattn/go-isatty"
)

const (
	// EnvUser names the user when the account can't be looked up.
	EnvUser = "USER"

	DefaultPrompt = "lxfsh$ "

	// exitCommand ends the shell.
	exitCommand = "exit"
)

// Options configure a Shell beyond its configuration file.
type Options struct {
	// Streams the shell and its children use, unset fields use os.Std*.
	Streams redirect.Streams
	// NoHistory disables the history store even if it's configured.
	NoHistory bool
	// Log receives session events, nil discards them.
	Log *logger.Logger
}

// Shell reads command lines and runs them. Create one with NewShell.
type Shell struct {
	Session *Session
	Runner  *runner.Runner
	Log     *logger.SessionLogger
	// Prompt is the prompt template.
	Prompt string

	streams     redirect.Streams
	interactive bool
	preload     int
}

// NewShell opens the history store, loads the configured extensions and
// prepares the runner.
func NewShell(configuration *config.Configuration, opts Options) (*Shell, error) {
	streams := opts.Streams.WithDefaults()
	interactive := isTerminal(streams.Stdin) && isTerminal(streams.Stdout)

	var store *history.Store
	if configuration.History.Enabled && !opts.NoHistory {
		var err error
		store, err = history.Open(configuration.HistoryPath())
		if err != nil {
			return nil, err
		}
	}

	env := newEnv(streams)
	env.Color = configuration.ColorEnabled(isTerminal(streams.Stdout))
	if store != nil {
		env.History = store
	}

	registry := extension.NewRegistry(env)
	session := NewSession(registry, store)
	if err := registry.Load(configuration.Extensions...); err != nil {
		session.Close()
		return nil, err
	}
	if err := registry.Init(); err != nil {
		session.Close()
		return nil, err
	}

	appLog := opts.Log
	if appLog == nil {
		appLog = logger.Discard()
	}
	sessionLog := appLog.NewSession()

	prompt := configuration.Prompt.Current
	if prompt == "" {
		prompt = DefaultPrompt
	}

	shell := &Shell{
		Session: session,
		Runner: &runner.Runner{
			Streams: streams,
			Redirect: redirect.Options{
				AppendCreates: configuration.Redirect.AppendCreates,
				FileMode:      configuration.Redirect.Mode(),
			},
			BufferSize: configuration.Relay.BufferSize,
			Log:        sessionLog,
		},
		Log:         sessionLog,
		Prompt:      prompt,
		streams:     streams,
		interactive: interactive,
		preload:     configuration.History.Preload,
	}

	if wd, err := os.Getwd(); err == nil {
		if err := sessionLog.SessionStart(wd, interactive); err != nil {
			log.Printf("recording session start: %v", err)
		}
	}

	return shell, nil
}

// newEnv fills in the user and host the way a login would.
func newEnv(streams redirect.Streams) *extension.Env {
	env := &extension.Env{
		Stdout: streams.Stdout,
		Stderr: streams.Stderr,
		User:   os.Getenv(EnvUser),
		Root:   os.Geteuid() == 0,
	}

	if u, err := user.Current(); err == nil {
		env.User = u.Username
	}
	if home, err := os.UserHomeDir(); err == nil {
		env.Home = home
	}
	if host, err := os.Hostname(); err == nil {
		env.Host = host
	}
	return env
}

func isTerminal(f *os.File) bool {
	return f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// RenderPrompt renders the prompt template through the extensions.
func (s *Shell) RenderPrompt() string {
	return s.Session.Registry.Prompt(s.Prompt)
}

// Run reads lines until end of input or exit. A terminal gets the line
// editor and a prompt, anything else is read as a script.
func (s *Shell) Run(ctx context.Context) error {
	if !s.interactive {
		return s.runScript(ctx, &scriptReader{r: s.streams.Stdin})
	}

	rl, err := s.newReadline()
	if err != nil {
		return err
	}
	defer rl.Close()

	s.preloadHistory(ctx, rl)

	for ctx.Err() == nil {
		rl.SetPrompt(s.RenderPrompt())
		line, err := rl.Readline()

		switch {
		case err == io.EOF:
			return nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue

		case err != nil:
			return fmt.Errorf("reading line: %w", err)
		}

		if s.runLine(ctx, line) {
			return nil
		}
	}
	return ctx.Err()
}

func (s *Shell) runScript(ctx context.Context, script *scriptReader) error {
	for ctx.Err() == nil {
		line, err := script.ReadLine()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return fmt.Errorf("reading line: %w", err)
		}

		if s.runLine(ctx, line) {
			return nil
		}
	}
	return ctx.Err()
}

// runLine runs a line read by Run and reports whether it was exit.
func (s *Shell) runLine(ctx context.Context, line string) (exit bool) {
	switch strings.TrimSpace(line) {
	case exitCommand:
		return true
	case "":
		return false
	}

	s.RunCommand(ctx, line)

	if err := s.Session.Reset(); err != nil {
		fmt.Fprintf(s.streams.Stderr, "lxfsh: %v\n", err)
	}
	return false
}

// scriptReader reads lines one byte at a time, so nothing after the
// newline is consumed and children inherit the rest of the input.
type scriptReader struct {
	r io.Reader
}

// ReadLine returns the next line without its newline. A final line with
// no newline is returned before io.EOF.
func (sr *scriptReader) ReadLine() (string, error) {
	var (
		line []byte
		buf  [1]byte
	)
	for {
		n, err := sr.r.Read(buf[:])
		if n == 1 {
			if buf[0] == '\n' {
				return string(line), nil
			}
			line = append(line, buf[0])
			continue
		}

		switch {
		case err == io.EOF && len(line) > 0:
			return string(line), nil
		case err != nil:
			return "", err
		}
	}
}

func (s *Shell) newReadline() (*readline.Instance, error) {
	cfg := &readline.Config{
		Stdin:  readline.NewCancelableStdin(s.streams.Stdin),
		Stdout: s.streams.Stdout,
		Stderr: s.streams.Stderr,

		FuncIsTerminal: func() bool {
			return s.interactive
		},

		Listener: &recallListener{session: s.Session},
	}
	if s.preload > 0 {
		cfg.HistoryLimit = s.preload
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	return readline.NewEx(cfg)
}

// preloadHistory loads stored commands, oldest first, so the arrow keys
// walk them.
func (s *Shell) preloadHistory(ctx context.Context, rl *readline.Instance) {
	if s.Session.History == nil || s.preload <= 0 {
		return
	}

	entries, err := s.Session.History.List(ctx, s.preload, "")
	if err != nil {
		log.Printf("loading history: %v", err)
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		if err := rl.SaveHistory(entries[i].Command); err != nil {
			log.Printf("loading history: %v", err)
			return
		}
	}
}

// RunCommand runs one line: it's stored in history, offered to the
// extensions and, if none takes it, handed to the runner. The returned
// status is 0 on success.
func (s *Shell) RunCommand(ctx context.Context, line string) int {
	if strings.TrimSpace(line) == "" {
		return 0
	}

	if err := s.Session.Record(ctx, line); err != nil {
		fmt.Fprintf(s.streams.Stderr, "lxfsh: history: %v\n", err)
	}

	name, handled, err := s.Session.Registry.Execute(ctx, line)
	if handled {
		if logErr := s.Log.ExtensionHandled(name, line); logErr != nil {
			log.Printf("recording extension: %v", logErr)
		}
		if err != nil {
			fmt.Fprintf(s.streams.Stderr, "%s: %v\n", name, err)
			return 1
		}
		return 0
	}

	// The runner reports its own failures.
	result, err := s.Runner.Run(ctx, line)
	return status(result, err)
}

// status is the exit code of the last stage.
func status(result *runner.Result, err error) int {
	codes := result.ExitCodes()
	if len(codes) == 0 {
		if err != nil {
			return 1
		}
		return 0
	}

	last := codes[len(codes)-1]
	switch {
	case last < 0:
		return 1
	case last == 0 && err != nil:
		return 1
	}
	return last
}

// Close releases the session.
func (s *Shell) Close() error {
	return s.Session.Close()
}

// recallListener steps back through the directory's history on Ctrl-G.
type recallListener struct {
	session *Session
}

func (l *recallListener) OnChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != readline.CharBell {
		return line, pos, false
	}

	previous, ok := l.session.Previous(context.Background())
	if !ok {
		return line, pos, false
	}
	recalled := []rune(previous)
	return recalled, len(recalled), true
}
