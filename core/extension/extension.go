// Package extension holds the statically registered shell extensions.
//
// An extension may handle whole command lines before they reach the
// runner, render prompt tokens, or both. Capabilities are discovered by
// interface assertion.
package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/lxfsh/core/history"
)

// Capability names reported by Registry.Capabilities.
const (
	CapabilityCommand = "command"
	CapabilityPrompt  = "prompt"
)

// HistoryLister reads stored history, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int, dir string) ([]history.Entry, error)
}

// Env is the part of the shell extensions can see.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// Home is the user's home directory.
	Home string
	// User is the login name.
	User string
	// Host is the machine's host name.
	Host string
	// Root is set when the shell runs as uid 0.
	Root bool

	// Color enables escape sequences in the prompt.
	Color bool

	// History is nil when history is disabled.
	History HistoryLister
}

// Getwd returns the shell's working directory.
func (e *Env) Getwd() (string, error) {
	return os.Getwd()
}

// Extension is implemented by everything that can be registered.
type Extension interface {
	Name() string
	Init(env *Env) error
	Close() error
}

// CommandHandler is implemented by extensions that handle command lines.
type CommandHandler interface {
	// Execute returns handled if the line was consumed. err is reported
	// to the user as "name: err".
	Execute(ctx context.Context, env *Env, line string) (handled bool, err error)
}

// PromptProvider is implemented by extensions that render prompt tokens.
type PromptProvider interface {
	// Fragment renders a token such as `\w` or `\f{red}`, ok is false if
	// the token isn't recognized.
	Fragment(token string) (frag Fragment, ok bool)
}

// Info describes a registered extension.
type Info struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Registry holds the loaded extensions in registration order.
type Registry struct {
	env        *Env
	extensions []Extension
}

// NewRegistry creates an empty registry whose extensions see env.
func NewRegistry(env *Env) *Registry {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	return &Registry{env: env}
}

// Env returns the environment passed to extensions.
func (r *Registry) Env() *Env {
	return r.env
}

// Register adds ext. Names must be unique.
func (r *Registry) Register(ext Extension) error {
	for _, existing := range r.extensions {
		if existing.Name() == ext.Name() {
			return fmt.Errorf("extension %q already registered", ext.Name())
		}
	}
	r.extensions = append(r.extensions, ext)
	return nil
}

// Init initializes every extension in registration order.
func (r *Registry) Init() error {
	for _, ext := range r.extensions {
		if err := ext.Init(r.env); err != nil {
			return fmt.Errorf("init %s: %w", ext.Name(), err)
		}
	}
	return nil
}

// Capabilities lists the registered extensions and what they provide.
func (r *Registry) Capabilities() []Info {
	var out []Info
	for _, ext := range r.extensions {
		info := Info{Name: ext.Name(), Capabilities: []string{}}
		if _, ok := ext.(CommandHandler); ok {
			info.Capabilities = append(info.Capabilities, CapabilityCommand)
		}
		if _, ok := ext.(PromptProvider); ok {
			info.Capabilities = append(info.Capabilities, CapabilityPrompt)
		}
		out = append(out, info)
	}
	return out
}

// Execute offers line to each command handler in order. The first one to
// handle it wins and its name is returned.
func (r *Registry) Execute(ctx context.Context, line string) (name string, handled bool, err error) {
	for _, ext := range r.extensions {
		handler, ok := ext.(CommandHandler)
		if !ok {
			continue
		}

		handled, err := handler.Execute(ctx, r.env, line)
		if handled {
			return ext.Name(), true, err
		}
	}
	return "", false, nil
}

// Fragment asks each prompt provider in order to render token.
func (r *Registry) Fragment(token string) (Fragment, bool) {
	for _, ext := range r.extensions {
		provider, ok := ext.(PromptProvider)
		if !ok {
			continue
		}
		if frag, ok := provider.Fragment(token); ok {
			return frag, true
		}
	}
	return Fragment{}, false
}

// Close closes every extension, in reverse registration order.
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.extensions) - 1; i >= 0; i-- {
		if err := r.extensions[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", r.extensions[i].Name(), err))
		}
	}
	r.extensions = nil
	return errors.Join(errs...)
}
