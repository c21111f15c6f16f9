package core

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/josephlewis42/lxfsh/core/extension"
	"github.com/josephlewis42/lxfsh/core/history"
)

// Session is the state that lives across the lines of one shell.
type Session struct {
	Registry *extension.Registry
	// History is nil when history is disabled.
	History *history.Store

	mu     sync.Mutex
	cursor int
}

// NewSession creates a session, store may be nil.
func NewSession(registry *extension.Registry, store *history.Store) *Session {
	return &Session{
		Registry: registry,
		History:  store,
	}
}

// Record stores line in history under the working directory.
func (s *Session) Record(ctx context.Context, line string) error {
	if s.History == nil {
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	return s.History.Add(ctx, line, wd)
}

// Previous steps the cursor one command further back in the history of the
// working directory. ok is false once the history is exhausted.
func (s *Session) Previous(ctx context.Context) (line string, ok bool) {
	if s.History == nil {
		return "", false
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.History.NthIn(ctx, s.cursor, wd)
	if err != nil {
		return "", false
	}
	s.cursor++
	return entry.Command, true
}

// Reset rewinds the history cursor and re-initializes the extensions.
func (s *Session) Reset() error {
	s.mu.Lock()
	s.cursor = 0
	s.mu.Unlock()

	return s.Registry.Init()
}

// Close releases the extensions and the history store.
func (s *Session) Close() error {
	toClose := listCloser{s.Registry}
	if s.History != nil {
		toClose = append(toClose, s.History)
	}
	return toClose.Close()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var errs []error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
