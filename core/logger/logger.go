package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures the events of shell sessions.
type Logger struct {
	Record LogRecorder

	// now is replaced in tests.
	now func() time.Time
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// Discard creates a Logger that drops every event.
func Discard() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) timestamp() *timestamppb.Timestamp {
	if l.now != nil {
		return timestamppb.New(l.now())
	}
	return timestamppb.Now()
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// SessionLogger logs messages with a shared session ID. A nil SessionLogger
// records nothing.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID is the identifier attached to every event.
func (l *SessionLogger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Record writes an event of the given type. Field values must be
// convertible by structpb.NewValue.
func (l *SessionLogger) Record(eventType string, fields map[string]interface{}) error {
	if l == nil || l.Logger == nil || l.Logger.Record == nil {
		return nil
	}

	event, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	return l.Logger.Record(&LogEntry{
		Timestamp: l.timestamp(),
		SessionID: l.sessionID,
		Type:      eventType,
		Event:     event,
	})
}

// SessionStart records the start of an interactive or one-shot session.
func (l *SessionLogger) SessionStart(dir string, interactive bool) error {
	return l.Record(TypeSessionStart, map[string]interface{}{
		"dir":         dir,
		"interactive": interactive,
	})
}

// RunCommand records a line about to be executed.
func (l *SessionLogger) RunCommand(line string, argv []string, stages int) error {
	return l.Record(TypeRunCommand, map[string]interface{}{
		"line":   line,
		"argv":   stringList(argv),
		"stages": stages,
	})
}

// CommandResult records how the children of a line exited.
func (l *SessionLogger) CommandResult(line string, exitCodes []int, runErr error) error {
	codes := make([]interface{}, len(exitCodes))
	for i, c := range exitCodes {
		codes[i] = c
	}

	fields := map[string]interface{}{
		"line":       line,
		"exit_codes": codes,
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	return l.Record(TypeCommandResult, fields)
}

// SetupError records a failure to prepare a command.
func (l *SessionLogger) SetupError(op, target string, err error) error {
	return l.Record(TypeSetupError, map[string]interface{}{
		"op":     op,
		"target": target,
		"error":  err.Error(),
	})
}

// ExtensionHandled records a line consumed by an extension.
func (l *SessionLogger) ExtensionHandled(name, line string) error {
	return l.Record(TypeExtensionHandled, map[string]interface{}{
		"extension": name,
		"line":      line,
	})
}

func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
