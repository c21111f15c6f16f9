package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`
	Sessions       int        `json:"sessions"`

	RunCommand       RunCommandReport       `json:"run_command_report"`
	CommandResult    CommandResultReport    `json:"command_result_report"`
	SetupError       SetupErrorReport       `json:"setup_error_report"`
	ExtensionHandled ExtensionHandledReport `json:"extension_report"`
}

// Update adds a log entry to the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Type {
	case TypeSessionStart:
		r.Sessions++
	case TypeRunCommand:
		r.RunCommand.update(le)
	case TypeCommandResult:
		r.CommandResult.update(le)
	case TypeSetupError:
		r.SetupError.update(le)
	case TypeExtensionHandled:
		r.ExtensionHandled.update(le)
	default:
		r.InvalidEntries.Increment(le.Type)
	}
}

type RunCommandReport struct {
	// Number of lines run.
	Count int `json:"count"`
	// Lines that were pipelines.
	Pipelines int `json:"pipelines"`
	// Name of the program, first stage only for pipelines.
	ProgramNames StrCounter `json:"program_names"`
}

func (r *RunCommandReport) update(le *LogEntry) {
	r.Count++
	if le.GetNumber("stages") > 1 {
		r.Pipelines++
	}
	if argv := le.GetStrings("argv"); len(argv) > 0 {
		r.ProgramNames.Increment(argv[0])
	}
}

type CommandResultReport struct {
	// Exit codes of every child.
	ExitCodes StrCounter `json:"exit_codes"`
	// Lines that ended with an error.
	Failures int `json:"failures"`
}

func (r *CommandResultReport) update(le *LogEntry) {
	for _, code := range le.GetNumbers("exit_codes") {
		r.ExitCodes.Increment(strconv.Itoa(int(code)))
	}
	if le.GetString("error") != "" {
		r.Failures++
	}
}

type SetupErrorReport struct {
	Errors *PathCounter `json:"errors"`
}

func (r *SetupErrorReport) update(le *LogEntry) {
	if r.Errors == nil {
		r.Errors = NewPathCounter("op", "target")
	}
	r.Errors.Increment(le.GetString("op"), le.GetString("target"))
}

type ExtensionHandledReport struct {
	Extensions StrCounter `json:"extensions"`
}

func (r *ExtensionHandledReport) update(le *LogEntry) {
	r.Extensions.Increment(le.GetString("extension"))
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for a key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements json.Marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}

// NewPathCounter creates a counter keyed on the named columns.
func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given tuple.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic(fmt.Sprintf("wrong number of columns to add, got %d want %d", len(toAdd), len(ctr.cols)))
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implements json.Marshaler. Rows are ordered by descending
// count.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	return strings.Join(vals, "\x00")
}

func fromKey(key string) []string {
	return strings.Split(key, "\x00")
}
