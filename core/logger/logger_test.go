package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2022, time.March, 4, 5, 6, 7, 8000, time.UTC)
	}
}

func TestJsonLinesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewJsonLinesLogRecorder(&buf)
	l.now = fixedClock()
	session := l.NewSession()

	require.NoError(t, session.RunCommand("echo hi | wc -c", []string{"echo", "hi"}, 2))
	require.NoError(t, session.CommandResult("echo hi | wc -c", []int{0, 1}, errors.New("write failed")))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	var entries []*LogEntry
	require.NoError(t, ReadJSONLinesLog(&buf, func(le *LogEntry) {
		entries = append(entries, le)
	}))
	require.Len(t, entries, 2)

	run := entries[0]
	assert.Equal(t, TypeRunCommand, run.Type)
	assert.Equal(t, session.SessionID(), run.SessionID)
	assert.True(t, fixedClock()().Equal(run.Timestamp.AsTime()))
	assert.Equal(t, "echo hi | wc -c", run.GetString("line"))
	assert.Equal(t, []string{"echo", "hi"}, run.GetStrings("argv"))
	assert.Equal(t, float64(2), run.GetNumber("stages"))

	result := entries[1]
	assert.Equal(t, TypeCommandResult, result.Type)
	assert.Equal(t, []float64{0, 1}, result.GetNumbers("exit_codes"))
	assert.Equal(t, "write failed", result.GetString("error"))
	assert.Empty(t, result.GetString("missing"))
}

func TestReadJSONLinesLog_invalid(t *testing.T) {
	err := ReadJSONLinesLog(strings.NewReader(`{"type": "run_command"} not json`), func(*LogEntry) {})
	assert.Error(t, err)
}

func TestSessionLogger_nil(t *testing.T) {
	var session *SessionLogger
	assert.NoError(t, session.SessionStart("/", false))
	assert.Empty(t, session.SessionID())
}

func TestDiscard(t *testing.T) {
	session := Discard().NewSession()
	assert.NoError(t, session.ExtensionHandled("cd", "cd /"))
	assert.NotEmpty(t, session.SessionID())
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	l := NewJsonLinesLogRecorder(&buf)
	l.now = fixedClock()
	session := l.NewSession()

	setupErr := errors.New("no such file or directory")

	require.NoError(t, session.SessionStart("/home/user", true))
	require.NoError(t, session.RunCommand("echo hi | wc -c", []string{"echo", "hi"}, 2))
	require.NoError(t, session.CommandResult("echo hi | wc -c", []int{0, 0}, nil))
	require.NoError(t, session.RunCommand("ls > /nope/out", []string{"ls"}, 1))
	require.NoError(t, session.SetupError("open", "/nope/out", setupErr))
	require.NoError(t, session.CommandResult("ls > /nope/out", nil, setupErr))
	require.NoError(t, session.ExtensionHandled("cd", "cd /tmp"))
	require.NoError(t, session.RunCommand("grep x", []string{"grep", "x"}, 1))
	require.NoError(t, session.CommandResult("grep x", []int{1}, nil))
	require.NoError(t, session.Record("mystery", nil))

	var report Report
	require.NoError(t, ReadJSONLinesLog(&buf, report.Update))

	assert.Equal(t, 10, report.LogEntries)
	assert.Equal(t, 2, report.CommandResult.ExitCodes.Get("0"))

	out, err := yaml.Marshal(report)
	require.NoError(t, err)

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
	g.Assert(t, "report", out)
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("op", "target")
	ctr.Increment("open", "b")
	ctr.Increment("open", "a")
	ctr.Increment("open", "b")

	out, err := ctr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"op": "open", "target": "b"}},
		{"count": 1, "event": {"op": "open", "target": "a"}}
	]`, string(out))

	assert.Panics(t, func() { ctr.Increment("open") })
}
