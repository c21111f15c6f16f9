package redirect

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/josephlewis42/lxfsh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFdCount(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("can't list open descriptors: %v", err)
	}
	return len(entries)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := func(name string) string { return filepath.Join(dir, name) }

	require.NoError(t, os.WriteFile(path("existing.txt"), []byte("old\n"), 0600))
	require.NoError(t, os.WriteFile(path("in.txt"), []byte("input\n"), 0600))

	cases := map[string]struct {
		line           string
		stdoutSlots    int
		stderrSlots    int
		stderrToStdout bool
		stdoutToStderr bool
		hasStdin       bool
	}{
		"no redirections": {
			line: "ls -l",
		},
		"one overwrite": {
			line:        "ls > " + path("a.txt"),
			stdoutSlots: 1,
		},
		"fan out": {
			line:        "ls > " + path("a.txt") + " >> " + path("existing.txt") + " > " + path("c.txt"),
			stdoutSlots: 3,
		},
		"stderr follows stdout": {
			line:           "make 2>&1",
			stderrSlots:    1,
			stderrToStdout: true,
		},
		"stdout follows stderr": {
			line:           "make >&2 2> " + path("err.txt"),
			stdoutSlots:    1,
			stderrSlots:    1,
			stdoutToStderr: true,
		},
		"bare operator duplicates": {
			line:        "ls >",
			stdoutSlots: 1,
		},
		"input only": {
			line:     "sort < " + path("in.txt"),
			hasStdin: true,
		},
		"extra inputs ignored": {
			line:     "sort < " + path("in.txt") + " < " + path("missing.txt"),
			hasStdin: true,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			r := shell.ExtractRedirections(tc.line)

			set, err := Resolve(r, StdStreams(), Options{})
			require.NoError(t, err)
			defer set.Close()

			assert.Len(t, set.Stdout, tc.stdoutSlots)
			assert.Len(t, set.Stderr, tc.stderrSlots)
			assert.Equal(t, r.OutputCount(), set.Slots())
			assert.Equal(t, tc.stderrToStdout, set.StderrToStdout)
			assert.Equal(t, tc.stdoutToStderr, set.StdoutToStderr)
			assert.Equal(t, tc.hasStdin, set.Stdin != nil)
		})
	}
}

func TestResolve_overwriteTruncates(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(target, []byte("previous contents"), 0644))

	set, err := Resolve(shell.ExtractRedirections("echo > "+target), Streams{}, Options{})
	require.NoError(t, err)
	require.NoError(t, set.Close())

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestResolve_createMode(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")

	set, err := Resolve(shell.ExtractRedirections("echo > "+target), Streams{}, Options{})
	require.NoError(t, err)
	require.NoError(t, set.Close())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, DefaultFileMode, info.Mode().Perm())
}

func TestResolve_appendCreates(t *testing.T) {
	cases := map[string]struct {
		appendCreates bool
		expectErr     bool
	}{
		"missing target fails": {appendCreates: false, expectErr: true},
		"missing target made":  {appendCreates: true, expectErr: false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "log.txt")
			r := shell.ExtractRedirections("echo >> " + target)

			set, err := Resolve(r, Streams{}, Options{AppendCreates: tc.appendCreates})
			if tc.expectErr {
				assert.Nil(t, set)

				var setupErr *SetupError
				require.True(t, errors.As(err, &setupErr))
				assert.Equal(t, "open", setupErr.Op)
				assert.Equal(t, target, setupErr.Target)
				assert.True(t, errors.Is(err, syscall.ENOENT))
				return
			}

			require.NoError(t, err)
			require.NoError(t, set.Close())
			assert.FileExists(t, target)
		})
	}
}

func TestResolve_failureClosesOpened(t *testing.T) {
	dir := t.TempDir()
	before := openFdCount(t)

	line := "cmd > " + filepath.Join(dir, "a.txt") +
		" 2> " + filepath.Join(dir, "b.txt") +
		" > " + filepath.Join(dir, "no", "such", "dir.txt")

	set, err := Resolve(shell.ExtractRedirections(line), Streams{}, Options{})
	assert.Nil(t, set)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dir.txt")

	assert.Equal(t, before, openFdCount(t))
}

func TestResolve_missingInput(t *testing.T) {
	target := filepath.Join(t.TempDir(), "absent.txt")

	_, err := Resolve(shell.ExtractRedirections("sort < "+target), Streams{}, Options{})

	var setupErr *SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "open "+target+": no such file or directory", setupErr.Error())
}

func TestDescriptorSet_Close(t *testing.T) {
	dir := t.TempDir()
	before := openFdCount(t)

	line := "cmd > " + filepath.Join(dir, "a.txt") + " >> " + filepath.Join(dir, "a.txt") + " 2>&1 >"
	set, err := Resolve(shell.ExtractRedirections(line), Streams{}, Options{AppendCreates: true})
	require.NoError(t, err)

	assert.Len(t, set.StdoutFiles(), 3)
	assert.Empty(t, set.StderrFiles())
	assert.Greater(t, openFdCount(t), before)

	assert.NoError(t, set.Close())
	assert.NoError(t, set.Close())
	assert.Equal(t, before, openFdCount(t))
}

func TestDup(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	dup, err := Dup(w)
	require.NoError(t, err)
	assert.NotEqual(t, w.Fd(), dup.Fd())

	require.NoError(t, w.Close())
	_, err = dup.Write([]byte("still open"))
	require.NoError(t, err)
	require.NoError(t, dup.Close())

	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "still open", string(buf[:n]))
}
