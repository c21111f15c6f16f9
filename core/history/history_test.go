package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Each entry gets a distinct, increasing timestamp.
	clock := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func addAll(t *testing.T, store *Store, entries ...[2]string) {
	t.Helper()

	for _, e := range entries {
		require.NoError(t, store.Add(context.Background(), e[0], e[1]))
	}
}

func TestStore_Nth(t *testing.T) {
	store := openTestStore(t)
	addAll(t, store,
		[2]string{"ls", "/home"},
		[2]string{"make", "/src"},
		[2]string{"ls", "/src"},
	)

	cases := map[string]struct {
		offset   int
		expected Entry
		err      error
	}{
		"newest":       {offset: 0, expected: Entry{Command: "ls", Location: "/src"}},
		"middle":       {offset: 1, expected: Entry{Command: "make", Location: "/src"}},
		"oldest":       {offset: 2, expected: Entry{Command: "ls", Location: "/home"}},
		"past the end": {offset: 3, err: ErrNoEntry},
		"negative":     {offset: -1, err: ErrNoEntry},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := store.Nth(context.Background(), tc.offset)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected.Command, actual.Command)
			assert.Equal(t, tc.expected.Location, actual.Location)
			assert.False(t, actual.CreatedAt.IsZero())
		})
	}
}

func TestStore_NthIn(t *testing.T) {
	store := openTestStore(t)
	addAll(t, store,
		[2]string{"ls", "/home"},
		[2]string{"make", "/src"},
		[2]string{"git status", "/home"},
	)

	entry, err := store.NthIn(context.Background(), 0, "/home")
	require.NoError(t, err)
	assert.Equal(t, "git status", entry.Command)

	entry, err = store.NthIn(context.Background(), 1, "/home")
	require.NoError(t, err)
	assert.Equal(t, "ls", entry.Command)

	_, err = store.NthIn(context.Background(), 2, "/home")
	assert.ErrorIs(t, err, ErrNoEntry)

	_, err = store.NthIn(context.Background(), 0, "/unknown")
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestStore_List(t *testing.T) {
	store := openTestStore(t)
	addAll(t, store,
		[2]string{"one", "/a"},
		[2]string{"two", "/b"},
		[2]string{"three", "/a"},
		[2]string{"one", "/a"},
	)

	commands := func(entries []Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Command)
		}
		return out
	}

	all, err := store.List(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three", "two", "one"}, commands(all))

	limited, err := store.List(context.Background(), 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, commands(limited))

	inA, err := store.List(context.Background(), 0, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three", "one"}, commands(inA))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestStore_sharedRows(t *testing.T) {
	store := openTestStore(t)
	addAll(t, store,
		[2]string{"ls", "/a"},
		[2]string{"ls", "/a"},
		[2]string{"ls", "/b"},
	)

	var commands, locations int
	require.NoError(t, store.sqlDB.QueryRow("SELECT COUNT(*) FROM command").Scan(&commands))
	require.NoError(t, store.sqlDB.QueryRow("SELECT COUNT(*) FROM location").Scan(&locations))
	assert.Equal(t, 1, commands)
	assert.Equal(t, 2, locations)
}

func TestOpen_reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), "echo persisted", "/"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entry, err := store.Nth(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "echo persisted", entry.Command)
}

func TestOpen_invalid(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}

func TestUpMigration(t *testing.T) {
	cases := map[string]struct {
		input    string
		expected string
	}{
		"no markers": {"CREATE TABLE a (id INTEGER);", "CREATE TABLE a (id INTEGER);"},
		"up only":    {"-- +migrate Up\nCREATE TABLE a;", "\nCREATE TABLE a;"},
		"up and down": {
			"-- +migrate Up\nCREATE TABLE a;\n-- +migrate Down\nDROP TABLE a;",
			"\nCREATE TABLE a;\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, upMigration(tc.input))
		})
	}
}
