package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_RecordLookup(t *testing.T) {
	state := t.TempDir()
	j, err := OpenJournal(state, "/src", "/out")
	require.NoError(t, err)

	e := JournalEntry{Src: "/src/a.txt", Dst: "/out/txt/a.txt", Size: 5, MtimeNano: 42}
	require.NoError(t, j.Record(e))

	// Visible before flush.
	got, ok := j.Lookup("/src/a.txt")
	require.True(t, ok)
	assert.Equal(t, e, got)

	require.NoError(t, j.Flush())
	got, ok = j.Lookup("/src/a.txt")
	require.True(t, ok)
	assert.Equal(t, e, got)

	_, ok = j.Lookup("/src/missing.txt")
	assert.False(t, ok)
	require.NoError(t, j.Close())
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	state := t.TempDir()
	j, err := OpenJournal(state, "/src", "/out")
	require.NoError(t, err)
	require.NoError(t, j.Record(JournalEntry{Src: "/src/a.txt", Dst: "/out/txt/a.txt", Size: 1, Hash: "abc"}))
	path := j.Path()
	require.NoError(t, j.Close())
	assert.FileExists(t, path)

	j, err = OpenJournal(state, "/src", "/out")
	require.NoError(t, err)
	defer j.Close()

	got, ok := j.Lookup("/src/a.txt")
	require.True(t, ok)
	assert.Equal(t, "abc", got.Hash)
}

func TestJournal_BatchFlush(t *testing.T) {
	state := t.TempDir()
	j, err := OpenJournal(state, "/src", "/out")
	require.NoError(t, err)
	defer j.Close()

	for i := range 150 {
		require.NoError(t, j.Record(JournalEntry{Src: fmt.Sprintf("/src/f%03d", i), Dst: "/out/x"}))
	}

	// The first full batch is written without waiting for the ticker.
	var n int
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM copies").Scan(&n))
	assert.GreaterOrEqual(t, n, 100)

	require.NoError(t, j.Flush())
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM copies").Scan(&n))
	assert.Equal(t, 150, n)
}

func TestJournal_Unchanged(t *testing.T) {
	src, out, state := t.TempDir(), t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello"})
	writeTree(t, out, map[string]string{"txt/a.txt": "hello"})
	task := taskFor(t, src, "a.txt")
	dst := filepath.Join(out, "txt", "a.txt")

	j, err := OpenJournal(state, src, out)
	require.NoError(t, err)
	defer j.Close()

	_, ok := j.Unchanged(task, filepath.Dir(dst))
	assert.False(t, ok, "no entry yet")

	require.NoError(t, j.Record(JournalEntry{
		Src:       task.SrcPath,
		Dst:       dst,
		Size:      task.Size,
		MtimeNano: task.ModTime.UnixNano(),
	}))

	entry, ok := j.Unchanged(task, filepath.Dir(dst))
	require.True(t, ok)
	assert.Equal(t, dst, entry.Dst)

	modified := task
	modified.ModTime = task.ModTime.Add(time.Second)
	_, ok = j.Unchanged(modified, filepath.Dir(dst))
	assert.False(t, ok, "mtime changed")

	_, ok = j.Unchanged(task, filepath.Join(out, "TXT"))
	assert.False(t, ok, "bucket moved")

	require.NoError(t, os.Remove(dst))
	_, ok = j.Unchanged(task, filepath.Dir(dst))
	assert.False(t, ok, "destination removed")
}

func TestJournal_RootsMismatch(t *testing.T) {
	state := t.TempDir()
	j, err := OpenJournal(state, "/src", "/out")
	require.NoError(t, err)
	path := j.Path()
	require.NoError(t, j.Close())

	// Force the same file to be opened for different roots.
	other := filepath.Join(state, jobID("/elsewhere", "/out")+".db")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(other, data, 0o600))

	_, err = OpenJournal(state, "/elsewhere", "/out")
	require.ErrorContains(t, err, "roots mismatch")
}
