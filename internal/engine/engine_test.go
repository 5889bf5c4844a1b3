package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sortcp/internal/filter"
)

func testConfig(t *testing.T, src, dst string, rep Reporter) Config {
	t.Helper()
	return Config{
		Src:      src,
		Dst:      dst,
		Reporter: rep,
		StateDir: t.TempDir(),
		Workers:  4,
	}
}

func TestEngine_SortsByExtension(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{
		"a.txt":     "alpha",
		"b.txt":     "bravo",
		"sub/c.jpg": "charlie",
		"noext":     "delta",
	})

	rep := newMemReporter()
	result := Run(context.Background(), testConfig(t, src, dst, rep))

	require.NoError(t, result.Err)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []string{"jpg/c.jpg", "txt/a.txt", "txt/b.txt", "unknown/noext"}, listTree(t, dst))
	assert.Equal(t, 4, rep.outcomes())
	assert.Len(t, rep.successes, 4)
	assert.Equal(t, src, rep.scanRoot)
	assert.True(t, rep.scanClosed)
	assert.Equal(t, int64(4), rep.scanTotal)
	assert.Len(t, rep.buckets, 3)

	got, err := os.ReadFile(filepath.Join(dst, "jpg", "c.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "charlie", string(got))

	assert.Equal(t, int64(4), result.Stats.FilesCopied)
	assert.Equal(t, int64(3), result.Stats.BucketsCreated)
	assert.Empty(t, findTmpFiles(t, dst))
}

func TestEngine_EmptySource(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	rep := newMemReporter()
	result := Run(context.Background(), testConfig(t, src, dst, rep))

	require.NoError(t, result.Err)
	assert.Zero(t, rep.outcomes())
	assert.DirExists(t, dst)
	assert.Empty(t, listTree(t, dst))
}

func TestEngine_InvalidSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name string
		src  string
	}{
		{"regular file", file},
		{"missing", filepath.Join(dir, "missing")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "out")
			rep := newMemReporter()
			result := Run(context.Background(), testConfig(t, tc.src, dst, rep))

			require.ErrorIs(t, result.Err, ErrInvalidSource)
			assert.Zero(t, rep.outcomes())
			assert.NoDirExists(t, dst)
		})
	}
}

func TestEngine_InvalidUnknownBucket(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"..", "a/b", "."} {
		cfg := testConfig(t, src, filepath.Join(t.TempDir(), "out"), nil)
		cfg.UnknownBucket = name
		result := Run(context.Background(), cfg)
		require.Error(t, result.Err, "bucket %q", name)
	}
}

func TestEngine_NameCollision(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"dir1/x.txt": "one", "dir2/x.txt": "two"})

	rep := newMemReporter()
	result := Run(context.Background(), testConfig(t, src, dst, rep))

	require.NoError(t, result.Err)
	files := listTree(t, dst)
	require.Len(t, files, 2, "neither copy may be lost")
	assert.Contains(t, files, "txt/x.txt")
	assert.Len(t, rep.successes, 2)

	var contents []string
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dst, f))
		require.NoError(t, err)
		contents = append(contents, string(data))
	}
	assert.ElementsMatch(t, []string{"one", "two"}, contents)
}

func TestEngine_OutputInsideSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	dst := filepath.Join(src, "sorted")

	result := Run(context.Background(), testConfig(t, src, dst, nil))
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"txt/a.txt"}, listTree(t, dst))

	// A second run must not pick up its own output.
	result = Run(context.Background(), testConfig(t, src, dst, nil))
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"txt/a.txt"}, listTree(t, dst))
}

func TestEngine_DryRun(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.txt": "a", "b.png": "b"})

	rep := newMemReporter()
	cfg := testConfig(t, src, dst, rep)
	cfg.DryRun = true
	result := Run(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.NoDirExists(t, dst)
	assert.Len(t, rep.successes, 2)
	assert.Equal(t, filepath.Join(dst, "png", "b.png"), rep.successes[filepath.Join(src, "b.png")])
}

func TestEngine_WithFilter(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"keep.go": "k", "skip.log": "s", "vendor/v.go": "v"})

	chain := filter.NewChain()
	require.NoError(t, chain.AddExclude("*.log"))
	require.NoError(t, chain.AddExclude("vendor/"))

	cfg := testConfig(t, src, dst, nil)
	cfg.Filter = chain
	result := Run(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"go/keep.go"}, listTree(t, dst))
}

func TestEngine_Resume(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.txt": "a", "b.txt": "b"})

	cfg := testConfig(t, src, dst, nil)
	cfg.Resume = true
	result := Run(context.Background(), cfg)
	require.NoError(t, result.Err)
	require.Equal(t, int64(2), result.Stats.FilesCopied)

	writeTree(t, src, map[string]string{"c.txt": "c"})

	rep := newMemReporter()
	cfg.Reporter = rep
	result = Run(context.Background(), cfg)
	require.NoError(t, result.Err)

	assert.Equal(t, int64(1), result.Stats.FilesCopied)
	assert.Equal(t, int64(2), result.Stats.FilesSkipped)
	assert.Contains(t, rep.successes, filepath.Join(src, "c.txt"))
	assert.Equal(t, "unchanged since last run", rep.skipped[filepath.Join(src, "a.txt")])
	assert.Equal(t, []string{"txt/a.txt", "txt/b.txt", "txt/c.txt"}, listTree(t, dst))
}

func TestEngine_ResumeAfterBucketChange(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.TXT": "a", "b.txt": "b"})

	cfg := testConfig(t, src, dst, nil)
	cfg.Resume = true
	result := Run(context.Background(), cfg)
	require.NoError(t, result.Err)
	require.Equal(t, []string{"TXT/a.TXT", "txt/b.txt"}, listTree(t, dst))

	cfg.FoldCase = true
	result = Run(context.Background(), cfg)
	require.NoError(t, result.Err)

	// a.TXT now belongs in txt/, so it is copied again; b.txt did not move.
	assert.Equal(t, int64(1), result.Stats.FilesCopied)
	assert.Equal(t, int64(1), result.Stats.FilesSkipped)
	assert.FileExists(t, filepath.Join(dst, "txt", "a.TXT"))
}

func TestEngine_LockedOutput(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.txt": "a"})

	cfg := testConfig(t, src, dst, nil)
	abs, err := filepath.Abs(dst)
	require.NoError(t, err)
	lock, err := acquireRunLock(cfg.StateDir, abs)
	require.NoError(t, err)
	defer func() { _ = lock.release() }() //nolint:errcheck // best-effort cleanup in test

	result := Run(context.Background(), cfg)
	require.ErrorIs(t, result.Err, ErrLocked)
	assert.NoDirExists(t, dst)
}

func TestEngine_UnusableStateDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{"a.txt": "a"})

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	cfg := testConfig(t, src, dst, nil)
	cfg.StateDir = filepath.Join(blocker, "state")
	cfg.Resume = true

	result := Run(context.Background(), cfg)
	require.NoError(t, result.Err)
	assert.Empty(t, result.Failures)
	assert.FileExists(t, filepath.Join(dst, "txt", "a.txt"))
}

func TestEngine_ContextCancel(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	files := make(map[string]string)
	for i := range 200 {
		files[fmt.Sprintf("d%d/f%d.dat", i%10, i)] = "payload"
	}
	writeTree(t, src, files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Run(ctx, testConfig(t, src, dst, nil))
	require.ErrorIs(t, result.Err, context.Canceled)
	assert.Empty(t, findTmpFiles(t, dst))
}

func TestEngine_UnboundedWorkers(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	files := make(map[string]string)
	for i := range 40 {
		files[fmt.Sprintf("f%d.%d", i, i%4)] = "x"
	}
	writeTree(t, src, files)

	cfg := testConfig(t, src, dst, nil)
	cfg.Workers = Unbounded
	result := Run(context.Background(), cfg)

	require.NoError(t, result.Err)
	assert.Equal(t, int64(40), result.Stats.FilesCopied)
	assert.Equal(t, int64(4), result.Stats.BucketsCreated)
}

func TestDefaultWorkers(t *testing.T) {
	w := DefaultWorkers()
	assert.Positive(t, w)
	assert.LessOrEqual(t, w, 32)
}
