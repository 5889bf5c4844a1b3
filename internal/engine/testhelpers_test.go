package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memReporter records every outcome it receives.
type memReporter struct {
	mu         sync.Mutex
	successes  map[string]string // src -> dst
	failures   map[string]error
	skipped    map[string]string
	scanRoot   string
	buckets    []string
	scanErrs   []string
	scanTotal  int64
	scanClosed bool
}

func newMemReporter() *memReporter {
	return &memReporter{
		successes: make(map[string]string),
		failures:  make(map[string]error),
		skipped:   make(map[string]string),
	}
}

func (r *memReporter) ReportSuccess(src, dst string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes[src] = dst
}

func (r *memReporter) ReportFailure(src string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[src] = err
}

func (r *memReporter) ReportSkipped(src, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[src] = reason
}

func (r *memReporter) ReportScanStarted(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanRoot = root
}

func (r *memReporter) ReportBucket(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = append(r.buckets, dir)
}

func (r *memReporter) ReportScanError(path string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanErrs = append(r.scanErrs, path)
}

func (r *memReporter) ReportScanComplete(files int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanTotal = files
	r.scanClosed = true
}

// outcomes returns the total number of reports received.
func (r *memReporter) outcomes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes) + len(r.failures) + len(r.skipped)
}

// writeTree creates each file in files (slash-separated path -> content)
// under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// listTree returns every regular file under root as a sorted list of
// slash-separated relative paths.
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// findTmpFiles returns any leftover .sortcp-tmp files under root.
func findTmpFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	for _, rel := range listTree(t, root) {
		if strings.HasSuffix(rel, ".sortcp-tmp") {
			found = append(found, rel)
		}
	}
	return found
}

// scanAll runs a scanner to completion and returns what it produced.
func scanAll(t *testing.T, cfg ScannerConfig) ([]FileTask, []error) {
	t.Helper()
	tasks, errs := NewScanner(cfg).Scan(context.Background())

	var taskList []FileTask
	done := make(chan struct{})
	go func() {
		defer close(done)
		for task := range tasks {
			taskList = append(taskList, task)
		}
	}()

	var errList []error
	for err := range errs {
		errList = append(errList, err)
	}
	<-done

	sort.Slice(taskList, func(i, j int) bool { return taskList[i].RelPath < taskList[j].RelPath })
	return taskList, errList
}

func relPaths(tasks []FileTask) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.RelPath)
	}
	return out
}

// taskFor builds a FileTask for an existing file, as the scanner would.
func taskFor(t *testing.T, root, rel string) FileTask {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return FileTask{
		SrcPath: path,
		RelPath: rel,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
}

// feed returns a closed channel holding tasks.
func feed(tasks ...FileTask) <-chan FileTask {
	ch := make(chan FileTask, len(tasks))
	for _, task := range tasks {
		ch <- task
	}
	close(ch)
	return ch
}
