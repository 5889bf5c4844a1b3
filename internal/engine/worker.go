package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bamsammich/sortcp/internal/platform"
	"github.com/bamsammich/sortcp/internal/stats"
)

// Unbounded as NumWorkers starts one goroutine per task.
const Unbounded = -1

// WorkerConfig controls worker behavior.
type WorkerConfig struct {
	Reporter   Reporter
	Stats      *stats.Collector
	Limiter    *rate.Limiter // nil: no bandwidth limit
	Journal    *Journal      // nil: no resume
	OutRoot    string
	Buckets    BucketNamer
	NumWorkers int // Unbounded for one goroutine per task
	Collision  CollisionPolicy
	Verify     bool
	DryRun     bool
}

// WorkerPool copies FileTasks into their bucket directories.
type WorkerPool struct {
	cfg     WorkerConfig
	claims  *claimTable
	tmp     tmpRegistry
	buckets sync.Map // bucket dir -> struct{}

	mu       sync.Mutex
	failures []error
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(cfg WorkerConfig) *WorkerPool {
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = 1
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	return &WorkerPool{cfg: cfg, claims: newClaimTable(cfg.Collision)}
}

// Run consumes tasks until the channel closes or ctx is cancelled and
// returns the per-file failures. A failure never stops other tasks.
func (wp *WorkerPool) Run(ctx context.Context, tasks <-chan FileTask) []error {
	var wg sync.WaitGroup

	if wp.cfg.NumWorkers < 0 {
		for task := range tasks {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				wp.process(ctx, task)
			}()
		}
		wg.Wait()
		return wp.Failures()
	}

	for range wp.cfg.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if ctx.Err() != nil {
					return
				}
				wp.process(ctx, task)
			}
		}()
	}
	wg.Wait()
	return wp.Failures()
}

// Failures returns the copy errors collected so far.
func (wp *WorkerPool) Failures() []error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return append([]error(nil), wp.failures...)
}

// Close removes any temporary files left by interrupted copies.
func (wp *WorkerPool) Close() {
	wp.tmp.cleanup()
}

func (wp *WorkerPool) process(ctx context.Context, task FileTask) {
	wp.cfg.Stats.AddFilesScanned(1)

	bucket := wp.cfg.Buckets.Bucket(task.Name())
	dir := filepath.Join(wp.cfg.OutRoot, bucket)

	if wp.cfg.Journal != nil {
		if entry, ok := wp.cfg.Journal.Unchanged(task, dir); ok {
			wp.claims.reserve(entry.Dst, task.RelPath)
			wp.skip(task, "unchanged since last run")
			return
		}
	}

	dst, owner, ok := wp.claims.claim(dir, task.Name(), task.RelPath)
	if !ok {
		wp.skip(task, fmt.Sprintf("destination already taken by %s", owner))
		return
	}

	if wp.cfg.DryRun {
		wp.cfg.Reporter.ReportSuccess(task.SrcPath, dst, task.Size)
		return
	}

	if err := wp.ensureBucket(dir); err != nil {
		wp.claims.release(dst, task.RelPath)
		wp.fail(task, &CopyError{Src: task.SrcPath, Dst: dst, Stage: StageMkdir, Err: err})
		return
	}

	n, hash, err := wp.copyFile(ctx, task, dst)
	if err != nil {
		wp.claims.release(dst, task.RelPath)
		wp.fail(task, err)
		return
	}

	if wp.cfg.Journal != nil {
		if err := wp.cfg.Journal.Record(JournalEntry{
			Src:       task.SrcPath,
			Dst:       dst,
			Size:      n,
			MtimeNano: task.ModTime.UnixNano(),
			Hash:      hash,
		}); err != nil {
			slog.Warn("journal write failed", "src", task.SrcPath, "error", err)
		}
	}

	wp.cfg.Stats.AddFilesCopied(1)
	wp.cfg.Stats.AddBytesCopied(n)
	wp.cfg.Reporter.ReportSuccess(task.SrcPath, dst, n)
}

// ensureBucket creates dir if needed. MkdirAll tolerates a concurrent
// creator, so no locking is required.
func (wp *WorkerPool) ensureBucket(dir string) error {
	if _, ok := wp.buckets.Load(dir); ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, loaded := wp.buckets.LoadOrStore(dir, struct{}{}); !loaded {
		wp.cfg.Stats.AddBucketsCreated(1)
		if pr, ok := wp.cfg.Reporter.(ProgressReporter); ok {
			pr.ReportBucket(dir)
		}
	}
	return nil
}

// copyFile writes task's content and metadata to a temp file next to dst
// and renames it into place. On any error the temp file is removed, so dst
// is either the complete copy or untouched.
//
//nolint:revive // function-length: linear copy pipeline with per-stage error wrapping
func (wp *WorkerPool) copyFile(ctx context.Context, task FileTask, dst string) (int64, string, error) {
	fail := func(stage Stage, err error) (int64, string, error) {
		return 0, "", &CopyError{Src: task.SrcPath, Dst: dst, Stage: stage, Err: err}
	}

	src, err := os.Open(task.SrcPath)
	if err != nil {
		return fail(StageOpen, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fail(StageOpen, err)
	}
	if !info.Mode().IsRegular() {
		return fail(StageOpen, fmt.Errorf("%s is no longer a regular file", task.SrcPath))
	}

	tmpPath := tempPathFor(dst)

	wp.tmp.add(tmpPath)
	defer func() {
		wp.tmp.remove(tmpPath)
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	perm := info.Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)

	// A rate limit has to see every byte, so cloning is only tried without one.
	cloned := false
	if wp.cfg.Limiter == nil {
		if cloned, err = platform.CloneFile(task.SrcPath, tmpPath); err != nil {
			return fail(StageCreate, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if cloned {
		flags = os.O_WRONLY
	}
	tmp, err := os.OpenFile(tmpPath, flags, perm.Perm())
	if err != nil {
		return fail(StageCreate, err)
	}
	closed := false
	defer func() {
		if !closed {
			tmp.Close()
		}
	}()

	var result platform.CopyResult
	switch {
	case cloned:
		result = platform.CopyResult{BytesWritten: info.Size(), Method: platform.Clonefile}
	case wp.cfg.Limiter != nil:
		result, err = platform.CopyReader(tmp, newRateLimitedReader(ctx, src, wp.cfg.Limiter))
	default:
		result, err = platform.CopyFile(tmp, src, info.Size())
	}
	if err != nil {
		return fail(StageWrite, err)
	}
	if result.BytesWritten != info.Size() {
		return fail(StageWrite, fmt.Errorf("copied %d of %d bytes (source changed during copy)",
			result.BytesWritten, info.Size()))
	}

	var hash string
	if wp.cfg.Verify {
		if hash, err = verifyCopy(task.SrcPath, tmpPath); err != nil {
			return fail(StageVerify, err)
		}
		wp.cfg.Stats.AddFilesVerified(1)
	}

	if err := tmp.Chmod(perm); err != nil {
		return fail(StageMetadata, err)
	}
	platform.CopyXattrs(task.SrcPath, tmp)
	if err := platform.SetTimes(tmp, platform.AccessTime(info), info.ModTime()); err != nil {
		return fail(StageMetadata, err)
	}

	closed = true
	if err := tmp.Close(); err != nil {
		return fail(StageWrite, err)
	}

	// Last chance to abort cleanly before the copy becomes visible.
	if err := ctx.Err(); err != nil {
		return fail(StageWrite, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fail(StageRename, err)
	}

	slog.Debug("copied",
		"src", task.SrcPath,
		"dst", dst,
		"bytes", result.BytesWritten,
		"method", result.Method.String(),
	)
	return result.BytesWritten, hash, nil
}

// tempPathFor names the in-progress file for dst. The name has a fixed
// length so a destination name at NAME_MAX still gets a valid temp file.
func tempPathFor(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+uuid.NewString()+tmpSuffix)
}

const tmpSuffix = ".sortcp-tmp"

// errHashMismatch reports a verification failure.
var errHashMismatch = errors.New("checksum mismatch")

func verifyCopy(srcPath, dstPath string) (string, error) {
	srcHash, err := HashFile(srcPath)
	if err != nil {
		return "", err
	}
	dstHash, err := HashFile(dstPath)
	if err != nil {
		return "", err
	}
	if srcHash != dstHash {
		return "", fmt.Errorf("%w: source %s, copy %s", errHashMismatch, srcHash[:16], dstHash[:16])
	}
	return srcHash, nil
}

func (wp *WorkerPool) skip(task FileTask, reason string) {
	wp.cfg.Stats.AddFilesSkipped(1)
	slog.Debug("skipped", "src", task.SrcPath, "reason", reason)
	wp.cfg.Reporter.ReportSkipped(task.SrcPath, reason)
}

func (wp *WorkerPool) fail(task FileTask, err error) {
	wp.cfg.Stats.AddFilesFailed(1)
	slog.Debug("copy failed", "src", task.SrcPath, "error", err)

	wp.mu.Lock()
	wp.failures = append(wp.failures, err)
	wp.mu.Unlock()

	wp.cfg.Reporter.ReportFailure(task.SrcPath, err)
}
