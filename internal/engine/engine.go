// Package engine sorts a source tree into per-extension bucket directories:
// a parallel scanner feeds a worker pool that copies each file into
// <output>/<extension>/<name>.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bamsammich/sortcp/internal/filter"
	"github.com/bamsammich/sortcp/internal/stats"
)

// Config describes a sort-and-copy run.
type Config struct {
	Reporter       Reporter         // per-file outcomes; nil discards them
	Stats          *stats.Collector // nil: a private collector is used
	Filter         *filter.Chain
	Src            string
	Dst            string
	UnknownBucket  string
	StateDir       string // journal and lock location; DefaultStateDir() if empty
	Workers        int    // 0: min(NumCPU*2, 32); Unbounded: one goroutine per file
	ScanWorkers    int
	BWLimit        int64 // bytes/sec across all workers, 0 for none
	Collision      CollisionPolicy
	FollowSymlinks bool
	FoldCase       bool
	Verify         bool
	DryRun         bool
	Resume         bool
}

// Result is the outcome of a run. Err is set only for fatal conditions;
// individual file failures are listed in Failures.
type Result struct {
	Err        error
	Failures   []error // *CopyError
	ScanErrors []error // *ScanError
	Stats      stats.Snapshot
}

// DefaultWorkers is the worker count used when Config.Workers is 0.
func DefaultWorkers() int {
	return min(runtime.NumCPU()*2, 32)
}

// Run executes a sort-and-copy run, blocking until every discovered file
// has been attempted or ctx is cancelled.
//
//nolint:revive // function-length: orchestration of validate, lock, scan, copy
func Run(ctx context.Context, cfg Config) Result {
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	fatal := func(err error) Result {
		return Result{Err: err, Stats: collector.Snapshot()}
	}

	src, err := validateSource(cfg.Src)
	if err != nil {
		return fatal(err)
	}
	if err := validateBucketName(cfg.UnknownBucket); err != nil {
		return fatal(err)
	}
	dst, err := filepath.Abs(cfg.Dst)
	if err != nil {
		return fatal(fmt.Errorf("destination: %w", err))
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = DefaultStateDir()
	}

	var journal *Journal
	if !cfg.DryRun {
		lock, err := acquireRunLock(stateDir, dst)
		switch {
		case errors.Is(err, ErrLocked):
			return fatal(err)
		case err != nil:
			slog.Warn("run lock unavailable, continuing without it", "error", err)
		default:
			defer func() {
				if err := lock.release(); err != nil {
					slog.Warn("release run lock", "error", err)
				}
			}()
		}

		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fatal(fmt.Errorf("create destination: %w", err))
		}

		if cfg.Resume {
			journal, err = OpenJournal(stateDir, src, dst)
			if err != nil {
				slog.Warn("resume journal unavailable, copying everything", "error", err)
				journal = nil
			} else {
				defer func() {
					if err := journal.Close(); err != nil {
						slog.Warn("close resume journal", "error", err)
					}
				}()
			}
		}
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = DefaultWorkers()
	}

	scanner := NewScanner(ScannerConfig{
		SrcRoot:        src,
		SkipDir:        dst,
		Workers:        cfg.ScanWorkers,
		FollowSymlinks: cfg.FollowSymlinks,
		Filter:         cfg.Filter,
	})

	wp := NewWorkerPool(WorkerConfig{
		NumWorkers: workers,
		OutRoot:    dst,
		Buckets:    BucketNamer{Unknown: cfg.UnknownBucket, FoldCase: cfg.FoldCase},
		Collision:  cfg.Collision,
		Verify:     cfg.Verify,
		DryRun:     cfg.DryRun,
		Journal:    journal,
		Reporter:   reporter,
		Stats:      collector,
	})
	if cfg.BWLimit > 0 {
		wp.cfg.Limiter = NewBWLimiter(cfg.BWLimit)
	}
	defer wp.Close()

	progress, _ := reporter.(ProgressReporter)

	slog.Debug("starting run",
		"src", src,
		"dst", dst,
		"workers", workers,
		"collision", cfg.Collision.String(),
		"dry_run", cfg.DryRun,
		"resume", cfg.Resume,
	)

	if progress != nil {
		progress.ReportScanStarted(src)
	}
	tasks, scanErrs := scanner.Scan(ctx)

	var scanErrList []error
	var scanWg sync.WaitGroup
	scanWg.Add(1)
	go func() {
		defer scanWg.Done()
		for err := range scanErrs {
			slog.Warn("scan error", "error", err)
			collector.AddScanErrors(1)
			scanErrList = append(scanErrList, err)
			if progress != nil {
				var path string
				if se, ok := err.(*ScanError); ok {
					path = se.Path
				}
				progress.ReportScanError(path, err)
			}
		}
	}()

	failures := wp.Run(ctx, tasks)

	// Workers stop early on cancellation; drain so the scanner can exit.
	//nolint:revive // empty-block: intentionally draining task channel
	for range tasks {
	}
	scanWg.Wait()

	if progress != nil {
		progress.ReportScanComplete(scanner.Found())
	}

	result := Result{
		Failures:   failures,
		ScanErrors: scanErrList,
		Stats:      collector.Snapshot(),
	}
	if err := ctx.Err(); err != nil {
		result.Err = err
	}
	return result
}

// validateSource checks that path is an existing directory and returns
// its absolute form.
func validateSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return abs, nil
}

// validateBucketName rejects names that would escape the output root.
func validateBucketName(name string) error {
	if name == "" {
		return nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid bucket name %q", name)
	}
	return nil
}
