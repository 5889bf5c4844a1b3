package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bamsammich/sortcp/internal/filter"
	"github.com/bamsammich/sortcp/internal/platform"
)

// ScannerConfig controls scanner behavior.
type ScannerConfig struct {
	Filter         *filter.Chain
	SrcRoot        string
	SkipDir        string // never descended; the output root when it lies inside the source
	Workers        int
	FollowSymlinks bool
}

// Scanner traverses a directory tree in parallel and emits a FileTask for
// every regular file. Order is unspecified.
type Scanner struct {
	cfg     ScannerConfig
	tasks   chan FileTask
	errs    chan error
	visited sync.Map // platform.FileKey -> struct{}, only with FollowSymlinks
	found   atomic.Int64
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}
	cfg.SrcRoot = filepath.Clean(cfg.SrcRoot)
	if cfg.SkipDir != "" {
		cfg.SkipDir = filepath.Clean(cfg.SkipDir)
	}
	return &Scanner{
		cfg:   cfg,
		tasks: make(chan FileTask, cfg.Workers*4),
		errs:  make(chan error, cfg.Workers*4),
	}
}

// Scan starts the scanner and returns channels for tasks and errors.
// The caller must consume from both channels until they close.
func (s *Scanner) Scan(ctx context.Context) (<-chan FileTask, <-chan error) {
	go func() {
		defer close(s.tasks)
		defer close(s.errs)
		s.scanTree(ctx)
	}()

	return s.tasks, s.errs
}

// Found returns the number of files emitted so far.
func (s *Scanner) Found() int64 {
	return s.found.Load()
}

func (s *Scanner) scanTree(ctx context.Context) {
	workQueue := make(chan string, s.cfg.Workers*2)
	var outstanding sync.WaitGroup // directories queued but not yet scanned

	// Enqueue from a goroutine: workers are also the producers, so a
	// blocking send on a full queue could stall every worker.
	enqueue := func(dir string) {
		outstanding.Add(1)
		go func() {
			select {
			case workQueue <- dir:
			case <-ctx.Done():
				outstanding.Done()
			}
		}()
	}

	var workerWg sync.WaitGroup
	for range s.cfg.Workers {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for dir := range workQueue {
				s.scanDir(ctx, dir, enqueue)
				outstanding.Done()
			}
		}()
	}

	if s.cfg.FollowSymlinks {
		if info, err := os.Stat(s.cfg.SrcRoot); err == nil {
			if key, ok := platform.FileID(info); ok {
				s.visited.Store(key, struct{}{})
			}
		}
	}
	enqueue(s.cfg.SrcRoot)

	outstanding.Wait()
	close(workQueue)
	workerWg.Wait()
}

func (s *Scanner) scanDir(ctx context.Context, dir string, enqueue func(string)) {
	if ctx.Err() != nil {
		return
	}

	// ReadDir returns the entries it managed to read alongside the error.
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.sendErr(ctx, &ScanError{Path: dir, Err: err})
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		s.processEntry(ctx, filepath.Join(dir, entry.Name()), entry, enqueue)
	}
}

func (s *Scanner) processEntry(ctx context.Context, path string, entry fs.DirEntry, enqueue func(string)) {
	typ := entry.Type()

	switch {
	case typ.IsDir():
		s.enterDir(ctx, path, nil, enqueue)

	case typ&os.ModeSymlink != 0:
		if !s.cfg.FollowSymlinks {
			return
		}
		info, err := os.Stat(path)
		if err != nil {
			slog.Debug("skipping dangling symlink", "path", path, "error", err)
			return
		}
		switch {
		case info.IsDir():
			s.enterDir(ctx, path, info, enqueue)
		case info.Mode().IsRegular():
			s.emitFile(ctx, path, info)
		}

	case typ.IsRegular():
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.sendErr(ctx, &ScanError{Path: path, Err: err})
			}
			return
		}
		s.emitFile(ctx, path, info)

	default:
		// Devices, sockets and FIFOs are not copied.
	}
}

func (s *Scanner) enterDir(ctx context.Context, path string, info os.FileInfo, enqueue func(string)) {
	if s.cfg.SkipDir != "" && path == s.cfg.SkipDir {
		slog.Debug("skipping output directory inside source", "path", path)
		return
	}
	if !s.cfg.Filter.Match(s.rel(path), true, 0) {
		return
	}

	if s.cfg.FollowSymlinks {
		if info == nil {
			var err error
			if info, err = os.Stat(path); err != nil {
				s.sendErr(ctx, &ScanError{Path: path, Err: err})
				return
			}
		}
		if key, ok := platform.FileID(info); ok {
			if _, seen := s.visited.LoadOrStore(key, struct{}{}); seen {
				slog.Debug("skipping already visited directory", "path", path)
				return
			}
		}
	}

	enqueue(path)
}

func (s *Scanner) emitFile(ctx context.Context, path string, info os.FileInfo) {
	rel := s.rel(path)
	if !s.cfg.Filter.Match(rel, false, info.Size()) {
		return
	}

	task := FileTask{
		SrcPath: path,
		RelPath: rel,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		AccTime: platform.AccessTime(info),
	}

	select {
	case s.tasks <- task:
		s.found.Add(1)
	case <-ctx.Done():
	}
}

// rel returns path relative to the source root in slash form.
func (s *Scanner) rel(path string) string {
	rel, err := filepath.Rel(s.cfg.SrcRoot, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) sendErr(ctx context.Context, err error) {
	select {
	case s.errs <- err:
	case <-ctx.Done():
	}
}
