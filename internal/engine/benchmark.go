package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bamsammich/sortcp/internal/stats"
)

// BenchmarkResult holds throughput measurements.
type BenchmarkResult struct {
	ReadBytesPerSec  float64
	WriteBytesPerSec float64
	SuggestedWorkers int
}

const benchSize = 32 << 20 // 32 MiB

var errNoBenchFile = errors.New("no readable files")

// RunBenchmark reads a sample file from srcDir and writes a scratch file in
// outDir, then suggests a worker count for the slower side.
func RunBenchmark(ctx context.Context, srcDir, outDir string) (BenchmarkResult, error) {
	var result BenchmarkResult

	if _, err := validateSource(srcDir); err != nil {
		return result, err
	}
	sample, err := findBenchFile(ctx, srcDir)
	if err != nil {
		return result, fmt.Errorf("read benchmark: %w", err)
	}
	if result.ReadBytesPerSec, err = benchRead(ctx, sample); err != nil {
		return result, fmt.Errorf("read benchmark: %w", err)
	}
	if result.WriteBytesPerSec, err = benchWrite(ctx, outDir); err != nil {
		return result, fmt.Errorf("write benchmark: %w", err)
	}

	result.SuggestedWorkers = suggestWorkers(result.ReadBytesPerSec, result.WriteBytesPerSec)
	return result, nil
}

// findBenchFile returns the first file of at least benchSize bytes, or
// failing that the first non-empty one.
func findBenchFile(ctx context.Context, srcDir string) (string, error) {
	var target string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable subtrees are irrelevant here
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 {
			return nil //nolint:nilerr // skip files we can't stat
		}
		if target == "" {
			target = path
		}
		if info.Size() >= benchSize {
			target = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", fmt.Errorf("%w in %s", errNoBenchFile, srcDir)
	}
	return target, nil
}

func benchRead(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 1<<20)
	var total int64
	start := time.Now()
	for total < benchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := f.Read(buf)
		total += int64(n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return bytesPerSecond(total, time.Since(start)), nil
}

func benchWrite(ctx context.Context, outDir string) (float64, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(outDir, ".sortcp-bench-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	buf := make([]byte, 1<<20)
	var total int64
	start := time.Now()
	for total < benchSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := f.Write(buf)
		total += int64(n)
		if err != nil {
			return 0, err
		}
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return bytesPerSecond(total, time.Since(start)), nil
}

func bytesPerSecond(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}
	return float64(n) / elapsed.Seconds()
}

// suggestWorkers sizes the pool from the slower of read and write.
func suggestWorkers(readBPS, writeBPS float64) int {
	bottleneck := min(readBPS, writeBPS)
	cpus := runtime.NumCPU()

	switch {
	case bottleneck >= 2e9: // NVMe
		return min(cpus*2, 32)
	case bottleneck >= 200e6: // SSD
		return min(cpus, 16)
	default: // spinning disk or network mount
		return min(4, cpus)
	}
}

// FormatBenchmark formats a BenchmarkResult for display.
func FormatBenchmark(r BenchmarkResult) string {
	return fmt.Sprintf("benchmark: read %s/s  write %s/s  suggested workers %d",
		stats.FormatBytes(int64(r.ReadBytesPerSec)),
		stats.FormatBytes(int64(r.WriteBytesPerSec)),
		r.SuggestedWorkers)
}
