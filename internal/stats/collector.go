package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks run statistics using lock-free atomic counters. Workers
// write; presenters read through Snapshot and the rolling rate helpers.
type Collector struct {
	startTime      time.Time
	filesScanned   atomic.Int64
	filesCopied    atomic.Int64
	filesFailed    atomic.Int64
	filesSkipped   atomic.Int64
	filesVerified  atomic.Int64
	bytesCopied    atomic.Int64
	bucketsCreated atomic.Int64
	scanErrors     atomic.Int64

	// Ring buffer, written only by Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per tick
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesScanned   int64
	FilesCopied    int64
	FilesFailed    int64
	FilesSkipped   int64
	FilesVerified  int64
	BytesCopied    int64
	BucketsCreated int64
	ScanErrors     int64
	Elapsed        time.Duration
}

func (c *Collector) AddFilesScanned(n int64)   { c.filesScanned.Add(n) }
func (c *Collector) AddFilesCopied(n int64)    { c.filesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)    { c.filesFailed.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)   { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesVerified(n int64)  { c.filesVerified.Add(n) }
func (c *Collector) AddBytesCopied(n int64)    { c.bytesCopied.Add(n) }
func (c *Collector) AddBucketsCreated(n int64) { c.bucketsCreated.Add(n) }
func (c *Collector) AddScanErrors(n int64)     { c.scanErrors.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned:   c.filesScanned.Load(),
		FilesCopied:    c.filesCopied.Load(),
		FilesFailed:    c.filesFailed.Load(),
		FilesSkipped:   c.filesSkipped.Load(),
		FilesVerified:  c.filesVerified.Load(),
		BytesCopied:    c.bytesCopied.Load(),
		BucketsCreated: c.bucketsCreated.Load(),
		ScanErrors:     c.scanErrors.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick records the byte delta since the previous tick. Called once per
// second by the presenter.
func (c *Collector) Tick() {
	current := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n ticks.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d copied=%d failed=%d skipped=%d bytes=%d buckets=%d scan_errors=%d",
		s.FilesScanned, s.FilesCopied, s.FilesFailed, s.FilesSkipped,
		s.BytesCopied, s.BucketsCreated, s.ScanErrors,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
