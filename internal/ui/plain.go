package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/sortcp/internal/stats"
)

// plainPresenter prints one line per file outcome: successes to w,
// failures to errW. With a progress interval it also reports periodic
// totals on errW.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    *stats.Collector
	pal      palette
	progress time.Duration
	verbose  bool
	total    int64
}

func (p *plainPresenter) Run(events <-chan Event) error {
	var tick <-chan time.Time
	if p.progress > 0 && p.stats != nil {
		ticker := time.NewTicker(p.progress)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-tick:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case FileCompleted:
		label := "Copied:"
		if ev.DryRun {
			label = "Would copy:"
		}
		fmt.Fprintf(p.w, "%s %s -> %s\n", p.pal.ok.Sprint(label), ev.Path, ev.Dst)
	case FileFailed:
		fmt.Fprintf(p.errW, "%s %s: %s\n", p.pal.fail.Sprint("Error copying"), ev.Path, errText(ev.Error))
	case FileSkipped:
		fmt.Fprintf(p.w, "%s %s (%s)\n", p.pal.warn.Sprint("Skipped:"), ev.Path, ev.Reason)
	case ScanError:
		fmt.Fprintf(p.errW, "%s %s: %s\n", p.pal.fail.Sprint("Error reading"), ev.Path, errText(ev.Error))
	case ScanStarted:
		if p.verbose {
			fmt.Fprintf(p.w, "%s %s\n", p.pal.dim.Sprint("Scanning:"), ev.Path)
		}
	case BucketCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "%s %s\n", p.pal.dim.Sprint("Created bucket:"), ev.Dst)
		}
	case ScanComplete:
		p.total = ev.Total
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	done := snap.FilesCopied + snap.FilesFailed + snap.FilesSkipped
	files := FormatCount(done)
	if p.total > 0 {
		files += "/" + FormatCount(p.total)
	}
	fmt.Fprintf(p.errW, "progress: %s files  %s  %s  %d errors\n",
		files,
		FormatBytes(snap.BytesCopied),
		FormatRate(p.stats.RollingSpeed(5)/p.progress.Seconds()), // per-tick bytes to bytes/sec
		snap.FilesFailed,
	)
}

func (p *plainPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	return completionSummary(p.stats.Snapshot())
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
