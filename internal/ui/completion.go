package ui

import (
	"fmt"

	"github.com/bamsammich/sortcp/internal/stats"
)

// completionSummary builds the final summary line from a snapshot.
// Format: done ✓  files 1,204  buckets 9  size 2.1 GiB  avg 641 MiB/s  time 3m 17s  errors 0
func completionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.FilesFailed > 0 || snap.ScanErrors > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  buckets %d  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesCopied),
		snap.BucketsCreated,
		FormatBytes(snap.BytesCopied),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)
	if snap.FilesSkipped > 0 {
		base += "  skipped " + FormatCount(snap.FilesSkipped)
	}
	if snap.FilesVerified > 0 {
		base += "  verified " + FormatCount(snap.FilesVerified)
	}
	return base + fmt.Sprintf("  errors %d", snap.FilesFailed+snap.ScanErrors)
}
