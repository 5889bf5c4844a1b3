package engine

// Reporter receives exactly one outcome per discovered file. It is called
// concurrently from worker goroutines.
type Reporter interface {
	ReportSuccess(src, dst string, size int64)
	ReportFailure(src string, err error)
	ReportSkipped(src, reason string)
}

// ProgressReporter is optionally implemented by a Reporter that also wants
// walk-level events.
type ProgressReporter interface {
	ReportScanStarted(root string)
	ReportBucket(dir string)
	ReportScanError(path string, err error)
	ReportScanComplete(files int64)
}

type nopReporter struct{}

func (nopReporter) ReportSuccess(string, string, int64) {}
func (nopReporter) ReportFailure(string, error)         {}
func (nopReporter) ReportSkipped(string, string)        {}
