package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	ScanError
	BucketCreated
	FileCompleted
	FileFailed
	FileSkipped
)

var typeNames = [...]string{
	ScanStarted:   "ScanStarted",
	ScanComplete:  "ScanComplete",
	ScanError:     "ScanError",
	BucketCreated: "BucketCreated",
	FileCompleted: "FileCompleted",
	FileFailed:    "FileFailed",
	FileSkipped:   "FileSkipped",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Error     error
	Path      string // source path
	Dst       string // destination path (FileCompleted) or bucket dir (BucketCreated)
	Reason    string // FileSkipped only
	Size      int64
	Total     int64 // files discovered (ScanComplete)
	DryRun    bool
}

// Emitter turns engine reports into events on a channel. Sends block so
// that no per-file outcome is lost; the consumer must drain the channel.
type Emitter struct {
	ch     chan<- Event
	dryRun bool
}

// NewEmitter returns an Emitter writing to ch. When dryRun is set, every
// FileCompleted event is flagged as a planned copy.
func NewEmitter(ch chan<- Event, dryRun bool) *Emitter {
	return &Emitter{ch: ch, dryRun: dryRun}
}

// Emit stamps and sends an arbitrary event.
func (e *Emitter) Emit(ev Event) {
	if e == nil || e.ch == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.ch <- ev
}

func (e *Emitter) ReportSuccess(src, dst string, size int64) {
	e.Emit(Event{Type: FileCompleted, Path: src, Dst: dst, Size: size, DryRun: e.dryRun})
}

func (e *Emitter) ReportFailure(src string, err error) {
	e.Emit(Event{Type: FileFailed, Path: src, Error: err})
}

func (e *Emitter) ReportSkipped(src, reason string) {
	e.Emit(Event{Type: FileSkipped, Path: src, Reason: reason})
}

func (e *Emitter) ReportScanStarted(root string) {
	e.Emit(Event{Type: ScanStarted, Path: root})
}

func (e *Emitter) ReportBucket(dir string) {
	e.Emit(Event{Type: BucketCreated, Dst: dir})
}

func (e *Emitter) ReportScanError(path string, err error) {
	e.Emit(Event{Type: ScanError, Path: path, Error: err})
}

func (e *Emitter) ReportScanComplete(files int64) {
	e.Emit(Event{Type: ScanComplete, Total: files})
}
