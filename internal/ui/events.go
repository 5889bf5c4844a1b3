package ui

import "github.com/bamsammich/sortcp/internal/event"

// Event is the engine event consumed by presenters.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted   = event.ScanStarted
	ScanComplete  = event.ScanComplete
	ScanError     = event.ScanError
	BucketCreated = event.BucketCreated
	FileCompleted = event.FileCompleted
	FileFailed    = event.FileFailed
	FileSkipped   = event.FileSkipped
)
