package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource means the source path is missing or not a directory.
	// It is fatal and raised before any copy work starts.
	ErrInvalidSource = errors.New("invalid source")

	// ErrLocked means another run holds the lock on the output directory.
	ErrLocked = errors.New("output directory is locked by another run")
)

// Stage names the step of a single-file copy that failed.
type Stage string

const (
	StageOpen     Stage = "open source"
	StageMkdir    Stage = "create bucket"
	StageCreate   Stage = "create temp file"
	StageWrite    Stage = "write"
	StageVerify   Stage = "verify"
	StageMetadata Stage = "preserve metadata"
	StageRename   Stage = "rename"
)

// CopyError is the failure of one file. It never aborts the run.
type CopyError struct {
	Err   error
	Src   string
	Dst   string
	Stage Stage
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// ScanError is a walk failure confined to one directory or entry.
type ScanError struct {
	Err  error
	Path string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
