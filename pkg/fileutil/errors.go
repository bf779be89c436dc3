package fileutil

import (
	"fmt"

	"github.com/rohmanhakim/krishield/pkg/failure"
)

type FileErrorCause string

const (
	ErrCausePathError  FileErrorCause = "path error"
	ErrCauseWriteError FileErrorCause = "write error"
	ErrCauseReadError  FileErrorCause = "read error"
)

// FileError wraps an os error together with the path it concerns.
// Err stays reachable through Unwrap, so errors.Is(err, fs.ErrNotExist) holds.
type FileError struct {
	Path      string
	Retryable bool
	Cause     FileErrorCause
	Err       error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file error: %s: %s: %v", e.Cause, e.Path, e.Err)
}

func (e *FileError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FileError) IsRetryable() bool {
	return e.Retryable
}

func (e *FileError) Detail() string {
	return fmt.Sprintf("local cache %s", e.Cause)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
