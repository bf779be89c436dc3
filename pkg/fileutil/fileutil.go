package fileutil

import (
	"os"
	"path/filepath"

	"github.com/rohmanhakim/krishield/pkg/failure"
)

// EnsureDir creates dir joined with path, including parents, when missing.
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	target := filepath.Join(append([]string{dir}, path...)...)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return &FileError{Path: target, Cause: ErrCausePathError, Err: err}
	}
	return nil
}

// ReadFile is os.ReadFile with a classified error. A missing file is not retryable.
func ReadFile(path string) ([]byte, failure.ClassifiedError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Cause: ErrCauseReadError, Retryable: !os.IsNotExist(err), Err: err}
	}
	return data, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// over path. Readers see either the old content or the new, never a mix.
func WriteFileAtomic(path string, data []byte) failure.ClassifiedError {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return writeError(path, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, err error) *FileError {
	return &FileError{Path: path, Cause: ErrCauseWriteError, Retryable: true, Err: err}
}
