package blobstore

import (
	"errors"
	"os"
	"path/filepath"
)

// LocalFS is a directory on the local filesystem that files are addressed
// in by basename.
type LocalFS struct {
	dirPath string
}

var ErrNotDirectory = errors.New("not_a_directory")

func NewLocalFS(dirPath string) (*LocalFS, error) {
	resolvedPath, err := filepath.Abs(dirPath)
	return &LocalFS{dirPath: resolvedPath}, err
}

// EnsureDir creates resolvedPath (and parents) unless it already is a
// directory.
func EnsureDir(resolvedPath string) error {
	info, err := os.Stat(resolvedPath)
	if err == nil {
		if info.IsDir() {
			return nil
		}

		return ErrNotDirectory
	}

	if !os.IsNotExist(err) {
		return err
	}

	return os.MkdirAll(resolvedPath, 0o755)
}

func (slf *LocalFS) Dir() string {
	return slf.dirPath
}

// Path joins basename onto the directory. The basename is used as given, so
// callers own any sanitizing.
func (slf *LocalFS) Path(basename string) string {
	return filepath.Join(slf.dirPath, basename)
}

func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// Remove deletes path. A file that is already gone is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
