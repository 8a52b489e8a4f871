package tokenstore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var _ Repo = (*FileStore)(nil)

// FileStore keeps the token in a single file on device-local storage.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated token behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. Parent
// directories are created on the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	return &FileStore{path: path}, nil
}

func (fs *FileStore) Save(token string) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &StorageError{Op: "save", Cause: err}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return &StorageError{Op: "save", Cause: err}
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return &StorageError{Op: "save", Cause: err}
	}
	return nil
}

func (fs *FileStore) Get() (string, bool, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "get", Cause: err}
	}
	return string(data), true, nil
}

func (fs *FileStore) Remove() error {
	err := os.Remove(fs.path)
	if err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Cause: err}
	}
	return nil
}
