package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the key document in a single pretty-printed JSON file.
type FileStore struct {
	*documentStore
	path string
}

// OpenFile returns a FileStore for path, creating the parent directory and
// an empty document if the file does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	fs.documentStore = newDocumentStore(fs)

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := fs.save(context.Background(), &document{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat store file %s: %w", path, err)
	}
	return fs, nil
}

// Path returns the backing file location.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) readBlob(context.Context) ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeBlob replaces the file through a rename so readers never observe a
// partially written document.
func (fs *FileStore) writeBlob(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fs.path)
}

// Close is a no-op; the file is opened per operation.
func (fs *FileStore) Close() error {
	return nil
}
