// Package storage persists uploaded attachment files on local disk.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store saves and retrieves attachment files
type Store interface {
	Save(file *multipart.FileHeader) (filename, path string, err error)
	Open(path string) (io.ReadSeekCloser, error)
	Remove(path string) error
}

type localStore struct {
	dir string
}

// NewLocalStore creates a disk-backed store rooted at dir
func NewLocalStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

// Save writes the upload under a random name so user-supplied filenames never
// touch the filesystem.
func (s *localStore) Save(file *multipart.FileHeader) (string, string, error) {
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	filename := uuid.New().String() + filepath.Ext(file.Filename)
	path := filepath.Join(s.dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", "", err
	}
	return filename, path, nil
}

func (s *localStore) Open(path string) (io.ReadSeekCloser, error) {
	return os.Open(path)
}

func (s *localStore) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
