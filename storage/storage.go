package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage abstracts a byte-addressable store keyed by filename, used to
// persist fetched tarballs across process restarts.
type Storage interface {
	// Stat reports the size of filename and whether it exists.
	Stat(ctx context.Context, filename string) (size int64, exists bool, err error)

	// Get opens filename for reading. exists is false if it is absent.
	Get(ctx context.Context, filename string) (r io.ReadCloser, exists bool, err error)

	// Put returns a writer that creates or overwrites filename; the caller
	// must Close it to complete the write.
	Put(ctx context.Context, filename string) (w io.WriteCloser, err error)
}

// FileSystem implements Storage using the local filesystem.
type FileSystem struct {
	basePath string
}

func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

func (fs *FileSystem) Stat(ctx context.Context, filename string) (size int64, exists bool, err error) {
	info, err := os.Stat(filepath.Join(fs.basePath, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return info.Size(), true, nil
}

func (fs *FileSystem) Get(ctx context.Context, filename string) (r io.ReadCloser, exists bool, err error) {
	file, err := os.Open(filepath.Join(fs.basePath, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return file, true, nil
}

func (fs *FileSystem) Put(ctx context.Context, filename string) (w io.WriteCloser, err error) {
	fullPath := filepath.Join(fs.basePath, filename)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}
