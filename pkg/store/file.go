package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"storyloom/pkg/utils"
)

// File keeps one JSON document per key in a directory.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, utils.SanitizeFilename(key)+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := utils.Load[json.RawMessage](f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	return utils.Save(f.path(key), json.RawMessage(value))
}

func (f *File) Delete(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
