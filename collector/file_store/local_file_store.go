package file_store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type LocalFileStore struct {
	dir                   string
	customizeFileNameFunc CustomizeFileNameFuncType
}

func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "fail to create archive dir %s", dir)
	}
	return &LocalFileStore{dir: dir, customizeFileNameFunc: RawPayloadFileName}, nil
}

func (s *LocalFileStore) SetCustomizeFileNameFunc(f CustomizeFileNameFuncType) {
	s.customizeFileNameFunc = f
}

// Store overwrites any previous payload with the same key.
func (s *LocalFileStore) Store(ctx context.Context, name string, body []byte) (string, error) {
	key := s.customizeFileNameFunc(name)
	if key == "" {
		return "", errors.New("generate empty file key, invalid")
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "fail to create dir for %s", key)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", errors.Wrapf(err, "fail to write %s", path)
	}
	return key, nil
}

func (s *LocalFileStore) GetUrlFromKey(key string) string {
	return "file://" + filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalFileStore) CleanUp() {}
