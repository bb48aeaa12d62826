package file_store

import (
	"context"
	"sync"
)

// FakeFileStore keeps payloads in memory, for tests.
type FakeFileStore struct {
	mu    sync.Mutex
	Files map[string][]byte
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{Files: map[string][]byte{}}
}

func (s *FakeFileStore) Store(ctx context.Context, name string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[name] = append([]byte(nil), body...)
	return name, nil
}

func (s *FakeFileStore) GetUrlFromKey(key string) string {
	return key
}

func (s *FakeFileStore) CleanUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files = map[string][]byte{}
}
