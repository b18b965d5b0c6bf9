package keychain

import (
	"fmt"
	"sync"
)

type memoryKey struct {
	service string
	account string
}

// MemoryStore is an in-memory implementation of Store for testing.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[memoryKey]string
}

// NewMemoryStore creates a new in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[memoryKey]string)}
}

func (s *MemoryStore) Set(service, account, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[memoryKey{service, account}] = value
	return nil
}

func (s *MemoryStore) Get(service, account string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.secrets[memoryKey{service, account}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
	}
	return val, nil
}

func (s *MemoryStore) Delete(service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, memoryKey{service, account})
	return nil
}
