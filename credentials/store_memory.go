package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory
type MemoryStore struct {
	sync.RWMutex
	credentials map[string]Credential
	bindings    map[string]Binding
}

var _ Store = &MemoryStore{}

// NewMemoryStore creates a *MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]Credential),
		bindings:    make(map[string]Binding),
	}
}

// Credential returns a copy of the stored credential
func (s *MemoryStore) Credential(_ context.Context, accountID string) (*Credential, error) {
	s.RLock()
	defer s.RUnlock()
	cred, ok := s.credentials[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

// PutCredential stores a copy of cred
func (s *MemoryStore) PutCredential(_ context.Context, cred *Credential) error {
	s.Lock()
	defer s.Unlock()
	s.credentials[cred.AccountID] = *cred
	return nil
}

// DeleteCredential removes a credential
func (s *MemoryStore) DeleteCredential(_ context.Context, accountID string) error {
	s.Lock()
	defer s.Unlock()
	delete(s.credentials, accountID)
	return nil
}

// Binding returns a copy of the stored binding
func (s *MemoryStore) Binding(_ context.Context, workspaceID string) (*Binding, error) {
	s.RLock()
	defer s.RUnlock()
	binding, ok := s.bindings[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &binding, nil
}

// PutBinding stores a copy of binding
func (s *MemoryStore) PutBinding(_ context.Context, binding *Binding) error {
	s.Lock()
	defer s.Unlock()
	s.bindings[binding.WorkspaceID] = *binding
	return nil
}

// DeleteBinding removes a binding
func (s *MemoryStore) DeleteBinding(_ context.Context, workspaceID string) error {
	s.Lock()
	defer s.Unlock()
	delete(s.bindings, workspaceID)
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
