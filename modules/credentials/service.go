package credentials

import (
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/chat-sync-client/domain/chat"
)

var (
	// ErrIncompleteCredential is returned when token or member id is missing.
	ErrIncompleteCredential = errors.New("credential requires both token and member id")
	// ErrNoCredential is returned when nothing is stored.
	ErrNoCredential = errors.New("no credential stored")
)

// Persister stores the credential across restarts.
type Persister interface {
	Load() (domain.Credential, error)
	Save(cred domain.Credential) error
	Delete() error
}

// Service is the process-wide credential store.
type Service struct {
	mu     sync.RWMutex
	cred   domain.Credential
	name   string
	store  Persister
	subs   map[int]func(domain.Credential)
	nextID int
}

// NewService creates a credential store. store may be nil for a memory-only store.
func NewService(store Persister) *Service {
	return &Service{
		store: store,
		subs:  make(map[int]func(domain.Credential)),
	}
}

// Restore loads the persisted credential, if any. Listeners are notified when
// a credential was found.
func (s *Service) Restore() error {
	if s.store == nil {
		return nil
	}
	cred, err := s.store.Load()
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if !cred.Complete() {
		return nil
	}

	s.mu.Lock()
	s.cred = cred
	s.name = userName(cred.Token)
	s.mu.Unlock()

	s.notify(cred)
	return nil
}

// Get returns the current credential and whether the client is authenticated.
func (s *Service) Get() (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.cred.Complete()
}

// Identity returns the local identity derived from the current credential.
func (s *Service) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Identity{MemberID: s.cred.MemberID, Name: s.name}
}

// Set replaces the credential and notifies listeners.
func (s *Service) Set(cred domain.Credential) error {
	if !cred.Complete() {
		return ErrIncompleteCredential
	}
	if s.store != nil {
		if err := s.store.Save(cred); err != nil {
			return fmt.Errorf("failed to persist credential: %w", err)
		}
	}

	s.mu.Lock()
	s.cred = cred
	s.name = userName(cred.Token)
	s.mu.Unlock()

	s.notify(cred)
	return nil
}

// Clear removes the credential and notifies listeners with the zero value.
func (s *Service) Clear() error {
	if s.store != nil {
		if err := s.store.Delete(); err != nil {
			return fmt.Errorf("failed to delete credential: %w", err)
		}
	}

	s.mu.Lock()
	s.cred = domain.Credential{}
	s.name = ""
	s.mu.Unlock()

	s.notify(domain.Credential{})
	return nil
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (s *Service) Subscribe(fn func(domain.Credential)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) notify(cred domain.Credential) {
	s.mu.RLock()
	subs := make([]func(domain.Credential), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(cred)
	}
}

func userName(token string) string {
	name, err := UserName(token)
	if err != nil {
		return ""
	}
	return name
}
