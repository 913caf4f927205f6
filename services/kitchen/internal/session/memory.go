package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if session.Expired(s.now()) {
		return nil, ErrExpired
	}
	return session, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Start runs the expiry sweep until Stop.
func (s *MemoryStore) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	return nil
}

func (s *MemoryStore) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	return nil
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
