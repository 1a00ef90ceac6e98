package media

import "sync"

// MemoryStore is the default SessionStore, suitable for a single softphone
// process. Hosts with durable storage plug in their own implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]RecordingSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]RecordingSession)}
}

func (s *MemoryStore) Put(session RecordingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Get(id string) (RecordingSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *MemoryStore) List() []RecordingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordingSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var _ SessionStore = (*MemoryStore)(nil)
